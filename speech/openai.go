// Package speech provides OpenAI-backed speech recognition and synthesis
// behind the telephony engine interfaces. Audio crosses the boundary in
// the carrier wire encoding (8kHz mono μ-law).
package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"callbridge/telephony"
)

const (
	carrierSampleRate = 8000
	ttsSampleRate     = 24000 // PCM rate the speech endpoint emits
)

// Whisper transcribes caller audio with the OpenAI audio API.
type Whisper struct {
	client *openai.Client
}

// NewWhisper creates a Whisper-backed transcriber.
func NewWhisper(client *openai.Client) *Whisper {
	return &Whisper{client: client}
}

func (w *Whisper) Transcribe(ctx context.Context, audio []byte) (telephony.Transcription, error) {
	wav := wavFromPCM16(DecodeMuLaw(audio), carrierSampleRate)
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav),
	})
	if err != nil {
		return telephony.Transcription{}, fmt.Errorf("speech: transcribe: %w", err)
	}
	// The API reports no utterance-level confidence; non-empty text is
	// taken at face value and the pipeline's gate only drops empties.
	conf := 0.0
	if resp.Text != "" {
		conf = 1.0
	}
	return telephony.Transcription{Text: resp.Text, Confidence: conf}, nil
}

// TTS synthesizes agent utterances with the OpenAI speech API and
// converts them to the carrier encoding.
type TTS struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

// NewTTS creates a TTS-backed synthesizer. An empty voice defaults to
// alloy.
func NewTTS(client *openai.Client, voice string) *TTS {
	v := openai.SpeechVoice(voice)
	if voice == "" {
		v = openai.VoiceAlloy
	}
	return &TTS{client: client, voice: v}
}

func (t *TTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := t.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          t.voice,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: synthesize: %w", err)
	}
	defer resp.Close()
	pcm, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("speech: read synthesis: %w", err)
	}
	samples := downsamplePCM16(pcm16FromBytes(pcm), ttsSampleRate/carrierSampleRate)
	return EncodeMuLaw(samples), nil
}
