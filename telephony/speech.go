package telephony

import "context"

// Transcription is the result of recognizing one caller utterance.
// Confidence is in [0,1]; engines that report no confidence use 1 for
// non-empty text so the low-confidence gate stays inert for them.
type Transcription struct {
	Text       string
	Confidence float64
}

// Transcriber converts accumulated caller audio into text. Audio is in
// the stream's wire encoding (8kHz mono μ-law for carrier streams).
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (Transcription, error)
}

// Synthesizer converts an agent utterance into audio in the stream's
// wire encoding.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
