package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is one inbound audio chunk with its carrier sequence number.
type Frame struct {
	Seq   uint64
	Audio []byte
}

// MediaStream is the bidirectional framed audio channel for one call.
// Frames() carries inbound caller audio and is closed when the carrier
// stops the stream or the transport fails; Err() distinguishes the two
// after the channel closes.
type MediaStream interface {
	CallID() string
	Frames() <-chan Frame
	WriteAudio(ctx context.Context, audio []byte) error
	// Clear discards any audio the carrier has buffered but not yet
	// played. Used on barge-in.
	Clear() error
	Close() error
	Err() error
}

var errStreamClosed = errors.New("telephony: media stream closed")

const (
	streamHandshakeTimeout = 10 * time.Second
	frameBufferSize        = 128
)

// Twilio Media Streams wire messages.
type twilioEvent struct {
	Event          string       `json:"event"`
	SequenceNumber string       `json:"sequenceNumber,omitempty"`
	StreamSid      string       `json:"streamSid,omitempty"`
	Start          *twilioStart `json:"start,omitempty"`
	Media          *twilioMedia `json:"media,omitempty"`
}

type twilioStart struct {
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      struct {
		Encoding   string `json:"encoding"`
		SampleRate int    `json:"sampleRate"`
		Channels   int    `json:"channels"`
	} `json:"mediaFormat"`
}

type twilioMedia struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// TwilioStream implements MediaStream over a Twilio Media Streams
// websocket connection.
type TwilioStream struct {
	conn      *websocket.Conn
	callID    string
	streamSid string

	frames chan Frame

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// NewTwilioStream waits for the carrier's start message on conn and
// returns a stream pumping inbound media frames. The caller owns the
// returned stream and must Close it.
func NewTwilioStream(conn *websocket.Conn) (*TwilioStream, error) {
	conn.SetReadDeadline(time.Now().Add(streamHandshakeTimeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("telephony: media stream handshake: %w", err)
		}
		var ev twilioEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("telephony: media stream handshake: %w", err)
		}
		switch ev.Event {
		case "connected":
			continue
		case "start":
			if ev.Start == nil || ev.Start.CallSid == "" {
				return nil, errors.New("telephony: start event missing call sid")
			}
			conn.SetReadDeadline(time.Time{})
			s := &TwilioStream{
				conn:      conn,
				callID:    ev.Start.CallSid,
				streamSid: ev.Start.StreamSid,
				frames:    make(chan Frame, frameBufferSize),
			}
			go s.readLoop()
			return s, nil
		default:
			return nil, fmt.Errorf("telephony: unexpected event %q before start", ev.Event)
		}
	}
}

func (s *TwilioStream) CallID() string       { return s.callID }
func (s *TwilioStream) Frames() <-chan Frame { return s.frames }

func (s *TwilioStream) readLoop() {
	defer close(s.frames)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setErr(err)
			}
			return
		}
		var ev twilioEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("media stream %s: bad event: %v", s.callID, err)
			continue
		}
		switch ev.Event {
		case "media":
			if ev.Media == nil {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
			if err != nil {
				log.Printf("media stream %s: bad payload: %v", s.callID, err)
				continue
			}
			seq, _ := strconv.ParseUint(ev.SequenceNumber, 10, 64)
			select {
			case s.frames <- Frame{Seq: seq, Audio: audio}:
			default:
				// Consumer is behind; dropping beats stalling the socket.
				log.Printf("media stream %s: frame buffer full, dropping", s.callID)
			}
		case "stop":
			return
		case "mark", "dtmf":
			// Not consumed by the session loop.
		}
	}
}

// WriteAudio sends one outbound media event carrying audio.
func (s *TwilioStream) WriteAudio(ctx context.Context, audio []byte) error {
	if s.closed.Load() {
		return errStreamClosed
	}
	ev := twilioEvent{
		Event:     "media",
		StreamSid: s.streamSid,
		Media:     &twilioMedia{Payload: base64.StdEncoding.EncodeToString(audio)},
	}
	return s.writeJSON(ctx, ev)
}

// Clear tells the carrier to drop buffered, unplayed outbound audio.
func (s *TwilioStream) Clear() error {
	if s.closed.Load() {
		return errStreamClosed
	}
	return s.writeJSON(context.Background(), twilioEvent{Event: "clear", StreamSid: s.streamSid})
}

func (s *TwilioStream) writeJSON(ctx context.Context, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	} else {
		s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	if err := s.conn.WriteJSON(v); err != nil {
		s.setErr(err)
		return fmt.Errorf("telephony: stream write: %w", err)
	}
	return nil
}

func (s *TwilioStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		s.conn.Close()
	})
	return nil
}

func (s *TwilioStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *TwilioStream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
