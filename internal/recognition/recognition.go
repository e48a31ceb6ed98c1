// Package recognition talks to a local speech recognizer for the live transcript.
//
// The server speaks the Vosk websocket protocol: the client sends a config
// message, then binary 16-bit mono PCM frames, then {"eof": 1}; the server
// answers each frame with {"partial": "..."} or, at an utterance boundary,
// {"text": "..."}.
package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
)

// Event is one recognizer result. Err is set, alone, on the last event of a
// run that ended abnormally.
type Event struct {
	Text  string
	Final bool
	Err   error
}

// Engine runs one recognition pass over the frames until ctx ends, the frame
// channel closes, or the connection fails. The returned channel is closed
// when the pass is over.
type Engine interface {
	Start(ctx context.Context, frames <-chan []byte) (<-chan Event, error)
}

type Vosk struct {
	URL        string
	SampleRate int

	dialer *websocket.Dialer
	log    *zap.Logger
}

func NewVosk(url string, sampleRate int, log *zap.Logger) *Vosk {
	return &Vosk{
		URL:        url,
		SampleRate: sampleRate,
		dialer:     &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		log:        log,
	}
}

type voskConfig struct {
	Config struct {
		SampleRate int `json:"sample_rate"`
	} `json:"config"`
}

type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

func (v *Vosk) Start(ctx context.Context, frames <-chan []byte) (<-chan Event, error) {
	conn, resp, err := v.dialer.DialContext(ctx, v.URL, nil)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) {
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			return nil, meeting.Ef(meeting.RecognitionFatal, "recognize", "handshake rejected (HTTP %d)", status)
		}
		return nil, meeting.E(meeting.RecognitionTransient, "recognize", err)
	}
	if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
		conn.Close()
		return nil, meeting.Ef(meeting.RecognitionFatal, "recognize", "unexpected status %d", resp.StatusCode)
	}

	var cfg voskConfig
	cfg.Config.SampleRate = v.SampleRate
	if err := conn.WriteJSON(cfg); err != nil {
		conn.Close()
		return nil, meeting.E(meeting.RecognitionTransient, "recognize", err)
	}

	events := make(chan Event, 16)
	writerDone := make(chan struct{})
	go v.write(ctx, conn, frames, writerDone)
	go v.read(ctx, conn, events, writerDone)
	return events, nil
}

func (v *Vosk) write(ctx context.Context, conn *websocket.Conn, frames <-chan []byte, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			v.sendEOF(conn)
			return
		case frame, ok := <-frames:
			if !ok {
				v.sendEOF(conn)
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				v.log.Debug("recognizer write failed", zap.Error(err))
				return
			}
		}
	}
}

func (v *Vosk) sendEOF(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`))
}

func (v *Vosk) read(ctx context.Context, conn *websocket.Conn, events chan<- Event, writerDone <-chan struct{}) {
	defer close(events)
	defer conn.Close()

	// Unblock ReadMessage when the pass is cancelled and the server is slow to
	// answer the eof.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			select {
			case <-time.After(2 * time.Second):
				conn.Close()
			case <-stop:
			}
		case <-stop:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) && isClosed(writerDone) {
				return
			}
			events <- Event{Err: meeting.E(meeting.RecognitionTransient, "recognize", err)}
			return
		}

		var res voskResult
		if err := json.Unmarshal(msg, &res); err != nil {
			v.log.Debug("skipping unparseable recognizer message", zap.ByteString("message", msg))
			continue
		}
		switch {
		case res.Text != "":
			events <- Event{Text: res.Text, Final: true}
		case res.Partial != "":
			events <- Event{Text: res.Partial}
		}
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// String is used in logs.
func (v *Vosk) String() string {
	return fmt.Sprintf("vosk(%s)", v.URL)
}
