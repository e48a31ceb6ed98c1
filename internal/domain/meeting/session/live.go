package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/recognition"
)

// LiveTranscript accumulates recognizer output. Final results are kept,
// interim ones only shape the preview until replaced.
type LiveTranscript struct {
	final   strings.Builder
	interim string
}

// Apply folds one event in. Error events are ignored here.
func (l *LiveTranscript) Apply(ev recognition.Event) {
	if ev.Err != nil {
		return
	}
	if ev.Final {
		l.final.WriteString(ev.Text)
		l.final.WriteString(" ")
		l.interim = ""
		return
	}
	l.interim = ev.Text
}

// Text is the persisted transcript.
func (l *LiveTranscript) Text() string {
	return l.final.String()
}

// Preview is the transcript followed by the current interim result.
func (l *LiveTranscript) Preview() string {
	return l.final.String() + l.interim
}

func (l *LiveTranscript) Reset() {
	l.final.Reset()
	l.interim = ""
}

// pcmFrameSize is 100ms of 16kHz mono s16le.
const pcmFrameSize = 3200

// pumpPCM reads the recognizer tap into frames until the tap closes. The tap
// must always be drained so ffmpeg never blocks on it; frames are dropped
// when the recognizer falls behind.
func pumpPCM(r io.Reader, frames chan<- []byte, log *zap.Logger) {
	defer close(frames)
	dropped := 0
	for {
		buf := make([]byte, pcmFrameSize)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			select {
			case frames <- buf[:n]:
			default:
				dropped++
			}
		}
		if err != nil {
			if dropped > 0 {
				log.Debug("recognizer fell behind", zap.Int("dropped_frames", dropped))
			}
			return
		}
	}
}

// recognize keeps the engine running over frames until ctx ends or the
// frames run out. Transient failures restart the engine; once more than
// maxRestarts happen in a row without any result, or on a fatal failure, a
// warning is reported and live recognition stops for this session.
func (s *Session) recognize(ctx context.Context, frames <-chan []byte) {
	failures := 0
	connected := false
	for {
		events, err := s.opts.Recognizer.Start(ctx, frames)
		if err != nil && !connected && ctx.Err() == nil {
			// Nothing to restart when the recognizer was never reachable.
			s.warn(asFatal(err))
			return
		}
		if err == nil {
			connected = true
			var got bool
			got, err = s.consume(events)
			if got {
				failures = 0
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// Frames ran out: the capture ended.
			return
		}
		if errors.Is(err, meeting.RecognitionFatal) {
			s.warn(err)
			return
		}

		failures++
		if failures > s.opts.MaxRestarts {
			s.warn(asFatal(err))
			return
		}
		s.log.Info("restarting recognizer", zap.Int("attempt", failures), zap.Error(err))
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecognizerRestarts.Inc()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.opts.RestartDelay * time.Duration(failures)):
		}
	}
}

// consume applies events under the session lock and returns the error that
// ended the run, if any.
func (s *Session) consume(events <-chan recognition.Event) (bool, error) {
	got := false
	for ev := range events {
		if ev.Err != nil {
			go func() {
				for range events {
				}
			}()
			return got, ev.Err
		}
		got = true
		s.mu.Lock()
		s.live.Apply(ev)
		s.mu.Unlock()
	}
	return got, nil
}

func asFatal(err error) error {
	if errors.Is(err, meeting.RecognitionFatal) {
		return err
	}
	return meeting.Ef(meeting.RecognitionFatal, "recognize", "giving up: %w", err)
}
