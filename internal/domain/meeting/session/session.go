// Package session runs one recording slot: acquiring the microphone, buffering
// its segments, keeping a best-effort live transcript and handing the
// finalized recording to a transcriber.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/audio"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/metrics"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/recognition"
)

// Transcriber turns a finalized recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, f audio.Format) (string, error)
}

// Options are the collaborators and tunables of a Session.
type Options struct {
	Source      audio.Source
	Prober      audio.Prober
	Constraints audio.Constraints
	// Formats is the encoding preference list, most preferred first.
	Formats     []string
	Transcriber Transcriber

	// Recognizer is optional. Without it the live transcript stays empty.
	Recognizer   recognition.Engine
	MaxRestarts  int
	RestartDelay time.Duration

	// StopTimeout bounds the wait for the capture's final segment.
	StopTimeout time.Duration

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Snapshot is a consistent copy of a session's observable state.
type Snapshot struct {
	ID              string
	State           meeting.State
	Format          audio.Format
	Settings        audio.Settings
	Chunks          int
	Bytes           int
	LiveTranscript  string
	LivePreview     string
	FinalTranscript string
	Err             error
	Warnings        []error
	StartedAt       time.Time
	StoppedAt       time.Time
}

// Session is a single recording slot. All methods are safe for concurrent use.
type Session struct {
	opts Options
	log  *zap.Logger
	now  func() time.Time

	mu        sync.Mutex
	id        string
	state     meeting.State
	format    audio.Format
	settings  audio.Settings
	chunks    ChunkBuffer
	live      LiveTranscript
	final     string
	err       error
	warnings  []error
	startedAt time.Time
	stoppedAt time.Time

	capture   audio.Capture
	pumpDone  chan struct{}
	recCancel context.CancelFunc
	recDone   chan struct{}
}

func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}
	if opts.RestartDelay < 0 {
		opts.RestartDelay = 0
	}
	return &Session{
		opts: opts,
		log:  opts.Logger,
		now:  time.Now,
	}
}

// Start acquires the microphone and begins recording. It is rejected with
// meeting.ErrSessionActive unless the slot is idle or holds a finished
// session, whose data it discards.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if !s.state.Terminal() {
		s.mu.Unlock()
		return meeting.ErrSessionActive
	}
	s.id = uuid.NewString()
	s.err = nil
	s.setState(meeting.StateAcquiring)
	log := s.log.With(zap.String("session", s.id))
	s.mu.Unlock()

	format, ok := audio.Negotiate(ctx, s.opts.Prober, s.opts.Formats)
	if !ok {
		log.Warn("no preferred encoding is supported, using the platform default",
			zap.Error(meeting.E(meeting.EncodingUnsupported, "negotiate", nil)),
			zap.Strings("preferences", s.opts.Formats))
	}

	c := s.opts.Constraints
	c.PCMTap = s.opts.Recognizer != nil
	capture, err := s.opts.Source.Acquire(ctx, c, format)
	if err != nil {
		s.mu.Lock()
		s.chunks.Reset()
		s.live.Reset()
		s.final = ""
		s.warnings = nil
		s.err = err
		s.setState(meeting.StateIdle)
		s.mu.Unlock()
		log.Error("acquiring microphone failed", zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks.Reset()
	s.live.Reset()
	s.final = ""
	s.warnings = nil
	s.format = format
	s.settings = capture.Settings()
	s.capture = capture
	s.startedAt = s.now()
	s.stoppedAt = time.Time{}
	s.setState(meeting.StateRecording)
	if s.opts.Metrics != nil {
		s.opts.Metrics.SessionsStarted.Inc()
	}

	s.pumpDone = make(chan struct{})
	go s.collect(capture.Segments(), s.pumpDone)

	s.recDone = make(chan struct{})
	recCtx, cancel := context.WithCancel(context.Background())
	s.recCancel = cancel
	if pcm := capture.PCM(); s.opts.Recognizer != nil && pcm != nil {
		frames := make(chan []byte, 64)
		go pumpPCM(pcm, frames, log)
		go func(done chan struct{}) {
			defer close(done)
			s.recognize(recCtx, frames)
		}(s.recDone)
	} else {
		close(s.recDone)
	}

	log.Info("recording started", zap.String("format", format.Name))
	return nil
}

// collect appends delivered segments in order until the capture closes them.
func (s *Session) collect(segments <-chan []byte, done chan<- struct{}) {
	defer close(done)
	for seg := range segments {
		s.mu.Lock()
		appended := s.chunks.Append(seg)
		s.mu.Unlock()

		if s.opts.Metrics == nil {
			continue
		}
		switch {
		case appended:
			s.opts.Metrics.ChunksAppended.Inc()
			s.opts.Metrics.ChunkBytes.Add(float64(len(seg)))
		case len(seg) == 0:
			s.opts.Metrics.EmptySegments.Inc()
		}
	}
}

// Stop finalizes the recording and transcribes it. The final segment is
// awaited for at most the stop timeout; finalization then proceeds with what
// was buffered. ctx bounds only the transcription call.
func (s *Session) Stop(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.state != meeting.StateRecording {
		s.mu.Unlock()
		return "", meeting.ErrNotRecording
	}
	s.setState(meeting.StateStopping)
	capture, pumpDone, recDone := s.capture, s.pumpDone, s.recDone
	s.recCancel()
	log := s.log.With(zap.String("session", s.id))
	s.mu.Unlock()

	if err := capture.Stop(); err != nil {
		log.Warn("requesting capture flush failed", zap.Error(err))
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), s.opts.StopTimeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		if err := waitFor(waitCtx, pumpDone); err != nil {
			log.Warn("capture did not confirm its final segment, finalizing with what was buffered",
				zap.Duration("timeout", s.opts.StopTimeout))
			if s.opts.Metrics != nil {
				s.opts.Metrics.StopFlushTimeout.Inc()
			}
		}
		return capture.Release()
	})
	g.Go(func() error {
		if err := waitFor(waitCtx, recDone); err != nil {
			log.Warn("recognizer did not finish in time")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Warn("releasing microphone failed", zap.Error(err))
	}

	s.mu.Lock()
	s.chunks.Freeze()
	s.capture = nil
	s.stoppedAt = s.now()
	if s.opts.Metrics != nil {
		s.opts.Metrics.SessionDuration.Observe(s.stoppedAt.Sub(s.startedAt).Seconds())
	}
	log.Info("recording finalized",
		zap.Int("chunks", s.chunks.Len()),
		zap.Int("bytes", s.chunks.Size()))
	s.setState(meeting.StateTranscribing)
	s.mu.Unlock()

	return s.transcribe(ctx)
}

// Transcribe retries transcription of a failed session's recording.
func (s *Session) Transcribe(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.state != meeting.StateFailed {
		s.mu.Unlock()
		return "", meeting.ErrNothingToTranscribe
	}
	s.err = nil
	s.setState(meeting.StateTranscribing)
	s.mu.Unlock()

	return s.transcribe(ctx)
}

func (s *Session) transcribe(ctx context.Context) (string, error) {
	s.mu.Lock()
	data, format, id := s.chunks.Bytes(), s.format, s.id
	s.mu.Unlock()

	text, err := s.opts.Transcriber.Transcribe(ctx, data, format)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = err
		s.setState(meeting.StateFailed)
		s.log.Error("transcription failed", zap.String("session", id), zap.Error(err))
		return "", err
	}
	s.final = text
	s.setState(meeting.StateComplete)
	return text, nil
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:              s.id,
		State:           s.state,
		Format:          s.format,
		Settings:        s.settings,
		Chunks:          s.chunks.Len(),
		Bytes:           s.chunks.Size(),
		LiveTranscript:  s.live.Text(),
		LivePreview:     s.live.Preview(),
		FinalTranscript: s.final,
		Err:             s.err,
		Warnings:        append([]error(nil), s.warnings...),
		StartedAt:       s.startedAt,
		StoppedAt:       s.stoppedAt,
	}
}

// Chunks returns a copy of the buffered segments.
func (s *Session) Chunks() []meeting.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks.Segments()
}

// State is a shortcut for Snapshot().State.
func (s *Session) State() meeting.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// warn records a recognition problem. It never changes the state.
func (s *Session) warn(err error) {
	s.mu.Lock()
	s.warnings = append(s.warnings, err)
	id := s.id
	s.mu.Unlock()

	s.log.Warn("live transcript unavailable", zap.String("session", id), zap.Error(err))
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecognizerWarnings.Inc()
	}
}

// setState must be called with mu held.
func (s *Session) setState(st meeting.State) {
	s.log.Debug("session state", zap.String("session", s.id),
		zap.Stringer("from", s.state), zap.Stringer("to", st))
	s.state = st
	if s.opts.Metrics != nil {
		s.opts.Metrics.StateTransitions.WithLabelValues(st.String()).Inc()
	}
}

func waitFor(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
