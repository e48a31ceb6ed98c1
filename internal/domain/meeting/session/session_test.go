package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/audio"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/metrics"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/recognition"
)

type fakeCapture struct {
	segments chan []byte
	pcm      io.Reader
	// flush is delivered after Stop; the channel then closes unless hang is set.
	flush    [][]byte
	hang     bool
	released atomic.Bool
	stopOnce sync.Once
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{segments: make(chan []byte)}
}

func (c *fakeCapture) Segments() <-chan []byte { return c.segments }
func (c *fakeCapture) PCM() io.Reader          { return c.pcm }
func (c *fakeCapture) Settings() audio.Settings {
	return audio.Settings{SampleRate: 16000, Channels: 1, DeviceSampleRate: 48000}
}

func (c *fakeCapture) Stop() error {
	c.stopOnce.Do(func() {
		go func() {
			for _, b := range c.flush {
				c.segments <- b
			}
			if !c.hang {
				close(c.segments)
			}
		}()
	})
	return nil
}

func (c *fakeCapture) Release() error {
	c.released.Store(true)
	return nil
}

type fakeSource struct {
	capture *fakeCapture
	err     error
	calls   int
	got     audio.Format
	pcmTap  bool
}

func (s *fakeSource) Acquire(_ context.Context, c audio.Constraints, f audio.Format) (audio.Capture, error) {
	s.calls++
	s.got = f
	s.pcmTap = c.PCMTap
	if s.err != nil {
		return nil, s.err
	}
	return s.capture, nil
}

type supportAll bool

func (p supportAll) Supports(context.Context, audio.Format) bool { return bool(p) }

type fakeTranscriber struct {
	mu     sync.Mutex
	calls  int
	data   [][]byte
	format audio.Format
	errs   []error
	text   string
}

func (t *fakeTranscriber) Transcribe(_ context.Context, data []byte, f audio.Format) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.data = append(t.data, data)
	t.format = f
	if len(t.errs) > 0 {
		err := t.errs[0]
		t.errs = t.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return t.text, nil
}

func newTestSession(t *testing.T, src *fakeSource, tr *fakeTranscriber) *Session {
	t.Helper()
	return New(Options{
		Source:      src,
		Prober:      supportAll(true),
		Formats:     []string{"opus-webm", "wav"},
		Transcriber: tr,
		StopTimeout: time.Second,
		Logger:      zaptest.NewLogger(t),
	})
}

func deliver(t *testing.T, c *fakeCapture, sizes ...int) {
	t.Helper()
	for i, n := range sizes {
		b := make([]byte, n)
		for j := range b {
			b[j] = byte('a' + i)
		}
		select {
		case c.segments <- b:
		case <-time.After(time.Second):
			t.Fatal("segment not consumed")
		}
	}
}

func TestChunksKeepDeliveryOrder(t *testing.T) {
	c := newFakeCapture()
	c.flush = [][]byte{[]byte("zz")}
	tr := &fakeTranscriber{text: "hi"}
	s := newTestSession(t, &fakeSource{capture: c}, tr)

	require.NoError(t, s.Start(context.Background()))
	deliver(t, c, 1, 2, 3)

	text, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	chunks := s.Chunks()
	require.Len(t, chunks, 4)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Seq)
	}
	assert.Equal(t, []byte("a"), chunks[0].Data)
	assert.Equal(t, []byte("bb"), chunks[1].Data)
	assert.Equal(t, []byte("ccc"), chunks[2].Data)
	assert.Equal(t, []byte("zz"), chunks[3].Data)
	assert.Equal(t, []byte("abbccczz"), tr.data[0])
	assert.True(t, c.released.Load())
}

func TestZeroLengthSegmentsAreDiscarded(t *testing.T) {
	c := newFakeCapture()
	m := metrics.New()
	s := New(Options{
		Source:      &fakeSource{capture: c},
		Prober:      supportAll(true),
		Formats:     []string{"wav"},
		Transcriber: &fakeTranscriber{text: "ok"},
		Metrics:     m,
		Logger:      zaptest.NewLogger(t),
	})

	require.NoError(t, s.Start(context.Background()))
	deliver(t, c, 0, 120, 0, 80)
	_, err := s.Stop(context.Background())
	require.NoError(t, err)

	chunks := s.Chunks()
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0].Data, 120)
	assert.Len(t, chunks[1].Data, 80)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EmptySegments))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChunksAppended))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.ChunkBytes))
}

func TestStartWhileRecordingIsRejected(t *testing.T) {
	c := newFakeCapture()
	src := &fakeSource{capture: c}
	s := newTestSession(t, src, &fakeTranscriber{text: "ok"})

	require.NoError(t, s.Start(context.Background()))
	deliver(t, c, 10)
	require.Eventually(t, func() bool { return s.Snapshot().Chunks == 1 }, time.Second, 5*time.Millisecond)
	before := s.Chunks()
	id := s.Snapshot().ID

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, meeting.ErrSessionActive)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, meeting.StateRecording, s.State())
	assert.Equal(t, before, s.Chunks())
	assert.Equal(t, id, s.Snapshot().ID)

	_, err = s.Stop(context.Background())
	require.NoError(t, err)
}

func TestAcquireFailureReturnsToIdle(t *testing.T) {
	denied := meeting.Ef(meeting.PermissionDenied, "acquire", "not authorized")
	s := newTestSession(t, &fakeSource{err: denied}, &fakeTranscriber{})

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, meeting.PermissionDenied)

	snap := s.Snapshot()
	assert.Equal(t, meeting.StateIdle, snap.State)
	assert.ErrorIs(t, snap.Err, meeting.PermissionDenied)
}

func TestNewStartClearsPreviousError(t *testing.T) {
	src := &fakeSource{err: meeting.Ef(meeting.DeviceUnavailable, "acquire", "busy")}
	s := newTestSession(t, src, &fakeTranscriber{text: "ok"})
	require.Error(t, s.Start(context.Background()))

	src.err = nil
	src.capture = newFakeCapture()
	require.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Snapshot().Err)

	_, err := s.Stop(context.Background())
	require.NoError(t, err)
}

func TestFailedSessionKeepsChunksForRetry(t *testing.T) {
	c := newFakeCapture()
	tr := &fakeTranscriber{
		text: "hello there",
		errs: []error{meeting.Ef(meeting.MissingCredential, "transcribe", "no key")},
	}
	s := newTestSession(t, &fakeSource{capture: c}, tr)

	require.NoError(t, s.Start(context.Background()))
	deliver(t, c, 4, 4)

	_, err := s.Stop(context.Background())
	require.ErrorIs(t, err, meeting.MissingCredential)

	snap := s.Snapshot()
	assert.Equal(t, meeting.StateFailed, snap.State)
	assert.ErrorIs(t, snap.Err, meeting.MissingCredential)
	assert.Empty(t, snap.FinalTranscript)
	before := s.Chunks()
	require.Len(t, before, 2)

	text, err := s.Transcribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)

	snap = s.Snapshot()
	assert.Equal(t, meeting.StateComplete, snap.State)
	assert.Equal(t, "hello there", snap.FinalTranscript)
	assert.NoError(t, snap.Err)
	assert.Equal(t, before, s.Chunks())
	assert.Equal(t, 2, tr.calls)
	assert.Equal(t, tr.data[0], tr.data[1])
}

func TestStopProceedsAfterTimeout(t *testing.T) {
	c := newFakeCapture()
	c.hang = true
	s := New(Options{
		Source:      &fakeSource{capture: c},
		Prober:      supportAll(true),
		Formats:     []string{"wav"},
		Transcriber: &fakeTranscriber{text: "ok"},
		StopTimeout: 50 * time.Millisecond,
		Logger:      zaptest.NewLogger(t),
	})

	require.NoError(t, s.Start(context.Background()))
	deliver(t, c, 8)

	start := time.Now()
	_, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, c.released.Load())
	assert.Len(t, s.Chunks(), 1)
	assert.Equal(t, meeting.StateComplete, s.State())
}

func TestStopAndTranscribeOutsideTheirStates(t *testing.T) {
	s := newTestSession(t, &fakeSource{capture: newFakeCapture()}, &fakeTranscriber{})

	_, err := s.Stop(context.Background())
	assert.ErrorIs(t, err, meeting.ErrNotRecording)

	_, err = s.Transcribe(context.Background())
	assert.ErrorIs(t, err, meeting.ErrNothingToTranscribe)
}

func TestEncodingFallsBackToPlatformDefault(t *testing.T) {
	c := newFakeCapture()
	src := &fakeSource{capture: c}
	tr := &fakeTranscriber{text: "ok"}
	s := New(Options{
		Source:      src,
		Prober:      supportAll(false),
		Formats:     []string{"opus-webm", "mp4"},
		Transcriber: tr,
		Logger:      zaptest.NewLogger(t),
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, audio.PlatformDefault, src.got)
	deliver(t, c, 2)
	_, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, audio.PlatformDefault, tr.format)
	assert.Equal(t, audio.PlatformDefault, s.Snapshot().Format)
}

type scriptedEngine struct {
	mu     sync.Mutex
	starts int
	run    func(n int) (<-chan recognition.Event, error)
}

func (e *scriptedEngine) Start(_ context.Context, _ <-chan []byte) (<-chan recognition.Event, error) {
	e.mu.Lock()
	e.starts++
	n := e.starts
	e.mu.Unlock()
	return e.run(n)
}

func (e *scriptedEngine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

func eventsOf(evs ...recognition.Event) <-chan recognition.Event {
	ch := make(chan recognition.Event, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}

func sessionWithEngine(t *testing.T, c *fakeCapture, e recognition.Engine, maxRestarts int) *Session {
	t.Helper()
	return New(Options{
		Source:      &fakeSource{capture: c},
		Prober:      supportAll(true),
		Formats:     []string{"wav"},
		Transcriber: &fakeTranscriber{text: "ok"},
		Recognizer:  e,
		MaxRestarts: maxRestarts,
		StopTimeout: time.Second,
		Logger:      zaptest.NewLogger(t),
	})
}

func TestLiveTranscriptKeepsOnlyFinalResults(t *testing.T) {
	c := newFakeCapture()
	c.pcm = strings.NewReader("")
	e := &scriptedEngine{run: func(int) (<-chan recognition.Event, error) {
		return eventsOf(
			recognition.Event{Text: "hello"},
			recognition.Event{Text: "hello world", Final: true},
			recognition.Event{Text: "bye"},
		), nil
	}}
	s := sessionWithEngine(t, c, e, 3)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Snapshot().LivePreview == "hello world bye" },
		time.Second, 5*time.Millisecond)

	_, err := s.Stop(context.Background())
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, "hello world ", snap.LiveTranscript)
	assert.Empty(t, snap.Warnings)
	assert.Equal(t, 1, e.Starts())
}

func TestRecognizerRestartsThenWarns(t *testing.T) {
	c := newFakeCapture()
	pr, pw := io.Pipe()
	defer pw.Close()
	c.pcm = pr

	transient := meeting.Ef(meeting.RecognitionTransient, "recognize", "connection reset")
	e := &scriptedEngine{run: func(int) (<-chan recognition.Event, error) {
		return eventsOf(recognition.Event{Err: transient}), nil
	}}
	m := metrics.New()
	s := sessionWithEngine(t, c, e, 2)
	s.opts.Metrics = m

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return len(s.Snapshot().Warnings) == 1 },
		2*time.Second, 5*time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, meeting.StateRecording, snap.State)
	assert.ErrorIs(t, snap.Warnings[0], meeting.RecognitionFatal)
	assert.Equal(t, 3, e.Starts())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecognizerRestarts))

	_, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, meeting.StateComplete, s.State())
}

func TestRecognizerResultResetsRestartBudget(t *testing.T) {
	c := newFakeCapture()
	pr, pw := io.Pipe()
	defer pw.Close()
	c.pcm = pr

	transient := meeting.Ef(meeting.RecognitionTransient, "recognize", "read failed")
	e := &scriptedEngine{run: func(n int) (<-chan recognition.Event, error) {
		if n <= 3 {
			return eventsOf(recognition.Event{Text: "word", Final: true}, recognition.Event{Err: transient}), nil
		}
		return eventsOf(recognition.Event{Err: transient}), nil
	}}
	s := sessionWithEngine(t, c, e, 1)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return len(s.Snapshot().Warnings) == 1 },
		2*time.Second, 5*time.Millisecond)

	// Each productive run resets the budget, so only the fourth run exhausts it.
	assert.Equal(t, 4, e.Starts())
	assert.Equal(t, "word word word ", s.Snapshot().LiveTranscript)

	_, err := s.Stop(context.Background())
	require.NoError(t, err)
}

func TestFirstDialFailureGivesUpWithoutRestart(t *testing.T) {
	c := newFakeCapture()
	pr, pw := io.Pipe()
	defer pw.Close()
	c.pcm = pr

	refused := meeting.E(meeting.RecognitionTransient, "recognize", errors.New("connection refused"))
	e := &scriptedEngine{run: func(int) (<-chan recognition.Event, error) {
		return nil, refused
	}}
	m := metrics.New()
	s := sessionWithEngine(t, c, e, 3)
	s.opts.Metrics = m

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return len(s.Snapshot().Warnings) == 1 },
		time.Second, 5*time.Millisecond)

	warning := s.Snapshot().Warnings[0]
	assert.ErrorIs(t, warning, meeting.RecognitionFatal)
	assert.ErrorIs(t, warning, meeting.RecognitionTransient, "the dial failure stays in the chain")
	assert.Equal(t, 1, e.Starts(), "a recognizer that was never reachable is not restarted")
	assert.Zero(t, testutil.ToFloat64(m.RecognizerRestarts))
	assert.Equal(t, meeting.StateRecording, s.State())

	deliver(t, c, 5)
	_, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Chunks(), 1)
}

func TestDialFailureAfterConnectIsRestarted(t *testing.T) {
	c := newFakeCapture()
	pr, pw := io.Pipe()
	defer pw.Close()
	c.pcm = pr

	dropped := meeting.Ef(meeting.RecognitionTransient, "recognize", "connection reset")
	refused := meeting.Ef(meeting.RecognitionTransient, "recognize", "connection refused")
	e := &scriptedEngine{run: func(n int) (<-chan recognition.Event, error) {
		switch n {
		case 1:
			return eventsOf(recognition.Event{Text: "hi", Final: true}, recognition.Event{Err: dropped}), nil
		case 2:
			return nil, refused
		default:
			return eventsOf(recognition.Event{Text: "again", Final: true}), nil
		}
	}}
	s := sessionWithEngine(t, c, e, 3)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Snapshot().LiveTranscript == "hi again " },
		2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, e.Starts())
	assert.Empty(t, s.Snapshot().Warnings)

	_, err := s.Stop(context.Background())
	require.NoError(t, err)
}

func TestNoRecognizerMeansNoTap(t *testing.T) {
	c := newFakeCapture()
	src := &fakeSource{capture: c}
	s := newTestSession(t, src, &fakeTranscriber{text: "ok"})

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, src.pcmTap)
	_, err := s.Stop(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.Snapshot().LiveTranscript)
	assert.Empty(t, s.Snapshot().Warnings)
}
