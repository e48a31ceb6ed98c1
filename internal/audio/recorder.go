package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
)

// Constraints are capture requests. The device may renegotiate any of them.
type Constraints struct {
	InputFormat      string
	InputDevice      string
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
	ChunkInterval    time.Duration
	// PCMTap adds a 16kHz mono s16le side output for a local recognizer.
	PCMTap bool
}

// Settings are what the capture actually runs with.
type Settings struct {
	DeviceCodec      string
	DeviceSampleRate int
	DeviceChannels   int
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
}

// Capture is a held microphone.
type Capture interface {
	// Segments delivers encoded audio at the chunk cadence. It is closed after
	// the last segment once the encoder has flushed.
	Segments() <-chan []byte
	// PCM is the recognizer tap, nil when not requested.
	PCM() io.Reader
	Settings() Settings
	// Stop asks the encoder to flush and finish.
	Stop() error
	// Release frees the device. Safe to call more than once.
	Release() error
}

// Source acquires captures.
type Source interface {
	Acquire(ctx context.Context, c Constraints, f Format) (Capture, error)
}

// Recorder manages ffmpeg-based mic capture. It owns a single slot: while a
// capture is held no other acquisition succeeds.
type Recorder struct {
	FFmpegPath string

	log     *zap.Logger
	command func(name string, args ...string) *exec.Cmd

	mu   sync.Mutex
	held bool
}

func NewRecorder(ffmpegPath string, log *zap.Logger) *Recorder {
	return &Recorder{FFmpegPath: ffmpegPath, log: log, command: exec.Command}
}

func (r *Recorder) CheckFFmpeg() error {
	if _, err := exec.LookPath(r.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found. Install with: brew install ffmpeg")
	}
	return nil
}

// Acquire starts capturing. It blocks until ffmpeg produces output, fails, or
// ctx ends; a pending OS permission prompt keeps it blocked.
func (r *Recorder) Acquire(ctx context.Context, c Constraints, f Format) (Capture, error) {
	r.mu.Lock()
	if r.held {
		r.mu.Unlock()
		return nil, meeting.Ef(meeting.DeviceUnavailable, "acquire", "microphone is in use by another session")
	}
	r.held = true
	r.mu.Unlock()

	capture, err := r.start(ctx, c, f)
	if err != nil {
		r.releaseSlot()
		return nil, err
	}
	return capture, nil
}

func (r *Recorder) releaseSlot() {
	r.mu.Lock()
	r.held = false
	r.mu.Unlock()
}

func (r *Recorder) start(ctx context.Context, c Constraints, f Format) (*ffmpegCapture, error) {
	cmd := r.command(r.FFmpegPath, buildArgs(c, f)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	// Plain os.Pipes so that Wait never closes a reader we are still draining.
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	var pcmR, pcmW *os.File
	if c.PCMTap {
		if pcmR, pcmW, err = os.Pipe(); err != nil {
			closeAll(outR, outW, errR, errW)
			return nil, fmt.Errorf("pcm pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{pcmW}
	}

	if err := cmd.Start(); err != nil {
		closeAll(outR, outW, errR, errW, pcmR, pcmW)
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, meeting.Ef(meeting.DeviceUnavailable, "acquire", "ffmpeg not found at %q", r.FFmpegPath)
		}
		return nil, meeting.E(meeting.DeviceUnavailable, "acquire", err)
	}
	// The child holds its own copies of the write ends.
	closeAll(outW, errW, pcmW)

	cp := &ffmpegCapture{
		recorder: r,
		cmd:      cmd,
		stdin:    stdin,
		stdout:   outR,
		pcm:      pcmR,
		segments: make(chan []byte, 64),
		ready:    make(chan struct{}),
		eof:      make(chan struct{}),
		exited:   make(chan struct{}),
		logDone:  make(chan struct{}),
		done:     make(chan struct{}),
		settings: Settings{
			SampleRate:       c.SampleRate,
			Channels:         c.Channels,
			NoiseSuppression: c.NoiseSuppression,
		},
		log: r.log.With(zap.String("format", f.Name)),
	}

	go cp.watchLog(errR)
	go cp.pump(c.ChunkInterval)
	go func() {
		cp.waitErr = cmd.Wait()
		close(cp.exited)
	}()

	select {
	case <-cp.ready:
		return cp.acquired(c), nil
	case <-cp.exited:
		// Output written just before exiting still counts as a capture.
		select {
		case <-cp.ready:
			return cp.acquired(c), nil
		case <-cp.eof:
		}
		select {
		case <-cp.ready:
			return cp.acquired(c), nil
		default:
		}
		<-cp.logDone
		cp.closeDone()
		cp.closePipes()
		return nil, classifyExit(cp.stderrTail(), cp.waitErr)
	case <-ctx.Done():
		cp.closeDone()
		cp.kill()
		cp.closePipes()
		return nil, ctx.Err()
	}
}

func (c *ffmpegCapture) acquired(req Constraints) *ffmpegCapture {
	s := c.Settings()
	c.log.Info("microphone acquired",
		zap.String("device_codec", s.DeviceCodec),
		zap.Int("device_sample_rate", s.DeviceSampleRate),
		zap.Int("device_channels", s.DeviceChannels),
		zap.Bool("echo_cancellation_requested", req.EchoCancellation),
		zap.Bool("echo_cancellation_honored", false))
	return c
}

func buildArgs(c Constraints, f Format) []string {
	args := []string{
		"-hide_banner", "-nostats", "-loglevel", "info",
		"-f", c.InputFormat,
		"-i", c.InputDevice,
		"-map", "0:a",
		"-ac", strconv.Itoa(c.Channels),
		"-ar", strconv.Itoa(c.SampleRate),
	}
	if c.NoiseSuppression {
		args = append(args, "-af", "afftdn")
	}
	args = append(args, "-c:a", f.Encoder)
	args = append(args, f.MuxerArgs...)
	args = append(args, "-flush_packets", "1", "-f", f.Muxer, "pipe:1")
	if c.PCMTap {
		args = append(args,
			"-map", "0:a", "-ac", "1", "-ar", "16000",
			"-c:a", "pcm_s16le", "-f", "s16le", "pipe:3")
	}
	return args
}

var permissionHints = []string{"permission", "not authorized", "not permitted", "access denied"}

func classifyExit(stderr string, err error) error {
	lower := strings.ToLower(stderr)
	for _, hint := range permissionHints {
		if strings.Contains(lower, hint) {
			return meeting.Ef(meeting.PermissionDenied, "acquire", "%s", lastLine(stderr))
		}
	}
	msg := lastLine(stderr)
	if msg == "" && err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = "capture ended before producing audio"
	}
	return meeting.Ef(meeting.DeviceUnavailable, "acquire", "%s", msg)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

type ffmpegCapture struct {
	recorder *Recorder
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   *os.File
	pcm      *os.File
	log      *zap.Logger

	segments chan []byte
	ready    chan struct{}
	eof      chan struct{}
	exited   chan struct{}
	logDone  chan struct{}
	done     chan struct{}
	waitErr  error

	readyOnce   sync.Once
	doneOnce    sync.Once
	stopOnce    sync.Once
	releaseOnce sync.Once

	mu       sync.Mutex
	settings Settings
	tail     []string
}

func (c *ffmpegCapture) Segments() <-chan []byte { return c.segments }

func (c *ffmpegCapture) PCM() io.Reader {
	if c.pcm == nil {
		return nil
	}
	return c.pcm
}

func (c *ffmpegCapture) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Stop sends ffmpeg's interactive quit key so it flushes the container and
// exits; the segment channel closes once its output is drained.
func (c *ffmpegCapture) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		if _, werr := io.WriteString(c.stdin, "q"); werr != nil {
			c.log.Debug("quit key not delivered, interrupting", zap.Error(werr))
			err = c.cmd.Process.Signal(os.Interrupt)
		}
		c.stdin.Close()
	})
	return err
}

func (c *ffmpegCapture) Release() error {
	c.releaseOnce.Do(func() {
		c.closeDone()
		select {
		case <-c.exited:
		default:
			c.kill()
		}
		c.closePipes()
		c.recorder.releaseSlot()
		c.log.Debug("microphone released")
	})
	return nil
}

func (c *ffmpegCapture) closeDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *ffmpegCapture) kill() {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	select {
	case <-c.exited:
	case <-time.After(2 * time.Second):
		c.log.Warn("ffmpeg did not exit after kill")
	}
}

func (c *ffmpegCapture) closePipes() {
	closeAll(c.stdout, c.pcm)
}

// pump turns the stdout byte stream into segments at the chunk cadence. The
// cadence starts with the first output so nothing is queued while the device
// is still waiting on the user.
func (c *ffmpegCapture) pump(interval time.Duration) {
	defer close(c.segments)

	reads := make(chan []byte)
	go func() {
		defer close(c.eof)
		defer close(reads)
		buf := make([]byte, 32*1024)
		for {
			n, err := c.stdout.Read(buf)
			if n > 0 {
				c.readyOnce.Do(func() { close(c.ready) })
				b := make([]byte, n)
				copy(b, buf[:n])
				select {
				case reads <- b:
				case <-c.done:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	var tick <-chan time.Time
	var pending []byte
	for {
		select {
		case b, ok := <-reads:
			if !ok {
				if pending != nil {
					c.emit(pending)
				}
				return
			}
			if tick == nil {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				tick = ticker.C
			}
			pending = append(pending, b...)
		case <-tick:
			if !c.emit(pending) {
				return
			}
			pending = nil
		case <-c.done:
			return
		}
	}
}

func (c *ffmpegCapture) emit(b []byte) bool {
	select {
	case c.segments <- b:
		return true
	case <-c.done:
		return false
	}
}

var streamRe = regexp.MustCompile(`Stream #\d+:\d+.*?: Audio: ([^,\s]+)[^,]*, (\d+) Hz, ([^,]+)`)

// watchLog reads ffmpeg's stderr, keeping a short tail for error reports and
// picking up the device's native stream parameters from the input report.
func (c *ffmpegCapture) watchLog(r io.ReadCloser) {
	defer close(c.logDone)
	defer r.Close()

	sc := bufio.NewScanner(r)
	parsed := false
	for sc.Scan() {
		line := sc.Text()
		c.mu.Lock()
		c.tail = append(c.tail, line)
		if len(c.tail) > 20 {
			c.tail = c.tail[1:]
		}
		if !parsed {
			if m := streamRe.FindStringSubmatch(line); m != nil {
				parsed = true
				c.settings.DeviceCodec = m[1]
				c.settings.DeviceSampleRate, _ = strconv.Atoi(m[2])
				c.settings.DeviceChannels = channelCount(m[3])
			}
		}
		c.mu.Unlock()
		c.log.Debug("ffmpeg", zap.String("line", line))
	}
}

func (c *ffmpegCapture) stderrTail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.tail, "\n")
}

func channelCount(layout string) int {
	layout = strings.TrimSpace(layout)
	switch layout {
	case "mono":
		return 1
	case "stereo":
		return 2
	}
	if n, err := strconv.Atoi(strings.Fields(layout + " 0")[0]); err == nil && n > 0 {
		return n
	}
	return 0
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}
