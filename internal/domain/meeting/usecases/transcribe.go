package usecases

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"go.uber.org/zap"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/audio"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/metrics"
)

// Transcribe sends a finalized recording to an OpenAI-compatible
// /audio/transcriptions endpoint.
type Transcribe struct {
	Provider Provider
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Transcribe returns the provider's text for data. Empty audio and a missing
// credential fail before any request is made.
func (t *Transcribe) Transcribe(ctx context.Context, data []byte, f audio.Format) (string, error) {
	const op = "transcribe"
	if len(data) == 0 {
		return "", meeting.Ef(meeting.EmptyAudio, op, "the recording contains no audio")
	}

	client, err := t.Provider.client(op)
	if err != nil {
		return "", err
	}

	name := f.FileName("recording")
	log := t.logger().With(zap.String("file", name), zap.Int("bytes", len(data)))
	log.Info("sending recording for transcription", zap.String("content_type", f.BaseMIME()))

	start := time.Now()
	resp, err := client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(data), name, f.BaseMIME()),
		Model: openai.AudioModel(t.Provider.Model),
	})
	if err != nil {
		err = classify(op, err)
	}
	t.Metrics.ObserveProvider(t.Provider.Name, outcome(err), time.Since(start))
	if err != nil {
		log.Warn("transcription failed", zap.Error(err))
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (t *Transcribe) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

// WriteTranscript writes transcript.md, and live-transcript.md when a live
// transcript was kept, into the meeting directory.
func WriteTranscript(meetingDir, transcript, live string) error {
	content := formatTranscript("Meeting Transcript", transcript)
	if err := os.WriteFile(filepath.Join(meetingDir, "transcript.md"), []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	if strings.TrimSpace(live) == "" {
		return nil
	}
	content = formatTranscript("Live Transcript", live)
	if err := os.WriteFile(filepath.Join(meetingDir, "live-transcript.md"), []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing live transcript: %w", err)
	}
	return nil
}

// ReadTranscript returns the transcript text of a meeting directory without
// its heading.
func ReadTranscript(meetingDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(meetingDir, "transcript.md"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", meeting.Ef(meeting.EmptyTranscript, "read transcript", "no transcript.md in %s", meetingDir)
		}
		return "", fmt.Errorf("reading transcript: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if rest, ok := strings.CutPrefix(text, "# Meeting Transcript"); ok {
		text = strings.TrimSpace(rest)
	}
	return text, nil
}

func formatTranscript(title, text string) string {
	var sb strings.Builder
	sb.WriteString("# " + title + "\n\n")
	sb.WriteString(strings.TrimSpace(text))
	sb.WriteString("\n")
	return sb.String()
}
