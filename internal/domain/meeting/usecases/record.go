package usecases

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting/session"
)

// Record drives one recording session and files its output in a meeting
// directory.
type Record struct {
	Session        *session.Session
	MeetingsDir    string
	FolderTemplate string

	meetingDir string
}

// FolderTemplateData holds the template variables available for folder naming.
type FolderTemplateData struct {
	Year   string
	Month  string
	Day    string
	Hour   string
	Minute string
	Second string
	Name   string
	ID     string
}

// StartOptions holds options for starting a recording.
type StartOptions struct {
	Name string // optional meeting name suffix
}

// Start begins recording and creates the meeting directory. It returns the
// directory path.
func (r *Record) Start(ctx context.Context, opts *StartOptions) (string, error) {
	tmpl, err := template.New("folder").Parse(r.FolderTemplate)
	if err != nil {
		return "", fmt.Errorf("invalid folder template: %w", err)
	}

	if err := r.Session.Start(ctx); err != nil {
		return "", err
	}

	snap := r.Session.Snapshot()
	dirName, err := renderFolderName(tmpl, snap.StartedAt, opts.Name, snap.ID)
	if err != nil {
		r.abandon()
		return "", err
	}
	r.meetingDir = filepath.Join(r.MeetingsDir, dirName)
	if err := os.MkdirAll(r.meetingDir, 0o755); err != nil {
		r.abandon()
		return "", fmt.Errorf("creating meeting directory: %w", err)
	}
	return r.meetingDir, nil
}

// abandon finalizes a session that could not be filed. The recording is
// released without being kept.
func (r *Record) abandon() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = r.Session.Stop(ctx)
}

// Stop finalizes and transcribes the recording. On transcription failure the
// result still carries the live transcript, and Retry may be called.
func (r *Record) Stop(ctx context.Context) (*meeting.RecordingResult, error) {
	_, err := r.Session.Stop(ctx)
	return r.file(err)
}

// Retry transcribes a failed session again without re-recording.
func (r *Record) Retry(ctx context.Context) (*meeting.RecordingResult, error) {
	_, err := r.Session.Transcribe(ctx)
	return r.file(err)
}

func (r *Record) file(err error) (*meeting.RecordingResult, error) {
	snap := r.Session.Snapshot()
	result := &meeting.RecordingResult{
		SessionID:  snap.ID,
		StartedAt:  snap.StartedAt,
		StoppedAt:  snap.StoppedAt,
		MeetingDir: r.meetingDir,
		Transcript: snap.FinalTranscript,
		Live:       snap.LiveTranscript,
	}
	if err != nil {
		return result, err
	}
	if err := WriteTranscript(r.meetingDir, result.Transcript, result.Live); err != nil {
		return result, err
	}
	return result, nil
}

func renderFolderName(tmpl *template.Template, t time.Time, name, id string) (string, error) {
	data := FolderTemplateData{
		Year:   t.Format("2006"),
		Month:  t.Format("01"),
		Day:    t.Format("02"),
		Hour:   t.Format("15"),
		Minute: t.Format("04"),
		Second: t.Format("05"),
		Name:   name,
		ID:     id,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing folder template: %w", err)
	}
	return buf.String(), nil
}
