package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/audio"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) RecordingStarted(dir string, format audio.Format, s audio.Settings) {
	fmt.Fprintf(f.w, "🎙️  Recording (%s, %d Hz, %s). Press Ctrl+C to stop.\n",
		format.Name, s.SampleRate, channels(s.Channels))
	if s.DeviceCodec != "" {
		fmt.Fprintf(f.w, "   Device: %s, %d Hz, %s\n", s.DeviceCodec, s.DeviceSampleRate, channels(s.DeviceChannels))
	}
	fmt.Fprintf(f.w, "📁 %s\n", dir)
}

// LivePreview rewrites the current line with the tail of the live transcript.
func (f *Formatter) LivePreview(text string) {
	text = strings.Join(strings.Fields(text), " ")
	const width = 72
	if r := []rune(text); len(r) > width {
		text = "…" + string(r[len(r)-width+1:])
	}
	fmt.Fprintf(f.w, "\r\033[K💬 %s", text)
}

// EndPreview moves past the preview line.
func (f *Formatter) EndPreview() {
	fmt.Fprintln(f.w)
}

func (f *Formatter) RecordingStopped(duration time.Duration) {
	fmt.Fprintf(f.w, "⏹️  Recording stopped (%s)\n", formatDuration(duration))
}

func (f *Formatter) Transcribing() {
	fmt.Fprintf(f.w, "📝 Transcribing audio...\n")
}

func (f *Formatter) TranscribeDone(path string) {
	fmt.Fprintf(f.w, "✅ Transcript saved: %s\n", path)
}

func (f *Formatter) Summarizing() {
	fmt.Fprintf(f.w, "🤖 Generating summary...\n")
}

func (f *Formatter) SummarizeDone(path string) {
	fmt.Fprintf(f.w, "✅ Summary saved: %s\n", path)
}

func (f *Formatter) Summary(sum *meeting.Summary) {
	fmt.Fprintf(f.w, "\n%s\n", sum.Summary)
	f.list("Action items", sum.ActionItems)
	f.list("Follow-up", sum.FollowUpSuggestions)
}

func (f *Formatter) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(f.w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(f.w, "  • %s\n", item)
	}
}

func (f *Formatter) EmailDraft(to string, email meeting.Email) {
	fmt.Fprintf(f.w, "✉️  To: %s\n", to)
	fmt.Fprintf(f.w, "Subject: %s\n\n%s\n", email.Subject, email.Body)
}

func (f *Formatter) Invite(start time.Time, url string) {
	fmt.Fprintf(f.w, "\n📅 Suggested follow-up: %s\n%s\n", start.Format("Mon Jan 2, 15:04"), url)
}

func (f *Formatter) MeetingComplete(dir string) {
	fmt.Fprintf(f.w, "\n📁 Meeting saved: %s\n", dir)
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

// Failure prints err with the remediation for its kind, if any.
func (f *Formatter) Failure(err error) {
	f.Error(err.Error())
	if remedy := meeting.Remedy(err); remedy != "" {
		fmt.Fprintf(f.w, "💡 %s\n", remedy)
	}
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func (f *Formatter) Prompt(msg string) {
	fmt.Fprintf(f.w, "❓ %s ", msg)
}

func (f *Formatter) MeetingListHeader() {
	fmt.Fprintf(f.w, "📁 Meetings:\n\n")
}

func (f *Formatter) MeetingListItem(name string, hasTranscript, hasSummary bool) {
	status := ""
	if hasTranscript && hasSummary {
		status = " ✅"
	} else if hasTranscript {
		status = " 📝"
	}
	fmt.Fprintf(f.w, "  %s%s\n", name, status)
}

func (f *Formatter) SetupCheck(name string, ok bool, detail string) {
	if ok {
		fmt.Fprintf(f.w, "  ✅ %s: %s\n", name, detail)
	} else {
		fmt.Fprintf(f.w, "  ❌ %s: %s\n", name, detail)
	}
}

func (f *Formatter) FormatRow(name string, supported, chosen bool) {
	mark := "  "
	if chosen {
		mark = "▶ "
	}
	status := "❌"
	if supported {
		status = "✅"
	}
	fmt.Fprintf(f.w, "%s%s %s\n", mark, status, name)
}

func channels(n int) string {
	switch n {
	case 0:
		return "unknown layout"
	case 1:
		return "mono"
	case 2:
		return "stereo"
	}
	return fmt.Sprintf("%d channels", n)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
