package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/metrics"
)

// Summarize turns a transcript into a structured summary.
type Summarize struct {
	Provider     Provider
	SystemPrompt string
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Summarize asks the provider for {summary, actionItems, followUpSuggestions}.
// The reply is validated; a reply of any other shape is MalformedResponse.
func (s *Summarize) Summarize(ctx context.Context, transcript string) (*meeting.Summary, error) {
	const op = "summarize"
	if strings.TrimSpace(transcript) == "" {
		return nil, meeting.Ef(meeting.EmptyTranscript, op, "nothing to summarize")
	}

	var out meeting.Summary
	start := time.Now()
	err := chatJSON(ctx, s.Provider, op, chatRequest{
		System:    s.SystemPrompt,
		User:      "Here is the meeting transcript to summarize:\n\n" + transcript,
		MaxTokens: 500,
	}, &out)
	s.Metrics.ObserveProvider(s.Provider.Name, outcome(err), time.Since(start))
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("summary failed", zap.Error(err))
		}
		return nil, err
	}
	return &out, nil
}

// Execute summarizes the transcript in meetingDir and writes summary.md and
// summary.json next to it.
func (s *Summarize) Execute(ctx context.Context, meetingDir string) (*meeting.Summary, error) {
	transcript, err := ReadTranscript(meetingDir)
	if err != nil {
		return nil, err
	}
	sum, err := s.Summarize(ctx, transcript)
	if err != nil {
		return nil, err
	}
	if err := WriteSummary(meetingDir, sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// WriteSummary writes the markdown and JSON renditions of sum.
func WriteSummary(meetingDir string, sum *meeting.Summary) error {
	summaryPath := filepath.Join(meetingDir, "summary.md")
	if err := os.WriteFile(summaryPath, []byte(FormatSummary(sum)), 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(meetingDir, "summary.json"), data, 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// ReadSummary loads summary.json from meetingDir. A missing file is not an
// error and yields nil.
func ReadSummary(meetingDir string) (*meeting.Summary, error) {
	data, err := os.ReadFile(filepath.Join(meetingDir, "summary.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading summary: %w", err)
	}
	var sum meeting.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("parsing summary.json: %w", err)
	}
	return &sum, nil
}

func FormatSummary(sum *meeting.Summary) string {
	var sb strings.Builder
	sb.WriteString("# Meeting Summary\n\n")
	sb.WriteString(sum.Summary + "\n")
	writeList(&sb, "Action Items", sum.ActionItems)
	writeList(&sb, "Follow-up Suggestions", sum.FollowUpSuggestions)
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n## " + title + "\n\n")
	for _, item := range items {
		sb.WriteString("- " + item + "\n")
	}
}
