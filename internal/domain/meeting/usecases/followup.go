package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/calendar"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/metrics"
)

const emailSystemPrompt = `You write short, warm, professional follow-up emails after networking conversations.
Respond with a JSON object with exactly these fields and nothing else:
{"subject": "email subject line", "body": "plain-text email body"}`

// FollowUp drafts a follow-up email and a calendar invite for a participant.
type FollowUp struct {
	Provider Provider
	Sender   string // signs the email; may be empty
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// FollowUpResult is a drafted email with the suggested meeting.
type FollowUpResult struct {
	Email     meeting.Email
	Start     time.Time
	InviteURL string
}

// DraftEmail writes an email to p. With a summary the email refers to what was
// discussed; without one it is a generic "great meeting you" note built from
// what is known about p.
func (f *FollowUp) DraftEmail(ctx context.Context, p meeting.Participant, sum *meeting.Summary) (*meeting.Email, error) {
	const op = "draft email"
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("participant name is required")
	}

	var out meeting.Email
	start := time.Now()
	err := chatJSON(ctx, f.Provider, op, chatRequest{
		System:    emailSystemPrompt,
		User:      emailPrompt(p, sum, f.Sender),
		MaxTokens: 600,
	}, &out)
	f.Metrics.ObserveProvider(f.Provider.Name, outcome(err), time.Since(start))
	if err != nil {
		if f.Logger != nil {
			f.Logger.Warn("email draft failed", zap.Error(err))
		}
		return nil, err
	}
	return &out, nil
}

// Execute drafts the email and derives the invite from the summary's
// follow-up suggestions.
func (f *FollowUp) Execute(ctx context.Context, p meeting.Participant, sum *meeting.Summary, now time.Time) (*FollowUpResult, error) {
	email, err := f.DraftEmail(ctx, p, sum)
	if err != nil {
		return nil, err
	}

	var suggestions []string
	if sum != nil {
		suggestions = sum.FollowUpSuggestions
	}
	start := calendar.SuggestStart(suggestions, now)
	return &FollowUpResult{
		Email:     *email,
		Start:     start,
		InviteURL: calendar.InviteURL(email.Subject, email.Body, p.Email, start, calendar.DefaultDuration),
	}, nil
}

func emailPrompt(p meeting.Participant, sum *meeting.Summary, sender string) string {
	var sb strings.Builder
	if sum != nil {
		fmt.Fprintf(&sb, "Write a follow-up email to %s about our conversation.\n\n", p.Name)
		fmt.Fprintf(&sb, "Conversation summary: %s\n", sum.Summary)
		if len(sum.ActionItems) > 0 {
			fmt.Fprintf(&sb, "Action items: %s\n", strings.Join(sum.ActionItems, "; "))
		}
		if len(sum.FollowUpSuggestions) > 0 {
			fmt.Fprintf(&sb, "Proposed follow-up: %s\n", sum.FollowUpSuggestions[0])
		}
	} else {
		fmt.Fprintf(&sb, "Write a short email to %s saying it was great meeting them at the event and suggesting we stay in touch.\n\n", p.Name)
		if p.Info != "" {
			fmt.Fprintf(&sb, "About them: %s\n", p.Info)
		}
	}
	if sender != "" {
		fmt.Fprintf(&sb, "Sign the email as %s.\n", sender)
	}
	return sb.String()
}
