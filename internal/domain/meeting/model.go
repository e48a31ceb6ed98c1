package meeting

import "time"

// State is the lifecycle position of a recording session.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateStopping
	StateTranscribing
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateTranscribing:
		return "transcribing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether a new session may start from s.
func (s State) Terminal() bool {
	return s == StateIdle || s == StateComplete || s == StateFailed
}

// Segment is one delivered unit of captured audio.
type Segment struct {
	Seq  int
	Data []byte
}

// Summary is the structured result of summarizing a transcript.
type Summary struct {
	Summary             string   `json:"summary" validate:"required"`
	ActionItems         []string `json:"actionItems" validate:"required"`
	FollowUpSuggestions []string `json:"followUpSuggestions" validate:"required"`
}

// Email is a drafted follow-up message.
type Email struct {
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// Participant is someone met at the event.
type Participant struct {
	Name  string
	Email string
	Info  string
}

// RecordingResult holds what a finished recording produced.
type RecordingResult struct {
	SessionID  string
	StartedAt  time.Time
	StoppedAt  time.Time
	MeetingDir string
	Transcript string
	Live       string
}
