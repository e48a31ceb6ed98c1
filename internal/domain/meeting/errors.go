package meeting

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures. A kind is itself an error so callers
// can write errors.Is(err, meeting.EmptyAudio).
type ErrorKind string

const (
	PermissionDenied     ErrorKind = "permission denied"
	DeviceUnavailable    ErrorKind = "device unavailable"
	EncodingUnsupported  ErrorKind = "encoding unsupported"
	RecognitionTransient ErrorKind = "recognition interrupted"
	RecognitionFatal     ErrorKind = "recognition failed"
	EmptyAudio           ErrorKind = "empty audio"
	EmptyTranscript      ErrorKind = "empty transcript"
	MissingCredential    ErrorKind = "missing credential"
	ProviderRejected     ErrorKind = "provider rejected request"
	NetworkError         ErrorKind = "network error"
	MalformedResponse    ErrorKind = "malformed provider response"
)

func (k ErrorKind) Error() string { return string(k) }

var (
	// ErrSessionActive is returned by Start while a session is not terminal.
	ErrSessionActive = errors.New("a recording is already in progress")
	// ErrNotRecording is returned by Stop outside the recording state.
	ErrNotRecording = errors.New("no active recording")
	// ErrNothingToTranscribe is returned by Transcribe before any recording was finalized.
	ErrNothingToTranscribe = errors.New("no finalized recording to transcribe")
)

// Error carries a kind, the failing operation and the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// E builds an *Error.
func E(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef builds an *Error with a formatted cause.
func Ef(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not a pipeline error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k ErrorKind
	if errors.As(err, &k) {
		return k
	}
	return ""
}

// Remedy returns the action the user should take for err.
func Remedy(err error) string {
	switch KindOf(err) {
	case PermissionDenied:
		return "Check microphone permission for your terminal in system privacy settings."
	case DeviceUnavailable:
		return "Check that a microphone is connected and not used by another recording, and that ffmpeg is installed."
	case EmptyAudio:
		return "The device produced no audio. Check the input device and record again."
	case EmptyTranscript:
		return "Record or provide a transcript first."
	case MissingCredential:
		return "Add the provider credential with 'moment credentials set'."
	case ProviderRejected:
		return "Check the credential and model, or re-record with a different audio format."
	case NetworkError:
		return "Check your network connection and retry."
	case MalformedResponse:
		return "The provider returned an unexpected reply. Retry the request."
	case RecognitionFatal:
		return "Live transcript is unavailable. The recording continues and will be transcribed remotely."
	}
	return ""
}
