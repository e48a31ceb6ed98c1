package meeting

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKind(t *testing.T) {
	cause := errors.New("status 415")
	err := fmt.Errorf("transcribing: %w", E(ProviderRejected, "transcribe", cause))

	assert.ErrorIs(t, err, ProviderRejected)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, NetworkError)
	assert.Equal(t, ProviderRejected, KindOf(err))
	assert.Equal(t, "transcribing: transcribe: provider rejected request: status 415", err.Error())
}

func TestErrorWithoutCause(t *testing.T) {
	err := E(EmptyAudio, "transcribe", nil)
	assert.ErrorIs(t, err, EmptyAudio)
	assert.Equal(t, "transcribe: empty audio", err.Error())
}

func TestKindOfPlainErrors(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(context.Canceled))
	assert.Equal(t, MissingCredential, KindOf(fmt.Errorf("x: %w", MissingCredential)))
}

func TestRemedy(t *testing.T) {
	assert.Contains(t, Remedy(E(PermissionDenied, "acquire", nil)), "microphone permission")
	assert.Contains(t, Remedy(E(MissingCredential, "transcribe", nil)), "credentials set")
	assert.Empty(t, Remedy(errors.New("other")))
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{StateIdle, StateComplete, StateFailed} {
		assert.True(t, s.Terminal(), s.String())
	}
	for _, s := range []State{StateAcquiring, StateRecording, StateStopping, StateTranscribing} {
		assert.False(t, s.Terminal(), s.String())
	}
}
