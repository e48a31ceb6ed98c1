package usecases

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/audio"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/credential"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/metrics"
)

func opusWebm(t *testing.T) audio.Format {
	f, ok := audio.LookupFormat("opus-webm")
	require.True(t, ok)
	return f
}

func TestTranscribeSendsRecording(t *testing.T) {
	stub := newProviderStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "test-model", r.FormValue("model"))
		fh := r.MultipartForm.File["file"]
		require.Len(t, fh, 1)
		assert.Equal(t, "recording.webm", fh[0].Filename)
		assert.Equal(t, "audio/webm", fh[0].Header.Get("Content-Type"))

		f, err := fh[0].Open()
		require.NoError(t, err)
		body, _ := io.ReadAll(f)
		assert.Equal(t, "audio-bytes", string(body))

		writeJSON(w, http.StatusOK, map[string]string{"text": " hello world \n"})
	})

	m := metrics.New()
	tr := &Transcribe{
		Provider: stub.provider("transcription", credential.TranscriptionKey,
			memCredentials{credential.TranscriptionKey: "secret"}),
		Metrics: m,
		Logger:  zaptest.NewLogger(t),
	}

	text, err := tr.Transcribe(context.Background(), []byte("audio-bytes"), opusWebm(t))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.EqualValues(t, 1, stub.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("transcription", "ok")))
}

func TestTranscribeEmptyAudioMakesNoCall(t *testing.T) {
	stub := newProviderStub(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"text": "unexpected"})
	})
	tr := &Transcribe{Provider: stub.provider("transcription", credential.TranscriptionKey,
		memCredentials{credential.TranscriptionKey: "secret"})}

	_, err := tr.Transcribe(context.Background(), nil, opusWebm(t))
	assert.ErrorIs(t, err, meeting.EmptyAudio)
	assert.EqualValues(t, 0, stub.calls.Load())
}

func TestTranscribeMissingCredentialMakesNoCall(t *testing.T) {
	stub := newProviderStub(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"text": "unexpected"})
	})
	tr := &Transcribe{Provider: stub.provider("transcription", credential.TranscriptionKey, memCredentials{})}

	_, err := tr.Transcribe(context.Background(), []byte("x"), opusWebm(t))
	assert.ErrorIs(t, err, meeting.MissingCredential)
	assert.EqualValues(t, 0, stub.calls.Load())
}

func TestTranscribeReadsCredentialAtEachCall(t *testing.T) {
	stub := newProviderStub(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"text": "ok"})
	})
	creds := memCredentials{}
	tr := &Transcribe{Provider: stub.provider("transcription", credential.TranscriptionKey, creds)}

	_, err := tr.Transcribe(context.Background(), []byte("x"), opusWebm(t))
	require.ErrorIs(t, err, meeting.MissingCredential)

	creds[credential.TranscriptionKey] = "added-later"
	text, err := tr.Transcribe(context.Background(), []byte("x"), opusWebm(t))
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestTranscribeProviderRejection(t *testing.T) {
	stub := newProviderStub(t, func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusBadRequest, "Unsupported file format")
	})
	m := metrics.New()
	tr := &Transcribe{
		Provider: stub.provider("transcription", credential.TranscriptionKey,
			memCredentials{credential.TranscriptionKey: "secret"}),
		Metrics: m,
	}

	_, err := tr.Transcribe(context.Background(), []byte("x"), opusWebm(t))
	require.ErrorIs(t, err, meeting.ProviderRejected)
	assert.NotErrorIs(t, err, meeting.NetworkError)

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)
	assert.Contains(t, rejected.Message, "Unsupported file format")
	assert.EqualValues(t, 1, stub.calls.Load(), "rejections are not retried")
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.ProviderRequests.WithLabelValues("transcription", string(meeting.ProviderRejected))))
}

func TestTranscribeServerErrorIsNotRetried(t *testing.T) {
	stub := newProviderStub(t, func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusServiceUnavailable, "overloaded")
	})
	tr := &Transcribe{Provider: stub.provider("transcription", credential.TranscriptionKey,
		memCredentials{credential.TranscriptionKey: "secret"})}

	_, err := tr.Transcribe(context.Background(), []byte("x"), opusWebm(t))
	assert.ErrorIs(t, err, meeting.ProviderRejected)
	assert.EqualValues(t, 1, stub.calls.Load())
}

func TestTranscribeNetworkError(t *testing.T) {
	stub := newProviderStub(t, func(w http.ResponseWriter, r *http.Request) {})
	p := stub.provider("transcription", credential.TranscriptionKey,
		memCredentials{credential.TranscriptionKey: "secret"})
	p.HTTPClient = nil
	stub.Close()

	tr := &Transcribe{Provider: p}
	_, err := tr.Transcribe(context.Background(), []byte("x"), opusWebm(t))
	assert.ErrorIs(t, err, meeting.NetworkError)
}

func TestTranscribeCanceled(t *testing.T) {
	stub := newProviderStub(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"text": "late"})
	})
	tr := &Transcribe{Provider: stub.provider("transcription", credential.TranscriptionKey,
		memCredentials{credential.TranscriptionKey: "secret"})}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Transcribe(ctx, []byte("x"), opusWebm(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, meeting.KindOf(err))
}

func TestTranscriptFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteTranscript(dir, "hello world", ""))
	_, err := os.Stat(filepath.Join(dir, "live-transcript.md"))
	assert.True(t, os.IsNotExist(err))

	text, err := ReadTranscript(dir)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	require.NoError(t, WriteTranscript(dir, "final", "live words "))
	live, err := os.ReadFile(filepath.Join(dir, "live-transcript.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Live Transcript\n\nlive words\n", string(live))

	_, err = ReadTranscript(t.TempDir())
	assert.ErrorIs(t, err, meeting.EmptyTranscript)
}
