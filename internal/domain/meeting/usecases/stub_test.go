package usecases

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/credential"
)

type memCredentials map[string]string

func (m memCredentials) Get(key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok && v != "", nil
}

// providerStub is an OpenAI-compatible endpoint that counts calls.
type providerStub struct {
	*httptest.Server
	calls atomic.Int32
}

func newProviderStub(t *testing.T, handler http.HandlerFunc) *providerStub {
	t.Helper()
	s := &providerStub{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *providerStub) provider(name, key string, creds credential.Reader) Provider {
	return Provider{
		Name:          name,
		BaseURL:       s.URL,
		Model:         "test-model",
		CredentialKey: key,
		Credentials:   creds,
		HTTPClient:    s.Client(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func apiError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": msg, "type": "invalid_request_error"},
	})
}

// chatReply wraps content as a chat completion.
func chatReply(w http.ResponseWriter, content string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
}
