// Package credential keeps provider secrets in a client-local key/value file.
// Readers look a key up at the point of use, so a key rotated between sessions
// is picked up without restarting.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
)

// Well-known keys, one per provider.
const (
	TranscriptionKey = "transcription_api_key"
	SummaryKey       = "summary_api_key"
)

// Keys lists the well-known keys with the env variable that overrides each.
var Keys = map[string]string{
	TranscriptionKey: "MOMENT_TRANSCRIPTION_API_KEY",
	SummaryKey:       "MOMENT_SUMMARY_API_KEY",
}

// Reader is the read-only view handed to provider clients.
type Reader interface {
	Get(key string) (string, bool, error)
}

// FileStore persists credentials as a flat TOML table.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value for key. A missing file or key is not an error.
// The env override wins over the file.
func (s *FileStore) Get(key string) (string, bool, error) {
	if env, ok := Keys[key]; ok {
		if v := os.Getenv(env); v != "" {
			return v, true, nil
		}
	}

	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// Set stores value under key, creating the file with owner-only permissions.
func (s *FileStore) Set(key, value string) error {
	if _, ok := Keys[key]; !ok {
		return fmt.Errorf("unknown credential %q", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	if value == "" {
		delete(values, key)
	} else {
		values[key] = value
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(values); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}

// Status reports which well-known keys are set, without their values.
func (s *FileStore) Status() (map[string]bool, error) {
	out := make(map[string]bool, len(Keys))
	for _, key := range SortedKeys() {
		_, ok, err := s.Get(key)
		if err != nil {
			return nil, err
		}
		out[key] = ok
	}
	return out, nil
}

func SortedKeys() []string {
	keys := make([]string, 0, len(Keys))
	for k := range Keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *FileStore) read() (map[string]string, error) {
	values := map[string]string{}
	if _, err := toml.DecodeFile(s.path, &values); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	return values, nil
}
