package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// DefaultSummaryPrompt is used when no custom prompt is configured.
const DefaultSummaryPrompt = `You are a helpful assistant that summarizes meeting transcripts and provides intelligent follow-up suggestions based on the conversation context. Pay special attention to any dates, times, or scheduling preferences mentioned.

Context: This conversation is either between two people (user and attendee) or the user's notes about a verbal conversation with an attendee.

Respond with a JSON object with exactly these fields and nothing else:
{
  "summary": "A key summary in two sentences maximum.",
  "actionItems": ["Action items for the user, empty array if none"],
  "followUpSuggestions": ["Suggested follow-up meeting dates/times based on what was discussed"]
}

If specific times or dates were mentioned, include those in followUpSuggestions. If general timeframes were discussed (like "next week"), suggest specific options within that range. If no timing was discussed, suggest "Schedule a 15-minute follow-up call within the next week".`

// DefaultFolderTemplate is the default meeting folder name template.
// Available placeholders: {{.Year}}, {{.Month}}, {{.Day}}, {{.Hour}}, {{.Minute}}, {{.Second}}, {{.Name}}, {{.ID}}
const DefaultFolderTemplate = "{{.Year}}-{{.Month}}-{{.Day}}_{{.Hour}}-{{.Minute}}-{{.Second}}{{if .Name}}_{{.Name}}{{end}}"

// DefaultFormats is the container/codec preference list, highest priority first.
var DefaultFormats = []string{"opus-webm", "webm", "mp4", "mpeg", "wav", "opus-ogg", "ogg"}

type Config struct {
	MeetingsDir    string `toml:"meetings_dir" validate:"required"`
	SummaryPrompt  string `toml:"summary_prompt" validate:"required"` // system prompt for summary generation
	FolderTemplate string `toml:"folder_template" validate:"required"`

	Capture    CaptureConfig    `toml:"capture"`
	Providers  ProvidersConfig  `toml:"providers"`
	Recognizer RecognizerConfig `toml:"recognizer"`
	Logging    LoggingConfig    `toml:"logging"`
	Metrics    MetricsConfig    `toml:"metrics"`

	// ConfigDir holds config.toml and credentials.toml.
	ConfigDir string `toml:"-"`
	// StateDir holds logs.
	StateDir string `toml:"-"`
}

// CaptureConfig holds the microphone capture requests. The device may renegotiate
// any of them.
type CaptureConfig struct {
	FFmpegPath       string   `toml:"ffmpeg_path" validate:"required"`
	InputFormat      string   `toml:"input_format" validate:"required"`
	InputDevice      string   `toml:"input_device" validate:"required"`
	SampleRate       int      `toml:"sample_rate" validate:"min=8000,max=48000"`
	Channels         int      `toml:"channels" validate:"min=1,max=2"`
	EchoCancellation bool     `toml:"echo_cancellation"`
	NoiseSuppression bool     `toml:"noise_suppression"`
	ChunkInterval    Duration `toml:"chunk_interval" validate:"min=250000000,max=1000000000"`
	StopTimeout      Duration `toml:"stop_timeout" validate:"gt=0"`
	Formats          []string `toml:"formats" validate:"min=1,dive,oneof=opus-webm webm mp4 mpeg wav opus-ogg ogg"`
}

type ProvidersConfig struct {
	TranscriptionBaseURL string   `toml:"transcription_base_url" validate:"required,url"`
	TranscriptionModel   string   `toml:"transcription_model" validate:"required"`
	SummaryBaseURL       string   `toml:"summary_base_url" validate:"required,url"`
	SummaryModel         string   `toml:"summary_model" validate:"required"`
	Timeout              Duration `toml:"timeout" validate:"gt=0"`
}

// RecognizerConfig points at a local Vosk-protocol websocket server. Empty URL
// disables live transcription.
type RecognizerConfig struct {
	URL         string `toml:"url" validate:"omitempty,url"`
	MaxRestarts int    `toml:"max_restarts" validate:"min=0"`
}

type LoggingConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
	File  string `toml:"file"`
}

type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr" validate:"omitempty,hostname_port"`
}

// Duration decodes TOML strings such as "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file or env override is present.
func Default() *Config {
	configDir := configDirPath()
	stateDir := stateDirPath()
	inputFormat, inputDevice := defaultInput()
	return &Config{
		MeetingsDir:    defaultMeetingsDir(),
		SummaryPrompt:  DefaultSummaryPrompt,
		FolderTemplate: DefaultFolderTemplate,
		ConfigDir:      configDir,
		StateDir:       stateDir,
		Capture: CaptureConfig{
			FFmpegPath:       "ffmpeg",
			InputFormat:      inputFormat,
			InputDevice:      inputDevice,
			SampleRate:       16000,
			Channels:         1,
			EchoCancellation: true,
			NoiseSuppression: true,
			ChunkInterval:    Duration(500 * time.Millisecond),
			StopTimeout:      Duration(5 * time.Second),
			Formats:          append([]string(nil), DefaultFormats...),
		},
		Providers: ProvidersConfig{
			TranscriptionBaseURL: "https://api.openai.com/v1/",
			TranscriptionModel:   "whisper-1",
			SummaryBaseURL:       "https://api.openai.com/v1/",
			SummaryModel:         "gpt-4o-mini",
			Timeout:              Duration(2 * time.Minute),
		},
		Recognizer: RecognizerConfig{
			MaxRestarts: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(stateDir, "moment.log"),
		},
	}
}

func Load() (*Config, error) {
	cfg, err := LoadFile(configFilePath())
	if err != nil {
		return nil, err
	}

	// Ensure directories exist
	if err := os.MkdirAll(cfg.MeetingsDir, 0o755); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads defaults, the TOML file at path (skipped when empty or missing)
// and env overrides, then validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
			cfg.MeetingsDir = expandTilde(cfg.MeetingsDir)
			cfg.Logging.File = expandTilde(cfg.Logging.File)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// CredentialsPath is where the local credential store lives.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.ConfigDir, "credentials.toml")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MOMENT_MEETINGS_DIR"); v != "" {
		cfg.MeetingsDir = expandTilde(v)
	}
	if v := os.Getenv("MOMENT_FFMPEG_PATH"); v != "" {
		cfg.Capture.FFmpegPath = v
	}
	if v := os.Getenv("MOMENT_INPUT_DEVICE"); v != "" {
		cfg.Capture.InputDevice = v
	}
	if v := os.Getenv("MOMENT_TRANSCRIPTION_BASE_URL"); v != "" {
		cfg.Providers.TranscriptionBaseURL = v
	}
	if v := os.Getenv("MOMENT_SUMMARY_BASE_URL"); v != "" {
		cfg.Providers.SummaryBaseURL = v
	}
	if v := os.Getenv("MOMENT_RECOGNIZER_URL"); v != "" {
		cfg.Recognizer.URL = v
	}
	if v := os.Getenv("MOMENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("MOMENT_METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
}

// defaultInput picks the ffmpeg capture device for the current OS.
func defaultInput() (format, device string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":default"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

func configDirPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "moment")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "moment")
	}
	return filepath.Join(".", ".moment")
}

func stateDirPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "moment")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "moment")
	}
	return filepath.Join(".", ".moment")
}

func configFilePath() string {
	path := filepath.Join(configDirPath(), "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func defaultMeetingsDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "meetings")
	}
	return filepath.Join(".", "meetings")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
