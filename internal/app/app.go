package app

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/TechTokWithKriti/mic-moment-ui-page/config"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/audio"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/credential"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting/session"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting/usecases"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/metrics"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/recognition"
)

// recognizerRestartDelay grows linearly with consecutive failures.
const recognizerRestartDelay = 500 * time.Millisecond

type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Credentials *credential.FileStore
	Recorder    *audio.Recorder
	Prober      *audio.FFmpegProber
	Transcribe  *usecases.Transcribe
	Summarize   *usecases.Summarize
	FollowUp    *usecases.FollowUp
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	m := metrics.New()
	creds := credential.NewFileStore(cfg.CredentialsPath())
	httpClient := &http.Client{Timeout: cfg.Providers.Timeout.Std()}

	transcribe := &usecases.Transcribe{
		Provider: usecases.Provider{
			Name:          "transcription",
			BaseURL:       cfg.Providers.TranscriptionBaseURL,
			Model:         cfg.Providers.TranscriptionModel,
			CredentialKey: credential.TranscriptionKey,
			Credentials:   creds,
			HTTPClient:    httpClient,
		},
		Metrics: m,
		Logger:  log.Named("transcribe"),
	}

	summaryProvider := usecases.Provider{
		Name:          "summary",
		BaseURL:       cfg.Providers.SummaryBaseURL,
		Model:         cfg.Providers.SummaryModel,
		CredentialKey: credential.SummaryKey,
		Credentials:   creds,
		HTTPClient:    httpClient,
	}

	summarize := &usecases.Summarize{
		Provider:     summaryProvider,
		SystemPrompt: cfg.SummaryPrompt,
		Metrics:      m,
		Logger:       log.Named("summarize"),
	}

	followUp := &usecases.FollowUp{
		Provider: summaryProvider,
		Metrics:  m,
		Logger:   log.Named("followup"),
	}

	return &App{
		Config:      cfg,
		Logger:      log,
		Metrics:     m,
		Credentials: creds,
		Recorder:    audio.NewRecorder(cfg.Capture.FFmpegPath, log.Named("capture")),
		Prober:      audio.NewFFmpegProber(cfg.Capture.FFmpegPath),
		Transcribe:  transcribe,
		Summarize:   summarize,
		FollowUp:    followUp,
	}, nil
}

// NewRecord prepares a recording. live enables the local recognizer when one
// is configured.
func (a *App) NewRecord(live bool) *usecases.Record {
	c := a.Config.Capture
	opts := session.Options{
		Source: a.Recorder,
		Prober: a.Prober,
		Constraints: audio.Constraints{
			InputFormat:      c.InputFormat,
			InputDevice:      c.InputDevice,
			SampleRate:       c.SampleRate,
			Channels:         c.Channels,
			EchoCancellation: c.EchoCancellation,
			NoiseSuppression: c.NoiseSuppression,
			ChunkInterval:    c.ChunkInterval.Std(),
		},
		Formats:      c.Formats,
		Transcriber:  a.Transcribe,
		MaxRestarts:  a.Config.Recognizer.MaxRestarts,
		RestartDelay: recognizerRestartDelay,
		StopTimeout:  c.StopTimeout.Std(),
		Metrics:      a.Metrics,
		Logger:       a.Logger.Named("session"),
	}
	if live && a.Config.Recognizer.URL != "" {
		opts.Recognizer = recognition.NewVosk(a.Config.Recognizer.URL, 16000, a.Logger.Named("recognizer"))
	}

	return &usecases.Record{
		Session:        session.New(opts),
		MeetingsDir:    a.Config.MeetingsDir,
		FolderTemplate: a.Config.FolderTemplate,
	}
}
