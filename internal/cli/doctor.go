package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/audio"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/credential"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/output"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(cmd.OutOrStdout())
			cfg := deps.Config
			ok := true

			if err := deps.App.Recorder.CheckFFmpeg(); err != nil {
				f.SetupCheck("ffmpeg", false, err.Error())
				ok = false
			} else {
				f.SetupCheck("ffmpeg", true, "installed")

				format, supported := audio.Negotiate(cmd.Context(), deps.App.Prober, cfg.Capture.Formats)
				if supported {
					f.SetupCheck("Recording format", true, format.Name)
				} else {
					f.SetupCheck("Recording format", false, "no preferred format supported, falling back to WAV")
				}

				ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
				devices, err := deps.App.Recorder.ListDevices(ctx, cfg.Capture.InputFormat)
				cancel()
				switch {
				case err != nil:
					f.SetupCheck("Input devices", false, err.Error())
				case len(devices) > 0:
					for _, d := range devices {
						f.SetupCheck("Input device", true, fmt.Sprintf("[%s] %s", d.Index, d.Name))
					}
				}
			}

			f.SetupCheck("Microphone", true, fmt.Sprintf("%s %s (permission is requested on first recording)",
				cfg.Capture.InputFormat, cfg.Capture.InputDevice))

			status, err := deps.App.Credentials.Status()
			if err != nil {
				return err
			}
			for _, key := range credential.SortedKeys() {
				if status[key] {
					f.SetupCheck(key, true, "configured")
				} else {
					f.SetupCheck(key, false, "not set. Run 'moment credentials set "+key+"'")
					ok = false
				}
			}

			if cfg.Recognizer.URL != "" {
				f.SetupCheck("Live transcript", true, cfg.Recognizer.URL)
			} else {
				f.SetupCheck("Live transcript", true, "disabled (set recognizer.url to enable)")
			}

			f.SetupCheck("Meetings directory", true, cfg.MeetingsDir)
			logTo := cfg.Logging.File
			if logTo == "" {
				logTo = "stderr"
			}
			f.SetupCheck("Log file", true, logTo)

			if ok {
				f.Success("\nAll prerequisites met. Ready to record!")
			} else {
				f.Warning("\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}
