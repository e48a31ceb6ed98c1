package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting/usecases"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/output"
)

func NewStartCmd(deps *Dependencies) *cobra.Command {
	var name string
	var noLive bool
	var summarize bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Record a conversation",
		Long: "Record audio from the microphone in the foreground. Press Ctrl+C to stop;\n" +
			"the recording is then transcribed and saved to the meeting folder.",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			rec := deps.App.NewRecord(!noLive)

			dir, err := rec.Start(cmd.Context(), &usecases.StartOptions{Name: name})
			if err != nil {
				return err
			}
			snap := rec.Session.Snapshot()
			formatter.RecordingStarted(dir, snap.Format, snap.Settings)

			waitForInterrupt(cmd.Context(), rec, formatter)
			formatter.RecordingStopped(time.Since(snap.StartedAt))

			formatter.Transcribing()
			res, err := rec.Stop(cmd.Context())
			for err != nil {
				if errors.Is(err, meeting.EmptyAudio) || cmd.Context().Err() != nil {
					return err
				}
				formatter.Failure(err)
				if !confirm(cmd.InOrStdin(), formatter, "Retry transcription? [y/N]") {
					formatter.Info("Transcription skipped. Audio is not kept after exit.")
					return &ReportedError{Err: err}
				}
				formatter.Transcribing()
				res, err = rec.Retry(cmd.Context())
			}
			formatter.TranscribeDone(filepath.Join(res.MeetingDir, "transcript.md"))

			if summarize {
				formatter.Summarizing()
				sum, err := deps.App.Summarize.Execute(cmd.Context(), res.MeetingDir)
				if err != nil {
					return err
				}
				formatter.Summary(sum)
				formatter.SummarizeDone(filepath.Join(res.MeetingDir, "summary.md"))
			}

			formatter.MeetingComplete(res.MeetingDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Meeting name (used in folder name)")
	cmd.Flags().BoolVar(&noLive, "no-live", false, "Disable the live transcript preview")
	cmd.Flags().BoolVarP(&summarize, "summarize", "s", false, "Summarize after transcribing")

	return cmd
}

// waitForInterrupt shows the live transcript and recognizer warnings until
// Ctrl+C.
func waitForInterrupt(ctx context.Context, rec *usecases.Record, formatter *output.Formatter) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var preview string
	warned := 0
	for {
		select {
		case <-sigCtx.Done():
			if preview != "" {
				formatter.EndPreview()
			}
			return
		case <-ticker.C:
			snap := rec.Session.Snapshot()
			for _, w := range snap.Warnings[warned:] {
				if preview != "" {
					formatter.EndPreview()
				}
				formatter.Failure(w)
			}
			warned = len(snap.Warnings)
			if snap.LivePreview != preview {
				preview = snap.LivePreview
				formatter.LivePreview(preview)
			}
		}
	}
}

func confirm(in io.Reader, formatter *output.Formatter, question string) bool {
	formatter.Prompt(question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
