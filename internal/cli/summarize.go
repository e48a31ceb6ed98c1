package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/output"
)

func NewSummarizeCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <meeting-dir>",
		Short: "Summarize a transcribed meeting",
		Long:  "Summarize transcript.md into a short summary, action items and follow-up suggestions.\nWrites summary.md and summary.json into the meeting folder.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			dir := meetingDir(deps, args[0])

			formatter.Summarizing()
			sum, err := deps.App.Summarize.Execute(cmd.Context(), dir)
			if err != nil {
				return err
			}
			formatter.Summary(sum)
			formatter.SummarizeDone(filepath.Join(dir, "summary.md"))
			return nil
		},
	}
}

// meetingDir accepts a path or a folder name inside the meetings directory.
func meetingDir(deps *Dependencies, arg string) string {
	if filepath.IsAbs(arg) || filepath.Dir(arg) != "." {
		return arg
	}
	candidate := filepath.Join(deps.Config.MeetingsDir, arg)
	if isDir(candidate) {
		return candidate
	}
	return arg
}
