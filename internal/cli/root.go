package cli

import (
	"github.com/spf13/cobra"

	"github.com/TechTokWithKriti/mic-moment-ui-page/config"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/app"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/version"
)

type Dependencies struct {
	App    *app.App
	Config *config.Config
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "moment",
		Short: "Record a conversation, transcribe it, and follow up",
		Long: "A CLI tool that records a conversation from the microphone, transcribes it, " +
			"summarizes it into action items and follow-up suggestions, and drafts a follow-up email with a calendar invite.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewStartCmd(deps))
	rootCmd.AddCommand(NewSummarizeCmd(deps))
	rootCmd.AddCommand(NewFollowUpCmd(deps))
	rootCmd.AddCommand(NewCredentialsCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewFormatsCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}

// ReportedError has already been shown to the user.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string { return e.Err.Error() }
func (e *ReportedError) Unwrap() error { return e.Err }
