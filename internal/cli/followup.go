package cli

import (
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/domain/meeting/usecases"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/output"
)

func NewFollowUpCmd(deps *Dependencies) *cobra.Command {
	var p meeting.Participant
	var from string
	var open bool

	cmd := &cobra.Command{
		Use:   "followup [meeting-dir]",
		Short: "Draft a follow-up email and calendar invite",
		Long: "Draft a follow-up email to someone you met. With a summarized meeting folder the email\n" +
			"refers to the conversation and the invite time comes from its follow-up suggestions;\n" +
			"without one a short \"great meeting you\" note is drafted.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())

			var sum *meeting.Summary
			if len(args) == 1 {
				s, err := usecases.ReadSummary(meetingDir(deps, args[0]))
				if err != nil {
					return err
				}
				if s == nil {
					formatter.Warning("No summary.json in that folder; run 'moment summarize' first for a tailored email.")
				}
				sum = s
			}

			followUp := *deps.App.FollowUp
			followUp.Sender = from
			res, err := followUp.Execute(cmd.Context(), p, sum, time.Now())
			if err != nil {
				return err
			}

			to := p.Name
			if p.Email != "" {
				to = fmt.Sprintf("%s <%s>", p.Name, p.Email)
			}
			formatter.EmailDraft(to, res.Email)
			formatter.Invite(res.Start, res.InviteURL)

			if open {
				if err := openURL(res.InviteURL); err != nil {
					formatter.Warning("Could not open the browser: " + err.Error())
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&p.Name, "to", "", "Name of the person to follow up with")
	cmd.Flags().StringVar(&p.Email, "email", "", "Their email address (added to the invite)")
	cmd.Flags().StringVar(&p.Info, "info", "", "What you know about them, used without a summary")
	cmd.Flags().StringVar(&from, "from", "", "Your name, used to sign the email")
	cmd.Flags().BoolVar(&open, "open", false, "Open the calendar invite in the browser")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func openURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
