package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/credential"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/output"
)

func NewCredentialsCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage provider API keys",
	}
	cmd.AddCommand(newCredentialsSetCmd(deps), newCredentialsShowCmd(deps), newCredentialsPathCmd(deps))
	return cmd
}

func newCredentialsSetCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store an API key",
		Long: "Store an API key in the local credential file. Known keys: " +
			strings.Join(credential.SortedKeys(), ", ") + ".\n" +
			"Without a value the key is read from stdin; an empty value removes it.",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: credential.SortedKeys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			key := args[0]

			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				formatter.Prompt(fmt.Sprintf("Value for %s:", key))
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading value: %w", err)
				}
				value = strings.TrimSpace(line)
			}

			if err := deps.App.Credentials.Set(key, value); err != nil {
				return err
			}
			if value == "" {
				formatter.Success(key + " removed")
			} else {
				formatter.Success(key + " saved")
			}
			return nil
		},
	}
}

func newCredentialsShowCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show which API keys are set",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			status, err := deps.App.Credentials.Status()
			if err != nil {
				return err
			}
			for _, key := range credential.SortedKeys() {
				if status[key] {
					formatter.SetupCheck(key, true, "set")
				} else {
					formatter.SetupCheck(key, false, "not set. Run 'moment credentials set "+key+"' or set "+credential.Keys[key])
				}
			}
			return nil
		},
	}
}

func newCredentialsPathCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the credential file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), deps.App.Credentials.Path())
			return nil
		},
	}
}
