package cli

import (
	"github.com/spf13/cobra"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/audio"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/output"
)

func NewFormatsCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "Show which recording formats the local ffmpeg supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			ctx := cmd.Context()
			prober := deps.App.Prober

			chosen, ok := audio.Negotiate(ctx, prober, deps.Config.Capture.Formats)
			if err := prober.Err(); err != nil {
				formatter.Warning("Could not query ffmpeg: " + err.Error())
			}
			for _, name := range deps.Config.Capture.Formats {
				f, _ := audio.LookupFormat(name)
				formatter.FormatRow(name, prober.Supports(ctx, f), ok && chosen.Name == name)
			}
			if !ok {
				formatter.Warning("No preferred format is supported; recordings use plain WAV.")
			}
			return nil
		},
	}
}
