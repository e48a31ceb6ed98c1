package cli

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/output"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())

			entries, err := os.ReadDir(deps.Config.MeetingsDir)
			if err != nil {
				if os.IsNotExist(err) {
					formatter.Info("No meetings found")
					return nil
				}
				return err
			}

			var dirs []os.DirEntry
			for _, e := range entries {
				if e.IsDir() {
					dirs = append(dirs, e)
				}
			}

			if len(dirs) == 0 {
				formatter.Info("No meetings found")
				return nil
			}

			// Folder names start with the date, newest first.
			sort.Slice(dirs, func(i, j int) bool {
				return dirs[i].Name() > dirs[j].Name()
			})

			formatter.MeetingListHeader()
			for _, d := range dirs {
				meetingPath := filepath.Join(deps.Config.MeetingsDir, d.Name())
				formatter.MeetingListItem(d.Name(),
					exists(filepath.Join(meetingPath, "transcript.md")),
					exists(filepath.Join(meetingPath, "summary.md")))
			}

			return nil
		},
	}

	return cmd
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
