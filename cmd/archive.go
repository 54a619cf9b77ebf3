package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-gpt/pkg/app"
	"github.com/deploymenttheory/go-gpt/pkg/app/archive"
)

var backupOutput string

var backupCmd = &cobra.Command{
	Use:   "backup [disk-path]",
	Short: "Archive the partition table metadata of a disk",
	Long: `Save the protective MBR, both headers and both entry arrays into a
compressed archive protected by a SHA-256 digest. Partition contents
are not included.

Examples:
  # Write disk.gptbak into the configured backup directory
  go-gpt backup disk.img

  # Choose the archive path
  go-gpt backup /dev/sdb -f sdb-before-resize.gptbak`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		response, err := archive.HandleBackup(appCtx, &archive.BackupRequest{
			Target: app.DiskTarget{Path: args[0]},
			Output: backupOutput,
		})
		if err != nil {
			return err
		}
		return archive.FormatOutput(appCtx.Out, response, appCtx.OutputFormat)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [disk-path] [archive-path]",
	Short: "Write an archived partition table back to a disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		response, err := archive.HandleRestore(appCtx, &archive.RestoreRequest{
			Target: app.DiskTarget{Path: args[0]},
			Input:  args[1],
		})
		if err != nil {
			return err
		}
		return archive.FormatOutput(appCtx.Out, response, appCtx.OutputFormat)
	},
}

func init() {
	rootCmd.AddCommand(backupCmd, restoreCmd)

	backupCmd.Flags().StringVarP(&backupOutput, "file", "f", "", "archive path (default: <backup-dir>/<disk>.gptbak)")
}
