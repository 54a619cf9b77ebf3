package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-gpt/pkg/app"
	"github.com/deploymenttheory/go-gpt/pkg/app/inspect"
)

var errVerifyFailed = errors.New("partition table verification failed")

var showCmd = &cobra.Command{
	Use:   "show [disk-path]",
	Short: "Show the headers and partitions of a disk",
	Long: `Show the protective MBR summary, both GPT headers and the partition list.

Examples:
  # Show the table of an image
  go-gpt show disk.img

  # Inspect a disk whose backup table is damaged
  go-gpt show /dev/sdb --recover

  # Machine readable output
  go-gpt show disk.img -o json`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runInspect(args[0], inspect.ViewShow)
		return err
	},
}

var listCmd = &cobra.Command{
	Use:   "list [disk-path]",
	Short: "List the partitions of a disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runInspect(args[0], inspect.ViewList)
		return err
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [disk-path]",
	Short: "Check both partition table copies for consistency",
	Long: `Re-read the protective MBR and both table copies and report every problem:
bad signatures or checksums, headers that do not point at each other,
entry arrays that differ, and overlapping or out-of-range partitions.

Exits non-zero when any problem is found.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := runInspect(args[0], inspect.ViewVerify)
		if err != nil {
			return err
		}
		if !resp.Verified {
			return errVerifyFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd, listCmd, verifyCmd)
}

func runInspect(diskPath string, view inspect.View) (*inspect.Response, error) {
	request := &inspect.Request{
		Target: app.DiskTarget{Path: diskPath},
		View:   view,
	}

	response, err := inspect.Handle(appCtx, request)
	if err != nil {
		return nil, err
	}

	if appCtx.Verbose {
		appCtx.Log(inspect.FormatSummary(response))
	}
	return response, inspect.FormatOutput(appCtx.Out, response, appCtx.OutputFormat)
}
