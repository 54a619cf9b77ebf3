package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-gpt/pkg/app"
	"github.com/deploymenttheory/go-gpt/pkg/app/edit"
	"github.com/deploymenttheory/go-gpt/pkg/gpt"
)

var (
	// init flags
	initSize string
	initGUID string

	// add flags
	addType       string
	addName       string
	addSize       string
	addAttributes []string
)

var initCmd = &cobra.Command{
	Use:   "init [disk-path]",
	Short: "Write a new, empty partition table",
	Long: `Write a protective MBR and empty primary and backup tables.

Any existing partition table on the disk is discarded.

Examples:
  # Create a 1GiB image with an empty table
  go-gpt init disk.img --size 1GiB

  # Re-initialize an existing image with a fixed disk GUID
  go-gpt init disk.img --guid 8c1f4a2e-5b3d-4f6a-9e7c-1d2b3a4c5e6f`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit(func() (*edit.Response, error) {
			return edit.HandleInit(appCtx, &edit.InitRequest{
				Target:   app.DiskTarget{Path: args[0]},
				Size:     initSize,
				DiskGUID: initGUID,
			})
		})
	},
}

var addCmd = &cobra.Command{
	Use:   "add [disk-path]",
	Short: "Add a partition",
	Long: fmt.Sprintf(`Add a partition in the first free region that fits. Partitions start on a
1MiB boundary. Without --size the partition fills the free region.

Type aliases: %s

Examples:
  # Add a 512MiB EFI system partition
  go-gpt add disk.img --type esp --name "EFI System" --size 512MiB --attrs required

  # Fill the rest of the disk with a Linux partition
  go-gpt add disk.img --type linux --name root`, strings.Join(gpt.PartitionTypeAliases(), ", ")),

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit(func() (*edit.Response, error) {
			return edit.HandleAdd(appCtx, &edit.AddRequest{
				Target:     app.DiskTarget{Path: args[0]},
				Type:       addType,
				Name:       addName,
				Size:       addSize,
				Attributes: addAttributes,
			})
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [disk-path] [index]",
	Short: "Delete a partition by its index in list output",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("invalid partition index %q", args[1]), err)
		}
		return runEdit(func() (*edit.Response, error) {
			return edit.HandleDelete(appCtx, &edit.DeleteRequest{
				Target: app.DiskTarget{Path: args[0]},
				Index:  index,
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(initCmd, addCmd, deleteCmd)

	initCmd.Flags().StringVar(&initSize, "size", "", "create the image with this size (512MiB, 4GiB)")
	initCmd.Flags().StringVar(&initGUID, "guid", "", "disk GUID (random when empty)")

	addCmd.Flags().StringVarP(&addType, "type", "t", "linux", "partition type alias or GUID")
	addCmd.Flags().StringVarP(&addName, "name", "n", "", "partition name")
	addCmd.Flags().StringVarP(&addSize, "size", "s", "", "partition size (100MiB, 2GiB)")
	addCmd.Flags().StringSliceVar(&addAttributes, "attrs", nil, "attributes (required,no-block-io,legacy-bios-bootable)")
}

func runEdit(handle func() (*edit.Response, error)) error {
	response, err := handle()
	if err != nil {
		return err
	}
	if appCtx.Quiet {
		return nil
	}
	return edit.FormatOutput(appCtx.Out, response, appCtx.OutputFormat)
}
