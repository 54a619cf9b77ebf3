package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-gpt/internal/config"
	"github.com/deploymenttheory/go-gpt/pkg/app"
	"github.com/deploymenttheory/go-gpt/pkg/gpt"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	noColor      bool
	outputFormat string
	logFormat    string

	// Global disk flags
	configFile string
	blockSize  uint64
	recoverArg bool
	backupDir  string

	appCtx *app.Context
	stdout io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:   "go-gpt",
	Short: "Read, verify and edit GUID Partition Tables",
	Long: `go-gpt is a cross-platform command-line tool for reading, verifying and
writing GUID Partition Tables on disk images and block devices.

Every write rebuilds both the primary and the backup table, so the two
copies always agree. Damaged tables can be inspected with --recover and
repaired by writing them back.

Commands:
  show        Show headers and partitions
  list        List partitions
  verify      Check both table copies for consistency
  init        Write a new, empty partition table
  add         Add a partition
  delete      Delete a partition
  backup      Archive the partition table metadata
  restore     Write an archived partition table back`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return err
		}
		appCtx = newAppContext(cfg)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	flags.StringVar(&configFile, "config", "", "config file (default: gpt-config.yaml in ., ./config, $HOME/.gpt, /etc/gpt)")
	flags.Uint64Var(&blockSize, "block-size", uint64(gpt.DefaultBlockSize), "logical block size in bytes")
	flags.BoolVar(&recoverArg, "recover", false, "open disks with one damaged table copy")
	flags.StringVar(&backupDir, "backup-dir", ".", "directory for partition table archives")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// newAppContext builds the application context from the merged configuration.
func newAppContext(cfg *config.Config) *app.Context {
	ctx := app.NewContext()
	ctx.OutputFormat = cfg.Output
	ctx.Verbose = verbose
	ctx.Quiet = quiet
	ctx.NoColor = noColor
	ctx.BlockSize = gpt.LogicalBlockSize(cfg.BlockSize)
	ctx.Recover = cfg.Recover
	ctx.BackupDir = cfg.BackupDir
	ctx.Out = stdout

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	switch {
	case verbose:
		logger.SetLevel(logrus.DebugLevel)
	case quiet:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.WarnLevel)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableColors: noColor, FullTimestamp: true})
	}
	ctx.Logger = logger

	if noColor {
		color.NoColor = true
	}
	if verbose && !quiet {
		ctx.SetProgress(func(message string, percent int) {
			logger.WithField("percent", percent).Debug(message)
		})
	}
	return ctx
}
