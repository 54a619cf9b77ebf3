// Package config loads CLI settings from gpt-config.yaml, GPT_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-gpt/internal/types"
)

// Config holds settings shared by every command
type Config struct {
	BlockSize uint64 `mapstructure:"block_size"`
	Recover   bool   `mapstructure:"recover"`
	BackupDir string `mapstructure:"backup_dir"`
	Output    string `mapstructure:"output"`
	LogFormat string `mapstructure:"log_format"`
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := types.LogicalBlockSize(c.BlockSize).Validate(); err != nil {
		return err
	}
	switch c.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q", c.Output)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	return nil
}

// Load reads the configuration. An explicit configFile must exist; otherwise
// gpt-config.yaml is looked up in the usual places and is optional. Flags that
// were set on the command line override file and environment values.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("block_size", uint64(types.DefaultBlockSize))
	v.SetDefault("recover", false)
	v.SetDefault("backup_dir", ".")
	v.SetDefault("output", "table")
	v.SetDefault("log_format", "text")

	v.SetEnvPrefix("GPT")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("gpt-config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.gpt")
		v.AddConfigPath("/etc/gpt")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for key, name := range map[string]string{
			"block_size": "block-size",
			"recover":    "recover",
			"backup_dir": "backup-dir",
			"output":     "output",
			"log_format": "log-format",
		} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
