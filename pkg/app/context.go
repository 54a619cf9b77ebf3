package app

import (
	"crypto/rand"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-gpt/pkg/gpt"
)

// Context holds application-wide configuration and state
type Context struct {
	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool
	NoColor      bool

	// Disk access
	BlockSize gpt.LogicalBlockSize
	Recover   bool
	BackupDir string

	Out    io.Writer
	Logger *logrus.Logger
	Fs     afero.Fs
	Rand   io.Reader

	// Progress reporting
	ProgressCallback func(message string, percent int)
}

// NewContext creates a new application context writing to stdout
func NewContext() *Context {
	return &Context{
		OutputFormat: "table",
		BlockSize:    512,
		BackupDir:    ".",
		Out:          os.Stdout,
		Logger:       logrus.StandardLogger(),
		Fs:           afero.NewOsFs(),
		Rand:         rand.Reader,
	}
}

// DiskConfig returns the gpt.Config used to open disks for a command
func (c *Context) DiskConfig(writable, initialized bool) gpt.Config {
	return gpt.Config{
		BlockSize:   c.BlockSize,
		Writable:    writable,
		Initialized: initialized,
		Recover:     c.Recover,
		Rand:        c.Rand,
		Logger:      c.Logger,
		Fs:          c.Fs,
	}
}

// SetProgress sets the progress callback function
func (c *Context) SetProgress(callback func(string, int)) {
	c.ProgressCallback = callback
}

// Progress reports progress if callback is set
func (c *Context) Progress(message string, percent int) {
	if c.ProgressCallback != nil {
		c.ProgressCallback(message, percent)
	}
}

// Log records a debug message; it shows with --verbose
func (c *Context) Log(message string) {
	c.Logger.Debug(message)
}

// Error records an error message unless quiet
func (c *Context) Error(message string) {
	if !c.Quiet {
		c.Logger.Error(message)
	}
}
