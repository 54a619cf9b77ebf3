// Package gpt reads and writes GUID Partition Tables on disk images and block devices.
//
// A Disk is opened with a Config, inspected through its accessors, changed with
// UpdateGUID and UpdatePartitions, and written back with Write. Every change
// rebuilds both the primary and the backup header, so the two copies always
// point at each other and carry the same partition entry array.
package gpt

import (
	"crypto/rand"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-gpt/internal/services"
	"github.com/deploymenttheory/go-gpt/internal/types"
)

type (
	// Header is a decoded primary or backup GPT header.
	Header = types.Header
	// Partition is one used entry of the partition entry array.
	Partition = types.Partition
	// PartitionAttributes is the attribute bit field of a partition entry.
	PartitionAttributes = types.PartitionAttributes
	// LogicalBlockSize is the sector size used for every LBA computation.
	LogicalBlockSize = types.LogicalBlockSize
	// CopyDamage describes a table copy that was skipped because it could not be loaded.
	CopyDamage = services.CopyDamage
)

// Error kinds. Use errors.Is to test for them.
var (
	ErrIO                    = types.ErrIO
	ErrInvalidSignature      = types.ErrInvalidSignature
	ErrChecksumMismatch      = types.ErrChecksumMismatch
	ErrPartitionTableCorrupt = types.ErrPartitionTableCorrupt
	ErrNotWritable           = types.ErrNotWritable
	ErrNotInitialized        = types.ErrNotInitialized
	ErrSessionClosed         = types.ErrSessionClosed
)

// DefaultBlockSize is the block size used when Config.BlockSize is zero.
const DefaultBlockSize = types.DefaultBlockSize

const (
	AttrRequiredPartition  = types.AttrRequiredPartition
	AttrNoBlockIOProtocol  = types.AttrNoBlockIOProtocol
	AttrLegacyBIOSBootable = types.AttrLegacyBIOSBootable
)

// Config selects how a disk is opened.
type Config struct {
	// BlockSize is the logical block size. Zero means 512.
	BlockSize LogicalBlockSize
	// Writable opens the backing file read-write. Write fails without it.
	Writable bool
	// Initialized reads the existing table on open. When false the disk is
	// treated as blank: a new disk GUID is drawn and nothing is read.
	Initialized bool
	// Recover tolerates one damaged table copy on open instead of failing.
	Recover bool
	// Rand supplies the randomness for new disk and partition GUIDs. Nil means crypto/rand.
	Rand io.Reader
	// Logger receives diagnostics. Nil means the logrus standard logger.
	Logger logrus.FieldLogger
	// Fs resolves paths. Nil means the operating system filesystem.
	Fs afero.Fs
}

// DefaultConfig returns a read-only configuration for an initialized 512-byte-sector disk.
func DefaultConfig() Config {
	return Config{
		BlockSize:   types.DefaultBlockSize,
		Initialized: true,
		Rand:        rand.Reader,
		Logger:      logrus.StandardLogger(),
		Fs:          afero.NewOsFs(),
	}
}

func (c Config) withDefaults() Config {
	if c.BlockSize == 0 {
		c.BlockSize = types.DefaultBlockSize
	}
	if c.Rand == nil {
		c.Rand = rand.Reader
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	return c
}

// PartitionTypeName returns the descriptive name of a partition type GUID.
var PartitionTypeName = types.PartitionTypeName

// ParsePartitionType resolves a short alias such as "linux" or "esp", or a GUID string.
var ParsePartitionType = types.ParsePartitionType

// PartitionTypeAliases lists the short type aliases ParsePartitionType accepts.
var PartitionTypeAliases = types.PartitionTypeAliases
