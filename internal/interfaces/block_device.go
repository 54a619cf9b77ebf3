package interfaces

import (
	"io"
)

// BlockDevice is an open disk image or block device. Offsets are bytes; callers
// convert LBAs with types.LogicalBlockSize.Offset. *os.File and afero.File satisfy it.
type BlockDevice interface {
	io.Reader
	io.Writer
	io.Seeker

	// Sync flushes pending writes to stable storage
	Sync() error
}
