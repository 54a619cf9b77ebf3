package device

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-gpt/internal/types"
)

// Image is a disk image file or block device opened through an afero.Fs
type Image struct {
	afero.File
	path     string
	writable bool
}

// Open opens an existing image or device. Block devices are opened like files;
// their size is taken from the end offset, not from Stat.
func Open(fs afero.Fs, path string, writable bool) (*Image, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: image path cannot be empty", types.ErrIO)
	}

	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	file, err := fs.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", types.ErrIO, path, err)
	}

	return &Image{File: file, path: path, writable: writable}, nil
}

// Create creates or truncates a regular image file of size bytes, opened read-write.
func Create(fs afero.Fs, path string, size int64) (*Image, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: image size must be positive, got %d", types.ErrIO, size)
	}
	file, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", types.ErrIO, path, err)
	}
	if err := file.Truncate(size); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: resize %s to %d bytes: %w", types.ErrIO, path, size, err)
	}
	return &Image{File: file, path: path, writable: true}, nil
}

// Path returns the path the image was opened from.
func (i *Image) Path() string {
	return i.path
}

// Writable reports whether the image was opened for writing.
func (i *Image) Writable() bool {
	return i.writable
}

// Size returns the size in bytes, preserving the current offset.
func (i *Image) Size() (int64, error) {
	cur, err := i.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", types.ErrIO, i.path, err)
	}
	end, err := i.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", types.ErrIO, i.path, err)
	}
	if _, err := i.Seek(cur, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", types.ErrIO, i.path, err)
	}
	return end, nil
}

// Sectors returns the number of whole logical blocks in the image.
func (i *Image) Sectors(lbs types.LogicalBlockSize) (uint64, error) {
	size, err := i.Size()
	if err != nil {
		return 0, err
	}
	return uint64(size) / uint64(lbs), nil
}
