// Package types implements the on-disk data structures of the GUID Partition Table.
// This package is based on the UEFI Specification 2.10, Chapter 5 (GUID Partition Table Disk Layout).
package types

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// LogicalBlockSize is the number of bytes in one logical block (sector).
// Every LBA to byte offset computation goes through it.
type LogicalBlockSize uint64

const (
	// LB512 is the logical block size of classic and 512e drives.
	LB512 LogicalBlockSize = 512
	// LB4096 is the logical block size of 4Kn drives.
	LB4096 LogicalBlockSize = 4096

	// DefaultBlockSize is used when no block size is configured.
	DefaultBlockSize = LB512

	// MinBlockSize is the smallest block size that can hold a protective MBR.
	MinBlockSize LogicalBlockSize = 512
	// MaxBlockSize is the largest supported block size.
	MaxBlockSize LogicalBlockSize = 65536
)

// Validate checks that the block size is a power of two between MinBlockSize and MaxBlockSize.
func (lbs LogicalBlockSize) Validate() error {
	if lbs < MinBlockSize || lbs > MaxBlockSize || lbs&(lbs-1) != 0 {
		return fmt.Errorf("unsupported logical block size %d", uint64(lbs))
	}
	return nil
}

// Offset returns the byte offset of the given LBA.
func (lbs LogicalBlockSize) Offset(lba uint64) int64 {
	return int64(lba * uint64(lbs))
}

// Sectors returns the number of blocks needed to hold n bytes.
func (lbs LogicalBlockSize) Sectors(n uint64) uint64 {
	return (n + uint64(lbs) - 1) / uint64(lbs)
}

// GUIDFromBytes decodes a GUID stored in the EFI mixed-endian layout.
// The first three fields are little-endian, the last eight bytes are stored as-is.
func GUIDFromBytes(b []byte) uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(u[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(u[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(u[8:16], b[8:16])
	return u
}

// PutGUID encodes u into b using the EFI mixed-endian layout.
func PutGUID(b []byte, u uuid.UUID) {
	binary.LittleEndian.PutUint32(b[0:4], binary.BigEndian.Uint32(u[0:4]))
	binary.LittleEndian.PutUint16(b[4:6], binary.BigEndian.Uint16(u[4:6]))
	binary.LittleEndian.PutUint16(b[6:8], binary.BigEndian.Uint16(u[6:8]))
	copy(b[8:16], u[8:16])
}
