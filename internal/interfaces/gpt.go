package interfaces

import (
	"github.com/google/uuid"

	"github.com/deploymenttheory/go-gpt/internal/types"
)

// ProtectiveMBRReader provides methods for reading the legacy boot sector at LBA 0
type ProtectiveMBRReader interface {
	// Record returns the decoded boot sector
	Record() *types.ProtectiveMBR

	// ProtectiveRecord returns the 0xEE placeholder record, if present
	ProtectiveRecord() (*types.MBRPartitionRecord, bool)

	// CoveredSectors returns the number of sectors claimed by the placeholder record
	CoveredSectors() uint64

	// IsProtective checks whether the sector marks the disk as GPT formatted
	IsProtective() bool
}

// PartitionTableReader provides read access to a decoded GUID partition table
type PartitionTableReader interface {
	// GUID returns the disk identifier
	GUID() uuid.UUID

	// PrimaryHeader returns the primary header, nil if absent or damaged
	PrimaryHeader() *types.Header

	// BackupHeader returns the backup header, nil if absent or damaged
	BackupHeader() *types.Header

	// Partitions returns the used partition entries in on-disk order
	Partitions() []types.Partition

	// BlockSize returns the logical block size used for every offset
	BlockSize() types.LogicalBlockSize
}
