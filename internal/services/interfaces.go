package services

import (
	"github.com/google/uuid"

	"github.com/deploymenttheory/go-gpt/internal/types"
)

// PartitionTableService keeps the primary and backup copies of a GPT consistent
type PartitionTableService interface {
	// Load reads the protective MBR and both table copies. With recoverDamaged set,
	// one damaged copy is tolerated and reported in the returned damage list.
	Load(recoverDamaged bool) (*DiskState, []CopyDamage, error)

	// Rebuild derives a mutually consistent header pair for the partitions. It does not touch storage.
	Rebuild(diskGUID uuid.UUID, parts []types.Partition) (*types.Header, *types.Header, error)

	// Persist rebuilds both headers from state and writes the table to the device
	Persist(state *DiskState) error

	// Verify reports every problem found on both copies, nil when clean
	Verify() error
}
