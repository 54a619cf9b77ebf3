package services

import (
	"slices"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-gpt/internal/types"
)

// Copy names used in logs and damage reports.
const (
	CopyPrimary = "primary"
	CopyBackup  = "backup"
)

// DiskState is the in-memory partition table of one disk session.
// Headers and partitions are replaced together through Rebuild; nothing patches a
// single header field or entry in place.
type DiskState struct {
	GUID       uuid.UUID
	Primary    *types.Header
	Backup     *types.Header
	Partitions []types.Partition
	Writable   bool
}

// Initialized reports whether the state carries a partition table to persist.
func (s *DiskState) Initialized() bool {
	return s.Primary != nil || s.Backup != nil
}

// ClonePartitions returns a copy of the partition list.
func (s *DiskState) ClonePartitions() []types.Partition {
	return slices.Clone(s.Partitions)
}

// CopyDamage records why one copy of the partition table could not be loaded.
type CopyDamage struct {
	Copy string
	Err  error
}

func (d CopyDamage) Error() string {
	return d.Copy + ": " + d.Err.Error()
}

func (d CopyDamage) Unwrap() error {
	return d.Err
}
