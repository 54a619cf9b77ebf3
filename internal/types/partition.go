package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Partition entry layout constants.
// Reference: UEFI Specification 2.10, Table 5-6
const (
	EntryTypeGUIDOffset   = 0
	EntryUniqueGUIDOffset = 16
	EntryFirstLBAOffset   = 32
	EntryLastLBAOffset    = 40
	EntryAttributesOffset = 48
	EntryNameOffset       = 56

	// EntryNameBytes is the size of the UTF-16LE name field.
	EntryNameBytes = 72
	// EntryNameMaxUnits is the number of UTF-16 code units the name field holds.
	EntryNameMaxUnits = EntryNameBytes / 2
)

// PartitionAttributes is the 64-bit attribute field of a partition entry.
type PartitionAttributes uint64

// Partition attribute bits.
// Reference: UEFI Specification 2.10, Table 5-7
const (
	// AttrRequiredPartition marks a partition the platform needs to function.
	AttrRequiredPartition PartitionAttributes = 1 << 0
	// AttrNoBlockIOProtocol hides the partition from the EFI block IO protocol.
	AttrNoBlockIOProtocol PartitionAttributes = 1 << 1
	// AttrLegacyBIOSBootable marks the partition bootable by legacy BIOS firmware.
	AttrLegacyBIOSBootable PartitionAttributes = 1 << 2

	// AttrTypeSpecificMask covers bits 48-63, reserved for the partition type.
	AttrTypeSpecificMask PartitionAttributes = 0xFFFF << 48
)

// Has reports whether all bits of flag are set.
func (a PartitionAttributes) Has(flag PartitionAttributes) bool {
	return a&flag == flag
}

// String lists the set attribute names.
func (a PartitionAttributes) String() string {
	var names []string
	if a.Has(AttrRequiredPartition) {
		names = append(names, "required")
	}
	if a.Has(AttrNoBlockIOProtocol) {
		names = append(names, "no-block-io")
	}
	if a.Has(AttrLegacyBIOSBootable) {
		names = append(names, "legacy-bios-bootable")
	}
	if ts := uint64(a&AttrTypeSpecificMask) >> 48; ts != 0 {
		names = append(names, fmt.Sprintf("type-specific=0x%04x", ts))
	}
	return strings.Join(names, ",")
}

// Partition is one used slot of the partition entry array.
// Reference: UEFI Specification 2.10, Section 5.3.3
type Partition struct {
	// TypeGUID identifies the partition type. The zero GUID marks an unused slot.
	TypeGUID uuid.UUID `json:"type_guid" yaml:"type_guid"`
	// PartGUID is unique to this partition instance.
	PartGUID uuid.UUID `json:"part_guid" yaml:"part_guid"`
	// FirstLBA is the first block of the partition.
	FirstLBA uint64 `json:"first_lba" yaml:"first_lba"`
	// LastLBA is the last block of the partition (inclusive).
	LastLBA uint64 `json:"last_lba" yaml:"last_lba"`
	// Flags holds the attribute bits.
	Flags PartitionAttributes `json:"flags" yaml:"flags"`
	// Name is the human readable label, at most EntryNameMaxUnits UTF-16 code units.
	Name string `json:"name" yaml:"name"`
}

// IsUsed reports whether the entry describes a partition.
func (p *Partition) IsUsed() bool {
	return p.TypeGUID != uuid.Nil
}

// Sectors returns the number of blocks spanned by the partition.
func (p *Partition) Sectors() uint64 {
	if p.LastLBA < p.FirstLBA {
		return 0
	}
	return p.LastLBA - p.FirstLBA + 1
}

// Bytes returns the size of the partition in bytes.
func (p *Partition) Bytes(lbs LogicalBlockSize) uint64 {
	return p.Sectors() * uint64(lbs)
}

// Overlaps reports whether p and o share at least one block.
func (p *Partition) Overlaps(o *Partition) bool {
	return p.FirstLBA <= o.LastLBA && o.FirstLBA <= p.LastLBA
}

// TypeName returns the human readable name of the partition type.
func (p *Partition) TypeName() string {
	return PartitionTypeName(p.TypeGUID)
}

// String returns a short description of the partition.
func (p *Partition) String() string {
	return fmt.Sprintf("%q %s [%d-%d] %s", p.Name, p.PartGUID, p.FirstLBA, p.LastLBA, p.TypeName())
}
