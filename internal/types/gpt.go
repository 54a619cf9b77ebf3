package types

import (
	"fmt"

	"github.com/google/uuid"
)

// GPT header layout constants.
// Reference: UEFI Specification 2.10, Table 5-5
const (
	// HeaderSignature is the 8-byte magic at offset 0 of every GPT header.
	HeaderSignature = "EFI PART"

	// HeaderRevision is revision 1.0, stored as 00h 00h 01h 00h.
	HeaderRevision uint32 = 0x00010000

	// HeaderSize is the size of the fixed header structure in bytes.
	HeaderSize uint32 = 92

	// PartitionEntrySize is the conventional size of one partition entry.
	PartitionEntrySize uint32 = 128

	// DefaultPartitionEntries is the minimum number of entries reserved in a new array.
	// 128 entries of 128 bytes fill 16KiB, the UEFI minimum.
	DefaultPartitionEntries uint32 = 128

	// MaxPartitionEntryArraySize bounds the entry array read from disk.
	MaxPartitionEntryArraySize uint64 = 16 << 20

	// PrimaryHeaderLBA is the LBA of the primary header.
	PrimaryHeaderLBA uint64 = 1

	// MinDiskSectors is the smallest device that can carry a protective MBR,
	// a primary header, one usable sector and a backup header.
	MinDiskSectors uint64 = 4
)

// Byte offsets of the GPT header fields.
const (
	HeaderSignatureOffset      = 0
	HeaderRevisionOffset       = 8
	HeaderSizeOffset           = 12
	HeaderCRC32Offset          = 16
	HeaderReservedOffset       = 20
	HeaderMyLBAOffset          = 24
	HeaderAlternateLBAOffset   = 32
	HeaderFirstUsableLBAOffset = 40
	HeaderLastUsableLBAOffset  = 48
	HeaderDiskGUIDOffset       = 56
	HeaderEntryLBAOffset       = 72
	HeaderNumEntriesOffset     = 80
	HeaderEntrySizeOffset      = 84
	HeaderEntryArrayCRCOffset  = 88
)

// Header represents a GPT header, primary or backup.
// Reference: UEFI Specification 2.10, Section 5.3.2
type Header struct {
	// Signature is always HeaderSignature.
	Signature [8]byte `json:"-" yaml:"-"`
	// Revision of the header format.
	Revision uint32 `json:"revision" yaml:"revision"`
	// HeaderSize is the number of bytes covered by HeaderCRC32.
	HeaderSize uint32 `json:"header_size" yaml:"header_size"`
	// HeaderCRC32 is the CRC32 of the first HeaderSize bytes with this field zeroed.
	HeaderCRC32 uint32 `json:"header_crc32" yaml:"header_crc32"`
	// Reserved must be zero.
	Reserved uint32 `json:"-" yaml:"-"`
	// MyLBA is the LBA that contains this header.
	MyLBA uint64 `json:"my_lba" yaml:"my_lba"`
	// AlternateLBA is the LBA of the other header copy.
	AlternateLBA uint64 `json:"alternate_lba" yaml:"alternate_lba"`
	// FirstUsableLBA is the first LBA a partition may use.
	FirstUsableLBA uint64 `json:"first_usable_lba" yaml:"first_usable_lba"`
	// LastUsableLBA is the last LBA a partition may use (inclusive).
	LastUsableLBA uint64 `json:"last_usable_lba" yaml:"last_usable_lba"`
	// DiskGUID identifies the disk.
	DiskGUID uuid.UUID `json:"disk_guid" yaml:"disk_guid"`
	// PartitionEntryLBA is the first LBA of the partition entry array.
	PartitionEntryLBA uint64 `json:"partition_entry_lba" yaml:"partition_entry_lba"`
	// NumberOfPartitionEntries is the number of slots in the entry array.
	NumberOfPartitionEntries uint32 `json:"number_of_partition_entries" yaml:"number_of_partition_entries"`
	// SizeOfPartitionEntry is the size in bytes of one slot.
	SizeOfPartitionEntry uint32 `json:"size_of_partition_entry" yaml:"size_of_partition_entry"`
	// PartitionEntryArrayCRC32 is the CRC32 of the whole serialized entry array.
	PartitionEntryArrayCRC32 uint32 `json:"partition_entry_array_crc32" yaml:"partition_entry_array_crc32"`
}

// IsPrimary reports whether the header sits at the primary location.
func (h *Header) IsPrimary() bool {
	return h.MyLBA == PrimaryHeaderLBA
}

// EntryArrayBytes returns the size in bytes of the partition entry array.
func (h *Header) EntryArrayBytes() uint64 {
	return uint64(h.NumberOfPartitionEntries) * uint64(h.SizeOfPartitionEntry)
}

// EntryArraySectors returns the number of blocks occupied by the partition entry array.
func (h *Header) EntryArraySectors(lbs LogicalBlockSize) uint64 {
	return lbs.Sectors(h.EntryArrayBytes())
}

// String returns a short description of the header.
func (h *Header) String() string {
	role := "backup"
	if h.IsPrimary() {
		role = "primary"
	}
	return fmt.Sprintf("%s header at LBA %d (alternate %d, usable %d-%d, %d entries at LBA %d)",
		role, h.MyLBA, h.AlternateLBA, h.FirstUsableLBA, h.LastUsableLBA,
		h.NumberOfPartitionEntries, h.PartitionEntryLBA)
}
