package types

// Protective MBR layout constants.
// Reference: UEFI Specification 2.10, Section 5.2.3
const (
	// MBRSize is the size of the legacy master boot record.
	MBRSize = 512
	// MBRBootCodeSize is the size of the boot code region.
	MBRBootCodeSize = 440
	// MBRPartitionRecordOffset is the offset of the first of four partition records.
	MBRPartitionRecordOffset = 446
	// MBRPartitionRecordSize is the size of one legacy partition record.
	MBRPartitionRecordSize = 16
	// MBRSignatureOffset is the offset of the 0x55 0xAA boot signature.
	MBRSignatureOffset = 510

	// MBRSignature0 and MBRSignature1 are the two boot signature bytes.
	MBRSignature0 byte = 0x55
	MBRSignature1 byte = 0xAA

	// OSTypeGPTProtective marks the whole-disk placeholder record.
	OSTypeGPTProtective byte = 0xEE
)

// MBRPartitionRecord is one of the four legacy partition records.
type MBRPartitionRecord struct {
	BootIndicator byte
	StartingCHS   [3]byte
	OSType        byte
	EndingCHS     [3]byte
	StartingLBA   uint32
	SizeInLBA     uint32
}

// IsProtective reports whether the record is the GPT placeholder.
func (r *MBRPartitionRecord) IsProtective() bool {
	return r.OSType == OSTypeGPTProtective
}

// ProtectiveMBR is the legacy boot sector written at LBA 0 of a GPT disk.
type ProtectiveMBR struct {
	BootCode           [MBRBootCodeSize]byte
	UniqueMBRSignature uint32
	Unknown            uint16
	PartitionRecords   [4]MBRPartitionRecord
	Signature          [2]byte
}

// HasProtectiveRecord reports whether any partition record is the 0xEE placeholder.
func (m *ProtectiveMBR) HasProtectiveRecord() bool {
	for i := range m.PartitionRecords {
		if m.PartitionRecords[i].IsProtective() {
			return true
		}
	}
	return false
}
