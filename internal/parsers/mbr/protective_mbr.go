// Package mbr decodes and encodes the protective MBR that marks a disk as GPT formatted.
package mbr

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/deploymenttheory/go-gpt/internal/interfaces"
	"github.com/deploymenttheory/go-gpt/internal/types"
)

// protectiveMBRReader implements the ProtectiveMBRReader interface
type protectiveMBRReader struct {
	record *types.ProtectiveMBR
}

// Compile-time check
var _ interfaces.ProtectiveMBRReader = (*protectiveMBRReader)(nil)

// NewProtectiveMBRReader decodes sector and returns a reader over the result.
// Only the boot signature is validated here; use IsProtective to check for the 0xEE record.
func NewProtectiveMBRReader(sector []byte) (interfaces.ProtectiveMBRReader, error) {
	record, err := Decode(sector)
	if err != nil {
		return nil, err
	}
	return &protectiveMBRReader{record: record}, nil
}

func (r *protectiveMBRReader) Record() *types.ProtectiveMBR {
	return r.record
}

func (r *protectiveMBRReader) ProtectiveRecord() (*types.MBRPartitionRecord, bool) {
	for i := range r.record.PartitionRecords {
		if r.record.PartitionRecords[i].IsProtective() {
			return &r.record.PartitionRecords[i], true
		}
	}
	return nil, false
}

func (r *protectiveMBRReader) CoveredSectors() uint64 {
	rec, ok := r.ProtectiveRecord()
	if !ok {
		return 0
	}
	return uint64(rec.SizeInLBA)
}

func (r *protectiveMBRReader) IsProtective() bool {
	return r.record.HasProtectiveRecord()
}

// Decode parses a 512-byte boot sector. A missing 0x55 0xAA signature fails with
// ErrInvalidSignature.
func Decode(sector []byte) (*types.ProtectiveMBR, error) {
	if len(sector) < types.MBRSize {
		return nil, fmt.Errorf("%w: boot sector too small: %d bytes", types.ErrPartitionTableCorrupt, len(sector))
	}
	if sector[types.MBRSignatureOffset] != types.MBRSignature0 || sector[types.MBRSignatureOffset+1] != types.MBRSignature1 {
		return nil, fmt.Errorf("%w: boot signature 0x%02X%02X, want 0x55AA",
			types.ErrInvalidSignature, sector[types.MBRSignatureOffset], sector[types.MBRSignatureOffset+1])
	}

	m := &types.ProtectiveMBR{}
	copy(m.BootCode[:], sector[0:types.MBRBootCodeSize])
	m.UniqueMBRSignature = binary.LittleEndian.Uint32(sector[440:444])
	m.Unknown = binary.LittleEndian.Uint16(sector[444:446])

	for i := range m.PartitionRecords {
		off := types.MBRPartitionRecordOffset + i*types.MBRPartitionRecordSize
		m.PartitionRecords[i] = decodeRecord(sector[off : off+types.MBRPartitionRecordSize])
	}

	copy(m.Signature[:], sector[types.MBRSignatureOffset:types.MBRSize])
	return m, nil
}

func decodeRecord(b []byte) types.MBRPartitionRecord {
	var r types.MBRPartitionRecord
	r.BootIndicator = b[0]
	copy(r.StartingCHS[:], b[1:4])
	r.OSType = b[4]
	copy(r.EndingCHS[:], b[5:8])
	r.StartingLBA = binary.LittleEndian.Uint32(b[8:12])
	r.SizeInLBA = binary.LittleEndian.Uint32(b[12:16])
	return r
}

// Encode serializes m into a 512-byte sector. The boot signature is always emitted,
// whatever m.Signature holds.
func Encode(m *types.ProtectiveMBR) []byte {
	sector := make([]byte, types.MBRSize)
	copy(sector[0:types.MBRBootCodeSize], m.BootCode[:])
	binary.LittleEndian.PutUint32(sector[440:444], m.UniqueMBRSignature)
	binary.LittleEndian.PutUint16(sector[444:446], m.Unknown)

	for i, r := range m.PartitionRecords {
		off := types.MBRPartitionRecordOffset + i*types.MBRPartitionRecordSize
		b := sector[off : off+types.MBRPartitionRecordSize]
		b[0] = r.BootIndicator
		copy(b[1:4], r.StartingCHS[:])
		b[4] = r.OSType
		copy(b[5:8], r.EndingCHS[:])
		binary.LittleEndian.PutUint32(b[8:12], r.StartingLBA)
		binary.LittleEndian.PutUint32(b[12:16], r.SizeInLBA)
	}

	sector[types.MBRSignatureOffset] = types.MBRSignature0
	sector[types.MBRSignatureOffset+1] = types.MBRSignature1
	return sector
}

// NewProtective builds a protective MBR for a disk of totalSectors logical blocks.
// The 0xEE record starts at LBA 1 and covers the rest of the disk, capped at 0xFFFFFFFF.
// Reference: UEFI Specification 2.10, Table 5-4
func NewProtective(totalSectors uint64) *types.ProtectiveMBR {
	size := uint64(0)
	if totalSectors > 1 {
		size = totalSectors - 1
	}
	if size > 0xFFFFFFFF {
		size = 0xFFFFFFFF
	}

	m := &types.ProtectiveMBR{
		Signature: [2]byte{types.MBRSignature0, types.MBRSignature1},
	}
	m.PartitionRecords[0] = types.MBRPartitionRecord{
		StartingCHS: [3]byte{0x00, 0x02, 0x00},
		OSType:      types.OSTypeGPTProtective,
		EndingCHS:   [3]byte{0xFF, 0xFF, 0xFF},
		StartingLBA: 1,
		SizeInLBA:   uint32(size),
	}
	return m
}

// Read reads and decodes the boot sector at offset 0 of r.
func Read(r io.ReadSeeker) (*types.ProtectiveMBR, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to boot sector: %w", types.ErrIO, err)
	}
	sector := make([]byte, types.MBRSize)
	if _, err := io.ReadFull(r, sector); err != nil {
		return nil, fmt.Errorf("%w: read boot sector: %w", types.ErrIO, err)
	}
	return Decode(sector)
}

// ReadProtective reads the boot sector and requires the 0xEE placeholder record.
func ReadProtective(r io.ReadSeeker) (*types.ProtectiveMBR, error) {
	m, err := Read(r)
	if err != nil {
		return nil, err
	}
	if !m.HasProtectiveRecord() {
		return nil, fmt.Errorf("%w: boot sector has no GPT protective record", types.ErrInvalidSignature)
	}
	return m, nil
}

// Write encodes m and writes it at offset 0 of w. Only the first 512 bytes of LBA 0 are touched.
func Write(w io.WriteSeeker, m *types.ProtectiveMBR) error {
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek to boot sector: %w", types.ErrIO, err)
	}
	if _, err := w.Write(Encode(m)); err != nil {
		return fmt.Errorf("%w: write boot sector: %w", types.ErrIO, err)
	}
	return nil
}
