// Package partitions encodes and decodes the GPT partition entry array.
package partitions

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"

	"github.com/deploymenttheory/go-gpt/internal/parsers/checksum"
	"github.com/deploymenttheory/go-gpt/internal/types"
)

// EncodeName converts name to the null-padded UTF-16LE form stored in an entry.
func EncodeName(name string) ([types.EntryNameBytes]byte, error) {
	var out [types.EntryNameBytes]byte
	units := utf16.Encode([]rune(name))
	if len(units) > types.EntryNameMaxUnits {
		return out, fmt.Errorf("%w: partition name %q is %d UTF-16 code units, max %d",
			types.ErrPartitionTableCorrupt, name, len(units), types.EntryNameMaxUnits)
	}
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:], u)
	}
	return out, nil
}

// DecodeName converts a UTF-16LE name field to a string, stopping at the first null code unit.
func DecodeName(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// EncodeEntry serializes p into b, which must hold at least PartitionEntrySize bytes.
// Bytes past the standard 128-byte layout are zeroed.
func EncodeEntry(b []byte, p *types.Partition) error {
	if len(b) < int(types.PartitionEntrySize) {
		return fmt.Errorf("%w: entry buffer too small: %d bytes", types.ErrPartitionTableCorrupt, len(b))
	}
	name, err := EncodeName(p.Name)
	if err != nil {
		return err
	}

	clear(b)
	types.PutGUID(b[types.EntryTypeGUIDOffset:], p.TypeGUID)
	types.PutGUID(b[types.EntryUniqueGUIDOffset:], p.PartGUID)
	binary.LittleEndian.PutUint64(b[types.EntryFirstLBAOffset:], p.FirstLBA)
	binary.LittleEndian.PutUint64(b[types.EntryLastLBAOffset:], p.LastLBA)
	binary.LittleEndian.PutUint64(b[types.EntryAttributesOffset:], uint64(p.Flags))
	copy(b[types.EntryNameOffset:], name[:])
	return nil
}

// DecodeEntry parses one entry slot. b must hold at least PartitionEntrySize bytes.
func DecodeEntry(b []byte) types.Partition {
	return types.Partition{
		TypeGUID: types.GUIDFromBytes(b[types.EntryTypeGUIDOffset:]),
		PartGUID: types.GUIDFromBytes(b[types.EntryUniqueGUIDOffset:]),
		FirstLBA: binary.LittleEndian.Uint64(b[types.EntryFirstLBAOffset:]),
		LastLBA:  binary.LittleEndian.Uint64(b[types.EntryLastLBAOffset:]),
		Flags:    types.PartitionAttributes(binary.LittleEndian.Uint64(b[types.EntryAttributesOffset:])),
		Name:     DecodeName(b[types.EntryNameOffset : types.EntryNameOffset+types.EntryNameBytes]),
	}
}

// CheckGeometry validates an entry count and size before they are used to size a buffer.
func CheckGeometry(count, size uint32) error {
	if size < types.PartitionEntrySize || size%8 != 0 {
		return fmt.Errorf("%w: partition entry size %d", types.ErrPartitionTableCorrupt, size)
	}
	if total := uint64(count) * uint64(size); total > types.MaxPartitionEntryArraySize {
		return fmt.Errorf("%w: partition entry array of %d bytes exceeds %d",
			types.ErrPartitionTableCorrupt, total, types.MaxPartitionEntryArraySize)
	}
	return nil
}

// EncodeArray serializes parts into exactly count*size bytes, zero filling unused slots.
// The returned buffer is both what gets hashed and what gets written.
func EncodeArray(parts []types.Partition, count, size uint32) ([]byte, error) {
	if err := CheckGeometry(count, size); err != nil {
		return nil, err
	}
	if uint64(len(parts)) > uint64(count) {
		return nil, fmt.Errorf("%w: %d partitions do not fit in %d entries",
			types.ErrPartitionTableCorrupt, len(parts), count)
	}

	raw := make([]byte, uint64(count)*uint64(size))
	for i := range parts {
		off := uint64(i) * uint64(size)
		if err := EncodeEntry(raw[off:off+uint64(size)], &parts[i]); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return raw, nil
}

// DecodeArray parses count slots of size bytes and returns the used entries in on-disk order.
func DecodeArray(raw []byte, count, size uint32) ([]types.Partition, error) {
	if err := CheckGeometry(count, size); err != nil {
		return nil, err
	}
	if want := uint64(count) * uint64(size); uint64(len(raw)) != want {
		return nil, fmt.Errorf("%w: partition entry array is %d bytes, want %d",
			types.ErrPartitionTableCorrupt, len(raw), want)
	}

	parts := make([]types.Partition, 0)
	for i := uint64(0); i < uint64(count); i++ {
		off := i * uint64(size)
		p := DecodeEntry(raw[off : off+uint64(size)])
		if !p.IsUsed() {
			continue
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// ReadRaw reads the entry array described by h without decoding it.
func ReadRaw(r io.ReadSeeker, h *types.Header, lbs types.LogicalBlockSize) ([]byte, error) {
	if err := CheckGeometry(h.NumberOfPartitionEntries, h.SizeOfPartitionEntry); err != nil {
		return nil, err
	}
	if _, err := r.Seek(lbs.Offset(h.PartitionEntryLBA), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to partition entry array at LBA %d: %w", types.ErrIO, h.PartitionEntryLBA, err)
	}
	raw := make([]byte, h.EntryArrayBytes())
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: read partition entry array at LBA %d: %w", types.ErrIO, h.PartitionEntryLBA, err)
	}
	return raw, nil
}

// ReadArray reads and decodes the entry array described by h and checks it against
// h.PartitionEntryArrayCRC32. The checksum covers every slot, used or not.
func ReadArray(r io.ReadSeeker, h *types.Header, lbs types.LogicalBlockSize) ([]types.Partition, error) {
	raw, err := ReadRaw(r, h, lbs)
	if err != nil {
		return nil, err
	}

	parts, err := DecodeArray(raw, h.NumberOfPartitionEntries, h.SizeOfPartitionEntry)
	if err != nil {
		return nil, err
	}

	if sum := checksum.CRC32(raw); sum != h.PartitionEntryArrayCRC32 {
		return nil, fmt.Errorf("%w: partition entry array at LBA %d: computed 0x%08X, header has 0x%08X",
			types.ErrChecksumMismatch, h.PartitionEntryLBA, sum, h.PartitionEntryArrayCRC32)
	}
	return parts, nil
}

// WriteArray writes raw at lba, zero padding the final block.
func WriteArray(w io.WriteSeeker, lba uint64, raw []byte, lbs types.LogicalBlockSize) error {
	buf := raw
	if pad := lbs.Sectors(uint64(len(raw)))*uint64(lbs) - uint64(len(raw)); pad > 0 {
		buf = make([]byte, uint64(len(raw))+pad)
		copy(buf, raw)
	}

	if _, err := w.Seek(lbs.Offset(lba), io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek to partition entry array at LBA %d: %w", types.ErrIO, lba, err)
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: write partition entry array at LBA %d: %w", types.ErrIO, lba, err)
	}
	return nil
}
