// Package header encodes, decodes and lays out the primary and backup GPT headers.
package header

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-gpt/internal/parsers/checksum"
	"github.com/deploymenttheory/go-gpt/internal/parsers/partitions"
	"github.com/deploymenttheory/go-gpt/internal/types"
)

// marshal writes every field of h into a zeroed buffer of size bytes, leaving the
// header CRC32 field zero.
func marshal(h *types.Header, size int) []byte {
	buf := make([]byte, size)
	copy(buf[types.HeaderSignatureOffset:], types.HeaderSignature)
	binary.LittleEndian.PutUint32(buf[types.HeaderRevisionOffset:], h.Revision)
	binary.LittleEndian.PutUint32(buf[types.HeaderSizeOffset:], h.HeaderSize)
	binary.LittleEndian.PutUint32(buf[types.HeaderReservedOffset:], h.Reserved)
	binary.LittleEndian.PutUint64(buf[types.HeaderMyLBAOffset:], h.MyLBA)
	binary.LittleEndian.PutUint64(buf[types.HeaderAlternateLBAOffset:], h.AlternateLBA)
	binary.LittleEndian.PutUint64(buf[types.HeaderFirstUsableLBAOffset:], h.FirstUsableLBA)
	binary.LittleEndian.PutUint64(buf[types.HeaderLastUsableLBAOffset:], h.LastUsableLBA)
	types.PutGUID(buf[types.HeaderDiskGUIDOffset:], h.DiskGUID)
	binary.LittleEndian.PutUint64(buf[types.HeaderEntryLBAOffset:], h.PartitionEntryLBA)
	binary.LittleEndian.PutUint32(buf[types.HeaderNumEntriesOffset:], h.NumberOfPartitionEntries)
	binary.LittleEndian.PutUint32(buf[types.HeaderEntrySizeOffset:], h.SizeOfPartitionEntry)
	binary.LittleEndian.PutUint32(buf[types.HeaderEntryArrayCRCOffset:], h.PartitionEntryArrayCRC32)
	return buf
}

// Encode serializes h into one zero padded block and fills in the header CRC32
// computed over the emitted bytes. h is not modified.
func Encode(h *types.Header, lbs types.LogicalBlockSize) ([]byte, error) {
	if h.HeaderSize < types.HeaderSize || uint64(h.HeaderSize) > uint64(lbs) {
		return nil, fmt.Errorf("%w: header size %d outside [%d, %d]",
			types.ErrPartitionTableCorrupt, h.HeaderSize, types.HeaderSize, uint64(lbs))
	}
	buf := marshal(h, int(lbs))
	binary.LittleEndian.PutUint32(buf[types.HeaderCRC32Offset:], checksum.HeaderCRC32(buf, h.HeaderSize))
	return buf, nil
}

// Decode parses a header read from expectedLBA.
//
// When the declared header size fits the buffer the checksum is verified before
// the signature, so any corrupted bit inside the covered bytes reports
// ErrChecksumMismatch. A sector that does not even declare a usable size is
// reported by its signature.
func Decode(raw []byte, expectedLBA uint64, lbs types.LogicalBlockSize) (*types.Header, error) {
	if len(raw) < int(types.HeaderSize) {
		return nil, fmt.Errorf("%w: header buffer too small: %d bytes", types.ErrPartitionTableCorrupt, len(raw))
	}

	stored := binary.LittleEndian.Uint32(raw[types.HeaderCRC32Offset:])
	size := binary.LittleEndian.Uint32(raw[types.HeaderSizeOffset:])
	sizeOK := size >= types.HeaderSize && uint64(size) <= uint64(len(raw)) && uint64(size) <= uint64(lbs)

	if sizeOK {
		if sum := checksum.HeaderCRC32(raw, size); sum != stored {
			return nil, fmt.Errorf("%w: header at LBA %d: computed 0x%08X, stored 0x%08X",
				types.ErrChecksumMismatch, expectedLBA, sum, stored)
		}
	}

	if !bytes.Equal(raw[types.HeaderSignatureOffset:types.HeaderSignatureOffset+8], []byte(types.HeaderSignature)) {
		return nil, fmt.Errorf("%w: no GPT header at LBA %d", types.ErrInvalidSignature, expectedLBA)
	}
	if rev := binary.LittleEndian.Uint32(raw[types.HeaderRevisionOffset:]); rev != types.HeaderRevision {
		return nil, fmt.Errorf("%w: header at LBA %d has revision 0x%08X", types.ErrInvalidSignature, expectedLBA, rev)
	}

	if !sizeOK {
		if sum := checksum.HeaderCRC32(raw, types.HeaderSize); sum != stored {
			return nil, fmt.Errorf("%w: header at LBA %d: computed 0x%08X, stored 0x%08X",
				types.ErrChecksumMismatch, expectedLBA, sum, stored)
		}
		return nil, fmt.Errorf("%w: header at LBA %d declares size %d", types.ErrPartitionTableCorrupt, expectedLBA, size)
	}

	h := &types.Header{
		Revision:                 binary.LittleEndian.Uint32(raw[types.HeaderRevisionOffset:]),
		HeaderSize:               size,
		HeaderCRC32:              stored,
		Reserved:                 binary.LittleEndian.Uint32(raw[types.HeaderReservedOffset:]),
		MyLBA:                    binary.LittleEndian.Uint64(raw[types.HeaderMyLBAOffset:]),
		AlternateLBA:             binary.LittleEndian.Uint64(raw[types.HeaderAlternateLBAOffset:]),
		FirstUsableLBA:           binary.LittleEndian.Uint64(raw[types.HeaderFirstUsableLBAOffset:]),
		LastUsableLBA:            binary.LittleEndian.Uint64(raw[types.HeaderLastUsableLBAOffset:]),
		DiskGUID:                 types.GUIDFromBytes(raw[types.HeaderDiskGUIDOffset:]),
		PartitionEntryLBA:        binary.LittleEndian.Uint64(raw[types.HeaderEntryLBAOffset:]),
		NumberOfPartitionEntries: binary.LittleEndian.Uint32(raw[types.HeaderNumEntriesOffset:]),
		SizeOfPartitionEntry:     binary.LittleEndian.Uint32(raw[types.HeaderEntrySizeOffset:]),
		PartitionEntryArrayCRC32: binary.LittleEndian.Uint32(raw[types.HeaderEntryArrayCRCOffset:]),
	}
	copy(h.Signature[:], raw[types.HeaderSignatureOffset:])

	if h.MyLBA != expectedLBA {
		return nil, fmt.Errorf("%w: header read from LBA %d claims LBA %d",
			types.ErrPartitionTableCorrupt, expectedLBA, h.MyLBA)
	}
	return h, nil
}

// EntryCount returns the number of entry slots reserved for n partitions.
func EntryCount(n int) uint32 {
	if uint64(n) > uint64(types.DefaultPartitionEntries) {
		return uint32(n)
	}
	return types.DefaultPartitionEntries
}

// ComputeNew derives a primary or backup header for the given partitions, disk GUID
// and backup LBA. It is the only place header geometry is decided: the primary array
// follows LBA 1, the backup array precedes backupLBA, and the usable range lies
// strictly between the two arrays. Headers built from the same inputs always point
// at each other.
func ComputeNew(primary bool, parts []types.Partition, diskGUID uuid.UUID, backupLBA uint64, lbs types.LogicalBlockSize) (*types.Header, error) {
	count := EntryCount(len(parts))
	raw, err := partitions.EncodeArray(parts, count, types.PartitionEntrySize)
	if err != nil {
		return nil, err
	}

	arraySectors := lbs.Sectors(uint64(len(raw)))
	// protective MBR, primary header, both arrays, one usable block, backup header
	if backupLBA < 2*arraySectors+3 {
		return nil, fmt.Errorf("%w: backup LBA %d leaves no usable space for %d-sector entry arrays",
			types.ErrPartitionTableCorrupt, backupLBA, arraySectors)
	}

	h := &types.Header{
		Revision:                 types.HeaderRevision,
		HeaderSize:               types.HeaderSize,
		FirstUsableLBA:           types.PrimaryHeaderLBA + 1 + arraySectors,
		LastUsableLBA:            backupLBA - arraySectors - 1,
		DiskGUID:                 diskGUID,
		NumberOfPartitionEntries: count,
		SizeOfPartitionEntry:     types.PartitionEntrySize,
		PartitionEntryArrayCRC32: checksum.CRC32(raw),
	}
	copy(h.Signature[:], types.HeaderSignature)

	if primary {
		h.MyLBA = types.PrimaryHeaderLBA
		h.AlternateLBA = backupLBA
		h.PartitionEntryLBA = types.PrimaryHeaderLBA + 1
	} else {
		h.MyLBA = backupLBA
		h.AlternateLBA = types.PrimaryHeaderLBA
		h.PartitionEntryLBA = backupLBA - arraySectors
	}

	h.HeaderCRC32 = checksum.HeaderCRC32(marshal(h, int(types.HeaderSize)), h.HeaderSize)
	return h, nil
}

// FindBackupLBA returns the last LBA of the device, where the backup header lives.
// The current offset of s is preserved.
func FindBackupLBA(s io.Seeker, lbs types.LogicalBlockSize) (uint64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("%w: determine current offset: %w", types.ErrIO, err)
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("%w: determine device size: %w", types.ErrIO, err)
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: restore offset: %w", types.ErrIO, err)
	}

	sectors := uint64(end) / uint64(lbs)
	if sectors < types.MinDiskSectors {
		return 0, fmt.Errorf("%w: device of %d bytes is smaller than %d blocks of %d bytes",
			types.ErrIO, end, types.MinDiskSectors, uint64(lbs))
	}
	return sectors - 1, nil
}

// Read reads one block at lba and decodes it as a header.
func Read(r io.ReadSeeker, lba uint64, lbs types.LogicalBlockSize) (*types.Header, error) {
	if _, err := r.Seek(lbs.Offset(lba), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to header at LBA %d: %w", types.ErrIO, lba, err)
	}
	raw := make([]byte, lbs)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: read header at LBA %d: %w", types.ErrIO, lba, err)
	}
	return Decode(raw, lba, lbs)
}

// ReadPrimary reads the header at LBA 1.
func ReadPrimary(r io.ReadSeeker, lbs types.LogicalBlockSize) (*types.Header, error) {
	return Read(r, types.PrimaryHeaderLBA, lbs)
}

// ReadBackup reads the header at the last LBA of the device.
func ReadBackup(r io.ReadSeeker, lbs types.LogicalBlockSize) (*types.Header, error) {
	lba, err := FindBackupLBA(r, lbs)
	if err != nil {
		return nil, err
	}
	return Read(r, lba, lbs)
}

func write(w io.WriteSeeker, h *types.Header, lbs types.LogicalBlockSize) error {
	raw, err := Encode(h, lbs)
	if err != nil {
		return err
	}
	if _, err := w.Seek(lbs.Offset(h.MyLBA), io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek to header at LBA %d: %w", types.ErrIO, h.MyLBA, err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("%w: write header at LBA %d: %w", types.ErrIO, h.MyLBA, err)
	}
	return nil
}

// WritePrimary writes h at LBA 1.
func WritePrimary(w io.WriteSeeker, h *types.Header, lbs types.LogicalBlockSize) error {
	if !h.IsPrimary() {
		return fmt.Errorf("%w: primary header claims LBA %d", types.ErrPartitionTableCorrupt, h.MyLBA)
	}
	return write(w, h, lbs)
}

// WriteBackup writes h at its own LBA.
func WriteBackup(w io.WriteSeeker, h *types.Header, lbs types.LogicalBlockSize) error {
	if h.IsPrimary() {
		return fmt.Errorf("%w: backup header claims the primary LBA", types.ErrPartitionTableCorrupt)
	}
	return write(w, h, lbs)
}

// CheckPair reports every inconsistency between a primary and a backup header.
func CheckPair(primary, backup *types.Header) error {
	var errs error
	if primary.AlternateLBA != backup.MyLBA {
		errs = multierr.Append(errs, fmt.Errorf("%w: primary points at backup LBA %d, backup is at %d",
			types.ErrPartitionTableCorrupt, primary.AlternateLBA, backup.MyLBA))
	}
	if backup.AlternateLBA != primary.MyLBA {
		errs = multierr.Append(errs, fmt.Errorf("%w: backup points at primary LBA %d, primary is at %d",
			types.ErrPartitionTableCorrupt, backup.AlternateLBA, primary.MyLBA))
	}
	if primary.DiskGUID != backup.DiskGUID {
		errs = multierr.Append(errs, fmt.Errorf("%w: disk GUID differs: primary %s, backup %s",
			types.ErrPartitionTableCorrupt, primary.DiskGUID, backup.DiskGUID))
	}
	if primary.FirstUsableLBA != backup.FirstUsableLBA || primary.LastUsableLBA != backup.LastUsableLBA {
		errs = multierr.Append(errs, fmt.Errorf("%w: usable range differs: primary %d-%d, backup %d-%d",
			types.ErrPartitionTableCorrupt, primary.FirstUsableLBA, primary.LastUsableLBA,
			backup.FirstUsableLBA, backup.LastUsableLBA))
	}
	if primary.NumberOfPartitionEntries != backup.NumberOfPartitionEntries ||
		primary.SizeOfPartitionEntry != backup.SizeOfPartitionEntry {
		errs = multierr.Append(errs, fmt.Errorf("%w: entry array geometry differs: primary %dx%d, backup %dx%d",
			types.ErrPartitionTableCorrupt, primary.NumberOfPartitionEntries, primary.SizeOfPartitionEntry,
			backup.NumberOfPartitionEntries, backup.SizeOfPartitionEntry))
	}
	if primary.PartitionEntryArrayCRC32 != backup.PartitionEntryArrayCRC32 {
		errs = multierr.Append(errs, fmt.Errorf("%w: entry array checksum differs: primary 0x%08X, backup 0x%08X",
			types.ErrChecksumMismatch, primary.PartitionEntryArrayCRC32, backup.PartitionEntryArrayCRC32))
	}
	return errs
}
