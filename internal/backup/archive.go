// Package backup saves and restores the sectors that hold a GUID partition table.
//
// An archive is a SHA-256 digest followed by a zstd stream. The digest covers the
// uncompressed payload:
//
//	magic "GPTBAK01" | block size u32 | total sectors u64 | disk GUID [16] | region count u32
//	region: LBA u64 | sector count u32 | sector data
//
// All integers are little-endian.
package backup

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	sha256 "github.com/minio/sha256-simd"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-gpt/internal/interfaces"
	"github.com/deploymenttheory/go-gpt/internal/parsers/header"
	"github.com/deploymenttheory/go-gpt/internal/parsers/mbr"
	"github.com/deploymenttheory/go-gpt/internal/types"
)

const archiveMagic = "GPTBAK01"

// maxArchivePayload bounds the decompressed payload: LBA 0 and two headers plus
// two entry arrays of the largest accepted size at the largest block size.
const maxArchivePayload = 3*uint64(types.MaxBlockSize) + 2*(types.MaxPartitionEntryArraySize+uint64(types.MaxBlockSize)) + 4096

// Region is a run of consecutive sectors.
type Region struct {
	LBA  uint64
	Data []byte
}

// Archive is the partition table metadata of one disk.
type Archive struct {
	BlockSize    types.LogicalBlockSize
	TotalSectors uint64
	DiskGUID     uuid.UUID
	Regions      []Region
}

// Size returns the number of bytes the archived disk spans.
func (a *Archive) Size() uint64 {
	return a.TotalSectors * uint64(a.BlockSize)
}

func readRegion(r io.ReadSeeker, lba, sectors uint64, lbs types.LogicalBlockSize) (Region, error) {
	if _, err := r.Seek(lbs.Offset(lba), io.SeekStart); err != nil {
		return Region{}, fmt.Errorf("%w: seek to LBA %d: %w", types.ErrIO, lba, err)
	}
	data := make([]byte, sectors*uint64(lbs))
	if _, err := io.ReadFull(r, data); err != nil {
		return Region{}, fmt.Errorf("%w: read %d sectors at LBA %d: %w", types.ErrIO, sectors, lba, err)
	}
	return Region{LBA: lba, Data: data}, nil
}

// Capture reads sector 0, both headers and both entry arrays from dev. Both table
// copies must decode; a damaged disk should be repaired before it is archived.
func Capture(dev io.ReadSeeker, lbs types.LogicalBlockSize) (*Archive, error) {
	if err := lbs.Validate(); err != nil {
		return nil, err
	}
	if _, err := mbr.ReadProtective(dev); err != nil {
		return nil, err
	}
	primary, err := header.ReadPrimary(dev, lbs)
	if err != nil {
		return nil, fmt.Errorf("primary header: %w", err)
	}
	backup, err := header.ReadBackup(dev, lbs)
	if err != nil {
		return nil, fmt.Errorf("backup header: %w", err)
	}

	a := &Archive{
		BlockSize:    lbs,
		TotalSectors: backup.MyLBA + 1,
		DiskGUID:     primary.DiskGUID,
	}
	spans := []struct{ lba, sectors uint64 }{
		{0, 1},
		{primary.MyLBA, 1},
		{primary.PartitionEntryLBA, primary.EntryArraySectors(lbs)},
		{backup.PartitionEntryLBA, backup.EntryArraySectors(lbs)},
		{backup.MyLBA, 1},
	}
	for _, s := range spans {
		region, err := readRegion(dev, s.lba, s.sectors, lbs)
		if err != nil {
			return nil, err
		}
		a.Regions = append(a.Regions, region)
	}
	return a, nil
}

func (a *Archive) marshal() []byte {
	var buf bytes.Buffer
	buf.WriteString(archiveMagic)
	binary.Write(&buf, binary.LittleEndian, uint32(a.BlockSize))
	binary.Write(&buf, binary.LittleEndian, a.TotalSectors)
	buf.Write(a.DiskGUID[:])
	binary.Write(&buf, binary.LittleEndian, uint32(len(a.Regions)))
	for _, r := range a.Regions {
		binary.Write(&buf, binary.LittleEndian, r.LBA)
		binary.Write(&buf, binary.LittleEndian, uint32(uint64(len(r.Data))/uint64(a.BlockSize)))
		buf.Write(r.Data)
	}
	return buf.Bytes()
}

func unmarshal(payload []byte) (*Archive, error) {
	r := bytes.NewReader(payload)

	magic := make([]byte, len(archiveMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != archiveMagic {
		return nil, fmt.Errorf("%w: not a partition table archive", types.ErrInvalidSignature)
	}

	var fixed struct {
		BlockSize    uint32
		TotalSectors uint64
		DiskGUID     [16]byte
		Regions      uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return nil, fmt.Errorf("%w: archive header: %w", types.ErrPartitionTableCorrupt, err)
	}

	a := &Archive{
		BlockSize:    types.LogicalBlockSize(fixed.BlockSize),
		TotalSectors: fixed.TotalSectors,
		DiskGUID:     uuid.UUID(fixed.DiskGUID),
	}
	if err := a.BlockSize.Validate(); err != nil {
		return nil, fmt.Errorf("%w: archive: %w", types.ErrPartitionTableCorrupt, err)
	}

	for i := uint32(0); i < fixed.Regions; i++ {
		var span struct {
			LBA     uint64
			Sectors uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &span); err != nil {
			return nil, fmt.Errorf("%w: region %d: %w", types.ErrPartitionTableCorrupt, i, err)
		}
		if span.Sectors == 0 {
			return nil, fmt.Errorf("%w: region %d at LBA %d is empty", types.ErrPartitionTableCorrupt, i, span.LBA)
		}
		n := uint64(span.Sectors) * uint64(a.BlockSize)
		if n > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: region %d claims %d bytes, %d left", types.ErrPartitionTableCorrupt, i, n, r.Len())
		}
		if span.LBA+uint64(span.Sectors) > a.TotalSectors {
			return nil, fmt.Errorf("%w: region %d at LBA %d lies past the archived disk", types.ErrPartitionTableCorrupt, i, span.LBA)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("%w: region %d: %w", types.ErrPartitionTableCorrupt, i, err)
		}
		a.Regions = append(a.Regions, Region{LBA: span.LBA, Data: data})
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in archive", types.ErrPartitionTableCorrupt, r.Len())
	}
	return a, nil
}

// WriteTo writes the digest and the compressed payload to w.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	payload := a.marshal()
	digest := sha256.Sum256(payload)

	var buf bytes.Buffer
	buf.Write(digest[:])
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return 0, err
	}
	if _, err := zw.Write(payload); err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}

	n, err := w.Write(buf.Bytes())
	if err != nil {
		return int64(n), fmt.Errorf("%w: write archive: %w", types.ErrIO, err)
	}
	return int64(n), nil
}

// Read parses an archive and checks its digest.
func Read(r io.Reader) (*Archive, error) {
	var digest [sha256.Size]byte
	if _, err := io.ReadFull(r, digest[:]); err != nil {
		return nil, fmt.Errorf("%w: archive digest: %w", types.ErrIO, err)
	}

	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: archive stream: %w", types.ErrPartitionTableCorrupt, err)
	}
	defer zr.Close()

	payload, err := io.ReadAll(io.LimitReader(zr, int64(maxArchivePayload)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress archive: %w", types.ErrPartitionTableCorrupt, err)
	}
	if uint64(len(payload)) > maxArchivePayload {
		return nil, fmt.Errorf("%w: archive payload exceeds %d bytes", types.ErrPartitionTableCorrupt, maxArchivePayload)
	}
	if sha256.Sum256(payload) != digest {
		return nil, fmt.Errorf("%w: archive digest does not match its contents", types.ErrChecksumMismatch)
	}
	return unmarshal(payload)
}

func (a *Archive) region(lba uint64) ([]byte, bool) {
	for _, r := range a.Regions {
		if r.LBA == lba {
			return r.Data, true
		}
	}
	return nil, false
}

// headerSector returns the archived sector at lba, which must hold a whole block.
func (a *Archive) headerSector(lba uint64, role string) ([]byte, error) {
	raw, ok := a.region(lba)
	if !ok {
		return nil, fmt.Errorf("%w: archive holds no %s header", types.ErrPartitionTableCorrupt, role)
	}
	if uint64(len(raw)) < uint64(a.BlockSize) {
		return nil, fmt.Errorf("%w: archived %s header region is %d bytes, need %d",
			types.ErrPartitionTableCorrupt, role, len(raw), a.BlockSize)
	}
	return raw[:a.BlockSize], nil
}

// Headers decodes the archived primary and backup headers.
func (a *Archive) Headers() (*types.Header, *types.Header, error) {
	if err := a.BlockSize.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: archive: %w", types.ErrPartitionTableCorrupt, err)
	}
	if a.TotalSectors < types.MinDiskSectors {
		return nil, nil, fmt.Errorf("%w: archived disk has %d sectors", types.ErrPartitionTableCorrupt, a.TotalSectors)
	}
	backupLBA := a.TotalSectors - 1

	raw, err := a.headerSector(types.PrimaryHeaderLBA, "primary")
	if err != nil {
		return nil, nil, err
	}
	primary, err := header.Decode(raw, types.PrimaryHeaderLBA, a.BlockSize)
	if err != nil {
		return nil, nil, fmt.Errorf("archived primary header: %w", err)
	}
	raw, err = a.headerSector(backupLBA, "backup")
	if err != nil {
		return nil, nil, err
	}
	backup, err := header.Decode(raw, backupLBA, a.BlockSize)
	if err != nil {
		return nil, nil, fmt.Errorf("archived backup header: %w", err)
	}
	return primary, backup, nil
}

// Restore writes the archived sectors back to dev. The device must be at least as
// large as the archived disk.
func Restore(dev interfaces.BlockDevice, a *Archive, logger logrus.FieldLogger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if _, _, err := a.Headers(); err != nil {
		return err
	}

	end, err := dev.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("%w: determine device size: %w", types.ErrIO, err)
	}
	sectors := uint64(end) / uint64(a.BlockSize)
	if sectors < a.TotalSectors {
		return fmt.Errorf("%w: device has %d sectors, archive needs %d",
			types.ErrPartitionTableCorrupt, sectors, a.TotalSectors)
	}
	if sectors > a.TotalSectors {
		logger.WithFields(logrus.Fields{
			"device_sectors":  sectors,
			"archive_sectors": a.TotalSectors,
		}).Warn("device is larger than the archived disk; the backup header will not be at the last LBA")
	}

	for _, r := range a.Regions {
		if _, err := dev.Seek(a.BlockSize.Offset(r.LBA), io.SeekStart); err != nil {
			return fmt.Errorf("%w: seek to LBA %d: %w", types.ErrIO, r.LBA, err)
		}
		if _, err := dev.Write(r.Data); err != nil {
			return fmt.Errorf("%w: write LBA %d: %w", types.ErrIO, r.LBA, err)
		}
		logger.WithFields(logrus.Fields{"lba": r.LBA, "bytes": len(r.Data)}).Debug("restored region")
	}
	if err := dev.Sync(); err != nil {
		return fmt.Errorf("%w: flush device: %w", types.ErrIO, err)
	}
	logger.WithField("disk_guid", a.DiskGUID).Info("restored partition table")
	return nil
}
