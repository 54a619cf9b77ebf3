package services

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"unicode/utf16"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-gpt/internal/interfaces"
	"github.com/deploymenttheory/go-gpt/internal/parsers/header"
	"github.com/deploymenttheory/go-gpt/internal/parsers/mbr"
	"github.com/deploymenttheory/go-gpt/internal/parsers/partitions"
	"github.com/deploymenttheory/go-gpt/internal/types"
)

// partitionTableService implements PartitionTableService over one open device
type partitionTableService struct {
	device interfaces.BlockDevice
	lbs    types.LogicalBlockSize
	log    logrus.FieldLogger
}

// Compile-time check
var _ PartitionTableService = (*partitionTableService)(nil)

// NewPartitionTableService creates a service for device. A nil logger uses the logrus standard logger.
func NewPartitionTableService(device interfaces.BlockDevice, lbs types.LogicalBlockSize, logger logrus.FieldLogger) (PartitionTableService, error) {
	if device == nil {
		return nil, fmt.Errorf("device cannot be nil")
	}
	if err := lbs.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &partitionTableService{
		device: device,
		lbs:    lbs,
		log:    logger.WithField("block_size", uint64(lbs)),
	}, nil
}

// tableCopy is one decoded header with its entry array.
type tableCopy struct {
	header     *types.Header
	partitions []types.Partition
}

func (s *partitionTableService) readCopy(lba uint64) (*tableCopy, error) {
	h, err := header.Read(s.device, lba, s.lbs)
	if err != nil {
		return nil, err
	}
	parts, err := partitions.ReadArray(s.device, h, s.lbs)
	if err != nil {
		return nil, err
	}
	if err := checkLayout(h, s.lbs); err != nil {
		return nil, err
	}
	if err := ValidatePartitions(parts, h.FirstUsableLBA, h.LastUsableLBA); err != nil {
		return nil, fmt.Errorf("header at LBA %d: %w", h.MyLBA, err)
	}
	s.log.WithFields(logrus.Fields{
		"lba":     lba,
		"entries": h.NumberOfPartitionEntries,
		"used":    len(parts),
	}).Debug("read partition table copy")
	return &tableCopy{header: h, partitions: parts}, nil
}

// checkLayout rejects a header whose usable range is empty or overlaps the
// header itself or its entry array.
func checkLayout(h *types.Header, lbs types.LogicalBlockSize) error {
	if h.FirstUsableLBA > h.LastUsableLBA {
		return fmt.Errorf("%w: header at LBA %d has usable range %d-%d",
			types.ErrPartitionTableCorrupt, h.MyLBA, h.FirstUsableLBA, h.LastUsableLBA)
	}
	if h.MyLBA >= h.FirstUsableLBA && h.MyLBA <= h.LastUsableLBA {
		return fmt.Errorf("%w: header at LBA %d lies inside usable range %d-%d",
			types.ErrPartitionTableCorrupt, h.MyLBA, h.FirstUsableLBA, h.LastUsableLBA)
	}
	if n := h.EntryArraySectors(lbs); n > 0 {
		first, last := h.PartitionEntryLBA, h.PartitionEntryLBA+n-1
		if first <= h.LastUsableLBA && last >= h.FirstUsableLBA {
			return fmt.Errorf("%w: entry array at LBA %d-%d overlaps usable range %d-%d",
				types.ErrPartitionTableCorrupt, first, last, h.FirstUsableLBA, h.LastUsableLBA)
		}
	}
	return nil
}

func (s *partitionTableService) readBackupCopy() (*tableCopy, error) {
	lba, err := header.FindBackupLBA(s.device, s.lbs)
	if err != nil {
		return nil, err
	}
	return s.readCopy(lba)
}

func (s *partitionTableService) Load(recoverDamaged bool) (*DiskState, []CopyDamage, error) {
	if _, err := mbr.ReadProtective(s.device); err != nil {
		return nil, nil, err
	}

	primary, pErr := s.readCopy(types.PrimaryHeaderLBA)
	backup, bErr := s.readBackupCopy()

	if pErr == nil && bErr == nil {
		if err := header.CheckPair(primary.header, backup.header); err != nil {
			bErr = err
			backup = nil
		} else if !slices.Equal(primary.partitions, backup.partitions) {
			bErr = fmt.Errorf("%w: backup partition entries differ from primary", types.ErrPartitionTableCorrupt)
			backup = nil
		}
	}

	var damage []CopyDamage
	if pErr != nil {
		damage = append(damage, CopyDamage{Copy: CopyPrimary, Err: pErr})
	}
	if bErr != nil {
		damage = append(damage, CopyDamage{Copy: CopyBackup, Err: bErr})
	}

	switch {
	case len(damage) == 0:
	case primary == nil && backup == nil:
		return nil, damage, multierr.Combine(pErr, bErr)
	case !recoverDamaged:
		return nil, damage, damage[0].Err
	default:
		for _, d := range damage {
			s.log.WithError(d.Err).WithField("copy", d.Copy).Warn("ignoring damaged partition table copy")
		}
	}

	state := &DiskState{}
	// the primary wins whenever it is intact
	source := primary
	if source == nil {
		source = backup
	} else {
		state.Primary = primary.header
	}
	if backup != nil {
		state.Backup = backup.header
	}
	state.GUID = source.header.DiskGUID
	state.Partitions = source.partitions

	s.log.WithFields(logrus.Fields{
		"disk_guid":  state.GUID,
		"partitions": len(state.Partitions),
		"damaged":    len(damage),
	}).Info("loaded partition table")
	return state, damage, nil
}

// ValidatePartitions checks parts against the usable range [first, last].
func ValidatePartitions(parts []types.Partition, first, last uint64) error {
	for i := range parts {
		p := &parts[i]
		if !p.IsUsed() {
			return fmt.Errorf("%w: partition %d has the unused type GUID", types.ErrPartitionTableCorrupt, i)
		}
		if p.FirstLBA > p.LastLBA {
			return fmt.Errorf("%w: partition %d starts at LBA %d after its end %d",
				types.ErrPartitionTableCorrupt, i, p.FirstLBA, p.LastLBA)
		}
		if p.FirstLBA < first || p.LastLBA > last {
			return fmt.Errorf("%w: partition %d spans LBA %d-%d outside usable range %d-%d",
				types.ErrPartitionTableCorrupt, i, p.FirstLBA, p.LastLBA, first, last)
		}
		if n := len(utf16.Encode([]rune(p.Name))); n > types.EntryNameMaxUnits {
			return fmt.Errorf("%w: partition %d name is %d UTF-16 code units, max %d",
				types.ErrPartitionTableCorrupt, i, n, types.EntryNameMaxUnits)
		}
	}

	order := make([]int, len(parts))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return parts[order[a]].FirstLBA < parts[order[b]].FirstLBA })
	for k := 1; k < len(order); k++ {
		prev, cur := &parts[order[k-1]], &parts[order[k]]
		if prev.Overlaps(cur) {
			return fmt.Errorf("%w: partitions %d and %d overlap", types.ErrPartitionTableCorrupt, order[k-1], order[k])
		}
	}
	return nil
}

func (s *partitionTableService) Rebuild(diskGUID uuid.UUID, parts []types.Partition) (*types.Header, *types.Header, error) {
	backupLBA, err := header.FindBackupLBA(s.device, s.lbs)
	if err != nil {
		return nil, nil, err
	}

	primary, err := header.ComputeNew(true, parts, diskGUID, backupLBA, s.lbs)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidatePartitions(parts, primary.FirstUsableLBA, primary.LastUsableLBA); err != nil {
		return nil, nil, err
	}
	backup, err := header.ComputeNew(false, parts, diskGUID, backupLBA, s.lbs)
	if err != nil {
		return nil, nil, err
	}
	return primary, backup, nil
}

// ensureProtectiveMBR writes a protective MBR unless sector 0 already holds one.
func (s *partitionTableService) ensureProtectiveMBR(backupLBA uint64) error {
	_, err := mbr.ReadProtective(s.device)
	if err == nil {
		return nil
	}
	if !errors.Is(err, types.ErrInvalidSignature) {
		return err
	}
	s.log.WithField("lba", 0).Debug("writing protective MBR")
	return mbr.Write(s.device, mbr.NewProtective(backupLBA+1))
}

func (s *partitionTableService) Persist(state *DiskState) error {
	if !state.Writable {
		return types.ErrNotWritable
	}
	if !state.Initialized() {
		return types.ErrNotInitialized
	}

	primary, backup, err := s.Rebuild(state.GUID, state.Partitions)
	if err != nil {
		return err
	}
	raw, err := partitions.EncodeArray(state.Partitions, primary.NumberOfPartitionEntries, primary.SizeOfPartitionEntry)
	if err != nil {
		return err
	}

	if err := s.ensureProtectiveMBR(backup.MyLBA); err != nil {
		return err
	}

	// backup copy first so the primary, which readers trust first, is replaced last
	s.log.WithField("lba", backup.PartitionEntryLBA).Debug("writing backup partition entry array")
	if err := partitions.WriteArray(s.device, backup.PartitionEntryLBA, raw, s.lbs); err != nil {
		return err
	}
	s.log.WithField("lba", backup.MyLBA).Debug("writing backup header")
	if err := header.WriteBackup(s.device, backup, s.lbs); err != nil {
		return err
	}
	s.log.WithField("lba", primary.PartitionEntryLBA).Debug("writing primary partition entry array")
	if err := partitions.WriteArray(s.device, primary.PartitionEntryLBA, raw, s.lbs); err != nil {
		return err
	}
	s.log.WithField("lba", primary.MyLBA).Debug("writing primary header")
	if err := header.WritePrimary(s.device, primary, s.lbs); err != nil {
		return err
	}
	if err := s.device.Sync(); err != nil {
		return fmt.Errorf("%w: flush device: %w", types.ErrIO, err)
	}

	state.Primary, state.Backup = primary, backup
	s.log.WithFields(logrus.Fields{
		"disk_guid":  state.GUID,
		"partitions": len(state.Partitions),
		"backup_lba": backup.MyLBA,
	}).Info("wrote partition table")
	return nil
}

func (s *partitionTableService) Verify() error {
	var errs error
	if _, err := mbr.ReadProtective(s.device); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("protective MBR: %w", err))
	}

	primary, err := s.readCopy(types.PrimaryHeaderLBA)
	if err != nil {
		errs = multierr.Append(errs, CopyDamage{Copy: CopyPrimary, Err: err})
	}
	backup, err := s.readBackupCopy()
	if err != nil {
		errs = multierr.Append(errs, CopyDamage{Copy: CopyBackup, Err: err})
	}

	if primary != nil && backup != nil {
		errs = multierr.Append(errs, header.CheckPair(primary.header, backup.header))
		if !slices.Equal(primary.partitions, backup.partitions) {
			errs = multierr.Append(errs, fmt.Errorf("%w: backup partition entries differ from primary", types.ErrPartitionTableCorrupt))
		}
	}
	return errs
}
