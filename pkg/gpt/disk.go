package gpt

import (
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-gpt/internal/device"
	"github.com/deploymenttheory/go-gpt/internal/interfaces"
	"github.com/deploymenttheory/go-gpt/internal/parsers/mbr"
	"github.com/deploymenttheory/go-gpt/internal/services"
	"github.com/deploymenttheory/go-gpt/internal/types"
)

// partitionAlignmentBytes is the boundary new partitions start on.
const partitionAlignmentBytes = 1 << 20

// Disk is one session against a disk image or block device. It is not safe for
// concurrent use, and only one writable session should exist per device.
type Disk struct {
	cfg      Config
	image    *device.Image
	svc      services.PartitionTableService
	state    *services.DiskState
	damage   []CopyDamage
	log      logrus.FieldLogger
	consumed bool
}

// Compile-time check
var _ interfaces.PartitionTableReader = (*Disk)(nil)

// Open opens the disk at path.
func Open(path string, cfg Config) (*Disk, error) {
	cfg = cfg.withDefaults()
	if err := cfg.BlockSize.Validate(); err != nil {
		return nil, err
	}

	image, err := device.Open(cfg.Fs, path, cfg.Writable)
	if err != nil {
		return nil, err
	}

	d, err := newDisk(image, cfg)
	if err != nil {
		image.Close()
		return nil, err
	}
	return d, nil
}

// Create creates a blank image file of size bytes and opens it writable and uninitialized.
func Create(path string, size int64, cfg Config) (*Disk, error) {
	cfg = cfg.withDefaults()
	if err := cfg.BlockSize.Validate(); err != nil {
		return nil, err
	}
	cfg.Writable = true
	cfg.Initialized = false

	image, err := device.Create(cfg.Fs, path, size)
	if err != nil {
		return nil, err
	}

	d, err := newDisk(image, cfg)
	if err != nil {
		image.Close()
		return nil, err
	}
	return d, nil
}

func newDisk(image *device.Image, cfg Config) (*Disk, error) {
	log := cfg.Logger.WithField("path", image.Path())
	svc, err := services.NewPartitionTableService(image, cfg.BlockSize, log)
	if err != nil {
		return nil, err
	}

	d := &Disk{cfg: cfg, image: image, svc: svc, log: log}

	if !cfg.Initialized {
		guid, err := uuid.NewRandomFromReader(cfg.Rand)
		if err != nil {
			return nil, fmt.Errorf("draw disk GUID: %w", err)
		}
		d.state = &services.DiskState{GUID: guid, Writable: cfg.Writable}
		log.WithField("disk_guid", guid).Debug("opened uninitialized disk")
		return d, nil
	}

	state, damage, err := svc.Load(cfg.Recover)
	if err != nil {
		return nil, err
	}
	state.Writable = cfg.Writable
	d.state, d.damage = state, damage
	return d, nil
}

func (d *Disk) check() error {
	if d.consumed {
		return ErrSessionClosed
	}
	return nil
}

// PrimaryHeader returns a copy of the primary header, nil when absent or damaged.
func (d *Disk) PrimaryHeader() *Header {
	if d.state.Primary == nil {
		return nil
	}
	h := *d.state.Primary
	return &h
}

// BackupHeader returns a copy of the backup header, nil when absent or damaged.
func (d *Disk) BackupHeader() *Header {
	if d.state.Backup == nil {
		return nil
	}
	h := *d.state.Backup
	return &h
}

// Partitions returns a copy of the used partition entries in on-disk order.
func (d *Disk) Partitions() []Partition {
	return d.state.ClonePartitions()
}

// GUID returns the disk GUID.
func (d *Disk) GUID() uuid.UUID {
	return d.state.GUID
}

// BlockSize returns the logical block size the session was opened with.
func (d *Disk) BlockSize() LogicalBlockSize {
	return d.cfg.BlockSize
}

// Path returns the path of the backing file.
func (d *Disk) Path() string {
	return d.image.Path()
}

// Writable reports whether the backing file was opened read-write.
func (d *Disk) Writable() bool {
	return d.cfg.Writable
}

// Initialized reports whether the session holds a partition table.
func (d *Disk) Initialized() bool {
	return d.state.Initialized()
}

// Damaged lists the table copies skipped on open. It is only ever non-empty when
// Config.Recover was set.
func (d *Disk) Damaged() []CopyDamage {
	return slices.Clone(d.damage)
}

// ProtectiveMBR reads sector 0 from storage.
func (d *Disk) ProtectiveMBR() (interfaces.ProtectiveMBRReader, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	sector := make([]byte, types.MBRSize)
	if _, err := d.image.ReadAt(sector, 0); err != nil {
		return nil, fmt.Errorf("%w: read boot sector: %w", ErrIO, err)
	}
	return mbr.NewProtectiveMBRReader(sector)
}

// Size returns the size of the backing storage in bytes.
func (d *Disk) Size() (int64, error) {
	return d.image.Size()
}

// rebuild replaces both headers and the partition list in one step.
func (d *Disk) rebuild(guid uuid.UUID, parts []Partition) error {
	primary, backup, err := d.svc.Rebuild(guid, parts)
	if err != nil {
		return err
	}
	d.state.GUID = guid
	d.state.Partitions = slices.Clone(parts)
	d.state.Primary, d.state.Backup = primary, backup
	return nil
}

// UpdateGUID replaces the disk GUID. A nil guid draws a new one from Config.Rand.
// Existing headers are rebuilt with the new GUID.
func (d *Disk) UpdateGUID(guid *uuid.UUID) error {
	if err := d.check(); err != nil {
		return err
	}
	next := uuid.Nil
	if guid != nil {
		next = *guid
	} else {
		g, err := uuid.NewRandomFromReader(d.cfg.Rand)
		if err != nil {
			return fmt.Errorf("draw disk GUID: %w", err)
		}
		next = g
	}

	if !d.state.Initialized() {
		d.state.GUID = next
		return nil
	}
	return d.rebuild(next, d.state.Partitions)
}

// UpdatePartitions replaces the partition list and rebuilds both headers. The
// list is validated against the usable range; on failure the session is unchanged.
func (d *Disk) UpdatePartitions(parts []Partition) error {
	if err := d.check(); err != nil {
		return err
	}
	if err := d.rebuild(d.state.GUID, parts); err != nil {
		return err
	}
	d.log.WithField("partitions", len(parts)).Debug("partition table rebuilt")
	return nil
}

// UsableRange returns the first and last LBA a partition may occupy.
func (d *Disk) UsableRange() (uint64, uint64, error) {
	if h := d.state.Primary; h != nil {
		return h.FirstUsableLBA, h.LastUsableLBA, nil
	}
	if h := d.state.Backup; h != nil {
		return h.FirstUsableLBA, h.LastUsableLBA, nil
	}
	primary, _, err := d.svc.Rebuild(d.state.GUID, nil)
	if err != nil {
		return 0, 0, err
	}
	return primary.FirstUsableLBA, primary.LastUsableLBA, nil
}

// NewPartition places a partition of the given size in the first free region
// that fits, starting on a 1MiB boundary, and appends it. sizeBytes of zero
// takes the whole of the first free region.
func (d *Disk) NewPartition(typeGUID uuid.UUID, name string, sizeBytes uint64, flags PartitionAttributes) (Partition, error) {
	if err := d.check(); err != nil {
		return Partition{}, err
	}
	first, last, err := d.UsableRange()
	if err != nil {
		return Partition{}, err
	}

	lbs := uint64(d.cfg.BlockSize)
	align := uint64(1)
	if partitionAlignmentBytes > lbs {
		align = partitionAlignmentBytes / lbs
	}
	sectors := d.cfg.BlockSize.Sectors(sizeBytes)

	used := d.state.ClonePartitions()
	sort.Slice(used, func(i, j int) bool { return used[i].FirstLBA < used[j].FirstLBA })

	// walk the gaps between used partitions in LBA order
	start := first
	var placed *Partition
	for i := 0; i <= len(used); i++ {
		end := last
		if i < len(used) {
			end = used[i].FirstLBA - 1
		}
		s := (start + align - 1) / align * align
		if s <= end {
			if sectors == 0 {
				placed = &Partition{FirstLBA: s, LastLBA: end}
				break
			}
			if end-s+1 >= sectors {
				placed = &Partition{FirstLBA: s, LastLBA: s + sectors - 1}
				break
			}
		}
		if i < len(used) && used[i].LastLBA+1 > start {
			start = used[i].LastLBA + 1
		}
	}
	if placed == nil {
		return Partition{}, fmt.Errorf("%w: no free region of %d sectors", ErrPartitionTableCorrupt, sectors)
	}

	partGUID, err := uuid.NewRandomFromReader(d.cfg.Rand)
	if err != nil {
		return Partition{}, fmt.Errorf("draw partition GUID: %w", err)
	}
	placed.TypeGUID = typeGUID
	placed.PartGUID = partGUID
	placed.Name = name
	placed.Flags = flags

	if err := d.UpdatePartitions(append(d.state.ClonePartitions(), *placed)); err != nil {
		return Partition{}, err
	}
	return *placed, nil
}

// DeletePartition removes the partition at index (as returned by Partitions).
func (d *Disk) DeletePartition(index int) (Partition, error) {
	if err := d.check(); err != nil {
		return Partition{}, err
	}
	if index < 0 || index >= len(d.state.Partitions) {
		return Partition{}, fmt.Errorf("partition index %d out of range [0, %d)", index, len(d.state.Partitions))
	}
	removed := d.state.Partitions[index]
	parts := slices.Delete(d.state.ClonePartitions(), index, index+1)
	if err := d.UpdatePartitions(parts); err != nil {
		return Partition{}, err
	}
	return removed, nil
}

// Verify re-reads both table copies from storage and reports every problem found.
func (d *Disk) Verify() error {
	if err := d.check(); err != nil {
		return err
	}
	return d.svc.Verify()
}

// Write persists the partition table: the protective MBR when missing, then the
// backup array and header, then the primary array and header, then a flush. On
// success the session is consumed and the caller owns the returned handle.
func (d *Disk) Write() (afero.File, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if err := d.svc.Persist(d.state); err != nil {
		return nil, err
	}
	d.consumed = true
	d.damage = nil
	return d.image.File, nil
}

// Close releases the backing handle unless Write already handed it to the caller.
func (d *Disk) Close() error {
	if d.consumed {
		return nil
	}
	d.consumed = true
	return d.image.Close()
}
