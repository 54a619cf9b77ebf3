package backup

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-gpt/internal/services"
	"github.com/deploymenttheory/go-gpt/internal/types"
)

const testImageSize = 10 << 20

var testDiskGUID = uuid.MustParse("D1E2F3A4-B5C6-4D7E-8F90-A1B2C3D4E5F6")

func testPartitions() []types.Partition {
	return []types.Partition{{
		TypeGUID: types.PartitionTypeLinuxFS,
		PartGUID: uuid.MustParse("ABCDEF01-2345-4678-89AB-CDEF01234567"),
		FirstLBA: 2048,
		LastLBA:  20446,
		Name:     "data",
	}}
}

func newDevice(t *testing.T, size int64) afero.File {
	t.Helper()
	f, err := afero.NewMemMapFs().Create("disk.img")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	return f
}

func formattedDevice(t *testing.T) afero.File {
	t.Helper()
	dev := newDevice(t, testImageSize)
	logger, _ := logtest.NewNullLogger()
	svc, err := services.NewPartitionTableService(dev, types.LB512, logger)
	require.NoError(t, err)

	state := &services.DiskState{GUID: testDiskGUID, Partitions: testPartitions(), Writable: true}
	state.Primary, state.Backup, err = svc.Rebuild(state.GUID, state.Partitions)
	require.NoError(t, err)
	require.NoError(t, svc.Persist(state))
	return dev
}

func archiveBytes(t *testing.T, a *Archive) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := a.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	return buf.Bytes()
}

func TestCaptureRegions(t *testing.T) {
	a, err := Capture(formattedDevice(t), types.LB512)
	require.NoError(t, err)

	assert.Equal(t, uint64(20480), a.TotalSectors)
	assert.Equal(t, uint64(testImageSize), a.Size())
	assert.Equal(t, testDiskGUID, a.DiskGUID)

	var lbas []uint64
	for _, r := range a.Regions {
		lbas = append(lbas, r.LBA)
	}
	assert.Equal(t, []uint64{0, 1, 2, 20447, 20479}, lbas)
	assert.Len(t, a.Regions[2].Data, 32*512)

	primary, backup, err := a.Headers()
	require.NoError(t, err)
	assert.Equal(t, backup.MyLBA, primary.AlternateLBA)
}

func TestArchiveRoundTrip(t *testing.T) {
	a, err := Capture(formattedDevice(t), types.LB512)
	require.NoError(t, err)

	got, err := Read(bytes.NewReader(archiveBytes(t, a)))
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestReadRejectsTampering(t *testing.T) {
	a, err := Capture(formattedDevice(t), types.LB512)
	require.NoError(t, err)
	raw := archiveBytes(t, a)

	digest := append([]byte(nil), raw...)
	digest[0] ^= 0x01
	_, err = Read(bytes.NewReader(digest))
	assert.ErrorIs(t, err, types.ErrChecksumMismatch)

	stream := append([]byte(nil), raw...)
	stream[len(stream)-1] ^= 0xFF
	_, err = Read(bytes.NewReader(stream))
	assert.Error(t, err)

	_, err = Read(bytes.NewReader(raw[:10]))
	assert.ErrorIs(t, err, types.ErrIO)
}

func TestRestoreOntoBlankDevice(t *testing.T) {
	a, err := Capture(formattedDevice(t), types.LB512)
	require.NoError(t, err)
	restored, err := Read(bytes.NewReader(archiveBytes(t, a)))
	require.NoError(t, err)

	dev := newDevice(t, testImageSize)
	logger, hook := logtest.NewNullLogger()
	require.NoError(t, Restore(dev, restored, logger))
	assert.Equal(t, "restored partition table", hook.LastEntry().Message)

	svc, err := services.NewPartitionTableService(dev, types.LB512, logger)
	require.NoError(t, err)
	state, damage, err := svc.Load(false)
	require.NoError(t, err)
	assert.Empty(t, damage)
	assert.Equal(t, testDiskGUID, state.GUID)
	assert.Equal(t, testPartitions(), state.Partitions)
}

func TestRestoreRejectsSmallerDevice(t *testing.T) {
	a, err := Capture(formattedDevice(t), types.LB512)
	require.NoError(t, err)

	err = Restore(newDevice(t, testImageSize/2), a, nil)
	assert.ErrorIs(t, err, types.ErrPartitionTableCorrupt)
}

func TestRestoreRejectsDamagedArchive(t *testing.T) {
	a, err := Capture(formattedDevice(t), types.LB512)
	require.NoError(t, err)
	a.Regions[1].Data[40] ^= 0xFF

	err = Restore(newDevice(t, testImageSize), a, nil)
	assert.ErrorIs(t, err, types.ErrChecksumMismatch)
}

func TestCaptureBlankDevice(t *testing.T) {
	_, err := Capture(newDevice(t, testImageSize), types.LB512)
	assert.ErrorIs(t, err, types.ErrInvalidSignature)
}

func TestReadRejectsEmptyRegion(t *testing.T) {
	a := &Archive{
		BlockSize:    types.LB512,
		TotalSectors: 40,
		DiskGUID:     testDiskGUID,
		Regions:      []Region{{LBA: 1, Data: nil}},
	}

	_, err := Read(bytes.NewReader(archiveBytes(t, a)))
	assert.ErrorIs(t, err, types.ErrPartitionTableCorrupt)
}

func TestHeadersRejectShortRegions(t *testing.T) {
	tests := []struct {
		name    string
		archive *Archive
	}{
		{
			name:    "empty primary region",
			archive: &Archive{BlockSize: types.LB512, TotalSectors: 40, Regions: []Region{{LBA: 1}}},
		},
		{
			name:    "no sectors",
			archive: &Archive{BlockSize: types.LB512, Regions: []Region{{LBA: 1, Data: make([]byte, 512)}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, _, err := tt.archive.Headers()
				assert.ErrorIs(t, err, types.ErrPartitionTableCorrupt)
			})
		})
	}

	captured, err := Capture(formattedDevice(t), types.LB512)
	require.NoError(t, err)
	last := &captured.Regions[len(captured.Regions)-1]
	require.Equal(t, captured.TotalSectors-1, last.LBA)
	last.Data = last.Data[:100]
	assert.NotPanics(t, func() {
		_, _, err := captured.Headers()
		assert.ErrorIs(t, err, types.ErrPartitionTableCorrupt)
	})

	logger, _ := logtest.NewNullLogger()
	dev := newDevice(t, testImageSize)
	assert.ErrorIs(t, Restore(dev, tests[0].archive, logger), types.ErrPartitionTableCorrupt)
}
