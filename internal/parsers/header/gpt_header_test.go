package header

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-gpt/internal/parsers/checksum"
	"github.com/deploymenttheory/go-gpt/internal/parsers/partitions"
	"github.com/deploymenttheory/go-gpt/internal/types"
)

var testDiskGUID = uuid.MustParse("A0B1C2D3-E4F5-4607-8899-AABBCCDDEEFF")

func testPartitions() []types.Partition {
	return []types.Partition{
		{
			TypeGUID: types.PartitionTypeEFISystem,
			PartGUID: uuid.MustParse("01234567-89AB-4CDE-8F01-23456789ABCD"),
			FirstLBA: 2048,
			LastLBA:  4095,
			Name:     "EFI",
		},
		{
			TypeGUID: types.PartitionTypeLinuxFS,
			PartGUID: uuid.MustParse("FEDCBA98-7654-4321-8FED-CBA987654321"),
			FirstLBA: 4096,
			LastLBA:  20000,
			Name:     "root",
		},
	}
}

// newImage returns an in-memory image of size bytes.
func newImage(t *testing.T, size int64) afero.File {
	t.Helper()
	f, err := afero.NewMemMapFs().Create("disk.img")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	return f
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		primary bool
		parts   []types.Partition
		backup  uint64
		lbs     types.LogicalBlockSize
	}{
		{"primary 512", true, testPartitions(), 20479, types.LB512},
		{"backup 512", false, testPartitions(), 20479, types.LB512},
		{"primary empty", true, nil, 20479, types.LB512},
		{"backup 4096", false, testPartitions(), 262143, types.LB4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ComputeNew(tt.primary, tt.parts, testDiskGUID, tt.backup, tt.lbs)
			require.NoError(t, err)

			raw, err := Encode(h, tt.lbs)
			require.NoError(t, err)
			require.Len(t, raw, int(tt.lbs))
			assert.True(t, bytes.Equal(raw[92:], make([]byte, int(tt.lbs)-92)), "padding must be zero")

			got, err := Decode(raw, h.MyLBA, tt.lbs)
			require.NoError(t, err)
			assert.Equal(t, h, got)
		})
	}
}

func TestEncodeDoesNotModifyHeader(t *testing.T) {
	h, err := ComputeNew(true, testPartitions(), testDiskGUID, 20479, types.LB512)
	require.NoError(t, err)
	h.HeaderCRC32 = 0xDEADBEEF
	before := *h

	raw, err := Encode(h, types.LB512)
	require.NoError(t, err)
	assert.Equal(t, before, *h)

	got, err := Decode(raw, 1, types.LB512)
	require.NoError(t, err)
	assert.NotEqual(t, uint32(0xDEADBEEF), got.HeaderCRC32, "emitted checksum matches emitted bytes")
}

func TestDecodeSingleBitFlipFailsChecksum(t *testing.T) {
	h, err := ComputeNew(true, testPartitions(), testDiskGUID, 20479, types.LB512)
	require.NoError(t, err)
	raw, err := Encode(h, types.LB512)
	require.NoError(t, err)

	for bit := 0; bit < int(types.HeaderSize)*8; bit++ {
		corrupt := append([]byte(nil), raw...)
		corrupt[bit/8] ^= 1 << (bit % 8)

		_, err := Decode(corrupt, 1, types.LB512)
		require.Error(t, err, "bit %d", bit)
		require.ErrorIs(t, err, types.ErrChecksumMismatch, "bit %d: %v", bit, err)
	}
}

func TestDecodeErrors(t *testing.T) {
	h, err := ComputeNew(true, nil, testDiskGUID, 20479, types.LB512)
	require.NoError(t, err)
	good, err := Encode(h, types.LB512)
	require.NoError(t, err)

	// rewrite re-stamps the checksum after mutating the raw header
	rewrite := func(mutate func(b []byte)) []byte {
		b := append([]byte(nil), good...)
		mutate(b)
		size := binary.LittleEndian.Uint32(b[12:16])
		if size < 92 || size > 512 {
			size = 92
		}
		binary.LittleEndian.PutUint32(b[16:20], checksum.HeaderCRC32(b, size))
		return b
	}

	tests := []struct {
		name        string
		raw         []byte
		expectedLBA uint64
		wantErr     error
	}{
		{"zeroed sector", make([]byte, 512), 1, types.ErrInvalidSignature},
		{"short buffer", good[:64], 1, types.ErrPartitionTableCorrupt},
		{"bad magic", rewrite(func(b []byte) { copy(b, "EFI FAKE") }), 1, types.ErrInvalidSignature},
		{"bad revision", rewrite(func(b []byte) { binary.LittleEndian.PutUint32(b[8:12], 0x00020000) }), 1, types.ErrInvalidSignature},
		{"header size too small", rewrite(func(b []byte) { binary.LittleEndian.PutUint32(b[12:16], 64) }), 1, types.ErrPartitionTableCorrupt},
		{"header size past sector", rewrite(func(b []byte) { binary.LittleEndian.PutUint32(b[12:16], 1024) }), 1, types.ErrPartitionTableCorrupt},
		{"wrong LBA", good, 2, types.ErrPartitionTableCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw, tt.expectedLBA, types.LB512)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestComputeNewMutualConsistency(t *testing.T) {
	for _, backup := range []uint64{67, 20479, 1 << 32} {
		for _, lbs := range []types.LogicalBlockSize{types.LB512, types.LB4096} {
			p, err := ComputeNew(true, testPartitions(), testDiskGUID, backup, lbs)
			require.NoError(t, err)
			b, err := ComputeNew(false, testPartitions(), testDiskGUID, backup, lbs)
			require.NoError(t, err)

			assert.Equal(t, p.AlternateLBA, b.MyLBA)
			assert.Equal(t, b.AlternateLBA, p.MyLBA)
			assert.NoError(t, CheckPair(p, b))

			// usable space never overlaps either array or header
			arraySectors := p.EntryArraySectors(lbs)
			assert.Equal(t, uint64(2), p.PartitionEntryLBA)
			assert.Greater(t, p.FirstUsableLBA, p.PartitionEntryLBA+arraySectors-1)
			assert.Less(t, b.LastUsableLBA, b.PartitionEntryLBA)
			assert.Equal(t, backup, b.PartitionEntryLBA+arraySectors)
			assert.LessOrEqual(t, p.FirstUsableLBA, p.LastUsableLBA)
		}
	}
}

func TestComputeNewGeometry512(t *testing.T) {
	p, err := ComputeNew(true, testPartitions(), testDiskGUID, 20479, types.LB512)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.MyLBA)
	assert.Equal(t, uint64(20479), p.AlternateLBA)
	assert.Equal(t, uint64(34), p.FirstUsableLBA)
	assert.Equal(t, uint64(20446), p.LastUsableLBA)
	assert.Equal(t, uint32(128), p.NumberOfPartitionEntries)
	assert.Equal(t, uint32(128), p.SizeOfPartitionEntry)

	raw, err := partitions.EncodeArray(testPartitions(), 128, 128)
	require.NoError(t, err)
	assert.Equal(t, checksum.CRC32(raw), p.PartitionEntryArrayCRC32)

	b, err := ComputeNew(false, testPartitions(), testDiskGUID, 20479, types.LB512)
	require.NoError(t, err)
	assert.Equal(t, uint64(20447), b.PartitionEntryLBA)
}

func TestComputeNewErrors(t *testing.T) {
	_, err := ComputeNew(true, nil, testDiskGUID, 39, types.LB512)
	assert.ErrorIs(t, err, types.ErrPartitionTableCorrupt, "disk too small for two arrays")

	tooLong := []types.Partition{{TypeGUID: types.PartitionTypeLinuxFS, Name: "0123456789012345678901234567890123456789"}}
	_, err = ComputeNew(true, tooLong, testDiskGUID, 20479, types.LB512)
	assert.ErrorIs(t, err, types.ErrPartitionTableCorrupt)
}

func TestEntryCount(t *testing.T) {
	assert.Equal(t, uint32(128), EntryCount(0))
	assert.Equal(t, uint32(128), EntryCount(128))
	assert.Equal(t, uint32(129), EntryCount(129))
}

func TestFindBackupLBA(t *testing.T) {
	tests := []struct {
		name    string
		size    int64
		lbs     types.LogicalBlockSize
		want    uint64
		wantErr bool
	}{
		{"20480 bytes at 512", 20480, types.LB512, 39, false},
		{"10MiB at 512", 10 << 20, types.LB512, 20479, false},
		{"10MiB at 4096", 10 << 20, types.LB4096, 2559, false},
		{"partial trailing block", 20480 + 100, types.LB512, 39, false},
		{"minimum size", 2048, types.LB512, 3, false},
		{"too small", 1536, types.LB512, 0, true},
		{"empty", 0, types.LB512, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newImage(t, tt.size)
			_, err := f.Seek(7, 0)
			require.NoError(t, err)

			got, err := FindBackupLBA(f, tt.lbs)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrIO)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			pos, err := f.Seek(0, 1)
			require.NoError(t, err)
			assert.Equal(t, int64(7), pos, "offset must be restored")
		})
	}
}

func TestWriteReadPrimaryAndBackup(t *testing.T) {
	f := newImage(t, 10<<20)

	backupLBA, err := FindBackupLBA(f, types.LB512)
	require.NoError(t, err)

	p, err := ComputeNew(true, testPartitions(), testDiskGUID, backupLBA, types.LB512)
	require.NoError(t, err)
	b, err := ComputeNew(false, testPartitions(), testDiskGUID, backupLBA, types.LB512)
	require.NoError(t, err)

	require.NoError(t, WriteBackup(f, b, types.LB512))
	require.NoError(t, WritePrimary(f, p, types.LB512))

	gotP, err := ReadPrimary(f, types.LB512)
	require.NoError(t, err)
	assert.Equal(t, p, gotP)

	gotB, err := ReadBackup(f, types.LB512)
	require.NoError(t, err)
	assert.Equal(t, b, gotB)

	assert.ErrorIs(t, WritePrimary(f, b, types.LB512), types.ErrPartitionTableCorrupt)
	assert.ErrorIs(t, WriteBackup(f, p, types.LB512), types.ErrPartitionTableCorrupt)
}

func TestCheckPairReportsEveryProblem(t *testing.T) {
	p, err := ComputeNew(true, testPartitions(), testDiskGUID, 20479, types.LB512)
	require.NoError(t, err)
	b, err := ComputeNew(false, nil, uuid.Nil, 20000, types.LB512)
	require.NoError(t, err)
	b.NumberOfPartitionEntries = 256

	err = CheckPair(p, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPartitionTableCorrupt)
	assert.ErrorIs(t, err, types.ErrChecksumMismatch)
	assert.Len(t, multierr.Errors(err), 5)
}
