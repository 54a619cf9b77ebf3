package mbr

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-gpt/internal/types"
)

func TestDecodeRejectsMissingSignature(t *testing.T) {
	tests := []struct {
		name string
		tail [2]byte
	}{
		{"zeroed", [2]byte{0x00, 0x00}},
		{"swapped", [2]byte{0xAA, 0x55}},
		{"first byte only", [2]byte{0x55, 0x00}},
		{"second byte only", [2]byte{0x00, 0xAA}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sector := Encode(NewProtective(2048))
			sector[510], sector[511] = tt.tail[0], tt.tail[1]

			_, err := Decode(sector)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrInvalidSignature), "got %v", err)
		})
	}
}

func TestDecodeShortSector(t *testing.T) {
	_, err := Decode(make([]byte, 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPartitionTableCorrupt)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := NewProtective(20480)
	m.UniqueMBRSignature = 0x12345678
	m.BootCode[0] = 0xEB
	m.BootCode[439] = 0x90

	sector := Encode(m)
	require.Len(t, sector, types.MBRSize)
	assert.Equal(t, byte(0x55), sector[510])
	assert.Equal(t, byte(0xAA), sector[511])

	got, err := Decode(sector)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestEncodeAlwaysEmitsSignature(t *testing.T) {
	m := &types.ProtectiveMBR{}
	sector := Encode(m)
	assert.Equal(t, []byte{0x55, 0xAA}, sector[510:512])
}

func TestNewProtectiveSizing(t *testing.T) {
	tests := []struct {
		name    string
		sectors uint64
		want    uint32
	}{
		{"10MiB image", 20480, 20479},
		{"exact 32-bit limit", 0x100000000, 0xFFFFFFFF},
		{"larger than 2TiB", 0x200000000, 0xFFFFFFFF},
		{"single sector", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewProtective(tt.sectors)
			rec := m.PartitionRecords[0]
			assert.Equal(t, types.OSTypeGPTProtective, rec.OSType)
			assert.Equal(t, uint32(1), rec.StartingLBA)
			assert.Equal(t, tt.want, rec.SizeInLBA)
			assert.True(t, m.HasProtectiveRecord())
		})
	}
}

func TestProtectiveMBRReader(t *testing.T) {
	reader, err := NewProtectiveMBRReader(Encode(NewProtective(4096)))
	require.NoError(t, err)

	assert.True(t, reader.IsProtective())
	assert.Equal(t, uint64(4095), reader.CoveredSectors())
	rec, ok := reader.ProtectiveRecord()
	require.True(t, ok)
	assert.Equal(t, uint32(1), rec.StartingLBA)

	// Legacy MBR with a signature but no 0xEE record
	legacy := Encode(&types.ProtectiveMBR{})
	legacy[446+4] = 0x83
	reader, err = NewProtectiveMBRReader(legacy)
	require.NoError(t, err)
	assert.False(t, reader.IsProtective())
	assert.Equal(t, uint64(0), reader.CoveredSectors())
}

func TestReadWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := fs.Create("disk.img")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(4096))

	m := NewProtective(8)
	require.NoError(t, Write(f, m))

	got, err := ReadProtective(f)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got.PartitionRecords[0].SizeInLBA)
}

func TestReadProtectiveRejectsLegacyMBR(t *testing.T) {
	legacy := Encode(&types.ProtectiveMBR{})
	_, err := ReadProtective(bytes.NewReader(legacy))
	assert.ErrorIs(t, err, types.ErrInvalidSignature)

	_, err = Read(bytes.NewReader(make([]byte, 10)))
	assert.ErrorIs(t, err, types.ErrIO)
}
