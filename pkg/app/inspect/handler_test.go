package inspect

import (
	"bytes"
	"math/rand"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-gpt/pkg/app"
	"github.com/deploymenttheory/go-gpt/pkg/gpt"
)

const diskSize = 10 << 20

func newTestContext() (*app.Context, *bytes.Buffer) {
	logger, _ := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	out := &bytes.Buffer{}
	ctx := app.NewContext()
	ctx.Out = out
	ctx.Logger = logger
	ctx.Fs = afero.NewMemMapFs()
	ctx.Rand = rand.New(rand.NewSource(7))
	return ctx, out
}

func writeDisk(t *testing.T, ctx *app.Context, path string) {
	t.Helper()
	d, err := gpt.Create(path, diskSize, ctx.DiskConfig(true, false))
	require.NoError(t, err)
	esp, err := gpt.ParsePartitionType("esp")
	require.NoError(t, err)
	_, err = d.NewPartition(esp, "EFI System", 1<<20, gpt.AttrRequiredPartition)
	require.NoError(t, err)
	linux, err := gpt.ParsePartitionType("linux")
	require.NoError(t, err)
	_, err = d.NewPartition(linux, "root", 0, 0)
	require.NoError(t, err)
	f, err := d.Write()
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestHandleShow(t *testing.T) {
	ctx, _ := newTestContext()
	writeDisk(t, ctx, "disk.img")

	var steps []int
	ctx.SetProgress(func(_ string, percent int) { steps = append(steps, percent) })

	resp, err := Handle(ctx, &Request{Target: app.DiskTarget{Path: "disk.img"}, View: ViewShow})
	require.NoError(t, err)

	assert.Equal(t, "disk.img", resp.Disk.Path)
	assert.Equal(t, uint64(512), resp.Disk.BlockSize)
	assert.Equal(t, uint64(diskSize), resp.Disk.SizeBytes)
	assert.Equal(t, uint64(34), resp.Disk.UsableFirst)
	assert.Equal(t, uint64(20446), resp.Disk.UsableLast)
	require.NotNil(t, resp.Primary)
	require.NotNil(t, resp.Backup)
	assert.Equal(t, resp.Primary.DiskGUID.String(), resp.Disk.GUID)

	require.Len(t, resp.Partitions, 2)
	assert.Equal(t, "EFI System", resp.Partitions[0].Name)
	assert.Equal(t, "EFI System partition", resp.Partitions[0].Type)
	assert.Equal(t, uint64(2048), resp.Partitions[0].FirstLBA)
	assert.Equal(t, uint64(1<<20), resp.Partitions[0].SizeBytes)
	assert.Equal(t, "root", resp.Partitions[1].Name)
	assert.Equal(t, uint64(20446), resp.Partitions[1].LastLBA)

	// 34..2047 stay free in front of the first partition
	assert.Equal(t, uint64(2048-34), resp.Disk.FreeSectors)
	assert.True(t, resp.Disk.ProtectiveMBR)
	assert.Equal(t, uint64(diskSize/512-1), resp.Disk.MBRCoveredSectors)
	assert.Empty(t, resp.Damaged)
	assert.Equal(t, []int{10, 100}, steps)
}

func TestHandleVerify(t *testing.T) {
	ctx, _ := newTestContext()
	writeDisk(t, ctx, "disk.img")

	resp, err := Handle(ctx, &Request{Target: app.DiskTarget{Path: "disk.img"}, View: ViewVerify})
	require.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Empty(t, resp.Problems)
}

func TestHandleVerifyDamagedBackup(t *testing.T) {
	ctx, _ := newTestContext()
	writeDisk(t, ctx, "disk.img")

	// clobber the backup header in the last sector
	f, err := ctx.Fs.OpenFile("disk.img", os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt(bytes.Repeat([]byte{0xA5}, 512), diskSize-512)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Handle(ctx, &Request{Target: app.DiskTarget{Path: "disk.img"}, View: ViewVerify})
	require.Error(t, err)
	var ce *app.CommonError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, app.ErrCodeCorrupt, ce.Code)

	ctx.Recover = true
	resp, err := Handle(ctx, &Request{Target: app.DiskTarget{Path: "disk.img"}, View: ViewVerify})
	require.NoError(t, err)
	assert.False(t, resp.Verified)
	assert.NotEmpty(t, resp.Problems)
	require.Len(t, resp.Damaged, 1)
	assert.Contains(t, resp.Damaged[0], "backup")
	assert.Nil(t, resp.Backup)
	assert.Len(t, resp.Partitions, 2)
}

func TestHandleErrors(t *testing.T) {
	ctx, _ := newTestContext()

	_, err := Handle(ctx, &Request{View: ViewShow})
	require.Error(t, err)

	_, err = Handle(ctx, &Request{Target: app.DiskTarget{Path: "missing.img"}, View: ViewList})
	var ce *app.CommonError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, app.ErrCodeDiskAccess, ce.Code)
}
