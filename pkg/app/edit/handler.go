package edit

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-gpt/pkg/app"
	"github.com/deploymenttheory/go-gpt/pkg/gpt"
)

// HandleInit writes a new, empty partition table. With a size the image file is
// created (or truncated) first; otherwise the existing file is reused and any
// table on it is ignored.
func HandleInit(ctx *app.Context, req *InitRequest) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	size, _ := app.ParseSize(req.Size)

	var (
		disk *gpt.Disk
		err  error
	)
	if size > 0 {
		ctx.Log(fmt.Sprintf("Creating %d byte image %s", size, req.Target.Path))
		disk, err = gpt.Create(req.Target.Path, int64(size), ctx.DiskConfig(true, false))
	} else {
		disk, err = gpt.Open(req.Target.Path, ctx.DiskConfig(true, false))
	}
	if err != nil {
		return nil, app.WrapDiskError("failed to open disk", err)
	}
	defer disk.Close()

	if req.DiskGUID != "" {
		guid := uuid.MustParse(req.DiskGUID)
		if err := disk.UpdateGUID(&guid); err != nil {
			return nil, app.WrapDiskError("failed to set disk GUID", err)
		}
	}
	if err := disk.UpdatePartitions(nil); err != nil {
		return nil, app.WrapDiskError("failed to build partition table", err)
	}

	resp := &Response{Action: ActionInit, Path: disk.Path(), DiskGUID: disk.GUID().String()}
	if err := commit(ctx, disk); err != nil {
		return nil, err
	}
	return resp, nil
}

// HandleAdd appends a partition to an existing table
func HandleAdd(ctx *app.Context, req *AddRequest) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	typeGUID, _ := gpt.ParsePartitionType(req.Type)
	attrs, _ := ParseAttributes(req.Attributes)
	size, _ := app.ParseSize(req.Size)

	disk, err := gpt.Open(req.Target.Path, ctx.DiskConfig(true, true))
	if err != nil {
		return nil, app.WrapDiskError("failed to open disk", err)
	}
	defer disk.Close()

	p, err := disk.NewPartition(typeGUID, req.Name, size, attrs)
	if err != nil {
		return nil, app.WrapDiskError("failed to add partition", err)
	}
	ctx.Log(fmt.Sprintf("Placed partition %q at LBA %d-%d", p.Name, p.FirstLBA, p.LastLBA))

	resp := &Response{
		Action:     ActionAdd,
		Path:       disk.Path(),
		DiskGUID:   disk.GUID().String(),
		Partition:  summarize(p, disk.BlockSize()),
		Partitions: len(disk.Partitions()),
	}
	if err := commit(ctx, disk); err != nil {
		return nil, err
	}
	return resp, nil
}

// HandleDelete removes one partition from an existing table
func HandleDelete(ctx *app.Context, req *DeleteRequest) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	disk, err := gpt.Open(req.Target.Path, ctx.DiskConfig(true, true))
	if err != nil {
		return nil, app.WrapDiskError("failed to open disk", err)
	}
	defer disk.Close()

	if n := len(disk.Partitions()); req.Index >= n {
		return nil, app.NewError(app.ErrCodeNotFound, fmt.Sprintf("no partition at index %d (table has %d)", req.Index, n), nil)
	}
	p, err := disk.DeletePartition(req.Index)
	if err != nil {
		return nil, app.WrapDiskError("failed to delete partition", err)
	}

	resp := &Response{
		Action:     ActionDelete,
		Path:       disk.Path(),
		DiskGUID:   disk.GUID().String(),
		Partition:  summarize(p, disk.BlockSize()),
		Partitions: len(disk.Partitions()),
	}
	if err := commit(ctx, disk); err != nil {
		return nil, err
	}
	return resp, nil
}

// commit writes the table and closes the handle Write hands back.
func commit(ctx *app.Context, disk *gpt.Disk) error {
	ctx.Progress("Writing partition table...", 50)
	f, err := disk.Write()
	if err != nil {
		return app.WrapDiskError("failed to write partition table", err)
	}
	if err := f.Close(); err != nil {
		return app.WrapDiskError("failed to close disk", err)
	}
	ctx.Progress("Complete", 100)
	return nil
}
