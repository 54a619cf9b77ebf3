package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deploymenttheory/go-gpt/internal/backup"
	"github.com/deploymenttheory/go-gpt/internal/device"
	"github.com/deploymenttheory/go-gpt/pkg/app"
)

// HandleBackup reads the partition table metadata of a disk and stores it as a
// compressed, digest-protected archive.
func HandleBackup(ctx *app.Context, req *BackupRequest) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	image, err := device.Open(ctx.Fs, req.Target.Path, false)
	if err != nil {
		return nil, app.WrapDiskError("failed to open disk", err)
	}
	defer image.Close()

	ctx.Progress("Capturing partition table...", 20)
	a, err := backup.Capture(image, ctx.BlockSize)
	if err != nil {
		return nil, app.WrapDiskError("failed to capture partition table", err)
	}

	path := req.ArchivePath(ctx.BackupDir)
	if err := ctx.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, app.NewError(app.ErrCodeDiskAccess, "failed to create backup directory", err)
	}
	f, err := ctx.Fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, app.NewError(app.ErrCodeDiskAccess, "failed to create archive", err)
	}
	defer f.Close()

	ctx.Progress("Writing archive...", 60)
	n, err := a.WriteTo(f)
	if err != nil {
		return nil, app.NewError(app.ErrCodeDiskAccess, "failed to write archive", err)
	}
	if err := f.Sync(); err != nil {
		return nil, app.NewError(app.ErrCodeDiskAccess, "failed to flush archive", err)
	}
	ctx.Log(fmt.Sprintf("Wrote %d byte archive %s", n, path))
	ctx.Progress("Complete", 100)

	resp := describe("backup", req.Target.Path, path, a)
	resp.ArchiveBytes = n
	return resp, nil
}

// HandleRestore writes an archived partition table back to a disk. The disk must
// be at least as large as the one the archive was taken from.
func HandleRestore(ctx *app.Context, req *RestoreRequest) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	f, err := ctx.Fs.Open(req.Input)
	if err != nil {
		return nil, app.NewError(app.ErrCodeNotFound, "failed to open archive", err)
	}
	defer f.Close()

	ctx.Progress("Reading archive...", 20)
	a, err := backup.Read(f)
	if err != nil {
		return nil, app.WrapDiskError("failed to read archive", err)
	}
	if a.BlockSize != ctx.BlockSize {
		ctx.Logger.WithField("archive_block_size", a.BlockSize).
			Warn("using the archived block size instead of the configured one")
	}

	image, err := device.Open(ctx.Fs, req.Target.Path, true)
	if err != nil {
		return nil, app.WrapDiskError("failed to open disk", err)
	}
	defer image.Close()

	ctx.Progress("Restoring partition table...", 60)
	if err := backup.Restore(image, a, ctx.Logger.WithField("path", req.Target.Path)); err != nil {
		return nil, app.WrapDiskError("failed to restore partition table", err)
	}
	ctx.Progress("Complete", 100)

	return describe("restore", req.Target.Path, req.Input, a), nil
}

func describe(action, diskPath, archivePath string, a *backup.Archive) *Response {
	return &Response{
		Action:      action,
		DiskPath:    diskPath,
		ArchivePath: archivePath,
		DiskGUID:    a.DiskGUID.String(),
		BlockSize:   uint64(a.BlockSize),
		DiskBytes:   a.Size(),
		Regions:     len(a.Regions),
	}
}
