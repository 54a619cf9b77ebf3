package archive

import (
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/go-gpt/pkg/app"
)

// Extension is the file extension of partition table archives
const Extension = ".gptbak"

// BackupRequest captures the partition table of a disk into an archive file
type BackupRequest struct {
	Target app.DiskTarget
	// Output is the archive path. Empty means <backup dir>/<disk name>.gptbak.
	Output string
}

// RestoreRequest writes an archived partition table back to a disk
type RestoreRequest struct {
	Target app.DiskTarget
	Input  string
}

// Response describes an archive written or restored
type Response struct {
	Action       string `json:"action" yaml:"action"`
	DiskPath     string `json:"disk_path" yaml:"disk_path"`
	ArchivePath  string `json:"archive_path" yaml:"archive_path"`
	DiskGUID     string `json:"disk_guid" yaml:"disk_guid"`
	BlockSize    uint64 `json:"block_size" yaml:"block_size"`
	DiskBytes    uint64 `json:"disk_bytes" yaml:"disk_bytes"`
	Regions      int    `json:"regions" yaml:"regions"`
	ArchiveBytes int64  `json:"archive_bytes,omitempty" yaml:"archive_bytes,omitempty"`
}

func (r *BackupRequest) Validate() error {
	return r.Target.Validate()
}

// ArchivePath resolves where the archive is written
func (r *BackupRequest) ArchivePath(backupDir string) string {
	if r.Output != "" {
		return r.Output
	}
	if backupDir == "" {
		backupDir = "."
	}
	name := strings.TrimSuffix(filepath.Base(r.Target.Path), filepath.Ext(r.Target.Path))
	return filepath.Join(backupDir, name+Extension)
}

func (r *RestoreRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Input) == "" {
		return app.NewError(app.ErrCodeInvalidInput, "archive path is required", nil)
	}
	return nil
}
