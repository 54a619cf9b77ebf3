package inspect

import (
	"github.com/deploymenttheory/go-gpt/pkg/app"
	"github.com/deploymenttheory/go-gpt/pkg/gpt"
)

// View selects what a response renders in table form
type View string

const (
	ViewShow   View = "show"
	ViewList   View = "list"
	ViewVerify View = "verify"
)

// Request represents a read-only inspection of a disk
type Request struct {
	Target app.DiskTarget
	View   View
}

// Response represents the decoded partition table of a disk
type Response struct {
	View       View            `json:"-" yaml:"-"`
	Disk       DiskInfo        `json:"disk" yaml:"disk"`
	Primary    *gpt.Header     `json:"primary_header,omitempty" yaml:"primary_header,omitempty"`
	Backup     *gpt.Header     `json:"backup_header,omitempty" yaml:"backup_header,omitempty"`
	Partitions []PartitionInfo `json:"partitions" yaml:"partitions"`
	Damaged    []string        `json:"damaged,omitempty" yaml:"damaged,omitempty"`
	Problems   []string        `json:"problems,omitempty" yaml:"problems,omitempty"`
	Verified   bool            `json:"verified,omitempty" yaml:"verified,omitempty"`
}

// DiskInfo describes the disk as a whole
type DiskInfo struct {
	Path        string `json:"path" yaml:"path"`
	GUID        string `json:"guid" yaml:"guid"`
	BlockSize   uint64 `json:"block_size" yaml:"block_size"`
	SizeBytes   uint64 `json:"size_bytes" yaml:"size_bytes"`
	UsableFirst uint64 `json:"usable_first_lba" yaml:"usable_first_lba"`
	UsableLast  uint64 `json:"usable_last_lba" yaml:"usable_last_lba"`
	FreeSectors uint64 `json:"free_sectors" yaml:"free_sectors"`

	ProtectiveMBR     bool   `json:"protective_mbr" yaml:"protective_mbr"`
	MBRCoveredSectors uint64 `json:"mbr_covered_sectors" yaml:"mbr_covered_sectors"`
}

// PartitionInfo is one partition prepared for display
type PartitionInfo struct {
	Index      int    `json:"index" yaml:"index"`
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	TypeGUID   string `json:"type_guid" yaml:"type_guid"`
	GUID       string `json:"guid" yaml:"guid"`
	FirstLBA   uint64 `json:"first_lba" yaml:"first_lba"`
	LastLBA    uint64 `json:"last_lba" yaml:"last_lba"`
	SizeBytes  uint64 `json:"size_bytes" yaml:"size_bytes"`
	Attributes string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Validate validates an inspection request
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return err
	}
	switch r.View {
	case ViewShow, ViewList, ViewVerify:
		return nil
	default:
		return app.NewError(app.ErrCodeInvalidInput, "unknown view "+string(r.View), nil)
	}
}
