package edit

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-gpt/pkg/app"
	"github.com/deploymenttheory/go-gpt/pkg/gpt"
)

// Action names reported in a Response
const (
	ActionInit   = "init"
	ActionAdd    = "add"
	ActionDelete = "delete"
)

// InitRequest writes an empty partition table, creating the image when Size is set
type InitRequest struct {
	Target   app.DiskTarget
	Size     string
	DiskGUID string
}

// AddRequest appends a partition in the first free region that fits
type AddRequest struct {
	Target     app.DiskTarget
	Type       string
	Name       string
	Size       string
	Attributes []string
}

// DeleteRequest removes the partition at Index
type DeleteRequest struct {
	Target app.DiskTarget
	Index  int
}

// Response describes the table written by an edit
type Response struct {
	Action     string            `json:"action" yaml:"action"`
	Path       string            `json:"path" yaml:"path"`
	DiskGUID   string            `json:"disk_guid" yaml:"disk_guid"`
	Partition  *PartitionSummary `json:"partition,omitempty" yaml:"partition,omitempty"`
	Partitions int               `json:"partitions" yaml:"partitions"`
}

// PartitionSummary is the partition an edit added or removed
type PartitionSummary struct {
	Name      string `json:"name" yaml:"name"`
	Type      string `json:"type" yaml:"type"`
	GUID      string `json:"guid" yaml:"guid"`
	FirstLBA  uint64 `json:"first_lba" yaml:"first_lba"`
	LastLBA   uint64 `json:"last_lba" yaml:"last_lba"`
	SizeBytes uint64 `json:"size_bytes" yaml:"size_bytes"`
}

func (r *InitRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return err
	}
	if r.DiskGUID != "" {
		if _, err := uuid.Parse(r.DiskGUID); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("invalid disk GUID %q", r.DiskGUID), err)
		}
	}
	_, err := app.ParseSize(r.Size)
	return err
}

func (r *AddRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return err
	}
	if _, err := gpt.ParsePartitionType(r.Type); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid partition type", err)
	}
	if _, err := ParseAttributes(r.Attributes); err != nil {
		return err
	}
	_, err := app.ParseSize(r.Size)
	return err
}

func (r *DeleteRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return err
	}
	if r.Index < 0 {
		return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("invalid partition index %d", r.Index), nil)
	}
	return nil
}

var attributeNames = map[string]gpt.PartitionAttributes{
	"required":             gpt.AttrRequiredPartition,
	"no-block-io":          gpt.AttrNoBlockIOProtocol,
	"legacy-bios-bootable": gpt.AttrLegacyBIOSBootable,
}

// ParseAttributes turns attribute names into partition attribute bits.
// Each element may itself hold a comma separated list.
func ParseAttributes(names []string) (gpt.PartitionAttributes, error) {
	var attrs gpt.PartitionAttributes
	for _, n := range names {
		for _, name := range strings.Split(n, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			bit, ok := attributeNames[name]
			if !ok {
				return 0, app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("unknown partition attribute %q", name), nil)
			}
			attrs |= bit
		}
	}
	return attrs, nil
}

func summarize(p gpt.Partition, lbs gpt.LogicalBlockSize) *PartitionSummary {
	return &PartitionSummary{
		Name:      p.Name,
		Type:      p.TypeName(),
		GUID:      p.PartGUID.String(),
		FirstLBA:  p.FirstLBA,
		LastLBA:   p.LastLBA,
		SizeBytes: p.Bytes(lbs),
	}
}
