package inspect

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-gpt/internal/interfaces"
	"github.com/deploymenttheory/go-gpt/pkg/app"
	"github.com/deploymenttheory/go-gpt/pkg/gpt"
)

// Handle processes an inspection request. The disk is always opened read-only.
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx.Log(fmt.Sprintf("Inspecting partition table of %s", req.Target.Path))
	ctx.Progress("Reading partition table...", 10)

	disk, err := gpt.Open(req.Target.Path, ctx.DiskConfig(false, true))
	if err != nil {
		return nil, app.WrapDiskError("failed to open disk", err)
	}
	defer disk.Close()

	resp := describe(disk)
	resp.View = req.View
	if boot, err := disk.ProtectiveMBR(); err == nil {
		resp.Disk.ProtectiveMBR = boot.IsProtective()
		resp.Disk.MBRCoveredSectors = boot.CoveredSectors()
	}
	for _, d := range disk.Damaged() {
		resp.Damaged = append(resp.Damaged, d.Error())
	}

	if req.View == ViewVerify {
		ctx.Progress("Verifying both table copies...", 60)
		for _, problem := range multierr.Errors(disk.Verify()) {
			resp.Problems = append(resp.Problems, problem.Error())
		}
		resp.Verified = len(resp.Problems) == 0
	}

	ctx.Progress("Complete", 100)
	ctx.Log(fmt.Sprintf("Found %d partitions", len(resp.Partitions)))
	return resp, nil
}

// describe builds a response from any partition table reader.
func describe(t interfaces.PartitionTableReader) *Response {
	lbs := t.BlockSize()
	resp := &Response{
		Primary: t.PrimaryHeader(),
		Backup:  t.BackupHeader(),
		Disk: DiskInfo{
			GUID:      t.GUID().String(),
			BlockSize: uint64(lbs),
		},
	}

	h := resp.Primary
	if h == nil {
		h = resp.Backup
	}
	if h != nil {
		resp.Disk.UsableFirst = h.FirstUsableLBA
		resp.Disk.UsableLast = h.LastUsableLBA
		resp.Disk.SizeBytes = (max(h.MyLBA, h.AlternateLBA) + 1) * uint64(lbs)
		resp.Disk.FreeSectors = h.LastUsableLBA - h.FirstUsableLBA + 1
	}

	resp.Partitions = make([]PartitionInfo, 0)
	for i, p := range t.Partitions() {
		resp.Partitions = append(resp.Partitions, PartitionInfo{
			Index:      i,
			Name:       p.Name,
			Type:       p.TypeName(),
			TypeGUID:   p.TypeGUID.String(),
			GUID:       p.PartGUID.String(),
			FirstLBA:   p.FirstLBA,
			LastLBA:    p.LastLBA,
			SizeBytes:  p.Bytes(lbs),
			Attributes: p.Flags.String(),
		})
		if resp.Disk.FreeSectors >= p.Sectors() {
			resp.Disk.FreeSectors -= p.Sectors()
		}
	}

	if d, ok := t.(*gpt.Disk); ok {
		resp.Disk.Path = d.Path()
	}
	return resp
}
