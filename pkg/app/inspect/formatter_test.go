package inspect

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-gpt/pkg/gpt"
)

func sampleResponse(view View) *Response {
	return &Response{
		View: view,
		Disk: DiskInfo{
			Path:        "disk.img",
			GUID:        "5a1b6f8e-0c2d-4e3f-9a8b-7c6d5e4f3a2b",
			BlockSize:   512,
			SizeBytes:   10 << 20,
			UsableFirst: 34,
			UsableLast:  20446,
			FreeSectors: 2014,

			ProtectiveMBR:     true,
			MBRCoveredSectors: 20479,
		},
		Primary: &gpt.Header{MyLBA: 1, AlternateLBA: 20479, HeaderCRC32: 0xDEADBEEF},
		Backup:  &gpt.Header{MyLBA: 20479, AlternateLBA: 1, HeaderCRC32: 0x01020304},
		Partitions: []PartitionInfo{
			{Index: 0, Name: "EFI System", Type: "EFI System partition", FirstLBA: 2048, LastLBA: 4095, SizeBytes: 1 << 20, Attributes: "required"},
			{Index: 1, Name: "root", Type: "Linux filesystem data", FirstLBA: 4096, LastLBA: 20446, SizeBytes: 16351 * 512},
		},
	}
}

func TestFormatTable(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, sampleResponse(ViewShow), "table"))
	out := buf.String()
	assert.Contains(t, out, "Disk disk.img")
	assert.Contains(t, out, "10 MiB")
	assert.Contains(t, out, "protective, covers 20479 sectors")
	assert.Contains(t, out, "0xDEADBEEF")
	assert.Contains(t, out, "0x01020304")
	assert.Contains(t, out, "EFI System partition")
	assert.Contains(t, out, "1.0 MiB")

	buf.Reset()
	require.NoError(t, FormatOutput(&buf, sampleResponse(ViewList), "table"))
	assert.NotContains(t, buf.String(), "0xDEADBEEF")
	assert.Contains(t, buf.String(), "root")
}

func TestFormatTableNoPartitions(t *testing.T) {
	color.NoColor = true
	resp := sampleResponse(ViewList)
	resp.Partitions = nil

	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, resp, "table"))
	assert.Contains(t, buf.String(), "No partitions found")
}

func TestFormatVerify(t *testing.T) {
	color.NoColor = true
	resp := sampleResponse(ViewVerify)
	resp.Verified = true

	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, resp, "table"))
	assert.Contains(t, buf.String(), "OK disk.img")

	resp.Verified = false
	resp.Problems = []string{"backup: invalid signature", "headers disagree"}
	buf.Reset()
	require.NoError(t, FormatOutput(&buf, resp, "table"))
	assert.Contains(t, buf.String(), "FAIL disk.img: 2 problem(s) found")
	assert.Contains(t, buf.String(), "headers disagree")
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, sampleResponse(ViewShow), "json"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "disk")
	assert.Contains(t, decoded, "primary_header")
	assert.NotContains(t, decoded, "View")
	parts, ok := decoded["partitions"].([]any)
	require.True(t, ok)
	assert.Len(t, parts, 2)
}

func TestFormatYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, sampleResponse(ViewList), "yaml"))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	disk, ok := decoded["disk"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "disk.img", disk["path"])
}

func TestFormatUnsupported(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, FormatOutput(&buf, sampleResponse(ViewList), "xml"))
}

func TestFormatSummary(t *testing.T) {
	s := FormatSummary(sampleResponse(ViewList))
	assert.Contains(t, s, "2 partition(s)")
	assert.Contains(t, s, "1007 KiB free")
}
