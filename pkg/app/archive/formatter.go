package archive

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// FormatOutput writes an archive response in the requested format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(response)
	case "table":
		done := color.HiGreenString("✓")
		if response.Action == "restore" {
			fmt.Fprintf(w, "%s Restored partition table of %s from %s\n", done, response.DiskPath, response.ArchivePath)
		} else {
			fmt.Fprintf(w, "%s Archived partition table of %s to %s (%s)\n", done, response.DiskPath,
				response.ArchivePath, humanize.IBytes(uint64(response.ArchiveBytes)))
		}
		fmt.Fprintf(w, "  Disk GUID: %s\n", response.DiskGUID)
		fmt.Fprintf(w, "  Disk size: %s (%d-byte sectors)\n", humanize.IBytes(response.DiskBytes), response.BlockSize)
		fmt.Fprintf(w, "  Regions:   %d\n", response.Regions)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
