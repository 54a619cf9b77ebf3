package edit

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// FormatOutput writes an edit response in the requested format
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
		formatText(w, response)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatText(w io.Writer, response *Response) {
	done := color.HiGreenString("✓")
	switch response.Action {
	case ActionInit:
		fmt.Fprintf(w, "%s Wrote empty partition table to %s (disk GUID %s)\n",
			done, response.Path, response.DiskGUID)
		return
	case ActionAdd:
		fmt.Fprintf(w, "%s Added partition %q to %s\n", done, response.Partition.Name, response.Path)
	case ActionDelete:
		fmt.Fprintf(w, "%s Deleted partition %q from %s\n", done, response.Partition.Name, response.Path)
	}
	p := response.Partition
	fmt.Fprintf(w, "  Type:  %s\n", p.Type)
	fmt.Fprintf(w, "  GUID:  %s\n", p.GUID)
	fmt.Fprintf(w, "  LBAs:  %d-%d\n", p.FirstLBA, p.LastLBA)
	fmt.Fprintf(w, "  Size:  %s\n", humanize.IBytes(p.SizeBytes))
	fmt.Fprintf(w, "%d partition(s) in table\n", response.Partitions)
}
