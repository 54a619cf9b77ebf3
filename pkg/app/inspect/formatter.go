package inspect

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-gpt/pkg/gpt"
)

// FormatOutput writes an inspection response in the requested format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatTable(w io.Writer, response *Response) error {
	switch response.View {
	case ViewShow:
		formatDisk(w, response)
		formatHeaders(w, response)
	case ViewVerify:
		formatVerify(w, response)
		return nil
	}
	formatPartitions(w, response)
	return nil
}

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(header)
	style := table.StyleLight
	style.Format.Header = text.FormatUpper
	t.SetStyle(style)
	return t
}

func formatDisk(w io.Writer, response *Response) {
	d := response.Disk
	fmt.Fprintf(w, "Disk %s\n", d.Path)
	fmt.Fprintf(w, "  GUID:        %s\n", d.GUID)
	fmt.Fprintf(w, "  Size:        %s (%d-byte sectors)\n", humanize.IBytes(d.SizeBytes), d.BlockSize)
	fmt.Fprintf(w, "  Usable LBAs: %d-%d\n", d.UsableFirst, d.UsableLast)
	fmt.Fprintf(w, "  Free:        %s\n", humanize.IBytes(d.FreeSectors*d.BlockSize))
	if d.ProtectiveMBR {
		fmt.Fprintf(w, "  MBR:         protective, covers %d sectors\n", d.MBRCoveredSectors)
	} else {
		fmt.Fprintf(w, "  MBR:         %s\n", color.YellowString("no protective record"))
	}
	for _, dmg := range response.Damaged {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("damaged:"), dmg)
	}
	fmt.Fprintln(w)
}

func formatHeaders(w io.Writer, response *Response) {
	t := newTable(w, table.Row{"Field", "Primary", "Backup"})
	cell := func(h *gpt.Header, f func(*gpt.Header) string) string {
		if h == nil {
			return "-"
		}
		return f(h)
	}
	rows := []struct {
		name string
		f    func(*gpt.Header) string
	}{
		{"my lba", func(h *gpt.Header) string { return fmt.Sprint(h.MyLBA) }},
		{"alternate lba", func(h *gpt.Header) string { return fmt.Sprint(h.AlternateLBA) }},
		{"first usable", func(h *gpt.Header) string { return fmt.Sprint(h.FirstUsableLBA) }},
		{"last usable", func(h *gpt.Header) string { return fmt.Sprint(h.LastUsableLBA) }},
		{"entry array lba", func(h *gpt.Header) string { return fmt.Sprint(h.PartitionEntryLBA) }},
		{"entries", func(h *gpt.Header) string {
			return fmt.Sprintf("%d x %d", h.NumberOfPartitionEntries, h.SizeOfPartitionEntry)
		}},
		{"header crc32", func(h *gpt.Header) string { return fmt.Sprintf("0x%08X", h.HeaderCRC32) }},
		{"entry array crc32", func(h *gpt.Header) string { return fmt.Sprintf("0x%08X", h.PartitionEntryArrayCRC32) }},
	}
	for _, r := range rows {
		t.AppendRow(table.Row{r.name, cell(response.Primary, r.f), cell(response.Backup, r.f)})
	}
	t.Render()
	fmt.Fprintln(w)
}

func formatPartitions(w io.Writer, response *Response) {
	if len(response.Partitions) == 0 {
		fmt.Fprintln(w, color.HiYellowString("No partitions found"))
		return
	}

	t := newTable(w, table.Row{"#", "Name", "Type", "Start", "End", "Size", "GUID", "Attributes"})
	for _, p := range response.Partitions {
		attrs := p.Attributes
		if attrs == "" {
			attrs = "-"
		}
		t.AppendRow(table.Row{
			p.Index,
			p.Name,
			p.Type,
			p.FirstLBA,
			p.LastLBA,
			humanize.IBytes(p.SizeBytes),
			p.GUID,
			attrs,
		})
	}
	t.Render()
}

func formatVerify(w io.Writer, response *Response) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if response.Verified {
		fmt.Fprintf(w, "%s %s: protective MBR, both headers and both entry arrays are consistent\n",
			green("OK"), response.Disk.Path)
		return
	}
	fmt.Fprintf(w, "%s %s: %d problem(s) found\n", red("FAIL"), response.Disk.Path, len(response.Problems))
	for _, p := range response.Problems {
		fmt.Fprintf(w, "  %s %s\n", red("•"), p)
	}
}

func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}

// FormatSummary provides a brief summary for verbose output
func FormatSummary(response *Response) string {
	var used uint64
	for _, p := range response.Partitions {
		used += p.SizeBytes
	}
	return fmt.Sprintf("%d partition(s) using %s, %s free",
		len(response.Partitions), humanize.IBytes(used),
		humanize.IBytes(response.Disk.FreeSectors*response.Disk.BlockSize))
}
