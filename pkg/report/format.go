package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for an unknown output format.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Format selects an output encoding.
type Format string

// Output formats.
const (
	FormatTSV   Format = "tsv"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists the accepted formats.
func Formats() []Format {
	return []Format{FormatTSV, FormatTable, FormatJSON, FormatYAML}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))

	for _, known := range Formats() {
		if format == known {
			return format, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// fileSummary is the structured form of a per-file report.
type fileSummary struct {
	Files []FileChurn `json:"files" yaml:"files"`
	Total int         `json:"total" yaml:"total"`
}

// totalSummary is the structured form of the reducer's result.
type totalSummary struct {
	ChangedFiles int `json:"changed_files" yaml:"changed_files"`
}

// Write emits files in format.
func Write(w io.Writer, format Format, files []FileChurn) error {
	switch format {
	case FormatTSV:
		return WriteTSV(w, files)
	case FormatTable:
		return WriteTable(w, files)
	case FormatJSON:
		return WriteJSON(w, fileSummary{Files: nonNil(files), Total: Total(files)})
	case FormatYAML:
		return WriteYAML(w, fileSummary{Files: nonNil(files), Total: Total(files)})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// WriteTotal emits the reducer's changed-file total in format.
func WriteTotal(w io.Writer, format Format, total int) error {
	switch format {
	case FormatTSV:
		_, err := fmt.Fprintf(w, "%d\n", total)
		if err != nil {
			return fmt.Errorf("tsv write: %w", err)
		}

		return nil
	case FormatTable:
		tbl := table.NewWriter()
		tbl.SetOutputMirror(w)
		tbl.SetStyle(table.StyleLight)
		tbl.AppendRow(table.Row{"Changed files", humanize.Comma(int64(total))})
		tbl.Render()

		return nil
	case FormatJSON:
		return WriteJSON(w, totalSummary{ChangedFiles: total})
	case FormatYAML:
		return WriteYAML(w, totalSummary{ChangedFiles: total})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// WriteTSV writes one "count<TAB>path" line per file.
func WriteTSV(w io.Writer, files []FileChurn) error {
	buf := bufio.NewWriter(w)

	for _, file := range files {
		_, err := fmt.Fprintf(buf, "%d\t%s\n", file.Changes, file.Path)
		if err != nil {
			return fmt.Errorf("tsv write: %w", err)
		}
	}

	err := buf.Flush()
	if err != nil {
		return fmt.Errorf("tsv write: %w", err)
	}

	return nil
}

// WriteTable renders files as a table with a total footer.
func WriteTable(w io.Writer, files []FileChurn) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Changes", "Path"})

	for _, file := range files {
		tbl.AppendRow(table.Row{file.Changes, file.Path})
	}

	tbl.AppendFooter(table.Row{humanize.Comma(int64(Total(files))), fmt.Sprintf("%d files", len(files))})
	tbl.Render()

	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// WriteYAML writes v as YAML.
func WriteYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("yaml write: %w", err)
	}

	return nil
}

func nonNil(files []FileChurn) []FileChurn {
	if files == nil {
		return []FileChurn{}
	}

	return files
}
