// Package render formats command output as tables, JSON, or YAML. The
// format is chosen explicitly with --output or auto-detected: tables on a
// terminal, JSON when piped.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Format selects an output encoding.
type Format string

// Output formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatWide  Format = "wide"
)

// Align positions cell content within a column.
type Align int

// Column alignments.
const (
	AlignDefault Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Table is tabular data ready for rendering. Commands build one per view;
// JSON and YAML output bypass it and encode the underlying value instead.
type Table struct {
	Headers   []string
	Rows      [][]string
	Alignment []Align // Optional per-column alignment
}

// Formatter renders a value to a writer.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// New returns the formatter for a format. Unknown formats fall back to
// table rendering.
func New(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: "  "}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{Wide: format == FormatWide}
	}
}

// Detect resolves the effective format. An explicit format wins; otherwise
// terminals get tables and pipes get JSON.
func Detect(explicit string) Format {
	if explicit != "" {
		return Format(strings.ToLower(explicit))
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return FormatTable
	}
	return FormatJSON
}

// Parse validates a format string.
func Parse(s string) (Format, error) {
	format := Format(strings.ToLower(s))
	switch format {
	case FormatTable, FormatJSON, FormatYAML, FormatWide, "":
		return format, nil
	default:
		return "", fmt.Errorf("invalid format %q: must be one of: table, json, yaml, wide", s)
	}
}

// JSONFormatter encodes values as indented JSON.
type JSONFormatter struct {
	Indent string
}

// Format implements Formatter.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if f.Indent != "" {
		enc.SetIndent("", f.Indent)
	}
	return enc.Encode(data)
}

// YAMLFormatter encodes values as YAML.
type YAMLFormatter struct{}

// Format implements Formatter.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	out, err := yaml.MarshalWithOptions(data,
		yaml.Indent(2),
		yaml.IndentSequence(false),
	)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// TableFormatter renders Table values. Anything else falls back to JSON so
// a command never loses output to a type mismatch.
type TableFormatter struct {
	Wide bool
}

// Format implements Formatter.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	t, ok := data.(Table)
	if !ok {
		if tp, ok := data.(*Table); ok {
			t = *tp
		} else {
			return (&JSONFormatter{Indent: "  "}).Format(w, data)
		}
	}
	return f.render(w, t)
}

func (f *TableFormatter) render(w io.Writer, data Table) error {
	var opts []tablewriter.Option

	config := tablewriter.Config{}
	if len(data.Alignment) > 0 {
		aligns := make([]tw.Align, len(data.Alignment))
		for i, a := range data.Alignment {
			switch a {
			case AlignLeft:
				aligns[i] = tw.AlignLeft
			case AlignCenter:
				aligns[i] = tw.AlignCenter
			case AlignRight:
				aligns[i] = tw.AlignRight
			default:
				aligns[i] = tw.Skip
			}
		}
		config.Header.Alignment = tw.CellAlignment{PerColumn: aligns}
		config.Row.Alignment = tw.CellAlignment{PerColumn: aligns}
	}
	opts = append(opts, tablewriter.WithConfig(config))

	table := tablewriter.NewTable(w, opts...)

	if len(data.Headers) > 0 {
		caser := cases.Title(language.English)
		headers := make([]any, len(data.Headers))
		for i, h := range data.Headers {
			headers[i] = caser.String(strings.ToLower(h))
		}
		table.Header(headers...)
	}

	for _, row := range data.Rows {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}

	return table.Render()
}
