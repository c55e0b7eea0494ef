// Package export renders machine definitions for tooling: Mermaid and
// Graphviz diagrams, a JSON introspection document and an XLSX transition table.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/statecraft/pkg/machine"
)

// ErrUnknownFormat is returned for export formats that are not supported
var ErrUnknownFormat = errors.New("unknown export format")

// Format names an export format
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatDOT     Format = "dot"
	FormatJSON    Format = "json"
	FormatXLSX    Format = "xlsx"
)

// Formats lists every supported format
func Formats() []Format {
	return []Format{FormatMermaid, FormatDOT, FormatJSON, FormatXLSX}
}

// ParseFormat accepts a format name, case-insensitively. "graphviz" is an alias for dot.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mermaid", "mmd":
		return FormatMermaid, nil
	case "dot", "graphviz":
		return FormatDOT, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Extension returns the file extension for the format, including the dot
func (f Format) Extension() string {
	switch f {
	case FormatMermaid:
		return ".mmd"
	case FormatDOT:
		return ".dot"
	case FormatJSON:
		return ".json"
	case FormatXLSX:
		return ".xlsx"
	}
	return ""
}

// ContentType returns the MIME type served for the format
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/plain; charset=utf-8"
}

// Exporter writes a definition in one format
type Exporter interface {
	Format() Format
	Export(w io.Writer, def *machine.Definition) error
}

// Options tunes the diagram exporters
type Options struct {
	// Flatten draws resolved leaf-to-leaf edges instead of the authored transitions
	Flatten bool
}

// New returns the exporter for format
func New(format Format, opts Options, logger *zap.Logger) (Exporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch format {
	case FormatMermaid:
		return &MermaidExporter{opts: opts}, nil
	case FormatDOT:
		return &DOTExporter{opts: opts}, nil
	case FormatJSON:
		return &JSONExporter{}, nil
	case FormatXLSX:
		return NewXLSXExporter(logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// JSONExporter writes the introspection document of a definition
type JSONExporter struct{}

// Format returns FormatJSON
func (*JSONExporter) Format() Format { return FormatJSON }

// Export writes def.Info() as indented JSON
func (*JSONExporter) Export(w io.Writer, def *machine.Definition) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(def.Info()); err != nil {
		return fmt.Errorf("failed to encode %s: %w", def.Name(), err)
	}
	return nil
}

// diagramID turns a state name into an identifier accepted by diagram syntaxes
func diagramID(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// edgeLabel is the event name followed by its guards
func edgeLabel(event string, guards, unless []string) string {
	var conds []string
	conds = append(conds, guards...)
	for _, u := range unless {
		conds = append(conds, "!"+u)
	}
	if len(conds) == 0 {
		return event
	}
	return fmt.Sprintf("%s [%s]", event, strings.Join(conds, " && "))
}
