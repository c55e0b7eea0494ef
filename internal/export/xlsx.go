package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/statecraft/pkg/machine"
)

const (
	sheetTransitions = "Transitions"
	sheetStates      = "States"
	sheetPolymorphic = "Polymorphic"
)

var (
	transitionHeader  = []string{"Source", "Event", "Target", "Declared On", "Guards", "Unless", "Before", "After", "Around", "Payload"}
	stateHeader       = []string{"State", "Kind", "Parent", "Initial", "Storage"}
	polymorphicHeader = []string{"Superstate", "Event", "Target", "Sources", "Payload"}
)

// XLSXExporter writes the flattened transition table as a workbook with
// Transitions, States and Polymorphic sheets
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new XLSX exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// Format returns FormatXLSX
func (*XLSXExporter) Format() Format { return FormatXLSX }

// Export writes the workbook
func (e *XLSXExporter) Export(w io.Writer, def *machine.Definition) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetTransitions); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{sheetStates, sheetPolymorphic} {
		if _, err := file.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := e.fillTransitions(file, def, headerStyle); err != nil {
		return err
	}
	if err := e.fillStates(file, def, headerStyle); err != nil {
		return err
	}
	if err := e.fillPolymorphic(file, def, headerStyle); err != nil {
		return err
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Debug("Exported transition table",
		zap.String("machine", def.Name()),
		zap.Int("edges", def.Graph().Len()))
	return nil
}

func (e *XLSXExporter) fillTransitions(file *excelize.File, def *machine.Definition, style int) error {
	if err := writeHeader(file, sheetTransitions, transitionHeader, style); err != nil {
		return err
	}
	for i, edge := range def.Graph().Edges() {
		row := []interface{}{
			edge.Source,
			edge.Event,
			edge.Target,
			edge.Origin,
			joinNames(edge.Guards),
			joinNames(edge.Unless),
			joinNames(edge.Before),
			joinNames(edge.After),
			joinNames(edge.Around),
			edge.Payload,
		}
		if err := writeRow(file, sheetTransitions, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func (e *XLSXExporter) fillStates(file *excelize.File, def *machine.Definition, style int) error {
	if err := writeHeader(file, sheetStates, stateHeader, style); err != nil {
		return err
	}
	h := def.Hierarchy()
	row := 2
	for _, decl := range h.Declarations() {
		kind := "leaf"
		initial := ""
		if h.IsSuperstate(decl.Name) {
			kind = "superstate"
			initial = h.Initial(decl.Name)
		}
		if decl.Name == def.Initial() {
			initial = "machine initial"
		}
		parent := ""
		if ancestors := h.Ancestors(decl.Name); len(ancestors) > 0 {
			parent = ancestors[0]
		}
		storage := ""
		if spec, ok := def.Storage(decl.Name); ok {
			storage = spec.Type
		}
		if err := writeRow(file, sheetStates, row, []interface{}{decl.Name, kind, parent, initial, storage}); err != nil {
			return err
		}
		row++
	}
	return nil
}

func (e *XLSXExporter) fillPolymorphic(file *excelize.File, def *machine.Definition, style int) error {
	if err := writeHeader(file, sheetPolymorphic, polymorphicHeader, style); err != nil {
		return err
	}
	for i, p := range def.Graph().Polymorphic() {
		row := []interface{}{p.Superstate, p.Event, p.Target, joinNames(p.Sources), p.Payload}
		if err := writeRow(file, sheetPolymorphic, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(file *excelize.File, sheet string, header []string, style int) error {
	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := writeRow(file, sheet, 1, row); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := file.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header of %s: %w", sheet, err)
	}
	lastCol := strings.TrimSuffix(last, "1")
	if err := file.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("failed to size columns of %s: %w", sheet, err)
	}
	return nil
}

func writeRow(file *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to set %s row %d: %w", sheet, row, err)
	}
	return nil
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
