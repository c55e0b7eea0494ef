package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/statecraft/pkg/machine"
)

// DOTExporter writes a Graphviz digraph. Superstates become clusters; since
// Graphviz edges connect nodes only, edges are always drawn between leaves.
// Inherited edges are dashed.
type DOTExporter struct {
	opts Options
}

// Format returns FormatDOT
func (*DOTExporter) Format() Format { return FormatDOT }

// Export writes the digraph
func (e *DOTExporter) Export(w io.Writer, def *machine.Definition) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "digraph %q {\n", def.Name())
	fmt.Fprintln(bw, "  compound=true;")
	fmt.Fprintln(bw, "  node [shape=box, style=rounded];")
	fmt.Fprintln(bw, "  __start [shape=point];")
	writeDOTStates(bw, def.Model().States, 1)
	fmt.Fprintf(bw, "  __start -> %q;\n", def.Initial())

	for _, edge := range def.Graph().Edges() {
		attrs := []string{fmt.Sprintf("label=%q", edgeLabel(edge.Event, edge.Guards, edge.Unless))}
		if edge.Inherited() {
			attrs = append(attrs, "style=dashed")
		}
		fmt.Fprintf(bw, "  %q -> %q [%s];\n", edge.Source, edge.Target, strings.Join(attrs, ", "))
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func writeDOTStates(w io.Writer, states []machine.StateSpec, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, spec := range states {
		if !spec.IsSuperstate() {
			label := spec.Name
			if spec.Storage != "" {
				label = fmt.Sprintf("%s\\n(%s)", spec.Name, spec.Storage)
			}
			fmt.Fprintf(w, "%s%q [label=\"%s\"];\n", indent, spec.Name, escapeDOT(label))
			continue
		}
		fmt.Fprintf(w, "%ssubgraph cluster_%s {\n", indent, diagramID(spec.Name))
		label := spec.Name
		if spec.Storage != "" {
			label = fmt.Sprintf("%s (%s)", spec.Name, spec.Storage)
		}
		fmt.Fprintf(w, "%s  label=%q;\n", indent, label)
		writeDOTStates(w, spec.States, depth+1)
		fmt.Fprintf(w, "%s}\n", indent)
	}
}

// escapeDOT escapes quotes but keeps \n line breaks for Graphviz labels
func escapeDOT(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
