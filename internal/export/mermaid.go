package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/statecraft/pkg/machine"
)

// MermaidExporter writes a stateDiagram-v2 with superstates as composite states
type MermaidExporter struct {
	opts Options
}

// Format returns FormatMermaid
func (*MermaidExporter) Format() Format { return FormatMermaid }

// Export writes the diagram
func (e *MermaidExporter) Export(w io.Writer, def *machine.Definition) error {
	bw := bufio.NewWriter(w)
	h := def.Hierarchy()

	fmt.Fprintln(bw, "stateDiagram-v2")
	fmt.Fprintf(bw, "    %%%% %s\n", def.Name())
	fmt.Fprintf(bw, "    [*] --> %s\n", diagramID(def.Initial()))
	writeMermaidStates(bw, h, def.Model().States, 1)

	if e.opts.Flatten {
		for _, edge := range def.Graph().Edges() {
			fmt.Fprintf(bw, "    %s --> %s : %s\n",
				diagramID(edge.Source), diagramID(edge.Target), edgeLabel(edge.Event, edge.Guards, edge.Unless))
		}
	} else {
		for _, ev := range def.Events() {
			for _, t := range ev.Transitions {
				guards := append(append([]string(nil), ev.Guards...), t.Guards...)
				unless := append(append([]string(nil), ev.Unless...), t.Unless...)
				for _, from := range t.From {
					fmt.Fprintf(bw, "    %s --> %s : %s\n",
						diagramID(from), diagramID(t.To), edgeLabel(ev.Name, guards, unless))
				}
			}
		}
	}
	return bw.Flush()
}

func writeMermaidStates(w io.Writer, h *machine.Hierarchy, states []machine.StateSpec, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, spec := range states {
		id := diagramID(spec.Name)
		if id != spec.Name {
			fmt.Fprintf(w, "%sstate %q as %s\n", indent, spec.Name, id)
		}
		if !spec.IsSuperstate() {
			if spec.Storage != "" {
				fmt.Fprintf(w, "%s%s : storage %s\n", indent, id, spec.Storage)
			}
			continue
		}
		fmt.Fprintf(w, "%sstate %s {\n", indent, id)
		first := h.ExplicitInitial(spec.Name)
		if first == "" && len(spec.States) > 0 {
			first = spec.States[0].Name
		}
		if first != "" {
			fmt.Fprintf(w, "%s    [*] --> %s\n", indent, diagramID(first))
		}
		writeMermaidStates(w, h, spec.States, depth+1)
		fmt.Fprintf(w, "%s}\n", indent)
	}
}
