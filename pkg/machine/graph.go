package machine

import "fmt"

// Edge is one resolved (source leaf, event) transition.
// Guard, Unless and Before lists run event-level first; After runs transition-level first.
type Edge struct {
	Source     string   `json:"source"`
	Event      string   `json:"event"`
	Target     string   `json:"target"`
	Origin     string   `json:"origin"`
	Transition int      `json:"transition"`
	Guards     []string `json:"guards,omitempty"`
	Unless     []string `json:"unless,omitempty"`
	Before     []string `json:"before,omitempty"`
	After      []string `json:"after,omitempty"`
	Around     []string `json:"around,omitempty"`
	Payload    string   `json:"payload,omitempty"`
}

// Inherited returns true if the edge was declared on a superstate
func (e Edge) Inherited() bool {
	return e.Origin != e.Source
}

// PolymorphicEdge is an event that applies uniformly to every descendant of a superstate
type PolymorphicEdge struct {
	Superstate string   `json:"superstate"`
	Event      string   `json:"event"`
	Target     string   `json:"target"`
	Sources    []string `json:"sources"`
	Payload    string   `json:"payload,omitempty"`
}

type edgeKey struct {
	source string
	event  string
}

// Graph is the flattened transition table of a machine
type Graph struct {
	edges       []Edge
	index       map[edgeKey]int
	bySource    map[string][]int
	polymorphic []PolymorphicEdge
}

// BuildGraph flattens events, transitions and the hierarchy into edges.
// For every leaf the ancestor chain is walked from the leaf outwards and the
// first transition naming a chain member wins.
func BuildGraph(m *Model, h *Hierarchy) (*Graph, error) {
	g := &Graph{
		index:    make(map[edgeKey]int),
		bySource: make(map[string][]int),
	}

	for _, ev := range m.Events {
		for _, leaf := range h.Leaves() {
			idx, origin, ok := matchTransition(ev, h.Chain(leaf))
			if !ok {
				continue
			}
			t := ev.Transitions[idx]
			target, resolved := h.ResolveTarget(t.To)
			if !resolved {
				return nil, &DefinitionError{
					Kind:    KindUnresolvedSuperstateTarget,
					Path:    fmt.Sprintf("events[%s].transitions[%d].to", ev.Name, idx),
					Name:    t.To,
					Message: "transition target does not resolve to a leaf state",
				}
			}
			g.add(Edge{
				Source:     leaf,
				Event:      ev.Name,
				Target:     target,
				Origin:     origin,
				Transition: idx,
				Guards:     concat(ev.Guards, t.Guards),
				Unless:     concat(ev.Unless, t.Unless),
				Before:     concat(ev.Before, t.Before),
				After:      concat(t.After, ev.After),
				Around:     concat(ev.Around),
				Payload:    ev.Payload,
			})
		}
		g.collectPolymorphic(ev, h)
	}
	return g, nil
}

func matchTransition(ev Event, chain []string) (int, string, bool) {
	for _, level := range chain {
		for i, t := range ev.Transitions {
			if t.From.Contains(level) {
				return i, level, true
			}
		}
	}
	return 0, "", false
}

// collectPolymorphic records superstate-sourced transitions whose every
// descendant still dispatches through the superstate declaration
func (g *Graph) collectPolymorphic(ev Event, h *Hierarchy) {
	for _, super := range h.Superstates() {
		var target string
		leaves := h.Expand(super)
		uniform := len(leaves) > 0
		for _, leaf := range leaves {
			e, ok := g.Lookup(leaf, ev.Name)
			if !ok || e.Origin != super {
				uniform = false
				break
			}
			target = e.Target
		}
		if !uniform {
			continue
		}
		g.polymorphic = append(g.polymorphic, PolymorphicEdge{
			Superstate: super,
			Event:      ev.Name,
			Target:     target,
			Sources:    leaves,
			Payload:    ev.Payload,
		})
	}
}

func (g *Graph) add(e Edge) {
	key := edgeKey{source: e.Source, event: e.Event}
	if _, exists := g.index[key]; exists {
		return
	}
	g.index[key] = len(g.edges)
	g.bySource[e.Source] = append(g.bySource[e.Source], len(g.edges))
	g.edges = append(g.edges, e)
}

// Lookup returns the edge for the given leaf and event
func (g *Graph) Lookup(source, event string) (Edge, bool) {
	idx, ok := g.index[edgeKey{source: source, event: event}]
	if !ok {
		return Edge{}, false
	}
	return g.edges[idx], true
}

// From returns every edge leaving source, in event declaration order
func (g *Graph) From(source string) []Edge {
	idxs := g.bySource[source]
	out := make([]Edge, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, g.edges[idx])
	}
	return out
}

// Edges returns every edge, grouped by event in declaration order
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Polymorphic returns the superstate-wide operations
func (g *Graph) Polymorphic() []PolymorphicEdge {
	return append([]PolymorphicEdge(nil), g.polymorphic...)
}

// Len returns the number of edges
func (g *Graph) Len() int {
	return len(g.edges)
}

func concat(lists ...NameList) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
