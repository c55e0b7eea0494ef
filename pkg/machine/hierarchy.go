package machine

import "fmt"

// Declaration records where a state name was declared
type Declaration struct {
	Name       string
	Path       string
	Superstate bool
}

type superstateInfo struct {
	name            string
	explicitInitial string
	initial         string
	leaves          []string
	children        []string
}

// Hierarchy resolves superstate references against the declared state tree.
// It is built tolerantly: malformed trees are recorded as-is and reported by the validator.
type Hierarchy struct {
	leaves       []string
	leafSet      map[string]bool
	superstates  []string
	supers       map[string]*superstateInfo
	ancestors    map[string][]string
	declarations []Declaration
}

// NewHierarchy builds the hierarchy for the given state tree
func NewHierarchy(states []StateSpec) *Hierarchy {
	h := &Hierarchy{
		leafSet:   make(map[string]bool),
		supers:    make(map[string]*superstateInfo),
		ancestors: make(map[string][]string),
	}
	h.register(states, "states", nil)
	return h
}

// register walks the tree depth-first. Children are registered before their
// superstate is finalized, so nested superstates are complete bottom-up.
func (h *Hierarchy) register(states []StateSpec, path string, parents []string) []string {
	var leaves []string
	for i, spec := range states {
		specPath := fmt.Sprintf("%s[%d]", path, i)
		h.declarations = append(h.declarations, Declaration{
			Name:       spec.Name,
			Path:       specPath,
			Superstate: spec.IsSuperstate(),
		})

		if _, seen := h.ancestors[spec.Name]; !seen {
			h.ancestors[spec.Name] = chainOf(parents)
		}

		if !spec.IsSuperstate() {
			if !h.leafSet[spec.Name] && h.supers[spec.Name] == nil {
				h.leafSet[spec.Name] = true
				h.leaves = append(h.leaves, spec.Name)
			}
			leaves = appendUnique(leaves, spec.Name)
			continue
		}

		nested := append(append([]string(nil), parents...), spec.Name)
		if h.supers[spec.Name] != nil || h.leafSet[spec.Name] {
			// duplicate declaration, keep the first one
			for _, leaf := range h.register(spec.States, specPath+".states", nested) {
				leaves = appendUnique(leaves, leaf)
			}
			continue
		}

		info := &superstateInfo{name: spec.Name, explicitInitial: spec.Initial}
		h.supers[spec.Name] = info
		h.superstates = append(h.superstates, spec.Name)

		info.leaves = h.register(spec.States, specPath+".states", nested)
		for _, child := range spec.States {
			info.children = append(info.children, child.Name)
		}
		info.initial = h.initialOf(info)

		for _, leaf := range info.leaves {
			leaves = appendUnique(leaves, leaf)
		}
	}
	return leaves
}

func (h *Hierarchy) initialOf(info *superstateInfo) string {
	pick := info.explicitInitial
	if pick == "" {
		if len(info.children) == 0 {
			return ""
		}
		pick = info.children[0]
	}
	if !containsName(info.leaves, pick) {
		nested := h.supers[pick]
		if nested == nil || !h.isDescendantSuper(info.name, pick) {
			return ""
		}
		return nested.initial
	}
	return pick
}

func (h *Hierarchy) isDescendantSuper(super, candidate string) bool {
	for _, a := range h.ancestors[candidate] {
		if a == super {
			return true
		}
	}
	return false
}

// Expand returns the leaves named by ref: all descendants for a superstate,
// the leaf itself for a leaf, nothing for an unknown name
func (h *Hierarchy) Expand(ref string) []string {
	if info, ok := h.supers[ref]; ok {
		return append([]string(nil), info.leaves...)
	}
	if h.leafSet[ref] {
		return []string{ref}
	}
	return nil
}

// ExpandAll expands every ref, dropping duplicates and keeping first-seen order
func (h *Hierarchy) ExpandAll(refs []string) []string {
	var out []string
	for _, ref := range refs {
		for _, leaf := range h.Expand(ref) {
			out = appendUnique(out, leaf)
		}
	}
	return out
}

// ResolveTarget returns the leaf a transition into ref lands on
func (h *Hierarchy) ResolveTarget(ref string) (string, bool) {
	if info, ok := h.supers[ref]; ok {
		if info.initial == "" {
			return "", false
		}
		return info.initial, true
	}
	if h.leafSet[ref] {
		return ref, true
	}
	return "", false
}

// Has returns true if name is a declared leaf or superstate
func (h *Hierarchy) Has(name string) bool {
	return h.leafSet[name] || h.supers[name] != nil
}

// IsLeaf returns true if name is a declared leaf state
func (h *Hierarchy) IsLeaf(name string) bool {
	return h.leafSet[name]
}

// IsSuperstate returns true if name is a declared superstate
func (h *Hierarchy) IsSuperstate(name string) bool {
	return h.supers[name] != nil
}

// Leaves returns every leaf state in declaration order
func (h *Hierarchy) Leaves() []string {
	return append([]string(nil), h.leaves...)
}

// Superstates returns every superstate in declaration order
func (h *Hierarchy) Superstates() []string {
	return append([]string(nil), h.superstates...)
}

// Initial returns the resolved initial leaf of a superstate
func (h *Hierarchy) Initial(super string) string {
	if info, ok := h.supers[super]; ok {
		return info.initial
	}
	return ""
}

// ExplicitInitial returns the initial child as written, if any
func (h *Hierarchy) ExplicitInitial(super string) string {
	if info, ok := h.supers[super]; ok {
		return info.explicitInitial
	}
	return ""
}

// Children returns the direct children of a superstate
func (h *Hierarchy) Children(super string) []string {
	if info, ok := h.supers[super]; ok {
		return append([]string(nil), info.children...)
	}
	return nil
}

// Ancestors returns the enclosing superstates of name, immediate parent first
func (h *Hierarchy) Ancestors(name string) []string {
	return append([]string(nil), h.ancestors[name]...)
}

// Chain returns name followed by its ancestors, most specific first
func (h *Hierarchy) Chain(name string) []string {
	return append([]string{name}, h.ancestors[name]...)
}

// Contains returns true if leaf is a descendant of super
func (h *Hierarchy) Contains(super, leaf string) bool {
	info, ok := h.supers[super]
	if !ok {
		return false
	}
	return containsName(info.leaves, leaf)
}

// Declarations returns every state declaration, duplicates included
func (h *Hierarchy) Declarations() []Declaration {
	return append([]Declaration(nil), h.declarations...)
}

func chainOf(parents []string) []string {
	chain := make([]string, 0, len(parents))
	for i := len(parents) - 1; i >= 0; i-- {
		chain = append(chain, parents[i])
	}
	return chain
}

func appendUnique(list []string, name string) []string {
	if containsName(list, name) {
		return list
	}
	return append(list, name)
}

func containsName(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}
