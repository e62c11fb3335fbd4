package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"class-importer/internal/descriptor"
	"class-importer/internal/diagnostic"
	"class-importer/internal/errs"
	"class-importer/internal/match"
)

// ErrCycle is returned when the inheritance relation is not acyclic.
var ErrCycle = errors.New("inheritance cycle detected")

// Edge is a resolved base relationship between two classes by index.
type Edge struct {
	Derived int
	Base    int
	Offset  uint64
	Virtual bool
}

// Graph is the ordered inheritance graph of a description.
type Graph struct {
	classes []*descriptor.ClassDescriptor
	index   map[string]int
	bases   [][]Edge
	derived [][]Edge
	order   []int
}

// Build resolves base references by name and orders the classes. Unknown
// names are reported to diags and skipped. A cycle, including a class that
// inherits from itself, yields an error wrapping ErrCycle.
func Build(doc *descriptor.Document, diags *diagnostic.Diagnostics) (*Graph, error) {
	if diags == nil {
		diags = &diagnostic.Diagnostics{}
	}

	g := &Graph{index: map[string]int{}}
	if doc == nil {
		return g, nil
	}

	for i := range doc.Structures {
		c := &doc.Structures[i]
		if _, dup := g.index[c.Name]; dup {
			continue
		}

		g.index[c.Name] = len(g.classes)
		g.classes = append(g.classes, c)
	}

	n := len(g.classes)
	g.bases = make([][]Edge, n)
	g.derived = make([][]Edge, n)

	for i, c := range g.classes {
		for _, b := range c.Bases {
			g.addEdge(diags, c.Name, i, b.Name, b.Offset, b.Virtual)
		}
	}

	for _, e := range doc.Inheritance {
		d, ok := g.index[e.Derived]
		if !ok {
			diags.AddWarning("unknown_derived",
				fmt.Sprintf("inheritance edge names unknown class %q%s", e.Derived, match.Hint(e.Derived, g.names())),
				e.Derived, e.Base)

			continue
		}

		g.addEdge(diags, e.Derived, d, e.Base, e.Offset, e.Virtual)
	}

	order, stuck, err := materializationOrder(n, func(i int) []int {
		var deps []int
		for _, e := range g.bases[i] {
			if !slices.Contains(deps, e.Base) {
				deps = append(deps, e.Base)
			}
		}

		return deps
	})
	if err != nil {
		if errors.Is(err, ErrCycle) {
			names := make([]string, 0, len(stuck))
			for _, i := range stuck {
				names = append(names, g.classes[i].Name)
			}

			return nil, errs.Structural(fmt.Errorf("%w among %s", ErrCycle, strings.Join(names, ", ")),
				"cannot order classes").WithContext("classes", names)
		}

		return nil, errs.Structural(err, "cannot order classes")
	}

	g.order = order

	return g, nil
}

func (g *Graph) addEdge(diags *diagnostic.Diagnostics, className string, derived int, base string, offset uint64, virtual bool) {
	b, ok := g.index[base]
	if !ok {
		diags.AddWarning("unknown_base",
			fmt.Sprintf("base %q is not described; the relationship is dropped%s", base, match.Hint(base, g.names())),
			className, base)

		return
	}

	e := Edge{Derived: derived, Base: b, Offset: offset, Virtual: virtual}
	if slices.Contains(g.bases[derived], e) {
		return
	}

	g.bases[derived] = append(g.bases[derived], e)
	g.derived[b] = append(g.derived[b], e)
}

func (g *Graph) names() []string {
	out := make([]string, len(g.classes))
	for i, c := range g.classes {
		out[i] = c.Name
	}

	return out
}

// Len returns the number of classes.
func (g *Graph) Len() int {
	return len(g.classes)
}

// Order returns class indices with every base before its derived classes.
func (g *Graph) Order() []int {
	return slices.Clone(g.order)
}

// Class returns the descriptor at index i.
func (g *Graph) Class(i int) *descriptor.ClassDescriptor {
	return g.classes[i]
}

// Lookup returns the index of the named class.
func (g *Graph) Lookup(name string) (int, bool) {
	i, ok := g.index[name]
	return i, ok
}

// BasesOf returns the edges from class i to its bases, in declaration order.
func (g *Graph) BasesOf(i int) []Edge {
	return g.bases[i]
}

// DerivedOf returns the edges from classes deriving directly from class i.
func (g *Graph) DerivedOf(i int) []Edge {
	return g.derived[i]
}
