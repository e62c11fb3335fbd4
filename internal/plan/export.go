package plan

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"class-importer/internal/diagnostic"
)

// Report is the reviewable form of an ImportPlan.
type Report struct {
	MD5                string                 `yaml:"md5,omitempty"`
	Filename           string                 `yaml:"filename,omitempty"`
	DedicatedNamespace bool                   `yaml:"dedicated_namespace"`
	PointerSize        uint64                 `yaml:"pointer_size"`
	Classes            []ClassReport          `yaml:"classes"`
	Conflicts          []ConflictReport       `yaml:"conflicts,omitempty"`
	Diagnostics        diagnostic.Diagnostics `yaml:"diagnostics,omitempty"`
}

// ClassReport describes one planned class.
type ClassReport struct {
	Name      string         `yaml:"name"`
	Namespace string         `yaml:"namespace"`
	Type      EntityReport   `yaml:"type"`
	Vtables   []VtableReport `yaml:"vtables,omitempty"`
	Bases     []BaseReport   `yaml:"bases,omitempty"`
	Methods   []MethodReport `yaml:"methods,omitempty"`
}

// EntityReport describes one named entity decision.
type EntityReport struct {
	Action    string `yaml:"action"`
	Name      string `yaml:"name"`
	Requested string `yaml:"requested,omitempty"`
	Size      uint64 `yaml:"size,omitempty"`
	Reason    string `yaml:"reason,omitempty"`
}

// VtableReport describes one planned vtable.
type VtableReport struct {
	EntityReport `yaml:",inline"`
	Base         string   `yaml:"base,omitempty"`
	Slots        []string `yaml:"slots"`
}

// BaseReport describes one base link.
type BaseReport struct {
	Type    string `yaml:"type"`
	Offset  uint64 `yaml:"offset"`
	Virtual bool   `yaml:"virtual,omitempty"`
}

// MethodReport describes one method binding.
type MethodReport struct {
	Address string `yaml:"address"`
	Kind    string `yaml:"kind"`
	Action  string `yaml:"action"`
	From    string `yaml:"from"`
	To      string `yaml:"to"`
}

// ConflictReport describes one rename.
type ConflictReport struct {
	Kind      string `yaml:"kind"`
	Class     string `yaml:"class"`
	Scope     string `yaml:"scope"`
	Requested string `yaml:"requested"`
	Resolved  string `yaml:"resolved"`
	Reason    string `yaml:"reason"`
}

func entity(d Decision, size uint64) EntityReport {
	r := EntityReport{
		Action: d.Action.String(),
		Name:   d.Path().String(),
		Size:   size,
		Reason: d.Reason,
	}

	if d.Requested != d.Name {
		r.Requested = d.Requested
	}

	return r
}

// GenerateReport builds the reviewable form of p.
func GenerateReport(p *ImportPlan) *Report {
	r := &Report{
		DedicatedNamespace: p.Options.UseDedicatedNamespace,
		PointerSize:        p.PointerSize,
		Classes:            []ClassReport{},
		Diagnostics:        p.Diagnostics,
	}

	if p.MD5 != nil {
		r.MD5 = strings.ToLower(*p.MD5)
	}

	if p.Filename != nil {
		r.Filename = *p.Filename
	}

	for i := range p.Classes {
		cp := &p.Classes[i]
		cr := ClassReport{
			Name:      cp.Class.Name,
			Namespace: cp.NamespacePath().String(),
			Type:      entity(cp.Type, cp.Class.Size),
		}

		for _, vt := range cp.Vtables {
			vr := VtableReport{
				EntityReport: entity(vt.Type, uint64(len(vt.Slots))*p.PointerSize),
				Slots:        make([]string, 0, len(vt.Slots)),
			}

			switch {
			case vt.BaseAddress != nil:
				vr.Base = fmt.Sprintf("0x%x", *vt.BaseAddress)
			case vt.BaseSymbol != "":
				vr.Base = vt.BaseSymbol
			}

			for _, s := range vt.Slots {
				vr.Slots = append(vr.Slots, slotString(s))
			}

			cr.Vtables = append(cr.Vtables, vr)
		}

		for _, b := range cp.Bases {
			cr.Bases = append(cr.Bases, BaseReport{Type: b.Type.String(), Offset: b.Offset, Virtual: b.Virtual})
		}

		for _, m := range cp.Methods {
			cr.Methods = append(cr.Methods, MethodReport{
				Address: fmt.Sprintf("0x%x", m.Address),
				Kind:    m.Kind.String(),
				Action:  m.Decision.Action.String(),
				From:    m.Function.QualifiedName(),
				To:      m.Decision.Path().String(),
			})
		}

		r.Classes = append(r.Classes, cr)
	}

	for _, c := range p.Conflicts {
		r.Conflicts = append(r.Conflicts, ConflictReport{
			Kind:      c.Kind.String(),
			Class:     c.Class,
			Scope:     c.Scope.String(),
			Requested: c.Requested,
			Resolved:  c.Resolved,
			Reason:    c.Reason,
		})
	}

	return r
}

func slotString(s SlotPlan) string {
	switch {
	case s.Target != nil && s.Thunk:
		return fmt.Sprintf("%s -> 0x%x (thunk)", s.Name, *s.Target)
	case s.Target != nil:
		return fmt.Sprintf("%s -> 0x%x", s.Name, *s.Target)
	case s.Thunk:
		return s.Name + " -> thunk"
	default:
		return s.Name + " -> ?"
	}
}

// ExportYAML renders the plan for review.
func ExportYAML(p *ImportPlan) ([]byte, error) {
	return yaml.Marshal(GenerateReport(p))
}

// FormatReport formats a report as human-readable text.
func FormatReport(r *Report) string {
	var sb strings.Builder

	for _, c := range r.Classes {
		sb.WriteString(fmt.Sprintf("\n=== %s -> %s ===\n", c.Name, c.Type.Name))
		sb.WriteString(fmt.Sprintf("Type: %s (%d bytes)", c.Type.Action, c.Type.Size))

		if c.Type.Reason != "" {
			sb.WriteString(", " + c.Type.Reason)
		}

		sb.WriteString("\n")

		for _, b := range c.Bases {
			kind := "base"
			if b.Virtual {
				kind = "virtual base"
			}

			sb.WriteString(fmt.Sprintf("  %s %s at 0x%x\n", kind, b.Type, b.Offset))
		}

		for _, vt := range c.Vtables {
			sb.WriteString(fmt.Sprintf("  %s %s, %d slots\n", vt.Action, vt.Name, len(vt.Slots)))
		}

		for _, m := range c.Methods {
			sb.WriteString(fmt.Sprintf("  %s %s -> %s\n", m.Action, m.From, m.To))
		}
	}

	if len(r.Conflicts) > 0 {
		sb.WriteString("\nRenamed:\n")

		for _, c := range r.Conflicts {
			sb.WriteString(fmt.Sprintf("  %s %s::%s -> %s (%s)\n", c.Kind, c.Scope, c.Requested, c.Resolved, c.Reason))
		}
	}

	if n := len(r.Diagnostics.Warnings); n > 0 {
		sb.WriteString(fmt.Sprintf("\n%d warning(s):\n", n))

		for _, w := range r.Diagnostics.Warnings {
			sb.WriteString("  " + w.String() + "\n")
		}
	}

	return sb.String()
}
