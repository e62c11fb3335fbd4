package descriptor

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// --- Address YAML methods ---

// UnmarshalYAML accepts an integer, a hex string ("0x401000" or "401000h"),
// a decimal string, or a symbol name.
func (a *Address) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected address scalar, got %v", node.Line, node.Kind)
	}

	switch node.ShortTag() {
	case "!!int":
		v, err := strconv.ParseUint(strings.ReplaceAll(node.Value, "_", ""), 0, 64)
		if err != nil {
			return fmt.Errorf("line %d: malformed address %q", node.Line, node.Value)
		}

		*a = Address{Value: v}

		return nil

	case "!!str":
		parsed, err := ParseAddress(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}

		*a = parsed

		return nil

	default:
		return fmt.Errorf("line %d: malformed address %q", node.Line, node.Value)
	}
}

// MarshalYAML writes numeric addresses in hex.
func (a Address) MarshalYAML() (any, error) {
	return a.String(), nil
}

// ParseAddress parses the string forms of an address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}

	lower := strings.ToLower(s)

	switch {
	case strings.HasPrefix(lower, "0x"):
		v, err := strconv.ParseUint(lower[2:], 16, 64)
		if err != nil {
			return Address{}, fmt.Errorf("malformed address %q", s)
		}

		return Address{Value: v}, nil

	case strings.HasSuffix(lower, "h") && isHex(lower[:len(lower)-1]):
		v, err := strconv.ParseUint(lower[:len(lower)-1], 16, 64)
		if err != nil {
			return Address{}, fmt.Errorf("malformed address %q", s)
		}

		return Address{Value: v}, nil

	case isDecimal(s):
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return Address{}, fmt.Errorf("malformed address %q", s)
		}

		return Address{Value: v}, nil
	}

	if strings.ContainsFunc(s, unicode.IsSpace) || s[0] == '-' {
		return Address{}, fmt.Errorf("malformed address %q", s)
	}

	return Address{Symbol: s}, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}

	return true
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// --- SlotRef YAML methods ---

// thunkMarker is the scalar a producer writes for a slot pointing at a thunk.
const thunkMarker = "thunk"

// UnmarshalYAML accepts an address scalar, the "thunk" marker, or a map
// {address: ..., thunk: true}.
func (s *SlotRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() == "!!null" {
			*s = SlotRef{}
			return nil
		}

		if node.ShortTag() == "!!str" && strings.EqualFold(strings.TrimSpace(node.Value), thunkMarker) {
			*s = SlotRef{Thunk: true}
			return nil
		}

		var addr Address
		if err := addr.UnmarshalYAML(node); err != nil {
			return err
		}

		*s = SlotRef{Address: &addr}

		return nil

	case yaml.MappingNode:
		var raw struct {
			Address *Address `yaml:"address"`
			Thunk   bool     `yaml:"thunk"`
		}

		if err := node.Decode(&raw); err != nil {
			return err
		}

		*s = SlotRef{Address: raw.Address, Thunk: raw.Thunk}

		return nil

	default:
		return fmt.Errorf("line %d: expected slot address, %q or null, got %v", node.Line, thunkMarker, node.Kind)
	}
}

// MarshalYAML writes unknown slots as null and thunks as the marker.
func (s SlotRef) MarshalYAML() (any, error) {
	switch {
	case s.Address != nil && s.Thunk:
		return map[string]any{"address": s.Address.String(), "thunk": true}, nil
	case s.Address != nil:
		return s.Address.String(), nil
	case s.Thunk:
		return thunkMarker, nil
	default:
		return nil, nil
	}
}

// --- SlotList YAML methods ---

// UnmarshalYAML keeps null entries in place so slot indices stay positional.
func (l *SlotList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: expected slot list, got %v", node.Line, node.Kind)
	}

	slots := make(SlotList, len(node.Content))

	for i, item := range node.Content {
		if err := slots[i].UnmarshalYAML(item); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
	}

	*l = slots

	return nil
}

// --- ClassList YAML methods ---

// UnmarshalYAML accepts either a list of classes or a map keyed by class
// name. A class without a name inside the map takes its key.
func (l *ClassList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		classes := make(ClassList, 0, len(node.Content))

		for _, item := range node.Content {
			var c ClassDescriptor
			if err := item.Decode(&c); err != nil {
				return err
			}

			classes = append(classes, c)
		}

		*l = classes

		return nil

	case yaml.MappingNode:
		classes := make(ClassList, 0, len(node.Content)/2)

		for i := 0; i+1 < len(node.Content); i += 2 {
			var c ClassDescriptor
			if err := node.Content[i+1].Decode(&c); err != nil {
				return err
			}

			if c.Name == "" {
				c.Name = node.Content[i].Value
			}

			classes = append(classes, c)
		}

		*l = classes

		return nil

	default:
		return fmt.Errorf("line %d: expected list or map of structures, got %v", node.Line, node.Kind)
	}
}

// --- MethodKind YAML methods ---

// UnmarshalYAML parses a method kind by name.
func (k *MethodKind) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := ParseMethodKind(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	*k = parsed

	return nil
}

var methodKindNames = map[MethodKind]string{
	MethodKindNonVirtual:  "nonvirtual",
	MethodKindConstructor: "ctor",
	MethodKindDestructor:  "dtor",
	MethodKindVirtual:     "virtual",
	MethodKindStatic:      "static",
}

// MarshalYAML writes the short spelling of the kind.
func (k MethodKind) MarshalYAML() (any, error) {
	if n, ok := methodKindNames[k]; ok {
		return n, nil
	}

	return nil, fmt.Errorf("invalid method kind %d", int(k))
}
