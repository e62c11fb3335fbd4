package names

import (
	"fmt"
	"strings"
	"unicode"
)

// Separator joins the segments of a qualified name.
const Separator = "::"

// elaborated type specifiers emitted by demanglers in front of a name.
var elaborated = []string{"class ", "struct ", "union ", "enum "}

// Split splits a qualified name on "::" outside template argument lists and
// parameter lists. Empty segments are dropped.
// Examples:
//   - "ns::Widget" -> ["ns", "Widget"]
//   - "std::map<int,ns::T>::node" -> ["std", "map<int,ns::T>", "node"]
//   - "::Global" -> ["Global"]
func Split(qualified string) []string {
	s := Sanitize(qualified)
	if s == "" {
		return nil
	}

	var (
		parts   []string
		current strings.Builder
		depth   int
	)

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch r {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && i+1 < len(runes) && runes[i+1] == ':' {
				parts = appendSegment(parts, current.String())
				current.Reset()
				i++

				continue
			}
		}

		current.WriteRune(r)
	}

	return appendSegment(parts, current.String())
}

func appendSegment(parts []string, seg string) []string {
	seg = strings.TrimSpace(seg)
	if seg == "" {
		return parts
	}

	return append(parts, seg)
}

// Join joins segments into a qualified name.
func Join(parts []string) string {
	return strings.Join(parts, Separator)
}

// Sanitize collapses whitespace runs and drops a leading elaborated type
// specifier ("class ", "struct ", ...).
func Sanitize(s string) string {
	s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")

	for _, prefix := range elaborated {
		if strings.HasPrefix(s, prefix) {
			return strings.TrimSpace(s[len(prefix):])
		}
	}

	return s
}

// Disambiguate returns the n-th alternative for a taken name. Names placed
// in a dedicated namespace get a plain numeric suffix; names in the global
// scope are tagged so their origin stays recognizable.
// Examples:
//   - ("Widget", 1, true) -> "Widget_1"
//   - ("Widget", 2, false) -> "Widget_ooa2"
func Disambiguate(name string, n int, dedicated bool) string {
	if dedicated {
		return fmt.Sprintf("%s_%d", name, n)
	}

	return fmt.Sprintf("%s_ooa%d", name, n)
}
