package descriptor

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"class-importer/internal/errs"
)

// LoadFile loads and parses a class description from the given path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Input(err, "failed to read class description "+path).WithContext("path", path)
	}

	return Parse(data)
}

// Parse parses a JSON or YAML class description.
func Parse(data []byte) (*Document, error) {
	var doc Document

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Input(err, "failed to parse class description")
	}

	normalize(&doc)

	return &doc, nil
}

// Marshal serializes a Document to YAML.
func Marshal(doc *Document) ([]byte, error) {
	return yaml.Marshal(doc)
}

// normalize trims names so lookups by name are exact.
func normalize(doc *Document) {
	for i := range doc.Structures {
		c := &doc.Structures[i]
		c.Name = strings.TrimSpace(c.Name)

		for j := range c.Bases {
			c.Bases[j].Name = strings.TrimSpace(c.Bases[j].Name)
		}
	}

	for i := range doc.Inheritance {
		doc.Inheritance[i].Derived = strings.TrimSpace(doc.Inheritance[i].Derived)
		doc.Inheritance[i].Base = strings.TrimSpace(doc.Inheritance[i].Base)
	}
}
