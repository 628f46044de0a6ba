package ruledsl

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// TypeDecl declares one entity or relationship type.
type TypeDecl struct {
	Name string `yaml:"name"`
	// Kind is "entity" (default) or "relationship".
	Kind       string   `yaml:"kind,omitempty"`
	Abstract   bool     `yaml:"abstract,omitempty"`
	Extends    string   `yaml:"extends,omitempty"`
	Keys       []string `yaml:"keys,omitempty"`
	Properties []string `yaml:"properties,omitempty"`
}

// Document is a YAML schema file: type declarations plus rule text.
//
//	types:
//	  - name: Person
//	    keys: [surname]
//	    properties: [surname, dob]
//	rules: |
//	  Person to Person as Partner
type Document struct {
	Name  string     `yaml:"name,omitempty"`
	Types []TypeDecl `yaml:"types"`
	Rules string     `yaml:"rules"`
}

// ParsedRules parses the document's rule text.
func (d *Document) ParsedRules() []Rule {
	return ParseRules(d.Rules)
}

// DecodeDocument reads a YAML schema document. Unknown fields are rejected.
func DecodeDocument(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return &doc, nil
		}
		return nil, fmt.Errorf("decode schema document: %w", err)
	}
	for i, t := range doc.Types {
		switch t.Kind {
		case "", "entity", "relationship":
		default:
			return nil, fmt.Errorf("type %d (%s): unknown kind %q", i, t.Name, t.Kind)
		}
	}
	return &doc, nil
}

// LoadDocumentFile reads and decodes the YAML schema document at path.
func LoadDocumentFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema document: %w", err)
	}
	return DecodeDocument(bytes.NewReader(data))
}
