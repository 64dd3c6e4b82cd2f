// Package schema implements the tagged-record object model described by
// the input documents: named records ("tags") that support both a mapping
// form (named attributes) and a sequence form (positional attributes, in
// declaration order), with duplicate-attribute and unknown-attribute
// rejection performed uniformly across every tag kind.
package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Pos records where a record was found, after preprocessing. Parse sets
// only File and Line; OriginalFile and OriginalLine are left empty.
type Pos struct {
	File         string
	Line         int
	OriginalFile string
	OriginalLine int
}

// Base carries the attributes common to every tag kind.
type Base struct {
	Name      string   `yaml:"name"`
	ShortDesc string   `yaml:"short_description"`
	LongDesc  string   `yaml:"long_description"`
	Options   []string `yaml:"-"`
	Pos       Pos      `yaml:"-"`
}

// HasOption reports whether flag is present in the record's options set.
// Options are free-form uppercase flags and are matched case-sensitively,
// as written in the source document.
func (b *Base) HasOption(flag string) bool {
	for _, o := range b.Options {
		if o == flag {
			return true
		}
	}
	return false
}

// field describes one attribute slot for the generic mapping/sequence
// decoder below: its name (for mapping form and error messages), whether
// it must be present, and how to consume the YAML node holding its value.
type field struct {
	name     string
	required bool
	set      func(*yaml.Node) error
}

// decodeRecord decodes node into the attributes described by fields, plus
// the three common attributes (name/short_description/long_description)
// and options, which every tag carries and which are handled here once
// rather than duplicated per tag kind.
//
// Mapping form: node is a YAML mapping; unknown keys and repeated keys are
// rejected. Sequence form: node is a YAML sequence; values are consumed
// positionally in the order fields are declared, trailing optional fields
// may be omitted.
func decodeRecord(node *yaml.Node, base *Base, fields []field) error {
	switch node.Kind {
	case yaml.MappingNode:
		return decodeMapping(node, base, fields)
	case yaml.SequenceNode:
		return decodeSequence(node, base, fields)
	default:
		return fmt.Errorf("%s: record body must be a mapping or sequence", where(node))
	}
}

func decodeMapping(node *yaml.Node, base *Base, fields []field) error {
	seen := make(map[string]bool)
	all := append([]field{
		{name: "name", set: func(v *yaml.Node) error { return v.Decode(&base.Name) }},
		{name: "short_description", set: func(v *yaml.Node) error { return v.Decode(&base.ShortDesc) }},
		{name: "long_description", set: func(v *yaml.Node) error { return v.Decode(&base.LongDesc) }},
		{name: "options", set: func(v *yaml.Node) error { return v.Decode(&base.Options) }},
	}, fields...)

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value
		if seen[key] {
			return fmt.Errorf("%s: duplicate attribute %q", where(keyNode), key)
		}
		seen[key] = true

		matched := false
		for _, f := range all {
			if f.name == key {
				if err := f.set(valNode); err != nil {
					return fmt.Errorf("%s: attribute %q: %w", where(valNode), key, err)
				}
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Errorf("%s: unknown attribute %q", where(keyNode), key)
		}
	}

	for _, f := range fields {
		if f.required && !seen[f.name] {
			return fmt.Errorf("%s: missing required attribute %q", where(node), f.name)
		}
	}
	return nil
}

func decodeSequence(node *yaml.Node, base *Base, fields []field) error {
	all := append([]field{
		{name: "name", set: func(v *yaml.Node) error { return v.Decode(&base.Name) }},
	}, fields...)

	if len(node.Content) > len(all) {
		return fmt.Errorf("%s: too many positional values (expected at most %d)", where(node), len(all))
	}
	for i, valNode := range node.Content {
		if err := all[i].set(valNode); err != nil {
			return fmt.Errorf("%s: positional attribute %q: %w", where(valNode), all[i].name, err)
		}
	}
	for i := len(node.Content); i < len(all); i++ {
		if all[i].required {
			return fmt.Errorf("%s: missing required positional attribute %q", where(node), all[i].name)
		}
	}
	return nil
}

func where(node *yaml.Node) string {
	return fmt.Sprintf("line %d", node.Line)
}

// setString/setInt/setOptInt/setBool are small adapters used repeatedly by
// tag UnmarshalYAML implementations when building field slices.

func setString(dst *string) func(*yaml.Node) error {
	return func(v *yaml.Node) error { return v.Decode(dst) }
}

func setOptString(dst **string) func(*yaml.Node) error {
	return func(v *yaml.Node) error {
		var s string
		if err := v.Decode(&s); err != nil {
			return err
		}
		*dst = &s
		return nil
	}
}

func setInt(dst *int) func(*yaml.Node) error {
	return func(v *yaml.Node) error { return v.Decode(dst) }
}

func setOptInt(dst **int) func(*yaml.Node) error {
	return func(v *yaml.Node) error {
		var i int
		if err := v.Decode(&i); err != nil {
			return err
		}
		*dst = &i
		return nil
	}
}

func setBool(dst *bool) func(*yaml.Node) error {
	return func(v *yaml.Node) error { return v.Decode(dst) }
}

func setStrings(dst *[]string) func(*yaml.Node) error {
	return func(v *yaml.Node) error { return v.Decode(dst) }
}
