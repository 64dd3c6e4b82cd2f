package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// legacyTagNames lists tag kinds accepted by the parser purely for
// backwards compatibility; see LegacyTag.
var legacyTagNames = map[string]bool{
	"file": true, "req": true, "spec": true, "unroll": true, "map": true,
}

// Forest is the parsed-but-unvalidated result of Parse: every top-level
// tagged record found across one or more documents, grouped by kind, plus
// every legacy-tag occurrence for the one-warning-per-kind rule.
type Forest struct {
	Defs       []*Def
	Ports      []*Port
	Hises      []*His
	Groups     []*Group
	Configs    []*Config
	Defines    []*Define
	Mods       []*Mod
	Insts      []*Inst
	LegacyHit  map[string]bool
}

func newForest() *Forest {
	return &Forest{LegacyHit: make(map[string]bool)}
}

// ParseError is returned for unknown tags, unknown attributes, duplicate
// attributes, and value-type mismatches (§7 "Parser" error kind).
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Parse decodes a preprocessed YAML document (a sequence of single-key
// tagged mappings, as described in SPEC_FULL.md §4.2) into a Forest,
// attributing (file, line) to every record produced.
func Parse(file string, content []byte) (*Forest, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, &ParseError{File: file, Line: 0, Msg: err.Error()}
	}
	forest := newForest()
	if len(root.Content) == 0 {
		return forest, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.SequenceNode {
		return nil, &ParseError{File: file, Line: doc.Line, Msg: "top-level document must be a sequence of tagged records"}
	}
	for _, item := range doc.Content {
		if err := parseTopLevel(forest, file, item); err != nil {
			return nil, err
		}
	}
	return forest, nil
}

func parseTopLevel(forest *Forest, file string, node *yaml.Node) error {
	tag, body, err := splitTaggedNode(node)
	if err != nil {
		return &ParseError{File: file, Line: node.Line, Msg: err.Error()}
	}

	if legacyTagNames[tag] {
		forest.LegacyHit[tag] = true
		return nil
	}

	setPos := func(b *Base) {
		b.Pos = Pos{File: file, Line: body.Line}
	}

	switch tag {
	case "def":
		v := &Def{}
		if err := v.UnmarshalYAML(body); err != nil {
			return wrapParse(file, body, err)
		}
		setPos(&v.Base)
		forest.Defs = append(forest.Defs, v)
	case "port":
		v := &Port{}
		if err := v.UnmarshalYAML(body); err != nil {
			return wrapParse(file, body, err)
		}
		setPos(&v.Base)
		forest.Ports = append(forest.Ports, v)
	case "his":
		v := &His{}
		if err := v.UnmarshalYAML(body); err != nil {
			return wrapParse(file, body, err)
		}
		setPos(&v.Base)
		forest.Hises = append(forest.Hises, v)
	case "group":
		v := &Group{}
		if err := v.UnmarshalYAML(body); err != nil {
			return wrapParse(file, body, err)
		}
		setPos(&v.Base)
		forest.Groups = append(forest.Groups, v)
	case "config":
		v := &Config{}
		if err := v.UnmarshalYAML(body); err != nil {
			return wrapParse(file, body, err)
		}
		setPos(&v.Base)
		forest.Configs = append(forest.Configs, v)
	case "define":
		v := &Define{}
		if err := v.UnmarshalYAML(body); err != nil {
			return wrapParse(file, body, err)
		}
		setPos(&v.Base)
		forest.Defines = append(forest.Defines, v)
	case "mod":
		v := &Mod{}
		if err := v.UnmarshalYAML(body); err != nil {
			return wrapParse(file, body, err)
		}
		setPos(&v.Base)
		forest.Mods = append(forest.Mods, v)
	case "inst":
		v := &Inst{}
		if err := v.UnmarshalYAML(body); err != nil {
			return wrapParse(file, body, err)
		}
		setPos(&v.Base)
		forest.Insts = append(forest.Insts, v)
	default:
		return &ParseError{File: file, Line: node.Line, Msg: fmt.Sprintf("unknown tag %q", tag)}
	}
	return nil
}

func wrapParse(file string, node *yaml.Node, err error) error {
	return &ParseError{File: file, Line: node.Line, Msg: err.Error()}
}

// splitTaggedNode validates that node is a single-key mapping naming a tag
// kind, and returns the tag name (lower-cased as written) and the value
// node holding the record's body.
func splitTaggedNode(node *yaml.Node) (string, *yaml.Node, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return "", nil, fmt.Errorf("line %d: expected a single-key tagged record", node.Line)
	}
	return node.Content[0].Value, node.Content[1], nil
}

func errUnknownComponentTag(tag string, line int) error {
	return fmt.Errorf("line %d: unknown tag %q", line, tag)
}
