package schema

import "gopkg.in/yaml.v3"

// Def is a named integer value whose right-hand side may reference other
// Defs; resolved by the define resolver (internal/elaborate).
type Def struct {
	Base
	Expr string
}

func (d *Def) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &d.Base, []field{
		{name: "expr", required: true, set: setString(&d.Expr)},
	})
}

// Port is a primitive interconnect leaf.
type Port struct {
	Base
	Width   int
	Count   *int
	Default *int
	Role    string // "master" | "slave"
	Enums   []*Enum
}

func (p *Port) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &p.Base, []field{
		{name: "width", required: true, set: setInt(&p.Width)},
		{name: "count", set: setOptInt(&p.Count)},
		{name: "default", set: setOptInt(&p.Default)},
		{name: "role", required: true, set: setString(&p.Role)},
		{name: "enums", set: func(v *yaml.Node) error { return v.Decode(&p.Enums) }},
	})
}

// Enum is a (name, value, description) tuple attached to a Port or Field.
type Enum struct {
	Base
	Value int
}

func (e *Enum) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &e.Base, []field{
		{name: "value", required: true, set: setInt(&e.Value)},
	})
}

// HisComponent is either a Port or a HisRef, in the declaration order of
// the owning His's component list.
type HisComponent struct {
	Port   *Port
	HisRef *HisRef
}

func (c *HisComponent) UnmarshalYAML(node *yaml.Node) error {
	// A component document is itself a single-key mapping naming its tag,
	// same as any top-level tagged record; see schema.Parse.
	tag, body, err := splitTaggedNode(node)
	if err != nil {
		return err
	}
	switch tag {
	case "port":
		c.Port = &Port{}
		return c.Port.UnmarshalYAML(body)
	case "hisref":
		c.HisRef = &HisRef{}
		return c.HisRef.UnmarshalYAML(body)
	default:
		return errUnknownComponentTag(tag, node.Line)
	}
}

// His is a named interconnect type: an ordered list of components.
type His struct {
	Base
	Components []*HisComponent
}

func (h *His) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &h.Base, []field{
		{name: "components", required: true, set: func(v *yaml.Node) error { return v.Decode(&h.Components) }},
	})
}

// HisRef instantiates a His, either as a His component or as a module port.
type HisRef struct {
	Base
	Type  string // name of the referenced His
	Count *int
	Role  string
}

func (r *HisRef) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &r.Base, []field{
		{name: "type", required: true, set: setString(&r.Type)},
		{name: "count", set: setOptInt(&r.Count)},
		{name: "role", set: setString(&r.Role)},
	})
}

// Field is a register bit-field.
type Field struct {
	Base
	Width  int
	Lsb    *int
	Msb    *int
	Signed bool
	Reset  *int
	Enums  []*Enum
	// Fixed names the enumerated value this field is constrained to when
	// the field appears on an Inst that extends a parent instruction.
	Fixed *string
}

func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &f.Base, []field{
		{name: "width", required: true, set: setInt(&f.Width)},
		{name: "lsb", set: setOptInt(&f.Lsb)},
		{name: "msb", set: setOptInt(&f.Msb)},
		{name: "signed", set: setBool(&f.Signed)},
		{name: "reset", set: setOptInt(&f.Reset)},
		{name: "enums", set: func(v *yaml.Node) error { return v.Decode(&f.Enums) }},
		{name: "fixed", set: setOptString(&f.Fixed)},
	})
}

// Reg is a register declaration within a Group.
type Reg struct {
	Base
	Addr        *int
	Align       *int
	Array       *int
	BlockAccess string
	BusAccess   string
	InstAccess  string
	Location    string // internal | wrapper | core
	Fields      []*Field
}

func (r *Reg) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &r.Base, []field{
		{name: "addr", set: setOptInt(&r.Addr)},
		{name: "align", set: setOptInt(&r.Align)},
		{name: "array", set: setOptInt(&r.Array)},
		{name: "blockaccess", set: setString(&r.BlockAccess)},
		{name: "busaccess", set: setString(&r.BusAccess)},
		{name: "instaccess", set: setString(&r.InstAccess)},
		{name: "location", set: setString(&r.Location)},
		{name: "fields", set: func(v *yaml.Node) error { return v.Decode(&r.Fields) }},
	})
}

// ArrayCount returns the register's array multiplicity, defaulting to 1.
func (r *Reg) ArrayCount() int {
	if r.Array == nil {
		return 1
	}
	return *r.Array
}

// Group is an ordered list of Regs, placed as a unit by a Config entry.
type Group struct {
	Base
	Type string // "register" | "macro", default "register"
	Regs []*Reg
}

func (g *Group) UnmarshalYAML(node *yaml.Node) error {
	if err := decodeRecord(node, &g.Base, []field{
		{name: "type", set: setString(&g.Type)},
		{name: "regs", required: true, set: func(v *yaml.Node) error { return v.Decode(&g.Regs) }},
	}); err != nil {
		return err
	}
	if g.Type == "" {
		g.Type = "register"
	}
	return nil
}

// ConfigEntry is one placement directive: a Register or a Macro.
type ConfigEntry struct {
	Register *RegisterPlacement
	Macro    *MacroPlacement
}

func (c *ConfigEntry) UnmarshalYAML(node *yaml.Node) error {
	tag, body, err := splitTaggedNode(node)
	if err != nil {
		return err
	}
	switch tag {
	case "register":
		c.Register = &RegisterPlacement{}
		return c.Register.UnmarshalYAML(body)
	case "macro":
		c.Macro = &MacroPlacement{}
		return c.Macro.UnmarshalYAML(body)
	default:
		return errUnknownComponentTag(tag, node.Line)
	}
}

// RegisterPlacement places a non-macro Group once.
type RegisterPlacement struct {
	Base
	Group string
}

func (r *RegisterPlacement) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &r.Base, []field{
		{name: "group", required: true, set: setString(&r.Group)},
	})
}

// MacroPlacement places Array copies of a macro-typed Group.
type MacroPlacement struct {
	Base
	Group  string
	Prefix string
	Array  int
	Align  *int
}

func (m *MacroPlacement) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &m.Base, []field{
		{name: "group", required: true, set: setString(&m.Group)},
		{name: "prefix", required: true, set: setString(&m.Prefix)},
		{name: "array", required: true, set: setInt(&m.Array)},
		{name: "align", set: setOptInt(&m.Align)},
	})
}

// Config orders a Block's register placement.
type Config struct {
	Base
	Entries []*ConfigEntry
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &c.Base, []field{
		{name: "entries", required: true, set: func(v *yaml.Node) error { return v.Decode(&c.Entries) }},
	})
}

// Define overrides specific attributes of a placed (group, reg[, field])
// at instantiation. Overrides are carried as raw strings and interpreted
// by the register elaborator, since the set of overridable attributes
// differs between a Reg override and a Field override.
type Define struct {
	Base
	Group     string
	Reg       string
	Field     *string
	Overrides map[string]string
}

func (d *Define) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &d.Base, []field{
		{name: "group", required: true, set: setString(&d.Group)},
		{name: "reg", required: true, set: setString(&d.Reg)},
		{name: "field", set: setOptString(&d.Field)},
		{name: "overrides", set: func(v *yaml.Node) error { return v.Decode(&d.Overrides) }},
	})
}

// Point references a port, optionally on a named child module, optionally
// at a specific signal index.
type Point struct {
	Port        string
	Module      *string
	SignalIndex *int
}

func (p *Point) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &Base{}, []field{
		{name: "port", required: true, set: setString(&p.Port)},
		{name: "module", set: setOptString(&p.Module)},
		{name: "signal_index", set: setOptInt(&p.SignalIndex)},
	})
}

// Const is a literal integer source for a Connect.
type Const struct {
	Value int
}

func (c *Const) UnmarshalYAML(node *yaml.Node) error {
	return node.Decode(&c.Value)
}

// Connect expresses an ordered initiator -> target(s) wiring.
type Connect struct {
	Base
	Points []*Point
	Const  *Const
}

func (c *Connect) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &c.Base, []field{
		{name: "points", required: true, set: func(v *yaml.Node) error { return v.Decode(&c.Points) }},
		{name: "const", set: func(v *yaml.Node) error { return v.Decode(&c.Const) }},
	})
}

// ModInst instantiates a Mod as a named child.
type ModInst struct {
	Base
	InstanceName string
	ModType      string
	Count        *int
}

func (m *ModInst) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &m.Base, []field{
		{name: "instance_name", required: true, set: setString(&m.InstanceName)},
		{name: "mod_type", required: true, set: setString(&m.ModType)},
		{name: "count", set: setOptInt(&m.Count)},
	})
}

// ArrayCount returns the instance multiplicity, defaulting to 1.
func (m *ModInst) ArrayCount() int {
	if m.Count == nil {
		return 1
	}
	return *m.Count
}

// AddrMapEntry is one Initiator or Target declaration in a Mod's
// addressmap list.
type AddrMapEntry struct {
	Initiator *Initiator
	Target    *Target
}

func (e *AddrMapEntry) UnmarshalYAML(node *yaml.Node) error {
	tag, body, err := splitTaggedNode(node)
	if err != nil {
		return err
	}
	switch tag {
	case "initiator":
		e.Initiator = &Initiator{}
		return e.Initiator.UnmarshalYAML(body)
	case "target":
		e.Target = &Target{}
		return e.Target.UnmarshalYAML(body)
	default:
		return errUnknownComponentTag(tag, node.Line)
	}
}

// Initiator is a boundary-port role acting as ingress of an address-map.
type Initiator struct {
	Base
	Point       *Point
	Mask        int
	Offset      int
	Constraints []*Point
}

func (i *Initiator) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &i.Base, []field{
		{name: "point", required: true, set: func(v *yaml.Node) error { return v.Decode(&i.Point) }},
		{name: "mask", required: true, set: setInt(&i.Mask)},
		{name: "offset", set: setInt(&i.Offset)},
		{name: "constraints", set: func(v *yaml.Node) error { return v.Decode(&i.Constraints) }},
	})
}

// Target is a boundary-port role acting as egress of an address-map.
type Target struct {
	Base
	Point       *Point
	Offset      int
	Aperture    int
	Constraints []*Point
}

func (t *Target) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &t.Base, []field{
		{name: "point", required: true, set: func(v *yaml.Node) error { return v.Decode(&t.Point) }},
		{name: "offset", set: setInt(&t.Offset)},
		{name: "aperture", required: true, set: setInt(&t.Aperture)},
		{name: "constraints", set: func(v *yaml.Node) error { return v.Decode(&t.Constraints) }},
	})
}

// Mod is a module declaration: ports, children, connections, address map.
type Mod struct {
	Base
	Ports       []*HisRef
	Modules     []*ModInst
	Connections []*Connect
	Defaults    []*Point
	ClkRoot     *Point
	RstRoot     *Point
	AddressMap  []*AddrMapEntry
}

func (m *Mod) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &m.Base, []field{
		{name: "ports", set: func(v *yaml.Node) error { return v.Decode(&m.Ports) }},
		{name: "modules", set: func(v *yaml.Node) error { return v.Decode(&m.Modules) }},
		{name: "connections", set: func(v *yaml.Node) error { return v.Decode(&m.Connections) }},
		{name: "defaults", set: func(v *yaml.Node) error { return v.Decode(&m.Defaults) }},
		{name: "clk_root", set: func(v *yaml.Node) error { return v.Decode(&m.ClkRoot) }},
		{name: "rst_root", set: func(v *yaml.Node) error { return v.Decode(&m.RstRoot) }},
		{name: "addressmap", set: func(v *yaml.Node) error { return v.Decode(&m.AddressMap) }},
	})
}

// Inst is an instruction record; either extends a parent Inst, fixing one
// enumerated Field value, or declares its own Field list outright.
type Inst struct {
	Base
	Extends *string
	Fields  []*Field
}

func (i *Inst) UnmarshalYAML(node *yaml.Node) error {
	return decodeRecord(node, &i.Base, []field{
		{name: "extends", set: setOptString(&i.Extends)},
		{name: "fields", set: func(v *yaml.Node) error { return v.Decode(&i.Fields) }},
	})
}

// LegacyTag captures a tag kind accepted for compatibility only (File, Req,
// Spec, Unroll, Map): silently ignored by validation and elaboration,
// logged once per kind by the report package.
type LegacyTag struct {
	Base
	Kind string
}
