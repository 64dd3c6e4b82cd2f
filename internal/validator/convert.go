package validator

import "github.com/bluwireless/blade/internal/schema"

// baseFields and the per-kind converters below render a schema tag as the
// plain JSON-shaped value the CUE schema in schema.cue expects. Parsing already enforces attribute names and
// mapping/sequence shape (internal/schema/decode.go); this validator
// enforces value-level structure: widths positive, roles enumerated,
// address-map apertures positive, and so on.
func baseFields(b schema.Base) map[string]interface{} {
	m := map[string]interface{}{}
	if b.Name != "" {
		m["name"] = b.Name
	}
	if b.ShortDesc != "" {
		m["short_description"] = b.ShortDesc
	}
	if b.LongDesc != "" {
		m["long_description"] = b.LongDesc
	}
	if len(b.Options) > 0 {
		m["options"] = b.Options
	}
	return m
}

func optInt(m map[string]interface{}, key string, v *int) {
	if v != nil {
		m[key] = *v
	}
}

func optStr(m map[string]interface{}, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

func enumsMap(enums []*schema.Enum) []interface{} {
	out := make([]interface{}, len(enums))
	for i, e := range enums {
		out[i] = enumMap(e)
	}
	return out
}

func enumMap(e *schema.Enum) map[string]interface{} {
	m := baseFields(e.Base)
	m["value"] = e.Value
	return m
}

func defMap(d *schema.Def) map[string]interface{} {
	m := baseFields(d.Base)
	m["expr"] = d.Expr
	return m
}

func portMap(p *schema.Port) map[string]interface{} {
	m := baseFields(p.Base)
	m["width"] = p.Width
	m["role"] = p.Role
	optInt(m, "count", p.Count)
	optInt(m, "default", p.Default)
	if len(p.Enums) > 0 {
		m["enums"] = enumsMap(p.Enums)
	}
	return m
}

func hisRefMap(r *schema.HisRef) map[string]interface{} {
	m := baseFields(r.Base)
	m["type"] = r.Type
	optInt(m, "count", r.Count)
	if r.Role != "" {
		m["role"] = r.Role
	}
	return m
}

func hisMap(h *schema.His) map[string]interface{} {
	m := baseFields(h.Base)
	comps := make([]interface{}, len(h.Components))
	for i, c := range h.Components {
		switch {
		case c.Port != nil:
			comps[i] = portMap(c.Port)
		case c.HisRef != nil:
			comps[i] = hisRefMap(c.HisRef)
		}
	}
	m["components"] = comps
	return m
}

func fieldMap(f *schema.Field) map[string]interface{} {
	m := baseFields(f.Base)
	m["width"] = f.Width
	m["signed"] = f.Signed
	optInt(m, "lsb", f.Lsb)
	optInt(m, "msb", f.Msb)
	optInt(m, "reset", f.Reset)
	optStr(m, "fixed", f.Fixed)
	if len(f.Enums) > 0 {
		m["enums"] = enumsMap(f.Enums)
	}
	return m
}

func regMap(r *schema.Reg) map[string]interface{} {
	m := baseFields(r.Base)
	optInt(m, "addr", r.Addr)
	optInt(m, "align", r.Align)
	optInt(m, "array", r.Array)
	m["blockaccess"] = r.BlockAccess
	m["busaccess"] = r.BusAccess
	m["instaccess"] = r.InstAccess
	m["location"] = r.Location
	if len(r.Fields) > 0 {
		fields := make([]interface{}, len(r.Fields))
		for i, f := range r.Fields {
			fields[i] = fieldMap(f)
		}
		m["fields"] = fields
	}
	return m
}

func groupMap(g *schema.Group) map[string]interface{} {
	m := baseFields(g.Base)
	m["type"] = g.Type
	regs := make([]interface{}, len(g.Regs))
	for i, r := range g.Regs {
		regs[i] = regMap(r)
	}
	m["regs"] = regs
	return m
}

func configMap(c *schema.Config) map[string]interface{} {
	m := baseFields(c.Base)
	entries := make([]interface{}, len(c.Entries))
	for i, e := range c.Entries {
		switch {
		case e.Register != nil:
			rm := baseFields(e.Register.Base)
			rm["group"] = e.Register.Group
			entries[i] = rm
		case e.Macro != nil:
			mm := baseFields(e.Macro.Base)
			mm["group"] = e.Macro.Group
			mm["prefix"] = e.Macro.Prefix
			mm["array"] = e.Macro.Array
			optInt(mm, "align", e.Macro.Align)
			entries[i] = mm
		}
	}
	m["entries"] = entries
	return m
}

func defineMap(d *schema.Define) map[string]interface{} {
	m := baseFields(d.Base)
	m["group"] = d.Group
	m["reg"] = d.Reg
	optStr(m, "field", d.Field)
	if len(d.Overrides) > 0 {
		m["overrides"] = d.Overrides
	}
	return m
}

func pointMap(p *schema.Point) map[string]interface{} {
	if p == nil {
		return nil
	}
	m := map[string]interface{}{"port": p.Port}
	optStr(m, "module", p.Module)
	optInt(m, "signal_index", p.SignalIndex)
	return m
}

func connectMap(c *schema.Connect) map[string]interface{} {
	m := baseFields(c.Base)
	points := make([]interface{}, len(c.Points))
	for i, p := range c.Points {
		points[i] = pointMap(p)
	}
	m["points"] = points
	if c.Const != nil {
		m["const"] = c.Const.Value
	}
	return m
}

func modInstMap(mi *schema.ModInst) map[string]interface{} {
	m := baseFields(mi.Base)
	m["instance_name"] = mi.InstanceName
	m["mod_type"] = mi.ModType
	optInt(m, "count", mi.Count)
	return m
}

func initiatorMap(i *schema.Initiator) map[string]interface{} {
	m := baseFields(i.Base)
	m["point"] = pointMap(i.Point)
	m["mask"] = i.Mask
	m["offset"] = i.Offset
	if len(i.Constraints) > 0 {
		cs := make([]interface{}, len(i.Constraints))
		for j, p := range i.Constraints {
			cs[j] = pointMap(p)
		}
		m["constraints"] = cs
	}
	return m
}

func targetMap(t *schema.Target) map[string]interface{} {
	m := baseFields(t.Base)
	m["point"] = pointMap(t.Point)
	m["offset"] = t.Offset
	m["aperture"] = t.Aperture
	if len(t.Constraints) > 0 {
		cs := make([]interface{}, len(t.Constraints))
		for j, p := range t.Constraints {
			cs[j] = pointMap(p)
		}
		m["constraints"] = cs
	}
	return m
}

func modMap(mo *schema.Mod) map[string]interface{} {
	m := baseFields(mo.Base)
	if len(mo.Ports) > 0 {
		ports := make([]interface{}, len(mo.Ports))
		for i, p := range mo.Ports {
			ports[i] = hisRefMap(p)
		}
		m["ports"] = ports
	}
	if len(mo.Modules) > 0 {
		mods := make([]interface{}, len(mo.Modules))
		for i, mi := range mo.Modules {
			mods[i] = modInstMap(mi)
		}
		m["modules"] = mods
	}
	if len(mo.Connections) > 0 {
		conns := make([]interface{}, len(mo.Connections))
		for i, c := range mo.Connections {
			conns[i] = connectMap(c)
		}
		m["connections"] = conns
	}
	if len(mo.Defaults) > 0 {
		defs := make([]interface{}, len(mo.Defaults))
		for i, p := range mo.Defaults {
			defs[i] = pointMap(p)
		}
		m["defaults"] = defs
	}
	if mo.ClkRoot != nil {
		m["clk_root"] = pointMap(mo.ClkRoot)
	}
	if mo.RstRoot != nil {
		m["rst_root"] = pointMap(mo.RstRoot)
	}
	if len(mo.AddressMap) > 0 {
		am := make([]interface{}, len(mo.AddressMap))
		for i, e := range mo.AddressMap {
			switch {
			case e.Initiator != nil:
				am[i] = initiatorMap(e.Initiator)
			case e.Target != nil:
				am[i] = targetMap(e.Target)
			}
		}
		m["addressmap"] = am
	}
	return m
}

func instMap(i *schema.Inst) map[string]interface{} {
	m := baseFields(i.Base)
	optStr(m, "extends", i.Extends)
	if len(i.Fields) > 0 {
		fields := make([]interface{}, len(i.Fields))
		for j, f := range i.Fields {
			fields[j] = fieldMap(f)
		}
		m["fields"] = fields
	}
	return m
}
