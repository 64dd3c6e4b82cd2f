package elaborate

import (
	"github.com/bluwireless/blade/internal/design"
	"github.com/bluwireless/blade/internal/schema"
)

// ResolveHisRef builds the Interconnect a HisRef instantiates, folding
// the ref's own role into the leaf-role computation as the first link
// in the chain (§4.4).
func (c *Context) ResolveHisRef(ref *schema.HisRef, pos schema.Pos) (*design.Interconnect, error) {
	parity := ref.Role == "slave"
	return c.resolveHis(ref.Type, parity, map[string]bool{}, pos)
}

// resolveHis expands one His into a fresh Interconnect. parity carries
// the accumulated slave-flip count from every enclosing link; visiting
// tracks the His names on the current recursion path so a cyclic
// reference is caught rather than looping forever.
func (c *Context) resolveHis(hisName string, parity bool, visiting map[string]bool, pos schema.Pos) (*design.Interconnect, error) {
	his, ok := c.hisByName[hisName]
	if !ok {
		return nil, errAt(pos, "undefined-reference", "undefined interconnect type %q", hisName)
	}
	if visiting[hisName] {
		return nil, errAt(his.Pos, "cyclic-his", "cyclic interconnect reference involving %q", hisName)
	}
	visiting[hisName] = true
	defer delete(visiting, hisName)

	ic := &design.Interconnect{ID: c.nextID("ic"), Name: his.Name}
	for _, comp := range his.Components {
		switch {
		case comp.Port != nil:
			p := comp.Port
			compParity := parity != (p.Role == "slave")
			role := design.RoleMaster
			if compParity {
				role = design.RoleSlave
			}
			ic.Components = append(ic.Components, &design.InterconnectComponent{
				ID:      c.nextID("iccomp"),
				Name:    p.Name,
				Width:   p.Width,
				Complex: false,
				Role:    role,
				Enums:   convertEnums(p.Enums),
			})
		case comp.HisRef != nil:
			r := comp.HisRef
			compParity := parity != (r.Role == "slave")
			nested, err := c.resolveHis(r.Type, compParity, visiting, his.Pos)
			if err != nil {
				return nil, err
			}
			role := design.RoleMaster
			if compParity {
				role = design.RoleSlave
			}
			ic.Components = append(ic.Components, &design.InterconnectComponent{
				ID:       c.nextID("iccomp"),
				Name:     r.Name,
				Complex:  true,
				Nested:   nested,
				NestedID: nested.ID,
				Role:     role,
			})
		}
	}
	return ic, nil
}

func convertEnums(enums []*schema.Enum) []design.EnumValue {
	if len(enums) == 0 {
		return nil
	}
	out := make([]design.EnumValue, len(enums))
	for i, e := range enums {
		out[i] = design.EnumValue{Name: e.Name, Value: e.Value, Description: e.ShortDesc}
	}
	return out
}
