package elaborate

import (
	"github.com/bluwireless/blade/internal/design"
	"github.com/bluwireless/blade/internal/schema"
)

// instField is one field slot after inheritance collapse (step 1), still
// unplaced.
type instField struct {
	name      string
	width     int
	lsb       *int
	msb       *int
	signed    bool
	fixed     *string
	enums     []*schema.Enum
	inherited bool
}

// ElaborateInstructions runs §4.9 for every Inst in the forest.
func (c *Context) ElaborateInstructions() ([]*design.Command, error) {
	var out []*design.Command
	for _, inst := range c.Forest.Insts {
		cmd, err := c.ElaborateInst(inst)
		if err != nil {
			return nil, err
		}
		out = append(out, cmd)
	}
	return out, nil
}

// ElaborateInst runs §4.9 for one Inst.
func (c *Context) ElaborateInst(inst *schema.Inst) (*design.Command, error) {
	chain, err := c.instChain(inst, inst.Pos)
	if err != nil {
		return nil, err
	}

	var order []string
	byName := make(map[string]*instField)

	for i, lvl := range chain {
		own := i == len(chain)-1

		fixedCount := 0
		for _, f := range lvl.Fields {
			if f.Fixed != nil {
				fixedCount++
			}
		}
		if fixedCount > 1 {
			return nil, errAt(lvl.Pos, "multiple-fixed-fields", "instruction %q fixes more than one field", lvl.Name)
		}

		for _, f := range lvl.Fields {
			if existing, ok := byName[f.Name]; ok {
				// A descendant re-declaring an inherited field name fixes
				// it to an enumerated value; it stays an inherited field.
				existing.width = f.Width
				existing.lsb = f.Lsb
				existing.msb = f.Msb
				if f.Fixed != nil {
					existing.fixed = f.Fixed
				}
				if len(f.Enums) > 0 {
					existing.enums = f.Enums
				}
				continue
			}
			byName[f.Name] = &instField{
				name: f.Name, width: f.Width, lsb: f.Lsb, msb: f.Msb,
				signed: f.Signed, fixed: f.Fixed, enums: f.Enums,
				inherited: !own,
			}
			order = append(order, f.Name)
		}
	}

	return c.layoutCommand(inst, order, byName)
}

// instChain walks extends to the root, returning Insts in root-first
// order with inst itself last. Cyclic chains are rejected.
func (c *Context) instChain(inst *schema.Inst, pos schema.Pos) ([]*schema.Inst, error) {
	var chain []*schema.Inst
	visiting := make(map[string]bool)
	cur := inst
	for {
		if visiting[cur.Name] {
			return nil, errAt(pos, "cyclic-extends", "cyclic extends chain involving %q", cur.Name)
		}
		visiting[cur.Name] = true
		chain = append(chain, cur)
		if cur.Extends == nil {
			break
		}
		parent, ok := c.instByName[*cur.Extends]
		if !ok {
			return nil, errAt(cur.Pos, "undefined-reference", "undefined instruction %q", *cur.Extends)
		}
		cur = parent
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// layoutCommand runs step 2 (bit placement, overlap rejection) and step 3
// (Command/CommandField emission) for one Inst's collapsed field list.
func (c *Context) layoutCommand(inst *schema.Inst, order []string, byName map[string]*instField) (*design.Command, error) {
	type bitRange struct {
		lsb, msb int
		name     string
	}
	var ranges []bitRange
	cursor := 0

	var fields []*design.CommandField
	for _, name := range order {
		f := byName[name]
		lsb := cursor
		if f.lsb != nil {
			lsb = *f.lsb
		}
		msb := lsb + f.width - 1
		if f.msb != nil {
			msb = *f.msb
		}
		for _, r := range ranges {
			if lsb <= r.msb && r.lsb <= msb {
				return nil, errAt(inst.Pos, "field-overlap",
					"instruction %q: field %q overlaps field %q", inst.Name, f.name, r.name)
			}
		}
		ranges = append(ranges, bitRange{lsb: lsb, msb: msb, name: f.name})

		fields = append(fields, &design.CommandField{
			ID:        c.nextID("cmdfield"),
			Name:      f.name,
			Lsb:       lsb,
			Msb:       msb,
			Inherited: f.inherited,
			Fixed:     f.fixed,
			Enums:     convertEnums(f.enums),
		})
		cursor = msb + 1
	}

	cmd := &design.Command{
		ID:         c.nextID("cmd"),
		Name:       inst.Name,
		Attributes: attributesOf(inst.Options),
		Fields:     fields,
	}
	if err := c.Project.AddCommand(cmd); err != nil {
		return nil, errAt(inst.Pos, "duplicate-id", "%s", err)
	}
	return cmd, nil
}
