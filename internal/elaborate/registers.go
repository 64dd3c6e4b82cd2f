package elaborate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluwireless/blade/internal/design"
	"github.com/bluwireless/blade/internal/schema"
)

// nominalRegWidth is the default register width in bits before any
// field forces a widening (§4.6 step 7).
const nominalRegWidth = 32

// expandedReg is one register slot after the EVENT/SETCLEAR expansion of
// step 3, still unplaced.
type expandedReg struct {
	name        string
	addr        *int
	align       *int
	array       *int
	blockaccess string
	busaccess   string
	instaccess  string
	location    string
	fields      []*schema.Field
}

// findConfigForMod resolves the schema.Config governing a Mod's register
// layout. The spec's Config/Group/Reg forest is scoped "per Block", but
// this implementation's forest is a single flat document (the
// preprocessor has already inlined every #include by the time parsing
// happens), so an explicit association is needed: a Mod opts in with a
// "REGCONFIG=<name>" option naming its Config, falling back to a Config
// sharing the Mod's own name. See DESIGN.md Open Question 7.
func (c *Context) findConfigForMod(mod *schema.Mod) (*schema.Config, bool) {
	for _, opt := range mod.Options {
		if name, ok := strings.CutPrefix(opt, "REGCONFIG="); ok {
			if cfg, ok := c.configByName[name]; ok {
				return cfg, true
			}
		}
	}
	if cfg, ok := c.configByName[mod.Name]; ok {
		return cfg, true
	}
	return nil, false
}

// groupUnit returns the address granularity in bytes for a Group: 1 if
// it carries the BYTE option, 4 (one word) otherwise.
func groupUnit(g *schema.Group) int64 {
	if g.HasOption("BYTE") {
		return 1
	}
	return 4
}

// ElaborateRegisters runs §4.6 for one Mod, attaching the resulting
// RegisterGroups to block. It is a no-op (not an error) when the Mod has
// no associated register Config.
func (c *Context) ElaborateRegisters(mod *schema.Mod, block *design.Block) error {
	cfg, ok := c.findConfigForMod(mod)
	if !ok {
		return nil
	}

	overridesByGroup := make(map[string][]*schema.Define)
	for _, d := range c.Forest.Defines {
		overridesByGroup[d.Group] = append(overridesByGroup[d.Group], d)
	}

	var cursorBytes int64
	for _, entry := range cfg.Entries {
		switch {
		case entry.Register != nil:
			group, ok := c.groupByName[entry.Register.Group]
			if !ok {
				return errAt(entry.Register.Pos, "undefined-reference", "undefined register group %q", entry.Register.Group)
			}
			unit := groupUnit(group)
			start := alignUp(cursorBytes, unit)
			regs, end, err := c.placeGroupRegs(group, start, unit, "", overridesByGroup[group.Name])
			if err != nil {
				return err
			}
			cursorBytes = end
			rg := &design.RegisterGroup{
				ID:        c.nextID("reggroup"),
				Name:      group.Name,
				ByteMode:  unit == 1,
				BaseAddr:  start / unit,
				Registers: regs,
			}
			if err := c.attach(rg, group.Pos); err != nil {
				return err
			}
			block.RegisterGroups = append(block.RegisterGroups, rg)

		case entry.Macro != nil:
			m := entry.Macro
			group, ok := c.groupByName[m.Group]
			if !ok {
				return errAt(m.Pos, "undefined-reference", "undefined register group %q", m.Group)
			}
			if group.Type != "macro" {
				return errAt(m.Pos, "wrong-group-type", "group %q is not macro-typed, cannot be placed by Macro", m.Group)
			}
			unit := groupUnit(group)
			alignBytes := unit
			if m.Align != nil {
				alignBytes = int64(*m.Align) * unit
			}
			for i := 0; i < m.Array; i++ {
				start := alignUp(cursorBytes, alignBytes)
				prefix := fmt.Sprintf("%s_%d", m.Prefix, i)
				regs, end, err := c.placeGroupRegs(group, start, unit, prefix+"_", overridesByGroup[group.Name])
				if err != nil {
					return err
				}
				cursorBytes = end
				rg := &design.RegisterGroup{
					ID:        c.nextID("reggroup"),
					Name:      prefix,
					ByteMode:  unit == 1,
					BaseAddr:  start / unit,
					Registers: regs,
				}
				if err := c.attach(rg, m.Pos); err != nil {
					return err
				}
				block.RegisterGroups = append(block.RegisterGroups, rg)
			}
		}
	}
	return nil
}

// expandRegs applies the EVENT/SETCLEAR options of step 3 to a Group's
// Reg list, in declaration order, producing the flat slot list step 4
// places.
func expandRegs(group *schema.Group) []expandedReg {
	var out []expandedReg
	for _, r := range group.Regs {
		switch {
		case r.HasOption("EVENT"):
			out = append(out,
				expandedReg{name: r.Name + "_rsta", addr: r.Addr, align: r.Align, blockaccess: "R", busaccess: "R", instaccess: "R", location: r.Location, fields: r.Fields},
				expandedReg{name: r.Name + "_msta", blockaccess: "R", busaccess: "R", instaccess: "R", location: r.Location, fields: r.Fields},
				expandedReg{name: r.Name + "_clear", blockaccess: "WC", busaccess: "WC", instaccess: "WC", location: r.Location, fields: r.Fields},
				expandedReg{name: r.Name + "_enable", blockaccess: "RW", busaccess: "RW", instaccess: "RW", location: r.Location, fields: r.Fields},
				expandedReg{name: r.Name + "_set", blockaccess: "WS", busaccess: "WS", instaccess: "WS", location: r.Location, fields: r.Fields},
			)
			if r.HasOption("HAS_LEVEL") {
				out = append(out, expandedReg{name: r.Name + "_level", blockaccess: "RW", busaccess: "RW", instaccess: "RW", location: r.Location, fields: r.Fields})
			}
			if r.HasOption("HAS_MODE") {
				out = append(out, expandedReg{name: r.Name + "_mode", blockaccess: "RW", busaccess: "RW", instaccess: "RW", location: r.Location, fields: r.Fields})
			}
		case r.HasOption("SETCLEAR"):
			out = append(out,
				expandedReg{name: r.Name, addr: r.Addr, align: r.Align, array: r.Array, blockaccess: "RW", busaccess: "RW", instaccess: "RW", location: r.Location, fields: r.Fields},
				expandedReg{name: r.Name + "_set", blockaccess: "WS", busaccess: "WS", instaccess: "WS", location: r.Location, fields: r.Fields},
				expandedReg{name: r.Name + "_clear", blockaccess: "WC", busaccess: "WC", instaccess: "WC", location: r.Location, fields: r.Fields},
			)
		default:
			out = append(out, expandedReg{
				name: r.Name, addr: r.Addr, align: r.Align, array: r.Array,
				blockaccess: r.BlockAccess, busaccess: r.BusAccess, instaccess: r.InstAccess,
				location: r.Location, fields: r.Fields,
			})
		}
	}
	return out
}

// placeGroupRegs lays out one Group instance's registers starting at
// startByte, returning the placed Registers and the byte cursor just
// past the last one. namePrefix is prepended to every register name
// (used by Macro placements to disambiguate repeated instances).
func (c *Context) placeGroupRegs(group *schema.Group, startByte, unit int64, namePrefix string, overrides []*schema.Define) ([]*design.Register, int64, error) {
	var placed []*design.Register
	type byteRange struct {
		start, end int64
		name       string
	}
	var ranges []byteRange

	cursor := startByte
	for _, er := range expandRegs(group) {
		var regStart int64
		if er.addr != nil {
			regStart = startByte + int64(*er.addr)*unit
		} else {
			alignBytes := unit
			if er.align != nil {
				alignBytes = int64(*er.align) * unit
			}
			regStart = alignUp(cursor, alignBytes)
		}

		fields, width, widened, ferr := c.placeFieldsForWidth(er.fields, nominalRegWidth)
		if ferr != nil {
			return nil, 0, errAt(group.Pos, "field-overlap", "register %s%s: %s", namePrefix, er.name, ferr)
		}
		if widened {
			c.Report.Warnf("elaborate/registers", group.Pos.File, group.Pos.Line,
				"register %s%s widened to %d bits to fit its fields", namePrefix, er.name, width)
		}
		sizeBytes := alignUp(int64((width+7)/8), unit)
		if sizeBytes == 0 {
			sizeBytes = unit
		}

		arrayCount := 1
		if er.array != nil {
			arrayCount = *er.array
		}

		blockaccess, busaccess, instaccess := er.blockaccess, er.busaccess, er.instaccess
		for _, ov := range overrides {
			if ov.Reg != er.name {
				continue
			}
			if ov.Field != nil {
				for _, fl := range fields {
					if fl.Name != *ov.Field {
						continue
					}
					if v, ok := ov.Overrides["reset"]; ok {
						if n, ok := applyOverrideInt(v); ok {
							fl.Reset = int64(n)
						}
					}
				}
				continue
			}
			if v, ok := ov.Overrides["blockaccess"]; ok {
				blockaccess = v
			}
			if v, ok := ov.Overrides["busaccess"]; ok {
				busaccess = v
			}
			if v, ok := ov.Overrides["instaccess"]; ok {
				instaccess = v
			}
		}

		for i := 0; i < arrayCount; i++ {
			instAddr := regStart + int64(i)*sizeBytes
			name := namePrefix + er.name
			if arrayCount > 1 {
				name = fmt.Sprintf("%s%s_%d", namePrefix, er.name, i)
			}
			for _, rr := range ranges {
				if instAddr < rr.end && rr.start < instAddr+sizeBytes {
					return nil, 0, errAt(group.Pos, "register-overlap", "register %q overlaps register %q", name, rr.name)
				}
			}
			ranges = append(ranges, byteRange{start: instAddr, end: instAddr + sizeBytes, name: name})

			reg := &design.Register{
				ID: c.nextID("reg"), Name: name, Addr: (instAddr - startByte) / unit, Width: width,
				BlockAccess: blockaccess, BusAccess: busaccess, InstAccess: instaccess,
				Location: er.location, Fields: fields, Widened: widened,
			}
			if err := c.attach(reg, group.Pos); err != nil {
				return nil, 0, err
			}
			placed = append(placed, reg)
		}
		cursor = regStart + int64(arrayCount)*sizeBytes
	}
	return placed, cursor, nil
}

// placeFieldsForWidth places a Reg's Fields (step 7), returning the
// placed fields, the register's final bit width, and whether widening
// beyond nominalWidth was required. Overlapping fields are a fatal
// error naming both field names.
func (c *Context) placeFieldsForWidth(fields []*schema.Field, nominalWidth int) ([]*design.RegisterField, int, bool, error) {
	type bitRange struct {
		lsb, msb int
		name     string
	}
	var ranges []bitRange
	var out []*design.RegisterField
	cursor := 0
	highest := -1

	for _, f := range fields {
		lsb := cursor
		if f.Lsb != nil {
			lsb = *f.Lsb
		}
		msb := lsb + f.Width - 1
		if f.Msb != nil {
			msb = *f.Msb
		}
		for _, r := range ranges {
			if lsb <= r.msb && r.lsb <= msb {
				return nil, 0, false, fmt.Errorf("field %q overlaps field %q", f.Name, r.name)
			}
		}
		ranges = append(ranges, bitRange{lsb: lsb, msb: msb, name: f.Name})
		var reset int64
		if f.Reset != nil {
			reset = int64(*f.Reset)
		}
		out = append(out, &design.RegisterField{
			ID: c.nextID("field"), Name: f.Name, Lsb: lsb, Msb: msb, Signed: f.Signed, Reset: reset, Enums: convertEnums(f.Enums),
		})
		if msb > highest {
			highest = msb
		}
		cursor = msb + 1
	}

	width := nominalWidth
	widened := false
	if highest+1 > width {
		width = highest + 1
		widened = true
	}
	return out, width, widened, nil
}

func alignUp(v, align int64) int64 {
	if align <= 1 {
		return v
	}
	if r := v % align; r != 0 {
		return v + (align - r)
	}
	return v
}

// applyOverrideInt parses a string override value as an integer,
// returning ok=false on a non-numeric value.
func applyOverrideInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}
