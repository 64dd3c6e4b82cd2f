// Package elaborate implements the pure function from a parsed and
// validated schema.Forest to one design.Project: interconnect
// construction, define resolution, register layout, module hierarchy
// expansion with connection inference and clock/reset distribution,
// address-map resolution, and instruction inheritance collapse.
package elaborate

import (
	"fmt"

	"github.com/bluwireless/blade/internal/design"
	"github.com/bluwireless/blade/internal/report"
	"github.com/bluwireless/blade/internal/schema"
)

// Error is a fatal elaboration error: undefined reference, address or
// field overlap, a cyclic His/Define graph, an ambiguous many-to-many
// connection, a missing principal clock/reset, or an unreachable
// address (§7 "Elaborator" error kind). The first Error aborts
// elaboration of the surrounding Mod and of every Mod above it, and
// BuildProject returns it as the run's fatal error.
type Error struct {
	File string
	Line int
	Kind string
	Msg  string
}

func (e *Error) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func errAt(pos schema.Pos, kind, format string, args ...interface{}) *Error {
	return &Error{File: pos.File, Line: pos.Line, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Context threads the shared, read-only name tables and the id/report
// sinks through every elaborator stage. Per invariant "elaboration
// creates graph nodes; schema records are immutable after parsing", no
// stage may write back into anything reachable from Forest.
type Context struct {
	Forest  *schema.Forest
	Project *design.Project
	Report  *report.Report
	MaxDepth int // 0 = unlimited

	hisByName    map[string]*schema.His
	modByName    map[string]*schema.Mod
	defByName    map[string]*schema.Def
	groupByName  map[string]*schema.Group
	configByName map[string]*schema.Config
	instByName   map[string]*schema.Inst

	interconnects map[string]*design.Interconnect // resolved His -> Interconnect, memoized
	defines       map[string]*design.Define       // resolved Def -> Define, memoized

	seq int // monotonically increasing id suffix generator
}

// NewContext builds the name tables used for every reference resolution
// during elaboration. Duplicate names within a kind are a validator-level
// concern (§4.3 "cross-attribute agreement"); here we simply let the last
// declaration win, matching the schema's general "no ordering guarantee
// beyond declaration order" stance for anything validation does not
// itself reject.
func NewContext(f *schema.Forest, maxDepth int, rep *report.Report) *Context {
	c := &Context{
		Forest:        f,
		Project:       design.NewProject("project"),
		Report:        rep,
		MaxDepth:      maxDepth,
		hisByName:     make(map[string]*schema.His),
		modByName:     make(map[string]*schema.Mod),
		defByName:     make(map[string]*schema.Def),
		groupByName:   make(map[string]*schema.Group),
		configByName:  make(map[string]*schema.Config),
		instByName:    make(map[string]*schema.Inst),
		interconnects: make(map[string]*design.Interconnect),
		defines:       make(map[string]*design.Define),
	}
	for _, h := range f.Hises {
		c.hisByName[h.Name] = h
	}
	for _, m := range f.Mods {
		c.modByName[m.Name] = m
	}
	for _, d := range f.Defs {
		c.defByName[d.Name] = d
	}
	for _, g := range f.Groups {
		c.groupByName[g.Name] = g
	}
	for _, cfg := range f.Configs {
		c.configByName[cfg.Name] = cfg
	}
	for _, i := range f.Insts {
		c.instByName[i.Name] = i
	}
	return c
}

// nextID returns a fresh, project-unique id built from a human-readable
// prefix plus a counter, so ids stay stable and readable across a run
// without needing a global registry beyond this counter.
func (c *Context) nextID(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s#%d", prefix, c.seq)
}

// attach registers n on the project and turns a design.DuplicateIDError
// into an elaborate.Error carrying pos, so every fatal error surfaced by
// this package has the same shape.
func (c *Context) attach(n design.Node, pos schema.Pos) error {
	if err := c.Project.Attach(n); err != nil {
		return errAt(pos, "duplicate-id", "%s", err)
	}
	return nil
}
