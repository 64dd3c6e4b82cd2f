// Package validator applies the CUE structural contract in schema.cue to a
// parsed document forest before it reaches the elaborator. Validation is a
// separate stage from parsing (internal/schema) deliberately: parsing only
// enforces the mapping/sequence grammar and attribute-name rules that are
// common to every tag; the value-level contract (positive widths, role
// enums, non-overlapping shapes) lives here so the two concerns can evolve
// independently, matching the source system's contract-guard design.
package validator

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/bluwireless/blade/internal/schema"
)

//go:embed schema.cue
var schemaFS embed.FS

// Validator holds one compiled copy of the CUE contract. It is safe for
// concurrent use once constructed, since cue.Value lookups do not mutate
// the underlying schema.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New compiles the embedded schema contract.
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema: %w", err)
	}

	compiled := ctx.CompileBytes(schemaBytes)
	if compiled.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", compiled.Err())
	}

	return &Validator{ctx: ctx, schema: compiled}, nil
}

// validate unifies data against the named definition and returns every
// violation found, prefixed with the record's own file:line so a failure
// reads like a normal diagnostic rather than a raw CUE trace.
func (v *Validator) validate(defPath string, data map[string]interface{}, pos schema.Pos) []error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []error{fmt.Errorf("%s:%d: marshaling for validation: %w", pos.File, pos.Line, err)}
	}

	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return []error{fmt.Errorf("%s:%d: compiling as CUE: %w", pos.File, pos.Line, dataValue.Err())}
	}

	def := v.schema.LookupPath(cue.ParsePath(defPath))
	if def.Err() != nil {
		return []error{fmt.Errorf("looking up %s definition: %w", defPath, def.Err())}
	}

	unified := def.Unify(dataValue)
	if verr := unified.Validate(cue.Concrete(true)); verr != nil {
		var out []error
		for _, e := range errors.Errors(verr) {
			out = append(out, fmt.Errorf("%s:%d: %s", pos.File, pos.Line, e.Error()))
		}
		return out
	}
	return nil
}

// ValidateForest validates every record in forest against the schema
// contract, returning every violation found across the whole forest (not
// just the first) so a single validation pass can report everything wrong
// with a design before elaboration begins.
func ValidateForest(v *Validator, f *schema.Forest) []error {
	var errs []error
	for _, d := range f.Defs {
		errs = append(errs, v.validate("#Def", defMap(d), d.Pos)...)
	}
	for _, p := range f.Ports {
		errs = append(errs, v.validate("#Port", portMap(p), p.Pos)...)
	}
	for _, h := range f.Hises {
		errs = append(errs, v.validate("#His", hisMap(h), h.Pos)...)
	}
	for _, g := range f.Groups {
		errs = append(errs, v.validate("#Group", groupMap(g), g.Pos)...)
	}
	for _, c := range f.Configs {
		errs = append(errs, v.validate("#Config", configMap(c), c.Pos)...)
	}
	for _, d := range f.Defines {
		errs = append(errs, v.validate("#Define", defineMap(d), d.Pos)...)
	}
	for _, m := range f.Mods {
		errs = append(errs, v.validate("#Mod", modMap(m), m.Pos)...)
	}
	for _, i := range f.Insts {
		errs = append(errs, v.validate("#Inst", instMap(i), i.Pos)...)
	}
	return errs
}
