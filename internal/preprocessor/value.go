package preprocessor

import (
	"fmt"
	"math/big"
)

// ValueKind distinguishes the value shapes the expression language can
// produce. Booleans are represented as Int 0/1, matching the spec's
// "arbitrary-precision integers" requirement — there is no separate
// boolean representation, only integer truthiness.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindStr
	KindList
)

// Value is the result of evaluating an expression: an arbitrary-precision
// integer, a string (only produced by string literals, used in #for list
// iterables), or a list (only produced by list literals and range(), used
// as a #for iterable).
type Value struct {
	Kind ValueKind
	Int  *big.Int
	Str  string
	List []Value
}

func intValue(i int64) Value    { return Value{Kind: KindInt, Int: big.NewInt(i)} }
func bigValue(i *big.Int) Value { return Value{Kind: KindInt, Int: i} }
func strValue(s string) Value   { return Value{Kind: KindStr, Str: s} }
func listValue(l []Value) Value { return Value{Kind: KindList, List: l} }

// Truthy applies Python-style truthiness: zero integers, empty strings,
// and empty lists are false; everything else is true.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindInt:
		return v.Int.Sign() != 0
	case KindStr:
		return v.Str != ""
	case KindList:
		return len(v.List) > 0
	}
	return false
}

// String renders a value the way a substituted line would see it: plain
// decimal for integers, the bare text for strings.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return v.Int.String()
	case KindStr:
		return v.Str
	default:
		return ""
	}
}

// Env is a stack of binding frames over #define names and #for loop
// variables, storing raw expression text rather than resolved values: a
// name's right-hand side is re-evaluated, fully recursively, every time it
// is referenced (§4.1, "evaluation of a define's right-hand side is fully
// recursive"), so a later redefinition of a name a define depends on is
// picked up by every subsequent reference. Frames are pushed when entering
// an #if branch or a #for iteration and popped on exit, matching "bindings
// created in a branch become visible only to later lines" of that branch.
type Env struct {
	vars     map[string]string
	parent   *Env
	resolving map[string]bool // shared across a chain; guards against self-referential defines
}

func NewEnv(parent *Env) *Env {
	e := &Env{vars: make(map[string]string), parent: parent}
	if parent != nil {
		e.resolving = parent.resolving
	} else {
		e.resolving = make(map[string]bool)
	}
	return e
}

// Resolve looks up name's raw expression text in the frame chain.
func (e *Env) Resolve(name string) (string, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return "", false
}

// Defined reports whether name is bound anywhere in the frame chain,
// without evaluating it — used by #ifdef/#ifndef.
func (e *Env) Defined(name string) bool {
	_, ok := e.Resolve(name)
	return ok
}

// Set binds name to raw expression text in the current (topmost) frame.
func (e *Env) Set(name, expr string) {
	e.vars[name] = expr
}

// Eval evaluates name's bound expression against this same environment,
// rejecting a self-referential chain instead of recursing forever.
func (e *Env) Eval(name string) (Value, error) {
	expr, ok := e.Resolve(name)
	if !ok {
		return Value{}, undefinedNameError(name)
	}
	if e.resolving[name] {
		return Value{}, fmt.Errorf("cyclic definition of %q", name)
	}
	e.resolving[name] = true
	defer delete(e.resolving, name)
	return EvalExpr(expr, e)
}

// Names returns every name bound anywhere in the frame chain, used to
// drive the bare-identifier substitution pass (rule (c) in §4.1).
func (e *Env) Names() []string {
	seen := make(map[string]bool)
	var out []string
	for s := e; s != nil; s = s.parent {
		for k := range s.vars {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
