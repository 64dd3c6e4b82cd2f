package elaborate

import (
	"github.com/bluwireless/blade/internal/design"
	"github.com/bluwireless/blade/internal/preprocessor"
)

// ResolveDefines evaluates every schema.Def's expression to an integer.
// Defines share the same recursive, dynamically-scoped expression
// language as the preprocessor (internal/preprocessor), so resolution
// reuses its Env/EvalExpr machinery directly rather than reimplementing
// a topological sort: a name's expression is evaluated fully recursively
// on reference, and preprocessor.Env already rejects a self-referential
// chain, which is exactly the "cyclic Define graph" error §4.5 requires.
// Evaluation order therefore does not matter, matching the testable
// property that Define evaluation is order-independent for any acyclic
// dependency graph.
func (c *Context) ResolveDefines() error {
	env := preprocessor.NewEnv(nil)
	for _, d := range c.Forest.Defs {
		env.Set(d.Name, d.Expr)
	}

	for _, d := range c.Forest.Defs {
		v, err := env.Eval(d.Name)
		if err != nil {
			return errAt(d.Pos, "cyclic-define", "resolving %q: %s", d.Name, err)
		}
		if v.Kind != preprocessor.KindInt {
			return errAt(d.Pos, "non-integer-define", "%q does not evaluate to an integer", d.Name)
		}
		node := &design.Define{ID: c.nextID("def"), Name: d.Name, Value: v.Int.Int64()}
		if err := c.Project.AddDefine(node); err != nil {
			return errAt(d.Pos, "duplicate-id", "%s", err)
		}
		c.defines[d.Name] = node
	}
	return nil
}
