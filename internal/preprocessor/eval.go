package preprocessor

import (
	"regexp"
	"strings"
)

var (
	angleRe  = regexp.MustCompile(`<([^<>]+)>`)
	dollarRe = regexp.MustCompile(`\$\(([^()]*(?:\([^()]*\)[^()]*)*)\)`)
	identRe  = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
)

// evalItems evaluates a parsed block sequence against env, returning the
// fully substituted text. file is used for error attribution only.
func (s *Scope) evalItems(file string, items []blockItem, env *Env) (string, error) {
	var out strings.Builder
	for _, raw := range items {
		switch it := raw.(type) {
		case *lineItem:
			name, _, isDirective := directiveOf(it.text)
			text, err := s.evalLine(file, it, env)
			if err != nil {
				return "", err
			}
			switch {
			case isDirective && name == "define":
				// #define produces no output line.
			case isDirective && name == "include":
				out.WriteString(text) // already newline-terminated per included line
			default:
				out.WriteString(text)
				out.WriteString("\n")
			}
		case *block:
			text, err := s.evalBlock(file, it, env)
			if err != nil {
				return "", err
			}
			out.WriteString(text)
		}
	}
	return out.String(), nil
}

func (s *Scope) evalLine(file string, it *lineItem, env *Env) (string, error) {
	name, rest, ok := directiveOf(it.text)
	if ok {
		switch name {
		case "define":
			return "", s.evalDefine(file, it.no, rest, env)
		case "include":
			return s.evalInclude(file, it.no, rest)
		}
	}
	return substituteLine(it.text, env)
}

func (s *Scope) evalDefine(file string, line int, rest string, env *Env) error {
	fields := strings.SplitN(rest, " ", 2)
	if len(fields) == 0 || fields[0] == "" {
		return errf(file, line, "#define requires a name")
	}
	name := fields[0]
	expr := ""
	if len(fields) == 2 {
		expr = strings.TrimSpace(fields[1])
	}
	env.Set(name, expr) // no redefinition guard: latest wins, per §4.1
	return nil
}

func (s *Scope) evalInclude(file string, line int, rest string) (string, error) {
	name := strings.Trim(strings.TrimSpace(rest), `"'`)
	target, ok := s.files[name]
	if !ok {
		return "", errf(file, line, "#include target %q not found", name)
	}
	return s.evalFile(target)
}

func (s *Scope) evalBlock(file string, b *block, env *Env) (string, error) {
	switch b.kind {
	case kindIf:
		return s.evalIfBlock(file, b, env)
	case kindFor:
		return s.evalForBlock(file, b, env)
	}
	return "", errf(file, b.no, "internal error: unknown block kind")
}

func (s *Scope) evalIfBlock(file string, b *block, env *Env) (string, error) {
	for _, br := range b.branches {
		var take bool
		var err error
		switch br.kind {
		case branchExpr:
			var v Value
			v, err = EvalExpr(br.expr, env)
			take = err == nil && v.Truthy()
		case branchDefined:
			take = env.Defined(br.name)
		case branchNotDefined:
			take = !env.Defined(br.name)
		case branchElse:
			take = true
		}
		if err != nil {
			return "", errf(file, br.no, "%s", err)
		}
		if take {
			child := NewEnv(env)
			return s.evalItems(file, br.body, child)
		}
	}
	return "", nil
}

func (s *Scope) evalForBlock(file string, b *block, env *Env) (string, error) {
	iter, err := EvalExpr(b.iterExpr, env)
	if err != nil {
		return "", errf(file, b.no, "%s", err)
	}
	if iter.Kind != KindList {
		return "", errf(file, b.no, "#for iterable must be a finite list or range()")
	}
	var out strings.Builder
	for _, item := range iter.List {
		child := NewEnv(env)
		child.Set(b.loopVar, literalOf(item))
		text, err := s.evalItems(file, b.body, child)
		if err != nil {
			return "", err
		}
		out.WriteString(text)
	}
	return out.String(), nil
}

// literalOf renders a loop-iteration value back into expression text so it
// can be bound like any other name in the Env's raw-text model.
func literalOf(v Value) string {
	switch v.Kind {
	case KindStr:
		return `"` + v.Str + `"`
	default:
		return v.String()
	}
}

// substituteLine applies, left to right, the three substitution rules of
// §4.1: <NAME_OR_EXPR>, $(expr), and bare recognized define names.
func substituteLine(line string, env *Env) (string, error) {
	var substErr error

	out := angleRe.ReplaceAllStringFunc(line, func(m string) string {
		if substErr != nil {
			return m
		}
		expr := angleRe.FindStringSubmatch(m)[1]
		v, err := EvalExpr(expr, env)
		if err != nil {
			substErr = err
			return m
		}
		return v.String()
	})
	if substErr != nil {
		return "", substErr
	}

	out = dollarRe.ReplaceAllStringFunc(out, func(m string) string {
		if substErr != nil {
			return m
		}
		expr := dollarRe.FindStringSubmatch(m)[1]
		v, err := EvalExpr(expr, env)
		if err != nil {
			substErr = err
			return m
		}
		return v.String()
	})
	if substErr != nil {
		return "", substErr
	}

	names := env.Names()
	if len(names) == 0 {
		return out, nil
	}
	out = identRe.ReplaceAllStringFunc(out, func(m string) string {
		if substErr != nil {
			return m
		}
		if !env.Defined(m) {
			return m
		}
		v, err := env.Eval(m)
		if err != nil {
			substErr = err
			return m
		}
		return v.String()
	})
	if substErr != nil {
		return "", substErr
	}
	return out, nil
}
