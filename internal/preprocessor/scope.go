package preprocessor

import "strings"

// File is one named text source registered with a Scope. It is tokenized
// into a block tree lazily, on first evaluation, and never re-evaluated
// once its result is known — matching §4.1's "files never referenced are
// never evaluated" and the general lazy/memoized evaluation model.
type File struct {
	name       string
	raw        string
	items      []blockItem
	parsed     bool
	evaluating bool
	evaluated  bool
	result     string
}

// Scope owns a set of named Files and the #define environment shared by
// everything evaluated within it. File names within a scope are unique;
// AddFile rejects a second registration under the same name.
type Scope struct {
	files map[string]*File
	root  *Env
	deps  []string
}

// NewScope creates an empty Scope with initial defines (e.g. from the
// BuildProject "defines" option, §6) already bound in its root frame.
func NewScope(initialDefines map[string]string) *Scope {
	root := NewEnv(nil)
	for k, v := range initialDefines {
		root.Set(k, v)
	}
	return &Scope{files: make(map[string]*File), root: root}
}

// AddFile registers raw text under name. Returns an error if name is
// already registered in this scope.
func (s *Scope) AddFile(name, content string) error {
	if _, exists := s.files[name]; exists {
		return errf(name, 0, "duplicate file name %q in scope", name)
	}
	s.files[name] = &File{name: name, raw: content}
	return nil
}

// Evaluate triggers lazy evaluation of the named file and returns its
// fully substituted text.
func (s *Scope) Evaluate(name string) (string, error) {
	f, ok := s.files[name]
	if !ok {
		return "", errf(name, 0, "file not found: %s", name)
	}
	return s.evalFile(f)
}

// Deps returns every file name evaluated so far, in the order its
// evaluation completed (§6 "deps" dependency collector).
func (s *Scope) Deps() []string {
	out := make([]string, len(s.deps))
	copy(out, s.deps)
	return out
}

func (s *Scope) evalFile(f *File) (string, error) {
	if f.evaluated {
		return f.result, nil
	}
	if f.evaluating {
		return "", errf(f.name, 0, "cyclic #include involving %q", f.name)
	}
	if !f.parsed {
		lines := splitLines(f.raw)
		items, err := parseFile(f.name, lines)
		if err != nil {
			return "", err
		}
		f.items = items
		f.parsed = true
	}

	f.evaluating = true
	text, err := s.evalItems(f.name, f.items, s.root)
	f.evaluating = false
	if err != nil {
		return "", err
	}
	f.result = text
	f.evaluated = true
	s.deps = append(s.deps, f.name)
	return text, nil
}

func splitLines(raw string) []rawLine {
	parts := strings.Split(raw, "\n")
	if len(parts) > 1 && parts[len(parts)-1] == "" {
		// A final newline terminates the last line; it does not start an
		// empty one.
		parts = parts[:len(parts)-1]
	}
	out := make([]rawLine, len(parts))
	for i, p := range parts {
		out[i] = rawLine{text: p, no: i + 1}
	}
	return out
}
