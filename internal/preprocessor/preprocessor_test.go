package preprocessor

import "testing"

func evalSingle(t *testing.T, content string) string {
	t.Helper()
	s := NewScope(nil)
	if err := s.AddFile("top", content); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	out, err := s.Evaluate("top")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return out
}

func TestDefineArithmetic(t *testing.T) {
	in := "#define VAL_1 3\n#define VAL_2 5\n#define VAL_3 (VAL_1 * VAL_2)\nresult=<VAL_3>"
	want := "result=15\n"
	if got := evalSingle(t, in); got != want {
		t.Errorf("Evaluate() = %q, want %q", got, want)
	}
}

func TestForLoopArithmetic(t *testing.T) {
	in := "#define MAX 3\n#for i in range(MAX)\n v=$(i*2)\n#endfor"
	want := " v=0\n v=2\n v=4\n"
	if got := evalSingle(t, in); got != want {
		t.Errorf("Evaluate() = %q, want %q", got, want)
	}
}

func TestIncludeByRegisteredName(t *testing.T) {
	s := NewScope(nil)
	if err := s.AddFile("common.blade", "#define WIDTH 8\n"); err != nil {
		t.Fatalf("AddFile(common) error = %v", err)
	}
	if err := s.AddFile("top.blade", "#include \"common.blade\"\nw=<WIDTH>"); err != nil {
		t.Fatalf("AddFile(top) error = %v", err)
	}
	out, err := s.Evaluate("top.blade")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	want := "w=8\n"
	if out != want {
		t.Errorf("Evaluate() = %q, want %q", out, want)
	}
	deps := s.Deps()
	if len(deps) != 2 || deps[0] != "common.blade" || deps[1] != "top.blade" {
		t.Errorf("Deps() = %v, want [common.blade top.blade]", deps)
	}
}

func TestIncludeMissingTarget(t *testing.T) {
	s := NewScope(nil)
	if err := s.AddFile("top", "#include \"missing.blade\"\n"); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if _, err := s.Evaluate("top"); err == nil {
		t.Fatalf("Evaluate() error = nil, want an error naming the missing #include target")
	}
}

func TestIncludeCycleRejected(t *testing.T) {
	s := NewScope(nil)
	if err := s.AddFile("a", "#include \"b\"\n"); err != nil {
		t.Fatalf("AddFile(a) error = %v", err)
	}
	if err := s.AddFile("b", "#include \"a\"\n"); err != nil {
		t.Fatalf("AddFile(b) error = %v", err)
	}
	if _, err := s.Evaluate("a"); err == nil {
		t.Fatalf("Evaluate() error = nil, want a cyclic #include error")
	}
}

func TestIfDefinedBranches(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "ifdef_taken",
			in:   "#define FOO 1\n#ifdef FOO\nyes\n#else\nno\n#endif",
			want: "yes\n",
		},
		{
			name: "ifdef_not_taken",
			in:   "#ifdef FOO\nyes\n#else\nno\n#endif",
			want: "no\n",
		},
		{
			name: "ifndef_taken",
			in:   "#ifndef FOO\nyes\n#else\nno\n#endif",
			want: "yes\n",
		},
		{
			name: "if_expr",
			in:   "#define N 5\n#if N > 3\nbig\n#else\nsmall\n#endif",
			want: "big\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evalSingle(t, tt.in); got != tt.want {
				t.Errorf("Evaluate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefineRedefinitionLastWins(t *testing.T) {
	in := "#define X 1\n#define X 2\nx=<X>"
	want := "x=2\n"
	if got := evalSingle(t, in); got != want {
		t.Errorf("Evaluate() = %q, want %q", got, want)
	}
}
