package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveIncludesWalksDirectoriesAndKeepsExplicitFiles(t *testing.T) {
	root := t.TempDir()
	rtlDir := filepath.Join(root, "rtl")
	if err := os.MkdirAll(rtlDir, 0o755); err != nil {
		t.Fatalf("mkdir rtl: %v", err)
	}

	core := filepath.Join(rtlDir, "core.blade")
	if err := os.WriteFile(core, []byte("- def: {name: X, expr: \"1\"}"), 0o644); err != nil {
		t.Fatalf("write core: %v", err)
	}
	extra := filepath.Join(root, "extra.blade")
	if err := os.WriteFile(extra, []byte("- def: {name: Y, expr: \"2\"}"), 0o644); err != nil {
		t.Fatalf("write extra: %v", err)
	}

	cfg := &Config{Includes: []string{"rtl", "extra.blade"}}

	files, err := cfg.ResolveIncludes(root)
	if err != nil {
		t.Fatalf("ResolveIncludes: %v", err)
	}
	if !containsPath(files, core) {
		t.Fatalf("expected %s in resolved includes, got %v", core, files)
	}
	if !containsPath(files, extra) {
		t.Fatalf("expected %s in resolved includes, got %v", extra, files)
	}
}

func TestResolveIncludesHonorsExcludePatterns(t *testing.T) {
	root := t.TempDir()
	skip := filepath.Join(root, "skip.bak")
	if err := os.WriteFile(skip, []byte(""), 0o644); err != nil {
		t.Fatalf("write skip: %v", err)
	}

	cfg := &Config{Includes: []string{"."}, ExcludePatterns: []string{"*.bak"}}
	files, err := cfg.ResolveIncludes(root)
	if err != nil {
		t.Fatalf("ResolveIncludes: %v", err)
	}
	if containsPath(files, skip) {
		t.Fatalf("expected %s to be excluded, got %v", skip, files)
	}
}

func containsPath(files []string, target string) bool {
	for _, f := range files {
		if filepath.Clean(f) == filepath.Clean(target) {
			return true
		}
	}
	return false
}
