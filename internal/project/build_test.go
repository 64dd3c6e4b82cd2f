package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTop(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "top.blade")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestBuildProjectEmptyModule(t *testing.T) {
	dir := t.TempDir()
	top := writeTop(t, dir, `
- mod:
    name: top
    options: [NO_CLK_RST]
`)

	result, err := BuildProject(Option{TopFile: top, Quiet: true})
	if err != nil {
		t.Fatalf("BuildProject() error = %v", err)
	}
	if result.Project == nil {
		t.Fatalf("BuildProject() returned a nil Project")
	}
	if len(result.Project.Blocks) != 1 {
		t.Fatalf("len(Blocks) = %d, want 1", len(result.Project.Blocks))
	}
	for _, b := range result.Project.Blocks {
		if len(b.Ports) != 0 {
			t.Errorf("top block has %d ports, want 0 for an empty NO_CLK_RST module", len(b.Ports))
		}
	}
	for _, e := range result.Report.Entries {
		if e.Severity.String() == "warning" || e.Severity.String() == "error" {
			t.Errorf("unexpected %s: %s", e.Severity, e.Message)
		}
	}
}

func TestBuildProjectMissingTopModule(t *testing.T) {
	dir := t.TempDir()
	top := writeTop(t, dir, `
- mod:
    name: not_top
`)

	_, err := BuildProject(Option{TopFile: top, Quiet: true})
	if err == nil {
		t.Fatalf("BuildProject() error = nil, want an error naming the missing top module")
	}
}

func TestBuildProjectIncludeByBasename(t *testing.T) {
	dir := t.TempDir()
	incDir := filepath.Join(dir, "inc")
	if err := os.Mkdir(incDir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(incDir, "common.blade"), []byte(
		"- def:\n    name: WIDTH\n    expr: \"8\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	top := writeTop(t, dir, `#include "common.blade"
- mod:
    name: top
    options: [NO_CLK_RST]
`)

	result, err := BuildProject(Option{TopFile: top, Includes: []string{incDir}, Quiet: true})
	if err != nil {
		t.Fatalf("BuildProject() error = %v", err)
	}
	found := false
	for _, d := range result.Project.Defs {
		if d.Name == "WIDTH" && d.Value == 8 {
			found = true
		}
	}
	if !found {
		t.Errorf("Defs = %v, want WIDTH=8 resolved from the included file", result.Project.Defs)
	}
}
