package checker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bluwireless/blade/internal/design"
	"github.com/bluwireless/blade/internal/report"
)

func TestRuleViolationHash(t *testing.T) {
	block := &design.Block{ID: "b#1", Name: "top", Attributes: map[string]string{"path": "/tmp/a"}}
	v := RuleViolation{Node: block, CheckName: "check_apertures", Message: "unreachable"}
	hash := v.Hash()

	t.Run("stable_across_attribute_change", func(t *testing.T) {
		other := &design.Block{ID: "b#1", Name: "top", Attributes: map[string]string{"path": "/tmp/b"}}
		v2 := RuleViolation{Node: other, CheckName: "check_apertures", Message: "unreachable"}
		if v2.Hash() != hash {
			t.Errorf("hash changed when only attributes changed")
		}
	})

	t.Run("changes_with_id", func(t *testing.T) {
		other := &design.Block{ID: "b#2", Name: "top"}
		v2 := RuleViolation{Node: other, CheckName: "check_apertures", Message: "unreachable"}
		if v2.Hash() == hash {
			t.Errorf("hash did not change when id changed")
		}
	})

	t.Run("changes_with_message", func(t *testing.T) {
		v2 := RuleViolation{Node: block, CheckName: "check_apertures", Message: "different"}
		if v2.Hash() == hash {
			t.Errorf("hash did not change when message changed")
		}
	})

	t.Run("changes_with_check_name", func(t *testing.T) {
		v2 := RuleViolation{Node: block, CheckName: "check_other", Message: "unreachable"}
		if v2.Hash() == hash {
			t.Errorf("hash did not change when check name changed")
		}
	})
}

func TestLoadWaivers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "waivers.txt")
	contents := "deadbeefdeadbeefdeadbeefdeadbeef # known aperture gap\n" +
		"\n" +
		"# a comment line on its own\n" +
		"DEADBEEFDEADBEEFDEADBEEFDEADBEEF\n" +
		"not-a-hash-line\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	waivers, err := LoadWaivers([]string{path})
	if err != nil {
		t.Fatalf("LoadWaivers() error = %v", err)
	}
	if len(waivers) != 1 {
		t.Fatalf("LoadWaivers() = %v, want exactly one hash (case-folded, idempotent)", waivers)
	}
	if !waivers["deadbeefdeadbeefdeadbeefdeadbeef"] {
		t.Errorf("expected hash not present in %v", waivers)
	}
}

func TestRunChecksWaivesMatchingHash(t *testing.T) {
	saved := registry
	defer func() { registry = saved }()
	registry = nil

	block := &design.Block{ID: "b#1", Name: "top"}
	Register("check_stub", func(*design.Project) ([]RuleViolation, error) {
		return []RuleViolation{{Node: block, Message: "boom"}}, nil
	})

	want := RuleViolation{Node: block, CheckName: "check_stub", Message: "boom"}.Hash()
	waivers := map[string]bool{want: true}

	rep := report.New()
	rep.Quiet = true
	out, err := RunChecks(design.NewProject("p"), waivers, rep)
	if err != nil {
		t.Fatalf("RunChecks() error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("RunChecks() = %v, want waived violation dropped from result", out)
	}
}

func TestRunChecksStopsOnCritical(t *testing.T) {
	saved := registry
	defer func() { registry = saved }()
	registry = nil

	block := &design.Block{ID: "b#1", Name: "top"}
	ran := false
	Register("check_critical", func(*design.Project) ([]RuleViolation, error) {
		return nil, &CriticalRuleViolation{RuleViolation{Node: block, Message: "fatal"}}
	})
	Register("check_after", func(*design.Project) ([]RuleViolation, error) {
		ran = true
		return nil, nil
	})

	rep := report.New()
	rep.Quiet = true
	_, err := RunChecks(design.NewProject("p"), nil, rep)
	if err == nil {
		t.Fatalf("RunChecks() error = nil, want critical violation")
	}
	if ran {
		t.Errorf("check registered after a critical violation still ran")
	}
}
