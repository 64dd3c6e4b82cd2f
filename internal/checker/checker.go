// Package checker runs the pluggable rule checks of §4.10 over an
// elaborated design.Project. Each check is a plain function registered
// at package-init time under a "check_"-prefixed name, mirroring the
// teacher's runtime discovery of check_* functions but resolved at
// compile time instead of by scanning a module's members.
package checker

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/bluwireless/blade/internal/design"
	"github.com/bluwireless/blade/internal/report"
)

// RuleViolation is one recoverable finding: a design node, the check
// that raised it, and a human-readable message. Checking continues
// after a RuleViolation; it is only ever collected.
type RuleViolation struct {
	Node      design.Node
	CheckName string
	Message   string
}

func (v RuleViolation) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", v.CheckName, v.Node.NodeKind(), v.Node.NodeID(), v.Message)
}

// Hash returns the stable waiver hash for v: an MD5 over
// (node.id, node.kind, check_name, message). Attributes and any other
// derived field are deliberately excluded, since attributes may carry
// system-local absolute paths that would make a waiver file
// non-portable across machines.
func (v RuleViolation) Hash() string {
	sum := md5.Sum([]byte(v.Node.NodeID() + "\x00" + string(v.Node.NodeKind()) + "\x00" + v.CheckName + "\x00" + v.Message))
	return hex.EncodeToString(sum[:])
}

// CriticalRuleViolation is a RuleViolation promoted to a hard error: a
// check returning one aborts the run, same as a critical error from any
// other stage.
type CriticalRuleViolation struct {
	RuleViolation
}

func (v *CriticalRuleViolation) Error() string { return v.RuleViolation.Error() }

// CheckFunc is one rule check. It returns the recoverable violations it
// found; a non-nil error (always a *CriticalRuleViolation in practice)
// aborts RunChecks.
type CheckFunc func(*design.Project) ([]RuleViolation, error)

type checkEntry struct {
	name string
	fn   CheckFunc
}

var registry []checkEntry

// Register adds a check function to the registry under name, which by
// convention begins with "check_". Called from each check file's own
// init(), the idiomatic Go replacement for scanning a module's members
// for a name prefix at runtime.
func Register(name string, fn CheckFunc) {
	registry = append(registry, checkEntry{name: name, fn: fn})
}

// RunChecks runs every registered check against project in registration
// order, downgrading violations whose hash appears in waivers to
// warnings. It stops and returns the offending error as soon as any
// check returns a critical violation.
func RunChecks(project *design.Project, waivers map[string]bool, rep *report.Report) ([]RuleViolation, error) {
	var out []RuleViolation
	for _, entry := range registry {
		found, err := entry.fn(project)
		if err != nil {
			crit, ok := err.(*CriticalRuleViolation)
			if !ok {
				return out, err
			}
			hash := crit.Hash()
			if waivers[hash] {
				rep.Warnf("checker", "", 0, "%s: waived critical violation %s: %s", entry.name, hash, crit.Message)
				continue
			}
			rep.Errorf("checker", "", 0, "%s: critical violation %s: %s", entry.name, hash, crit.Message)
			return out, crit
		}
		for _, v := range found {
			v.CheckName = entry.name
			hash := v.Hash()
			if waivers[hash] {
				rep.Warnf("checker", "", 0, "%s: waived violation %s: %s", entry.name, hash, v.Message)
				continue
			}
			rep.Errorf("checker", "", 0, "%s: violation %s: %s", entry.name, hash, v.Message)
			out = append(out, v)
		}
	}
	return out, nil
}

// waiverLine matches one hex hash, optionally followed by a
// "#"-comment; it strips the comment itself and returns ok=false for a
// blank or comment-only line.
func waiverLine(line string) (string, bool) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	for _, r := range line {
		isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
		if !isHex {
			return "", false
		}
	}
	return strings.ToLower(line), true
}

// LoadWaivers reads every path in paths and returns the union of the
// hex hashes they contain. Duplicate hashes, across or within files,
// are idempotent.
func LoadWaivers(paths []string) (map[string]bool, error) {
	waivers := make(map[string]bool)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening waiver file %s: %w", path, err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if hash, ok := waiverLine(scanner.Text()); ok {
				waivers[hash] = true
			}
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading waiver file %s: %w", path, err)
		}
	}
	return waivers, nil
}
