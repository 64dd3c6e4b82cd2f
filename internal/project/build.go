// Package project ties the pipeline stages together: preprocess, parse,
// validate, elaborate, check. It is the one entry point a caller (the
// blade CLI, or a future test harness) needs.
package project

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bluwireless/blade/internal/checker"
	"github.com/bluwireless/blade/internal/design"
	"github.com/bluwireless/blade/internal/elaborate"
	"github.com/bluwireless/blade/internal/preprocessor"
	"github.com/bluwireless/blade/internal/report"
	"github.com/bluwireless/blade/internal/schema"
	"github.com/bluwireless/blade/internal/validator"
)

// Option configures one BuildProject run, mirroring SPEC_FULL.md §6's
// build_project table.
type Option struct {
	TopFile  string            // required
	Includes []string          // directories scanned recursively, or explicit file paths
	Defines  map[string]string // initial preprocessor define environment
	MaxDepth int               // 0 = unlimited; 1 = boundary-only children
	RunChecks bool
	Waivers  []string
	Deps     *[]string // populated with every file the preprocessor opened
	Profile  bool
	Quiet    bool
}

// Result is BuildProject's return value: the elaborated project (nil if
// a fatal error aborted the run),
// whatever recoverable rule violations the checker found, and the full
// diagnostic report.
type Result struct {
	Project    *design.Project
	Violations []checker.RuleViolation
	Report     *report.Report
}

// BuildProject runs the full pipeline described in SPEC_FULL.md §6. A
// non-nil error means a fatal stage failure; Result.Project is nil in
// that case.
func BuildProject(opt Option) (*Result, error) {
	rep := report.New()
	rep.Quiet = opt.Quiet
	result := &Result{Report: rep}

	timeStage := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		if opt.Profile {
			rep.RecordTiming(name, time.Since(start).Nanoseconds())
		}
		return err
	}

	scope := preprocessor.NewScope(opt.Defines)

	var files []sourceFile
	if err := timeStage("discover", func() error {
		var err error
		files, err = discoverFiles(opt.TopFile, opt.Includes)
		return err
	}); err != nil {
		return result, err
	}
	for _, f := range files {
		if err := scope.AddFile(f.key, f.content); err != nil {
			rep.Warnf("project/discover", f.path, 0, "%s", err)
		}
	}

	topKey, err := topFileKey(opt.TopFile, files)
	if err != nil {
		return result, err
	}

	var preprocessed string
	if err := timeStage("preprocess", func() error {
		var err error
		preprocessed, err = scope.Evaluate(topKey)
		return err
	}); err != nil {
		return result, err
	}

	if opt.Deps != nil {
		*opt.Deps = scope.Deps()
	}

	var forest *schema.Forest
	if err := timeStage("parse", func() error {
		var err error
		forest, err = schema.Parse(opt.TopFile, []byte(preprocessed))
		return err
	}); err != nil {
		return result, err
	}
	for legacy := range forest.LegacyHit {
		rep.Warnf("project/parse", opt.TopFile, 0, "legacy tag %q accepted for backwards compatibility", legacy)
	}

	if err := timeStage("validate", func() error {
		v, err := validator.New()
		if err != nil {
			return err
		}
		if errs := validator.ValidateForest(v, forest); len(errs) > 0 {
			for _, e := range errs {
				rep.Errorf("project/validate", opt.TopFile, 0, "%s", e)
			}
			return fmt.Errorf("validation failed with %d error(s)", len(errs))
		}
		return nil
	}); err != nil {
		return result, err
	}

	ctx := elaborate.NewContext(forest, opt.MaxDepth, rep)
	if err := timeStage("elaborate", func() error {
		return runElaborate(ctx, opt.TopFile, forest)
	}); err != nil {
		return result, err
	}
	result.Project = ctx.Project

	if opt.RunChecks {
		if err := timeStage("check", func() error {
			waivers, err := checker.LoadWaivers(opt.Waivers)
			if err != nil {
				return err
			}
			violations, err := checker.RunChecks(ctx.Project, waivers, rep)
			result.Violations = violations
			return err
		}); err != nil {
			result.Project = nil
			return result, err
		}
	}

	return result, nil
}

// runElaborate drives every elaborator stage in the order §5 mandates:
// interconnects resolve lazily off of ResolveHisRef/resolveHis calls
// made while resolving ports, so only defines need an explicit whole-
// forest pass before module elaboration begins.
func runElaborate(ctx *elaborate.Context, topFile string, forest *schema.Forest) error {
	if err := ctx.ResolveDefines(); err != nil {
		return err
	}

	topName := topModuleName(topFile)
	var top *schema.Mod
	for _, m := range forest.Mods {
		if m.Name == topName {
			top = m
			break
		}
	}
	if top == nil {
		return fmt.Errorf("%s: no module named %q (the top file's base name) found to elaborate", topFile, topName)
	}
	if _, err := ctx.ElaborateMod(top, 0); err != nil {
		return err
	}

	if _, err := ctx.ElaborateInstructions(); err != nil {
		return err
	}
	return nil
}

// topModuleName derives the module name BuildProject looks for from the
// top file's base name, stripped of its extension -- e.g. "top.blade"
// names a module called "top" (Open Question: the preprocessor inlines
// every #include before schema.Parse ever runs, so every record in the
// resulting Forest carries the same synthesized Pos.File; the originating
// file can no longer identify which Mod is "the" top one, so the file's
// own name is used as the naming convention instead).
func topModuleName(topFile string) string {
	base := filepath.Base(topFile)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}

type sourceFile struct {
	key     string
	path    string
	content string
}

// discoverFiles reads opt.TopFile plus every file reachable from
// opt.Includes (directories walked recursively, explicit paths read
// directly), returning each under a preprocessor.Scope file name: the
// top file keeps its full given path, everything else is keyed by its
// base name, the #include convention this module's sources use.
func discoverFiles(topFile string, includes []string) ([]sourceFile, error) {
	var out []sourceFile

	topContent, err := os.ReadFile(topFile)
	if err != nil {
		return nil, fmt.Errorf("reading top file %s: %w", topFile, err)
	}
	out = append(out, sourceFile{key: topFile, path: topFile, content: string(topContent)})

	seen := map[string]bool{topFile: true}
	addPath := func(path string) error {
		if seen[path] {
			return nil
		}
		seen[path] = true
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		out = append(out, sourceFile{key: filepath.Base(path), path: path, content: string(content)})
		return nil
	}

	for _, inc := range includes {
		info, err := os.Stat(inc)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", inc, err)
		}
		if !info.IsDir() {
			if err := addPath(inc); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(inc, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			return addPath(path)
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", inc, err)
		}
	}
	return out, nil
}

// topFileKey returns the Scope key discoverFiles registered the top
// file under.
func topFileKey(topFile string, files []sourceFile) (string, error) {
	for _, f := range files {
		if f.path == topFile {
			return f.key, nil
		}
	}
	return "", fmt.Errorf("top file %s was not registered", topFile)
}
