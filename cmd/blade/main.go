// =============================================================================
// blade - hardware design elaborator
// =============================================================================
//
// THE PIPELINE:
//   1. Preprocessor expands #include/#define/#if/#for (internal/preprocessor)
//   2. Parser decodes the resulting YAML document into a tag forest (internal/schema)
//   3. Validator checks the forest against the CUE structural contract (internal/validator)
//   4. Elaborator resolves interconnects, defines, registers, module
//      hierarchy and connections, address maps, and instructions
//      (internal/elaborate) into one design.Project
//   5. Checker runs the rule registry plus any waivers (internal/checker)
//
// WHEN INVESTIGATING A BAD BUILD:
//   Start at the beginning of the pipeline, not the end -- a preprocessor
//   or parse failure usually presents as a confusing elaborator error.
// =============================================================================
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bluwireless/blade/internal/config"
	"github.com/bluwireless/blade/internal/project"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit()
	case "build":
		runBuild(os.Args[2:], false)
	case "check":
		runBuild(os.Args[2:], true)
	case "-h", "--help", "help":
		printUsage()
	default:
		runBuild(os.Args[1:], false)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: blade [command] [options] <top-file>

Commands:
  init              Create a blade.json configuration file
  build <file>      Elaborate <file> and report warnings/errors
  check <file>      Elaborate <file> and also run the rule checker

Options:
  -v, --verbose     Enable verbose output
  -c, --config      Specify config file: blade -c config.json build <file>
  -h, --help        Show this help message

Configuration:
  blade looks for configuration in:
    1. ./blade.json
    2. ./.blade.json
    3. blade.json, then .blade.json, in the top file's directory
    4. ~/.config/blade/config.json

  Run 'blade init' to create a default configuration file.`)
}

func runInit() {
	configPath := "blade.json"
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file %s already exists. Overwrite? [y/N]: ", configPath)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created %s\n", configPath)
}

func runBuild(args []string, runChecks bool) {
	var verbose bool
	var configPath string
	var topFile string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-v", "--verbose":
			verbose = true
		case "-c", "--config":
			i++
			if i >= len(args) {
				printUsage()
				os.Exit(1)
			}
			configPath = args[i]
		default:
			topFile = args[i]
		}
	}
	if topFile == "" {
		printUsage()
		os.Exit(1)
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(filepath.Dir(topFile))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	includes, err := cfg.ResolveIncludes(filepath.Dir(topFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving includes: %v\n", err)
		os.Exit(1)
	}

	var deps []string
	result, err := project.BuildProject(project.Option{
		TopFile:   topFile,
		Includes:  includes,
		Defines:   cfg.Defines,
		MaxDepth:  cfg.MaxDepth,
		RunChecks: runChecks,
		Waivers:   cfg.Waivers,
		Deps:      &deps,
		Profile:   verbose,
		Quiet:     !verbose,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if verbose {
		for _, t := range result.Report.Timing {
			fmt.Fprintf(os.Stderr, "%s: %dms\n", t.Stage, t.Nanos/1_000_000)
		}
	}

	if len(result.Violations) > 0 {
		fmt.Fprintf(os.Stderr, "%d rule violation(s)\n", len(result.Violations))
		os.Exit(1)
	}
	if result.Report.HasErrors() {
		os.Exit(1)
	}
}
