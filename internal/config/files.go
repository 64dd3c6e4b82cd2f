package config

import (
	"os"
	"path/filepath"
)

// ResolveIncludes expands Includes into a flat list of candidate
// #include target files: directory entries are walked recursively,
// explicit file paths are kept as given. Entries matching
// ExcludePatterns are dropped.
func (c *Config) ResolveIncludes(rootPath string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	add := func(path string) {
		if c.ShouldExclude(path) || seen[path] {
			return
		}
		seen[path] = true
		out = append(out, path)
	}

	for _, entry := range c.Includes {
		path := entry
		if !filepath.IsAbs(path) {
			path = filepath.Join(rootPath, path)
		}

		info, err := os.Stat(path)
		if err != nil {
			continue // missing search-path entries are not fatal; #include will fail loudly if actually needed
		}
		if !info.IsDir() {
			add(path)
			continue
		}

		err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if fi.IsDir() {
				return nil
			}
			add(p)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}
