package report

import (
	"fmt"
	"io"
)

// WriteDepFile writes a Make-style dependency rule "<target>: <file1>
// <file2> ..." listing every file opened by the preprocessor or parser
// during the run, per §6's dependency-file requirement.
func WriteDepFile(w io.Writer, target string, deps []string) error {
	if _, err := fmt.Fprintf(w, "%s:", target); err != nil {
		return err
	}
	for _, d := range deps {
		if _, err := fmt.Fprintf(w, " %s", d); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
