package report

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddSuppressesDebugWithoutVerbose(t *testing.T) {
	var buf bytes.Buffer
	r := &Report{Out: &buf}
	r.Debugf("preprocess", "a.blade", 1, "tracing %s", "x")
	if buf.Len() != 0 {
		t.Fatalf("expected no output for debug without Verbose, got %q", buf.String())
	}
	if len(r.Entries) != 1 {
		t.Fatalf("expected entry still recorded, got %d", len(r.Entries))
	}
}

func TestAddSuppressesEverythingWhenQuiet(t *testing.T) {
	var buf bytes.Buffer
	r := &Report{Out: &buf, Quiet: true}
	r.Errorf("elaborate", "a.blade", 3, "boom")
	if buf.Len() != 0 {
		t.Fatalf("expected no output when Quiet, got %q", buf.String())
	}
	if !r.HasErrors() {
		t.Fatalf("expected HasErrors true")
	}
}

func TestSortedEntriesOrdersByFileThenLine(t *testing.T) {
	r := &Report{Quiet: true}
	r.Warnf("x", "b.blade", 5, "later file")
	r.Warnf("x", "a.blade", 9, "earlier file, later line")
	r.Warnf("x", "a.blade", 2, "earlier file, earlier line")

	sorted := r.SortedEntries()
	if sorted[0].File != "a.blade" || sorted[0].Line != 2 {
		t.Fatalf("unexpected first entry: %+v", sorted[0])
	}
	if sorted[1].Line != 9 {
		t.Fatalf("unexpected second entry: %+v", sorted[1])
	}
	if sorted[2].File != "b.blade" {
		t.Fatalf("unexpected third entry: %+v", sorted[2])
	}
}

func TestWriteDepFile(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDepFile(&buf, "out.json", []string{"a.blade", "b.blade"}); err != nil {
		t.Fatalf("WriteDepFile: %v", err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "out.json: a.blade b.blade") {
		t.Fatalf("unexpected dep file content: %q", got)
	}
}
