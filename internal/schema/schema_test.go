package schema

import "testing"

func TestParseDefMappingAndSequenceForm(t *testing.T) {
	mapping := []byte(`
- def:
    name: VAL
    expr: "3"
`)
	sequence := []byte(`
- def: [VAL, "3"]
`)

	mf, err := Parse("mapping.blade", mapping)
	if err != nil {
		t.Fatalf("Parse(mapping) error = %v", err)
	}
	sf, err := Parse("sequence.blade", sequence)
	if err != nil {
		t.Fatalf("Parse(sequence) error = %v", err)
	}

	if len(mf.Defs) != 1 || len(sf.Defs) != 1 {
		t.Fatalf("len(Defs) = %d/%d, want 1/1", len(mf.Defs), len(sf.Defs))
	}
	if mf.Defs[0].Name != sf.Defs[0].Name || mf.Defs[0].Expr != sf.Defs[0].Expr {
		t.Errorf("mapping and sequence forms disagree: %+v vs %+v", mf.Defs[0], sf.Defs[0])
	}
	if mf.Defs[0].Name != "VAL" || mf.Defs[0].Expr != "3" {
		t.Errorf("Defs[0] = %+v, want name=VAL expr=3", mf.Defs[0])
	}
}

func TestParseRejectsDuplicateAttribute(t *testing.T) {
	in := []byte(`
- def:
    name: VAL
    expr: "3"
    expr: "4"
`)
	if _, err := Parse("top.blade", in); err == nil {
		t.Fatalf("Parse() error = nil, want a duplicate-attribute error")
	}
}

func TestParseRejectsUnknownAttribute(t *testing.T) {
	in := []byte(`
- def:
    name: VAL
    expr: "3"
    bogus: 1
`)
	if _, err := Parse("top.blade", in); err == nil {
		t.Fatalf("Parse() error = nil, want an unknown-attribute error")
	}
}

func TestParseRejectsUnknownTopLevelTag(t *testing.T) {
	in := []byte(`
- bogus:
    name: x
`)
	if _, err := Parse("top.blade", in); err == nil {
		t.Fatalf("Parse() error = nil, want an unknown-tag error")
	}
}

func TestParseLegacyTagsSilentlyAccepted(t *testing.T) {
	in := []byte(`
- file:
    name: legacy
- def:
    name: VAL
    expr: "1"
`)
	f, err := Parse("top.blade", in)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Defs) != 1 {
		t.Fatalf("len(Defs) = %d, want 1", len(f.Defs))
	}
	if !f.LegacyHit["file"] {
		t.Errorf("LegacyHit[file] = false, want true")
	}
}

func TestParseRegOverlapFixtureParsesCleanly(t *testing.T) {
	// Scenario: Reg a {addr:0, width:32}, Reg b {addr:2, width:32} in a
	// BYTE-mode group. Overlap detection itself happens in the register
	// elaborator; the parser's job here is just to build the Forest the
	// elaborator will reject.
	in := []byte(`
- group:
    name: regs
    options: [BYTE]
    regs:
      - name: a
        addr: 0
        fields:
          - name: f
            width: 32
      - name: b
        addr: 2
        fields:
          - name: f
            width: 32
`)
	f, err := Parse("top.blade", in)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Groups) != 1 || len(f.Groups[0].Regs) != 2 {
		t.Fatalf("Groups = %+v, want one group with two regs", f.Groups)
	}
}

func TestParsePortMappingAndSequenceForm(t *testing.T) {
	mapping := []byte(`
- port:
    name: soft_en
    width: 4
    count: 1
    default: 0
    role: master
`)
	sequence := []byte(`
- port: [soft_en, 4, 1, 0, master]
`)

	mf, err := Parse("mapping.blade", mapping)
	if err != nil {
		t.Fatalf("Parse(mapping) error = %v", err)
	}
	sf, err := Parse("sequence.blade", sequence)
	if err != nil {
		t.Fatalf("Parse(sequence) error = %v", err)
	}
	if len(mf.Ports) != 1 || len(sf.Ports) != 1 {
		t.Fatalf("len(Ports) = %d/%d, want 1/1", len(mf.Ports), len(sf.Ports))
	}
	m, s := mf.Ports[0], sf.Ports[0]
	if m.Name != s.Name || m.Width != s.Width || m.Role != s.Role {
		t.Errorf("mapping and sequence forms disagree: %+v vs %+v", m, s)
	}
}
