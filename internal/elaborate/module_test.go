package elaborate

import (
	"testing"

	"github.com/bluwireless/blade/internal/design"
	"github.com/bluwireless/blade/internal/report"
	"github.com/bluwireless/blade/internal/schema"
)

func strp(s string) *string { return &s }

func newTestContext() *Context {
	return NewContext(&schema.Forest{LegacyHit: map[string]bool{}}, 0, report.New())
}

func connectionsTo(conns []*design.Connection, port *design.Port) map[int]*design.Connection {
	out := make(map[int]*design.Connection)
	for _, cn := range conns {
		if cn.TargetPort == port {
			out[cn.TargetSignal] = cn
		}
	}
	return out
}

// Fan-out to two children: parent soft_en width 4, two children with
// soft_en width 2 each. Connections should land
// parent[0]->child1[0], parent[1]->child1[1], parent[2]->child2[0], parent[3]->child2[1].
func TestApplyConnectFanOutToTwoChildren(t *testing.T) {
	c := newTestContext()

	parent := &design.Block{ID: "b#parent", Name: "parent"}
	parentPort := &design.Port{ID: "p#parent", Name: "soft_en", Role: design.RoleMaster, Count: 4, ConnectedSignals: make([]bool, 4)}
	parent.Ports = append(parent.Ports, parentPort)

	child1 := &design.Block{ID: "b#c1", Name: "child1"}
	child1Port := &design.Port{ID: "p#c1", Name: "soft_en", Role: design.RoleSlave, Count: 2, ConnectedSignals: make([]bool, 2)}
	child1.Ports = append(child1.Ports, child1Port)

	child2 := &design.Block{ID: "b#c2", Name: "child2"}
	child2Port := &design.Port{ID: "p#c2", Name: "soft_en", Role: design.RoleSlave, Count: 2, ConnectedSignals: make([]bool, 2)}
	child2.Ports = append(child2.Ports, child2Port)

	children := map[string]*design.ChildInstance{
		"child1": {InstanceName: "child1", Block: child1, BlockID: child1.ID},
		"child2": {InstanceName: "child2", Block: child2, BlockID: child2.ID},
	}

	conn := &schema.Connect{
		Points: []*schema.Point{
			{Port: "soft_en"},
			{Port: "soft_en", Module: strp("child1")},
			{Port: "soft_en", Module: strp("child2")},
		},
	}

	if err := c.applyConnect(conn, parent, children); err != nil {
		t.Fatalf("applyConnect() error = %v", err)
	}

	c1 := connectionsTo(parent.Connections, child1Port)
	c2 := connectionsTo(parent.Connections, child2Port)
	if len(c1) != 2 || len(c2) != 2 {
		t.Fatalf("got %d connections to child1, %d to child2, want 2/2", len(c1), len(c2))
	}
	if c1[0].DriverSignal != 0 || c1[1].DriverSignal != 1 {
		t.Errorf("child1 driver signals = %d,%d, want 0,1", c1[0].DriverSignal, c1[1].DriverSignal)
	}
	if c2[0].DriverSignal != 2 || c2[1].DriverSignal != 3 {
		t.Errorf("child2 driver signals = %d,%d, want 2,3", c2[0].DriverSignal, c2[1].DriverSignal)
	}
}

// Fan-out wrap: parent soft_en width 2, two children width 2 each.
// Connections should land parent[0]->child1[0], parent[1]->child1[1],
// parent[0]->child2[0], parent[1]->child2[1] (the shorter initiator side
// wraps modulo its own length).
func TestApplyConnectFanOutWrap(t *testing.T) {
	c := newTestContext()

	parent := &design.Block{ID: "b#parent", Name: "parent"}
	parentPort := &design.Port{ID: "p#parent", Name: "soft_en", Role: design.RoleMaster, Count: 2, ConnectedSignals: make([]bool, 2)}
	parent.Ports = append(parent.Ports, parentPort)

	child1 := &design.Block{ID: "b#c1", Name: "child1"}
	child1Port := &design.Port{ID: "p#c1", Name: "soft_en", Role: design.RoleSlave, Count: 2, ConnectedSignals: make([]bool, 2)}
	child1.Ports = append(child1.Ports, child1Port)

	child2 := &design.Block{ID: "b#c2", Name: "child2"}
	child2Port := &design.Port{ID: "p#c2", Name: "soft_en", Role: design.RoleSlave, Count: 2, ConnectedSignals: make([]bool, 2)}
	child2.Ports = append(child2.Ports, child2Port)

	children := map[string]*design.ChildInstance{
		"child1": {InstanceName: "child1", Block: child1, BlockID: child1.ID},
		"child2": {InstanceName: "child2", Block: child2, BlockID: child2.ID},
	}

	conn := &schema.Connect{
		Points: []*schema.Point{
			{Port: "soft_en"},
			{Port: "soft_en", Module: strp("child1")},
			{Port: "soft_en", Module: strp("child2")},
		},
	}

	if err := c.applyConnect(conn, parent, children); err != nil {
		t.Fatalf("applyConnect() error = %v", err)
	}

	c1 := connectionsTo(parent.Connections, child1Port)
	c2 := connectionsTo(parent.Connections, child2Port)
	if len(c1) != 2 || len(c2) != 2 {
		t.Fatalf("got %d connections to child1, %d to child2, want 2/2", len(c1), len(c2))
	}
	if c1[0].DriverSignal != 0 || c1[1].DriverSignal != 1 {
		t.Errorf("child1 driver signals = %d,%d, want 0,1", c1[0].DriverSignal, c1[1].DriverSignal)
	}
	if c2[0].DriverSignal != 0 || c2[1].DriverSignal != 1 {
		t.Errorf("child2 driver signals = %d,%d, want 0,1 (wrapped)", c2[0].DriverSignal, c2[1].DriverSignal)
	}
}

// An empty NO_CLK_RST module elaborates to an empty Block without
// warnings.
func TestElaborateModEmptyNoClkRst(t *testing.T) {
	c := newTestContext()
	mod := &schema.Mod{Base: schema.Base{Name: "top", Options: []string{"NO_CLK_RST"}}}

	block, err := c.ElaborateMod(mod, 0)
	if err != nil {
		t.Fatalf("ElaborateMod() error = %v", err)
	}
	if len(block.Ports) != 0 {
		t.Errorf("len(Ports) = %d, want 0", len(block.Ports))
	}
	if len(c.Report.Entries) != 0 {
		t.Errorf("Report.Entries = %v, want none", c.Report.Entries)
	}
}

// Without NO_CLK_RST, a module gets injected clk/rst principal ports.
func TestElaborateModInjectsClkRst(t *testing.T) {
	c := newTestContext()
	c.Forest.Hises = append(c.Forest.Hises,
		&schema.His{Base: schema.Base{Name: "clock"}, Components: []*schema.HisComponent{
			{Port: &schema.Port{Base: schema.Base{Name: "clk"}, Width: 1, Role: "master"}},
		}},
		&schema.His{Base: schema.Base{Name: "reset"}, Components: []*schema.HisComponent{
			{Port: &schema.Port{Base: schema.Base{Name: "rst"}, Width: 1, Role: "master"}},
		}},
	)
	c.hisByName["clock"] = c.Forest.Hises[0]
	c.hisByName["reset"] = c.Forest.Hises[1]

	mod := &schema.Mod{Base: schema.Base{Name: "top"}}
	block, err := c.ElaborateMod(mod, 0)
	if err != nil {
		t.Fatalf("ElaborateMod() error = %v", err)
	}
	if block.PrincipalClk == nil || block.PrincipalRst == nil {
		t.Fatalf("PrincipalClk/PrincipalRst not set")
	}
}
