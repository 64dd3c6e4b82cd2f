package checker

import (
	"strings"
	"testing"

	"github.com/bluwireless/blade/internal/design"
)

// buildFixture wires a two-level hierarchy: top instantiates leaf, leaf
// owns a register group behind a "bus" target port, and top's own
// address map routes one initiator to that target through top's own
// boundary port.
func buildFixture(t *testing.T, aperture, mask int64) (project *design.Project, leaf *design.Block) {
	t.Helper()

	project = design.NewProject("p")

	leafBus := &design.Port{ID: "port#leaf_bus", Name: "bus", Role: design.RoleSlave, Count: 1}
	leaf = &design.Block{
		ID:    "block#leaf",
		Name:  "leaf",
		Ports: []*design.Port{leafBus},
		RegisterGroups: []*design.RegisterGroup{
			{
				ID:   "group#1",
				Name: "regs",
				Registers: []*design.Register{
					{ID: "reg#1", Name: "ctrl", Addr: 0, Width: 32},
				},
			},
		},
	}
	if err := project.AddBlock(leaf); err != nil {
		t.Fatalf("AddBlock(leaf): %v", err)
	}

	topBoundary := &design.Port{ID: "port#top_boundary", Name: "to_leaf", Role: design.RoleMaster, Count: 1}
	topInitiator := &design.Port{ID: "port#top_init", Name: "init", Role: design.RoleSlave, Count: 1}

	top := &design.Block{
		ID:   "block#top",
		Name: "top",
		Ports: []*design.Port{topBoundary, topInitiator},
		Children: []*design.ChildInstance{
			{InstanceName: "leaf0", Block: leaf, BlockID: leaf.ID},
		},
		Connections: []*design.Connection{
			{ID: "conn#1", DriverPort: topBoundary, DriverSignal: 0, TargetPort: leafBus, TargetSignal: 0},
		},
	}

	target := &design.AddressMapTarget{ID: "amtgt#1", Port: topBoundary, Offset: 0, Aperture: aperture}
	initiator := &design.AddressMapInitiator{ID: "amini#1", Port: topInitiator, Mask: mask, Offset: 0, Targets: []*design.AddressMapTarget{target}}
	top.AddressMap = &design.AddressMap{
		ID:         "addrmap#1",
		Targets:    []*design.AddressMapTarget{target},
		Initiators: []*design.AddressMapInitiator{initiator},
	}

	if err := project.AddBlock(top); err != nil {
		t.Fatalf("AddBlock(top): %v", err)
	}
	return project, leaf
}

func TestCheckAperturesReachable(t *testing.T) {
	project, _ := buildFixture(t, 4096, 0xFFFF)
	violations, err := checkApertures(project)
	if err != nil {
		t.Fatalf("checkApertures() error = %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("checkApertures() = %v, want no violations for a reachable register block", violations)
	}
}

func TestCheckAperturesTooSmall(t *testing.T) {
	project, leaf := buildFixture(t, 2, 0xFFFF)
	violations, err := checkApertures(project)
	if err != nil {
		t.Fatalf("checkApertures() error = %v", err)
	}
	if len(violations) == 0 {
		t.Fatalf("checkApertures() = no violations, want aperture-too-small violation")
	}
	if violations[0].Node != design.Node(leaf) {
		t.Errorf("violation node = %v, want leaf block", violations[0].Node)
	}
}

func TestCheckAperturesNoRegisterBlocks(t *testing.T) {
	project := design.NewProject("p")
	block := &design.Block{ID: "block#empty", Name: "empty"}
	if err := project.AddBlock(block); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	violations, err := checkApertures(project)
	if err != nil {
		t.Fatalf("checkApertures() error = %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("checkApertures() = %v, want no violations when nothing owns registers", violations)
	}
}

// A scratch register array of two 32-bit words starting at byte 0x1C:
// scratch_0 spans [0x1C, 0x20), scratch_1 spans [0x20, 0x24). Against a
// 0x20-byte aperture, scratch_0 fits exactly but scratch_1 does not, and
// the violation must name scratch_1, not just the owning block.
func TestCheckAperturesNamesOverflowingArrayElement(t *testing.T) {
	project := design.NewProject("p")

	leafBus := &design.Port{ID: "port#leaf_bus", Name: "bus", Role: design.RoleSlave, Count: 1}
	leaf := &design.Block{
		ID:    "block#leaf",
		Name:  "leaf",
		Ports: []*design.Port{leafBus},
		RegisterGroups: []*design.RegisterGroup{
			{
				ID:       "group#1",
				Name:     "regs",
				ByteMode: true,
				Registers: []*design.Register{
					{ID: "reg#0", Name: "scratch_0", Addr: 0x1C, Width: 32},
					{ID: "reg#1", Name: "scratch_1", Addr: 0x20, Width: 32},
				},
			},
		},
	}
	if err := project.AddBlock(leaf); err != nil {
		t.Fatalf("AddBlock(leaf): %v", err)
	}

	topBoundary := &design.Port{ID: "port#top_boundary", Name: "to_leaf", Role: design.RoleMaster, Count: 1}
	topInitiator := &design.Port{ID: "port#top_init", Name: "init", Role: design.RoleSlave, Count: 1}
	top := &design.Block{
		ID:    "block#top",
		Name:  "top",
		Ports: []*design.Port{topBoundary, topInitiator},
		Children: []*design.ChildInstance{
			{InstanceName: "leaf0", Block: leaf, BlockID: leaf.ID},
		},
		Connections: []*design.Connection{
			{ID: "conn#1", DriverPort: topBoundary, DriverSignal: 0, TargetPort: leafBus, TargetSignal: 0},
		},
	}
	target := &design.AddressMapTarget{ID: "amtgt#1", Port: topBoundary, Offset: 0, Aperture: 0x20}
	initiator := &design.AddressMapInitiator{ID: "amini#1", Port: topInitiator, Mask: 0xFFFF, Offset: 0, Targets: []*design.AddressMapTarget{target}}
	top.AddressMap = &design.AddressMap{
		ID:         "addrmap#1",
		Targets:    []*design.AddressMapTarget{target},
		Initiators: []*design.AddressMapInitiator{initiator},
	}
	if err := project.AddBlock(top); err != nil {
		t.Fatalf("AddBlock(top): %v", err)
	}

	violations, err := checkApertures(project)
	if err != nil {
		t.Fatalf("checkApertures() error = %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("checkApertures() = %v, want exactly one aperture violation", violations)
	}
	if !strings.Contains(violations[0].Message, "scratch_1") {
		t.Errorf("violation message %q does not name scratch_1", violations[0].Message)
	}
	if strings.Contains(violations[0].Message, "scratch_0") {
		t.Errorf("violation message %q wrongly names scratch_0, the register that fits", violations[0].Message)
	}
}

func TestFindAccessPortUnreachable(t *testing.T) {
	project := design.NewProject("p")
	leafBus := &design.Port{ID: "port#bus", Name: "bus", Role: design.RoleSlave, Count: 1}
	leaf := &design.Block{
		ID:   "block#leaf",
		Name: "leaf",
		Ports: []*design.Port{leafBus},
		RegisterGroups: []*design.RegisterGroup{
			{ID: "group#1", Registers: []*design.Register{{ID: "reg#1", Addr: 0, Width: 32}}},
		},
	}
	if err := project.AddBlock(leaf); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	violations, err := checkApertures(project)
	if err != nil {
		t.Fatalf("checkApertures() error = %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("checkApertures() = %v, want exactly one unreachable-access-port violation", violations)
	}
}
