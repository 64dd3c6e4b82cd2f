package checker

import (
	"fmt"

	"github.com/bluwireless/blade/internal/design"
)

func init() {
	Register("check_apertures", checkApertures)
}

// connKey identifies one signal slot of one Port, the unit chaseDriver
// walks backward over.
type connKey struct {
	port  *design.Port
	index int
}

// buildConnectionIndex indexes every Connection in project by its
// target slot, regardless of which Block recorded it: a Connection
// lives in the Connections list of whichever Block created it, which
// may be either endpoint's own parent, so a global index is the only
// way to find the driver of an arbitrary port from its far side.
func buildConnectionIndex(project *design.Project) map[connKey]*design.Connection {
	idx := make(map[connKey]*design.Connection)
	for _, b := range project.Blocks {
		for _, cn := range b.Connections {
			idx[connKey{cn.TargetPort, cn.TargetSignal}] = cn
		}
	}
	return idx
}

// buildPortOwnerIndex maps every Port to the Block that declares it,
// needed to find a driver port's own address map.
func buildPortOwnerIndex(project *design.Project) map[*design.Port]*design.Block {
	idx := make(map[*design.Port]*design.Block)
	for _, b := range project.Blocks {
		for _, p := range b.Ports {
			idx[p] = b
		}
	}
	return idx
}

// chaseDriver walks backward from (port, index) through Connections
// until it finds a slot with no recorded driver (the ultimate source)
// or a constant drive, matching checkers/apertures.py's chase_driver.
// isConst reports a constant terminus, which can never participate in
// an address map.
func chaseDriver(port *design.Port, index int, idx map[connKey]*design.Connection) (drvPort *design.Port, drvIndex int, isConst bool) {
	seen := make(map[connKey]bool)
	for {
		key := connKey{port, index}
		if seen[key] {
			// A cycle in the connection graph; treat as undriven rather
			// than loop forever.
			return port, index, false
		}
		seen[key] = true
		cn, ok := idx[key]
		if !ok {
			return port, index, false
		}
		if cn.ConstValue != nil {
			return nil, 0, true
		}
		port, index = cn.DriverPort, cn.DriverSignal
	}
}

func findTarget(am *design.AddressMap, port *design.Port) *design.AddressMapTarget {
	if am == nil {
		return nil
	}
	for _, t := range am.Targets {
		if t.Port == port {
			return t
		}
	}
	return nil
}

func initiatorsForTarget(am *design.AddressMap, t *design.AddressMapTarget) []*design.AddressMapInitiator {
	var out []*design.AddressMapInitiator
	for _, ini := range am.Initiators {
		for _, reach := range ini.Targets {
			if reach == t {
				out = append(out, ini)
				break
			}
		}
	}
	return out
}

// rootBlocks returns the Blocks that are nobody's child: the
// project's top-level instances, equivalent to
// project.getAllPrincipalNodes() in checkers/apertures.py.
func rootBlocks(project *design.Project) []*design.Block {
	isChild := make(map[string]bool)
	for _, b := range project.Blocks {
		for _, ci := range b.Children {
			isChild[ci.BlockID] = true
		}
	}
	var roots []*design.Block
	for _, b := range project.Blocks {
		if !isChild[b.ID] {
			roots = append(roots, b)
		}
	}
	return roots
}

// findRegisterBlocks walks the hierarchy under root collecting every
// descendant (root included) that owns at least one RegisterGroup.
func findRegisterBlocks(root *design.Block, seen map[string]bool, out *[]*design.Block) {
	if seen[root.ID] {
		return
	}
	seen[root.ID] = true
	for _, ci := range root.Children {
		if ci.Block != nil {
			findRegisterBlocks(ci.Block, seen, out)
		}
	}
	if len(root.RegisterGroups) > 0 {
		*out = append(*out, root)
	}
}

// highestRegisterEnd returns the byte offset one past the last byte of
// block's highest-addressed register, across every RegisterGroup it
// owns, together with the register that reaches it -- needed so
// violations can name the specific register rather than just the block,
// matching checkers/apertures.py's max_reg tracking.
func highestRegisterEnd(block *design.Block) (int64, *design.Register) {
	var maxEnd int64
	var maxReg *design.Register
	for _, g := range block.RegisterGroups {
		unit := int64(4)
		if g.ByteMode {
			unit = 1
		}
		for _, r := range g.Registers {
			end := (g.BaseAddr+r.Addr)*unit + int64((r.Width+7)/8)
			if end > maxEnd {
				maxEnd = end
				maxReg = r
			}
		}
	}
	return maxEnd, maxReg
}

func regName(r *design.Register) string {
	if r == nil {
		return "?"
	}
	return r.Name
}

// checkApertures is the built-in register aperture reachability check
// (§4.10): for every leaf Block with registers, chase its access port
// back to a driving AddressMap target and walk the AddressMap chain
// upward, confirming the block's highest register address fits within
// every target aperture and every reaching initiator's masked window.
// Translated from checkers/apertures.py's chase_driver/check_apertures.
func checkApertures(project *design.Project) ([]RuleViolation, error) {
	roots := rootBlocks(project)
	if len(roots) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var regBlocks []*design.Block
	for _, root := range roots {
		findRegisterBlocks(root, seen, &regBlocks)
	}
	if len(regBlocks) == 0 {
		return nil, nil
	}

	connIdx := buildConnectionIndex(project)
	ownerIdx := buildPortOwnerIndex(project)

	var violations []RuleViolation
	for _, block := range regBlocks {
		maxEnd, maxReg := highestRegisterEnd(block)
		if maxEnd == 0 {
			continue
		}

		accessPort, _, ok := findAccessPort(block, connIdx, ownerIdx)
		if !ok {
			violations = append(violations, RuleViolation{
				Node:    block,
				Message: fmt.Sprintf("block %q has registers but no port chases back to an address-map target", block.Name),
			})
			continue
		}

		p := accessPort
		for {
			driverBlock := ownerIdx[p]
			if driverBlock == nil || driverBlock.AddressMap == nil {
				break
			}
			tgt := findTarget(driverBlock.AddressMap, p)
			if tgt == nil {
				break
			}
			if maxEnd > tgt.Aperture {
				violations = append(violations, RuleViolation{
					Node: block,
					Message: fmt.Sprintf("register %q in block %q ends at byte %d, past target %q's %d byte aperture",
						regName(maxReg), block.Name, maxEnd, p.Name, tgt.Aperture),
				})
				break
			}

			inits := initiatorsForTarget(driverBlock.AddressMap, tgt)
			if len(inits) == 0 {
				violations = append(violations, RuleViolation{
					Node:    block,
					Message: fmt.Sprintf("target %q on block %q has no reaching initiator", p.Name, driverBlock.Name),
				})
				break
			}
			for _, ini := range inits {
				window := ini.Mask + 1
				if tgt.Offset < 0 || tgt.Offset+maxEnd > window {
					violations = append(violations, RuleViolation{
						Node: block,
						Message: fmt.Sprintf("register %q in block %q (0..%d) does not fit in initiator %q's masked window (0..%d) at target %q",
							regName(maxReg), block.Name, maxEnd, ini.Port.Name, window, p.Name),
					})
				}
			}
			if len(inits) != 1 {
				// Reached via more than one path: stop walking upward,
				// each inbound initiator was already checked above.
				break
			}

			next, _, isConst := chaseDriver(inits[0].Port, 0, connIdx)
			if isConst || next == nil || next == inits[0].Port {
				break
			}
			p = next
		}
	}
	return violations, nil
}

// findAccessPort locates a slave-role boundary port of block whose
// driver chases back to a Port that is itself an AddressMap target,
// the entry point used to walk the map chain upward.
func findAccessPort(block *design.Block, connIdx map[connKey]*design.Connection, ownerIdx map[*design.Port]*design.Block) (*design.Port, int, bool) {
	for _, p := range block.Ports {
		if p.Role != design.RoleSlave {
			continue
		}
		count := p.Count
		if count < 1 {
			count = 1
		}
		for i := 0; i < count; i++ {
			drvPort, drvIndex, isConst := chaseDriver(p, i, connIdx)
			if isConst || drvPort == nil {
				continue
			}
			owner := ownerIdx[drvPort]
			if owner == nil || owner.AddressMap == nil {
				continue
			}
			if findTarget(owner.AddressMap, drvPort) != nil {
				return drvPort, drvIndex, true
			}
		}
	}
	return nil, 0, false
}
