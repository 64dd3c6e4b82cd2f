package elaborate

import (
	"github.com/bluwireless/blade/internal/design"
	"github.com/bluwireless/blade/internal/schema"
)

// ElaborateAddressMap runs §4.8 for mod's addressmap entries, attaching a
// new AddressMap to block. Only block's own boundary ports may act as
// initiators or targets: address distribution is modeled only at leaf,
// IMP-flagged blocks, so a Point naming a child instance is rejected.
func (c *Context) ElaborateAddressMap(mod *schema.Mod, block *design.Block) error {
	am := &design.AddressMap{ID: c.nextID("addrmap")}
	if err := c.attach(am, mod.Pos); err != nil {
		return err
	}

	byInitiator := make(map[*schema.Initiator]*design.AddressMapInitiator)
	byTarget := make(map[*schema.Target]*design.AddressMapTarget)
	targetByPortID := make(map[string]*design.AddressMapTarget)
	initByPortID := make(map[string]*design.AddressMapInitiator)

	for _, entry := range mod.AddressMap {
		switch {
		case entry.Initiator != nil:
			ini := entry.Initiator
			port, err := addrMapPoint(ini.Point, block, ini.Pos)
			if err != nil {
				return err
			}
			node := &design.AddressMapInitiator{
				ID:     c.nextID("aminit"),
				Port:   port,
				PortID: port.ID,
				Mask:   int64(ini.Mask),
				Offset: int64(ini.Offset),
			}
			if err := c.attach(node, ini.Pos); err != nil {
				return err
			}
			am.Initiators = append(am.Initiators, node)
			byInitiator[ini] = node
			initByPortID[port.ID] = node

		case entry.Target != nil:
			tgt := entry.Target
			port, err := addrMapPoint(tgt.Point, block, tgt.Pos)
			if err != nil {
				return err
			}
			node := &design.AddressMapTarget{
				ID:       c.nextID("amtgt"),
				Port:     port,
				PortID:   port.ID,
				Offset:   int64(tgt.Offset),
				Aperture: int64(tgt.Aperture),
			}
			if err := c.attach(node, tgt.Pos); err != nil {
				return err
			}
			am.Targets = append(am.Targets, node)
			byTarget[tgt] = node
			targetByPortID[port.ID] = node
		}
	}

	// Step 4: translate constraints into explicit initiator<->target edges.
	for _, entry := range mod.AddressMap {
		switch {
		case entry.Initiator != nil:
			ini := entry.Initiator
			node := byInitiator[ini]
			for _, pt := range ini.Constraints {
				port, err := addrMapPoint(pt, block, ini.Pos)
				if err != nil {
					return err
				}
				if tnode, ok := targetByPortID[port.ID]; ok && !hasTarget(node.Targets, tnode) {
					node.Targets = append(node.Targets, tnode)
				}
			}
		case entry.Target != nil:
			tgt := entry.Target
			tnode := byTarget[tgt]
			for _, pt := range tgt.Constraints {
				port, err := addrMapPoint(pt, block, tgt.Pos)
				if err != nil {
					return err
				}
				if inode, ok := initByPortID[port.ID]; ok && !hasTarget(inode.Targets, tnode) {
					inode.Targets = append(inode.Targets, tnode)
				}
			}
		}
	}

	// No entry named a constraint: every initiator reaches every target,
	// matching a flat, unconstrained address map.
	if !anyConstraints(mod.AddressMap) {
		for _, ini := range am.Initiators {
			ini.Targets = am.Targets
		}
	}

	block.AddressMap = am
	return nil
}

func addrMapPoint(pt *schema.Point, block *design.Block, pos schema.Pos) (*design.Port, error) {
	if pt.Module != nil {
		return nil, errAt(pos, "child-port-in-addressmap",
			"address map point %q cannot reference child instance %q", pt.Port, *pt.Module)
	}
	for _, p := range block.Ports {
		if p.Name != pt.Port {
			continue
		}
		if pt.SignalIndex != nil && (*pt.SignalIndex < 0 || *pt.SignalIndex >= p.Count) {
			return nil, errAt(pos, "signal-index-out-of-range",
				"signal index %d out of range for port %q (count %d)", *pt.SignalIndex, p.Name, p.Count)
		}
		return p, nil
	}
	return nil, errAt(pos, "undefined-reference", "undefined port %q on block %q", pt.Port, block.Name)
}

func hasTarget(list []*design.AddressMapTarget, t *design.AddressMapTarget) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}

func anyConstraints(entries []*schema.AddrMapEntry) bool {
	for _, e := range entries {
		if e.Initiator != nil && len(e.Initiator.Constraints) > 0 {
			return true
		}
		if e.Target != nil && len(e.Target.Constraints) > 0 {
			return true
		}
	}
	return false
}
