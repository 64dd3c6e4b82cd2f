package elaborate

import (
	"fmt"

	"github.com/bluwireless/blade/internal/design"
	"github.com/bluwireless/blade/internal/schema"
)

// signalRef is one addressable signal of a port (or a constant source)
// considered by the connection stages of §4.7 steps 6-9.
type signalRef struct {
	port     *design.Port
	index    int
	isConst  bool
	constVal int64
	owner    *design.Block // block that directly owns port; nil for a const
}

// ElaborateMod runs §4.7 for mod at depth (0 at the top), producing a
// Block registered on c.Project.
func (c *Context) ElaborateMod(mod *schema.Mod, depth int) (*design.Block, error) {
	return c.elaborateModAt(mod, depth, false)
}

// elaborateModAt is ElaborateMod with boundaryOnly set when depth has
// reached c.MaxDepth: only steps 1-4 run, matching step 5's "children
// below the cutoff are elaborated to boundary ports only" rule.
func (c *Context) elaborateModAt(mod *schema.Mod, depth int, boundaryOnly bool) (*design.Block, error) {
	// Step 1: create block.
	block := &design.Block{
		ID:         c.nextID("block"),
		Name:       mod.Name,
		Type:       mod.Name,
		SourceFile: mod.Pos.File,
		Attributes: blockAttributes(mod),
	}
	if err := c.Project.AddBlock(block); err != nil {
		return nil, errAt(mod.Pos, "duplicate-id", "%s", err)
	}

	// Step 2: boundary ports.
	for _, ref := range mod.Ports {
		port, err := c.boundaryPort(ref)
		if err != nil {
			return nil, err
		}
		block.Ports = append(block.Ports, port)
	}

	// Step 3: inject clk/rst.
	injected := false
	if !mod.HasOption("NO_CLK_RST") && !mod.HasOption("NO_AUTO_CLK_RST") {
		clk, rst, err := c.injectClkRst(block)
		if err != nil {
			return nil, err
		}
		block.Ports = append(block.Ports, clk, rst)
		block.PrincipalClk, block.PrincipalRst = clk, rst
		injected = true
	}

	// Step 4: nominate AUTO_CLK/AUTO_RST principals when step 3 did not run.
	if !injected {
		for i, ref := range mod.Ports {
			if !ref.HasOption("AUTO_CLK") && !ref.HasOption("AUTO_RST") {
				continue
			}
			p := block.Ports[i]
			p.Principal = true
			if ref.HasOption("AUTO_CLK") {
				p.PrincipalOf = "clk"
				block.PrincipalClk = p
			}
			if ref.HasOption("AUTO_RST") {
				p.PrincipalOf = "rst"
				block.PrincipalRst = p
			}
		}
	}
	if !injected && ((block.PrincipalClk != nil && mod.ClkRoot != nil) || (block.PrincipalRst != nil && mod.RstRoot != nil)) {
		c.Report.Warnf("elaborate/module", mod.Pos.File, mod.Pos.Line,
			"module %q declares both an AUTO_CLK/AUTO_RST port and clk_root/rst_root", mod.Name)
	}

	if boundaryOnly {
		return block, nil
	}

	// Step 5: expand children.
	children, err := c.expandChildren(mod, block, depth)
	if err != nil {
		return nil, err
	}

	// clk_root/rst_root resolve to a child output Point used only for step
	// 7's intra-block routing; the externally visible principal (set above)
	// never changes because of this (Open Question decision, §4.7 step 4).
	clkSrc, rstSrc := block.PrincipalClk, block.PrincipalRst
	if mod.ClkRoot != nil {
		p, err := resolvePortForPoint(mod.ClkRoot, block, children, mod.Pos)
		if err != nil {
			return nil, err
		}
		clkSrc = p
	}
	if mod.RstRoot != nil {
		p, err := resolvePortForPoint(mod.RstRoot, block, children, mod.Pos)
		if err != nil {
			return nil, err
		}
		rstSrc = p
	}

	// Step 6: explicit connections.
	for _, conn := range mod.Connections {
		if err := c.applyConnect(conn, block, children); err != nil {
			return nil, err
		}
	}

	// Step 7: automatic clock/reset distribution.
	if err := c.distributeClkRst(block, clkSrc, rstSrc); err != nil {
		return nil, err
	}

	// Steps 8-9: implicit inference, strict then relaxed.
	if err := c.implicitInferPass(block, true); err != nil {
		return nil, err
	}
	if err := c.implicitInferPass(block, false); err != nil {
		return nil, err
	}

	// Step 10: defaults.
	for _, pt := range mod.Defaults {
		p, err := resolvePortForPoint(pt, block, children, mod.Pos)
		if err != nil {
			return nil, err
		}
		markDefault(p)
	}

	// Step 11: warn.
	c.warnUnconnected(block)

	// Step 12: register map.
	if err := c.ElaborateRegisters(mod, block); err != nil {
		return nil, err
	}

	// Step 13: address map.
	if len(mod.AddressMap) > 0 {
		if err := c.ElaborateAddressMap(mod, block); err != nil {
			return nil, err
		}
	}

	return block, nil
}

func blockAttributes(mod *schema.Mod) map[string]string {
	m := attributesOf(mod.Options)
	if mod.ShortDesc != "" || mod.LongDesc != "" {
		if m == nil {
			m = map[string]string{}
		}
		if mod.ShortDesc != "" {
			m["short_description"] = mod.ShortDesc
		}
		if mod.LongDesc != "" {
			m["long_description"] = mod.LongDesc
		}
	}
	return m
}

func attributesOf(opts []string) map[string]string {
	if len(opts) == 0 {
		return nil
	}
	m := make(map[string]string, len(opts))
	for _, o := range opts {
		m[o] = "true"
	}
	return m
}

func (c *Context) boundaryPort(ref *schema.HisRef) (*design.Port, error) {
	ic, err := c.ResolveHisRef(ref, ref.Pos)
	if err != nil {
		return nil, err
	}
	count := 1
	if ref.Count != nil {
		count = *ref.Count
	}
	role := design.RoleMaster
	if ref.Role == "slave" {
		role = design.RoleSlave
	}
	port := &design.Port{
		ID:               c.nextID("port"),
		Name:             ref.Name,
		Interconnect:     ic,
		InterconnectID:   ic.ID,
		Count:            count,
		Role:             role,
		Attributes:       attributesOf(ref.Options),
		ConnectedSignals: make([]bool, count),
	}
	if err := c.attach(port, ref.Pos); err != nil {
		return nil, err
	}
	return port, nil
}

// injectClkRst creates the principal clk/rst slave ports of step 3, typed
// by the "clock"/"reset" interconnects every project is expected to
// declare (analogous to a standard-cell library's global nets).
func (c *Context) injectClkRst(block *design.Block) (clk, rst *design.Port, err error) {
	pos := schema.Pos{File: block.SourceFile}
	clk, err = c.principalPort("clk", "clock", pos)
	if err != nil {
		return nil, nil, err
	}
	rst, err = c.principalPort("rst", "reset", pos)
	if err != nil {
		return nil, nil, err
	}
	return clk, rst, nil
}

func (c *Context) principalPort(name, hisType string, pos schema.Pos) (*design.Port, error) {
	ic, err := c.resolveHis(hisType, true, map[string]bool{}, pos)
	if err != nil {
		return nil, err
	}
	port := &design.Port{
		ID:               c.nextID("port"),
		Name:             name,
		Interconnect:     ic,
		InterconnectID:   ic.ID,
		Count:            1,
		Role:             design.RoleSlave,
		Principal:        true,
		PrincipalOf:      name,
		ConnectedSignals: make([]bool, 1),
	}
	if err := c.attach(port, pos); err != nil {
		return nil, err
	}
	return port, nil
}

// expandChildren runs step 5. A ModInst with array count > 1 produces one
// ChildInstance per element, named "{instance_name}_{i}"; Points naming a
// specific array element reference that generated name directly, the same
// convention the register elaborator uses for array-placed registers.
func (c *Context) expandChildren(mod *schema.Mod, block *design.Block, depth int) (map[string]*design.ChildInstance, error) {
	children := make(map[string]*design.ChildInstance)
	cutoff := c.MaxDepth > 0 && depth+1 >= c.MaxDepth

	for _, inst := range mod.Modules {
		childMod, ok := c.modByName[inst.ModType]
		if !ok {
			return nil, errAt(inst.Pos, "undefined-reference", "undefined module type %q", inst.ModType)
		}
		count := inst.ArrayCount()
		for i := 0; i < count; i++ {
			name := inst.InstanceName
			if count > 1 {
				name = fmt.Sprintf("%s_%d", inst.InstanceName, i)
			}
			childBlock, err := c.elaborateModAt(childMod, depth+1, cutoff)
			if err != nil {
				return nil, err
			}
			ci := &design.ChildInstance{InstanceName: name, Block: childBlock, BlockID: childBlock.ID, Index: i}
			block.Children = append(block.Children, ci)
			children[name] = ci
		}
	}
	return children, nil
}

// resolvePortForPoint resolves a Point to a concrete Port: on block itself
// when Module is nil, or on the named child instance's Block otherwise.
func resolvePortForPoint(pt *schema.Point, block *design.Block, children map[string]*design.ChildInstance, pos schema.Pos) (*design.Port, error) {
	if pt.Module == nil {
		for _, p := range block.Ports {
			if p.Name == pt.Port {
				return p, nil
			}
		}
		return nil, errAt(pos, "undefined-reference", "undefined port %q on block %q", pt.Port, block.Name)
	}
	ci, ok := children[*pt.Module]
	if !ok {
		return nil, errAt(pos, "undefined-reference", "undefined child instance %q", *pt.Module)
	}
	for _, p := range ci.Block.Ports {
		if p.Name == pt.Port {
			return p, nil
		}
	}
	return nil, errAt(pos, "undefined-reference", "undefined port %q on instance %q", pt.Port, *pt.Module)
}

func ownerOf(pt *schema.Point, block *design.Block, children map[string]*design.ChildInstance) *design.Block {
	if pt.Module == nil {
		return block
	}
	if ci, ok := children[*pt.Module]; ok {
		return ci.Block
	}
	return nil
}

func signalsForPoint(port *design.Port, owner *design.Block, pt *schema.Point, pos schema.Pos) ([]signalRef, error) {
	if pt.SignalIndex != nil {
		idx := *pt.SignalIndex
		if idx < 0 || idx >= port.Count {
			return nil, errAt(pos, "signal-index-out-of-range",
				"signal index %d out of range for port %q (count %d)", idx, port.Name, port.Count)
		}
		return []signalRef{{port: port, index: idx, owner: owner}}, nil
	}
	sigs := make([]signalRef, port.Count)
	for i := range sigs {
		sigs[i] = signalRef{port: port, index: i, owner: owner}
	}
	return sigs, nil
}

// applyConnect runs step 6 for one Connect: partition into initiators and
// targets by net role, then apply the fan-out/fan-in wrapping rule.
func (c *Context) applyConnect(conn *schema.Connect, block *design.Block, children map[string]*design.ChildInstance) error {
	var initiators, targets []signalRef

	if conn.Const != nil {
		initiators = append(initiators, signalRef{isConst: true, constVal: int64(conn.Const.Value)})
	}

	for _, pt := range conn.Points {
		port, err := resolvePortForPoint(pt, block, children, conn.Pos)
		if err != nil {
			return err
		}
		owner := ownerOf(pt, block, children)
		sigs, err := signalsForPoint(port, owner, pt, conn.Pos)
		if err != nil {
			return err
		}
		if port.Role == design.RoleMaster {
			initiators = append(initiators, sigs...)
		} else {
			targets = append(targets, sigs...)
		}
	}

	if len(targets) == 0 {
		return errAt(conn.Pos, "invalid-connection", "connection %q has no target points", conn.Name)
	}
	if len(initiators) == 0 {
		return errAt(conn.Pos, "invalid-connection", "connection %q has no initiator points", conn.Name)
	}

	if conn.Const != nil {
		tp := targets[0].port
		primitive := tp.Interconnect != nil && len(tp.Interconnect.Components) == 1 && !tp.Interconnect.Components[0].Complex
		if len(targets) != 1 || !primitive {
			return errAt(conn.Pos, "invalid-const-target", "const source requires exactly one primitive-typed target")
		}
	}

	n, m := len(targets), len(initiators)
	if n > 1 && m > 1 && n != m && !evenMultiple(n, m) {
		return errAt(conn.Pos, "many-to-many",
			"connection %q: %d initiator signals cannot map to %d target signals", conn.Name, m, n)
	}

	markHandled := func(s signalRef) {
		if s.isConst {
			return
		}
		if !s.port.Principal {
			s.port.ExplicitlyHandled = true
		}
	}

	connectPair := func(init, tgt signalRef) error {
		cn := &design.Connection{
			ID:           c.nextID("conn"),
			TargetPort:   tgt.port,
			TargetPortID: tgt.port.ID,
			TargetSignal: tgt.index,
		}
		if init.isConst {
			v := init.constVal
			cn.ConstValue = &v
		} else {
			cn.DriverPort = init.port
			cn.DriverPortID = init.port.ID
			cn.DriverSignal = init.index
			init.port.ConnectedSignals[init.index] = true
		}
		tgt.port.ConnectedSignals[tgt.index] = true
		markHandled(init)
		markHandled(tgt)
		if err := c.attach(cn, conn.Pos); err != nil {
			return err
		}
		block.Connections = append(block.Connections, cn)
		return nil
	}

	return fanConnect(initiators, targets, false, connectPair)
}

// evenMultiple reports whether the larger of a, b is an exact multiple of
// the smaller, the condition under which fanConnect's modulo wrap gives
// every signal on the shorter side the same number of partners -- the
// fan-out/fan-out-wrap shape step 6 wires explicitly. Unequal counts that
// fail this test are left as a many-to-many error rather than silently
// wrapped unevenly.
func evenMultiple(a, b int) bool {
	if a == 0 || b == 0 {
		return false
	}
	if a < b {
		a, b = b, a
	}
	return a%b == 0
}

// fanConnect implements the shared wrapping rule of §4.7 steps 6, 8 and 9:
// the longer side is enumerated in declaration order, indexing into the
// shorter side modulo its length. Equal-length sides fall into the
// initiator branch, which reduces to a direct 1-to-1 mapping. When
// forbidSameOwner is set (implicit inference only), pairs whose signals
// both belong to the same Block are skipped, per the same-block
// output-to-input rule.
func fanConnect(initiators, targets []signalRef, forbidSameOwner bool, connectPair func(init, tgt signalRef) error) error {
	n, m := len(targets), len(initiators)
	pair := func(init, tgt signalRef) error {
		if forbidSameOwner && init.owner != nil && tgt.owner != nil && init.owner == tgt.owner {
			return nil
		}
		return connectPair(init, tgt)
	}
	if m >= n {
		for i, init := range initiators {
			if err := pair(init, targets[i%n]); err != nil {
				return err
			}
		}
	} else {
		for i, tgt := range targets {
			if err := pair(initiators[i%m], tgt); err != nil {
				return err
			}
		}
	}
	return nil
}

// distributeClkRst runs step 7: any child principal clk/rst input still
// missing a driver on some signal is wired from src.
func (c *Context) distributeClkRst(block *design.Block, clkSrc, rstSrc *design.Port) error {
	for _, ci := range block.Children {
		if err := c.wirePrincipal(block, ci.Block.PrincipalClk, clkSrc); err != nil {
			return err
		}
		if err := c.wirePrincipal(block, ci.Block.PrincipalRst, rstSrc); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) wirePrincipal(block *design.Block, target, src *design.Port) error {
	if target == nil || src == nil {
		return nil
	}
	for i, connected := range target.ConnectedSignals {
		if connected {
			continue
		}
		cn := &design.Connection{
			ID:           c.nextID("conn"),
			DriverPort:   src,
			DriverPortID: src.ID,
			DriverSignal: 0,
			TargetPort:   target,
			TargetPortID: target.ID,
			TargetSignal: i,
		}
		if err := c.attach(cn, schema.Pos{File: target.Name}); err != nil {
			return err
		}
		target.ConnectedSignals[i] = true
		if len(src.ConnectedSignals) > 0 {
			src.ConnectedSignals[0] = true
		}
		block.Connections = append(block.Connections, cn)
	}
	return nil
}

// implicitInferPass runs steps 8 (strict, matchName true) and 9 (relaxed,
// matchName false). Only completely unconnected, non-principal,
// non-explicitly-handled ports participate.
func (c *Context) implicitInferPass(block *design.Block, matchName bool) error {
	type key struct {
		name string
		ic   string
	}
	buckets := make(map[key][]signalRef)

	consider := func(p *design.Port, owner *design.Block) {
		if p.Principal || p.ExplicitlyHandled || anyConnected(p) {
			return
		}
		k := key{ic: p.InterconnectID}
		if matchName {
			k.name = p.Name
		}
		for i := 0; i < p.Count; i++ {
			buckets[k] = append(buckets[k], signalRef{port: p, index: i, owner: owner})
		}
	}
	for _, p := range block.Ports {
		consider(p, block)
	}
	for _, ci := range block.Children {
		for _, p := range ci.Block.Ports {
			consider(p, ci.Block)
		}
	}

	for _, group := range buckets {
		var inits, tgts []signalRef
		for _, s := range group {
			if s.port.Role == design.RoleMaster {
				inits = append(inits, s)
			} else {
				tgts = append(tgts, s)
			}
		}
		if len(inits) == 0 || len(tgts) == 0 {
			continue
		}
		n, m := len(tgts), len(inits)
		if n > 1 && m > 1 && n != m && !evenMultiple(n, m) {
			continue // left ambiguous; step 11 will warn about it
		}
		err := fanConnect(inits, tgts, true, func(init, tgt signalRef) error {
			cn := &design.Connection{
				ID:           c.nextID("conn"),
				DriverPort:   init.port,
				DriverPortID: init.port.ID,
				DriverSignal: init.index,
				TargetPort:   tgt.port,
				TargetPortID: tgt.port.ID,
				TargetSignal: tgt.index,
			}
			if err := c.attach(cn, schema.Pos{File: block.SourceFile}); err != nil {
				return err
			}
			init.port.ConnectedSignals[init.index] = true
			tgt.port.ConnectedSignals[tgt.index] = true
			block.Connections = append(block.Connections, cn)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func anyConnected(p *design.Port) bool {
	for _, b := range p.ConnectedSignals {
		if b {
			return true
		}
	}
	return false
}

func markDefault(p *design.Port) {
	if p.Attributes == nil {
		p.Attributes = map[string]string{}
	}
	p.Attributes["default"] = "true"
}

// warnUnconnected runs step 11.
func (c *Context) warnUnconnected(block *design.Block) {
	warn := func(p *design.Port, owner string) {
		if p.Principal || p.Attributes["default"] == "true" {
			return
		}
		connected := 0
		for _, b := range p.ConnectedSignals {
			if b {
				connected++
			}
		}
		total := len(p.ConnectedSignals)
		if connected == total {
			return
		}
		if connected == 0 {
			c.Report.Warnf("elaborate/module", block.SourceFile, 0, "port %q on %s is unconnected", p.Name, owner)
		} else {
			c.Report.Warnf("elaborate/module", block.SourceFile, 0,
				"port %q on %s is under-populated (%d/%d signals connected)", p.Name, owner, connected, total)
		}
	}
	for _, p := range block.Ports {
		warn(p, fmt.Sprintf("block %q", block.Name))
	}
	for _, ci := range block.Children {
		for _, p := range ci.Block.Ports {
			warn(p, fmt.Sprintf("instance %q", ci.InstanceName))
		}
	}
}
