// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/engine.go
// Summary: The single-threaded engine loop owning all core state.
// Usage: Collaborators submit events; the loop runs them to completion
// and publishes geometry snapshots to effect listeners.

package core

import (
	"errors"
	"log"
	"sync"
)

// Engine owns the core state. All mutation happens on the loop
// goroutine; collaborators interact through Submit and effect listeners.
type Engine struct {
	cfg ConfigSnapshot

	registry   *WindowRegistry
	workspaces *WorkspaceManager
	virtual    *VirtualOutputManager
	physical   *PhysicalLayoutManager
	effects    *EffectDispatcher

	// scratchpad is the hidden overlay set; scratchVisible tracks the
	// at-most-one shown member per virtual output.
	scratchpad    []WindowID
	scratchVisible map[VirtualOutputID]WindowID

	// affinity remembers which workspace a physical output's default
	// virtual output displayed before it was unplugged.
	affinity map[string]WorkspaceID

	focusedOutput VirtualOutputID
	focusedWindow WindowID
	mode          string

	// strict makes invariant violations fatal (debug builds).
	strict   bool
	fatalErr error

	queue chan Event
	quit  chan struct{}
	once  sync.Once

	// published is the last frame's snapshot, readable from any
	// goroutine while the loop keeps running.
	snapMu    sync.RWMutex
	published StateSnapshot

	lastGeometry map[WindowID]SetWindowGeometry
	lastVisible  map[VirtualOutputID]WorkspaceID

	// ExitRequested is closed when an exit command drains.
	ExitRequested chan struct{}
}

// NewEngine creates an engine with the given config snapshot.
func NewEngine(cfg ConfigSnapshot, strict bool) *Engine {
	if cfg.WorkspaceCount <= 0 {
		cfg.WorkspaceCount = DefaultWorkspaceCount
	}
	return &Engine{
		cfg:            cfg,
		registry:       NewWindowRegistry(),
		workspaces:     NewWorkspaceManager(cfg.WorkspaceCount),
		virtual:        NewVirtualOutputManager(),
		physical:       NewPhysicalLayoutManager(),
		effects:        NewEffectDispatcher(),
		scratchVisible: make(map[VirtualOutputID]WindowID),
		affinity:       make(map[string]WorkspaceID),
		strict:         strict,
		queue:          make(chan Event, 256),
		quit:           make(chan struct{}),
		lastGeometry:   make(map[WindowID]SetWindowGeometry),
		lastVisible:    make(map[VirtualOutputID]WorkspaceID),
		ExitRequested:  make(chan struct{}),
	}
}

// Subscribe registers an effect listener. Must happen before Run.
func (e *Engine) Subscribe(l EffectListener) { e.effects.Subscribe(l) }

// Submit enqueues an event for the loop. Safe from any goroutine.
func (e *Engine) Submit(ev Event) {
	select {
	case e.queue <- ev:
	case <-e.quit:
	}
}

// Close stops the loop.
func (e *Engine) Close() {
	e.once.Do(func() { close(e.quit) })
}

// Run drains events FIFO until Close. Each drained batch ends with a
// geometry recompute and snapshot publish.
func (e *Engine) Run() error {
	for {
		select {
		case <-e.quit:
			return e.fatalErr
		case ev := <-e.queue:
			e.HandleEvent(ev)
			// Drain whatever arrived during processing before
			// publishing, keeping the frame sequence: events,
			// recompute, publish.
			for {
				select {
				case next := <-e.queue:
					e.HandleEvent(next)
					continue
				default:
				}
				break
			}
			e.Publish()
		}
	}
}

// HandleEvent applies one inbound event. Exported for synchronous use
// by tests and by startup seeding in cmd/stilch, which run without the
// loop goroutine.
func (e *Engine) HandleEvent(ev Event) {
	switch ev := ev.(type) {
	case OutputAdded:
		e.handleOutputAdded(ev)
	case OutputRemoved:
		e.handleOutputRemoved(ev)
	case WindowMapped:
		e.handleWindowMapped(ev)
	case WindowUnmapped:
		e.handleWindowUnmapped(ev)
	case PointerMotion:
		e.handlePointerMotion(ev)
	case PointerButton:
		e.handlePointerButton(ev)
	case CommandEvent:
		if err := e.Dispatch(ev.Command); err != nil {
			var ie *InvariantError
			if errors.As(err, &ie) && e.strict {
				e.fatalErr = err
				log.Printf("Engine: fatal: %v", err)
				e.Close()
				return
			}
			log.Printf("Engine: command failed: %v", err)
		}
	case ConfigReload:
		e.handleConfigReload(ev)
	}
}

func (e *Engine) handleOutputAdded(ev OutputAdded) {
	region := ev.Region
	mmW, mmH := ev.MMW, ev.MMH
	mmX, mmY := ev.MMX, ev.MMY
	scale := ev.Scale
	transform := ev.Transform
	for _, oc := range e.cfg.Outputs {
		if oc.Name != ev.Name {
			continue
		}
		if oc.Scale > 0 {
			scale = oc.Scale
		}
		transform = oc.Transform
		if oc.Position != nil {
			region.X, region.Y = oc.Position.X, oc.Position.Y
		}
		if oc.MMSize != nil {
			mmW, mmH = oc.MMSize.X, oc.MMSize.Y
		}
		if oc.MMPosition != nil {
			mmX, mmY = oc.MMPosition.X, oc.MMPosition.Y
		}
	}
	phys := e.physical.AddOutput(ev.Name, region, mmW, mmH, mmX, mmY, scale, transform, ev.RefreshHz)

	// Config-declared virtual outputs referencing this output win;
	// otherwise a default 1:1 virtual output appears.
	var matched []VirtualOutputDecl
	for _, decl := range e.cfg.VirtualOutputs {
		for _, name := range decl.Outputs {
			if name == ev.Name {
				matched = append(matched, decl)
				break
			}
		}
	}
	var created []*VirtualOutput
	if len(matched) > 0 {
		accepted := make(map[PhysicalOutputID][]Rect)
		for _, vo := range e.virtual.Active() {
			for _, b := range vo.Backings {
				accepted[b.Physical] = append(accepted[b.Physical], b.Region)
			}
		}
		for _, decl := range matched {
			backings, err := resolveDecl(e.physical, decl, accepted)
			if err != nil {
				log.Printf("Engine: dropping virtual output %q: %v", decl.Name, err)
				continue
			}
			region := Rect{}
			for _, b := range backings {
				region = region.Union(b.Region)
				accepted[b.Physical] = append(accepted[b.Physical], b.Region)
			}
			vo := &VirtualOutput{
				ID:       nextVirtualOutputID(),
				Name:     decl.Name,
				Backings: backings,
				Region:   region,
				Active:   true,
			}
			e.virtual.outputs[vo.ID] = vo
			created = append(created, vo)
		}
	}
	if len(created) == 0 {
		created = append(created, e.virtual.CreateDefault(phys))
	}

	for _, vo := range created {
		var ws *Workspace
		if id, ok := e.affinity[ev.Name]; ok {
			if candidate, err := e.workspaces.Get(id); err == nil && !candidate.Visible() {
				ws = candidate
			}
			delete(e.affinity, ev.Name)
		}
		if ws == nil {
			if idle, ok := e.workspaces.LowestIdle(); ok {
				ws = idle
			}
		}
		if ws != nil {
			ws.Show(vo.ID, vo.Region)
		}
		if e.focusedOutput == 0 {
			e.focusedOutput = vo.ID
		}
	}
	e.resolveFullscreenConflicts()
}

func (e *Engine) handleOutputRemoved(ev OutputRemoved) {
	phys, err := e.physical.RemoveOutput(ev.Name)
	if err != nil {
		log.Printf("Engine: remove of unknown output %q", ev.Name)
		return
	}
	for _, vo := range e.virtual.Deactivate(phys.ID) {
		if ws, ok := e.workspaces.OnOutput(vo.ID); ok {
			e.affinity[ev.Name] = ws.ID
			ws.Hide()
		}
		delete(e.scratchVisible, vo.ID)
		if e.focusedOutput == vo.ID {
			e.focusedOutput = 0
		}
	}
	if e.focusedOutput == 0 {
		for _, vo := range e.virtual.Active() {
			e.focusedOutput = vo.ID
			break
		}
	}
}

func (e *Engine) handleWindowMapped(ev WindowMapped) {
	ws := e.focusedWorkspace()
	if ws == nil {
		// No output yet; park the window on workspace 1.
		var err error
		ws, err = e.workspaces.Get(1)
		if err != nil {
			return
		}
	}
	id := e.registry.Insert(ev.Hints, ws.ID)
	ws.AddTiled(id)
	e.focusedWindow = id
	e.effects.Broadcast(FocusChanged{Window: id})
}

func (e *Engine) handleWindowUnmapped(ev WindowUnmapped) {
	e.removeWindow(ev.ID)
}

// removeWindow drops a window from everything it can be reachable from.
func (e *Engine) removeWindow(id WindowID) {
	if !e.registry.Has(id) {
		return
	}
	if ws, ok := e.workspaces.FindWindow(id); ok {
		ws.RemoveWindow(id)
		if e.focusedWindow == id {
			e.focusedWindow = ws.Focused
			e.effects.Broadcast(FocusChanged{Window: ws.Focused})
		}
	}
	for i, s := range e.scratchpad {
		if s == id {
			e.scratchpad = append(e.scratchpad[:i], e.scratchpad[i+1:]...)
			break
		}
	}
	for vo, w := range e.scratchVisible {
		if w == id {
			delete(e.scratchVisible, vo)
		}
	}
	if err := e.registry.Remove(id); err != nil {
		log.Printf("Engine: remove window %d: %v", id, err)
	}
	if e.focusedWindow == id {
		e.focusedWindow = 0
		e.effects.Broadcast(FocusChanged{})
	}
	delete(e.lastGeometry, id)
}

func (e *Engine) handlePointerMotion(ev PointerMotion) {
	res, err := e.physical.HandleMotion(ev.DX, ev.DY, ev.DeviceDPI)
	if err != nil {
		return
	}
	if res.Warped {
		e.effects.Broadcast(CursorWarp{X: res.LogicalX, Y: res.LogicalY, OutputName: res.OutputName})
	}
	p := Point{X: int(res.LogicalX), Y: int(res.LogicalY)}
	if vo, ok := e.virtual.AtPoint(p); ok {
		e.focusedOutput = vo.ID
		if e.cfg.FocusFollowsMouse {
			e.focusWindowAt(p)
		}
	}
}

func (e *Engine) handlePointerButton(ev PointerButton) {
	if !ev.Pressed {
		return
	}
	res := e.physical.CursorMM()
	cur, err := e.physical.Get(e.physical.CurrentOutput())
	if err != nil {
		return
	}
	lx, ly := cur.PhysicalToLogical(res)
	e.focusWindowAt(Point{X: int(lx), Y: int(ly)})
}

// focusWindowAt focuses the window whose published rect contains p.
func (e *Engine) focusWindowAt(p Point) {
	vo, ok := e.virtual.AtPoint(p)
	if !ok {
		return
	}
	ws, ok := e.workspaces.OnOutput(vo.ID)
	if !ok {
		return
	}
	geo := ws.Relayout(e.registry, e.cfg.InnerGap, e.cfg.OuterGap)
	// Floating windows stack above tiled ones; check them last-added
	// first so the topmost wins.
	for i := len(ws.Floating) - 1; i >= 0; i-- {
		f := ws.Floating[i]
		if g, ok := geo[f]; ok && g.Visible && g.Rect.Contains(p) {
			e.setFocus(ws, f)
			return
		}
	}
	for _, id := range ws.Tree.Leaves() {
		if g, ok := geo[id]; ok && g.Visible && g.Rect.Contains(p) {
			e.setFocus(ws, id)
			return
		}
	}
}

func (e *Engine) setFocus(ws *Workspace, id WindowID) {
	if id == 0 {
		if e.focusedWindow != 0 {
			e.focusedWindow = 0
			e.effects.Broadcast(FocusChanged{})
		}
		return
	}
	ws.FocusWindow(id)
	if ws.Output != 0 {
		e.focusedOutput = ws.Output
	}
	if e.focusedWindow != id {
		e.focusedWindow = id
		e.effects.Broadcast(FocusChanged{Window: id})
	}
}

func (e *Engine) handleConfigReload(ev ConfigReload) {
	snap := ev.Snapshot
	if snap.WorkspaceCount <= 0 {
		snap.WorkspaceCount = e.cfg.WorkspaceCount
	}
	e.cfg = snap
	for _, err := range e.virtual.Configure(e.physical, snap.VirtualOutputs) {
		log.Printf("Engine: config reload: %v", err)
	}
	// Re-seat workspaces: previously visible ones first, then fill
	// remaining outputs with idle workspaces.
	visible := []*Workspace{}
	for _, ws := range e.workspaces.All() {
		if ws.Visible() {
			visible = append(visible, ws)
			ws.Hide()
		}
	}
	e.scratchVisible = make(map[VirtualOutputID]WindowID)
	e.focusedOutput = 0
	outputs := e.virtual.Active()
	for i, vo := range outputs {
		if i < len(visible) {
			visible[i].Show(vo.ID, vo.Region)
		} else if ws, ok := e.workspaces.LowestIdle(); ok {
			ws.Show(vo.ID, vo.Region)
		}
		if e.focusedOutput == 0 {
			e.focusedOutput = vo.ID
		}
	}
	e.resolveFullscreenConflicts()
}

// focusedWorkspace returns the workspace on the focused output.
func (e *Engine) focusedWorkspace() *Workspace {
	if e.focusedOutput == 0 {
		return nil
	}
	if ws, ok := e.workspaces.OnOutput(e.focusedOutput); ok {
		return ws
	}
	return nil
}

// Config returns the active config snapshot.
func (e *Engine) Config() ConfigSnapshot { return e.cfg }

// Registry exposes the window registry for read-only collaborators.
func (e *Engine) Registry() *WindowRegistry { return e.registry }

// Workspaces exposes the workspace manager for read-only collaborators.
func (e *Engine) Workspaces() *WorkspaceManager { return e.workspaces }

// VirtualOutputs exposes the virtual output manager.
func (e *Engine) VirtualOutputs() *VirtualOutputManager { return e.virtual }

// PhysicalLayout exposes the physical layout manager.
func (e *Engine) PhysicalLayout() *PhysicalLayoutManager { return e.physical }

// FocusedWindow returns the window holding focus, zero for none.
func (e *Engine) FocusedWindow() WindowID { return e.focusedWindow }

// FocusedOutput returns the virtual output holding focus.
func (e *Engine) FocusedOutput() VirtualOutputID { return e.focusedOutput }

// ActiveMode returns the current binding mode name ("" = default).
func (e *Engine) ActiveMode() string { return e.mode }
