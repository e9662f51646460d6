// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/publish.go
// Summary: Geometry assembly and effect publication after each frame.

package core

// Publish recomputes geometry for every visible workspace and emits
// effects for whatever changed since the previous publish.
func (e *Engine) Publish() {
	occluded := e.occludedOutputs()
	current := make(map[WindowID]SetWindowGeometry)

	for _, vo := range e.virtual.Active() {
		ws, ok := e.workspaces.OnOutput(vo.ID)
		if !ok {
			continue
		}
		visible := !occluded[vo.ID]
		geo := ws.Relayout(e.registry, e.cfg.InnerGap, e.cfg.OuterGap)
		for id, g := range geo {
			win, err := e.registry.Get(id)
			if err != nil {
				continue
			}
			rect := g.Rect
			vis := g.Visible && visible
			if win.Fullscreen != FullscreenNone {
				rect = e.fullscreenRect(win, ws, vo)
				vis = true
				if win.Fullscreen != FullscreenPhysicalOutput {
					vis = visible
				}
			}
			current[id] = SetWindowGeometry{ID: id, Rect: rect, Visible: vis}
		}
		// A fullscreen window hides its workspace siblings.
		for id, g := range current {
			win, err := e.registry.Get(id)
			if err != nil || win.Workspace != ws.ID {
				continue
			}
			if win.Fullscreen == FullscreenNone {
				if e.workspaceHasFullscreen(ws) {
					g.Visible = false
					current[id] = g
				}
			}
		}
		// The shown scratchpad member floats above everything.
		if sid, ok := e.scratchVisible[vo.ID]; ok {
			if win, err := e.registry.Get(sid); err == nil {
				current[sid] = SetWindowGeometry{ID: sid, Rect: win.FloatingGeometry, Visible: visible}
			}
		}
	}

	// Windows on hidden workspaces or in the hidden scratchpad set are
	// published invisible on every pass; the diff below broadcasts them
	// only when their entry changes.
	for _, id := range e.registry.IDs() {
		if _, ok := current[id]; !ok {
			current[id] = SetWindowGeometry{ID: id, Visible: false}
		}
	}

	for id, g := range current {
		if prev, ok := e.lastGeometry[id]; !ok || prev != g {
			e.effects.Broadcast(g)
		}
	}
	e.lastGeometry = current

	for _, vo := range e.virtual.Active() {
		var wsID WorkspaceID
		if ws, ok := e.workspaces.OnOutput(vo.ID); ok {
			wsID = ws.ID
		}
		if prev, ok := e.lastVisible[vo.ID]; !ok || prev != wsID {
			e.effects.Broadcast(SetWorkspaceVisible{Output: vo.ID, Workspace: wsID})
			e.lastVisible[vo.ID] = wsID
		}
	}

	snap := e.Snapshot()
	e.snapMu.Lock()
	e.published = snap
	e.snapMu.Unlock()
}

// PublishedSnapshot returns the last published frame snapshot. Safe
// from any goroutine.
func (e *Engine) PublishedSnapshot() StateSnapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.published
}

func (e *Engine) workspaceHasFullscreen(ws *Workspace) bool {
	for _, id := range e.registry.InWorkspace(ws.ID) {
		win, err := e.registry.Get(id)
		if err == nil && win.Fullscreen != FullscreenNone {
			return true
		}
	}
	return false
}

// WindowGeometryFor returns the last published geometry for a window.
func (e *Engine) WindowGeometryFor(id WindowID) (SetWindowGeometry, bool) {
	g, ok := e.lastGeometry[id]
	return g, ok
}
