// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/fullscreen.go
// Summary: Three-tier fullscreen state machine with save/restore.
// Usage: Driven by the dispatcher; geometry overrides applied at publish.

package core

import "log"

// setFullscreen transitions a window between fullscreen modes.
// Entering Container or VirtualOutput demotes a conflicting window on
// the same virtual output; entering PhysicalOutput demotes per physical
// output. The tiled geometry saves once on None->X and restores on
// X->None; tier changes X->Y keep the original save.
func (e *Engine) setFullscreen(id WindowID, mode FullscreenMode) error {
	win, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	if win.Fullscreen == mode {
		return nil
	}
	ws, ok := e.workspaces.FindWindow(id)
	if !ok {
		return ErrUnknownWindow
	}

	if win.Fullscreen == FullscreenNone && mode != FullscreenNone {
		geo := ws.Relayout(e.registry, e.cfg.InnerGap, e.cfg.OuterGap)
		if g, ok := geo[id]; ok {
			if err := e.registry.SaveGeometry(id, g.Rect); err != nil {
				return err
			}
		}
	}

	if mode != FullscreenNone {
		e.demoteConflicting(id, ws, mode)
	}

	if mode == FullscreenNone {
		restored, err := e.registry.RestoreGeometry(id)
		if err != nil {
			return err
		}
		if win.Placement == PlacementFloating && !restored.Empty() {
			win.FloatingGeometry = restored
		}
	}
	return e.registry.SetFullscreen(id, mode)
}

// demoteConflicting clears fullscreen from windows the new state would
// conflict with: one Container/VirtualOutput window per virtual output,
// one PhysicalOutput window per physical output.
func (e *Engine) demoteConflicting(id WindowID, ws *Workspace, mode FullscreenMode) {
	vo, err := e.virtual.Get(ws.Output)
	if err != nil {
		return
	}
	for _, other := range e.registry.IDs() {
		if other == id {
			continue
		}
		w, err := e.registry.Get(other)
		if err != nil || w.Fullscreen == FullscreenNone {
			continue
		}
		conflict := false
		switch mode {
		case FullscreenContainer, FullscreenVirtualOutput:
			if w.Fullscreen == FullscreenPhysicalOutput {
				continue
			}
			ows, ok := e.workspaces.FindWindow(other)
			conflict = ok && ows.Output == ws.Output
		case FullscreenPhysicalOutput:
			if w.Fullscreen != FullscreenPhysicalOutput {
				continue
			}
			ows, ok := e.workspaces.FindWindow(other)
			if !ok || ows.Output == 0 {
				continue
			}
			ovo, err := e.virtual.Get(ows.Output)
			if err != nil {
				continue
			}
			conflict = sharePhysical(vo, ovo)
		}
		if conflict {
			log.Printf("Fullscreen: demoting window %d for window %d", other, id)
			if err := e.setFullscreen(other, FullscreenNone); err != nil {
				log.Printf("Fullscreen: demote failed: %v", err)
			}
		}
	}
}

func sharePhysical(a, b *VirtualOutput) bool {
	for _, ba := range a.Backings {
		for _, bb := range b.Backings {
			if ba.Physical == bb.Physical {
				return true
			}
		}
	}
	return false
}

// resolveFullscreenConflicts demotes fullscreen windows that ended up
// conflicting after a workspace reassignment (switch, move-to-output,
// hotplug). The lowest window id on each output keeps its state.
func (e *Engine) resolveFullscreenConflicts() {
	perVirtual := make(map[VirtualOutputID]WindowID)
	perPhysical := make(map[PhysicalOutputID]WindowID)
	for _, id := range e.registry.IDs() {
		win, err := e.registry.Get(id)
		if err != nil || win.Fullscreen == FullscreenNone {
			continue
		}
		ws, ok := e.workspaces.FindWindow(id)
		if !ok || ws.Output == 0 {
			continue
		}
		vo, err := e.virtual.Get(ws.Output)
		if err != nil {
			continue
		}
		switch win.Fullscreen {
		case FullscreenContainer, FullscreenVirtualOutput:
			if _, taken := perVirtual[ws.Output]; taken {
				if err := e.setFullscreen(id, FullscreenNone); err != nil {
					log.Printf("Fullscreen: conflict demote failed: %v", err)
				}
				continue
			}
			perVirtual[ws.Output] = id
		case FullscreenPhysicalOutput:
			phys := e.physicalForWindow(vo)
			if phys == nil {
				continue
			}
			if _, taken := perPhysical[phys.ID]; taken {
				if err := e.setFullscreen(id, FullscreenNone); err != nil {
					log.Printf("Fullscreen: conflict demote failed: %v", err)
				}
				continue
			}
			perPhysical[phys.ID] = id
		}
	}
}

// fullscreenRect computes the target rectangle for a fullscreen window.
func (e *Engine) fullscreenRect(win *ManagedWindow, ws *Workspace, vo *VirtualOutput) Rect {
	switch win.Fullscreen {
	case FullscreenContainer:
		leaf := ws.Tree.Leaf(win.ID)
		if leaf == nil || len(ws.Tree.Leaves()) == 1 {
			return vo.Region
		}
		// Inside a tabbed or stacked container the window takes the
		// whole container rect, hiding the tab-bar chrome.
		if p := leaf.Parent; p != nil && (p.Kind == KindTabbed || p.Kind == KindStacked) {
			return p.rect
		}
		if leaf.rect.Empty() {
			return vo.Region
		}
		return leaf.rect
	case FullscreenVirtualOutput:
		return vo.Region
	case FullscreenPhysicalOutput:
		if phys := e.physicalForWindow(vo); phys != nil {
			return phys.Region
		}
		return vo.Region
	}
	return Rect{}
}

// physicalForWindow picks the physical output a fullscreen window
// expands onto: the backing containing the virtual output's centre,
// falling back to the first backing.
func (e *Engine) physicalForWindow(vo *VirtualOutput) *PhysicalOutput {
	if len(vo.Backings) == 0 {
		return nil
	}
	centre := vo.Region.Center()
	for _, b := range vo.Backings {
		if b.Region.Contains(centre) {
			if phys, err := e.physical.Get(b.Physical); err == nil {
				return phys
			}
		}
	}
	phys, err := e.physical.Get(vo.Backings[0].Physical)
	if err != nil {
		return nil
	}
	return phys
}

// occludedOutputs returns the virtual outputs currently covered by a
// PhysicalOutput-fullscreen window on a sibling virtual output.
func (e *Engine) occludedOutputs() map[VirtualOutputID]bool {
	occluded := make(map[VirtualOutputID]bool)
	for _, id := range e.registry.IDs() {
		win, err := e.registry.Get(id)
		if err != nil || win.Fullscreen != FullscreenPhysicalOutput {
			continue
		}
		ws, ok := e.workspaces.FindWindow(id)
		if !ok || ws.Output == 0 {
			continue
		}
		vo, err := e.virtual.Get(ws.Output)
		if err != nil {
			continue
		}
		phys := e.physicalForWindow(vo)
		if phys == nil {
			continue
		}
		for _, other := range e.virtual.ForPhysical(phys.ID) {
			if other.ID != vo.ID {
				occluded[other.ID] = true
			}
		}
	}
	return occluded
}
