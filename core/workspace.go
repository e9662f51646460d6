// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/workspace.go
// Summary: A single workspace: layout tree, focus history, floating windows.
// Usage: Lives in the fixed WorkspaceManager pool; shown on one virtual output.

package core

import "log"

// Workspace owns one layout tree plus the floating windows and focus
// history for a global workspace slot.
type Workspace struct {
	ID   WorkspaceID
	Name string

	Tree     *Tree
	Floating []WindowID

	// Focused is the window holding input focus on this workspace.
	Focused WindowID

	// History orders windows by focus recency, most recent last.
	History []WindowID

	// Output is the virtual output currently displaying this
	// workspace; zero while the workspace is idle.
	Output VirtualOutputID

	// LastOutput remembers the previous output for hotplug affinity.
	LastOutput VirtualOutputID

	// Area is the hosting virtual output's bounds while visible.
	Area Rect

	// NextSplit is the orientation for the next tiled insert.
	NextSplit Orientation

	// DefaultLayout is the kind of container new tiled inserts wrap in.
	// Every workspace starts with KindSplit; the engine does not set it
	// from the config's workspace_layout value.
	DefaultLayout NodeKind
}

// NewWorkspace creates an idle workspace for slot id.
func NewWorkspace(id WorkspaceID, name string) *Workspace {
	return &Workspace{
		ID:            id,
		Name:          name,
		Tree:          NewTree(),
		NextSplit:     Horizontal,
		DefaultLayout: KindSplit,
	}
}

// Visible reports whether the workspace is shown on a virtual output.
func (ws *Workspace) Visible() bool { return ws.Output != 0 }

// Show assigns the workspace to a virtual output with the given bounds.
func (ws *Workspace) Show(output VirtualOutputID, area Rect) {
	ws.Output = output
	ws.LastOutput = output
	ws.Area = area
}

// Hide detaches the workspace from its output, keeping affinity.
func (ws *Workspace) Hide() {
	if ws.Output != 0 {
		ws.LastOutput = ws.Output
	}
	ws.Output = 0
}

// Contains reports whether w is reachable from the tree or floating list.
func (ws *Workspace) Contains(w WindowID) bool {
	if ws.Tree.Leaf(w) != nil {
		return true
	}
	for _, f := range ws.Floating {
		if f == w {
			return true
		}
	}
	return false
}

// AddTiled inserts w next to the focused leaf and focuses it.
func (ws *Workspace) AddTiled(w WindowID) {
	var focused *Node
	if ws.Focused != 0 {
		focused = ws.Tree.Leaf(ws.Focused)
	}
	wrapKind := ws.DefaultLayout
	ws.Tree.Insert(focused, w, ws.NextSplit, wrapKind)
	ws.FocusWindow(w)
}

// AddFloating registers w on the floating list and focuses it.
func (ws *Workspace) AddFloating(w WindowID) {
	ws.Floating = append(ws.Floating, w)
	ws.FocusWindow(w)
}

// RemoveWindow drops w from the tree or floating list and repairs focus
// from the history.
func (ws *Workspace) RemoveWindow(w WindowID) bool {
	removed := ws.Tree.Remove(w)
	for i, f := range ws.Floating {
		if f == w {
			ws.Floating = append(ws.Floating[:i], ws.Floating[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		return false
	}
	ws.dropHistory(w)
	if ws.Focused == w {
		ws.Focused = 0
		if n := len(ws.History); n > 0 {
			ws.Focused = ws.History[n-1]
		}
	}
	return true
}

// FocusWindow moves w to the top of the focus history.
func (ws *Workspace) FocusWindow(w WindowID) {
	ws.dropHistory(w)
	ws.History = append(ws.History, w)
	ws.Focused = w
	ws.Tree.Activate(w)
}

func (ws *Workspace) dropHistory(w WindowID) {
	for i, h := range ws.History {
		if h == w {
			ws.History = append(ws.History[:i], ws.History[i+1:]...)
			return
		}
	}
}

// CycleFocus moves focus to the next (or previous) window in tree
// order, wrapping around.
func (ws *Workspace) CycleFocus(forward bool) {
	order := append(ws.Tree.Leaves(), ws.Floating...)
	if len(order) == 0 {
		return
	}
	cur := -1
	for i, w := range order {
		if w == ws.Focused {
			cur = i
			break
		}
	}
	var next int
	if cur < 0 {
		next = 0
	} else if forward {
		next = (cur + 1) % len(order)
	} else {
		next = (cur - 1 + len(order)) % len(order)
	}
	ws.FocusWindow(order[next])
}

// Relayout recomputes the target geometry for every window on the
// workspace. The tiled tree receives the area minus outer gaps;
// floating windows clamp inside the raw area.
func (ws *Workspace) Relayout(reg *WindowRegistry, innerGap, outerGap int) map[WindowID]WindowGeometry {
	tiled := ws.Tree.CalculateGeometry(ws.Area.Shrink(outerGap), innerGap)
	for _, f := range ws.Floating {
		win, err := reg.Get(f)
		if err != nil {
			log.Printf("Workspace %d: floating window %d missing from registry", ws.ID, f)
			continue
		}
		rect := win.FloatingGeometry
		if rect.Empty() {
			rect = ws.defaultFloatingRect(win)
			win.FloatingGeometry = rect
		}
		rect = clampRectInto(rect, ws.Area)
		win.FloatingGeometry = rect
		tiled[f] = WindowGeometry{Rect: rect, Visible: ws.Visible()}
	}
	return tiled
}

// defaultFloatingRect centres the window's preferred size (clamped to
// its hints) inside the workspace area.
func (ws *Workspace) defaultFloatingRect(win *ManagedWindow) Rect {
	w := win.Hints.Preferred.W
	h := win.Hints.Preferred.H
	if w <= 0 {
		w = ws.Area.W / 2
	}
	if h <= 0 {
		h = ws.Area.H / 2
	}
	w = clampSpan(w, win.Hints.Min.W, win.Hints.Max.W)
	h = clampSpan(h, win.Hints.Min.H, win.Hints.Max.H)
	if w > ws.Area.W {
		w = ws.Area.W
	}
	if h > ws.Area.H {
		h = ws.Area.H
	}
	return Rect{
		X: ws.Area.X + (ws.Area.W-w)/2,
		Y: ws.Area.Y + (ws.Area.H-h)/2,
		W: w,
		H: h,
	}
}

func clampSpan(v, minHint, maxHint int) int {
	if maxHint > 0 && v > maxHint {
		v = maxHint
	}
	if minHint > 0 && v < minHint {
		v = minHint
	}
	return v
}

// clampRectInto repositions r to lie entirely within bounds, shrinking
// only when it cannot fit.
func clampRectInto(r, bounds Rect) Rect {
	if r.W > bounds.W {
		r.W = bounds.W
	}
	if r.H > bounds.H {
		r.H = bounds.H
	}
	if r.X < bounds.X {
		r.X = bounds.X
	}
	if r.Y < bounds.Y {
		r.Y = bounds.Y
	}
	if r.Right() > bounds.Right() {
		r.X = bounds.Right() - r.W
	}
	if r.Bottom() > bounds.Bottom() {
		r.Y = bounds.Bottom() - r.H
	}
	return r
}

func (ws *Workspace) clone() *Workspace {
	out := *ws
	out.Tree = ws.Tree.clone()
	out.Floating = append([]WindowID(nil), ws.Floating...)
	out.History = append([]WindowID(nil), ws.History...)
	return &out
}
