// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/snapshot.go
// Summary: Immutable state snapshot handed to render and IPC collaborators.

package core

import "sort"

// WindowSnapshot is one window's published state.
type WindowSnapshot struct {
	ID         WindowID       `json:"id"`
	Workspace  WorkspaceID    `json:"workspace"`
	Rect       Rect           `json:"rect"`
	Visible    bool           `json:"visible"`
	Placement  string         `json:"placement"`
	Fullscreen string         `json:"fullscreen"`
	Focused    bool           `json:"focused"`
	Urgent     bool           `json:"urgent"`
	Marks      []string       `json:"marks,omitempty"`
	Title      string         `json:"title,omitempty"`
}

// WorkspaceSnapshot is one workspace's published state.
type WorkspaceSnapshot struct {
	ID      WorkspaceID     `json:"id"`
	Name    string          `json:"name"`
	Output  VirtualOutputID `json:"output,omitempty"`
	Visible bool            `json:"visible"`
	Windows []WindowID      `json:"windows"`
	Focused WindowID        `json:"focused,omitempty"`
}

// OutputSnapshot is one virtual output's published state.
type OutputSnapshot struct {
	ID        VirtualOutputID `json:"id"`
	Name      string          `json:"name"`
	Region    Rect            `json:"region"`
	Workspace WorkspaceID     `json:"workspace,omitempty"`
	Active    bool            `json:"active"`
	Occluded  bool            `json:"occluded"`
	Physicals []string        `json:"physicals"`
}

// PhysicalSnapshot is one physical output's published state.
type PhysicalSnapshot struct {
	Name      string  `json:"name"`
	Region    Rect    `json:"region"`
	MMX       float64 `json:"mm_x"`
	MMY       float64 `json:"mm_y"`
	MMW       float64 `json:"mm_w"`
	MMH       float64 `json:"mm_h"`
	Scale     float64 `json:"scale"`
	Transform int     `json:"transform"`
}

// CursorSnapshot is the cursor's dual-representation position.
type CursorSnapshot struct {
	MMX      float64 `json:"mm_x"`
	MMY      float64 `json:"mm_y"`
	LogicalX float64 `json:"logical_x"`
	LogicalY float64 `json:"logical_y"`
	Output   string  `json:"output"`
}

// StateSnapshot is the engine state at one frame boundary, safe to hand
// across goroutines.
type StateSnapshot struct {
	Windows    []WindowSnapshot    `json:"windows"`
	Workspaces []WorkspaceSnapshot `json:"workspaces"`
	Outputs    []OutputSnapshot    `json:"outputs"`
	Physicals  []PhysicalSnapshot  `json:"physicals"`
	Cursor     CursorSnapshot      `json:"cursor"`
	Mode       string              `json:"mode,omitempty"`
}

// Snapshot captures the current state deterministically.
func (e *Engine) Snapshot() StateSnapshot {
	var snap StateSnapshot
	occluded := e.occludedOutputs()

	for _, id := range e.registry.IDs() {
		win, err := e.registry.Get(id)
		if err != nil {
			continue
		}
		ws := WindowSnapshot{
			ID:         id,
			Workspace:  win.Workspace,
			Placement:  win.Placement.String(),
			Fullscreen: win.Fullscreen.String(),
			Focused:    id == e.focusedWindow,
			Urgent:     win.Urgent,
			Title:      win.Hints.Title,
		}
		if g, ok := e.lastGeometry[id]; ok {
			ws.Rect = g.Rect
			ws.Visible = g.Visible
		}
		for m := range win.Marks {
			ws.Marks = append(ws.Marks, m)
		}
		sort.Strings(ws.Marks)
		snap.Windows = append(snap.Windows, ws)
	}

	for _, ws := range e.workspaces.All() {
		snap.Workspaces = append(snap.Workspaces, WorkspaceSnapshot{
			ID:      ws.ID,
			Name:    ws.Name,
			Output:  ws.Output,
			Visible: ws.Visible(),
			Windows: append(ws.Tree.Leaves(), ws.Floating...),
			Focused: ws.Focused,
		})
	}

	for _, vo := range e.virtual.All() {
		var wsID WorkspaceID
		if ws, ok := e.workspaces.OnOutput(vo.ID); ok {
			wsID = ws.ID
		}
		out := OutputSnapshot{
			ID:        vo.ID,
			Name:      vo.Name,
			Region:    vo.Region,
			Workspace: wsID,
			Active:    vo.Active,
			Occluded:  occluded[vo.ID],
		}
		for _, b := range vo.Backings {
			if phys, err := e.physical.Get(b.Physical); err == nil {
				out.Physicals = append(out.Physicals, phys.Name)
			}
		}
		snap.Outputs = append(snap.Outputs, out)
	}

	for _, phys := range e.physical.Outputs() {
		snap.Physicals = append(snap.Physicals, PhysicalSnapshot{
			Name:      phys.Name,
			Region:    phys.Region,
			MMX:       phys.MMX,
			MMY:       phys.MMY,
			MMW:       phys.MMW,
			MMH:       phys.MMH,
			Scale:     phys.Scale,
			Transform: phys.Transform,
		})
	}

	mm := e.physical.CursorMM()
	snap.Cursor = CursorSnapshot{MMX: mm.X, MMY: mm.Y}
	if cur, err := e.physical.Get(e.physical.CurrentOutput()); err == nil {
		lx, ly := cur.PhysicalToLogical(mm)
		snap.Cursor.LogicalX = lx
		snap.Cursor.LogicalY = ly
		snap.Cursor.Output = cur.Name
	}
	snap.Mode = e.mode
	return snap
}
