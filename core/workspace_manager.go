// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/workspace_manager.go
// Summary: The fixed global workspace pool and its output assignments.
// Usage: At most one virtual output displays any given workspace.

package core

import (
	"fmt"
	"log"
)

// DefaultWorkspaceCount is the size of the global workspace pool.
const DefaultWorkspaceCount = 10

// WorkspaceManager owns the fixed pool of global workspaces. Empty
// workspaces are never destroyed.
type WorkspaceManager struct {
	workspaces []*Workspace
}

// NewWorkspaceManager creates a pool of count workspaces, ids 1..count.
func NewWorkspaceManager(count int) *WorkspaceManager {
	if count <= 0 {
		count = DefaultWorkspaceCount
	}
	m := &WorkspaceManager{}
	for i := 1; i <= count; i++ {
		m.workspaces = append(m.workspaces, NewWorkspace(WorkspaceID(i), fmt.Sprintf("%d", i)))
	}
	return m
}

// Count returns the pool size.
func (m *WorkspaceManager) Count() int { return len(m.workspaces) }

// Get returns the workspace with the given id.
func (m *WorkspaceManager) Get(id WorkspaceID) (*Workspace, error) {
	if id < 1 || int(id) > len(m.workspaces) {
		return nil, ErrUnknownWorkspace
	}
	return m.workspaces[id-1], nil
}

// All returns the workspaces in id order.
func (m *WorkspaceManager) All() []*Workspace { return m.workspaces }

// OnOutput returns the workspace shown on the given virtual output.
func (m *WorkspaceManager) OnOutput(output VirtualOutputID) (*Workspace, bool) {
	for _, ws := range m.workspaces {
		if ws.Output == output {
			return ws, true
		}
	}
	return nil, false
}

// ShowOn assigns workspace id to the given virtual output. If another
// output was showing the workspace that output becomes idle; if the
// target output was showing another workspace, that workspace hides.
// Returns the workspace that was displaced on the target output, if any.
func (m *WorkspaceManager) ShowOn(id WorkspaceID, output VirtualOutputID, area Rect) (*Workspace, *Workspace, error) {
	ws, err := m.Get(id)
	if err != nil {
		return nil, nil, err
	}
	var displaced *Workspace
	if prev, ok := m.OnOutput(output); ok && prev != ws {
		prev.Hide()
		displaced = prev
	}
	if ws.Output != 0 && ws.Output != output {
		log.Printf("Workspace %d stolen from output %d by output %d", id, ws.Output, output)
	}
	ws.Show(output, area)
	return ws, displaced, nil
}

// HideOutput idles whatever workspace the output is showing.
func (m *WorkspaceManager) HideOutput(output VirtualOutputID) *Workspace {
	if ws, ok := m.OnOutput(output); ok {
		ws.Hide()
		return ws
	}
	return nil
}

// LowestIdle returns the lowest-numbered workspace not shown anywhere.
func (m *WorkspaceManager) LowestIdle() (*Workspace, bool) {
	for _, ws := range m.workspaces {
		if !ws.Visible() {
			return ws, true
		}
	}
	return nil, false
}

// IdleWithAffinity returns the lowest idle workspace whose last output
// matches the given id, falling back to the lowest idle workspace.
func (m *WorkspaceManager) IdleWithAffinity(output VirtualOutputID) (*Workspace, bool) {
	for _, ws := range m.workspaces {
		if !ws.Visible() && ws.LastOutput == output {
			return ws, true
		}
	}
	return m.LowestIdle()
}

// Next returns the id after cur, wrapping inside the pool.
func (m *WorkspaceManager) Next(cur WorkspaceID) WorkspaceID {
	n := WorkspaceID(len(m.workspaces))
	if cur >= n {
		return 1
	}
	return cur + 1
}

// Prev returns the id before cur, wrapping inside the pool.
func (m *WorkspaceManager) Prev(cur WorkspaceID) WorkspaceID {
	n := WorkspaceID(len(m.workspaces))
	if cur <= 1 {
		return n
	}
	return cur - 1
}

// FindWindow returns the workspace containing w.
func (m *WorkspaceManager) FindWindow(w WindowID) (*Workspace, bool) {
	for _, ws := range m.workspaces {
		if ws.Contains(w) {
			return ws, true
		}
	}
	return nil, false
}

func (m *WorkspaceManager) clone() *WorkspaceManager {
	out := &WorkspaceManager{}
	for _, ws := range m.workspaces {
		out.workspaces = append(out.workspaces, ws.clone())
	}
	return out
}
