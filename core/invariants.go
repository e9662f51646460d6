// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/invariants.go
// Summary: Universal invariant checks run after every command.

package core

import "fmt"

// CheckInvariants verifies the universal invariants across the core
// state. It returns the first violation found.
func (e *Engine) CheckInvariants() error {
	if err := e.checkMembership(); err != nil {
		return err
	}
	for _, ws := range e.workspaces.All() {
		if err := ws.Tree.Validate(); err != nil {
			return err
		}
	}
	if err := e.virtual.Validate(); err != nil {
		return err
	}
	if err := e.checkAssignments(); err != nil {
		return err
	}
	if err := e.checkFullscreen(); err != nil {
		return err
	}
	return e.checkCoverage()
}

// checkMembership: every registered window is reachable from exactly
// one workspace tree/floating list or the scratchpad set, and its
// workspace field agrees with where it was found.
func (e *Engine) checkMembership() error {
	owner := make(map[WindowID]WorkspaceID)
	count := make(map[WindowID]int)
	for _, ws := range e.workspaces.All() {
		for _, id := range ws.Tree.Leaves() {
			owner[id] = ws.ID
			count[id]++
		}
		for _, id := range ws.Floating {
			owner[id] = ws.ID
			count[id]++
		}
	}
	for _, id := range e.scratchpad {
		owner[id] = 0
		count[id]++
	}
	for _, id := range e.registry.IDs() {
		n := count[id]
		if n == 0 {
			return &InvariantError{Which: "window-reachable", Detail: fmt.Sprintf("window %d registered but unreachable", id)}
		}
		if n > 1 {
			return &InvariantError{Which: "window-unique", Detail: fmt.Sprintf("window %d reachable %d times", id, n)}
		}
		win, err := e.registry.Get(id)
		if err != nil {
			return err
		}
		if win.Workspace != owner[id] {
			return &InvariantError{
				Which:  "workspace-agreement",
				Detail: fmt.Sprintf("window %d has workspace %d but lives on %d", id, win.Workspace, owner[id]),
			}
		}
	}
	for id := range count {
		if !e.registry.Has(id) {
			return &InvariantError{Which: "window-registered", Detail: fmt.Sprintf("window %d reachable but not registered", id)}
		}
	}
	return nil
}

// checkAssignments: at most one virtual output displays any workspace,
// and assignments reference active outputs.
func (e *Engine) checkAssignments() error {
	seen := make(map[VirtualOutputID]WorkspaceID)
	for _, ws := range e.workspaces.All() {
		if ws.Output == 0 {
			continue
		}
		if prev, ok := seen[ws.Output]; ok {
			return &InvariantError{
				Which:  "workspace-display",
				Detail: fmt.Sprintf("output %d shows workspaces %d and %d", ws.Output, prev, ws.ID),
			}
		}
		seen[ws.Output] = ws.ID
		vo, err := e.virtual.Get(ws.Output)
		if err != nil || !vo.Active {
			return &InvariantError{
				Which:  "workspace-output",
				Detail: fmt.Sprintf("workspace %d assigned to missing or inactive output %d", ws.ID, ws.Output),
			}
		}
	}
	return nil
}

// checkFullscreen: at most one Container/VirtualOutput window per
// virtual output; at most one PhysicalOutput window per physical output.
func (e *Engine) checkFullscreen() error {
	perVirtual := make(map[VirtualOutputID]WindowID)
	perPhysical := make(map[PhysicalOutputID]WindowID)
	for _, id := range e.registry.IDs() {
		win, err := e.registry.Get(id)
		if err != nil {
			return err
		}
		if win.Fullscreen == FullscreenNone {
			continue
		}
		ws, ok := e.workspaces.FindWindow(id)
		if !ok || ws.Output == 0 {
			continue
		}
		switch win.Fullscreen {
		case FullscreenContainer, FullscreenVirtualOutput:
			if prev, ok := perVirtual[ws.Output]; ok {
				return &InvariantError{
					Which:  "fullscreen-virtual",
					Detail: fmt.Sprintf("windows %d and %d both fullscreen on output %d", prev, id, ws.Output),
				}
			}
			perVirtual[ws.Output] = id
		case FullscreenPhysicalOutput:
			vo, err := e.virtual.Get(ws.Output)
			if err != nil {
				continue
			}
			phys := e.physicalForWindow(vo)
			if phys == nil {
				continue
			}
			if prev, ok := perPhysical[phys.ID]; ok {
				return &InvariantError{
					Which:  "fullscreen-physical",
					Detail: fmt.Sprintf("windows %d and %d both physical-fullscreen on %s", prev, id, phys.Name),
				}
			}
			perPhysical[phys.ID] = id
		}
	}
	return nil
}

// checkCoverage: inside every visible workspace, split children tile
// their parent exactly, leaving only the gap budget uncovered.
func (e *Engine) checkCoverage() error {
	for _, ws := range e.workspaces.All() {
		if !ws.Visible() || ws.Tree.Root == nil {
			continue
		}
		ws.Relayout(e.registry, e.cfg.InnerGap, e.cfg.OuterGap)
		if err := checkSplitCoverage(ws.Tree.Root, e.cfg.InnerGap); err != nil {
			return err
		}
	}
	return nil
}

func checkSplitCoverage(n *Node, gap int) error {
	span0 := n.rect.W
	if n.Orient == Vertical {
		span0 = n.rect.H
	}
	if n.Kind == KindSplit && n.visible && span0 >= gap*(len(n.Children)-1) {
		sum := gap * (len(n.Children) - 1)
		for _, c := range n.Children {
			if n.Orient == Horizontal {
				sum += c.rect.W
			} else {
				sum += c.rect.H
			}
		}
		span := n.rect.W
		if n.Orient == Vertical {
			span = n.rect.H
		}
		if sum != span {
			return &InvariantError{
				Which:  "tiled-coverage",
				Detail: fmt.Sprintf("split %d covers %d of %d pixels", n.ID, sum, span),
			}
		}
	}
	for _, c := range n.Children {
		if err := checkSplitCoverage(c, gap); err != nil {
			return err
		}
	}
	return nil
}
