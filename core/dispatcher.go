// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/dispatcher.go
// Summary: The sole legal mutator: command execution with rollback.
// Usage: Every user command flows through Dispatch; invariants are
// checked afterwards and violations roll the state back.

package core

import (
	"errors"
	"log"
)

// capturedState is a deep copy of everything a command may touch.
type capturedState struct {
	registry      *WindowRegistry
	workspaces    *WorkspaceManager
	virtual       *VirtualOutputManager
	physical      *PhysicalLayoutManager
	scratchpad    []WindowID
	scratchVis    map[VirtualOutputID]WindowID
	focusedOutput VirtualOutputID
	focusedWindow WindowID
	mode          string
}

func (e *Engine) captureState() capturedState {
	vis := make(map[VirtualOutputID]WindowID, len(e.scratchVisible))
	for k, v := range e.scratchVisible {
		vis[k] = v
	}
	return capturedState{
		registry:      e.registry.clone(),
		workspaces:    e.workspaces.clone(),
		virtual:       e.virtual.clone(),
		physical:      e.physical.clone(),
		scratchpad:    append([]WindowID(nil), e.scratchpad...),
		scratchVis:    vis,
		focusedOutput: e.focusedOutput,
		focusedWindow: e.focusedWindow,
		mode:          e.mode,
	}
}

func (e *Engine) restoreState(s capturedState) {
	e.registry = s.registry
	e.workspaces = s.workspaces
	e.virtual = s.virtual
	e.physical = s.physical
	e.scratchpad = s.scratchpad
	e.scratchVisible = s.scratchVis
	e.focusedOutput = s.focusedOutput
	e.focusedWindow = s.focusedWindow
	e.mode = s.mode
}

// Dispatch executes one command atomically. On an invariant violation
// the mutation rolls back and the violation is returned; outside strict
// mode it is also logged, and the rolled-back command is a no-op.
func (e *Engine) Dispatch(cmd Command) error {
	saved := e.captureState()
	err := e.apply(cmd)
	if errors.Is(err, ErrNoNeighbour) {
		// Quiet no-op by contract.
		return nil
	}
	if err != nil {
		e.restoreState(saved)
		return err
	}
	if verr := e.CheckInvariants(); verr != nil {
		e.restoreState(saved)
		if e.strict {
			return verr
		}
		log.Printf("Dispatcher: rolled back command %d: %v", cmd.Kind, verr)
		return verr
	}
	return nil
}

func (e *Engine) apply(cmd Command) error {
	switch cmd.Kind {
	case CmdFocusDirection:
		return e.cmdFocusDirection(cmd.Dir)
	case CmdFocusWindow:
		return e.cmdFocusWindow(cmd.Window)
	case CmdFocusOutput:
		return e.cmdFocusOutput(cmd.Dir)
	case CmdFocusNext, CmdFocusPrev:
		ws := e.focusedWorkspace()
		if ws == nil {
			return nil
		}
		ws.CycleFocus(cmd.Kind == CmdFocusNext)
		e.setFocus(ws, ws.Focused)
		return nil
	case CmdMoveDirection:
		return e.cmdMoveDirection(cmd.Dir)
	case CmdMoveToWorkspace:
		return e.cmdMoveToWorkspace(cmd.Workspace)
	case CmdWorkspaceSwitch:
		return e.cmdWorkspaceSwitch(cmd.Workspace)
	case CmdMoveWorkspaceToOutput:
		return e.cmdMoveWorkspaceToOutput(cmd.Dir)
	case CmdSplitH:
		if ws := e.focusedWorkspace(); ws != nil {
			ws.NextSplit = Horizontal
		}
		return nil
	case CmdSplitV:
		if ws := e.focusedWorkspace(); ws != nil {
			ws.NextSplit = Vertical
		}
		return nil
	case CmdLayoutTabbed:
		return e.cmdSetLayout(KindTabbed, Horizontal)
	case CmdLayoutStacking:
		return e.cmdSetLayout(KindStacked, Horizontal)
	case CmdLayoutSplitH:
		return e.cmdSetLayout(KindSplit, Horizontal)
	case CmdLayoutSplitV:
		return e.cmdSetLayout(KindSplit, Vertical)
	case CmdLayoutToggleSplit:
		return e.cmdToggleSplit()
	case CmdFloatToggle:
		return e.cmdFloatToggle()
	case CmdResize:
		return e.cmdResize(cmd)
	case CmdFullscreen:
		return e.cmdFullscreen(cmd)
	case CmdKill:
		if e.focusedWindow != 0 {
			e.removeWindow(e.focusedWindow)
		}
		return nil
	case CmdScratchpadMove:
		return e.cmdScratchpadMove()
	case CmdScratchpadShow:
		return e.cmdScratchpadShow()
	case CmdMark:
		return e.cmdMark(cmd.Name, true)
	case CmdUnmark:
		return e.cmdMark(cmd.Name, false)
	case CmdMode:
		if cmd.Name == "default" {
			e.mode = ""
			return nil
		}
		if _, ok := e.cfg.Modes[cmd.Name]; !ok {
			log.Printf("Dispatcher: unknown mode %q", cmd.Name)
			return nil
		}
		e.mode = cmd.Name
		return nil
	case CmdExec:
		// Execution belongs to the launch collaborator.
		log.Printf("Dispatcher: exec %q requested", cmd.Name)
		return nil
	case CmdReload:
		log.Printf("Dispatcher: config reload requested")
		return nil
	case CmdExit:
		close(e.ExitRequested)
		e.Close()
		return nil
	case CmdNop, CmdNone:
		return nil
	}
	return nil
}

func (e *Engine) cmdFocusWindow(id WindowID) error {
	if !e.registry.Has(id) {
		return ErrUnknownWindow
	}
	ws, ok := e.workspaces.FindWindow(id)
	if !ok {
		return ErrUnknownWindow
	}
	e.setFocus(ws, id)
	return nil
}

func (e *Engine) cmdFocusDirection(d Direction) error {
	ws := e.focusedWorkspace()
	if ws == nil || ws.Focused == 0 {
		return e.cmdFocusOutput(d)
	}
	ws.Relayout(e.registry, e.cfg.InnerGap, e.cfg.OuterGap)
	if target, ok := ws.Tree.DirectionalFocus(ws.Focused, d, ws.History); ok {
		e.setFocus(ws, target)
		return nil
	}
	// Nothing further inside the workspace: cross the output boundary.
	return e.cmdFocusOutput(d)
}

func (e *Engine) cmdFocusOutput(d Direction) error {
	if e.focusedOutput == 0 {
		return nil
	}
	vo, err := e.virtual.Neighbour(e.focusedOutput, d)
	if err != nil {
		return err
	}
	e.focusedOutput = vo.ID
	if ws, ok := e.workspaces.OnOutput(vo.ID); ok && ws.Focused != 0 {
		e.setFocus(ws, ws.Focused)
	} else {
		e.focusedWindow = 0
		e.effects.Broadcast(FocusChanged{})
	}
	return nil
}

func (e *Engine) cmdMoveDirection(d Direction) error {
	ws := e.focusedWorkspace()
	if ws == nil || ws.Focused == 0 {
		return nil
	}
	win, err := e.registry.Get(ws.Focused)
	if err != nil {
		return err
	}
	if win.Placement == PlacementFloating {
		// Floating windows nudge by a fixed step, clamped to bounds.
		const step = 20
		r := win.FloatingGeometry
		switch d {
		case DirLeft:
			r.X -= step
		case DirRight:
			r.X += step
		case DirUp:
			r.Y -= step
		case DirDown:
			r.Y += step
		}
		win.FloatingGeometry = clampRectInto(r, ws.Area)
		return nil
	}
	ws.Relayout(e.registry, e.cfg.InnerGap, e.cfg.OuterGap)
	ws.Tree.MoveInDirection(ws.Focused, d)
	return nil
}

func (e *Engine) resolveWorkspaceTarget(t WorkspaceTarget) (WorkspaceID, error) {
	cur := WorkspaceID(1)
	if ws := e.focusedWorkspace(); ws != nil {
		cur = ws.ID
	}
	switch t.Kind {
	case WorkspaceNext:
		return e.workspaces.Next(cur), nil
	case WorkspacePrev:
		return e.workspaces.Prev(cur), nil
	default:
		if _, err := e.workspaces.Get(t.Num); err != nil {
			return 0, err
		}
		return t.Num, nil
	}
}

func (e *Engine) cmdMoveToWorkspace(t WorkspaceTarget) error {
	src := e.focusedWorkspace()
	if src == nil || src.Focused == 0 {
		return nil
	}
	target, err := e.resolveWorkspaceTarget(t)
	if err != nil {
		return err
	}
	if target == src.ID {
		return nil
	}
	dst, err := e.workspaces.Get(target)
	if err != nil {
		return err
	}
	id := src.Focused
	win, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	// A moved window leaves fullscreen so it cannot conflict with one
	// already on the destination workspace's output.
	if win.Fullscreen != FullscreenNone {
		if err := e.setFullscreen(id, FullscreenNone); err != nil {
			return err
		}
	}
	src.RemoveWindow(id)
	if err := e.registry.SetWorkspace(id, dst.ID); err != nil {
		return err
	}
	if win.Placement == PlacementFloating {
		dst.AddFloating(id)
	} else {
		dst.AddTiled(id)
	}
	e.focusedWindow = src.Focused
	e.effects.Broadcast(FocusChanged{Window: src.Focused})
	return nil
}

func (e *Engine) cmdWorkspaceSwitch(t WorkspaceTarget) error {
	if e.focusedOutput == 0 {
		return nil
	}
	target, err := e.resolveWorkspaceTarget(t)
	if err != nil {
		return err
	}
	vo, err := e.virtual.Get(e.focusedOutput)
	if err != nil {
		return err
	}
	ws, _, err := e.workspaces.ShowOn(target, vo.ID, vo.Region)
	if err != nil {
		return err
	}
	e.resolveFullscreenConflicts()
	e.focusedWindow = ws.Focused
	e.effects.Broadcast(FocusChanged{Window: ws.Focused})
	return nil
}

func (e *Engine) cmdMoveWorkspaceToOutput(d Direction) error {
	if e.focusedOutput == 0 {
		return nil
	}
	ws := e.focusedWorkspace()
	if ws == nil {
		return nil
	}
	target, err := e.virtual.Neighbour(e.focusedOutput, d)
	if err != nil {
		return err
	}
	if displaced, ok := e.workspaces.OnOutput(target.ID); ok {
		displaced.Hide()
	}
	ws.Show(target.ID, target.Region)
	e.focusedOutput = target.ID
	e.resolveFullscreenConflicts()
	return nil
}

func (e *Engine) cmdSetLayout(kind NodeKind, orient Orientation) error {
	ws := e.focusedWorkspace()
	if ws == nil || ws.Focused == 0 {
		return nil
	}
	leaf := ws.Tree.Leaf(ws.Focused)
	if leaf == nil {
		return nil
	}
	ws.Tree.SetContainerLayout(leaf, kind, orient)
	return nil
}

func (e *Engine) cmdToggleSplit() error {
	ws := e.focusedWorkspace()
	if ws == nil || ws.Focused == 0 {
		return nil
	}
	leaf := ws.Tree.Leaf(ws.Focused)
	if leaf == nil || leaf.Parent == nil || leaf.Parent.Kind != KindSplit {
		return nil
	}
	if leaf.Parent.Orient == Horizontal {
		leaf.Parent.Orient = Vertical
	} else {
		leaf.Parent.Orient = Horizontal
	}
	return nil
}

func (e *Engine) cmdFloatToggle() error {
	ws := e.focusedWorkspace()
	if ws == nil || ws.Focused == 0 {
		return nil
	}
	id := ws.Focused
	win, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	switch win.Placement {
	case PlacementTiled:
		geo := ws.Relayout(e.registry, e.cfg.InnerGap, e.cfg.OuterGap)
		if g, ok := geo[id]; ok {
			if err := e.registry.SaveGeometry(id, g.Rect); err != nil {
				return err
			}
		}
		ws.Tree.Remove(id)
		if err := e.registry.SetPlacement(id, PlacementFloating); err != nil {
			return err
		}
		win.FloatingGeometry = ws.defaultFloatingRect(win)
		ws.Floating = append(ws.Floating, id)
	case PlacementFloating:
		for i, f := range ws.Floating {
			if f == id {
				ws.Floating = append(ws.Floating[:i], ws.Floating[i+1:]...)
				break
			}
		}
		if err := e.registry.SetPlacement(id, PlacementTiled); err != nil {
			return err
		}
		if _, err := e.registry.RestoreGeometry(id); err != nil {
			return err
		}
		var focused *Node
		for i := len(ws.History) - 1; i >= 0; i-- {
			if n := ws.Tree.Leaf(ws.History[i]); n != nil {
				focused = n
				break
			}
		}
		ws.Tree.Insert(focused, id, ws.NextSplit, ws.DefaultLayout)
	default:
		return nil
	}
	ws.FocusWindow(id)
	return nil
}

func (e *Engine) cmdResize(cmd Command) error {
	ws := e.focusedWorkspace()
	if ws == nil || ws.Focused == 0 {
		return nil
	}
	win, err := e.registry.Get(ws.Focused)
	if err != nil {
		return err
	}
	if win.Placement == PlacementFloating {
		r := win.FloatingGeometry
		amount := cmd.AmountPx
		if !cmd.Grow {
			amount = -amount
		}
		if cmd.ResizeAxis == Horizontal {
			r.W = clampSpan(r.W+amount, win.Hints.Min.W, win.Hints.Max.W)
		} else {
			r.H = clampSpan(r.H+amount, win.Hints.Min.H, win.Hints.Max.H)
		}
		if r.W < 1 {
			r.W = 1
		}
		if r.H < 1 {
			r.H = 1
		}
		win.FloatingGeometry = clampRectInto(r, ws.Area)
		return nil
	}
	ws.Relayout(e.registry, e.cfg.InnerGap, e.cfg.OuterGap)
	frac := cmd.AmountFrac
	if frac == 0 {
		span := ws.Area.W
		if cmd.ResizeAxis == Vertical {
			span = ws.Area.H
		}
		if span > 0 {
			frac = float64(cmd.AmountPx) / float64(span)
		}
	}
	if !cmd.Grow {
		frac = -frac
	}
	ws.Tree.Resize(ws.Focused, cmd.ResizeAxis, frac)
	return nil
}

func (e *Engine) cmdFullscreen(cmd Command) error {
	ws := e.focusedWorkspace()
	if ws == nil || ws.Focused == 0 {
		return nil
	}
	win, err := e.registry.Get(ws.Focused)
	if err != nil {
		return err
	}
	target := cmd.Fullscreen
	if cmd.Toggle && win.Fullscreen == target {
		target = FullscreenNone
	}
	return e.setFullscreen(ws.Focused, target)
}

func (e *Engine) cmdScratchpadMove() error {
	ws := e.focusedWorkspace()
	if ws == nil || ws.Focused == 0 {
		return nil
	}
	id := ws.Focused
	ws.RemoveWindow(id)
	if err := e.registry.SetPlacement(id, PlacementScratchpad); err != nil {
		return err
	}
	if err := e.registry.SetWorkspace(id, 0); err != nil {
		return err
	}
	e.scratchpad = append(e.scratchpad, id)
	for vo, w := range e.scratchVisible {
		if w == id {
			delete(e.scratchVisible, vo)
		}
	}
	e.focusedWindow = ws.Focused
	e.effects.Broadcast(FocusChanged{Window: ws.Focused})
	return nil
}

func (e *Engine) cmdScratchpadShow() error {
	if e.focusedOutput == 0 {
		return nil
	}
	if _, shown := e.scratchVisible[e.focusedOutput]; shown {
		delete(e.scratchVisible, e.focusedOutput)
		return nil
	}
	if len(e.scratchpad) == 0 {
		return nil
	}
	id := e.scratchpad[0]
	vo, err := e.virtual.Get(e.focusedOutput)
	if err != nil {
		return err
	}
	win, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	// Shown centred at half the output size, floating above the tiling.
	r := Rect{W: vo.Region.W / 2, H: vo.Region.H / 2}
	r.X = vo.Region.X + (vo.Region.W-r.W)/2
	r.Y = vo.Region.Y + (vo.Region.H-r.H)/2
	win.FloatingGeometry = r
	e.scratchVisible[e.focusedOutput] = id
	e.focusedWindow = id
	e.effects.Broadcast(FocusChanged{Window: id})
	return nil
}

func (e *Engine) cmdMark(name string, set bool) error {
	if e.focusedWindow == 0 {
		return nil
	}
	win, err := e.registry.Get(e.focusedWindow)
	if err != nil {
		return err
	}
	if set {
		win.SetMark(name)
	} else {
		win.UnsetMark(name)
	}
	return nil
}
