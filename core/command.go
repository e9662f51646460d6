// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/command.go
// Summary: The user command set and its text form.
// Usage: Parsed from bindsym/IPC text; executed by the dispatcher.

package core

import (
	"fmt"
	"strconv"
	"strings"
)

// CommandKind discriminates user commands.
type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdFocusDirection
	CmdFocusWindow
	CmdFocusOutput
	CmdFocusNext
	CmdFocusPrev
	CmdMoveDirection
	CmdMoveToWorkspace
	CmdWorkspaceSwitch
	CmdMoveWorkspaceToOutput
	CmdSplitH
	CmdSplitV
	CmdLayoutTabbed
	CmdLayoutStacking
	CmdLayoutSplitH
	CmdLayoutSplitV
	CmdLayoutToggleSplit
	CmdFloatToggle
	CmdResize
	CmdFullscreen
	CmdKill
	CmdScratchpadMove
	CmdScratchpadShow
	CmdMark
	CmdUnmark
	CmdMode
	CmdExec
	CmdReload
	CmdExit
	CmdNop
)

// WorkspaceTargetKind selects how a workspace command addresses its target.
type WorkspaceTargetKind int

const (
	WorkspaceAbsolute WorkspaceTargetKind = iota
	WorkspaceNext
	WorkspacePrev
)

// WorkspaceTarget addresses a workspace by number or relative position.
type WorkspaceTarget struct {
	Kind WorkspaceTargetKind
	Num  WorkspaceID
}

// Command is one user command, the unit the dispatcher executes.
type Command struct {
	Kind CommandKind

	Dir       Direction
	Window    WindowID
	Workspace WorkspaceTarget

	// Fullscreen fields: target mode, or toggle against the current one.
	Fullscreen FullscreenMode
	Toggle     bool

	// Resize fields.
	ResizeAxis Orientation
	Grow       bool
	AmountPx   int
	AmountFrac float64

	// Name carries the mark, mode name, or exec command line.
	Name string
}

// ParseCommand parses the i3-compatible text form of a command, as used
// by bindsym and the query server.
func ParseCommand(s string) (Command, error) {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	switch parts[0] {
	case "focus":
		return parseFocus(parts[1:])
	case "move":
		return parseMove(parts[1:])
	case "workspace":
		target, err := parseWorkspaceTarget(parts[1:])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdWorkspaceSwitch, Workspace: target}, nil
	case "split":
		return parseSplit(parts[1:])
	case "layout":
		return parseLayout(parts[1:])
	case "floating":
		if len(parts) > 1 && parts[1] == "toggle" {
			return Command{Kind: CmdFloatToggle}, nil
		}
		return Command{}, fmt.Errorf("floating: expected toggle")
	case "resize":
		return parseResize(parts[1:])
	case "fullscreen":
		return parseFullscreen(parts[1:])
	case "kill":
		return Command{Kind: CmdKill}, nil
	case "scratchpad":
		if len(parts) > 1 && parts[1] == "show" {
			return Command{Kind: CmdScratchpadShow}, nil
		}
		return Command{}, fmt.Errorf("scratchpad: expected show")
	case "mark":
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("mark requires a name")
		}
		return Command{Kind: CmdMark, Name: parts[1]}, nil
	case "unmark":
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("unmark requires a name")
		}
		return Command{Kind: CmdUnmark, Name: parts[1]}, nil
	case "mode":
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("mode requires a name")
		}
		return Command{Kind: CmdMode, Name: strings.Trim(strings.Join(parts[1:], " "), `"`)}, nil
	case "exec":
		return Command{Kind: CmdExec, Name: strings.Join(parts[1:], " ")}, nil
	case "reload":
		return Command{Kind: CmdReload}, nil
	case "exit":
		return Command{Kind: CmdExit}, nil
	case "nop":
		return Command{Kind: CmdNop}, nil
	}
	return Command{}, fmt.Errorf("unknown command %q", parts[0])
}

func parseDirection(s string) (Direction, error) {
	switch s {
	case "left":
		return DirLeft, nil
	case "right":
		return DirRight, nil
	case "up":
		return DirUp, nil
	case "down":
		return DirDown, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

func parseFocus(parts []string) (Command, error) {
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("focus requires a target")
	}
	switch parts[0] {
	case "next":
		return Command{Kind: CmdFocusNext}, nil
	case "prev", "previous":
		return Command{Kind: CmdFocusPrev}, nil
	case "output":
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("focus output requires a direction")
		}
		d, err := parseDirection(parts[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdFocusOutput, Dir: d}, nil
	}
	d, err := parseDirection(parts[0])
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: CmdFocusDirection, Dir: d}, nil
}

func parseMove(parts []string) (Command, error) {
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("move requires a target")
	}
	switch parts[0] {
	case "scratchpad":
		return Command{Kind: CmdScratchpadMove}, nil
	case "container", "window":
		// "move container to workspace N"
		if len(parts) >= 4 && parts[1] == "to" && parts[2] == "workspace" {
			target, err := parseWorkspaceTarget(parts[3:])
			if err != nil {
				return Command{}, err
			}
			return Command{Kind: CmdMoveToWorkspace, Workspace: target}, nil
		}
		return Command{}, fmt.Errorf("move container: unsupported form")
	case "workspace":
		// "move workspace to output <direction>"
		if len(parts) >= 4 && parts[1] == "to" && parts[2] == "output" {
			d, err := parseDirection(parts[3])
			if err != nil {
				return Command{}, err
			}
			return Command{Kind: CmdMoveWorkspaceToOutput, Dir: d}, nil
		}
		return Command{}, fmt.Errorf("move workspace: unsupported form")
	}
	d, err := parseDirection(parts[0])
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: CmdMoveDirection, Dir: d}, nil
}

func parseWorkspaceTarget(parts []string) (WorkspaceTarget, error) {
	if len(parts) == 0 {
		return WorkspaceTarget{}, fmt.Errorf("workspace requires a target")
	}
	switch parts[0] {
	case "next", "next_on_output":
		return WorkspaceTarget{Kind: WorkspaceNext}, nil
	case "prev", "previous", "prev_on_output":
		return WorkspaceTarget{Kind: WorkspacePrev}, nil
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil || n < 1 {
		return WorkspaceTarget{}, fmt.Errorf("invalid workspace %q", parts[0])
	}
	return WorkspaceTarget{Kind: WorkspaceAbsolute, Num: WorkspaceID(n)}, nil
}

func parseSplit(parts []string) (Command, error) {
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("split requires h or v")
	}
	switch parts[0] {
	case "h", "horizontal":
		return Command{Kind: CmdSplitH}, nil
	case "v", "vertical":
		return Command{Kind: CmdSplitV}, nil
	}
	return Command{}, fmt.Errorf("unknown split %q", parts[0])
}

func parseLayout(parts []string) (Command, error) {
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("layout requires a mode")
	}
	switch parts[0] {
	case "tabbed":
		return Command{Kind: CmdLayoutTabbed}, nil
	case "stacking", "stacked":
		return Command{Kind: CmdLayoutStacking}, nil
	case "splith":
		return Command{Kind: CmdLayoutSplitH}, nil
	case "splitv":
		return Command{Kind: CmdLayoutSplitV}, nil
	case "toggle":
		return Command{Kind: CmdLayoutToggleSplit}, nil
	}
	return Command{}, fmt.Errorf("unknown layout %q", parts[0])
}

func parseResize(parts []string) (Command, error) {
	if len(parts) < 2 {
		return Command{}, fmt.Errorf("resize requires grow|shrink and width|height")
	}
	cmd := Command{Kind: CmdResize}
	switch parts[0] {
	case "grow":
		cmd.Grow = true
	case "shrink":
		cmd.Grow = false
	default:
		return Command{}, fmt.Errorf("resize: expected grow or shrink, got %q", parts[0])
	}
	switch parts[1] {
	case "width":
		cmd.ResizeAxis = Horizontal
	case "height":
		cmd.ResizeAxis = Vertical
	default:
		return Command{}, fmt.Errorf("resize: expected width or height, got %q", parts[1])
	}
	cmd.AmountPx = 10
	if len(parts) >= 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return Command{}, fmt.Errorf("resize: invalid amount %q", parts[2])
		}
		cmd.AmountPx = n
	}
	return cmd, nil
}

func parseFullscreen(parts []string) (Command, error) {
	cmd := Command{Kind: CmdFullscreen, Fullscreen: FullscreenVirtualOutput, Toggle: true}
	for _, p := range parts {
		switch p {
		case "toggle":
			cmd.Toggle = true
		case "enable":
			cmd.Toggle = false
		case "container":
			cmd.Fullscreen = FullscreenContainer
		case "virtual", "virtual_output":
			cmd.Fullscreen = FullscreenVirtualOutput
		case "physical", "physical_output", "global":
			cmd.Fullscreen = FullscreenPhysicalOutput
		case "disable", "none":
			cmd.Fullscreen = FullscreenNone
			cmd.Toggle = false
		default:
			return Command{}, fmt.Errorf("fullscreen: unknown argument %q", p)
		}
	}
	return cmd, nil
}

// Binding ties a key chord to a command.
type Binding struct {
	Keys    string
	Command Command
}

// OutputConfig carries per-output overrides from the config file.
type OutputConfig struct {
	Name        string
	Scale       float64
	Transform   int
	Position    *Point
	MMSize      *PointMM
	MMPosition  *PointMM
}

// ConfigSnapshot is the immutable configuration the engine runs with.
// A reload swaps the whole snapshot at a frame boundary.
type ConfigSnapshot struct {
	WorkspaceCount    int
	InnerGap          int
	OuterGap          int
	WorkspaceLayout   NodeKind
	FocusFollowsMouse bool
	Variables         map[string]string
	Outputs           []OutputConfig
	VirtualOutputs    []VirtualOutputDecl
	Bindings          []Binding
	Modes             map[string][]Binding
}

// DefaultConfigSnapshot returns the configuration used before any file
// is loaded.
func DefaultConfigSnapshot() ConfigSnapshot {
	return ConfigSnapshot{
		WorkspaceCount:  DefaultWorkspaceCount,
		WorkspaceLayout: KindSplit,
		Variables:       map[string]string{},
		Modes:           map[string][]Binding{},
	}
}
