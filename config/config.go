// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/config.go
// Summary: i3/sway-compatible text configuration parser.
// Usage: Load produces the immutable snapshot the engine runs with.

package config

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/stilch/stilch/core"
)

// Error is a fatal configuration problem. The previous snapshot stays
// active when a reload fails with one.
type Error struct {
	Line   int
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config line %d: %s", e.Line, e.Reason)
}

// Load reads and parses a config file.
func Load(path string) (core.ConfigSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.ConfigSnapshot{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the i3-style directive stream. Unknown directives log a
// warning and are skipped; malformed known directives are fatal.
func Parse(r io.Reader) (core.ConfigSnapshot, error) {
	snap := core.DefaultConfigSnapshot()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	var mode string

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if fields := strings.Fields(line); fields[0] == "set" && len(fields) > 1 {
			// The name being defined is never expanded, only its value.
			line = fields[0] + " " + fields[1] + " " + substituteVariables(strings.Join(fields[2:], " "), snap.Variables)
		} else {
			line = substituteVariables(line, snap.Variables)
		}

		if mode != "" && line == "}" {
			mode = ""
			continue
		}

		parts := strings.Fields(line)
		directive := parts[0]

		var err error
		switch directive {
		case "set":
			err = parseSet(&snap, parts[1:], lineNo)
		case "output":
			err = parseOutput(&snap, parts[1:], lineNo)
		case "virtual_output":
			err = parseVirtualOutput(&snap, parts[1:], lineNo)
		case "workspace_layout":
			err = parseWorkspaceLayout(&snap, parts[1:], lineNo)
		case "gaps":
			err = parseGaps(&snap, parts[1:], lineNo)
		case "bindsym":
			err = parseBindsym(&snap, parts[1:], mode, lineNo)
		case "mode":
			mode, err = parseModeHeader(parts[1:], lineNo)
			if err == nil {
				if _, ok := snap.Modes[mode]; !ok {
					snap.Modes[mode] = nil
				}
			}
		case "focus_follows_mouse":
			err = parseYesNo(parts[1:], &snap.FocusFollowsMouse, lineNo)
		default:
			log.Printf("Config: line %d: unknown directive %q, skipping", lineNo, directive)
		}
		if err != nil {
			return core.ConfigSnapshot{}, err
		}
	}
	if err := scanner.Err(); err != nil {
		return core.ConfigSnapshot{}, err
	}
	if mode != "" {
		return core.ConfigSnapshot{}, &Error{Line: lineNo, Reason: fmt.Sprintf("unterminated mode %q", mode)}
	}
	return snap, nil
}

// substituteVariables expands $NAME references, longest name first so
// $foo2 never matches $foo.
func substituteVariables(line string, vars map[string]string) string {
	if !strings.Contains(line, "$") {
		return line
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if len(names[j]) > len(names[i]) {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	for _, name := range names {
		line = strings.ReplaceAll(line, "$"+name, vars[name])
	}
	return line
}

func parseSet(snap *core.ConfigSnapshot, parts []string, line int) error {
	if len(parts) < 2 {
		return &Error{Line: line, Reason: "set requires a variable name and value"}
	}
	name := strings.TrimPrefix(parts[0], "$")
	snap.Variables[name] = strings.Join(parts[1:], " ")
	return nil
}

func parseOutput(snap *core.ConfigSnapshot, parts []string, line int) error {
	if len(parts) < 1 {
		return &Error{Line: line, Reason: "output requires a name"}
	}
	oc := core.OutputConfig{Name: parts[0]}
	i := 1
	for i < len(parts) {
		switch parts[i] {
		case "scale":
			if i+1 >= len(parts) {
				return &Error{Line: line, Reason: "output scale requires a value"}
			}
			s, err := strconv.ParseFloat(parts[i+1], 64)
			if err != nil || s <= 0 {
				return &Error{Line: line, Reason: fmt.Sprintf("invalid scale %q", parts[i+1])}
			}
			oc.Scale = s
			i += 2
		case "transform":
			if i+1 >= len(parts) {
				return &Error{Line: line, Reason: "output transform requires a value"}
			}
			t, err := strconv.Atoi(parts[i+1])
			if err != nil || t%90 != 0 || t < 0 || t > 270 {
				return &Error{Line: line, Reason: fmt.Sprintf("invalid transform %q", parts[i+1])}
			}
			oc.Transform = t
			i += 2
		case "position":
			if i+1 >= len(parts) {
				return &Error{Line: line, Reason: "output position requires X,Y"}
			}
			x, y, err := parseIntPair(parts[i+1])
			if err != nil {
				return &Error{Line: line, Reason: fmt.Sprintf("invalid position %q", parts[i+1])}
			}
			oc.Position = &core.Point{X: x, Y: y}
			i += 2
		case "physical_size":
			if i+1 >= len(parts) {
				return &Error{Line: line, Reason: "output physical_size requires WxHmm"}
			}
			w, h, err := parseMMPair(parts[i+1], "x")
			if err != nil {
				return &Error{Line: line, Reason: fmt.Sprintf("invalid physical_size %q", parts[i+1])}
			}
			oc.MMSize = &core.PointMM{X: w, Y: h}
			i += 2
		case "physical_position":
			if i+1 >= len(parts) {
				return &Error{Line: line, Reason: "output physical_position requires X,Ymm"}
			}
			x, y, err := parseMMPair(parts[i+1], ",")
			if err != nil {
				return &Error{Line: line, Reason: fmt.Sprintf("invalid physical_position %q", parts[i+1])}
			}
			oc.MMPosition = &core.PointMM{X: x, Y: y}
			i += 2
		default:
			return &Error{Line: line, Reason: fmt.Sprintf("unknown output parameter %q", parts[i])}
		}
	}
	snap.Outputs = append(snap.Outputs, oc)
	return nil
}

func parseVirtualOutput(snap *core.ConfigSnapshot, parts []string, line int) error {
	if len(parts) < 5 || parts[1] != "outputs" || parts[3] != "region" {
		return &Error{Line: line, Reason: "expected: virtual_output NAME outputs P[,P...] region X,Y,W,H"}
	}
	decl := core.VirtualOutputDecl{
		Name:    parts[0],
		Outputs: strings.Split(parts[2], ","),
	}
	nums := strings.Split(parts[4], ",")
	if len(nums) != 4 {
		return &Error{Line: line, Reason: fmt.Sprintf("invalid region %q", parts[4])}
	}
	vals := make([]int, 4)
	for i, n := range nums {
		v, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return &Error{Line: line, Reason: fmt.Sprintf("invalid region %q", parts[4])}
		}
		vals[i] = v
	}
	decl.Region = core.Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	if decl.Region.Empty() {
		return &Error{Line: line, Reason: "virtual_output region has no area"}
	}
	snap.VirtualOutputs = append(snap.VirtualOutputs, decl)
	return nil
}

func parseWorkspaceLayout(snap *core.ConfigSnapshot, parts []string, line int) error {
	if len(parts) < 1 {
		return &Error{Line: line, Reason: "workspace_layout requires a value"}
	}
	switch parts[0] {
	case "default":
		snap.WorkspaceLayout = core.KindSplit
	case "stacking":
		snap.WorkspaceLayout = core.KindStacked
	case "tabbed":
		snap.WorkspaceLayout = core.KindTabbed
	default:
		return &Error{Line: line, Reason: fmt.Sprintf("unknown workspace_layout %q", parts[0])}
	}
	return nil
}

func parseGaps(snap *core.ConfigSnapshot, parts []string, line int) error {
	if len(parts) < 2 {
		return &Error{Line: line, Reason: "gaps requires inner|outer and a value"}
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 0 {
		return &Error{Line: line, Reason: fmt.Sprintf("invalid gap %q", parts[1])}
	}
	switch parts[0] {
	case "inner":
		snap.InnerGap = n
	case "outer":
		snap.OuterGap = n
	default:
		return &Error{Line: line, Reason: fmt.Sprintf("unknown gap kind %q", parts[0])}
	}
	return nil
}

func parseBindsym(snap *core.ConfigSnapshot, parts []string, mode string, line int) error {
	if len(parts) < 2 {
		return &Error{Line: line, Reason: "bindsym requires a key combination and a command"}
	}
	cmd, err := core.ParseCommand(strings.Join(parts[1:], " "))
	if err != nil {
		return &Error{Line: line, Reason: err.Error()}
	}
	binding := core.Binding{Keys: parts[0], Command: cmd}
	if mode == "" {
		snap.Bindings = append(snap.Bindings, binding)
	} else {
		snap.Modes[mode] = append(snap.Modes[mode], binding)
	}
	return nil
}

func parseModeHeader(parts []string, line int) (string, error) {
	if len(parts) < 2 || parts[len(parts)-1] != "{" {
		return "", &Error{Line: line, Reason: `expected: mode "NAME" {`}
	}
	name := strings.Trim(strings.Join(parts[:len(parts)-1], " "), `"`)
	if name == "" {
		return "", &Error{Line: line, Reason: "mode requires a name"}
	}
	return name, nil
}

func parseYesNo(parts []string, dst *bool, line int) error {
	if len(parts) < 1 {
		return &Error{Line: line, Reason: "expected yes or no"}
	}
	switch parts[0] {
	case "yes":
		*dst = true
	case "no":
		*dst = false
	default:
		return &Error{Line: line, Reason: fmt.Sprintf("expected yes or no, got %q", parts[0])}
	}
	return nil
}

func parseIntPair(s string) (int, int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected two values")
	}
	a, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func parseMMPair(s, sep string) (float64, float64, error) {
	s = strings.TrimSuffix(s, "mm")
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected two values")
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
