// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: backend/termdebug/ascii.go
// Summary: Renders an engine state snapshot as box-drawing text.
// Usage: Headless debug output and deterministic layout assertions.

package termdebug

import (
	"fmt"
	"strings"

	"github.com/stilch/stilch/core"
)

// Box drawing characters for the different window states.
var (
	normalBox = boxChars{'┌', '┐', '└', '┘', '─', '│'}
	focusBox  = boxChars{'╔', '╗', '╚', '╝', '═', '║'}
	floatBox  = boxChars{'╭', '╮', '╰', '╯', '─', '│'}
	fullBox   = boxChars{'┏', '┓', '┗', '┛', '━', '┃'}
)

type boxChars struct {
	tl, tr, bl, br, h, v rune
}

// Renderer scales logical space down onto a character grid.
type Renderer struct {
	Width  int
	Height int
}

// NewRenderer creates a renderer with the classic 80x24 grid.
func NewRenderer() *Renderer {
	return &Renderer{Width: 80, Height: 24}
}

// Render draws the snapshot: virtual output frames first, then every
// visible window as a labelled box.
func (r *Renderer) Render(snap core.StateSnapshot) string {
	grid := make([][]rune, r.Height)
	for y := range grid {
		grid[y] = make([]rune, r.Width)
		for x := range grid[y] {
			grid[y][x] = ' '
		}
	}

	bounds := core.Rect{}
	for _, out := range snap.Outputs {
		if out.Active {
			bounds = bounds.Union(out.Region)
		}
	}
	if bounds.Empty() {
		return renderGrid(grid)
	}
	sx := float64(r.Width) / float64(bounds.W)
	sy := float64(r.Height) / float64(bounds.H)

	scale := func(rect core.Rect) core.Rect {
		x0 := int(float64(rect.X-bounds.X) * sx)
		y0 := int(float64(rect.Y-bounds.Y) * sy)
		x1 := int(float64(rect.Right()-bounds.X) * sx)
		y1 := int(float64(rect.Bottom()-bounds.Y) * sy)
		return core.Rect{X: x0, Y: y0, W: maxInt(x1-x0, 2), H: maxInt(y1-y0, 2)}
	}

	// Output frames draw first and in light lines; window boxes paint
	// over them, fullscreen windows alone use the heavy style.
	for _, out := range snap.Outputs {
		if out.Active {
			r.drawBox(grid, scale(out.Region), normalBox, fmt.Sprintf("%s ws%d", out.Name, out.Workspace))
		}
	}
	for _, win := range snap.Windows {
		if !win.Visible {
			continue
		}
		chars := normalBox
		switch {
		case win.Fullscreen != "none":
			chars = fullBox
		case win.Focused:
			chars = focusBox
		case win.Placement != "tiled":
			chars = floatBox
		}
		label := fmt.Sprintf("%d", win.ID)
		if win.Urgent {
			label += "!"
		}
		r.drawBox(grid, scale(win.Rect), chars, label)
	}
	return renderGrid(grid)
}

func (r *Renderer) drawBox(grid [][]rune, rect core.Rect, chars boxChars, label string) {
	x0, y0 := rect.X, rect.Y
	x1, y1 := rect.Right()-1, rect.Bottom()-1
	if x0 < 0 || y0 < 0 || x1 >= r.Width || y1 >= r.Height || x1 <= x0 || y1 <= y0 {
		return
	}
	for x := x0 + 1; x < x1; x++ {
		grid[y0][x] = chars.h
		grid[y1][x] = chars.h
	}
	for y := y0 + 1; y < y1; y++ {
		grid[y][x0] = chars.v
		grid[y][x1] = chars.v
	}
	grid[y0][x0] = chars.tl
	grid[y0][x1] = chars.tr
	grid[y1][x0] = chars.bl
	grid[y1][x1] = chars.br

	for i, ch := range label {
		x := x0 + 1 + i
		if x >= x1 {
			break
		}
		grid[y0][x] = ch
	}
}

func renderGrid(grid [][]rune) string {
	var b strings.Builder
	for _, row := range grid {
		b.WriteString(strings.TrimRight(string(row), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
