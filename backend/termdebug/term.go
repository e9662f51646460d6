// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: backend/termdebug/term.go
// Summary: Interactive tcell viewer for the layout state.
// Usage: cmd/stilch --term; redraws the box rendering as state changes.

package termdebug

import (
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/stilch/stilch/core"
)

// ScreenDriver is the seam between the viewer and tcell, so tests can
// substitute a stub screen.
type ScreenDriver interface {
	Init() error
	Fini()
	Size() (int, int)
	SetStyle(style tcell.Style)
	HideCursor()
	Show()
	PollEvent() tcell.Event
	SetContent(x, y int, mainc rune, combc []rune, style tcell.Style)
}

// TcellScreenDriver adapts a tcell.Screen to the ScreenDriver interface.
type TcellScreenDriver struct {
	screen tcell.Screen
}

// NewTcellScreenDriver wraps the provided screen.
func NewTcellScreenDriver(screen tcell.Screen) *TcellScreenDriver {
	return &TcellScreenDriver{screen: screen}
}

func (d *TcellScreenDriver) Init() error          { return d.screen.Init() }
func (d *TcellScreenDriver) Fini()                { d.screen.Fini() }
func (d *TcellScreenDriver) Size() (int, int)     { return d.screen.Size() }
func (d *TcellScreenDriver) SetStyle(s tcell.Style) { d.screen.SetStyle(s) }
func (d *TcellScreenDriver) HideCursor()          { d.screen.HideCursor() }
func (d *TcellScreenDriver) Show()                { d.screen.Show() }
func (d *TcellScreenDriver) PollEvent() tcell.Event { return d.screen.PollEvent() }

func (d *TcellScreenDriver) SetContent(x, y int, mainc rune, combc []rune, style tcell.Style) {
	d.screen.SetContent(x, y, mainc, combc, style)
}

// Viewer draws the engine's layout state into a terminal. It reads
// snapshots between frames; the engine loop stays the sole mutator.
type Viewer struct {
	driver   ScreenDriver
	snapshot func() core.StateSnapshot
	quit     chan struct{}
}

// NewViewer creates a viewer over the given snapshot provider.
func NewViewer(driver ScreenDriver, snapshot func() core.StateSnapshot) *Viewer {
	return &Viewer{driver: driver, snapshot: snapshot, quit: make(chan struct{})}
}

// Run initialises the screen and redraws until q or Escape.
func (v *Viewer) Run() error {
	if err := v.driver.Init(); err != nil {
		return err
	}
	defer v.driver.Fini()
	v.driver.SetStyle(tcell.StyleDefault)
	v.driver.HideCursor()

	events := make(chan tcell.Event, 8)
	go func() {
		for {
			ev := v.driver.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-v.quit:
				return
			}
		}
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	v.draw()
	for {
		select {
		case <-v.quit:
			return nil
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				v.draw()
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Rune() == 'q' {
					return nil
				}
			}
		case <-ticker.C:
			v.draw()
		}
	}
}

// Close stops Run.
func (v *Viewer) Close() {
	select {
	case <-v.quit:
	default:
		close(v.quit)
	}
}

func (v *Viewer) draw() {
	w, h := v.driver.Size()
	if w < 4 || h < 4 {
		return
	}
	snap := v.snapshot()
	r := &Renderer{Width: w, Height: h - 1}
	lines := splitLines(r.Render(snap))
	style := tcell.StyleDefault
	for y := 0; y < h-1; y++ {
		x := 0
		var line []rune
		if y < len(lines) {
			line = []rune(lines[y])
		}
		for ; x < w; x++ {
			ch := ' '
			if x < len(line) {
				ch = line[x]
			}
			v.driver.SetContent(x, y, ch, nil, style)
		}
	}
	status := statusLine(snap)
	status = runewidth.Truncate(status, w, "…")
	sx := 0
	for _, ch := range status {
		v.driver.SetContent(sx, h-1, ch, nil, style.Reverse(true))
		sx += runewidth.RuneWidth(ch)
	}
	for ; sx < w; sx++ {
		v.driver.SetContent(sx, h-1, ' ', nil, style.Reverse(true))
	}
	v.driver.Show()
}

func statusLine(snap core.StateSnapshot) string {
	focused := "-"
	for _, w := range snap.Windows {
		if w.Focused {
			focused = w.Title
			if focused == "" {
				focused = "window"
			}
			break
		}
	}
	mode := snap.Mode
	if mode == "" {
		mode = "default"
	}
	return " stilch [" + mode + "] " + focused
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
