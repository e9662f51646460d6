// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/physical.go
// Summary: Millimetre-space display model and cursor continuity.
// Usage: Owns physical output records; pointer deltas resolve through here.

package core

import (
	"log"
	"math"
	"sort"
)

// DefaultDeviceDPI is assumed for pointer devices that do not report one.
const DefaultDeviceDPI = 1000.0

// sideEpsilon is the tolerance when classifying outputs as lying on a
// given side of another output, in millimetres.
const sideEpsilon = 0.5

// PhysicalOutput describes one real monitor: its logical-pixel region
// in the global logical space and its millimetre rectangle on the
// global physical canvas.
type PhysicalOutput struct {
	ID        PhysicalOutputID
	Name      string
	Region    Rect
	MMX, MMY  float64
	MMW, MMH  float64
	Scale     float64
	Transform int
	RefreshHz float64

	// Millimetres per logical pixel, computed on hotplug. The
	// conversion methods below do not read them; they work from the
	// millimetre and pixel extents directly.
	mmPerPxX, mmPerPxY float64
}

// MMBounds returns the output's millimetre rectangle.
func (p *PhysicalOutput) MMBounds() RectMM {
	return RectMM{X: p.MMX, Y: p.MMY, W: p.MMW, H: p.MMH}
}

// DPI returns the per-axis dots-per-inch of the output.
func (p *PhysicalOutput) DPI() (float64, float64) {
	return float64(p.Region.W) / (p.MMW / 25.4), float64(p.Region.H) / (p.MMH / 25.4)
}

// PhysicalToLogical maps a millimetre point inside the output to a
// logical-pixel position. The transform rotates the mapping inside the
// rectangle; millimetre bounds stay axis-aligned.
func (p *PhysicalOutput) PhysicalToLogical(mm PointMM) (float64, float64) {
	nx := (mm.X - p.MMX) / p.MMW
	ny := (mm.Y - p.MMY) / p.MMH
	lx, ly := applyTransform(p.Transform, nx, ny)
	return float64(p.Region.X) + lx*float64(p.Region.W),
		float64(p.Region.Y) + ly*float64(p.Region.H)
}

// LogicalToPhysical maps a logical-pixel position on this output back
// to the millimetre canvas.
func (p *PhysicalOutput) LogicalToPhysical(x, y float64) PointMM {
	lx := (x - float64(p.Region.X)) / float64(p.Region.W)
	ly := (y - float64(p.Region.Y)) / float64(p.Region.H)
	nx, ny := invertTransform(p.Transform, lx, ly)
	return PointMM{X: p.MMX + nx*p.MMW, Y: p.MMY + ny*p.MMH}
}

func applyTransform(deg int, nx, ny float64) (float64, float64) {
	switch deg {
	case 90:
		return 1 - ny, nx
	case 180:
		return 1 - nx, 1 - ny
	case 270:
		return ny, 1 - nx
	default:
		return nx, ny
	}
}

func invertTransform(deg int, lx, ly float64) (float64, float64) {
	switch deg {
	case 90:
		return ly, 1 - lx
	case 180:
		return 1 - lx, 1 - ly
	case 270:
		return 1 - ly, lx
	default:
		return lx, ly
	}
}

// MotionResult is the outcome of one pointer delta.
type MotionResult struct {
	MM         PointMM
	LogicalX   float64
	LogicalY   float64
	Output     PhysicalOutputID
	OutputName string
	// Warped is set when the cursor jumped a physical gap.
	Warped bool
}

// PhysicalLayoutManager keeps the millimetre model of every display and
// the canonical cursor position.
type PhysicalLayoutManager struct {
	outputs map[PhysicalOutputID]*PhysicalOutput
	byName  map[string]PhysicalOutputID

	cursor  PointMM
	current PhysicalOutputID
}

// NewPhysicalLayoutManager creates an empty layout.
func NewPhysicalLayoutManager() *PhysicalLayoutManager {
	return &PhysicalLayoutManager{
		outputs: make(map[PhysicalOutputID]*PhysicalOutput),
		byName:  make(map[string]PhysicalOutputID),
	}
}

// AddOutput registers a display. A display re-added under an existing
// name replaces the previous record but keeps a fresh id.
func (m *PhysicalLayoutManager) AddOutput(name string, region Rect, mmW, mmH, mmX, mmY, scale float64, transform int, refreshHz float64) *PhysicalOutput {
	if old, ok := m.byName[name]; ok {
		delete(m.outputs, old)
	}
	out := &PhysicalOutput{
		ID:        nextPhysicalOutputID(),
		Name:      name,
		Region:    region,
		MMX:       mmX,
		MMY:       mmY,
		MMW:       mmW,
		MMH:       mmH,
		Scale:     scale,
		Transform: transform,
		RefreshHz: refreshHz,
		mmPerPxX:  mmW / float64(region.W),
		mmPerPxY:  mmH / float64(region.H),
	}
	m.outputs[out.ID] = out
	m.byName[name] = out.ID
	log.Printf("PhysicalLayout: added %q %.0fx%.0fmm at (%.0f,%.0f)mm, logical %+v",
		name, mmW, mmH, mmX, mmY, region)
	if m.current == 0 {
		m.current = out.ID
		m.cursor = out.MMBounds().Center()
	}
	return out
}

// RemoveOutput unregisters a display by name.
func (m *PhysicalLayoutManager) RemoveOutput(name string) (*PhysicalOutput, error) {
	id, ok := m.byName[name]
	if !ok {
		return nil, ErrUnknownOutput
	}
	out := m.outputs[id]
	delete(m.outputs, id)
	delete(m.byName, name)
	if m.current == id {
		m.current = 0
		for _, other := range m.sorted() {
			m.current = other.ID
			m.cursor = other.MMBounds().Center()
			break
		}
	}
	return out, nil
}

// Get returns a display by id.
func (m *PhysicalLayoutManager) Get(id PhysicalOutputID) (*PhysicalOutput, error) {
	out, ok := m.outputs[id]
	if !ok {
		return nil, ErrUnknownOutput
	}
	return out, nil
}

// GetByName returns a display by connector name.
func (m *PhysicalLayoutManager) GetByName(name string) (*PhysicalOutput, error) {
	id, ok := m.byName[name]
	if !ok {
		return nil, ErrUnknownOutput
	}
	return m.outputs[id], nil
}

// Outputs returns the displays sorted by id.
func (m *PhysicalLayoutManager) Outputs() []*PhysicalOutput { return m.sorted() }

// Len returns the display count.
func (m *PhysicalLayoutManager) Len() int { return len(m.outputs) }

func (m *PhysicalLayoutManager) sorted() []*PhysicalOutput {
	out := make([]*PhysicalOutput, 0, len(m.outputs))
	for _, o := range m.outputs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CursorMM returns the canonical cursor position on the mm canvas.
func (m *PhysicalLayoutManager) CursorMM() PointMM { return m.cursor }

// CurrentOutput returns the display the cursor is on.
func (m *PhysicalLayoutManager) CurrentOutput() PhysicalOutputID { return m.current }

// SetCursorLogical places the cursor at a logical position on the named
// output, deriving the millimetre position.
func (m *PhysicalLayoutManager) SetCursorLogical(name string, x, y float64) error {
	out, err := m.GetByName(name)
	if err != nil {
		return err
	}
	m.cursor = out.LogicalToPhysical(x, y)
	m.current = out.ID
	return nil
}

// HandleMotion advances the cursor by a device delta. Same-output moves
// accept the millimetre position directly; boundary crossings either
// transition to a neighbouring display (jumping physical gaps, with the
// perpendicular fraction preserved) or clamp at the edge when no display
// lies in that direction. The same delta sequence always produces the
// same motion sequence.
func (m *PhysicalLayoutManager) HandleMotion(dx, dy, deviceDPI float64) (MotionResult, error) {
	cur, ok := m.outputs[m.current]
	if !ok {
		return MotionResult{}, ErrUnknownOutput
	}
	if deviceDPI <= 0 {
		deviceDPI = DefaultDeviceDPI
	}
	mmPerUnit := 25.4 / deviceDPI
	delta := PointMM{X: dx * mmPerUnit, Y: dy * mmPerUnit}
	candidate := PointMM{X: m.cursor.X + delta.X, Y: m.cursor.Y + delta.Y}
	bounds := cur.MMBounds()

	if bounds.Contains(candidate) {
		m.cursor = candidate
		return m.result(cur, false), nil
	}

	edge, ok := bounds.FirstCrossedEdge(m.cursor, candidate)
	if !ok {
		// Cursor already pinned on the edge; clamp and stay.
		m.cursor = clampMM(candidate, bounds)
		return m.result(cur, false), nil
	}

	if target := m.gapTarget(cur, edge); target != nil {
		m.cursor = warpPosition(cur, target, edge, m.cursor, candidate)
		m.current = target.ID
		return m.result(target, true), nil
	}

	m.cursor = clampMM(candidate, bounds)
	return m.result(cur, false), nil
}

func (m *PhysicalLayoutManager) result(out *PhysicalOutput, warped bool) MotionResult {
	lx, ly := out.PhysicalToLogical(m.cursor)
	return MotionResult{
		MM:         m.cursor,
		LogicalX:   lx,
		LogicalY:   ly,
		Output:     out.ID,
		OutputName: out.Name,
		Warped:     warped,
	}
}

// gapTarget selects the display the cursor transitions to after
// crossing the given edge: restricted to displays on that side, it must
// overlap the source on the perpendicular axis; the nearest along the
// crossing axis wins, centre distance breaking ties.
func (m *PhysicalLayoutManager) gapTarget(cur *PhysicalOutput, edge Edge) *PhysicalOutput {
	src := cur.MMBounds()
	var best *PhysicalOutput
	var bestDist, bestPerp float64
	for _, o := range m.sorted() {
		if o.ID == cur.ID {
			continue
		}
		b := o.MMBounds()
		var onSide bool
		var dist, perp float64
		switch edge {
		case EdgeRight:
			onSide = b.X >= src.Right()-sideEpsilon
			dist = b.X - src.Right()
			perp = math.Abs(b.Center().Y - src.Center().Y)
			if b.Bottom() <= src.Y || b.Y >= src.Bottom() {
				continue
			}
		case EdgeLeft:
			onSide = b.Right() <= src.X+sideEpsilon
			dist = src.X - b.Right()
			perp = math.Abs(b.Center().Y - src.Center().Y)
			if b.Bottom() <= src.Y || b.Y >= src.Bottom() {
				continue
			}
		case EdgeBottom:
			onSide = b.Y >= src.Bottom()-sideEpsilon
			dist = b.Y - src.Bottom()
			perp = math.Abs(b.Center().X - src.Center().X)
			if b.Right() <= src.X || b.X >= src.Right() {
				continue
			}
		case EdgeTop:
			onSide = b.Bottom() <= src.Y+sideEpsilon
			dist = src.Y - b.Bottom()
			perp = math.Abs(b.Center().X - src.Center().X)
			if b.Right() <= src.X || b.X >= src.Right() {
				continue
			}
		}
		if !onSide {
			continue
		}
		if best == nil || dist < bestDist || (dist == bestDist && perp < bestPerp) {
			best = o
			bestDist = dist
			bestPerp = perp
		}
	}
	return best
}

// warpPosition computes the cursor's landing point on the destination:
// snapped to the entry edge plus the residual delta left after crossing
// the gap, with the perpendicular fraction of the source preserved.
func warpPosition(src, dst *PhysicalOutput, edge Edge, from, to PointMM) PointMM {
	sb, db := src.MMBounds(), dst.MMBounds()
	if edge == EdgeLeft || edge == EdgeRight {
		var crossing, residual float64
		if edge == EdgeRight {
			crossing = sb.Right()
			residual = to.X - crossing
		} else {
			crossing = sb.X
			residual = crossing - to.X
		}
		// Perpendicular fraction at the crossing point.
		t := 0.0
		if to.X != from.X {
			t = (crossing - from.X) / (to.X - from.X)
		}
		crossY := from.Y + t*(to.Y-from.Y)
		frac := (crossY - sb.Y) / sb.H
		y := db.Y + frac*db.H
		var x float64
		if edge == EdgeRight {
			x = db.X + residual
		} else {
			x = db.Right() - residual
		}
		return clampMM(PointMM{X: x, Y: y}, db)
	}

	var crossing, residual float64
	if edge == EdgeBottom {
		crossing = sb.Bottom()
		residual = to.Y - crossing
	} else {
		crossing = sb.Y
		residual = crossing - to.Y
	}
	t := 0.0
	if to.Y != from.Y {
		t = (crossing - from.Y) / (to.Y - from.Y)
	}
	crossX := from.X + t*(to.X-from.X)
	frac := (crossX - sb.X) / sb.W
	x := db.X + frac*db.W
	var y float64
	if edge == EdgeBottom {
		y = db.Y + residual
	} else {
		y = db.Bottom() - residual
	}
	return clampMM(PointMM{X: x, Y: y}, db)
}

// clampMM pins a point just inside a half-open millimetre rectangle.
func clampMM(p PointMM, r RectMM) PointMM {
	const inset = 0.01
	if p.X < r.X {
		p.X = r.X
	}
	if p.X >= r.Right() {
		p.X = r.Right() - inset
	}
	if p.Y < r.Y {
		p.Y = r.Y
	}
	if p.Y >= r.Bottom() {
		p.Y = r.Bottom() - inset
	}
	return p
}

func (m *PhysicalLayoutManager) clone() *PhysicalLayoutManager {
	out := NewPhysicalLayoutManager()
	for id, o := range m.outputs {
		cp := *o
		out.outputs[id] = &cp
		out.byName[o.Name] = id
	}
	out.cursor = m.cursor
	out.current = m.current
	return out
}
