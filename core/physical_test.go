package core

import (
	"math"
	"testing"
)

// twoGappedOutputs models two 300x200mm displays separated by a 100mm
// physical gap, both 1920x1080 logical.
func twoGappedOutputs() *PhysicalLayoutManager {
	m := NewPhysicalLayoutManager()
	m.AddOutput("A", Rect{X: 0, Y: 0, W: 1920, H: 1080}, 300, 200, 0, 0, 1, 0, 60)
	m.AddOutput("B", Rect{X: 1920, Y: 0, W: 1920, H: 1080}, 300, 200, 400, 0, 1, 0, 60)
	return m
}

// deviceDPI of 25.4 makes one device unit exactly one millimetre.
const mmDPI = 25.4

func TestMotionWithinOutput(t *testing.T) {
	m := twoGappedOutputs()
	if err := m.SetCursorLogical("A", 960, 540); err != nil {
		t.Fatal(err)
	}
	res, err := m.HandleMotion(10, 5, mmDPI)
	if err != nil {
		t.Fatal(err)
	}
	if res.Warped {
		t.Errorf("in-bounds motion must not warp")
	}
	want := PointMM{X: 160, Y: 105}
	if math.Abs(res.MM.X-want.X) > 1e-9 || math.Abs(res.MM.Y-want.Y) > 1e-9 {
		t.Errorf("mm position %+v, want %+v", res.MM, want)
	}
	if res.OutputName != "A" {
		t.Errorf("still on A, got %s", res.OutputName)
	}
}

func TestGapJump(t *testing.T) {
	// Cursor at A's mm (295,100); a 20mm rightward delta jumps the
	// 100mm physical gap: 5mm consumed inside A, 15mm after the jump.
	m := twoGappedOutputs()
	if err := m.SetCursorLogical("A", 1888, 540); err != nil {
		t.Fatal(err)
	}
	if got := m.CursorMM(); math.Abs(got.X-295) > 1e-9 || math.Abs(got.Y-100) > 1e-9 {
		t.Fatalf("setup cursor at %+v, want (295,100)", got)
	}

	res, err := m.HandleMotion(20, 0, mmDPI)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Warped {
		t.Fatalf("expected a gap jump")
	}
	if math.Abs(res.MM.X-415) > 1e-9 || math.Abs(res.MM.Y-100) > 1e-9 {
		t.Errorf("mm after jump %+v, want (415,100)", res.MM)
	}
	if res.OutputName != "B" {
		t.Errorf("landed on %s, want B", res.OutputName)
	}
	// (415-400)/300 of B's width, plus B's logical origin.
	wantX := 1920.0 + 15.0/300.0*1920.0
	if math.Abs(res.LogicalX-wantX) > 1e-6 {
		t.Errorf("logical x %.3f, want %.3f", res.LogicalX, wantX)
	}
	// Perpendicular position preserved: 50% of B's height.
	if math.Abs(res.LogicalY-540) > 1e-6 {
		t.Errorf("logical y %.3f, want 540", res.LogicalY)
	}
}

func TestGapJumpRoundTrip(t *testing.T) {
	m := twoGappedOutputs()
	if err := m.SetCursorLogical("A", 1888, 540); err != nil {
		t.Fatal(err)
	}
	res, err := m.HandleMotion(20, 0, mmDPI)
	if err != nil || !res.Warped {
		t.Fatalf("jump failed: %v", err)
	}
	back, err := m.HandleMotion(-20, 0, mmDPI)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Warped {
		t.Fatalf("expected the return jump")
	}
	if back.OutputName != "A" {
		t.Errorf("returned to %s, want A", back.OutputName)
	}
	if math.Abs(back.LogicalX-1888) > 1 || math.Abs(back.LogicalY-540) > 1 {
		t.Errorf("round trip landed at (%.2f, %.2f), want (1888, 540) within 1px",
			back.LogicalX, back.LogicalY)
	}
}

func TestMotionClampsWithoutCandidate(t *testing.T) {
	m := twoGappedOutputs()
	if err := m.SetCursorLogical("A", 960, 1070); err != nil {
		t.Fatal(err)
	}
	// Nothing lies below A: the cursor sticks at the bottom edge.
	res, err := m.HandleMotion(0, 50, mmDPI)
	if err != nil {
		t.Fatal(err)
	}
	if res.Warped {
		t.Errorf("clamp must not warp")
	}
	if res.OutputName != "A" {
		t.Errorf("still on A, got %s", res.OutputName)
	}
	if res.MM.Y >= 200 {
		t.Errorf("mm y %.3f escaped the output", res.MM.Y)
	}
}

func TestMotionDifferentDensities(t *testing.T) {
	// A high-density laptop panel next to a low-density desktop
	// monitor: crossing preserves the physical trajectory.
	m := NewPhysicalLayoutManager()
	m.AddOutput("laptop", Rect{X: 0, Y: 0, W: 1707, H: 960}, 345, 194, 0, 0, 1.5, 0, 60)
	m.AddOutput("desktop", Rect{X: 1707, Y: 0, W: 1920, H: 1080}, 476, 268, 345, 0, 1, 0, 60)

	if err := m.SetCursorLogical("laptop", 853, 480); err != nil {
		t.Fatal(err)
	}
	res, err := m.HandleMotion(200, 0, mmDPI)
	if err != nil {
		t.Fatal(err)
	}
	if res.OutputName != "desktop" {
		t.Fatalf("expected transition to desktop, still on %s", res.OutputName)
	}
	if res.LogicalX <= 1707 || res.LogicalX >= 1707+1920 {
		t.Errorf("logical x %.2f outside desktop", res.LogicalX)
	}
}

func TestDeterministicMotionSequence(t *testing.T) {
	deltas := [][2]float64{{30, 0}, {0, 40}, {-200, -10}, {500, 0}, {0, -90}, {150, 150}}
	runOnce := func() []PointMM {
		m := twoGappedOutputs()
		if err := m.SetCursorLogical("A", 960, 540); err != nil {
			t.Fatal(err)
		}
		var out []PointMM
		for _, d := range deltas {
			res, err := m.HandleMotion(d[0], d[1], mmDPI)
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, res.MM)
		}
		return out
	}
	a, b := runOnce(), runOnce()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("step %d diverged: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestTransformRotatesLogicalMapping(t *testing.T) {
	// A portrait-rotated display: mm bounds stay axis-aligned while
	// the logical mapping rotates inside them.
	p := &PhysicalOutput{
		Name:      "rot",
		Region:    Rect{X: 0, Y: 0, W: 1080, H: 1920},
		MMW:       476,
		MMH:       268,
		Transform: 90,
	}
	lx, ly := p.PhysicalToLogical(PointMM{X: 0, Y: 0})
	if math.Abs(lx-1080) > 1e-9 || math.Abs(ly) > 1e-9 {
		t.Errorf("mm origin maps to (%.1f, %.1f), want (1080, 0)", lx, ly)
	}
	back := p.LogicalToPhysical(lx, ly)
	if math.Abs(back.X) > 1e-9 || math.Abs(back.Y) > 1e-9 {
		t.Errorf("inverse mapping drifted: %+v", back)
	}
}

func TestDPIDerivation(t *testing.T) {
	p := &PhysicalOutput{Region: Rect{W: 1920, H: 1080}, MMW: 476, MMH: 268}
	dx, dy := p.DPI()
	if math.Abs(dx-1920/(476/25.4)) > 1e-9 {
		t.Errorf("dpi x %.3f", dx)
	}
	if math.Abs(dy-1080/(268/25.4)) > 1e-9 {
		t.Errorf("dpi y %.3f", dy)
	}
}
