package termdebug

import (
	"strings"
	"testing"

	"github.com/stilch/stilch/core"
)

func sampleSnapshot() core.StateSnapshot {
	return core.StateSnapshot{
		Outputs: []core.OutputSnapshot{
			{ID: 1, Name: "virtual-DP-1", Region: core.Rect{W: 1000, H: 800}, Workspace: 1, Active: true},
		},
		Windows: []core.WindowSnapshot{
			{ID: 1, Workspace: 1, Rect: core.Rect{X: 0, Y: 0, W: 495, H: 800}, Visible: true, Placement: "tiled", Fullscreen: "none"},
			{ID: 2, Workspace: 1, Rect: core.Rect{X: 505, Y: 0, W: 495, H: 800}, Visible: true, Placement: "tiled", Fullscreen: "none", Focused: true},
		},
	}
}

func TestRenderDrawsWindows(t *testing.T) {
	out := NewRenderer().Render(sampleSnapshot())
	if !strings.Contains(out, "1") || !strings.Contains(out, "2") {
		t.Errorf("window labels missing:\n%s", out)
	}
	// The focused window draws with double-line borders.
	if !strings.ContainsRune(out, '╔') {
		t.Errorf("focused border missing:\n%s", out)
	}
	if !strings.ContainsRune(out, '┌') {
		t.Errorf("normal border missing:\n%s", out)
	}
}

func TestRenderDeterministic(t *testing.T) {
	snap := sampleSnapshot()
	a := NewRenderer().Render(snap)
	b := NewRenderer().Render(snap)
	if a != b {
		t.Errorf("render must be deterministic")
	}
}

func TestRenderSkipsInvisibleWindows(t *testing.T) {
	snap := sampleSnapshot()
	snap.Windows[0].Visible = false
	snap.Windows[0].Rect = core.Rect{}
	out := NewRenderer().Render(snap)
	lines := strings.Split(out, "\n")
	for _, line := range lines {
		if strings.Contains(line, "┌1") {
			t.Errorf("invisible window rendered:\n%s", out)
		}
	}
}

func TestRenderEmptySnapshot(t *testing.T) {
	out := NewRenderer().Render(core.StateSnapshot{})
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			t.Errorf("empty snapshot should render blank, got %q", line)
		}
	}
}

func TestRenderFullscreenUsesHeavyBorder(t *testing.T) {
	snap := sampleSnapshot()
	snap.Windows[1].Fullscreen = "virtual_output"
	snap.Windows[1].Rect = core.Rect{W: 1000, H: 800}
	out := NewRenderer().Render(snap)
	if !strings.ContainsRune(out, '┏') {
		t.Errorf("fullscreen border missing:\n%s", out)
	}
}
