// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/events.go
// Summary: Inbound events, outbound effects, and the effect dispatcher.
// Usage: Collaborators enqueue events; listeners receive emitted effects.

package core

// Event is a message from a collaborator into the engine loop.
type Event interface{ isEvent() }

// OutputAdded announces a hot-plugged physical output.
type OutputAdded struct {
	Name      string
	Region    Rect
	MMW, MMH  float64
	MMX, MMY  float64
	Scale     float64
	Transform int
	RefreshHz float64
}

// OutputRemoved announces an unplugged physical output.
type OutputRemoved struct {
	Name string
}

// PointerMotion is a relative pointer delta in device units.
type PointerMotion struct {
	DeviceID  int
	DX, DY    float64
	DeviceDPI float64
}

// PointerButton is a button press; the core only routes focus from it.
type PointerButton struct {
	DeviceID int
	Button   int
	Pressed  bool
}

// WindowMapped announces a new client surface.
type WindowMapped struct {
	Hints SizeHints
}

// WindowUnmapped announces a destroyed client surface.
type WindowUnmapped struct {
	ID WindowID
}

// CommandEvent wraps a user command.
type CommandEvent struct {
	Command Command
}

// ConfigReload carries a freshly-parsed config snapshot.
type ConfigReload struct {
	Snapshot ConfigSnapshot
}

func (OutputAdded) isEvent()    {}
func (OutputRemoved) isEvent()  {}
func (PointerMotion) isEvent()  {}
func (PointerButton) isEvent()  {}
func (WindowMapped) isEvent()   {}
func (WindowUnmapped) isEvent() {}
func (CommandEvent) isEvent()   {}
func (ConfigReload) isEvent()   {}

// Effect is a message from the engine to its collaborators.
type Effect interface{ isEffect() }

// SetWindowGeometry publishes a window's target rectangle.
type SetWindowGeometry struct {
	ID      WindowID
	Rect    Rect
	Visible bool
}

// SetWorkspaceVisible publishes which workspace a virtual output shows.
type SetWorkspaceVisible struct {
	Output    VirtualOutputID
	Workspace WorkspaceID
}

// CursorWarp asks the input collaborator to move the hardware cursor.
type CursorWarp struct {
	X, Y       float64
	OutputName string
}

// FocusChanged publishes the focused window; zero means none.
type FocusChanged struct {
	Window WindowID
}

func (SetWindowGeometry) isEffect()   {}
func (SetWorkspaceVisible) isEffect() {}
func (CursorWarp) isEffect()          {}
func (FocusChanged) isEffect()        {}

// EffectListener receives emitted effects.
type EffectListener interface {
	OnEffect(effect Effect)
}

// EffectDispatcher broadcasts effects to registered listeners. The
// engine loop is single-threaded, so no locking is needed.
type EffectDispatcher struct {
	listeners []EffectListener
}

// NewEffectDispatcher creates an empty dispatcher.
func NewEffectDispatcher() *EffectDispatcher {
	return &EffectDispatcher{}
}

// Subscribe adds a listener.
func (d *EffectDispatcher) Subscribe(l EffectListener) {
	d.listeners = append(d.listeners, l)
}

// Unsubscribe removes a listener.
func (d *EffectDispatcher) Unsubscribe(l EffectListener) {
	for i, existing := range d.listeners {
		if existing == l {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

// Broadcast delivers an effect to every listener in subscribe order.
func (d *EffectDispatcher) Broadcast(effect Effect) {
	for _, l := range d.listeners {
		l.OnEffect(effect)
	}
}
