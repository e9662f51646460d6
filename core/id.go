// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/id.go
// Summary: Opaque monotonically-assigned identifiers for core entities.
// Usage: Ids are handed out by the per-type allocators and never reused.

package core

import "sync/atomic"

// WindowID identifies a managed window. Zero is never a valid id.
type WindowID uint64

// VirtualOutputID identifies a virtual output. Zero is never valid.
type VirtualOutputID uint64

// PhysicalOutputID identifies a physical output. Zero is never valid.
type PhysicalOutputID uint64

// NodeID identifies a container node in a layout tree.
type NodeID uint64

// WorkspaceID indexes the fixed global workspace pool, 1..N.
// Unlike the other identifiers it is a stable index, not allocated.
type WorkspaceID int

var (
	windowIDCounter   atomic.Uint64
	virtualIDCounter  atomic.Uint64
	physicalIDCounter atomic.Uint64
	nodeIDCounter     atomic.Uint64
)

func nextWindowID() WindowID           { return WindowID(windowIDCounter.Add(1)) }
func nextVirtualOutputID() VirtualOutputID {
	return VirtualOutputID(virtualIDCounter.Add(1))
}
func nextPhysicalOutputID() PhysicalOutputID {
	return PhysicalOutputID(physicalIDCounter.Add(1))
}
func nextNodeID() NodeID { return NodeID(nodeIDCounter.Add(1)) }
