// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/errors.go
// Summary: Error values visible at the core boundary.

package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownWindow is returned from commands addressing a window
	// that is not in the registry.
	ErrUnknownWindow = errors.New("unknown window")

	// ErrUnknownWorkspace is returned for workspace ids outside the pool.
	ErrUnknownWorkspace = errors.New("unknown workspace")

	// ErrUnknownOutput is returned for missing physical or virtual outputs.
	ErrUnknownOutput = errors.New("unknown output")

	// ErrNoNeighbour is returned from directional navigation when no
	// target exists. Callers treat it as a quiet no-op.
	ErrNoNeighbour = errors.New("no neighbour in direction")
)

// RegionErrorKind distinguishes virtual output declaration failures.
type RegionErrorKind int

const (
	RegionOverlap RegionErrorKind = iota
	RegionOutOfBounds
)

// RegionError reports an invalid virtual output declaration. The
// offending declaration is dropped; a physical output left with no
// accepted declaration gets a default 1:1 virtual output, while one that
// keeps another accepted declaration gets no default.
type RegionError struct {
	Kind   RegionErrorKind
	Name   string
	Output string
	Region Rect
}

func (e *RegionError) Error() string {
	switch e.Kind {
	case RegionOverlap:
		return fmt.Sprintf("virtual output %q: region %+v overlaps another declaration on %s", e.Name, e.Region, e.Output)
	default:
		return fmt.Sprintf("virtual output %q: region %+v exceeds bounds of %s", e.Name, e.Region, e.Output)
	}
}

// InvariantError reports a violated universal invariant. Fatal when the
// engine runs in strict mode; otherwise the offending command is rolled
// back and the error logged.
type InvariantError struct {
	Which  string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Which, e.Detail)
}
