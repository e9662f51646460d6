// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/virtual_output.go
// Summary: Virtual output manager: splitting and merging physical outputs.
// Usage: Virtual outputs are the unit that owns a workspace.

package core

import (
	"fmt"
	"log"
	"sort"
)

// Backing ties a virtual output to a logical-pixel sub-region of one
// physical output.
type Backing struct {
	Physical PhysicalOutputID
	Region   Rect
}

// VirtualOutput is a rectangular logical region backed by one or more
// physical outputs. Two virtual outputs never overlap in logical space.
type VirtualOutput struct {
	ID       VirtualOutputID
	Name     string
	Backings []Backing

	// Region is the aggregate logical bounds.
	Region Rect

	// Active clears when a backing physical output disappears.
	Active bool
}

// VirtualOutputDecl is one `virtual_output` config declaration.
type VirtualOutputDecl struct {
	Name    string
	Outputs []string
	Region  Rect
}

// VirtualOutputManager owns the virtual output topology.
type VirtualOutputManager struct {
	outputs map[VirtualOutputID]*VirtualOutput
}

// NewVirtualOutputManager creates an empty manager.
func NewVirtualOutputManager() *VirtualOutputManager {
	return &VirtualOutputManager{outputs: make(map[VirtualOutputID]*VirtualOutput)}
}

// Get returns the virtual output with the given id.
func (m *VirtualOutputManager) Get(id VirtualOutputID) (*VirtualOutput, error) {
	vo, ok := m.outputs[id]
	if !ok {
		return nil, ErrUnknownOutput
	}
	return vo, nil
}

// All returns every virtual output sorted by id.
func (m *VirtualOutputManager) All() []*VirtualOutput {
	out := make([]*VirtualOutput, 0, len(m.outputs))
	for _, vo := range m.outputs {
		out = append(out, vo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Active returns the active virtual outputs sorted by id.
func (m *VirtualOutputManager) Active() []*VirtualOutput {
	var out []*VirtualOutput
	for _, vo := range m.All() {
		if vo.Active {
			out = append(out, vo)
		}
	}
	return out
}

// CreateDefault makes the 1:1 virtual output for a physical output.
func (m *VirtualOutputManager) CreateDefault(phys *PhysicalOutput) *VirtualOutput {
	vo := &VirtualOutput{
		ID:       nextVirtualOutputID(),
		Name:     fmt.Sprintf("virtual-%s", phys.Name),
		Backings: []Backing{{Physical: phys.ID, Region: phys.Region}},
		Region:   phys.Region,
		Active:   true,
	}
	m.outputs[vo.ID] = vo
	return vo
}

// Configure rebuilds the topology from config declarations. Invalid
// declarations are dropped with a RegionError; physical outputs left
// without any declaration get a default 1:1 virtual output. Declared
// sub-regions that only partially cover a physical output leave the
// remainder explicitly unmanaged.
func (m *VirtualOutputManager) Configure(plm *PhysicalLayoutManager, decls []VirtualOutputDecl) []error {
	m.outputs = make(map[VirtualOutputID]*VirtualOutput)
	var errs []error

	// Accepted sub-regions per physical output, for overlap checks.
	accepted := make(map[PhysicalOutputID][]Rect)
	covered := make(map[PhysicalOutputID]bool)

	for _, decl := range decls {
		backings, err := resolveDecl(plm, decl, accepted)
		if err != nil {
			errs = append(errs, err)
			log.Printf("VirtualOutput: dropping declaration %q: %v", decl.Name, err)
			continue
		}
		region := Rect{}
		for _, b := range backings {
			region = region.Union(b.Region)
			accepted[b.Physical] = append(accepted[b.Physical], b.Region)
			covered[b.Physical] = true
		}
		vo := &VirtualOutput{
			ID:       nextVirtualOutputID(),
			Name:     decl.Name,
			Backings: backings,
			Region:   region,
			Active:   true,
		}
		m.outputs[vo.ID] = vo
	}

	for _, phys := range plm.Outputs() {
		if !covered[phys.ID] {
			m.CreateDefault(phys)
		}
	}
	return errs
}

func resolveDecl(plm *PhysicalLayoutManager, decl VirtualOutputDecl, accepted map[PhysicalOutputID][]Rect) ([]Backing, error) {
	var backings []Backing
	for _, name := range decl.Outputs {
		phys, err := plm.GetByName(name)
		if err != nil {
			return nil, fmt.Errorf("virtual output %q: %w: %s", decl.Name, ErrUnknownOutput, name)
		}
		sub, ok := decl.Region.Intersect(phys.Region)
		if !ok {
			return nil, &RegionError{Kind: RegionOutOfBounds, Name: decl.Name, Output: name, Region: decl.Region}
		}
		for _, prev := range accepted[phys.ID] {
			if sub.Overlaps(prev) {
				return nil, &RegionError{Kind: RegionOverlap, Name: decl.Name, Output: name, Region: sub}
			}
		}
		backings = append(backings, Backing{Physical: phys.ID, Region: sub})
	}
	if len(backings) == 0 {
		return nil, fmt.Errorf("virtual output %q: no backing outputs", decl.Name)
	}
	// The declared region must be fully covered by the named outputs,
	// otherwise part of the virtual output would map to no display.
	var area int
	for _, b := range backings {
		area += b.Region.W * b.Region.H
	}
	if area != decl.Region.W*decl.Region.H {
		return nil, &RegionError{Kind: RegionOutOfBounds, Name: decl.Name, Output: decl.Outputs[0], Region: decl.Region}
	}
	return backings, nil
}

// AtPoint returns the active virtual output containing a logical point.
func (m *VirtualOutputManager) AtPoint(p Point) (*VirtualOutput, bool) {
	for _, vo := range m.All() {
		if vo.Active && vo.Region.Contains(p) {
			return vo, true
		}
	}
	return nil, false
}

// ForPhysical returns the active virtual outputs backed by phys, sorted.
func (m *VirtualOutputManager) ForPhysical(phys PhysicalOutputID) []*VirtualOutput {
	var out []*VirtualOutput
	for _, vo := range m.All() {
		if !vo.Active {
			continue
		}
		for _, b := range vo.Backings {
			if b.Physical == phys {
				out = append(out, vo)
				break
			}
		}
	}
	return out
}

// Deactivate marks every virtual output backed by phys inactive and
// returns them.
func (m *VirtualOutputManager) Deactivate(phys PhysicalOutputID) []*VirtualOutput {
	affected := m.ForPhysical(phys)
	for _, vo := range affected {
		vo.Active = false
		log.Printf("VirtualOutput: %q deactivated, physical output %d gone", vo.Name, phys)
	}
	return affected
}

// Neighbour returns the nearest active virtual output in direction d:
// its projection on the perpendicular axis must overlap the source and
// its near edge must lie on the requested side. Distance is measured
// between adjacent edges; perpendicular centre distance breaks ties.
func (m *VirtualOutputManager) Neighbour(id VirtualOutputID, d Direction) (*VirtualOutput, error) {
	src, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	sr := src.Region
	var best *VirtualOutput
	var bestDist, bestPerp int
	for _, vo := range m.All() {
		if vo.ID == id || !vo.Active {
			continue
		}
		r := vo.Region
		var onSide bool
		var dist, perp int
		switch d {
		case DirLeft:
			onSide = r.Right() <= sr.X
			dist = sr.X - r.Right()
			perp = absInt(r.Center().Y - sr.Center().Y)
			if r.Bottom() <= sr.Y || r.Y >= sr.Bottom() {
				continue
			}
		case DirRight:
			onSide = r.X >= sr.Right()
			dist = r.X - sr.Right()
			perp = absInt(r.Center().Y - sr.Center().Y)
			if r.Bottom() <= sr.Y || r.Y >= sr.Bottom() {
				continue
			}
		case DirUp:
			onSide = r.Bottom() <= sr.Y
			dist = sr.Y - r.Bottom()
			perp = absInt(r.Center().X - sr.Center().X)
			if r.Right() <= sr.X || r.X >= sr.Right() {
				continue
			}
		case DirDown:
			onSide = r.Y >= sr.Bottom()
			dist = r.Y - sr.Bottom()
			perp = absInt(r.Center().X - sr.Center().X)
			if r.Right() <= sr.X || r.X >= sr.Right() {
				continue
			}
		}
		if !onSide {
			continue
		}
		if best == nil || dist < bestDist || (dist == bestDist && perp < bestPerp) {
			best = vo
			bestDist = dist
			bestPerp = perp
		}
	}
	if best == nil {
		return nil, ErrNoNeighbour
	}
	return best, nil
}

// Validate checks that active virtual outputs sharing a physical output
// have disjoint logical sub-regions, and that no two active virtual
// outputs overlap in logical space.
func (m *VirtualOutputManager) Validate() error {
	active := m.Active()
	for i, a := range active {
		for _, b := range active[i+1:] {
			if a.Region.Overlaps(b.Region) {
				return &InvariantError{
					Which:  "virtual-output-overlap",
					Detail: fmt.Sprintf("%q and %q overlap in logical space", a.Name, b.Name),
				}
			}
		}
	}
	return nil
}

func (m *VirtualOutputManager) clone() *VirtualOutputManager {
	out := NewVirtualOutputManager()
	for id, vo := range m.outputs {
		cp := *vo
		cp.Backings = append([]Backing(nil), vo.Backings...)
		out.outputs[id] = &cp
	}
	return out
}
