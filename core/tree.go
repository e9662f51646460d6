// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: core/tree.go
// Summary: Per-workspace container tree (splits, tabs, stacks) and geometry.
// Usage: Owned by a Workspace; mutated only through the command dispatcher.

package core

import (
	"log"
	"math"
)

// Orientation of a split container.
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	if o == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// NodeKind discriminates the container node variants.
type NodeKind int

const (
	KindLeaf NodeKind = iota
	KindSplit
	KindTabbed
	KindStacked
)

const (
	// TabBarHeight is the strip reserved at the top of tabbed and
	// stacked containers, in logical pixels.
	TabBarHeight = 30

	// MaxTreeDepth bounds container nesting.
	MaxTreeDepth = 16

	// MinRatio and MaxRatio clamp per-child split ratios during resize.
	MinRatio = 0.05
	MaxRatio = 0.95
)

// Node is one node of a workspace layout tree. Leaves hold a WindowID;
// every other kind holds at least one child.
type Node struct {
	ID     NodeID
	Kind   NodeKind
	Parent *Node

	// Split fields.
	Orient Orientation
	Ratios []float64

	// Tabbed/stacked active child.
	Active int

	Children []*Node

	// Leaf payload.
	Window WindowID

	rect    Rect
	visible bool
}

// Rect returns the node's last computed geometry.
func (n *Node) Rect() Rect { return n.rect }

// Visible reports whether the node was visible in the last layout pass.
func (n *Node) Visible() bool { return n.visible }

func (n *Node) isLeaf() bool { return n.Kind == KindLeaf }

func (n *Node) childIndex(child *Node) int {
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

func (n *Node) depth() int {
	d := 0
	for p := n.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// WindowGeometry is the computed target rectangle for one window.
type WindowGeometry struct {
	Rect    Rect
	Visible bool
}

// Tree manages the container hierarchy for one workspace.
type Tree struct {
	Root *Node
}

// NewTree creates an empty layout tree.
func NewTree() *Tree { return &Tree{} }

func newLeaf(w WindowID) *Node {
	return &Node{ID: nextNodeID(), Kind: KindLeaf, Window: w}
}

// Leaf returns the leaf node holding w, or nil.
func (t *Tree) Leaf(w WindowID) *Node {
	var found *Node
	t.walk(func(n *Node) {
		if n.isLeaf() && n.Window == w {
			found = n
		}
	})
	return found
}

func (t *Tree) walk(fn func(*Node)) {
	var rec func(*Node)
	rec = func(n *Node) {
		if n == nil {
			return
		}
		fn(n)
		for _, c := range n.Children {
			rec(c)
		}
	}
	rec(t.Root)
}

// Leaves returns the window ids of all leaves in tree order.
func (t *Tree) Leaves() []WindowID {
	var out []WindowID
	t.walk(func(n *Node) {
		if n.isLeaf() {
			out = append(out, n.Window)
		}
	})
	return out
}

// Len returns the number of leaves.
func (t *Tree) Len() int { return len(t.Leaves()) }

// Insert places w next to the focused leaf. Inside a tabbed or stacked
// container the window becomes a new activated entry; inside a split of
// the requested orientation it becomes a sibling; otherwise the focused
// leaf is wrapped in a new container. With no focused leaf the window
// becomes the root.
func (t *Tree) Insert(focused *Node, w WindowID, orient Orientation, wrapKind NodeKind) *Node {
	leaf := newLeaf(w)
	if t.Root == nil {
		t.Root = leaf
		return leaf
	}
	if focused == nil || !focused.isLeaf() {
		focused = t.firstLeaf()
		if focused == nil {
			t.Root = leaf
			return leaf
		}
	}

	parent := focused.Parent
	switch {
	case parent != nil && (parent.Kind == KindTabbed || parent.Kind == KindStacked):
		parent.Children = append(parent.Children, leaf)
		leaf.Parent = parent
		parent.Active = len(parent.Children) - 1
	case parent != nil && parent.Kind == KindSplit && (parent.Orient == orient || focused.depth() >= MaxTreeDepth):
		t.insertSibling(parent, parent.childIndex(focused), leaf)
	default:
		t.wrap(focused, leaf, orient, wrapKind)
	}
	return leaf
}

// insertSibling adds leaf after index idx in split, giving it an even
// share and scaling the existing ratios down.
func (t *Tree) insertSibling(split *Node, idx int, leaf *Node) {
	n := len(split.Children)
	scale := float64(n) / float64(n+1)
	for i := range split.Ratios {
		split.Ratios[i] *= scale
	}
	split.Children = append(split.Children, nil)
	copy(split.Children[idx+2:], split.Children[idx+1:])
	split.Children[idx+1] = leaf
	split.Ratios = append(split.Ratios, 0)
	copy(split.Ratios[idx+2:], split.Ratios[idx+1:])
	split.Ratios[idx+1] = 1 / float64(n+1)
	leaf.Parent = split
}

// wrap replaces focused with a new container holding focused and leaf.
func (t *Tree) wrap(focused, leaf *Node, orient Orientation, wrapKind NodeKind) {
	container := &Node{
		ID:     nextNodeID(),
		Kind:   wrapKind,
		Orient: orient,
	}
	if wrapKind == KindSplit {
		container.Ratios = []float64{0.5, 0.5}
	} else {
		container.Active = 1
	}
	parent := focused.Parent
	container.Children = []*Node{focused, leaf}
	container.Parent = parent
	focused.Parent = container
	leaf.Parent = container
	if parent == nil {
		t.Root = container
		return
	}
	parent.Children[parent.childIndex(focused)] = container
}

func (t *Tree) firstLeaf() *Node {
	n := t.Root
	for n != nil && !n.isLeaf() {
		n = n.Children[0]
	}
	return n
}

// Remove deletes the leaf holding w, flattening any container left with
// a single child. A root holding a single leaf is permitted.
func (t *Tree) Remove(w WindowID) bool {
	leaf := t.Leaf(w)
	if leaf == nil {
		return false
	}
	node := leaf
	for {
		parent := node.Parent
		if parent == nil {
			t.Root = nil
			return true
		}
		removeChild(parent, parent.childIndex(node))
		if len(parent.Children) > 0 {
			t.flatten(parent)
			return true
		}
		// An emptied container (a one-child wrapper) goes too.
		node = parent
	}
}

// removeChild drops child idx from a container, renormalising split
// ratios proportionally and keeping the active index valid.
func removeChild(parent *Node, idx int) {
	parent.Children = append(parent.Children[:idx], parent.Children[idx+1:]...)
	if parent.Kind == KindSplit {
		parent.Ratios = append(parent.Ratios[:idx], parent.Ratios[idx+1:]...)
		// Summing the survivors (rather than 1 minus the removed share)
		// keeps equal ratios exactly equal after renormalising.
		remaining := 0.0
		for _, r := range parent.Ratios {
			remaining += r
		}
		if len(parent.Ratios) == 0 {
			return
		}
		if remaining <= 0 {
			even := 1 / float64(len(parent.Ratios))
			for i := range parent.Ratios {
				parent.Ratios[i] = even
			}
		} else {
			for i := range parent.Ratios {
				parent.Ratios[i] /= remaining
			}
		}
	} else if parent.Active >= len(parent.Children) && len(parent.Children) > 0 {
		parent.Active = len(parent.Children) - 1
	}
}

// flatten replaces a one-child container by its child, preserving the
// grandparent's ratio slot.
func (t *Tree) flatten(container *Node) {
	if container.isLeaf() || len(container.Children) != 1 {
		return
	}
	child := container.Children[0]
	grand := container.Parent
	child.Parent = grand
	if grand == nil {
		t.Root = child
		return
	}
	grand.Children[grand.childIndex(container)] = child
	t.flatten(grand)
}

// Swap exchanges the positions of the leaves holding a and b.
func (t *Tree) Swap(a, b WindowID) bool {
	la, lb := t.Leaf(a), t.Leaf(b)
	if la == nil || lb == nil || la == lb {
		return false
	}
	pa, pb := la.Parent, lb.Parent
	if pa == nil && pb == nil {
		return false
	}
	ia, ib := -1, -1
	if pa != nil {
		ia = pa.childIndex(la)
	}
	if pb != nil {
		ib = pb.childIndex(lb)
	}
	if ia < 0 || ib < 0 {
		return false
	}
	pa.Children[ia], pb.Children[ib] = lb, la
	la.Parent, lb.Parent = pb, pa
	return true
}

// MoveInDirection moves the leaf holding w one step in direction d, using
// the nearest ancestor split of matching orientation that has a slot on
// the d side. A direct child leaf swaps with its sibling there; a deeper
// leaf is detached and inserted beside the ancestor's child on that side.
// Without such an ancestor the window moves to a new root split of that
// orientation.
func (t *Tree) MoveInDirection(w WindowID, d Direction) bool {
	leaf := t.Leaf(w)
	if leaf == nil || t.Root == leaf {
		return false
	}
	want := Vertical
	if d.Horizontal() {
		want = Horizontal
	}
	toward := 1
	if d == DirLeft || d == DirUp {
		toward = -1
	}

	child := leaf
	for parent := leaf.Parent; parent != nil; child, parent = parent, parent.Parent {
		if parent.Kind != KindSplit || parent.Orient != want {
			continue
		}
		idx := parent.childIndex(child)
		target := idx + toward
		if target >= 0 && target < len(parent.Children) {
			// Detach the leaf and swap positions with the sibling
			// subtree. If the moving child is the leaf itself the
			// subtrees swap directly.
			if child == leaf {
				parent.Children[idx], parent.Children[target] = parent.Children[target], parent.Children[idx]
				return true
			}
			// The leaf sits deeper; pull it out and insert it as a
			// sibling on the d side of its ancestor chain. The slot
			// index is captured first: detaching may flatten nodes
			// inside the chain but never reorders parent's children.
			insertAt := idx
			if toward > 0 {
				insertAt++
			}
			t.detachLeaf(leaf)
			t.insertAt(parent, insertAt, leaf)
			return true
		}
	}

	// No ancestor of the right orientation with room: re-root.
	t.detachLeaf(leaf)
	oldRoot := t.Root
	if oldRoot == nil {
		// The leaf was the only real content; it simply becomes root.
		t.Root = leaf
		return true
	}
	container := &Node{
		ID:     nextNodeID(),
		Kind:   KindSplit,
		Orient: want,
		Ratios: []float64{0.5, 0.5},
	}
	if toward < 0 {
		container.Children = []*Node{leaf, oldRoot}
	} else {
		container.Children = []*Node{oldRoot, leaf}
	}
	oldRoot.Parent = container
	leaf.Parent = container
	t.Root = container
	return true
}

// detachLeaf removes leaf from its parent without deleting it,
// collapsing emptied wrappers and flattening the parent if needed.
func (t *Tree) detachLeaf(leaf *Node) {
	leafParent := leaf.Parent
	leaf.Parent = nil
	node := leaf
	parent := leafParent
	for parent != nil {
		removeChild(parent, parent.childIndex(node))
		if len(parent.Children) > 0 {
			t.flatten(parent)
			return
		}
		node = parent
		parent = parent.Parent
	}
	t.Root = nil
}

// insertAt places node at index idx of split with an even ratio share.
func (t *Tree) insertAt(split *Node, idx int, node *Node) {
	n := len(split.Children)
	scale := float64(n) / float64(n+1)
	for i := range split.Ratios {
		split.Ratios[i] *= scale
	}
	if idx < 0 {
		idx = 0
	}
	if idx > n {
		idx = n
	}
	split.Children = append(split.Children, nil)
	copy(split.Children[idx+1:], split.Children[idx:])
	split.Children[idx] = node
	split.Ratios = append(split.Ratios, 0)
	copy(split.Ratios[idx+1:], split.Ratios[idx:])
	split.Ratios[idx] = 1 / float64(n+1)
	node.Parent = split
}

// Resize grows (positive delta) or shrinks the leaf holding w along the
// requested axis by adjusting its nearest matching split ancestor's
// ratios. Ratios clamp to [MinRatio, MaxRatio] per child.
func (t *Tree) Resize(w WindowID, axis Orientation, delta float64) bool {
	leaf := t.Leaf(w)
	if leaf == nil {
		return false
	}
	child := leaf
	for parent := leaf.Parent; parent != nil; child, parent = parent, parent.Parent {
		if parent.Kind != KindSplit || parent.Orient != axis || len(parent.Children) < 2 {
			continue
		}
		idx := parent.childIndex(child)
		other := idx + 1
		if other >= len(parent.Children) {
			other = idx - 1
		}
		return adjustRatios(parent.Ratios, idx, other, delta)
	}
	return false
}

func adjustRatios(ratios []float64, grow, shrink int, delta float64) bool {
	d := delta
	if ratios[grow]+d > MaxRatio {
		d = MaxRatio - ratios[grow]
	}
	if ratios[grow]+d < MinRatio {
		d = MinRatio - ratios[grow]
	}
	if ratios[shrink]-d < MinRatio {
		d = ratios[shrink] - MinRatio
	}
	if ratios[shrink]-d > MaxRatio {
		d = ratios[shrink] - MaxRatio
	}
	if d == 0 {
		return false
	}
	ratios[grow] += d
	ratios[shrink] -= d
	return true
}

// SetContainerLayout changes the layout of the focused leaf's parent
// container (wrapping a root leaf when necessary).
func (t *Tree) SetContainerLayout(focused *Node, kind NodeKind, orient Orientation) {
	if focused == nil {
		return
	}
	parent := focused.Parent
	if parent == nil {
		if kind == KindSplit {
			return
		}
		container := &Node{
			ID:       nextNodeID(),
			Kind:     kind,
			Children: []*Node{focused},
		}
		focused.Parent = container
		t.Root = container
		return
	}
	switch kind {
	case KindSplit:
		if parent.Kind != KindSplit {
			parent.Kind = KindSplit
			parent.Orient = orient
			even := 1 / float64(len(parent.Children))
			parent.Ratios = make([]float64, len(parent.Children))
			for i := range parent.Ratios {
				parent.Ratios[i] = even
			}
		} else {
			parent.Orient = orient
		}
	case KindTabbed, KindStacked:
		if parent.Kind == KindSplit {
			parent.Ratios = nil
			parent.Active = parent.childIndex(focused)
		}
		parent.Kind = kind
	}
}

// Activate makes the leaf holding w the active entry of every tabbed or
// stacked ancestor, so that it is visible after the next layout pass.
func (t *Tree) Activate(w WindowID) {
	leaf := t.Leaf(w)
	if leaf == nil {
		return
	}
	child := leaf
	for parent := leaf.Parent; parent != nil; child, parent = parent, parent.Parent {
		if parent.Kind == KindTabbed || parent.Kind == KindStacked {
			parent.Active = parent.childIndex(child)
		}
	}
}

// CalculateGeometry computes target rectangles for every leaf given the
// workspace area (outer gaps already removed) and the inner gap.
func (t *Tree) CalculateGeometry(area Rect, gap int) map[WindowID]WindowGeometry {
	out := make(map[WindowID]WindowGeometry)
	if t.Root == nil {
		return out
	}
	layoutNode(t.Root, area, gap, true, out)
	return out
}

func layoutNode(n *Node, area Rect, gap int, visible bool, out map[WindowID]WindowGeometry) {
	n.rect = area
	n.visible = visible
	switch n.Kind {
	case KindLeaf:
		out[n.Window] = WindowGeometry{Rect: area, Visible: visible}
	case KindSplit:
		layoutSplit(n, area, gap, visible, out)
	case KindTabbed, KindStacked:
		client := Rect{X: area.X, Y: area.Y + TabBarHeight, W: area.W, H: area.H - TabBarHeight}
		if client.H < 0 {
			client.H = 0
		}
		for i, c := range n.Children {
			if i == n.Active {
				layoutNode(c, client, gap, visible, out)
			} else {
				layoutNode(c, Rect{}, gap, false, out)
			}
		}
	}
}

// layoutSplit subdivides the area by the child ratios, spending the gap
// budget between adjacent children. Child boundaries floor so the last
// child absorbs the rounding remainder.
func layoutSplit(n *Node, area Rect, gap int, visible bool, out map[WindowID]WindowGeometry) {
	count := len(n.Children)
	if count == 0 {
		return
	}
	span := area.W
	if n.Orient == Vertical {
		span = area.H
	}
	available := span - gap*(count-1)
	if available < 0 {
		available = 0
	}
	cum := 0.0
	prev := 0
	for i, c := range n.Children {
		cum += n.Ratios[i]
		boundary := int(math.Floor(float64(available) * cum))
		if i == count-1 {
			boundary = available
		}
		extent := boundary - prev
		if extent < 0 {
			extent = 0
		}
		start := prev + gap*i
		var childArea Rect
		if n.Orient == Horizontal {
			childArea = Rect{X: area.X + start, Y: area.Y, W: extent, H: area.H}
		} else {
			childArea = Rect{X: area.X, Y: area.Y + start, W: area.W, H: extent}
		}
		layoutNode(c, childArea, gap, visible, out)
		prev = boundary
	}
}

// DirectionalFocus picks the leaf to focus when moving from w in
// direction d. Candidates must have their centre strictly on the d
// side of the source centre; the nearest wins by a weighted Manhattan
// distance between centres, with the perpendicular offset counting
// double so an aligned neighbour beats a nearer but offset one.
// Focus recency breaks exact ties.
func (t *Tree) DirectionalFocus(w WindowID, d Direction, recency []WindowID) (WindowID, bool) {
	src := t.Leaf(w)
	if src == nil {
		return 0, false
	}
	sc := src.rect.Center()

	rank := make(map[WindowID]int, len(recency))
	for i, id := range recency {
		rank[id] = i
	}

	var best *Node
	var bestDist int
	t.walk(func(n *Node) {
		if !n.isLeaf() || n == src || !n.visible {
			return
		}
		c := n.rect.Center()
		dx := c.X - sc.X
		dy := c.Y - sc.Y
		var beyond bool
		var dist int
		switch d {
		case DirLeft:
			beyond = dx < 0
			dist = absInt(dx) + 2*absInt(dy)
		case DirRight:
			beyond = dx > 0
			dist = absInt(dx) + 2*absInt(dy)
		case DirUp:
			beyond = dy < 0
			dist = absInt(dy) + 2*absInt(dx)
		case DirDown:
			beyond = dy > 0
			dist = absInt(dy) + 2*absInt(dx)
		}
		if !beyond {
			return
		}
		if best == nil || dist < bestDist ||
			(dist == bestDist && rank[n.Window] > rank[best.Window]) {
			best = n
			bestDist = dist
		}
	})
	if best == nil {
		return 0, false
	}
	return best.Window, true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Validate checks the structural tree invariants: non-leaf nodes have at
// least one child, split ratios sum to one and match the child count,
// leaves are unique, and nesting depth stays bounded.
func (t *Tree) Validate() error {
	seen := make(map[WindowID]bool)
	var rec func(n *Node, depth int) error
	rec = func(n *Node, depth int) error {
		if depth > MaxTreeDepth {
			return &InvariantError{Which: "tree-depth", Detail: "nesting exceeds bound"}
		}
		if n.isLeaf() {
			if seen[n.Window] {
				return &InvariantError{Which: "leaf-unique", Detail: "window appears twice in tree"}
			}
			seen[n.Window] = true
			return nil
		}
		if len(n.Children) == 0 {
			return &InvariantError{Which: "container-nonempty", Detail: "container has no children"}
		}
		if n.Kind == KindSplit {
			if len(n.Ratios) != len(n.Children) {
				return &InvariantError{Which: "ratios-length", Detail: "ratio count != child count"}
			}
			var sum float64
			for _, r := range n.Ratios {
				sum += r
			}
			if math.Abs(sum-1) > 1e-9 {
				log.Printf("Tree.Validate: ratio sum drift %.12f", sum)
				return &InvariantError{Which: "ratios-sum", Detail: "ratios do not sum to 1"}
			}
		}
		for _, c := range n.Children {
			if c.Parent != n {
				return &InvariantError{Which: "parent-link", Detail: "child parent pointer broken"}
			}
			if err := rec(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if t.Root == nil {
		return nil
	}
	if t.Root.Parent != nil {
		return &InvariantError{Which: "parent-link", Detail: "root has a parent"}
	}
	return rec(t.Root, 0)
}

func (t *Tree) clone() *Tree {
	out := NewTree()
	var rec func(n *Node, parent *Node) *Node
	rec = func(n *Node, parent *Node) *Node {
		if n == nil {
			return nil
		}
		c := &Node{
			ID:      n.ID,
			Kind:    n.Kind,
			Parent:  parent,
			Orient:  n.Orient,
			Active:  n.Active,
			Window:  n.Window,
			rect:    n.rect,
			visible: n.visible,
		}
		c.Ratios = append([]float64(nil), n.Ratios...)
		for _, child := range n.Children {
			c.Children = append(c.Children, rec(child, c))
		}
		return c
	}
	out.Root = rec(t.Root, nil)
	return out
}
