/*
 * scheme.go, part of goMMVT
 *
 *
 * Copyright 2026 Raul Mera <rmera{at}usach(dot)cl>
 *
 *
 *  This program is free software; you can redistribute it and/or modify
 *  it under the terms of the GNU General Public License as published by
 *  the Free Software Foundation; either version 2 of the License, or
 *  (at your option) any later version.
 *
 *  This program is distributed in the hope that it will be useful,
 *  but WITHOUT ANY WARRANTY; without even the implied warranty of
 *  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 *  GNU General Public License for more details.
 *
 *  You should have received a copy of the GNU General Public License along
 *  with this program; if not, write to the Free Software Foundation, Inc.,
 *  51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 *
 *
 */

package mmvt

import (
	"fmt"
	"sort"

	"github.com/rmera/goMMVT/md"
)

// CellBound says that a cell lies on the Inside side of a milestone.
type CellBound struct {
	Milestone MilestoneID
	Inside    Side
}

// Cell is a region of configuration space bounded by milestones.
type Cell struct {
	ID     CellID
	Bounds []CellBound
}

// contains reports whether the (definite) sides are consistent with c.
// sides is indexed like the scheme's milestones.
func (c *Cell) contains(sides []Side, index map[MilestoneID]int) bool {
	for _, b := range c.Bounds {
		if sides[index[b.Milestone]] != b.Inside {
			return false
		}
	}
	return true
}

// DefaultCell builds the single cell enclosed by the given milestones, each
// one seen from its Inside side. This is the usual MMVT setup where a run
// samples one Voronoi cell.
func DefaultCell(id CellID, ms []Milestone) Cell {
	c := Cell{ID: id, Bounds: make([]CellBound, 0, len(ms))}
	for _, m := range ms {
		c.Bounds = append(c.Bounds, CellBound{Milestone: m.ID, Inside: m.Inside})
	}
	return c
}

// Scheme is the immutable milestone/cell graph of a run. Milestones are kept
// sorted by id, which is the order the detector works in.
type Scheme struct {
	milestones []Milestone
	index      map[MilestoneID]int
	cells      []Cell
	//neighbors[i] holds the cells on the negative and positive side of
	//milestone i.
	neighbors [][2]CellID
}

// NewScheme validates the milestone graph and builds the adjacency used by
// the detector. It never returns a partially built scheme.
func NewScheme(ms []Milestone, cells []Cell) (*Scheme, error) {
	if len(ms) == 0 {
		return nil, paramErr("no milestones defined")
	}
	if len(cells) == 0 {
		return nil, paramErr("no cells defined")
	}
	sc := &Scheme{
		milestones: make([]Milestone, len(ms)),
		index:      make(map[MilestoneID]int, len(ms)),
		cells:      make([]Cell, len(cells)),
	}
	copy(sc.milestones, ms)
	sort.SliceStable(sc.milestones, func(i, j int) bool { return sc.milestones[i].ID < sc.milestones[j].ID })
	for i := range sc.milestones {
		m := &sc.milestones[i]
		if _, dup := sc.index[m.ID]; dup {
			return nil, milestoneErr(m.ID, "defined more than once")
		}
		if err := checkMilestone(m); err != nil {
			return nil, err
		}
		//the group is copied so the caller can't mutate the scheme.
		m.Group = append([]int(nil), m.Group...)
		sc.index[m.ID] = i
	}

	for i, c := range cells {
		sc.cells[i] = Cell{ID: c.ID, Bounds: append([]CellBound(nil), c.Bounds...)}
	}
	sort.SliceStable(sc.cells, func(i, j int) bool { return sc.cells[i].ID < sc.cells[j].ID })

	refs := make([][]CellID, len(sc.milestones))
	seenCell := make(map[CellID]bool, len(cells))
	for _, c := range sc.cells {
		if c.ID < 0 {
			return nil, cellErr(c.ID, "cell ids must be non-negative")
		}
		if seenCell[c.ID] {
			return nil, cellErr(c.ID, "defined more than once")
		}
		seenCell[c.ID] = true
		if len(c.Bounds) == 0 {
			return nil, cellErr(c.ID, "has no bounding milestones")
		}
		inCell := make(map[MilestoneID]bool, len(c.Bounds))
		for _, b := range c.Bounds {
			i, ok := sc.index[b.Milestone]
			if !ok {
				return nil, cellErr(c.ID, "references unknown milestone %d", b.Milestone)
			}
			if b.Inside != Negative && b.Inside != Positive {
				return nil, cellErr(c.ID, "bound on milestone %d needs a definite side", b.Milestone)
			}
			if inCell[b.Milestone] {
				return nil, cellErr(c.ID, "lists milestone %d twice", b.Milestone)
			}
			inCell[b.Milestone] = true
			refs[i] = append(refs[i], c.ID)
		}
	}

	sc.neighbors = make([][2]CellID, len(sc.milestones))
	for i, m := range sc.milestones {
		switch len(refs[i]) {
		case 0:
			return nil, milestoneErr(m.ID, "is not referenced by any cell")
		case 1, 2:
		default:
			return nil, milestoneErr(m.ID, "is referenced by %d cells (%v), a planar boundary separates at most two", len(refs[i]), refs[i])
		}
		nb := [2]CellID{Outside, Outside}
		for _, cid := range refs[i] {
			side := sc.cellByID(cid).insideOf(m.ID)
			slot := sideSlot(side)
			if nb[slot] != Outside {
				return nil, milestoneErr(m.ID, "cells %d and %d both lie on its %s side", nb[slot], cid, side)
			}
			nb[slot] = cid
		}
		sc.neighbors[i] = nb
	}
	return sc, nil
}

func checkMilestone(m *Milestone) error {
	if len(m.Group) == 0 {
		return milestoneErr(m.ID, "empty particle group")
	}
	for _, a := range m.Group {
		if a < 0 {
			return milestoneErr(m.ID, "negative particle index %d", a)
		}
	}
	if m.Axis < md.X || m.Axis > md.Z {
		return milestoneErr(m.ID, "invalid axis %d", m.Axis)
	}
	if m.Inside != Negative && m.Inside != Positive {
		return milestoneErr(m.ID, "inside side must be negative or positive")
	}
	if m.K < 0 {
		return milestoneErr(m.ID, "negative force constant %g", m.K)
	}
	if m.Response < Transmissive || m.Response > Absorbing {
		return milestoneErr(m.ID, "invalid response %d", m.Response)
	}
	return nil
}

func sideSlot(s Side) int {
	if s == Positive {
		return 1
	}
	return 0
}

func (sc *Scheme) cellByID(id CellID) *Cell {
	for i := range sc.cells {
		if sc.cells[i].ID == id {
			return &sc.cells[i]
		}
	}
	return nil
}

func (c *Cell) insideOf(id MilestoneID) Side {
	for _, b := range c.Bounds {
		if b.Milestone == id {
			return b.Inside
		}
	}
	return OnBoundary
}

// Len returns the number of milestones.
func (sc *Scheme) Len() int {
	return len(sc.milestones)
}

// At returns the i-th milestone in detection order. The returned value must
// be treated as read-only.
func (sc *Scheme) At(i int) *Milestone {
	return &sc.milestones[i]
}

// Index returns the detection-order index of a milestone.
func (sc *Scheme) Index(id MilestoneID) (int, bool) {
	i, ok := sc.index[id]
	return i, ok
}

// Cells returns the ids of all cells, sorted.
func (sc *Scheme) Cells() []CellID {
	ids := make([]CellID, len(sc.cells))
	for i, c := range sc.cells {
		ids[i] = c.ID
	}
	return ids
}

// Neighbor returns the cell (or Outside) lying on the given side of the
// i-th milestone.
func (sc *Scheme) Neighbor(i int, side Side) CellID {
	if side == OnBoundary {
		return Outside
	}
	return sc.neighbors[i][sideSlot(side)]
}

// CellOf returns the unique cell consistent with the side vector, which is
// indexed like the milestones. Outside is returned if no cell matches.
// Sides that are not definite never match.
func (sc *Scheme) CellOf(sides []Side) (CellID, error) {
	if len(sides) != len(sc.milestones) {
		return Outside, fmt.Errorf("mmvt: %d side values for %d milestones", len(sides), len(sc.milestones))
	}
	found := Outside
	for i := range sc.cells {
		if !sc.cells[i].contains(sides, sc.index) {
			continue
		}
		if found != Outside {
			return Outside, fmt.Errorf("%w: cells %d and %d", ErrAmbiguousCell, found, sc.cells[i].ID)
		}
		found = sc.cells[i].ID
	}
	return found, nil
}

// Walls returns the soft-wall forces of all milestones with a non-zero
// force constant.
func (sc *Scheme) Walls() md.Sum {
	var walls md.Sum
	for i := range sc.milestones {
		if sc.milestones[i].K == 0 {
			continue
		}
		walls = append(walls, sc.milestones[i].Wall())
	}
	return walls
}

// String gives a short human-readable description, used by "gommvt check".
func (sc *Scheme) String() string {
	s := fmt.Sprintf("%d milestones, %d cells\n", len(sc.milestones), len(sc.cells))
	for i, m := range sc.milestones {
		s += fmt.Sprintf("  milestone %d %q: %s(group %v) = %g, %s, cells %s|%s\n",
			m.ID, m.Name, m.Axis, m.Group, m.Bound, m.Response,
			cellName(sc.neighbors[i][0]), cellName(sc.neighbors[i][1]))
	}
	return s
}

func cellName(c CellID) string {
	if c == Outside {
		return "outside"
	}
	return fmt.Sprint(int(c))
}
