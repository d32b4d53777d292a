/*
 * detector.go, part of goMMVT
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

	"github.com/rs/zerolog"

	"github.com/rmera/goMMVT/md"
)

// Crossing is a detected change of side of one milestone between two
// consecutive committed states. It is created by the Detector and handed on
// right away; nothing keeps it after it is recorded.
type Crossing struct {
	Milestone MilestoneID
	Index     int //detection-order index of the milestone in the scheme
	From, To  Side
	//Source is the cell on the From side, Destination the one on the To side.
	Source      CellID
	Destination CellID
	Step        int64
	Time        float64 //ps
	Response    Response
	Bounced     bool
}

// DetectorOptions tunes the crossing detector.
type DetectorOptions struct {
	// Tolerance is the half-width (nm) of the band around a bound where a
	// value counts as OnBoundary.
	Tolerance float64
	// WarnAfter is the number of consecutive OnBoundary steps after which a
	// warning is logged. 0 disables the warning.
	WarnAfter int
	Logger    zerolog.Logger
}

// DefaultWarnAfter is the default WarnAfter.
const DefaultWarnAfter = 100

// Detector keeps the last known side of every milestone (the MilestoneState)
// and turns side changes into Crossings. Only Commit changes that state.
type Detector struct {
	scheme    *Scheme
	tol       float64
	warnAfter int
	log       zerolog.Logger

	sides   []Side //committed sides, OnBoundary only while unresolved since start
	pending  []int  //consecutive OnBoundary steps per milestone
	scratch  []Side
	deferred []int
}

// NewDetector evaluates the starting sides of all milestones on s.
// A milestone that starts exactly on its bound stays unresolved until the
// first step puts it on a definite side; that first side produces no event.
func NewDetector(sc *Scheme, s *md.State, opts DetectorOptions) (*Detector, error) {
	if opts.Tolerance < 0 {
		return nil, paramErr("negative boundary tolerance %g", opts.Tolerance)
	}
	for i := 0; i < sc.Len(); i++ {
		m := sc.At(i)
		for _, a := range m.Group {
			if a >= s.Len() {
				return nil, milestoneErr(m.ID, "particle %d does not exist (system has %d)", a, s.Len())
			}
		}
	}
	d := &Detector{
		scheme:    sc,
		tol:       opts.Tolerance,
		warnAfter: opts.WarnAfter,
		log:       opts.Logger,
		sides:     make([]Side, sc.Len()),
		pending:   make([]int, sc.Len()),
		scratch:   make([]Side, sc.Len()),
	}
	d.evaluate(s, d.sides)
	return d, nil
}

// evaluate computes the side of every milestone, in scheme order.
func (d *Detector) evaluate(s *md.State, out []Side) {
	for i := range out {
		out[i] = d.scheme.At(i).SideOf(s, d.tol)
	}
}

// Observe compares s against the committed sides and returns one Crossing
// per milestone whose definite side changed, in milestone order. It does not
// change the detector: call Commit once the realized state is known.
func (d *Detector) Observe(s *md.State) []Crossing {
	d.evaluate(s, d.scratch)
	var cs []Crossing
	for i, now := range d.scratch {
		prev := d.sides[i]
		if now == OnBoundary || prev == OnBoundary || now == prev {
			continue
		}
		m := d.scheme.At(i)
		cs = append(cs, Crossing{
			Milestone:   m.ID,
			Index:       i,
			From:        prev,
			To:          now,
			Source:      d.scheme.Neighbor(i, prev),
			Destination: d.scheme.Neighbor(i, now),
			Step:        s.Step,
			Time:        s.Time,
			Response:    m.Response,
		})
	}
	return cs
}

// Commit stores the sides of the realized state s. Milestones sitting on
// their bound keep their previous side. It returns the indexes of those
// deferred milestones (the slice is reused by the next call).
func (d *Detector) Commit(s *md.State) []int {
	d.evaluate(s, d.scratch)
	d.deferred = d.deferred[:0]
	for i, now := range d.scratch {
		if now != OnBoundary {
			d.pending[i] = 0
			d.sides[i] = now
			continue
		}
		d.pending[i]++
		d.deferred = append(d.deferred, i)
		if d.warnAfter > 0 && d.pending[i] == d.warnAfter {
			m := d.scheme.At(i)
			d.log.Warn().
				Int("milestone", int(m.ID)).
				Int("steps", d.pending[i]).
				Int64("step", s.Step).
				Msg("value has stayed on the milestone bound; the configuration may be degenerate")
		}
	}
	return d.deferred
}

// Side returns the committed side of the i-th milestone.
func (d *Detector) Side(i int) Side {
	return d.sides[i]
}

// Sides returns a copy of the committed side vector.
func (d *Detector) Sides() []Side {
	return append([]Side(nil), d.sides...)
}

// Pending returns for how many consecutive commits the i-th milestone has
// been on its bound.
func (d *Detector) Pending(i int) int {
	return d.pending[i]
}

// Unresolved returns the id of the first milestone without a definite
// committed side, and false if all are resolved.
func (d *Detector) Unresolved() (MilestoneID, bool) {
	for i, s := range d.sides {
		if s == OnBoundary {
			return d.scheme.At(i).ID, true
		}
	}
	return 0, false
}

// Cell derives the current cell from the committed sides.
func (d *Detector) Cell() (CellID, error) {
	c, err := d.scheme.CellOf(d.sides)
	if err != nil {
		return Outside, fmt.Errorf("mmvt: deriving current cell: %w", err)
	}
	return c, nil
}
