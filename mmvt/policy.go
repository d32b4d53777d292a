/*
 * policy.go, part of goMMVT
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

	"github.com/rmera/goMMVT/md"
)

// BounceMode is the kinematic correction used on reflective milestones.
type BounceMode int

const (
	// BounceReverse puts every particle back where it was before the step,
	// with its pre-step velocity negated. It is applied at most once per step.
	BounceReverse BounceMode = iota
	// BounceSpecular flips the normal component of the crossing group's
	// centroid velocity and mirrors the group's overshoot back inside.
	BounceSpecular
)

func (b BounceMode) String() string {
	switch b {
	case BounceReverse:
		return "reverse"
	case BounceSpecular:
		return "specular"
	}
	return fmt.Sprintf("bounce(%d)", int(b))
}

// ParseBounceMode parses the names returned by BounceMode.String.
func ParseBounceMode(s string) (BounceMode, error) {
	switch s {
	case "reverse", "":
		return BounceReverse, nil
	case "specular":
		return BounceSpecular, nil
	}
	return BounceReverse, fmt.Errorf("mmvt: unknown bounce mode %q", s)
}

// Policy decides the state handed back to the stepper after a step with
// crossings. It may modify cur, and it must set Bounced on the crossings
// it corrected. prev is the committed state before the step.
type Policy interface {
	Respond(cs []Crossing, sc *Scheme, prev, cur *md.State) error
}

// Boundary applies each milestone's configured Response: transmissive and
// absorbing crossings leave the state alone, reflective ones are bounced
// with Mode.
type Boundary struct {
	Mode BounceMode
}

// Respond implements Policy. Crossings are handled in the order given,
// which is the detector's milestone order. A specular correction that would
// carry the state across any other milestone is replaced by a reverse for
// the whole step.
func (b Boundary) Respond(cs []Crossing, sc *Scheme, prev, cur *md.State) error {
	reversed, mirrored := false, false
	for i := range cs {
		c := &cs[i]
		if c.Response != Reflective {
			continue
		}
		switch b.Mode {
		case BounceReverse:
			if !reversed {
				reverse(prev, cur)
				reversed = true
			}
		case BounceSpecular:
			specular(sc.At(c.Index), c.To, cur)
			mirrored = true
		default:
			return fmt.Errorf("mmvt: unknown bounce mode %d", b.Mode)
		}
		c.Bounced = true
	}
	if mirrored && escaped(cs, sc, prev, cur) {
		reverse(prev, cur)
	}
	return nil
}

// escaped reports whether cur lies on an unexpected side of a milestone:
// bounced and uncrossed milestones must keep their pre-step side, the
// others must be on the side they were crossed to.
func escaped(cs []Crossing, sc *Scheme, prev, cur *md.State) bool {
	want := make([]Side, sc.Len())
	for i := range want {
		want[i] = sc.At(i).SideOf(prev, 0)
	}
	for _, c := range cs {
		if !c.Bounced {
			want[c.Index] = c.To
		}
	}
	for i, w := range want {
		if w == OnBoundary {
			continue
		}
		if got := sc.At(i).SideOf(cur, 0); got != OnBoundary && got != w {
			return true
		}
	}
	return false
}

// reverse restores the pre-step positions and negates the pre-step velocities.
func reverse(prev, cur *md.State) {
	copy(cur.Positions, prev.Positions)
	for i, v := range prev.Velocities {
		cur.Velocities[i] = md.Vec{-v[0], -v[1], -v[2]}
	}
}

// specular bounces m's group back from the `to` side of the milestone.
func specular(m *Milestone, to Side, s *md.State) {
	ax := m.Axis
	w := md.GroupWeights(s.Masses, m.Group)
	vcm := 0.0
	for i, a := range m.Group {
		vcm += w[i] * s.Velocities[a][ax]
	}
	//only an outgoing centroid velocity is flipped; the thermostat may
	//already have turned it around.
	if (to == Positive && vcm > 0) || (to == Negative && vcm < 0) {
		for _, a := range m.Group {
			s.Velocities[a][ax] -= 2 * vcm
		}
	}
	overshoot := m.CV().Value(s) - m.Bound
	if sideOf(overshoot, 0) != to {
		return
	}
	for _, a := range m.Group {
		s.Positions[a][ax] -= 2 * overshoot
	}
}
