/*
 * milestone.go, part of goMMVT
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

// Package mmvt detects and records milestone crossings for Markovian
// milestoning with Voronoi tessellations (MMVT), and applies the boundary
// response (transmit, bounce or absorb) that keeps a trajectory in its cell.
//
// The package is driven one step at a time by an Integrator. Nothing here is
// global: every Integrator owns its scheme, detector and recorder, so several
// replicas can run side by side in the same process.
package mmvt

import (
	"fmt"
	"math"

	"github.com/rmera/goMMVT/md"
)

// MilestoneID identifies a milestone. It replaces the integer force-group
// tags used to tie a milestone to its bias force.
type MilestoneID int

// CellID identifies a cell.
type CellID int

// Outside is the region beyond a milestone that bounds only one cell.
const Outside CellID = -1

const noMilestone MilestoneID = math.MinInt32

// Side is the position of a state relative to a milestone: the sign of
// (collective variable - bound).
type Side int8

const (
	Negative   Side = -1
	OnBoundary Side = 0
	Positive   Side = 1
)

func (s Side) String() string {
	switch s {
	case Negative:
		return "negative"
	case Positive:
		return "positive"
	case OnBoundary:
		return "boundary"
	}
	return fmt.Sprintf("side(%d)", int8(s))
}

// Opposite returns the other definite side. OnBoundary stays OnBoundary.
func (s Side) Opposite() Side {
	return -s
}

// ParseSide accepts "negative"/"below" and "positive"/"above".
func ParseSide(s string) (Side, error) {
	switch s {
	case "negative", "below", "-":
		return Negative, nil
	case "positive", "above", "+":
		return Positive, nil
	}
	return OnBoundary, fmt.Errorf("mmvt: unknown side %q", s)
}

// Response is the dynamical response to a crossing of a milestone.
type Response int

const (
	// Transmissive crossings are only observed.
	Transmissive Response = iota
	// Reflective crossings are bounced back into the originating cell.
	Reflective
	// Absorbing crossings are recorded and end the trajectory. In an Elber
	// run they are the destination milestones.
	Absorbing
	// Source milestones are transmissive and mark the start of an Elber
	// first-passage trajectory: crossing one restarts it, or ends the run
	// if Params.EndOnSource is set.
	Source
)

func (r Response) String() string {
	switch r {
	case Transmissive:
		return "transmissive"
	case Reflective:
		return "reflective"
	case Absorbing:
		return "absorbing"
	case Source:
		return "source"
	}
	return fmt.Sprintf("response(%d)", int(r))
}

// ParseResponse parses the names returned by Response.String.
func ParseResponse(s string) (Response, error) {
	switch s {
	case "transmissive", "":
		return Transmissive, nil
	case "reflective":
		return Reflective, nil
	case "absorbing":
		return Absorbing, nil
	case "source":
		return Source, nil
	}
	return Transmissive, fmt.Errorf("mmvt: unknown response %q", s)
}

// CollectiveVariable is a scalar function of the system state.
type CollectiveVariable interface {
	Value(s *md.State) float64
}

// CentroidCoordinate is the mass-weighted centroid of a particle group
// along one cartesian axis.
type CentroidCoordinate struct {
	Group []int
	Axis  md.Axis
}

// Value implements CollectiveVariable.
func (c CentroidCoordinate) Value(s *md.State) float64 {
	return md.Centroid(s, c.Group, c.Axis)
}

// Milestone is a planar boundary cv = Bound. It is immutable once a Scheme
// has been built from it.
type Milestone struct {
	ID    MilestoneID
	Name  string
	Group []int
	Axis  md.Axis
	Bound float64 //nm
	// K is the force constant of the physical soft wall. It plays no part in
	// crossing detection.
	K float64
	// Inside is the side of the milestone that belongs to the cell holding
	// the soft wall. It sets the sign of the wall potential.
	Inside   Side
	Response Response
}

// CV returns the collective variable the milestone tests.
func (m *Milestone) CV() CentroidCoordinate {
	return CentroidCoordinate{Group: m.Group, Axis: m.Axis}
}

// SideOf returns the side of s with respect to m. Values within tol of the
// bound are OnBoundary.
func (m *Milestone) SideOf(s *md.State, tol float64) Side {
	return sideOf(m.CV().Value(s)-m.Bound, tol)
}

func sideOf(d, tol float64) Side {
	switch {
	case math.Abs(d) <= tol:
		return OnBoundary
	case d > 0:
		return Positive
	}
	return Negative
}

// Wall returns the soft-wall force that keeps the group on the Inside side.
func (m *Milestone) Wall() *md.SoftWall {
	//pushing towards smaller values keeps the group below (negative side)
	sign := 1.0
	if m.Inside == Positive {
		sign = -1.0
	}
	return &md.SoftWall{Group: m.Group, Axis: m.Axis, Bound: m.Bound, K: m.K, Sign: sign}
}
