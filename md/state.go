/*
 * state.go, part of goMMVT
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

// Package md contains the "ordinary" molecular dynamics pieces that the
// milestoning core drives: the particle state, a couple of simple force
// fields, the Langevin stepper, a minimizer and trajectory output.
//
// Units follow the usual MD conventions: nm, ps, amu, kJ/mol and K.
// Files read or written through goChem use Angstrom.
package md

import (
	"math"

	chem "github.com/rmera/gochem"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Boltz is the Boltzmann constant in kJ/(mol K), goChem's molar gas
// constant.
const Boltz = chem.R

// nm2A converts nanometers to Angstrom.
const nm2A = 10.0

// Vec is a cartesian 3-vector.
type Vec [3]float64

// Axis selects a cartesian component.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	}
	return "?"
}

// State is the kinematic state of the system. Step and Time are owned by
// whoever drives the stepper.
type State struct {
	Positions  []Vec     //nm
	Velocities []Vec     //nm/ps
	Masses     []float64 //amu
	Step       int64
	Time       float64 //ps
}

// NewState returns a zeroed state for n particles of the given mass.
func NewState(n int, mass float64) *State {
	s := &State{
		Positions:  make([]Vec, n),
		Velocities: make([]Vec, n),
		Masses:     make([]float64, n),
	}
	for i := range s.Masses {
		s.Masses[i] = mass
	}
	return s
}

// Len returns the number of particles.
func (s *State) Len() int {
	return len(s.Positions)
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := &State{
		Positions:  make([]Vec, len(s.Positions)),
		Velocities: make([]Vec, len(s.Velocities)),
		Masses:     make([]float64, len(s.Masses)),
		Step:       s.Step,
		Time:       s.Time,
	}
	c.CopyFrom(s)
	return c
}

// CopyFrom copies o into s, which must have the same size.
func (s *State) CopyFrom(o *State) {
	copy(s.Positions, o.Positions)
	copy(s.Velocities, o.Velocities)
	copy(s.Masses, o.Masses)
	s.Step = o.Step
	s.Time = o.Time
}

// Finite returns -1 if all positions and velocities are finite numbers,
// otherwise the index of the first particle that is not.
func (s *State) Finite() int {
	for i := range s.Positions {
		p, v := s.Positions[i], s.Velocities[i]
		for k := 0; k < 3; k++ {
			if math.IsNaN(p[k]) || math.IsInf(p[k], 0) || math.IsNaN(v[k]) || math.IsInf(v[k], 0) {
				return i
			}
		}
	}
	return -1
}

// KineticEnergy returns the kinetic energy in kJ/mol.
func (s *State) KineticEnergy() float64 {
	ke := 0.0
	for i, v := range s.Velocities {
		vv := v[:]
		ke += 0.5 * s.Masses[i] * floats.Dot(vv, vv)
	}
	return ke
}

// Temperature returns the instantaneous temperature, counting 3 degrees of
// freedom per particle with non-zero mass.
func (s *State) Temperature() float64 {
	dof := 0
	for _, m := range s.Masses {
		if m > 0 {
			dof += 3
		}
	}
	if dof == 0 {
		return 0
	}
	return 2 * s.KineticEnergy() / (float64(dof) * Boltz)
}

// Centroid returns the mass-weighted centroid of group along axis.
// If all masses in the group are zero, the plain average is used.
func Centroid(s *State, group []int, axis Axis) float64 {
	vals := make([]float64, len(group))
	w := make([]float64, len(group))
	for i, a := range group {
		vals[i] = s.Positions[a][axis]
		w[i] = s.Masses[a]
	}
	if floats.Sum(w) == 0 {
		return stat.Mean(vals, nil)
	}
	return stat.Mean(vals, w)
}

// GroupWeights returns the normalized mass weights of group, the same ones
// used by Centroid.
func GroupWeights(masses []float64, group []int) []float64 {
	w := make([]float64, len(group))
	for i, a := range group {
		w[i] = masses[a]
	}
	total := floats.Sum(w)
	if total == 0 {
		for i := range w {
			w[i] = 1 / float64(len(w))
		}
		return w
	}
	floats.Scale(1/total, w)
	return w
}
