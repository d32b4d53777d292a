/*
 * forces.go, part of goMMVT
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

package md

import (
	"fmt"
	"math"
)

// ForceField adds its forces (kJ/mol/nm) to f and returns its potential
// energy (kJ/mol). f has one entry per particle.
type ForceField interface {
	Forces(s *State, f []Vec) (float64, error)
}

// Sum is a force field made of several others.
type Sum []ForceField

// Forces implements ForceField.
func (fs Sum) Forces(s *State, f []Vec) (float64, error) {
	e := 0.0
	for _, ff := range fs {
		ei, err := ff.Forces(s, f)
		if err != nil {
			return 0, err
		}
		e += ei
	}
	return e, nil
}

// LennardJones is a single-species LJ fluid with a plain cutoff.
// If Box > 0 the minimum image convention is used in a cubic box.
type LennardJones struct {
	Sigma   float64 //nm
	Epsilon float64 //kJ/mol
	Cutoff  float64 //nm, 0 means no cutoff
	Box     float64 //nm, 0 means no periodicity
}

// Forces implements ForceField.
func (lj *LennardJones) Forces(s *State, f []Vec) (float64, error) {
	n := s.Len()
	if len(f) != n {
		return 0, fmt.Errorf("md: force buffer has %d entries for %d particles", len(f), n)
	}
	s2 := lj.Sigma * lj.Sigma
	rc2 := lj.Cutoff * lj.Cutoff
	e := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var d Vec
			r2 := 0.0
			for k := 0; k < 3; k++ {
				d[k] = s.Positions[i][k] - s.Positions[j][k]
				if lj.Box > 0 {
					d[k] -= lj.Box * math.Round(d[k]/lj.Box)
				}
				r2 += d[k] * d[k]
			}
			if lj.Cutoff > 0 && r2 > rc2 {
				continue
			}
			if r2 == 0 {
				return 0, fmt.Errorf("md: particles %d and %d overlap", i, j)
			}
			sr6 := math.Pow(s2/r2, 3)
			sr12 := sr6 * sr6
			e += 4 * lj.Epsilon * (sr12 - sr6)
			//F_i = 24 eps/r^2 (2 (s/r)^12 - (s/r)^6) r_ij
			fr := 24 * lj.Epsilon * (2*sr12 - sr6) / r2
			for k := 0; k < 3; k++ {
				f[i][k] += fr * d[k]
				f[j][k] -= fr * d[k]
			}
		}
	}
	return e, nil
}

// SoftWall is the linear bias Sign*K*(c - Bound) on the centroid c of a
// particle group. With Sign = +1 the wall pushes the group towards smaller
// values of the coordinate, with Sign = -1 towards larger ones.
type SoftWall struct {
	Group []int
	Axis  Axis
	Bound float64 //nm
	K     float64 //kJ/mol/nm
	Sign  float64
}

// Forces implements ForceField.
func (w *SoftWall) Forces(s *State, f []Vec) (float64, error) {
	for _, a := range w.Group {
		if a < 0 || a >= s.Len() {
			return 0, fmt.Errorf("md: soft wall references particle %d of %d", a, s.Len())
		}
	}
	c := Centroid(s, w.Group, w.Axis)
	weights := GroupWeights(s.Masses, w.Group)
	for i, a := range w.Group {
		f[a][w.Axis] -= w.Sign * w.K * weights[i]
	}
	return w.Sign * w.K * (c - w.Bound), nil
}
