/*
 * velocities.go, part of goMMVT
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
	"math"
	"math/rand"
)

// ScaleVelocities scales all velocities by sqrt(newT/oldT).
// Note that it is the modulus of the velocity that needs to be scaled, which
// is what a uniform scaling of the components does.
func ScaleVelocities(s *State, oldT, newT float64) {
	if oldT == newT || oldT <= 0 {
		return //no need (or no way) to scale anything.
	}
	scalefac := math.Sqrt(newT / oldT)
	for i := range s.Velocities {
		for k := 0; k < 3; k++ {
			s.Velocities[i][k] *= scalefac
		}
	}
}

// SetVelocitiesToTemperature draws Maxwell-Boltzmann velocities at
// temperature T, removes the center of mass motion and rescales the
// result so the instantaneous temperature is exactly T.
func SetVelocitiesToTemperature(s *State, T float64, rng *rand.Rand) {
	kT := Boltz * T
	var p Vec
	mtot := 0.0
	for i, m := range s.Masses {
		if m == 0 {
			s.Velocities[i] = Vec{}
			continue
		}
		sd := math.Sqrt(kT / m)
		for k := 0; k < 3; k++ {
			s.Velocities[i][k] = sd * rng.NormFloat64()
			p[k] += m * s.Velocities[i][k]
		}
		mtot += m
	}
	if mtot > 0 {
		for i, m := range s.Masses {
			if m == 0 {
				continue
			}
			for k := 0; k < 3; k++ {
				s.Velocities[i][k] -= p[k] / mtot
			}
		}
	}
	ScaleVelocities(s, s.Temperature(), T)
}
