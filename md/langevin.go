/*
 * langevin.go, part of goMMVT
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
	"math/rand"
)

// LangevinMiddle advances a State with the "middle" Langevin scheme
// (kick, half drift, Ornstein-Uhlenbeck thermostat, half drift), as in
// OpenMM's LangevinMiddleIntegrator. Particles with zero mass do not move.
//
// It does not touch State.Step or State.Time; the caller owns the clock.
type LangevinMiddle struct {
	Temperature float64 //K
	Friction    float64 //1/ps
	Field       ForceField

	rng     *rand.Rand
	f       []Vec
	energy  float64
	prevDt  float64
	vscale  float64
	noise   float64
	prevT   float64
	prevGam float64
}

// NewLangevinMiddle returns a stepper with its own random source.
func NewLangevinMiddle(temperature, friction float64, field ForceField, seed int64) *LangevinMiddle {
	return &LangevinMiddle{
		Temperature: temperature,
		Friction:    friction,
		Field:       field,
		rng:         rand.New(rand.NewSource(seed)),
		prevDt:      -1,
	}
}

// PotentialEnergy returns the potential energy computed at the beginning of
// the last step.
func (l *LangevinMiddle) PotentialEnergy() float64 {
	return l.energy
}

func (l *LangevinMiddle) params(dt float64) {
	//Only recompute when something changed, like the original kernels do.
	if dt == l.prevDt && l.Temperature == l.prevT && l.Friction == l.prevGam {
		return
	}
	kT := Boltz * l.Temperature
	l.vscale = math.Exp(-dt * l.Friction)
	l.noise = math.Sqrt(kT * (1 - l.vscale*l.vscale))
	l.prevDt, l.prevT, l.prevGam = dt, l.Temperature, l.Friction
}

// Advance performs one step of length dt (ps) in place.
func (l *LangevinMiddle) Advance(s *State, dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("md: non-positive timestep %g", dt)
	}
	n := s.Len()
	if len(l.f) != n {
		l.f = make([]Vec, n)
	}
	for i := range l.f {
		l.f[i] = Vec{}
	}
	e, err := l.Field.Forces(s, l.f)
	if err != nil {
		return err
	}
	l.energy = e
	l.params(dt)
	for i := 0; i < n; i++ {
		m := s.Masses[i]
		if m == 0 {
			continue
		}
		invm := 1 / m
		sq := math.Sqrt(invm)
		for k := 0; k < 3; k++ {
			v := s.Velocities[i][k] + l.f[i][k]*invm*dt
			x := s.Positions[i][k] + 0.5*dt*v
			v = l.vscale*v + l.noise*sq*l.rng.NormFloat64()
			x += 0.5 * dt * v
			s.Velocities[i][k] = v
			s.Positions[i][k] = x
		}
	}
	return nil
}
