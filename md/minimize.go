/*
 * minimize.go, part of goMMVT
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
	"sync"

	"gonum.org/v1/gonum/optimize"
)

// Minimize relaxes the positions in s by steepest descent, until the
// largest force component is below tol (kJ/mol/nm) or maxIter iterations
// are done. It returns the final potential energy. Velocities are not
// touched, and s is left unchanged if no lower energy was found.
func Minimize(ff ForceField, s *State, tol float64, maxIter int) (float64, error) {
	trial := s.Clone()
	f := make([]Vec, s.Len())
	var mu sync.Mutex
	var ferr error
	//energy evaluates ff at x and leaves the forces in f.
	energy := func(x []float64) float64 {
		for i := range trial.Positions {
			copy(trial.Positions[i][:], x[3*i:3*i+3])
			f[i] = Vec{}
		}
		e, err := ff.Forces(trial, f)
		if err != nil && ferr == nil {
			ferr = err
		}
		return e
	}
	p := optimize.Problem{
		Func: func(x []float64) float64 {
			mu.Lock()
			defer mu.Unlock()
			return energy(x)
		},
		Grad: func(grad, x []float64) {
			mu.Lock()
			defer mu.Unlock()
			energy(x)
			for i := range f {
				for k := 0; k < 3; k++ {
					grad[3*i+k] = -f[i][k]
				}
			}
		},
		Status: func() (optimize.Status, error) {
			mu.Lock()
			defer mu.Unlock()
			if ferr != nil {
				return optimize.Failure, ferr
			}
			return optimize.NotTerminated, nil
		},
	}
	x0 := make([]float64, 3*s.Len())
	for i, v := range s.Positions {
		copy(x0[3*i:3*i+3], v[:])
	}
	e0 := energy(x0)
	if ferr != nil {
		return 0, ferr
	}
	settings := &optimize.Settings{
		GradientThreshold: tol,
		MajorIterations:   maxIter,
	}
	res, err := optimize.Minimize(p, x0, settings, &optimize.GradientDescent{})
	if ferr != nil {
		return 0, ferr
	}
	//a line search that gives up still leaves the best point found.
	if res == nil {
		return 0, fmt.Errorf("md: minimizing: %w", err)
	}
	if !(res.F < e0) {
		return e0, nil
	}
	for i := range s.Positions {
		copy(s.Positions[i][:], res.X[3*i:3*i+3])
	}
	return res.F, nil
}
