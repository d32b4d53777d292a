/*
 * build.go, part of goMMVT
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

package config

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rmera/goMMVT/md"
	"github.com/rmera/goMMVT/mmvt"
	"github.com/rmera/goMMVT/record"
)

// maxPlacementTries bounds the rejection sampling of random positions.
const maxPlacementTries = 10000

func parseAxis(s string) (md.Axis, error) {
	switch s {
	case "x":
		return md.X, nil
	case "y":
		return md.Y, nil
	case "z":
		return md.Z, nil
	}
	return md.X, fmt.Errorf("%w: unknown axis %q", ErrInvalid, s)
}

// mmvtMilestones converts the milestone list.
func (c *Config) mmvtMilestones() ([]mmvt.Milestone, error) {
	ms := make([]mmvt.Milestone, len(c.Milestones))
	for i, m := range c.Milestones {
		axis, err := parseAxis(m.Axis)
		if err != nil {
			return nil, err
		}
		inside, err := mmvt.ParseSide(m.Inside)
		if err != nil {
			return nil, fmt.Errorf("%w: milestone %d: %v", ErrInvalid, m.ID, err)
		}
		resp, err := mmvt.ParseResponse(m.Response)
		if err != nil {
			return nil, fmt.Errorf("%w: milestone %d: %v", ErrInvalid, m.ID, err)
		}
		ms[i] = mmvt.Milestone{
			ID:       mmvt.MilestoneID(m.ID),
			Name:     m.Name,
			Group:    append([]int(nil), m.Group...),
			Axis:     axis,
			Bound:    m.Bound,
			K:        m.K,
			Inside:   inside,
			Response: resp,
		}
	}
	return ms, nil
}

// Scheme builds and validates the milestone graph. Without cells, the
// milestones enclose the single cell 0.
func (c *Config) Scheme() (*mmvt.Scheme, error) {
	ms, err := c.mmvtMilestones()
	if err != nil {
		return nil, err
	}
	var cells []mmvt.Cell
	if len(c.Cells) == 0 {
		cells = []mmvt.Cell{mmvt.DefaultCell(0, ms)}
	}
	for _, cc := range c.Cells {
		cell := mmvt.Cell{ID: mmvt.CellID(cc.ID)}
		for _, b := range cc.Bounds {
			side, err := mmvt.ParseSide(b.Inside)
			if err != nil {
				return nil, fmt.Errorf("%w: cell %d: %v", ErrInvalid, cc.ID, err)
			}
			cell.Bounds = append(cell.Bounds, mmvt.CellBound{Milestone: mmvt.MilestoneID(b.Milestone), Inside: side})
		}
		cells = append(cells, cell)
	}
	return mmvt.NewScheme(ms, cells)
}

// Params returns the integrator parameters.
func (c *Config) Params() (mmvt.Params, error) {
	bounce, err := mmvt.ParseBounceMode(c.Run.Bounce)
	if err != nil {
		return mmvt.Params{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return mmvt.Params{
		Temperature:     c.Run.Temperature,
		Friction:        c.Run.Friction,
		Timestep:        c.Run.Timestep,
		Seed:            c.Run.Seed,
		Tolerance:       c.Run.Tolerance,
		WarnAfter:       c.Run.WarnAfter,
		Bounce:          bounce,
		SaveStatePrefix: c.Output.SaveState,
		StatisticsFile:  c.Output.Statistics,
		EndOnSource:     c.Run.EndOnSource,
	}, nil
}

// Mode returns the crossing log mode.
func (c *Config) Mode() (record.Mode, error) {
	m, err := record.ParseMode(c.Output.Mode)
	if err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return m, nil
}

// ForceField returns the physical interactions, without milestone walls.
func (c *Config) ForceField() md.ForceField {
	return &md.LennardJones{Sigma: c.System.Sigma, Epsilon: c.System.Epsilon, Cutoff: c.System.Cutoff, Box: c.System.Box}
}

// BuildSystem returns the topology and the starting state, with velocities
// drawn from the Maxwell-Boltzmann distribution at the run temperature.
// The random numbers come from the run seed.
func (c *Config) BuildSystem() (*md.Topology, *md.State, error) {
	rng := rand.New(rand.NewSource(c.Run.Seed))
	var top *md.Topology
	var pos []md.Vec
	if c.System.Geometry != "" {
		var err error
		top, pos, err = md.ReadGeometry(c.System.Geometry)
		if err != nil {
			return nil, nil, err
		}
	} else {
		top = md.NewArgonTopology(c.System.Particles, c.System.Mass)
		pos = make([]md.Vec, c.System.Particles)
	}
	s := md.NewState(len(pos), 0)
	copy(s.Masses, top.Masses(c.System.Mass))
	copy(s.Positions, pos)
	fixed := 0
	if len(c.System.Tracked) == 3 && s.Len() > 0 {
		s.Positions[0] = md.Vec{c.System.Tracked[0], c.System.Tracked[1], c.System.Tracked[2]}
		fixed = 1
	}
	if c.System.Geometry == "" {
		if err := c.place(s, fixed, rng); err != nil {
			return nil, nil, err
		}
	}
	md.SetVelocitiesToTemperature(s, c.Run.Temperature, rng)
	return top, s, nil
}

// place puts particles fixed.. uniformly at random in the box, at least
// 0.9 sigma from every other particle.
func (c *Config) place(s *md.State, fixed int, rng *rand.Rand) error {
	edge := c.System.Box
	if edge == 0 {
		//no periodicity: use a cube with the density of a dilute gas.
		edge = math.Cbrt(float64(s.Len())) * 4 * c.System.Sigma
	}
	dmin2 := 0.81 * c.System.Sigma * c.System.Sigma
	for i := fixed; i < s.Len(); i++ {
		placed := false
		for try := 0; try < maxPlacementTries && !placed; try++ {
			p := md.Vec{edge * rng.Float64(), edge * rng.Float64(), edge * rng.Float64()}
			placed = true
			for j := 0; j < i; j++ {
				if c.dist2(p, s.Positions[j]) < dmin2 {
					placed = false
					break
				}
			}
			if placed {
				s.Positions[i] = p
			}
		}
		if !placed {
			return fmt.Errorf("%w: can't fit %d particles in the box", ErrInvalid, s.Len())
		}
	}
	return nil
}

func (c *Config) dist2(a, b md.Vec) float64 {
	r2 := 0.0
	for k := 0; k < 3; k++ {
		d := a[k] - b[k]
		if c.System.Box > 0 {
			d -= c.System.Box * math.Round(d/c.System.Box)
		}
		r2 += d * d
	}
	return r2
}
