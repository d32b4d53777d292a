/*
 * trajectory.go, part of goMMVT
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
	"os"

	chem "github.com/rmera/gochem"
	v3 "github.com/rmera/gochem/v3"
)

// ToMatrix converts positions in nm to a goChem coordinate matrix in Angstrom.
func ToMatrix(pos []Vec) (*v3.Matrix, error) {
	flat := make([]float64, 0, 3*len(pos))
	for _, p := range pos {
		flat = append(flat, p[0]*nm2A, p[1]*nm2A, p[2]*nm2A)
	}
	return v3.NewMatrix(flat)
}

// TrajectoryWriter appends multi-frame XYZ trajectories. It only consumes
// positions and knows nothing about milestones.
type TrajectoryWriter struct {
	top    *Topology
	f      *os.File
	frames int
}

// NewTrajectoryWriter opens name for writing. If fresh is true an existing
// file is truncated, otherwise frames are appended to it.
func NewTrajectoryWriter(name string, top *Topology, fresh bool) (*TrajectoryWriter, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if fresh {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(name, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("md: opening trajectory: %w", err)
	}
	return &TrajectoryWriter{top: top, f: f}, nil
}

// WriteFrame appends the current positions of s as one XYZ frame.
func (w *TrajectoryWriter) WriteFrame(s *State) error {
	if s.Len() != w.top.Len() {
		return fmt.Errorf("md: state has %d particles, topology %d", s.Len(), w.top.Len())
	}
	coords, err := ToMatrix(s.Positions)
	if err != nil {
		return err
	}
	if err := chem.XYZWrite(w.f, coords, w.top); err != nil {
		return fmt.Errorf("md: writing frame %d: %w", w.frames, err)
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written so far.
func (w *TrajectoryWriter) Frames() int {
	return w.frames
}

// Close closes the underlying file.
func (w *TrajectoryWriter) Close() error {
	return w.f.Close()
}

// WriteFinalPDB writes the positions of s to a PDB file.
func WriteFinalPDB(name string, s *State, top *Topology) error {
	coords, err := ToMatrix(s.Positions)
	if err != nil {
		return err
	}
	return chem.PDBFileWrite(name, coords, top, nil)
}
