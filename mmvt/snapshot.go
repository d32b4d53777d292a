/*
 * snapshot.go, part of goMMVT
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
	"os"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/rmera/goMMVT/md"
)

// Snapshot is the kinematic state saved right after a bounce, so a later
// run can be started from the milestone.
type Snapshot struct {
	Milestone  int         `yaml:"milestone"`
	Index      int64       `yaml:"index"`
	Step       int64       `yaml:"step"`
	Time       float64     `yaml:"time_ps"`
	Positions  [][]float64 `yaml:"positions_nm"`
	Velocities [][]float64 `yaml:"velocities_nm_ps"`
}

// SnapshotName returns the file name of the snapshot of the index-th event,
// a bounce off milestone id.
func SnapshotName(prefix string, index int64, id MilestoneID) string {
	return fmt.Sprintf("%s_%d_%d", prefix, index, id)
}

// SaveSnapshot writes s atomically to SnapshotName(prefix, index, id).
func SaveSnapshot(prefix string, index int64, id MilestoneID, s *md.State) (string, error) {
	snap := Snapshot{
		Milestone:  int(id),
		Index:      index,
		Step:       s.Step,
		Time:       s.Time,
		Positions:  make([][]float64, s.Len()),
		Velocities: make([][]float64, s.Len()),
	}
	for i := range s.Positions {
		p, v := s.Positions[i], s.Velocities[i]
		snap.Positions[i] = []float64{p[0], p[1], p[2]}
		snap.Velocities[i] = []float64{v[0], v[1], v[2]}
	}
	data, err := yaml.Marshal(&snap)
	if err != nil {
		return "", err
	}
	name := SnapshotName(prefix, index, id)
	if err := renameio.WriteFile(name, data, 0o644); err != nil {
		return "", fmt.Errorf("mmvt: saving state snapshot: %w", err)
	}
	return name, nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot into a State with
// the given masses.
func LoadSnapshot(name string, masses []float64) (*md.State, *Snapshot, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, nil, err
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, nil, fmt.Errorf("mmvt: parsing snapshot %s: %w", name, err)
	}
	if len(snap.Positions) != len(masses) || len(snap.Velocities) != len(masses) {
		return nil, nil, fmt.Errorf("mmvt: snapshot %s has %d particles, expected %d", name, len(snap.Positions), len(masses))
	}
	s := md.NewState(len(masses), 0)
	copy(s.Masses, masses)
	for i := range masses {
		if len(snap.Positions[i]) != 3 || len(snap.Velocities[i]) != 3 {
			return nil, nil, fmt.Errorf("mmvt: snapshot %s: particle %d is not a 3-vector", name, i)
		}
		s.Positions[i] = md.Vec{snap.Positions[i][0], snap.Positions[i][1], snap.Positions[i][2]}
		s.Velocities[i] = md.Vec{snap.Velocities[i][0], snap.Velocities[i][1], snap.Velocities[i][2]}
	}
	s.Step = snap.Step
	s.Time = snap.Time
	return s, &snap, nil
}
