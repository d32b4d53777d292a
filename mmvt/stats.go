/*
 * stats.go, part of goMMVT
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
	"bytes"
	"fmt"
	"io"

	"github.com/google/renameio/v2"
)

// Statistics accumulates the per-cell MMVT counts from a sequence of
// bounces of one cell:
//
//	N_alpha_i    bounces off milestone i, not counting the very first bounce
//	N_i_j_alpha  transitions from the last bounced milestone i to milestone j
//	R_i_alpha    time spent since first bouncing off i before hitting another milestone
//	T_alpha      time since the first bounce
//
// It only needs the milestone and the time of each bounce, so a log replay
// gives the same numbers as the live run. A log with several run segments,
// each with its own clock, is replayed with a Restart between segments.
type Statistics struct {
	ids   []MilestoneID
	index map[MilestoneID]int

	n    []int
	nij  [][]int
	r    []float64
	t    float64
	prev int

	first      float64
	lastSwitch float64
	//T_alpha of the segments before the current one
	done float64
}

// NewStatistics returns empty statistics over the given milestones, which
// set the output order.
func NewStatistics(ids []MilestoneID) *Statistics {
	st := &Statistics{
		ids:   append([]MilestoneID(nil), ids...),
		index: make(map[MilestoneID]int, len(ids)),
		n:     make([]int, len(ids)),
		nij:   make([][]int, len(ids)),
		r:     make([]float64, len(ids)),
		prev:  -1,
	}
	for i, id := range ids {
		st.index[id] = i
		st.nij[i] = make([]int, len(ids))
	}
	return st
}

// StatisticsFor returns empty statistics over all milestones of sc.
func StatisticsFor(sc *Scheme) *Statistics {
	ids := make([]MilestoneID, sc.Len())
	for i := range ids {
		ids[i] = sc.At(i).ID
	}
	return NewStatistics(ids)
}

// Observe adds a bounce off milestone id at time t (ps).
func (st *Statistics) Observe(id MilestoneID, t float64) error {
	i, ok := st.index[id]
	if !ok {
		return fmt.Errorf("mmvt: statistics: unknown milestone %d", id)
	}
	if st.prev != -1 {
		st.n[i]++
	}
	if st.prev != i {
		if st.prev != -1 {
			st.nij[st.prev][i]++
			st.r[st.prev] += t - st.lastSwitch
		} else {
			st.first = t
		}
		st.lastSwitch = t
	}
	st.t = st.done + t - st.first
	st.prev = i
	return nil
}

// Restart begins a new segment of bounces whose times start again from
// zero. The counts and times gathered so far are kept, but no transition
// or time is accounted across the break.
func (st *Statistics) Restart() {
	st.done = st.t
	st.prev = -1
}

// N returns N_alpha for milestone id.
func (st *Statistics) N(id MilestoneID) int {
	return st.n[st.index[id]]
}

// Nij returns the number of i -> j transitions.
func (st *Statistics) Nij(i, j MilestoneID) int {
	return st.nij[st.index[i]][st.index[j]]
}

// R returns the accumulated incubation time for milestone id.
func (st *Statistics) R(id MilestoneID) float64 {
	return st.r[st.index[id]]
}

// T returns the total time since the first bounce.
func (st *Statistics) T() float64 {
	return st.t
}

// WriteTo writes the statistics in the plain "key: value" format.
func (st *Statistics) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer
	for i, id := range st.ids {
		fmt.Fprintf(&b, "N_alpha_%d: %d\n", id, st.n[i])
	}
	for i, a := range st.ids {
		for j, c := range st.ids {
			fmt.Fprintf(&b, "N_%d_%d_alpha: %d\n", a, c, st.nij[i][j])
		}
	}
	for i, id := range st.ids {
		fmt.Fprintf(&b, "R_%d_alpha: %.3f\n", id, st.r[i])
	}
	fmt.Fprintf(&b, "T_alpha: %.3f\n", st.t)
	return b.WriteTo(w)
}

// Save atomically replaces path with the current statistics.
func (st *Statistics) Save(path string) error {
	var b bytes.Buffer
	if _, err := st.WriteTo(&b); err != nil {
		return err
	}
	if err := renameio.WriteFile(path, b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("mmvt: saving statistics: %w", err)
	}
	return nil
}
