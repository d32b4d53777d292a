/*
 * detector_test.go, part of goMMVT
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
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/goMMVT/md"
)

// feed runs the states through a new detector, committing each one as is,
// and returns all crossings.
func feed(t *testing.T, sc *Scheme, states []*md.State) []Crossing {
	t.Helper()
	d, err := NewDetector(sc, states[0], DetectorOptions{Tolerance: DefaultTolerance})
	require.NoError(t, err)
	var all []Crossing
	for _, s := range states[1:] {
		all = append(all, d.Observe(s)...)
		d.Commit(s)
	}
	return all
}

func walk(n int, seed int64) []*md.State {
	rng := rand.New(rand.NewSource(seed))
	states := make([]*md.State, n)
	x := 1.5
	for i := range states {
		s := oneParticle(x, 0)
		s.Step = int64(i)
		s.Time = float64(i) * 0.002
		states[i] = s
		x += 0.2 * rng.NormFloat64()
	}
	return states
}

func TestDetectorIsDeterministic(t *testing.T) {
	sc := chain(t)
	states := walk(500, 3)
	first := feed(t, sc, states)
	second := feed(t, sc, states)
	require.NotEmpty(t, first)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("replays differ (-first +second):\n%s", diff)
	}
	for _, c := range first {
		assert.NotEqual(t, c.From, c.To)
		assert.Equal(t, c.Source, sc.Neighbor(c.Index, c.From))
		assert.Equal(t, c.Destination, sc.Neighbor(c.Index, c.To))
	}
}

// Crossings of several milestones in one step come out in id order.
func TestDetectorOrder(t *testing.T) {
	sc := chain(t)
	from, to := oneParticle(0.5, 0), oneParticle(2.5, 0)
	to.Step, to.Time = 1, 0.002
	cs := feed(t, sc, []*md.State{from, to})
	require.Len(t, cs, 2)
	assert.Equal(t, MilestoneID(1), cs[0].Milestone)
	assert.Equal(t, MilestoneID(2), cs[1].Milestone)
	assert.Equal(t, CellID(0), cs[0].Source)
	assert.Equal(t, CellID(2), cs[1].Destination)
	assert.Equal(t, int64(1), cs[1].Step)
}

func TestObserveIsPure(t *testing.T) {
	sc := chain(t)
	d, err := NewDetector(sc, oneParticle(1.5, 0), DetectorOptions{})
	require.NoError(t, err)
	out := oneParticle(2.5, 0)
	assert.Len(t, d.Observe(out), 1)
	assert.Len(t, d.Observe(out), 1, "nothing is committed by Observe")
	assert.Equal(t, []Side{Positive, Negative}, d.Sides())
	d.Commit(out)
	assert.Empty(t, d.Observe(out))
	c, err := d.Cell()
	require.NoError(t, err)
	assert.Equal(t, CellID(2), c)
}

// A value sitting on the bound, with noise below the tolerance, never
// produces a crossing.
func TestBoundaryOscillation(t *testing.T) {
	sc := chain(t)
	var logs bytes.Buffer
	d, err := NewDetector(sc, oneParticle(1.9, 0), DetectorOptions{
		Tolerance: DefaultTolerance,
		WarnAfter: 3,
		Logger:    zerolog.New(&logs),
	})
	require.NoError(t, err)
	noise := []float64{1e-12, -1e-12, 3e-13, -2e-15, 0}
	for i, n := range noise {
		s := oneParticle(2.0+n, 0)
		assert.Empty(t, d.Observe(s), "step %d", i)
		deferred := d.Commit(s)
		assert.Equal(t, []int{1}, deferred)
		assert.Equal(t, Negative, d.Side(1), "the last definite side is kept")
	}
	assert.Equal(t, 5, d.Pending(1))
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("degenerate")), "warned once")

	back := oneParticle(1.9, 0)
	assert.Empty(t, d.Observe(back))
	d.Commit(back)
	assert.Zero(t, d.Pending(1))

	over := oneParticle(2.1, 0)
	cs := d.Observe(over)
	require.Len(t, cs, 1)
	assert.Equal(t, Negative, cs[0].From)
	assert.Equal(t, Positive, cs[0].To)
}

// With no tolerance the same noise would be seen as crossings.
func TestCommitReusesDeferred(t *testing.T) {
	sc := box(t, Reflective, Reflective)
	d, err := NewDetector(sc, oneParticle(1.5, 0), DetectorOptions{Tolerance: DefaultTolerance})
	require.NoError(t, err)
	a := d.Commit(oneParticle(2.0, 0))
	require.Equal(t, []int{0}, a)
	b := d.Commit(oneParticle(0.4, 0))
	require.Equal(t, []int{1}, b)
	assert.Same(t, &a[0], &b[0])
	assert.Empty(t, d.Commit(oneParticle(1.5, 0)))
}

func TestZeroToleranceSeesNoise(t *testing.T) {
	sc := chain(t)
	cs := feed(t, sc, []*md.State{oneParticle(1.9, 0), oneParticle(2.0+1e-12, 0)})
	assert.Empty(t, cs, "the default tolerance absorbs it")

	d, err := NewDetector(sc, oneParticle(1.9, 0), DetectorOptions{})
	require.NoError(t, err)
	assert.Len(t, d.Observe(oneParticle(2.0+1e-12, 0)), 1)
}

func TestStartOnBoundary(t *testing.T) {
	sc := chain(t)
	d, err := NewDetector(sc, oneParticle(1.0, 0), DetectorOptions{Tolerance: DefaultTolerance})
	require.NoError(t, err)
	id, ok := d.Unresolved()
	assert.True(t, ok)
	assert.Equal(t, MilestoneID(1), id)

	s := oneParticle(1.1, 0)
	assert.Empty(t, d.Observe(s), "the first definite side is adopted silently")
	d.Commit(s)
	_, ok = d.Unresolved()
	assert.False(t, ok)
}

func TestDetectorChecksGroups(t *testing.T) {
	ms := []Milestone{{ID: 1, Group: []int{4}, Inside: Negative, Bound: 1}}
	sc, err := NewScheme(ms, []Cell{DefaultCell(0, ms)})
	require.NoError(t, err)
	_, err = NewDetector(sc, oneParticle(0, 0), DetectorOptions{})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewDetector(sc, md.NewState(5, 1), DetectorOptions{Tolerance: -1})
	assert.ErrorIs(t, err, ErrConfig)
}
