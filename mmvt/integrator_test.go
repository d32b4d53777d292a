/*
 * integrator_test.go, part of goMMVT
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
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/goMMVT/internal/metrics"
	"github.com/rmera/goMMVT/md"
	"github.com/rmera/goMMVT/record"
)

func oneParticle(x, vx float64) *md.State {
	s := md.NewState(1, 39.9)
	s.Positions[0] = md.Vec{x, 0, 0}
	s.Velocities[0] = md.Vec{vx, 0, 0}
	return s
}

func testParams() Params {
	return Params{Temperature: 300, Friction: 1, Timestep: 0.02, Seed: 1, Tolerance: DefaultTolerance}
}

// drift moves particles at constant velocity.
type drift struct{}

func (drift) Advance(s *md.State, dt float64) error {
	for i := range s.Positions {
		for k := 0; k < 3; k++ {
			s.Positions[i][k] += dt * s.Velocities[i][k]
		}
	}
	return nil
}

// scripted puts particle 0 at the listed x values, one per step.
type scripted struct {
	xs []float64
	n  int
}

func (sc *scripted) Advance(s *md.State, dt float64) error {
	s.Positions[0][0] = sc.xs[sc.n]
	sc.n++
	return nil
}

// memRecorder keeps events in memory and can be made to fail.
type memRecorder struct {
	events []record.Event
	fail   error
	closed int64
}

func (m *memRecorder) NextIndex() int64 { return int64(len(m.events)) }

func (m *memRecorder) Append(evs ...record.Event) error {
	if m.fail != nil {
		return m.fail
	}
	m.events = append(m.events, evs...)
	return nil
}

func (m *memRecorder) Close(total int64) error {
	m.closed = total
	return nil
}

// box is the 0.4 nm to 2.0 nm cell of a single particle along x.
func box(t *testing.T, upper, lower Response) *Scheme {
	t.Helper()
	up, lo := xMilestone(1, 2.0, Negative), xMilestone(2, 0.4, Positive)
	up.Response, lo.Response = upper, lower
	ms := []Milestone{up, lo}
	sc, err := NewScheme(ms, []Cell{DefaultCell(0, ms)})
	require.NoError(t, err)
	return sc
}

// A particle leaving 1.2 nm at 7 nm/ps with 0.02 ps steps reaches 2.04 nm
// on step 6.
func TestReflectiveScenario(t *testing.T) {
	for _, mode := range []BounceMode{BounceReverse, BounceSpecular} {
		t.Run(mode.String(), func(t *testing.T) {
			rec := &memRecorder{}
			p := testParams()
			p.Bounce = mode
			it, err := NewIntegrator(p, box(t, Reflective, Reflective), nil, rec, oneParticle(1.2, 7), WithStepper(drift{}))
			require.NoError(t, err)

			require.NoError(t, it.Step(5))
			assert.Empty(t, rec.events)
			require.NoError(t, it.Step(1))
			require.Len(t, rec.events, 1)
			e := rec.events[0]
			assert.Equal(t, 1, e.Milestone)
			assert.Equal(t, int64(0), e.Index)
			assert.Equal(t, int64(6), e.Step)
			assert.InDelta(t, 0.12, e.Time, 1e-12)
			assert.True(t, e.Bounced)
			assert.Equal(t, 0, e.Source)
			assert.Equal(t, int(Outside), e.Destination)
			assert.Equal(t, int(Negative), e.From)
			assert.Equal(t, int(Positive), e.To)

			s := it.State()
			assert.Equal(t, -7.0, s.Velocities[0][0])
			assert.LessOrEqual(t, s.Positions[0][0], 2.0)

			//the particle stays inside until it reaches the lower bound.
			for s.Step < 16 {
				require.NoError(t, it.Step(1))
				assert.LessOrEqual(t, s.Positions[0][0], 2.0)
				assert.GreaterOrEqual(t, s.Positions[0][0], 0.4)
			}
			assert.Len(t, rec.events, 1)
			require.NoError(t, it.Step(2))
			require.Len(t, rec.events, 2)
			assert.Equal(t, 2, rec.events[1].Milestone)
			assert.Equal(t, int64(1), rec.events[1].Index)
			assert.Equal(t, 7.0, s.Velocities[0][0])

			assert.Equal(t, 1, it.Stats().N(2))
			require.NoError(t, it.Close())
			assert.Equal(t, s.Step, rec.closed)
		})
	}
}

// An overshoot wider than the cell can't be mirrored without crossing the
// opposite milestone, so the step is reversed instead.
func TestSpecularOvershootFallsBackToReverse(t *testing.T) {
	rec := &memRecorder{}
	p := testParams()
	p.Bounce = BounceSpecular
	st := &scripted{xs: []float64{3.8, 1.5}}
	it, err := NewIntegrator(p, box(t, Reflective, Reflective), nil, rec, oneParticle(1.9, 3), WithStepper(st))
	require.NoError(t, err)

	require.NoError(t, it.Step(1))
	require.Len(t, rec.events, 1)
	assert.Equal(t, 1, rec.events[0].Milestone)
	assert.True(t, rec.events[0].Bounced)
	s := it.State()
	assert.Equal(t, 1.9, s.Positions[0][0])
	assert.Equal(t, -3.0, s.Velocities[0][0])
	cell, err := it.Detector().Cell()
	require.NoError(t, err)
	assert.Equal(t, CellID(0), cell)

	require.NoError(t, it.Step(1))
	assert.Len(t, rec.events, 1)
	cell, err = it.Detector().Cell()
	require.NoError(t, err)
	assert.Equal(t, CellID(0), cell)
}

// elber has destinations at 0.4 nm and 2.0 nm and the source at 1.2 nm,
// between cells 0 and 1.
func elber(t *testing.T) *Scheme {
	t.Helper()
	lo, src, hi := xMilestone(1, 0.4, Positive), xMilestone(2, 1.2, Negative), xMilestone(3, 2.0, Negative)
	lo.Response, src.Response, hi.Response = Absorbing, Source, Absorbing
	sc, err := NewScheme([]Milestone{lo, src, hi}, []Cell{
		{ID: 0, Bounds: []CellBound{{1, Positive}, {2, Negative}}},
		{ID: 1, Bounds: []CellBound{{2, Positive}, {3, Negative}}},
	})
	require.NoError(t, err)
	return sc
}

// A particle moving at 7 nm/ps with 0.02 ps steps covers 0.14 nm per step.
func TestElber(t *testing.T) {
	cases := []struct {
		name        string
		x           float64
		endOnSource bool
		want        []record.Event
	}{
		{"through the source", 1.0, false, []record.Event{
			{Milestone: 2, Index: 0, Step: 2, Source: 0, Destination: 1, From: -1, To: 1},
			{Milestone: 3, Index: 1, Step: 8, Source: 1, Destination: int(Outside), From: -1, To: 1},
		}},
		{"source never crossed", 1.35, false, []record.Event{
			{Milestone: 3, Index: 0, Step: 5, Source: 1, Destination: int(Outside), From: -1, To: 1, NoSource: true},
		}},
		{"start on the source", 1.2, false, []record.Event{
			{Milestone: 3, Index: 0, Step: 6, Source: 1, Destination: int(Outside), From: -1, To: 1, NoSource: true},
		}},
		{"end on the source", 1.0, true, []record.Event{
			{Milestone: 2, Index: 0, Step: 2, Source: 0, Destination: 1, From: -1, To: 1},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &memRecorder{}
			p := testParams()
			p.EndOnSource = tc.endOnSource
			it, err := NewIntegrator(p, elber(t), nil, rec, oneParticle(tc.x, 7), WithStepper(drift{}))
			require.NoError(t, err)
			err = it.Step(20)
			require.ErrorIs(t, err, ErrAbsorbed)
			assert.True(t, it.Done())
			last := tc.want[len(tc.want)-1]
			assert.Equal(t, last.Step, it.State().Step, "stops on the absorbing step")
			for i := range rec.events {
				rec.events[i].Time = 0
			}
			if diff := cmp.Diff(tc.want, rec.events); diff != "" {
				t.Errorf("events differ (-want +got):\n%s", diff)
			}
		})
	}
}

func TestElberStartOnDestinationIsTrapped(t *testing.T) {
	_, err := NewIntegrator(testParams(), elber(t), nil, &memRecorder{}, oneParticle(2.0, 7), WithStepper(drift{}))
	assert.ErrorIs(t, err, ErrTrapped)
}

func TestTransmissiveCrossing(t *testing.T) {
	rec := &memRecorder{}
	it, err := NewIntegrator(testParams(), box(t, Transmissive, Reflective), nil, rec, oneParticle(1.2, 7), WithStepper(drift{}))
	require.NoError(t, err)
	require.NoError(t, it.Step(10))
	require.Len(t, rec.events, 1)
	assert.False(t, rec.events[0].Bounced)
	assert.Equal(t, 7.0, it.State().Velocities[0][0])
	assert.Greater(t, it.State().Positions[0][0], 2.0)
	c, err := it.Detector().Cell()
	require.NoError(t, err)
	assert.Equal(t, Outside, c)
	assert.Equal(t, 0, it.Stats().N(1), "statistics only count bounces")
}

func TestAbsorbing(t *testing.T) {
	rec := &memRecorder{}
	it, err := NewIntegrator(testParams(), box(t, Absorbing, Reflective), nil, rec, oneParticle(1.2, 7), WithStepper(drift{}))
	require.NoError(t, err)
	err = it.Step(100)
	assert.ErrorIs(t, err, ErrAbsorbed)
	assert.True(t, it.Done())
	assert.Equal(t, int64(6), it.State().Step)
	require.Len(t, rec.events, 1)
	assert.False(t, rec.events[0].Bounced)
	assert.ErrorIs(t, it.Step(1), ErrAbsorbed)
	assert.Equal(t, int64(6), it.State().Step)
}

// A value that sits on the bound for five steps is not a crossing.
func TestIntegratorBoundaryOscillation(t *testing.T) {
	rec := &memRecorder{}
	st := &scripted{xs: []float64{1.9, 2.0 + 1e-12, 2.0 - 1e-12, 2.0, 2.0 + 5e-13, 2.0 - 3e-13, 1.95}}
	it, err := NewIntegrator(testParams(), box(t, Reflective, Reflective), nil, rec, oneParticle(1.8, 0), WithStepper(st))
	require.NoError(t, err)
	require.NoError(t, it.Step(len(st.xs)))
	assert.Empty(t, rec.events)
	assert.Equal(t, 0, it.Detector().Pending(0))
}

func TestNumericalAnomaly(t *testing.T) {
	rec := &memRecorder{}
	st := &scripted{xs: []float64{1.3, 2.5, math.NaN(), 1.0}}
	it, err := NewIntegrator(testParams(), box(t, Transmissive, Transmissive), nil, rec, oneParticle(1.2, 0), WithStepper(st))
	require.NoError(t, err)
	err = it.Step(4)
	require.ErrorIs(t, err, ErrNumerical)
	var ne *NumericalError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, int64(3), ne.Step)
	assert.Equal(t, 0, ne.Particle)
	require.Len(t, rec.events, 1, "only the crossing before the anomaly is recorded")
	assert.Equal(t, int64(2), rec.events[0].Step)
	assert.ErrorIs(t, it.Step(1), ErrNumerical, "the failure is sticky")
	assert.Equal(t, 3, st.n)
}

func TestRecorderFailureIsFatal(t *testing.T) {
	disk := errors.New("disk full")
	rec := &memRecorder{fail: disk}
	it, err := NewIntegrator(testParams(), box(t, Reflective, Reflective), nil, rec, oneParticle(1.2, 7), WithStepper(drift{}))
	require.NoError(t, err)
	err = it.Step(20)
	require.ErrorIs(t, err, disk)
	assert.Equal(t, int64(6), it.State().Step)
	rec.fail = nil
	assert.ErrorIs(t, it.Step(1), disk)
	assert.Empty(t, rec.events)
}

func TestTrappedStart(t *testing.T) {
	for _, x := range []float64{2.5, 2.0, 0.1} {
		_, err := NewIntegrator(testParams(), box(t, Reflective, Reflective), nil, &memRecorder{}, oneParticle(x, 0), WithStepper(drift{}))
		assert.ErrorIs(t, err, ErrTrapped, "x=%g", x)
	}
}

func TestBadParams(t *testing.T) {
	sc := box(t, Reflective, Reflective)
	for _, mod := range []func(*Params){
		func(p *Params) { p.Temperature = 0 },
		func(p *Params) { p.Timestep = -0.002 },
		func(p *Params) { p.Friction = -1 },
		func(p *Params) { p.Friction = math.NaN() },
		func(p *Params) { p.Tolerance = -1 },
		func(p *Params) { p.Bounce = 9 },
	} {
		p := testParams()
		mod(&p)
		_, err := NewIntegrator(p, sc, nil, &memRecorder{}, oneParticle(1.2, 0))
		assert.ErrorIs(t, err, ErrConfig)
	}
	s := oneParticle(1.2, 0)
	s.Velocities[0][1] = math.Inf(1)
	_, err := NewIntegrator(testParams(), sc, nil, &memRecorder{}, s)
	assert.ErrorIs(t, err, ErrNumerical)
}

// Under Langevin dynamics with reflective boundaries every committed state
// stays in the cell, and the log on disk has every recorded event.
func TestLangevinStaysInCell(t *testing.T) {
	dir := t.TempDir()
	up, lo := xMilestone(1, 1.25, Negative), xMilestone(2, 1.15, Positive)
	ms := []Milestone{up, lo}
	sc, err := NewScheme(ms, []Cell{DefaultCell(0, ms)})
	require.NoError(t, err)

	logName := filepath.Join(dir, "mmvt.txt")
	rec, err := record.Open(logName, record.Options{Mode: record.Fresh, Meta: record.NewMeta(0.002, "0"), Logger: zerolog.Nop()})
	require.NoError(t, err)
	m := metrics.New("0")
	p := Params{
		Temperature:     300,
		Friction:        1,
		Timestep:        0.002,
		Seed:            11,
		Tolerance:       DefaultTolerance,
		StatisticsFile:  filepath.Join(dir, "stats.txt"),
		SaveStatePrefix: filepath.Join(dir, "state"),
	}
	it, err := NewIntegrator(p, sc, nil, rec, oneParticle(1.2, 0), WithMetrics(m))
	require.NoError(t, err)
	for k := 0; k < 2000; k++ {
		require.NoError(t, it.Step(1))
		x := it.State().Positions[0][0]
		require.True(t, x < 1.25 && x > 1.15, "step %d: x=%g", k, x)
	}
	require.NoError(t, it.Close())

	l, err := record.ReadLog(logName)
	require.NoError(t, err)
	require.NotEmpty(t, l.Events)
	assert.Equal(t, int64(2000), l.Steps)
	for i, e := range l.Events {
		assert.Equal(t, int64(i), e.Index)
		assert.True(t, e.Bounced)
	}
	assert.Equal(t, 2000.0, testutil.ToFloat64(m.Steps))
	assert.Equal(t, float64(len(l.Events)),
		testutil.ToFloat64(m.Bounces.WithLabelValues("1"))+testutil.ToFloat64(m.Bounces.WithLabelValues("2")))
	assert.InDelta(t, 4.0, testutil.ToFloat64(m.SimTime), 1e-9)

	//replaying the log gives the live statistics.
	replay := StatisticsFor(sc)
	for _, e := range l.Events {
		require.NoError(t, replay.Observe(MilestoneID(e.Milestone), e.Time))
	}
	if diff := cmp.Diff(it.Stats().T(), replay.T()); diff != "" {
		t.Error(diff)
	}
	assert.Equal(t, it.Stats().N(1), replay.N(1))
	assert.Equal(t, it.Stats().Nij(1, 2), replay.Nij(1, 2))
	assert.FileExists(t, p.StatisticsFile)
}
