/*
 * integrator.go, part of goMMVT
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
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmera/goMMVT/internal/metrics"
	"github.com/rmera/goMMVT/md"
	"github.com/rmera/goMMVT/record"
)

// DefaultTolerance is the default OnBoundary half-width, in nm.
const DefaultTolerance = 1e-9

// Params are the run parameters of an Integrator.
type Params struct {
	Temperature float64 //K
	Friction    float64 //1/ps
	Timestep    float64 //ps
	Seed        int64
	Tolerance   float64 //nm
	WarnAfter   int
	Bounce      BounceMode
	// SaveStatePrefix, if set, makes the integrator write a state snapshot
	// after every step that bounced off exactly one milestone.
	SaveStatePrefix string
	// StatisticsFile, if set, is rewritten after every step with bounces.
	StatisticsFile string
	// EndOnSource makes a crossing of a Source milestone end the run, like
	// an absorbing one.
	EndOnSource bool
}

func (p Params) check() error {
	switch {
	case !(p.Temperature > 0):
		return paramErr("temperature must be positive, got %g K", p.Temperature)
	case !(p.Timestep > 0):
		return paramErr("timestep must be positive, got %g ps", p.Timestep)
	case !(p.Friction >= 0):
		return paramErr("friction can't be negative, got %g 1/ps", p.Friction)
	case p.WarnAfter < 0:
		return paramErr("negative warning threshold %d", p.WarnAfter)
	case p.Bounce != BounceReverse && p.Bounce != BounceSpecular:
		return paramErr("unknown bounce mode %d", p.Bounce)
	}
	return nil
}

// Stepper advances a state by one timestep. It must not change Step or Time.
type Stepper interface {
	Advance(s *md.State, dt float64) error
}

// Recorder receives the events of every step. *record.Recorder implements it.
type Recorder interface {
	NextIndex() int64
	Append(evs ...record.Event) error
	Close(totalSteps int64) error
}

// Option customizes an Integrator.
type Option func(*Integrator)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(it *Integrator) { it.log = l }
}

// WithMetrics makes the integrator update r.
func WithMetrics(r *metrics.Run) Option {
	return func(it *Integrator) { it.metrics = r }
}

// WithStepper replaces the default Langevin stepper.
func WithStepper(st Stepper) Option {
	return func(it *Integrator) { it.stepper = st }
}

// WithPolicy replaces the default Boundary policy.
func WithPolicy(p Policy) Option {
	return func(it *Integrator) { it.policy = p }
}

// Integrator runs the MMVT loop: step, detect, respond, commit, record.
// It is not safe for concurrent use; independent replicas each get their own.
type Integrator struct {
	p       Params
	scheme  *Scheme
	s       *md.State
	prev    *md.State
	det     *Detector
	policy  Policy
	stepper Stepper
	rec     Recorder
	stats   *Statistics
	metrics *metrics.Run
	log     zerolog.Logger

	events []record.Event
	done   bool
	err    error

	//Elber runs
	hasSource     bool
	sourceCrossed bool
}

// NewIntegrator prepares a run of s under the scheme. field is the physical
// force field; the soft walls of the milestones are added to it by the
// default stepper. The state must start inside a cell, or exactly on a
// Source milestone between two cells.
func NewIntegrator(p Params, sc *Scheme, field md.ForceField, rec Recorder, s *md.State, opts ...Option) (*Integrator, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	if sc == nil || rec == nil || s == nil {
		return nil, errors.New("mmvt: NewIntegrator needs a scheme, a recorder and a state")
	}
	if s.Len() == 0 || len(s.Velocities) != s.Len() || len(s.Masses) != s.Len() {
		return nil, paramErr("inconsistent state: %d positions, %d velocities, %d masses", s.Len(), len(s.Velocities), len(s.Masses))
	}
	if i := s.Finite(); i >= 0 {
		return nil, &NumericalError{Step: s.Step, Particle: i}
	}
	it := &Integrator{
		p:      p,
		scheme: sc,
		s:      s,
		prev:   s.Clone(),
		policy: Boundary{Mode: p.Bounce},
		rec:    rec,
		stats:  StatisticsFor(sc),
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(it)
	}
	if it.stepper == nil {
		forces := sc.Walls()
		if field != nil {
			forces = append(md.Sum{field}, forces...)
		}
		it.stepper = md.NewLangevinMiddle(p.Temperature, p.Friction, forces, p.Seed)
	}
	det, err := NewDetector(sc, s, DetectorOptions{Tolerance: p.Tolerance, WarnAfter: p.WarnAfter, Logger: it.log})
	if err != nil {
		return nil, err
	}
	it.det = det
	for i := 0; i < sc.Len(); i++ {
		if sc.At(i).Response == Source {
			it.hasSource = true
		}
	}
	cell, err := StartingCell(sc, det.Sides())
	if err != nil {
		return nil, err
	}
	if _, ok := det.Unresolved(); ok {
		it.log.Info().Msg("starting on a source milestone")
	}
	it.log.Info().Int("cell", int(cell)).Int("milestones", sc.Len()).Msg("starting cell")
	return it, nil
}

// StartingCell returns the cell a run with the given starting sides begins
// in. Only Source milestones may start on their bound; then any cell on
// either side of them will do, and the one on their negative side is
// returned. A start outside every cell is ErrTrapped.
func StartingCell(sc *Scheme, sides []Side) (CellID, error) {
	sides = append([]Side(nil), sides...)
	var onSource []int
	for i, sd := range sides {
		if sd != OnBoundary {
			continue
		}
		m := sc.At(i)
		if m.Response != Source {
			return Outside, fmt.Errorf("%w: starting value of milestone %d is on its bound", ErrTrapped, m.ID)
		}
		onSource = append(onSource, i)
	}
	for _, side := range []Side{Negative, Positive} {
		for _, i := range onSource {
			sides[i] = side
		}
		cell, err := sc.CellOf(sides)
		if err != nil {
			return Outside, fmt.Errorf("mmvt: deriving starting cell: %w", err)
		}
		if cell != Outside {
			return cell, nil
		}
		if len(onSource) == 0 {
			break
		}
	}
	return Outside, fmt.Errorf("%w: sides %v", ErrTrapped, sides)
}

// Step performs n steps. It stops at the first error; numerical and I/O
// errors are sticky. When an absorbing milestone (or, with EndOnSource, a
// source one) is crossed the step is recorded and ErrAbsorbed is returned,
// from then on by every call.
func (it *Integrator) Step(n int) error {
	for k := 0; k < n; k++ {
		if it.err != nil {
			return it.err
		}
		if it.done {
			return ErrAbsorbed
		}
		if err := it.step(); err != nil {
			it.err = err
			return err
		}
	}
	if it.done {
		return ErrAbsorbed
	}
	return nil
}

func (it *Integrator) step() error {
	s := it.s
	it.prev.CopyFrom(s)
	if err := it.stepper.Advance(s, it.p.Timestep); err != nil {
		return fmt.Errorf("mmvt: step %d: %w", s.Step+1, err)
	}
	s.Step++
	s.Time = float64(s.Step) * it.p.Timestep
	if i := s.Finite(); i >= 0 {
		return &NumericalError{Step: s.Step, Particle: i}
	}
	cs := it.det.Observe(s)
	if len(cs) > 0 {
		if err := it.policy.Respond(cs, it.scheme, it.prev, s); err != nil {
			return err
		}
	}
	deferred := it.det.Commit(s)
	if it.metrics != nil {
		for _, i := range deferred {
			it.metrics.Deferrals.WithLabelValues(metrics.Label(int(it.scheme.At(i).ID))).Inc()
		}
	}
	if err := it.persist(cs); err != nil {
		return err
	}
	if it.metrics != nil {
		it.metrics.Steps.Inc()
		it.metrics.SimTime.Set(s.Time)
	}
	return nil
}

// realized reports whether crossing c stands after the policy and commit.
func (it *Integrator) realized(c *Crossing) bool {
	return c.Bounced || it.det.Side(c.Index) == c.To
}

// persist records the crossings that were realized, either because the
// state ended on the new side or because they were bounced.
func (it *Integrator) persist(cs []Crossing) error {
	it.events = it.events[:0]
	next := it.rec.NextIndex()
	var bounced, ended []*record.Event
	//source crossings of this step count before any destination one.
	for i := range cs {
		if cs[i].Response == Source && it.realized(&cs[i]) {
			it.sourceCrossed = true
		}
	}
	for i := range cs {
		c := &cs[i]
		if !it.realized(c) {
			continue
		}
		it.events = append(it.events, record.Event{
			Milestone:   int(c.Milestone),
			Index:       next + int64(len(it.events)),
			Time:        c.Time,
			Step:        c.Step,
			Source:      int(c.Source),
			Destination: int(c.Destination),
			From:        int(c.From),
			To:          int(c.To),
			Bounced:     c.Bounced,
		})
		switch {
		case c.Response == Absorbing:
			it.done = true
			e := &it.events[len(it.events)-1]
			e.NoSource = it.hasSource && !it.sourceCrossed && !it.p.EndOnSource
		case c.Response == Source && it.p.EndOnSource:
			it.done = true
		}
	}
	if len(it.events) == 0 {
		return nil
	}
	start := time.Now()
	if err := it.rec.Append(it.events...); err != nil {
		return fmt.Errorf("mmvt: recording step %d: %w", it.s.Step, err)
	}
	if it.metrics != nil {
		it.metrics.AppendSecs.Observe(time.Since(start).Seconds())
	}
	for i := range it.events {
		e := &it.events[i]
		it.log.Trace().
			Int("milestone", e.Milestone).
			Int64("index", e.Index).
			Float64("time_ps", e.Time).
			Int("from", e.From).
			Int("to", e.To).
			Bool("bounced", e.Bounced).
			Msg("crossing")
		if it.metrics != nil {
			it.metrics.Crossings.WithLabelValues(metrics.Label(e.Milestone)).Inc()
		}
		if it.done && it.ends(MilestoneID(e.Milestone)) {
			ended = append(ended, e)
		}
		if !e.Bounced {
			continue
		}
		bounced = append(bounced, e)
		if it.metrics != nil {
			it.metrics.Bounces.WithLabelValues(metrics.Label(e.Milestone)).Inc()
		}
		if err := it.stats.Observe(MilestoneID(e.Milestone), e.Time); err != nil {
			return err
		}
	}
	if single := append(ended, bounced...); len(single) == 1 && it.p.SaveStatePrefix != "" {
		e := single[0]
		name, err := SaveSnapshot(it.p.SaveStatePrefix, e.Index, MilestoneID(e.Milestone), it.s)
		if err != nil {
			return err
		}
		it.log.Debug().Str("file", name).Msg("state snapshot written")
	}
	if len(bounced) > 0 && it.p.StatisticsFile != "" {
		if err := it.stats.Save(it.p.StatisticsFile); err != nil {
			return err
		}
	}
	if it.done {
		it.log.Info().Int64("step", it.s.Step).Float64("time_ps", it.s.Time).Bool("source_crossed", it.sourceCrossed).Msg("trajectory absorbed")
	}
	return nil
}

// ends reports whether crossing milestone id ends the run.
func (it *Integrator) ends(id MilestoneID) bool {
	i, _ := it.scheme.Index(id)
	switch it.scheme.At(i).Response {
	case Absorbing:
		return true
	case Source:
		return it.p.EndOnSource
	}
	return false
}

// State returns the current state. It is updated in place by Step.
func (it *Integrator) State() *md.State {
	return it.s
}

// Stats returns the statistics accumulated from the bounces so far.
func (it *Integrator) Stats() *Statistics {
	return it.stats
}

// Detector returns the crossing detector.
func (it *Integrator) Detector() *Detector {
	return it.det
}

// Done reports whether the trajectory was absorbed.
func (it *Integrator) Done() bool {
	return it.done
}

// Close closes the recorder, writing the total step count.
func (it *Integrator) Close() error {
	return it.rec.Close(it.s.Step)
}
