/*
 * run.go, part of goMMVT
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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/rmera/goMMVT/config"
	"github.com/rmera/goMMVT/internal/metrics"
	"github.com/rmera/goMMVT/md"
	"github.com/rmera/goMMVT/mmvt"
	"github.com/rmera/goMMVT/record"
)

// Minimization settings for the starting geometry.
const (
	minimizeTol  = 10.0 //kJ/mol/nm
	minimizeIter = 1000
)

// Summary describes a finished (or interrupted) run.
type Summary struct {
	Replica  string
	Steps    int64
	Time     float64 //ps
	Events   int64
	Absorbed bool
	Log      string
	Elapsed  time.Duration
}

func (s *Summary) String() string {
	abs := ""
	if s.Absorbed {
		abs = ", absorbed"
	}
	return fmt.Sprintf("replica %s: %d steps (%.3f ps), %d crossings in %s%s, %s", s.Replica, s.Steps, s.Time, s.Events, s.Log, abs, s.Elapsed.Round(time.Millisecond))
}

// RunMMVT runs one trajectory as described by c. The crossing log is always
// closed, with the number of steps done, even when the run fails or ctx is
// cancelled; the summary is returned in those cases too.
func RunMMVT(ctx context.Context, c *config.Config, replica string, logger zerolog.Logger, progress bool) (sum *Summary, err error) {
	logger = logger.With().Str("replica", replica).Logger()
	sc, err := c.Scheme()
	if err != nil {
		return nil, err
	}
	p, err := c.Params()
	if err != nil {
		return nil, err
	}
	mode, err := c.Mode()
	if err != nil {
		return nil, err
	}
	top, s, err := c.BuildSystem()
	if err != nil {
		return nil, err
	}
	field := c.ForceField()
	if c.System.Minimize {
		e, err := md.Minimize(md.Sum{field, sc.Walls()}, s, minimizeTol, minimizeIter)
		if err != nil {
			return nil, fmt.Errorf("minimizing starting geometry: %w", err)
		}
		logger.Info().Float64("energy_kj_mol", e).Msg("starting geometry minimized")
	}
	if err := os.MkdirAll(filepath.Dir(c.Output.Log), 0o755); err != nil {
		return nil, err
	}
	rec, err := record.Open(c.Output.Log, record.Options{Mode: mode, Meta: record.NewMeta(p.Timestep, replica), Logger: logger})
	if err != nil {
		return nil, err
	}
	m := metrics.New(replica)
	it, err := mmvt.NewIntegrator(p, sc, field, rec, s, mmvt.WithLogger(logger), mmvt.WithMetrics(m))
	if err != nil {
		return nil, errors.Join(err, rec.Close(0))
	}
	defer func() {
		if cerr := it.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	var traj *md.TrajectoryWriter
	if c.Output.Trajectory != "" {
		traj, err = md.NewTrajectoryWriter(c.Output.Trajectory, top, mode == record.Fresh)
		if err != nil {
			return nil, err
		}
		defer traj.Close()
		if err := traj.WriteFrame(s); err != nil {
			return nil, err
		}
	}
	var bar *progressbar.ProgressBar
	if progress {
		bar = progressbar.NewOptions64(c.Run.Steps,
			progressbar.OptionSetDescription("replica "+replica),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
	}

	start := time.Now()
	first, firstIndex := s.Step, rec.NextIndex()
	sum = &Summary{Replica: replica, Log: c.Output.Log}
	defer func() {
		sum.Steps = s.Step - first
		sum.Time = s.Time
		sum.Events = rec.NextIndex() - firstIndex
		sum.Absorbed = it.Done()
		sum.Elapsed = time.Since(start)
	}()
	for s.Step-first < c.Run.Steps {
		if err := ctx.Err(); err != nil {
			logger.Warn().Int64("step", s.Step).Msg("run interrupted")
			return sum, err
		}
		n := min(int64(c.Run.Chunk), c.Run.Steps-(s.Step-first))
		serr := it.Step(int(n))
		if serr != nil && !errors.Is(serr, mmvt.ErrAbsorbed) {
			logger.Error().Err(serr).Int64("step", s.Step).Msg("run stopped")
			return sum, serr
		}
		if traj != nil {
			if err := traj.WriteFrame(s); err != nil {
				return sum, err
			}
		}
		if bar != nil {
			_ = bar.Set64(s.Step - first)
		}
		logger.Debug().Int64("step", s.Step).Float64("temperature_k", s.Temperature()).Msg("chunk done")
		if serr != nil {
			break
		}
	}
	if c.Output.FinalPDB != "" {
		if err := md.WriteFinalPDB(c.Output.FinalPDB, s, top); err != nil {
			return sum, err
		}
	}
	if c.Output.Statistics != "" {
		if err := it.Stats().Save(c.Output.Statistics); err != nil {
			return sum, err
		}
	}
	if c.Output.Metrics != "" {
		if err := m.WriteTextfile(c.Output.Metrics); err != nil {
			return sum, fmt.Errorf("writing metrics: %w", err)
		}
	}
	logger.Info().Int64("steps", s.Step-first).Int64("crossings", rec.NextIndex()-firstIndex).Bool("absorbed", it.Done()).Msg("run finished")
	return sum, nil
}
