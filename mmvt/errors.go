/*
 * errors.go, part of goMMVT
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
)

var (
	// ErrConfig classifies inconsistent milestone/cell setups and bad run
	// parameters. Use errors.Is(err, ErrConfig).
	ErrConfig = errors.New("mmvt: configuration error")
	// ErrNumerical classifies NaN/Inf positions or velocities after a step.
	ErrNumerical = errors.New("mmvt: numerical anomaly")
	// ErrTrapped means the starting state lies outside every cell, so the
	// first step would bounce and the system would stay behind a boundary.
	ErrTrapped = errors.New("mmvt: starting state is outside every cell")
	// ErrAmbiguousCell means a side vector is consistent with more than one cell.
	ErrAmbiguousCell = errors.New("mmvt: state is consistent with more than one cell")
	// ErrAbsorbed is returned by Step once an absorbing milestone was crossed.
	ErrAbsorbed = errors.New("mmvt: trajectory was absorbed")
)

// ConfigError names the milestone or cell that made a setup inconsistent.
type ConfigError struct {
	Milestone MilestoneID
	Cell      CellID
	Reason    string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Milestone != noMilestone:
		return fmt.Sprintf("mmvt: milestone %d: %s", e.Milestone, e.Reason)
	case e.Cell != Outside:
		return fmt.Sprintf("mmvt: cell %d: %s", e.Cell, e.Reason)
	}
	return "mmvt: " + e.Reason
}

// Is makes errors.Is(err, ErrConfig) work.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

func milestoneErr(id MilestoneID, format string, args ...interface{}) error {
	return &ConfigError{Milestone: id, Cell: Outside, Reason: fmt.Sprintf(format, args...)}
}

func cellErr(id CellID, format string, args ...interface{}) error {
	return &ConfigError{Milestone: noMilestone, Cell: id, Reason: fmt.Sprintf(format, args...)}
}

func paramErr(format string, args ...interface{}) error {
	return &ConfigError{Milestone: noMilestone, Cell: Outside, Reason: fmt.Sprintf(format, args...)}
}

// NumericalError reports the step and particle where a non-finite value
// showed up.
type NumericalError struct {
	Step     int64
	Particle int
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("mmvt: non-finite position or velocity for particle %d after step %d", e.Particle, e.Step)
}

// Is makes errors.Is(err, ErrNumerical) work.
func (e *NumericalError) Is(target error) bool {
	return target == ErrNumerical
}
