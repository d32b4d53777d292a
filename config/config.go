/*
 * config.go, part of goMMVT
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

// Package config reads the YAML description of an MMVT run and turns it into
// the milestone scheme, the particle system and the run parameters.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

var validate = validator.New()

// Config is the whole run file.
type Config struct {
	System     System      `yaml:"system"`
	Milestones []Milestone `yaml:"milestones" validate:"required,min=1,dive"`
	// Cells may be omitted: the milestones then enclose a single cell 0.
	Cells  []Cell `yaml:"cells,omitempty" validate:"omitempty,dive"`
	Run    Run    `yaml:"run"`
	Output Output `yaml:"output"`
}

// System describes the particles and their interactions.
type System struct {
	// Geometry is an optional XYZ, PDB or GRO file with the starting
	// positions. Without it Particles are placed at random in the box.
	Geometry  string  `yaml:"geometry,omitempty"`
	Particles int     `yaml:"particles,omitempty" validate:"required_without=Geometry,gte=0"`
	Mass      float64 `yaml:"mass_amu" validate:"gt=0"`
	Box       float64 `yaml:"box_nm" validate:"gte=0"`
	Sigma     float64 `yaml:"sigma_nm" validate:"gt=0"`
	Epsilon   float64 `yaml:"epsilon_kj_mol" validate:"gte=0"`
	Cutoff    float64 `yaml:"cutoff_nm" validate:"gte=0"`
	// Tracked is the starting position of particle 0, which overrides the
	// geometry or the random placement.
	Tracked  []float64 `yaml:"tracked_start_nm,omitempty" validate:"omitempty,len=3"`
	Minimize bool      `yaml:"minimize"`
}

// Milestone is one planar boundary.
type Milestone struct {
	ID       int     `yaml:"id"`
	Name     string  `yaml:"name,omitempty"`
	Group    []int   `yaml:"group" validate:"required,min=1,dive,gte=0"`
	Axis     string  `yaml:"axis" validate:"oneof=x y z"`
	Bound    float64 `yaml:"bound_nm"`
	K        float64 `yaml:"k_kj_mol_nm" validate:"gte=0"`
	Inside   string  `yaml:"inside" validate:"oneof=negative positive below above"`
	Response string  `yaml:"response,omitempty" validate:"omitempty,oneof=transmissive reflective absorbing source"`
}

// Cell lists the milestones that bound a cell, and on which side of each
// the cell lies.
type Cell struct {
	ID     int         `yaml:"id" validate:"gte=0"`
	Bounds []CellBound `yaml:"bounds" validate:"required,min=1,dive"`
}

type CellBound struct {
	Milestone int    `yaml:"milestone"`
	Inside    string `yaml:"inside" validate:"oneof=negative positive below above"`
}

// Run holds the dynamics and detection parameters.
type Run struct {
	Temperature float64 `yaml:"temperature_k" validate:"gt=0"`
	Friction    float64 `yaml:"friction_ps" validate:"gte=0"`
	Timestep    float64 `yaml:"timestep_ps" validate:"gt=0"`
	Steps       int64   `yaml:"steps" validate:"gt=0"`
	// Chunk is the number of steps between trajectory frames and progress
	// updates.
	Chunk     int     `yaml:"chunk" validate:"gt=0"`
	Seed      int64   `yaml:"seed"`
	Tolerance float64 `yaml:"tolerance_nm" validate:"gte=0"`
	WarnAfter int     `yaml:"warn_after" validate:"gte=0"`
	Bounce    string  `yaml:"bounce" validate:"oneof=reverse specular"`
	// EndOnSource ends an Elber run when it crosses a source milestone.
	EndOnSource bool `yaml:"end_on_source,omitempty"`
}

// Output names the files a run writes. Empty names disable the file,
// except for the crossing log.
type Output struct {
	Log        string `yaml:"log" validate:"required"`
	Mode       string `yaml:"mode" validate:"oneof=fresh resume"`
	Trajectory string `yaml:"trajectory,omitempty"`
	FinalPDB   string `yaml:"final_pdb,omitempty"`
	Statistics string `yaml:"statistics,omitempty"`
	SaveState  string `yaml:"save_state,omitempty"`
	Metrics    string `yaml:"metrics,omitempty"`
}

// Default returns the argon box demonstration: ten argon atoms in a 2.5 nm
// periodic box, with the first one confined between 0.4 and 2.0 nm along
// every axis by six reflective milestones.
func Default() *Config {
	c := &Config{
		System: System{
			Particles: 10,
			Mass:      39.9,
			Box:       2.5,
			Sigma:     0.34,
			Epsilon:   0.9958,
			Cutoff:    2.5 * 0.34,
			Tracked:   []float64{1.2, 1.2, 1.2},
			Minimize:  true,
		},
		Run: Run{
			Temperature: 300,
			Friction:    1,
			Timestep:    0.002,
			Steps:       30000,
			Chunk:       10,
			Seed:        1,
			Tolerance:   1e-9,
			WarnAfter:   100,
			Bounce:      "reverse",
		},
		Output: Output{
			Log:        "mmvt.txt",
			Mode:       "fresh",
			Trajectory: "argon_box_out.xyz",
		},
	}
	id := 1
	for _, axis := range []string{"x", "y", "z"} {
		c.Milestones = append(c.Milestones,
			Milestone{ID: id, Name: axis + "_upper", Group: []int{0}, Axis: axis, Bound: 2.0, K: 1e-9, Inside: "negative", Response: "reflective"},
			Milestone{ID: id + 1, Name: axis + "_lower", Group: []int{0}, Axis: axis, Bound: 0.4, K: 1e-9, Inside: "positive", Response: "reflective"},
		)
		id += 2
	}
	return c
}

// Load reads and validates the run file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a run file strictly: unknown keys and trailing documents
// are errors. Keys not given keep the values of Default, except for the
// milestone list, which is replaced as a whole.
func Parse(data []byte) (*Config, error) {
	c := Default()
	c.Milestones = nil
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: strict parse: %v", ErrInvalid, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: multiple documents or trailing content", ErrInvalid)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks field ranges. The milestone graph itself is checked when
// the scheme is built.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Namespace() + " fails '" + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg+"'")
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// InDir returns a copy of c whose relative output names are placed in dir.
func (c *Config) InDir(dir string) *Config {
	cp := *c
	out := &cp.Output
	for _, name := range []*string{&out.Log, &out.Trajectory, &out.FinalPDB, &out.Statistics, &out.SaveState, &out.Metrics} {
		if *name != "" && !filepath.IsAbs(*name) {
			*name = filepath.Join(dir, *name)
		}
	}
	return &cp
}
