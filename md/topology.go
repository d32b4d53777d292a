/*
 * topology.go, part of goMMVT
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
	"path/filepath"
	"strings"

	chem "github.com/rmera/gochem"
)

// Topology is a minimal goChem Atomer for the systems we simulate. It is
// what the trajectory writers need to know about each particle.
type Topology struct {
	atoms []*chem.Atom
}

// NewTopology wraps the given atoms.
func NewTopology(atoms []*chem.Atom) *Topology {
	return &Topology{atoms: atoms}
}

// NewArgonTopology returns n argon atoms of the given mass (amu), each in
// its own residue.
func NewArgonTopology(n int, mass float64) *Topology {
	ats := make([]*chem.Atom, n)
	for i := range ats {
		ats[i] = &chem.Atom{
			Name:    "AR",
			Symbol:  "Ar",
			Molname: "AR",
			MolID:   i + 1,
			ID:      i + 1,
			Mass:    mass,
		}
	}
	return &Topology{atoms: ats}
}

// Atom returns the i-th atom. It implements chem.Atomer.
func (t *Topology) Atom(i int) *chem.Atom {
	return t.atoms[i]
}

// Len returns the number of atoms. It implements chem.Atomer.
func (t *Topology) Len() int {
	return len(t.atoms)
}

// Masses returns the atomic masses, using fallback for atoms without one.
func (t *Topology) Masses(fallback float64) []float64 {
	m := make([]float64, len(t.atoms))
	for i, at := range t.atoms {
		m[i] = at.Mass
		if m[i] <= 0 {
			m[i] = fallback
		}
	}
	return m
}

// ReadGeometry reads the first frame of an XYZ, PDB or GRO file with
// goChem and returns its topology and positions in nm.
func ReadGeometry(geoname string) (*Topology, []Vec, error) {
	var mol *chem.Molecule
	var err error
	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(geoname), "."))
	switch extension {
	case "gro":
		mol, err = chem.GroFileRead(geoname)
	case "pdb":
		mol, err = chem.PDBFileRead(geoname, false)
	default:
		mol, err = chem.XYZFileRead(geoname)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("md: reading geometry %s: %w", geoname, err)
	}
	if len(mol.Coords) == 0 {
		return nil, nil, fmt.Errorf("md: geometry %s has no coordinates", geoname)
	}
	coords := mol.Coords[0]
	ats := make([]*chem.Atom, mol.Len())
	pos := make([]Vec, mol.Len())
	for i := range ats {
		ats[i] = mol.Atom(i)
		for k := 0; k < 3; k++ {
			pos[i][k] = coords.At(i, k) / nm2A
		}
	}
	return NewTopology(ats), pos, nil
}
