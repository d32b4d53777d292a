/*
 * record.go, part of goMMVT
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

// Package record keeps the crossing log of an MMVT run: an append-only,
// line-oriented text file that is synced to disk after every append, so a
// crash can lose at most the event being written.
//
// The format is
//
//	#"Bounced boundary ID","bounce index","total time (ps)","step","source cell","destination cell","from","to","bounced"
//	# run id=<uuid> started=<RFC3339> dt=<ps> replica=<name>
//	2,0,0.118,59,0,-1,-1,1,1
//	...
//	# end steps=<n> at=<RFC3339>
//
// The first three columns are the ones of the seekr2 MMVT output files, so
// existing analysis scripts keep working. Logs written by seekr2 itself,
// with only those three columns under LegacyHeader, can be read but not
// resumed. An event line is complete only when it ends with a newline.
//
// In Elber runs a destination event from a trajectory that never crossed
// its source milestone has an asterisk after the milestone id ("3*,..."),
// as in seekr2; statistics from it are invalid.
package record

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Header is the first line of every log.
const Header = `#"Bounced boundary ID","bounce index","total time (ps)","step","source cell","destination cell","from","to","bounced"`

// LegacyHeader starts the three-column bounce logs of seekr2.
const LegacyHeader = `#"Bounced boundary ID","bounce index","total time (ps)"`

// LegacyElberHeader starts the three-column crossing logs of seekr2 Elber
// runs, whose events are not bounces.
const LegacyElberHeader = `#"Crossed boundary ID","crossing counter","total time (ps)"`

var (
	// ErrLocked means another recorder owns the log.
	ErrLocked = errors.New("record: log is locked by another recorder")
	// ErrBadHeader means a file to resume is not a crossing log.
	ErrBadHeader = errors.New("record: not a crossing log")
	// ErrClosed is returned when appending to a closed recorder.
	ErrClosed = errors.New("record: recorder is closed")
)

// Mode says what to do with an existing log.
type Mode int

const (
	// Fresh truncates any previous log.
	Fresh Mode = iota
	// Resume appends to a previous log, continuing its event numbering.
	Resume
)

func (m Mode) String() string {
	if m == Resume {
		return "resume"
	}
	return "fresh"
}

// ParseMode parses "fresh" or "resume".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "fresh", "":
		return Fresh, nil
	case "resume":
		return Resume, nil
	}
	return Fresh, fmt.Errorf("record: unknown mode %q", s)
}

// Event is one crossing, as written to the log.
type Event struct {
	Milestone   int
	Index       int64
	Time        float64 //ps
	Step        int64
	Source      int
	Destination int
	From, To    int
	Bounced     bool
	// NoSource flags an Elber destination event whose trajectory never
	// crossed the source milestone.
	NoSource bool
}

// Meta is the run metadata written in the header.
type Meta struct {
	RunID    string
	Started  time.Time
	Timestep float64 //ps
	Replica  string
}

// NewMeta fills in a fresh run id and the current time.
func NewMeta(dt float64, replica string) Meta {
	return Meta{RunID: uuid.NewString(), Started: time.Now().UTC(), Timestep: dt, Replica: replica}
}

func (m Meta) line(kind string) string {
	return fmt.Sprintf("# %s id=%s started=%s dt=%s replica=%s\n", kind, m.RunID,
		m.Started.Format(time.RFC3339Nano), strconv.FormatFloat(m.Timestep, 'g', -1, 64), m.Replica)
}

// appendEvent formats e as one log line.
func appendEvent(b []byte, e Event) []byte {
	b = strconv.AppendInt(b, int64(e.Milestone), 10)
	if e.NoSource {
		b = append(b, '*')
	}
	b = append(b, ',')
	b = strconv.AppendInt(b, e.Index, 10)
	b = append(b, ',')
	b = strconv.AppendFloat(b, e.Time, 'f', -1, 64)
	b = append(b, ',')
	b = strconv.AppendInt(b, e.Step, 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(e.Source), 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(e.Destination), 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(e.From), 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(e.To), 10)
	b = append(b, ',')
	if e.Bounced {
		b = append(b, '1')
	} else {
		b = append(b, '0')
	}
	return append(b, '\n')
}

// parseEvent parses one log line. Legacy lines have the three seekr2
// columns, all others must have nine.
func parseEvent(line string, legacy bool) (Event, error) {
	var e Event
	f := strings.Split(line, ",")
	want := 9
	if legacy {
		want = 3
	}
	if len(f) != want {
		return e, fmt.Errorf("record: %d fields, want %d", len(f), want)
	}
	var err error
	ints := func(s string) int64 {
		if err != nil {
			return 0
		}
		var v int64
		v, err = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return v
	}
	id, star := strings.CutSuffix(strings.TrimSpace(f[0]), "*")
	e.NoSource = star
	e.Milestone = int(ints(id))
	e.Index = ints(f[1])
	if err == nil {
		e.Time, err = strconv.ParseFloat(strings.TrimSpace(f[2]), 64)
	}
	if len(f) == 9 {
		e.Step = ints(f[3])
		e.Source = int(ints(f[4]))
		e.Destination = int(ints(f[5]))
		e.From = int(ints(f[6]))
		e.To = int(ints(f[7]))
		switch b := strings.TrimSpace(f[8]); b {
		case "1":
			e.Bounced = true
		case "0":
		default:
			if err == nil {
				err = fmt.Errorf("record: bad bounced flag %q", b)
			}
		}
	} else {
		//seekr2 logs only have bounces
		e.Bounced = true
	}
	return e, err
}

// syncDir makes a newly created file's directory entry durable.
func syncDir(path string) error {
	d, err := os.Open(filepath.Dir(path))
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
