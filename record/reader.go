/*
 * reader.go, part of goMMVT
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

package record

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Log is the parsed content of a crossing log.
type Log struct {
	Meta    Meta
	Events  []Event
	Resumes int
	// Steps is the step count of the last end trailer, -1 if the run never
	// closed the log (for example after a crash).
	Steps int64
	// Torn counts lines that could not be parsed, including a last line
	// with no newline.
	Torn int
	// Legacy is set for three-column seekr2 logs.
	Legacy bool
	// Segments holds the position in Events of the first event of each
	// run segment: 0 for the first run, then one per resume.
	Segments []int
}

// ReadLog parses the log at path.
func ReadLog(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (*Log, error) {
	l := &Log{Steps: -1, Segments: []int{0}}
	elber := false
	br := bufio.NewReader(r)
	first := true
	for {
		raw, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("record: reading log: %w", err)
		}
		if raw == "" {
			break
		}
		complete := strings.HasSuffix(raw, "\n")
		line := strings.TrimRight(raw, "\r\n")
		if first {
			first = false
			if !strings.HasPrefix(line, `#"`) || !complete {
				return nil, fmt.Errorf("%w: first line is %q", ErrBadHeader, line)
			}
			l.Legacy = line != Header
			elber = line == LegacyElberHeader
			continue
		}
		switch {
		case !complete:
			//cut by a crash in the middle of a write
			l.Torn++
		case line == "":
		case strings.HasPrefix(line, "# run "):
			l.Meta = parseMeta(line)
		case strings.HasPrefix(line, "# resume "):
			l.Resumes++
			l.Segments = append(l.Segments, len(l.Events))
		case strings.HasPrefix(line, "# end "):
			kv := fields(line)
			if n, err := strconv.ParseInt(kv["steps"], 10, 64); err == nil {
				l.Steps = n
			}
		case strings.HasPrefix(line, "#"):
		default:
			e, err := parseEvent(line, l.Legacy)
			if err != nil {
				l.Torn++
				continue
			}
			if elber {
				e.Bounced = false
			}
			l.Events = append(l.Events, e)
		}
	}
	if first {
		return nil, fmt.Errorf("%w: empty log", ErrBadHeader)
	}
	return l, nil
}

// Segment returns the events of segment i.
func (l *Log) Segment(i int) []Event {
	end := len(l.Events)
	if i+1 < len(l.Segments) {
		end = l.Segments[i+1]
	}
	return l.Events[l.Segments[i]:end]
}

func fields(line string) map[string]string {
	kv := make(map[string]string)
	for _, f := range strings.Fields(line) {
		if k, v, ok := strings.Cut(f, "="); ok {
			kv[k] = v
		}
	}
	return kv
}

func parseMeta(line string) Meta {
	kv := fields(line)
	m := Meta{RunID: kv["id"], Replica: kv["replica"]}
	m.Started, _ = time.Parse(time.RFC3339Nano, kv["started"])
	m.Timestep, _ = strconv.ParseFloat(kv["dt"], 64)
	return m
}
