/*
 * recorder.go, part of goMMVT
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
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Options configures Open.
type Options struct {
	Mode   Mode
	Meta   Meta
	Logger zerolog.Logger
}

// Recorder is the only writer of a crossing log.
type Recorder struct {
	path   string
	f      *os.File
	next   int64
	buf    []byte
	closed bool
	log    zerolog.Logger
}

// Open opens the log at path for exclusive writing. In Fresh mode an
// existing log is truncated; in Resume mode it is kept, its header is
// checked and the event numbering continues after its last event.
// A torn last line (from a crash in the middle of a write) is cut off, so
// the log goes back to its last complete record.
func Open(path string, opts Options) (*Recorder, error) {
	_, statErr := os.Stat(path)
	created := errors.Is(statErr, fs.ErrNotExist)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("record: opening %s: %w", path, err)
	}
	if err := lock(f); err != nil {
		f.Close()
		return nil, err
	}
	r := &Recorder{path: path, f: f, log: opts.Logger}
	if err := r.init(opts, created); err != nil {
		unlock(f)
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) init(opts Options, created bool) error {
	var head bytes.Buffer
	switch opts.Mode {
	case Fresh:
		if err := r.f.Truncate(0); err != nil {
			return fmt.Errorf("record: truncating %s: %w", r.path, err)
		}
		head.WriteString(Header + "\n")
		head.WriteString(opts.Meta.line("run"))
		if !created {
			r.log.Info().Str("path", r.path).Msg("previous crossing log truncated (fresh run)")
		}
	case Resume:
		data, err := os.ReadFile(r.path)
		if err != nil {
			return fmt.Errorf("record: reading %s: %w", r.path, err)
		}
		if len(data) == 0 {
			head.WriteString(Header + "\n")
			head.WriteString(opts.Meta.line("run"))
			break
		}
		l, err := parse(bytes.NewReader(data))
		if err != nil {
			return err
		}
		if l.Legacy {
			return fmt.Errorf("%w: %s is a three-column seekr2 log", ErrBadHeader, r.path)
		}
		if n := len(l.Events); n > 0 {
			r.next = l.Events[n-1].Index + 1
		}
		if end := int64(bytes.LastIndexByte(data, '\n')) + 1; end < int64(len(data)) {
			if err := r.f.Truncate(end); err != nil {
				return fmt.Errorf("record: cutting torn record of %s: %w", r.path, err)
			}
			r.log.Warn().Str("path", r.path).Int("bytes", len(data)-int(end)).Msg("torn record at the end of the crossing log removed")
		}
		head.WriteString(opts.Meta.line("resume"))
		r.log.Info().Str("path", r.path).Int64("next_index", r.next).Msg("resuming crossing log")
	default:
		return fmt.Errorf("record: unknown mode %d", opts.Mode)
	}
	if err := r.write(head.Bytes()); err != nil {
		return err
	}
	if created {
		if err := syncDir(r.path); err != nil {
			return fmt.Errorf("record: syncing directory of %s: %w", r.path, err)
		}
	}
	return nil
}

// write writes b with a single call and syncs the file.
func (r *Recorder) write(b []byte) error {
	if _, err := r.f.Write(b); err != nil {
		return fmt.Errorf("record: writing %s: %w", r.path, err)
	}
	if err := r.f.Sync(); err != nil {
		return fmt.Errorf("record: syncing %s: %w", r.path, err)
	}
	return nil
}

// Path returns the log file name.
func (r *Recorder) Path() string {
	return r.path
}

// NextIndex returns the index the next appended event must carry.
func (r *Recorder) NextIndex() int64 {
	return r.next
}

// Append durably writes the events, in order, with one write and one sync.
// Indexes must continue the log's numbering. Appending nothing is a no-op.
func (r *Recorder) Append(evs ...Event) error {
	if r.closed {
		return ErrClosed
	}
	if len(evs) == 0 {
		return nil
	}
	r.buf = r.buf[:0]
	for i, e := range evs {
		if want := r.next + int64(i); e.Index != want {
			return fmt.Errorf("record: event index %d out of order, expected %d", e.Index, want)
		}
		r.buf = appendEvent(r.buf, e)
	}
	if err := r.write(r.buf); err != nil {
		return err
	}
	r.next += int64(len(evs))
	return nil
}

// Close writes the end-of-run trailer with the total number of steps and
// releases the log.
func (r *Recorder) Close(totalSteps int64) error {
	if r.closed {
		return nil
	}
	r.closed = true
	trailer := "# end steps=" + strconv.FormatInt(totalSteps, 10) + " at=" + time.Now().UTC().Format(time.RFC3339Nano) + "\n"
	werr := r.write([]byte(trailer))
	unlock(r.f)
	cerr := r.f.Close()
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return fmt.Errorf("record: closing %s: %w", r.path, cerr)
	}
	return nil
}
