/*
 * record_test.go, part of goMMVT
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
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvents(start int64, n int) []Event {
	evs := make([]Event, n)
	for i := range evs {
		idx := start + int64(i)
		evs[i] = Event{
			Milestone:   int(idx%6) + 1,
			Index:       idx,
			Time:        float64(idx+1) * 0.002,
			Step:        idx + 1,
			Source:      0,
			Destination: -1,
			From:        -1,
			To:          1,
			Bounced:     idx%2 == 0,
		}
	}
	return evs
}

func openFresh(t *testing.T, path string) *Recorder {
	t.Helper()
	r, err := Open(path, Options{Mode: Fresh, Meta: NewMeta(0.002, "0"), Logger: zerolog.Nop()})
	require.NoError(t, err)
	return r
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mmvt.txt")
	r := openFresh(t, path)
	want := testEvents(0, 25)
	for i := 0; i < len(want); i += 5 {
		require.NoError(t, r.Append(want[i:i+5]...))
	}
	assert.Equal(t, int64(25), r.NextIndex())
	require.NoError(t, r.Close(1000))

	l, err := ReadLog(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, l.Events); diff != "" {
		t.Errorf("events differ (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(1000), l.Steps)
	assert.Equal(t, "0", l.Meta.Replica)
	assert.Equal(t, 0.002, l.Meta.Timestep)
	assert.NotEmpty(t, l.Meta.RunID)
	assert.False(t, l.Meta.Started.IsZero())
	assert.Zero(t, l.Torn)
}

func TestAppendNothingIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mmvt.txt")
	r := openFresh(t, path)
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, r.Append())
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	require.NoError(t, r.Close(0))
}

func TestAppendRejectsReordering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mmvt.txt")
	r := openFresh(t, path)
	defer r.Close(0)
	evs := testEvents(0, 3)
	evs[1], evs[2] = evs[2], evs[1]
	assert.Error(t, r.Append(evs...))
	assert.Equal(t, int64(0), r.NextIndex(), "nothing was written")

	l, err := ReadLog(path)
	require.NoError(t, err)
	assert.Empty(t, l.Events)
}

func TestAppendAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mmvt.txt")
	r := openFresh(t, path)
	require.NoError(t, r.Close(0))
	assert.ErrorIs(t, r.Append(testEvents(0, 1)...), ErrClosed)
	assert.NoError(t, r.Close(0), "closing twice is harmless")
}

// An abrupt termination between appends loses nothing that was acknowledged,
// and a record torn in the middle of a write is cut off on resume.
func TestCrashAndResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mmvt.txt")
	r := openFresh(t, path)
	first := testEvents(0, 7)
	for _, e := range first {
		require.NoError(t, r.Append(e))
	}
	//the process dies: no trailer, and half a record on disk.
	require.NoError(t, r.f.Close())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.WriteString("3,7,0.016,8,0")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l, err := ReadLog(path)
	require.NoError(t, err)
	assert.Equal(t, first, l.Events)
	assert.Equal(t, 1, l.Torn)
	assert.Equal(t, int64(-1), l.Steps, "never closed")

	r, err = Open(path, Options{Mode: Resume, Meta: NewMeta(0.002, "0"), Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.NextIndex())
	second := testEvents(7, 4)
	require.NoError(t, r.Append(second...))
	require.NoError(t, r.Close(500))

	l, err = ReadLog(path)
	require.NoError(t, err)
	want := append(append([]Event(nil), first...), second...)
	if diff := cmp.Diff(want, l.Events); diff != "" {
		t.Errorf("events differ (-want +got):\n%s", diff)
	}
	assert.Zero(t, l.Torn)
	assert.Equal(t, 1, l.Resumes)
	assert.Equal(t, []int{0, 7}, l.Segments)
	assert.Len(t, l.Segment(1), 4)
	assert.Equal(t, int64(500), l.Steps)
}

// A cut that happens to leave three columns is not a seekr2 line.
func TestTornLineIsNeverAnEvent(t *testing.T) {
	for _, tail := range []string{"1,1,2.4", "1,1,2.4,", "1,1,0.004,2,0,-1,-1,1,1"} {
		t.Run(tail, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mmvt.txt")
			r := openFresh(t, path)
			require.NoError(t, r.Append(testEvents(0, 1)...))
			require.NoError(t, r.f.Close())
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
			require.NoError(t, err)
			_, err = f.WriteString(tail)
			require.NoError(t, err)
			require.NoError(t, f.Close())
			before, err := os.ReadFile(path)
			require.NoError(t, err)

			l, err := ReadLog(path)
			require.NoError(t, err)
			assert.Len(t, l.Events, 1)
			assert.Equal(t, 1, l.Torn)

			r, err = Open(path, Options{Mode: Resume, Meta: NewMeta(0.002, "0"), Logger: zerolog.Nop()})
			require.NoError(t, err)
			assert.Equal(t, int64(1), r.NextIndex())
			require.NoError(t, r.Append(testEvents(1, 1)...))
			require.NoError(t, r.Close(2))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotContains(t, string(data), string(before))
			assert.True(t, strings.HasPrefix(string(data), string(before[:len(before)-len(tail)])))
			l, err = ReadLog(path)
			require.NoError(t, err)
			if diff := cmp.Diff(testEvents(0, 2), l.Events); diff != "" {
				t.Errorf("events differ (-want +got):\n%s", diff)
			}
			assert.Zero(t, l.Torn)
		})
	}
}

func TestResumeRejectsSeekr2Log(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bounces.txt")
	in := LegacyHeader + "\n2,0,0.118\n"
	require.NoError(t, os.WriteFile(path, []byte(in), 0o644))
	_, err := Open(path, Options{Mode: Resume, Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrBadHeader)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, string(data))
}

func TestFreshTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mmvt.txt")
	r := openFresh(t, path)
	require.NoError(t, r.Append(testEvents(0, 3)...))
	require.NoError(t, r.Close(10))

	r = openFresh(t, path)
	assert.Equal(t, int64(0), r.NextIndex())
	require.NoError(t, r.Close(0))
	l, err := ReadLog(path)
	require.NoError(t, err)
	assert.Empty(t, l.Events)
}

func TestResumeMissingFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.txt")
	r, err := Open(path, Options{Mode: Resume, Meta: NewMeta(0.002, "1"), Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, r.Append(testEvents(0, 1)...))
	require.NoError(t, r.Close(1))
	l, err := ReadLog(path)
	require.NoError(t, err)
	assert.Len(t, l.Events, 1)
	assert.Equal(t, "1", l.Meta.Replica)
}

func TestResumeRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))
	_, err := Open(path, Options{Mode: Resume, Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrBadHeader)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data), "resume never modifies a foreign file")
}

func TestExclusiveOwnership(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("advisory locks are unix only")
	}
	path := filepath.Join(t.TempDir(), "mmvt.txt")
	r := openFresh(t, path)
	_, err := Open(path, Options{Mode: Resume, Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrLocked)
	require.NoError(t, r.Close(0))

	r2, err := Open(path, Options{Mode: Resume, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, r2.Close(0))
}

func TestParseSeekr2Lines(t *testing.T) {
	in := `#"Bounced boundary ID","bounce index","total time (ps)"
2,0,0.118
3,1,1.246
garbage
`
	l, err := parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.True(t, l.Legacy)
	require.Len(t, l.Events, 2)
	assert.Equal(t, Event{Milestone: 3, Index: 1, Time: 1.246, Bounced: true}, l.Events[1])
	assert.Equal(t, 1, l.Torn)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("resume")
	require.NoError(t, err)
	assert.Equal(t, Resume, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Fresh, m)
	_, err = ParseMode("delete")
	assert.Error(t, err)
}

func TestNoSourceMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elber.txt")
	r := openFresh(t, path)
	want := testEvents(0, 2)
	want[1].NoSource = true
	require.NoError(t, r.Append(want...))
	require.NoError(t, r.Close(2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n2*,1,0.004,")
	l, err := ReadLog(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, l.Events); diff != "" {
		t.Errorf("events differ (-want +got):\n%s", diff)
	}

	in := LegacyElberHeader + `
# An asterisk(*) indicates that source milestone was never crossed
4*,0,1.5
`
	l, err = parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, l.Events, 1)
	assert.True(t, l.Legacy)
	assert.Equal(t, Event{Milestone: 4, Time: 1.5, NoSource: true}, l.Events[0])
}

func TestNineColumnLogRejectsShortLines(t *testing.T) {
	in := Header + "\n2,0,0.118\n2,1,0.2,100,0,-1,-1,1,1\n"
	l, err := parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.False(t, l.Legacy)
	require.Len(t, l.Events, 1)
	assert.Equal(t, int64(1), l.Events[0].Index)
	assert.Equal(t, 1, l.Torn)
}
