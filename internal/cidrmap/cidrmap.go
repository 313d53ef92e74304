// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package cidrmap implements the longest-prefix CIDR -> timezone-band
// override consulted by the IP->coordinate mapper. Entries are loaded once
// from a text file, sorted for deterministic longest-prefix resolution, and
// looked up through a small direct-mapped cache with negative caching.
package cidrmap

import (
	"bufio"
	"io"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/xtaci/heatviz/internal/corerr"
)

// cacheSize is the number of slots in the direct-mapped IP lookup cache,
// indexed on ip&0xFF.
const cacheSize = 256

// Entry is one CIDR -> timezone/X-range override.
type Entry struct {
	Network   uint32
	PrefixLen int
	Mask      uint32
	TZOffset  int
	XStart    uint32
	XEnd      uint32
}

// covers reports whether ip falls inside this entry's network/mask.
func (e *Entry) covers(ip uint32) bool {
	return ip&e.Mask == e.Network
}

// ParseWarning describes a single skipped line from a CIDR map file.
type ParseWarning struct {
	Line int
	Text string
	Err  error
}

func (w ParseWarning) String() string {
	return errors.Wrapf(w.Err, "line %d: %q", w.Line, w.Text).Error()
}

// cacheSlot holds a cached lookup result; an empty slot (valid==false) has
// never been populated, which is distinct from a populated negative result
// (valid==true, entry==nil).
type cacheSlot struct {
	valid bool
	key   uint32
	entry *Entry
}

// Map is the sorted, longest-prefix-first CIDR table plus its lookup cache.
type Map struct {
	entries []Entry
	cache   [cacheSize]cacheSlot
}

// Load parses a CIDR map text file: blank lines and lines starting with
// '#' are ignored; every other line must be "NET/PFX TZ XSTART XEND".
// Unparseable lines are skipped and reported as warnings, never fatal. The
// file is read once into memory and then walked twice (two-phase load):
// once to count the non-blank, non-comment lines so the entry slice can be
// allocated exactly once, once to parse and fill it.
func Load(path string) (*Map, []ParseWarning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, corerr.New(corerr.KindIOError, errors.Wrapf(err, "opening cidr map %s", path))
	}
	defer f.Close()

	lines, err := readLines(f)
	if err != nil {
		return nil, nil, corerr.New(corerr.KindIOError, errors.Wrapf(err, "reading cidr map %s", path))
	}

	// phase 1: count candidate (non-blank, non-comment) lines so the backing
	// array is allocated once; unparseable ones only make it an upper bound.
	count := 0
	for _, ln := range lines {
		if skippable(ln) {
			continue
		}
		count++
	}

	m := &Map{entries: make([]Entry, 0, count)}
	var warnings []ParseWarning
	for i, ln := range lines {
		if skippable(ln) {
			continue
		}
		e, err := parseLine(ln)
		if err != nil {
			warnings = append(warnings, ParseWarning{Line: i + 1, Text: ln, Err: err})
			continue
		}
		m.entries = append(m.entries, e)
	}

	sortEntries(m.entries)
	return m, warnings, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

func skippable(line string) bool {
	t := strings.TrimSpace(line)
	return t == "" || strings.HasPrefix(t, "#")
}

func parseLine(line string) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return Entry{}, errors.Errorf("expected 4 fields, got %d", len(fields))
	}

	network, prefixLen, err := parseCIDR(fields[0])
	if err != nil {
		return Entry{}, err
	}

	tz, err := strconv.Atoi(fields[1])
	if err != nil || tz < -12 || tz > 14 {
		return Entry{}, errors.Errorf("invalid tz offset %q", fields[1])
	}

	xs, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "invalid x_start %q", fields[2])
	}
	xe, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "invalid x_end %q", fields[3])
	}
	if xs >= xe {
		return Entry{}, errors.Errorf("x_start %d must be < x_end %d", xs, xe)
	}

	mask := maskForPrefix(prefixLen)
	if network&mask != network {
		return Entry{}, errors.Errorf("%s is not canonical for /%d", fields[0], prefixLen)
	}

	return Entry{
		Network:   network,
		PrefixLen: prefixLen,
		Mask:      mask,
		TZOffset:  tz,
		XStart:    uint32(xs),
		XEnd:      uint32(xe),
	}, nil
}

func parseCIDR(s string) (network uint32, prefixLen int, err error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("missing prefix length in %q", s)
	}
	ip := net.ParseIP(parts[0]).To4()
	if ip == nil {
		return 0, 0, errors.Errorf("invalid IPv4 address %q", parts[0])
	}
	p, err := strconv.Atoi(parts[1])
	if err != nil || p < 0 || p > 32 {
		return 0, 0, errors.Errorf("invalid prefix length %q", parts[1])
	}
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3]), p, nil
}

func maskForPrefix(prefixLen int) uint32 {
	if prefixLen == 0 {
		return 0
	}
	return ^uint32(0) << (32 - prefixLen)
}

// sortEntries orders by prefix_len descending, then network ascending, so
// that a linear scan finds the longest-prefix match first and ties resolve
// deterministically.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PrefixLen != entries[j].PrefixLen {
			return entries[i].PrefixLen > entries[j].PrefixLen
		}
		return entries[i].Network < entries[j].Network
	})
}

// Find returns the entry covering ip with the largest prefix length, or
// (nil, false) if no entry covers it. Results -- including explicit
// negative results -- are cached in a 256-slot direct-mapped cache keyed on
// ip&0xFF; a lookup of a different ip that maps to an occupied slot
// overwrites it, not a collision error.
func (m *Map) Find(ip uint32) (*Entry, bool) {
	slotIdx := ip & 0xFF
	slot := &m.cache[slotIdx]
	if slot.valid && slot.key == ip {
		return slot.entry, slot.entry != nil
	}

	var found *Entry
	for i := range m.entries {
		if m.entries[i].covers(ip) {
			found = &m.entries[i]
			break
		}
	}

	*slot = cacheSlot{valid: true, key: ip, entry: found}
	return found, found != nil
}

// Len reports the number of entries after loading.
func (m *Map) Len() int {
	return len(m.entries)
}

// Empty reports whether the map has no entries, the trigger for the
// IP->coordinate mapper's unconditional fall-through to lossless scaling.
func (m *Map) Empty() bool {
	return len(m.entries) == 0
}
