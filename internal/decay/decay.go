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

// Package decay implements the per-coordinate recency cache that fades
// recent-but-currently-quiet sources across frames, and the cumulative
// residue map that never decays. The cache is keyed on coord_key and backed
// by Go's builtin map rather than a flat array plus linear scan, as long as
// update-last-wins and overlay semantics are preserved.
package decay

import "github.com/xtaci/heatviz/internal/binning"

// MaxEntries bounds the decay cache; further inserts are dropped once full
// until a compaction pass runs.
const MaxEntries = 65536

// CompactEvery is the default compaction cadence: every N completed bins.
const CompactEvery = 10

type entry struct {
	lastSeen             int64
	accumulatedIntensity uint64
}

func coordKey(x, y uint32) uint32 {
	return (x << 16) | y
}

// Cache is the per-coordinate recency+intensity memory.
type Cache struct {
	entries map[uint32]*entry
}

// NewCache builds an empty decay cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[uint32]*entry)}
}

// Update records intensity units seen at (x,y) at time t. An existing
// entry has its last_seen overwritten and intensity added to its
// accumulated_intensity (update-last-wins). A new entry is appended only while the
// cache has room; once at MaxEntries, further misses are silently dropped
// until Compact runs.
func (c *Cache) Update(x, y uint32, t int64, intensity uint64) {
	key := coordKey(x, y)
	if e, ok := c.entries[key]; ok {
		e.lastSeen = t
		e.accumulatedIntensity += intensity
		return
	}
	if len(c.entries) >= MaxEntries {
		return
	}
	c.entries[key] = &entry{lastSeen: t, accumulatedIntensity: intensity}
}

// Compact removes entries whose age relative to now is negative (a future
// timestamp, treated as corrupt) or exceeds decaySeconds.
func (c *Cache) Compact(now, decaySeconds int64) {
	for key, e := range c.entries {
		age := now - e.lastSeen
		if age < 0 || age > decaySeconds {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of live entries, used by the metrics reporter.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Overlay adds decayed contributions from every live, non-expired entry
// onto b's heatmap, using b.BinStart as "now" for age computation -- unlike
// residue, which Mark() below records as each event arrives, with no clock
// at all; that asymmetry is preserved deliberately. A
// non-expired coordinate contributes at least 1 unit (the minimum-
// visibility floor) and never more than its accumulated intensity.
func (c *Cache) Overlay(b *binning.Bin, decaySeconds int64) {
	if decaySeconds <= 0 {
		return
	}
	n := uint64(b.N)
	for key, e := range c.entries {
		age := b.BinStart - e.lastSeen
		if age < 0 || age > decaySeconds {
			continue
		}
		f := 1.0 - float64(age)/float64(decaySeconds)
		v := uint64(float64(e.accumulatedIntensity) * f)
		if v == 0 && f > 0 {
			v = 1
		}
		x := key >> 16
		y := key & 0xFFFF
		idx := uint64(y)*n + uint64(x)
		if idx >= uint64(len(b.Heatmap)) {
			continue
		}
		b.Heatmap[idx] += uint32(v)
		if b.Heatmap[idx] > b.MaxIntensity {
			b.MaxIntensity = b.Heatmap[idx]
		}
	}
}

// Residue is the dense, monotonically non-decreasing cumulative-volume grid
// parallel to a bin's heatmap, the persistent memory of where attacks ever
// originated during a run.
type Residue struct {
	N         uint32
	counts    []uint32
	Count     uint64 // #{cells with value > 0}
	MaxVolume uint32
}

// NewResidue allocates a zeroed residue grid for an n x n curve.
func NewResidue(n uint32) *Residue {
	return &Residue{N: n, counts: make([]uint32, uint64(n)*uint64(n))}
}

// Mark increments the residue count at (x,y), the event's own timestamp
// never entering this computation -- residue is keyed purely on the spatial
// coordinate, unlike the decay cache's last_seen bookkeeping.
func (r *Residue) Mark(x, y uint32) {
	if x >= r.N || y >= r.N {
		return
	}
	idx := uint64(y)*uint64(r.N) + uint64(x)
	if r.counts[idx] == 0 {
		r.Count++
	}
	r.counts[idx]++
	if r.counts[idx] > r.MaxVolume {
		r.MaxVolume = r.counts[idx]
	}
}

// At returns the residue value at cell index i (row-major, y*n+x).
func (r *Residue) At(i uint64) uint32 {
	return r.counts[i]
}

// Len returns n*n, the number of cells in the grid.
func (r *Residue) Len() int {
	return len(r.counts)
}
