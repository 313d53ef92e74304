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

// Package binning assigns (timestamp, x, y) events into wall-clock-aligned
// time bins and drives the bin lifecycle state machine
// {absent, active, finalized, emitted}.
package binning

import "github.com/xtaci/heatviz/internal/corerr"

// Bin is one fixed-duration, epoch-aligned bucket carrying a dense
// intensity grid over the n x n curve.
type Bin struct {
	BinStart     int64
	BinEnd       int64
	N            uint32
	Heatmap      []uint32
	EventCount   uint64
	UniqueCells  uint64
	MaxIntensity uint32
	finalized    bool
}

func newBin(binStart, binSeconds int64, n uint32) *Bin {
	return &Bin{
		BinStart: binStart,
		BinEnd:   binStart + binSeconds,
		N:        n,
		Heatmap:  make([]uint32, uint64(n)*uint64(n)),
	}
}

// finalize computes UniqueCells from the heatmap and marks the bin
// immutable. Called once, before the decay overlay and the compositor see
// it, the active->finalized transition.
func (b *Bin) finalize() {
	if b.finalized {
		return
	}
	var unique uint64
	for _, v := range b.Heatmap {
		if v > 0 {
			unique++
		}
	}
	b.UniqueCells = unique
	b.finalized = true
}

// BinStartFor floors t to the nearest lower multiple of binSeconds, the
// epoch-aligned bucket boundary shared by every bin in a run.
func BinStartFor(t, binSeconds int64) int64 {
	return (t / binSeconds) * binSeconds
}

// Manager owns at most one live bin plus run-wide bin-count bookkeeping. It
// does not own the decay cache or residue map -- those belong to the
// encompassing Pipeline value, which calls Overlay/Mark itself around
// Process so this package stays ignorant of decay/residue semantics.
type Manager struct {
	binSeconds int64
	n          uint32

	current *Bin

	TotalBins   uint64
	BinsWritten uint64

	// Ordering counts out-of-order events observed.
	Ordering uint64
}

// NewManager constructs a Manager for the given bin duration and curve
// dimension n.
func NewManager(binSeconds int64, n uint32) (*Manager, error) {
	if binSeconds <= 0 {
		return nil, corerr.Newf(corerr.KindInvalidConfig, "bin_seconds must be positive, got %d", binSeconds)
	}
	return &Manager{binSeconds: binSeconds, n: n}, nil
}

// Process routes one event into the current bin, retiring the previous bin
// first if t crosses a bin boundary. The caller is responsible for applying
// the decay overlay and marking residue around the returned retired bin
// before passing it on (the Manager itself does not know about decay/residue,
// see Pipeline.Ingest).
//
// Returns the retired bin (non-nil only on a boundary crossing) and whether
// the event's (x,y) fell inside [0,n)^2 and was recorded.
func (m *Manager) Process(t int64, x, y uint32) (retired *Bin, accepted bool) {
	start := BinStartFor(t, m.binSeconds)

	if m.current != nil && start < m.current.BinStart {
		// an out-of-order event is treated as an anomaly that forces
		// premature closure of the current bin rather than silently
		// reordering history.
		m.Ordering++
	}

	if m.current == nil || start != m.current.BinStart {
		if m.current != nil {
			retired = m.retireCurrent()
		}
		m.current = newBin(start, m.binSeconds, m.n)
		m.TotalBins++
	}

	if x >= m.n || y >= m.n {
		return retired, false
	}

	idx := uint64(y)*uint64(m.n) + uint64(x)
	m.current.Heatmap[idx]++
	m.current.EventCount++
	if m.current.Heatmap[idx] > m.current.MaxIntensity {
		m.current.MaxIntensity = m.current.Heatmap[idx]
	}
	return retired, true
}

func (m *Manager) retireCurrent() *Bin {
	b := m.current
	b.finalize()
	m.current = nil
	m.BinsWritten++
	return b
}

// Flush finalizes and returns the in-progress bin at end-of-stream, or nil
// if no bin is live. The same active->finalized transition as a normal
// boundary crossing, just triggered by end-of-stream instead.
func (m *Manager) Flush() *Bin {
	if m.current == nil {
		return nil
	}
	return m.retireCurrent()
}

// Current exposes the live bin, or nil when no bin is live. The pipeline
// does not use it: it marks residue and updates the decay cache by (x,y)
// on every accepted event, without touching the live bin.
func (m *Manager) Current() *Bin {
	return m.current
}
