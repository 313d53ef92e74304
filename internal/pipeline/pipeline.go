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

// Package pipeline wires the Hilbert mapper, CIDR map, time-bin aggregator,
// decay/residue store, and non-routable mask into a single Pipeline value
// that hands retired bins to a FrameSink (where the frame compositor runs):
// no process-wide mutable state, no singletons, every cache scoped to one
// run.
package pipeline

import (
	"io"

	"github.com/xtaci/heatviz/internal/autoscale"
	"github.com/xtaci/heatviz/internal/binning"
	"github.com/xtaci/heatviz/internal/cidrmap"
	"github.com/xtaci/heatviz/internal/config"
	"github.com/xtaci/heatviz/internal/coord"
	"github.com/xtaci/heatviz/internal/corerr"
	"github.com/xtaci/heatviz/internal/decay"
	"github.com/xtaci/heatviz/internal/hilbert"
	"github.com/xtaci/heatviz/internal/logparse"
	"github.com/xtaci/heatviz/internal/nonroutable"
)

// FrameSink receives one finalized bin, ready to be rendered and written.
// Implemented by the CLI driver (writes PPM files with sequential names);
// kept as an interface so tests can capture frames in memory instead.
type FrameSink interface {
	EmitFrame(b *binning.Bin, residue *decay.Residue, mask *nonroutable.Mask) error
}

// Pipeline owns every piece of mutable run state: the bin manager, decay
// cache, and residue map. The CIDR map and non-routable mask are read-only
// after construction and may be shared across Pipeline values.
type Pipeline struct {
	cfg     config.CoreConfig
	mapper  *coord.Mapper
	cidrMap *cidrmap.Map
	mask    *nonroutable.Mask

	manager *binning.Manager
	decay   *decay.Cache
	residue *decay.Residue

	sink FrameSink

	// Counters accumulated over the run, surfaced to internal/metrics and
	// to the final run summary.
	EventsTotal      uint64
	ParseWarnings    uint64
	FirstSeen        int64
	LastSeen         int64
	haveSeenAny      bool
	binsSinceCompact int
}

// New constructs a Pipeline for one run. cidrMapPath may be empty; a
// missing or unreadable CIDR map file is a warning (returned with Line 0 in
// the warnings slice), never fatal, and the mapper falls back to lossless
// Hilbert scaling for every address.
func New(cfg config.CoreConfig, sink FrameSink) (*Pipeline, []cidrmap.ParseWarning, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var cm *cidrmap.Map
	var warnings []cidrmap.ParseWarning
	if cfg.CIDRMapPath != "" {
		loaded, w, err := cidrmap.Load(cfg.CIDRMapPath)
		if err != nil {
			// unreadable CIDR map file: fall back to lossless scaling with a
			// warning, never a fatal error.
			cm = nil
			warnings = append(warnings, cidrmap.ParseWarning{Text: cfg.CIDRMapPath, Err: err})
		} else {
			cm = loaded
			warnings = w
		}
	}

	mapper, err := coord.New(cfg.HilbertOrder, cm)
	if err != nil {
		return nil, warnings, corerr.New(corerr.KindInvalidConfig, err)
	}

	n := hilbert.Dimension(cfg.HilbertOrder)
	manager, err := binning.NewManager(cfg.BinSeconds, n)
	if err != nil {
		return nil, warnings, err
	}

	p := &Pipeline{
		cfg:     cfg,
		mapper:  mapper,
		cidrMap: cm,
		mask:    nonroutable.Build(mapper, cfg.HilbertOrder),
		manager: manager,
		decay:   decay.NewCache(),
		residue: decay.NewResidue(n),
		sink:    sink,
	}
	return p, warnings, nil
}

// Ingest processes one parsed event through the full pipeline: map IP to a
// curve coordinate, route it to the correct bin, overlay decay onto any
// bin retired by this event's arrival, update the decay cache and residue
// map, and hand retired bins to the sink. Events are expected in
// non-decreasing timestamp order; out-of-order events are counted by the
// Manager, not rejected.
func (p *Pipeline) Ingest(ev logparse.Event) error {
	x, y := p.mapper.ToCoord(ev.SrcIP)

	retired, accepted := p.manager.Process(ev.TimestampSeconds, x, y)
	if retired != nil {
		if err := p.retire(retired); err != nil {
			return err
		}
	}

	if accepted {
		p.decay.Update(x, y, ev.TimestampSeconds, 1)
		p.residue.Mark(x, y)
	}

	if !p.haveSeenAny {
		p.FirstSeen = ev.TimestampSeconds
		p.haveSeenAny = true
	}
	p.LastSeen = ev.TimestampSeconds
	p.EventsTotal++
	return nil
}

func (p *Pipeline) retire(b *binning.Bin) error {
	p.decay.Overlay(b, p.cfg.DecaySeconds)

	p.binsSinceCompact++
	if p.binsSinceCompact >= decay.CompactEvery {
		p.decay.Compact(b.BinStart, p.cfg.DecaySeconds)
		p.binsSinceCompact = 0
	}

	if p.sink != nil {
		return p.sink.EmitFrame(b, p.residue, p.mask)
	}
	return nil
}

// Run drains events from src (one gzip-backed Source per input file, opened
// by the caller) until io.EOF. It does not flush the last in-progress bin;
// Finalize does that.
func (p *Pipeline) Run(src *logparse.Source, onWarning func(line string, err error)) error {
	src.OnWarning = func(line string, err error) {
		p.ParseWarnings++
		if onWarning != nil {
			onWarning(line, err)
		}
	}
	for {
		ev, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := p.Ingest(ev); err != nil {
			return err
		}
	}
	return nil
}

// Finalize flushes any in-progress bin (applying its decay overlay first)
// and returns the auto-scale governor's recommended fps and decay_seconds,
// if auto-scaling is enabled and the run observed a positive span. Both
// values are advisory only at this point: every bin has already been
// retired and handed to the sink with the statically configured
// cfg.DecaySeconds baked into its decay overlay, so the derived
// decay_seconds has nothing left to apply to in this single-pass run --
// it is reported for the driver to log or feed into a subsequent run, not
// reapplied here.
func (p *Pipeline) Finalize() (fps int, decaySeconds int64, err error) {
	if last := p.manager.Flush(); last != nil {
		if err := p.retire(last); err != nil {
			return 0, 0, err
		}
	}

	if p.cfg.AutoScale && p.haveSeenAny {
		if f, d, ok := autoscale.Derive(p.FirstSeen, p.LastSeen); ok {
			return f, d, nil
		}
	}
	return 0, 0, nil
}

// Mask exposes the precomputed non-routable mask, e.g. for a driver that
// wants to render a standalone legend frame.
func (p *Pipeline) Mask() *nonroutable.Mask {
	return p.mask
}

// Residue exposes the cumulative residue map for reporting/metrics.
func (p *Pipeline) Residue() *decay.Residue {
	return p.residue
}

// DecayCacheLen reports the live decay cache occupancy, for metrics.
func (p *Pipeline) DecayCacheLen() int {
	return p.decay.Len()
}

// Ordering reports the number of out-of-order events observed during the run.
func (p *Pipeline) Ordering() uint64 {
	return p.manager.Ordering
}
