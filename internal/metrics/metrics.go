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

// Package metrics periodically writes run counters to a CSV file on a
// ticker, the same shape as an SNMP-style periodic logger, repurposed here
// to pipeline ingest/bin counters.
package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is one row of counters sampled from the running pipeline.
type Snapshot struct {
	EventsTotal       uint64
	BinsWritten       uint64
	DecayCacheSize    int
	ResidueCount      uint64
	ResidueMax        uint32
	ParseWarnings     uint64
	OrderingAnomalies uint64
}

func (s Snapshot) header() []string {
	return []string{"events_total", "bins_written", "decay_cache_size", "residue_count", "residue_max", "parse_warnings", "ordering_anomalies"}
}

func (s Snapshot) row() []string {
	return []string{
		fmt.Sprint(s.EventsTotal),
		fmt.Sprint(s.BinsWritten),
		fmt.Sprint(s.DecayCacheSize),
		fmt.Sprint(s.ResidueCount),
		fmt.Sprint(s.ResidueMax),
		fmt.Sprint(s.ParseWarnings),
		fmt.Sprint(s.OrderingAnomalies),
	}
}

// Reporter writes a Snapshot to a CSV file every interval, as long as both
// path and interval are set; an empty path or non-positive interval
// disables reporting entirely.
type Reporter struct {
	Path     string
	Interval time.Duration
	Sample   func() Snapshot
}

// Run blocks, writing one row per tick until the stop channel closes.
func (r *Reporter) Run(stop <-chan struct{}) error {
	if r.Path == "" || r.Interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			if err := r.writeOnce(); err != nil {
				return err
			}
		}
	}
}

func (r *Reporter) writeOnce() error {
	// split path into dirname and filename, only format the filename --
	// lets callers embed a time layout like "metrics-20060102.csv" to roll
	// files daily.
	dir, file := filepath.Split(r.Path)
	fullPath := dir + time.Now().Format(file)

	f, err := os.OpenFile(fullPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return err
	}
	defer f.Close()

	snap := r.Sample()
	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write(append([]string{"unix"}, snap.header()...)); err != nil {
			return err
		}
	}
	if err := w.Write(append([]string{fmt.Sprint(time.Now().Unix())}, snap.row()...)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
