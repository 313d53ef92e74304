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

// Package config holds the immutable CoreConfig value threaded through the
// pipeline at construction time -- no process-wide mutable configuration,
// no singletons.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/xtaci/heatviz/internal/corerr"
	"github.com/xtaci/heatviz/internal/hilbert"
)

// CoreConfig is the full set of enumerated options the core consumes.
type CoreConfig struct {
	BinSeconds          int64
	HilbertOrder        uint
	DecaySeconds        int64
	VizWidth            int
	VizHeight           int
	TargetVideoDuration int
	AutoScale           bool
	ShowTimestamp       bool
	CIDRMapPath         string
}

// Default returns the option defaults for a heatmap rendering run.
func Default() CoreConfig {
	return CoreConfig{
		BinSeconds:          60,
		HilbertOrder:        12,
		DecaySeconds:        10800,
		VizWidth:            3440,
		VizHeight:           1440,
		TargetVideoDuration: 300,
		AutoScale:           true,
		ShowTimestamp:       false,
	}
}

// ParseDuration parses the "<n>[s|m|h]" textual form used for bin_seconds
// and decay_seconds flags: a case-insensitive suffix, or a bare integer
// meaning seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, corerr.Newf(corerr.KindInvalidConfig, "empty duration")
	}

	lower := strings.ToLower(s)
	unit := time.Second
	numPart := lower
	switch {
	case strings.HasSuffix(lower, "s"):
		unit = time.Second
		numPart = lower[:len(lower)-1]
	case strings.HasSuffix(lower, "m"):
		unit = time.Minute
		numPart = lower[:len(lower)-1]
	case strings.HasSuffix(lower, "h"):
		unit = time.Hour
		numPart = lower[:len(lower)-1]
	}

	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil || n <= 0 {
		return 0, corerr.Newf(corerr.KindInvalidConfig, "malformed duration %q", s)
	}
	return time.Duration(n) * unit, nil
}

// Validate rejects out-of-range option values, returning InvalidConfig.
func (c CoreConfig) Validate() error {
	if c.BinSeconds <= 0 {
		return corerr.Newf(corerr.KindInvalidConfig, "bin_seconds must be positive, got %d", c.BinSeconds)
	}
	if err := hilbert.CheckOrder(c.HilbertOrder); err != nil {
		return corerr.New(corerr.KindInvalidConfig, err)
	}
	if c.DecaySeconds <= 0 {
		return corerr.Newf(corerr.KindInvalidConfig, "decay_seconds must be positive, got %d", c.DecaySeconds)
	}
	if c.VizWidth <= 0 || c.VizHeight <= 0 {
		return corerr.Newf(corerr.KindInvalidConfig, "viz_width/viz_height must be positive, got %dx%d", c.VizWidth, c.VizHeight)
	}
	if c.TargetVideoDuration < 10 || c.TargetVideoDuration > 3600 {
		return corerr.Newf(corerr.KindInvalidConfig, "target_video_duration must be in [10,3600], got %d", c.TargetVideoDuration)
	}
	return nil
}
