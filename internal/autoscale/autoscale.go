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

// Package autoscale derives the output frame rate and decay window from the
// observed span of a run's timestamps: "1 day -> 3 FPS, 3h decay" is the
// baseline ratio.
package autoscale

import "math"

const (
	minFPS             = 1
	maxFPS             = 120
	minDecaySeconds    = 3600
	fpsPerDay          = 3.0
	decaySecondsPerDay = 3.0 * 3600.0
	secondsPerDay      = 86400.0
)

// Derive computes (fps, decay_seconds) from the first and last event
// timestamps observed in a run. If the span is zero or negative, ok is
// false and the caller should keep its configured defaults rather than
// auto-scaling.
func Derive(firstSeen, lastSeen int64) (fps int, decaySeconds int64, ok bool) {
	spanDays := float64(lastSeen-firstSeen) / secondsPerDay
	if spanDays <= 0 {
		return 0, 0, false
	}

	fps = clampFPS(int(math.Round(fpsPerDay * spanDays)))
	decaySeconds = int64(math.Max(minDecaySeconds, math.Floor(decaySecondsPerDay*spanDays)))
	return fps, decaySeconds, true
}

func clampFPS(fps int) int {
	if fps < minFPS {
		return minFPS
	}
	if fps > maxFPS {
		return maxFPS
	}
	return fps
}
