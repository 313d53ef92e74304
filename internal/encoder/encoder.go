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

// Package encoder shells out to ffmpeg to stitch the written PPM frames
// into a video. This step is advisory: failure is a warning, never a run
// failure, and the PPM frames on disk remain valid either way.
package encoder

import (
	"context"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"

	"github.com/xtaci/heatviz/internal/corerr"
)

// binName is the encoder executable; overridden in tests to exercise the
// failure path without requiring ffmpeg on the test machine.
var binName = "ffmpeg"

// Encode invokes ffmpeg against framePattern (a printf-style glob such as
// "out/frame_%04d.ppm") at fps frames per second, writing outPath. A
// non-zero exit or a missing ffmpeg binary is wrapped as an
// EncoderFailure-kind error; callers should log it and continue, never
// abort the run on it.
func Encode(ctx context.Context, framePattern, outPath string, fps int) error {
	if fps <= 0 {
		fps = 1
	}
	cmd := exec.CommandContext(ctx, binName,
		"-y",
		"-framerate", strconv.Itoa(fps),
		"-i", framePattern,
		"-pix_fmt", "yuv420p",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return corerr.New(corerr.KindEncoderFailure, errors.Wrapf(err, "ffmpeg: %s", out))
	}
	return nil
}
