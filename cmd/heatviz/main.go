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

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli"

	"github.com/xtaci/heatviz/internal/binning"
	"github.com/xtaci/heatviz/internal/compositor"
	"github.com/xtaci/heatviz/internal/config"
	"github.com/xtaci/heatviz/internal/corerr"
	"github.com/xtaci/heatviz/internal/decay"
	"github.com/xtaci/heatviz/internal/encoder"
	"github.com/xtaci/heatviz/internal/logparse"
	"github.com/xtaci/heatviz/internal/metrics"
	"github.com/xtaci/heatviz/internal/nonroutable"
	"github.com/xtaci/heatviz/internal/pipeline"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "heatviz"
	myApp.Usage = "render a honeypot/security log stream into a Hilbert-curve heatmap video"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "input",
			Usage: "path to a gzip-compressed log file",
		},
		cli.StringFlag{
			Name:  "frames-dir",
			Value: "frames",
			Usage: "directory frame_NNNNNN.ppm files are written to",
		},
		cli.StringFlag{
			Name:  "out",
			Value: "out.mp4",
			Usage: "final video path passed to ffmpeg",
		},
		cli.StringFlag{
			Name:  "cidr-map",
			Usage: "optional CIDR map file for geographic X-band pinning",
		},
		cli.StringFlag{
			Name:  "bin-seconds",
			Value: "60s",
			Usage: "time bin width, as <n>[s|m|h]",
		},
		cli.IntFlag{
			Name:  "hilbert-order",
			Value: 12,
			Usage: "Hilbert curve order k, 4 <= k <= 16",
		},
		cli.StringFlag{
			Name:  "decay-seconds",
			Value: "10800s",
			Usage: "decay cache window, as <n>[s|m|h]",
		},
		cli.IntFlag{
			Name:  "viz-width",
			Value: 3440,
			Usage: "output frame width in pixels",
		},
		cli.IntFlag{
			Name:  "viz-height",
			Value: 1440,
			Usage: "output frame height in pixels",
		},
		cli.IntFlag{
			Name:  "target-video-duration",
			Value: 300,
			Usage: "target video duration in seconds, 10..3600 (range-checked only; the auto-scaled fps does not depend on it)",
		},
		cli.BoolTFlag{
			Name:  "auto-scale",
			Usage: "derive fps/decay_seconds from the observed timestamp span (on by default; --auto-scale=false disables)",
		},
		cli.BoolFlag{
			Name:  "show-timestamp",
			Usage: "burn a timestamp strip into the bottom of each frame",
		},
		cli.BoolFlag{
			Name:  "encode",
			Usage: "invoke ffmpeg on the written frames once ingestion finishes",
		},
		cli.IntFlag{
			Name:  "fps",
			Value: 30,
			Usage: "encoder frame rate, overridden by auto-scale if enabled",
		},
		cli.StringFlag{
			Name:  "metrics-path",
			Usage: "optional CSV path for periodic run counters",
		},
		cli.StringFlag{
			Name:  "metrics-interval",
			Value: "5s",
			Usage: "metrics sampling interval, as <n>[s|m|h]",
		},
	}

	myApp.Action = runAction
	if err := myApp.Run(os.Args); err != nil {
		os.Exit(exitCode(err))
	}
}

func runAction(c *cli.Context) error {
	cfg := config.Default()

	binSeconds, err := config.ParseDuration(c.String("bin-seconds"))
	if err != nil {
		return err
	}
	cfg.BinSeconds = int64(binSeconds.Seconds())
	cfg.HilbertOrder = uint(c.Int("hilbert-order"))
	decaySeconds, err := config.ParseDuration(c.String("decay-seconds"))
	if err != nil {
		return err
	}
	cfg.DecaySeconds = int64(decaySeconds.Seconds())
	cfg.VizWidth = c.Int("viz-width")
	cfg.VizHeight = c.Int("viz-height")
	cfg.TargetVideoDuration = c.Int("target-video-duration")
	cfg.AutoScale = c.BoolT("auto-scale")
	cfg.ShowTimestamp = c.Bool("show-timestamp")
	cfg.CIDRMapPath = c.String("cidr-map")

	if err := cfg.Validate(); err != nil {
		return err
	}

	if c.String("input") == "" {
		return corerr.Newf(corerr.KindInvalidConfig, "--input is required")
	}

	framesDir := c.String("frames-dir")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return corerr.New(corerr.KindIOError, err)
	}

	sink := &fileSink{dir: framesDir, width: cfg.VizWidth, height: cfg.VizHeight, showTimestamp: cfg.ShowTimestamp}

	p, warnings, err := pipeline.New(cfg, sink)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Println("cidr map warning:", w)
	}

	log.Println("version:", VERSION)
	log.Println("input:", c.String("input"))
	log.Println("bin_seconds:", cfg.BinSeconds)
	log.Println("hilbert_order:", cfg.HilbertOrder)
	log.Println("decay_seconds:", cfg.DecaySeconds)
	log.Println("viz:", cfg.VizWidth, "x", cfg.VizHeight)
	log.Println("auto_scale:", cfg.AutoScale)

	src, err := logparse.Open(c.String("input"))
	if err != nil {
		return err
	}
	defer src.Close()

	stopMetrics := make(chan struct{})
	if path := c.String("metrics-path"); path != "" {
		interval, err := config.ParseDuration(c.String("metrics-interval"))
		if err != nil {
			return err
		}
		reporter := &metrics.Reporter{
			Path:     path,
			Interval: interval,
			Sample: func() metrics.Snapshot {
				return metrics.Snapshot{
					EventsTotal:       p.EventsTotal,
					BinsWritten:       sink.count,
					DecayCacheSize:    p.DecayCacheLen(),
					ResidueCount:      p.Residue().Count,
					ResidueMax:        p.Residue().MaxVolume,
					ParseWarnings:     p.ParseWarnings,
					OrderingAnomalies: p.Ordering(),
				}
			},
		}
		go func() {
			if err := reporter.Run(stopMetrics); err != nil {
				log.Println("metrics reporter:", err)
			}
		}()
	}

	var warnCount int
	if err := p.Run(src, func(line string, parseErr error) {
		warnCount++
		if warnCount <= 20 {
			log.Println("skipping unparseable line:", parseErr)
		}
	}); err != nil {
		close(stopMetrics)
		return err
	}
	close(stopMetrics)

	fps, autoScaledDecaySeconds, err := p.Finalize()
	if err != nil {
		return err
	}
	if fps == 0 {
		fps = c.Int("fps")
	}

	log.Println("events_total:", p.EventsTotal)
	log.Println("parse_warnings:", p.ParseWarnings)
	log.Println("ordering_anomalies:", p.Ordering())
	log.Println("frames_written:", sink.count)
	log.Println("fps:", fps)
	if autoScaledDecaySeconds > 0 {
		// advisory only: every bin was already retired with cfg.DecaySeconds
		// baked into its decay overlay, so this value has nothing left to
		// apply to in this run -- it's a recommendation for the next one.
		log.Println("auto_scaled_decay_seconds:", autoScaledDecaySeconds)
	}

	if c.Bool("encode") {
		pattern := filepath.Join(framesDir, "frame_%06d.ppm")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := encoder.Encode(ctx, pattern, c.String("out"), fps); err != nil {
			// advisory: frames on disk remain valid even if ffmpeg fails.
			log.Println("encoder:", err)
		}
	}

	return nil
}

// fileSink renders each retired bin through the compositor and writes it as
// a sequentially-numbered PPM frame, the concrete FrameSink the CLI wires
// into the Pipeline.
type fileSink struct {
	dir           string
	width, height int
	showTimestamp bool
	count         uint64
}

func (s *fileSink) EmitFrame(b *binning.Bin, residue *decay.Residue, mask *nonroutable.Mask) error {
	img := compositor.Render(b, residue, mask, s.width, s.height, s.showTimestamp)
	name := filepath.Join(s.dir, fmt.Sprintf("frame_%06d.ppm", s.count))
	f, err := os.Create(name)
	if err != nil {
		return corerr.New(corerr.KindIOError, err)
	}
	defer f.Close()
	if err := compositor.WritePPM(f, img); err != nil {
		return corerr.New(corerr.KindIOError, err)
	}
	s.count++
	return nil
}

// exitCode maps a corerr.Kind to a process exit status: 0 on success,
// non-zero on allocation failure, invalid option value, or unreadable
// input. EncoderFailure never reaches here -- runAction logs and swallows
// it, since an ffmpeg failure is advisory, not a run failure.
func exitCode(err error) int {
	var ce *corerr.Error
	if errors.As(err, &ce) {
		switch ce.Kind {
		case corerr.KindInvalidConfig:
			return 2
		case corerr.KindIOError:
			return 3
		case corerr.KindResource:
			return 4
		}
	}
	log.Println(err)
	return 1
}
