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

// Package compositor converts one finalized time bin plus the decay/residue
// overlay state into an RGB pixel grid and frames it as a PPM (P6) file.
package compositor

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/xtaci/heatviz/internal/binning"
	"github.com/xtaci/heatviz/internal/decay"
	"github.com/xtaci/heatviz/internal/nonroutable"
)

// residueColor is the fixed dark-gray rendered when a cell has gone quiet
// but still carries cumulative residue.
var residueColor = color.RGBA{R: 54, G: 54, B: 54, A: 255}

// nonRoutableBaseline is the dim-blue baseline for masked cells with no
// current intensity.
var nonRoutableBaseline = color.RGBA{R: 0, G: 0, B: 30, A: 255}

// timestampStripHeight is the fixed height of the optional timestamp strip
// appended below the rendered curve.
const timestampStripHeight = 30

// Render draws one finalized bin plus overlay state into an RGBA image of
// size (w, h), optionally followed by a timestampStripHeight-pixel strip
// rendering bin.BinStart in local time. The n*n curve grid is colored one
// cell at a time, then blitted into the largest centered (w,h) square with
// draw.NearestNeighbor.Scale -- the actual upscale, not just the solid
// background fill, goes through golang.org/x/image/draw.
func Render(b *binning.Bin, residue *decay.Residue, mask *nonroutable.Mask, w, h int, showTimestamp bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h+boolToInt(showTimestamp)*timestampStripHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	n := b.N
	scale := float64(w)
	if h < w {
		scale = float64(h)
	}
	scale /= float64(n)

	squareSide := int(float64(n) * scale)
	offsetX := (w - squareSide) / 2
	offsetY := (h - squareSide) / 2

	cells := image.NewRGBA(image.Rect(0, 0, int(n), int(n)))
	for y := uint32(0); y < n; y++ {
		for x := uint32(0); x < n; x++ {
			idx := uint64(y)*uint64(n) + uint64(x)
			cells.SetRGBA(int(x), int(y), pixelColor(b, residue, mask, idx))
		}
	}

	if squareSide > 0 {
		dstRect := image.Rect(offsetX, offsetY, offsetX+squareSide, offsetY+squareSide)
		draw.NearestNeighbor.Scale(img, dstRect, cells, cells.Bounds(), draw.Src, nil)
	}

	if showTimestamp {
		drawTimestampStrip(img, w, h, b.BinStart)
	}

	return img
}

func pixelColor(b *binning.Bin, residue *decay.Residue, mask *nonroutable.Mask, idx uint64) color.RGBA {
	intensity := b.Heatmap[idx]
	peak := b.MaxIntensity

	residueShown := false
	var c color.RGBA
	if intensity == 0 && residue != nil && residue.At(idx) > 0 {
		c = residueColor
		residueShown = true
	} else {
		c = gradient(intensity, peak)
	}

	if mask != nil && mask.At(idx) && !residueShown {
		if intensity == 0 {
			c = nonRoutableBaseline
		} else {
			c = blend(c, nonRoutableBaseline, 0.6)
		}
	}
	return c
}

// gradient maps an intensity I against the bin's peak M to an RGB color: a
// 50%-brightness floor so a single hit is visible against black, then a
// two-segment white->yellow->red ramp that carries relative volume as hue.
func gradient(i, m uint32) color.RGBA {
	if i == 0 {
		return color.RGBA{A: 255}
	}
	denom := m
	if denom < 1 {
		denom = 1
	}
	r := float64(i) / float64(denom)
	e := clamp(0.5+0.5*r, 0.5, 1.0)
	t := (e - 0.5) / 0.5

	if t < 0.5 {
		b := uint8(255 * (1 - 2*t))
		return color.RGBA{R: 255, G: 255, B: b, A: 255}
	}
	g := uint8(255 * (2 - 2*t))
	return color.RGBA{R: 255, G: g, A: 255}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// blend mixes frac of a with (1-frac) of b, channel-wise.
func blend(a, b color.RGBA, frac float64) color.RGBA {
	mix := func(av, bv uint8) uint8 {
		return uint8(float64(av)*frac + float64(bv)*(1-frac))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

func drawTimestampStrip(img *image.RGBA, w, h int, binStart int64) {
	stripRect := image.Rect(0, h, w, h+timestampStripHeight)
	draw.Draw(img, stripRect, image.NewUniform(color.Black), image.Point{}, draw.Src)

	label := time.Unix(binStart, 0).Format("2006-01-02 15:04:05")
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(8, h+20),
	}
	d.DrawString(label)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// WritePPM frames img as an ASCII-header PPM (P6) file: "P6\n<W> <H>\n255\n"
// followed by raw row-major interleaved RGB bytes (no alpha channel).
func WritePPM(w io.Writer, img *image.RGBA) error {
	bw := bufio.NewWriter(w)
	bounds := img.Bounds()
	if _, err := fmt.Fprintf(bw, "P6\n%d %d\n255\n", bounds.Dx(), bounds.Dy()); err != nil {
		return err
	}
	row := make([]byte, bounds.Dx()*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.RGBAAt(x, y)
			i := (x - bounds.Min.X) * 3
			row[i] = c.R
			row[i+1] = c.G
			row[i+2] = c.B
		}
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}
