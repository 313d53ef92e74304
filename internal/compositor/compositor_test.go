package compositor

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/xtaci/heatviz/internal/binning"
	"github.com/xtaci/heatviz/internal/decay"
	"github.com/xtaci/heatviz/internal/nonroutable"
)

func TestGradientBoundaries(t *testing.T) {
	m := uint32(100)
	if g := gradient(0, m); g != (color.RGBA{A: 255}) {
		t.Fatalf("gradient(0,M) = %+v, want black", g)
	}
	if g := gradient(m, m); g != (color.RGBA{R: 255, G: 0, B: 0, A: 255}) {
		t.Fatalf("gradient(M,M) = %+v, want (255,0,0)", g)
	}
	half := gradient(m/2, m)
	if half.R != 255 {
		t.Fatalf("gradient(M/2,M).R = %d, want 255", half.R)
	}
}

func TestS5ResidueWinsOverGradientAndOverlay(t *testing.T) {
	n := uint32(4)
	b := &binning.Bin{N: n, Heatmap: make([]uint32, n*n)} // heatmap[i] == 0 everywhere
	residue := decay.NewResidue(n)
	residue.Mark(1, 0)
	residue.Mark(1, 0)
	residue.Mark(1, 0)
	residue.Mark(1, 0)
	residue.Mark(1, 0) // residue value 5 at (1,0)

	mask := nonroutable.New(n)
	mask.Set(idx(n, 1, 0))

	c := pixelColor(b, residue, mask, idx(n, 1, 0))
	if c != residueColor {
		t.Fatalf("expected residue color to win, got %+v", c)
	}
}

func TestS6NonRoutableOverlayBlend(t *testing.T) {
	n := uint32(4)
	b := &binning.Bin{N: n, Heatmap: make([]uint32, n*n), MaxIntensity: 100}
	i := idx(n, 2, 0)
	b.Heatmap[i] = 100 // == MaxIntensity, so gradient is pure red

	residue := decay.NewResidue(n) // no residue anywhere
	mask := nonroutable.New(n)
	mask.Set(i)

	c := pixelColor(b, residue, mask, i)
	want := color.RGBA{R: 153, G: 0, B: 12, A: 255}
	if c != want {
		t.Fatalf("blended color = %+v, want %+v", c, want)
	}
}

func TestNonRoutableBaselineWhenQuiet(t *testing.T) {
	n := uint32(4)
	b := &binning.Bin{N: n, Heatmap: make([]uint32, n*n)}
	residue := decay.NewResidue(n)
	i := idx(n, 0, 0)
	mask := nonroutable.New(n)
	mask.Set(i)

	c := pixelColor(b, residue, mask, i)
	if c != nonRoutableBaseline {
		t.Fatalf("expected dim-blue baseline, got %+v", c)
	}
}

func TestRenderCentersSquareAndWritesPPM(t *testing.T) {
	n := uint32(4)
	b := &binning.Bin{N: n, Heatmap: make([]uint32, n*n), BinStart: 1700000000}
	b.Heatmap[idx(n, 0, 0)] = 5
	b.MaxIntensity = 5

	img := Render(b, decay.NewResidue(n), nil, 40, 20, false)
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Fatalf("unexpected image bounds: %v", img.Bounds())
	}
	// corner of the centered square (scale = 20/4 = 5, offsetX = (40-20)/2=10, offsetY=0)
	c := img.RGBAAt(10, 0)
	if c.R != 255 { // heatmap[0,0]=5=MaxIntensity -> pure red-ish, R always 255
		t.Fatalf("expected a hot cell at the top-left of the centered square, got %+v", c)
	}
	// well outside the centered square must stay black
	black := img.RGBAAt(0, 0)
	if black != (color.RGBA{A: 255}) {
		t.Fatalf("expected black outside the centered square, got %+v", black)
	}

	var buf bytes.Buffer
	if err := WritePPM(&buf, img); err != nil {
		t.Fatalf("WritePPM: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("P6\n40 20\n255\n")) {
		t.Fatalf("unexpected PPM header: %q", buf.Bytes()[:20])
	}
}

func TestRenderWithTimestampStripGrowsHeight(t *testing.T) {
	n := uint32(4)
	b := &binning.Bin{N: n, Heatmap: make([]uint32, n*n), BinStart: 1700000000}
	img := Render(b, decay.NewResidue(n), nil, 40, 20, true)
	if img.Bounds().Dy() != 20+timestampStripHeight {
		t.Fatalf("expected strip height added, got %d", img.Bounds().Dy())
	}
}

// --- test helpers -----------------------------------------------------

func idx(n, x, y uint32) uint64 {
	return uint64(y)*uint64(n) + uint64(x)
}
