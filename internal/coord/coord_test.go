package coord

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xtaci/heatviz/internal/cidrmap"
	"github.com/xtaci/heatviz/internal/hilbert"
)

func TestLosslessDefaultMappingK4(t *testing.T) {
	m, err := New(4, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	x0, y0 := m.ToCoord(0x00000000)
	ex0, ey0 := hilbert.XYOf(0, 4)
	if x0 != ex0 || y0 != ey0 {
		t.Fatalf("ip=0: got (%d,%d), want (%d,%d)", x0, y0, ex0, ey0)
	}

	xMax, yMax := m.ToCoord(0xFFFFFFFF)
	exMax, eyMax := hilbert.XYOf(255, 4)
	if xMax != exMax || yMax != eyMax {
		t.Fatalf("ip=0xFFFFFFFF: got (%d,%d), want (%d,%d)", xMax, yMax, exMax, eyMax)
	}

	// 1.1.1.1 = 0x01010101; d = floor(0x01010101*256/2^32) = 1
	x1, y1 := m.ToCoord(0x01010101)
	ex1, ey1 := hilbert.XYOf(1, 4)
	if x1 != ex1 || y1 != ey1 {
		t.Fatalf("ip=1.1.1.1: got (%d,%d), want (%d,%d)", x1, y1, ex1, ey1)
	}
}

func TestDeterministic(t *testing.T) {
	m, err := New(8, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	x1, y1 := m.ToCoord(0x0A0B0C0D)
	x2, y2 := m.ToCoord(0x0A0B0C0D)
	if x1 != x2 || y1 != y2 {
		t.Fatalf("expected deterministic mapping, got (%d,%d) then (%d,%d)", x1, y1, x2, y2)
	}
}

func TestCIDROverridePinsXBand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cidr.map")
	if err := os.WriteFile(path, []byte("10.0.0.0/8 -5 0 100\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cm, _, err := cidrmap.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, err := New(12, cm)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	x, y := m.ToCoord(0x0A010203) // 10.1.2.3
	if x < 0 || x >= 100 {
		t.Fatalf("expected x in [0,100) for overridden band, got %d", x)
	}
	_ = y
}

func TestCIDRMissOrEmptyFallsBackToScaling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cidr.map")
	if err := os.WriteFile(path, []byte("10.0.0.0/8 -5 0 100\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cm, _, err := cidrmap.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	withMap, err := New(4, cm)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	withoutMap, err := New(4, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// 8.8.8.8 is not covered by the 10.0.0.0/8 entry, so both mappers agree.
	ip := uint32(0x08080808)
	x1, y1 := withMap.ToCoord(ip)
	x2, y2 := withoutMap.ToCoord(ip)
	if x1 != x2 || y1 != y2 {
		t.Fatalf("expected identical fallback mapping, got (%d,%d) vs (%d,%d)", x1, y1, x2, y2)
	}

	// an empty map sends even a 10.x address down the scaling path.
	emptyPath := filepath.Join(t.TempDir(), "empty.map")
	if err := os.WriteFile(emptyPath, []byte("# no entries\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	emptyCM, _, err := cidrmap.Load(emptyPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	withEmpty, err := New(4, emptyCM)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	x3, y3 := withEmpty.ToCoord(0x0A010203)
	x4, y4 := withoutMap.ToCoord(0x0A010203)
	if x3 != x4 || y3 != y4 {
		t.Fatalf("expected empty map to fall back to scaling, got (%d,%d) vs (%d,%d)", x3, y3, x4, y4)
	}
}

func TestInvalidOrderRejected(t *testing.T) {
	if _, err := New(3, nil); err == nil {
		t.Fatalf("expected error for k=3")
	}
	if _, err := New(20, nil); err == nil {
		t.Fatalf("expected error for k=20")
	}
}
