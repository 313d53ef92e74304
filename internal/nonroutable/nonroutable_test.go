package nonroutable

import (
	"net"
	"testing"

	"github.com/xtaci/heatviz/internal/coord"
)

func TestIsNonRoutableKnownRanges(t *testing.T) {
	cases := map[string]bool{
		"10.1.2.3":     true,
		"192.168.1.1":  true,
		"127.0.0.1":    true,
		"169.254.1.1":  true,
		"224.0.0.1":    true,
		"8.8.8.8":      false,
		"1.1.1.1":      false,
		"203.0.113.42": true,
	}
	for s, want := range cases {
		ip := parseIPv4(t, s)
		if got := isNonRoutable(ip); got != want {
			t.Fatalf("isNonRoutable(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestMaskStability(t *testing.T) {
	k := uint(6)
	mapper, err := coord.New(k, nil)
	if err != nil {
		t.Fatalf("coord.New: %v", err)
	}
	m1 := Build(mapper, k)
	m2 := Build(mapper, k)

	if len(m1.cells) != len(m2.cells) {
		t.Fatalf("mask sizes differ")
	}
	for i := range m1.cells {
		if m1.cells[i] != m2.cells[i] {
			t.Fatalf("mask differs at cell %d across two runs with identical (k, CIDRMap)", i)
		}
	}
}

func TestMaskMarksLoopback(t *testing.T) {
	k := uint(8)
	mapper, err := coord.New(k, nil)
	if err != nil {
		t.Fatalf("coord.New: %v", err)
	}
	mask := Build(mapper, k)
	x, y := mapper.ToCoord(parseIPv4(t, "127.0.0.1"))
	idx := uint64(y)*uint64(mask.N) + uint64(x)
	if !mask.At(idx) {
		t.Fatalf("expected loopback address's cell to be marked non-routable")
	}
}

func parseIPv4(t *testing.T, s string) uint32 {
	t.Helper()
	ip := net.ParseIP(s).To4()
	if ip == nil {
		t.Fatalf("invalid test IPv4 literal %q", s)
	}
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}
