package cidrmap

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempMap(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cidr.map")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp cidr map: %v", err)
	}
	return path
}

func mustParseIP(t *testing.T, s string) uint32 {
	t.Helper()
	network, _, err := parseCIDR(s + "/32")
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return network
}

func TestLongestPrefixMatch(t *testing.T) {
	path := writeTempMap(t, `
# timezone bands
10.0.0.0/8 -5 0 100
10.1.0.0/16 1 100 200
`)
	m, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	ip1621 := mustParseIP(t, "10.1.2.3")
	e, ok := m.Find(ip1621)
	if !ok || e.PrefixLen != 16 || e.TZOffset != 1 {
		t.Fatalf("expected /16 match for 10.1.2.3, got %+v ok=%v", e, ok)
	}

	ip8 := mustParseIP(t, "10.2.0.0")
	e2, ok := m.Find(ip8)
	if !ok || e2.PrefixLen != 8 || e2.TZOffset != -5 {
		t.Fatalf("expected /8 match for 10.2.0.0, got %+v ok=%v", e2, ok)
	}
}

func TestFindNegativeCaching(t *testing.T) {
	path := writeTempMap(t, "10.0.0.0/8 0 0 10\n")
	m, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ip := mustParseIP(t, "8.8.8.8")
	_, ok := m.Find(ip)
	if ok {
		t.Fatalf("expected no match for 8.8.8.8")
	}
	slot := m.cache[ip&0xFF]
	if !slot.valid || slot.key != ip || slot.entry != nil {
		t.Fatalf("expected a cached negative result for 8.8.8.8, got %+v", slot)
	}
	// second lookup must hit the cached negative result, not rescan.
	_, ok = m.Find(ip)
	if ok {
		t.Fatalf("expected cached negative result to remain false")
	}
}

func TestSkipsUnparseableLines(t *testing.T) {
	path := writeTempMap(t, "garbage line\n10.0.0.0/8 0 0 10\nanother bad one here\n")
	m, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("expected exactly one entry loaded, got %d", m.Len())
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 parse warnings, got %d", len(warnings))
	}
}

func TestEmptyMap(t *testing.T) {
	path := writeTempMap(t, "# nothing here\n")
	m, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !m.Empty() {
		t.Fatalf("expected empty map")
	}
}
