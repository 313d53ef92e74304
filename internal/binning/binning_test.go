package binning

import "testing"

func TestBinAlignment(t *testing.T) {
	cases := []struct {
		t, binSeconds, want int64
	}{
		{1700000059, 60, 1700000040},
		{1700000060, 60, 1700000060},
		{59, 60, 0},
		{60, 60, 60},
	}
	for _, c := range cases {
		got := BinStartFor(c.t, c.binSeconds)
		if got != c.want {
			t.Fatalf("BinStartFor(%d,%d) = %d, want %d", c.t, c.binSeconds, got, c.want)
		}
		if got%c.binSeconds != 0 {
			t.Fatalf("bin_start %d is not a multiple of %d", got, c.binSeconds)
		}
		if c.t-got < 0 || c.t-got >= c.binSeconds {
			t.Fatalf("t-bin_start out of [0,bin_seconds): %d", c.t-got)
		}
	}
}

func TestS2TwoDistinctBins(t *testing.T) {
	m, err := NewManager(60, 16)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	retired, accepted := m.Process(1700000059, 1, 1)
	if retired != nil {
		t.Fatalf("first event should not retire a bin")
	}
	if !accepted {
		t.Fatalf("expected event accepted")
	}

	retired, accepted = m.Process(1700000060, 2, 2)
	if !accepted {
		t.Fatalf("expected event accepted")
	}
	if retired == nil {
		t.Fatalf("expected the first bin to be retired on bin-boundary crossing")
	}
	if retired.BinStart != 1700000040 {
		t.Fatalf("retired bin_start = %d, want 1700000040", retired.BinStart)
	}

	flushed := m.Flush()
	if flushed == nil || flushed.BinStart != 1700000060 {
		t.Fatalf("expected flush to retire the second bin with bin_start 1700000060")
	}

	if m.TotalBins != 2 {
		t.Fatalf("expected exactly two distinct bins, got %d", m.TotalBins)
	}
	if m.BinsWritten != 2 {
		t.Fatalf("expected both bins written, got %d", m.BinsWritten)
	}
}

func TestEventConservation(t *testing.T) {
	m, err := NewManager(60, 16)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	base := int64(1000)
	coords := [][2]uint32{{0, 0}, {0, 0}, {1, 1}, {2, 3}}
	for _, c := range coords {
		m.Process(base, c[0], c[1])
	}
	retired := m.Flush()
	if retired == nil {
		t.Fatalf("expected a bin to flush")
	}

	var sum uint64
	for _, v := range retired.Heatmap {
		sum += uint64(v)
	}
	if sum != uint64(len(coords)) {
		t.Fatalf("heatmap sum = %d, want %d", sum, len(coords))
	}
	if retired.EventCount != uint64(len(coords)) {
		t.Fatalf("event_count = %d, want %d", retired.EventCount, len(coords))
	}
	if retired.UniqueCells != 3 {
		t.Fatalf("unique_cells = %d, want 3", retired.UniqueCells)
	}
	if retired.MaxIntensity != 2 {
		t.Fatalf("max_intensity = %d, want 2", retired.MaxIntensity)
	}
}

func TestOutOfRangeCoordDropped(t *testing.T) {
	m, err := NewManager(60, 4)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	_, accepted := m.Process(1000, 10, 10)
	if accepted {
		t.Fatalf("expected out-of-range coordinate to be dropped")
	}
	retired := m.Flush()
	if retired.EventCount != 0 {
		t.Fatalf("expected no events recorded, got %d", retired.EventCount)
	}
}

func TestOutOfOrderEventCountedAsOrderingAnomaly(t *testing.T) {
	m, err := NewManager(60, 4)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.Process(120000, 0, 0)
	m.Process(120030, 0, 0) // same bin (bin_start 120000), fine
	m.Process(119999, 0, 0) // bin_start 119940, earlier than current: anomaly
	if m.Ordering != 1 {
		t.Fatalf("expected 1 ordering anomaly, got %d", m.Ordering)
	}
}
