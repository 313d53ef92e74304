package logparse

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestParseHoneypotLine(t *testing.T) {
	line := "2023-11-14T12:00:59.500000Z src=1.2.3.4:4444 dst=10.0.0.5:22 proto=TCP"
	ev, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if ev.SrcIP != 0x01020304 {
		t.Fatalf("SrcIP = %#x, want 0x01020304", ev.SrcIP)
	}
	if ev.SrcPort != 4444 || ev.DstPort != 22 {
		t.Fatalf("unexpected ports: %+v", ev)
	}
	if ev.Protocol != ProtoTCP {
		t.Fatalf("expected TCP, got %v", ev.Protocol)
	}
}

func TestParseFortiGateLine(t *testing.T) {
	line := `date=2023-11-14 time=12:00:59 devid=FG100 srcip=9.9.9.9 srcport=0 dstip=10.0.0.1 dstport=53 proto=17`
	ev, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if ev.SrcIP != 0x09090909 {
		t.Fatalf("SrcIP = %#x, want 0x09090909", ev.SrcIP)
	}
	if ev.SrcPort != 0 {
		t.Fatalf("expected port 0 to be accepted, got %d", ev.SrcPort)
	}
	if ev.Protocol != ProtoUDP {
		t.Fatalf("expected UDP(17), got %v", ev.Protocol)
	}
}

func TestParseLineRejectsGarbage(t *testing.T) {
	if _, err := ParseLine("not a log line at all"); err == nil {
		t.Fatalf("expected error for unrecognized line")
	}
}

func TestSourceReadsGzipAndSkipsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log.gz")
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("garbage\n"))
	gz.Write([]byte("2023-11-14T12:00:59Z src=1.1.1.1:1 dst=2.2.2.2:2 proto=TCP\n"))
	gz.Write([]byte("also garbage\n"))
	gz.Write([]byte("2023-11-14T13:00:00Z src=3.3.3.3:3 dst=4.4.4.4:4 proto=UDP\n"))
	gz.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	var warnings int
	src.OnWarning = func(line string, err error) { warnings++ }

	var events []Event
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 parsed events, got %d", len(events))
	}
	if warnings != 2 {
		t.Fatalf("expected 2 warnings for unparseable lines, got %d", warnings)
	}
}
