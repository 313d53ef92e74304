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

// Package logparse provides the event contract consumed by the core and a
// minimal gzip-backed line source that recognizes honeypot-style and
// FortiGate-style log lines well enough to extract a timestamp and source
// IP. Full grammar coverage of either log format is intentionally out of
// scope -- upstream log parsing is treated as an external collaborator;
// this package exists only so the pipeline has a concrete driver to
// exercise end-to-end.
package logparse

import (
	"bufio"
	"compress/gzip"
	"io"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/xtaci/heatviz/internal/corerr"
)

// Protocol mirrors the three transport protocols the event contract names.
type Protocol uint8

const (
	ProtoICMP Protocol = 1
	ProtoTCP  Protocol = 6
	ProtoUDP  Protocol = 17
)

// Event is the external parser's contract: a fully-decoded log record.
// Only TimestampSeconds/SrcIP are consulted by the core; the remaining
// fields are carried through for completeness.
type Event struct {
	TimestampSeconds      int64
	TimestampMicroseconds int64
	SrcIP                 uint32
	DstIP                 uint32
	SrcPort               uint16
	DstPort               uint16
	Protocol              Protocol
}

// honeypotLine matches lines of the shape:
// "2023-11-14T12:00:59.123456Z src=1.2.3.4:4444 dst=10.0.0.5:22 proto=TCP"
var honeypotLine = regexp.MustCompile(`^(\S+)\s+src=([0-9.]+):(\d+)\s+dst=([0-9.]+):(\d+)\s+proto=(\w+)`)

// fortiLine matches FortiGate-style key=value pairs with unquoted values
// (quoted values such as date="2023-11-14" are not recognized), e.g.:
// `date=2023-11-14 time=12:00:59 srcip=1.2.3.4 srcport=4444 dstip=10.0.0.5 dstport=22 proto=6`
var fortiLine = regexp.MustCompile(`date=(\S+)\s+time=(\S+).*srcip=([0-9.]+)\s+srcport=(\d+)\s+dstip=([0-9.]+)\s+dstport=(\d+)\s+proto=(\d+)`)

// ParseLine recognizes one honeypot-format or FortiGate-format log line and
// extracts an Event. Port 0 is accepted as valid and range-checked like any
// other port value, never special-cased or rejected.
func ParseLine(line string) (Event, error) {
	if m := honeypotLine.FindStringSubmatch(line); m != nil {
		return buildHoneypotEvent(m)
	}
	if m := fortiLine.FindStringSubmatch(line); m != nil {
		return buildFortiEvent(m)
	}
	return Event{}, errors.Errorf("line does not match any recognized log format")
}

func buildHoneypotEvent(m []string) (Event, error) {
	ts, err := time.Parse(time.RFC3339Nano, m[1])
	if err != nil {
		return Event{}, errors.Wrapf(err, "invalid timestamp %q", m[1])
	}
	srcIP, err := ipv4ToUint32(m[2])
	if err != nil {
		return Event{}, err
	}
	dstIP, err := ipv4ToUint32(m[4])
	if err != nil {
		return Event{}, err
	}
	srcPort, err := parsePort(m[3])
	if err != nil {
		return Event{}, err
	}
	dstPort, err := parsePort(m[5])
	if err != nil {
		return Event{}, err
	}
	proto := protocolFromName(m[6])

	return Event{
		TimestampSeconds:      ts.Unix(),
		TimestampMicroseconds: int64(ts.Nanosecond() / 1000),
		SrcIP:                 srcIP,
		DstIP:                 dstIP,
		SrcPort:               srcPort,
		DstPort:               dstPort,
		Protocol:              proto,
	}, nil
}

func buildFortiEvent(m []string) (Event, error) {
	ts, err := time.Parse("2006-01-02 15:04:05", m[1]+" "+m[2])
	if err != nil {
		return Event{}, errors.Wrapf(err, "invalid fortigate timestamp %q %q", m[1], m[2])
	}
	srcIP, err := ipv4ToUint32(m[3])
	if err != nil {
		return Event{}, err
	}
	srcPort, err := parsePort(m[4])
	if err != nil {
		return Event{}, err
	}
	dstIP, err := ipv4ToUint32(m[5])
	if err != nil {
		return Event{}, err
	}
	dstPort, err := parsePort(m[6])
	if err != nil {
		return Event{}, err
	}
	protoNum, err := strconv.Atoi(m[7])
	if err != nil {
		return Event{}, errors.Wrapf(err, "invalid proto %q", m[7])
	}

	return Event{
		TimestampSeconds: ts.Unix(),
		SrcIP:            srcIP,
		DstIP:            dstIP,
		SrcPort:          srcPort,
		DstPort:          dstPort,
		Protocol:         Protocol(protoNum),
	}, nil
}

// ipv4ToUint32 converts a dotted-quad string into the core's host-byte-order
// uint32 representation, where the first octet is the most significant
// byte -- note this is NOT the same layout as net.IP's byte slice, which
// this function explicitly reassembles rather than reinterprets.
func ipv4ToUint32(s string) (uint32, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0, errors.Errorf("invalid IPv4 address %q", s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, errors.Errorf("address %q is not IPv4", s)
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), nil
}

// parsePort validates a port string is in [0, 65535]; port 0 is accepted.
func parsePort(s string) (uint16, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 65535 {
		return 0, errors.Errorf("port %q out of range [0,65535]", s)
	}
	return uint16(n), nil
}

func protocolFromName(name string) Protocol {
	switch name {
	case "TCP", "tcp":
		return ProtoTCP
	case "UDP", "udp":
		return ProtoUDP
	case "ICMP", "icmp":
		return ProtoICMP
	default:
		return 0
	}
}

// Source reads Events from a single gzip-compressed log file, reporting
// each unparseable line through OnWarning (never fatal) and stopping
// cleanly at EOF.
type Source struct {
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner

	// OnWarning, if set, is invoked for every line that fails to parse.
	OnWarning func(line string, err error)
}

// Open opens path and wraps it in a gzip reader. IOError on failure; a
// caller processing multiple input files should abort this one file and
// continue with the next, not the whole run.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, corerr.New(corerr.KindIOError, errors.Wrapf(err, "opening %s", path))
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, corerr.New(corerr.KindIOError, errors.Wrapf(err, "gzip header in %s", path))
	}
	sc := bufio.NewScanner(gz)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Source{file: f, gz: gz, scanner: sc}, nil
}

// Next returns the next successfully parsed Event, skipping and reporting
// unparseable lines, or io.EOF once the stream is exhausted.
func (s *Source) Next() (Event, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		ev, err := ParseLine(line)
		if err != nil {
			if s.OnWarning != nil {
				s.OnWarning(line, err)
			}
			continue
		}
		return ev, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Event{}, corerr.New(corerr.KindIOError, err)
	}
	return Event{}, io.EOF
}

// Close releases the gzip reader and underlying file.
func (s *Source) Close() error {
	gzErr := s.gz.Close()
	fErr := s.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}
