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

// Package nonroutable precomputes the bitmap of curve cells reached by any
// RFC-reserved IPv4 address, so the frame compositor can render a dim
// overlay on dark/internet-backbone space. The mask depends only on (k,
// CIDRMap) and is built once per run.
package nonroutable

import (
	"net"

	"github.com/xtaci/heatviz/internal/coord"
	"github.com/xtaci/heatviz/internal/hilbert"
)

// reservedRanges are the RFC-reserved IPv4 blocks (loopback, private-use,
// link-local, documentation, multicast, and reserved-future ranges).
var reservedRanges = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.88.99.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
}

type reservedNet struct {
	network uint32
	mask    uint32
}

func mustParseNets() []reservedNet {
	nets := make([]reservedNet, 0, len(reservedRanges))
	for _, cidr := range reservedRanges {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("nonroutable: invalid built-in CIDR literal " + cidr)
		}
		ip4 := ipnet.IP.To4()
		mask4 := net.IP(ipnet.Mask).To4()
		network := uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
		mask := uint32(mask4[0])<<24 | uint32(mask4[1])<<16 | uint32(mask4[2])<<8 | uint32(mask4[3])
		nets = append(nets, reservedNet{network: network, mask: mask})
	}
	return nets
}

var builtinReserved = mustParseNets()

func isNonRoutable(ip uint32) bool {
	for _, r := range builtinReserved {
		if ip&r.mask == r.network {
			return true
		}
	}
	return false
}

// Mask is the dense n*n byte grid, 1 where some sampled reserved address
// lands, 0 elsewhere.
type Mask struct {
	N     uint32
	cells []byte
}

// At reports whether curve cell i (row-major y*n+x) is marked non-routable.
func (m *Mask) At(i uint64) bool {
	return m.cells[i] != 0
}

// Set marks curve cell i as non-routable. Exposed mainly so callers outside
// this package (and its tests) can construct synthetic masks without
// re-running Build's IPv4 sampling sweep.
func (m *Mask) Set(i uint64) {
	m.cells[i] = 1
}

// New allocates a zeroed n*n mask with no cells marked.
func New(n uint32) *Mask {
	return &Mask{N: n, cells: make([]byte, uint64(n)*uint64(n))}
}

// Build samples the IPv4 space at a stride of 64 for k<=10 or 256 otherwise,
// mapping every reserved sampled address
// through mapper and marking its cell, plus the explicit 2^32-1 test case.
// The result is stable for a fixed (k, CIDRMap) pair, so callers should
// cache it for the lifetime of a run.
func Build(mapper *coord.Mapper, k uint) *Mask {
	n := hilbert.Dimension(k)
	mask := &Mask{N: n, cells: make([]byte, uint64(n)*uint64(n))}

	stride := uint64(256)
	if k <= 10 {
		stride = 64
	}

	for ip := uint64(0); ip <= 0xFFFFFFFF; ip += stride {
		if isNonRoutable(uint32(ip)) {
			markAt(mask, mapper, uint32(ip))
		}
	}

	const maxIP = 0xFFFFFFFF
	if isNonRoutable(maxIP) {
		markAt(mask, mapper, maxIP)
	}

	return mask
}

func markAt(mask *Mask, mapper *coord.Mapper, ip uint32) {
	x, y := mapper.ToCoord(ip)
	if x >= mask.N || y >= mask.N {
		return
	}
	idx := uint64(y)*uint64(mask.N) + uint64(x)
	mask.cells[idx] = 1
}
