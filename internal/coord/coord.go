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

// Package coord composes the Hilbert curve kernel and the CIDR map into a
// locality-preserving IP -> (x,y) mapping.
package coord

import (
	"github.com/xtaci/heatviz/internal/cidrmap"
	"github.com/xtaci/heatviz/internal/hilbert"
)

// Mapper turns an IPv4 address into a curve coordinate for a fixed order k,
// consulting an optional CIDR map for the geographic override path.
type Mapper struct {
	k  uint
	n  uint32
	cm *cidrmap.Map
}

// New builds a Mapper for order k. cm may be nil, meaning every address
// takes the lossless Hilbert-scaling path.
func New(k uint, cm *cidrmap.Map) (*Mapper, error) {
	if err := hilbert.CheckOrder(k); err != nil {
		return nil, err
	}
	return &Mapper{k: k, n: hilbert.Dimension(k), cm: cm}, nil
}

// Order returns the curve order this mapper was constructed with.
func (m *Mapper) Order() uint {
	return m.k
}

// ToCoord maps ip to a curve coordinate. When the CIDR map is non-empty and
// covers ip, the X axis is pinned to the matched entry's timezone band and
// Y spreads the low 16 bits of the address (Case 1, losing Hilbert locality
// by design on this path). Otherwise ip is scaled losslessly onto the curve
// index space and inverted through the Hilbert kernel, preserving locality
// (Case 2, the default path).
func (m *Mapper) ToCoord(ip uint32) (x, y uint32) {
	if m.cm != nil && !m.cm.Empty() {
		if e, ok := m.cm.Find(ip); ok {
			return m.coordFromEntry(ip, e)
		}
	}
	return m.coordFromScaling(ip)
}

func (m *Mapper) coordFromEntry(ip uint32, e *cidrmap.Entry) (x, y uint32) {
	w := e.XEnd - e.XStart
	if w < 1 {
		w = 1
	}
	h16 := ip >> 16
	l16 := ip & 0xFFFF

	x = e.XStart + uint32((uint64(h16)*uint64(w))>>16)
	if x >= e.XEnd {
		if e.XEnd == 0 {
			x = 0
		} else {
			x = e.XEnd - 1
		}
	}
	y = uint32((uint64(l16) * uint64(m.n)) >> 16)
	return x, y
}

func (m *Mapper) coordFromScaling(ip uint32) (x, y uint32) {
	total := hilbert.TotalPoints(m.k)
	d := (uint64(ip) * total) >> 32
	if d >= total {
		d = total - 1
	}
	return hilbert.XYOf(d, m.k)
}
