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

// Package hilbert implements the bijection between a linear index on a
// Hilbert space-filling curve and its 2-D (x,y) coordinate, for curve
// orders k in [MinOrder, MaxOrder].
package hilbert

import "github.com/pkg/errors"

const (
	// MinOrder and MaxOrder bound the curve order k; Dimension = 2^k.
	MinOrder = 4
	MaxOrder = 16
)

// ErrInvalidOrder is returned when k falls outside [MinOrder, MaxOrder].
var ErrInvalidOrder = errors.New("hilbert: order out of range [4,16]")

// Dimension returns n = 2^k, the side length of the curve's grid.
func Dimension(k uint) uint32 {
	return uint32(1) << k
}

// TotalPoints returns n^2, the number of distinct curve cells.
func TotalPoints(k uint) uint64 {
	n := uint64(Dimension(k))
	return n * n
}

// CheckOrder validates k against [MinOrder, MaxOrder].
func CheckOrder(k uint) error {
	if k < MinOrder || k > MaxOrder {
		return errors.Wrapf(ErrInvalidOrder, "k=%d", k)
	}
	return nil
}

// XYOf maps a curve index d in [0, 4^k) to its (x, y) coordinate.
// Callers must ensure d is in range; it is a programming error otherwise.
func XYOf(d uint64, k uint) (x, y uint32) {
	var rx, ry uint64
	t := d
	for s := uint64(1); s < (uint64(1) << k); s <<= 1 {
		rx = 1 & (t / 2)
		ry = 1 & (t ^ rx)
		x, y = rot(s, x, y, rx, ry)
		x += uint32(s * rx)
		y += uint32(s * ry)
		t /= 4
	}
	return x, y
}

// IndexOf maps a coordinate (x, y) on a 2^k x 2^k grid to its curve index d.
// Callers must ensure 0 <= x,y < 2^k; it is a programming error otherwise.
func IndexOf(x, y uint32, k uint) uint64 {
	var d uint64
	for s := uint64(1) << (k - 1); s > 0; s >>= 1 {
		var rx, ry uint64
		if x&uint32(s) > 0 {
			rx = 1
		}
		if y&uint32(s) > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		x, y = rot(s, x, y, rx, ry)
	}
	return d
}

// rot performs the quadrant rotate/flip step shared by IndexOf and XYOf:
// when ry==0 it conditionally mirrors both axes (if rx==1), then swaps x,y.
func rot(s uint64, x, y uint32, rx, ry uint64) (uint32, uint32) {
	if ry == 0 {
		if rx == 1 {
			x = uint32(s-1) - x
			y = uint32(s-1) - y
		}
		x, y = y, x
	}
	return x, y
}
