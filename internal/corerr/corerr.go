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

// Package corerr defines the typed failure kinds the core surfaces to its
// driver: a small sum type in place of boolean or magic-integer return
// codes.
package corerr

import "github.com/pkg/errors"

// Kind classifies a core failure for exit-code mapping at the CLI boundary.
type Kind int

const (
	// KindInvalidConfig marks rejected options or malformed values.
	KindInvalidConfig Kind = iota
	// KindIOError marks an unreadable input or output destination.
	KindIOError
	// KindResource marks an allocation failure; fatal to the run.
	KindResource
	// KindOrdering marks an out-of-order event that forced early bin closure.
	KindOrdering
	// KindEncoderFailure marks a non-zero exit from the external video encoder.
	KindEncoderFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfig:
		return "InvalidConfig"
	case KindIOError:
		return "IOError"
	case KindResource:
		return "Resource"
	case KindOrdering:
		return "Ordering"
	case KindEncoderFailure:
		return "EncoderFailure"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a Kind for switch-based handling at
// the driver boundary.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a typed Error wrapping cause with a stack trace attached.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: errors.WithStack(cause)}
}

// Newf builds a typed Error from a format string, analogous to errors.Errorf.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: errors.Errorf(format, args...)}
}

// Fatal reports whether a Kind aborts the whole run (Resource, InvalidConfig)
// as opposed to being recoverable at the current file/line (IOError) or a
// mere counted warning (ParseWarning, Ordering are not constructed as Error
// at all — they only ever increment counters, per the accumulation policy).
func (k Kind) Fatal() bool {
	return k == KindResource || k == KindInvalidConfig
}
