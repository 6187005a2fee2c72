/*
 * rv64det - Host-facing error classification
 *
 * Copyright 2026, rv64det contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package machine

import "fmt"

// Kind classifies every host-observable error this package can
// return. Architectural exceptions (trap.Exception)
// are a separate, internal surface and never appear here.
type Kind int

const (
	Unknown Kind = iota
	InvalidArgument
	DomainError
	OutOfRange
	LogicError
	RuntimeError
	Aborted
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case DomainError:
		return "domain_error"
	case OutOfRange:
		return "out_of_range"
	case LogicError:
		return "logic_error"
	case RuntimeError:
		return "runtime_error"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Error wraps a Kind and a human-readable message, the shape every
// exported Machine method reports on failure instead of letting a
// lower-level error unwind past the host boundary unclassified.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("machine: %s: %s", e.Kind, e.Msg) }

func newErr(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}
