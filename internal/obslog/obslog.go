/*
 * rv64det - Wrapper for slog
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

// Package obslog is the core's only ambient observability surface: a
// thin slog.Handler plus a bitmask-gated trace helper for the hot
// fetch/execute path, where paying slog's attribute-formatting cost on
// every instruction would be unacceptable.
package obslog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Handler writes formatted records to the writer it was built with.
// It does not mirror them to stderr, and the debug field has no effect
// on where records go.
type Handler struct {
	out   io.Writer
	h     slog.Handler
	mu    *sync.Mutex
	debug bool
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithAttrs(attrs), mu: h.mu, debug: h.debug}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithGroup(name), mu: h.mu, debug: h.debug}
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	when := r.Time.Format("2006/01/02 15:04:05")

	strs := []string{when, level, r.Message}
	r.Attrs(func(a slog.Attr) bool {
		strs = append(strs, a.Key+"="+a.Value.String())
		return true
	})
	line := strings.Join(strs, " ") + "\n"

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write([]byte(line))
	}
	return err
}

// NewHandler builds a Handler writing to file, gated at opts.Level.
func NewHandler(file io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{
		out: file,
		h: slog.NewTextHandler(file, &slog.HandlerOptions{
			Level:     opts.Level,
			AddSource: opts.AddSource,
		}),
		mu: &sync.Mutex{},
	}
}

// TraceMask is a set of per-subsystem trace bits, checked on every
// fetch/execute/translate step; keep this a plain bitmask rather than
// going through slog so a disabled trace costs one branch, not an
// allocation.
type TraceMask uint32

const (
	TraceCPU TraceMask = 1 << iota
	TracePMA
	TraceTLB
	TraceTrap
	TraceDevice
	TraceCSR
)

var (
	traceMu   sync.Mutex
	traceOut  io.Writer
	traceMask TraceMask
)

// SetTrace installs the writer and enabled mask for Tracef. A nil
// writer disables tracing regardless of mask.
func SetTrace(w io.Writer, mask TraceMask) {
	traceMu.Lock()
	defer traceMu.Unlock()
	traceOut = w
	traceMask = mask
}

// Tracef writes a formatted trace line for subsystem bit m, if enabled.
func Tracef(m TraceMask, format string, a ...any) {
	traceMu.Lock()
	w, enabled := traceOut, traceMask&m != 0
	traceMu.Unlock()
	if !enabled || w == nil {
		return
	}
	fmt.Fprintf(w, format+"\n", a...)
}
