/*
 * rv64det - Outer interpreter loop: cycle accounting and dispatch
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

// Package cpu holds the instruction executors, trap/interrupt
// delivery and the outer fetch-execute loop with cycle accounting:
// one place that owns "what does one instruction do" and "how many of
// them do we run before handing control back to the host".
package cpu

import (
	"errors"

	"github.com/rcornwell/rv64det/core/isa"
	"github.com/rcornwell/rv64det/core/state"
	"github.com/rcornwell/rv64det/core/trap"
	"github.com/rcornwell/rv64det/core/xlate"
	"github.com/rcornwell/rv64det/internal/obslog"
	"github.com/rcornwell/rv64det/util/hex"
)

// Result is the outcome of a Run call.
type Result int

const (
	ReachedTarget Result = iota
	Halted
	Idle
	Yielded
)

// Hooks bundles the per-cycle housekeeping the outer loop needs from
// outside the CSR/PMA/TLB state it already owns through Access.
// CLINT/HTIF live in package device, reached only through the PMA
// table, so the machine wires a closure instead of an import.
type Hooks struct {
	// Tick is called once per elapsed mcycle, after the increment, so
	// CLINT can recompute mip.MTIP deterministically from mcycle.
	Tick func()
	// NextWake reports the next mcycle value at which a scheduled
	// device event (the CLINT timer compare) could make an interrupt
	// pending, if any is scheduled. Used only to fast-forward mcycle
	// while idle; never consulted for any other purpose, so it cannot
	// introduce wall-clock-dependent behavior.
	NextWake func() (uint64, bool)
}

// Run drives the fetch-execute loop until the machine halts, goes
// idle, yields, or mcycle reaches cyclesEnd.
// Interrupts are polled before every instruction, so the iflags.B
// fence some implementations use to batch that poll is not needed for
// correctness here; the flag is still honored (cleared) when an
// executor sets it.
func Run(a state.Access, hooks Hooks, cyclesEnd uint64) (Result, error) {
	for {
		fl := a.Iflags()
		if fl.Halted {
			return Halted, nil
		}
		if a.MCycle() >= cyclesEnd {
			return ReachedTarget, nil
		}
		if fl.Idle {
			if advanced := idleFastForward(a, hooks, cyclesEnd); !advanced {
				return Idle, nil
			}
			continue
		}
		if fl.YieldManual {
			return Yielded, nil
		}
		if fl.BreakInner {
			fl.BreakInner = false
			a.SetIflags(fl)
		}
		raiseInterruptIfAny(a)

		if err := ExecuteOne(a); err != nil {
			return ReachedTarget, err
		}
		if hooks.Tick != nil {
			hooks.Tick()
		}
	}
}

// idleFastForward advances mcycle to the next point the machine could
// possibly need to act (a scheduled timer interrupt) without exceeding
// cyclesEnd, returning false if nothing would change (the caller
// should then report Idle to its own caller). No wall-clock input is
// consulted, keeping the fast-forward itself deterministic.
func idleFastForward(a state.Access, hooks Hooks, cyclesEnd uint64) bool {
	if _, pending := a.PendingInterrupt(); pending {
		fl := a.Iflags()
		fl.Idle = false
		a.SetIflags(fl)
		return true
	}
	if hooks.NextWake == nil {
		return false
	}
	wake, scheduled := hooks.NextWake()
	if !scheduled || wake <= a.MCycle() {
		return false
	}
	target := wake
	if cyclesEnd < target {
		target = cyclesEnd
	}
	if target <= a.MCycle() {
		return false
	}
	a.SetMCycle(target)
	if hooks.Tick != nil {
		hooks.Tick()
	}
	if _, pending := a.PendingInterrupt(); pending {
		fl := a.Iflags()
		fl.Idle = false
		a.SetIflags(fl)
	}
	return true
}

// raiseInterruptIfAny delivers the highest-priority pending, enabled
// interrupt, if any.
func raiseInterruptIfAny(a state.Access) {
	cause, ok := a.PendingInterrupt()
	if !ok {
		return
	}
	a.Deliver(true, cause, 0)
	obslog.Tracef(obslog.TraceTrap, "cpu: interrupt %d delivered, pc=%s", cause, hex.Word64(a.PC()))
}

// ExecuteOne fetches, decodes and executes exactly one instruction.
// Architectural exceptions are caught here and delivered through the
// CSR file; only host-facing errors (none are currently raised by the
// executors themselves) propagate to the caller.
func ExecuteOne(a state.Access) error {
	defer func() { a.SetMCycle(a.MCycle() + 1) }()

	pc := a.PC()
	if pc%4 != 0 {
		a.Deliver(false, uint64(trap.InstructionMisaligned), pc)
		return nil
	}

	raw, err := fetch(a, pc)
	if err != nil {
		deliverIfException(a, err)
		return asHostError(err)
	}

	inst := isa.Decode(raw)
	nextPC, execErr := dispatch(a, pc, inst)
	if execErr != nil {
		deliverIfException(a, execErr)
		return asHostError(execErr)
	}

	a.SetPC(nextPC)
	a.SetMInstret(a.MInstret() + 1)
	return nil
}

func fetch(a state.Access, pc uint64) (uint32, error) {
	v, err := a.ReadVirt(xlate.Code, pc, 4)
	return uint32(v), err
}

// deliverIfException delivers err through the CSR file if it is an
// architectural exception; any other error is left untouched for the
// caller to propagate.
func deliverIfException(a state.Access, err error) {
	var ex *trap.Exception
	if errors.As(err, &ex) {
		a.Deliver(false, uint64(ex.Cause), ex.Tval)
	}
}

// asHostError returns nil when err is an architectural exception
// (already handled by deliverIfException) and err unchanged
// otherwise, so only genuine host-facing errors reach Run's caller.
func asHostError(err error) error {
	var ex *trap.Exception
	if errors.As(err, &ex) {
		return nil
	}
	return err
}
