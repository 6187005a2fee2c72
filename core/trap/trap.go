/*
 * rv64det - Trap cause codes and the architectural exception type
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

// Package trap names the RISC-V cause codes and carries the
// architectural-exception value that flows back out of an executor.
// Values here never cross the host boundary: the outer loop (package
// cpu) always catches an *Exception and turns it into a CSR-visible
// trap before returning to its own caller.
package trap

import "fmt"

// Cause is a raw RISC-V cause value, without the interrupt bit.
type Cause uint64

// Exception causes (mcause/scause with the MSB clear).
const (
	InstructionMisaligned Cause = 0
	InstructionFault      Cause = 1
	IllegalInstruction    Cause = 2
	Breakpoint            Cause = 3
	LoadMisaligned        Cause = 4
	LoadFault             Cause = 5
	StoreMisaligned       Cause = 6
	StoreFault            Cause = 7
	EcallFromU            Cause = 8
	EcallFromS            Cause = 9
	EcallFromM            Cause = 11
	InstructionPageFault  Cause = 12
	LoadPageFault         Cause = 13
	StorePageFault        Cause = 15
)

// Interrupt causes (mcause/scause with the MSB set); these are the
// bit indices within mip/mie, not full cause values.
const (
	SupervisorSoftware Cause = 1
	MachineSoftware    Cause = 3
	SupervisorTimer    Cause = 5
	MachineTimer       Cause = 7
	SupervisorExternal Cause = 9
	MachineExternal    Cause = 11
)

// InterruptBit, OR'd into a Cause, marks mcause/scause as an
// interrupt rather than an exception per the RISC-V privileged spec.
const InterruptBit = uint64(1) << 63

// Exception is the value an executor returns to signal that an
// architectural exception (not a host-facing error) occurred. The
// outer loop recognizes it via errors.As and delivers it through the
// CSR file instead of propagating it to the caller of Step/Run.
type Exception struct {
	Cause Cause
	Tval  uint64
}

func (e *Exception) Error() string {
	return fmt.Sprintf("trap: cause=%d tval=%#x", e.Cause, e.Tval)
}

// New builds an *Exception for the given cause and trap value.
func New(cause Cause, tval uint64) *Exception {
	return &Exception{Cause: cause, Tval: tval}
}
