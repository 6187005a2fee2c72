/*
 * rv64det - Privileged and CSR executors
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

package cpu

import (
	"github.com/rcornwell/rv64det/core/isa"
	"github.com/rcornwell/rv64det/core/state"
	"github.com/rcornwell/rv64det/core/trap"
)

// execSRET checks the TSR-gated legality of SRET (traps if PRV<S or
// PRV==S with mstatus.TSR set) then unwinds through the CSR file.
func execSRET(a state.Access, inst isa.Inst) (uint64, error) {
	if a.PRV() < prvS || (a.PRV() == prvS && a.TSR()) {
		return 0, trap.New(trap.IllegalInstruction, uint64(inst.Raw))
	}
	a.SRET()
	return a.PC(), nil
}

// execWFI marks the hart idle unless it traps (PRV==U, or PRV==S with
// mstatus.TW set). The outer loop (Run) is responsible for actually
// skipping cycles while idle; this executor only flips the flag.
func execWFI(a state.Access, pc uint64, inst isa.Inst) (uint64, error) {
	if a.PRV() == 0 || (a.PRV() == prvS && a.TW()) {
		return 0, trap.New(trap.IllegalInstruction, uint64(inst.Raw))
	}
	fl := a.Iflags()
	fl.Idle = true
	a.SetIflags(fl)
	return pc + 4, nil
}

// execSFENCEVMA checks the TVM-gated legality (traps if PRV==U, or
// PRV==S with mstatus.TVM set) then flushes the TLB: every entry if
// rs1==x0, else just the one covering the virtual address in rs1. The
// ASID in rs2 is ignored; this implementation has no ASID tagging.
func execSFENCEVMA(a state.Access, pc uint64, inst isa.Inst) (uint64, error) {
	if a.PRV() == 0 || (a.PRV() == prvS && a.TVM()) {
		return 0, trap.New(trap.IllegalInstruction, uint64(inst.Raw))
	}
	if inst.RS1 == 0 {
		a.FlushTLBAll()
	} else {
		a.FlushTLBVAddr(a.ReadX(inst.RS1))
	}
	return pc + 4, nil
}

// execCSR implements the six Zicsr instructions, applying the
// read/write-suppression discipline RISC-V mandates: a CSRRW-family
// write always happens, but the read is skipped when rd==x0 to avoid
// unnecessary read side effects; a CSRRS/CSRRC-family read always
// happens, but the write is skipped when the source (register or
// immediate) is zero, since ORing/AND-NOTing with zero would be a
// no-op anyway and some CSRs treat "no write" and "write same value"
// differently.
func execCSR(a state.Access, inst isa.Inst) error {
	switch inst.Op {
	case isa.OpCSRRW, isa.OpCSRRWI:
		var rsVal uint64
		if inst.Op == isa.OpCSRRWI {
			rsVal = inst.UImm
		} else {
			rsVal = a.ReadX(inst.RS1)
		}
		if inst.RD != 0 {
			old, err := a.ReadCSR(inst.CSR)
			if err != nil {
				return err
			}
			if err := a.WriteCSR(inst.CSR, rsVal); err != nil {
				return err
			}
			a.WriteX(inst.RD, old)
			return nil
		}
		return a.WriteCSR(inst.CSR, rsVal)

	case isa.OpCSRRS, isa.OpCSRRC, isa.OpCSRRSI, isa.OpCSRRCI:
		old, err := a.ReadCSR(inst.CSR)
		if err != nil {
			return err
		}
		var mask uint64
		switch inst.Op {
		case isa.OpCSRRS, isa.OpCSRRC:
			mask = a.ReadX(inst.RS1)
		default:
			mask = inst.UImm
		}
		if mask != 0 {
			var newVal uint64
			switch inst.Op {
			case isa.OpCSRRS, isa.OpCSRRSI:
				newVal = old | mask
			default:
				newVal = old &^ mask
			}
			if err := a.WriteCSR(inst.CSR, newVal); err != nil {
				return err
			}
		}
		a.WriteX(inst.RD, old)
		return nil
	}
	return nil
}
