/*
 * rv64det - LR/SC and AMO executors
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
	"github.com/rcornwell/rv64det/core/xlate"
)

func amoWidth(op isa.Op) uint {
	switch op {
	case isa.OpLRW, isa.OpSCW, isa.OpAMOSWAPW, isa.OpAMOADDW, isa.OpAMOXORW, isa.OpAMOANDW, isa.OpAMOORW,
		isa.OpAMOMINW, isa.OpAMOMAXW, isa.OpAMOMINUW, isa.OpAMOMAXUW:
		return 4
	default:
		return 8
	}
}

// execLR loads the reserved word/doubleword at rs1 and records the
// reservation address. The access is checked against
// Write permission as well as Read, since the matching SC must be able
// to store to the same address; a host with read-only memory backing
// an LR/SC pair would be unusual and is out of scope here.
func execLR(a state.Access, inst isa.Inst) error {
	size := amoWidth(inst.Op)
	vaddr := a.ReadX(inst.RS1)
	if vaddr%uint64(size) != 0 {
		return trap.New(trap.LoadMisaligned, vaddr)
	}
	if err := a.ProbeVirt(xlate.Write, vaddr); err != nil {
		return err
	}
	v, err := a.ReadVirt(xlate.Read, vaddr, size)
	if err != nil {
		return err
	}
	if size == 4 {
		v = signExtendSized(v, 4)
	}
	a.SetReservation(vaddr)
	a.WriteX(inst.RD, v)
	return nil
}

// execSC stores conditionally: it succeeds, writing rs2 and 0 to rd,
// only if the reservation set by the most recent LR still covers
// vaddr; it always clears the reservation, matching the RISC-V rule
// that at most one SC may succeed per LR.
func execSC(a state.Access, inst isa.Inst) error {
	size := amoWidth(inst.Op)
	vaddr := a.ReadX(inst.RS1)
	if vaddr%uint64(size) != 0 {
		return trap.New(trap.StoreMisaligned, vaddr)
	}
	reserved := a.Reservation() == vaddr
	a.SetReservation(^uint64(0))
	if !reserved {
		a.WriteX(inst.RD, 1)
		return nil
	}
	if err := a.WriteVirt(vaddr, a.ReadX(inst.RS2), size); err != nil {
		return err
	}
	a.WriteX(inst.RD, 0)
	return nil
}

// execAMO performs a read-modify-write at rs1, returning the prior
// value in rd. Single-hart execution makes the read and write
// trivially atomic with respect to every other access this emulator
// can perform between them.
func execAMO(a state.Access, inst isa.Inst) error {
	size := amoWidth(inst.Op)
	vaddr := a.ReadX(inst.RS1)
	if vaddr%uint64(size) != 0 {
		return trap.New(trap.StoreMisaligned, vaddr)
	}
	old, err := a.ReadVirt(xlate.Write, vaddr, size)
	if err != nil {
		return err
	}
	if size == 4 {
		old = signExtendSized(old, 4)
	}
	rs2 := a.ReadX(inst.RS2)
	if size == 4 {
		// Word-sized AMOs operate on the low 32 bits of rs2; old is
		// already sign-extended above, so extend rs2 the same way for
		// the signed comparisons below.
		rs2 = signExtendSized(rs2, 4)
	}

	var newVal uint64
	switch inst.Op {
	case isa.OpAMOSWAPW, isa.OpAMOSWAPD:
		newVal = rs2
	case isa.OpAMOADDW, isa.OpAMOADDD:
		newVal = old + rs2
	case isa.OpAMOXORW, isa.OpAMOXORD:
		newVal = old ^ rs2
	case isa.OpAMOANDW, isa.OpAMOANDD:
		newVal = old & rs2
	case isa.OpAMOORW, isa.OpAMOORD:
		newVal = old | rs2
	case isa.OpAMOMINW, isa.OpAMOMIND:
		newVal = amoMin(old, rs2)
	case isa.OpAMOMAXW, isa.OpAMOMAXD:
		newVal = amoMax(old, rs2)
	case isa.OpAMOMINUW, isa.OpAMOMINUD:
		newVal = amoMinU(old, rs2, size)
	case isa.OpAMOMAXUW, isa.OpAMOMAXUD:
		newVal = amoMaxU(old, rs2, size)
	}
	if size == 4 {
		newVal = uint64(uint32(newVal))
	}
	if err := a.WriteVirt(vaddr, newVal, size); err != nil {
		return err
	}
	a.WriteX(inst.RD, old)
	return nil
}

func amoMin(old, rs2 uint64) uint64 {
	if int64(old) < int64(rs2) {
		return old
	}
	return rs2
}

func amoMax(old, rs2 uint64) uint64 {
	if int64(old) > int64(rs2) {
		return old
	}
	return rs2
}

func amoMinU(old, rs2 uint64, size uint) uint64 {
	a, b := old, rs2
	if size == 4 {
		a, b = uint64(uint32(old)), uint64(uint32(rs2))
	}
	if a < b {
		return old
	}
	return rs2
}

func amoMaxU(old, rs2 uint64, size uint) uint64 {
	a, b := old, rs2
	if size == 4 {
		a, b = uint64(uint32(old)), uint64(uint32(rs2))
	}
	if a > b {
		return old
	}
	return rs2
}
