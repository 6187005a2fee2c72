/*
 * rv64det - Load/store executors
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
	"github.com/rcornwell/rv64det/core/xlate"
)

func loadSize(op isa.Op) (size uint, signed bool) {
	switch op {
	case isa.OpLB:
		return 1, true
	case isa.OpLH:
		return 2, true
	case isa.OpLW:
		return 4, true
	case isa.OpLD:
		return 8, false
	case isa.OpLBU:
		return 1, false
	case isa.OpLHU:
		return 2, false
	case isa.OpLWU:
		return 4, false
	}
	return 0, false
}

func storeSize(op isa.Op) uint {
	switch op {
	case isa.OpSB:
		return 1
	case isa.OpSH:
		return 2
	case isa.OpSW:
		return 4
	case isa.OpSD:
		return 8
	}
	return 0
}

func signExtendSized(v uint64, size uint) uint64 {
	switch size {
	case 1:
		return uint64(int64(int8(v)))
	case 2:
		return uint64(int64(int16(v)))
	case 4:
		return uint64(int64(int32(v)))
	default:
		return v
	}
}

// execLoad reads size bytes at rs1+imm, decomposing an unaligned
// access into byte reads assembled in program order. No rollback is
// needed on a load fault since the destination register is only
// written after every byte succeeds.
func execLoad(a state.Access, inst isa.Inst) error {
	size, signed := loadSize(inst.Op)
	vaddr := a.ReadX(inst.RS1) + uint64(inst.Imm)

	var v uint64
	var err error
	if vaddr%uint64(size) == 0 {
		v, err = a.ReadVirt(xlate.Read, vaddr, size)
	} else {
		v, err = readUnaligned(a, vaddr, size)
	}
	if err != nil {
		return err
	}
	if signed {
		v = signExtendSized(v, size)
	}
	a.WriteX(inst.RD, v)
	return nil
}

func readUnaligned(a state.Access, vaddr uint64, size uint) (uint64, error) {
	var v uint64
	for i := uint(0); i < size; i++ {
		b, err := a.ReadVirt(xlate.Read, vaddr+uint64(i), 1)
		if err != nil {
			return 0, err
		}
		v |= b << (8 * i)
	}
	return v, nil
}

// execStore writes size bytes at rs1+imm. Unaligned stores probe
// every constituent byte's translation before writing any of them, so
// a store either fully commits or leaves memory untouched.
func execStore(a state.Access, inst isa.Inst) error {
	size := storeSize(inst.Op)
	vaddr := a.ReadX(inst.RS1) + uint64(inst.Imm)
	val := a.ReadX(inst.RS2)

	if vaddr%uint64(size) == 0 {
		return a.WriteVirt(vaddr, val, size)
	}

	for i := uint(0); i < size; i++ {
		if err := a.ProbeVirt(xlate.Write, vaddr+uint64(i)); err != nil {
			return err
		}
	}
	for i := uint(0); i < size; i++ {
		b := (val >> (8 * i)) & 0xff
		if err := a.WriteVirt(vaddr+uint64(i), b, 1); err != nil {
			return err
		}
	}
	return nil
}
