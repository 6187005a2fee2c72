/*
 * rv64det - Integer arithmetic, shift, multiply and divide executors
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
	"math/bits"

	"github.com/rcornwell/rv64det/core/isa"
	"github.com/rcornwell/rv64det/core/state"
)

// execALU implements every non-multiply/divide arithmetic and shift
// instruction. All arithmetic wraps on overflow; Go's
// unsigned/twos-complement semantics give
// this for free, so no explicit wrapping helper is needed beyond
// using uint64 throughout and converting to int64 only where a signed
// comparison or arithmetic shift is required.
func execALU(a state.Access, inst isa.Inst) {
	rs1 := a.ReadX(inst.RS1)
	var rs2 uint64
	imm := uint64(inst.Imm)
	switch inst.Op {
	case isa.OpADD, isa.OpSUB, isa.OpSLL, isa.OpSLT, isa.OpSLTU, isa.OpXOR, isa.OpSRL, isa.OpSRA, isa.OpOR, isa.OpAND,
		isa.OpADDW, isa.OpSUBW, isa.OpSLLW, isa.OpSRLW, isa.OpSRAW:
		rs2 = a.ReadX(inst.RS2)
	}

	var result uint64
	switch inst.Op {
	case isa.OpADDI, isa.OpADD:
		result = rs1 + pick(inst.Op == isa.OpADDI, imm, rs2)
	case isa.OpSUB:
		result = rs1 - rs2
	case isa.OpSLTI:
		result = boolToU64(int64(rs1) < inst.Imm)
	case isa.OpSLT:
		result = boolToU64(int64(rs1) < int64(rs2))
	case isa.OpSLTIU:
		result = boolToU64(rs1 < imm)
	case isa.OpSLTU:
		result = boolToU64(rs1 < rs2)
	case isa.OpXORI, isa.OpXOR:
		result = rs1 ^ pick(inst.Op == isa.OpXORI, imm, rs2)
	case isa.OpORI, isa.OpOR:
		result = rs1 | pick(inst.Op == isa.OpORI, imm, rs2)
	case isa.OpANDI, isa.OpAND:
		result = rs1 & pick(inst.Op == isa.OpANDI, imm, rs2)
	case isa.OpSLLI, isa.OpSLL:
		result = rs1 << (pick(inst.Op == isa.OpSLLI, imm, rs2) & 0x3f)
	case isa.OpSRLI, isa.OpSRL:
		result = rs1 >> (pick(inst.Op == isa.OpSRLI, imm, rs2) & 0x3f)
	case isa.OpSRAI, isa.OpSRA:
		result = uint64(int64(rs1) >> (pick(inst.Op == isa.OpSRAI, imm, rs2) & 0x3f))

	case isa.OpADDIW, isa.OpADDW:
		result = signExt32(uint32(rs1) + uint32(pick(inst.Op == isa.OpADDIW, imm, rs2)))
	case isa.OpSUBW:
		result = signExt32(uint32(rs1) - uint32(rs2))
	case isa.OpSLLIW, isa.OpSLLW:
		result = signExt32(uint32(rs1) << (pick(inst.Op == isa.OpSLLIW, imm, rs2) & 0x1f))
	case isa.OpSRLIW, isa.OpSRLW:
		result = signExt32(uint32(rs1) >> (pick(inst.Op == isa.OpSRLIW, imm, rs2) & 0x1f))
	case isa.OpSRAIW, isa.OpSRAW:
		result = signExt32(uint32(int32(uint32(rs1)) >> (pick(inst.Op == isa.OpSRAIW, imm, rs2) & 0x1f)))
	}
	a.WriteX(inst.RD, result)
}

func pick(useImm bool, imm, reg uint64) uint64 {
	if useImm {
		return imm
	}
	return reg
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func signExt32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

// execMulDiv implements M-extension instructions, applying the
// RISC-V-mandated results for division edge cases:
// divide by zero yields -1 (quotient) or the dividend (remainder);
// signed INT_MIN / -1 yields INT_MIN (quotient) or 0 (remainder).
func execMulDiv(a state.Access, inst isa.Inst) {
	rs1 := a.ReadX(inst.RS1)
	rs2 := a.ReadX(inst.RS2)
	var result uint64

	switch inst.Op {
	case isa.OpMUL:
		result = rs1 * rs2
	case isa.OpMULH:
		result = mulhSigned(int64(rs1), int64(rs2))
	case isa.OpMULHU:
		hi, _ := bits.Mul64(rs1, rs2)
		result = hi
	case isa.OpMULHSU:
		result = mulhSignedUnsigned(int64(rs1), rs2)
	case isa.OpDIV:
		result = uint64(sdiv(int64(rs1), int64(rs2)))
	case isa.OpDIVU:
		if rs2 == 0 {
			result = ^uint64(0)
		} else {
			result = rs1 / rs2
		}
	case isa.OpREM:
		result = uint64(srem(int64(rs1), int64(rs2)))
	case isa.OpREMU:
		if rs2 == 0 {
			result = rs1
		} else {
			result = rs1 % rs2
		}

	case isa.OpMULW:
		result = signExt32(uint32(rs1) * uint32(rs2))
	case isa.OpDIVW:
		result = signExt32(uint32(sdiv32(int32(uint32(rs1)), int32(uint32(rs2)))))
	case isa.OpDIVUW:
		a32, b32 := uint32(rs1), uint32(rs2)
		if b32 == 0 {
			result = signExt32(^uint32(0))
		} else {
			result = signExt32(a32 / b32)
		}
	case isa.OpREMW:
		result = signExt32(uint32(srem32(int32(uint32(rs1)), int32(uint32(rs2)))))
	case isa.OpREMUW:
		a32, b32 := uint32(rs1), uint32(rs2)
		if b32 == 0 {
			result = signExt32(a32)
		} else {
			result = signExt32(a32 % b32)
		}
	}
	a.WriteX(inst.RD, result)
}

func sdiv(a, b int64) int64 {
	if b == 0 {
		return -1
	}
	if a == minInt64 && b == -1 {
		return minInt64
	}
	return a / b
}

func srem(a, b int64) int64 {
	if b == 0 {
		return a
	}
	if a == minInt64 && b == -1 {
		return 0
	}
	return a % b
}

const minInt64 = -1 << 63
const minInt32 = -1 << 31

func sdiv32(a, b int32) int32 {
	if b == 0 {
		return -1
	}
	if a == minInt32 && b == -1 {
		return minInt32
	}
	return a / b
}

func srem32(a, b int32) int32 {
	if b == 0 {
		return a
	}
	if a == minInt32 && b == -1 {
		return 0
	}
	return a % b
}

// mulhSigned returns the upper 64 bits of the signed 128-bit product
// a*b.
func mulhSigned(a, b int64) uint64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	hi -= uint64(negMask(a)) & uint64(b)
	hi -= uint64(negMask(b)) & uint64(a)
	return hi
}

// mulhSignedUnsigned returns the upper 64 bits of the product of
// signed a and unsigned b.
func mulhSignedUnsigned(a int64, b uint64) uint64 {
	hi, _ := bits.Mul64(uint64(a), b)
	hi -= uint64(negMask(a)) & b
	return hi
}

// negMask returns all-ones if v (reinterpreted as int64) is negative,
// else zero; used to apply the sign-extension correction term when
// computing the high half of a signed*signed or signed*unsigned
// 128-bit product from an unsigned 64x64->128 multiply.
func negMask(v int64) int64 {
	return v >> 63
}
