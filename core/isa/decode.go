/*
 * rv64det - RV64IMA + Zifencei + privileged instruction decoder
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

// Package isa decodes a 32-bit RV64IMASU instruction word into an Op
// plus its operand fields: a two-level dispatch on opcode and then
// funct3/funct7 that turns raw encoding bits into a symbolic
// operation the executor switches on, rather than a decode tree
// re-walked by every executor.
package isa

// Op names a decoded operation. The zero value, OpIllegal, is never a
// valid decode result: every recognized encoding maps to a non-zero
// Op, so a forgotten decode table entry fails loudly.
type Op int

const (
	OpIllegal Op = iota

	OpLUI
	OpAUIPC
	OpJAL
	OpJALR

	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU

	OpSB
	OpSH
	OpSW
	OpSD

	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW

	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW

	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU

	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	OpFENCE
	OpFENCEI

	OpECALL
	OpEBREAK
	OpMRET
	OpSRET
	OpWFI
	OpSFENCEVMA
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	OpLRW
	OpLRD
	OpSCW
	OpSCD
	OpAMOSWAPW
	OpAMOADDW
	OpAMOXORW
	OpAMOANDW
	OpAMOORW
	OpAMOMINW
	OpAMOMAXW
	OpAMOMINUW
	OpAMOMAXUW
	OpAMOSWAPD
	OpAMOADDD
	OpAMOXORD
	OpAMOANDD
	OpAMOORD
	OpAMOMIND
	OpAMOMAXD
	OpAMOMINUD
	OpAMOMAXUD
)

// Inst is a fully decoded instruction.
type Inst struct {
	Op     Op
	RD     int
	RS1    int
	RS2    int
	CSR    uint16
	Imm    int64  // sign-extended immediate for I/S/B/U/J types
	UImm   uint64 // zero-extended 5-bit immediate (CSR immediate form)
	Funct3 uint8
	Funct7 uint8
	AQ     bool
	RL     bool
	Raw    uint32
}

func bits(w uint32, hi, lo uint) uint32 {
	return (w >> lo) & ((1 << (hi - lo + 1)) - 1)
}

func signExtend(v uint32, bit uint) int64 {
	shift := 31 - bit
	return int64(int32(v<<shift)) >> shift
}

// Decode decodes the 32-bit word w, returning Inst with Op==OpIllegal
// if the encoding is not recognized.
func Decode(w uint32) Inst {
	opcode := bits(w, 6, 0)
	rd := int(bits(w, 11, 7))
	funct3 := uint8(bits(w, 14, 12))
	rs1 := int(bits(w, 19, 15))
	rs2 := int(bits(w, 24, 20))
	funct7 := uint8(bits(w, 31, 25))

	in := Inst{RD: rd, RS1: rs1, RS2: rs2, Funct3: funct3, Funct7: funct7, Raw: w}

	switch opcode {
	case 0b0110111:
		in.Op = OpLUI
		in.Imm = int64(int32(w & 0xfffff000))
	case 0b0010111:
		in.Op = OpAUIPC
		in.Imm = int64(int32(w & 0xfffff000))
	case 0b1101111: // JAL
		in.Op = OpJAL
		imm := bits(w, 31, 31)<<20 | bits(w, 19, 12)<<12 | bits(w, 20, 20)<<11 | bits(w, 30, 21)<<1
		in.Imm = signExtend(imm, 20)
	case 0b1100111: // JALR
		if funct3 == 0 {
			in.Op = OpJALR
			in.Imm = signExtend(bits(w, 31, 20), 11)
		}
	case 0b1100011:
		in.Imm = branchImm(w)
		switch funct3 {
		case 0b000:
			in.Op = OpBEQ
		case 0b001:
			in.Op = OpBNE
		case 0b100:
			in.Op = OpBLT
		case 0b101:
			in.Op = OpBGE
		case 0b110:
			in.Op = OpBLTU
		case 0b111:
			in.Op = OpBGEU
		}
	case 0b0000011: // loads
		in.Imm = signExtend(bits(w, 31, 20), 11)
		switch funct3 {
		case 0b000:
			in.Op = OpLB
		case 0b001:
			in.Op = OpLH
		case 0b010:
			in.Op = OpLW
		case 0b011:
			in.Op = OpLD
		case 0b100:
			in.Op = OpLBU
		case 0b101:
			in.Op = OpLHU
		case 0b110:
			in.Op = OpLWU
		}
	case 0b0100011: // stores
		imm := bits(w, 31, 25)<<5 | bits(w, 11, 7)
		in.Imm = signExtend(imm, 11)
		switch funct3 {
		case 0b000:
			in.Op = OpSB
		case 0b001:
			in.Op = OpSH
		case 0b010:
			in.Op = OpSW
		case 0b011:
			in.Op = OpSD
		}
	case 0b0010011: // arithmetic-immediate
		in.Imm = signExtend(bits(w, 31, 20), 11)
		switch funct3 {
		case 0b000:
			in.Op = OpADDI
		case 0b010:
			in.Op = OpSLTI
		case 0b011:
			in.Op = OpSLTIU
		case 0b100:
			in.Op = OpXORI
		case 0b110:
			in.Op = OpORI
		case 0b111:
			in.Op = OpANDI
		case 0b001:
			// RV64 shift-immediates carry a 6-bit shamt, so only the
			// top six bits discriminate the encoding.
			if bits(w, 31, 26) == 0 {
				in.Op = OpSLLI
				in.Imm = int64(bits(w, 25, 20))
			}
		case 0b101:
			switch bits(w, 31, 26) {
			case 0:
				in.Op = OpSRLI
				in.Imm = int64(bits(w, 25, 20))
			case 0b010000:
				in.Op = OpSRAI
				in.Imm = int64(bits(w, 25, 20))
			}
		}
	case 0b0110011: // arithmetic
		switch {
		case funct7 == 0b0000001:
			switch funct3 {
			case 0b000:
				in.Op = OpMUL
			case 0b001:
				in.Op = OpMULH
			case 0b010:
				in.Op = OpMULHSU
			case 0b011:
				in.Op = OpMULHU
			case 0b100:
				in.Op = OpDIV
			case 0b101:
				in.Op = OpDIVU
			case 0b110:
				in.Op = OpREM
			case 0b111:
				in.Op = OpREMU
			}
		case funct7 == 0:
			switch funct3 {
			case 0:
				in.Op = OpADD
			case 1:
				in.Op = OpSLL
			case 2:
				in.Op = OpSLT
			case 3:
				in.Op = OpSLTU
			case 4:
				in.Op = OpXOR
			case 5:
				in.Op = OpSRL
			case 6:
				in.Op = OpOR
			case 7:
				in.Op = OpAND
			}
		case funct7 == 0b0100000:
			switch funct3 {
			case 0b000:
				in.Op = OpSUB
			case 0b101:
				in.Op = OpSRA
			}
		}
	case 0b0011011: // arithmetic-immediate-32
		in.Imm = signExtend(bits(w, 31, 20), 11)
		switch funct3 {
		case 0b000:
			in.Op = OpADDIW
		case 0b001:
			if funct7 == 0 {
				in.Op = OpSLLIW
				in.Imm = int64(rs2)
			}
		case 0b101:
			switch funct7 {
			case 0:
				in.Op = OpSRLIW
				in.Imm = int64(rs2)
			case 0b0100000:
				in.Op = OpSRAIW
				in.Imm = int64(rs2)
			}
		}
	case 0b0111011: // arithmetic-32
		switch {
		case funct7 == 0b0000001:
			switch funct3 {
			case 0b000:
				in.Op = OpMULW
			case 0b100:
				in.Op = OpDIVW
			case 0b101:
				in.Op = OpDIVUW
			case 0b110:
				in.Op = OpREMW
			case 0b111:
				in.Op = OpREMUW
			}
		case funct7 == 0:
			switch funct3 {
			case 0b000:
				in.Op = OpADDW
			case 0b001:
				in.Op = OpSLLW
			case 0b101:
				in.Op = OpSRLW
			}
		case funct7 == 0b0100000:
			switch funct3 {
			case 0b000:
				in.Op = OpSUBW
			case 0b101:
				in.Op = OpSRAW
			}
		}
	case 0b0001111:
		switch funct3 {
		case 0b000:
			in.Op = OpFENCE
		case 0b001:
			in.Op = OpFENCEI
		}
	case 0b1110011: // system
		decodeSystem(w, &in)
	case 0b0101111: // atomics
		decodeAtomic(w, &in)
	}
	return in
}

func branchImm(w uint32) int64 {
	imm := bits(w, 31, 31)<<12 | bits(w, 7, 7)<<11 | bits(w, 30, 25)<<5 | bits(w, 11, 8)<<1
	return signExtend(imm, 12)
}

func decodeSystem(w uint32, in *Inst) {
	funct3 := in.Funct3
	if funct3 == 0 {
		switch bits(w, 31, 20) {
		case 0x000:
			in.Op = OpECALL
		case 0x001:
			in.Op = OpEBREAK
		case 0x302:
			in.Op = OpMRET
		case 0x102:
			in.Op = OpSRET
		case 0x105:
			in.Op = OpWFI
		default:
			if in.Funct7 == 0b0001001 {
				in.Op = OpSFENCEVMA
			}
		}
		return
	}
	in.CSR = uint16(bits(w, 31, 20))
	switch funct3 {
	case 0b001:
		in.Op = OpCSRRW
	case 0b010:
		in.Op = OpCSRRS
	case 0b011:
		in.Op = OpCSRRC
	case 0b101:
		in.Op = OpCSRRWI
		in.UImm = uint64(in.RS1)
	case 0b110:
		in.Op = OpCSRRSI
		in.UImm = uint64(in.RS1)
	case 0b111:
		in.Op = OpCSRRCI
		in.UImm = uint64(in.RS1)
	}
}

func decodeAtomic(w uint32, in *Inst) {
	if in.Funct3 != 0b010 && in.Funct3 != 0b011 {
		return
	}
	is64 := in.Funct3 == 0b011
	funct5 := bits(w, 31, 27)
	in.AQ = bits(w, 26, 26) != 0
	in.RL = bits(w, 25, 25) != 0
	switch funct5 {
	case 0b00010:
		in.Op = pick(is64, OpLRW, OpLRD)
	case 0b00011:
		in.Op = pick(is64, OpSCW, OpSCD)
	case 0b00001:
		in.Op = pick(is64, OpAMOSWAPW, OpAMOSWAPD)
	case 0b00000:
		in.Op = pick(is64, OpAMOADDW, OpAMOADDD)
	case 0b00100:
		in.Op = pick(is64, OpAMOXORW, OpAMOXORD)
	case 0b01100:
		in.Op = pick(is64, OpAMOANDW, OpAMOANDD)
	case 0b01000:
		in.Op = pick(is64, OpAMOORW, OpAMOORD)
	case 0b10000:
		in.Op = pick(is64, OpAMOMINW, OpAMOMIND)
	case 0b10100:
		in.Op = pick(is64, OpAMOMAXW, OpAMOMAXD)
	case 0b11000:
		in.Op = pick(is64, OpAMOMINUW, OpAMOMINUD)
	case 0b11100:
		in.Op = pick(is64, OpAMOMAXUW, OpAMOMAXUD)
	}
}

func pick(is64 bool, w32, w64 Op) Op {
	if is64 {
		return w64
	}
	return w32
}
