/*
 * rv64det - Instruction execution dispatch
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

// dispatch executes inst (fetched at pc) and returns the pc the next
// instruction should run at. Executors that do not alter control flow
// leave it to the caller's default of pc+4.
func dispatch(a state.Access, pc uint64, inst isa.Inst) (uint64, error) {
	switch inst.Op {
	case isa.OpLUI:
		a.WriteX(inst.RD, uint64(inst.Imm))
	case isa.OpAUIPC:
		a.WriteX(inst.RD, pc+uint64(inst.Imm))
	case isa.OpJAL:
		return execJump(a, pc, inst.RD, pc+uint64(inst.Imm))
	case isa.OpJALR:
		target := (a.ReadX(inst.RS1) + uint64(inst.Imm)) &^ 1
		return execJump(a, pc, inst.RD, target)

	case isa.OpBEQ, isa.OpBNE, isa.OpBLT, isa.OpBGE, isa.OpBLTU, isa.OpBGEU:
		return execBranch(a, pc, inst)

	case isa.OpLB, isa.OpLH, isa.OpLW, isa.OpLD, isa.OpLBU, isa.OpLHU, isa.OpLWU:
		if err := execLoad(a, inst); err != nil {
			return 0, err
		}
	case isa.OpSB, isa.OpSH, isa.OpSW, isa.OpSD:
		if err := execStore(a, inst); err != nil {
			return 0, err
		}

	case isa.OpADDI, isa.OpSLTI, isa.OpSLTIU, isa.OpXORI, isa.OpORI, isa.OpANDI,
		isa.OpSLLI, isa.OpSRLI, isa.OpSRAI,
		isa.OpADD, isa.OpSUB, isa.OpSLL, isa.OpSLT, isa.OpSLTU, isa.OpXOR, isa.OpSRL, isa.OpSRA, isa.OpOR, isa.OpAND,
		isa.OpADDIW, isa.OpSLLIW, isa.OpSRLIW, isa.OpSRAIW,
		isa.OpADDW, isa.OpSUBW, isa.OpSLLW, isa.OpSRLW, isa.OpSRAW:
		execALU(a, inst)

	case isa.OpMUL, isa.OpMULH, isa.OpMULHSU, isa.OpMULHU, isa.OpDIV, isa.OpDIVU, isa.OpREM, isa.OpREMU,
		isa.OpMULW, isa.OpDIVW, isa.OpDIVUW, isa.OpREMW, isa.OpREMUW:
		execMulDiv(a, inst)

	case isa.OpFENCE, isa.OpFENCEI:
		// No-op: single-hart, coherent memory.

	case isa.OpECALL:
		return 0, trap.New(ecallCause(a.PRV()), 0)
	case isa.OpEBREAK:
		return 0, trap.New(trap.Breakpoint, pc)
	case isa.OpMRET:
		if a.PRV() != prvM {
			return 0, trap.New(trap.IllegalInstruction, uint64(inst.Raw))
		}
		a.MRET()
		return a.PC(), nil
	case isa.OpSRET:
		return execSRET(a, inst)
	case isa.OpWFI:
		return execWFI(a, pc, inst)
	case isa.OpSFENCEVMA:
		return execSFENCEVMA(a, pc, inst)
	case isa.OpCSRRW, isa.OpCSRRS, isa.OpCSRRC, isa.OpCSRRWI, isa.OpCSRRSI, isa.OpCSRRCI:
		if err := execCSR(a, inst); err != nil {
			return 0, err
		}

	case isa.OpLRW, isa.OpLRD:
		if err := execLR(a, inst); err != nil {
			return 0, err
		}
	case isa.OpSCW, isa.OpSCD:
		if err := execSC(a, inst); err != nil {
			return 0, err
		}
	case isa.OpAMOSWAPW, isa.OpAMOADDW, isa.OpAMOXORW, isa.OpAMOANDW, isa.OpAMOORW,
		isa.OpAMOMINW, isa.OpAMOMAXW, isa.OpAMOMINUW, isa.OpAMOMAXUW,
		isa.OpAMOSWAPD, isa.OpAMOADDD, isa.OpAMOXORD, isa.OpAMOANDD, isa.OpAMOORD,
		isa.OpAMOMIND, isa.OpAMOMAXD, isa.OpAMOMINUD, isa.OpAMOMAXUD:
		if err := execAMO(a, inst); err != nil {
			return 0, err
		}

	default:
		return 0, trap.New(trap.IllegalInstruction, uint64(inst.Raw))
	}
	return pc + 4, nil
}

const prvM = 3
const prvS = 1

func ecallCause(prv uint8) trap.Cause {
	switch prv {
	case 0:
		return trap.EcallFromU
	case 1:
		return trap.EcallFromS
	default:
		return trap.EcallFromM
	}
}

// execJump commits a JAL/JALR-style jump: write the link register
// (the pc of the instruction after this one) then transfer control,
// after checking 4-byte alignment of the target.
func execJump(a state.Access, pc uint64, rd int, target uint64) (uint64, error) {
	if target%4 != 0 {
		return 0, trap.New(trap.InstructionMisaligned, target)
	}
	a.WriteX(rd, pc+4)
	return target, nil
}
