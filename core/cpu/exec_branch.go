/*
 * rv64det - Branch executor
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

// execBranch evaluates a conditional branch and returns either the
// branch target (if taken) or pc+4, after checking alignment of the
// taken target.
func execBranch(a state.Access, pc uint64, inst isa.Inst) (uint64, error) {
	rs1 := a.ReadX(inst.RS1)
	rs2 := a.ReadX(inst.RS2)
	var taken bool
	switch inst.Op {
	case isa.OpBEQ:
		taken = rs1 == rs2
	case isa.OpBNE:
		taken = rs1 != rs2
	case isa.OpBLT:
		taken = int64(rs1) < int64(rs2)
	case isa.OpBGE:
		taken = int64(rs1) >= int64(rs2)
	case isa.OpBLTU:
		taken = rs1 < rs2
	case isa.OpBGEU:
		taken = rs1 >= rs2
	}
	if !taken {
		return pc + 4, nil
	}
	target := pc + uint64(inst.Imm)
	if target%4 != 0 {
		return 0, trap.New(trap.InstructionMisaligned, target)
	}
	return target, nil
}
