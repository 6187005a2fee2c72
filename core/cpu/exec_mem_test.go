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
	"testing"

	"github.com/rcornwell/rv64det/core/isa"
)

func TestExecStoreThenLoadRoundTrip(t *testing.T) {
	d := newTestDirect(t, 4096)
	d.WriteX(1, testRAMBase)
	d.WriteX(2, 0xdeadbeef)
	if err := execStore(d, isa.Inst{Op: isa.OpSW, RS1: 1, RS2: 2, Imm: 0}); err != nil {
		t.Fatalf("execStore: %v", err)
	}
	if err := execLoad(d, isa.Inst{Op: isa.OpLWU, RD: 3, RS1: 1, Imm: 0}); err != nil {
		t.Fatalf("execLoad: %v", err)
	}
	if d.ReadX(3) != 0xdeadbeef {
		t.Fatalf("loaded %#x, want 0xdeadbeef", d.ReadX(3))
	}
}

func TestExecLoadSignExtends(t *testing.T) {
	d := newTestDirect(t, 4096)
	d.WriteX(1, testRAMBase)
	d.WriteX(2, 0xff)
	if err := execStore(d, isa.Inst{Op: isa.OpSB, RS1: 1, RS2: 2, Imm: 0}); err != nil {
		t.Fatalf("execStore: %v", err)
	}
	if err := execLoad(d, isa.Inst{Op: isa.OpLB, RD: 3, RS1: 1, Imm: 0}); err != nil {
		t.Fatalf("execLoad: %v", err)
	}
	if int64(d.ReadX(3)) != -1 {
		t.Fatalf("LB of 0xff = %d, want -1 (sign extended)", int64(d.ReadX(3)))
	}
	if err := execLoad(d, isa.Inst{Op: isa.OpLBU, RD: 4, RS1: 1, Imm: 0}); err != nil {
		t.Fatalf("execLoad: %v", err)
	}
	if d.ReadX(4) != 0xff {
		t.Fatalf("LBU of 0xff = %d, want 255 (zero extended)", d.ReadX(4))
	}
}

func TestExecUnalignedStoreAndLoadByteAssembly(t *testing.T) {
	d := newTestDirect(t, 4096)
	d.WriteX(1, testRAMBase+1) // unaligned word access
	d.WriteX(2, 0x11223344)
	if err := execStore(d, isa.Inst{Op: isa.OpSW, RS1: 1, RS2: 2, Imm: 0}); err != nil {
		t.Fatalf("unaligned execStore: %v", err)
	}
	if err := execLoad(d, isa.Inst{Op: isa.OpLWU, RD: 3, RS1: 1, Imm: 0}); err != nil {
		t.Fatalf("unaligned execLoad: %v", err)
	}
	if d.ReadX(3) != 0x11223344 {
		t.Fatalf("unaligned round trip = %#x, want 0x11223344", d.ReadX(3))
	}
}

func TestExecLoadFaultsOnUnmappedAddress(t *testing.T) {
	d := newTestDirect(t, 4096)
	d.WriteX(1, 0) // not backed by any PMA entry
	if err := execLoad(d, isa.Inst{Op: isa.OpLD, RD: 2, RS1: 1, Imm: 0}); err == nil {
		t.Fatalf("expected a fault reading unmapped memory")
	}
}
