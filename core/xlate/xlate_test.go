/*
 * rv64det - Sv39/Sv48 address translator
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

package xlate

import "testing"

// fakeMem is a word-addressed physical memory double for exercising
// the page-table walker without a real pma.Table.
type fakeMem struct {
	data map[uint64]uint64
}

func newFakeMem() *fakeMem { return &fakeMem{data: map[uint64]uint64{}} }

func (m *fakeMem) ReadPhysWord(paddr uint64) (uint64, bool) {
	v, ok := m.data[paddr]
	return v, ok
}

func (m *fakeMem) WritePhysWord(paddr uint64, val uint64) bool {
	m.data[paddr] = val
	return true
}

const (
	rootPPN   = 0x2
	satpSv39  = uint64(satpModeSv39) << satpModeShift
	giantPPN  = 0x40000 // 1GB aligned physical frame (bit 18 set, low 18 bits zero)
)

func giantLeafPTE(flags uint64) uint64 {
	return giantPPN<<10 | flags
}

func TestTranslateMModeBypassesPaging(t *testing.T) {
	mem := newFakeMem()
	paddr, err := Translate(Read, 0x1234, 3, satpSv39|rootPPN, false, false, mem)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if paddr != 0x1234 {
		t.Fatalf("M-mode translate should be identity, got %#x", paddr)
	}
}

func TestTranslateBareModeIsIdentity(t *testing.T) {
	mem := newFakeMem()
	paddr, err := Translate(Read, 0xabcd, 0, 0, false, false, mem)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if paddr != 0xabcd {
		t.Fatalf("satp mode Bare should be identity, got %#x", paddr)
	}
}

func TestTranslateSv39GiantLeafSucceeds(t *testing.T) {
	mem := newFakeMem()
	mem.data[rootPPN<<pageShift] = giantLeafPTE(pteV | pteR | pteW | pteX | pteU)

	vaddr := uint64(0x1234)
	paddr, err := Translate(Read, vaddr, 0, satpSv39|rootPPN, false, false, mem)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	want := giantPPN<<pageShift | vaddr
	if paddr != want {
		t.Fatalf("paddr = %#x, want %#x", paddr, want)
	}
	if mem.data[rootPPN<<pageShift]&pteA == 0 {
		t.Fatalf("Translate should set the accessed bit on the leaf PTE")
	}
}

func TestTranslateWriteSetsDirtyBit(t *testing.T) {
	mem := newFakeMem()
	mem.data[rootPPN<<pageShift] = giantLeafPTE(pteV | pteR | pteW | pteX | pteU)

	if _, err := Translate(Write, 0, 0, satpSv39|rootPPN, false, false, mem); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	pte := mem.data[rootPPN<<pageShift]
	if pte&pteD == 0 {
		t.Fatalf("a write access should set the dirty bit")
	}
	if pte&pteA == 0 {
		t.Fatalf("a write access should also set the accessed bit")
	}
}

func TestTranslateMissingPTEFaults(t *testing.T) {
	mem := newFakeMem() // nothing backs the root PTE address
	if _, err := Translate(Read, 0, 0, satpSv39|rootPPN, false, false, mem); err == nil {
		t.Fatalf("expected a page fault when the root PTE has no physical backing")
	}
}

func TestTranslateInvalidPTEFaults(t *testing.T) {
	mem := newFakeMem()
	mem.data[rootPPN<<pageShift] = giantLeafPTE(pteR | pteW) // V clear
	if _, err := Translate(Read, 0, 0, satpSv39|rootPPN, false, false, mem); err == nil {
		t.Fatalf("expected a page fault for an invalid (V=0) PTE")
	}
}

func TestTranslateReservedWriteWithoutReadFaults(t *testing.T) {
	mem := newFakeMem()
	mem.data[rootPPN<<pageShift] = giantLeafPTE(pteV | pteW) // W set, R clear: reserved encoding
	if _, err := Translate(Read, 0, 0, satpSv39|rootPPN, false, false, mem); err == nil {
		t.Fatalf("expected a page fault for the reserved W-without-R PTE encoding")
	}
}

func TestTranslateUserAccessToSupervisorPageFaults(t *testing.T) {
	mem := newFakeMem()
	mem.data[rootPPN<<pageShift] = giantLeafPTE(pteV | pteR | pteW | pteX) // U clear
	if _, err := Translate(Read, 0, 0, satpSv39|rootPPN, false, false, mem); err == nil {
		t.Fatalf("expected a page fault: user mode accessing a supervisor-only page")
	}
}

func TestTranslateSupervisorAccessToUserPageRequiresSUM(t *testing.T) {
	mem := newFakeMem()
	mem.data[rootPPN<<pageShift] = giantLeafPTE(pteV | pteR | pteW | pteX | pteU)
	if _, err := Translate(Read, 0, 1 /* S */, satpSv39|rootPPN, false, false, mem); err == nil {
		t.Fatalf("supervisor access to a U page without SUM should fault")
	}
	if _, err := Translate(Read, 0, 1, satpSv39|rootPPN, true /* sum */, false, mem); err != nil {
		t.Fatalf("supervisor access to a U page with SUM set should succeed: %v", err)
	}
}

func TestTranslateReadWithoutRNeedsMXRAndX(t *testing.T) {
	mem := newFakeMem()
	mem.data[rootPPN<<pageShift] = giantLeafPTE(pteV | pteX | pteU) // R clear, X set
	if _, err := Translate(Read, 0, 0, satpSv39|rootPPN, false, false, mem); err == nil {
		t.Fatalf("a read of an execute-only page should fault without MXR")
	}
	if _, err := Translate(Read, 0, 0, satpSv39|rootPPN, false, true /* mxr */, mem); err != nil {
		t.Fatalf("MXR should let a read succeed against an execute-only page: %v", err)
	}
}

func TestTranslateCodeFetchNeedsX(t *testing.T) {
	mem := newFakeMem()
	mem.data[rootPPN<<pageShift] = giantLeafPTE(pteV | pteR | pteU) // X clear
	if _, err := Translate(Code, 0, 0, satpSv39|rootPPN, false, false, mem); err == nil {
		t.Fatalf("an instruction fetch from a non-executable page should fault")
	}
}

func TestTranslateSuperpageMisalignmentFaults(t *testing.T) {
	mem := newFakeMem()
	// A 1GB leaf whose PPN is not 1GB-aligned: low 18 bits of the PPN
	// field must be zero at level 2, here they are not.
	mem.data[rootPPN<<pageShift] = (giantPPN+1)<<10 | pteV | pteR | pteW | pteX | pteU
	if _, err := Translate(Read, 0, 0, satpSv39|rootPPN, false, false, mem); err == nil {
		t.Fatalf("expected a page fault for a misaligned superpage")
	}
}

func TestTranslateUnsupportedSatpModeFaults(t *testing.T) {
	mem := newFakeMem()
	badMode := uint64(3) << satpModeShift // reserved mode value
	if _, err := Translate(Read, 0, 0, badMode|rootPPN, false, false, mem); err == nil {
		t.Fatalf("expected a page fault for an unsupported satp mode")
	}
}
