/*
 * rv64det - PMA table
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

package pma

import (
	"testing"

	"github.com/rcornwell/rv64det/core/hash"
)

func TestAddMemoryRejectsUnalignedStart(t *testing.T) {
	tbl := New()
	if _, err := tbl.AddMemory(0x1001, PageSize, FlagRead, 0, make([]byte, PageSize)); err == nil {
		t.Fatalf("expected error for unaligned start")
	}
}

func TestAddMemoryRejectsOverlap(t *testing.T) {
	tbl := New()
	if _, err := tbl.AddMemory(0, 2*PageSize, FlagRead, 0, make([]byte, 2*PageSize)); err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	if _, err := tbl.AddMemory(PageSize, PageSize, FlagRead, 1, make([]byte, PageSize)); err == nil {
		t.Fatalf("expected overlap error")
	}
}

func TestFindReturnsContainingEntry(t *testing.T) {
	tbl := New()
	data := make([]byte, 2*PageSize)
	e, err := tbl.AddMemory(0x8000_0000, 2*PageSize, FlagRead|FlagWrite, 0, data)
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	if got := tbl.Find(0x8000_0000); got != e {
		t.Fatalf("Find(start) = %v, want %v", got, e)
	}
	if got := tbl.Find(0x8000_0000 + PageSize); got != e {
		t.Fatalf("Find(mid) = %v, want %v", got, e)
	}
	if got := tbl.Find(0x8000_0000 + 2*PageSize); got != nil {
		t.Fatalf("Find(past end) = %v, want nil", got)
	}
	if got := tbl.Find(0); got != nil {
		t.Fatalf("Find(unmapped) = %v, want nil", got)
	}
}

func TestIndexOf(t *testing.T) {
	tbl := New()
	e1, _ := tbl.AddMemory(0, PageSize, FlagRead, 0, make([]byte, PageSize))
	e2, _ := tbl.AddMemory(PageSize, PageSize, FlagRead, 1, make([]byte, PageSize))
	if tbl.IndexOf(e1) != 0 || tbl.IndexOf(e2) != 1 {
		t.Fatalf("IndexOf returned wrong indices: %d, %d", tbl.IndexOf(e1), tbl.IndexOf(e2))
	}
	if tbl.IndexOf(&Entry{}) != -1 {
		t.Fatalf("IndexOf of non-member entry should be -1")
	}
}

func TestRootHashPristineWhenEmpty(t *testing.T) {
	tbl := New()
	if tbl.RootHash() != hash.Pristine(hash.LogRootSize) {
		t.Fatalf("empty table root hash should be the pristine root")
	}
}

func TestRootHashChangesOnWrite(t *testing.T) {
	tbl := New()
	data := make([]byte, PageSize)
	e, _ := tbl.AddMemory(0x8000_0000, PageSize, FlagRead|FlagWrite, 0, data)
	before := tbl.RootHash()

	e.HostMemory()[0] = 0xff
	e.MarkDirty(0)
	after := tbl.RootHash()

	if before == after {
		t.Fatalf("root hash did not change after a dirty-page write")
	}
}

func TestProofVerifiesAgainstRootHash(t *testing.T) {
	tbl := New()
	data := make([]byte, PageSize)
	for i := range data {
		data[i] = byte(i)
	}
	_, err := tbl.AddMemory(0x8000_0000, PageSize, FlagRead|FlagWrite, 0, data)
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}

	addr := uint64(0x8000_0000 + 16)
	target, siblings := tbl.Proof(addr, hash.LogWordSize)

	cur := target
	size := hash.LogWordSize
	a := addr
	for _, sib := range siblings {
		if (a>>size)&1 == 0 {
			cur = hash.Node(cur, sib)
		} else {
			cur = hash.Node(sib, cur)
		}
		size++
	}
	if cur != tbl.RootHash() {
		t.Fatalf("proof did not fold up to RootHash")
	}
}

func TestEntryPack(t *testing.T) {
	tbl := New()
	e, err := tbl.AddMemory(0x8000_0000, PageSize, FlagRead|FlagWrite, 3, make([]byte, PageSize))
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	istart, ilength := e.Pack()
	if ilength != PageSize {
		t.Fatalf("ilength = %#x, want %#x", ilength, PageSize)
	}
	if istart&^uint64(0xfff) != 0x8000_0000 {
		t.Fatalf("istart high bits = %#x, want start %#x", istart&^uint64(0xfff), 0x8000_0000)
	}
	if uint8(istart>>8)&0xf != 3 {
		t.Fatalf("istart DID nibble = %d, want 3", uint8(istart>>8)&0xf)
	}
}

func TestDirtyBitTracking(t *testing.T) {
	tbl := New()
	e, _ := tbl.AddMemory(0, 2*PageSize, FlagRead|FlagWrite, 0, make([]byte, 2*PageSize))
	if e.IsPageDirty(0) || e.IsPageDirty(PageSize) {
		t.Fatalf("freshly added entry should have no dirty pages")
	}
	e.MarkDirty(10)
	if !e.IsPageDirty(0) {
		t.Fatalf("MarkDirty(10) should mark page 0 dirty")
	}
	if e.IsPageDirty(PageSize) {
		t.Fatalf("MarkDirty(10) should not mark the second page dirty")
	}
	e.ClearAllDirty()
	if e.IsPageDirty(0) {
		t.Fatalf("ClearAllDirty should clear every dirty bit")
	}
}
