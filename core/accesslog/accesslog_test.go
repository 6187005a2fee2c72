/*
 * rv64det - Access log recorder and replay verifier
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

package accesslog

import (
	"testing"

	"github.com/rcornwell/rv64det/core/hash"
)

// newTestTree builds a 16-byte (two-word) region tree seeded with
// word0=0x01..0x08, word1=0x11..0x18.
func newTestTree() *hash.RegionTree {
	data := make([]byte, 16)
	for i := 0; i < 8; i++ {
		data[i] = byte(i + 1)
		data[8+i] = byte(0x11 + i)
	}
	return hash.NewRegionTree(4, data)
}

func proofFor(tree *hash.RegionTree, addr uint64) *Proof {
	target, siblings := tree.Proof(addr, hash.LogWordSize)
	return &Proof{
		Log2TargetSize: hash.LogWordSize,
		TargetAddress:  addr,
		RootHash:       tree.Root(),
		TargetHash:     target,
		Siblings:       siblings,
	}
}

func TestVerifyReadOnlyLogPreservesRoot(t *testing.T) {
	tree := newTestTree()
	preRoot := tree.Root()

	l := New(TypeDescriptor{HasProofs: true})
	word0 := make([]byte, 8)
	copy(word0, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	l.AppendRead(0, hash.LogWordSize, word0, proofFor(tree, 0))

	if err := Verify(l, preRoot, preRoot); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyWriteUpdatesRoot(t *testing.T) {
	tree := newTestTree()
	preRoot := tree.Root()

	before := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	after := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

	l := New(TypeDescriptor{HasProofs: true})
	l.AppendWrite(0, hash.LogWordSize, before, after, proofFor(tree, 0))

	tree.UpdateWord(0, after)
	postRoot := tree.Root()

	if err := Verify(l, preRoot, postRoot); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsWrongPostRoot(t *testing.T) {
	tree := newTestTree()
	preRoot := tree.Root()

	before := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	after := []byte{9, 9, 9, 9, 9, 9, 9, 9}

	l := New(TypeDescriptor{HasProofs: true})
	l.AppendWrite(0, hash.LogWordSize, before, after, proofFor(tree, 0))

	if err := Verify(l, preRoot, preRoot); err == nil {
		t.Fatalf("expected Verify to reject a claimed post-root that does not match the write")
	}
}

func TestVerifyRequiresProofs(t *testing.T) {
	l := New(TypeDescriptor{HasProofs: false})
	l.AppendRead(0, hash.LogWordSize, make([]byte, 8), nil)
	if err := Verify(l, hash.Digest{}, hash.Digest{}); err == nil {
		t.Fatalf("expected Verify to reject a log without proofs")
	}
}

func TestVerifyRejectsMissingProofOnEntry(t *testing.T) {
	l := New(TypeDescriptor{HasProofs: true})
	l.Entries = append(l.Entries, Entry{Type: KindRead, Address: 0, Log2Size: hash.LogWordSize, ReadBytes: make([]byte, 8)})
	if err := Verify(l, hash.Digest{}, hash.Digest{}); err == nil {
		t.Fatalf("expected Verify to reject an entry with a nil proof")
	}
}

func TestVerifyRejectsTamperedReadBytes(t *testing.T) {
	tree := newTestTree()
	preRoot := tree.Root()

	l := New(TypeDescriptor{HasProofs: true})
	tampered := []byte{0, 0, 0, 0, 0, 0, 0, 0} // does not hash to the real word0
	l.AppendRead(0, hash.LogWordSize, tampered, proofFor(tree, 0))

	if err := Verify(l, preRoot, preRoot); err == nil {
		t.Fatalf("expected Verify to reject read_bytes that do not hash to target_hash")
	}
}

func TestVerifyChainsMultipleEntries(t *testing.T) {
	tree := newTestTree()
	preRoot := tree.Root()

	l := New(TypeDescriptor{HasProofs: true})

	before0 := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	after0 := []byte{0xaa, 0, 0, 0, 0, 0, 0, 0}
	l.AppendWrite(0, hash.LogWordSize, before0, after0, proofFor(tree, 0))
	tree.UpdateWord(0, after0)

	before1 := []byte{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18}
	after1 := []byte{0xbb, 0, 0, 0, 0, 0, 0, 0}
	l.AppendWrite(8, hash.LogWordSize, before1, after1, proofFor(tree, 8))
	tree.UpdateWord(1, after1)

	postRoot := tree.Root()
	if err := Verify(l, preRoot, postRoot); err != nil {
		t.Fatalf("Verify over a two-entry log: %v", err)
	}
}
