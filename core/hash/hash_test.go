/*
 * rv64det - Keccak leaf hashing and binary Merkle tree
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

package hash

import (
	"bytes"
	"testing"
)

func TestSumDeterministic(t *testing.T) {
	data := []byte("twelve-b")
	a := Sum(data)
	b := Sum(data)
	if a != b {
		t.Fatalf("Sum not deterministic: %x != %x", a, b)
	}
	if a.IsZero() {
		t.Fatalf("Sum of non-empty data came back zero")
	}
}

func TestNodeOrderMatters(t *testing.T) {
	left := Sum([]byte("leftleft"))
	right := Sum([]byte("rightrig"))
	if Node(left, right) == Node(right, left) {
		t.Fatalf("Node(a,b) should differ from Node(b,a)")
	}
}

func TestPristineBuildsFromWordUp(t *testing.T) {
	zeroWord := Sum(make([]byte, 8))
	if Pristine(LogWordSize) != zeroWord {
		t.Fatalf("Pristine(LogWordSize) != hash of 8 zero bytes")
	}
	want := Node(Pristine(LogWordSize), Pristine(LogWordSize))
	if Pristine(LogWordSize+1) != want {
		t.Fatalf("Pristine(%d) did not fold two pristine children", LogWordSize+1)
	}
}

func TestRegionTreeRootMatchesManualFold(t *testing.T) {
	data := make([]byte, 32) // 4 words
	for i := range data {
		data[i] = byte(i)
	}
	tree := NewRegionTree(5, data)

	w0 := Sum(data[0:8])
	w1 := Sum(data[8:16])
	w2 := Sum(data[16:24])
	w3 := Sum(data[24:32])
	want := Node(Node(w0, w1), Node(w2, w3))

	if got := tree.Root(); got != want {
		t.Fatalf("Root() = %x, want %x", got, want)
	}
}

func TestRegionTreeUpdateWordMatchesRebuild(t *testing.T) {
	data := make([]byte, 32)
	tree := NewRegionTree(5, data)

	newWord := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	copy(data[8:16], newWord)
	tree.UpdateWord(1, newWord)

	rebuilt := NewRegionTree(5, data)
	if tree.Root() != rebuilt.Root() {
		t.Fatalf("UpdateWord root %x != rebuilt root %x", tree.Root(), rebuilt.Root())
	}
}

func TestRegionTreeUpdatePageMatchesRebuild(t *testing.T) {
	data := make([]byte, 64) // 8 words, one page of 64 bytes
	tree := NewRegionTree(6, data)

	fresh := make([]byte, 64)
	for i := range fresh {
		fresh[i] = byte(0xa0 + i)
	}
	copy(data, fresh)
	tree.UpdatePage(0, 64, fresh)

	rebuilt := NewRegionTree(6, data)
	if tree.Root() != rebuilt.Root() {
		t.Fatalf("UpdatePage root %x != rebuilt root %x", tree.Root(), rebuilt.Root())
	}
}

func TestRegionTreeProofVerifies(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i * 7)
	}
	tree := NewRegionTree(6, data)

	target, siblings := tree.Proof(24, LogWordSize)
	if target != Sum(data[24:32]) {
		t.Fatalf("proof target %x != expected leaf hash", target)
	}

	cur := target
	addr := uint64(24)
	size := uint(LogWordSize)
	for _, sib := range siblings {
		if (addr>>size)&1 == 0 {
			cur = Node(cur, sib)
		} else {
			cur = Node(sib, cur)
		}
		size++
	}
	if cur != tree.Root() {
		t.Fatalf("proof did not fold up to root: got %x, want %x", cur, tree.Root())
	}
}

func TestDigestIsZero(t *testing.T) {
	var z Digest
	if !z.IsZero() {
		t.Fatalf("zero-value Digest.IsZero() = false")
	}
	nz := Sum([]byte("x"))
	if nz.IsZero() {
		t.Fatalf("non-zero digest reported IsZero")
	}
	if bytes.Equal(z[:], nz[:]) {
		t.Fatalf("sanity: zero and non-zero digests compared equal as byte slices")
	}
}
