/*
 * rv64det - Binary Merkle tree over a power-of-two byte region
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

// LogWordSize is log2(8), the leaf granularity of the tree (one
// 64-bit machine word).
const LogWordSize = 3

// LogRootSize is log2 of the full simulated address space the global
// tree spans; every PMA region's subtree is folded into a tree of
// this total depth against precomputed pristine (all-zero) hashes.
const LogRootSize = 64

// pristine[i] is the root hash of an all-zero subtree of 2^i bytes.
// pristine[LogWordSize] is the hash of eight zero bytes; each level
// above doubles the span by hashing the level below against itself.
var pristine = buildPristine()

func buildPristine() []Digest {
	table := make([]Digest, LogRootSize+1)
	table[LogWordSize] = Sum(make([]byte, 1<<LogWordSize))
	for i := LogWordSize + 1; i <= LogRootSize; i++ {
		table[i] = Node(table[i-1], table[i-1])
	}
	return table
}

// Pristine returns the root hash of an all-zero region of 2^log2Size
// bytes.
func Pristine(log2Size uint) Digest {
	return pristine[log2Size]
}

// RegionTree is a dense, array-backed Merkle tree over a single
// power-of-two-sized byte region (one PMA's backing memory, or one
// device's page-addressable state). Leaves are 8-byte words; internal
// nodes are stored heap-style (node 1 is the root, node i's children
// are 2i and 2i+1) so that sibling lookup during proof construction
// is a single array index.
type RegionTree struct {
	log2Size uint
	nodes    []Digest // 1-based; len == 2*numWords
}

// NewRegionTree builds the tree over data, whose length must be
// 1<<log2Size. Every 8-byte word is hashed as a leaf.
func NewRegionTree(log2Size uint, data []byte) *RegionTree {
	numWords := uint64(1) << (log2Size - LogWordSize)
	t := &RegionTree{
		log2Size: log2Size,
		nodes:    make([]Digest, 2*numWords),
	}
	for w := uint64(0); w < numWords; w++ {
		t.nodes[numWords+w] = Sum(data[w*8 : w*8+8])
	}
	for i := numWords - 1; i >= 1; i-- {
		t.nodes[i] = Node(t.nodes[2*i], t.nodes[2*i+1])
		if i == 1 {
			break
		}
	}
	return t
}

// Root returns the hash of the whole region.
func (t *RegionTree) Root() Digest {
	if len(t.nodes) < 2 {
		return Pristine(t.log2Size)
	}
	return t.nodes[1]
}

// UpdateWord re-hashes the leaf at word index w from newWord (the raw
// 8-byte little-endian word value) and bubbles the change to the
// root. Callers are expected to batch this per dirty page rather than
// per byte write.
func (t *RegionTree) UpdateWord(w uint64, data []byte) {
	numWords := uint64(len(t.nodes)) / 2
	i := numWords + w
	t.nodes[i] = Sum(data)
	for i > 1 {
		i /= 2
		t.nodes[i] = Node(t.nodes[2*i], t.nodes[2*i+1])
	}
}

// UpdatePage re-hashes every word in the page starting at byte offset
// pageStart (which must be page-aligned) given the page's fresh
// bytes, bubbling each affected leaf to the root. This is the
// dirty-page-bitmap-driven path: one call per dirty page instead of
// one call per write.
func (t *RegionTree) UpdatePage(pageStart uint64, pageSize uint64, data []byte) {
	numWords := uint64(len(t.nodes)) / 2
	firstWord := pageStart / 8
	words := pageSize / 8
	for w := uint64(0); w < words; w++ {
		idx := numWords + firstWord + w
		t.nodes[idx] = Sum(data[w*8 : w*8+8])
	}
	// Bubble every ancestor of the touched range exactly once, from
	// the bottom level up, widest-to-narrowest range of affected
	// indices at each level.
	lo, hi := numWords+firstWord, numWords+firstWord+words-1
	for lo > 1 {
		lo /= 2
		hi /= 2
		for i := lo; i <= hi; i++ {
			t.nodes[i] = Node(t.nodes[2*i], t.nodes[2*i+1])
		}
	}
}

// NodeHash returns the hash of the sub-region of 2^log2Sub bytes
// starting at byte offset off within this tree.
func (t *RegionTree) NodeHash(off uint64, log2Sub uint) Digest {
	if log2Sub == t.log2Size {
		return t.Root()
	}
	numWords := uint64(len(t.nodes)) / 2
	// Index of the node at level log2Sub covering byte offset off.
	levelSpan := uint64(1) << log2Sub
	idxInLevel := off / levelSpan
	levelWidth := numWords >> (log2Sub - LogWordSize)
	return t.nodes[levelWidth+idxInLevel]
}

// Proof returns the target hash and the sibling hashes (leaf-adjacent
// first) needed to recompute this tree's Root from the sub-region of
// 2^log2Sub bytes at offset off.
func (t *RegionTree) Proof(off uint64, log2Sub uint) (target Digest, siblings []Digest) {
	target = t.NodeHash(off, log2Sub)
	numWords := uint64(len(t.nodes)) / 2
	idx := (numWords >> (log2Sub - LogWordSize)) + off/(uint64(1)<<log2Sub)
	for idx > 1 {
		sib := idx ^ 1
		siblings = append(siblings, t.nodes[sib])
		idx /= 2
	}
	return target, siblings
}
