/*
 * rv64det - Physical Memory Attribute table
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
	"fmt"
	"sort"

	"github.com/rcornwell/rv64det/core/hash"
)

// Table is the ordered set of PMA entries that make up a machine's
// physical address space. Entries start on a PageSize boundary, need
// not be aligned to their own length, and must be pairwise
// non-overlapping; overlap is rejected at insertion time so the Merkle
// combinator below never has to guard against a colliding region.
type Table struct {
	entries []*Entry
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

// Entries returns the entries in ascending start order.
func (t *Table) Entries() []*Entry {
	return t.entries
}

func (t *Table) insert(e *Entry) error {
	if len(t.entries) >= MaxEntries {
		return fmt.Errorf("pma: table already holds %d entries", MaxEntries)
	}
	for _, other := range t.entries {
		if overlaps(e.Start, e.Length, other.Start, other.Length) {
			return fmt.Errorf("pma: region %#x-%#x overlaps existing region %#x-%#x",
				e.Start, e.Start+e.Length, other.Start, other.Start+other.Length)
		}
	}
	t.entries = append(t.entries, e)
	sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].Start < t.entries[j].Start })
	return nil
}

// AddMemory registers a RAM/ROM-like region backed by data, whose
// length must equal length and be a power of two.
func (t *Table) AddMemory(start, length uint64, flags Flags, did uint8, data []byte) (*Entry, error) {
	if start%PageSize != 0 {
		return nil, fmt.Errorf("pma: start %#x not page-aligned", start)
	}
	if uint64(len(data)) != length {
		return nil, fmt.Errorf("pma: backing data length %d does not match region length %d", len(data), length)
	}
	l2, err := log2(length)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		Start:      start,
		Length:     length,
		Flags:      flags | FlagMemory,
		DID:        did,
		Kind:       KindMemory,
		mem:        data,
		log2Length: l2,
		dirty:      make([]uint64, (length/PageSize+63)/64),
		tree:       hash.NewRegionTree(l2, data),
	}
	if err := t.insert(e); err != nil {
		return nil, err
	}
	return e, nil
}

// AddDevice registers a device-backed region dispatched through drv.
func (t *Table) AddDevice(start, length uint64, flags Flags, did uint8, drv Driver) (*Entry, error) {
	if start%PageSize != 0 {
		return nil, fmt.Errorf("pma: start %#x not page-aligned", start)
	}
	l2, err := log2(length)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		Start:      start,
		Length:     length,
		Flags:      flags | FlagIO,
		DID:        did,
		Kind:       KindDevice,
		log2Length: l2,
		driver:     drv,
	}
	if err := t.insert(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Find returns the entry containing paddr, or nil if the address maps
// to empty space.
func (t *Table) Find(paddr uint64) *Entry {
	// Entries are few (MaxEntries-bounded) and kept sorted; linear scan
	// with early exit is simpler than a binary search and just as
	// fast at this scale.
	for _, e := range t.entries {
		if paddr < e.Start {
			return nil
		}
		if e.Contains(paddr) {
			return e
		}
	}
	return nil
}

// IndexOf returns e's position in Entries(), for callers (the TLB
// fast path) that want to cache "which entry" cheaply as an int
// rather than a pointer plus a containment re-check. Returns -1 if e
// is not a member of this table.
func (t *Table) IndexOf(e *Entry) int {
	for i, cand := range t.entries {
		if cand == e {
			return i
		}
	}
	return -1
}

func overlaps(addr, span, start, length uint64) bool {
	addrEnd := addr + span
	startEnd := start + length
	addrOverflow := addrEnd < addr
	startOverflow := startEnd < start
	lowOK := startOverflow || startEnd > addr
	highOK := addrOverflow || addrEnd > start
	return lowOK && highOK
}

// containingEntry returns the entry that fully contains the
// 2^log2Size-byte span at addr, if one entry's extent is large enough
// to hold it and addr - entry.Start is itself a multiple of
// 2^log2Size, so delegating to the entry's own tree is safe.
func (t *Table) containingEntry(addr uint64, log2Size uint) *Entry {
	span := uint64(1) << log2Size
	for _, e := range t.entries {
		if log2Size > e.log2Length {
			continue
		}
		if addr < e.Start || addr+span > e.Start+e.Length {
			continue
		}
		// Entries need not be power-of-two aligned in general; only
		// delegate when the offset within the entry is itself a
		// multiple of the span, so the entry's own tree indexing
		// (which assumes that) stays valid.
		if (addr-e.Start)%span != 0 {
			continue
		}
		return e
	}
	return nil
}

func (t *Table) anyOverlap(addr uint64, log2Size uint) bool {
	if log2Size >= 64 {
		// The span is the whole address space (1<<64 wraps to 0).
		return len(t.entries) > 0
	}
	span := uint64(1) << log2Size
	for _, e := range t.entries {
		if overlaps(addr, span, e.Start, e.Length) {
			return true
		}
	}
	return false
}

// NodeHash returns the Merkle hash of the 2^log2Size-byte span of the
// whole (conceptually 2^64-byte) physical address space starting at
// addr. Spans with no registered PMA overlap collapse to a precomputed
// pristine hash in O(1); spans fully inside one entry delegate to that
// entry's own tree; spans straddling a boundary split in half and
// combine. Because PMA entries are a handful of small regions inside
// an enormous sparse space, this touches O(entries * 64) nodes at
// worst instead of materializing anything at full 2^64 scale.
func (t *Table) NodeHash(addr uint64, log2Size uint) hash.Digest {
	if e := t.containingEntry(addr, log2Size); e != nil {
		return e.NodeHash(addr-e.Start, log2Size)
	}
	if !t.anyOverlap(addr, log2Size) {
		return hash.Pristine(log2Size)
	}
	half := uint64(1) << (log2Size - 1)
	left := t.NodeHash(addr, log2Size-1)
	right := t.NodeHash(addr+half, log2Size-1)
	return hash.Node(left, right)
}

// RootHash returns the Merkle root of the whole machine's physical
// address space.
func (t *Table) RootHash() hash.Digest {
	return t.NodeHash(0, hash.LogRootSize)
}

// Proof returns the target hash and the sibling chain (leaf-adjacent
// first) needed to recompute RootHash from the 2^log2Size-byte span
// at addr.
func (t *Table) Proof(addr uint64, log2Size uint) (hash.Digest, []hash.Digest) {
	return t.proofDescend(0, hash.LogRootSize, addr, log2Size)
}

func (t *Table) proofDescend(ancAddr uint64, ancLog2 uint, targetAddr uint64, targetLog2 uint) (hash.Digest, []hash.Digest) {
	if ancLog2 == targetLog2 {
		return t.NodeHash(ancAddr, ancLog2), nil
	}
	if e := t.containingEntry(ancAddr, ancLog2); e != nil {
		// The entry's chain runs up to its own root; keep only the
		// levels below this ancestor, which may be smaller than the entry.
		tgt, sibs := e.Proof(targetAddr-e.Start, targetLog2)
		return tgt, sibs[:ancLog2-targetLog2]
	}
	half := uint64(1) << (ancLog2 - 1)
	mid := ancAddr + half
	var sib, tgt hash.Digest
	var rest []hash.Digest
	if targetAddr < mid {
		sib = t.NodeHash(mid, ancLog2-1)
		tgt, rest = t.proofDescend(ancAddr, ancLog2-1, targetAddr, targetLog2)
	} else {
		sib = t.NodeHash(ancAddr, ancLog2-1)
		tgt, rest = t.proofDescend(mid, ancLog2-1, targetAddr, targetLog2)
	}
	return tgt, append(rest, sib)
}
