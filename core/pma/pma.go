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

// Package pma implements the Physical Memory Attribute table: the
// ordered list of physical address ranges the machine knows about,
// each either plain memory, a device, or declared empty. It is the
// single source of truth for "does this address exist, and is it
// dirty".
package pma

import (
	"fmt"

	"github.com/rcornwell/rv64det/core/hash"
)

// PageSize is the PMA granularity: every region's start is aligned to
// this, and dirty tracking is per page of this size.
const PageSize = 4096

// PageShift is log2(PageSize).
const PageShift = 12

// MaxEntries bounds the table so lookups stay a short linear scan.
const MaxEntries = 32

// Flags describe a region's nature and permissions. Exactly one of
// Memory/IO/Empty is set.
type Flags uint32

const (
	FlagMemory Flags = 1 << iota
	FlagIO
	FlagEmpty
	FlagRead
	FlagWrite
	FlagExec
	FlagIdempotentRead
	FlagIdempotentWrite
)

// Kind reports which of the three PMA variants an entry is.
type Kind int

const (
	KindEmpty Kind = iota
	KindMemory
	KindDevice
)

// Driver is the narrow surface pma needs from a device (see package
// device for the full contract); kept here as an interface to avoid
// an import cycle between pma and device.
type Driver interface {
	Read(off uint64, size uint) (uint64, bool)
	Write(off uint64, val uint64, size uint) bool
	Peek(pageIndex uint64, buf []byte) (ok, pristine bool)
	Name() string
}

// Entry is one PMA record: a physical address range and its nature.
type Entry struct {
	Start  uint64
	Length uint64
	Flags  Flags
	DID    uint8
	Kind   Kind

	// Memory-backed entries only.
	mem        []byte
	dirty      []uint64 // one bit per page, packed
	tree       *hash.RegionTree
	log2Length uint

	// Device-backed entries only.
	driver Driver
}

// Contains reports whether paddr falls inside the entry's range.
func (e *Entry) Contains(paddr uint64) bool {
	return paddr >= e.Start && paddr < e.Start+e.Length
}

// HostMemory returns the backing array of a memory entry, or nil for
// device/empty entries.
func (e *Entry) HostMemory() []byte {
	return e.mem
}

// Pack returns the packed istart/ilength pair:
// istart packs start with the low flag bits and the DID tag (both of
// which fit inside the 12 low bits every PMA_PAGE_SIZE-aligned start
// guarantees are zero), ilength is the plain region length. Used to
// project the PMA table as shadow-state words for proofs.
func (e *Entry) Pack() (istart, ilength uint64) {
	return e.Start | uint64(e.Flags&0xff) | uint64(e.DID&0xf)<<8, e.Length
}

// DeviceRead dispatches a read through a device entry's driver,
// entry-relative. Callers must only invoke this on KindDevice
// entries.
func (e *Entry) DeviceRead(off uint64, size uint) (uint64, bool) {
	return e.driver.Read(off, size)
}

// DeviceWrite dispatches a write through a device entry's driver,
// entry-relative.
func (e *Entry) DeviceWrite(off uint64, val uint64, size uint) bool {
	return e.driver.Write(off, val, size)
}

// DevicePeek projects one page of a device entry's state into buf
// without side effects, for Merkle hashing and snapshotting.
func (e *Entry) DevicePeek(pageIndex uint64, buf []byte) (ok, pristine bool) {
	return e.driver.Peek(pageIndex, buf)
}

// pageOf returns the page index (relative to the entry start) that
// contains the given entry-relative byte offset.
func pageOf(off uint64) uint64 {
	return off >> PageShift
}

// MarkDirty sets the dirty bit for the page containing entry-relative
// offset off. Required to run *before* the write is visible anywhere
// else, so a concurrent Merkle query never observes stale hashes for
// a page whose bytes already changed.
func (e *Entry) MarkDirty(off uint64) {
	p := pageOf(off)
	e.dirty[p/64] |= 1 << (p % 64)
}

// IsPageDirty reports whether the page containing entry-relative
// offset off has been written since the last ClearAllDirty.
func (e *Entry) IsPageDirty(off uint64) bool {
	p := pageOf(off)
	return e.dirty[p/64]&(1<<(p%64)) != 0
}

// MarkAllDirty sets every dirty bit, forcing the next Merkle query to
// re-hash the whole entry. Used after a snapshot restore copies raw
// bytes into HostMemory behind the tree's back.
func (e *Entry) MarkAllDirty() {
	for i := range e.dirty {
		e.dirty[i] = ^uint64(0)
	}
}

// ClearAllDirty clears every dirty bit, e.g. after a snapshot.
func (e *Entry) ClearAllDirty() {
	for i := range e.dirty {
		e.dirty[i] = 0
	}
}

// writeBack re-hashes every dirty page's words into the entry's
// Merkle tree and clears the corresponding dirty bits. Called lazily
// before any Merkle query so that writes can be cheap (just set a
// bit) and the (relatively) expensive re-hash happens only when a
// root or proof is actually requested.
func (e *Entry) writeBack() {
	if e.Kind != KindMemory {
		return
	}
	numPages := e.Length / PageSize
	for p := uint64(0); p < numPages; p++ {
		if e.dirty[p/64]&(1<<(p%64)) == 0 {
			continue
		}
		start := p * PageSize
		e.tree.UpdatePage(start, PageSize, e.mem[start:start+PageSize])
		e.dirty[p/64] &^= 1 << (p % 64)
	}
}

// NodeHash returns the Merkle hash of the 2^log2Size-byte sub-region
// of this entry starting at entry-relative offset off. For device
// entries, pages are pulled through Peek on demand; devices are
// expected to be small enough (CLINT, HTIF, shadow state) that this
// is cheap and is not incrementally cached.
func (e *Entry) NodeHash(off uint64, log2Size uint) hash.Digest {
	switch e.Kind {
	case KindMemory:
		e.writeBack()
		return e.tree.NodeHash(off, log2Size)
	case KindDevice:
		return e.deviceNodeHash(off, log2Size)
	default:
		return hash.Pristine(log2Size)
	}
}

func (e *Entry) deviceNodeHash(off uint64, log2Size uint) hash.Digest {
	if log2Size > PageShift {
		// Split and combine; devices are page-granular for hashing.
		half := uint64(1) << (log2Size - 1)
		left := e.deviceNodeHash(off, log2Size-1)
		right := e.deviceNodeHash(off+half, log2Size-1)
		return hash.Node(left, right)
	}
	pageIdx := off >> PageShift
	buf := make([]byte, PageSize)
	ok, pristine := e.driver.Peek(pageIdx, buf)
	if !ok || pristine {
		return pageSubHash(nil, off%PageSize, log2Size)
	}
	return pageSubHash(buf, off%PageSize, log2Size)
}

// pageSubHash hashes the 2^log2Size-byte slice of a (possibly nil,
// meaning all-zero) page at the given in-page offset, without
// materializing a RegionTree; devices' state is small and queried
// rarely enough that this direct approach is preferable to caching.
func pageSubHash(page []byte, offInPage uint64, log2Size uint) hash.Digest {
	if log2Size == hash.LogWordSize {
		if page == nil {
			return hash.Pristine(log2Size)
		}
		return hash.Sum(page[offInPage : offInPage+8])
	}
	half := uint64(1) << (log2Size - 1)
	left := pageSubHash(page, offInPage, log2Size-1)
	right := pageSubHash(page, offInPage+half, log2Size-1)
	return hash.Node(left, right)
}

// Root returns the Merkle root of the entry's full range.
func (e *Entry) Root() hash.Digest {
	return e.NodeHash(0, e.log2Length)
}

// Proof returns the target hash and sibling chain for the sub-region
// of 2^log2Size bytes at entry-relative offset off.
func (e *Entry) Proof(off uint64, log2Size uint) (hash.Digest, []hash.Digest) {
	if e.Kind == KindMemory {
		e.writeBack()
		return e.tree.Proof(off, log2Size)
	}
	// Device entries: recompute the path directly; devices are small.
	target := e.NodeHash(off, log2Size)
	var siblings []hash.Digest
	cur, size := off, log2Size
	for size < e.log2Length {
		sibOff := cur ^ (uint64(1) << size)
		siblings = append(siblings, e.NodeHash(sibOff&^((uint64(1)<<size)-1), size))
		cur &^= uint64(1) << size
		size++
	}
	return target, siblings
}

func log2(n uint64) (uint, error) {
	if n == 0 || n&(n-1) != 0 {
		return 0, fmt.Errorf("pma: length %d is not a power of two", n)
	}
	var l uint
	for n > 1 {
		n >>= 1
		l++
	}
	return l, nil
}
