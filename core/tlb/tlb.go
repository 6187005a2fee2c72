/*
 * rv64det - Software translation caches
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

// Package tlb implements the three purely-software translation
// caches: direct-mapped, one each for code, read and write accesses,
// with no hardware semantics at all. Each is a small fixed-size,
// directly-indexed lookup that trades the page walk and the PMA
// linear scan for an array index on the hot path.
package tlb

// PageShift/PageSize/PageMask must match core/pma's PageSize;
// kept independent so this package has no dependency on pma.
const (
	PageShift = 12
	PageSize  = 1 << PageShift
	PageMask  = PageSize - 1
)

// Size is the number of directly-mapped slots per cache.
const Size = 256

// allOnes marks an empty slot; it can never equal a real page-aligned
// vaddr because a page-aligned address's low bits are always zero
// while allOnes's are all set (and no valid vaddr has every bit set,
// since the page-aligning mask clears the low 12).
const allOnes = ^uint64(0)

// Slot is one cache line: a virtual page mapped to a physical page
// and a PMA table index, so a hit can skip both the page walk and the
// PMA linear scan.
type Slot struct {
	VAddrPage uint64
	PAddrPage uint64
	PMAIndex  int
}

func (s *Slot) empty() bool { return s.VAddrPage == allOnes }

// Cache is one direct-mapped translation cache.
type Cache struct {
	slots [Size]Slot
}

// New returns an empty cache.
func New() *Cache {
	c := &Cache{}
	c.FlushAll()
	return c
}

func slotIndex(vaddr uint64) uint64 {
	return (vaddr >> PageShift) % Size
}

// Lookup returns the physical page and PMA index cached for vaddr's
// page, if present.
func (c *Cache) Lookup(vaddr uint64) (paddrPage uint64, pmaIndex int, ok bool) {
	s := &c.slots[slotIndex(vaddr)]
	if s.empty() || s.VAddrPage != vaddr&^uint64(PageMask) {
		return 0, 0, false
	}
	return s.PAddrPage, s.PMAIndex, true
}

// Insert caches vaddr's page as mapping to paddrPage (also
// page-aligned) within PMA entry pmaIndex.
func (c *Cache) Insert(vaddr, paddrPage uint64, pmaIndex int) {
	c.slots[slotIndex(vaddr)] = Slot{
		VAddrPage: vaddr &^ uint64(PageMask),
		PAddrPage: paddrPage,
		PMAIndex:  pmaIndex,
	}
}

// FlushAll empties every slot.
func (c *Cache) FlushAll() {
	for i := range c.slots {
		c.slots[i].VAddrPage = allOnes
	}
}

// FlushVAddr empties the single slot that would cache vaddr's page,
// if any slot currently does.
func (c *Cache) FlushVAddr(vaddr uint64) {
	s := &c.slots[slotIndex(vaddr)]
	if !s.empty() && s.VAddrPage == vaddr&^uint64(PageMask) {
		s.VAddrPage = allOnes
	}
}

// FlushPhysicalRange empties every slot whose cached physical page
// falls inside [start, end). Used when a write lands in a memory PMA
// so the write cache never hands back a stale mapping into a region
// whose backing bytes (and therefore Merkle hash) just changed.
func (c *Cache) FlushPhysicalRange(start, end uint64) {
	for i := range c.slots {
		s := &c.slots[i]
		if s.empty() {
			continue
		}
		if s.PAddrPage+PageSize > start && s.PAddrPage < end {
			s.VAddrPage = allOnes
		}
	}
}

// Set bundles the three access-class caches the machine keeps.
type Set struct {
	Code  Cache
	Read  Cache
	Write Cache
}

// NewSet returns a Set with all three caches empty.
func NewSet() *Set {
	s := &Set{}
	s.FlushAll()
	return s
}

// FlushAll empties all three caches; required on satp writes,
// mstatus.MPRV/SUM/MXR changes, SFENCE.VMA with rs1=x0, and privilege
// transitions via xRET.
func (s *Set) FlushAll() {
	s.Code.FlushAll()
	s.Read.FlushAll()
	s.Write.FlushAll()
}

// FlushVAddr empties the page-specific slot in all three caches, the
// minimum SFENCE.VMA with a specific vaddr must guarantee.
func (s *Set) FlushVAddr(vaddr uint64) {
	s.Code.FlushVAddr(vaddr)
	s.Read.FlushVAddr(vaddr)
	s.Write.FlushVAddr(vaddr)
}

// NotifyWrite invalidates write-cache slots whose cached physical
// page overlaps a just-written physical range.
// Reads and code need not be invalidated: their cached translations
// are still valid, only the bytes underneath changed.
func (s *Set) NotifyWrite(paddrStart, length uint64) {
	s.Write.FlushPhysicalRange(paddrStart, paddrStart+length)
}
