/*
 * rv64det - Uniform state-access trait: Direct and Logging flavors
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

// Package state is the uniform accessor every executor in package cpu
// goes through: general registers, pc, CSRs, and
// virtual/physical memory, with the TLB consulted inline on the hot
// path. Two concrete flavors implement the Access interface: Direct,
// which touches the register file and PMA table in place, and
// Logging, which wraps a Direct and additionally records every access
// (with an optional Merkle proof) to an accesslog.Log.
package state

import (
	"encoding/binary"

	"github.com/rcornwell/rv64det/core/csr"
	"github.com/rcornwell/rv64det/core/hash"
	"github.com/rcornwell/rv64det/core/pma"
	"github.com/rcornwell/rv64det/core/tlb"
	"github.com/rcornwell/rv64det/core/trap"
	"github.com/rcornwell/rv64det/core/xlate"
)

// Access is the full uniform-accessor surface. Every executor in
// package cpu is written against this interface, never against the
// concrete register file or PMA table, so that swapping Direct for
// Logging changes nothing about instruction semantics.
type Access interface {
	ReadX(i int) uint64
	WriteX(i int, v uint64)
	PC() uint64
	SetPC(v uint64)

	MCycle() uint64
	SetMCycle(v uint64)
	MInstret() uint64
	SetMInstret(v uint64)

	PRV() uint8
	SetPRV(v uint8)
	Iflags() csr.Iflags
	SetIflags(f csr.Iflags)

	Reservation() uint64
	SetReservation(v uint64)

	// TSR/TW/TVM expose the mstatus trap-on-{SRET,WFI,SFENCE.VMA} bits
	// the executors in package cpu need to decide whether an S-mode
	// privileged instruction should fault.
	TSR() bool
	TW() bool
	TVM() bool

	// PendingInterrupt returns the highest-priority enabled interrupt
	// bit index currently pending.
	PendingInterrupt() (cause uint64, ok bool)

	ReadCSR(addr uint16) (uint64, error)
	WriteCSR(addr uint16, val uint64) error

	// ReadVirt/WriteVirt perform one aligned, size-byte (1/2/4/8)
	// access at a virtual address under access class class, walking
	// the TLB/page tables and PMA dispatch as needed. Misalignment is
	// the caller's (package cpu's) concern; these assume vaddr is
	// already aligned to size.
	ReadVirt(class xlate.Class, vaddr uint64, size uint) (uint64, error)
	WriteVirt(vaddr uint64, val uint64, size uint) error

	// ProbeVirt resolves vaddr under class without touching memory,
	// for unaligned stores that must check every constituent byte's
	// translation before committing any of them.
	ProbeVirt(class xlate.Class, vaddr uint64) error

	FlushTLBAll()
	FlushTLBVAddr(vaddr uint64)

	// Deliver performs the trap-entry sequence for an exception or
	// interrupt, as csr.File.Deliver does.
	Deliver(isInterrupt bool, cause uint64, tval uint64) uint64
	MRET()
	SRET()

	RootHash() hash.Digest
}

// Direct implements Access by mutating the register file and PMA
// table in place; the TLB is consulted and updated inline.
type Direct struct {
	CSR *csr.File
	PMA *pma.Table
	TLB *tlb.Set
}

// NewDirect builds a Direct access wired to the given machine state.
func NewDirect(c *csr.File, p *pma.Table, t *tlb.Set) *Direct {
	return &Direct{CSR: c, PMA: p, TLB: t}
}

func (d *Direct) ReadX(i int) uint64     { return d.CSR.ReadX(i) }
func (d *Direct) WriteX(i int, v uint64) { d.CSR.WriteX(i, v) }
func (d *Direct) PC() uint64             { return d.CSR.PC }
func (d *Direct) SetPC(v uint64)         { d.CSR.PC = v }
func (d *Direct) MCycle() uint64         { return d.CSR.MCycle }
func (d *Direct) SetMCycle(v uint64)     { d.CSR.MCycle = v }
func (d *Direct) MInstret() uint64       { return d.CSR.MInstret }
func (d *Direct) SetMInstret(v uint64)   { d.CSR.MInstret = v }
func (d *Direct) PRV() uint8             { return d.CSR.PRV }
func (d *Direct) SetPRV(v uint8)         { d.CSR.PRV = v }
func (d *Direct) Iflags() csr.Iflags     { return d.CSR.Iflags }
func (d *Direct) SetIflags(f csr.Iflags) { d.CSR.Iflags = f }
func (d *Direct) Reservation() uint64    { return d.CSR.ILRSC }
func (d *Direct) SetReservation(v uint64) { d.CSR.ILRSC = v }

func (d *Direct) TSR() bool { return d.CSR.TSR() }
func (d *Direct) TW() bool  { return d.CSR.TW() }
func (d *Direct) TVM() bool { return d.CSR.TVM() }

func (d *Direct) PendingInterrupt() (uint64, bool) { return d.CSR.PendingInterrupt() }

func (d *Direct) ReadCSR(addr uint16) (uint64, error) { return d.CSR.Read(addr) }

func (d *Direct) WriteCSR(addr uint16, val uint64) error {
	flush, err := d.CSR.Write(addr, val)
	if err != nil {
		return err
	}
	if flush {
		d.TLB.FlushAll()
	}
	return nil
}

func (d *Direct) FlushTLBAll()               { d.TLB.FlushAll() }
func (d *Direct) FlushTLBVAddr(vaddr uint64) { d.TLB.FlushVAddr(vaddr) }

func (d *Direct) Deliver(isInterrupt bool, cause uint64, tval uint64) uint64 {
	return d.CSR.Deliver(isInterrupt, cause, tval)
}

func (d *Direct) MRET() {
	d.MRETOrSRET(true)
}

func (d *Direct) SRET() {
	d.MRETOrSRET(false)
}

// MRETOrSRET dispatches to the CSR file's unwind and flushes the TLB,
// since both xRET forms may change PRV.
func (d *Direct) MRETOrSRET(isMRET bool) {
	before := d.CSR.PRV
	if isMRET {
		d.CSR.MRET()
	} else {
		d.CSR.SRET()
	}
	if d.CSR.PRV != before {
		d.TLB.FlushAll()
	}
}

func (d *Direct) RootHash() hash.Digest { return d.PMA.RootHash() }

func (d *Direct) cacheFor(class xlate.Class) *tlb.Cache {
	switch class {
	case xlate.Code:
		return &d.TLB.Code
	case xlate.Write:
		return &d.TLB.Write
	default:
		return &d.TLB.Read
	}
}

func requiredFlag(class xlate.Class) pma.Flags {
	switch class {
	case xlate.Code:
		return pma.FlagExec
	case xlate.Write:
		return pma.FlagWrite
	default:
		return pma.FlagRead
	}
}

func faultFor(class xlate.Class) trap.Cause {
	switch class {
	case xlate.Code:
		return trap.InstructionFault
	case xlate.Write:
		return trap.StoreFault
	default:
		return trap.LoadFault
	}
}

// resolve finds the PMA entry and entry-relative offset backing
// vaddr, consulting the appropriate TLB first and populating it on a
// memory-entry miss. Device entries are never cached, since their
// read/write calls carry side effects that must run every time.
func (d *Direct) resolve(class xlate.Class, vaddr uint64) (*pma.Entry, uint64, error) {
	return d.resolveVia(d, class, vaddr)
}

// resolveVia is resolve with the page walker's physical accesses
// routed through phys, so a wrapping access (Logging, Replay) sees the
// walk's PTE reads and A/D writebacks as ordinary logged accesses.
func (d *Direct) resolveVia(phys xlate.PhysicalAccess, class xlate.Class, vaddr uint64) (*pma.Entry, uint64, error) {
	cache := d.cacheFor(class)
	if paddrPage, idx, ok := cache.Lookup(vaddr); ok {
		entries := d.PMA.Entries()
		if idx < len(entries) {
			e := entries[idx]
			if e.Contains(paddrPage) {
				off := paddrPage + (vaddr & tlb.PageMask) - e.Start
				return e, off, nil
			}
		}
	}

	effPRV := d.CSR.EffectivePrivilege(class == xlate.Code)
	paddr, err := xlate.Translate(class, vaddr, effPRV, d.CSR.Satp, d.CSR.SUM(), d.CSR.MXR(), phys)
	if err != nil {
		return nil, 0, err
	}

	e := d.PMA.Find(paddr)
	if e == nil || e.Flags&requiredFlag(class) == 0 {
		return nil, 0, trap.New(faultFor(class), vaddr)
	}

	if e.Kind == pma.KindMemory {
		vaddrPage := vaddr &^ uint64(tlb.PageMask)
		paddrPage := paddr &^ uint64(tlb.PageMask)
		idx := d.PMA.IndexOf(e)
		cache.Insert(vaddrPage, paddrPage, idx)
	}
	return e, paddr - e.Start, nil
}

// ReadPhysWord/WritePhysWord implement xlate.PhysicalAccess: ordinary
// 8-byte physical accesses subject to PMA rules, used for page-table
// entry reads and the A/D-bit writeback.
func (d *Direct) ReadPhysWord(paddr uint64) (uint64, bool) {
	return d.ReadPhys(paddr, 8)
}

func (d *Direct) WritePhysWord(paddr uint64, val uint64) bool {
	return d.WritePhys(paddr, val, 8)
}

// ReadPhys/WritePhys are the host-facing (package machine) physical
// accessors behind read_memory/write_memory, sized in 1/2/4/8 bytes
// like any ordinary load/store.
func (d *Direct) ReadPhys(paddr uint64, size uint) (uint64, bool) {
	e := d.PMA.Find(paddr)
	if e == nil {
		return 0, false
	}
	return loadBytes(e, paddr-e.Start, size)
}

func (d *Direct) WritePhys(paddr uint64, val uint64, size uint) bool {
	e := d.PMA.Find(paddr)
	if e == nil {
		return false
	}
	ok := storeBytes(e, paddr-e.Start, size, val)
	if ok && e.Kind == pma.KindMemory {
		d.TLB.NotifyWrite(paddr&^uint64(size-1), uint64(size))
	}
	return ok
}

func loadBytes(e *pma.Entry, off uint64, size uint) (uint64, bool) {
	switch e.Kind {
	case pma.KindMemory:
		mem := e.HostMemory()
		var v uint64
		switch size {
		case 1:
			v = uint64(mem[off])
		case 2:
			v = uint64(binary.LittleEndian.Uint16(mem[off : off+2]))
		case 4:
			v = uint64(binary.LittleEndian.Uint32(mem[off : off+4]))
		case 8:
			v = binary.LittleEndian.Uint64(mem[off : off+8])
		}
		return v, true
	case pma.KindDevice:
		return e.DeviceRead(off, size)
	default:
		return 0, false
	}
}

func storeBytes(e *pma.Entry, off uint64, size uint, val uint64) bool {
	switch e.Kind {
	case pma.KindMemory:
		e.MarkDirty(off)
		mem := e.HostMemory()
		switch size {
		case 1:
			mem[off] = byte(val)
		case 2:
			binary.LittleEndian.PutUint16(mem[off:off+2], uint16(val))
		case 4:
			binary.LittleEndian.PutUint32(mem[off:off+4], uint32(val))
		case 8:
			binary.LittleEndian.PutUint64(mem[off:off+8], val)
		}
		return true
	case pma.KindDevice:
		return e.DeviceWrite(off, val, size)
	default:
		return false
	}
}

func (d *Direct) ReadVirt(class xlate.Class, vaddr uint64, size uint) (uint64, error) {
	e, off, err := d.resolve(class, vaddr)
	if err != nil {
		return 0, err
	}
	v, ok := loadBytes(e, off, size)
	if !ok {
		return 0, trap.New(faultFor(class), vaddr)
	}
	return v, nil
}

func (d *Direct) ProbeVirt(class xlate.Class, vaddr uint64) error {
	_, _, err := d.resolve(class, vaddr)
	return err
}

func (d *Direct) WriteVirt(vaddr uint64, val uint64, size uint) error {
	e, off, err := d.resolve(xlate.Write, vaddr)
	if err != nil {
		return err
	}
	physAddr := e.Start + off
	if !storeBytes(e, off, size, val) {
		return trap.New(faultFor(xlate.Write), vaddr)
	}
	if e.Kind == pma.KindMemory {
		d.TLB.NotifyWrite(physAddr&^uint64(size-1), uint64(size))
	}
	return nil
}
