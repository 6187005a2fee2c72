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

// Package xlate walks Sv39/Sv48 page tables. It has no state of its
// own: every call takes the current satp, the effective privilege,
// and a PhysicalAccess to read/write PTEs through for the duration of
// one call.
package xlate

import "github.com/rcornwell/rv64det/core/trap"

// Class names the kind of access being translated, since the
// permission bit checked against the leaf PTE depends on it.
type Class int

const (
	Code Class = iota
	Read
	Write
)

// PhysicalAccess is the narrow surface the walker needs to read PTEs
// and write back updated A/D bits; ordinary physical accesses are
// expected to go through the same PMA rules as any other memory
// operation.
type PhysicalAccess interface {
	ReadPhysWord(paddr uint64) (uint64, bool)
	WritePhysWord(paddr uint64, val uint64) bool
}

const pageShift = 12

// ppnMask keeps the 44 PPN bits of a PTE, dropping the reserved high
// bits above bit 53.
const ppnMask = (uint64(1) << 44) - 1

// satp field layout (Sv39/Sv48 share mode+PPN shape).
const (
	satpModeShift = 60
	satpModeSv39  = 8
	satpModeSv48  = 9
)

// pteFlags.
const (
	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
	pteU = 1 << 4
	pteG = 1 << 5
	pteA = 1 << 6
	pteD = 1 << 7
)

func faultFor(class Class) trap.Cause {
	switch class {
	case Code:
		return trap.InstructionPageFault
	case Write:
		return trap.StorePageFault
	default:
		return trap.LoadPageFault
	}
}

// Translate resolves vaddr under the given satp and effective
// privilege, returning the physical address. effPRV must already
// reflect mstatus.MPRV/MPP: the caller (package state) computes that
// before calling in.
func Translate(class Class, vaddr uint64, effPRV uint8, satp uint64, sum, mxr bool, mem PhysicalAccess) (uint64, error) {
	const modeM = 3
	if effPRV == modeM {
		return vaddr, nil
	}

	mode := satp >> satpModeShift
	var levels uint
	switch mode {
	case 0:
		return vaddr, nil
	case satpModeSv39:
		levels = 3
	case satpModeSv48:
		levels = 4
	default:
		return 0, trap.New(faultFor(class), vaddr)
	}

	vaBits := pageShift + 9*levels
	topBit := (vaddr >> (vaBits - 1)) & 1
	signMask := ^uint64(0) << vaBits
	if (vaddr&signMask != 0) != (topBit == 1) {
		return 0, trap.New(faultFor(class), vaddr)
	}

	ppn := satp & ppnMask
	var pte uint64
	var pteAddr uint64
	level := int(levels) - 1
	for {
		idxShift := pageShift + 9*level
		idx := (vaddr >> idxShift) & 0x1ff
		pteAddr = (ppn << pageShift) + idx*8

		v, ok := mem.ReadPhysWord(pteAddr)
		if !ok {
			return 0, trap.New(faultFor(class), vaddr)
		}
		pte = v

		if pte&pteV == 0 || (pte&pteW != 0 && pte&pteR == 0) {
			return 0, trap.New(faultFor(class), vaddr)
		}
		if pte&(pteR|pteW|pteX) != 0 {
			break // leaf
		}
		if level == 0 {
			return 0, trap.New(faultFor(class), vaddr)
		}
		ppn = (pte >> 10) & ppnMask
		level--
	}

	// Permission checks. SUM only relaxes supervisor loads/stores to
	// user pages; supervisor code fetches from user pages always fault.
	isUser := effPRV == 0
	if isUser && pte&pteU == 0 {
		return 0, trap.New(faultFor(class), vaddr)
	}
	if !isUser && pte&pteU != 0 && (!sum || class == Code) {
		return 0, trap.New(faultFor(class), vaddr)
	}

	switch class {
	case Code:
		if pte&pteX == 0 {
			return 0, trap.New(faultFor(class), vaddr)
		}
	case Write:
		if pte&pteW == 0 {
			return 0, trap.New(faultFor(class), vaddr)
		}
	case Read:
		if pte&pteR == 0 && !(mxr && pte&pteX != 0) {
			return 0, trap.New(faultFor(class), vaddr)
		}
	}

	// Superpage alignment: low-level PPN bits below `level` must be zero.
	ppnField := (pte >> 10) & ppnMask
	if level > 0 {
		lowMask := (uint64(1) << (9 * level)) - 1
		if ppnField&lowMask != 0 {
			return 0, trap.New(faultFor(class), vaddr)
		}
	}

	// A/D update: set A always; set D on write. Commit via a
	// physical write so the dirty-page/Merkle machinery sees it like
	// any other store.
	newPTE := pte | pteA
	if class == Write {
		newPTE |= pteD
	}
	if newPTE != pte {
		if !mem.WritePhysWord(pteAddr, newPTE) {
			return 0, trap.New(faultFor(class), vaddr)
		}
	}

	pageOffsetBits := pageShift + 9*level
	offsetMask := (uint64(1) << pageOffsetBits) - 1
	paddr := (ppnField << pageShift) &^ offsetMask | (vaddr & offsetMask)
	return paddr, nil
}
