/*
 * rv64det - CLINT timer/IPI device
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

package device

// Sub-offsets within the CLINT range. Only these are legal accesses;
// anything else fails the access.
const (
	CLINTLength = 0x10000

	offMSIP     = 0x0000
	offMTimeCmp = 0x4000
	offMTime    = 0xbff8

	// MTimeCmpOffset locates mtimecmp inside a peeked CLINT image, for
	// snapshot restore.
	MTimeCmpOffset = offMTimeCmp

	// RTCFreqDiv is the ratio between mcycle and the derived mtime.
	RTCFreqDiv = 100
)

// InterruptLines is the narrow view of CPU interrupt-pending state
// that CLINT needs to implement msip/mtimecmp semantics. The CPU's
// CSR file implements this; CLINT never sees the rest of the
// register file.
type InterruptLines interface {
	MSIP() bool
	SetMSIP(bool)
	SetMTIP(bool)
	MCycle() uint64
}

// CLINT is the Core-Local Interruptor: a software-visible timer
// compare register plus a memory-mapped bit of the machine timer
// interrupt-pending flag.
type CLINT struct {
	mtimecmp uint64
	ic       InterruptLines
}

// NewCLINT builds a CLINT wired to the CPU's interrupt-pending lines.
// mtimecmp starts at its maximum value, per RISC-V reset convention,
// so the timer does not fire until software programs a compare value.
func NewCLINT(ic InterruptLines) *CLINT {
	return &CLINT{mtimecmp: ^uint64(0), ic: ic}
}

func (c *CLINT) Name() string { return "clint" }

// MTime derives the timer's current value from mcycle.
func (c *CLINT) MTime() uint64 {
	return c.ic.MCycle() / RTCFreqDiv
}

// MTimeCmp returns the programmed compare value.
func (c *CLINT) MTimeCmp() uint64 {
	return c.mtimecmp
}

// RestoreMTimeCmp reinstates the compare register when loading a
// snapshot, without the mip.MTIP clear a guest write carries (mip is
// restored separately from the shadow state).
func (c *CLINT) RestoreMTimeCmp(v uint64) {
	c.mtimecmp = v
}

// Tick recomputes mip.MTIP from the current mtime against mtimecmp.
// The outer interpreter loop calls this once per cycle (or once per
// idle fast-forward jump) so the timer interrupt becomes visible
// exactly when mtime reaches mtimecmp, with no wall-clock input.
func (c *CLINT) Tick() {
	c.ic.SetMTIP(c.MTime() >= c.mtimecmp)
}

func (c *CLINT) Read(off uint64, size uint) (uint64, bool) {
	switch {
	case off == offMSIP && size == 4:
		var v uint64
		if c.ic.MSIP() {
			v = 1
		}
		return v, true
	case off == offMTimeCmp && size == 8:
		return c.mtimecmp, true
	case off == offMTime && size == 8:
		return c.MTime(), true
	default:
		return 0, false
	}
}

func (c *CLINT) Write(off uint64, val uint64, size uint) bool {
	switch {
	case off == offMSIP && size == 4:
		c.ic.SetMSIP(val&1 != 0)
		return true
	case off == offMTimeCmp && size == 8:
		c.mtimecmp = val
		c.ic.SetMTIP(false)
		return true
	default:
		// mtime is read-only; anything else is out of range.
		return false
	}
}

// Peek projects only mtimecmp, the CLINT's one piece of independent
// state. msip and mtime are aliases of mip.MSIP and mcycle, which the
// shadow-state projection already hashes at their own canonical
// addresses; projecting them here too would give one architectural
// word two Merkle leaves.
func (c *CLINT) Peek(pageIndex uint64, buf []byte) (bool, bool) {
	for i := range buf {
		buf[i] = 0
	}
	base := pageIndex * PageSize
	putLEInPage(buf, base, offMTimeCmp, 8, c.mtimecmp)
	return true, pageIsPristine(buf)
}
