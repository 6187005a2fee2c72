/*
 * rv64det - Logging state access
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

package state

import (
	"bytes"
	"encoding/binary"

	"github.com/rcornwell/rv64det/core/accesslog"
	"github.com/rcornwell/rv64det/core/csr"
	"github.com/rcornwell/rv64det/core/device"
	"github.com/rcornwell/rv64det/core/hash"
	"github.com/rcornwell/rv64det/core/pma"
	"github.com/rcornwell/rv64det/core/trap"
	"github.com/rcornwell/rv64det/core/xlate"
)

// Logging wraps a Direct access and records every access to the
// Merkle-hashed state to an accesslog.Log: loads and stores, the PTE
// reads and A/D writebacks the page walker performs on a TLB miss
// (resolveVia routes those through ReadPhysWord and WritePhysWord),
// and, since every register projects to a canonical shadow-state
// word, register, pc and CSR accesses too, addressed at their shadow
// offsets. Writes are applied one 8-byte
// leaf at a time, each with a proof computed against the tree as the
// previous entry left it, so the log's write sequence accounts for
// every root change the step caused and accesslog.Verify can chain it
// from the pre-root to the post-root with no machine state at all.
//
// Entries are always addressed physically: the canonical Merkle leaf
// address, never the virtual address the guest used.
type Logging struct {
	*Direct
	Log *accesslog.Log
}

// NewLogging wraps d, recording into a fresh log of the given
// descriptor. Callers wanting a canonical log (one that does not
// depend on which translations happen to be cached) should flush the
// TLB first, as machine.Step does.
func NewLogging(d *Direct, desc accesslog.TypeDescriptor) *Logging {
	return &Logging{Direct: d, Log: accesslog.New(desc)}
}

func wordBytes(val uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, val)
	return b
}

// paligned rounds addr down to the 8-byte Merkle leaf boundary, the
// granularity every logged entry is recorded at regardless of the
// access's own byte width.
func paligned(addr uint64) uint64 {
	return addr &^ 7
}

// shadowAddr is the canonical physical address of shadow word i.
func shadowAddr(i int) uint64 {
	return device.ShadowBase + uint64(i)*8
}

// leafWord reads the 8-byte Merkle leaf backing addr as the tree sees
// it: raw bytes for memory entries, the peeked projection for device
// entries (whose read callbacks may serve live aliases the projection
// deliberately omits). Unmapped addresses read as the pristine zero
// word. Shared between Logging (to record) and Replay (to check).
func leafWord(d *Direct, addr uint64) []byte {
	a := paligned(addr)
	e := d.PMA.Find(a)
	if e == nil {
		return make([]byte, 8)
	}
	off := a - e.Start
	switch e.Kind {
	case pma.KindMemory:
		mem := e.HostMemory()
		return append([]byte(nil), mem[off:off+8]...)
	case pma.KindDevice:
		buf := make([]byte, pma.PageSize)
		if ok, _ := e.DevicePeek(off/pma.PageSize, buf); !ok {
			return make([]byte, 8)
		}
		o := off % pma.PageSize
		return append([]byte(nil), buf[o:o+8]...)
	default:
		return make([]byte, 8)
	}
}

func (l *Logging) proofFor(addr uint64) *accesslog.Proof {
	if !l.Log.Desc.HasProofs {
		return nil
	}
	target, siblings := l.PMA.Proof(addr, hash.LogWordSize)
	return &accesslog.Proof{
		Log2RootSize:   hash.LogRootSize,
		Log2TargetSize: hash.LogWordSize,
		TargetAddress:  addr,
		RootHash:       l.PMA.RootHash(),
		TargetHash:     target,
		Siblings:       siblings,
	}
}

func (l *Logging) wordAt(addr uint64) []byte {
	return leafWord(l.Direct, addr)
}

// logShadowRead records a read of shadow word i at its canonical
// address.
func (l *Logging) logShadowRead(i int) {
	addr := shadowAddr(i)
	l.Log.AppendRead(addr, hash.LogWordSize, wordBytes(l.CSR.ShadowWord(i)), l.proofFor(addr))
}

// csrMutation runs op, which may mutate any number of CSR-file
// fields, then rewinds the register file and re-applies the change
// one shadow word at a time, logging each with a proof computed
// against the tree as the previous word left it. This is what keeps
// a multi-word architectural update (trap delivery, xRET) verifiable
// as a chain of single-leaf writes.
func (l *Logging) csrMutation(op func()) {
	before := *l.CSR
	op()
	after := *l.CSR
	*l.CSR = before
	l.applyShadowDiff(&before, &after)
}

func (l *Logging) applyShadowDiff(before, after *csr.File) {
	for i := 0; i < csr.ShadowRegWords; i++ {
		b, a := before.ShadowWord(i), after.ShadowWord(i)
		if b == a {
			continue
		}
		addr := shadowAddr(i)
		proof := l.proofFor(addr)
		l.CSR.SetShadowWord(i, a)
		l.Log.AppendWrite(addr, hash.LogWordSize, wordBytes(b), wordBytes(a), proof)
	}
}

// CSRMutation exposes csrMutation for callers outside the executor
// path that must fold a register-file side effect into the same log;
// machine.Step uses it for the per-step CLINT tick.
func (l *Logging) CSRMutation(op func()) {
	l.csrMutation(op)
}

// Register, pc, counter, iflags and reservation accessors: reads log
// the backing shadow word, writes go through csrMutation. x0 has no
// shadow slot (it is architecturally constant) and is never logged.

func (l *Logging) ReadX(i int) uint64 {
	if i != 0 {
		l.logShadowRead(csr.ShadowXBase + i - 1)
	}
	return l.CSR.ReadX(i)
}

func (l *Logging) WriteX(i int, v uint64) {
	if i == 0 {
		return
	}
	l.csrMutation(func() { l.CSR.WriteX(i, v) })
}

func (l *Logging) PC() uint64 {
	l.logShadowRead(csr.ShadowPC)
	return l.CSR.PC
}

func (l *Logging) SetPC(v uint64) {
	l.csrMutation(func() { l.CSR.PC = v })
}

func (l *Logging) MCycle() uint64 {
	l.logShadowRead(csr.ShadowMCycle)
	return l.CSR.MCycle
}

func (l *Logging) SetMCycle(v uint64) {
	l.csrMutation(func() { l.CSR.MCycle = v })
}

func (l *Logging) MInstret() uint64 {
	l.logShadowRead(csr.ShadowMInstret)
	return l.CSR.MInstret
}

func (l *Logging) SetMInstret(v uint64) {
	l.csrMutation(func() { l.CSR.MInstret = v })
}

func (l *Logging) PRV() uint8 {
	l.logShadowRead(csr.ShadowPRV)
	return l.CSR.PRV
}

func (l *Logging) SetPRV(v uint8) {
	l.csrMutation(func() { l.CSR.PRV = v })
}

func (l *Logging) Iflags() csr.Iflags {
	l.logShadowRead(csr.ShadowIflags)
	return l.CSR.Iflags
}

func (l *Logging) SetIflags(f csr.Iflags) {
	l.csrMutation(func() { l.CSR.Iflags = f })
}

func (l *Logging) Reservation() uint64 {
	l.logShadowRead(csr.ShadowILRSC)
	return l.CSR.ILRSC
}

func (l *Logging) SetReservation(v uint64) {
	l.csrMutation(func() { l.CSR.ILRSC = v })
}

func (l *Logging) TSR() bool {
	l.logShadowRead(csr.ShadowMstatus)
	return l.CSR.TSR()
}

func (l *Logging) TW() bool {
	l.logShadowRead(csr.ShadowMstatus)
	return l.CSR.TW()
}

func (l *Logging) TVM() bool {
	l.logShadowRead(csr.ShadowMstatus)
	return l.CSR.TVM()
}

func (l *Logging) ReadCSR(addr uint16) (uint64, error) {
	v, err := l.CSR.Read(addr)
	if err != nil {
		return 0, err
	}
	if idx, ok := csr.CSRShadowIndex(addr); ok {
		l.logShadowRead(idx)
	}
	return v, nil
}

func (l *Logging) WriteCSR(addr uint16, val uint64) error {
	var err error
	l.csrMutation(func() {
		var flush bool
		flush, err = l.CSR.Write(addr, val)
		if flush {
			l.TLB.FlushAll()
		}
	})
	return err
}

func (l *Logging) Deliver(isInterrupt bool, cause uint64, tval uint64) uint64 {
	l.csrMutation(func() { l.CSR.Deliver(isInterrupt, cause, tval) })
	return l.CSR.PC
}

func (l *Logging) MRET() {
	l.csrMutation(func() { l.Direct.MRETOrSRET(true) })
}

func (l *Logging) SRET() {
	l.csrMutation(func() { l.Direct.MRETOrSRET(false) })
}

// Memory accessors.

func (l *Logging) ReadVirt(class xlate.Class, vaddr uint64, size uint) (uint64, error) {
	e, off, err := l.Direct.resolveVia(l, class, vaddr)
	if err != nil {
		return 0, err
	}
	v, ok := loadBytes(e, off, size)
	if !ok {
		return 0, trap.New(faultFor(class), vaddr)
	}
	addr := paligned(e.Start + off)
	l.Log.AppendRead(addr, hash.LogWordSize, l.wordAt(addr), l.proofFor(addr))
	return v, nil
}

func (l *Logging) ProbeVirt(class xlate.Class, vaddr uint64) error {
	_, _, err := l.Direct.resolveVia(l, class, vaddr)
	return err
}

func (l *Logging) WriteVirt(vaddr uint64, val uint64, size uint) error {
	e, off, err := l.Direct.resolveVia(l, xlate.Write, vaddr)
	if err != nil {
		return err
	}
	if e.Kind == pma.KindDevice {
		return l.writeDevice(e, off, vaddr, val, size)
	}
	physAddr := e.Start + off
	addr := paligned(physAddr)
	before := l.wordAt(addr)
	proof := l.proofFor(addr)
	if !storeBytes(e, off, size, val) {
		return trap.New(faultFor(xlate.Write), vaddr)
	}
	l.TLB.NotifyWrite(physAddr&^uint64(size-1), uint64(size))
	after := l.wordAt(addr)
	l.Log.AppendWrite(addr, hash.LogWordSize, before, after, proof)
	return nil
}

// writeDevice commits a store to a device entry. Device writes can
// cascade: an HTIF console command echoes into fromhost, a CLINT or
// HTIF command can flip interrupt-pending or halt bits in the register
// file. The register-file side is rewound and re-applied word by word
// through applyShadowDiff; the one device-internal cascade (fromhost,
// the leaf-level sibling of tohost) gets its pre-write value patched
// into the target's proof so each leaf still changes under its own
// entry.
func (l *Logging) writeDevice(e *pma.Entry, off uint64, vaddr uint64, val uint64, size uint) error {
	physAddr := e.Start + off
	addr := paligned(physAddr)
	beforeTarget := l.wordAt(addr)

	var secAddr uint64
	var beforeSec []byte
	if e.Start == device.HTIFBase && addr == e.Start+device.ToHostOffset {
		secAddr = e.Start + device.FromHostOffset
		beforeSec = l.wordAt(secAddr)
	}

	beforeCSR := *l.CSR
	if !storeBytes(e, off, size, val) {
		return trap.New(faultFor(xlate.Write), vaddr)
	}
	afterCSR := *l.CSR
	*l.CSR = beforeCSR

	afterTarget := l.wordAt(addr)
	proof := l.proofFor(addr)
	if proof != nil {
		// The store already landed in the device, so the live target
		// (and, for tohost, its fromhost sibling) is the new value;
		// rewrite the proof to describe the pre-write leaf the chain
		// expects.
		proof.TargetHash = hash.Sum(beforeTarget)
		if beforeSec != nil {
			if afterSec := l.wordAt(secAddr); !bytes.Equal(afterSec, beforeSec) && len(proof.Siblings) > 0 {
				proof.Siblings[0] = hash.Sum(beforeSec)
			}
		}
	}
	l.Log.AppendWrite(addr, hash.LogWordSize, beforeTarget, afterTarget, proof)

	if beforeSec != nil {
		if afterSec := l.wordAt(secAddr); !bytes.Equal(afterSec, beforeSec) {
			secProof := l.proofFor(secAddr)
			if secProof != nil {
				secProof.TargetHash = hash.Sum(beforeSec)
			}
			l.Log.AppendWrite(secAddr, hash.LogWordSize, beforeSec, afterSec, secProof)
		}
	}

	l.applyShadowDiff(&beforeCSR, &afterCSR)
	return nil
}

// ReadPhysWord records the page walker's PTE reads; resolveVia routes
// them here during a logged step.
func (l *Logging) ReadPhysWord(paddr uint64) (uint64, bool) {
	v, ok := l.Direct.ReadPhysWord(paddr)
	if ok {
		addr := paligned(paddr)
		l.Log.AppendRead(addr, hash.LogWordSize, wordBytes(v), l.proofFor(addr))
	}
	return v, ok
}

// WritePhysWord records the page walker's A/D-bit writebacks.
func (l *Logging) WritePhysWord(paddr uint64, val uint64) bool {
	addr := paligned(paddr)
	before := l.wordAt(addr)
	proof := l.proofFor(addr)
	ok := l.Direct.WritePhysWord(paddr, val)
	if !ok {
		return false
	}
	after := l.wordAt(addr)
	l.Log.AppendWrite(addr, hash.LogWordSize, before, after, proof)
	return true
}

var _ Access = (*Logging)(nil)
