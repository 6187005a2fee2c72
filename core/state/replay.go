/*
 * rv64det - Replay state access
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
	"fmt"

	"github.com/rcornwell/rv64det/core/accesslog"
	"github.com/rcornwell/rv64det/core/csr"
	"github.com/rcornwell/rv64det/core/device"
	"github.com/rcornwell/rv64det/core/pma"
	"github.com/rcornwell/rv64det/core/trap"
	"github.com/rcornwell/rv64det/core/xlate"
)

// Replay wraps a Direct access and consumes a previously recorded Log
// instead of producing one: every access Logging would have recorded
// (loads, stores, the page walker's PTE reads and A/D writebacks, and
// register accesses at their shadow addresses) is checked against the
// log's next entry in order, and a mismatched address or byte value
// fails the step. This is the consistency half of the logging/replay
// duality package accesslog documents; accesslog.Verify independently
// confirms the log's own Merkle proof chain without re-executing any
// instruction, while Replay confirms that re-executing the
// instruction against the same architectural state reproduces that
// exact access sequence. Replay's TLB should start empty (as a fresh
// Direct's does) so its page walks mirror the ones a flushed-TLB
// Logging step recorded.
//
// Accessor methods whose signatures cannot return an error (SetPC,
// Deliver, ...) record the first divergence in Err instead; callers
// check Err and Done after the step.
type Replay struct {
	*Direct
	Log *accesslog.Log
	idx int
	err error
}

// NewReplay returns a Replay that checks d's accesses against log.
func NewReplay(d *Direct, log *accesslog.Log) *Replay {
	return &Replay{Direct: d, Log: log}
}

// Done reports whether every entry in the log was consumed; call
// after the instruction finishes to catch a log that recorded more
// accesses than this replay actually performed.
func (r *Replay) Done() bool { return r.idx == len(r.Log.Entries) }

// Err returns the first divergence recorded by an accessor that could
// not report it directly.
func (r *Replay) Err() error { return r.err }

func (r *Replay) next() (*accesslog.Entry, error) {
	if r.idx >= len(r.Log.Entries) {
		return nil, fmt.Errorf("replay: access beyond recorded log (have %d entries)", len(r.Log.Entries))
	}
	e := &r.Log.Entries[r.idx]
	r.idx++
	return e, nil
}

func (r *Replay) checkEntry(kind accesslog.Kind, addr uint64, before, after []byte) error {
	e, err := r.next()
	if err == nil {
		switch {
		case e.Type != kind || e.Address != addr:
			err = fmt.Errorf("replay: entry %d expected kind=%d addr=%#x, got kind=%d addr=%#x",
				r.idx-1, e.Type, e.Address, kind, addr)
		case !bytes.Equal(e.ReadBytes, before):
			err = fmt.Errorf("replay: entry %d read_bytes mismatch at %#x", r.idx-1, addr)
		case kind == accesslog.KindWrite && !bytes.Equal(e.WrittenBytes, after):
			err = fmt.Errorf("replay: entry %d written_bytes mismatch at %#x", r.idx-1, addr)
		}
	}
	if err != nil && r.err == nil {
		r.err = err
	}
	return err
}

func (r *Replay) wordAt(addr uint64) []byte { return leafWord(r.Direct, addr) }

func (r *Replay) checkShadowRead(i int) {
	addr := shadowAddr(i)
	r.checkEntry(accesslog.KindRead, addr, wordBytes(r.CSR.ShadowWord(i)), nil)
}

// csrMutation mirrors Logging.csrMutation: run op, rewind, re-apply
// word by word, checking each against the log's next write entry.
func (r *Replay) csrMutation(op func()) {
	before := *r.CSR
	op()
	after := *r.CSR
	*r.CSR = before
	r.applyShadowDiff(&before, &after)
}

func (r *Replay) applyShadowDiff(before, after *csr.File) {
	for i := 0; i < csr.ShadowRegWords; i++ {
		b, a := before.ShadowWord(i), after.ShadowWord(i)
		if b == a {
			continue
		}
		r.CSR.SetShadowWord(i, a)
		r.checkEntry(accesslog.KindWrite, shadowAddr(i), wordBytes(b), wordBytes(a))
	}
}

// CSRMutation mirrors Logging.CSRMutation for callers replaying a
// step that folded an external register-file side effect into the log.
func (r *Replay) CSRMutation(op func()) {
	r.csrMutation(op)
}

func (r *Replay) ReadX(i int) uint64 {
	if i != 0 {
		r.checkShadowRead(csr.ShadowXBase + i - 1)
	}
	return r.CSR.ReadX(i)
}

func (r *Replay) WriteX(i int, v uint64) {
	if i == 0 {
		return
	}
	r.csrMutation(func() { r.CSR.WriteX(i, v) })
}

func (r *Replay) PC() uint64 {
	r.checkShadowRead(csr.ShadowPC)
	return r.CSR.PC
}

func (r *Replay) SetPC(v uint64) {
	r.csrMutation(func() { r.CSR.PC = v })
}

func (r *Replay) MCycle() uint64 {
	r.checkShadowRead(csr.ShadowMCycle)
	return r.CSR.MCycle
}

func (r *Replay) SetMCycle(v uint64) {
	r.csrMutation(func() { r.CSR.MCycle = v })
}

func (r *Replay) MInstret() uint64 {
	r.checkShadowRead(csr.ShadowMInstret)
	return r.CSR.MInstret
}

func (r *Replay) SetMInstret(v uint64) {
	r.csrMutation(func() { r.CSR.MInstret = v })
}

func (r *Replay) PRV() uint8 {
	r.checkShadowRead(csr.ShadowPRV)
	return r.CSR.PRV
}

func (r *Replay) SetPRV(v uint8) {
	r.csrMutation(func() { r.CSR.PRV = v })
}

func (r *Replay) Iflags() csr.Iflags {
	r.checkShadowRead(csr.ShadowIflags)
	return r.CSR.Iflags
}

func (r *Replay) SetIflags(f csr.Iflags) {
	r.csrMutation(func() { r.CSR.Iflags = f })
}

func (r *Replay) Reservation() uint64 {
	r.checkShadowRead(csr.ShadowILRSC)
	return r.CSR.ILRSC
}

func (r *Replay) SetReservation(v uint64) {
	r.csrMutation(func() { r.CSR.ILRSC = v })
}

func (r *Replay) TSR() bool {
	r.checkShadowRead(csr.ShadowMstatus)
	return r.CSR.TSR()
}

func (r *Replay) TW() bool {
	r.checkShadowRead(csr.ShadowMstatus)
	return r.CSR.TW()
}

func (r *Replay) TVM() bool {
	r.checkShadowRead(csr.ShadowMstatus)
	return r.CSR.TVM()
}

func (r *Replay) ReadCSR(addr uint16) (uint64, error) {
	v, err := r.CSR.Read(addr)
	if err != nil {
		return 0, err
	}
	if idx, ok := csr.CSRShadowIndex(addr); ok {
		r.checkShadowRead(idx)
	}
	return v, nil
}

func (r *Replay) WriteCSR(addr uint16, val uint64) error {
	var err error
	r.csrMutation(func() {
		var flush bool
		flush, err = r.CSR.Write(addr, val)
		if flush {
			r.TLB.FlushAll()
		}
	})
	return err
}

func (r *Replay) Deliver(isInterrupt bool, cause uint64, tval uint64) uint64 {
	r.csrMutation(func() { r.CSR.Deliver(isInterrupt, cause, tval) })
	return r.CSR.PC
}

func (r *Replay) MRET() {
	r.csrMutation(func() { r.Direct.MRETOrSRET(true) })
}

func (r *Replay) SRET() {
	r.csrMutation(func() { r.Direct.MRETOrSRET(false) })
}

func (r *Replay) ReadVirt(class xlate.Class, vaddr uint64, size uint) (uint64, error) {
	e, off, err := r.Direct.resolveVia(r, class, vaddr)
	if err != nil {
		return 0, err
	}
	v, ok := loadBytes(e, off, size)
	if !ok {
		return 0, trap.New(faultFor(class), vaddr)
	}
	addr := paligned(e.Start + off)
	if cerr := r.checkEntry(accesslog.KindRead, addr, r.wordAt(addr), nil); cerr != nil {
		return v, cerr
	}
	return v, nil
}

func (r *Replay) ProbeVirt(class xlate.Class, vaddr uint64) error {
	_, _, err := r.Direct.resolveVia(r, class, vaddr)
	return err
}

func (r *Replay) WriteVirt(vaddr uint64, val uint64, size uint) error {
	e, off, err := r.Direct.resolveVia(r, xlate.Write, vaddr)
	if err != nil {
		return err
	}
	if e.Kind == pma.KindDevice {
		return r.writeDevice(e, off, vaddr, val, size)
	}
	physAddr := e.Start + off
	addr := paligned(physAddr)
	before := r.wordAt(addr)
	if !storeBytes(e, off, size, val) {
		return trap.New(faultFor(xlate.Write), vaddr)
	}
	r.TLB.NotifyWrite(physAddr&^uint64(size-1), uint64(size))
	after := r.wordAt(addr)
	return r.checkEntry(accesslog.KindWrite, addr, before, after)
}

// writeDevice mirrors Logging.writeDevice: the target word, the
// fromhost echo when the target is tohost, then the register-file
// cascade, each checked in the same order Logging records them.
func (r *Replay) writeDevice(e *pma.Entry, off uint64, vaddr uint64, val uint64, size uint) error {
	physAddr := e.Start + off
	addr := paligned(physAddr)
	beforeTarget := r.wordAt(addr)

	var secAddr uint64
	var beforeSec []byte
	if e.Start == device.HTIFBase && addr == e.Start+device.ToHostOffset {
		secAddr = e.Start + device.FromHostOffset
		beforeSec = r.wordAt(secAddr)
	}

	beforeCSR := *r.CSR
	if !storeBytes(e, off, size, val) {
		return trap.New(faultFor(xlate.Write), vaddr)
	}
	afterCSR := *r.CSR
	*r.CSR = beforeCSR

	afterTarget := r.wordAt(addr)
	if cerr := r.checkEntry(accesslog.KindWrite, addr, beforeTarget, afterTarget); cerr != nil {
		return cerr
	}
	if beforeSec != nil {
		if afterSec := r.wordAt(secAddr); !bytes.Equal(afterSec, beforeSec) {
			if cerr := r.checkEntry(accesslog.KindWrite, secAddr, beforeSec, afterSec); cerr != nil {
				return cerr
			}
		}
	}
	r.applyShadowDiff(&beforeCSR, &afterCSR)
	return r.err
}

// ReadPhysWord checks the page walker's PTE reads against the log. A
// mismatch is reported as an access failure; the walker then faults,
// and the divergence surfaces through Err.
func (r *Replay) ReadPhysWord(paddr uint64) (uint64, bool) {
	v, ok := r.Direct.ReadPhysWord(paddr)
	if !ok {
		return v, false
	}
	addr := paligned(paddr)
	if err := r.checkEntry(accesslog.KindRead, addr, wordBytes(v), nil); err != nil {
		return v, false
	}
	return v, true
}

// WritePhysWord checks the page walker's A/D-bit writebacks against
// the log.
func (r *Replay) WritePhysWord(paddr uint64, val uint64) bool {
	addr := paligned(paddr)
	before := r.wordAt(addr)
	ok := r.Direct.WritePhysWord(paddr, val)
	if !ok {
		return false
	}
	after := r.wordAt(addr)
	if cerr := r.checkEntry(accesslog.KindWrite, addr, before, after); cerr != nil {
		return false
	}
	return true
}

var _ Access = (*Replay)(nil)
