/*
 * rv64det - Top-level machine: wiring, run/step, host accessors
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

// Package machine assembles the CSR file, PMA table, TLBs and devices
// into one RV64 machine and exposes the host-facing operation set:
// run, step, verify_log, get_root_hash, get_proof, the register/CSR/
// memory accessors, and snapshot save/load. It is the one place an
// embedding driver and the tests reach for "build me a machine and
// drive it".
package machine

import (
	"github.com/rcornwell/rv64det/core/accesslog"
	"github.com/rcornwell/rv64det/core/config"
	"github.com/rcornwell/rv64det/core/cpu"
	"github.com/rcornwell/rv64det/core/csr"
	"github.com/rcornwell/rv64det/core/device"
	"github.com/rcornwell/rv64det/core/hash"
	"github.com/rcornwell/rv64det/core/pma"
	"github.com/rcornwell/rv64det/core/state"
	"github.com/rcornwell/rv64det/core/tlb"
)

// interruptLines adapts *csr.File to device.InterruptLines: the CSR
// file's MCycle is a struct field, and Go forbids a field and a method
// of the same name on the same type, so CLINT's narrow view is
// satisfied by this wrapper rather than by csr.File directly.
type interruptLines struct {
	csr *csr.File
}

func (i interruptLines) MSIP() bool      { return i.csr.MSIP() }
func (i interruptLines) SetMSIP(v bool)  { i.csr.SetMSIP(v) }
func (i interruptLines) SetMTIP(v bool)  { i.csr.SetMTIP(v) }
func (i interruptLines) MCycle() uint64  { return i.csr.MCycle }

// Machine owns every piece of architectural and device state for one
// RV64 hart.
type Machine struct {
	csr *csr.File
	pma *pma.Table
	tlb *tlb.Set
	dir *state.Direct

	clint *device.CLINT
	htif  *device.HTIF

	cfg   *config.Config
	flash []*config.FlashDrive

	halted     bool
	haltCode   uint64
	consoleOut func(byte)
}

// Halt implements device.Host: HTIF's halt command.
func (m *Machine) Halt(payload uint64) {
	m.halted = true
	m.haltCode = payload
	fl := m.csr.Iflags
	fl.Halted = true
	m.csr.Iflags = fl
}

// ConsoleOut implements device.Host: HTIF console-output command.
func (m *Machine) ConsoleOut(b byte) {
	if m.consoleOut != nil {
		m.consoleOut(b)
	}
}

// RequestConsoleIn implements device.Host; this core has no host
// terminal of its own, so a request is
// simply observable through HTIF's own state until the embedding host
// driver pushes a byte via PushConsoleByte.
func (m *Machine) RequestConsoleIn() {}

// SetConsoleWriter installs the callback invoked for every byte the
// guest writes to the HTIF console-output command.
func (m *Machine) SetConsoleWriter(fn func(byte)) { m.consoleOut = fn }

// Halted reports whether the guest has executed an HTIF halt command.
func (m *Machine) Halted() (bool, uint64) { return m.halted, m.haltCode }

// New builds a Machine from cfg: allocates zero-filled RAM and ROM,
// opens flash drives, and wires CLINT/HTIF/shadow-state at their
// fixed physical addresses. The RAM and ROM image paths in cfg are not
// read, and no boot code is synthesized into ROM.
func New(cfg *config.Config) (*Machine, error) {
	c := csr.New(config.ROMBase)
	t := pma.New()

	m := &Machine{csr: c, pma: t, cfg: cfg}

	ramData := make([]byte, cfg.RAM.Length)
	if _, err := t.AddMemory(config.RAMBase, cfg.RAM.Length,
		pma.FlagRead|pma.FlagWrite|pma.FlagExec|pma.FlagIdempotentRead|pma.FlagIdempotentWrite,
		0, ramData); err != nil {
		return nil, newErr(InvalidArgument, "adding ram: %v", err)
	}

	romData := make([]byte, config.ROMLength)
	if _, err := t.AddMemory(config.ROMBase, config.ROMLength,
		pma.FlagRead|pma.FlagExec|pma.FlagIdempotentRead, 1, romData); err != nil {
		return nil, newErr(InvalidArgument, "adding rom: %v", err)
	}

	for i := range cfg.Flash {
		fd := &cfg.Flash[i]
		if err := fd.Open(); err != nil {
			return nil, newErr(RuntimeError, "opening flash drive %d: %v", i, err)
		}
		if _, err := t.AddMemory(fd.Start, fd.Length,
			pma.FlagRead|pma.FlagWrite|pma.FlagIdempotentRead|pma.FlagIdempotentWrite,
			uint8(2+i), fd.Data()); err != nil {
			return nil, newErr(InvalidArgument, "adding flash drive %d: %v", i, err)
		}
		m.flash = append(m.flash, fd)
	}

	m.clint = device.NewCLINT(interruptLines{csr: c})
	if _, err := t.AddDevice(device.CLINTBase, device.CLINTLength,
		pma.FlagRead|pma.FlagWrite, 0x10, m.clint); err != nil {
		return nil, newErr(InvalidArgument, "adding clint: %v", err)
	}

	m.htif = device.NewHTIF(m, device.HTIFConfig{
		ConsoleGetchar: cfg.HTIF.ConsoleGetchar,
		YieldManual:    cfg.HTIF.YieldManual,
		YieldAutomatic: cfg.HTIF.YieldAutomatic,
	})
	if _, err := t.AddDevice(device.HTIFBase, device.HTIFLength,
		pma.FlagRead|pma.FlagWrite, 0x11, m.htif); err != nil {
		return nil, newErr(InvalidArgument, "adding htif: %v", err)
	}

	shadow := device.NewShadowState(shadowAccessors(c, t))
	if _, err := t.AddDevice(device.ShadowBase, device.ShadowLength,
		pma.FlagRead, 0x12, shadow); err != nil {
		return nil, newErr(InvalidArgument, "adding shadow state: %v", err)
	}

	m.tlb = tlb.NewSet()
	m.dir = state.NewDirect(c, t, m.tlb)
	return m, nil
}

// shadowAccessors builds the dense register-to-word projection
// ShadowState serves read-only: every architectural register at a
// fixed canonical offset, then the per-PMA istart/ilength packed
// words. Because the shadow device is an ordinary PMA entry, this
// folds the whole register file into the machine's root hash, which is
// what lets snapshot restore (restoreShadow, below; the two must stay
// in the same order) verify register state against the saved hash.
func shadowAccessors(c *csr.File, t *pma.Table) []func() uint64 {
	regs := make([]func() uint64, 0, csr.ShadowRegWords+2*len(t.Entries()))
	for i := 0; i < csr.ShadowRegWords; i++ {
		i := i
		regs = append(regs, func() uint64 { return c.ShadowWord(i) })
	}
	for _, e := range t.Entries() {
		e := e
		regs = append(regs, func() uint64 { s, _ := e.Pack(); return s })
		regs = append(regs, func() uint64 { _, l := e.Pack(); return l })
	}
	return regs
}

// restoreShadow writes the register-file words of a saved shadow page
// back into the CSR file, inverting shadowAccessors' register prefix.
// The trailing istart/ilength words are derived from the PMA table and
// ignored.
func (m *Machine) restoreShadow(words []uint64) error {
	if len(words) < csr.ShadowRegWords {
		return newErr(InvalidArgument, "snapshot: shadow image too short (%d words)", len(words))
	}
	for i := 0; i < csr.ShadowRegWords; i++ {
		m.csr.SetShadowWord(i, words[i])
	}
	m.halted = m.csr.Iflags.Halted
	return nil
}

// Run drives the interpreter loop via package cpu, ticking the CLINT
// once per elapsed cycle so mip.MTIP stays derived from mcycle with no
// wall-clock input.
func (m *Machine) Run(cyclesEnd uint64) (cpu.Result, error) {
	hooks := cpu.Hooks{
		Tick:     m.clint.Tick,
		NextWake: m.nextWake,
	}
	res, err := cpu.Run(m.dir, hooks, cyclesEnd)
	if err != nil {
		return res, newErr(RuntimeError, "run: %v", err)
	}
	return res, nil
}

func (m *Machine) nextWake() (uint64, bool) {
	cmp := m.clint.MTimeCmp()
	if cmp == ^uint64(0) {
		return 0, false
	}
	return cmp * device.RTCFreqDiv, true
}

// Step interprets exactly one instruction with logging enabled,
// returning the resulting access log.
// The TLB is flushed first so the log is canonical: the page walks it
// records do not depend on which translations an earlier Run left
// cached.
func (m *Machine) Step(desc accesslog.TypeDescriptor) (*accesslog.Log, error) {
	m.tlb.FlushAll()
	l := state.NewLogging(m.dir, desc)
	if err := cpu.ExecuteOne(l); err != nil {
		return l.Log, newErr(RuntimeError, "step: %v", err)
	}
	// The per-step CLINT tick can raise mip.MTIP; fold it into the same
	// log so the post-root the caller observes is fully accounted for.
	l.CSRMutation(m.clint.Tick)
	return l.Log, nil
}

// VerifyLog replays log against preRoot/postRoot without touching
// this Machine's own state.
func VerifyLog(log *accesslog.Log, preRoot, postRoot hash.Digest) error {
	if err := accesslog.Verify(log, preRoot, postRoot); err != nil {
		return newErr(InvalidArgument, "verify_log: %v", err)
	}
	return nil
}

// GetRootHash returns the Merkle root of the machine's whole physical
// address space.
func (m *Machine) GetRootHash() hash.Digest { return m.pma.RootHash() }

// GetProof returns the inclusion proof for the 2^log2Size-byte span
// at addr.
func (m *Machine) GetProof(addr uint64, log2Size uint) (hash.Digest, []hash.Digest) {
	return m.pma.Proof(addr, log2Size)
}

// ReadRegister/WriteRegister access general register i; valid only
// while the machine is not running.
func (m *Machine) ReadRegister(i int) (uint64, error) {
	if i < 0 || i > 31 {
		return 0, newErr(InvalidArgument, "register index %d out of range", i)
	}
	return m.csr.ReadX(i), nil
}

func (m *Machine) WriteRegister(i int, v uint64) error {
	if i < 0 || i > 31 {
		return newErr(InvalidArgument, "register index %d out of range", i)
	}
	m.csr.WriteX(i, v)
	return nil
}

// ReadCSR/WriteCSR access a CSR by address, classifying a bad address
// or privilege violation as DomainError rather than propagating the
// internal trap.Exception the CSR file itself reports.
func (m *Machine) ReadCSR(addr uint16) (uint64, error) {
	v, err := m.csr.Read(addr)
	if err != nil {
		return 0, newErr(DomainError, "read csr %#x: %v", addr, err)
	}
	return v, nil
}

func (m *Machine) WriteCSR(addr uint16, val uint64) error {
	flush, err := m.csr.Write(addr, val)
	if err != nil {
		return newErr(DomainError, "write csr %#x: %v", addr, err)
	}
	if flush {
		m.tlb.FlushAll()
	}
	return nil
}

// ReadMemory/WriteMemory are the host-facing physical-address
// accessors, sized in 1/2/4/8 bytes.
func (m *Machine) ReadMemory(paddr uint64, size uint) (uint64, error) {
	v, ok := m.dir.ReadPhys(paddr, size)
	if !ok {
		return 0, newErr(InvalidArgument, "read_memory: no mapping at %#x", paddr)
	}
	return v, nil
}

func (m *Machine) WriteMemory(paddr uint64, val uint64, size uint) error {
	if !m.dir.WritePhys(paddr, val, size) {
		return newErr(InvalidArgument, "write_memory: no mapping at %#x", paddr)
	}
	return nil
}

// PushConsoleByte forwards to the HTIF device, for a host driver
// feeding guest console input.
func (m *Machine) PushConsoleByte(b byte) { m.htif.PushConsoleByte(b) }
