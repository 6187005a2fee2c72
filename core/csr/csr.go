/*
 * rv64det - CSR register file and privileged-state semantics
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

// Package csr is the architectural register file: general registers,
// pc, the cycle/instret counters, iflags, the LR/SC reservation, and
// the privileged CSRs, together with their read/write masks,
// privilege checks and side effects. It is the single struct every
// executor mutates through, never directly.
package csr

import (
	"github.com/rcornwell/rv64det/core/trap"
	"github.com/rcornwell/rv64det/internal/obslog"
	"github.com/rcornwell/rv64det/util/hex"
)

// Privilege levels.
const (
	U = 0
	S = 1
	M = 3
)

// NoReservation is the sentinel ilrsc value meaning "no outstanding
// LR reservation", distinct from any valid address.
const NoReservation = ^uint64(0)

// mstatus bit positions (the subset this engine implements; no
// floating point, no hypervisor, single hart).
const (
	bitSIE  = 1
	bitMIE  = 3
	bitSPIE = 5
	bitMPIE = 7
	bitSPP  = 8
	bitMPPLo = 11
	bitMPPHi = 12
	bitMPRV = 17
	bitSUM  = 18
	bitMXR  = 19
	bitTVM  = 20
	bitTW   = 21
	bitTSR  = 22
)

const (
	maskMPP = uint64(0b11) << bitMPPLo

	mstatusWriteMask = 1<<bitSIE | 1<<bitMIE | 1<<bitSPIE | 1<<bitMPIE |
		1<<bitSPP | maskMPP | 1<<bitMPRV | 1<<bitSUM | 1<<bitMXR |
		1<<bitTVM | 1<<bitTW | 1<<bitTSR
	sstatusMask = 1<<bitSIE | 1<<bitSPIE | 1<<bitSPP | 1<<bitSUM | 1<<bitMXR

	// mie/mip bit positions, shared between the two registers.
	bitSSIP = 1
	bitMSIP = 3
	bitSTIP = 5
	bitMTIP = 7
	bitSEIP = 9
	bitMEIP = 11

	mieMask     = 1<<bitSSIP | 1<<bitMSIP | 1<<bitSTIP | 1<<bitMTIP | 1<<bitSEIP | 1<<bitMEIP
	mipWriteMask = 1<<bitSSIP | 1<<bitSTIP

	// satp fields.
	satpModeShift = 60
	satpModeMask  = uint64(0xf) << satpModeShift
	satpRest      = ^satpModeMask

	satpModeBare  = 0
	satpModeSv39  = 8
	satpModeSv48  = 9
)

// CSR addresses used by this engine (standard RISC-V assignments).
const (
	AddrSstatus  = 0x100
	AddrSie      = 0x104
	AddrStvec    = 0x105
	AddrSscratch = 0x140
	AddrSepc     = 0x141
	AddrScause   = 0x142
	AddrStval    = 0x143
	AddrSip      = 0x144
	AddrSatp     = 0x180

	AddrMstatus  = 0x300
	AddrMisa     = 0x301
	AddrMedeleg  = 0x302
	AddrMideleg  = 0x303
	AddrMie      = 0x304
	AddrMtvec    = 0x305
	AddrMscratch = 0x340
	AddrMepc     = 0x341
	AddrMcause   = 0x342
	AddrMtval    = 0x343
	AddrMip      = 0x344

	AddrMcycle   = 0xb00
	AddrMinstret = 0xb02

	AddrMvendorid = 0xf11
	AddrMarchid   = 0xf12
	AddrMimpid    = 0xf13
	AddrMhartid   = 0xf14
)

// misaRV64IMASU is the fixed misa encoding: MXL=2 (64-bit), extensions
// I, M, A, S, U set.
const misaRV64IMASU = uint64(2)<<62 | 1<<8 /*I*/ | 1<<12 /*M*/ | 1<<0 /*A*/ | 1<<18 /*S*/ | 1<<20 /*U*/

// Iflags holds the halted/yielded machine flags, plus the I
// (idle/WFI) and B (break-from-inner-loop) bits the outer loop and
// WFI executor use; B is an optimization fence and may be ignored by
// any loop that polls interrupts every cycle.
type Iflags struct {
	Halted       bool
	YieldManual  bool
	Idle         bool
	BreakInner   bool
}

// Pack encodes the architectural iflags bits (H, Y, I) as one word for
// the shadow-state projection. BreakInner is a transient loop fence,
// not architectural state, and is not packed.
func (i Iflags) Pack() uint64 {
	var v uint64
	if i.Halted {
		v |= 1 << 0
	}
	if i.YieldManual {
		v |= 1 << 1
	}
	if i.Idle {
		v |= 1 << 2
	}
	return v
}

// UnpackIflags decodes a word packed by Iflags.Pack.
func UnpackIflags(v uint64) Iflags {
	return Iflags{
		Halted:      v&(1<<0) != 0,
		YieldManual: v&(1<<1) != 0,
		Idle:        v&(1<<2) != 0,
	}
}

// Canonical shadow-state word indices. Every architectural register
// projects to the 8-byte word at index*8 within the shadow-state
// device, which is how register values get canonical Merkle
// addresses: the machine's shadow projection, the access logger's
// register entries, and snapshot restore all index by these.
const (
	ShadowPC = iota
	ShadowMCycle
	ShadowMInstret
	ShadowPRV
	ShadowIflags
	ShadowILRSC
	ShadowMstatus
	ShadowMtvec
	ShadowMscratch
	ShadowMepc
	ShadowMcause
	ShadowMtval
	ShadowMip
	ShadowMie
	ShadowMideleg
	ShadowMedeleg
	ShadowStvec
	ShadowSscratch
	ShadowSepc
	ShadowScause
	ShadowStval
	ShadowSatp
	ShadowFixedWords
)

// ShadowXBase is the shadow index of x1; xi lives at ShadowXBase+i-1.
// x0 has no slot: it is architecturally constant zero.
const ShadowXBase = ShadowFixedWords

// ShadowRegWords is the total register-file span of the shadow layout.
const ShadowRegWords = ShadowFixedWords + 31

// ShadowWord returns the value of shadow word i.
func (f *File) ShadowWord(i int) uint64 {
	switch i {
	case ShadowPC:
		return f.PC
	case ShadowMCycle:
		return f.MCycle
	case ShadowMInstret:
		return f.MInstret
	case ShadowPRV:
		return uint64(f.PRV)
	case ShadowIflags:
		return f.Iflags.Pack()
	case ShadowILRSC:
		return f.ILRSC
	case ShadowMstatus:
		return f.Mstatus
	case ShadowMtvec:
		return f.Mtvec
	case ShadowMscratch:
		return f.Mscratch
	case ShadowMepc:
		return f.Mepc
	case ShadowMcause:
		return f.Mcause
	case ShadowMtval:
		return f.Mtval
	case ShadowMip:
		return f.Mip
	case ShadowMie:
		return f.Mie
	case ShadowMideleg:
		return f.Mideleg
	case ShadowMedeleg:
		return f.Medeleg
	case ShadowStvec:
		return f.Stvec
	case ShadowSscratch:
		return f.Sscratch
	case ShadowSepc:
		return f.Sepc
	case ShadowScause:
		return f.Scause
	case ShadowStval:
		return f.Stval
	case ShadowSatp:
		return f.Satp
	default:
		if i >= ShadowXBase && i < ShadowRegWords {
			return f.ReadX(i - ShadowXBase + 1)
		}
		return 0
	}
}

// SetShadowWord writes shadow word i, inverting ShadowWord.
func (f *File) SetShadowWord(i int, v uint64) {
	switch i {
	case ShadowPC:
		f.PC = v
	case ShadowMCycle:
		f.MCycle = v
	case ShadowMInstret:
		f.MInstret = v
	case ShadowPRV:
		f.PRV = uint8(v)
	case ShadowIflags:
		f.Iflags = UnpackIflags(v)
	case ShadowILRSC:
		f.ILRSC = v
	case ShadowMstatus:
		f.Mstatus = v
	case ShadowMtvec:
		f.Mtvec = v
	case ShadowMscratch:
		f.Mscratch = v
	case ShadowMepc:
		f.Mepc = v
	case ShadowMcause:
		f.Mcause = v
	case ShadowMtval:
		f.Mtval = v
	case ShadowMip:
		f.Mip = v
	case ShadowMie:
		f.Mie = v
	case ShadowMideleg:
		f.Mideleg = v
	case ShadowMedeleg:
		f.Medeleg = v
	case ShadowStvec:
		f.Stvec = v
	case ShadowSscratch:
		f.Sscratch = v
	case ShadowSepc:
		f.Sepc = v
	case ShadowScause:
		f.Scause = v
	case ShadowStval:
		f.Stval = v
	case ShadowSatp:
		f.Satp = v
	default:
		if i >= ShadowXBase && i < ShadowRegWords {
			f.WriteX(i-ShadowXBase+1, v)
		}
	}
}

// CSRShadowIndex maps a CSR address to the shadow word backing it, for
// access logging. CSRs that alias another register (sstatus, sie, sip)
// map to the underlying word; constant CSRs (misa, mhartid and
// friends) have no backing word and report false.
func CSRShadowIndex(addr uint16) (int, bool) {
	switch addr {
	case AddrMstatus, AddrSstatus:
		return ShadowMstatus, true
	case AddrMie, AddrSie:
		return ShadowMie, true
	case AddrMip, AddrSip:
		return ShadowMip, true
	case AddrMideleg:
		return ShadowMideleg, true
	case AddrMedeleg:
		return ShadowMedeleg, true
	case AddrMtvec:
		return ShadowMtvec, true
	case AddrStvec:
		return ShadowStvec, true
	case AddrMscratch:
		return ShadowMscratch, true
	case AddrSscratch:
		return ShadowSscratch, true
	case AddrMepc:
		return ShadowMepc, true
	case AddrSepc:
		return ShadowSepc, true
	case AddrMcause:
		return ShadowMcause, true
	case AddrScause:
		return ShadowScause, true
	case AddrMtval:
		return ShadowMtval, true
	case AddrStval:
		return ShadowStval, true
	case AddrSatp:
		return ShadowSatp, true
	case AddrMcycle:
		return ShadowMCycle, true
	case AddrMinstret:
		return ShadowMInstret, true
	default:
		return 0, false
	}
}

// File is the complete architectural register file.
type File struct {
	X  [32]uint64
	PC uint64

	MCycle   uint64
	MInstret uint64

	PRV    uint8
	Iflags Iflags
	ILRSC  uint64

	Mstatus  uint64
	Mie      uint64
	Mip      uint64
	Mideleg  uint64
	Medeleg  uint64
	Mtvec    uint64
	Mepc     uint64
	Mcause   uint64
	Mtval    uint64
	Mscratch uint64

	Stvec    uint64
	Sepc     uint64
	Scause   uint64
	Stval    uint64
	Sscratch uint64
	Satp     uint64
}

// New returns a register file in the machine's reset state: pc at the
// ROM base, M-mode, all TLBs conceptually empty (the caller owns the
// TLBs themselves), no LR reservation.
func New(resetPC uint64) *File {
	return &File{
		PC:    resetPC,
		PRV:   M,
		ILRSC: NoReservation,
	}
}

// ReadX returns general register i; x0 always reads zero.
func (f *File) ReadX(i int) uint64 {
	if i == 0 {
		return 0
	}
	return f.X[i]
}

// WriteX writes general register i; writes to x0 are discarded.
func (f *File) WriteX(i int, v uint64) {
	if i == 0 {
		return
	}
	f.X[i] = v
}

// MSIP reports the current value of mip.MSIP, for the CLINT driver's
// InterruptLines contract.
func (f *File) MSIP() bool { return f.Mip&(1<<bitMSIP) != 0 }

// SetMSIP sets or clears mip.MSIP.
func (f *File) SetMSIP(v bool) { f.setMip(bitMSIP, v) }

// SetMTIP sets or clears mip.MTIP.
func (f *File) SetMTIP(v bool) { f.setMip(bitMTIP, v) }

func (f *File) setMip(bit uint, v bool) {
	if v {
		f.Mip |= 1 << bit
	} else {
		f.Mip &^= 1 << bit
	}
}

// mstatusSUM/MXR/MPRV/MPP accessors used by the translator and the
// effective-privilege computation.
func (f *File) SUM() bool  { return f.Mstatus&(1<<bitSUM) != 0 }
func (f *File) MXR() bool  { return f.Mstatus&(1<<bitMXR) != 0 }
func (f *File) MPRV() bool { return f.Mstatus&(1<<bitMPRV) != 0 }
func (f *File) MPP() uint8 { return uint8((f.Mstatus & maskMPP) >> bitMPPLo) }
func (f *File) TVM() bool  { return f.Mstatus&(1<<bitTVM) != 0 }
func (f *File) TW() bool   { return f.Mstatus&(1<<bitTW) != 0 }
func (f *File) TSR() bool  { return f.Mstatus&(1<<bitTSR) != 0 }

// EffectivePrivilege returns the privilege level address translation
// and load/store should use: MPP when MPRV is set and the access is
// not an instruction fetch, else the current PRV. Code fetches always
// use the current PRV.
func (f *File) EffectivePrivilege(isCode bool) uint8 {
	if !isCode && f.MPRV() {
		return f.MPP()
	}
	return f.PRV
}

func csrReadOnly(addr uint16) bool {
	return addr&0xc00 == 0xc00
}

func csrMinPrivilege(addr uint16) uint8 {
	return uint8((addr >> 8) & 0x3)
}

// checkAccess applies the two CSR-address-encoded rules: the top two
// bits mark read-only CSRs, and bits [9:8] name
// the minimum privilege required.
func (f *File) checkAccess(addr uint16, forWrite bool) error {
	if forWrite && csrReadOnly(addr) {
		return trap.New(trap.IllegalInstruction, uint64(addr))
	}
	if csrMinPrivilege(addr) > f.PRV {
		return trap.New(trap.IllegalInstruction, uint64(addr))
	}
	return nil
}

// Read returns the value of the CSR at addr, applying the read mask
// and privilege check.
func (f *File) Read(addr uint16) (uint64, error) {
	if err := f.checkAccess(addr, false); err != nil {
		return 0, err
	}
	switch addr {
	case AddrMstatus:
		return f.Mstatus & mstatusWriteMask, nil
	case AddrSstatus:
		return f.Mstatus & sstatusMask, nil
	case AddrMisa:
		return misaRV64IMASU, nil
	case AddrMedeleg:
		return f.Medeleg, nil
	case AddrMideleg:
		return f.Mideleg, nil
	case AddrMie:
		return f.Mie, nil
	case AddrSie:
		return f.Mie & sDelegableInterrupts(), nil
	case AddrMtvec:
		return f.Mtvec, nil
	case AddrStvec:
		return f.Stvec, nil
	case AddrMscratch:
		return f.Mscratch, nil
	case AddrSscratch:
		return f.Sscratch, nil
	case AddrMepc:
		return f.Mepc, nil
	case AddrSepc:
		return f.Sepc, nil
	case AddrMcause:
		return f.Mcause, nil
	case AddrScause:
		return f.Scause, nil
	case AddrMtval:
		return f.Mtval, nil
	case AddrStval:
		return f.Stval, nil
	case AddrMip:
		return f.Mip, nil
	case AddrSip:
		return f.Mip & sDelegableInterrupts(), nil
	case AddrSatp:
		if f.PRV == S && f.TVM() {
			return 0, trap.New(trap.IllegalInstruction, uint64(addr))
		}
		return f.Satp, nil
	case AddrMcycle:
		return f.MCycle, nil
	case AddrMinstret:
		return f.MInstret, nil
	case AddrMvendorid, AddrMarchid, AddrMimpid, AddrMhartid:
		return 0, nil
	default:
		return 0, trap.New(trap.IllegalInstruction, uint64(addr))
	}
}

func sDelegableInterrupts() uint64 {
	return 1<<bitSSIP | 1<<bitSTIP | 1<<bitSEIP
}

// Write applies val to the CSR at addr under its write mask,
// returning whether the write requires a full TLB flush (satp,
// mstatus.MPRV/SUM/MXR, or MPRV-gated MPP changed).
func (f *File) Write(addr uint16, val uint64) (flushTLB bool, err error) {
	if err := f.checkAccess(addr, true); err != nil {
		return false, err
	}
	switch addr {
	case AddrMstatus:
		before := f.Mstatus
		f.Mstatus = (f.Mstatus &^ mstatusWriteMask) | (val & mstatusWriteMask)
		watch := uint64(1<<bitMPRV | 1<<bitSUM | 1<<bitMXR)
		if f.Mstatus&(1<<bitMPRV) != 0 {
			watch |= maskMPP
		}
		return (before^f.Mstatus)&watch != 0, nil
	case AddrSstatus:
		before := f.Mstatus
		f.Mstatus = (f.Mstatus &^ sstatusMask) | (val & sstatusMask)
		return (before^f.Mstatus)&(1<<bitSUM|1<<bitMXR) != 0, nil
	case AddrMedeleg:
		f.Medeleg = val &^ (1 << 11) // ECALL-from-M never delegable
		return false, nil
	case AddrMideleg:
		f.Mideleg = val & mieMask
		return false, nil
	case AddrMie:
		f.Mie = val & mieMask
		return false, nil
	case AddrSie:
		d := sDelegableInterrupts()
		f.Mie = (f.Mie &^ d) | (val & d)
		return false, nil
	case AddrMtvec:
		f.Mtvec = val &^ 0x3
		return false, nil
	case AddrStvec:
		f.Stvec = val &^ 0x3
		return false, nil
	case AddrMscratch:
		f.Mscratch = val
		return false, nil
	case AddrSscratch:
		f.Sscratch = val
		return false, nil
	case AddrMepc:
		f.Mepc = val &^ 0x3
		return false, nil
	case AddrSepc:
		f.Sepc = val &^ 0x3
		return false, nil
	case AddrMcause:
		f.Mcause = val
		return false, nil
	case AddrScause:
		f.Scause = val
		return false, nil
	case AddrMtval:
		f.Mtval = val
		return false, nil
	case AddrStval:
		f.Stval = val
		return false, nil
	case AddrMip:
		f.Mip = (f.Mip &^ mipWriteMask) | (val & mipWriteMask)
		return false, nil
	case AddrSip:
		d := sDelegableInterrupts() & mipWriteMask
		f.Mip = (f.Mip &^ d) | (val & d)
		return false, nil
	case AddrSatp:
		if f.PRV == S && f.TVM() {
			return false, trap.New(trap.IllegalInstruction, uint64(addr))
		}
		mode := val & satpModeMask
		switch mode >> satpModeShift {
		case satpModeBare, satpModeSv39, satpModeSv48:
			if f.Satp == val {
				return false, nil
			}
			f.Satp = val
			obslog.Tracef(obslog.TraceCSR, "csr: satp=%s", hex.Word64(val))
			return true, nil
		default:
			// Unsupported mode: silently keep the previous mode.
			f.Satp = (f.Satp & satpModeMask) | (val & satpRest)
			return true, nil
		}
	case AddrMcycle:
		// The outer loop unconditionally increments mcycle after this
		// instruction retires, so store val-1 here to
		// land on val once that increment runs.
		f.MCycle = val - 1
		return false, nil
	case AddrMinstret:
		f.MInstret = val - 1
		return false, nil
	case AddrMvendorid, AddrMarchid, AddrMimpid, AddrMhartid:
		return false, trap.New(trap.IllegalInstruction, uint64(addr))
	default:
		return false, trap.New(trap.IllegalInstruction, uint64(addr))
	}
}

// Delegate reports whether cause should be delivered to S-mode
// rather than M-mode: current privilege must be at most S, and the
// corresponding delegation bit must be set.
func (f *File) Delegate(isInterrupt bool, cause uint64) bool {
	if f.PRV > S {
		return false
	}
	if isInterrupt {
		return f.Mideleg&(1<<cause) != 0
	}
	return f.Medeleg&(1<<cause) != 0
}

// PendingInterrupt returns the highest-priority enabled-and-pending
// interrupt cause (bit index, no InterruptBit set), if any. M-mode
// interrupts are never masked
// from S/U; S-mode interrupts need sstatus.SIE when current privilege
// is S, and are always enabled when current privilege is U.
func (f *File) PendingInterrupt() (cause uint64, ok bool) {
	pending := f.Mip & f.Mie
	if pending == 0 {
		return 0, false
	}
	mEnabled := f.PRV < M || f.Mstatus&(1<<bitMIE) != 0
	sEnabled := f.PRV < S || (f.PRV == S && f.Mstatus&(1<<bitSIE) != 0)

	// Priority order per the privileged spec: MEI, MSI, MTI, SEI, SSI, STI.
	order := []uint{bitMEIP, bitMSIP, bitMTIP, bitSEIP, bitSSIP, bitSTIP}
	for _, bit := range order {
		if pending&(1<<bit) == 0 {
			continue
		}
		delegated := f.Mideleg&(1<<bit) != 0 && f.PRV <= S
		if delegated {
			if sEnabled {
				return uint64(bit), true
			}
			continue
		}
		if mEnabled {
			return uint64(bit), true
		}
	}
	return 0, false
}

// Deliver performs the trap-entry sequence for the
// given cause (exception cause, or interrupt bit index with
// isInterrupt set) and trap value, updating xcause/xepc/xtval,
// xPIE/xIE, xPP, PRV and pc. It returns the new pc so callers that
// keep pc outside this struct (none currently do; PC lives here) can
// observe it; File.PC is also updated directly.
func (f *File) Deliver(isInterrupt bool, cause uint64, tval uint64) uint64 {
	fullCause := cause
	if isInterrupt {
		fullCause |= trap.InterruptBit
	}
	toS := f.Delegate(isInterrupt, cause)
	curPRV := f.PRV
	if toS {
		f.Scause = fullCause
		f.Sepc = f.PC
		f.Stval = tval
		sie := f.Mstatus & (1 << bitSIE) != 0
		f.Mstatus &^= 1 << bitSPIE
		if sie {
			f.Mstatus |= 1 << bitSPIE
		}
		f.Mstatus &^= 1 << bitSIE
		f.Mstatus &^= 1 << bitSPP
		if curPRV == S {
			f.Mstatus |= 1 << bitSPP
		}
		f.PRV = S
		f.PC = f.Stvec
	} else {
		f.Mcause = fullCause
		f.Mepc = f.PC
		f.Mtval = tval
		mie := f.Mstatus & (1 << bitMIE) != 0
		f.Mstatus &^= 1 << bitMPIE
		if mie {
			f.Mstatus |= 1 << bitMPIE
		}
		f.Mstatus &^= 1 << bitMIE
		f.Mstatus &^= maskMPP
		f.Mstatus |= uint64(curPRV) << bitMPPLo
		f.PRV = M
		f.PC = f.Mtvec
	}
	f.ILRSC = NoReservation
	return f.PC
}

// MRET restores state per the MRET xRET unwind rule.
// It is only valid from M-mode; the decoder/executor is responsible
// for raising ILLEGAL_INSTRUCTION otherwise.
func (f *File) MRET() {
	mpie := f.Mstatus & (1 << bitMPIE) != 0
	f.Mstatus &^= 1 << bitMIE
	if mpie {
		f.Mstatus |= 1 << bitMIE
	}
	f.Mstatus |= 1 << bitMPIE
	mpp := f.MPP()
	f.Mstatus &^= maskMPP
	f.Mstatus |= uint64(U) << bitMPPLo
	f.PRV = mpp
	f.PC = f.Mepc
	f.ILRSC = NoReservation
}

// SRET restores state per the SRET xRET unwind rule. Traps (the
// caller checks PRV<S and mstatus.TSR beforehand) are not checked
// here; this method assumes the caller already validated legality.
func (f *File) SRET() {
	spie := f.Mstatus & (1 << bitSPIE) != 0
	f.Mstatus &^= 1 << bitSIE
	if spie {
		f.Mstatus |= 1 << bitSIE
	}
	f.Mstatus |= 1 << bitSPIE
	spp := uint8(0)
	if f.Mstatus&(1<<bitSPP) != 0 {
		spp = S
	}
	f.Mstatus &^= 1 << bitSPP
	f.PRV = spp
	f.PC = f.Sepc
	f.ILRSC = NoReservation
}
