/*
 * rv64det - HTIF host tether device
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

import (
	"github.com/rcornwell/rv64det/internal/obslog"
	"github.com/rcornwell/rv64det/util/hex"
)

// HTIF sub-offsets.
const (
	HTIFLength = 0x1000

	offToHost   = 0x00
	offFromHost = 0x08

	// ToHostOffset/FromHostOffset locate the mailboxes inside a peeked
	// HTIF image, for snapshot restore.
	ToHostOffset   = offToHost
	FromHostOffset = offFromHost
)

// tohost/fromhost field layout, matching the usual RISC-V HTIF wire
// convention: device in the top byte, command in the next, payload in
// the low 48 bits.
const (
	tohostDeviceShift = 56
	tohostCmdShift    = 48
	tohostPayloadMask = (uint64(1) << 48) - 1
)

// Host is the host-facing side of the tether: the handful of effects
// a guest can trigger through HTIF commands.
type Host interface {
	Halt(payload uint64)
	ConsoleOut(b byte)
	RequestConsoleIn()
}

// HTIF is the host-tether mailbox device: a pair of 64-bit registers
// the guest uses to request halt, console output, and console input.
type HTIF struct {
	tohost   uint64
	fromhost uint64
	host     Host

	consoleGetchar   bool
	yieldManual      bool
	yieldAutomatic   bool
}

// HTIFConfig bundles the boolean knobs from the machine configuration
// that influence HTIF dispatch.
type HTIFConfig struct {
	ConsoleGetchar bool
	YieldManual    bool
	YieldAutomatic bool
}

func NewHTIF(host Host, cfg HTIFConfig) *HTIF {
	return &HTIF{
		host:           host,
		consoleGetchar: cfg.ConsoleGetchar,
		yieldManual:    cfg.YieldManual,
		yieldAutomatic: cfg.YieldAutomatic,
	}
}

func (h *HTIF) Name() string { return "htif" }

// Restore reinstates both mailbox registers when loading a snapshot,
// without re-running the command dispatch a guest write triggers.
func (h *HTIF) Restore(tohost, fromhost uint64) {
	h.tohost = tohost
	h.fromhost = fromhost
}

// PushConsoleByte makes b available to the guest's next fromhost read
// for device 1, cmd 0 (console getchar), if the configuration enables
// it. Called by the host when input arrives.
func (h *HTIF) PushConsoleByte(b byte) {
	if !h.consoleGetchar {
		return
	}
	h.fromhost = (1 << tohostDeviceShift) | (0 << tohostCmdShift) | uint64(b)
}

func (h *HTIF) dispatch() {
	device := byte(h.tohost >> tohostDeviceShift)
	cmd := byte(h.tohost >> tohostCmdShift)
	payload := h.tohost & tohostPayloadMask
	obslog.Tracef(obslog.TraceDevice, "htif: tohost=%s", hex.Word64(h.tohost))

	switch {
	case device == 0 && cmd == 0:
		if payload&1 != 0 {
			h.host.Halt(payload)
		}
	case device == 1 && cmd == 1:
		h.host.ConsoleOut(byte(payload))
		h.fromhost = h.tohost
	case device == 1 && cmd == 0:
		h.host.RequestConsoleIn()
	}
}

func (h *HTIF) Read(off uint64, size uint) (uint64, bool) {
	if size != 8 && size != 4 {
		return 0, false
	}
	switch off &^ 4 {
	case offToHost:
		return readHalf(h.tohost, off, size), true
	case offFromHost:
		return readHalf(h.fromhost, off, size), true
	default:
		return 0, false
	}
}

func readHalf(reg uint64, off uint64, size uint) uint64 {
	if size == 8 {
		return reg
	}
	if off%8 == 4 {
		return reg >> 32
	}
	return reg & 0xffffffff
}

func (h *HTIF) Write(off uint64, val uint64, size uint) bool {
	if size != 8 && size != 4 {
		return false
	}
	switch off &^ 4 {
	case offToHost:
		h.tohost = writeHalf(h.tohost, off, size, val)
		if size == 8 || off%8 == 4 {
			h.dispatch()
		}
		return true
	case offFromHost:
		h.fromhost = writeHalf(h.fromhost, off, size, val)
		return true
	default:
		return false
	}
}

func writeHalf(reg uint64, off uint64, size uint, val uint64) uint64 {
	if size == 8 {
		return val
	}
	if off%8 == 4 {
		return (reg & 0xffffffff) | (val << 32)
	}
	return (reg &^ 0xffffffff) | (val & 0xffffffff)
}

func (h *HTIF) Peek(pageIndex uint64, buf []byte) (bool, bool) {
	for i := range buf {
		buf[i] = 0
	}
	base := pageIndex * PageSize
	putLEInPage(buf, base, offToHost, 8, h.tohost)
	putLEInPage(buf, base, offFromHost, 8, h.fromhost)
	return true, pageIsPristine(buf)
}
