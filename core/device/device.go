/*
 * rv64det - Memory-mapped device drivers
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

// Package device implements the memory-mapped peripherals: CLINT
// (timer/IPI), HTIF (host tether mailbox), and a read-only shadow
// state projection. Each is a small, independently testable driver
// dispatched by offset through a peek/read/write contract.
package device

import "encoding/binary"

// PageSize must match core/pma.PageSize; kept as an independent
// constant so this package does not need to import pma.
const PageSize = 4096

// Driver is the callback surface a PMA device entry dispatches
// through. size is the access width in bytes (1, 2, 4 or 8).
type Driver interface {
	Read(off uint64, size uint) (val uint64, ok bool)
	Write(off uint64, val uint64, size uint) (ok bool)
	Peek(pageIndex uint64, buf []byte) (ok bool, pristine bool)
	Name() string
}

// Base physical addresses, per the machine's fixed device map.
const (
	CLINTBase  = 0x0200_0000
	HTIFBase   = 0x4000_0000
	ShadowBase = 0x6000_0000
)

func putLEInPage(buf []byte, pageBase, off uint64, size uint, val uint64) bool {
	if off < pageBase || off+uint64(size) > pageBase+PageSize {
		return false
	}
	start := off - pageBase
	switch size {
	case 1:
		buf[start] = byte(val)
	case 2:
		binary.LittleEndian.PutUint16(buf[start:], uint16(val))
	case 4:
		binary.LittleEndian.PutUint32(buf[start:], uint32(val))
	case 8:
		binary.LittleEndian.PutUint64(buf[start:], val)
	}
	return true
}

func pageIsPristine(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
