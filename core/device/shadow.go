/*
 * rv64det - Shadow state device
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

// ShadowLength is the fixed size reserved for the shadow-state
// projection; comfortably larger than the register file so every
// canonical offset lands on a unique 8-byte slot.
const ShadowLength = 4096

// ShadowState is a read-only memory-mapped projection of every
// architectural register, at a fixed offset per register, so a
// Merkle proof of "the value of register N" is well defined without
// any special-casing in the proof machinery: it is just a proof of a
// memory word, like any other.
type ShadowState struct {
	regs []func() uint64
}

// NewShadowState builds the projection from regs, a dense slice of
// accessors where regs[i] backs the 8-byte word at offset i*8. The
// caller (core/machine) owns the canonical ordering.
func NewShadowState(regs []func() uint64) *ShadowState {
	return &ShadowState{regs: regs}
}

func (s *ShadowState) Name() string { return "shadow" }

func (s *ShadowState) Read(off uint64, size uint) (uint64, bool) {
	if size != 8 || off%8 != 0 {
		return 0, false
	}
	idx := off / 8
	if int(idx) >= len(s.regs) {
		return 0, false
	}
	return s.regs[idx](), true
}

// Write always fails: the shadow state is a read-only projection of
// the real register file, which is mutated only through the
// state-access trait.
func (s *ShadowState) Write(uint64, uint64, uint) bool {
	return false
}

func (s *ShadowState) Peek(pageIndex uint64, buf []byte) (bool, bool) {
	for i := range buf {
		buf[i] = 0
	}
	base := pageIndex * PageSize
	for i, fn := range s.regs {
		off := uint64(i) * 8
		if off < base || off+8 > base+PageSize {
			continue
		}
		putLEInPage(buf, base, off, 8, fn())
	}
	return true, pageIsPristine(buf)
}
