/*
 * rv64det - Convert binary values to hex strings.
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

package hex

import "strings"

var hexMap = "0123456789abcdef"

// FormatWord64 appends a zero-padded 64-bit word, MSB first.
func FormatWord64(str *strings.Builder, word uint64) {
	shift := 60
	for range 16 {
		str.WriteByte(hexMap[(word>>shift)&0xf])
		shift -= 4
	}
}

// FormatWord32 appends a zero-padded 32-bit word, MSB first.
func FormatWord32(str *strings.Builder, word uint32) {
	shift := 28
	for range 8 {
		str.WriteByte(hexMap[(word>>shift)&0xf])
		shift -= 4
	}
}

// FormatBytes appends each byte of data as two hex digits, optionally
// space-separated.
func FormatBytes(str *strings.Builder, space bool, data []byte) {
	for _, by := range data {
		str.WriteByte(hexMap[(by>>4)&0xf])
		str.WriteByte(hexMap[by&0xf])
		if space {
			str.WriteByte(' ')
		}
	}
}

// Word64 renders a 64-bit value as "0x" followed by 16 hex digits.
func Word64(v uint64) string {
	var b strings.Builder
	b.WriteString("0x")
	FormatWord64(&b, v)
	return b.String()
}

// Word32 renders a 32-bit value as "0x" followed by 8 hex digits.
func Word32(v uint32) string {
	var b strings.Builder
	b.WriteString("0x")
	FormatWord32(&b, v)
	return b.String()
}

// Bytes renders a byte slice as a contiguous hex string, no separators.
func Bytes(data []byte) string {
	var b strings.Builder
	FormatBytes(&b, false, data)
	return b.String()
}
