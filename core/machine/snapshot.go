/*
 * rv64det - Snapshot save/restore
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

package machine

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rcornwell/rv64det/core/config"
	"github.com/rcornwell/rv64det/core/device"
	"github.com/rcornwell/rv64det/core/pma"
)

// Save writes dir/config, dir/hash and one dir/<start-hex>-<length-hex>.bin
// per PMA entry. Memory-backed entries dump their backing
// bytes; device-backed entries (CLINT, HTIF, shadow state) dump their peeked
// projection, which is what lets Load put the register file and device
// registers back and still match the saved root hash.
func (m *Machine) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newErr(RuntimeError, "snapshot: creating %q: %v", dir, err)
	}

	cfgBytes, err := yaml.Marshal(m.cfg)
	if err != nil {
		return newErr(RuntimeError, "snapshot: marshaling config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config"), cfgBytes, 0o644); err != nil {
		return newErr(RuntimeError, "snapshot: writing config: %v", err)
	}

	root := m.pma.RootHash()
	if err := os.WriteFile(filepath.Join(dir, "hash"), root[:], 0o644); err != nil {
		return newErr(RuntimeError, "snapshot: writing hash: %v", err)
	}

	for _, e := range m.pma.Entries() {
		var data []byte
		switch e.Kind {
		case pma.KindMemory:
			data = e.HostMemory()
		case pma.KindDevice:
			data = peekedBytes(e)
		default:
			continue
		}
		name := fmt.Sprintf("%x-%x.bin", e.Start, e.Length)
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return newErr(RuntimeError, "snapshot: writing %s: %v", name, err)
		}
	}
	return nil
}

// peekedBytes materializes a device entry's full projected state, one
// Peek per page.
func peekedBytes(e *pma.Entry) []byte {
	buf := make([]byte, e.Length)
	page := make([]byte, pma.PageSize)
	for idx := uint64(0); idx < e.Length/pma.PageSize; idx++ {
		if ok, _ := e.DevicePeek(idx, page); !ok {
			continue
		}
		copy(buf[idx*pma.PageSize:], page)
	}
	return buf
}

// Load rebuilds a Machine from a directory written by Save, verifying
// that the restored root hash matches the one recorded at save time.
func Load(dir string) (*Machine, error) {
	cfgBytes, err := os.ReadFile(filepath.Join(dir, "config"))
	if err != nil {
		return nil, newErr(RuntimeError, "snapshot: reading config: %v", err)
	}
	cfg, err := config.Load(cfgBytes)
	if err != nil {
		return nil, newErr(InvalidArgument, "snapshot: %v", err)
	}

	wantHash, err := os.ReadFile(filepath.Join(dir, "hash"))
	if err != nil {
		return nil, newErr(RuntimeError, "snapshot: reading hash: %v", err)
	}

	m, err := New(cfg)
	if err != nil {
		return nil, err
	}

	for _, e := range m.pma.Entries() {
		name := fmt.Sprintf("%x-%x.bin", e.Start, e.Length)
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, newErr(RuntimeError, "snapshot: reading %s: %v", name, err)
		}
		if len(data) != int(e.Length) {
			return nil, newErr(InvalidArgument, "snapshot: %s has wrong length", name)
		}
		switch e.Kind {
		case pma.KindMemory:
			copy(e.HostMemory(), data)
			e.MarkAllDirty()
		case pma.KindDevice:
			if err := m.restoreDevice(e.Start, data); err != nil {
				return nil, err
			}
		}
	}

	gotHash := m.pma.RootHash()
	if string(gotHash[:]) != string(wantHash) {
		return nil, newErr(LogicError, "snapshot: restored root hash does not match recorded hash")
	}
	return m, nil
}

// restoreDevice reinstates one device entry's state from its saved
// peeked image. The shadow image carries the whole register file; the
// CLINT image carries mtimecmp (msip/mtime are derived from mip and
// mcycle, which the shadow restores); the HTIF image carries the two
// mailbox registers.
func (m *Machine) restoreDevice(start uint64, data []byte) error {
	switch start {
	case device.ShadowBase:
		words := make([]uint64, len(data)/8)
		for i := range words {
			words[i] = binary.LittleEndian.Uint64(data[i*8:])
		}
		return m.restoreShadow(words)
	case device.CLINTBase:
		m.clint.RestoreMTimeCmp(binary.LittleEndian.Uint64(data[device.MTimeCmpOffset:]))
		return nil
	case device.HTIFBase:
		m.htif.Restore(
			binary.LittleEndian.Uint64(data[device.ToHostOffset:]),
			binary.LittleEndian.Uint64(data[device.FromHostOffset:]))
		return nil
	default:
		return newErr(InvalidArgument, "snapshot: unknown device region at %#x", start)
	}
}
