/*
 * rv64det - Machine configuration
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

// Package config decodes the machine's YAML configuration (RAM/ROM
// sizing and optional images, flash drives, the CLINT/HTIF device
// knobs) and maps flash-drive images into host memory. The
// configuration is naturally tree-shaped (nested device and memory
// records), so it is expressed as Go structs decoded with
// gopkg.in/yaml.v3 rather than a bespoke line-oriented grammar.
package config

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

// Fixed physical layout.
const (
	RAMBase  = 0x8000_0000
	ROMBase  = 0x0000_1000
	ROMLength = 0x0001_0000
)

// RAM describes the machine's single RAM region.
type RAM struct {
	Length uint64 `yaml:"length"`
	Image  string `yaml:"image,omitempty"`
}

// ROM describes the machine's single ROM region. Image is accepted
// but machine.New does not load it: the region always starts
// zero-filled and the embedding driver supplies boot code before the
// first run.
type ROM struct {
	Image string `yaml:"image,omitempty"`
}

// FlashDrive is one `{start, length, shared, image_path}` entry,
// mapped via host mmap rather than read into a Go-managed byte
// slice.
type FlashDrive struct {
	Start  uint64 `yaml:"start"`
	Length uint64 `yaml:"length"`
	Shared bool   `yaml:"shared"`
	Image  string `yaml:"image"`

	data []byte
}

// Open mmaps the drive's backing image, validating that the file size
// matches the configured Length. The mapping is PROT_READ|PROT_WRITE,
// MAP_SHARED when Shared is set (writes land in the file) or
// MAP_PRIVATE otherwise (copy-on-write, discarded on Close).
func (f *FlashDrive) Open() error {
	file, err := os.OpenFile(f.Image, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("config: opening flash image %q: %w", f.Image, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("config: stat flash image %q: %w", f.Image, err)
	}
	if uint64(info.Size()) != f.Length {
		return fmt.Errorf("config: flash image %q is %d bytes, configured length is %d",
			f.Image, info.Size(), f.Length)
	}
	if f.Start%4096 != 0 {
		return fmt.Errorf("config: flash drive start %#x is not page-aligned", f.Start)
	}

	flags := unix.MAP_PRIVATE
	if f.Shared {
		flags = unix.MAP_SHARED
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(f.Length), unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return fmt.Errorf("config: mmap flash image %q: %w", f.Image, err)
	}
	f.data = data
	return nil
}

// Data returns the mmap'd backing bytes; valid only after Open
// succeeds.
func (f *FlashDrive) Data() []byte { return f.data }

// Close unmaps the drive's backing image.
func (f *FlashDrive) Close() error {
	if f.data == nil {
		return nil
	}
	err := unix.Munmap(f.data)
	f.data = nil
	return err
}

// HTIF bundles the boolean knobs controlling the host-tether
// device.
type HTIF struct {
	ConsoleGetchar bool `yaml:"console_getchar"`
	YieldManual    bool `yaml:"yield_manual"`
	YieldAutomatic bool `yaml:"yield_automatic"`
}

// Concurrency is an advisory parallelism hint with no observable
// effect on machine state; carried through only so a host driver can
// size a worker pool for Merkle-tree maintenance if it wants to.
type Concurrency struct {
	UpdateMerkleTree int `yaml:"update_merkle_tree"`
}

// Config is the full machine configuration, decoded from YAML.
type Config struct {
	RAM         RAM          `yaml:"ram"`
	ROM         ROM          `yaml:"rom"`
	Flash       []FlashDrive `yaml:"flash"`
	HTIF        HTIF         `yaml:"htif"`
	Concurrency Concurrency  `yaml:"concurrency"`
}

// Load decodes a Config from YAML bytes.
func Load(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}
	if c.RAM.Length == 0 {
		return nil, fmt.Errorf("config: ram.length must be non-zero")
	}
	for i := range c.Flash {
		if c.Flash[i].Start < RAMBase+c.RAM.Length {
			return nil, fmt.Errorf("config: flash drive %d at %#x overlaps RAM", i, c.Flash[i].Start)
		}
	}
	return &c, nil
}

// LoadFile reads and decodes a Config from a YAML file on disk.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	return Load(data)
}
