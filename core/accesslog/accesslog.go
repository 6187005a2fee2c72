/*
 * rv64det - Access log recorder and replay verifier
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

// Package accesslog records the read/write transcript of a single
// interpreted step and replays one without a live machine to
// recompute a root hash. It is the data side of the logging/replay
// duality; the
// producing side (package state's Logging access) and the verifying
// side (Verify, below) both speak this package's Entry/Proof shapes.
package accesslog

import (
	"fmt"

	"github.com/rcornwell/rv64det/core/hash"
)

// Kind distinguishes a read entry from a write entry.
type Kind int

const (
	KindRead Kind = iota
	KindWrite
)

// Proof is one Merkle inclusion proof; siblings are ordered
// leaf-adjacent first.
type Proof struct {
	Log2RootSize   uint
	Log2TargetSize uint
	TargetAddress  uint64
	RootHash       hash.Digest
	TargetHash     hash.Digest
	Siblings       []hash.Digest
}

// Entry is one logged access.
type Entry struct {
	Type     Kind
	Address  uint64
	Log2Size uint

	// ReadBytes is the value observed before the access: the loaded
	// value for a read, the prior value for a write (recorded so the
	// replay side can prove the pre-image without holding state).
	ReadBytes []byte
	// WrittenBytes is set only for writes: the new value.
	WrittenBytes []byte

	Proof *Proof
}

// TypeDescriptor records which optional features a Log carries.
type TypeDescriptor struct {
	HasProofs      bool
	HasAnnotations bool
}

// Log is the full transcript of one Step call.
type Log struct {
	Desc    TypeDescriptor
	Entries []Entry
}

// New returns an empty log of the given descriptor.
func New(desc TypeDescriptor) *Log {
	return &Log{Desc: desc}
}

// AppendRead records a read access.
func (l *Log) AppendRead(addr uint64, log2Size uint, value []byte, proof *Proof) {
	l.Entries = append(l.Entries, Entry{
		Type:      KindRead,
		Address:   addr,
		Log2Size:  log2Size,
		ReadBytes: append([]byte(nil), value...),
		Proof:     proof,
	})
}

// AppendWrite records a write access: before is the prior value,
// after is the value committed.
func (l *Log) AppendWrite(addr uint64, log2Size uint, before, after []byte, proof *Proof) {
	l.Entries = append(l.Entries, Entry{
		Type:         KindWrite,
		Address:      addr,
		Log2Size:     log2Size,
		ReadBytes:    append([]byte(nil), before...),
		WrittenBytes: append([]byte(nil), after...),
		Proof:        proof,
	})
}

// recomputeRoot climbs from a proof's target hash to the implied
// root, given the target's address/size and the sibling chain
// (leaf-adjacent first, matching how package pma emits them).
func recomputeRoot(target hash.Digest, addr uint64, log2Size uint, siblings []hash.Digest) hash.Digest {
	cur := target
	size := log2Size
	for _, sib := range siblings {
		if (addr>>size)&1 == 0 {
			cur = hash.Node(cur, sib)
		} else {
			cur = hash.Node(sib, cur)
		}
		size++
	}
	return cur
}

// Verify replays log against preRoot and returns the resulting root,
// failing if any entry's proof does not chain from preRoot (for the
// first touched leaf) through the log's sequence of writes to
// postRoot. This is the memoryless verifier: it never needs the full
// machine state, only the log and the claimed pre/post roots.
func Verify(log *Log, preRoot, postRoot hash.Digest) error {
	if !log.Desc.HasProofs {
		return fmt.Errorf("accesslog: verify requires a log with proofs")
	}
	root := preRoot
	for i, e := range log.Entries {
		if e.Proof == nil {
			return fmt.Errorf("accesslog: entry %d has no proof", i)
		}
		expectedRoot := recomputeRoot(e.Proof.TargetHash, e.Address, e.Log2Size, e.Proof.Siblings)
		if expectedRoot != root {
			return fmt.Errorf("accesslog: entry %d proof does not chain from current root", i)
		}
		if e.Log2Size == hash.LogWordSize && hash.Sum(e.ReadBytes) != e.Proof.TargetHash {
			return fmt.Errorf("accesslog: entry %d read_bytes does not hash to target_hash", i)
		}
		if e.Type == KindWrite {
			newTarget := hash.Sum(e.WrittenBytes)
			root = recomputeRoot(newTarget, e.Address, e.Log2Size, e.Proof.Siblings)
		}
	}
	if root != postRoot {
		return fmt.Errorf("accesslog: replayed root does not match claimed post-root")
	}
	return nil
}
