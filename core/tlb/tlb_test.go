/*
 * rv64det - Software translation caches
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

package tlb

import "testing"

func TestCacheMissOnEmpty(t *testing.T) {
	c := New()
	if _, _, ok := c.Lookup(0x1000); ok {
		t.Fatalf("Lookup on empty cache should miss")
	}
}

func TestCacheInsertThenHit(t *testing.T) {
	c := New()
	c.Insert(0x8000_1234, 0x9000_0000, 3)
	paddr, idx, ok := c.Lookup(0x8000_1abc)
	if !ok {
		t.Fatalf("expected hit for vaddr in the same page")
	}
	if paddr != 0x9000_0000 || idx != 3 {
		t.Fatalf("Lookup = (%#x, %d), want (%#x, 3)", paddr, idx, uint64(0x9000_0000))
	}
}

func TestCacheMissOnDifferentPage(t *testing.T) {
	c := New()
	c.Insert(0x8000_0000, 0x9000_0000, 0)
	if _, _, ok := c.Lookup(0x8000_1000); ok {
		t.Fatalf("Lookup on a different page should miss even if it aliases the same slot")
	}
}

func TestFlushAll(t *testing.T) {
	c := New()
	c.Insert(0x1000, 0x2000, 0)
	c.FlushAll()
	if _, _, ok := c.Lookup(0x1000); ok {
		t.Fatalf("FlushAll should empty every slot")
	}
}

func TestFlushVAddr(t *testing.T) {
	c := New()
	c.Insert(0x1000, 0x2000, 0)
	c.Insert(0x3000, 0x4000, 1)
	c.FlushVAddr(0x1000)
	if _, _, ok := c.Lookup(0x1000); ok {
		t.Fatalf("FlushVAddr should evict the matching slot")
	}
	if _, _, ok := c.Lookup(0x3000); !ok {
		t.Fatalf("FlushVAddr should not evict unrelated slots")
	}
}

func TestFlushPhysicalRange(t *testing.T) {
	c := New()
	c.Insert(0x1000, 0x8000_0000, 0)
	c.Insert(0x2000, 0x9000_0000, 1)
	c.FlushPhysicalRange(0x8000_0000, 0x8000_1000)
	if _, _, ok := c.Lookup(0x1000); ok {
		t.Fatalf("FlushPhysicalRange should evict the overlapping slot")
	}
	if _, _, ok := c.Lookup(0x2000); !ok {
		t.Fatalf("FlushPhysicalRange should not evict a non-overlapping slot")
	}
}

func TestSetNotifyWriteOnlyFlushesWrite(t *testing.T) {
	s := NewSet()
	s.Code.Insert(0x1000, 0x8000_0000, 0)
	s.Read.Insert(0x1000, 0x8000_0000, 0)
	s.Write.Insert(0x1000, 0x8000_0000, 0)

	s.NotifyWrite(0x8000_0000, PageSize)

	if _, _, ok := s.Write.Lookup(0x1000); ok {
		t.Fatalf("NotifyWrite should evict the write cache")
	}
	if _, _, ok := s.Code.Lookup(0x1000); !ok {
		t.Fatalf("NotifyWrite should not evict the code cache")
	}
	if _, _, ok := s.Read.Lookup(0x1000); !ok {
		t.Fatalf("NotifyWrite should not evict the read cache")
	}
}

func TestSetFlushVAddrHitsAllThreeCaches(t *testing.T) {
	s := NewSet()
	s.Code.Insert(0x1000, 0x2000, 0)
	s.Read.Insert(0x1000, 0x2000, 0)
	s.Write.Insert(0x1000, 0x2000, 0)

	s.FlushVAddr(0x1000)

	if _, _, ok := s.Code.Lookup(0x1000); ok {
		t.Fatalf("FlushVAddr should evict code cache")
	}
	if _, _, ok := s.Read.Lookup(0x1000); ok {
		t.Fatalf("FlushVAddr should evict read cache")
	}
	if _, _, ok := s.Write.Lookup(0x1000); ok {
		t.Fatalf("FlushVAddr should evict write cache")
	}
}
