// Copyright © 2024-2025 The smemseed Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package perfect recognises whole-read exact matches of both
// orientations through a hash table over fixed-length reference seeds,
// with an embedded balanced BST for hash collisions and a CSR-style
// overflow list for multi-location seeds.
package perfect

import (
	"encoding/binary"

	"github.com/etri/smemseed/smemseed/refseq"
)

// Seed-entry flags. The multi-location index occupies the upper 30
// bits of the flags word.
const (
	flagFwLess    = 0x1 // the seed at location sorts <= its reverse complement
	flagCollision = 0x2 // the entry's slot differs from its hash index

	multiLocShift = 2
	multiLocMax   = 1<<(32-multiLocShift) - 1
)

// NoEntry is the null child / invalid location sentinel.
const NoEntry = ^uint32(0)

// locMany switches the overflow list to the wide format when a seed has
// this many locations in either orientation.
const locMany = 256

// seedEntry is one slot of the seed table. Left and right are indices
// into the same table; the table owns every entry and the child fields
// are relations, not ownership edges.
type seedEntry struct {
	flags    uint32
	location uint32
	left     uint32
	right    uint32
}

func (e *seedEntry) valid() bool     { return e.location != NoEntry }
func (e *seedEntry) fwLess() bool    { return e.flags&flagFwLess != 0 }
func (e *seedEntry) collision() bool { return e.flags&flagCollision != 0 }
func (e *seedEntry) multiLoc() uint32 {
	return e.flags >> multiLocShift
}
func (e *seedEntry) setMultiLoc(m uint32) {
	e.flags = e.flags&(1<<multiLocShift-1) | m<<multiLocShift
}

// Table is the loaded perfect-match table. Immutable after load; the
// reference must be attached before lookups.
type Table struct {
	SeedLen      int
	SeqLen       uint32 // forward reference length
	NumLocEntry  uint32
	NumSeedEntry uint32
	NumUsed      uint32 // entries in use, collision nodes included
	NumKeys      uint32 // non-collision entries (distinct hash slots)

	// NumSeedLoaded < NumSeedEntry means the table was loaded
	// partially; probes beyond the prefix report absent
	NumSeedLoaded uint32

	locTable []uint32
	seeds    []seedEntry

	ref []byte // forward-strand 2-bit codes
}

// AttachRef wires the packed reference the table verifies against.
func (t *Table) AttachRef(ref *refseq.PackedRef) {
	t.ref = ref.Fw()
}

// entry returns the seed entry for an index, nil when the index is the
// sentinel or beyond the loaded prefix.
func (t *Table) entry(idx uint32) *seedEntry {
	if idx >= t.NumSeedLoaded {
		return nil
	}
	return &t.seeds[idx]
}

// ---------------------------------------------------------------------
// canonical 2-bit string comparison, eight bases at a time

const rcMask = 0x0303030303030303

// orderedFw8 loads eight forward bases, first base in the top byte.
func orderedFw8(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// orderedRc8 loads the eight bases ending at b[8] in reverse-complement
// order, first complemented base in the top byte.
func orderedRc8(b []byte) uint64 { return ^binary.LittleEndian.Uint64(b) & rcMask }

// seedCmp compares n bases of a against n bases of b, each read in its
// forward or reverse-complement orientation. For the rc orientation the
// slice holds the forward bytes and is consumed from the end.
func seedCmp(a []byte, aFw bool, b []byte, bFw bool, n int) int {
	ai, bi := 0, 0
	aj, bj := n, n

	for n >= 8 {
		var a8, b8 uint64
		if aFw {
			a8 = orderedFw8(a[ai:])
			ai += 8
		} else {
			aj -= 8
			a8 = orderedRc8(a[aj:])
		}
		if bFw {
			b8 = orderedFw8(b[bi:])
			bi += 8
		} else {
			bj -= 8
			b8 = orderedRc8(b[bj:])
		}
		if a8 != b8 {
			if a8 > b8 {
				return 1
			}
			return -1
		}
		n -= 8
	}

	for n > 0 {
		var a1, b1 byte
		if aFw {
			a1 = a[ai]
			ai++
		} else {
			aj--
			a1 = 3 - a[aj]
		}
		if bFw {
			b1 = b[bi]
			bi++
		} else {
			bj--
			b1 = 3 - b[bj]
		}
		if a1 != b1 {
			if a1 > b1 {
				return 1
			}
			return -1
		}
		n--
	}
	return 0
}

// compareFwRc reports whether the forward orientation of a seed sorts
// not-greater than its reverse complement. Comparing the forward
// prefix against the reverse complement of the suffix of the same
// length decides it.
func compareFwRc(seed []byte, n int) bool {
	half := (n + 1) / 2
	return seedCmp(seed[:half], true, seed[n-half:n], false, half) <= 0
}

// seedMatch reports 1 when b equals a forward, 2 when b is the reverse
// complement of a, 0 otherwise.
func seedMatch(a, b []byte, n int) int {
	if seedCmp(a[:n], true, b[:n], true, n) == 0 {
		return 1
	}
	if seedCmp(a[:n], true, b[:n], false, n) == 0 {
		return 2
	}
	return 0
}

// matchFurther verifies the extra bases of a query longer than the seed
// length against the reference at loc, forward or reverse-complement.
func (t *Table) matchFurther(loc uint32, seed []byte, isRev bool, qLen int) bool {
	extra := qLen - t.SeedLen
	if !isRev {
		if int64(loc)+int64(qLen) > int64(t.SeqLen) {
			return false
		}
		return seedCmp(t.ref[int64(loc)+int64(t.SeedLen):], true,
			seed[t.SeedLen:qLen], true, extra) == 0
	}
	if int64(loc) < int64(extra) {
		return false
	}
	return seedCmp(t.ref[int64(loc)-int64(extra):], true,
		seed[t.SeedLen:qLen], false, extra) == 0
}

// ---------------------------------------------------------------------
// hashing: XOR of 2-bit packed 32-base words, then the 64-bit
// finaliser of MurmurHash3. The constants are fixed by the on-disk
// format; changing them breaks interoperability with prebuilt tables.

func fmix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

// hashFw mixes the forward orientation of n bases.
func hashFw(seed []byte, n int) uint64 {
	var h uint64
	i := 0
	for n-i >= 32 {
		var s uint64
		for j := 0; j < 32; j++ {
			s = s<<2 | uint64(seed[i+j]&3)
		}
		h ^= s
		i += 32
	}
	if i < n {
		var s uint64
		for ; i < n; i++ {
			s = s<<2 | uint64(seed[i]&3)
		}
		h ^= s
	}
	return fmix64(h)
}

// hashRc mixes the reverse-complement orientation, consuming the
// forward bytes from the end with the same 32-base word structure.
func hashRc(seed []byte, n int) uint64 {
	var h uint64
	j := n
	for j >= 32 {
		var s uint64
		for k := 0; k < 32; k++ {
			s = s<<2 | uint64(3-seed[j-1-k]&3)
		}
		h ^= s
		j -= 32
	}
	if j > 0 {
		var s uint64
		for k := 0; k < j; k++ {
			s = s<<2 | uint64(3-seed[j-1-k]&3)
		}
		h ^= s
	}
	return fmix64(h)
}

// slotOf returns the hash slot of a seed in its canonical orientation.
func (t *Table) slotOf(seed []byte, fwLess bool) uint32 {
	var h uint64
	if fwLess {
		h = hashFw(seed, t.SeedLen)
	} else {
		h = hashRc(seed, t.SeedLen)
	}
	return uint32(h % uint64(t.NumSeedEntry))
}

// slotOfEntry recomputes the slot of an existing entry from the
// reference bytes at its location.
func (t *Table) slotOfEntry(e *seedEntry) uint32 {
	loc := int64(e.location)
	return t.slotOf(t.ref[loc:loc+int64(t.SeedLen)], e.fwLess())
}
