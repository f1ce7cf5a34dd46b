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

// Package accel precomputes short forward extensions of the
// bidirectional FM-index search. The all-SMEM table collapses an 11-bp
// extension into one indexed read; the last-SMEM table collapses a
// 13-bp extension for the seed-only strategy.
package accel

import (
	"github.com/etri/smemseed/smemseed/bwt"
)

// Table widths. The shipped defaults index 11 and 13 bases.
const (
	AllSmemBp  = 11
	LastSmemBp = 13
)

// NumEntries returns the number of table entries for a width.
func NumEntries(bp int) int64 { return 1 << (2 * bp) }

// AllSmemStep stores the deltas to rebuild the interval after one
// forward extension:
//
//	k = prev_k + K32
//	l = C[3-a] + L32   (a is the base being appended)
//	s = S32
type AllSmemStep struct {
	K32, L32, S32 uint32
}

// AllSmemEntry is one all-SMEM table entry. LastAvail is the last
// position with a positive interval size; List[i-1] holds the deltas of
// the extension by the base at position i.
type AllSmemEntry struct {
	LastAvail uint32
	List      [AllSmemBp - 1]AllSmemStep
}

// AllSmemTable indexes AllSmemEntry by the 22-bit key of the first 11
// bases of a query suffix, big-endian per base.
type AllSmemTable struct {
	Entries []AllSmemEntry
}

// Entry returns the entry for a key.
func (t *AllSmemTable) Entry(key uint64) *AllSmemEntry { return &t.Entries[key] }

// Loaded reports whether a key lies within the loaded prefix; tables
// may be partially loaded on memory-limited hosts.
func (t *AllSmemTable) Loaded(key uint64) bool { return key < uint64(len(t.Entries)) }

// LastSmemEntry is the terminal state of a forward extension of up to
// LastSmemBp bases: the interval reached and the number of bases
// actually consumed.
type LastSmemEntry struct {
	Bp      uint8
	K, L, S int64
}

// LastSmemTable stores raw 16-byte entries indexed by the 26-bit key of
// the first 13 bases.
type LastSmemTable struct {
	Data []byte // lastSmemEntrySize bytes per entry
}

// Entry decodes the entry for a key.
func (t *LastSmemTable) Entry(key uint64) LastSmemEntry {
	return decodeLastSmem(t.Data[key*lastSmemEntrySize:])
}

// Loaded reports whether a key lies within the loaded prefix.
func (t *LastSmemTable) Loaded(key uint64) bool {
	return (key+1)*lastSmemEntrySize <= uint64(len(t.Data))
}

// SeqKey composes the table key from 2-bit coded bases, first base in
// the top bits. ok is false when the window contains a base > 3; n is
// the count of clean bases consumed (the key is still usable up to n).
func SeqKey(q []byte, bp int) (key uint64, n int, ok bool) {
	for n = 0; n < bp; n++ {
		c := q[n]
		if c > 3 {
			return key, n, false
		}
		key |= uint64(c) << uint((bp-1-n)*2)
	}
	return key, n, true
}

// seqNext advances seq to the next base-4 sequence, most significant
// digit first. It returns false after the last sequence.
func seqNext(seq []byte) bool {
	for i := len(seq) - 1; i >= 0; i-- {
		if seq[i] < 3 {
			seq[i]++
			for i++; i < len(seq); i++ {
				seq[i] = 0
			}
			return true
		}
	}
	return false
}

// buildAllSmemEntry simulates forward extension of one sequence.
// Building the table doubles as a correctness check of the engine: the
// stored deltas must reproduce what the per-base loop computes.
func buildAllSmemEntry(idx *bwt.Index, seq []byte, ent *AllSmemEntry) {
	*ent = AllSmemEntry{}

	a := seq[0]
	smem := idx.SingleBase(a)

	for i := 1; i < len(seq); i++ {
		a = seq[i]
		next := idx.ForwardExt(smem, a)

		ent.List[i-1] = AllSmemStep{
			K32: uint32(next.K - smem.K),
			L32: uint32(next.L - idx.C[3-a]),
			S32: uint32(next.S),
		}

		if next.S <= 0 {
			break
		}
		ent.LastAvail = uint32(i)
		smem = next
	}
}

// buildLastSmemEntry simulates forward extension as far as possible and
// records only the terminal interval.
func buildLastSmemEntry(idx *bwt.Index, seq []byte) LastSmemEntry {
	a := seq[0]
	smem := idx.SingleBase(a)

	i := 1
	for ; i < len(seq); i++ {
		next := idx.ForwardExt(smem, seq[i])
		if next.S == 0 {
			break
		}
		smem = next
	}

	return LastSmemEntry{Bp: uint8(i), K: smem.K, L: smem.L, S: smem.S}
}

// BuildAllSmemTable enumerates all 4^AllSmemBp sequences. The progress
// callback, if non-nil, is invoked every 2^20 entries.
func BuildAllSmemTable(idx *bwt.Index, progress func(done int64)) *AllSmemTable {
	num := NumEntries(AllSmemBp)
	t := &AllSmemTable{Entries: make([]AllSmemEntry, num)}

	seq := make([]byte, AllSmemBp)
	var i int64
	buildAllSmemEntry(idx, seq, &t.Entries[i])
	i++
	for seqNext(seq) {
		buildAllSmemEntry(idx, seq, &t.Entries[i])
		i++
		if progress != nil && i&0xfffff == 0 {
			progress(i)
		}
	}
	return t
}

// BuildLastSmemTable enumerates all 4^LastSmemBp sequences into the raw
// entry array.
func BuildLastSmemTable(idx *bwt.Index, progress func(done int64)) *LastSmemTable {
	return BuildLastSmemTablePartial(idx, NumEntries(LastSmemBp), progress)
}

// BuildLastSmemTablePartial builds only the first num entries, the
// prefix a memory-scaled deployment would load.
func BuildLastSmemTablePartial(idx *bwt.Index, num int64, progress func(done int64)) *LastSmemTable {
	t := &LastSmemTable{Data: make([]byte, num*lastSmemEntrySize)}

	seq := make([]byte, LastSmemBp)
	var i int64
	encodeLastSmem(t.Data[0:], buildLastSmemEntry(idx, seq))
	i++
	for i < num && seqNext(seq) {
		encodeLastSmem(t.Data[i*lastSmemEntrySize:], buildLastSmemEntry(idx, seq))
		i++
		if progress != nil && i&0xffffff == 0 {
			progress(i)
		}
	}
	return t
}

// ReplayAll re-runs the stored deltas of one all-SMEM entry over a clean
// query window and returns the interval after the extension at each
// position, exactly as the per-base loop would compute it. Used by the
// equivalence tests.
func (t *AllSmemTable) ReplayAll(idx *bwt.Index, q []byte) []bwt.Interval {
	key, _, ok := SeqKey(q, AllSmemBp)
	if !ok {
		return nil
	}
	ent := t.Entry(key)

	out := make([]bwt.Interval, 0, AllSmemBp-1)
	smem := idx.SingleBase(q[0])
	for i := 1; i <= int(ent.LastAvail); i++ {
		a := q[i]
		step := ent.List[i-1]
		smem = bwt.Interval{
			K: smem.K + int64(step.K32),
			L: idx.C[3-a] + int64(step.L32),
			S: int64(step.S32),
		}
		out = append(out, smem)
	}
	return out
}
