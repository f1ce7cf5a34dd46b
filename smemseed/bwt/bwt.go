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

// Package bwt implements the block-checkpointed Burrows-Wheeler index:
// O(1) rank queries over one-hot 64-wide checkpoint blocks, bidirectional
// interval extension, and a two-level sampled suffix array recovered by
// FM-walking.
package bwt

import "math/bits"

// CpBlockSize is the number of BWT characters per checkpoint block.
const CpBlockSize = 64

const (
	cpShift = 6
	cpMask  = CpBlockSize - 1
)

// DefaultSparsity is the default suffix-array sampling interval.
const DefaultSparsity = 8

// CpOcc is one checkpoint block: per-base occurrence counts of the BWT
// strictly before the block, and per-base one-hot bitstrings with the
// block's first character at the most significant bit.
type CpOcc struct {
	Count  [4]int64
	OneHot [4]uint64
}

// Interval is a bidirectional BWT interval: K is the lower bound on the
// forward index, L the lower bound of the reverse-complement interval,
// S the size. S == 0 means no occurrence.
type Interval struct {
	K, L, S int64
}

// Index is the loaded FM-index: cumulative counts, checkpoint blocks and
// the sampled suffix array. It is immutable after construction and safe
// for concurrent readers.
type Index struct {
	RefLen      int64    // n+1, including the sentinel
	C           [5]int64 // cumulative counts, sentinel included (C[0] == 1)
	CpOcc       []CpOcc
	SaHi        []uint8  // high 8 bits of sampled SA entries
	SaLo        []uint32 // low 32 bits of sampled SA entries
	SentinelIdx int64    // BWT position of the sentinel

	Sparsity int64 // sampling interval, power of two
	saShift  uint
	saMask   int64

	// oneHotMask[r] has the top r bits set
	oneHotMask [CpBlockSize + 1]uint64
}

// initMasks fills the top-bit mask table and the sampling shift.
func (idx *Index) initMasks() {
	idx.oneHotMask[0] = 0
	base := uint64(1) << 63
	idx.oneHotMask[1] = base
	for i := 2; i <= CpBlockSize; i++ {
		idx.oneHotMask[i] = idx.oneHotMask[i-1]>>1 | base
	}

	idx.saShift = uint(bits.TrailingZeros64(uint64(idx.Sparsity)))
	idx.saMask = idx.Sparsity - 1
}

// Occ returns the number of occurrences of base c in BWT[0..p).
func (idx *Index) Occ(c uint8, p int64) int64 {
	blk := &idx.CpOcc[p>>cpShift]
	return blk.Count[c] + int64(bits.OnesCount64(blk.OneHot[c]&idx.oneHotMask[p&cpMask]))
}

// BwtChar returns the BWT character at position p, 4 for the sentinel.
func (idx *Index) BwtChar(p int64) uint8 {
	oneHot := &idx.CpOcc[p>>cpShift].OneHot
	y := uint(CpBlockSize - 1 - (p & cpMask))
	switch {
	case oneHot[0]>>y&1 == 1:
		return 0
	case oneHot[1]>>y&1 == 1:
		return 1
	case oneHot[2]>>y&1 == 1:
		return 2
	case oneHot[3]>>y&1 == 1:
		return 3
	}
	return 4
}

// SingleBase returns the interval of all suffixes starting with base a.
func (idx *Index) SingleBase(a uint8) Interval {
	return Interval{
		K: idx.C[a],
		L: idx.C[3-a],
		S: idx.C[a+1] - idx.C[a],
	}
}

// BackwardExt prepends base a to every occurrence of the interval.
// The reverse-strand lower bounds are rebuilt in T,G,C,A order by prefix
// sums, with the sentinel accounted for when it falls inside [K, K+S).
func (idx *Index) BackwardExt(smem Interval, a uint8) Interval {
	var k, l, s [4]int64

	sp := smem.K
	ep := smem.K + smem.S
	for b := uint8(0); b < 4; b++ {
		occSp := idx.Occ(b, sp)
		occEp := idx.Occ(b, ep)
		k[b] = idx.C[b] + occSp
		s[b] = occEp - occSp
	}

	var sentinelOffset int64
	if smem.K <= idx.SentinelIdx && smem.K+smem.S > idx.SentinelIdx {
		sentinelOffset = 1
	}
	l[3] = smem.L + sentinelOffset
	l[2] = l[3] + s[3]
	l[1] = l[2] + s[2]
	l[0] = l[1] + s[1]

	return Interval{K: k[a], L: l[a], S: s[a]}
}

// ForwardExt appends base a: backward extension of the complement on the
// swapped interval.
func (idx *Index) ForwardExt(smem Interval, a uint8) Interval {
	smem.K, smem.L = smem.L, smem.K
	next := idx.BackwardExt(smem, 3-a)
	next.K, next.L = next.L, next.K
	return next
}

// Count returns the interval matching the 2-bit coded pattern, searching
// backwards. A base > 3 collapses the interval.
func (idx *Index) Count(pattern []byte) Interval {
	if len(pattern) == 0 {
		return Interval{}
	}
	a := pattern[len(pattern)-1]
	if a > 3 {
		return Interval{}
	}
	smem := idx.SingleBase(a)
	for i := len(pattern) - 2; i >= 0 && smem.S > 0; i-- {
		if pattern[i] > 3 {
			return Interval{}
		}
		smem = idx.BackwardExt(smem, pattern[i])
	}
	return smem
}

// GetSAEntry resolves the text position of BWT row pos. Unsampled rows
// are recovered by LF-stepping to the next sampled row; the sentinel
// terminates a walk at text position offset.
func (idx *Index) GetSAEntry(pos int64) int64 {
	if pos&idx.saMask == 0 {
		i := pos >> idx.saShift
		return int64(idx.SaHi[i])<<32 | int64(idx.SaLo[i])
	}

	var offset int64
	sp := pos
	for {
		b := idx.BwtChar(sp)
		if b == 4 {
			return offset
		}
		sp = idx.C[b] + idx.Occ(b, sp)
		offset++
		if sp&idx.saMask == 0 {
			break
		}
	}
	i := sp >> idx.saShift
	return (int64(idx.SaHi[i])<<32 | int64(idx.SaLo[i])) + offset
}

// Locate resolves at most maxOcc positions of the interval, sampling
// evenly across it when S exceeds maxOcc.
func (idx *Index) Locate(smem Interval, maxOcc int) []int64 {
	if smem.S <= 0 || maxOcc <= 0 {
		return nil
	}
	step := int64(1)
	if smem.S > int64(maxOcc) {
		step = smem.S / int64(maxOcc)
	}
	coords := make([]int64, 0, maxOcc)
	hi := smem.K + smem.S
	for j := smem.K; j < hi && len(coords) < maxOcc; j += step {
		coords = append(coords, idx.GetSAEntry(j))
	}
	return coords
}
