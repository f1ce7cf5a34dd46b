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

package bwt

import (
	"errors"

	"github.com/etri/smemseed/smemseed/refseq"
	"github.com/etri/smemseed/smemseed/sais"
)

// dummyChar pads checkpoint blocks past the end of the BWT. It never
// matches a base and carries no one-hot bit.
const dummyChar = 6

// ErrBadSparsity means the sampling interval is not a power of two >= 2.
var ErrBadSparsity = errors.New("bwt: SA sparsity must be a power of two >= 2")

// Build constructs the FM-index of a packed reference: suffix array via
// SA-IS, BWT with 64-wide checkpoint blocks, and the sampled suffix
// array at the given sparsity.
func Build(ref *refseq.PackedRef, sparsity int64) (*Index, error) {
	if sparsity < 2 || sparsity&(sparsity-1) != 0 {
		return nil, ErrBadSparsity
	}

	sa := sais.SuffixArray(ref.Seq)
	return buildFromSA(ref.Seq, sa, sparsity)
}

// buildFromSA emits the BWT one character at a time from the suffix
// array and fills the checkpoint and sampled-SA streams.
func buildFromSA(codes []byte, sa []int64, sparsity int64) (*Index, error) {
	n := int64(len(codes))
	refLen := n + 1 // with sentinel

	idx := &Index{
		RefLen:      refLen,
		Sparsity:    sparsity,
		SentinelIdx: -1,
	}
	idx.initMasks()

	// cumulative counts; the +1 accounts for the sentinel, which sorts
	// before every base (the on-disk form stores the raw counts)
	var cnt [4]int64
	for _, c := range codes {
		cnt[c]++
	}
	idx.C[0] = 0
	idx.C[1] = cnt[0]
	idx.C[2] = cnt[0] + cnt[1]
	idx.C[3] = cnt[0] + cnt[1] + cnt[2]
	idx.C[4] = cnt[0] + cnt[1] + cnt[2] + cnt[3]
	for i := range idx.C {
		idx.C[i]++
	}

	// BWT characters, block aligned with dummy padding
	alignedLen := (refLen + CpBlockSize - 1) / CpBlockSize * CpBlockSize
	bwtChars := make([]uint8, alignedLen)
	for i := int64(0); i < refLen; i++ {
		if sa[i] == 0 {
			bwtChars[i] = 4
			idx.SentinelIdx = i
		} else {
			bwtChars[i] = codes[sa[i]-1]
		}
	}
	for i := refLen; i < alignedLen; i++ {
		bwtChars[i] = dummyChar
	}

	// checkpoint blocks; the trailing block past the BWT end only
	// carries the final counts so that Occ(c, n+1) stays a plain lookup
	nBlocks := refLen>>cpShift + 1
	idx.CpOcc = make([]CpOcc, nBlocks)
	var running [4]int64
	for b := int64(0); b < nBlocks; b++ {
		blk := &idx.CpOcc[b]
		blk.Count = running
		start := b << cpShift
		for j := int64(0); j < CpBlockSize; j++ {
			blk.OneHot[0] <<= 1
			blk.OneHot[1] <<= 1
			blk.OneHot[2] <<= 1
			blk.OneHot[3] <<= 1
			if p := start + j; p < alignedLen {
				if c := bwtChars[p]; c < 4 {
					blk.OneHot[c]++
					running[c]++
				}
			}
		}
	}

	// sampled SA, 40-bit entries split into two streams
	shift := idx.saShift
	nSampled := refLen>>shift + 1
	idx.SaHi = make([]uint8, nSampled)
	idx.SaLo = make([]uint32, nSampled)
	var pos int64
	for i := int64(0); i < refLen; i++ {
		if i&idx.saMask == 0 {
			idx.SaHi[pos] = uint8(sa[i] >> 32 & 0xff)
			idx.SaLo[pos] = uint32(sa[i])
			pos++
		}
	}

	return idx, nil
}
