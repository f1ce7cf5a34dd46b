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

package smem

import (
	"github.com/rdleal/intervalst/interval"

	"github.com/etri/smemseed/smemseed/bwt"
)

// Seed is one resolved seed: a query span and a position in the doubled
// reference text.
type Seed struct {
	Rid  int32
	M, N int32
	Pos  int64
}

// ResolveSeeds turns SMEMs into reference coordinates through the
// sampled suffix array, at most maxOcc locations per SMEM, sampled
// evenly across large intervals. Walks run through the batched
// resolver so independent FM-walks overlap.
func (e *Engine) ResolveSeeds(smems []SMEM, maxOcc int) []Seed {
	if maxOcc <= 0 {
		maxOcc = e.opt.MaxOcc
	}

	var nPos int
	for i := range smems {
		c := smems[i].S
		if c > int64(maxOcc) {
			c = int64(maxOcc)
		}
		nPos += int(c)
	}
	if nPos == 0 {
		return nil
	}

	posArray := make([]int64, 0, nPos)
	owner := make([]int32, 0, nPos)
	for i := range smems {
		sm := &smems[i]
		step := int64(1)
		if sm.S > int64(maxOcc) {
			step = sm.S / int64(maxOcc)
		}
		hi := sm.K + sm.S
		c := 0
		for j := sm.K; j < hi && c < maxOcc; j += step {
			posArray = append(posArray, j)
			owner = append(owner, int32(i))
			c++
		}
	}

	coords := make([]int64, len(posArray))
	e.idx.GetSAEntriesBatched(posArray, coords)

	seeds := make([]Seed, len(coords))
	for i, pos := range coords {
		sm := &smems[owner[i]]
		seeds[i] = Seed{Rid: sm.Rid, M: sm.M, N: sm.N, Pos: pos}
	}
	return seeds
}

// FilterContained drops SMEMs whose query span is strictly contained in
// the span of another SMEM of the same read. Input must already be
// sorted by (rid, m, -n); the relative order of survivors is kept.
func FilterContained(smems []SMEM) []SMEM {
	if len(smems) <= 1 {
		return smems
	}

	cmp := func(x, y int32) int { return int(x - y) }

	out := smems[:0]
	var rid int32 = -1
	var st *interval.SearchTree[[2]int32, int32]
	for _, sm := range smems {
		if sm.Rid != rid {
			rid = sm.Rid
			st = interval.NewSearchTree[[2]int32](cmp)
		}

		// the tree stores half-open spans, N is inclusive
		contained := false
		if spans, ok := st.AllIntersections(sm.M, sm.N+1); ok {
			for _, sp := range spans {
				if sp[0] <= sm.M && sm.N <= sp[1] && (sp[0] != sm.M || sp[1] != sm.N) {
					contained = true
					break
				}
			}
		}
		if contained {
			continue
		}

		st.Insert(sm.M, sm.N+1, [2]int32{sm.M, sm.N})
		out = append(out, sm)
	}
	return out
}

// CountOccurrences reports the interval of an exact pattern, a thin
// wrapper kept for callers that only need counts.
func (e *Engine) CountOccurrences(pattern []byte) bwt.Interval {
	return e.idx.Count(pattern)
}
