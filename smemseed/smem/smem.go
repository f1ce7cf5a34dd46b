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

// Package smem enumerates supermaximal exact matches of short queries
// over the bidirectional FM-index, optionally shortcut through the
// precomputed extension tables.
package smem

import (
	"github.com/etri/smemseed/smemseed/accel"
	"github.com/etri/smemseed/smemseed/bwt"
)

// SMEM is a supermaximal exact match: the BWT interval of the matched
// string plus the query span [M, N] (both ends inclusive) and the query
// identifier.
type SMEM struct {
	Rid     int32
	M, N    int32
	K, L, S int64
}

// Len returns the match length.
func (s *SMEM) Len() int32 { return s.N - s.M + 1 }

// Options are the seeding parameters.
type Options struct {
	MinIntv    int64 // minimum interval size during SMEM search
	MinSeedLen int32 // minimum SMEM length for emission
	MaxIntv    int64 // maximum interval size for the seed-only strategy
	MaxOcc     int   // per-SMEM cap on resolved locations
	MaxReadLen int   // hard upper bound on query length
}

// DefaultOptions mirror the aligner defaults.
var DefaultOptions = Options{
	MinIntv:    1,
	MinSeedLen: 19,
	MaxIntv:    500,
	MaxOcc:     500,
	MaxReadLen: 512,
}

// Engine runs SMEM queries against one immutable index view. The
// engine owns per-query scratch buffers, so use one engine per worker
// goroutine; the underlying index and tables are shared freely.
type Engine struct {
	idx *bwt.Index
	opt Options

	// optional acceleration tables; the engine degrades to the
	// per-base loops when absent
	all  *accel.AllSmemTable
	last *accel.LastSmemTable

	prev []SMEM
	curr []SMEM
}

// NewEngine creates an engine over an index.
func NewEngine(idx *bwt.Index, opt Options) *Engine {
	if opt.MaxReadLen <= 0 {
		opt.MaxReadLen = DefaultOptions.MaxReadLen
	}
	return &Engine{
		idx:  idx,
		opt:  opt,
		prev: make([]SMEM, 0, opt.MaxReadLen),
		curr: make([]SMEM, 0, opt.MaxReadLen),
	}
}

// Index returns the underlying FM-index.
func (e *Engine) Index() *bwt.Index { return e.idx }

// Options returns the seeding parameters.
func (e *Engine) Options() Options { return e.opt }

// AttachTables wires the optional acceleration tables. Either may be
// nil.
func (e *Engine) AttachTables(all *accel.AllSmemTable, last *accel.LastSmemTable) {
	e.all = all
	e.last = last
}

// SmemsOnePos produces all SMEMs of q whose left endpoint is x and
// appends them to out. It returns the next cursor position and the
// possibly grown output slice.
//
// Forward extension walks right from x, pushing the pre-extension
// interval whenever the interval size shrinks; backward extension then
// walks left, emitting the first candidate whose further extension
// falls below minIntv. Distinct interval size is the de-duplication key
// on the candidate stack.
func (e *Engine) SmemsOnePos(q []byte, rid int32, x int, minIntv int64, out []SMEM) (int, []SMEM) {
	if len(q) > e.opt.MaxReadLen {
		q = q[:e.opt.MaxReadLen]
	}
	nextX := x + 1

	a := q[x]
	if a > 3 {
		return nextX, out
	}

	idx := e.idx
	minSeedLen := e.opt.MinSeedLen

	smem := SMEM{Rid: rid, M: int32(x), N: int32(x)}
	iv := idx.SingleBase(a)
	smem.K, smem.L, smem.S = iv.K, iv.L, iv.S

	prev := e.prev[:0]

	// a clean 11-base window collapses the first forward extensions
	// into one table read; windows holding an N bypass the accelerator
	var j int
	var key uint64
	var useAccel bool
	if e.all != nil && len(q)-x >= accel.AllSmemBp {
		var ok bool
		key, _, ok = accel.SeqKey(q[x:], accel.AllSmemBp)
		useAccel = ok && e.all.Loaded(key)
	}
	if useAccel {
		ent := e.all.Entry(key)
		lastIdx := int(ent.LastAvail) - 1

		j = x + 1
		for k := 0; k < lastIdx; j, k = j+1, k+1 {
			a = q[j]
			nextX = j + 1

			step := ent.List[k]
			newSmem := smem
			newSmem.K = smem.K + int64(step.K32)
			newSmem.L = idx.C[3-a] + int64(step.L32)
			newSmem.S = int64(step.S32)
			newSmem.N = int32(j)

			if newSmem.S != smem.S {
				prev = append(prev, smem)
			}
			if newSmem.S < minIntv {
				nextX = j
				j = len(q) // skip the per-base loop
				break
			}
			smem = newSmem
		}
	} else {
		j = x + 1
	}

	for ; j < len(q); j++ {
		a = q[j]
		nextX = j + 1
		if a > 3 {
			break
		}

		newSmem := smem
		iv = idx.ForwardExt(bwt.Interval{K: smem.K, L: smem.L, S: smem.S}, a)
		newSmem.K, newSmem.L, newSmem.S = iv.K, iv.L, iv.S
		newSmem.N = int32(j)

		if newSmem.S != smem.S {
			prev = append(prev, smem)
		}
		if newSmem.S < minIntv {
			nextX = j
			break
		}
		smem = newSmem
	}

	if smem.S >= minIntv {
		prev = append(prev, smem)
	}

	// longest right extensions first
	for p, q2 := 0, len(prev)-1; p < q2; p, q2 = p+1, q2-1 {
		prev[p], prev[q2] = prev[q2], prev[p]
	}

	// backward extension from x-1 leftward
	curr := e.curr[:0]
	for j = x - 1; j >= 0; j-- {
		a = q[j]
		if a > 3 {
			break
		}

		curr = curr[:0]
		var currS int64 = -1

		p := 0
		for ; p < len(prev); p++ {
			sm := prev[p]
			iv = idx.BackwardExt(bwt.Interval{K: sm.K, L: sm.L, S: sm.S}, a)
			newSmem := sm
			newSmem.K, newSmem.L, newSmem.S = iv.K, iv.L, iv.S
			newSmem.M = int32(j)

			if newSmem.S < minIntv && sm.Len() >= minSeedLen {
				out = append(out, sm)
				break
			}
			if newSmem.S >= minIntv && newSmem.S != currS {
				currS = newSmem.S
				curr = append(curr, newSmem)
				break
			}
		}
		p++
		for ; p < len(prev); p++ {
			sm := prev[p]
			iv = idx.BackwardExt(bwt.Interval{K: sm.K, L: sm.L, S: sm.S}, a)
			newSmem := sm
			newSmem.K, newSmem.L, newSmem.S = iv.K, iv.L, iv.S
			newSmem.M = int32(j)

			if newSmem.S >= minIntv && newSmem.S != currS {
				currS = newSmem.S
				curr = append(curr, newSmem)
			}
		}

		prev, curr = curr, prev
		if len(prev) == 0 {
			break
		}
	}

	if len(prev) != 0 {
		sm := prev[0]
		if sm.Len() >= minSeedLen {
			out = append(out, sm)
		}
	}

	e.prev = prev[:0]
	e.curr = curr[:0]
	return nextX, out
}

// SmemsAllPos runs SmemsOnePos over every query position, advancing the
// cursor monotonically with the returned next position.
func (e *Engine) SmemsAllPos(q []byte, rid int32, minIntv int64, out []SMEM) []SMEM {
	if minIntv < 1 {
		minIntv = e.opt.MinIntv
	}
	n := len(q)
	if n > e.opt.MaxReadLen {
		n = e.opt.MaxReadLen
	}
	for x := 0; x < n; {
		x, out = e.SmemsOnePos(q[:n], rid, x, minIntv, out)
	}
	return out
}

// BwtSeedStrategy emits seeds whose interval size fell below maxIntv
// with length >= MinSeedLen, walking all positions. One last-SMEM table
// read replaces up to 13 sequential extension calls when the window is
// clean.
func (e *Engine) BwtSeedStrategy(q []byte, rid int32, maxIntv int64, out []SMEM) []SMEM {
	if maxIntv < 1 {
		maxIntv = e.opt.MaxIntv
	}
	idx := e.idx
	minSeedLen := e.opt.MinSeedLen

	n := len(q)
	if n > e.opt.MaxReadLen {
		n = e.opt.MaxReadLen
	}

	x := 0
	for x < n {
		nextX := x + 1
		a := q[x]
		if a > 3 {
			x = nextX
			continue
		}

		smem := SMEM{Rid: rid, M: int32(x), N: int32(x)}
		iv := idx.SingleBase(a)
		smem.K, smem.L, smem.S = iv.K, iv.L, iv.S

		j := x + 1
		if e.last != nil && n-x >= accel.LastSmemBp {
			if key, _, ok := accel.SeqKey(q[x:], accel.LastSmemBp); ok && e.last.Loaded(key) {
				ent := e.last.Entry(key)
				j = x + int(ent.Bp)
				nextX = j
				smem.K, smem.L, smem.S = ent.K, ent.L, ent.S
				smem.N = int32(j - 1)

				if smem.S < maxIntv && smem.Len() >= minSeedLen {
					if smem.S > 0 {
						out = append(out, smem)
					}
					x = nextX
					continue
				}
			}
		}

		for ; j < n; j++ {
			nextX = j + 1
			a = q[j]
			if a > 3 {
				break
			}

			iv = idx.ForwardExt(bwt.Interval{K: smem.K, L: smem.L, S: smem.S}, a)
			smem.K, smem.L, smem.S = iv.K, iv.L, iv.S
			smem.N = int32(j)

			if smem.S < maxIntv && smem.Len() >= minSeedLen {
				if smem.S > 0 {
					out = append(out, smem)
				}
				break
			}
		}

		x = nextX
	}
	return out
}
