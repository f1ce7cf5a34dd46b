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

// Package refseq holds the 2-bit packed reference text: the forward
// reference concatenated with its reverse complement, plus per-sequence
// annotations and ambiguity (N-run) records.
package refseq

import (
	"errors"
	"sort"
)

// Base codes. BaseN marks an unknown base in query text only,
// it is never stored in the reference text.
const (
	BaseA = 0
	BaseC = 1
	BaseG = 2
	BaseT = 3
	BaseN = 4
)

// ErrEmptyRef means no reference bases were given.
var ErrEmptyRef = errors.New("refseq: empty reference")

// base2bit maps an ASCII nucleotide to its 2-bit code, 4 for anything else.
var base2bit [256]byte

// bit2base maps a 2-bit code back to the uppercase nucleotide.
var bit2base = [5]byte{'A', 'C', 'G', 'T', 'N'}

func init() {
	for i := range base2bit {
		base2bit[i] = 4
	}
	base2bit['A'], base2bit['a'] = 0, 0
	base2bit['C'], base2bit['c'] = 1, 1
	base2bit['G'], base2bit['g'] = 2, 2
	base2bit['T'], base2bit['t'] = 3, 3
}

// Code returns the 2-bit code of an ASCII nucleotide, 4 for non-ACGT.
func Code(c byte) byte { return base2bit[c] }

// Letter returns the nucleotide letter of a 2-bit code.
func Letter(b byte) byte {
	if b > 4 {
		return 'N'
	}
	return bit2base[b]
}

// Ann is the annotation of one reference sequence.
type Ann struct {
	Name   string
	Offset int64 // offset of the first base in the concatenated forward text
	Len    int64
	IsAlt  bool
}

// Amb records a run of ambiguous bases which were substituted in the
// packed text. Seeds overlapping such a run must not enter the
// perfect-match table.
type Amb struct {
	Offset int64
	Len    int64
}

// PackedRef is the reference genome as one base per byte with values in
// {0,1,2,3}: the forward strand of length FwLen followed by its reverse
// complement. The sentinel is not stored.
type PackedRef struct {
	Seq   []byte // length 2*FwLen
	FwLen int64

	Anns []Ann
	Ambs []Amb
}

// Len returns the length of the doubled text (excluding the sentinel).
func (r *PackedRef) Len() int64 { return int64(len(r.Seq)) }

// Fw returns the forward-strand bases.
func (r *PackedRef) Fw() []byte { return r.Seq[:r.FwLen] }

// PosToRid returns the index of the annotation containing the
// forward-strand position, or -1 if out of range.
func (r *PackedRef) PosToRid(pos int64) int {
	if pos < 0 || pos >= r.FwLen {
		return -1
	}
	i := sort.Search(len(r.Anns), func(i int) bool {
		return r.Anns[i].Offset+r.Anns[i].Len > pos
	})
	if i == len(r.Anns) {
		return -1
	}
	return i
}

// NewFromBases builds a PackedRef from forward-strand 2-bit codes,
// appending the reverse complement. The input slice is not retained.
func NewFromBases(fw []byte, anns []Ann, ambs []Amb) (*PackedRef, error) {
	if len(fw) == 0 {
		return nil, ErrEmptyRef
	}
	n := len(fw)
	seq := make([]byte, 2*n)
	copy(seq, fw)
	for i := n - 1; i >= 0; i-- {
		seq[2*n-1-i] = 3 - fw[i]
	}
	if len(anns) == 0 {
		anns = []Ann{{Name: "ref", Offset: 0, Len: int64(n)}}
	}
	return &PackedRef{Seq: seq, FwLen: int64(n), Anns: anns, Ambs: ambs}, nil
}

// RevCompBases reverse-complements 2-bit codes in place.
// Code 4 (N) maps to itself.
func RevCompBases(s []byte) {
	for i, j := 0, len(s)-1; i <= j; i, j = i+1, j-1 {
		a, b := s[i], s[j]
		if a < 4 {
			a = 3 - a
		}
		if b < 4 {
			b = 3 - b
		}
		s[i], s[j] = b, a
	}
}
