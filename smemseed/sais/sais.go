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

// Package sais builds suffix arrays with the linear-time SA-IS
// algorithm (induced sorting of left-most S-type suffixes).
package sais

// SuffixArray returns the suffix array of a 2-bit coded DNA text
// (values in {0,1,2,3}). A sentinel smaller than every base is
// implicitly appended, so the result has len(codes)+1 entries and the
// sentinel row sits at index 0.
func SuffixArray(codes []byte) []int64 {
	n := len(codes) + 1
	s := make([]int, n)
	for i, c := range codes {
		s[i] = int(c) + 1
	}
	s[n-1] = 0 // sentinel

	sa := sais(s, 5, make([]int, n), make([]int, n))

	out := make([]int64, n)
	for i, v := range sa {
		out[i] = int64(v)
	}
	return out
}

// sais computes the suffix array of s over alphabet [0,K).
// s must end with a unique smallest sentinel.
func sais(s []int, k int, sa, names []int) []int {
	n := len(s)
	sa = sa[:n]
	for i := range sa {
		sa[i] = -1
	}
	if n == 0 {
		return sa
	}
	if n == 1 {
		sa[0] = 0
		return sa
	}

	// S/L types, right to left
	t := make([]bool, n)
	t[n-1] = true
	for i := n - 2; i >= 0; i-- {
		if s[i] < s[i+1] {
			t[i] = true
		} else if s[i] > s[i+1] {
			t[i] = false
		} else {
			t[i] = t[i+1]
		}
	}

	lms := make([]int, 0, n/2)
	for i := 1; i < n; i++ {
		if t[i] && !t[i-1] {
			lms = append(lms, i)
		}
	}

	induce(s, sa, t, k, lms)

	// name LMS substrings in their sorted order
	sorted := make([]int, 0, len(lms))
	for _, pos := range sa {
		if pos > 0 && t[pos] && !t[pos-1] {
			sorted = append(sorted, pos)
		}
	}
	names = names[:n]
	for i := range names {
		names[i] = -1
	}
	name := 0
	prev := -1
	for _, pos := range sorted {
		if prev >= 0 && !lmsEqual(s, t, prev, pos) {
			name++
		}
		names[pos] = name
		prev = pos
	}
	numNames := name + 1

	reduced := make([]int, len(lms))
	for i, pos := range lms {
		reduced[i] = names[pos]
	}

	var reducedSA []int
	if numNames < len(reduced) {
		reducedSA = sais(reduced, numNames, sa, names)
	} else { // all names distinct, order is immediate
		reducedSA = make([]int, len(reduced))
		for i, nm := range reduced {
			reducedSA[nm] = i
		}
	}

	ordered := make([]int, len(reducedSA))
	for i, idx := range reducedSA {
		ordered[i] = lms[idx]
	}

	for i := range sa {
		sa[i] = -1
	}
	induce(s, sa, t, k, ordered)
	return sa
}

func induce(s, sa []int, t []bool, k int, lms []int) {
	sizes := bucketSizes(s, k)

	tails := bucketTails(sizes)
	for i := len(lms) - 1; i >= 0; i-- {
		pos := lms[i]
		c := s[pos]
		sa[tails[c]] = pos
		tails[c]--
	}

	heads := bucketHeads(sizes)
	for i := range sa {
		pos := sa[i]
		if pos > 0 && !t[pos-1] {
			c := s[pos-1]
			sa[heads[c]] = pos - 1
			heads[c]++
		}
	}

	tails = bucketTails(sizes)
	for i := len(sa) - 1; i >= 0; i-- {
		pos := sa[i]
		if pos > 0 && t[pos-1] {
			c := s[pos-1]
			sa[tails[c]] = pos - 1
			tails[c]--
		}
	}
}

func bucketSizes(s []int, k int) []int {
	sizes := make([]int, k)
	for _, c := range s {
		sizes[c]++
	}
	return sizes
}

func bucketHeads(sizes []int) []int {
	heads := make([]int, len(sizes))
	sum := 0
	for i, v := range sizes {
		heads[i] = sum
		sum += v
	}
	return heads
}

func bucketTails(sizes []int) []int {
	tails := make([]int, len(sizes))
	sum := 0
	for i, v := range sizes {
		sum += v
		tails[i] = sum - 1
	}
	return tails
}

func lmsEqual(s []int, t []bool, i, j int) bool {
	n := len(s)
	if s[i] != s[j] {
		return false
	}
	i++
	j++
	for {
		if i >= n || j >= n {
			return false
		}
		if s[i] != s[j] {
			return false
		}
		iLMS := t[i] && !t[i-1]
		jLMS := t[j] && !t[j-1]
		if iLMS && jLMS {
			return true
		}
		if iLMS != jLMS {
			return false
		}
		i++
		j++
	}
}
