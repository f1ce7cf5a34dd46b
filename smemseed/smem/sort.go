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
	"github.com/twotwotwo/sorts"
)

// smemSorter orders SMEMs by (rid, m, -n): reads in order, left
// endpoints ascending, longer matches first on ties.
type smemSorter []SMEM

func (s smemSorter) Len() int { return len(s) }
func (s smemSorter) Less(i, j int) bool {
	a, b := &s[i], &s[j]
	if a.Rid != b.Rid {
		return a.Rid < b.Rid
	}
	if a.M != b.M {
		return a.M < b.M
	}
	return a.N > b.N
}
func (s smemSorter) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

// SortSMEMs sorts matches by (rid, m, -n), the order the downstream
// chaining expects. Large batches sort in parallel.
func SortSMEMs(smems []SMEM) {
	sorts.Quicksort(smemSorter(smems))
}
