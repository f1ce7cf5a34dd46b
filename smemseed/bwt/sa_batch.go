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

// saBatchSize is the number of FM-walks kept in flight by the batched
// resolver. Interleaving independent walks hides the memory latency of
// the checkpoint-block loads.
const saBatchSize = 20

// stepOne advances one FM-walk. It returns done=true with the final
// entry when the walk reached a sampled row or the sentinel, otherwise
// it returns the next row to continue from.
func (idx *Index) stepOne(pos int64, offset *int64) (entry int64, next int64, done bool) {
	if pos&idx.saMask == 0 {
		i := pos >> idx.saShift
		return (int64(idx.SaHi[i])<<32 | int64(idx.SaLo[i])) + *offset, 0, true
	}

	b := idx.BwtChar(pos)
	if b == 4 {
		return *offset, 0, true
	}

	sp := idx.C[b] + idx.Occ(b, pos)
	*offset++
	if sp&idx.saMask == 0 {
		i := sp >> idx.saShift
		return (int64(idx.SaHi[i])<<32 | int64(idx.SaLo[i])) + *offset, 0, true
	}
	return 0, sp, false
}

// GetSAEntriesBatched resolves many BWT rows at once, walking up to
// saBatchSize rows round-robin. Results are written to coords, which
// must have len(posArray) entries.
func (idx *Index) GetSAEntriesBatched(posArray []int64, coords []int64) {
	n := len(posArray)
	if n == 0 {
		return
	}

	var working [saBatchSize]int64
	var target [saBatchSize]int
	var offset [saBatchSize]int64
	live := 0

	next := 0
	for ; next < n && live < saBatchSize; next++ {
		working[live] = posArray[next]
		target[live] = next
		offset[live] = 0
		live++
	}

	resolved := 0
	for resolved < n {
		for i := 0; i < live; i++ {
			if target[i] < 0 {
				continue
			}
			entry, sp, done := idx.stepOne(working[i], &offset[i])
			if !done {
				working[i] = sp
				continue
			}

			coords[target[i]] = entry
			resolved++
			if next < n {
				working[i] = posArray[next]
				target[i] = next
				offset[i] = 0
				next++
			} else {
				target[i] = -1
			}
		}
	}
}
