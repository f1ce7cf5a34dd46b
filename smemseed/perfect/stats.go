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

package perfect

// ChainDepths returns the BST depth of every occupied root slot, the
// distribution the stats command summarises.
func (t *Table) ChainDepths() []float64 {
	depths := make([]float64, 0, 1024)
	for idx := uint32(0); idx < t.NumSeedLoaded; idx++ {
		ent := &t.seeds[idx]
		if !ent.valid() || ent.collision() {
			continue
		}
		depths = append(depths, float64(t.depthOf(idx)))
	}
	return depths
}

func (t *Table) depthOf(idx uint32) int {
	if idx == NoEntry || idx >= t.NumSeedLoaded {
		return 0
	}
	ent := &t.seeds[idx]
	l := t.depthOf(ent.left)
	r := t.depthOf(ent.right)
	if l > r {
		return 1 + l
	}
	return 1 + r
}

// LocationCounts returns the number of locations of every occupied
// entry.
func (t *Table) LocationCounts() []float64 {
	counts := make([]float64, 0, 1024)
	for idx := uint32(0); idx < t.NumSeedLoaded; idx++ {
		ent := &t.seeds[idx]
		if !ent.valid() {
			continue
		}
		n := 1
		if m := ent.multiLoc(); m != 0 {
			numFw, _, numRc, _ := t.multiLocations(m)
			n += int(numFw) + int(numRc)
		}
		counts = append(counts, float64(n))
	}
	return counts
}
