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

import (
	"github.com/twotwotwo/sorts"
)

// chainSorter orders chain nodes by their canonical seed strings.
type chainSorter struct {
	t     *Table
	nodes []seedEntry
}

func (s *chainSorter) Len() int { return len(s.nodes) }
func (s *chainSorter) Less(i, j int) bool {
	t := s.t
	a, b := &s.nodes[i], &s.nodes[j]
	n := int64(t.SeedLen)
	return seedCmp(t.ref[int64(a.location):int64(a.location)+n], a.fwLess(),
		t.ref[int64(b.location):int64(b.location)+n], b.fwLess(), t.SeedLen) < 0
}
func (s *chainSorter) Swap(i, j int) { s.nodes[i], s.nodes[j] = s.nodes[j], s.nodes[i] }

// convertChainsToBST rewrites every collision chain as a balanced BST
// embedded in the same slots, and remaps multi-location indices to the
// frozen location table. Phase B of construction, single-threaded.
func (b *builder) convertChainsToBST() {
	t := b.t

	var idxList []uint32
	var nodes []seedEntry

	for idx := uint32(0); idx < t.NumSeedEntry; idx++ {
		ent := &t.seeds[idx]
		if !ent.valid() || ent.collision() {
			// the chain root rebuilds its whole chain
			continue
		}

		if ent.right == NoEntry {
			b.updateMultiLoc(ent)
			continue
		}

		// gather the chain
		idxList = idxList[:0]
		nodes = nodes[:0]
		for i := idx; i != NoEntry; i = t.seeds[i].right {
			idxList = append(idxList, i)
			nodes = append(nodes, t.seeds[i])
		}

		for i := range nodes {
			b.updateMultiLoc(&nodes[i])
		}

		sorts.Quicksort(&chainSorter{t: t, nodes: nodes})

		// pop slot indices in pre-order so children of an entry land on
		// adjacent slots
		next := 1
		b.placeBST(idxList, &next, nodes, idxList[0], 0, len(nodes)-1)

		// the slot at the hash index is the root, everything else is a
		// collision node
		t.seeds[idxList[0]].flags &^= flagCollision
		for _, i := range idxList[1:] {
			t.seeds[i].flags |= flagCollision
		}
	}

	b.remap = nil
}

// placeBST copies the middle node of nodes[low..high] into rootIdx and
// recurses, drawing child slots from idxList in order.
func (b *builder) placeBST(idxList []uint32, next *int, nodes []seedEntry, rootIdx uint32, low, high int) {
	if low > high {
		return
	}
	mid := (low + high) / 2

	t := b.t
	ent := &t.seeds[rootIdx]
	*ent = nodes[mid]

	if mid > low {
		ent.left = idxList[*next]
		*next++
	} else {
		ent.left = NoEntry
	}
	if mid < high {
		ent.right = idxList[*next]
		*next++
	} else {
		ent.right = NoEntry
	}

	if ent.left != NoEntry {
		b.placeBST(idxList, next, nodes, ent.left, low, mid-1)
	}
	if ent.right != NoEntry {
		b.placeBST(idxList, next, nodes, ent.right, mid+1, high)
	}
}

// updateMultiLoc remaps a build-time multi-location index to its final
// position in the frozen location table.
func (b *builder) updateMultiLoc(ent *seedEntry) {
	if m := ent.multiLoc(); m != 0 {
		ent.setMultiLoc(b.remap[m])
	}
}
