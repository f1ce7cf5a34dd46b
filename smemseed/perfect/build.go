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
	"errors"
	"runtime"
	"sort"
	"sync"

	"github.com/etri/smemseed/smemseed/refseq"
)

// locsPerBatch is the number of reference locations one pipeline batch
// carries from the key-computation workers to the insert goroutine.
const locsPerBatch = 3_000_000

// ErrTableTooSmall means slack yields fewer entries than locations.
var ErrTableTooSmall = errors.New("perfect: seed table too small, increase slack")

// ErrTooManyEntries means the requested entry count exceeds 32-bit
// indexing.
var ErrTooManyEntries = errors.New("perfect: number of seed entries exceeds uint32")

// locKey is the precomputed placement of one reference location.
// key == NoEntry marks a hole (ambiguous bases or sequence boundary).
type locKey struct {
	key    uint32
	fwLess bool
}

// batch is one contiguous range of locations with their keys.
type batch struct {
	id    int
	start int64
	keys  []locKey
}

// buildLoc accumulates overflow locations of one multi-location seed
// during phase A.
type buildLoc struct {
	fw []uint32
	rc []uint32
}

// builder carries the mutable state of table construction.
type builder struct {
	t     *Table
	locs  []buildLoc // index 0 unused
	remap []uint32   // buildLoc index -> final locTable index
}

// BuildOptions configure table construction.
type BuildOptions struct {
	SeedLen int
	// Slack scales the seed table: entries = seqLen * Slack, truncated.
	Slack   float64
	Threads int
	// Progress, when non-nil, receives the number of processed
	// locations after each batch.
	Progress func(done, total int64)
}

// DefaultBuildOptions mirror the original defaults.
var DefaultBuildOptions = BuildOptions{SeedLen: 151, Slack: 1.1}

// Build constructs the perfect-match table of a packed reference.
//
// Phase A partitions the reference into batches; one worker per core
// computes canonical orientations and hash slots, and a single insert
// goroutine drains the batches in order, so table layout is
// deterministic for a given reference. Phase B converts collision
// chains to balanced BSTs and freezes the overflow-location table.
func Build(ref *refseq.PackedRef, opt BuildOptions) (*Table, error) {
	seqLen := ref.FwLen
	if opt.SeedLen <= 0 {
		opt.SeedLen = DefaultBuildOptions.SeedLen
	}
	if opt.Slack <= 1.0 {
		opt.Slack = DefaultBuildOptions.Slack
	}
	if opt.Threads <= 0 {
		opt.Threads = runtime.NumCPU()
	}

	numSeedEntry := int64(float64(seqLen) * opt.Slack)
	if numSeedEntry >= int64(NoEntry) {
		return nil, ErrTooManyEntries
	}
	if numSeedEntry < seqLen {
		return nil, ErrTableTooSmall
	}

	t := &Table{
		SeedLen:       opt.SeedLen,
		SeqLen:        uint32(seqLen),
		NumSeedEntry:  uint32(numSeedEntry),
		NumSeedLoaded: uint32(numSeedEntry),
		seeds:         newSeedTable(numSeedEntry, opt.Threads),
		ref:           ref.Fw(),
	}
	b := &builder{t: t, locs: make([]buildLoc, 1, 256)}

	// ---------------- phase A: parallel keys, ordered insert ----------------

	nBatches := int((seqLen + locsPerBatch - 1) / locsPerBatch)

	jobs := make(chan batch, opt.Threads)
	results := make(chan batch, opt.Threads)

	var wg sync.WaitGroup
	for w := 0; w < opt.Threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for bt := range jobs {
				b.computeKeys(ref, &bt)
				results <- bt
			}
		}()
	}

	go func() {
		for id := 0; id < nBatches; id++ {
			start := int64(id) * locsPerBatch
			end := start + locsPerBatch
			if end > seqLen {
				end = seqLen
			}
			jobs <- batch{id: id, start: start, keys: make([]locKey, end-start)}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	// drain out-of-order results, insert in batch order
	pending := make(map[int]batch, opt.Threads)
	next := 0
	var done int64
	for bt := range results {
		pending[bt.id] = bt
		for {
			nb, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := b.insertBatch(nb); err != nil {
				go func() { // unblock the workers before bailing out
					for range results {
					}
				}()
				return nil, err
			}
			done += int64(len(nb.keys))
			if opt.Progress != nil {
				opt.Progress(done, seqLen)
			}
			next++
		}
	}

	// ---------------- phase B: freeze ----------------

	b.finalizeLocTable()
	b.convertChainsToBST()

	return t, nil
}

// newSeedTable initialises every entry invalid, splitting the work
// across goroutines; the table can reach tens of gigabytes.
func newSeedTable(n int64, threads int) []seedEntry {
	seeds := make([]seedEntry, n)
	per := (n + int64(threads) - 1) / int64(threads)
	var wg sync.WaitGroup
	for start := int64(0); start < n; start += per {
		end := start + per
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int64) {
			defer wg.Done()
			for i := s; i < e; i++ {
				seeds[i] = seedEntry{location: NoEntry, left: NoEntry, right: NoEntry}
			}
		}(start, end)
	}
	wg.Wait()
	return seeds
}

// computeKeys fills one batch: canonical orientation and hash slot per
// location, NoEntry for seeds crossing a sequence end or an N run.
func (b *builder) computeKeys(ref *refseq.PackedRef, bt *batch) {
	t := b.t
	seedLen := int64(t.SeedLen)
	fw := ref.Fw()

	// advance annotation and hole cursors to the batch start
	seqID := sort.Search(len(ref.Anns), func(i int) bool {
		return ref.Anns[i].Offset+ref.Anns[i].Len > bt.start
	})
	holeID := sort.Search(len(ref.Ambs), func(i int) bool {
		return ref.Ambs[i].Offset+ref.Ambs[i].Len > bt.start
	})

	for i := range bt.keys {
		loc := bt.start + int64(i)

		for seqID < len(ref.Anns) && loc >= ref.Anns[seqID].Offset+ref.Anns[seqID].Len {
			seqID++
		}
		for holeID < len(ref.Ambs) && loc >= ref.Ambs[holeID].Offset+ref.Ambs[holeID].Len {
			holeID++
		}

		hole := false
		if seqID >= len(ref.Anns) ||
			loc+seedLen > ref.Anns[seqID].Offset+ref.Anns[seqID].Len {
			hole = true // seed would cross the sequence end
		} else if holeID < len(ref.Ambs) &&
			loc+seedLen > ref.Ambs[holeID].Offset {
			hole = true // seed would overlap an N run
		}

		if hole {
			bt.keys[i] = locKey{key: NoEntry}
			continue
		}

		seed := fw[loc : loc+seedLen]
		fwLess := compareFwRc(seed, t.SeedLen)
		bt.keys[i] = locKey{key: t.slotOf(seed, fwLess), fwLess: fwLess}
	}
}

// insertBatch adds every non-hole location of a batch to the table.
func (b *builder) insertBatch(bt batch) error {
	for i := range bt.keys {
		lk := &bt.keys[i]
		if lk.key == NoEntry {
			continue
		}
		if err := b.addToHash(uint32(bt.start+int64(i)), lk.key, lk.fwLess); err != nil {
			return err
		}
	}
	return nil
}

// emptyIdxFrom probes linearly for the nearest invalid entry.
func (b *builder) emptyIdxFrom(key uint32) uint32 {
	t := b.t
	if !t.seeds[key].valid() {
		return key
	}
	for idx := (key + 1) % t.NumSeedEntry; idx != key; idx = (idx + 1) % t.NumSeedEntry {
		if !t.seeds[idx].valid() {
			return idx
		}
	}
	return NoEntry
}

// addToHash places one location. A collision node squatting on its
// home slot is first relocated; a location whose seed is already in
// the chain grows that entry's overflow list instead of the table.
func (b *builder) addToHash(loc, key uint32, fwLess bool) error {
	t := b.t
	keyEnt := &t.seeds[key]

	if keyEnt.valid() && keyEnt.collision() {
		// evict: the squatter belongs to another chain
		newIdx := b.emptyIdxFrom(key)
		if newIdx == NoEntry {
			return ErrTableTooSmall
		}
		t.seeds[newIdx] = *keyEnt

		// re-link its chain
		prevIdx := t.slotOfEntry(keyEnt)
		prev := &t.seeds[prevIdx]
		for prev.right != key && prev.right != NoEntry {
			prevIdx = prev.right
			prev = &t.seeds[prevIdx]
		}
		prev.right = newIdx

		*keyEnt = seedEntry{location: NoEntry, left: NoEntry, right: NoEntry}
	}

	if !keyEnt.valid() {
		*keyEnt = seedEntry{location: loc, left: NoEntry, right: NoEntry}
		if fwLess {
			keyEnt.flags |= flagFwLess
		}
		t.NumUsed++
		t.NumKeys++
		return nil
	}

	// walk the chain for a seed-matching entry
	seedLen := int64(t.SeedLen)
	newSeed := t.ref[int64(loc) : int64(loc)+seedLen]

	matched := 0
	idx := key
	ent := keyEnt
	prevIdx := NoEntry
	for idx != NoEntry {
		entSeed := t.ref[int64(ent.location) : int64(ent.location)+seedLen]
		matched = seedMatch(newSeed, entSeed, t.SeedLen)
		if matched != 0 {
			break
		}
		prevIdx = idx
		idx = ent.right
		if idx != NoEntry {
			ent = &t.seeds[idx]
		}
	}

	if matched == 0 {
		// new collision node chained off prevIdx
		newIdx := b.emptyIdxFrom(prevIdx)
		if newIdx == NoEntry {
			return ErrTableTooSmall
		}
		ne := &t.seeds[newIdx]
		*ne = seedEntry{location: loc, left: NoEntry, right: NoEntry, flags: flagCollision}
		if fwLess {
			ne.flags |= flagFwLess
		}
		t.seeds[prevIdx].right = newIdx
		t.NumUsed++
		return nil
	}

	// the chain already holds this seed string: grow its location list
	m := ent.multiLoc()
	if m == 0 {
		m = uint32(len(b.locs))
		b.locs = append(b.locs, buildLoc{})
		if m > multiLocMax {
			return ErrTooManyEntries
		}
		ent.setMultiLoc(m)
	}
	bl := &b.locs[m]
	if matched == 1 {
		bl.fw = append(bl.fw, loc)
	} else {
		bl.rc = append(bl.rc, loc)
	}
	return nil
}

// finalizeLocTable freezes the accumulated overflow lists into the
// CSR-style location table: compact one-word header when both counts
// are below locMany, wide indirection otherwise. Multi-loc indices in
// the seed entries are remapped afterwards in convertChainsToBST.
func (b *builder) finalizeLocTable() {
	t := b.t

	// size the table and the wide-region cursor
	n := uint32(1) // entry 0 is the null index
	wide := uint32(1)
	for i := 1; i < len(b.locs); i++ {
		bl := &b.locs[i]
		cnt := uint32(len(bl.fw) + len(bl.rc))
		if len(bl.fw) < locMany && len(bl.rc) < locMany {
			n += 1 + cnt
			wide += 1 + cnt
		} else {
			n += 3 + cnt
			wide++
		}
	}
	// align to a cache line of uint32s
	n += 16 - n%16

	loc := make([]uint32, n)
	b.remap = make([]uint32, len(b.locs))

	cursor := uint32(1)
	for i := 1; i < len(b.locs); i++ {
		bl := &b.locs[i]
		cnt := uint32(len(bl.fw) + len(bl.rc))
		b.remap[i] = cursor

		var at uint32
		if len(bl.fw) < locMany && len(bl.rc) < locMany {
			loc[cursor] = uint32(len(bl.fw))<<16 | uint32(len(bl.rc))
			at = cursor + 1
			cursor += 1 + cnt
		} else {
			loc[cursor] = 0x80000000 | wide
			cursor++
			loc[wide] = uint32(len(bl.fw))
			loc[wide+1] = uint32(len(bl.rc))
			at = wide + 2
			wide += 2 + cnt
		}
		copy(loc[at:], bl.fw)
		copy(loc[at+uint32(len(bl.fw)):], bl.rc)
	}

	t.locTable = loc
	t.NumLocEntry = uint32(len(loc))
	b.locs = nil
}
