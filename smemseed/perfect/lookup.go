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
	"sort"

	"github.com/etri/smemseed/smemseed/refseq"
)

// MatchKind classifies a lookup. Queries never fail: a base outside
// {A,C,G,T} reports ContainsN, a short query reports NoTable at the
// caller's discretion, and everything else is one of the match kinds.
type MatchKind int

const (
	// NoTable means no table is loaded or the query is shorter than
	// the seed length.
	NoTable MatchKind = iota
	// ContainsN means the query holds a base outside {A,C,G,T}.
	ContainsN
	// NotMatched means neither orientation matches the reference.
	NotMatched
	// FwMatched means the query matches forward.
	FwMatched
	// RcMatched means the reverse complement of the query matches.
	RcMatched
	// SeedOnlyMatched means the leading seed matched some location but
	// no location verified over the full query length. Downstream
	// consumers currently treat it as a miss for location reporting.
	SeedOnlyMatched
)

// Match is the outcome of a lookup: the matched location and the entry
// flags needed to enumerate the remaining locations.
type Match struct {
	Kind     MatchKind
	Location uint32
	IsRev    bool
	multiLoc uint32
}

// Matched reports whether the lookup found a verified full-length match.
func (m *Match) Matched() bool { return m.Kind == FwMatched || m.Kind == RcMatched }

// Hit is one reported location, in forward-strand coordinates of the
// annotated sequence it falls in.
type Hit struct {
	Loc   int64 // absolute forward-strand position of the match seed
	Pos   int64 // position relative to the sequence, strand-adjusted
	Rid   int32
	IsRev bool
	IsAlt bool
}

// Region converts a hit to doubled-text coordinates: [rb, re) on the
// concatenated forward+reverse-complement text.
func (h *Hit) Region(fwLen int64, qLen int) (rb, re int64) {
	if !h.IsRev {
		return h.Loc, h.Loc + int64(qLen)
	}
	return 2*fwLen - (h.Loc + int64(qLen)), 2*fwLen - h.Loc
}

// Find probes the table with a query. Only the first SeedLen bases are
// hashed; longer queries are verified base-by-base at each candidate
// location.
func (t *Table) Find(q []byte) Match {
	if t == nil || len(q) < t.SeedLen {
		return Match{Kind: NoTable, Location: NoEntry}
	}
	for _, c := range q {
		if c > 3 {
			return Match{Kind: ContainsN, Location: NoEntry}
		}
	}

	fwLess := compareFwRc(q, t.SeedLen)
	idx := t.slotOf(q, fwLess)
	ent := t.entry(idx)

	if ent == nil || !ent.valid() || ent.collision() {
		return Match{Kind: NotMatched, Location: NoEntry}
	}

	for ent != nil {
		loc := int64(ent.location)
		cmp := seedCmp(t.ref[loc:loc+int64(t.SeedLen)], ent.fwLess(), q, fwLess, t.SeedLen)
		if cmp == 0 {
			if len(q) == t.SeedLen {
				return Match{
					Kind:     matchKind(ent.fwLess() == fwLess),
					Location: ent.location,
					IsRev:    ent.fwLess() != fwLess,
					multiLoc: ent.multiLoc(),
				}
			}
			return t.findFurther(ent, q, fwLess)
		}
		if cmp > 0 {
			ent = t.entry(ent.left)
		} else {
			ent = t.entry(ent.right)
		}
	}

	return Match{Kind: NotMatched, Location: NoEntry}
}

func matchKind(sameOrientation bool) MatchKind {
	if sameOrientation {
		return FwMatched
	}
	return RcMatched
}

// findFurther verifies the tail of a long query at the entry's primary
// location, then across the overflow locations of both orientations.
func (t *Table) findFurther(ent *seedEntry, q []byte, fwLess bool) Match {
	isRev := ent.fwLess() != fwLess

	if t.matchFurther(ent.location, q, isRev, len(q)) {
		return Match{
			Kind:     matchKind(!isRev),
			Location: ent.location,
			IsRev:    isRev,
			multiLoc: ent.multiLoc(),
		}
	}

	if m := ent.multiLoc(); m != 0 {
		numFw, fwLocs, numRc, rcLocs := t.multiLocations(m)
		for i := uint32(0); i < numFw; i++ {
			if t.matchFurther(fwLocs[i], q, isRev, len(q)) {
				return Match{Kind: matchKind(!isRev), Location: fwLocs[i], IsRev: isRev, multiLoc: m}
			}
		}
		for i := uint32(0); i < numRc; i++ {
			if t.matchFurther(rcLocs[i], q, !isRev, len(q)) {
				return Match{Kind: matchKind(isRev), Location: rcLocs[i], IsRev: !isRev, multiLoc: m}
			}
		}
	}

	return Match{Kind: SeedOnlyMatched, Location: NoEntry}
}

// multiLocations decodes the overflow list of a multi-location seed.
// The compact format encodes both counts in the first word; the wide
// format indirects to a pair of 32-bit counts.
func (t *Table) multiLocations(m uint32) (numFw uint32, fwLocs []uint32, numRc uint32, rcLocs []uint32) {
	first := t.locTable[m]
	if first&0x80000000 == 0 {
		numFw = first >> 16 & 0xffff
		numRc = first & 0xffff
		fwLocs = t.locTable[m+1 : m+1+numFw]
		rcLocs = t.locTable[m+1+numFw : m+1+numFw+numRc]
		return
	}
	start := first & 0x7fffffff
	numFw = t.locTable[start]
	numRc = t.locTable[start+1]
	fwLocs = t.locTable[start+2 : start+2+numFw]
	rcLocs = t.locTable[start+2+numFw : start+2+numFw+numRc]
	return
}

// NumLocations returns the total number of locations of a match.
func (t *Table) NumLocations(m *Match) int {
	if !m.Matched() {
		return 0
	}
	if m.multiLoc == 0 {
		return 1
	}
	numFw, _, numRc, _ := t.multiLocations(m.multiLoc)
	return 1 + int(numFw) + int(numRc)
}

// Locations enumerates every location of a verified match: the entry's
// forward block first, its reverse-complement block after, each
// location verified over the full query length and de-duplicated
// against the primary. The result is then sorted stably by
// (rid, is_rev, pos) and collapsed with maskLevelRedun.
func (t *Table) Locations(ref *refseq.PackedRef, m *Match, q []byte, maskLevelRedun float64) []Hit {
	if !m.Matched() {
		return nil
	}

	hits := make([]Hit, 0, t.NumLocations(m))
	hits = t.appendHit(hits, ref, m.Location, m.IsRev, len(q))

	if m.multiLoc != 0 {
		numFw, fwLocs, numRc, rcLocs := t.multiLocations(m.multiLoc)

		// the blocks are laid out relative to the entry's orientation; a
		// match found in the rc block has the strand opposite to it
		entRev := m.IsRev
		for _, loc := range rcLocs[:numRc] {
			if loc == m.Location {
				entRev = !m.IsRev
				break
			}
		}
		hits = t.appendExtra(hits, ref, fwLocs[:numFw], m.Location, entRev, q)
		hits = t.appendExtra(hits, ref, rcLocs[:numRc], m.Location, !entRev, q)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := &hits[i], &hits[j]
		if a.Rid != b.Rid {
			return a.Rid < b.Rid
		}
		if a.IsRev != b.IsRev {
			return !a.IsRev
		}
		return a.Pos < b.Pos
	})

	return collapseNearby(hits, len(q), maskLevelRedun)
}

func (t *Table) appendHit(hits []Hit, ref *refseq.PackedRef, loc uint32, isRev bool, qLen int) []Hit {
	pos := int64(loc)
	rid := ref.PosToRid(pos)
	if rid < 0 {
		return hits
	}
	ann := &ref.Anns[rid]
	adj := pos
	if isRev && qLen != t.SeedLen {
		adj = pos - int64(qLen-t.SeedLen)
	}
	return append(hits, Hit{
		Loc:   pos,
		Pos:   adj - ann.Offset,
		Rid:   int32(rid),
		IsRev: isRev,
		IsAlt: ann.IsAlt,
	})
}

func (t *Table) appendExtra(hits []Hit, ref *refseq.PackedRef, locs []uint32, primary uint32, isRev bool, q []byte) []Hit {
	for _, loc := range locs {
		if loc == primary {
			continue
		}
		if len(q) != t.SeedLen && !t.matchFurther(loc, q, isRev, len(q)) {
			continue
		}
		hits = t.appendHit(hits, ref, loc, isRev, len(q))
	}
	return hits
}

// collapseNearby drops hits whose start lies within maskLevelRedun*qLen
// of a retained hit on the same rid and strand, keeping the leftmost.
func collapseNearby(hits []Hit, qLen int, maskLevelRedun float64) []Hit {
	if len(hits) <= 1 {
		return hits
	}
	window := int64(maskLevelRedun * float64(qLen))

	out := hits[:1]
	for i := 1; i < len(hits); i++ {
		p := &hits[i]
		last := &out[len(out)-1]
		if p.Rid == last.Rid && p.IsRev == last.IsRev &&
			p.Pos != last.Pos && p.Pos-last.Pos < window {
			continue
		}
		if p.Rid == last.Rid && p.IsRev == last.IsRev && p.Pos == last.Pos {
			continue // identical hit
		}
		out = append(out, *p)
	}
	return out
}
