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
	"math/rand"
	"testing"

	"github.com/etri/smemseed/smemseed/accel"
	"github.com/etri/smemseed/smemseed/bwt"
	"github.com/etri/smemseed/smemseed/refseq"
)

func codesOf(s string) []byte {
	m := map[byte]byte{'A': 0, 'C': 1, 'G': 2, 'T': 3, 'N': 4}
	codes := make([]byte, len(s))
	for i := range s {
		codes[i] = m[s[i]]
	}
	return codes
}

// textIndex builds an index over a literal text (no doubling), for
// scenarios phrased over a plain reference string.
func textIndex(t *testing.T, text string) *bwt.Index {
	t.Helper()
	ref := &refseq.PackedRef{Seq: codesOf(text), FwLen: int64(len(text))}
	idx, err := bwt.Build(ref, 8)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

// fwIndex builds an index over a forward reference plus its reverse
// complement.
func fwIndex(t *testing.T, fw string) *bwt.Index {
	t.Helper()
	ref, err := refseq.NewFromBases(codesOf(fw), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := bwt.Build(ref, 8)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func newTestEngine(idx *bwt.Index, minSeedLen int32) *Engine {
	opt := DefaultOptions
	opt.MinSeedLen = minSeedLen
	return NewEngine(idx, opt)
}

func TestScenarioACGT(t *testing.T) {
	// doubled text of reference ACGT; one SMEM of length 4 covering
	// [0,3] with interval size 2
	idx := textIndex(t, "ACGTACGT")
	e := newTestEngine(idx, 4)

	smems := e.SmemsAllPos(codesOf("ACGT"), 0, 1, nil)
	if len(smems) != 1 {
		t.Fatalf("%d SMEMs, want 1: %+v", len(smems), smems)
	}
	sm := smems[0]
	if sm.M != 0 || sm.N != 3 || sm.S != 2 {
		t.Fatalf("SMEM = %+v, want [0,3] s=2", sm)
	}
}

func TestScenarioPolyA(t *testing.T) {
	// reference AAAAA, query AA: one SMEM of length 2, interval size 4
	idx := fwIndex(t, "AAAAA")
	e := newTestEngine(idx, 1)

	smems := e.SmemsAllPos(codesOf("AA"), 0, 1, nil)
	if len(smems) != 1 {
		t.Fatalf("%d SMEMs, want 1: %+v", len(smems), smems)
	}
	sm := smems[0]
	if sm.Len() != 2 || sm.S != 4 {
		t.Fatalf("SMEM = %+v, want length 2 s=4", sm)
	}
}

func TestNSplitsQuery(t *testing.T) {
	// an N splits the query into two independent seeding runs
	idx := fwIndex(t, "GTCCCGATGTCATGTCAGGAACGTACGTACGGTA")
	e := newTestEngine(idx, 5)

	left := "GTCCCGATGT"
	right := "CATGTCAGGA"
	qN := codesOf(left + "N" + right)

	smems := e.SmemsAllPos(qN, 0, 1, nil)

	// no SMEM may span the N at position 10
	for _, sm := range smems {
		if sm.M <= 10 && sm.N >= 10 {
			t.Fatalf("SMEM %+v spans the N", sm)
		}
	}

	// the two halves alone produce as many SMEMs as the split query
	lhs := e.SmemsAllPos(codesOf(left), 0, 1, nil)
	rhs := e.SmemsAllPos(codesOf(right), 0, 1, nil)
	if len(smems) != len(lhs)+len(rhs) {
		t.Fatalf("%d SMEMs, want %d+%d", len(smems), len(lhs), len(rhs))
	}
}

func TestShortReadNoSMEM(t *testing.T) {
	idx := fwIndex(t, "GTCCCGATGTCATGTCAGGA")
	e := newTestEngine(idx, 19)

	smems := e.SmemsAllPos(codesOf("GTCCCGAT"), 0, 1, nil)
	if len(smems) != 0 {
		t.Fatalf("read shorter than minSeedLen produced %d SMEMs", len(smems))
	}
}

func TestSmemsMatchReference(t *testing.T) {
	// every emitted SMEM must be an exact match of the query substring
	fw := "GTCCCGATGTCATGTCAGGAACGTACGTACGGTAGGCCATTAACGGTTTCAGACCA"
	idx := fwIndex(t, fw)
	e := newTestEngine(idx, 5)

	rng := rand.New(rand.NewSource(6))
	ref, _ := refseq.NewFromBases(codesOf(fw), nil, nil)
	text := ref.Seq

	for trial := 0; trial < 50; trial++ {
		// sample a read from the reference with the ends perturbed
		start := rng.Intn(len(fw) - 20)
		end := start + 10 + rng.Intn(len(fw)-start-10)
		q := append([]byte{}, codesOf(fw)[start:end]...)
		if len(q) > 0 {
			q[rng.Intn(len(q))] = byte(rng.Intn(4))
		}

		var smems []SMEM
		smems = e.SmemsAllPos(q, int32(trial), 1, smems)
		for _, sm := range smems {
			if sm.Rid != int32(trial) {
				t.Fatalf("rid = %d, want %d", sm.Rid, trial)
			}
			coords := idx.Locate(bwt.Interval{K: sm.K, L: sm.L, S: sm.S}, 1000)
			if int64(len(coords)) != sm.S {
				t.Fatalf("resolved %d coords for s=%d", len(coords), sm.S)
			}
			for _, pos := range coords {
				for i := sm.M; i <= sm.N; i++ {
					if text[pos+int64(i-sm.M)] != q[i] {
						t.Fatalf("SMEM %+v does not match reference at %d", sm, pos)
					}
				}
			}
		}
	}
}

func TestAccelMatchesPerBaseLoop(t *testing.T) {
	// the all-SMEM accelerator must not change any output
	fw := "GTCCCGATGTCATGTCAGGAACGTACGTACGGTAGGCCATTAACGGTTTCAGACCA"
	idx := fwIndex(t, fw)

	all := accel.BuildAllSmemTable(idx, nil)

	plain := newTestEngine(idx, 5)
	fast := newTestEngine(idx, 5)
	fast.AttachTables(all, nil)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 100; trial++ {
		n := 12 + rng.Intn(30)
		q := make([]byte, n)
		for i := range q {
			q[i] = byte(rng.Intn(4))
		}
		if trial%3 == 0 {
			q[rng.Intn(n)] = 4 // sprinkle an N
		}

		a := plain.SmemsAllPos(q, 0, 1, nil)
		b := fast.SmemsAllPos(q, 0, 1, nil)

		if len(a) != len(b) {
			t.Fatalf("query %v: %d vs %d SMEMs", q, len(a), len(b))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("query %v: SMEM %d: %+v vs %+v", q, i, a[i], b[i])
			}
		}
	}
}

func TestBwtSeedStrategy(t *testing.T) {
	fw := "GTCCCGATGTCATGTCAGGAACGTACGTACGGTAGGCCATTAACGGTTTCAGACCA"
	idx := fwIndex(t, fw)
	e := newTestEngine(idx, 5)

	q := codesOf(fw[10:40])
	seeds := e.BwtSeedStrategy(q, 0, 500, nil)
	if len(seeds) == 0 {
		t.Fatal("no seeds emitted")
	}
	for _, sm := range seeds {
		if sm.S <= 0 || sm.S >= 500 {
			t.Fatalf("seed %+v outside (0, maxIntv)", sm)
		}
		if sm.Len() < 5 {
			t.Fatalf("seed %+v shorter than minSeedLen", sm)
		}
	}

}

func TestBwtSeedStrategyAccel(t *testing.T) {
	// queries starting with an A-run have small table keys and hit the
	// partial accelerator; everything else falls back to the per-base
	// loop, which must agree either way. The full 4^13 enumeration is
	// too large for a unit test, and partially loaded tables are
	// supported anyway.
	fw := "AAAAAAAAGGTCCCGATGTCATGTCAGGAACGTACGTACGGTAAAAAAACCTT"
	idx := fwIndex(t, fw)

	// keys with at least six leading A bases
	last := accel.BuildLastSmemTablePartial(idx, 1<<14, nil)

	plain := newTestEngine(idx, 19)
	fast := newTestEngine(idx, 19)
	fast.AttachTables(nil, last)

	rng := rand.New(rand.NewSource(8))
	for trial := 0; trial < 100; trial++ {
		n := 22 + rng.Intn(25)
		q := make([]byte, n)
		run := rng.Intn(10)
		for i := range q {
			if i < run {
				q[i] = 0
			} else {
				q[i] = byte(rng.Intn(4))
			}
		}

		a := plain.BwtSeedStrategy(q, 0, 500, nil)
		b := fast.BwtSeedStrategy(q, 0, 500, nil)
		if len(a) != len(b) {
			t.Fatalf("query %v: %d vs %d seeds", q, len(a), len(b))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("query %v: seed %d: %+v vs %+v", q, i, a[i], b[i])
			}
		}
	}
}

func TestSortSMEMs(t *testing.T) {
	smems := []SMEM{
		{Rid: 1, M: 0, N: 5},
		{Rid: 0, M: 3, N: 9},
		{Rid: 0, M: 3, N: 12},
		{Rid: 0, M: 1, N: 2},
	}
	SortSMEMs(smems)

	want := []SMEM{
		{Rid: 0, M: 1, N: 2},
		{Rid: 0, M: 3, N: 12},
		{Rid: 0, M: 3, N: 9},
		{Rid: 1, M: 0, N: 5},
	}
	for i := range want {
		if smems[i] != want[i] {
			t.Fatalf("order[%d] = %+v, want %+v", i, smems[i], want[i])
		}
	}
}

func TestFilterContained(t *testing.T) {
	smems := []SMEM{
		{Rid: 0, M: 0, N: 20},
		{Rid: 0, M: 2, N: 10}, // contained
		{Rid: 0, M: 15, N: 30},
		{Rid: 1, M: 2, N: 10}, // different read, kept
	}
	out := FilterContained(smems)
	if len(out) != 3 {
		t.Fatalf("%d SMEMs kept, want 3: %+v", len(out), out)
	}
	for _, sm := range out {
		if sm.Rid == 0 && sm.M == 2 {
			t.Fatal("contained SMEM survived")
		}
	}
}

func TestResolveSeeds(t *testing.T) {
	fw := "GTCCCGATGTCATGTCAGGAACGTACGTACGGTA"
	idx := fwIndex(t, fw)
	e := newTestEngine(idx, 5)

	q := codesOf(fw[5:25])
	smems := e.SmemsAllPos(q, 0, 1, nil)
	seeds := e.ResolveSeeds(smems, 10)
	if len(seeds) == 0 {
		t.Fatal("no seeds resolved")
	}

	ref, _ := refseq.NewFromBases(codesOf(fw), nil, nil)
	for _, sd := range seeds {
		for i := sd.M; i <= sd.N; i++ {
			if ref.Seq[sd.Pos+int64(i-sd.M)] != q[i] {
				t.Fatalf("seed %+v mismatches reference", sd)
			}
		}
	}
}

func TestMaxOccCapsLocations(t *testing.T) {
	idx := fwIndex(t, "AAAAAAAA")
	e := newTestEngine(idx, 1)

	smems := e.SmemsAllPos(codesOf("AA"), 0, 1, nil)
	seeds := e.ResolveSeeds(smems, 3)
	perSmem := map[int32]int{}
	for _, sd := range seeds {
		perSmem[sd.M]++
	}
	for m, n := range perSmem {
		if n > 3 {
			t.Fatalf("SMEM at %d resolved %d locations, cap 3", m, n)
		}
	}
}
