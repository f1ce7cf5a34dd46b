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

package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/etri/smemseed/smemseed/refseq"
	"github.com/etri/smemseed/smemseed/smem"
)

const testRef = "GTCCCGATGTCATGTCAGGAACGTACGTACGGTAGGCCATTAACGGTTTCAGACCA"

func writeTestFasta(t *testing.T, dir string) string {
	t.Helper()
	file := filepath.Join(dir, "ref.fasta")
	if err := os.WriteFile(file, []byte(">chr1\n"+testRef+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return file
}

func TestBuildAndLoad(t *testing.T) {
	dir := t.TempDir()
	fasta := writeTestFasta(t, dir)
	prefix := filepath.Join(dir, "ref")

	built, err := Build(fasta, prefix, BuildOptions{
		SaSparsity:     8,
		PerfectSeedLen: 12,
		Threads:        2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if built.Perfect == nil {
		t.Fatal("perfect table not built")
	}

	idx, err := NewFromPrefix(prefix, LoadOptions{PerfectSeedLen: 12})
	if err != nil {
		t.Fatal(err)
	}
	if idx.Perfect == nil {
		t.Fatal("perfect table not loaded")
	}
	if idx.Bwt.RefLen != built.Bwt.RefLen {
		t.Fatalf("RefLen %d != %d", idx.Bwt.RefLen, built.Bwt.RefLen)
	}

	// a full-length substring read: the perfect table answers it
	q := codesOf(testRef[10:30])
	m := idx.Perfect.Find(q)
	if !m.Matched() {
		t.Fatalf("perfect lookup failed: %v", m.Kind)
	}
	hits := idx.Perfect.Locations(idx.Ref, &m, q, 0.95)
	if len(hits) == 0 || hits[0].Loc != 10 {
		t.Fatalf("perfect hits = %+v", hits)
	}

	// the SMEM engine finds the same region
	e := idx.NewEngine(smem.DefaultOptions)
	smems := e.SmemsAllPos(q, 0, 1, nil)
	if len(smems) == 0 {
		t.Fatal("no SMEMs for a perfect read")
	}
	found := false
	for _, sm := range smems {
		if sm.M == 0 && int(sm.N) == len(q)-1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("no full-length SMEM in %+v", smems)
	}
}

func TestGracefulDegradation(t *testing.T) {
	dir := t.TempDir()
	fasta := writeTestFasta(t, dir)
	prefix := filepath.Join(dir, "ref")

	// no accel tables, no perfect table
	if _, err := Build(fasta, prefix, BuildOptions{SaSparsity: 8}); err != nil {
		t.Fatal(err)
	}

	idx, err := NewFromPrefix(prefix, LoadOptions{PerfectSeedLen: 12})
	if err != nil {
		t.Fatal(err)
	}
	if idx.All != nil || idx.Last != nil || idx.Perfect != nil {
		t.Fatal("missing tables should load as nil")
	}

	// the engine still answers queries
	e := idx.NewEngine(smem.DefaultOptions)
	smems := e.SmemsAllPos(codesOf(testRef[5:35]), 0, 1, nil)
	if len(smems) == 0 {
		t.Fatal("engine without tables found no SMEMs")
	}
}

func TestLoadRejectsMismatchedFiles(t *testing.T) {
	dir := t.TempDir()
	fasta := writeTestFasta(t, dir)
	prefix := filepath.Join(dir, "ref")

	if _, err := Build(fasta, prefix, BuildOptions{SaSparsity: 8}); err != nil {
		t.Fatal(err)
	}

	// truncate the BWT file: the loader must refuse it
	file := prefix + ".bwt.2bit.64"
	fi, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if err = os.Truncate(file, fi.Size()-13); err != nil {
		t.Fatal(err)
	}
	if _, err = NewFromPrefix(prefix, LoadOptions{}); err == nil {
		t.Fatal("loader accepted a truncated BWT file")
	}
}

func codesOf(s string) []byte {
	codes := make([]byte, len(s))
	for i := range s {
		codes[i] = refseq.Code(s[i])
	}
	return codes
}
