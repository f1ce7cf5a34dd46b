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

package refseq

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewFromBases(t *testing.T) {
	// ACGT -> doubled ACGTACGT (ACGT is its own reverse complement)
	ref, err := NewFromBases([]byte{0, 1, 2, 3}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ref.FwLen != 4 || ref.Len() != 8 {
		t.Fatalf("lengths: fw %d doubled %d", ref.FwLen, ref.Len())
	}
	want := []byte{0, 1, 2, 3, 0, 1, 2, 3}
	for i, b := range ref.Seq {
		if b != want[i] {
			t.Errorf("Seq[%d] = %d, want %d", i, b, want[i])
		}
	}

	// AAC -> doubled AACGTT
	ref, _ = NewFromBases([]byte{0, 0, 1}, nil, nil)
	want = []byte{0, 0, 1, 2, 3, 3}
	for i, b := range ref.Seq {
		if b != want[i] {
			t.Errorf("AAC Seq[%d] = %d, want %d", i, b, want[i])
		}
	}
}

func TestPacRoundTrip(t *testing.T) {
	dir := t.TempDir()

	for _, n := range []int{1, 3, 4, 5, 8, 33, 1000} {
		bases := make([]byte, n)
		for i := range bases {
			bases[i] = byte(i * 7 % 4)
		}

		file := filepath.Join(dir, "test.pac")
		if err := WritePac(file, bases); err != nil {
			t.Fatal(err)
		}

		m, err := PacSeqLen(file)
		if err != nil {
			t.Fatal(err)
		}
		if m != int64(n) {
			t.Fatalf("n=%d: PacSeqLen = %d", n, m)
		}

		got, err := ReadPac(file)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != n {
			t.Fatalf("n=%d: read %d bases", n, len(got))
		}
		for i := range got {
			if got[i] != bases[i] {
				t.Fatalf("n=%d: base %d = %d, want %d", n, i, got[i], bases[i])
			}
		}
	}
}

func TestRefFileRoundTrip(t *testing.T) {
	dir := t.TempDir()

	ref, _ := NewFromBases([]byte{0, 1, 2, 3, 1, 1}, nil, nil)
	file := filepath.Join(dir, "test.0123")
	if err := ref.WriteRef(file); err != nil {
		t.Fatal(err)
	}

	got, err := ReadRef(file)
	if err != nil {
		t.Fatal(err)
	}
	if got.FwLen != ref.FwLen {
		t.Fatalf("FwLen = %d, want %d", got.FwLen, ref.FwLen)
	}
	for i := range ref.Seq {
		if got.Seq[i] != ref.Seq[i] {
			t.Errorf("Seq[%d] = %d, want %d", i, got.Seq[i], ref.Seq[i])
		}
	}
}

func TestFromFasta(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ref.fasta")
	fasta := ">chr1 test\nACGTNNACGT\n>chr2\nGGGG\n"
	if err := os.WriteFile(file, []byte(fasta), 0644); err != nil {
		t.Fatal(err)
	}

	ref, err := FromFasta(file)
	if err != nil {
		t.Fatal(err)
	}

	if ref.FwLen != 14 {
		t.Fatalf("FwLen = %d, want 14", ref.FwLen)
	}
	if len(ref.Anns) != 2 {
		t.Fatalf("%d annotations", len(ref.Anns))
	}
	if ref.Anns[0].Name != "chr1" || ref.Anns[0].Len != 10 {
		t.Errorf("ann[0] = %+v", ref.Anns[0])
	}
	if ref.Anns[1].Offset != 10 || ref.Anns[1].Len != 4 {
		t.Errorf("ann[1] = %+v", ref.Anns[1])
	}
	if len(ref.Ambs) != 1 || ref.Ambs[0].Offset != 4 || ref.Ambs[0].Len != 2 {
		t.Fatalf("ambs = %+v", ref.Ambs)
	}

	// substituted bases must be valid codes
	for i, b := range ref.Seq {
		if b > 3 {
			t.Fatalf("Seq[%d] = %d", i, b)
		}
	}

	if ref.PosToRid(3) != 0 || ref.PosToRid(10) != 1 || ref.PosToRid(99) != -1 {
		t.Error("PosToRid mapping wrong")
	}

	// annotation sidecar round trip
	annFile := filepath.Join(dir, "ref.ann")
	if err = ref.WriteAnn(annFile); err != nil {
		t.Fatal(err)
	}
	other := &PackedRef{Seq: ref.Seq, FwLen: ref.FwLen}
	if err = other.ReadAnn(annFile); err != nil {
		t.Fatal(err)
	}
	if len(other.Anns) != 2 || other.Anns[1].Name != "chr2" {
		t.Fatalf("reloaded anns = %+v", other.Anns)
	}
	if len(other.Ambs) != 1 || other.Ambs[0].Offset != 4 {
		t.Fatalf("reloaded ambs = %+v", other.Ambs)
	}
}

func TestRevCompBases(t *testing.T) {
	s := []byte{0, 1, 2, 3} // ACGT -> revcomp ACGT
	RevCompBases(s)
	for i, b := range []byte{0, 1, 2, 3} {
		if s[i] != b {
			t.Fatalf("s[%d] = %d", i, s[i])
		}
	}

	s = []byte{0, 0, 2} // AAG -> CTT
	RevCompBases(s)
	for i, b := range []byte{1, 3, 3} {
		if s[i] != b {
			t.Fatalf("AAG: s[%d] = %d, want %d", i, s[i], b)
		}
	}
}
