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
	"bufio"
	"fmt"
	"io"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
)

// AnnFileExt is the extension of the annotation sidecar.
const AnnFileExt = ".ann"

// FromFasta reads reference sequences from a FASTA file and packs them.
// Runs of non-ACGT bases are substituted with pseudo-random bases and
// recorded as Amb regions, the bwa convention.
func FromFasta(file string) (*PackedRef, error) {
	seq.ValidateSeq = false
	reader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, err
	}

	bases := make([]byte, 0, 1<<20)
	anns := make([]Ann, 0, 8)
	ambs := make([]Amb, 0, 8)

	// xorshift state for substituting ambiguous bases; fixed seed so
	// that rebuilding the index reproduces the same text
	var rng uint64 = 11

	var record *fastx.Record
	var ambStart int64 = -1
	for {
		record, err = reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		offset := int64(len(bases))
		for _, c := range record.Seq.Seq {
			b := base2bit[c]
			pos := int64(len(bases))
			if b > 3 {
				rng ^= rng << 13
				rng ^= rng >> 7
				rng ^= rng << 17
				b = byte(rng & 3)
				if ambStart < 0 {
					ambStart = pos
				}
			} else if ambStart >= 0 {
				ambs = append(ambs, Amb{Offset: ambStart, Len: pos - ambStart})
				ambStart = -1
			}
			bases = append(bases, b)
		}
		if ambStart >= 0 { // run ends with the sequence
			ambs = append(ambs, Amb{Offset: ambStart, Len: int64(len(bases)) - ambStart})
			ambStart = -1
		}

		anns = append(anns, Ann{
			Name:   string(record.ID),
			Offset: offset,
			Len:    int64(len(bases)) - offset,
		})
	}

	return NewFromBases(bases, anns, ambs)
}

// WriteAnn writes the annotation sidecar: one header line with the
// forward length and counts, then one line per sequence and one per
// ambiguity region.
func (r *PackedRef) WriteAnn(file string) error {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return err
	}
	defer outfh.Close()

	fmt.Fprintf(outfh, "%d\t%d\t%d\n", r.FwLen, len(r.Anns), len(r.Ambs))
	for _, a := range r.Anns {
		alt := 0
		if a.IsAlt {
			alt = 1
		}
		fmt.Fprintf(outfh, "%s\t%d\t%d\t%d\n", a.Name, a.Offset, a.Len, alt)
	}
	for _, a := range r.Ambs {
		fmt.Fprintf(outfh, "%d\t%d\n", a.Offset, a.Len)
	}
	return nil
}

// ReadAnn reads the annotation sidecar written by WriteAnn and attaches
// it to the receiver.
func (r *PackedRef) ReadAnn(file string) error {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return err
	}
	defer fh.Close()

	br := bufio.NewReader(fh)

	var fwLen int64
	var nAnns, nAmbs int
	if _, err = fmt.Fscanf(br, "%d\t%d\t%d\n", &fwLen, &nAnns, &nAmbs); err != nil {
		return err
	}

	anns := make([]Ann, nAnns)
	for i := range anns {
		var alt int
		if _, err = fmt.Fscanf(br, "%s\t%d\t%d\t%d\n",
			&anns[i].Name, &anns[i].Offset, &anns[i].Len, &alt); err != nil {
			return err
		}
		anns[i].IsAlt = alt == 1
	}

	ambs := make([]Amb, nAmbs)
	for i := range ambs {
		if _, err = fmt.Fscanf(br, "%d\t%d\n", &ambs[i].Offset, &ambs[i].Len); err != nil {
			return err
		}
	}

	r.Anns = anns
	r.Ambs = ambs
	return nil
}
