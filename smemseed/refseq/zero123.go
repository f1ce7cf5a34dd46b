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
	"io"
	"os"
)

// RefFileExt is the extension of the expanded reference file: one base
// per byte with values in {0,1,2,3}, forward strand then reverse
// complement, no sentinel.
const RefFileExt = ".0123"

// WriteRef writes the doubled 2-bit text of a PackedRef.
func (r *PackedRef) WriteRef(file string) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(fh, 1<<20)
	if _, err = w.Write(r.Seq); err != nil {
		fh.Close()
		return err
	}
	if err = w.Flush(); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// ReadRef reads a .0123 file written by WriteRef. Annotations are not
// stored in this file; pass them from the sidecar if needed.
func ReadRef(file string) (*PackedRef, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	fi, err := fh.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 || fi.Size()&1 == 1 {
		return nil, ErrEmptyRef
	}

	seq := make([]byte, fi.Size())
	if _, err = io.ReadFull(bufio.NewReaderSize(fh, 1<<20), seq); err != nil {
		return nil, err
	}

	n := fi.Size() >> 1
	return &PackedRef{
		Seq:   seq,
		FwLen: n,
		Anns:  []Ann{{Name: "ref", Offset: 0, Len: n}},
	}, nil
}
