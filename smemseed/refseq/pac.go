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
	"errors"
	"io"
	"os"
)

// PacFileExt is the file extension of the 2-bit packed reference,
// four bases per byte, high bits first within a byte. The final byte of
// the file stores the number of bases in the last data byte (0 meaning
// that byte is full).
const PacFileExt = ".pac"

// ErrBrokenPac means the .pac file length disagrees with its tail byte.
var ErrBrokenPac = errors.New("refseq: broken .pac file")

// PacSeqLen returns the number of bases stored in a .pac file.
func PacSeqLen(file string) (int64, error) {
	fh, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer fh.Close()

	fi, err := fh.Stat()
	if err != nil {
		return 0, err
	}
	if fi.Size() < 2 {
		return 0, ErrBrokenPac
	}

	var tail [1]byte
	if _, err = fh.ReadAt(tail[:], fi.Size()-1); err != nil {
		return 0, err
	}
	if tail[0] > 3 {
		return 0, ErrBrokenPac
	}

	// when the base count is a multiple of four, a dummy zero byte sits
	// between the data and the tail byte
	return (fi.Size()-2)*4 + int64(tail[0]), nil
}

// ReadPac expands a .pac file into one 2-bit code per byte.
func ReadPac(file string) ([]byte, error) {
	n, err := PacSeqLen(file)
	if err != nil {
		return nil, err
	}

	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	packed := make([]byte, (n+3)/4)
	if _, err = io.ReadFull(fh, packed); err != nil {
		return nil, err
	}

	bases := make([]byte, n)
	var i int64
	for i = 0; i < n; i++ {
		bases[i] = packed[i>>2] >> ((3 - (i & 3)) << 1) & 3
	}
	return bases, nil
}

// WritePac packs 2-bit codes (values must be in {0,1,2,3}) into a .pac
// file with the bwa tail-byte convention.
func WritePac(file string, bases []byte) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}

	n := int64(len(bases))
	packed := make([]byte, (n+3)/4)
	var i int64
	for i = 0; i < n; i++ {
		packed[i>>2] |= bases[i] << ((3 - (i & 3)) << 1)
	}
	if _, err = fh.Write(packed); err != nil {
		fh.Close()
		return err
	}
	if n&3 == 0 { // dummy byte so that the tail byte stays unambiguous
		if _, err = fh.Write([]byte{0}); err != nil {
			fh.Close()
			return err
		}
	}
	if _, err = fh.Write([]byte{byte(n & 3)}); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
