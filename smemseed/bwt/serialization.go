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

package bwt

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// FileExt is the extension of the checkpointed BWT file.
const FileExt = ".bwt.2bit.64"

var le = binary.LittleEndian

// ErrInvalidFileFormat means the file length disagrees with its header.
var ErrInvalidFileFormat = errors.New("bwt: invalid binary format")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("bwt: broken file")

// WriteToFile writes the index in the on-disk layout:
//
//	reference length (n+1), int64
//	cumulative counts C[0..4], 5 x int64 (raw, without the sentinel)
//	checkpoint blocks, 64 bytes each: 4 x int64 counts, 4 x uint64 one-hot
//	sampled SA high bytes
//	sampled SA low 32-bit words
//	sentinel index, int64
//
// All fields little-endian.
func (idx *Index) WriteToFile(file string) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(fh, 1<<20)

	buf := make([]byte, 64)

	le.PutUint64(buf[:8], uint64(idx.RefLen))
	if _, err = w.Write(buf[:8]); err != nil {
		fh.Close()
		return err
	}
	for i := 0; i < 5; i++ {
		le.PutUint64(buf[i*8:i*8+8], uint64(idx.C[i]-1))
	}
	if _, err = w.Write(buf[:40]); err != nil {
		fh.Close()
		return err
	}

	for i := range idx.CpOcc {
		blk := &idx.CpOcc[i]
		for j := 0; j < 4; j++ {
			le.PutUint64(buf[j*8:], uint64(blk.Count[j]))
		}
		for j := 0; j < 4; j++ {
			le.PutUint64(buf[32+j*8:], blk.OneHot[j])
		}
		if _, err = w.Write(buf[:64]); err != nil {
			fh.Close()
			return err
		}
	}

	if _, err = w.Write(idx.SaHi); err != nil {
		fh.Close()
		return err
	}
	for _, v := range idx.SaLo {
		le.PutUint32(buf[:4], v)
		if _, err = w.Write(buf[:4]); err != nil {
			fh.Close()
			return err
		}
	}

	le.PutUint64(buf[:8], uint64(idx.SentinelIdx))
	if _, err = w.Write(buf[:8]); err != nil {
		fh.Close()
		return err
	}

	if err = w.Flush(); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// NewFromFile loads an index written by WriteToFile. The SA sampling
// interval is recovered from the stream sizes, so the file carries no
// explicit sparsity field.
func NewFromFile(file string) (*Index, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	fi, err := fh.Stat()
	if err != nil {
		return nil, err
	}

	r := bufio.NewReaderSize(fh, 1<<20)
	buf := make([]byte, 64)

	if _, err = io.ReadFull(r, buf[:8]); err != nil {
		return nil, ErrBrokenFile
	}
	refLen := int64(le.Uint64(buf[:8]))
	if refLen <= 0 || refLen > 0x7fffffffff {
		return nil, ErrInvalidFileFormat
	}

	idx := &Index{RefLen: refLen}

	if _, err = io.ReadFull(r, buf[:40]); err != nil {
		return nil, ErrBrokenFile
	}
	for i := 0; i < 5; i++ {
		idx.C[i] = int64(le.Uint64(buf[i*8:i*8+8])) + 1
	}

	nBlocks := refLen>>cpShift + 1
	idx.CpOcc = make([]CpOcc, nBlocks)
	for i := int64(0); i < nBlocks; i++ {
		if _, err = io.ReadFull(r, buf[:64]); err != nil {
			return nil, ErrBrokenFile
		}
		blk := &idx.CpOcc[i]
		for j := 0; j < 4; j++ {
			blk.Count[j] = int64(le.Uint64(buf[j*8:]))
		}
		for j := 0; j < 4; j++ {
			blk.OneHot[j] = le.Uint64(buf[32+j*8:])
		}
	}

	// the remaining bytes are the two sampled-SA streams plus the
	// trailing sentinel index: 5 bytes per sampled entry
	rem := fi.Size() - 8 - 40 - nBlocks*64 - 8
	if rem <= 0 || rem%5 != 0 {
		return nil, ErrInvalidFileFormat
	}
	nSampled := rem / 5

	idx.Sparsity = 0
	for shift := uint(1); shift <= 20; shift++ {
		if refLen>>shift+1 == nSampled {
			idx.Sparsity = 1 << shift
			break
		}
	}
	if idx.Sparsity == 0 {
		return nil, ErrInvalidFileFormat
	}

	idx.SaHi = make([]uint8, nSampled)
	if _, err = io.ReadFull(r, idx.SaHi); err != nil {
		return nil, ErrBrokenFile
	}
	idx.SaLo = make([]uint32, nSampled)
	lobuf := make([]byte, 4*4096)
	var read int64
	for read < nSampled {
		chunk := int64(len(lobuf) / 4)
		if nSampled-read < chunk {
			chunk = nSampled - read
		}
		if _, err = io.ReadFull(r, lobuf[:chunk*4]); err != nil {
			return nil, ErrBrokenFile
		}
		for j := int64(0); j < chunk; j++ {
			idx.SaLo[read+j] = le.Uint32(lobuf[j*4:])
		}
		read += chunk
	}

	if _, err = io.ReadFull(r, buf[:8]); err != nil {
		return nil, ErrBrokenFile
	}
	idx.SentinelIdx = int64(le.Uint64(buf[:8]))
	if idx.SentinelIdx < 0 || idx.SentinelIdx >= refLen {
		return nil, ErrInvalidFileFormat
	}

	idx.initMasks()
	return idx, nil
}
