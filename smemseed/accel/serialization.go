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

package accel

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// File suffixes carry the indexed width. Both the writer and the reader
// use the .last_smem prefix for the last-SMEM table.
const (
	AllSmemFileSuffix  = ".all_smem"
	LastSmemFileSuffix = ".last_smem"
)

// AllSmemFile returns the all-SMEM table path for an index prefix.
func AllSmemFile(prefix string) string {
	return fmt.Sprintf("%s%s.%d", prefix, AllSmemFileSuffix, AllSmemBp)
}

// LastSmemFile returns the last-SMEM table path for an index prefix.
func LastSmemFile(prefix string) string {
	return fmt.Sprintf("%s%s.%d", prefix, LastSmemFileSuffix, LastSmemBp)
}

// Entries are written as flat fixed-size records, no header. An
// all-SMEM entry occupies two cache lines; a last-SMEM entry 16 bytes.
const (
	allSmemEntrySize  = 128
	lastSmemEntrySize = 16
)

var le = binary.LittleEndian

// ErrInvalidFileFormat means the file length does not match the
// expected flat array size.
var ErrInvalidFileFormat = errors.New("accel: invalid binary format")

func encodeLastSmem(b []byte, e LastSmemEntry) {
	b[0] = e.Bp
	b[1] = uint8(e.K >> 32)
	b[2] = uint8(e.L >> 32)
	b[3] = uint8(e.S >> 32)
	le.PutUint32(b[4:], uint32(e.K))
	le.PutUint32(b[8:], uint32(e.L))
	le.PutUint32(b[12:], uint32(e.S))
}

func decodeLastSmem(b []byte) LastSmemEntry {
	return LastSmemEntry{
		Bp: b[0],
		K:  int64(int8(b[1]))<<32 | int64(le.Uint32(b[4:])),
		L:  int64(int8(b[2]))<<32 | int64(le.Uint32(b[8:])),
		S:  int64(int8(b[3]))<<32 | int64(le.Uint32(b[12:])),
	}
}

// WriteToFile writes the all-SMEM table as a flat array of 128-byte
// entries.
func (t *AllSmemTable) WriteToFile(file string) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(fh, 1<<20)

	buf := make([]byte, allSmemEntrySize)
	for i := range t.Entries {
		ent := &t.Entries[i]
		le.PutUint32(buf[0:], ent.LastAvail)
		for j, s := range ent.List {
			off := 4 + j*12
			le.PutUint32(buf[off:], s.K32)
			le.PutUint32(buf[off+4:], s.L32)
			le.PutUint32(buf[off+8:], s.S32)
		}
		if _, err = w.Write(buf); err != nil {
			fh.Close()
			return err
		}
	}

	if err = w.Flush(); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// NewAllSmemFromFile loads an all-SMEM table.
func NewAllSmemFromFile(file string) (*AllSmemTable, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	fi, err := fh.Stat()
	if err != nil {
		return nil, err
	}
	// partial tables (memory-scaled loads) are allowed; the number of
	// entries follows from the file size
	if fi.Size() == 0 || fi.Size()%allSmemEntrySize != 0 {
		return nil, ErrInvalidFileFormat
	}
	num := fi.Size() / allSmemEntrySize

	r := bufio.NewReaderSize(fh, 1<<20)
	t := &AllSmemTable{Entries: make([]AllSmemEntry, num)}
	buf := make([]byte, allSmemEntrySize)
	for i := int64(0); i < num; i++ {
		if _, err = io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		ent := &t.Entries[i]
		ent.LastAvail = le.Uint32(buf[0:])
		for j := range ent.List {
			off := 4 + j*12
			ent.List[j] = AllSmemStep{
				K32: le.Uint32(buf[off:]),
				L32: le.Uint32(buf[off+4:]),
				S32: le.Uint32(buf[off+8:]),
			}
		}
	}
	return t, nil
}

// WriteToFile writes the last-SMEM table as a flat array of 16-byte
// entries.
func (t *LastSmemTable) WriteToFile(file string) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(fh, 1<<20)
	if _, err = w.Write(t.Data); err != nil {
		fh.Close()
		return err
	}
	if err = w.Flush(); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// NewLastSmemFromFile loads a last-SMEM table.
func NewLastSmemFromFile(file string) (*LastSmemTable, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	fi, err := fh.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 || fi.Size()%lastSmemEntrySize != 0 {
		return nil, ErrInvalidFileFormat
	}

	data := make([]byte, fi.Size())
	if _, err = io.ReadFull(bufio.NewReaderSize(fh, 1<<20), data); err != nil {
		return nil, err
	}
	return &LastSmemTable{Data: data}, nil
}
