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
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// FileSuffix carries the seed length: prefix + ".perfect." + L.
const FileSuffix = ".perfect"

// FileName returns the table path for an index prefix and seed length.
func FileName(prefix string, seedLen int) string {
	return fmt.Sprintf("%s%s.%d", prefix, FileSuffix, seedLen)
}

// Magic number for checking file format
var Magic = [8]byte{'p', 'e', 'r', 'f', 'e', 'c', 't', 't'}

// MainVersion is used for checking compatibility
var MainVersion uint8 = 0

// MinorVersion is less important
var MinorVersion uint8 = 1

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("perfect: invalid binary format")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("perfect: broken file")

// ErrVersionMismatch means version mismatch between file and program.
var ErrVersionMismatch = errors.New("perfect: version mismatch")

const headerSize = 64
const entrySize = 16

var le = binary.LittleEndian

// WriteToFile writes the table:
//
//	header, 64 bytes: magic, versions, seed_len, seq_len,
//	    num_loc_entry, num_seed_entry, num_used, num_keys
//	location table, 4 bytes per entry
//	seed table, 16 bytes per entry: flags, location, left, right
//
// All fields little-endian.
func (t *Table) WriteToFile(file string) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(fh, 1<<20)

	hdr := make([]byte, headerSize)
	copy(hdr, Magic[:])
	hdr[8] = MainVersion
	hdr[9] = MinorVersion
	le.PutUint32(hdr[16:], uint32(t.SeedLen))
	le.PutUint32(hdr[20:], t.SeqLen)
	le.PutUint32(hdr[24:], t.NumLocEntry)
	le.PutUint32(hdr[28:], t.NumSeedEntry)
	le.PutUint32(hdr[32:], t.NumUsed)
	le.PutUint32(hdr[36:], t.NumKeys)
	if _, err = w.Write(hdr); err != nil {
		fh.Close()
		return err
	}

	buf := make([]byte, 4)
	for _, v := range t.locTable {
		le.PutUint32(buf, v)
		if _, err = w.Write(buf); err != nil {
			fh.Close()
			return err
		}
	}

	ebuf := make([]byte, entrySize)
	for i := range t.seeds {
		e := &t.seeds[i]
		le.PutUint32(ebuf[0:], e.flags)
		le.PutUint32(ebuf[4:], e.location)
		le.PutUint32(ebuf[8:], e.left)
		le.PutUint32(ebuf[12:], e.right)
		if _, err = w.Write(ebuf); err != nil {
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

// LoadOptions control loading.
type LoadOptions struct {
	// MaxEntries limits how many seed entries are loaded; 0 loads all.
	// A partially loaded table reports "absent" for any probe whose
	// slot lies past the loaded prefix.
	MaxEntries uint32
}

// NewFromFile loads a table written by WriteToFile.
func NewFromFile(file string, opt LoadOptions) (*Table, error) {
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

	hdr := make([]byte, headerSize)
	if _, err = io.ReadFull(r, hdr); err != nil {
		return nil, ErrBrokenFile
	}
	for i := range Magic {
		if hdr[i] != Magic[i] {
			return nil, ErrInvalidFileFormat
		}
	}
	if hdr[8] != MainVersion {
		return nil, ErrVersionMismatch
	}

	t := &Table{
		SeedLen:      int(le.Uint32(hdr[16:])),
		SeqLen:       le.Uint32(hdr[20:]),
		NumLocEntry:  le.Uint32(hdr[24:]),
		NumSeedEntry: le.Uint32(hdr[28:]),
		NumUsed:      le.Uint32(hdr[32:]),
		NumKeys:      le.Uint32(hdr[36:]),
	}
	if t.SeedLen <= 0 || t.NumSeedEntry == 0 {
		return nil, ErrInvalidFileFormat
	}

	want := int64(headerSize) + int64(t.NumLocEntry)*4 + int64(t.NumSeedEntry)*entrySize
	if fi.Size() != want {
		return nil, ErrInvalidFileFormat
	}

	t.locTable = make([]uint32, t.NumLocEntry)
	lbuf := make([]byte, 4*4096)
	var read uint32
	for read < t.NumLocEntry {
		chunk := uint32(len(lbuf) / 4)
		if t.NumLocEntry-read < chunk {
			chunk = t.NumLocEntry - read
		}
		if _, err = io.ReadFull(r, lbuf[:chunk*4]); err != nil {
			return nil, ErrBrokenFile
		}
		for j := uint32(0); j < chunk; j++ {
			t.locTable[read+j] = le.Uint32(lbuf[j*4:])
		}
		read += chunk
	}

	t.NumSeedLoaded = t.NumSeedEntry
	if opt.MaxEntries > 0 && opt.MaxEntries < t.NumSeedEntry {
		t.NumSeedLoaded = opt.MaxEntries
	}

	t.seeds = make([]seedEntry, t.NumSeedLoaded)
	ebuf := make([]byte, entrySize)
	for i := uint32(0); i < t.NumSeedLoaded; i++ {
		if _, err = io.ReadFull(r, ebuf); err != nil {
			return nil, ErrBrokenFile
		}
		t.seeds[i] = seedEntry{
			flags:    le.Uint32(ebuf[0:]),
			location: le.Uint32(ebuf[4:]),
			left:     le.Uint32(ebuf[8:]),
			right:    le.Uint32(ebuf[12:]),
		}
	}

	return t, nil
}
