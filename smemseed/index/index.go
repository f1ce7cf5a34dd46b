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

// Package index assembles the index components under one file prefix:
// packed reference, checkpointed BWT, acceleration tables and the
// optional perfect-match table. Tables are feature toggles: a missing
// file degrades the engine instead of failing the load.
package index

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"

	"github.com/etri/smemseed/smemseed/accel"
	"github.com/etri/smemseed/smemseed/bwt"
	"github.com/etri/smemseed/smemseed/perfect"
	"github.com/etri/smemseed/smemseed/refseq"
	"github.com/etri/smemseed/smemseed/smem"
)

// Index bundles one immutable view of every component.
type Index struct {
	Ref *refseq.PackedRef
	Bwt *bwt.Index

	// optional
	All     *accel.AllSmemTable
	Last    *accel.LastSmemTable
	Perfect *perfect.Table
}

// BuildOptions configure offline construction.
type BuildOptions struct {
	SaSparsity int64
	// BuildAccel enables the two SMEM acceleration tables.
	BuildAccel bool
	// PerfectSeedLen enables the perfect-match table when > 0.
	PerfectSeedLen int
	PerfectSlack   float64
	Threads        int

	// AccelProgress and PerfectProgress, when non-nil, receive build
	// progress for the enumeration and insertion phases.
	AccelProgress   func(table string, done, total int64)
	PerfectProgress func(done, total int64)
}

// DefaultBuildOptions are the shipped defaults.
var DefaultBuildOptions = BuildOptions{
	SaSparsity:   bwt.DefaultSparsity,
	PerfectSlack: 1.1,
}

// Build constructs every component from a FASTA reference and writes
// one binary file per component under the prefix.
func Build(fastaFile, prefix string, opt BuildOptions) (*Index, error) {
	if opt.SaSparsity <= 0 {
		opt.SaSparsity = bwt.DefaultSparsity
	}
	if opt.PerfectSlack <= 1.0 {
		opt.PerfectSlack = DefaultBuildOptions.PerfectSlack
	}

	ref, err := refseq.FromFasta(fastaFile)
	if err != nil {
		return nil, errors.Wrap(err, fastaFile)
	}

	idx := &Index{Ref: ref}

	// packed reference, .pac and annotation sidecar
	if err = ref.WriteRef(prefix + refseq.RefFileExt); err != nil {
		return nil, err
	}
	if err = refseq.WritePac(prefix+refseq.PacFileExt, ref.Fw()); err != nil {
		return nil, err
	}
	if err = ref.WriteAnn(prefix + refseq.AnnFileExt); err != nil {
		return nil, err
	}

	// BWT, checkpoints and sampled SA
	idx.Bwt, err = bwt.Build(ref, opt.SaSparsity)
	if err != nil {
		return nil, err
	}
	if err = idx.Bwt.WriteToFile(prefix + bwt.FileExt); err != nil {
		return nil, err
	}

	if opt.BuildAccel {
		var progAll, progLast func(int64)
		if opt.AccelProgress != nil {
			progAll = func(done int64) {
				opt.AccelProgress("all_smem", done, accel.NumEntries(accel.AllSmemBp))
			}
			progLast = func(done int64) {
				opt.AccelProgress("last_smem", done, accel.NumEntries(accel.LastSmemBp))
			}
		}

		idx.All = accel.BuildAllSmemTable(idx.Bwt, progAll)
		if err = idx.All.WriteToFile(accel.AllSmemFile(prefix)); err != nil {
			return nil, err
		}
		idx.Last = accel.BuildLastSmemTable(idx.Bwt, progLast)
		if err = idx.Last.WriteToFile(accel.LastSmemFile(prefix)); err != nil {
			return nil, err
		}
	}

	if opt.PerfectSeedLen > 0 {
		idx.Perfect, err = perfect.Build(ref, perfect.BuildOptions{
			SeedLen:  opt.PerfectSeedLen,
			Slack:    opt.PerfectSlack,
			Threads:  opt.Threads,
			Progress: opt.PerfectProgress,
		})
		if err != nil {
			return nil, err
		}
		if err = idx.Perfect.WriteToFile(perfect.FileName(prefix, opt.PerfectSeedLen)); err != nil {
			return nil, err
		}
	}

	return idx, nil
}

// LoadOptions configure loading.
type LoadOptions struct {
	// PerfectSeedLen selects the .perfect.<L> file; 0 disables the
	// perfect-match path.
	PerfectSeedLen int
	// PerfectMaxEntries partially loads the seed table when the
	// backing store is size-limited; 0 loads everything.
	PerfectMaxEntries uint32
	// NoAccel skips the acceleration tables even when present.
	NoAccel bool
}

// NewFromPrefix loads an index. The BWT and the packed reference are
// required; each table is attached only when its file exists.
func NewFromPrefix(prefix string, opt LoadOptions) (*Index, error) {
	idx := &Index{}

	var err error
	idx.Ref, err = refseq.ReadRef(prefix + refseq.RefFileExt)
	if err != nil {
		return nil, errors.Wrap(err, "loading packed reference")
	}
	if ok, _ := pathutil.Exists(prefix + refseq.AnnFileExt); ok {
		if err = idx.Ref.ReadAnn(prefix + refseq.AnnFileExt); err != nil {
			return nil, errors.Wrap(err, "loading annotations")
		}
	}

	idx.Bwt, err = bwt.NewFromFile(prefix + bwt.FileExt)
	if err != nil {
		return nil, errors.Wrap(err, "loading BWT index")
	}
	if idx.Bwt.RefLen != idx.Ref.Len()+1 {
		return nil, fmt.Errorf("index: BWT length %d does not match reference length %d",
			idx.Bwt.RefLen, idx.Ref.Len()+1)
	}

	if !opt.NoAccel {
		if ok, _ := pathutil.Exists(accel.AllSmemFile(prefix)); ok {
			idx.All, err = accel.NewAllSmemFromFile(accel.AllSmemFile(prefix))
			if err != nil {
				return nil, errors.Wrap(err, "loading all-SMEM table")
			}
		}
		if ok, _ := pathutil.Exists(accel.LastSmemFile(prefix)); ok {
			idx.Last, err = accel.NewLastSmemFromFile(accel.LastSmemFile(prefix))
			if err != nil {
				return nil, errors.Wrap(err, "loading last-SMEM table")
			}
		}
	}

	if opt.PerfectSeedLen > 0 {
		file := perfect.FileName(prefix, opt.PerfectSeedLen)
		if ok, _ := pathutil.Exists(file); ok {
			idx.Perfect, err = perfect.NewFromFile(file,
				perfect.LoadOptions{MaxEntries: opt.PerfectMaxEntries})
			if err != nil {
				return nil, errors.Wrap(err, "loading perfect table")
			}
			idx.Perfect.AttachRef(idx.Ref)
		}
	}

	return idx, nil
}

// NewEngine builds a query engine over the loaded components. One
// engine per worker goroutine; the index itself is shared.
func (idx *Index) NewEngine(opt smem.Options) *smem.Engine {
	e := smem.NewEngine(idx.Bwt, opt)
	e.AttachTables(idx.All, idx.Last)
	return e
}

// RemoveFiles deletes every component file of a prefix.
func RemoveFiles(prefix string, perfectSeedLen int) {
	os.Remove(prefix + refseq.RefFileExt)
	os.Remove(prefix + refseq.PacFileExt)
	os.Remove(prefix + refseq.AnnFileExt)
	os.Remove(prefix + bwt.FileExt)
	os.Remove(accel.AllSmemFile(prefix))
	os.Remove(accel.LastSmemFile(prefix))
	if perfectSeedLen > 0 {
		os.Remove(perfect.FileName(prefix, perfectSeedLen))
	}
}
