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

package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"

	"github.com/etri/smemseed/smemseed/index"
	"github.com/etri/smemseed/smemseed/refseq"
	"github.com/etri/smemseed/smemseed/smem"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "search reads against an index and report seeds",
	Long: `search reads against an index and report seeds

Each read is first probed against the perfect-match table when one is
loaded; a whole-read hit short-circuits the SMEM search. Output is TSV:

  read  kind  qstart  qend  strand  pos  size

kind is "perfect" or "smem"; pos of an SMEM row is one resolved
reference position per line, capped by --max-occ.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		conf := loadConfig()

		prefix := getFlagString(cmd, "index")
		queryFile := getFlagString(cmd, "query")
		outFile := getFlagString(cmd, "out-file")

		sopt := smem.DefaultOptions
		sopt.MinIntv = conf.MinIntv
		sopt.MinSeedLen = int32(conf.MinSeedLen)
		sopt.MaxIntv = conf.MaxIntv
		sopt.MaxOcc = conf.MaxOcc
		if v := getFlagInt64(cmd, "min-intv"); v > 0 {
			sopt.MinIntv = v
		}
		if v := getFlagInt(cmd, "min-seed-len"); v > 0 {
			sopt.MinSeedLen = int32(v)
		}
		if v := getFlagInt64(cmd, "max-intv"); v > 0 {
			sopt.MaxIntv = v
		}
		if v := getFlagInt(cmd, "max-occ"); v > 0 {
			sopt.MaxOcc = v
		}

		perfectSeedLen := getFlagInt(cmd, "perfect-seed-len")
		if perfectSeedLen == 0 {
			perfectSeedLen = conf.PerfectSeedLen
		}

		seedOnly := getFlagBool(cmd, "seed-only")
		dropContained := getFlagBool(cmd, "filter-contained")

		if opt.Verbose {
			log.Infof("loading index from %s.*", prefix)
		}
		idx, err := index.NewFromPrefix(prefix, index.LoadOptions{
			PerfectSeedLen: perfectSeedLen,
		})
		checkError(err)
		if opt.Verbose {
			log.Infof("reference length: %d", idx.Ref.FwLen)
			if idx.All != nil {
				log.Info("all-SMEM acceleration table loaded")
			}
			if idx.Last != nil {
				log.Info("last-SMEM acceleration table loaded")
			}
			if idx.Perfect != nil {
				log.Infof("perfect-match table loaded, seed length %d", idx.Perfect.SeedLen)
			}
		}

		outfh, err := xopen.Wopen(outFile)
		checkError(err)
		defer outfh.Close()

		type job struct {
			id   int
			name string
			code []byte
		}
		type result struct {
			id    int
			lines []byte
		}

		jobs := make(chan job, opt.NumCPUs)
		results := make(chan result, opt.NumCPUs)

		var wg sync.WaitGroup
		for w := 0; w < opt.NumCPUs; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				engine := idx.NewEngine(sopt)
				var smems []smem.SMEM
				for jb := range jobs {
					var buf []byte
					buf, smems = processRead(idx, engine, &sopt, jb.name, jb.code,
						seedOnly, dropContained, conf.MaskLevelRedun, smems[:0])
					results <- result{id: jb.id, lines: buf}
				}
			}()
		}

		done := make(chan int)
		go func() {
			// restore read order before writing
			pending := make(map[int][]byte, opt.NumCPUs)
			next := 0
			for r := range results {
				pending[r.id] = r.lines
				for {
					lines, ok := pending[next]
					if !ok {
						break
					}
					delete(pending, next)
					outfh.Write(lines)
					next++
				}
			}
			done <- 1
		}()

		seq.ValidateSeq = false
		reader, err := fastx.NewReader(nil, queryFile, "")
		checkError(err)

		var nReads int
		var record *fastx.Record
		for {
			record, err = reader.Read()
			if err != nil {
				if err == io.EOF {
					break
				}
				checkError(err)
			}

			code := make([]byte, len(record.Seq.Seq))
			for i, c := range record.Seq.Seq {
				code[i] = refseq.Code(c)
			}
			jobs <- job{id: nReads, name: string(record.ID), code: code}
			nReads++
		}
		close(jobs)
		wg.Wait()
		close(results)
		<-done

		if opt.Verbose {
			log.Infof("%d reads processed", nReads)
		}
	},
}

// processRead runs the perfect-match shortcut then the SMEM pipeline
// for one read, rendering TSV rows.
func processRead(idx *index.Index, engine *smem.Engine, sopt *smem.Options,
	name string, code []byte, seedOnly, dropContained bool,
	maskLevelRedun float64, smems []smem.SMEM) ([]byte, []smem.SMEM) {

	var buf []byte

	if idx.Perfect != nil {
		m := idx.Perfect.Find(code)
		if m.Matched() {
			hits := idx.Perfect.Locations(idx.Ref, &m, code, maskLevelRedun)
			for i := range hits {
				h := &hits[i]
				strand := '+'
				if h.IsRev {
					strand = '-'
				}
				buf = append(buf, fmt.Sprintf("%s\tperfect\t%d\t%d\t%c\t%d\t%d\n",
					name, 0, len(code)-1, strand, h.Pos, len(hits))...)
			}
			return buf, smems
		}
		// SeedOnlyMatched, ContainsN and NotMatched fall through to the
		// SMEM search
	}

	if seedOnly {
		smems = engine.BwtSeedStrategy(code, 0, sopt.MaxIntv, smems)
	} else {
		smems = engine.SmemsAllPos(code, 0, sopt.MinIntv, smems)
	}
	smem.SortSMEMs(smems)
	if dropContained {
		smems = smem.FilterContained(smems)
	}

	seeds := engine.ResolveSeeds(smems, sopt.MaxOcc)
	fwLen := idx.Ref.FwLen
	for i := range seeds {
		sd := &seeds[i]
		pos := sd.Pos
		strand := '+'
		if pos >= fwLen {
			// positions on the appended reverse complement map back to
			// forward coordinates
			strand = '-'
			pos = 2*fwLen - (pos + int64(sd.N-sd.M+1))
		}
		buf = append(buf, fmt.Sprintf("%s\tsmem\t%d\t%d\t%c\t%d\t%d\n",
			name, sd.M, sd.N, strand, pos, len(seeds))...)
	}
	return buf, smems
}

func init() {
	RootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringP("index", "d", "", "index file prefix (required)")
	seedCmd.MarkFlagRequired("index")
	seedCmd.Flags().StringP("query", "i", "-", "query FASTA/FASTQ file, - for stdin")
	seedCmd.Flags().StringP("out-file", "o", "-",
		`output TSV file, - for stdout, .gz for compressed`)
	seedCmd.Flags().Int64P("min-intv", "m", 0,
		"minimum BWT interval size, 0 for the config default")
	seedCmd.Flags().IntP("min-seed-len", "k", 0,
		"minimum seed length, 0 for the config default")
	seedCmd.Flags().Int64P("max-intv", "M", 0,
		"maximum interval size for --seed-only, 0 for the config default")
	seedCmd.Flags().IntP("max-occ", "c", 0,
		"maximum resolved locations per seed, 0 for the config default")
	seedCmd.Flags().IntP("perfect-seed-len", "l", 0,
		"seed length of the perfect-match table to load, 0 disables")
	seedCmd.Flags().Bool("seed-only", false,
		"use the bounded-interval seed strategy instead of full SMEMs")
	seedCmd.Flags().Bool("filter-contained", false,
		"drop seeds whose query span is contained in another seed")
}
