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
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/etri/smemseed/smemseed/index"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "build the FM-index and lookup tables of a reference",
	Long: `build the FM-index and lookup tables of a reference

Output files under the prefix:
  .0123          packed reference, forward + reverse complement
  .pac           2-bit packed forward reference
  .ann           sequence annotations and N-run records
  .bwt.2bit.64   checkpointed BWT with sampled suffix array
  .all_smem.11   all-SMEM acceleration table (--accel)
  .last_smem.13  last-SMEM acceleration table (--accel)
  .perfect.<L>   perfect-match table (--perfect-seed-len > 0)

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		conf := loadConfig()

		refFile := getFlagString(cmd, "ref")
		prefix := getFlagString(cmd, "out-prefix")
		if prefix == "" {
			prefix = refFile
		}

		sparsity := getFlagInt64(cmd, "sa-sparsity")
		if sparsity == 0 {
			sparsity = conf.SaSparsity
		}

		bopt := index.BuildOptions{
			SaSparsity:     sparsity,
			BuildAccel:     getFlagBool(cmd, "accel"),
			PerfectSeedLen: getFlagInt(cmd, "perfect-seed-len"),
			PerfectSlack:   getFlagFloat64(cmd, "slack"),
			Threads:        opt.NumCPUs,
		}

		var pbs *mpb.Progress
		if opt.Verbose {
			pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))

			bars := make(map[string]*mpb.Bar, 3)
			var mu sync.Mutex
			addBar := func(name string, total int64) *mpb.Bar {
				return pbs.AddBar(total,
					mpb.PrependDecorators(
						decor.Name(name+": ", decor.WC{W: len(name) + 2, C: decor.DindentRight}),
						decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
					),
					mpb.AppendDecorators(
						decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
						decor.EwmaETA(decor.ET_STYLE_GO, 3),
						decor.OnComplete(decor.Name(""), ". done"),
					),
				)
			}

			bopt.AccelProgress = func(table string, done, total int64) {
				mu.Lock()
				bar, ok := bars[table]
				if !ok {
					bar = addBar(table, total)
					bars[table] = bar
				}
				mu.Unlock()
				bar.EwmaSetCurrent(done, time.Millisecond)
			}
			bopt.PerfectProgress = func(done, total int64) {
				mu.Lock()
				bar, ok := bars["perfect"]
				if !ok {
					bar = addBar("perfect", total)
					bars["perfect"] = bar
				}
				mu.Unlock()
				bar.EwmaSetCurrent(done, time.Millisecond)
			}
		}

		if opt.Verbose {
			log.Infof("building index for %s", refFile)
			log.Infof("  SA sparsity: %d", bopt.SaSparsity)
			if bopt.BuildAccel {
				log.Info("  building SMEM acceleration tables")
			}
			if bopt.PerfectSeedLen > 0 {
				log.Infof("  building perfect-match table, seed length %d", bopt.PerfectSeedLen)
			}
		}

		start := time.Now()
		idx, err := index.Build(refFile, prefix, bopt)
		checkError(err)
		if pbs != nil {
			pbs.Wait()
		}

		if opt.Verbose {
			log.Infof("reference length: %d (doubled: %d)", idx.Ref.FwLen, idx.Ref.Len())
			log.Infof("index written to %s.* in %s", prefix, time.Since(start))
		}
	},
}

func init() {
	RootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringP("ref", "r", "", "reference FASTA file (required)")
	indexCmd.MarkFlagRequired("ref")
	indexCmd.Flags().StringP("out-prefix", "o", "",
		"output file prefix, default: the reference file")
	indexCmd.Flags().Int64P("sa-sparsity", "s", 0,
		"suffix array sampling interval, power of two, 0 for the config default")
	indexCmd.Flags().BoolP("accel", "a", false,
		"build the all-SMEM and last-SMEM acceleration tables")
	indexCmd.Flags().IntP("perfect-seed-len", "l", 0,
		"perfect-match seed length, 0 disables the table")
	indexCmd.Flags().Float64P("slack", "S", 1.1,
		"perfect table size factor relative to the reference length")
}
