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

	"github.com/shenwei356/kmers"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/etri/smemseed/smemseed/accel"
	"github.com/etri/smemseed/smemseed/index"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "summarise an index: base counts, table occupancy, BST depths",
	Run: func(cmd *cobra.Command, args []string) {
		getOptions(cmd)
		conf := loadConfig()

		prefix := getFlagString(cmd, "index")
		perfectSeedLen := getFlagInt(cmd, "perfect-seed-len")
		if perfectSeedLen == 0 {
			perfectSeedLen = conf.PerfectSeedLen
		}

		idx, err := index.NewFromPrefix(prefix, index.LoadOptions{
			PerfectSeedLen: perfectSeedLen,
		})
		checkError(err)

		outfh, err := xopen.Wopen(getFlagString(cmd, "out-file"))
		checkError(err)
		defer outfh.Close()

		b := idx.Bwt
		fmt.Fprintf(outfh, "reference length (with sentinel)\t%d\n", b.RefLen)
		fmt.Fprintf(outfh, "SA sparsity\t%d\n", b.Sparsity)
		fmt.Fprintf(outfh, "sentinel index\t%d\n", b.SentinelIdx)
		for c := 0; c < 4; c++ {
			fmt.Fprintf(outfh, "count %c\t%d\n", "ACGT"[c], b.C[c+1]-b.C[c])
		}

		if idx.All != nil {
			// distribution of usable extension depths across keys
			depths := make([]float64, 0, len(idx.All.Entries))
			var deepest uint64
			for i := range idx.All.Entries {
				la := idx.All.Entries[i].LastAvail
				depths = append(depths, float64(la))
				if la == accel.AllSmemBp-1 {
					deepest = uint64(i)
				}
			}
			mean, std := stat.MeanStdDev(depths, nil)
			fmt.Fprintf(outfh, "all-SMEM keys\t%d\n", len(idx.All.Entries))
			fmt.Fprintf(outfh, "all-SMEM extension depth mean\t%.3f\n", mean)
			fmt.Fprintf(outfh, "all-SMEM extension depth stdev\t%.3f\n", std)
			fmt.Fprintf(outfh, "all-SMEM example full-depth key\t%s\n",
				kmers.Decode(deepest, accel.AllSmemBp))
		}

		if idx.Perfect != nil {
			t := idx.Perfect
			fmt.Fprintf(outfh, "perfect seed length\t%d\n", t.SeedLen)
			fmt.Fprintf(outfh, "perfect seed entries\t%d\n", t.NumSeedEntry)
			fmt.Fprintf(outfh, "perfect entries used\t%d\n", t.NumUsed)
			fmt.Fprintf(outfh, "perfect distinct keys\t%d\n", t.NumKeys)
			fmt.Fprintf(outfh, "perfect location entries\t%d\n", t.NumLocEntry)

			depths := t.ChainDepths()
			if len(depths) > 0 {
				mean, std := stat.MeanStdDev(depths, nil)
				fmt.Fprintf(outfh, "perfect BST depth mean\t%.3f\n", mean)
				fmt.Fprintf(outfh, "perfect BST depth stdev\t%.3f\n", std)
			}
			locs := t.LocationCounts()
			if len(locs) > 0 {
				mean, std := stat.MeanStdDev(locs, nil)
				fmt.Fprintf(outfh, "perfect locations per seed mean\t%.3f\n", mean)
				fmt.Fprintf(outfh, "perfect locations per seed stdev\t%.3f\n", std)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringP("index", "d", "", "index file prefix (required)")
	statsCmd.MarkFlagRequired("index")
	statsCmd.Flags().StringP("out-file", "o", "-", "output file, - for stdout")
	statsCmd.Flags().IntP("perfect-seed-len", "l", 0,
		"seed length of the perfect-match table to load, 0 disables")
}
