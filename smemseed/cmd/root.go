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

// Package cmd is the command line of smemseed.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	colorable "github.com/mattn/go-colorable"
	homedir "github.com/mitchellh/go-homedir"
	toml "github.com/pelletier/go-toml/v2"
	logging "github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"
)

// VERSION of smemseed
const VERSION = "0.3.1"

var log = logging.MustGetLogger("smemseed")

// RootCmd is the root command.
var RootCmd = &cobra.Command{
	Use:   "smemseed",
	Short: "FM-index construction and SMEM seeding for short reads",
	Long: fmt.Sprintf(`smemseed v%s: FM-index construction and SMEM seeding for short reads

The index is a block-checkpointed bidirectional BWT over the reference
genome and its reverse complement, with two precomputed extension
tables and an optional whole-read perfect-match table.

`, VERSION),
}

// Execute runs the root command.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	format := logging.MustStringFormatter(
		`%{color}[%{level:.4s}]%{color:reset} %{message}`)
	backend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	logging.SetBackend(logging.NewBackendFormatter(backend, format))

	RootCmd.PersistentFlags().IntP("threads", "j", 0,
		"number of CPU cores to use, 0 for all")
	RootCmd.PersistentFlags().BoolP("quiet", "q", false,
		"do not print progress messages")
	RootCmd.CompletionOptions.DisableDefaultCmd = true
}

// ConfigFile is looked up under the home directory.
const ConfigFile = ".smemseed.toml"

// Config carries the seeding options a user can pin in the config
// file; flags always win over the file.
type Config struct {
	MinIntv        int64   `toml:"min_intv"`
	MinSeedLen     int     `toml:"min_seed_len"`
	MaxIntv        int64   `toml:"max_intv"`
	MaxOcc         int     `toml:"max_occ"`
	SaSparsity     int64   `toml:"sa_sparsity"`
	PerfectSeedLen int     `toml:"perfect_seed_len"`
	MaskLevelRedun float64 `toml:"mask_level_redun"`
	Hugepage       string  `toml:"hugepage"`
	HugepageForce  bool    `toml:"hugepage_force"`
}

// defaultConfig mirrors the aligner defaults.
var defaultConfig = Config{
	MinIntv:        1,
	MinSeedLen:     19,
	MaxIntv:        500,
	MaxOcc:         500,
	SaSparsity:     8,
	MaskLevelRedun: 0.95,
	Hugepage:       "normal",
}

// loadConfig reads ~/.smemseed.toml when present.
func loadConfig() Config {
	conf := defaultConfig

	home, err := homedir.Dir()
	if err != nil {
		return conf
	}
	file := filepath.Join(home, ConfigFile)
	data, err := os.ReadFile(file)
	if err != nil {
		return conf
	}
	if err = toml.Unmarshal(data, &conf); err != nil {
		log.Warningf("ignoring malformed config %s: %s", file, err)
		return defaultConfig
	}
	return conf
}
