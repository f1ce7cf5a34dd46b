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

package shm

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// HugepageMode selects the backing page unit.
type HugepageMode int

const (
	HugeNone    HugepageMode = iota // normal 4 KB pages
	HugeDefault                     // kernel default hugepage size
	Huge2MB
	Huge1GB
)

// Hugepage flag values stored in the info page.
const (
	flagNormalPage int32 = 0
	flagHuge2MB    int32 = 2
	flagHuge1GB    int32 = 3
)

// ErrResource means a hugepage reservation failed and the caller
// demanded force.
var ErrResource = errors.New("shm: hugepage reservation failed")

// hugeConfig points at the kernel hugepage accounting. Tests inject a
// fake sysfs tree.
type hugeConfig struct {
	sysfsDir string
}

func defaultHugeConfig() hugeConfig {
	return hugeConfig{sysfsDir: "/sys/kernel/mm/hugepages"}
}

func (h *hugeConfig) pageSize(flags int32) int64 {
	switch flags {
	case flagHuge1GB:
		return 1 << 30
	case flagHuge2MB:
		return 2 << 20
	}
	return 4 << 10
}

// freePages reads the kernel's free-hugepage count for a page size in
// kilobytes; missing files report zero free pages.
func (h *hugeConfig) freePages(sizeKB int64) int64 {
	file := filepath.Join(h.sysfsDir,
		"hugepages-"+strconv.FormatInt(sizeKB, 10)+"kB", "free_hugepages")
	data, err := os.ReadFile(file)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// reserveHugepages walks the fallback ladder: the requested unit first,
// then 1 GB -> 2 MB -> normal pages. With force, a failed reservation
// of the requested unit is fatal instead of degrading.
func (m *Manager) reserveHugepages(mode HugepageMode, force bool) (int32, error) {
	var ladder []int32
	switch mode {
	case HugeNone:
		return flagNormalPage, nil
	case Huge1GB:
		ladder = []int32{flagHuge1GB, flagHuge2MB, flagNormalPage}
	case Huge2MB:
		ladder = []int32{flagHuge2MB, flagNormalPage}
	case HugeDefault:
		ladder = []int32{flagHuge2MB, flagNormalPage}
	}

	for i, flags := range ladder {
		if flags == flagNormalPage {
			return flagNormalPage, nil
		}
		sizeKB := m.huge.pageSize(flags) >> 10
		if m.huge.freePages(sizeKB) > 0 {
			return flags, nil
		}
		if force && i == 0 {
			return 0, ErrResource
		}
	}
	return flagNormalPage, nil
}
