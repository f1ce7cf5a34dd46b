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
	"os"
	"path/filepath"
	"testing"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func testFingerprint(t *testing.T, dir string) Fingerprint {
	t.Helper()
	file := filepath.Join(dir, "ref.fasta")
	if err := os.WriteFile(file, []byte(">r\nACGT\n"), 0644); err != nil {
		t.Fatal(err)
	}
	fp, err := FingerprintOf(file, 0, 151, false)
	if err != nil {
		t.Fatal(err)
	}
	return fp
}

// loadAll hands every kind the same payload.
func loadAll(data []byte) func(Kind) ([]byte, error) {
	return func(Kind) ([]byte, error) { return data, nil }
}

func TestStateMachine(t *testing.T) {
	m := testManager(t)
	fp := testFingerprint(t, t.TempDir())

	if m.State() != StateNotInit {
		t.Fatalf("initial state = %d", m.State())
	}

	// a reader before init never succeeds
	if _, err := m.OpenShared(KindBwt, fp); err != ErrNotAvail {
		t.Fatalf("OpenShared before init: %v", err)
	}

	// no readers: renewal enters MODIFY immediately
	ok, err := m.BeginRenewal()
	if err != nil || !ok {
		t.Fatalf("BeginRenewal: ok=%v err=%v", ok, err)
	}
	if m.State() != StateModify {
		t.Fatalf("state after BeginRenewal = %d", m.State())
	}

	if err = m.Renew(fp, HugeNone, false, loadAll([]byte{1, 2, 3})); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateAvail {
		t.Fatalf("state after Renew = %d", m.State())
	}

	// a reader in AVAIL attaches without stalling
	seg, err := m.OpenShared(KindBwt, fp)
	if err != nil || len(seg) != 3 {
		t.Fatalf("OpenShared: %v", err)
	}

	// a manager arriving with an active reader goes to WAIT
	ok, err = m.BeginRenewal()
	if err != nil || ok {
		t.Fatalf("BeginRenewal with reader: ok=%v err=%v", ok, err)
	}
	if m.State() != StateWait {
		t.Fatalf("state = %d, want WAIT", m.State())
	}
	if m.TryEnterModify() {
		t.Fatal("entered MODIFY with an active reader")
	}

	m.CloseShared(KindBwt)
	if !m.TryEnterModify() {
		t.Fatal("could not enter MODIFY after readers drained")
	}
	if err = m.Renew(fp, HugeNone, false, loadAll([]byte{4})); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateAvail {
		t.Fatalf("state = %d", m.State())
	}
}

func TestFingerprintMismatch(t *testing.T) {
	m := testManager(t)
	dir := t.TempDir()
	fp := testFingerprint(t, dir)

	ok, _ := m.BeginRenewal()
	if !ok {
		t.Fatal("BeginRenewal failed")
	}
	if err := m.Renew(fp, HugeNone, false, loadAll([]byte{1})); err != nil {
		t.Fatal(err)
	}

	// a reader with a different fingerprint must detach and re-enter
	other, err := FingerprintOf(filepath.Join(dir, "ref.fasta"), 0, 101, false)
	if err != nil {
		t.Fatal(err)
	}
	if other == fp {
		t.Fatal("fingerprints should differ across seed lengths")
	}
	if _, err = m.OpenShared(KindBwt, other); err != ErrFingerprint {
		t.Fatalf("mismatched fingerprint: %v", err)
	}

	// the matching reader still works
	if _, err = m.OpenShared(KindBwt, fp); err != nil {
		t.Fatal(err)
	}
}

func TestFingerprintChangesWithFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ref.fasta")
	if err := os.WriteFile(file, []byte(">r\nACGT\n"), 0644); err != nil {
		t.Fatal(err)
	}
	a, err := FingerprintOf(file, 0, 151, false)
	if err != nil {
		t.Fatal(err)
	}

	// longer content changes the length, hence the fingerprint
	if err = os.WriteFile(file, []byte(">r\nACGTACGT\n"), 0644); err != nil {
		t.Fatal(err)
	}
	b, err := FingerprintOf(file, 0, 151, false)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("fingerprint unchanged after file modification")
	}

	if c, _ := FingerprintOf(file, 1, 151, false); c == b {
		t.Fatal("fingerprint unchanged across hugepage flags")
	}
}

// fakeSysfs builds a hugepage accounting tree with the given free
// counts.
func fakeSysfs(t *testing.T, free2MB, free1GB int64) string {
	t.Helper()
	dir := t.TempDir()
	write := func(sub string, n int64) {
		d := filepath.Join(dir, sub)
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(d, "free_hugepages"),
			[]byte{byte('0' + n), '\n'}, 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("hugepages-2048kB", free2MB)
	write("hugepages-1048576kB", free1GB)
	return dir
}

func TestHugepageFallback(t *testing.T) {
	m := testManager(t)
	fp := testFingerprint(t, t.TempDir())

	// zero free 1 GB pages, some 2 MB pages: 1 GB request degrades
	m.huge.sysfsDir = fakeSysfs(t, 4, 0)

	ok, _ := m.BeginRenewal()
	if !ok {
		t.Fatal("BeginRenewal failed")
	}
	if err := m.Renew(fp, Huge1GB, false, loadAll([]byte{1})); err != nil {
		t.Fatalf("renewal with fallback failed: %v", err)
	}
	if m.info.hugeFlags != flagHuge2MB {
		t.Fatalf("hugeFlags = %d, want 2MB fallback", m.info.hugeFlags)
	}

	// no hugepages at all: falls through to normal pages
	m.huge.sysfsDir = fakeSysfs(t, 0, 0)
	ok, _ = m.BeginRenewal()
	if !ok {
		t.Fatal("BeginRenewal failed")
	}
	if err := m.Renew(fp, Huge1GB, false, loadAll([]byte{1})); err != nil {
		t.Fatal(err)
	}
	if m.info.hugeFlags != flagNormalPage {
		t.Fatalf("hugeFlags = %d, want normal pages", m.info.hugeFlags)
	}
}

func TestHugepageForce(t *testing.T) {
	m := testManager(t)
	fp := testFingerprint(t, t.TempDir())

	// establish segments with normal pages first
	ok, _ := m.BeginRenewal()
	if !ok {
		t.Fatal("BeginRenewal failed")
	}
	if err := m.Renew(fp, HugeNone, false, loadAll([]byte{9})); err != nil {
		t.Fatal(err)
	}

	// forcing 1 GB pages with none free must fail and leave the
	// previous segments untouched
	m.huge.sysfsDir = fakeSysfs(t, 4, 0)
	ok, _ = m.BeginRenewal()
	if !ok {
		t.Fatal("BeginRenewal failed")
	}
	err := m.Renew(fp, Huge1GB, true, loadAll([]byte{1}))
	if err != ErrResource {
		t.Fatalf("forced renewal: %v, want ErrResource", err)
	}

	seg, err := m.OpenShared(KindBwt, fp)
	if err != nil || len(seg) != 1 || seg[0] != 9 {
		t.Fatalf("previous segments lost: %v %v", seg, err)
	}
}
