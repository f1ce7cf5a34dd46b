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

// Package shm manages shared read-only index segments: a strict
// NOT_INIT -> MODIFY -> AVAIL state machine with a WAIT drain state,
// reader/manager counters behind a spinlock byte, a reference
// fingerprint deciding segment reuse, and best-effort hugepage backing.
//
// The index core consumes only OpenShared, CloseShared and
// Fingerprint; it never spins or blocks.
package shm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/zeebo/wyhash"
)

// Kind identifies one shared segment.
type Kind int

const (
	KindBwt Kind = iota
	KindRef
	KindPac
	KindAllSmem
	KindLastSmem
	KindPerfect
	numKinds
)

var kindNames = [numKinds]string{"bwt", "ref", "pac", "all_smem", "last_smem", "perfect"}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "unknown"
	}
	return kindNames[k]
}

// Segment states.
const (
	StateNotInit int32 = 0 // nothing initialised
	StateModify  int32 = 1 // a manager is rebuilding segments
	StateWait    int32 = 2 // a manager waits for readers to drain
	StateAvail   int32 = 3 // available for mapping jobs
)

// ErrNotAvail means a reader arrived while the segments are not in
// AVAIL state.
var ErrNotAvail = errors.New("shm: segments not available")

// ErrFingerprint means the stored segments were built from a different
// reference; the reader must detach and re-enter the init protocol.
var ErrFingerprint = errors.New("shm: fingerprint mismatch")

// ErrBusy means another manager holds the state machine.
var ErrBusy = errors.New("shm: another manager is active")

// Fingerprint identifies the reference an index was built from:
// absolute path, last-modification time, file length, hugepage flags
// and the perfect seed length, digested with wyhash.
type Fingerprint uint64

// FingerprintOf derives the fingerprint of a reference file plus the
// segment configuration.
func FingerprintOf(refFile string, hugeFlags int, seedLen int, useErt bool) (Fingerprint, error) {
	abs, err := filepath.Abs(refFile)
	if err != nil {
		return 0, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, 0, len(abs)+8*4)
	buf = append(buf, abs...)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(fi.ModTime().UnixNano()))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(fi.Size()))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(hugeFlags))
	buf = append(buf, tmp[:]...)
	ert := uint64(0)
	if useErt {
		ert = 1
	}
	binary.LittleEndian.PutUint64(tmp[:], uint64(seedLen)<<1|ert)
	buf = append(buf, tmp[:]...)

	return Fingerprint(wyhash.Hash(buf, 1)), nil
}

// infoPage is the process-wide mutable state: the only global state of
// the system, protected by the spinlock byte.
type infoPage struct {
	lock        int32
	state       int32
	numReaders  int32
	numManagers int32

	hugeFlags   int32
	fingerprint Fingerprint
}

// Manager owns the backing pages of the shared segments. At most one
// writer is active during a renewal; readers hold shared read-only
// views and never stall when the state is AVAIL.
type Manager struct {
	dir  string
	info infoPage

	segments [numKinds][]byte

	huge hugeConfig
}

// DefaultDir is where segment files live.
var DefaultDir = "/dev/shm/smemseed"

// NewManager creates a manager over a backing directory; an empty dir
// selects DefaultDir.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, err
	}
	return &Manager{dir: dir, huge: defaultHugeConfig()}, nil
}

// spinLock acquires the info-page lock.
func (m *Manager) spinLock() {
	for !atomic.CompareAndSwapInt32(&m.info.lock, 0, 1) {
		runtime.Gosched()
	}
}

func (m *Manager) spinUnlock() {
	atomic.StoreInt32(&m.info.lock, 0)
}

// State returns the current machine state.
func (m *Manager) State() int32 {
	return atomic.LoadInt32(&m.info.state)
}

// OpenShared gives a reader a shared view of one segment. A reader
// arriving in AVAIL increments the reader counter and never stalls;
// any other state reports ErrNotAvail, and a fingerprint mismatch
// reports ErrFingerprint so the caller can re-enter the init protocol.
func (m *Manager) OpenShared(kind Kind, want Fingerprint) ([]byte, error) {
	m.spinLock()
	defer m.spinUnlock()

	if m.info.state != StateAvail {
		return nil, ErrNotAvail
	}
	if m.info.fingerprint != want {
		return nil, ErrFingerprint
	}
	seg := m.segments[kind]
	if seg == nil {
		return nil, fmt.Errorf("shm: segment %s not loaded", kind)
	}
	m.info.numReaders++
	return seg, nil
}

// CloseShared releases a reader's view.
func (m *Manager) CloseShared(kind Kind) {
	m.spinLock()
	defer m.spinUnlock()
	if m.info.numReaders > 0 {
		m.info.numReaders--
	}
}

// Fingerprint returns the fingerprint of the loaded segments.
func (m *Manager) Fingerprint() Fingerprint {
	m.spinLock()
	defer m.spinUnlock()
	return m.info.fingerprint
}

// BeginRenewal moves the machine towards MODIFY: immediately when no
// readers are attached, through WAIT otherwise. It returns true when
// MODIFY was entered; callers seeing false retry after the readers
// drained.
func (m *Manager) BeginRenewal() (bool, error) {
	m.spinLock()
	defer m.spinUnlock()

	switch m.info.state {
	case StateModify:
		return false, ErrBusy
	case StateWait:
		if m.info.numManagers > 0 {
			return false, ErrBusy
		}
	}

	m.info.numManagers++
	if m.info.numReaders == 0 {
		m.info.state = StateModify
		return true, nil
	}
	m.info.state = StateWait
	return false, nil
}

// TryEnterModify promotes WAIT to MODIFY once the readers drained.
func (m *Manager) TryEnterModify() bool {
	m.spinLock()
	defer m.spinUnlock()
	if m.info.state == StateWait && m.info.numReaders == 0 {
		m.info.state = StateModify
		return true
	}
	return m.info.state == StateModify
}

// Renew destroys and rebuilds every segment unless both the fingerprint
// and the hugepage flags match the loaded ones. New segments are swapped
// in only after all of them loaded. The manager must hold MODIFY. Hugepage backing is requested
// through the mode ladder; only force escalates reservation failures.
func (m *Manager) Renew(fp Fingerprint, mode HugepageMode, force bool,
	load func(kind Kind) ([]byte, error)) error {

	if m.State() != StateModify {
		return ErrBusy
	}

	flags, err := m.reserveHugepages(mode, force)
	if err != nil {
		// previous segments stay untouched
		m.finishRenewal(m.info.fingerprint, m.info.hugeFlags)
		return err
	}

	reuse := fp == m.info.fingerprint && flags == m.info.hugeFlags
	var staged [numKinds][]byte
	for k := Kind(0); k < numKinds; k++ {
		if reuse && m.segments[k] != nil {
			staged[k] = m.segments[k]
			continue
		}
		data, err := load(k)
		if err != nil {
			m.finishRenewal(m.info.fingerprint, m.info.hugeFlags)
			return err
		}
		if data == nil {
			continue
		}
		if err = m.storeSegment(k, data, flags); err != nil {
			m.finishRenewal(m.info.fingerprint, m.info.hugeFlags)
			return err
		}
		staged[k] = data
	}
	m.segments = staged

	m.finishRenewal(fp, flags)
	return nil
}

func (m *Manager) finishRenewal(fp Fingerprint, flags int32) {
	m.spinLock()
	defer m.spinUnlock()
	m.info.fingerprint = fp
	m.info.hugeFlags = flags
	m.info.state = StateAvail
	if m.info.numManagers > 0 {
		m.info.numManagers--
	}
}

// storeSegment persists one segment, truncated to page-aligned size.
func (m *Manager) storeSegment(kind Kind, data []byte, flags int32) error {
	pageSize := m.huge.pageSize(flags)
	aligned := (int64(len(data)) + pageSize - 1) / pageSize * pageSize

	file := filepath.Join(m.dir, kind.String()+".seg")
	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	if _, err = fh.Write(data); err != nil {
		fh.Close()
		return err
	}
	if err = fh.Truncate(aligned); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
