// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package pool

import "sync"

// Ballast tracks large, system-allocator-backed byte allocations
// (series data buffers, for the most part) and counts down from a
// configured size so that the collector knows when to run.
type Ballast struct {
	mu        sync.Mutex
	size      int64
	countdown int64
	inUse     int64
}

// NewBallast creates a Ballast that triggers Due() once `size`
// bytes have been allocated through AllocBytes since the last Reset;
// FreeBytes does not restore the countdown.
func NewBallast(size int64) *Ballast {
	return &Ballast{size: size, countdown: size}
}

// AllocBytes records n bytes of tracked allocation and returns
// a zeroed buffer of that size.
func (b *Ballast) AllocBytes(n int) []byte {
	b.mu.Lock()
	b.inUse += int64(n)
	b.countdown -= int64(n)
	b.mu.Unlock()
	return make([]byte, n)
}

// FreeBytes records n bytes of tracked allocation being released.
func (b *Ballast) FreeBytes(n int) {
	b.mu.Lock()
	b.inUse -= int64(n)
	b.mu.Unlock()
}

// Due reports whether the ballast has counted down to zero or below,
// meaning a Recycle pass is due.
func (b *Ballast) Due() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.countdown <= 0
}

// Reset restores the countdown to the configured size, typically
// called immediately after a Recycle pass completes.
func (b *Ballast) Reset() {
	b.mu.Lock()
	b.countdown = b.size
	b.mu.Unlock()
}

// InUse returns the number of tracked bytes currently allocated.
func (b *Ballast) InUse() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inUse
}
