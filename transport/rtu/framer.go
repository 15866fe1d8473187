// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"sync"
	"time"
)

// SilenceInterval is the inter-byte gap that delimits RTU frames.
// A best-effort approximation of the Modbus 3.5-character rule: two
// genuine frames arriving closer together than this are merged into
// one buffer and dropped by the CRC check.
const SilenceInterval = 50 * time.Millisecond

// Framer reassembles RTU frames from a byte stream that carries no
// explicit boundaries. Bytes accumulate in a buffer; each arrival
// restarts the silence timer, and when the line stays quiet for the
// full interval the accumulated bytes are taken as one complete frame.
type Framer struct {
	silence  time.Duration
	dispatch func(frame []byte)

	mu    sync.Mutex
	buf   []byte
	timer *time.Timer
}

// NewFramer creates a Framer invoking dispatch with each delimited
// frame. A non-positive silence falls back to SilenceInterval.
func NewFramer(silence time.Duration, dispatch func(frame []byte)) *Framer {
	if silence <= 0 {
		silence = SilenceInterval
	}
	return &Framer{
		silence:  silence,
		dispatch: dispatch,
	}
}

// Push appends incoming bytes to the accumulation buffer and restarts
// the silence timer.
func (f *Framer) Push(data []byte) {
	if len(data) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf = append(f.buf, data...)
	if f.timer == nil {
		f.timer = time.AfterFunc(f.silence, f.fire)
	} else {
		f.timer.Reset(f.silence)
	}
}

// fire runs when the silence window elapses with no further bytes.
// The buffer is cleared whether or not it holds a plausible frame.
func (f *Framer) fire() {
	f.mu.Lock()
	frame := f.buf
	f.buf = nil
	f.mu.Unlock()

	// Anything shorter than a minimum frame is line noise.
	if len(frame) >= rtuMinSize {
		f.dispatch(frame)
	}
}

// Reset drops any buffered bytes and cancels the pending timer.
func (f *Framer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.buf = nil
}
