// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package storage

import (
	"log/slog"
)

// Persister decouples protocol responses from durability: a write
// request finishes as soon as the registers are updated in memory,
// and the snapshot is saved in the background. Requests arriving while
// a save is in flight coalesce into a single pending save, so a burst
// of writes does not serialize the full store once per write.
//
// A crash between the response and the save loses the update with no
// client-visible indication. That is the intended trade-off.
type Persister struct {
	storage  Storage
	snapshot func() map[uint8][]uint16

	requests chan struct{}
	errs     chan error
	stopped  chan struct{}
}

// NewPersister creates a Persister saving snapshots to storage and
// starts its worker goroutine.
func NewPersister(st Storage, snapshot func() map[uint8][]uint16) *Persister {
	p := &Persister{
		storage:  st,
		snapshot: snapshot,
		requests: make(chan struct{}, 1),
		errs:     make(chan error, 8),
		stopped:  make(chan struct{}),
	}
	go p.worker()
	return p
}

// Request schedules a save. It never blocks; if a save is already
// pending the request coalesces into it.
func (p *Persister) Request() {
	select {
	case p.requests <- struct{}{}:
	default:
	}
}

// Errors exposes save failures to whoever cares to watch. Failures are
// also logged; if nobody drains the channel, further errors are
// dropped rather than blocking the worker.
func (p *Persister) Errors() <-chan error {
	return p.errs
}

// Close stops the worker after draining any pending save request.
func (p *Persister) Close() error {
	close(p.requests)
	<-p.stopped
	return nil
}

func (p *Persister) worker() {
	defer close(p.stopped)

	for range p.requests {
		if err := p.storage.Save(p.snapshot()); err != nil {
			slog.Error("Failed to persist slave data", "err", err)
			select {
			case p.errs <- err:
			default:
			}
		}
	}
}
