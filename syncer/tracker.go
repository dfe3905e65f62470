// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

// Package syncer contains the background synchronization machinery: the
// connectivity tracker, the durable mutation queue, the bidirectional wire
// codecs and the sync manager that orchestrates periodic pulls and pushes.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tracker observes connectivity to the remote backend. There is no ambient
// online/offline signal in a headless process, so the tracker derives status
// from a periodic probe (and from explicit SetOnline calls). Listeners are
// notified only on transitions.
type Tracker struct {
	probe    func(context.Context) bool
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	online    bool
	listeners map[int]func(online bool)
	nextID    int
}

// NewTracker builds a tracker around a probe function. The probe may be nil,
// in which case status only changes through SetOnline.
func NewTracker(probe func(context.Context) bool, interval time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Tracker{
		probe:     probe,
		interval:  interval,
		logger:    logger,
		listeners: make(map[int]func(bool)),
	}
}

// Start launches the probe loop. It probes once immediately so a freshly
// started process does not wait a full interval to discover connectivity.
func (t *Tracker) Start(ctx context.Context) {
	if t.probe == nil {
		return
	}
	go func() {
		t.SetOnline(t.probe(ctx))
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.SetOnline(t.probe(ctx))
			}
		}
	}()
}

// Online reports the current connectivity status.
func (t *Tracker) Online() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online
}

// SetOnline records a new status and notifies listeners on transitions.
func (t *Tracker) SetOnline(online bool) {
	t.mu.Lock()
	if t.online == online {
		t.mu.Unlock()
		return
	}
	t.online = online
	fns := make([]func(bool), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	if online {
		t.logger.Info("connectivity restored")
	} else {
		t.logger.Info("connectivity lost")
	}
	for _, fn := range fns {
		fn(online)
	}
}

// Subscribe registers a listener for status transitions and returns its
// unsubscribe function.
func (t *Tracker) Subscribe(fn func(online bool)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}
