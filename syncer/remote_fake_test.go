// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package syncer

import (
	"context"
	"errors"
	"sync"

	"github.com/gymdesk/gymsync/remotepg"
)

// fakeRemote is an in-memory Remote used in place of a live Postgres
// backend, the same way the client tests swap the HTTP transport.
type fakeRemote struct {
	mu sync.Mutex

	reachable bool
	tables    map[string]map[string]remotepg.Record

	failWrites error // when set, every mutating call fails

	upserts int
	deletes int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		reachable: true,
		tables:    make(map[string]map[string]remotepg.Record),
	}
}

func (f *fakeRemote) Probe(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reachable
}

func (f *fakeRemote) EnsureSchema(ctx context.Context) error {
	return nil
}

func (f *fakeRemote) GetAll(ctx context.Context, table string) ([]remotepg.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.reachable {
		return nil, errors.New("remote unreachable")
	}
	var records []remotepg.Record
	for _, rec := range f.tables[table] {
		records = append(records, rec)
	}
	return records, nil
}

func (f *fakeRemote) Upsert(ctx context.Context, table string, rec remotepg.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if err := f.writeErr(); err != nil {
		return err
	}
	f.put(table, rec)
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, table string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if err := f.writeErr(); err != nil {
		return err
	}
	delete(f.tables[table], id)
	return nil
}

func (f *fakeRemote) writeErr() error {
	if !f.reachable {
		return errors.New("remote unreachable")
	}
	return f.failWrites
}

func (f *fakeRemote) put(table string, rec remotepg.Record) {
	if f.tables[table] == nil {
		f.tables[table] = make(map[string]remotepg.Record)
	}
	if id, _ := rec["id"].(string); id != "" {
		f.tables[table][id] = rec
	}
}

func (f *fakeRemote) record(table, id string) (remotepg.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.tables[table][id]
	return rec, ok
}

func (f *fakeRemote) setReachable(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reachable = ok
}

func (f *fakeRemote) setFailWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites = err
}

func (f *fakeRemote) counts() (upserts, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts, f.deletes
}
