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

// Package worker drives the size-by-size search and the
// convergence protocol against the shared catalog.
//
// A worker owns a private zoo seeded with the 2n literals.
// In distributed mode it first merges everything the
// catalog already knows, resumes past the sizes peers have
// exhausted, and then alternates synthesis with periodic
// peer pulls while an asynchronous pusher feeds local
// claims back to the store. Local mode is the same search
// without the catalog.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SnellerInc/zoo/catalog"
	"github.com/SnellerInc/zoo/synth"
	"github.com/SnellerInc/zoo/tt"
	"github.com/SnellerInc/zoo/zoo"
)

const (
	// DefaultMaxSize is the default search ceiling in gates.
	DefaultMaxSize = 15
	// DefaultSyncInterval is the default pusher cadence.
	DefaultSyncInterval = 5 * time.Second
	// pullEvery is how many sizes pass between peer pulls.
	pullEvery = 3
)

// ErrNoCatalog is returned by Run when the worker was
// built without a store; use RunLocal instead.
var ErrNoCatalog = errors.New("worker has no catalog store")

// Config selects what a worker searches and how.
type Config struct {
	// N is the number of input variables, in [1, tt.MaxVars].
	N int
	// MaxSize is the largest gate count searched.
	// Zero means DefaultMaxSize.
	MaxSize int
	// WorkerID identifies this worker in catalog records.
	WorkerID string
	// Threads bounds the synthesis pool; values < 1 mean
	// one task per available CPU.
	Threads int
	// SyncInterval is the pusher cadence; zero means
	// DefaultSyncInterval.
	SyncInterval time.Duration
	// Logf receives progress lines. Logf may be nil.
	Logf func(f string, args ...interface{})
}

// Worker is one search process.
type Worker struct {
	conf  Config
	zoo   *zoo.Zoo
	store catalog.Store
	start time.Time
}

// New validates conf and returns a worker with a freshly
// seeded zoo. store may be nil for local-only use.
func New(conf Config, store catalog.Store) (*Worker, error) {
	if err := tt.CheckVars(conf.N); err != nil {
		return nil, err
	}
	if conf.MaxSize <= 0 {
		conf.MaxSize = DefaultMaxSize
	}
	if conf.SyncInterval <= 0 {
		conf.SyncInterval = DefaultSyncInterval
	}
	w := &Worker{
		conf:  conf,
		zoo:   zoo.New(conf.N, conf.MaxSize),
		store: store,
	}
	w.zoo.SeedLiterals()
	return w, nil
}

// Zoo exposes the in-memory index, primarily so callers
// can snapshot or report on it after a run.
func (w *Worker) Zoo() *zoo.Zoo { return w.zoo }

func (w *Worker) logf(f string, args ...interface{}) {
	if w.conf.Logf != nil {
		w.conf.Logf(f, args...)
	}
}

// pull merges every catalog record for this n into the
// zoo and returns how many were new locally.
func (w *Worker) pull(ctx context.Context) (int, error) {
	loaded := 0
	err := w.store.LoadAll(ctx, w.conf.N, func(rec *catalog.Record) error {
		if w.zoo.MergeExternal(rec.TT, rec.Size, rec.Depth, rec.Circuit) {
			loaded++
		}
		return nil
	})
	return loaded, err
}

// push drains the pending queue into the catalog. If an
// upsert fails, the unsent tail is re-enqueued so nothing
// is lost from the catalog view; the next cycle retries.
func (w *Worker) push(ctx context.Context) (int, error) {
	batch := w.zoo.DrainPending()
	if len(batch) == 0 {
		return 0, nil
	}
	written := 0
	for i := range batch {
		rec := &catalog.Record{
			TT:       batch[i].TT,
			N:        w.conf.N,
			Size:     batch[i].Info.Size,
			Depth:    batch[i].Info.Depth,
			Circuit:  batch[i].Info.Node,
			WorkerID: w.conf.WorkerID,
		}
		wrote, err := w.store.Upsert(ctx, rec)
		if err != nil {
			w.zoo.Requeue(batch[i:])
			return written, err
		}
		if wrote {
			written++
		}
	}
	return written, nil
}

// pusher is the asynchronous push loop; it runs beside
// SEARCHING states and exits when ctx is canceled.
func (w *Worker) pusher(ctx context.Context) {
	tick := time.NewTicker(w.conf.SyncInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if _, err := w.push(ctx); err != nil && ctx.Err() == nil {
				// best-effort; records were re-enqueued
				w.logf("push failed (will retry): %s", err)
			}
		}
	}
}

// Run executes the distributed search to completion:
// initial load, size-by-size synthesis with periodic peer
// pulls and an asynchronous pusher, then a final flush.
// An initial-load failure is fatal; everything after that
// is retried or tolerated.
func (w *Worker) Run(ctx context.Context) error {
	if w.store == nil {
		return ErrNoCatalog
	}
	w.start = time.Now()
	w.logf("worker %s starting for n=%d", w.conf.WorkerID, w.conf.N)

	loaded, err := w.pull(ctx)
	if err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	w.logf("loaded %d functions from catalog, local total %d", loaded, w.zoo.Found())

	pushCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.pusher(pushCtx)
	}()

	w.search(func(size int) {
		// periodic peer pull; a late merge only adds
		// operands for future sizes, never invalidates
		// a local claim
		if size%pullEvery != 0 {
			return
		}
		synced, err := w.pull(ctx)
		if err != nil {
			w.logf("pull failed (will retry): %s", err)
			return
		}
		if synced > 0 {
			w.logf("  synced %d new functions from other workers", synced)
		}
	})

	stop()
	wg.Wait()

	written, err := w.push(ctx)
	if err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	w.logf("final flush: wrote %d functions to catalog", written)
	w.logf("search complete in %.2fs", time.Since(w.start).Seconds())
	return nil
}

// RunLocal executes the same search with no catalog
// interaction: no load, no pulls, no pusher, no flush.
func (w *Worker) RunLocal(ctx context.Context) error {
	w.start = time.Now()
	w.logf("worker %s starting for n=%d (local only)", w.conf.WorkerID, w.conf.N)
	w.search(nil)
	w.logf("search complete in %.2fs", time.Since(w.start).Seconds())
	return nil
}

// search runs the size loop. afterSize, when non-nil, is
// invoked between sizes (after sealing) with the size just
// finished.
func (w *Worker) search(afterSize func(size int)) {
	total := tt.NumFuncs(w.conf.N)

	// a size that already has members was exhausted by a
	// predecessor; resume just past the largest one
	start := w.zoo.LargestSealed() + 1
	if start > w.conf.MaxSize {
		start = w.conf.MaxSize
	}
	w.logf("starting search from size %d", start)

	for size := start; size <= w.conf.MaxSize; size++ {
		if w.zoo.Found() >= total {
			w.logf("all %d functions found", total)
			break
		}
		claimed := synth.SearchSize(w.zoo, size, w.conf.Threads)
		w.zoo.Seal(size, claimed)
		found := w.zoo.Found()
		w.logf("size %2d: %8d new, total %10d (%6.3f%%), pending %d, %.2fs",
			size, len(claimed), found,
			100*float64(found)/float64(total),
			w.zoo.PendingLen(),
			time.Since(w.start).Seconds())
		if afterSize != nil {
			afterSize(size)
		}
	}
}
