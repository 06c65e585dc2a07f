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

// Command zood is one circuit-search worker. Pointed at a
// shared catalog it cooperates with every other running
// worker; with -local it searches alone.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/SnellerInc/zoo/catalog"
	"github.com/SnellerInc/zoo/snapshot"
	"github.com/SnellerInc/zoo/worker"
)

func main() {
	opts := defaults()
	var configPath string
	flag.IntVar(&opts.N, "n", opts.N, "number of input variables (1..6)")
	flag.IntVar(&opts.MaxSize, "max-size", opts.MaxSize, "maximum circuit size to search")
	flag.StringVar(&opts.Database, "database", "", "catalog connection string")
	flag.StringVar(&opts.WorkerID, "worker-id", "", "worker id (defaults to hostname)")
	flag.IntVar(&opts.Threads, "threads", 0, "synthesis threads (defaults to all cores)")
	flag.BoolVar(&opts.Local, "local", false, "run without a catalog")
	flag.StringVar(&opts.SyncInterval, "sync-interval", opts.SyncInterval, "catalog push cadence")
	flag.StringVar(&opts.Snapshot, "snapshot", "", "write a snapshot here after the run")
	flag.StringVar(&opts.Restore, "restore", "", "merge this snapshot before the run")
	flag.StringVar(&configPath, "config", "", "YAML config file (flags override)")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if configPath != "" {
		if err := opts.loadFile(configPath); err != nil {
			log.Fatal().Err(err).Msg("reading config")
		}
		// flags given explicitly win over the file
		flag.CommandLine.Parse(os.Args[1:])
	}
	if err := opts.validate(); err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}
	interval, err := opts.syncInterval()
	if err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}
	if opts.WorkerID == "" {
		opts.WorkerID = hostID()
	}
	log = log.With().Str("worker", opts.WorkerID).Logger()

	// the pool size is process-wide state, set once before
	// any synthesis runs
	if _, err := maxprocs.Set(maxprocs.Logger(log.Printf)); err != nil {
		log.Warn().Err(err).Msg("maxprocs")
	}
	if opts.Threads > 0 {
		runtime.GOMAXPROCS(opts.Threads)
	}

	ctx := context.Background()

	// a failed connect, initial load or final flush ends the
	// run; pushes and pulls during the search retry
	var store catalog.Store
	if !opts.Local {
		pg, err := catalog.Dial(ctx, opts.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("connecting to catalog")
		}
		pg.Logf = func(f string, args ...interface{}) {
			log.Warn().Msgf(f, args...)
		}
		defer pg.Close()
		store = pg
	}

	w, err := worker.New(worker.Config{
		N:            opts.N,
		MaxSize:      opts.MaxSize,
		WorkerID:     opts.WorkerID,
		Threads:      opts.Threads,
		SyncInterval: interval,
		Logf: func(f string, args ...interface{}) {
			log.Info().Msgf(f, args...)
		},
	}, store)
	if err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}

	if opts.Restore != "" {
		f, err := os.Open(opts.Restore)
		if err != nil {
			log.Fatal().Err(err).Msg("opening snapshot")
		}
		added, err := snapshot.Restore(f, w.Zoo())
		f.Close()
		if err != nil {
			log.Fatal().Err(err).Str("path", opts.Restore).Msg("restoring snapshot")
		}
		log.Info().Int("added", added).Str("path", opts.Restore).Msg("snapshot restored")
	}

	if opts.Local {
		log.Info().Msg("running in local-only mode")
		err = w.RunLocal(ctx)
	} else {
		err = w.Run(ctx)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("search failed")
	}

	fmt.Println(w.Stats())

	if opts.Snapshot != "" {
		if err := writeSnapshot(opts.Snapshot, w); err != nil {
			log.Fatal().Err(err).Msg("writing snapshot")
		}
		log.Info().Str("path", opts.Snapshot).Msg("snapshot written")
	}
}

func writeSnapshot(path string, w *worker.Worker) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := snapshot.Write(f, w.Zoo()); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// hostID is the default worker identity: the hostname, or
// a random id when the hostname is unavailable.
func hostID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "worker-" + uuid.NewString()[:8]
}
