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

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jpillora/backoff"

	"github.com/SnellerInc/zoo/tt"
)

// dialAttempts bounds the initial connection retry loop;
// past this the store is considered unreachable and the
// caller should give up (startup treats that as fatal).
const dialAttempts = 5

// Postgres is a Store backed by a PostgreSQL table and
// its upsert_function procedure (see schema.sql for the
// reference DDL).
type Postgres struct {
	pool *pgxpool.Pool

	// Logf is used to report skipped rows and other
	// non-fatal conditions. Logf may be nil.
	Logf func(f string, args ...interface{})
}

func (p *Postgres) logf(f string, args ...interface{}) {
	if p.Logf != nil {
		p.Logf(f, args...)
	}
}

// Dial opens a connection pool against the given
// connection string and pings it, retrying transient
// failures with jittered exponential backoff before
// giving up.
func Dial(ctx context.Context, conn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("catalog: parsing %q: %w", conn, err)
	}
	b := &backoff.Backoff{
		Min:    250 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	for {
		err = pool.Ping(ctx)
		if err == nil {
			return &Postgres{pool: pool}, nil
		}
		if b.Attempt() >= dialAttempts-1 {
			break
		}
		select {
		case <-time.After(b.Duration()):
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		}
	}
	pool.Close()
	return nil, fmt.Errorf("catalog: connecting after %d attempts: %w", dialAttempts, err)
}

// LoadAll implements Store.LoadAll. Rows whose circuit
// JSON does not deserialize are skipped with a log line;
// the catalog is never repaired from here.
func (p *Postgres) LoadAll(ctx context.Context, n int, fn func(*Record) error) error {
	rows, err := p.pool.Query(ctx,
		`SELECT truth_table, size, depth, circuit, worker_id FROM functions WHERE n = $1`,
		int16(n))
	if err != nil {
		return fmt.Errorf("catalog: scanning n=%d: %w", n, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			table       int64
			size, depth int16
			raw         []byte
			workerID    string
		)
		if err := rows.Scan(&table, &size, &depth, &raw, &workerID); err != nil {
			return fmt.Errorf("catalog: scanning row: %w", err)
		}
		rec := &Record{
			TT:       tt.Table(table),
			N:        n,
			Size:     int(size),
			Depth:    int(depth),
			WorkerID: workerID,
		}
		if err := json.Unmarshal(raw, &rec.Circuit); err != nil {
			p.logf("skipping corrupt circuit for tt=%d: %s", table, err)
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Upsert implements Store.Upsert by calling the
// upsert_function procedure; a nonzero result means the
// store was modified.
func (p *Postgres) Upsert(ctx context.Context, rec *Record) (bool, error) {
	raw, err := json.Marshal(rec.Circuit)
	if err != nil {
		return false, fmt.Errorf("catalog: encoding circuit for tt=%d: %w", rec.TT, err)
	}
	var wrote int32
	err = p.pool.QueryRow(ctx,
		`SELECT upsert_function($1, $2, $3, $4, $5, $6)`,
		int64(rec.TT), int16(rec.N), int16(rec.Size), int16(rec.Depth),
		raw, rec.WorkerID).Scan(&wrote)
	if err != nil {
		return false, fmt.Errorf("catalog: upsert tt=%d: %w", rec.TT, err)
	}
	return wrote != 0, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
