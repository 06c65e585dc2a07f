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

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zood.yaml")
	err := os.WriteFile(path, []byte(`
n: 3
max_size: 9
database: "host=db.internal user=zoo dbname=zoo"
sync_interval: 10s
`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	opts := defaults()
	if err := opts.loadFile(path); err != nil {
		t.Fatal(err)
	}
	if opts.N != 3 || opts.MaxSize != 9 {
		t.Fatalf("loaded %+v", opts)
	}
	if opts.Database == "" {
		t.Fatal("database not loaded")
	}
	d, err := opts.syncInterval()
	if err != nil {
		t.Fatal(err)
	}
	if d != 10*time.Second {
		t.Fatalf("sync interval = %s", d)
	}
	if err := opts.validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidate(t *testing.T) {
	opts := defaults()
	if err := opts.validate(); err == nil {
		t.Error("empty database accepted without -local")
	}
	opts.Local = true
	if err := opts.validate(); err != nil {
		t.Errorf("local mode rejected: %s", err)
	}
	opts = defaults()
	opts.SyncInterval = "soon"
	if _, err := opts.syncInterval(); err == nil {
		t.Error("bad duration accepted")
	}
}
