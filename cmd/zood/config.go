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
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"
)

// options collects everything the run needs. A YAML config
// file may set any of these; flags given explicitly on the
// command line win over the file.
type options struct {
	N            int    `json:"n"`
	MaxSize      int    `json:"max_size"`
	Database     string `json:"database"`
	WorkerID     string `json:"worker_id"`
	Threads      int    `json:"threads"`
	Local        bool   `json:"local"`
	SyncInterval string `json:"sync_interval"`
	Snapshot     string `json:"snapshot"`
	Restore      string `json:"restore"`
}

func defaults() options {
	return options{
		N:            4,
		MaxSize:      15,
		SyncInterval: "5s",
	}
}

// loadFile overlays the config file at path onto o.
func (o *options) loadFile(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(buf, o); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	// YAML 1.1 resolves a bare n (or N) key to the boolean
	// false, so it reaches the JSON field match as "false"
	var bare struct {
		N *int `json:"false"`
	}
	if err := yaml.Unmarshal(buf, &bare); err == nil && bare.N != nil {
		o.N = *bare.N
	}
	return nil
}

func (o *options) syncInterval() (time.Duration, error) {
	if o.SyncInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(o.SyncInterval)
	if err != nil {
		return 0, fmt.Errorf("bad sync_interval %q: %w", o.SyncInterval, err)
	}
	return d, nil
}

func (o *options) validate() error {
	if !o.Local && o.Database == "" {
		return fmt.Errorf("-database is required unless -local is set")
	}
	return nil
}
