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

// Package snapshot reads and writes single-file dumps of a
// zoo: a zstd-compressed stream of JSON records behind a
// blake2b-256 integrity header.
//
// Snapshots give local-only runs durability and let a
// distributed worker bootstrap an empty catalog, but they
// are a side channel: restoring uses the same merge
// semantics as a catalog pull, so a snapshot can never
// override a better (size, depth) already known.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/SnellerInc/zoo/circuit"
	"github.com/SnellerInc/zoo/tt"
	"github.com/SnellerInc/zoo/zoo"
)

// magic begins every snapshot, followed by the
// blake2b-256 sum of the compressed body.
var magic = []byte{'z', 'o', 'o', 's', 'n', 'a', 'p', 0x01}

// ErrCorrupt is returned when the integrity check fails.
var ErrCorrupt = errors.New("snapshot: checksum mismatch")

// ErrFormat is returned for files that are not snapshots
// or that disagree with the target zoo.
var ErrFormat = errors.New("snapshot: bad format")

type header struct {
	N     int `json:"n"`
	Count int `json:"count"`
}

type record struct {
	TT      uint64       `json:"tt"`
	Size    int          `json:"size"`
	Depth   int          `json:"depth"`
	Circuit circuit.Node `json:"circuit"`
}

// Write dumps every function recorded in z to w and
// returns the number of records written.
func Write(w io.Writer, z *zoo.Zoo) (int, error) {
	var body bytes.Buffer
	recs := make([]record, 0, 1024)
	z.ForEach(func(t tt.Table, info *circuit.Info) bool {
		recs = append(recs, record{
			TT:      uint64(t),
			Size:    info.Size,
			Depth:   info.Depth,
			Circuit: info.Node,
		})
		return true
	})
	enc := json.NewEncoder(&body)
	if err := enc.Encode(header{N: z.Vars(), Count: len(recs)}); err != nil {
		return 0, err
	}
	for i := range recs {
		if err := enc.Encode(&recs[i]); err != nil {
			return 0, err
		}
	}
	zenc, err := zstd.NewWriter(nil)
	if err != nil {
		return 0, err
	}
	comp := zenc.EncodeAll(body.Bytes(), nil)
	zenc.Close()
	sum := blake2b.Sum256(comp)
	for _, chunk := range [][]byte{magic, sum[:], comp} {
		if _, err := w.Write(chunk); err != nil {
			return 0, err
		}
	}
	return len(recs), nil
}

// Restore merges the snapshot in r into z and returns how
// many records were new locally. The snapshot must have
// been written for the same number of variables.
func Restore(r io.Reader, z *zoo.Zoo) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if len(data) < len(magic)+blake2b.Size256 || !bytes.Equal(data[:len(magic)], magic) {
		return 0, fmt.Errorf("%w: missing magic", ErrFormat)
	}
	sum := data[len(magic) : len(magic)+blake2b.Size256]
	comp := data[len(magic)+blake2b.Size256:]
	if got := blake2b.Sum256(comp); !bytes.Equal(got[:], sum) {
		return 0, ErrCorrupt
	}
	zdec, err := zstd.NewReader(nil)
	if err != nil {
		return 0, err
	}
	body, err := zdec.DecodeAll(comp, nil)
	zdec.Close()
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrFormat, err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	var hdr header
	if err := dec.Decode(&hdr); err != nil {
		return 0, fmt.Errorf("%w: bad header: %s", ErrFormat, err)
	}
	if hdr.N != z.Vars() {
		return 0, fmt.Errorf("%w: snapshot is for n=%d, zoo has n=%d",
			ErrFormat, hdr.N, z.Vars())
	}
	added := 0
	for i := 0; i < hdr.Count; i++ {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			return added, fmt.Errorf("%w: record %d: %s", ErrFormat, i, err)
		}
		t := tt.Table(rec.TT)
		if !t.Valid(hdr.N) {
			return added, fmt.Errorf("%w: record %d: table %d out of range",
				ErrFormat, i, rec.TT)
		}
		if z.MergeExternal(t, rec.Size, rec.Depth, rec.Circuit) {
			added++
		}
	}
	return added, nil
}
