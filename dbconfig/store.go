// Copyright © 2016 Abcum Ltd
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dbconfig holds the small, rarely-changed per-database
// document (read/write blocking flags) that sits beside the database
// file on disk and is consulted by the dispatcher ahead of every
// request.
package dbconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ugorji/go/codec"
)

const (
	configFile    = "config.json"
	stagingSuffix = "~"
)

// jsonHandle is shared by every encode/decode call; codec.Handle values
// are safe for concurrent use once configured.
var jsonHandle = &codec.JsonHandle{}

// Config is the persisted, JSON-serializable document. The zero value
// is the default: nothing blocked, no reason.
type Config struct {
	BlockReads  bool   `json:"block_reads"`
	BlockWrites bool   `json:"block_writes"`
	BlockReason string `json:"block_reason,omitempty"`
}

// Store is an atomically-replaced JSON document behind an in-memory
// snapshot pointer: Get never blocks on a concurrent Store, and every
// Get call returns one immutable, internally consistent value.
type Store struct {
	dir      string
	snapshot atomic.Pointer[Config]
}

// Load reads <dir>/config.json into a new Store. A missing file is not
// an error — the Store starts at the zero-value default config — but a
// file that exists and fails to parse is.
func Load(dir string) (*Store, error) {
	s := &Store{dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if os.IsNotExist(err) {
		s.snapshot.Store(&Config{})
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := codec.NewDecoderBytes(data, jsonHandle).Decode(&cfg); err != nil {
		return nil, err
	}
	s.snapshot.Store(&cfg)
	return s, nil
}

// Get returns the current snapshot. The returned value must be treated
// as immutable; callers that want to change it construct a new Config
// and pass it to Store.
func (s *Store) Get() Config {
	return *s.snapshot.Load()
}

// Store persists cfg by writing the staging file, renaming it over the
// live file (atomic on POSIX filesystems), and only then swapping the
// in-memory snapshot. A write or rename failure leaves the prior
// snapshot and on-disk file untouched.
func (s *Store) Store(cfg Config) error {
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, jsonHandle).Encode(cfg); err != nil {
		return err
	}
	data := buf.Bytes()

	staging := filepath.Join(s.dir, configFile+stagingSuffix)
	live := filepath.Join(s.dir, configFile)

	if err := os.WriteFile(staging, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(staging, live); err != nil {
		return err
	}

	s.snapshot.Store(&cfg)
	return nil
}
