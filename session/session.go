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

// Package session implements the per-client state machine that sits
// behind the framed WebSocket protocol: stream lifecycle, stored SQL
// texts, cursors, and protocol version negotiation. Everything that
// actually touches a database handle happens on a dedicated worker
// goroutine per stream, so that two requests racing on the same stream
// can never reach the engine out of order.
package session

import (
	"context"
	"sync"

	"github.com/abcum/qld/auth"
	"github.com/abcum/qld/connection"
	"github.com/abcum/qld/protoerr"
)

// Version is the negotiated protocol version. v1 is the original
// request set; v2 adds sequences/describe/stored SQL; v3 adds cursors.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
	V3 Version = 3
)

// DefaultMaxStoredSQL is the cap on Session.sqls used when Config
// leaves MaxStoredSQL at zero.
const DefaultMaxStoredSQL = 150

// Config bundles the knobs a Session needs beyond the wire protocol
// itself.
type Config struct {
	// MaxStoredSQL caps how many StoreSql entries a session may hold at
	// once; zero means DefaultMaxStoredSQL.
	MaxStoredSQL int

	// MaxResponseSize bounds the byte budget a single FetchCursor call
	// may spend; zero means no per-fetch byte cap (max_count alone
	// governs).
	MaxResponseSize int64

	// Throttler admits new Connections for OpenStream's first job.
	Throttler *connection.Throttler

	// Authenticator resolves hello tokens/credentials into an identity.
	Authenticator auth.Authenticator
}

// Session is per-authenticated-client state. It is safe for concurrent
// use by multiple goroutines reading frames off the same transport
// connection, though in practice one reader goroutine drives it
// sequentially.
type Session struct {
	cfg Config

	mu            sync.Mutex
	authenticated auth.Authenticated
	version       Version
	streams       map[int32]*StreamHandle
	sqls          map[int32]string
	cursors       map[int32]int32 // cursor id -> owning stream id
}

// New constructs a Session with no version negotiated and no identity
// established; the first Hello call fixes both.
func New(cfg Config) *Session {
	maxSQL := cfg.MaxStoredSQL
	if maxSQL <= 0 {
		maxSQL = DefaultMaxStoredSQL
	}
	cfg.MaxStoredSQL = maxSQL

	return &Session{
		cfg:     cfg,
		streams: make(map[int32]*StreamHandle),
		sqls:    make(map[int32]string),
		cursors: make(map[int32]int32),
	}
}

// Version reports the session's currently negotiated protocol version.
func (s *Session) Version() Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Authenticated reports the session's current identity.
func (s *Session) Authenticated() auth.Authenticated {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Hello authenticates the session via an optional JWT and fixes its
// protocol version. A repeated hello (the session already has a
// version) is only permitted for v2+, and preserves all stream/sql/
// cursor state — only the identity and version fields change.
func (s *Session) Hello(token string, version Version) error {
	s.mu.Lock()
	first := s.version == 0
	current := s.version
	s.mu.Unlock()

	if !first && current < V2 {
		return protoerr.NotSupported("repeated hello", int(V2))
	}

	identity, err := s.cfg.Authenticator.AuthenticateJWT(token)
	if err != nil {
		return protoerr.Auth(err)
	}

	s.mu.Lock()
	s.authenticated = identity
	s.version = version
	s.mu.Unlock()
	return nil
}

// requireVersion returns NotSupported if the session hasn't negotiated
// at least min.
func (s *Session) requireVersion(what string, min Version) error {
	if s.Version() < min {
		return protoerr.NotSupported(what, int(min))
	}
	return nil
}

// OpenStream allocates a fresh stream id, spawns its worker, and
// enqueues the first job: admitting a Connection through the
// throttler. A factory failure is not reported here — it leaves the
// stream's db handle unset, and the first Execute/Batch/... on it then
// fails with StreamNotOpen (scenario S5).
func (s *Session) OpenStream(ctx context.Context, streamID int32) error {
	s.mu.Lock()
	if _, exists := s.streams[streamID]; exists {
		s.mu.Unlock()
		return protoerr.StreamExists(streamID)
	}
	handle := newStreamHandle(streamID)
	s.streams[streamID] = handle
	s.mu.Unlock()

	go handle.run()

	handle.submit(func(st *stream) {
		tracked, err := s.cfg.Throttler.Create(ctx)
		if err != nil {
			st.openErr = err
			return
		}
		st.conn = tracked
	})
	return nil
}

// CloseStream removes the stream entry (and any cursor it owned), then
// enqueues a terminal job that closes the underlying connection and
// shuts the worker down.
func (s *Session) CloseStream(streamID int32) error {
	s.mu.Lock()
	handle, ok := s.streams[streamID]
	if !ok {
		s.mu.Unlock()
		return protoerr.StreamNotFound(streamID)
	}
	delete(s.streams, streamID)
	if handle.cursorID != nil {
		delete(s.cursors, *handle.cursorID)
	}
	s.mu.Unlock()

	handle.submit(func(st *stream) {
		if tracked, ok := st.conn.(*connection.TrackedConnection); ok {
			// Close rolls the inner connection back if it was left
			// mid-transaction, closes its engine handle, and releases the
			// admission permit — in that order.
			tracked.Close()
		}
		st.cursor = nil
	})
	handle.close()
	return nil
}

// streamHandle looks up a stream by id under the session lock.
func (s *Session) streamHandle(streamID int32) (*StreamHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.streams[streamID]
	if !ok {
		return nil, protoerr.StreamNotFound(streamID)
	}
	return handle, nil
}

// StoreSql records sql under id, rejecting a collision or a session
// already at capacity.
func (s *Session) StoreSql(id int32, sql string) error {
	if err := s.requireVersion("StoreSql", V2); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sqls[id]; exists {
		return protoerr.SqlExists(id)
	}
	if len(s.sqls) >= s.cfg.MaxStoredSQL {
		return protoerr.SqlTooMany(len(s.sqls))
	}
	s.sqls[id] = sql
	return nil
}

// CloseSql removes a stored SQL text; removing an id that isn't
// present is not an error.
func (s *Session) CloseSql(id int32) error {
	if err := s.requireVersion("CloseSql", V2); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sqls, id)
	return nil
}

// resolveSql returns a literal SQL string unchanged, or looks it up by
// stored id.
func (s *Session) resolveSql(literal string, storedID *int32) (string, error) {
	if storedID == nil {
		return literal, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sql, ok := s.sqls[*storedID]
	if !ok {
		return "", protoerr.SqlNotFound(*storedID)
	}
	return sql, nil
}
