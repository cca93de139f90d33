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

package session

import (
	"fmt"
	"strings"

	"github.com/abcum/qld/connection"
	"github.com/abcum/qld/program"
	"github.com/abcum/qld/protoerr"
	"github.com/abcum/qld/resultbuilder"
)

// streamJobCapacity is the bound on a stream's pending-job mailbox.
// Once full, submitting a new job blocks the caller, which is the
// mechanism that pushes request-dispatch backpressure back up to the
// transport reader.
const streamJobCapacity = 8

// stream is worker-local state: never touched by anything but the
// goroutine running StreamHandle.run.
type stream struct {
	conn    connection.Connection
	openErr error
	cursor  *CursorHandle
}

// StreamHandle is the session-facing side of a stream: a bounded job
// queue plus the id of whatever cursor the stream currently owns (nil
// if none). Nothing outside the owning worker goroutine may touch
// stream's fields directly.
type StreamHandle struct {
	id       int32
	jobs     chan func(*stream)
	cursorID *int32
}

func newStreamHandle(id int32) *StreamHandle {
	return &StreamHandle{id: id, jobs: make(chan func(*stream), streamJobCapacity)}
}

// run consumes jobs one at a time until the mailbox is closed,
// providing single-writer access to the stream's connection and
// cursor for as long as the worker lives.
func (h *StreamHandle) run() {
	st := &stream{}
	for job := range h.jobs {
		job(st)
	}
}

func (h *StreamHandle) submit(job func(*stream)) {
	h.jobs <- job
}

func (h *StreamHandle) close() {
	close(h.jobs)
}

// reply carries a job's result back to its submitter; a panic inside
// the job is turned into an opaque error here rather than left to wedge
// the caller on a channel nothing ever writes to.
type reply[T any] struct {
	val T
	err error
}

func submitWithReply[T any](h *StreamHandle, fn func(*stream) (T, error)) (T, error) {
	ch := make(chan reply[T], 1)
	h.submit(func(st *stream) {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				ch <- reply[T]{val: zero, err: fmt.Errorf("stream worker panicked: %v", r)}
			}
		}()
		v, err := fn(st)
		ch <- reply[T]{val: v, err: err}
	})
	res := <-ch
	return res.val, res.err
}

// requireOpen fails the job with StreamNotOpen if the stream's
// connection factory never succeeded.
func requireOpen(st *stream, streamID int32) error {
	if st.openErr != nil {
		return protoerr.StreamNotOpen(streamID)
	}
	if st.conn == nil {
		return protoerr.StreamNotOpen(streamID)
	}
	return nil
}

// Execute compiles one statement into a single-step Program and runs
// it on the target stream's worker.
func (s *Session) Execute(streamID int32, q program.Query) (*resultbuilder.Collecting, connection.State, error) {
	if err := s.requireVersion("Execute", V1); err != nil {
		return nil, connection.StateInvalid, err
	}
	handle, err := s.streamHandle(streamID)
	if err != nil {
		return nil, connection.StateInvalid, err
	}

	type result struct {
		builder *resultbuilder.Collecting
		state   connection.State
	}

	r, err := submitWithReply(handle, func(st *stream) (result, error) {
		if err := requireOpen(st, streamID); err != nil {
			return result{}, err
		}
		pgm, err := program.New([]program.Step{{Query: q}})
		if err != nil {
			return result{}, protoerr.Stmt(err)
		}
		b := resultbuilder.NewCollecting()
		out, state, err := st.conn.ExecuteProgram(pgm, s.Authenticated(), b)
		if err != nil {
			return result{builder: b, state: state}, protoerr.Stmt(err)
		}
		return result{builder: out.(*resultbuilder.Collecting), state: state}, nil
	})
	return r.builder, r.state, err
}

// Batch compiles a flat list of queries into a chained Program with a
// synthetic ROLLBACK tail (via connection.LowerWithRollback) and runs
// it, so a mid-batch failure rolls back any transaction left open.
// Statements that ran in autocommit mode before the failure stay
// committed.
func (s *Session) Batch(streamID int32, queries []program.Query) (*resultbuilder.Collecting, connection.State, error) {
	if err := s.requireVersion("Batch", V1); err != nil {
		return nil, connection.StateInvalid, err
	}
	handle, err := s.streamHandle(streamID)
	if err != nil {
		return nil, connection.StateInvalid, err
	}

	type result struct {
		builder *resultbuilder.Collecting
		state   connection.State
	}

	r, err := submitWithReply(handle, func(st *stream) (result, error) {
		if err := requireOpen(st, streamID); err != nil {
			return result{}, err
		}
		b := resultbuilder.NewCollecting()
		out, state, err := connection.ExecuteBatchOrRollback(st.conn, queries, s.Authenticated(), b)
		if err != nil {
			return result{builder: b, state: state}, protoerr.Batch(err)
		}
		return result{builder: out.(*resultbuilder.Collecting), state: state}, nil
	})
	return r.builder, r.state, err
}

// Sequence splits a multi-statement SQL blob on ';' into a Program of
// side-effecting-only steps (no row data is ever requested) chained
// the same way a batch is, and runs it.
func (s *Session) Sequence(streamID int32, sql string) (connection.State, error) {
	if err := s.requireVersion("Sequence", V2); err != nil {
		return connection.StateInvalid, err
	}
	handle, err := s.streamHandle(streamID)
	if err != nil {
		return connection.StateInvalid, err
	}

	var queries []program.Query
	for _, stmt := range strings.Split(sql, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		queries = append(queries, program.Query{Stmt: stmt, WantRows: false})
	}

	state, err := submitWithReply(handle, func(st *stream) (connection.State, error) {
		if err := requireOpen(st, streamID); err != nil {
			return connection.StateInvalid, err
		}
		_, state, err := connection.ExecuteBatch(st.conn, queries, s.Authenticated(), resultbuilder.Ignore{})
		if err != nil {
			return state, protoerr.Batch(err)
		}
		return state, nil
	})
	return state, err
}

// Describe resolves sql (a literal, or a stored id via storedID) and
// describes it on the target stream's worker without mutating
// connection state.
func (s *Session) Describe(streamID int32, literal string, storedID *int32) (connection.DescribeResult, error) {
	if err := s.requireVersion("Describe", V2); err != nil {
		return connection.DescribeResult{}, err
	}
	handle, err := s.streamHandle(streamID)
	if err != nil {
		return connection.DescribeResult{}, err
	}

	sql, err := s.resolveSql(literal, storedID)
	if err != nil {
		return connection.DescribeResult{}, err
	}

	return submitWithReply(handle, func(st *stream) (connection.DescribeResult, error) {
		if err := requireOpen(st, streamID); err != nil {
			return connection.DescribeResult{}, err
		}
		d, err := st.conn.Describe(sql, s.Authenticated())
		if err != nil {
			return connection.DescribeResult{}, protoerr.Stmt(err)
		}
		return d, nil
	})
}

// GetAutocommit asks the engine, on the stream's worker, whether the
// connection is currently outside an explicit transaction.
func (s *Session) GetAutocommit(streamID int32) (bool, error) {
	if err := s.requireVersion("GetAutocommit", V3); err != nil {
		return false, err
	}
	handle, err := s.streamHandle(streamID)
	if err != nil {
		return false, err
	}

	return submitWithReply(handle, func(st *stream) (bool, error) {
		if err := requireOpen(st, streamID); err != nil {
			return false, err
		}
		auto, err := st.conn.IsAutocommit()
		if err != nil {
			return false, protoerr.Stmt(err)
		}
		return auto, nil
	})
}

// OpenCursor requires the stream not already own a cursor and the
// cursor id to be fresh, compiles batch, runs it eagerly to
// materialize its rows, and attaches a CursorHandle to the stream.
func (s *Session) OpenCursor(streamID, cursorID int32, batch []program.Query) error {
	if err := s.requireVersion("OpenCursor", V3); err != nil {
		return err
	}

	s.mu.Lock()
	handle, ok := s.streams[streamID]
	if !ok {
		s.mu.Unlock()
		return protoerr.StreamNotFound(streamID)
	}
	if handle.cursorID != nil {
		s.mu.Unlock()
		return protoerr.CursorAlreadyOpen(streamID)
	}
	if _, exists := s.cursors[cursorID]; exists {
		s.mu.Unlock()
		return protoerr.CursorExists(cursorID)
	}
	s.cursors[cursorID] = streamID
	handle.cursorID = &cursorID
	s.mu.Unlock()

	_, err := submitWithReply(handle, func(st *stream) (struct{}, error) {
		if err := requireOpen(st, streamID); err != nil {
			return struct{}{}, err
		}
		b := resultbuilder.NewCollecting()
		out, _, err := connection.ExecuteBatch(st.conn, batch, s.Authenticated(), b)
		if err != nil {
			return struct{}{}, protoerr.Batch(err)
		}
		collected := out.(*resultbuilder.Collecting)
		var cols []string
		var rows [][]interface{}
		for _, step := range collected.Steps {
			cols = step.Columns
			rows = append(rows, step.Rows...)
		}
		st.cursor = newCursorHandle(cols, rows)
		return struct{}{}, nil
	})

	if err != nil {
		s.mu.Lock()
		delete(s.cursors, cursorID)
		handle.cursorID = nil
		s.mu.Unlock()
	}
	return err
}

// CloseCursor removes the cursors entry and clears the owning stream's
// cursor handle.
func (s *Session) CloseCursor(cursorID int32) error {
	if err := s.requireVersion("CloseCursor", V3); err != nil {
		return err
	}

	s.mu.Lock()
	streamID, ok := s.cursors[cursorID]
	if !ok {
		s.mu.Unlock()
		return protoerr.CursorNotFound(cursorID)
	}
	handle := s.streams[streamID]
	delete(s.cursors, cursorID)
	if handle != nil {
		handle.cursorID = nil
	}
	s.mu.Unlock()

	if handle == nil {
		return nil
	}
	_, err := submitWithReply(handle, func(st *stream) (struct{}, error) {
		st.cursor = nil
		return struct{}{}, nil
	})
	return err
}

// FetchCursor drains up to maxCount rows and the session's configured
// byte budget (MaxResponseSize/8) from the cursor owned by streamID.
func (s *Session) FetchCursor(streamID, cursorID int32, maxCount int) (FetchResult, error) {
	if err := s.requireVersion("FetchCursor", V3); err != nil {
		return FetchResult{}, err
	}
	handle, err := s.streamHandle(streamID)
	if err != nil {
		return FetchResult{}, err
	}

	var byteBudget int64
	if s.cfg.MaxResponseSize > 0 {
		byteBudget = s.cfg.MaxResponseSize / 8
	}

	return submitWithReply(handle, func(st *stream) (FetchResult, error) {
		if st.cursor == nil {
			return FetchResult{}, protoerr.CursorNotOpen(cursorID)
		}
		return st.cursor.fetch(maxCount, byteBudget), nil
	})
}

// Rollback calls Rollback on the stream's connection; no result builder
// is involved, so it never produces visible output.
func (s *Session) Rollback(streamID int32) error {
	handle, err := s.streamHandle(streamID)
	if err != nil {
		return err
	}
	_, err = submitWithReply(handle, func(st *stream) (struct{}, error) {
		if err := requireOpen(st, streamID); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, st.conn.Rollback(s.Authenticated())
	})
	return err
}
