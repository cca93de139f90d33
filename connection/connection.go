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

// Package connection implements the Connection
// contract uniform over local and (eventually) write-proxied engines,
// the batch compiler, the memory-pressure-aware throttler, and
// TrackedConnection, the admission permit's sole owner.
package connection

import (
	"errors"

	"github.com/abcum/qld/auth"
	"github.com/abcum/qld/program"
	"github.com/abcum/qld/resultbuilder"
)

// ErrConnectionInvalid is returned by IsAutocommit on a Connection left
// in StateInvalid by a forced rollback, until Rollback recovers it.
// ExecuteProgram on such a connection runs nothing and reports
// StateInvalid with a nil error instead.
var ErrConnectionInvalid = errors.New("connection: left in invalid state by a prior error")

// State is the transaction state observable after a Program runs.
type State int

const (
	StateInit State = iota
	StateTxn
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateTxn:
		return "Txn"
	case StateInvalid:
		return "Invalid"
	default:
		return "Init"
	}
}

// Connection is the uniform contract a single logical database session
// exposes. Callers guarantee no concurrent operation on the same
// Connection; the stream worker is what enforces this upstream.
type Connection interface {
	ExecuteProgram(pgm *program.Program, who auth.Authenticated, b resultbuilder.Builder) (resultbuilder.Builder, State, error)
	Rollback(who auth.Authenticated) error
	Describe(sql string, who auth.Authenticated) (DescribeResult, error)
	IsAutocommit() (bool, error)
	Checkpoint() error
}

// Column mirrors engine.Column at the connection boundary.
type Column struct {
	Name     string
	DeclType string
}

// DescribeResult mirrors engine.DescribeResult at the connection
// boundary, so session/server code doesn't need to import engine
// directly.
type DescribeResult struct {
	Columns    []Column
	Params     []Column
	IsReadOnly bool
}

// ExecuteBatch lowers batch to a Program (no rollback tail) and runs it.
// Rust's Connection trait gives this a default implementation; Go has no
// default interface methods, so it is a free function over the
// Connection interface instead.
func ExecuteBatch(c Connection, batch []program.Query, who auth.Authenticated, b resultbuilder.Builder) (resultbuilder.Builder, State, error) {
	pgm, err := Lower(batch)
	if err != nil {
		return b, StateInvalid, err
	}
	return c.ExecuteProgram(pgm, who, b)
}

// ExecuteBatchOrRollback lowers batch, appends the conditional ROLLBACK
// tail, and runs it, truncating the builder's visible output back down
// to the original batch length.
func ExecuteBatchOrRollback(c Connection, batch []program.Query, who auth.Authenticated, b resultbuilder.Builder) (resultbuilder.Builder, State, error) {
	batchLen := len(batch)
	pgm, err := LowerWithRollback(batch)
	if err != nil {
		return b, StateInvalid, err
	}

	wrapped := b.Take(batchLen)
	wrapped, state, err := c.ExecuteProgram(pgm, who, wrapped)
	return wrapped.IntoInner(), state, err
}
