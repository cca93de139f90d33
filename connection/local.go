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

package connection

import (
	"sync"
	"time"

	"github.com/abcum/qld/auth"
	"github.com/abcum/qld/engine"
	"github.com/abcum/qld/program"
	"github.com/abcum/qld/resultbuilder"
)

// TxnTimeout is how long a Local connection may sit idle inside an open
// transaction before the next operation forces a rollback and leaves
// the connection in StateInvalid. It is a package var, not a const, so
// the daemon entrypoint can set it from cnf.Options.Session.TxnTimeout
// at startup.
var TxnTimeout = 5 * time.Second

// Local is the Connection implementation backing one tenant database:
// an engine.Handle plus whatever transaction bookkeeping the Connection
// contract needs on top of it. A write-proxied Connection (forwarding
// to a primary over the replication link) would satisfy the same
// interface without embedding Local.
type Local struct {
	mu sync.Mutex

	handle engine.Handle
	state  State
	lastOp time.Time
}

var _ Connection = (*Local)(nil)

// NewLocal wraps an already-open engine.Handle.
func NewLocal(h engine.Handle) *Local {
	return &Local{handle: h, state: StateInit, lastOp: time.Now()}
}

// checkIdleTimeout forces a rollback, without taking the lock (the
// caller already holds it), if the connection has sat in StateTxn for
// longer than TxnTimeout since its last operation.
func (l *Local) checkIdleTimeout() {
	if l.state != StateTxn {
		return
	}
	if time.Since(l.lastOp) <= TxnTimeout {
		return
	}
	if _, err := l.handle.Exec("ROLLBACK", nil, false); err != nil {
		l.state = StateInvalid
		return
	}
	l.state = StateInvalid
}

func (l *Local) ExecuteProgram(pgm *program.Program, who auth.Authenticated, b resultbuilder.Builder) (resultbuilder.Builder, State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.checkIdleTimeout()
	if l.state == StateInvalid {
		return b, l.state, nil
	}

	runner := &handleRunner{handle: l.handle, builder: b}
	results := program.Run(pgm, runner)

	for _, r := range results {
		switch r.Outcome {
		case program.OutcomeSkipped:
			// An empty slot keeps later steps aligned with their index.
		case program.OutcomeErr:
			_ = b.AddError(r.Err)
		default:
			if rows, ok := r.Rows.(engine.Rows); ok {
				for _, row := range rows.Rows {
					_ = b.AddRow(rows.Columns, row)
				}
			}
		}
		_ = b.FinishStep()
	}

	l.lastOp = time.Now()
	l.state = l.stateAfter()
	return b, l.state, nil
}

// stateAfter derives the post-run transaction state by asking the
// engine handle whether it is still in autocommit mode; a handle left
// mid-transaction reports StateTxn, otherwise StateInit. Any hard
// failure while asking is reported as StateInvalid so callers don't
// mistake an unreadable connection for a clean one.
func (l *Local) stateAfter() State {
	auto, err := l.handle.InAutocommit()
	if err != nil {
		return StateInvalid
	}
	if auto {
		return StateInit
	}
	return StateTxn
}

func (l *Local) Rollback(who auth.Authenticated) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.handle.Exec("ROLLBACK", nil, false)
	l.lastOp = time.Now()
	l.state = StateInit
	return err
}

func (l *Local) Describe(sql string, who auth.Authenticated) (DescribeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, err := l.handle.Describe(sql)
	if err != nil {
		return DescribeResult{}, err
	}

	out := DescribeResult{IsReadOnly: d.IsReadOnly}
	for _, c := range d.Columns {
		out.Columns = append(out.Columns, Column{Name: c.Name, DeclType: c.DeclType})
	}
	for _, c := range d.Params {
		out.Params = append(out.Params, Column{Name: c.Name, DeclType: c.DeclType})
	}
	return out, nil
}

func (l *Local) IsAutocommit() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.checkIdleTimeout()
	if l.state == StateInvalid {
		return false, ErrConnectionInvalid
	}
	return l.handle.InAutocommit()
}

func (l *Local) Checkpoint() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle.Checkpoint()
}

// Close releases the underlying engine handle.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle.Close()
}

// handleRunner adapts an engine.Handle to program.Runner, feeding each
// step's positional parameters through to Exec; Params.Named is not
// passed on.
type handleRunner struct {
	handle  engine.Handle
	builder resultbuilder.Builder
}

func (r *handleRunner) Run(step int, q program.Query) (interface{}, error) {
	args := q.Params.Positional
	return r.handle.Exec(q.Stmt, args, q.WantRows)
}
