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
	"io"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/abcum/qld/auth"
	"github.com/abcum/qld/program"
	"github.com/abcum/qld/resultbuilder"
)

// TrackedConnection is the sole owner of an admission permit: it wraps
// an inner Connection and forwards every operation to it, rolling the
// inner connection back and closing its own resources before releasing
// the permit back to the throttler's semaphore exactly once, when Close
// is called. A finalizer backstops callers that never call Close
// explicitly (e.g. a crash path that drops the stream before
// CloseStream runs), so a forgotten TrackedConnection can't pin a
// permit forever.
type TrackedConnection struct {
	inner Connection
	sem   *semaphore.Weighted
	units int64

	closeOnce sync.Once
}

// newTracked wraps inner with the admission bookkeeping Create already
// performed, and arms the finalizer backstop.
func newTracked(inner Connection, sem *semaphore.Weighted, units int64) *TrackedConnection {
	t := &TrackedConnection{inner: inner, sem: sem, units: units}
	runtime.SetFinalizer(t, (*TrackedConnection).Close)
	return t
}

var _ Connection = (*TrackedConnection)(nil)

func (t *TrackedConnection) ExecuteProgram(pgm *program.Program, who auth.Authenticated, b resultbuilder.Builder) (resultbuilder.Builder, State, error) {
	return t.inner.ExecuteProgram(pgm, who, b)
}

func (t *TrackedConnection) Rollback(who auth.Authenticated) error {
	return t.inner.Rollback(who)
}

func (t *TrackedConnection) Describe(sql string, who auth.Authenticated) (DescribeResult, error) {
	return t.inner.Describe(sql, who)
}

func (t *TrackedConnection) IsAutocommit() (bool, error) {
	return t.inner.IsAutocommit()
}

func (t *TrackedConnection) Checkpoint() error {
	return t.inner.Checkpoint()
}

// Close rolls back any transaction left open on the inner connection
// (per the contract that abandoning a Connection mid-Txn implies an
// implicit rollback), closes the inner connection's own resources if it
// implements io.Closer, and releases the admission permit this
// connection holds. It is safe to call more than once; only the first
// call has any effect, and it clears the finalizer so a later GC doesn't
// redo the work.
func (t *TrackedConnection) Close() {
	t.closeOnce.Do(func() {
		_ = t.inner.Rollback(auth.Authenticated{})
		if c, ok := t.inner.(io.Closer); ok {
			_ = c.Close()
		}
		t.sem.Release(t.units)
		runtime.SetFinalizer(t, nil)
	})
}
