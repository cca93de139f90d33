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
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/abcum/qld/auth"
	"github.com/abcum/qld/program"
	"github.com/abcum/qld/resultbuilder"
)

func TestLowerWithRollback(t *testing.T) {

	Convey("Given a non-empty batch of 3 queries", t, func() {
		batch := []program.Query{
			{Stmt: "BEGIN"},
			{Stmt: "INSERT ok"},
			{Stmt: "INSERT fail"},
		}

		pgm, err := LowerWithRollback(batch)
		So(err, ShouldBeNil)

		Convey("The lowered program has len(batch)+1 steps", func() {
			So(pgm.Len(), ShouldEqual, len(batch)+1)
		})

		Convey("The appended step is ROLLBACK guarded by Not(Ok(last))", func() {
			last := pgm.Step(pgm.Len() - 1)
			So(last.Query.Stmt, ShouldEqual, rollbackQuery)
			So(last.Cond.Kind, ShouldEqual, program.CondNot)
			So(last.Cond.A.Kind, ShouldEqual, program.CondOk)
			So(last.Cond.A.Step, ShouldEqual, len(batch)-1)
		})

		Convey("Step 0 has no condition and step i>0 has Ok(i-1)", func() {
			So(pgm.Step(0).Cond, ShouldBeNil)
			So(pgm.Step(1).Cond.Kind, ShouldEqual, program.CondOk)
			So(pgm.Step(1).Cond.Step, ShouldEqual, 0)
			So(pgm.Step(2).Cond.Kind, ShouldEqual, program.CondOk)
			So(pgm.Step(2).Cond.Step, ShouldEqual, 1)
		})
	})

	Convey("An empty batch lowers to an empty program", t, func() {
		pgm, err := LowerWithRollback(nil)
		So(err, ShouldBeNil)
		So(pgm.Len(), ShouldEqual, 0)
	})
}

// fakeConn drives ExecuteProgram against an in-memory script of
// per-statement outcomes, standing in for an engine.Handle-backed Local
// connection so the batch short-circuit path can be tested without
// sqlite.
type fakeConn struct {
	fail  map[string]bool
	state State
}

var _ Connection = (*fakeConn)(nil)

func (f *fakeConn) ExecuteProgram(pgm *program.Program, who auth.Authenticated, b resultbuilder.Builder) (resultbuilder.Builder, State, error) {
	results := program.Run(pgm, fakeRunnerFor(f))
	f.state = StateInit
	for i := 0; i < pgm.Len(); i++ {
		switch results[i].Outcome {
		case program.OutcomeErr:
			_ = b.AddError(results[i].Err)
			f.state = StateInvalid
		case program.OutcomeOk:
			f.state = StateInit
		}
		_ = b.FinishStep()
	}
	return b, f.state, nil
}

func (f *fakeConn) Rollback(auth.Authenticated) error { return nil }
func (f *fakeConn) Describe(string, auth.Authenticated) (DescribeResult, error) {
	return DescribeResult{}, nil
}
func (f *fakeConn) IsAutocommit() (bool, error) { return f.state != StateTxn, nil }
func (f *fakeConn) Checkpoint() error           { return nil }

func fakeRunnerFor(f *fakeConn) program.Runner {
	return runnerFunc(func(step int, q program.Query) (interface{}, error) {
		if f.fail[q.Stmt] {
			return nil, errStatementFailed
		}
		return nil, nil
	})
}

type runnerFunc func(step int, q program.Query) (interface{}, error)

func (r runnerFunc) Run(step int, q program.Query) (interface{}, error) { return r(step, q) }

var errStatementFailed = &fakeErr{}

type fakeErr struct{}

func (*fakeErr) Error() string { return "statement failed" }

func TestExecuteBatchOrRollbackShortCircuits(t *testing.T) {

	Convey("Given a batch where the third insert fails", t, func() {
		batch := []program.Query{
			{Stmt: "BEGIN"},
			{Stmt: "INSERT ok"},
			{Stmt: "INSERT fail"},
			{Stmt: "INSERT ok2"},
		}
		conn := &fakeConn{fail: map[string]bool{"INSERT fail": true}}

		out, state, err := ExecuteBatchOrRollback(conn, batch, auth.Authenticated{}, resultbuilder.NewCollecting())
		So(err, ShouldBeNil)

		collected := out.(*resultbuilder.Collecting)

		Convey("Only the 4 original slots are visible, never the rollback tail", func() {
			So(len(collected.Steps), ShouldEqual, 4)
		})

		Convey("The final state is Init once the rollback fires", func() {
			So(state, ShouldEqual, StateInit)
		})
	})
}
