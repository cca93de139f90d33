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
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/abcum/qld/auth"
	"github.com/abcum/qld/connection"
	"github.com/abcum/qld/program"
	"github.com/abcum/qld/resultbuilder"
)

// noopAuthenticator always succeeds with a scoped identity; stands in
// for auth.JWTAuthenticator so session tests don't need a real token.
type noopAuthenticator struct{}

func (noopAuthenticator) AuthenticateJWT(string) (auth.Authenticated, error) {
	return auth.Authenticated{Kind: auth.KindRoot}, nil
}
func (noopAuthenticator) AuthenticateBasic(string, string) (auth.Authenticated, error) {
	return auth.Authenticated{Kind: auth.KindRoot}, nil
}

// recordingConn records the order Queries are executed in, so stream
// serialization (S4) can be asserted directly.
type recordingConn struct {
	mu  sync.Mutex
	log []string
}

var _ connection.Connection = (*recordingConn)(nil)

func (c *recordingConn) ExecuteProgram(pgm *program.Program, who auth.Authenticated, b resultbuilder.Builder) (resultbuilder.Builder, connection.State, error) {
	c.mu.Lock()
	for i := 0; i < pgm.Len(); i++ {
		c.log = append(c.log, pgm.Step(i).Query.Stmt)
	}
	c.mu.Unlock()
	_ = b.FinishStep()
	return b, connection.StateInit, nil
}
func (c *recordingConn) Rollback(auth.Authenticated) error { return nil }
func (c *recordingConn) Describe(string, auth.Authenticated) (connection.DescribeResult, error) {
	return connection.DescribeResult{}, nil
}
func (c *recordingConn) IsAutocommit() (bool, error) { return true, nil }
func (c *recordingConn) Checkpoint() error           { return nil }

func newTestSession(t *testing.T, factory connection.Factory) (*Session, *connection.Throttler) {
	th := connection.NewThrottler(4, time.Second, 0, factory)
	s := New(Config{Throttler: th, Authenticator: noopAuthenticator{}})
	if err := s.Hello("token", V3); err != nil {
		t.Fatalf("hello: %v", err)
	}
	return s, th
}

func TestStreamSerialization(t *testing.T) {

	Convey("Given an open stream backed by a recording connection", t, func() {
		rec := &recordingConn{}
		s, _ := newTestSession(t, func() (connection.Connection, error) { return rec, nil })

		So(s.OpenStream(context.Background(), 42), ShouldBeNil)

		Convey("20 concurrent Execute calls each run exactly once on the worker", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, _, err := s.Execute(42, program.Query{Stmt: fmt.Sprintf("stmt-%02d", i)})
					So(err, ShouldBeNil)
				}(i)
			}
			wg.Wait()

			rec.mu.Lock()
			defer rec.mu.Unlock()
			So(len(rec.log), ShouldEqual, 20)
			// The worker serializes jobs FIFO, but concurrent goroutines
			// submit in nondeterministic order; what matters is that every
			// statement ran exactly once and none interleaved mid-step.
			seen := make(map[string]bool)
			for _, stmt := range rec.log {
				So(seen[stmt], ShouldBeFalse)
				seen[stmt] = true
			}
		})
	})
}

func TestOpenStreamFailureLeavesStreamUsableButBroken(t *testing.T) {

	Convey("Given a factory that always errors", t, func() {
		s, _ := newTestSession(t, func() (connection.Connection, error) {
			return nil, errors.New("disk full")
		})

		So(s.OpenStream(context.Background(), 7), ShouldBeNil)

		Convey("Execute on the stream fails with StreamNotOpen", func() {
			_, _, err := s.Execute(7, program.Query{Stmt: "SELECT 1"})
			So(err, ShouldNotBeNil)
		})

		Convey("CloseStream still succeeds and frees the id for reuse", func() {
			So(s.CloseStream(7), ShouldBeNil)
			So(s.OpenStream(context.Background(), 7), ShouldBeNil)
		})
	})
}

func TestStoredSqlCapacity(t *testing.T) {

	Convey("Given a session with a cap of 2 stored SQL texts", t, func() {
		s := New(Config{
			MaxStoredSQL:  2,
			Throttler:     connection.NewThrottler(1, 0, 0, func() (connection.Connection, error) { return &recordingConn{}, nil }),
			Authenticator: noopAuthenticator{},
		})
		So(s.Hello("t", V2), ShouldBeNil)

		So(s.StoreSql(1, "SELECT 1"), ShouldBeNil)
		So(s.StoreSql(2, "SELECT 2"), ShouldBeNil)

		Convey("A third StoreSql fails with SqlTooMany", func() {
			err := s.StoreSql(3, "SELECT 3")
			So(err, ShouldNotBeNil)
		})

		Convey("Storing under an id already present fails", func() {
			err := s.StoreSql(1, "SELECT other")
			So(err, ShouldNotBeNil)
		})

		Convey("CloseSql then StoreSql frees a slot", func() {
			So(s.CloseSql(1), ShouldBeNil)
			So(s.StoreSql(3, "SELECT 3"), ShouldBeNil)
		})
	})
}

func TestCursorInvariant(t *testing.T) {

	Convey("Given a session with an open stream and cursor", t, func() {
		rec := &recordingConn{}
		s, _ := newTestSession(t, func() (connection.Connection, error) { return rec, nil })
		So(s.OpenStream(context.Background(), 1), ShouldBeNil)
		So(s.OpenCursor(1, 100, []program.Query{{Stmt: "SELECT * FROM t", WantRows: true}}), ShouldBeNil)

		Convey("Opening a second cursor on the same stream fails", func() {
			err := s.OpenCursor(1, 101, nil)
			So(err, ShouldNotBeNil)
		})

		Convey("Reusing the cursor id on another stream fails", func() {
			So(s.OpenStream(context.Background(), 2), ShouldBeNil)
			err := s.OpenCursor(2, 100, nil)
			So(err, ShouldNotBeNil)
		})

		Convey("CloseCursor removes it and permits reopening a cursor on the stream", func() {
			So(s.CloseCursor(100), ShouldBeNil)
			So(s.OpenCursor(1, 102, []program.Query{{Stmt: "SELECT 1", WantRows: true}}), ShouldBeNil)
		})
	})
}

func TestFetchCursorRespectsByteBudget(t *testing.T) {

	Convey("Given a cursor over 10,000 rows of ~1KiB each and an 8KiB fetch byte budget", t, func() {
		cols := []string{"v"}
		rows := make([][]interface{}, 10_000)
		payload := make([]byte, 1024)
		for i := range rows {
			rows[i] = []interface{}{string(payload)}
		}
		cursor := newCursorHandle(cols, rows)

		Convey("A fetch with max_count=10,000 stops well short, bounded by the byte budget", func() {
			result := cursor.fetch(10_000, 8*1024)
			So(len(result.Rows), ShouldBeLessThan, 10)
			So(result.Done, ShouldBeFalse)
		})

		Convey("Subsequent fetches resume without loss", func() {
			var total int
			for {
				result := cursor.fetch(10_000, 8*1024)
				total += len(result.Rows)
				if result.Done {
					break
				}
			}
			So(total, ShouldEqual, 10_000)
		})
	})
}
