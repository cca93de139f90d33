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

package program

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeRunner struct {
	fail map[int]bool
}

func (r *fakeRunner) Run(step int, q Query) (interface{}, error) {
	if r.fail[step] {
		return nil, errors.New("boom")
	}
	return q.Stmt, nil
}

func TestNewRejectsForwardAndSelfReferences(t *testing.T) {

	Convey("A step whose condition references itself is rejected", t, func() {
		_, err := New([]Step{
			{Query: Query{Stmt: "A"}, Cond: Ok(0)},
		})
		So(err, ShouldNotBeNil)
	})

	Convey("A step whose condition references a later step is rejected", t, func() {
		_, err := New([]Step{
			{Query: Query{Stmt: "A"}, Cond: Ok(1)},
			{Query: Query{Stmt: "B"}},
		})
		So(err, ShouldNotBeNil)
	})

	Convey("A step whose condition references an earlier step is accepted", t, func() {
		p, err := New([]Step{
			{Query: Query{Stmt: "A"}},
			{Query: Query{Stmt: "B"}, Cond: Ok(0)},
		})
		So(err, ShouldBeNil)
		So(p.Len(), ShouldEqual, 2)
	})
}

func TestRunSkipsNeitherOkNorErr(t *testing.T) {

	Convey("Given a chain where the middle step fails", t, func() {
		p, err := New([]Step{
			{Query: Query{Stmt: "A"}},
			{Query: Query{Stmt: "B"}, Cond: Ok(0)},
			{Query: Query{Stmt: "C"}, Cond: Ok(1)},
		})
		So(err, ShouldBeNil)

		results := Run(p, &fakeRunner{fail: map[int]bool{1: true}})

		Convey("The first step runs and succeeds", func() {
			So(results[0].Outcome, ShouldEqual, OutcomeOk)
		})
		Convey("The second step runs and fails", func() {
			So(results[1].Outcome, ShouldEqual, OutcomeErr)
		})
		Convey("The third step is skipped, not treated as Err", func() {
			So(results[2].Outcome, ShouldEqual, OutcomeSkipped)
		})
	})

	Convey("A condition referencing a skipped step is neither Ok nor Err", t, func() {
		p, err := New([]Step{
			{Query: Query{Stmt: "A"}},
			{Query: Query{Stmt: "B"}, Cond: Not(Ok(0))}, // never runs since A succeeds
			{Query: Query{Stmt: "C"}, Cond: Ok(1)},
			{Query: Query{Stmt: "D"}, Cond: Err(1)},
		})
		So(err, ShouldBeNil)

		results := Run(p, &fakeRunner{})
		So(results[0].Outcome, ShouldEqual, OutcomeOk)
		So(results[1].Outcome, ShouldEqual, OutcomeSkipped)
		So(results[2].Outcome, ShouldEqual, OutcomeSkipped, "Ok(1) is false when step 1 was skipped")
		So(results[3].Outcome, ShouldEqual, OutcomeSkipped, "Err(1) is also false when step 1 was skipped")
	})
}
