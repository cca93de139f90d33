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

import "github.com/abcum/qld/program"

// rollbackQuery is the synthetic statement appended by LowerWithRollback.
const rollbackQuery = "ROLLBACK"

// Lower compiles a flat batch into a Program where step 0 runs
// unconditionally and every later step only runs if its predecessor
// succeeded: a plain best-effort chain with no implicit rollback.
func Lower(batch []program.Query) (*program.Program, error) {
	if len(batch) == 0 {
		return program.New(nil)
	}

	steps := make([]program.Step, len(batch))
	for i, q := range batch {
		var cond *program.Cond
		if i > 0 {
			cond = program.Ok(i - 1)
		}
		steps[i] = program.Step{Query: q, Cond: cond}
	}
	return program.New(steps)
}

// LowerWithRollback compiles batch the same way Lower does, then appends
// a ROLLBACK step that only runs if the last query in the batch did not
// succeed (including if it was itself skipped). Its output is hidden
// from callers via Builder.Take/IntoInner in ExecuteBatchOrRollback.
func LowerWithRollback(batch []program.Query) (*program.Program, error) {
	if len(batch) == 0 {
		return program.New(nil)
	}

	steps := make([]program.Step, len(batch)+1)
	for i, q := range batch {
		var cond *program.Cond
		if i > 0 {
			cond = program.Ok(i - 1)
		}
		steps[i] = program.Step{Query: q, Cond: cond}
	}

	last := len(batch) - 1
	steps[len(batch)] = program.Step{
		Query: program.Query{Stmt: rollbackQuery},
		Cond:  program.Not(program.Ok(last)),
	}
	return program.New(steps)
}
