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

// Package resultbuilder implements the external-collaborator contract
// of the engine boundary: the engine is handed a Builder object that the core
// does not implement in full, but must interoperate with — take/
// into_inner to hide a synthetic tail step, IgnoreResult as a no-op sink
// for internal rollbacks, and a process-wide response-size gauge that
// feeds the throttler's memory-pressure heuristic.
package resultbuilder

import "sync/atomic"

// totalResponseSize is the global, process-wide response-memory gauge
// updated with relaxed atomic ordering; exactness is not required for
// the pressure heuristic it feeds.
var totalResponseSize atomic.Int64

// AddResponseSize is called by a Builder as it accumulates bytes for a
// chunk of response data.
func AddResponseSize(n int64) { totalResponseSize.Add(n) }

// ResponseSize reads the current value of the global gauge. Reads need
// not be linearized with writes; callers (the throttler) only use this
// as a pressure heuristic.
func ResponseSize() int64 { return totalResponseSize.Load() }

// ResetResponseSize exists for tests that need a clean gauge between
// scenarios; production code never calls it.
func ResetResponseSize() { totalResponseSize.Store(0) }

// Builder is the engine-facing result sink. take/into_inner let a
// Connection hide a synthetic trailing step (the rollback tail appended
// by the batch compiler) from the caller's view of the result set.
type Builder interface {
	// AddRow records one row of output belonging to the current step.
	AddRow(cols []string, row []interface{}) error

	// AddError records that the current step failed.
	AddError(err error) error

	// FinishStep closes out the current step's output and advances to
	// the next logical slot.
	FinishStep() error

	// Take wraps the Builder so that only the first n logical steps'
	// output is visible to whatever consumes it; further output is
	// still accepted (so the caller's rollback tail can run) but
	// suppressed.
	Take(n int) Builder

	// IntoInner recovers the parent Builder after a Take wrapper is
	// done being used.
	IntoInner() Builder
}

// Ignore is the IgnoreResult builder: a no-op sink, used by
// Session.Sequence, whose steps produce no visible output.
type Ignore struct{}

func (Ignore) AddRow([]string, []interface{}) error { return nil }
func (Ignore) AddError(error) error                  { return nil }
func (Ignore) FinishStep() error                     { return nil }
func (i Ignore) Take(int) Builder                    { return i }
func (i Ignore) IntoInner() Builder                  { return i }

// StepOutput is one step's accumulated result, as captured by
// Collecting.
type StepOutput struct {
	Columns []string
	Rows    [][]interface{}
	Err     error
}

// Collecting is a concrete, slice-backed Builder used by the session
// layer and by tests, grounded on the Response accumulation pattern
// executor loops.
type Collecting struct {
	Steps   []StepOutput
	current StepOutput
	limit   int // -1 means unlimited
	parent  *Collecting
}

// NewCollecting returns a Collecting builder with no step limit.
func NewCollecting() *Collecting {
	return &Collecting{limit: -1}
}

func (c *Collecting) AddRow(cols []string, row []interface{}) error {
	c.current.Columns = cols
	rowCopy := make([]interface{}, len(row))
	copy(rowCopy, row)
	c.current.Rows = append(c.current.Rows, rowCopy)
	AddResponseSize(EstimateRowSize(row))
	return nil
}

func (c *Collecting) AddError(err error) error {
	c.current.Err = err
	return nil
}

func (c *Collecting) FinishStep() error {
	if c.limit < 0 || len(c.Steps) < c.limit {
		c.Steps = append(c.Steps, c.current)
	}
	c.current = StepOutput{}
	return nil
}

// Take returns a wrapper with its own step buffer that keeps only the
// first n steps; IntoInner appends those to c.Steps. Per the
// batch-or-rollback contract, the synthetic ROLLBACK tail's output
// therefore never appears in c.
func (c *Collecting) Take(n int) Builder {
	return &Collecting{limit: n, parent: c}
}

func (c *Collecting) IntoInner() Builder {
	if c.parent != nil {
		c.parent.Steps = append(c.parent.Steps, c.Steps...)
		return c.parent
	}
	return c
}

// EstimateRowSize heuristically sizes one row for the response-memory
// gauge and for cursor fetch byte budgets: strings/bytes count their
// own length, everything else counts as a flat 8 bytes.
func EstimateRowSize(row []interface{}) int64 {
	var n int64
	for _, v := range row {
		switch t := v.(type) {
		case string:
			n += int64(len(t))
		case []byte:
			n += int64(len(t))
		default:
			n += 8
		}
	}
	return n
}
