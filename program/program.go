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

// Package program implements the conditional, sequenced query plan
// described here: an ordered list of Steps, each guarded by
// an optional boolean Condition over the outcomes of earlier steps.
package program

import "fmt"

// Params binds positional or named values to a parsed statement.
type Params struct {
	Positional []interface{}
	Named      map[string]interface{}
}

// Query is a single parameterized statement plus whether the caller
// wants its row data back.
type Query struct {
	Stmt     string
	Params   Params
	WantRows bool
}

// CondKind tags the shape of a Cond node.
type CondKind int

const (
	CondOk CondKind = iota
	CondErr
	CondNot
	CondAnd
	CondOr
)

// Cond is a node in the tiny boolean tree over prior step outcomes
// described here. Ok/Err are leaves referencing a step index;
// Not/And/Or are internal nodes over child Conds.
type Cond struct {
	Kind CondKind
	Step int
	A    *Cond
	B    *Cond
}

func Ok(step int) *Cond  { return &Cond{Kind: CondOk, Step: step} }
func Err(step int) *Cond { return &Cond{Kind: CondErr, Step: step} }
func Not(c *Cond) *Cond  { return &Cond{Kind: CondNot, A: c} }
func And(a, b *Cond) *Cond { return &Cond{Kind: CondAnd, A: a, B: b} }
func Or(a, b *Cond) *Cond  { return &Cond{Kind: CondOr, A: a, B: b} }

// maxStep returns the largest step index this Cond (and its children)
// reference, used to validate that every reference is strictly less
// than the owning step's own index.
func (c *Cond) maxStep() int {
	if c == nil {
		return -1
	}
	switch c.Kind {
	case CondOk, CondErr:
		return c.Step
	case CondNot:
		return c.A.maxStep()
	default:
		am, bm := c.A.maxStep(), c.B.maxStep()
		if am > bm {
			return am
		}
		return bm
	}
}

// Outcome is the recorded result of a Step once a Program has executed
// up to and including it. A skipped step (its Condition evaluated to
// false) is neither Ok nor Err for the purposes of downstream
// Conditions.
type Outcome int

const (
	outcomePending Outcome = iota
	OutcomeSkipped
	OutcomeOk
	OutcomeErr
)

// eval evaluates a Cond against the outcome vector of already-executed
// steps. A nil Cond means "always" and evaluates true.
func (c *Cond) eval(outcomes []Outcome) bool {
	if c == nil {
		return true
	}
	switch c.Kind {
	case CondOk:
		return outcomes[c.Step] == OutcomeOk
	case CondErr:
		return outcomes[c.Step] == OutcomeErr
	case CondNot:
		return !c.A.eval(outcomes)
	case CondAnd:
		return c.A.eval(outcomes) && c.B.eval(outcomes)
	case CondOr:
		return c.A.eval(outcomes) || c.B.eval(outcomes)
	default:
		return false
	}
}

// Step is a Query guarded by an optional Cond.
type Step struct {
	Query Query
	Cond  *Cond
}

// Program is an ordered, immutable sequence of Steps. Build one with
// New, which rejects any Cond referencing a non-smaller index.
type Program struct {
	steps []Step
}

// New constructs a Program, validating that every Cond in every Step
// references a strictly smaller step index.
// Forward and self references are rejected at construction time so that
// a Program can never describe a cycle.
func New(steps []Step) (*Program, error) {
	for i, s := range steps {
		if m := s.Cond.maxStep(); m >= i {
			return nil, fmt.Errorf("program: step %d's condition references step %d, which is not strictly smaller", i, m)
		}
	}
	out := make([]Step, len(steps))
	copy(out, steps)
	return &Program{steps: out}, nil
}

// Len returns the number of steps in the program.
func (p *Program) Len() int { return len(p.steps) }

// Step returns the i-th step.
func (p *Program) Step(i int) Step { return p.steps[i] }

// Runner executes a single Query, returning its rows (opaque to this
// package) or an error. Connection implementations supply this so that
// Run can stay engine-agnostic.
type Runner interface {
	Run(step int, q Query) (rows interface{}, err error)
}

// StepResult pairs a step's Outcome with whatever the Runner returned
// for steps that actually executed.
type StepResult struct {
	Outcome Outcome
	Rows    interface{}
	Err     error
}

// Run executes every step of the program in order against r, evaluating
// each step's Condition against the outcomes recorded so far. A step
// whose Condition is false is recorded as OutcomeSkipped without
// invoking the Runner.
func Run(p *Program, r Runner) []StepResult {
	outcomes := make([]Outcome, len(p.steps))
	results := make([]StepResult, len(p.steps))

	for i, s := range p.steps {
		if !s.Cond.eval(outcomes) {
			outcomes[i] = OutcomeSkipped
			results[i] = StepResult{Outcome: OutcomeSkipped}
			continue
		}

		rows, err := r.Run(i, s.Query)
		if err != nil {
			outcomes[i] = OutcomeErr
			results[i] = StepResult{Outcome: OutcomeErr, Err: err}
		} else {
			outcomes[i] = OutcomeOk
			results[i] = StepResult{Outcome: OutcomeOk, Rows: rows}
		}
	}

	return results
}
