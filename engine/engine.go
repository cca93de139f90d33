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

// Package engine declares the embedded relational engine as an external
// collaborator: SQL parsing and the storage/query engine itself live
// outside this module. The core only depends on these interfaces;
// Register lets a concrete engine plug itself in by name through a
// small named-constructor registry.
package engine

import "io"

// Column describes one column of a statement's result set or, for a
// parameter, one bind slot.
type Column struct {
	Name     string
	DeclType string
}

// DescribeResult is what Describe returns: the statement's result and
// parameter shape, and whether it is a plain read with no side effects.
type DescribeResult struct {
	Columns    []Column
	Params     []Column
	IsReadOnly bool
}

// Rows is the concrete shape Exec returns when wantRows is true. It is
// intentionally simple (no streaming, no typed cells) since the actual
// result encoding is owned by resultbuilder.Builder, not by the engine.
type Rows struct {
	Columns []string
	Rows    [][]interface{}
}

// Handle is one logical connection into the engine — the "embedded
// engine" side of connection.Connection. It is intentionally narrower
// than connection.Connection: it knows nothing about Programs, batches,
// or admission control, only how to run one statement at a time and
// report transaction state.
type Handle interface {
	// Exec runs one statement with positional/named parameters bound,
	// returning opaque row data when wantRows is true.
	Exec(stmt string, args []interface{}, wantRows bool) (rows interface{}, err error)

	// Describe parses stmt without executing it and reports its shape.
	Describe(stmt string) (DescribeResult, error)

	// InAutocommit reports whether the handle is currently outside an
	// explicit transaction.
	InAutocommit() (bool, error)

	// Checkpoint flushes the engine's write-ahead log, if it has one.
	Checkpoint() error

	// Close releases any resources the handle owns.
	Close() error
}

// Engine creates Handles and can export a full logical dump of one
// database directory, backing the connection factory the cli package
// builds and the HTTP dump endpoint. It has no import counterpart.
type Engine interface {
	Open(dir string) (Handle, error)
	Dump(dir string, w io.Writer) error
}

var registry = make(map[string]func(opts map[string]string) (Engine, error))

// Register adds a named engine constructor to the registry.
func Register(name string, constructor func(opts map[string]string) (Engine, error)) {
	registry[name] = constructor
}

// New looks up and constructs a registered engine by name.
func New(name string, opts map[string]string) (Engine, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, &UnknownEngineError{Name: name}
	}
	return ctor(opts)
}

// UnknownEngineError is returned by New when no engine was registered
// under the requested name.
type UnknownEngineError struct{ Name string }

func (e *UnknownEngineError) Error() string {
	return "engine: no backend registered under name " + e.Name
}
