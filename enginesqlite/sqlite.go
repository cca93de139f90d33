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

// Package enginesqlite is the one concrete engine.Engine this repository
// registers, backed by modernc.org/sqlite (the pure-Go driver used by
// icinga-go-library). The embedded engine itself is an external
// collaborator; this package exists so that
// program/connection/session have something real to run against in
// tests, not to implement a production query planner.
package enginesqlite

import (
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	_ "modernc.org/sqlite"

	"github.com/abcum/qld/engine"
)

func init() {
	engine.Register("sqlite", func(opts map[string]string) (engine.Engine, error) {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e5,
			MaxCost:     1 << 20,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		return &Engine{describeCache: cache}, nil
	})
}

// describeTTL bounds how long a cached statement shape survives a
// schema change nothing invalidated it for.
const describeTTL = 30 * time.Second

// Engine opens one *sql.DB per directory handed to Open. describeCache
// memoizes Describe's shape probe across handles and connections on the
// same directory, since the probe's cost (a LIMIT 0 query) is the same
// for a given statement text regardless of which handle runs it.
type Engine struct {
	describeCache *ristretto.Cache
}

func (e *Engine) Open(dir string) (engine.Handle, error) {
	path := filepath.Join(dir, "data.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &handle{db: db, dir: dir, cache: e.describeCache}, nil
}

func (e *Engine) Dump(dir string, w io.Writer) error {
	path := filepath.Join(dir, "data.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT sql FROM sqlite_master WHERE sql IS NOT NULL`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s;\n", stmt); err != nil {
			return err
		}
	}
	return rows.Err()
}

type handle struct {
	db    *sql.DB
	tx    *sql.Tx
	dir   string
	cache *ristretto.Cache
}

func (h *handle) Exec(stmt string, args []interface{}, wantRows bool) (interface{}, error) {
	exec := execer(h.db)
	if h.tx != nil {
		exec = h.tx
	}

	trimmed := strings.TrimSpace(strings.ToUpper(stmt))

	switch {
	case trimmed == "BEGIN":
		if h.tx != nil {
			return nil, fmt.Errorf("a transaction is already open")
		}
		tx, err := h.db.Begin()
		if err != nil {
			return nil, err
		}
		h.tx = tx
		return nil, nil
	case trimmed == "COMMIT":
		if h.tx == nil {
			return nil, nil
		}
		err := h.tx.Commit()
		h.tx = nil
		return nil, err
	case trimmed == "ROLLBACK":
		if h.tx == nil {
			return nil, nil
		}
		err := h.tx.Rollback()
		h.tx = nil
		return nil, err
	}

	if !wantRows {
		_, err := exec.Exec(stmt, args...)
		return nil, err
	}

	rows, err := exec.Query(stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := engine.Rows{Columns: cols}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out.Rows = append(out.Rows, vals)
	}
	return out, rows.Err()
}

func (h *handle) Describe(stmt string) (engine.DescribeResult, error) {
	trimmed := strings.TrimSpace(strings.ToUpper(stmt))
	result := engine.DescribeResult{IsReadOnly: strings.HasPrefix(trimmed, "SELECT")}

	// Mid-transaction DDL can change a statement's shape before commit,
	// so only read-through the cache outside an open transaction.
	cacheable := h.tx == nil && h.cache != nil
	key := h.dir + "\x00" + stmt

	if cacheable {
		if cached, ok := h.cache.Get(key); ok {
			cols := cached.([]engine.Column)
			result.Columns = cols
			return result, nil
		}
	}

	exec := execer(h.db)
	if h.tx != nil {
		exec = h.tx
	}

	// A LIMIT 0 probe is the standard trick to recover column shape
	// without running the statement's full cost.
	rows, err := exec.Query(fmt.Sprintf("SELECT * FROM (%s) LIMIT 0", stmt))
	if err != nil {
		return result, err
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return result, err
	}
	for _, c := range cols {
		result.Columns = append(result.Columns, engine.Column{Name: c.Name(), DeclType: c.DatabaseTypeName()})
	}

	if cacheable {
		h.cache.SetWithTTL(key, result.Columns, int64(len(result.Columns)+1), describeTTL)
	}

	return result, nil
}

func (h *handle) InAutocommit() (bool, error) {
	return h.tx == nil, nil
}

func (h *handle) Checkpoint() error {
	exec := execer(h.db)
	_, err := exec.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}

func (h *handle) Close() error {
	if h.tx != nil {
		_ = h.tx.Rollback()
	}
	return h.db.Close()
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting Exec/Describe
// route through whichever is live without duplicating the query logic.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
}
