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

import "github.com/abcum/qld/resultbuilder"

// CursorHandle is a streaming result producer with backpressured fetch:
// rows are materialized once, up front, when the cursor is opened, and
// FetchCursor drains them in bounded slices so a client pulling a large
// result set can never force the whole thing into memory at once on
// the wire.
type CursorHandle struct {
	columns []string
	rows    [][]interface{}
	pos     int
}

func newCursorHandle(columns []string, rows [][]interface{}) *CursorHandle {
	return &CursorHandle{columns: columns, rows: rows}
}

// FetchResult is what one FetchCursor call returns.
type FetchResult struct {
	Columns []string
	Rows    [][]interface{}
	Done    bool
}

// fetch drains up to maxCount rows and up to maxBytes of estimated row
// size, whichever limit is hit first. At least one row is always
// returned if one is available, even if it alone exceeds maxBytes —
// otherwise a single oversized row would wedge the cursor forever.
// Done reports whether the cursor has no rows left after this call.
func (c *CursorHandle) fetch(maxCount int, maxBytes int64) FetchResult {
	out := make([][]interface{}, 0, maxCount)
	var spent int64

	for len(out) < maxCount && c.pos < len(c.rows) {
		row := c.rows[c.pos]
		size := resultbuilder.EstimateRowSize(row)

		if maxBytes > 0 && len(out) > 0 && spent+size > maxBytes {
			break
		}

		out = append(out, row)
		spent += size
		c.pos++

		if maxBytes > 0 && spent >= maxBytes {
			break
		}
	}

	return FetchResult{
		Columns: c.columns,
		Rows:    out,
		Done:    c.pos >= len(c.rows),
	}
}
