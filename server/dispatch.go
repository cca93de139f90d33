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

package server

import (
	"context"

	"github.com/abcum/qld/program"
	"github.com/abcum/qld/protoerr"
	"github.com/abcum/qld/session"
)

// dispatch routes one inbound Envelope to the matching Session
// operation. Protocol/response/admission errors are framed back in the
// Response rather than returned, so the connection stays open; only a
// transport-level failure (handled by the caller) ends the session.
// readKinds may only observe; writeKinds may additionally mutate. Both
// are gated by the matching dbconfig block flag ahead of any other
// handling, so a blocked database never reaches the throttler or the
// engine.
var readKinds = map[string]bool{
	"Describe": true, "FetchCursor": true, "GetAutocommit": true,
}
var writeKinds = map[string]bool{
	"Execute": true, "Batch": true, "Sequence": true, "OpenCursor": true,
}

func (h *WSHandler) blocked(kind string) error {
	if h.Config == nil {
		return nil
	}
	cfg := h.Config.Get()
	if cfg.BlockReads && (readKinds[kind] || writeKinds[kind]) {
		return protoerr.Blocked(cfg.BlockReason)
	}
	if cfg.BlockWrites && writeKinds[kind] {
		return protoerr.Blocked(cfg.BlockReason)
	}
	return nil
}

func (h *WSHandler) dispatch(ctx context.Context, sess *session.Session, req Envelope) Response {
	if err := h.blocked(req.Kind); err != nil {
		return fail(err)
	}

	switch req.Kind {
	case "Hello":
		if err := sess.Hello(req.Token, req.Version); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "OpenStream":
		if err := sess.OpenStream(ctx, req.StreamID); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "CloseStream":
		if err := sess.CloseStream(req.StreamID); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "Execute":
		b, state, err := sess.Execute(req.StreamID, toQuery(req.Sql, req.Params, true))
		if err != nil {
			return fail(err)
		}
		return ok(map[string]interface{}{"steps": b.Steps, "state": state.String()})

	case "Batch":
		b, state, err := sess.Batch(req.StreamID, toQueries(req.Batch))
		if err != nil {
			return fail(err)
		}
		return ok(map[string]interface{}{"steps": b.Steps, "state": state.String()})

	case "Sequence":
		state, err := sess.Sequence(req.StreamID, req.Sql)
		if err != nil {
			return fail(err)
		}
		return ok(map[string]interface{}{"state": state.String()})

	case "Describe":
		d, err := sess.Describe(req.StreamID, req.Sql, req.SqlID)
		if err != nil {
			return fail(err)
		}
		return ok(d)

	case "StoreSql":
		if req.SqlID == nil {
			return fail(protoerr.NotSupported("StoreSql without sql_id", int(session.V2)))
		}
		if err := sess.StoreSql(*req.SqlID, req.Sql); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "CloseSql":
		if req.SqlID == nil {
			return fail(protoerr.NotSupported("CloseSql without sql_id", int(session.V2)))
		}
		if err := sess.CloseSql(*req.SqlID); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "OpenCursor":
		if err := sess.OpenCursor(req.StreamID, req.CursorID, toQueries(req.Batch)); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "CloseCursor":
		if err := sess.CloseCursor(req.CursorID); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "FetchCursor":
		result, err := sess.FetchCursor(req.StreamID, req.CursorID, req.MaxCount)
		if err != nil {
			return fail(err)
		}
		return ok(result)

	case "GetAutocommit":
		auto, err := sess.GetAutocommit(req.StreamID)
		if err != nil {
			return fail(err)
		}
		return ok(map[string]interface{}{"autocommit": auto})

	default:
		return fail(protoerr.NotSupported(req.Kind, 1))
	}
}

func toQuery(sql string, params []interface{}, wantRows bool) program.Query {
	return program.Query{
		Stmt:     sql,
		Params:   program.Params{Positional: params},
		WantRows: wantRows,
	}
}

func toQueries(stmts []BatchStatement) []program.Query {
	queries := make([]program.Query, len(stmts))
	for i, s := range stmts {
		queries[i] = toQuery(s.Sql, s.Params, s.WantRows)
	}
	return queries
}
