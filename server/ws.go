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

// Package server hosts the two wire-facing surfaces: the WebSocket
// framed session protocol and the HTTP dump endpoint. Listener
// acceptors, TLS, and any outer routing framework are external
// collaborators; this package only knows how to drive one accepted
// connection at a time.
package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/abcum/qld/auth"
	"github.com/abcum/qld/connection"
	"github.com/abcum/qld/dbconfig"
	"github.com/abcum/qld/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler upgrades HTTP requests to WebSocket and drives one Session
// per connection for its lifetime.
type WSHandler struct {
	Throttler       *connection.Throttler
	Authenticator   auth.Authenticator
	MaxStoredSQL    int
	MaxResponseSize int64
	Config          *dbconfig.Store // advisory read/write blocking; nil disables the check
	Log             *logrus.Entry
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log().WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	log := h.log().WithField("conn", connID)

	sess := session.New(session.Config{
		MaxStoredSQL:    h.MaxStoredSQL,
		MaxResponseSize: h.MaxResponseSize,
		Throttler:       h.Throttler,
		Authenticator:   h.Authenticator,
	})

	for {
		var req Envelope
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		resp := h.dispatch(r.Context(), sess, req)
		if resp.Error != nil {
			log.WithField("kind", req.Kind).WithError(errString(resp.Error.Message)).Debug("request failed")
		}

		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

// errString turns a wire error message back into an error value purely
// so it can be passed through logrus's WithError, which wants one.
type errString string

func (e errString) Error() string { return string(e) }

func (h *WSHandler) log() *logrus.Entry {
	if h.Log != nil {
		return h.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Envelope is one inbound framed request. Kind selects which fields the
// dispatcher reads; unused fields are left at their zero value.
type Envelope struct {
	Kind     string           `json:"kind"`
	Version  session.Version  `json:"version,omitempty"`
	Token    string           `json:"token,omitempty"`
	StreamID int32            `json:"stream_id,omitempty"`
	CursorID int32            `json:"cursor_id,omitempty"`
	SqlID    *int32           `json:"sql_id,omitempty"`
	Sql      string           `json:"sql,omitempty"`
	Params   []interface{}    `json:"params,omitempty"`
	Batch    []BatchStatement `json:"batch,omitempty"`
	MaxCount int              `json:"max_count,omitempty"`
}

// BatchStatement is one statement inside a Batch/OpenCursor envelope.
type BatchStatement struct {
	Sql      string        `json:"sql"`
	Params   []interface{} `json:"params,omitempty"`
	WantRows bool          `json:"want_rows,omitempty"`
}

// Response is the outbound envelope shape; at most one of Result/Error
// is populated (a successful request with no result leaves both empty).
type Response struct {
	Result interface{} `json:"result,omitempty"`
	Error  *WireError  `json:"error,omitempty"`
}

// WireError carries the stable code string the client keys its error
// handling off of.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ok(result interface{}) Response { return Response{Result: result} }

func fail(err error) Response {
	return Response{Error: &WireError{Code: codeFor(err), Message: err.Error()}}
}
