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

// Package protoerr collects the error kinds surfaced by the session and
// connection layers. Each is a small exported type. ResponseError has a
// Code() method giving its wire code directly; the other types carry no
// Code(), and the server's dispatcher maps them onto wire codes by type
// and Kind.
package protoerr

import "fmt"

// ProtocolError covers malformed session-protocol usage: ids that
// collide or that don't exist, and requests below the negotiated
// version.
type ProtocolError struct {
	Kind       string
	StreamID   int32
	CursorID   int32
	What       string
	MinVersion int
}

func (e *ProtocolError) Error() string {
	switch e.Kind {
	case "StreamExists":
		return fmt.Sprintf("stream %d already exists", e.StreamID)
	case "StreamNotFound":
		return fmt.Sprintf("stream %d not found", e.StreamID)
	case "SqlExists":
		return fmt.Sprintf("sql %d already stored", e.StreamID)
	case "SqlNotFound":
		return fmt.Sprintf("sql %d not found", e.StreamID)
	case "CursorExists":
		return fmt.Sprintf("cursor %d already exists", e.CursorID)
	case "CursorNotFound":
		return fmt.Sprintf("cursor %d not found", e.CursorID)
	case "CursorAlreadyOpen":
		return fmt.Sprintf("stream %d already owns an open cursor", e.StreamID)
	case "NotSupported":
		return fmt.Sprintf("%s requires protocol version %d or later", e.What, e.MinVersion)
	default:
		return "protocol error"
	}
}

func StreamExists(streamID int32) *ProtocolError { return &ProtocolError{Kind: "StreamExists", StreamID: streamID} }
func StreamNotFound(streamID int32) *ProtocolError {
	return &ProtocolError{Kind: "StreamNotFound", StreamID: streamID}
}
func SqlExists(sqlID int32) *ProtocolError { return &ProtocolError{Kind: "SqlExists", StreamID: sqlID} }
func SqlNotFound(sqlID int32) *ProtocolError {
	return &ProtocolError{Kind: "SqlNotFound", StreamID: sqlID}
}
func CursorExists(cursorID int32) *ProtocolError {
	return &ProtocolError{Kind: "CursorExists", CursorID: cursorID}
}
func CursorNotFound(cursorID int32) *ProtocolError {
	return &ProtocolError{Kind: "CursorNotFound", CursorID: cursorID}
}
func CursorAlreadyOpen(streamID int32) *ProtocolError {
	return &ProtocolError{Kind: "CursorAlreadyOpen", StreamID: streamID}
}
func NotSupported(what string, minVersion int) *ProtocolError {
	return &ProtocolError{Kind: "NotSupported", What: what, MinVersion: minVersion}
}

// ResponseError covers failures that are framed back to the client in a
// response envelope without terminating the session.
type ResponseError struct {
	Kind     string
	StreamID int32
	CursorID int32
	Count    int
	Source   error
}

func (e *ResponseError) Error() string {
	switch e.Kind {
	case "Auth":
		return fmt.Sprintf("authentication failed: %v", e.Source)
	case "StreamNotOpen":
		return fmt.Sprintf("stream %d has failed to open", e.StreamID)
	case "CursorNotOpen":
		return fmt.Sprintf("cursor %d has failed to open", e.CursorID)
	case "SqlTooMany":
		return fmt.Sprintf("the server already stores %d SQL texts, it cannot store more", e.Count)
	case "Stmt", "Batch":
		return e.Source.Error()
	default:
		return "response error"
	}
}

func (e *ResponseError) Unwrap() error { return e.Source }

// Code returns the stable wire code for this error, drawn from the set
// used on the wire: {AUTH_*, SQL_STORE_TOO_MANY, STREAM_NOT_OPEN,
// CURSOR_NOT_OPEN, STMT_*, BATCH_*}.
func (e *ResponseError) Code() string {
	switch e.Kind {
	case "Auth":
		return "AUTH_FAILED"
	case "StreamNotOpen":
		return "STREAM_NOT_OPEN"
	case "CursorNotOpen":
		return "CURSOR_NOT_OPEN"
	case "SqlTooMany":
		return "SQL_STORE_TOO_MANY"
	case "Stmt":
		return "STMT_ERROR"
	case "Batch":
		return "BATCH_ERROR"
	default:
		return "ERROR"
	}
}

func Auth(source error) *ResponseError { return &ResponseError{Kind: "Auth", Source: source} }
func StreamNotOpen(streamID int32) *ResponseError {
	return &ResponseError{Kind: "StreamNotOpen", StreamID: streamID}
}
func CursorNotOpen(cursorID int32) *ResponseError {
	return &ResponseError{Kind: "CursorNotOpen", CursorID: cursorID}
}
func SqlTooMany(count int) *ResponseError { return &ResponseError{Kind: "SqlTooMany", Count: count} }
func Stmt(source error) *ResponseError    { return &ResponseError{Kind: "Stmt", Source: source} }
func Batch(source error) *ResponseError   { return &ResponseError{Kind: "Batch", Source: source} }

// AdmissionError covers the throttler's two failure modes.
type AdmissionError struct {
	Kind string
}

func (e *AdmissionError) Error() string {
	switch e.Kind {
	case "TooManyRequests":
		return "too many requests are already waiting for a connection"
	case "DbCreateTimeout":
		return "timed out waiting to admit a new connection"
	default:
		return "admission error"
	}
}

var (
	ErrTooManyRequests = &AdmissionError{Kind: "TooManyRequests"}
	ErrDbCreateTimeout = &AdmissionError{Kind: "DbCreateTimeout"}
)

// PersistenceError covers the config store's I/O and advisory-block
// failures.
type PersistenceError struct {
	Kind   string
	Reason string
	Source error
}

func (e *PersistenceError) Error() string {
	switch e.Kind {
	case "IOError":
		return e.Source.Error()
	case "Blocked":
		return fmt.Sprintf("operation blocked: %s", e.Reason)
	default:
		return "persistence error"
	}
}

func (e *PersistenceError) Unwrap() error { return e.Source }

func IOError(source error) *PersistenceError { return &PersistenceError{Kind: "IOError", Source: source} }
func Blocked(reason string) *PersistenceError {
	return &PersistenceError{Kind: "Blocked", Reason: reason}
}
