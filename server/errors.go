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
	"errors"

	"github.com/abcum/qld/protoerr"
)

// codeFor maps any error the dispatcher can produce onto the stable
// wire code string clients key their handling off of. ResponseErrors
// use their own Code(); the other protoerr types are mapped here by
// type and Kind; any other error falls back to a generic "ERROR".
func codeFor(err error) string {
	var respErr *protoerr.ResponseError
	if errors.As(err, &respErr) {
		return respErr.Code()
	}

	var protoErr *protoerr.ProtocolError
	if errors.As(err, &protoErr) {
		return "PROTOCOL_ERROR"
	}

	var admErr *protoerr.AdmissionError
	if errors.As(err, &admErr) {
		if admErr.Kind == "TooManyRequests" {
			return "TOO_MANY_REQUESTS"
		}
		return "DB_CREATE_TIMEOUT"
	}

	var persistErr *protoerr.PersistenceError
	if errors.As(err, &persistErr) {
		if persistErr.Kind == "Blocked" {
			return "BLOCKED"
		}
		return "IO_ERROR"
	}

	return "ERROR"
}
