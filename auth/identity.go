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

package auth

import "errors"

// ErrAuthFailed is returned by an Authenticator when a credential could
// not be verified. It is wrapped into a ResponseError by the session
// layer so that the wire envelope carries an AUTH_* code.
var ErrAuthFailed = errors.New("authentication failed")

// Authenticated is the opaque capability token established once per
// session and carried into every Program execution. The core never
// interprets Data; it is the key the engine uses to authorize a program.
type Authenticated struct {
	Data  interface{}
	Kind  Kind
	Scope string
}

// Reset clears the authentication data, returning the receiver to an
// unauthenticated state.
func (a *Authenticated) Reset() *Authenticated {
	a.Data = nil
	a.Kind = KindNone
	a.Scope = ""
	return a
}

// Authenticator resolves a bearer token or basic-auth pair into an
// Authenticated identity. Token parsing itself lives outside the core:
// Session and Connection only ever consume the Authenticated value this
// interface returns.
type Authenticator interface {
	AuthenticateJWT(token string) (Authenticated, error)
	AuthenticateBasic(user, pass string) (Authenticated, error)
}
