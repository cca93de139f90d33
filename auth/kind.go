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

// Kind is the access level carried alongside an authenticated identity.
// The core never branches on it; it is forwarded to the engine as part
// of Authenticated so that the engine can authorize a program.
type Kind int

const (
	// KindRoot is full, unrestricted access.
	KindRoot Kind = iota
	// KindNamespace is access scoped to a single namespace.
	KindNamespace
	// KindDatabase is access scoped to a single database.
	KindDatabase
	// KindScoped is access granted through a user-defined scope.
	KindScoped
	// KindNone means no access has been granted.
	KindNone
)

func (k Kind) String() string {
	switch k {
	default:
		return "NONE"
	case KindRoot:
		return "ROOT"
	case KindNamespace:
		return "NS"
	case KindDatabase:
		return "DB"
	case KindScoped:
		return "SC"
	}
}

func (k Kind) MarshalText() (data []byte, err error) {
	return []byte(k.String()), nil
}
