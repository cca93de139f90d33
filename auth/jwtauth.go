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

import (
	"fmt"

	"github.com/dgrijalva/jwt-go"
	scrypt "github.com/elithrar/simple-scrypt"
)

// JWTAuthenticator is the one concrete Authenticator this repository
// ships. It is not part of the core: Session and Connection only ever
// see the Authenticated value it produces, never a raw token or
// password.
type JWTAuthenticator struct {
	Signature []byte

	// BasicUser / BasicHash are the credentials AuthenticateBasic checks.
	// BasicHash is the scrypt hash of the master password, produced by
	// HashPassword. No server handler calls AuthenticateBasic.
	BasicUser string
	BasicHash []byte
}

// HashPassword scrypt-hashes a plaintext master password for storage in
// JWTAuthenticator.BasicHash.
func HashPassword(plain string) ([]byte, error) {
	return scrypt.GenerateFromPassword([]byte(plain), scrypt.DefaultParams)
}

func (a *JWTAuthenticator) AuthenticateJWT(token string) (Authenticated, error) {
	if token == "" {
		return Authenticated{Kind: KindNone}, nil
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.Signature, nil
	})
	if err != nil || !parsed.Valid {
		return Authenticated{}, ErrAuthFailed
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Authenticated{}, ErrAuthFailed
	}

	out := Authenticated{Data: claims["ID"], Kind: KindScoped}
	if scope, ok := claims["SC"].(string); ok {
		out.Scope = scope
	}
	if kind, ok := claims["KIND"].(float64); ok {
		out.Kind = Kind(kind)
	}

	return out, nil
}

func (a *JWTAuthenticator) AuthenticateBasic(user, pass string) (Authenticated, error) {
	if a.BasicUser == "" {
		return Authenticated{Kind: KindNone}, nil
	}
	if user != a.BasicUser {
		return Authenticated{}, ErrAuthFailed
	}
	if err := scrypt.CompareHashAndPassword(a.BasicHash, []byte(pass)); err != nil {
		return Authenticated{}, ErrAuthFailed
	}
	return Authenticated{Kind: KindRoot}, nil
}
