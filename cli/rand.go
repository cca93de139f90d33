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

package cli

import "crypto/rand"

var randChars = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")

// randomToken produces a random alphanumeric string of length n, used to
// seed an auth signature or a master password when the operator didn't
// supply one. It rejection-samples out of crypto/rand so every
// character stays uniformly distributed over randChars.
func randomToken(n int) string {
	if n == 0 {
		return ""
	}

	i := 0
	t := len(randChars)
	m := 255 - (256 % t)
	b := make([]byte, n)
	r := make([]byte, n+(n/4))

	for {
		rand.Read(r)
		for _, rb := range r {
			c := int(rb)
			if c > m {
				continue
			}
			b[i] = randChars[c%t]
			i++
			if i == n {
				return string(b)
			}
		}
	}
}
