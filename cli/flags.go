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

var flags = map[string]string{
	"auth":       `Master authentication details, used when connecting to the database. (Default user root, random password)`,
	"auth-user":  `The username for basic-auth credentials. Use this as an alternative to the --auth flag.`,
	"auth-pass":  `The password for basic-auth credentials. Use this as an alternative to the --auth flag.`,
	"base":       `Name of the root database key`,
	"db-path":    `Directory holding the engine's data files and config.json. (Default ./data)`,
	"port-sock":  `The port on which to serve the framed WebSocket session protocol.`,
	"port-http":  `The port on which to serve the HTTP dump endpoint.`,
	"signature":  `Set the secret key used to digitally sign authentication tokens.`,
	"throttle":   `Target number of concurrent engine connections admitted before requests start queueing.`,
	"stored-sql": `Capacity of a session's stored-SQL table before StoreSql starts rejecting new entries.`,
	"log-syslog": `Address (host:port) of a syslog endpoint to additionally forward logs to. Leave empty to disable.`,
}

func flag(name string) string {
	return flags[name]
}
