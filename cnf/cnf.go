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

package cnf

import "time"

// Options defines global configuration options for the daemon.
type Options struct {
	DB struct {
		Path string // Directory holding the engine's data files and config.json
		Base string // Name of the root database key
	}

	Port struct {
		Sock int // Port serving the framed WebSocket session protocol
		Http int // Port serving the HTTP dump endpoint
	}

	Auth struct {
		Auth      string // Master authentication details, in user:pass format
		User      string
		Pass      string
		Signature string // HMAC key tokens are signed and verified with
	}

	Node struct {
		Host string // Hostname or address to bind to
		Name string // Name of this node, used for logs
	}

	Throttle struct {
		Concurrency     int           // N: target concurrent connections
		AcquireTimeout  time.Duration // T: admission wait timeout, 0 disables
		MaxResponseSize uint64        // M: cumulative response-byte budget
	}

	Session struct {
		MaxStoredSQL int           // capacity of a session's stored-SQL table
		TxnTimeout   time.Duration // forced rollback threshold for an idle transaction
	}

	Logging struct {
		Level  string // Stores the configured logging level
		Output string // Stores the configured logging output
		Format string // Stores the configured logging format
		Syslog string // host:port of a syslog endpoint; empty disables the hook
	}
}

// Defaults returns an Options populated with the daemon's default values,
// matching the defaults a single-node deployment ships with (150 stored SQL texts,
// a 5-second transaction timeout, a 128-waiter admission cap is internal
// to the throttler and not configurable here).
func Defaults() *Options {
	o := &Options{}
	o.DB.Base = "qld"
	o.Port.Sock = 33793
	o.Port.Http = 8000
	o.Throttle.Concurrency = 16
	o.Throttle.MaxResponseSize = 64 << 20
	o.Session.MaxStoredSQL = 150
	o.Session.TxnTimeout = 5 * time.Second
	o.Logging.Level = "info"
	o.Logging.Output = "stdout"
	o.Logging.Format = "text"
	return o
}
