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

import (
	"os"
	"strings"

	"github.com/abcum/qld/log"
)

// setup fills in option defaults and validates what the user supplied,
// the way cobra.OnInitialize expects: flags are already parsed into
// opts by the time this runs.
func setup() {

	// --------------------------------------------------
	// DB
	// --------------------------------------------------

	if opts.DB.Path == "" {
		opts.DB.Path = "./data"
	}

	if opts.DB.Base == "" {
		opts.DB.Base = "qld"
	}

	// --------------------------------------------------
	// Auth
	// --------------------------------------------------

	if opts.Auth.Auth != "" {

		if opts.Auth.User != "" {
			log.Fatal("Specify only --auth or --auth-user")
		}

		if opts.Auth.Pass != "" {
			log.Fatal("Specify only --auth or --auth-pass")
		}

		both := strings.SplitN(opts.Auth.Auth, ":", 2)

		if len(both) == 2 {
			opts.Auth.User = both[0]
			opts.Auth.Pass = both[1]
		}

	}

	if opts.Auth.User == "" {
		opts.Auth.User = "root"
	}

	if opts.Auth.Pass == "" {
		opts.Auth.Pass = randomToken(20)
	}

	if opts.Auth.Signature == "" {
		opts.Auth.Signature = randomToken(32)
	}

	// --------------------------------------------------
	// Nodes
	// --------------------------------------------------

	if opts.Node.Host == "" {
		opts.Node.Host, _ = os.Hostname()
	}

	if opts.Node.Name == "" {
		opts.Node.Name = opts.Node.Host
	}

	// --------------------------------------------------
	// Ports
	// --------------------------------------------------

	if opts.Port.Sock < 0 || opts.Port.Sock > 65535 {
		log.Fatalf("Invalid port %d. Please specify a valid port number for --port-sock", opts.Port.Sock)
	}

	if opts.Port.Http < 0 || opts.Port.Http > 65535 {
		log.Fatalf("Invalid port %d. Please specify a valid port number for --port-http", opts.Port.Http)
	}

	// --------------------------------------------------
	// Throttle / Session
	// --------------------------------------------------

	if opts.Throttle.Concurrency <= 0 {
		log.Fatal("Specify a positive --throttle concurrency")
	}

	if opts.Session.MaxStoredSQL <= 0 {
		log.Fatal("Specify a positive --stored-sql capacity")
	}

	// --------------------------------------------------
	// Logging
	// --------------------------------------------------

	var chk map[string]bool

	logger := &log.DefaultHook{}

	if opts.Logging.Level != "" {

		chk = map[string]bool{
			"trace": true,
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
			"fatal": true,
			"panic": true,
		}

		if _, ok := chk[opts.Logging.Level]; !ok {
			log.Fatal("Incorrect log level specified")
		}

		log.SetLevel(opts.Logging.Level)
		logger.SetLevel(opts.Logging.Level)

	}

	if opts.Logging.Format != "" {

		chk = map[string]bool{
			"text": true,
			"json": true,
		}

		if _, ok := chk[opts.Logging.Format]; !ok {
			log.Fatal("Incorrect log format specified")
		}

		log.SetFormat(opts.Logging.Format)
		logger.SetFormat(opts.Logging.Format)

	}

	if opts.Logging.Output != "" {

		chk = map[string]bool{
			"none":   true,
			"stdout": true,
			"stderr": true,
		}

		if _, ok := chk[opts.Logging.Output]; !ok {
			log.Fatal("Incorrect log output specified")
		}

		log.SetOutput(opts.Logging.Output)
		logger.SetOutput(opts.Logging.Output)

	}

	log.Hook(logger)

	if opts.Logging.Syslog != "" {
		syslogPriority := map[string]string{
			"trace": "debug",
			"debug": "debug",
			"info":  "info",
			"warn":  "warning",
			"error": "err",
			"fatal": "crit",
			"panic": "emerg",
		}[opts.Logging.Level]
		if syslogPriority == "" {
			syslogPriority = "info"
		}
		hook, err := log.NewSyslogHook("udp", opts.Logging.Syslog, syslogPriority, opts.DB.Base)
		if err != nil {
			log.Fatalf("Could not connect to syslog endpoint: %s", err)
		}
		log.Hook(hook)
	}

}
