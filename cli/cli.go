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

// Package cli wires cnf.Options, parsed from the command line by
// cobra, into a running daemon.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/abcum/qld/cnf"
	"github.com/abcum/qld/log"
)

var opts *cnf.Options

var mainCmd = &cobra.Command{
	Use:   "qld",
	Short: "qld session daemon command-line interface and server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(opts)
	},
}

func init() {

	mainCmd.AddCommand(versionCmd)

	opts = cnf.Defaults()

	mainCmd.PersistentFlags().StringVarP(&opts.Auth.Auth, "auth", "a", "", flag("auth"))
	mainCmd.PersistentFlags().StringVar(&opts.Auth.User, "auth-user", "", flag("auth-user"))
	mainCmd.PersistentFlags().StringVar(&opts.Auth.Pass, "auth-pass", "", flag("auth-pass"))
	mainCmd.PersistentFlags().StringVar(&opts.Auth.Signature, "signature", "", flag("signature"))

	mainCmd.PersistentFlags().StringVarP(&opts.DB.Path, "db-path", "d", opts.DB.Path, flag("db-path"))
	mainCmd.PersistentFlags().StringVarP(&opts.DB.Base, "base", "b", opts.DB.Base, flag("base"))

	mainCmd.PersistentFlags().IntVar(&opts.Port.Sock, "port-sock", opts.Port.Sock, flag("port-sock"))
	mainCmd.PersistentFlags().IntVar(&opts.Port.Http, "port-http", opts.Port.Http, flag("port-http"))

	mainCmd.PersistentFlags().IntVar(&opts.Throttle.Concurrency, "throttle", opts.Throttle.Concurrency, flag("throttle"))
	mainCmd.PersistentFlags().IntVar(&opts.Session.MaxStoredSQL, "stored-sql", opts.Session.MaxStoredSQL, flag("stored-sql"))

	mainCmd.PersistentFlags().StringVar(&opts.Logging.Level, "log", opts.Logging.Level, "Logging level")
	mainCmd.PersistentFlags().StringVar(&opts.Logging.Output, "log-output", opts.Logging.Output, "Logging output: stdout, stderr, or none")
	mainCmd.PersistentFlags().StringVar(&opts.Logging.Format, "log-format", opts.Logging.Format, "Logging format: text or json")
	mainCmd.PersistentFlags().StringVar(&opts.Logging.Syslog, "log-syslog", opts.Logging.Syslog, flag("log-syslog"))

	cobra.OnInitialize(setup)

}

// Run runs the cli app.
func Run() {
	if err := mainCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}
