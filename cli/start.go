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
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/abcum/qld/auth"
	"github.com/abcum/qld/cnf"
	"github.com/abcum/qld/connection"
	"github.com/abcum/qld/dbconfig"
	"github.com/abcum/qld/engine"
	_ "github.com/abcum/qld/enginesqlite"
	"github.com/abcum/qld/log"
	"github.com/abcum/qld/server"
)

// run wires a configured Options into a live daemon: one engine, one
// throttler over it, one auth.Authenticator, and the two listeners
// (framed session protocol, dump endpoint). It blocks until either
// listener exits.
func run(opts *cnf.Options) error {

	fmt.Print(logo)

	if err := os.MkdirAll(opts.DB.Path, 0o755); err != nil {
		return err
	}

	eng, err := engine.New("sqlite", nil)
	if err != nil {
		return err
	}

	cfgStore, err := dbconfig.Load(opts.DB.Path)
	if err != nil {
		return err
	}

	connection.TxnTimeout = opts.Session.TxnTimeout

	factory := func() (connection.Connection, error) {
		h, err := eng.Open(opts.DB.Path)
		if err != nil {
			return nil, err
		}
		return connection.NewLocal(h), nil
	}

	throttler := connection.NewThrottler(
		opts.Throttle.Concurrency,
		opts.Throttle.AcquireTimeout,
		int64(opts.Throttle.MaxResponseSize),
		factory,
	)

	basicHash, err := auth.HashPassword(opts.Auth.Pass)
	if err != nil {
		return err
	}

	authn := &auth.JWTAuthenticator{
		Signature: []byte(opts.Auth.Signature),
		BasicUser: opts.Auth.User,
		BasicHash: basicHash,
	}

	wsLog := log.WithFields(logrus.Fields{"prefix": "ws"})
	dumpLog := log.WithFields(logrus.Fields{"prefix": "dump"})

	ws := &server.WSHandler{
		Throttler:       throttler,
		Authenticator:   authn,
		MaxStoredSQL:    opts.Session.MaxStoredSQL,
		MaxResponseSize: int64(opts.Throttle.MaxResponseSize),
		Config:          cfgStore,
		Log:             wsLog,
	}

	dump := &server.DumpHandler{
		Engine: eng,
		Dir:    func(r *http.Request) (string, error) { return opts.DB.Path, nil },
		Log:    dumpLog,
	}

	sockAddr := fmt.Sprintf("%s:%d", opts.Node.Host, opts.Port.Sock)
	httpAddr := fmt.Sprintf("%s:%d", opts.Node.Host, opts.Port.Http)

	errc := make(chan error, 2)

	go func() {
		log.Infof("Starting session server on %s", sockAddr)
		errc <- http.ListenAndServe(sockAddr, ws)
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/dump", dump)
		log.Infof("Starting dump server on %s", httpAddr)
		errc <- http.ListenAndServe(httpAddr, mux)
	}()

	return <-errc
}
