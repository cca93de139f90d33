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
	"io"
	"net/http"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/abcum/qld/engine"
)

// DumpHandler streams a logical SQL dump of one database directory as
// a chunked HTTP response. The exporter runs in its own goroutine,
// blocking on disk I/O, while the handler goroutine copies whatever it
// writes straight out to the client as it's produced.
type DumpHandler struct {
	Engine engine.Engine
	Dir    func(r *http.Request) (string, error)
	Log    *logrus.Entry
}

func (h *DumpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := xid.New().String()
	log := h.log().WithField("dump", reqID)

	dir, err := h.Dir(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.WithField("dir", dir).Info("dump export starting")

	pr, pw := io.Pipe()

	go func() {
		pw.CloseWithError(h.Engine.Dump(dir, pw))
	}()

	w.Header().Set("Content-Type", "application/sql")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := pr.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				log.WithError(err).Warn("dump export failed mid-stream")
			}
			return
		}
	}
}

func (h *DumpHandler) log() *logrus.Entry {
	if h.Log != nil {
		return h.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
