// Copyright 2017 The Cayley Authors. All rights reserved.
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

package plazahttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cayleygraph/plaza/client"
	"github.com/cayleygraph/plaza/clog"
)

var mRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "plaza_server_requests_total",
	Help: "Number of requests served by the remote store.",
}, []string{"method", "code"})

// CORS allows browser clients on any origin to reach the store.
func CORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if origin := req.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers",
				"Accept, Content-Type, Content-Length, Accept-Encoding")
		}
		h.ServeHTTP(w, req)
	})
}

func handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.ResponseWriter.WriteHeader(code)
	w.code = code
}

func remoteAddr(req *http.Request) string {
	if addr := req.Header.Get("X-Real-IP"); addr != "" {
		return addr
	}
	if addr := req.Header.Get("X-Forwarded-For"); addr != "" {
		return addr
	}
	return req.RemoteAddr
}

// LogRequests logs and counts every request.
func LogRequests(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h.ServeHTTP(sw, req)
		mRequests.WithLabelValues(req.Method, strconv.Itoa(sw.code)).Inc()
		clog.Debugf("%s %s for %s [%s]: %d %s in %v", req.Method, req.URL.Path, remoteAddr(req),
			req.Header.Get(client.RequestIDHeader), sw.code, http.StatusText(sw.code), time.Since(start))
	})
}
