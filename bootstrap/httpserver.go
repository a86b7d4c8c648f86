// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bootstrap

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smyte-run/respkv/kvstore"
	"github.com/smyte-run/respkv/pipeline"
	"github.com/smyte-run/respkv/pkg/log"
)

// httpWorkerPoolSize is the idiomatic-Go analogue of the "default 16
// threads" operational-endpoint thread pool of §5: not a literal
// thread pool (net/http's handler goroutines are cheap and unbounded
// by default), but a semaphore bounding how many requests this
// endpoint serves concurrently, so a burst of scraping/polling clients
// cannot starve the rest of the process.
const httpWorkerPoolSize = 16

// operationalServer exposes /metrics, /healthz, and /info alongside
// the RESP listener, grounded on the teacher's gorilla/mux +
// gorilla/handlers router setup in cmd/cc-backend/main.go.
type operationalServer struct {
	httpSrv *http.Server
}

// newOperationalServer builds the router. engine and counter are read
// at request time, never held past a single handler call, so they may
// be swapped or still be mid-initialization when the server starts
// listening (it starts only after bootstrap step 2, by which point
// engine is ready).
func newOperationalServer(addr string, engine kvstore.Engine, counter *pipeline.ConnCounter) *operationalServer {
	r := mux.NewRouter()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "respkv_open_connections", Help: "Currently open RESP client connections."},
		func() float64 { return float64(counter.Load()) },
	))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	}).Methods(http.MethodGet)

	r.HandleFunc("/info", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		var b strings.Builder
		b.WriteString(engine.Info())
		b.WriteString("\n")
		b.WriteString(engine.DBStats())
		b.WriteString("\n")
		io.WriteString(w, b.String())
	}).Methods(http.MethodGet)

	r.Use(boundedConcurrency(httpWorkerPoolSize))
	r.Use(handlers.CompressHandler)
	r.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(false)))

	logged := handlers.CustomLoggingHandler(io.Discard, r, func(_ io.Writer, params handlers.LogFormatterParams) {
		log.Debugf("%s %s (%d, %dms)", params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, time.Since(params.TimeStamp).Milliseconds())
	})

	return &operationalServer{httpSrv: &http.Server{
		Addr:         addr,
		Handler:      logged,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}}
}

// boundedConcurrency wraps next so that at most n requests run at once;
// additional requests block on the semaphore until a slot frees.
func boundedConcurrency(n int) mux.MiddlewareFunc {
	sem := make(chan struct{}, n)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sem <- struct{}{}
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		})
	}
}

// start runs the HTTP server in the background. Listener bind errors
// surface asynchronously via the returned channel's first (and only)
// send; calling start on a nil *operationalServer disables the endpoint
// entirely.
func (o *operationalServer) start() <-chan error {
	errCh := make(chan error, 1)
	if o == nil {
		close(errCh)
		return errCh
	}
	go func() {
		err := o.httpSrv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

func (o *operationalServer) stop() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.httpSrv.Shutdown(ctx); err != nil {
		log.Warnf("bootstrap: operational http server shutdown: %v", err)
	}
}
