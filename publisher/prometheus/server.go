// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package prometheus

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thediveo/lxkns/log"
)

// shutdownTimeout bounds how long in-flight scrapes may take when shutting
// down the metrics endpoint.
const shutdownTimeout = 5 * time.Second

// Handler returns an HTTP handler serving the metrics of the specified
// collector, together with the usual Go runtime and process metrics.
func Handler(c prometheus.Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Serve serves the metrics of the specified collector at "/metrics" on the
// listener until the context is done.
func Serve(ctx context.Context, l net.Listener, c prometheus.Collector) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(c))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	log.Infof("serving Prometheus metrics at http://%s/metrics", l.Addr().String())
	if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
