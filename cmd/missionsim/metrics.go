package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/OCAP2/missionsim/internal/monitor"
	"github.com/prometheus/client_golang/prometheus"
)

// serveMetrics starts the /metrics endpoint on addr. An empty addr disables
// it and returns nil metrics.
func serveMetrics(logger *slog.Logger, addr string) (*monitor.Metrics, func(), error) {
	if addr == "" {
		return nil, func() {}, nil
	}

	m, err := monitor.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return nil, nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", "error", err)
		}
	}()
	logger.Info("Serving metrics", "address", ln.Addr().String())

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return m, stop, nil
}
