package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vk/kiln/internal/coordinate"
	"github.com/vk/kiln/internal/ctxlog"
	"github.com/vk/kiln/internal/repository"
)

const (
	repositoryPrefix = "/repository/"
	shutdownTimeout  = 5 * time.Second
)

// Handler returns the routes of the repository server: the cache served as a
// Maven2 repository under /repository/, plus /health and /metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET "+repositoryPrefix, a.repositoryHandler)
	return mux
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// repositoryHandler answers a Maven2 path from the cache, downloading from
// the configured repositories on a miss.
func (a *App) repositoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := ctxlog.WithLogger(r.Context(), a.logger)
	path := strings.TrimPrefix(r.URL.Path, repositoryPrefix)

	coord, ext, err := coordinate.FromMavenPath(path)
	if err != nil {
		a.logger.Debug("Rejected repository request.", "path", path, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := a.repo.Bytes(ctx, coord, ext)
	switch {
	case repository.IsNotFound(err):
		http.Error(w, "not found", http.StatusNotFound)
		return
	case err != nil:
		a.logger.Warn("Failed to serve repository file.", "path", path, "error", err)
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		a.logger.Debug("Failed to write repository response.", "path", path, "error", err)
	}
}

// serve runs the repository server until ctx ends, then shuts it down
// gracefully.
func (a *App) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.config.Listen,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("🩺 Repository server starting.", "address", a.config.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("repository server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("🩺 Shutting down repository server.")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("repository server shutdown failed: %w", err)
	}
	a.logger.Debug("Repository server shut down gracefully.")
	return nil
}
