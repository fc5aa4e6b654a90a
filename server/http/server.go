package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/w-h-a/triage/repository"
	"github.com/w-h-a/triage/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type httpServer struct {
	options server.Options
	handler http.Handler
}

func (s *httpServer) Handler() http.Handler {
	return s.handler
}

func (s *httpServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.options.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.options.Logger.InfoContext(ctx, "triage api listening", "address", s.options.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.options.Logger.InfoContext(ctx, "triage api shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func NewServer(repo repository.Repository, opts ...server.Option) *httpServer {
	options := server.NewOptions(opts...)

	h := &handler{
		repo:   repo,
		logger: options.Logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(options.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/v1/triages", h.save).Methods(http.MethodPost)
	router.HandleFunc("/v1/patients/{patient_id}/triages", h.list).Methods(http.MethodGet)

	var hd http.Handler = router

	if ms, ok := MiddlewareFrom(options.Context); ok {
		for i := len(ms) - 1; i >= 0; i-- {
			hd = ms[i](hd)
		}
	}

	hd = logging(options.Logger)(hd)
	hd = otelhttp.NewHandler(hd, "triage-api")

	return &httpServer{
		options: options,
		handler: hd,
	}
}
