// Package gateway serves the S3 wire subset: bucket lifecycle, object
// put/get/head/delete, and v1/v2 listings, with XML bodies and the standard
// S3 error documents. Object records live in the S3 metadata sub-store;
// object bodies flow through the namespace service into the metadata tree
// and the chunk store.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rouse2617/NimbusStore/internal/logger"
	"github.com/rouse2617/NimbusStore/pkg/namespace"
	"github.com/rouse2617/NimbusStore/pkg/s3store"
)

// Config holds gateway server configuration.
type Config struct {
	Host string
	Port int

	// Owner is the account reported in ListAllMyBucketsResult.
	Owner string

	// Region is stamped into new bucket records.
	Region string
}

// Server is the S3 HTTP gateway.
type Server struct {
	cfg  Config
	meta *s3store.Store
	ns   *namespace.Service
	http *http.Server
}

// New assembles a gateway over the S3 sub-store and the namespace service.
func New(cfg Config, meta *s3store.Store, ns *namespace.Service) *Server {
	if cfg.Owner == "" {
		cfg.Owner = "nimbus"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	s := &Server{cfg: cfg, meta: meta, ns: ns}

	router := chi.NewRouter()
	router.Use(requestMiddleware)

	router.Get("/healthz", s.handleHealth)

	router.Get("/", s.handleListBuckets)
	router.Route("/{bucket}", func(r chi.Router) {
		r.Put("/", s.handleCreateBucket)
		r.Delete("/", s.handleDeleteBucket)
		r.Head("/", s.handleHeadBucket)
		r.Get("/", s.handleListObjects)

		r.Put("/*", s.handlePutObject)
		r.Get("/*", s.handleGetObject)
		r.Head("/*", s.handleHeadObject)
		r.Delete("/*", s.handleDeleteObject)
	})

	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}
	return s
}

// Handler exposes the router; tests drive it through httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	logger.SubInfo(logger.SubsysGateway, "s3 gateway listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.ns.Chunks().HealthCheck(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// now is stubbed in tests.
var now = func() uint64 {
	return uint64(time.Now().Unix())
}
