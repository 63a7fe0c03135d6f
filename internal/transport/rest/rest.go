package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"merchant_go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// OrderService is the slice of the lifecycle manager the REST layer needs.
type OrderService interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderQuote, error)
	CheckPayment(ctx context.Context, addr string) (bool, error)
}

// Server wraps the HTTP listener serving the public order API.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the router and binds it to addr. Call Run to listen.
func NewServer(addr string, svc OrderService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	h := &handler{svc: svc, logger: logger}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Post("/order", h.createOrder)
	router.Get("/order/payment/{bchAddr}", h.checkPayment)

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Run blocks serving requests until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("REST server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
