package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/auth"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/period"
	"fintrack/internal/services"
)

// Ledger is the transaction side of the API.
type Ledger interface {
	Create(ctx context.Context, owner string, in core.TransactionInput) (services.MutationResult, error)
	Update(ctx context.Context, owner, id string, patch core.TransactionPatch) (services.MutationResult, error)
	Delete(ctx context.Context, owner, id string) error
	Get(ctx context.Context, owner, id string) (core.TransactionView, error)
	List(ctx context.Context, owner string, f services.ListFilter) ([]core.TransactionView, error)
	TransferMode() services.TransferMode
}

type Accounts interface {
	Create(ctx context.Context, owner string, in core.AccountInput) (core.Account, error)
	Get(ctx context.Context, owner, id string) (core.Account, error)
	List(ctx context.Context, owner string) ([]core.Account, error)
	Update(ctx context.Context, owner, id string, patch core.AccountPatch) (core.Account, error)
	Delete(ctx context.Context, owner, id string) error
}

type Analytics interface {
	Summary(ctx context.Context, owner string, q period.Query) (analytics.Summary, error)
	Trends(ctx context.Context, owner string, q analytics.TrendQuery) ([]analytics.TrendPoint, error)
	Categories(ctx context.Context, owner string, q period.Query) ([]analytics.CategoryStat, error)
	AccountStats(ctx context.Context, owner string) ([]analytics.AccountStat, error)
}

// Config holds the listener and request-handling settings.
type Config struct {
	Addr      string
	Location  *time.Location
	RateLimit ratelimit.Config
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Ledger    Ledger
	Accounts  Accounts
	Analytics Analytics
	Auth      *auth.Authenticator
	Logger    *log.Logger
	// Ready reports whether backing services are reachable. Nil means always
	// ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	ledger    Ledger
	accounts  Accounts
	analytics Analytics
	ready     func(ctx context.Context) error
	loc       *time.Location

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Call Shutdown to stop it and its background goroutines.
func NewServer(cfg Config, deps Deps) *Server {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		ledger:    deps.Ledger,
		accounts:  deps.Accounts,
		analytics: deps.Analytics,
		ready:     deps.Ready,
		loc:       loc,
		limiter:   ratelimit.NewLimiter(cfg.RateLimit),
		detector:  security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(logger.WithComponent(log.ComponentHTTP), s.detector.ExtractClientIP)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/accounts", s.handleListAccounts)
	api.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	api.HandleFunc("GET /api/accounts/{id}", s.handleGetAccount)
	api.HandleFunc("PUT /api/accounts/{id}", s.handleUpdateAccount)
	api.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)

	api.HandleFunc("GET /api/transactions", s.handleListTransactions)
	api.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	api.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	api.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	api.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	api.HandleFunc("GET /api/analytics/summary", s.handleSummary)
	api.HandleFunc("GET /api/analytics/trends", s.handleTrends)
	api.HandleFunc("GET /api/analytics/categories", s.handleCategories)
	api.HandleFunc("GET /api/analytics/accounts", s.handleAccountStats)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", deps.Auth.Middleware(api))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		NewJSONResponse().
			Status(http.StatusTooManyRequests).
			Body(ErrorBody{Error: "rate limit exceeded, try again later"}).
			Write(w)
	})

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.tracer.Middleware(headers.Middleware(s.detector.Middleware(limit(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops accepting requests, waits for in-flight ones, then stops
// the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
		s.limiter.Stop()
	})
	return shutdownErr
}

// Location is the zone query dates are interpreted in.
func (s *Server) Location() *time.Location { return s.loc }

// RequestMetrics exposes the trace counters.
func (s *Server) RequestMetrics() trace.Metrics { return s.tracer.GetMetrics() }
