// Package http serves the JSON API: bill CRUD and payments, the pay-period
// view, settings, import/export, and cloud sync controls.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"billtrack/internal/cache"
	"billtrack/internal/log"
	"billtrack/internal/middleware/ratelimit"
	"billtrack/internal/middleware/security"
	"billtrack/internal/middleware/trace"
	"billtrack/internal/services"
	"billtrack/internal/state"
	"billtrack/internal/storage"
)

const janitorInterval = 5 * time.Minute

// Options carries the server dependencies and tuning knobs.
type Options struct {
	Addr        string
	Bills       *services.BillService
	Transfer    *services.TransferService
	Sync        *services.SyncService
	Coordinator *state.Coordinator
	Store       storage.Store
	Logger      *log.Logger

	// TrustedProxies extends the default private networks whose
	// forwarding headers are honored.
	TrustedProxies []string
	RateLimit      ratelimit.Config
}

// Server is the API server with its middleware chain and the janitor that
// sweeps the rate limiter's client windows.
type Server struct {
	http.Server

	bills       *services.BillService
	transfer    *services.TransferService
	sync        *services.SyncService
	coordinator *state.Coordinator
	store       storage.Store
	logger      *log.Logger

	detector *security.Detector
	limiter  *ratelimit.Limiter
	trace    *trace.Middleware
	janitor  *cache.Janitor

	startedAt    time.Time
	shutdownOnce sync.Once
}

func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewFromEnv(log.ComponentHTTP)
	}

	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		bills:       opts.Bills,
		transfer:    opts.Transfer,
		sync:        opts.Sync,
		coordinator: opts.Coordinator,
		store:       opts.Store,
		logger:      logger,
		detector:    detector,
		limiter:     ratelimit.NewLimiter(opts.RateLimit),
		startedAt:   time.Now(),
	}
	s.trace = trace.NewMiddleware(logger, detector.ClientIP)
	s.janitor = cache.NewJanitor(logger.WithComponent(log.ComponentCache))
	s.janitor.Register(s.limiter.Sweeper())
	s.janitor.Start(janitorInterval)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ClientIP, s.handleRateLimited)(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.watchSuspicious(handler)
	handler = s.trace.Handler(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/v1/bills", s.handleListBills)
	mux.HandleFunc("POST /api/v1/bills", s.handleCreateBill)
	mux.HandleFunc("GET /api/v1/bills/{id}", s.handleGetBill)
	mux.HandleFunc("PUT /api/v1/bills/{id}", s.handleUpdateBill)
	mux.HandleFunc("DELETE /api/v1/bills/{id}", s.handleDeleteBill)
	mux.HandleFunc("POST /api/v1/bills/{id}/payments", s.handleRecordPayment)
	mux.HandleFunc("POST /api/v1/bills/{id}/toggle-paid", s.handleTogglePaid)
	mux.HandleFunc("PUT /api/v1/bills/{id}/balance", s.handleUpdateBalance)

	mux.HandleFunc("GET /api/v1/view", s.handleView)
	mux.HandleFunc("PUT /api/v1/selection", s.handleSelection)
	mux.HandleFunc("GET /api/v1/periods", s.handlePeriods)

	mux.HandleFunc("GET /api/v1/settings/payconfig", s.handleGetPayConfig)
	mux.HandleFunc("PUT /api/v1/settings/payconfig", s.handleSetPayConfig)
	mux.HandleFunc("GET /api/v1/settings/categories", s.handleGetCategories)
	mux.HandleFunc("PUT /api/v1/settings/categories", s.handleSetCategories)
	mux.HandleFunc("DELETE /api/v1/settings/categories/{name}", s.handleDeleteCategory)
	mux.HandleFunc("GET /api/v1/settings/profile", s.handleGetProfile)
	mux.HandleFunc("PUT /api/v1/settings/profile", s.handleSetProfile)

	mux.HandleFunc("POST /api/v1/regenerate", s.handleRegenerate)

	mux.HandleFunc("GET /api/v1/export", s.handleExport)
	mux.HandleFunc("POST /api/v1/import", s.handleImport)
	mux.HandleFunc("POST /api/v1/import/csv", s.handleImportCSV)

	mux.HandleFunc("GET /api/v1/sync/status", s.handleSyncStatus)
	mux.HandleFunc("POST /api/v1/sync", s.handleSyncNow)
}

// Shutdown stops the janitor and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.janitor.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// watchSuspicious logs scanner-looking requests without blocking them.
func (s *Server) watchSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.Suspicious(r) {
			s.logger.DebugContext(r.Context(), "Suspicious request pattern",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	respondJSON(w, r, http.StatusTooManyRequests, errorBody{
		Error:     "rate limit exceeded, retry later",
		RequestID: trace.GetRequestID(r.Context()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if err := s.store.Ping(ctx); err != nil {
		checks["storage"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
	}

	respondJSON(w, r, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
