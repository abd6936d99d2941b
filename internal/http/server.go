// Package http exposes the ledger engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"taschengeld/internal/cache"
	"taschengeld/internal/core"
	"taschengeld/internal/log"
	"taschengeld/internal/middleware/ratelimit"
	"taschengeld/internal/middleware/security"
	"taschengeld/internal/middleware/trace"
	"taschengeld/internal/services"
)

type Server struct {
	http.Server

	ledger  *services.LedgerService
	accrual *services.AccrualEngine
	audit   *services.AuditService

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	entryLog *log.StructuredLogger

	// Balance and month-history reads are cached per child; every accepted
	// write for a child drops both entries.
	balanceCache *cache.LRUCache[core.Balance]
	historyCache *cache.LRUCache[[]core.Transaction]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, accrual *services.AccrualEngine, audit *services.AuditService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		ledger:       ledger,
		accrual:      accrual,
		audit:        audit,
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:     security.NewDetector(),
		balanceCache: cache.NewLRUCache[core.Balance](500, 30*time.Second),
		historyCache: cache.NewLRUCache[[]core.Transaction](500, 30*time.Second),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.balanceCache)
	s.cacheManager.Register(s.historyCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/children", s.handleCreateChild)
	mux.HandleFunc("GET /api/children", s.handleListChildren)
	mux.HandleFunc("GET /api/children/{childID}/balance", s.handleGetBalance)
	mux.HandleFunc("GET /api/children/{childID}/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/children/{childID}/stats", s.handleStats)
	mux.HandleFunc("GET /api/children/{childID}/trend", s.handleTrend)
	mux.HandleFunc("GET /api/children/{childID}/wish", s.handleWish)
	mux.HandleFunc("GET /api/children/{childID}/audit", s.handleAudit)

	mux.HandleFunc("POST /api/children/{childID}/payout", s.handlePayout)
	mux.HandleFunc("POST /api/children/{childID}/extra", s.handleExtraPayment)
	mux.HandleFunc("POST /api/children/{childID}/expense", s.handleExpense)
	mux.HandleFunc("POST /api/children/{childID}/transfer", s.handleTransferInvest)
	mux.HandleFunc("POST /api/children/{childID}/interest", s.handleInterest)
	mux.HandleFunc("POST /api/children/{childID}/adjustment", s.handleAdjustment)

	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, nil)
	httpLog := log.NewFromEnv(log.ComponentHTTP)
	logged := log.Middleware(httpLog)
	s.entryLog = log.NewStructuredLogger(httpLog.WithComponent(log.ComponentLedger))
	guarded := s.detectSuspicious(httpLog.WithComponent(log.ComponentSecurity), limited(headers.Middleware(logged(mux))))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(guarded),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Shutdown stops the cache and limiter cleanup goroutines and drains the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// detectSuspicious flags requests matching known attack probes. Flagged
// requests are logged and counted but still served; the signal feeds /metrics.
func (s *Server) detectSuspicious(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			logger.WarnContext(r.Context(), "suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

type metricsResponse struct {
	TotalRequests      int64 `json:"total_requests"`
	LastResponseTimeMs int64 `json:"last_response_time_ms"`
	RateLimitHits      int64 `json:"rate_limit_hits"`
	RateLimitClients   int64 `json:"rate_limit_clients"`
	SuspiciousRequests int64 `json:"suspicious_requests"`
	BalanceCacheSize   int   `json:"balance_cache_size"`
	HistoryCacheSize   int   `json:"history_cache_size"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traffic := s.tracer.GetMetrics()
	limits := s.limiter.GetMetrics()
	detection := s.detector.GetMetrics()

	writeJSON(w, http.StatusOK, metricsResponse{
		TotalRequests:      traffic.TotalRequests,
		LastResponseTimeMs: traffic.LastResponseTimeMs,
		RateLimitHits:      limits.TotalHits,
		RateLimitClients:   limits.ClientCount,
		SuspiciousRequests: detection.SuspiciousRequests,
		BalanceCacheSize:   s.balanceCache.Size(),
		HistoryCacheSize:   s.historyCache.Size(),
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func historyKey(childID string, year, month int) string {
	return childID + ":" + strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

// invalidateChild drops every cached read for the child. History entries are
// keyed by month, so the cheap route is versioning by deletion: balance by
// key, history by letting the short TTL expire stale months.
func (s *Server) invalidateChild(childID string, occurredOn core.Date) {
	s.balanceCache.Delete(childID)
	s.historyCache.Delete(historyKey(childID, occurredOn.Year(), int(occurredOn.Month())))
}

func (s *Server) cachedBalance(ctx context.Context, childID string) (core.Balance, error) {
	if b, ok := s.balanceCache.Get(childID); ok {
		return b, nil
	}
	b, err := s.ledger.GetBalance(ctx, childID)
	if err != nil {
		return core.Balance{}, err
	}
	s.balanceCache.Set(childID, b)
	return b, nil
}

func (s *Server) cachedHistory(ctx context.Context, childID string, year, month int) ([]core.Transaction, error) {
	key := historyKey(childID, year, month)
	if txs, ok := s.historyCache.Get(key); ok {
		result := make([]core.Transaction, len(txs))
		copy(result, txs)
		return result, nil
	}
	txs, err := s.ledger.History(ctx, childID, year, month)
	if err != nil {
		return nil, err
	}
	s.historyCache.Set(key, txs)
	return txs, nil
}
