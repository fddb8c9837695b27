package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/api/handlers"
	"github.com/groxaxo/chatmode/config"
	"github.com/groxaxo/chatmode/internal/cache"
	"github.com/groxaxo/chatmode/internal/database"
	"github.com/groxaxo/chatmode/internal/metrics"
	"github.com/groxaxo/chatmode/orchestrator"
	"github.com/groxaxo/chatmode/speech"
	"github.com/groxaxo/chatmode/store"
)

type routerDeps struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *store.Store
	orch      *orchestrator.Orchestrator
	synth     *speech.Synthesizer
	collector *metrics.Collector
	pool      *database.PoolManager
	redis     *cache.Manager // nil when the in-process cache is used
}

// buildRouter assembles the HTTP surface. Everything under /v1/ except the
// login endpoint requires a bearer token.
func buildRouter(deps routerDeps) http.Handler {
	auth := handlers.NewAuthHandler(deps.store, deps.cfg.Auth.JWTSecret, deps.cfg.Auth.TokenTTL, deps.logger)
	session := handlers.NewSessionHandler(deps.orch, deps.store, deps.logger)
	agents := handlers.NewAgentHandler(deps.store, deps.logger)
	audio := handlers.NewAudioHandler(deps.synth, deps.logger)
	feed := handlers.NewFeedHandler(deps.orch, deps.logger)

	health := handlers.NewHealthHandler(version, deps.logger)
	health.AddCheck("database", deps.pool.Ping)
	if deps.redis != nil {
		health.AddCheck("redis", deps.redis.Ping)
	}

	protected := http.NewServeMux()

	// Session control. Reads are open to any authenticated caller, writes
	// require the admin role.
	protected.HandleFunc("POST /v1/session/start", auth.Admin(session.Start))
	protected.HandleFunc("POST /v1/session/stop", auth.Admin(session.Stop))
	protected.HandleFunc("POST /v1/session/resume", auth.Admin(session.Resume))
	protected.HandleFunc("GET /v1/session/status", session.Status)
	protected.HandleFunc("GET /v1/session/history", session.History)
	protected.HandleFunc("POST /v1/session/inject", auth.Admin(session.Inject))
	protected.HandleFunc("GET /v1/session/transcript", session.Transcript)
	protected.HandleFunc("GET /v1/session/feed", feed.Serve)

	// Per-agent runtime control.
	protected.HandleFunc("GET /v1/session/agents", session.AgentStates)
	protected.HandleFunc("POST /v1/session/agents/{id}/{action}", auth.Admin(session.AgentAction))
	protected.HandleFunc("GET /v1/session/agents/{id}/tools", session.ListTools)
	protected.HandleFunc("POST /v1/session/agents/{id}/tools/call", auth.Admin(session.CallTool))

	// Memory.
	protected.HandleFunc("POST /v1/memory/clear", auth.Admin(session.ClearMemory))

	// Agent profile CRUD and audit trail.
	protected.HandleFunc("GET /v1/agents", agents.List)
	protected.HandleFunc("POST /v1/agents", auth.Admin(agents.Create))
	protected.HandleFunc("GET /v1/agents/{id}", agents.Get)
	protected.HandleFunc("PUT /v1/agents/{id}", auth.Admin(agents.Update))
	protected.HandleFunc("POST /v1/agents/{id}/disable", auth.Admin(agents.Disable))
	protected.HandleFunc("POST /v1/agents/{id}/enable", auth.Admin(agents.Enable))
	protected.HandleFunc("GET /v1/audit", agents.Audit)

	// Audio artifacts.
	protected.HandleFunc("GET /v1/audio/{key}", audio.Get)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/login", auth.Login)
	mux.HandleFunc("GET /healthz", health.Live)
	mux.HandleFunc("GET /readyz", health.Ready)
	mux.Handle("GET /metrics", deps.collector.Handler())
	mux.Handle("/v1/", auth.Middleware(protected))

	return withObservability(mux, deps.collector, deps.logger)
}

// withObservability logs each request and feeds the HTTP metrics.
func withObservability(next http.Handler, collector *metrics.Collector, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := handlers.NewResponseWriter(w)

		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		collector.ObserveHTTP(r.Method, r.URL.Path, rw.StatusCode, elapsed.Seconds())
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.StatusCode),
			zap.Duration("elapsed", elapsed),
		)
	})
}
