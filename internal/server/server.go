// Package server provides HTTP server initialization and lifecycle
// management for the Podium API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/podium-hq/podium/internal/config"
	"github.com/podium-hq/podium/internal/engine"
	"github.com/podium-hq/podium/internal/storage"
	"github.com/podium-hq/podium/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with
// port 0) and the WebSocketHub carrying the live activity feed. The hub is
// wired to the ingestor's activity callback, so every speaker creation and
// merge is broadcast to connected clients as it happens.
func Start(ctx context.Context, cfg *config.Config, store storage.Store, ingestor *engine.Ingestor, discovery *engine.Discovery) (string, *handlers.WebSocketHub) {
	mux := http.NewServeMux()

	// WebSocket hub for the live activity feed
	wsHub := handlers.NewWebSocketHub(cfg)
	go wsHub.Run()

	ingestor.SetActivityCallback(func(e engine.ActivityEvent) {
		wsHub.Broadcast(e)
	})

	// Rate limiter (10 req/sec, burst of 20)
	rateLimiter := handlers.NewRateLimiter(10.0, 20)

	apiHandlers := handlers.NewAPIHandlers(ingestor, discovery, store, cfg)

	// API routes (require auth in production mode)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/events", apiHandlers.PostEvent)
	apiMux.HandleFunc("GET /api/search", apiHandlers.Search)
	apiMux.HandleFunc("GET /api/speakers", apiHandlers.ListSpeakers)
	apiMux.HandleFunc("GET /api/speakers/{id}", apiHandlers.GetSpeaker)
	apiMux.HandleFunc("POST /api/speakers/{id}/attributes", apiHandlers.PostAttribute)
	apiMux.HandleFunc("GET /api/audit", apiHandlers.ListAudit)
	apiMux.HandleFunc("POST /api/audit/{id}/resolve", apiHandlers.ResolveAudit)
	apiMux.HandleFunc("POST /api/sweep", apiHandlers.PostSweep)

	// Health endpoint — no auth required, used by monitoring
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","version":"1.0.0"}`))
	})

	// Wrap API routes with auth middleware
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (no auth required - origin validation handles security)
	mux.Handle("/ws/activity", wsHub)

	// Wrap entire server with rate limiting, then security headers
	handler := rateLimiter.RateLimitMiddleware(mux)
	handler = securityHeadersMiddleware(handler)

	// Create server with security timeouts
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub
}
