// Package server provides the HTTP API for the Molly voice bridge.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/wave/molly/internal/bridge"
	"github.com/wave/molly/internal/bullhorn"
	"github.com/wave/molly/internal/config"
	"github.com/wave/molly/internal/credential"
	"github.com/wave/molly/internal/db"
	"github.com/wave/molly/internal/openai"
	"github.com/wave/molly/internal/realtime"
	"github.com/wave/molly/internal/server/middleware"
	"github.com/wave/molly/internal/server/ratelimit"
)

const notConnectedMessage = middleware.NotConnectedMessage

// VoiceProvisioner creates realtime sessions and synthesizes speech.
type VoiceProvisioner interface {
	CreateSession(ctx context.Context, req openai.SessionRequest) (json.RawMessage, error)
	Synthesize(ctx context.Context, req openai.SpeechRequest) (*openai.Audio, error)
}

// SearchLog lists recorded search cycles.
type SearchLog interface {
	ListSearches(ctx context.Context, source *string, limit int) ([]db.SearchEntry, error)
}

// Dialer opens a realtime channel for one conversation.
type Dialer func(ctx context.Context) (realtime.Channel, error)

// Deps are the collaborators a Server is built from. Nil fields disable the
// endpoints that need them.
type Deps struct {
	Voice     VoiceProvisioner
	Searcher  bridge.Searcher
	Store     *credential.Store
	Login     credential.Loginer
	OAuth     *bullhorn.OAuth
	States    *StateService
	SearchLog SearchLog
	Dial      Dialer
	Limiter   *ratelimit.Limiter
	Logger    *log.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	db         *db.DB

	voice       VoiceProvisioner
	searcher    bridge.Searcher
	store       *credential.Store
	login       credential.Loginer
	oauth       *bullhorn.OAuth
	states      *StateService
	searchLog   SearchLog
	dial        Dialer
	rateLimiter *ratelimit.Limiter
	upgrader    websocket.Upgrader
	logger      *log.Logger

	// baseCtx ends on shutdown. Hijacked conversation connections are not
	// tracked by http.Server and watch it instead.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a server wired to the real upstreams described by cfg.
func New(cfg *config.Config) (*Server, error) {
	if err := cfg.RequireOpenAI(); err != nil {
		return nil, err
	}
	logger := log.Default()

	limits, err := ratelimit.LoadConfig()
	if err != nil {
		return nil, err
	}

	var stateCfg *config.StateConfig
	if cfg.BullhornConfigured() {
		stateCfg, err = cfg.StateConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create state config: %w", err)
		}
	}

	var (
		database *db.DB
		recorder bullhorn.Recorder
		history  SearchLog
	)
	if cfg.DatabaseURL != "" {
		database, err = db.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.Migrate(context.Background()); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		recorder, history = database, database
	} else {
		logger.Printf("[server] DATABASE_URL not set, search log disabled")
	}

	store := credential.NewStore()
	client := bullhorn.NewClient(cfg.BullhornLoginURL, nil)
	gate := credential.NewGate(store, client, credential.GateOptions{Window: cfg.Window(), Logger: logger})

	deps := Deps{
		Voice:     openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, nil),
		Searcher:  bullhorn.NewService(gate, client, recorder, logger),
		Store:     store,
		Login:     client,
		SearchLog: history,
		Dial:      RealtimeDialer(cfg, logger),
		Limiter:   ratelimit.NewLimiter(limits),
		Logger:    logger,
	}

	if cfg.BullhornConfigured() {
		deps.OAuth = bullhorn.NewOAuth(bullhorn.OAuthConfig{
			ClientID:     cfg.BullhornClientID,
			ClientSecret: cfg.BullhornClientSecret,
			RedirectURL:  cfg.BullhornRedirectURI,
			AuthBaseURL:  cfg.BullhornAuthURL,
		}, nil)
		deps.States = NewStateService(stateCfg)
	} else {
		logger.Printf("[server] Bullhorn OAuth not configured, candidate search unavailable")
	}

	s := NewWithDeps(cfg, deps)
	s.db = database
	return s, nil
}

// NewWithDeps creates a server from explicit collaborators.
func NewWithDeps(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:         cfg,
		voice:       deps.Voice,
		searcher:    deps.Searcher,
		store:       deps.Store,
		login:       deps.Login,
		oauth:       deps.OAuth,
		states:      deps.States,
		searchLog:   deps.SearchLog,
		dial:        deps.Dial,
		rateLimiter: deps.Limiter,
		logger:      deps.Logger,
	}
	if s.store == nil {
		s.store = credential.NewStore()
	}
	if s.rateLimiter == nil {
		s.rateLimiter = ratelimit.NewLimiter(&ratelimit.Config{Enabled: false})
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.httpServer.RegisterOnShutdown(s.cancelBase)
	return s
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Voice
	mux.HandleFunc("POST /api/voice-token", s.handleVoiceToken)
	mux.HandleFunc("GET /session", s.handleVoiceToken)
	mux.HandleFunc("POST /session", s.handleVoiceToken)
	mux.HandleFunc("POST /api/tts", s.handleTTS)

	// Bullhorn
	mux.HandleFunc("GET /api/bullhorn/oauth/start", s.handleOAuthStart)
	mux.HandleFunc("GET /api/bullhorn/oauth/callback", s.handleOAuthCallback)
	mux.HandleFunc("GET /api/bullhorn/status", s.handleBullhornStatus)
	mux.Handle("POST /api/search-candidates", middleware.RequireConnected(s.store)(http.HandlerFunc(s.handleSearchCandidates)))
	mux.HandleFunc("GET /api/searches", s.handleListSearches)

	// Conversation
	mux.HandleFunc("GET /api/conversation", s.handleConversation)
	mux.HandleFunc("POST /api/classify", s.handleClassify)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /voices.html", s.handleVoices)

	return middleware.RequestID(s.withRateLimit(s.withLogging(s.withCORS(mux))))
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("[server] Molly listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("server error: %w", err)
	}
	s.logger.Println("[server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.Close()
	s.logger.Println("[server] Server stopped")
	return nil
}

// Close ends open conversations and releases the rate limiter and database.
func (s *Server) Close() {
	s.cancelBase()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// RealtimeDialer returns a Dialer for the transport selected in cfg.
func RealtimeDialer(cfg *config.Config, logger *log.Logger) Dialer {
	opts := realtime.Options{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.RealtimeModel,
		Logger:  logger,
	}
	if cfg.RealtimeTransport == config.TransportWebRTC {
		return func(ctx context.Context) (realtime.Channel, error) {
			return realtime.DialWebRTC(ctx, realtime.WebRTCOptions{
				Options:    opts,
				ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
			})
		}
	}
	return func(ctx context.Context) (realtime.Channel, error) {
		return realtime.DialWebsocket(ctx, opts)
	}
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id, _ := middleware.GetRequestID(r)
		s.logger.Printf("[%s] %s %s (%s)", r.Method, r.URL.Path, r.RemoteAddr, id)
		next.ServeHTTP(w, r)
		s.logger.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// errResponse writes err with the status HTTPStatus assigns to it.
func (s *Server) errResponse(w http.ResponseWriter, err error) {
	s.errorResponse(w, HTTPStatus(err), errorMessage(err))
}

// extractClientID extracts the client identifier from the request.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	s.logger.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
