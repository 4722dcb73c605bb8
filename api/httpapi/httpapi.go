package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	wsadapter "leaderboardkit/adapters/websocket"
	"leaderboardkit/analytics"
	"leaderboardkit/realtime"
	"leaderboardkit/session"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// HealthTimeout bounds the service probe behind /healthz. Defaults to 5s.
	HealthTimeout time.Duration
}

// Prober checks that the leaderboard service is reachable. *sdk.Client satisfies it.
type Prober interface {
	Test(ctx context.Context, onResult func(bool))
}

// Deps are the components the bridge exposes. Session is required.
type Deps struct {
	Session *session.Session
	Prober  Prober
	Hub     *realtime.Hub
	Stats   *analytics.OperationStats
	DAU     *analytics.DAU
	// Metrics serves the /metrics route when set (e.g. promhttp.Handler()).
	Metrics http.Handler
}

// maxIdentityBody bounds POST /identity bodies.
const maxIdentityBody = 4 << 10

// NewMux builds an http.Handler through which a local front end hands
// credentials to the SDK and observes it.
// Routes:
//   - POST   {prefix}/identity  body "username,mode,token" or JSON {username,mode,token}
//   - GET    {prefix}/identity
//   - DELETE {prefix}/identity
//   - GET    {prefix}/healthz
//   - GET    {prefix}/stats
//   - WS     {prefix}/ws
//   - GET    {prefix}/metrics
func NewMux(deps Deps, opts Options) http.Handler {
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 5 * time.Second
	}

	root := mux.NewRouter()
	root.NotFoundHandler = http.HandlerFunc(notFound)
	root.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	r := root
	if prefix := strings.TrimSuffix(opts.PathPrefix, "/"); prefix != "" {
		r = root.PathPrefix(prefix).Subrouter()
		r.NotFoundHandler = root.NotFoundHandler
		r.MethodNotAllowedHandler = root.MethodNotAllowedHandler
	}

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		healthCheck(w, req, deps.Prober, opts.HealthTimeout)
	}).Methods(http.MethodGet)

	r.HandleFunc("/identity", func(w http.ResponseWriter, req *http.Request) {
		setIdentity(w, req, deps.Session)
	}).Methods(http.MethodPost)
	r.HandleFunc("/identity", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, identityView(deps.Session))
	}).Methods(http.MethodGet)
	r.HandleFunc("/identity", func(w http.ResponseWriter, _ *http.Request) {
		deps.Session.ClearUserData()
		writeJSON(w, identityView(deps.Session))
	}).Methods(http.MethodDelete)

	if deps.Stats != nil {
		r.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
			uploaded, deleted := deps.Stats.Entries()
			body := map[string]any{
				"operations":       deps.Stats.Summaries(),
				"entries_uploaded": uploaded,
				"entries_deleted":  deleted,
			}
			if deps.DAU != nil {
				body["active_users_today"] = deps.DAU.CountOn(time.Now())
			}
			writeJSON(w, body)
		}).Methods(http.MethodGet)
	}

	// WebSocket events and credential channel
	if deps.Hub != nil {
		r.Handle("/ws", wsadapter.Handler(deps.Hub, deps.Session)).Methods(http.MethodGet)
	}

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics).Methods(http.MethodGet)
	}

	// CORS sits outermost so preflights and error responses carry its headers.
	handler := handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(root)
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	return handler
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "no such route", nil)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method", nil)
}

type identityRequest struct {
	Username string `json:"username"`
	Mode     string `json:"mode"`
	Token    string `json:"token"`
}

type identityResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Mode          string `json:"mode,omitempty"`
	DeviceID      string `json:"device_id,omitempty"`
}

// identityView never includes the token.
func identityView(s *session.Session) identityResponse {
	id := s.Identity()
	return identityResponse{
		Authenticated: id.Authenticated(),
		Username:      id.Username,
		Mode:          string(id.Mode),
		DeviceID:      s.DeviceID(),
	}
}

func setIdentity(w http.ResponseWriter, r *http.Request, s *session.Session) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIdentityBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	if isJSON(r) {
		var req identityRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "malformed JSON", nil)
			return
		}
		err = s.SetUserDataFields(strings.TrimSpace(req.Username), strings.TrimSpace(req.Mode), strings.TrimSpace(req.Token))
	} else {
		err = s.SetUserData(strings.TrimSpace(string(body)))
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_credentials", err.Error(), nil)
		return
	}
	writeJSON(w, identityView(s))
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// healthCheck probes the leaderboard service through the SDK.
func healthCheck(w http.ResponseWriter, r *http.Request, p Prober, timeout time.Duration) {
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"service": "skipped",
		},
	}
	if p == nil {
		writeJSON(w, status)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	result := make(chan bool, 1)
	p.Test(ctx, func(ok bool) { result <- ok })

	ok := false
	select {
	case ok = <-result:
	case <-ctx.Done():
	}

	checks := status["checks"].(map[string]any)
	if !ok {
		status["status"] = "unhealthy"
		checks["service"] = "unreachable"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(status)
		return
	}
	checks["service"] = "ok"
	writeJSON(w, status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-API-Key")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limiterIdleTTL is how long an idle client's limiter is kept.
const limiterIdleTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	limit     rate.Limit
	burst     int
	now       func() time.Time
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		limit:     rate.Limit(float64(rpm) / 60),
		burst:     burst,
		now:       time.Now,
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	now := rl.now()
	if now.Sub(rl.lastSweep) > limiterIdleTTL {
		rl.sweep(now)
	}
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// sweep drops limiters idle for longer than limiterIdleTTL. Caller holds mu.
func (rl *rateLimiter) sweep(now time.Time) {
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(rl.visitors, key)
		}
	}
	rl.lastSweep = now
}
