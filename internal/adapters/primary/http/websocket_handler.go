package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	mw "github.com/lorrc/repair-service-backend/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/lorrc/repair-service-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/repair-service-backend/internal/auth"
	"github.com/lorrc/repair-service-backend/internal/config"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
)

// WebSocketHandler handles WebSocket connection upgrades
type WebSocketHandler struct {
	hub        *wsAdapter.Hub
	replay     *wsAdapter.ReplayBridge
	tm         *auth.TokenManager
	handshakes *mw.RateLimitByKey
	upgrader   websocket.Upgrader
	keepalive  wsAdapter.Keepalive
	logger     *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler. handshakes limits
// upgrade attempts per identity and may be nil to disable limiting.
func NewWebSocketHandler(
	hub *wsAdapter.Hub,
	replay *wsAdapter.ReplayBridge,
	tm *auth.TokenManager,
	handshakes *mw.RateLimitByKey,
	cfg *config.Config,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		hub:        hub,
		replay:     replay,
		tm:         tm,
		handshakes: handshakes,
		keepalive: wsAdapter.Keepalive{
			PingInterval: cfg.WebSocket.PingInterval,
			PongWait:     cfg.WebSocket.PongWait,
		},
		logger: logger,
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(cfg),
	}

	return handler
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *WebSocketHandler) makeOriginChecker(cfg *config.Config) func(r *http.Request) bool {
	allowedOrigins := cfg.WebSocket.AllowedOrigins

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// In development mode, allow all origins (but log a warning)
		if cfg.IsDevelopment() {
			if origin != "" {
				h.logger.Warn("allowing websocket connection in development mode",
					"origin", origin,
					"remote_addr", r.RemoteAddr,
				)
			}
			return true
		}

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		// Check against allowed origins
		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin",
				"origin", origin,
				"error", err,
			)
			return false
		}

		originHost := parsedOrigin.Host

		for _, allowed := range allowedOrigins {
			// Support wildcard subdomains like "*.example.com"
			if strings.HasPrefix(allowed, "*.") {
				suffix := allowed[1:] // Remove the "*", keep ".example.com"
				if strings.HasSuffix(originHost, suffix) || originHost == allowed[2:] {
					return true
				}
			} else if originHost == allowed {
				return true
			}
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
			"allowed_origins", allowedOrigins,
		)
		return false
	}
}

// ServeHTTP handles WebSocket connection requests. The handshake verifies
// identity, role and display name before the session is admitted; a missing
// identity or a role outside the closed set is rejected outright and no
// event is emitted.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	// 1. Authenticate the connection via query parameter
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		h.logger.Warn("websocket connection rejected: missing token",
			"request_id", requestID,
			"remote_addr", r.RemoteAddr,
		)
		http.Error(w, "Missing authentication token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tm.ValidateToken(tokenString)
	if err != nil {
		h.logger.Warn("websocket connection rejected: invalid token",
			"request_id", requestID,
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	// 2. The verified token must carry an identity and a known role
	if claims.IdentityID == uuid.Nil {
		h.logger.Warn("websocket connection rejected: missing identity",
			"request_id", requestID,
			"remote_addr", r.RemoteAddr,
		)
		http.Error(w, "Identity is required", http.StatusUnauthorized)
		return
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		h.logger.Warn("websocket connection rejected: unknown role",
			"request_id", requestID,
			"identity_id", claims.IdentityID,
			"role", claims.Role,
		)
		http.Error(w, "Unknown role", http.StatusForbidden)
		return
	}

	if h.handshakes != nil && !h.handshakes.Allow(claims.IdentityID.String()) {
		h.logger.Warn("websocket connection rejected: handshake rate exceeded",
			"request_id", requestID,
			"identity_id", claims.IdentityID,
		)
		http.Error(w, "Too many connection attempts", http.StatusTooManyRequests)
		return
	}

	// 3. Upgrade the connection
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection",
			"request_id", requestID,
			"identity_id", claims.IdentityID,
			"error", err,
		)
		return
	}

	h.logger.Info("websocket connection established",
		"request_id", requestID,
		"identity_id", claims.IdentityID,
		"role", role,
		"remote_addr", r.RemoteAddr,
	)

	// 4. Create and register the new client
	client := wsAdapter.NewClient(h.hub, conn, claims.IdentityID, role, claims.DisplayName, h.keepalive, h.replay, h.logger)
	h.hub.Register <- client

	// 5. Start the I/O pumps in new goroutines
	go client.WritePump()
	go client.ReadPump()
}
