package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lorrc/repair-service-backend/internal/adapters/primary/validation"
	"github.com/lorrc/repair-service-backend/internal/core/ports"
)

// PresenceHandler exposes the live presence view over REST for clients that
// want the roster without holding a websocket open.
type PresenceHandler struct {
	presence     ports.PresenceReporter
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewPresenceHandler creates a new PresenceHandler.
func NewPresenceHandler(presence ports.PresenceReporter, errorHandler *ErrorHandler, logger *slog.Logger) *PresenceHandler {
	return &PresenceHandler{
		presence:     presence,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "presence"),
	}
}

// RegisterRoutes registers the presence endpoints.
// These routes are relative to /api/v1/presence
func (h *PresenceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleGetPresence)
	r.Get("/{identityID}", h.HandleIsOnline)
}

// OnlineStatusResponse reports whether a single identity is online.
type OnlineStatusResponse struct {
	IdentityID string `json:"identityId"`
	Online     bool   `json:"online"`
}

// HandleGetPresence returns the current full presence snapshot.
func (h *PresenceHandler) HandleGetPresence(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.presence.Snapshot())
}

// HandleIsOnline reports whether one identity has a live session.
func (h *PresenceHandler) HandleIsOnline(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "identityID")
	identityID, err := uuid.Parse(idStr)
	if err != nil {
		v := validation.NewValidator()
		v.Custom("identityID", false, "Invalid identity ID")
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	WriteSuccess(w, OnlineStatusResponse{
		IdentityID: identityID.String(),
		Online:     h.presence.IsOnline(identityID),
	})
}
