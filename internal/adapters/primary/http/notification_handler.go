package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	mw "github.com/lorrc/repair-service-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/repair-service-backend/internal/adapters/primary/validation"
	"github.com/lorrc/repair-service-backend/internal/auth"
	"github.com/lorrc/repair-service-backend/internal/core/domain"
	"github.com/lorrc/repair-service-backend/internal/core/ports"
)

const maxNotificationListLimit = 200

// NotificationHandler handles HTTP requests for persisted notifications.
type NotificationHandler struct {
	notificationService ports.NotificationService
	errorHandler        *ErrorHandler
	logger              *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(
	notificationService ports.NotificationService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		errorHandler:        errorHandler,
		logger:              logger.With("handler", "notification"),
	}
}

// Router sets up a new chi Router for notification routes.
func (h *NotificationHandler) Router() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the notification endpoints.
// These routes are relative to /api/v1/notifications
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListNotifications)
	r.Post("/{notificationID}/read", h.HandleMarkRead)
	r.Post("/read-all", h.HandleMarkAllRead)
}

// MarkAllReadResponse reports how many notifications were acknowledged.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// --- Handlers ---

// HandleListNotifications lists the calling identity's notifications,
// newest first, including role-targeted ones.
func (h *NotificationHandler) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	claims, role, ok := h.getIdentity(w, r)
	if !ok {
		return
	}

	limit := validation.ParseIntQueryParam(r, "limit", 50)
	if limit <= 0 || limit > maxNotificationListLimit {
		limit = 50
	}

	params := ports.ListNotificationsParams{
		IdentityID: claims.IdentityID,
		Role:       role,
		Limit:      limit,
	}

	notifications, err := h.notificationService.ListNotifications(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, domain.NewNotificationBatch(notifications))
}

// HandleMarkRead acknowledges a single notification for the calling identity.
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	claims, role, ok := h.getIdentity(w, r)
	if !ok {
		return
	}

	notificationID, err := h.parseNotificationID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	params := ports.MarkReadParams{
		NotificationID: notificationID,
		IdentityID:     claims.IdentityID,
		Role:           role,
	}

	if err := h.notificationService.MarkRead(r.Context(), params); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("notification marked read",
		"notification_id", notificationID,
		"identity_id", claims.IdentityID,
	)

	WriteNoContent(w)
}

// HandleMarkAllRead acknowledges every unread notification for the calling
// identity, including role-targeted ones.
func (h *NotificationHandler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	claims, role, ok := h.getIdentity(w, r)
	if !ok {
		return
	}

	params := ports.MarkAllReadParams{
		IdentityID: claims.IdentityID,
		Role:       role,
	}

	updated, err := h.notificationService.MarkAllRead(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("notifications marked read",
		"identity_id", claims.IdentityID,
		"updated", updated,
	)

	WriteSuccess(w, MarkAllReadResponse{Updated: updated})
}

// --- Helper methods ---

// getIdentity extracts claims from the request context and resolves the role.
func (h *NotificationHandler) getIdentity(w http.ResponseWriter, r *http.Request) (*auth.Claims, domain.Role, bool) {
	claims, ok := mw.GetClaims(r.Context())
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Not authorized",
			Code:  "UNAUTHORIZED",
		})
		return nil, "", false
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return nil, "", false
	}

	return claims, role, true
}

// parseNotificationID extracts and validates the notification ID from the URL.
func (h *NotificationHandler) parseNotificationID(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "notificationID")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		v := validation.NewValidator()
		v.Custom("notificationID", false, "Invalid notification ID")
		return 0, v.Errors()
	}
	return id, nil
}
