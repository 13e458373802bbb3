package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"checkout-system/internal/status"
	"checkout-system/models"
	"checkout-system/security"
	"checkout-system/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type CheckoutHandler struct {
	app     *pocketbase.PocketBase
	manager *services.Manager
	limiter *security.RateLimiter

	promoLimit    int64
	checkoutLimit int64
	limitWindow   time.Duration
}

func NewCheckoutHandler(app *pocketbase.PocketBase, manager *services.Manager, limiter *security.RateLimiter, promoLimit, checkoutLimit int64, limitWindow time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		app:           app,
		manager:       manager,
		limiter:       limiter,
		promoLimit:    promoLimit,
		checkoutLimit: checkoutLimit,
		limitWindow:   limitWindow,
	}
}

// OpenSession - Create or resume a checkout session for an event
func (h *CheckoutHandler) OpenSession(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID is required", nil)
	}
	ctx := e.Request.Context()

	types, err := LoadTicketTypes(h.app, eventID)
	if err != nil {
		return apis.NewBadRequestError("Failed to fetch ticket types", err)
	}
	if len(types) == 0 {
		return apis.NewNotFoundError("Event has no ticket types on sale", nil)
	}

	engine := h.manager.GetOrCreate(ctx, e.Auth.Id, eventID, types)

	return e.JSON(http.StatusOK, map[string]any{
		"session_id": engine.SessionID,
		"state":      engine.State(),
	})
}

// GetState - Read the current session projection
func (h *CheckoutHandler) GetState(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	engine, err := h.manager.Get(services.SessionID(e.Auth.Id, eventID))
	if err != nil {
		return apis.NewNotFoundError("No active checkout session", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"state": engine.State()})
}

// ApplyCommand - Apply a command to the session
func (h *CheckoutHandler) ApplyCommand(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	ctx := e.Request.Context()

	var cmd models.Command
	if err := e.BindBody(&cmd); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	engine, err := h.manager.Get(services.SessionID(e.Auth.Id, eventID))
	if err != nil {
		return apis.NewNotFoundError("No active checkout session", err)
	}

	if err := h.throttle(e, cmd.Kind); err != nil {
		return err
	}

	if err := engine.Apply(ctx, cmd); err != nil {
		var verr *status.ValidationError
		switch {
		case errors.As(err, &verr):
			return e.JSON(http.StatusBadRequest, map[string]any{
				"message": "Validation failed",
				"fields":  verr.Fields,
			})
		case errors.Is(err, status.ErrSessionGone):
			return apis.NewNotFoundError("Checkout session expired", err)
		default:
			slog.Error("engine.Apply()", "kind", cmd.Kind, "session", engine.SessionID, "error", err)
			return apis.NewInternalServerError("internal error", err)
		}
	}

	h.manager.Persist(ctx, engine)

	return e.JSON(http.StatusOK, map[string]any{"state": engine.State()})
}

// CancelPaymentUI - The user dismissed the provider's payment sheet
func (h *CheckoutHandler) CancelPaymentUI(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	engine, err := h.manager.Get(services.SessionID(e.Auth.Id, eventID))
	if err != nil {
		return apis.NewNotFoundError("No active checkout session", err)
	}

	engine.ReportPaymentUICancelled()

	return e.JSON(http.StatusOK, map[string]any{"state": engine.State()})
}

// CloseSession - Drop the session and its persisted snapshot
func (h *CheckoutHandler) CloseSession(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	h.manager.Remove(e.Request.Context(), services.SessionID(e.Auth.Id, eventID))

	return e.JSON(http.StatusOK, map[string]any{"message": "Session closed"})
}

// throttle rate-limits the commands that hit external collaborators.
func (h *CheckoutHandler) throttle(e *core.RequestEvent, kind models.CommandKind) error {
	var key string
	var limit int64
	switch kind {
	case models.CmdSubmitPromoCode:
		key = fmt.Sprintf("promo:%s", e.Auth.Id)
		limit = h.promoLimit
	case models.CmdGoToCheckout:
		key = fmt.Sprintf("checkout:%s", e.Auth.Id)
		limit = h.checkoutLimit
	default:
		return nil
	}

	err := h.limiter.Allow(e.Request.Context(), key, limit, h.limitWindow)
	if errors.Is(err, security.ErrRateLimited) {
		return apis.NewApiError(http.StatusTooManyRequests, "Too many requests", nil)
	}
	return nil
}
