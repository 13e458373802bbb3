package handlers

import (
	"net/http"

	"checkout-system/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type EventHandler struct {
	app *pocketbase.PocketBase
}

func NewEventHandler(app *pocketbase.PocketBase) *EventHandler {
	return &EventHandler{app: app}
}

type eventRow struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Venue       string `db:"venue" json:"venue"`
	StartsAt    string `db:"starts_at" json:"starts_at"`
	Status      string `db:"status" json:"status"`
}

type ticketTypeRow struct {
	ID          string  `db:"id"`
	Name        string  `db:"name"`
	Description string  `db:"description"`
	Price       float64 `db:"price"`
	Currency    string  `db:"currency"`
	Remaining   int     `db:"remaining"`
}

// GetEvents - List events open for sale
func (h *EventHandler) GetEvents(e *core.RequestEvent) error {
	events := []eventRow{}
	err := h.app.DB().
		Select("id", "name", "description", "venue", "starts_at", "status").
		From("events").
		Where(dbx.HashExp{"status": "on_sale"}).
		OrderBy("starts_at ASC").
		All(&events)
	if err != nil {
		return apis.NewBadRequestError("Failed to fetch events", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"events": events,
		"total":  len(events),
	})
}

// GetEvent - Get a single event with its ticket types
func (h *EventHandler) GetEvent(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID is required", nil)
	}

	event := eventRow{}
	err := h.app.DB().
		Select("id", "name", "description", "venue", "starts_at", "status").
		From("events").
		Where(dbx.HashExp{"id": eventID}).
		One(&event)
	if err != nil {
		return apis.NewNotFoundError("Event not found", err)
	}

	types, err := LoadTicketTypes(h.app, eventID)
	if err != nil {
		return apis.NewBadRequestError("Failed to fetch ticket types", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event":        event,
		"ticket_types": types,
	})
}

// LoadTicketTypes fetches the base ticket-type catalogue for an event.
func LoadTicketTypes(app *pocketbase.PocketBase, eventID string) ([]models.TicketType, error) {
	rows := []ticketTypeRow{}
	err := app.DB().
		Select("id", "name", "description", "price", "currency", "remaining").
		From("ticket_types").
		Where(dbx.HashExp{"event_id": eventID}).
		OrderBy("price ASC", "name ASC").
		All(&rows)
	if err != nil {
		return nil, err
	}

	types := make([]models.TicketType, 0, len(rows))
	for _, r := range rows {
		types = append(types, models.TicketType{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Price:       decimal.NewFromFloat(r.Price),
			Currency:    r.Currency,
			Remaining:   r.Remaining,
		})
	}
	return types, nil
}
