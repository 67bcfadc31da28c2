// Package http is the inbound boundary. The chat-platform gateway delivers
// every buyer interaction (button click or text message) as a POST /events
// call carrying an event id, the acting principal and its staff flag; staff
// catalog and reporting operations arrive as plain REST calls. All domain
// refusals are translated to short plain-language responses here and never
// escape as 5xx.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	catalogapp "github.com/celstore/storefront/internal/catalog/application"
	catalogdomain "github.com/celstore/storefront/internal/catalog/domain"
	invoiceapp "github.com/celstore/storefront/internal/invoice/application"
	"github.com/celstore/storefront/internal/ticket/application"
	"github.com/celstore/storefront/internal/ticket/domain"
	"github.com/celstore/storefront/pkg/idempotency"
	"github.com/celstore/storefront/pkg/tracing"
)

type Handler struct {
	log      *slog.Logger
	tickets  *application.Service
	catalog  *catalogapp.Service
	recorder *invoiceapp.Recorder
	idem     idempotency.Store
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, tickets *application.Service, catalog *catalogapp.Service, recorder *invoiceapp.Recorder, idem idempotency.Store) *Handler {
	return &Handler{
		log:      log,
		tickets:  tickets,
		catalog:  catalog,
		recorder: recorder,
		idem:     idem,
		tracer:   otel.Tracer("storefront-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(tracing.ExtractHTTP)

	r.Post("/events", h.handleEvent)

	r.Get("/products", h.listProducts)
	r.Post("/products", h.addProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deleteProduct)
	r.Post("/products/{id}/spotlight", h.setSpotlight)

	r.Get("/tickets/{channelID}", h.getTicket)
	r.Get("/history/{buyerID}", h.history)
	r.Get("/transactions", h.allTransactions)
	r.Post("/transactions/synthetic", h.syntheticInvoice)

	r.Get("/blacklist", h.listBlacklist)
	r.Post("/blacklist", h.addBlacklist)
	r.Delete("/blacklist/{userID}", h.removeBlacklist)

	return r
}

// event is one delivered platform interaction.
type event struct {
	EventID   string `json:"event_id"`
	Kind      string `json:"kind"` // "component" or "message"
	ActorID   string `json:"actor_id"`
	Staff     bool   `json:"staff"`
	ChannelID string `json:"channel_id"`
	CustomID  string `json:"custom_id"`
	Content   string `json:"content"`
}

type reply struct {
	Text    string `json:"text,omitempty"`
	Invoice string `json:"invoice,omitempty"`
	Ticket  any    `json:"ticket,omitempty"`
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HandleEvent")
	defer span.End()

	var ev event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if ev.EventID == "" || ev.ActorID == "" {
		http.Error(w, "event_id and actor_id are required", http.StatusBadRequest)
		return
	}

	// Platform retries and double clicks arrive with the same event id;
	// drop them before they reach the state machine.
	seen, err := h.idem.Seen(ctx, idempotency.EventKey("event", ev.EventID))
	if err != nil {
		h.log.Error("event dedup check failed", "err", err)
	} else if seen {
		h.log.Info("duplicate event dropped", "event_id", ev.EventID)
		writeJSON(w, http.StatusOK, reply{Text: "already processed"})
		return
	}

	if blocked, err := h.tickets.IsBlacklisted(ctx, ev.ActorID); err != nil {
		h.log.Error("blacklist check failed", "err", err)
	} else if blocked {
		writeJSON(w, http.StatusForbidden, reply{Text: "you are blacklisted from this store"})
		return
	}

	actor := domain.Actor{ID: ev.ActorID, Staff: ev.Staff}

	switch {
	case strings.HasPrefix(ev.CustomID, "item_"):
		h.openTicket(ctx, w, actor, strings.TrimPrefix(ev.CustomID, "item_"))
	case strings.HasPrefix(ev.CustomID, "ticket_add_"):
		h.changeQty(ctx, w, ev, actor, strings.TrimPrefix(ev.CustomID, "ticket_add_"), true)
	case strings.HasPrefix(ev.CustomID, "ticket_remove_"):
		h.changeQty(ctx, w, ev, actor, strings.TrimPrefix(ev.CustomID, "ticket_remove_"), false)
	case ev.CustomID == "confirm_payment":
		h.markPaid(ctx, w, ev, actor)
	case ev.CustomID == "verify_payment":
		h.verify(ctx, w, ev, actor)
	case ev.Kind == "message" && strings.EqualFold(strings.TrimSpace(ev.Content), "!cancel"):
		h.cancel(ctx, w, ev, actor)
	case ev.Kind == "message" && domain.ParseMethod(strings.TrimSpace(ev.Content)) != domain.MethodNone:
		h.setMethod(ctx, w, ev, actor)
	default:
		writeJSON(w, http.StatusOK, reply{Text: "nothing to do"})
	}
}

func (h *Handler) openTicket(ctx context.Context, w http.ResponseWriter, actor domain.Actor, rawID string) {
	productID, err := strconv.Atoi(rawID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, reply{Text: "bad product id"})
		return
	}
	t, err := h.tickets.Open(ctx, actor.ID, productID, 1)
	if err != nil {
		h.refuse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply{Text: "ticket created", Ticket: t})
}

func (h *Handler) changeQty(ctx context.Context, w http.ResponseWriter, ev event, actor domain.Actor, rawID string, add bool) {
	productID, err := strconv.Atoi(rawID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, reply{Text: "bad product id"})
		return
	}
	var t *domain.Ticket
	if add {
		t, err = h.tickets.AddItem(ctx, ev.ChannelID, actor, productID, 1)
	} else {
		one := 1
		t, err = h.tickets.RemoveItem(ctx, ev.ChannelID, actor, productID, &one)
	}
	if err != nil {
		h.refuse(w, err)
		return
	}
	if t.Status == domain.StatusCancelled {
		writeJSON(w, http.StatusOK, reply{Text: "ticket is empty and will be closed"})
		return
	}
	writeJSON(w, http.StatusOK, reply{Ticket: t})
}

func (h *Handler) setMethod(ctx context.Context, w http.ResponseWriter, ev event, actor domain.Actor) {
	m := domain.ParseMethod(strings.TrimSpace(ev.Content))
	t, err := h.tickets.SetPaymentMethod(ctx, ev.ChannelID, actor, m)
	if err != nil {
		h.refuse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply{Text: "payment method set to " + string(m), Ticket: t})
}

func (h *Handler) markPaid(ctx context.Context, w http.ResponseWriter, ev event, actor domain.Actor) {
	t, err := h.tickets.MarkPaid(ctx, ev.ChannelID, actor)
	if err != nil {
		h.refuse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply{Text: "payment claim registered, awaiting staff verification", Ticket: t})
}

func (h *Handler) verify(ctx context.Context, w http.ResponseWriter, ev event, actor domain.Actor) {
	invoice, err := h.tickets.VerifyAndClose(ctx, ev.ChannelID, actor)
	if err != nil {
		h.refuse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply{Text: "payment verified", Invoice: invoice})
}

func (h *Handler) cancel(ctx context.Context, w http.ResponseWriter, ev event, actor domain.Actor) {
	if err := h.tickets.Cancel(ctx, ev.ChannelID, actor); err != nil {
		h.refuse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply{Text: "ticket cancelled"})
}

type productReq struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Category string `json:"category"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context(), strings.ToUpper(r.URL.Query().Get("category")))
	if err != nil {
		h.refuse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) addProduct(w http.ResponseWriter, r *http.Request) {
	if !h.staff(w, r) {
		return
	}
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	p, err := h.catalog.Add(r.Context(), req.ID, req.Name, req.Price, req.Category)
	if err != nil {
		h.refuse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.staff(w, r) {
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	p, err := h.catalog.Update(r.Context(), id, req.Name, req.Price, req.Category)
	if err != nil {
		h.refuse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if !h.staff(w, r) {
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.refuse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setSpotlight(w http.ResponseWriter, r *http.Request) {
	if !h.staff(w, r) {
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	var req struct {
		On bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.catalog.SetSpotlight(r.Context(), id, req.On); err != nil {
		h.refuse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getTicket(w http.ResponseWriter, r *http.Request) {
	t, err := h.tickets.Get(chi.URLParam(r, "channelID"))
	if err != nil {
		h.refuse(w, err)
		return
	}
	actor := actorFrom(r)
	if !t.CanMutate(actor) {
		h.refuse(w, domain.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "buyerID")
	actor := actorFrom(r)
	if !actor.Staff && actor.ID != buyerID {
		h.refuse(w, domain.ErrForbidden)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txs, err := h.recorder.History(r.Context(), buyerID, limit)
	if err != nil {
		h.refuse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) allTransactions(w http.ResponseWriter, r *http.Request) {
	if !h.staff(w, r) {
		return
	}
	txs, err := h.recorder.All(r.Context())
	if err != nil {
		h.refuse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) syntheticInvoice(w http.ResponseWriter, r *http.Request) {
	if !h.staff(w, r) {
		return
	}
	var req struct {
		BuyerID string            `json:"buyer_id"`
		Items   []domain.LineItem `json:"items"`
		Method  string            `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	invoice, err := h.recorder.RecordSynthetic(r.Context(), req.BuyerID, req.Items, req.Method, actorFrom(r).ID)
	if err != nil {
		h.refuse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply{Invoice: invoice})
}

func (h *Handler) listBlacklist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.tickets.Blacklist(r.Context(), actorFrom(r))
	if err != nil {
		h.refuse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) addBlacklist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.tickets.AddBlacklist(r.Context(), actorFrom(r), req.UserID, req.Reason); err != nil {
		h.refuse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeBlacklist(w http.ResponseWriter, r *http.Request) {
	if err := h.tickets.RemoveBlacklist(r.Context(), actorFrom(r), chi.URLParam(r, "userID")); err != nil {
		h.refuse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actorFrom trusts the gateway-set identity headers. The gateway, not this
// service, authenticates against the chat platform.
func actorFrom(r *http.Request) domain.Actor {
	return domain.Actor{
		ID:    r.Header.Get("X-Actor-ID"),
		Staff: r.Header.Get("X-Actor-Staff") == "true",
	}
}

func (h *Handler) staff(w http.ResponseWriter, r *http.Request) bool {
	if !actorFrom(r).Staff {
		h.refuse(w, domain.ErrForbidden)
		return false
	}
	return true
}

// refuse maps domain errors onto user-visible refusals. Anything unknown is
// a storage or infrastructure failure and surfaces as 500 without leaking
// internals.
func (h *Handler) refuse(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, catalogdomain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, reply{Text: err.Error()})
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrWrongTicketOwner):
		writeJSON(w, http.StatusForbidden, reply{Text: err.Error()})
	case errors.Is(err, domain.ErrDuplicateOpenTicket):
		writeJSON(w, http.StatusConflict, reply{Text: "you already have an open ticket, finish or cancel it first"})
	case errors.Is(err, domain.ErrInvalidState):
		writeJSON(w, http.StatusConflict, reply{Text: err.Error()})
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidMethod),
		errors.Is(err, domain.ErrItemNotInTicket),
		errors.Is(err, catalogdomain.ErrInvalidPrice),
		errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, catalogdomain.ErrDuplicateID),
		errors.Is(err, catalogdomain.ErrSpotlightLimit):
		writeJSON(w, http.StatusBadRequest, reply{Text: err.Error()})
	default:
		h.log.Error("unexpected handler error", "err", err)
		writeJSON(w, http.StatusInternalServerError, reply{Text: "something went wrong, try again"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
