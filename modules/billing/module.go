package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trialbase/trialbase/core"
	authmod "github.com/trialbase/trialbase/modules/auth"
	"github.com/trialbase/trialbase/pkg/jwt"
	"github.com/trialbase/trialbase/pkg/logger"
	billingsvc "github.com/trialbase/trialbase/svc/billing"
	subsvc "github.com/trialbase/trialbase/svc/subscription"
)

// Module wires the billing service to its HTTP routes.
type Module struct {
	svc    *billingsvc.Service
	tokens *jwt.Service
	log    *slog.Logger
}

// NewModule creates the billing HTTP module.
func NewModule(svc *billingsvc.Service, tokens *jwt.Service, log *slog.Logger) *Module {
	if svc == nil {
		panic("modules/billing: service is required")
	}
	if tokens == nil {
		panic("modules/billing: jwt service is required")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Module{svc: svc, tokens: tokens, log: log}
}

// Handle returns the module router. All routes require a bearer token.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(authmod.Middleware(m.tokens))

	r.Post("/", m.create)
	r.Get("/", m.list)
	r.Get("/{id}", m.get)
	r.Post("/{id}/pdf", m.attachPDF)

	return r
}

type createRequest struct {
	Number      string `json:"number,omitempty"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

func (m *Module) create(w http.ResponseWriter, r *http.Request) {
	accountID, ok := m.sessionAccountID(r)
	if !ok {
		m.render(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	inv, err := m.svc.Create(r.Context(), billingsvc.CreateParams{
		AccountID:   accountID,
		Number:      req.Number,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    billingsvc.Currency(req.Currency),
	})
	if err != nil {
		m.render(w, r, core.JSONError(mapBillingError(err)))
		return
	}

	m.render(w, r, core.JSONStatus(http.StatusCreated, "invoice_created", inv, nil))
}

func (m *Module) list(w http.ResponseWriter, r *http.Request) {
	accountID, ok := m.sessionAccountID(r)
	if !ok {
		m.render(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}

	invoices, err := m.svc.ListByAccount(r.Context(), accountID)
	if err != nil {
		m.render(w, r, core.JSONError(mapBillingError(err)))
		return
	}

	m.render(w, r, core.JSON("invoices", invoices, nil))
}

func (m *Module) get(w http.ResponseWriter, r *http.Request) {
	inv, ok := m.ownedInvoice(w, r)
	if !ok {
		return
	}
	m.render(w, r, core.JSON("invoice", inv, nil))
}

func (m *Module) attachPDF(w http.ResponseWriter, r *http.Request) {
	inv, ok := m.ownedInvoice(w, r)
	if !ok {
		return
	}

	updated, err := m.svc.AttachPDF(r.Context(), inv.ID)
	if err != nil {
		m.render(w, r, core.JSONError(mapBillingError(err)))
		return
	}

	m.render(w, r, core.JSON("invoice", updated, nil))
}

// ownedInvoice loads the invoice from the path and verifies it belongs to
// the caller's account. Foreign invoices render as 404.
func (m *Module) ownedInvoice(w http.ResponseWriter, r *http.Request) (*billingsvc.Invoice, bool) {
	accountID, ok := m.sessionAccountID(r)
	if !ok {
		m.render(w, r, core.JSONError(core.ErrUnauthorized))
		return nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		m.render(w, r, core.JSONError(core.ErrBadRequest))
		return nil, false
	}

	inv, err := m.svc.Get(r.Context(), id)
	if err != nil {
		m.render(w, r, core.JSONError(mapBillingError(err)))
		return nil, false
	}
	if inv.AccountID != accountID {
		m.render(w, r, core.JSONError(core.ErrNotFound))
		return nil, false
	}
	return inv, true
}

func (m *Module) sessionAccountID(r *http.Request) (uuid.UUID, bool) {
	claims, ok := authmod.SessionFromContext(r)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.AccountID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (m *Module) render(w http.ResponseWriter, r *http.Request, resp core.Response) {
	if err := resp.Render(w, r); err != nil {
		m.log.ErrorContext(r.Context(), "failed to render response",
			logger.Error(err),
			logger.Component("modules/billing"),
		)
	}
}

func mapBillingError(err error) error {
	switch {
	case errors.Is(err, billingsvc.ErrInvoiceNotFound):
		return core.ErrNotFound
	case errors.Is(err, billingsvc.ErrDuplicateInvoiceNumber):
		return core.NewHTTPError(http.StatusConflict, "duplicate_invoice_number")
	case errors.Is(err, billingsvc.ErrInvalidCurrency):
		return core.NewHTTPError(http.StatusBadRequest, "unsupported_currency")
	case errors.Is(err, billingsvc.ErrInvalidAmount):
		return core.NewHTTPError(http.StatusBadRequest, "invalid_amount")
	case errors.Is(err, subsvc.ErrSubscriptionNotFound):
		return core.ErrNotFound
	default:
		return err
	}
}
