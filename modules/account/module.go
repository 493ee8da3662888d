package account

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trialbase/trialbase/core"
	authmod "github.com/trialbase/trialbase/modules/auth"
	"github.com/trialbase/trialbase/pkg/jwt"
	"github.com/trialbase/trialbase/pkg/logger"
	accountsvc "github.com/trialbase/trialbase/svc/account"
)

// Module wires the account service to its HTTP routes.
type Module struct {
	svc    *accountsvc.Service
	tokens *jwt.Service
	log    *slog.Logger
}

// NewModule creates the account HTTP module.
func NewModule(svc *accountsvc.Service, tokens *jwt.Service, log *slog.Logger) *Module {
	if svc == nil {
		panic("modules/account: service is required")
	}
	if tokens == nil {
		panic("modules/account: jwt service is required")
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
	r.Get("/trial", m.trialStatus)
	return r
}

type trialStatusResponse struct {
	IsTrial       bool       `json:"is_trial"`
	TrialActive   bool       `json:"trial_active"`
	TrialExpired  bool       `json:"trial_expired"`
	DaysRemaining int        `json:"days_remaining"`
	TrialStart    *time.Time `json:"trial_start,omitempty"`
	TrialEnd      *time.Time `json:"trial_end,omitempty"`
	Plan          string     `json:"plan"`
	Status        string     `json:"status"`
}

func (m *Module) trialStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := authmod.SessionFromContext(r)
	if !ok {
		m.render(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}
	accountID, err := uuid.Parse(claims.AccountID)
	if err != nil {
		m.render(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}

	acc, err := m.svc.Get(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, accountsvc.ErrAccountNotFound) {
			m.render(w, r, core.JSONError(core.ErrNotFound))
			return
		}
		m.render(w, r, core.JSONError(err))
		return
	}

	m.render(w, r, core.JSON("trial_status", trialStatusResponse{
		IsTrial:       acc.IsTrial,
		TrialActive:   acc.IsTrialActive(),
		TrialExpired:  acc.IsTrialExpired(),
		DaysRemaining: acc.TrialDaysRemaining(),
		TrialStart:    acc.TrialStart,
		TrialEnd:      acc.TrialEnd,
		Plan:          string(acc.Plan),
		Status:        string(acc.Status),
	}, nil))
}

func (m *Module) render(w http.ResponseWriter, r *http.Request, resp core.Response) {
	if err := resp.Render(w, r); err != nil {
		m.log.ErrorContext(r.Context(), "failed to render response",
			logger.Error(err),
			logger.Component("modules/account"),
		)
	}
}
