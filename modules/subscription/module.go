package subscription

import (
	"context"
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
	"github.com/trialbase/trialbase/svc/account"
	authsvc "github.com/trialbase/trialbase/svc/auth"
	subsvc "github.com/trialbase/trialbase/svc/subscription"
	"github.com/trialbase/trialbase/svc/trial"
)

// Module wires the subscription service to its HTTP routes.
type Module struct {
	svc    *subsvc.Service
	trials *trial.Scheduler
	tokens *jwt.Service
	log    *slog.Logger
}

// NewModule creates the subscription HTTP module.
func NewModule(svc *subsvc.Service, trials *trial.Scheduler, tokens *jwt.Service, log *slog.Logger) *Module {
	if svc == nil {
		panic("modules/subscription: service is required")
	}
	if trials == nil {
		panic("modules/subscription: trial scheduler is required")
	}
	if tokens == nil {
		panic("modules/subscription: jwt service is required")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Module{svc: svc, trials: trials, tokens: tokens, log: log}
}

// Handle returns the module router. All routes require a bearer token.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(authmod.Middleware(m.tokens))

	r.Post("/", m.create)
	r.Get("/current", m.current)
	r.Patch("/{id}/plan", m.updatePlan)
	r.Post("/{id}/cancel", m.cancel)
	r.Post("/{id}/resume", m.resume)

	return r
}

type createRequest struct {
	Plan         string `json:"plan"`
	Provider     string `json:"provider,omitempty"`
	SkipProvider bool   `json:"skip_provider,omitempty"`
}

func (m *Module) create(w http.ResponseWriter, r *http.Request) {
	claims, accountID, ok := m.session(r)
	if !ok {
		m.render(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	provider := req.Provider
	if provider == "" {
		provider = subsvc.LocalProviderName
	}

	sub, err := m.svc.Create(r.Context(), subsvc.CreateParams{
		AccountID:     accountID,
		Plan:          account.PlanType(req.Plan),
		Provider:      provider,
		CustomerEmail: claims.Email,
		SkipProvider:  req.SkipProvider,
	})
	if err != nil {
		m.render(w, r, core.JSONError(mapSubscriptionError(err)))
		return
	}

	m.render(w, r, core.JSONStatus(http.StatusCreated, "subscription_created", sub, nil))
}

func (m *Module) current(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := m.session(r)
	if !ok {
		m.render(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}

	sub, err := m.svc.GetByAccount(r.Context(), accountID)
	if err != nil {
		m.render(w, r, core.JSONError(mapSubscriptionError(err)))
		return
	}

	m.render(w, r, core.JSON("subscription", sub, nil))
}

type updatePlanRequest struct {
	Plan string `json:"plan"`
}

func (m *Module) updatePlan(w http.ResponseWriter, r *http.Request) {
	sub, ok := m.ownedSubscription(w, r)
	if !ok {
		return
	}

	var req updatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	updated, err := m.svc.UpdatePlan(r.Context(), sub.ID, account.PlanType(req.Plan))
	if err != nil {
		m.render(w, r, core.JSONError(mapSubscriptionError(err)))
		return
	}

	// Once the subscription left the trialing state the pending expiration
	// job has nothing to do; drop it.
	if updated.Status != subsvc.StatusTrialing {
		m.cancelExpirationJob(r.Context(), updated.AccountID)
	}

	m.render(w, r, core.JSON("plan_updated", updated, nil))
}

type cancelRequest struct {
	AtPeriodEnd bool `json:"at_period_end,omitempty"`
}

func (m *Module) cancel(w http.ResponseWriter, r *http.Request) {
	sub, ok := m.ownedSubscription(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			m.render(w, r, core.JSONError(core.ErrBadRequest))
			return
		}
	}

	cancelled, err := m.svc.Cancel(r.Context(), sub.ID, req.AtPeriodEnd)
	if err != nil {
		m.render(w, r, core.JSONError(mapSubscriptionError(err)))
		return
	}

	// An immediate cancel ends the trial on the spot. A period-end cancel
	// keeps the job: the trial still expires on schedule.
	if !req.AtPeriodEnd {
		m.cancelExpirationJob(r.Context(), cancelled.AccountID)
	}

	m.render(w, r, core.JSON("subscription_cancelled", cancelled, nil))
}

func (m *Module) resume(w http.ResponseWriter, r *http.Request) {
	sub, ok := m.ownedSubscription(w, r)
	if !ok {
		return
	}

	resumed, err := m.svc.Resume(r.Context(), sub.ID)
	if err != nil {
		m.render(w, r, core.JSONError(mapSubscriptionError(err)))
		return
	}

	m.render(w, r, core.JSON("subscription_resumed", resumed, nil))
}

// ownedSubscription loads the subscription from the path and verifies it
// belongs to the caller's account. Foreign subscriptions render as 404 so
// IDs cannot be probed across tenants.
func (m *Module) ownedSubscription(w http.ResponseWriter, r *http.Request) (*subsvc.Subscription, bool) {
	_, accountID, ok := m.session(r)
	if !ok {
		m.render(w, r, core.JSONError(core.ErrUnauthorized))
		return nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		m.render(w, r, core.JSONError(core.ErrBadRequest))
		return nil, false
	}

	sub, err := m.svc.Get(r.Context(), id)
	if err != nil {
		m.render(w, r, core.JSONError(mapSubscriptionError(err)))
		return nil, false
	}
	if sub.AccountID != accountID {
		m.render(w, r, core.JSONError(core.ErrNotFound))
		return nil, false
	}
	return sub, true
}

// cancelExpirationJob drops any pending trial-expiration task for the
// account. The expiration handler re-checks live state before acting, so
// failures here are logged and never surface to the caller.
func (m *Module) cancelExpirationJob(ctx context.Context, accountID uuid.UUID) {
	if err := m.trials.Cancel(ctx, accountID); err != nil {
		m.log.WarnContext(ctx, "failed to cancel trial expiration job",
			logger.Error(err),
			logger.AccountID(accountID.String()),
			logger.Component("modules/subscription"),
		)
	}
}

func (m *Module) session(r *http.Request) (claims authsvc.SessionClaims, accountID uuid.UUID, ok bool) {
	c, ok := authmod.SessionFromContext(r)
	if !ok {
		return c, uuid.Nil, false
	}
	id, err := uuid.Parse(c.AccountID)
	if err != nil {
		return c, uuid.Nil, false
	}
	return c, id, true
}

func (m *Module) render(w http.ResponseWriter, r *http.Request, resp core.Response) {
	if err := resp.Render(w, r); err != nil {
		m.log.ErrorContext(r.Context(), "failed to render response",
			logger.Error(err),
			logger.Component("modules/subscription"),
		)
	}
}

func mapSubscriptionError(err error) error {
	switch {
	case errors.Is(err, subsvc.ErrSubscriptionNotFound):
		return core.ErrNotFound
	case errors.Is(err, subsvc.ErrSubscriptionAlreadyExists):
		return core.NewHTTPError(http.StatusConflict, "subscription_already_exists")
	case errors.Is(err, subsvc.ErrNotPendingCancellation):
		return core.NewHTTPError(http.StatusConflict, "not_pending_cancellation")
	case errors.Is(err, subsvc.ErrInvalidPlan):
		return core.NewHTTPError(http.StatusBadRequest, "invalid_plan")
	default:
		return err
	}
}
