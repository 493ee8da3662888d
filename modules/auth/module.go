package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trialbase/trialbase/core"
	"github.com/trialbase/trialbase/pkg/jwt"
	"github.com/trialbase/trialbase/pkg/logger"
	"github.com/trialbase/trialbase/pkg/qrcode"
	authsvc "github.com/trialbase/trialbase/svc/auth"
)

// Module wires the auth service to its HTTP routes.
type Module struct {
	svc    *authsvc.Service
	tokens *jwt.Service
	log    *slog.Logger
}

// NewModule creates the auth HTTP module.
func NewModule(svc *authsvc.Service, tokens *jwt.Service, log *slog.Logger) *Module {
	if svc == nil {
		panic("modules/auth: service is required")
	}
	if tokens == nil {
		panic("modules/auth: jwt service is required")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Module{svc: svc, tokens: tokens, log: log}
}

// Handle returns the module router. Register, login and the password-reset
// endpoints are public; MFA management requires a bearer token.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/register", m.register)
	r.Post("/login", m.login)
	r.Post("/forgot-password", m.forgotPassword)
	r.Post("/reset-password", m.resetPassword)

	r.Group(func(protected chi.Router) {
		protected.Use(Middleware(m.tokens))
		protected.Post("/mfa/enable", m.enableMFA)
		protected.Post("/mfa/confirm", m.confirmMFA)
		protected.Post("/mfa/disable", m.disableMFA)
	})

	return r
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountName string `json:"account_name"`
	Subdomain   string `json:"subdomain,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
}

type sessionResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

func (m *Module) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	result, err := m.svc.Register(r.Context(), authsvc.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		AccountName: req.AccountName,
		Subdomain:   req.Subdomain,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
	})
	if err != nil {
		m.render(w, r, core.JSONError(mapAuthError(err)))
		return
	}

	m.render(w, r, core.JSONStatus(http.StatusCreated, "registered", sessionResponse{
		Token:     result.Token,
		UserID:    result.User.ID.String(),
		AccountID: result.Account.ID.String(),
		Email:     result.User.Email,
		Role:      string(result.User.Role),
	}, nil))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Method   string `json:"method,omitempty"`
	MFACode  string `json:"mfa_code,omitempty"`
}

func (m *Module) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	result, err := m.svc.Login(r.Context(), authsvc.LoginParams{
		Email:    req.Email,
		Password: req.Password,
		Method:   authsvc.Method(req.Method),
		MFACode:  req.MFACode,
	})
	if err != nil {
		m.render(w, r, core.JSONError(mapAuthError(err)))
		return
	}

	m.render(w, r, core.JSON("logged_in", sessionResponse{
		Token:     result.Token,
		UserID:    result.User.ID.String(),
		AccountID: result.User.AccountID.String(),
		Email:     result.User.Email,
		Role:      string(result.User.Role),
	}, nil))
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (m *Module) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	if err := m.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		m.render(w, r, core.JSONError(mapAuthError(err)))
		return
	}

	// Identical response whether or not the email is registered.
	m.render(w, r, core.JSONStatus(http.StatusAccepted, "reset_requested", nil, nil))
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (m *Module) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	result, err := m.svc.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		m.render(w, r, core.JSONError(mapAuthError(err)))
		return
	}

	m.render(w, r, core.JSON("password_reset", sessionResponse{
		Token:     result.Token,
		UserID:    result.User.ID.String(),
		AccountID: result.User.AccountID.String(),
		Email:     result.User.Email,
		Role:      string(result.User.Role),
	}, nil))
}

type mfaSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURI string `json:"otpauth_uri"`
	QRCode     string `json:"qr_code"` // data-URI PNG for direct embedding
}

func (m *Module) enableMFA(w http.ResponseWriter, r *http.Request) {
	userID, ok := m.sessionUserID(r)
	if !ok {
		m.render(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}

	setup, err := m.svc.EnableMFA(r.Context(), userID)
	if err != nil {
		m.render(w, r, core.JSONError(mapAuthError(err)))
		return
	}

	qr, err := qrcode.GenerateBase64Image(setup.OTPAuthURI, 0)
	if err != nil {
		m.log.ErrorContext(r.Context(), "failed to render mfa qr code",
			logger.Error(err),
			logger.Component("modules/auth"),
		)
		m.render(w, r, core.JSONError(core.ErrInternalServerError))
		return
	}

	m.render(w, r, core.JSON("mfa_setup", mfaSetupResponse{
		Secret:     setup.Secret,
		OTPAuthURI: setup.OTPAuthURI,
		QRCode:     qr,
	}, nil))
}

type mfaConfirmRequest struct {
	Code string `json:"code"`
}

func (m *Module) confirmMFA(w http.ResponseWriter, r *http.Request) {
	userID, ok := m.sessionUserID(r)
	if !ok {
		m.render(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}

	var req mfaConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	if err := m.svc.ConfirmMFA(r.Context(), userID, req.Code); err != nil {
		m.render(w, r, core.JSONError(mapAuthError(err)))
		return
	}

	m.render(w, r, core.JSON("mfa_enabled", nil, nil))
}

type mfaDisableRequest struct {
	Password string `json:"password"`
}

func (m *Module) disableMFA(w http.ResponseWriter, r *http.Request) {
	userID, ok := m.sessionUserID(r)
	if !ok {
		m.render(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}

	var req mfaDisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}

	if err := m.svc.DisableMFA(r.Context(), userID, req.Password); err != nil {
		m.render(w, r, core.JSONError(mapAuthError(err)))
		return
	}

	m.render(w, r, core.JSON("mfa_disabled", nil, nil))
}

func (m *Module) sessionUserID(r *http.Request) (uuid.UUID, bool) {
	claims, ok := SessionFromContext(r)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (m *Module) render(w http.ResponseWriter, r *http.Request, resp core.Response) {
	if err := resp.Render(w, r); err != nil {
		m.log.ErrorContext(r.Context(), "failed to render response",
			logger.Error(err),
			logger.Component("modules/auth"),
		)
	}
}

// mapAuthError translates service sentinels into HTTP errors. Validation
// errors pass through untouched; core.JSONError renders them as 422.
func mapAuthError(err error) error {
	switch {
	case errors.Is(err, authsvc.ErrEmailAlreadyExists):
		return core.NewHTTPError(http.StatusConflict, "email_already_registered")
	case errors.Is(err, authsvc.ErrInvalidCredentials),
		errors.Is(err, authsvc.ErrInvalidResetToken):
		return core.ErrUnauthorized
	case errors.Is(err, authsvc.ErrMethodNotImplemented):
		return core.ErrNotImplemented
	case errors.Is(err, authsvc.ErrMFAAlreadyEnabled):
		return core.NewHTTPError(http.StatusConflict, "mfa_already_enabled")
	case errors.Is(err, authsvc.ErrMFANotConfigured):
		return core.NewHTTPError(http.StatusConflict, "mfa_not_configured")
	case errors.Is(err, authsvc.ErrUserNotFound):
		return core.ErrNotFound
	default:
		return err
	}
}
