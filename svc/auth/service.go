package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/trialbase/trialbase/pkg/jwt"
	"github.com/trialbase/trialbase/pkg/logger"
	"github.com/trialbase/trialbase/pkg/mailer"
	"github.com/trialbase/trialbase/pkg/sanitizer"
	"github.com/trialbase/trialbase/pkg/totp"
	"github.com/trialbase/trialbase/pkg/validator"
	"github.com/trialbase/trialbase/svc/account"
	"github.com/trialbase/trialbase/svc/activity"
	"github.com/trialbase/trialbase/svc/subscription"
	"github.com/trialbase/trialbase/svc/trial"
)

// Method selects the login mechanism.
type Method string

const (
	MethodPassword Method = "password"
	MethodOAuth2   Method = "oauth2"
	MethodSAML     Method = "saml"
	MethodSSO      Method = "sso"
)

const defaultResetTokenTTL = time.Hour

// Service orchestrates registration, login, MFA and password reset.
type Service struct {
	store         Store
	accounts      *account.Service
	subscriptions *subscription.Service
	trials        *trial.Scheduler
	activities    *activity.Logger
	tokens        *jwt.Service
	mail          mailer.Sender

	log              *slog.Logger
	bcryptCost       int
	sessionTTL       time.Duration
	resetTokenTTL    time.Duration
	passwordStrength validator.PasswordStrengthConfig
	providerName     string // payment provider used for trial subscriptions
	issuer           string // shown in authenticator apps
	now              func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithBcryptCost sets the bcrypt cost for password hashing.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// WithSessionTTL sets the session token lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

// WithResetTokenTTL sets the password-reset token lifetime.
func WithResetTokenTTL(ttl time.Duration) Option {
	return func(s *Service) { s.resetTokenTTL = ttl }
}

// WithPasswordStrength sets custom password strength requirements.
func WithPasswordStrength(cfg validator.PasswordStrengthConfig) Option {
	return func(s *Service) { s.passwordStrength = cfg }
}

// WithPaymentProvider sets the provider name used for trial subscriptions.
func WithPaymentProvider(name string) Option {
	return func(s *Service) { s.providerName = name }
}

// WithIssuer sets the issuer name shown in authenticator apps.
func WithIssuer(issuer string) Option {
	return func(s *Service) { s.issuer = issuer }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the authentication service.
// Panics on nil required dependencies to fail fast during wiring.
func NewService(
	store Store,
	accounts *account.Service,
	subscriptions *subscription.Service,
	trials *trial.Scheduler,
	activities *activity.Logger,
	tokens *jwt.Service,
	mail mailer.Sender,
	opts ...Option,
) *Service {
	if store == nil {
		panic("auth: store is required")
	}
	if accounts == nil {
		panic("auth: account service is required")
	}
	if subscriptions == nil {
		panic("auth: subscription service is required")
	}
	if trials == nil {
		panic("auth: trial scheduler is required")
	}
	if tokens == nil {
		panic("auth: jwt service is required")
	}
	if mail == nil {
		panic("auth: mail sender is required")
	}

	s := &Service{
		store:            store,
		accounts:         accounts,
		subscriptions:    subscriptions,
		trials:           trials,
		activities:       activities,
		tokens:           tokens,
		mail:             mail,
		log:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		bcryptCost:       bcrypt.DefaultCost,
		sessionTTL:       DefaultSessionTTL,
		resetTokenTTL:    defaultResetTokenTTL,
		passwordStrength: validator.DefaultPasswordStrength(),
		providerName:     subscription.LocalProviderName,
		issuer:           "trialbase",
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterParams carries the registration inputs.
type RegisterParams struct {
	Email       string
	Password    string
	AccountName string
	Subdomain   string
	FirstName   string
	LastName    string
}

// RegisterResult is returned on successful registration.
type RegisterResult struct {
	User         *User
	Account      *account.Account
	Subscription *subscription.Subscription
	Token        string
}

// Register creates the tenant account with a running trial, its owner user,
// a trial subscription and the delayed expiration job, then issues a
// session token. Fails with ErrEmailAlreadyExists when the email is taken.
//
// Provider failures during subscription creation do not fail registration;
// the subscription degrades to local tracking.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	email := sanitizer.NormalizeEmail(params.Email)

	if err := validator.Apply(
		validator.ValidEmail("email", email),
		validator.StrongPassword("password", params.Password, s.passwordStrength),
		validator.RequiredString("account_name", params.AccountName),
	); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	acc, err := s.accounts.Create(ctx, account.CreateParams{
		Name:      params.AccountName,
		Subdomain: params.Subdomain,
		Plan:      account.PlanPro,
	})
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &User{
		ID:           uuid.New(),
		AccountID:    acc.ID,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleOwner,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	sub, err := s.subscriptions.Create(ctx, subscription.CreateParams{
		AccountID:     acc.ID,
		Plan:          acc.Plan,
		Provider:      s.providerName,
		CustomerEmail: email,
		TrialEnd:      acc.TrialEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create trial subscription: %w", err)
	}

	if err := s.trials.Schedule(ctx, acc.ID, sub.ID, *acc.TrialEnd); err != nil {
		return nil, err
	}

	s.logActivity(ctx, user, activity.TypeAccountCreated, "account created", nil)
	s.logActivity(ctx, user, activity.TypeUserRegistered, "owner user registered", nil)
	s.logActivity(ctx, user, activity.TypeTrialStarted, "trial started", map[string]string{
		"trial_end": acc.TrialEnd.Format(time.RFC3339),
	})

	token, err := s.tokens.Generate(newSessionClaims(user, s.sessionTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &RegisterResult{
		User:         user,
		Account:      acc,
		Subscription: sub,
		Token:        token,
	}, nil
}

// LoginParams carries the login inputs. Method defaults to password.
type LoginParams struct {
	Email    string
	Password string
	Method   Method
	MFACode  string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	User  *User
	Token string
}

// Login dispatches on the requested method. Only password login is
// implemented; oauth2, saml and sso are extension points that fail with
// ErrMethodNotImplemented.
func (s *Service) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	method := params.Method
	if method == "" {
		method = MethodPassword
	}

	switch method {
	case MethodPassword:
		return s.loginPassword(ctx, params)
	case MethodOAuth2, MethodSAML, MethodSSO:
		return nil, ErrMethodNotImplemented
	default:
		return nil, ErrMethodNotImplemented
	}
}

// loginPassword verifies email and password and, when MFA is enabled, a
// TOTP code. Every credential failure returns ErrInvalidCredentials so the
// response never reveals whether the email is registered.
func (s *Service) loginPassword(ctx context.Context, params LoginParams) (*LoginResult, error) {
	email := sanitizer.NormalizeEmail(params.Email)

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(params.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.MFAEnabled {
		if user.MFASecret == "" {
			// Enabled without a secret is a misconfiguration; log it but do
			// not let the user in.
			s.log.ErrorContext(ctx, "mfa enabled without secret",
				logger.UserID(user.ID.String()),
				logger.Component("auth"),
			)
			return nil, ErrInvalidCredentials
		}
		if params.MFACode == "" {
			return nil, ErrInvalidCredentials
		}
		ok, err := totp.ValidateTOTP(user.MFASecret, params.MFACode)
		if err != nil || !ok {
			return nil, ErrInvalidCredentials
		}
	}

	token, err := s.tokens.Generate(newSessionClaims(user, s.sessionTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.logActivity(ctx, user, activity.TypeUserLoggedIn, "user logged in", nil)

	return &LoginResult{User: user, Token: token}, nil
}

// RequestPasswordReset generates a single-use reset token for the email and
// dispatches it through the mail sender. Only the SHA-256 hash of the token
// is stored. An unknown email succeeds silently so callers cannot probe for
// registered addresses.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = sanitizer.NormalizeEmail(email)

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.log.DebugContext(ctx, "password reset requested for unknown email",
				logger.Component("auth"),
			)
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	expires := s.now().Add(s.resetTokenTTL)
	user.ResetTokenHash = hashResetToken(token)
	user.ResetTokenExpires = &expires
	user.UpdatedAt = s.now()

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.mail.SendEmail(ctx, mailer.SendParams{
		SendTo:   user.Email,
		Subject:  "Reset your password",
		BodyHTML: resetEmailBody(token),
		Tag:      "password-reset",
	}); err != nil {
		// Do not surface the failure; a distinct error here would reveal
		// that the email is registered.
		s.log.ErrorContext(ctx, "failed to send password reset email",
			logger.UserID(user.ID.String()),
			logger.Error(err),
			logger.Component("auth"),
		)
	}

	return nil
}

// ResetPassword consumes a reset token and sets a new password. The token
// lookup enforces expiry, so expired, cleared and unknown tokens all fail
// with ErrInvalidResetToken. On success the reset fields are cleared
// (single-use) and a fresh session token is issued.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (*LoginResult, error) {
	if err := validator.Apply(
		validator.StrongPassword("password", newPassword, s.passwordStrength),
	); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByResetTokenHash(ctx, hashResetToken(token), s.now())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, fmt.Errorf("failed to look up reset token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = hash
	user.ResetTokenHash = ""
	user.ResetTokenExpires = nil
	user.UpdatedAt = s.now()

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}

	s.logActivity(ctx, user, activity.TypePasswordReset, "password reset completed", nil)

	sessionToken, err := s.tokens.Generate(newSessionClaims(user, s.sessionTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &LoginResult{User: user, Token: sessionToken}, nil
}

// MFASetup is returned by EnableMFA for authenticator-app enrollment.
type MFASetup struct {
	Secret     string
	OTPAuthURI string
}

// EnableMFA generates a TOTP secret for the user. MFA stays disabled until
// ConfirmMFA verifies a first code from the authenticator app.
func (s *Service) EnableMFA(ctx context.Context, userID uuid.UUID) (*MFASetup, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}

	secret, err := totp.GenerateSecretKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate mfa secret: %w", err)
	}

	uri, err := totp.GetTOTPURI(totp.Params{
		Secret:      secret,
		AccountName: user.Email,
		Issuer:      s.issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build otpauth uri: %w", err)
	}

	user.MFASecret = secret
	user.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to store mfa secret: %w", err)
	}

	return &MFASetup{Secret: secret, OTPAuthURI: uri}, nil
}

// ConfirmMFA verifies a first TOTP code and turns MFA enforcement on.
func (s *Service) ConfirmMFA(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFAEnabled {
		return ErrMFAAlreadyEnabled
	}
	if user.MFASecret == "" {
		return ErrMFANotConfigured
	}

	ok, err := totp.ValidateTOTP(user.MFASecret, code)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	user.MFAEnabled = true
	user.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to enable mfa: %w", err)
	}

	s.logActivity(ctx, user, activity.TypeMFAEnabled, "mfa enabled", nil)
	return nil
}

// DisableMFA turns MFA off after re-verifying the user's password.
func (s *Service) DisableMFA(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	user.MFAEnabled = false
	user.MFASecret = ""
	user.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to disable mfa: %w", err)
	}

	s.logActivity(ctx, user, activity.TypeMFADisabled, "mfa disabled", nil)
	return nil
}

func (s *Service) logActivity(ctx context.Context, user *User, typ activity.Type, description string, metadata map[string]string) {
	if s.activities == nil {
		return
	}
	s.activities.Log(ctx, activity.Entry{
		UserID:      user.ID,
		AccountID:   user.AccountID,
		Type:        typ,
		Description: description,
		Metadata:    metadata,
	})
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func resetEmailBody(token string) string {
	return fmt.Sprintf(
		"<p>We received a request to reset your password.</p>"+
			"<p>Your reset code is: <strong>%s</strong></p>"+
			"<p>The code expires in one hour. If you did not request a reset, ignore this email.</p>",
		token,
	)
}
