package auth_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trialbase/trialbase/pkg/jwt"
	"github.com/trialbase/trialbase/pkg/mailer"
	"github.com/trialbase/trialbase/pkg/queue"
	"github.com/trialbase/trialbase/pkg/totp"
	"github.com/trialbase/trialbase/svc/account"
	"github.com/trialbase/trialbase/svc/auth"
	"github.com/trialbase/trialbase/svc/subscription"
	"github.com/trialbase/trialbase/svc/trial"
)

const testPassword = "Sup3rSecret!"

// captureSender records outgoing emails for inspection.
type captureSender struct {
	mu   sync.Mutex
	sent []mailer.SendParams
	err  error
}

func (c *captureSender) SendEmail(_ context.Context, params mailer.SendParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, params)
	return nil
}

func (c *captureSender) last() (mailer.SendParams, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return mailer.SendParams{}, false
	}
	return c.sent[len(c.sent)-1], true
}

type authFixture struct {
	svc           *auth.Service
	mail          *captureSender
	tokens        *jwt.Service
	clock         *testClock
	storage       *queue.MemoryStorage
	trials        *trial.Scheduler
	accounts      *account.Service
	subscriptions *subscription.Service
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	return newAuthFixtureAt(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

// newAuthFixtureAt builds the fixture with its clock anchored at start.
func newAuthFixtureAt(t *testing.T, start time.Time) *authFixture {
	t.Helper()

	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })
	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)
	trials, err := trial.NewScheduler(enqueuer)
	require.NoError(t, err)

	clock := &testClock{now: start}

	accounts := account.NewService(account.NewMemoryStore(), account.WithClock(clock.Now))

	registry := subscription.NewRegistry()
	registry.Register(subscription.NewLocalProvider())
	subscriptions := subscription.NewService(subscription.NewMemoryStore(), registry,
		subscription.WithClock(clock.Now))

	tokens, err := jwt.NewFromString("test-signing-key")
	require.NoError(t, err)

	mail := &captureSender{}

	svc := auth.NewService(auth.NewMemoryStore(), accounts, subscriptions, trials, nil, tokens, mail,
		auth.WithBcryptCost(bcrypt.MinCost),
		auth.WithClock(clock.Now),
	)

	return &authFixture{
		svc:           svc,
		mail:          mail,
		tokens:        tokens,
		clock:         clock,
		storage:       storage,
		trials:        trials,
		accounts:      accounts,
		subscriptions: subscriptions,
	}
}

func register(t *testing.T, fx *authFixture, email string) *auth.RegisterResult {
	t.Helper()

	result, err := fx.svc.Register(context.Background(), auth.RegisterParams{
		Email:       email,
		Password:    testPassword,
		AccountName: "Acme Inc",
	})
	require.NoError(t, err)
	return result
}

func TestService_Register(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	result := register(t, fx, "owner@example.com")

	assert.Equal(t, auth.RoleOwner, result.User.Role)
	assert.Equal(t, "owner@example.com", result.User.Email)
	assert.NotEmpty(t, result.Token)

	require.NotNil(t, result.Account)
	assert.True(t, result.Account.IsTrial)
	assert.Equal(t, account.PlanPro, result.Account.Plan)

	require.NotNil(t, result.Subscription)
	assert.Equal(t, subscription.StatusTrialing, result.Subscription.Status)
	assert.Equal(t, result.Account.ID, result.Subscription.AccountID)

	var claims auth.SessionClaims
	require.NoError(t, fx.tokens.Parse(result.Token, &claims))
	assert.Equal(t, result.User.ID.String(), claims.UserID)
	assert.Equal(t, result.Account.ID.String(), claims.AccountID)
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	register(t, fx, "owner@example.com")

	// Email matching is case-insensitive through normalization.
	_, err := fx.svc.Register(context.Background(), auth.RegisterParams{
		Email:       "OWNER@Example.Com",
		Password:    testPassword,
		AccountName: "Other Inc",
	})
	assert.ErrorIs(t, err, auth.ErrEmailAlreadyExists)
}

func TestService_Register_WeakPassword(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)

	_, err := fx.svc.Register(context.Background(), auth.RegisterParams{
		Email:       "owner@example.com",
		Password:    "short",
		AccountName: "Acme Inc",
	})
	assert.Error(t, err)
}

// TestService_TrialExpiresAfterRegistration drives the whole trial
// lifecycle: registration schedules the expiration job, the worker claims it
// once the trial window has passed, and the handler downgrades the
// subscription to the free plan and ends the account trial.
func TestService_TrialExpiresAfterRegistration(t *testing.T) {
	t.Parallel()

	// The queue stores real timestamps, so anchor the fixture clock far
	// enough in the past that the scheduled job is due immediately.
	fx := newAuthFixtureAt(t, time.Now().UTC().Add(-30*24*time.Hour))

	result := register(t, fx, "owner@example.com")
	require.True(t, result.Account.IsTrial)
	require.Equal(t, subscription.StatusTrialing, result.Subscription.Status)

	// Move the service clock past the trial end before the worker starts,
	// so the handler sees the trial as over instead of rescheduling.
	fx.clock.Advance(15 * 24 * time.Hour)

	handler, err := trial.NewExpirationHandler(fx.trials, fx.accounts, fx.subscriptions, nil,
		trial.WithHandlerClock(fx.clock.Now))
	require.NoError(t, err)

	worker, err := queue.NewWorker(fx.storage,
		queue.WithQueues(trial.QueueName),
		queue.WithPullInterval(10*time.Millisecond),
	)
	require.NoError(t, err)
	require.NoError(t, worker.RegisterHandler(handler.QueueHandler()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, worker.Start(ctx))
	t.Cleanup(func() { _ = worker.Stop() })

	accountID := result.Account.ID
	require.Eventually(t, func() bool {
		sub, err := fx.subscriptions.GetByAccount(ctx, accountID)
		if err != nil || sub.Plan != account.PlanFree || sub.Status != subscription.StatusActive {
			return false
		}
		acc, err := fx.accounts.Get(ctx, accountID)
		return err == nil && !acc.IsTrial
	}, 5*time.Second, 10*time.Millisecond, "trial was not expired in time")

	sub, err := fx.subscriptions.GetByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, account.PlanFree, sub.Plan)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Equal(t, subscription.DefaultFeatures(account.PlanFree), sub.Features)

	acc, err := fx.accounts.Get(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, acc.IsTrial)
}

func TestService_Login(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	register(t, fx, "owner@example.com")
	ctx := context.Background()

	result, err := fx.svc.Login(ctx, auth.LoginParams{
		Email:    "owner@example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	// Wrong password and unknown email fail identically.
	_, err = fx.svc.Login(ctx, auth.LoginParams{Email: "owner@example.com", Password: "Wr0ngPass!"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = fx.svc.Login(ctx, auth.LoginParams{Email: "ghost@example.com", Password: testPassword})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestService_Login_UnsupportedMethods(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	register(t, fx, "owner@example.com")
	ctx := context.Background()

	for _, method := range []auth.Method{auth.MethodOAuth2, auth.MethodSAML, auth.MethodSSO} {
		_, err := fx.svc.Login(ctx, auth.LoginParams{
			Email:    "owner@example.com",
			Password: testPassword,
			Method:   method,
		})
		assert.ErrorIs(t, err, auth.ErrMethodNotImplemented)
	}
}

func TestService_MFALifecycle(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	result := register(t, fx, "owner@example.com")
	ctx := context.Background()
	userID := result.User.ID

	setup, err := fx.svc.EnableMFA(ctx, userID)
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.OTPAuthURI, "otpauth://totp/")

	// Not enforced until confirmed: login without a code still works.
	_, err = fx.svc.Login(ctx, auth.LoginParams{Email: "owner@example.com", Password: testPassword})
	require.NoError(t, err)

	// Confirming with a wrong code fails and leaves MFA off.
	assert.ErrorIs(t, fx.svc.ConfirmMFA(ctx, userID, "000000"), auth.ErrInvalidCredentials)

	code, err := totp.GenerateTOTP(setup.Secret)
	require.NoError(t, err)
	require.NoError(t, fx.svc.ConfirmMFA(ctx, userID, code))

	// Enforced now: login requires a valid code.
	_, err = fx.svc.Login(ctx, auth.LoginParams{Email: "owner@example.com", Password: testPassword})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	code, err = totp.GenerateTOTP(setup.Secret)
	require.NoError(t, err)
	_, err = fx.svc.Login(ctx, auth.LoginParams{
		Email:    "owner@example.com",
		Password: testPassword,
		MFACode:  code,
	})
	require.NoError(t, err)

	// Enabling twice is a conflict.
	_, err = fx.svc.EnableMFA(ctx, userID)
	assert.ErrorIs(t, err, auth.ErrMFAAlreadyEnabled)

	// Disabling requires the password and turns enforcement off again.
	assert.ErrorIs(t, fx.svc.DisableMFA(ctx, userID, "Wr0ngPass!"), auth.ErrInvalidCredentials)
	require.NoError(t, fx.svc.DisableMFA(ctx, userID, testPassword))

	_, err = fx.svc.Login(ctx, auth.LoginParams{Email: "owner@example.com", Password: testPassword})
	assert.NoError(t, err)
}

func TestService_ConfirmMFA_NotConfigured(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	result := register(t, fx, "owner@example.com")

	err := fx.svc.ConfirmMFA(context.Background(), result.User.ID, "123456")
	assert.ErrorIs(t, err, auth.ErrMFANotConfigured)
}

var resetTokenRegex = regexp.MustCompile(`<strong>([0-9a-f]{64})</strong>`)

func resetTokenFromEmail(t *testing.T, fx *authFixture) string {
	t.Helper()

	sent, ok := fx.mail.last()
	require.True(t, ok, "expected a reset email to be sent")
	match := resetTokenRegex.FindStringSubmatch(sent.BodyHTML)
	require.Len(t, match, 2, "reset email must contain the token")
	return match[1]
}

func TestService_PasswordReset(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	register(t, fx, "owner@example.com")
	ctx := context.Background()

	require.NoError(t, fx.svc.RequestPasswordReset(ctx, "owner@example.com"))
	token := resetTokenFromEmail(t, fx)

	const newPassword = "N3wSecret!"
	result, err := fx.svc.ResetPassword(ctx, token, newPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	// Old password no longer works, new one does.
	_, err = fx.svc.Login(ctx, auth.LoginParams{Email: "owner@example.com", Password: testPassword})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = fx.svc.Login(ctx, auth.LoginParams{Email: "owner@example.com", Password: newPassword})
	assert.NoError(t, err)

	// The token is single-use.
	_, err = fx.svc.ResetPassword(ctx, token, "An0therPass!")
	assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
}

func TestService_PasswordReset_ExpiredToken(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	register(t, fx, "owner@example.com")
	ctx := context.Background()

	require.NoError(t, fx.svc.RequestPasswordReset(ctx, "owner@example.com"))
	token := resetTokenFromEmail(t, fx)

	fx.clock.Advance(time.Hour + time.Minute)

	_, err := fx.svc.ResetPassword(ctx, token, "N3wSecret!")
	assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
}

func TestService_RequestPasswordReset_UnknownEmailSilent(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)

	assert.NoError(t, fx.svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
	_, ok := fx.mail.last()
	assert.False(t, ok, "no email goes out for an unknown address")
}

func TestService_RequestPasswordReset_SendFailureSilent(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)
	register(t, fx, "owner@example.com")
	fx.mail.err = assert.AnError

	// A mail delivery failure must look exactly like success to the caller.
	assert.NoError(t, fx.svc.RequestPasswordReset(context.Background(), "owner@example.com"))
}

func TestService_ResetPassword_UnknownToken(t *testing.T) {
	t.Parallel()

	fx := newAuthFixture(t)

	_, err := fx.svc.ResetPassword(context.Background(), "deadbeef", "N3wSecret!")
	assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
}
