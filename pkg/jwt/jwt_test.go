package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialbase/trialbase/pkg/jwt"
)

type sessionClaims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
}

func TestNew_MissingSigningKey(t *testing.T) {
	t.Parallel()

	_, err := jwt.New(nil)
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)

	_, err = jwt.NewFromString("")
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)
}

func TestService_GenerateAndParse(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString("test-signing-key")
	require.NoError(t, err)

	claims := sessionClaims{
		StandardClaims: jwt.NewStandardClaims("user-123", time.Hour),
		Email:          "user@example.com",
	}
	token, err := svc.Generate(claims)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	var parsed sessionClaims
	require.NoError(t, svc.Parse(token, &parsed))
	assert.Equal(t, "user-123", parsed.Subject)
	assert.Equal(t, "user@example.com", parsed.Email)
}

func TestService_Parse_ExpiredToken(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString("test-signing-key")
	require.NoError(t, err)

	token, err := svc.Generate(jwt.NewStandardClaims("user-123", -time.Minute))
	require.NoError(t, err)

	var parsed jwt.StandardClaims
	assert.ErrorIs(t, svc.Parse(token, &parsed), jwt.ErrExpiredToken)
}

func TestService_Parse_InvalidToken(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString("test-signing-key")
	require.NoError(t, err)

	var parsed jwt.StandardClaims
	assert.ErrorIs(t, svc.Parse("not-a-token", &parsed), jwt.ErrInvalidToken)
	assert.ErrorIs(t, svc.Parse("", &parsed), jwt.ErrInvalidToken)
}

func TestService_Parse_WrongKey(t *testing.T) {
	t.Parallel()

	signer, err := jwt.NewFromString("key-one")
	require.NoError(t, err)
	verifier, err := jwt.NewFromString("key-two")
	require.NoError(t, err)

	token, err := signer.Generate(jwt.NewStandardClaims("user-123", time.Hour))
	require.NoError(t, err)

	var parsed jwt.StandardClaims
	assert.ErrorIs(t, verifier.Parse(token, &parsed), jwt.ErrInvalidSignature)
}
