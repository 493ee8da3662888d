package core_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialbase/trialbase/core"
	"github.com/trialbase/trialbase/pkg/validator"
)

func render(t *testing.T, resp core.Response) (*httptest.ResponseRecorder, core.JSONResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, resp.Render(rec, req))

	var body core.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestJSON(t *testing.T) {
	t.Parallel()

	rec, body := render(t, core.JSON("ok", map[string]string{"name": "acme"}, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", body.Code)
}

func TestJSONStatus(t *testing.T) {
	t.Parallel()

	rec, body := render(t, core.JSONStatus(http.StatusAccepted, "queued", nil, nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "queued", body.Code)
}

func TestJSONError_HTTPError(t *testing.T) {
	t.Parallel()

	rec, body := render(t, core.JSONError(core.NewHTTPError(http.StatusNotFound, "account_not_found")))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "account_not_found", body.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "account_not_found", body.Error.Code)
}

func TestJSONError_WrappedHTTPError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("handler failed: %w", core.NewHTTPError(http.StatusConflict, "already_exists"))
	rec, body := render(t, core.JSONError(err))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", body.Code)
}

func TestJSONError_ValidationRules(t *testing.T) {
	t.Parallel()

	err := validator.Apply(
		validator.ValidEmail("email", "not-an-email"),
		validator.RequiredString("name", ""),
	)
	require.Error(t, err)

	rec, body := render(t, core.JSONError(err))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_error", body.Code)
	require.NotNil(t, body.Error)
	assert.Contains(t, body.Error.Details, "email")
	assert.Contains(t, body.Error.Details, "name")
}

func TestJSONError_ValidationError(t *testing.T) {
	t.Parallel()

	valErr := core.NewValidationError()
	valErr.Add("subdomain", "already taken")

	rec, body := render(t, core.JSONError(valErr))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, []string{"already taken"}, body.Error.Details["subdomain"])
}

func TestJSONError_UnknownErrorWithholdsMessage(t *testing.T) {
	t.Parallel()

	rec, body := render(t, core.JSONError(errors.New("sensitive database details")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", body.Code)
	require.NotNil(t, body.Error)
	assert.NotContains(t, body.Error.Message, "sensitive")
}
