package core

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"

	"github.com/trialbase/trialbase/pkg/validator"
)

// Response renders itself onto an http.ResponseWriter.
// Handlers return a Response instead of writing to the writer directly.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// JSONResponse is the standard JSON response structure
type JSONResponse struct {
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

// jsonResponse implements Response for JSON rendering
type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON creates a JSON response with status 200.
func JSON(code string, data any, meta map[string]any) Response {
	return JSONStatus(http.StatusOK, code, data, meta)
}

// JSONStatus creates a JSON response with an explicit status code.
func JSONStatus(status int, code string, data any, meta map[string]any) Response {
	return jsonResponse{
		status: status,
		body: JSONResponse{
			Code: code,
			Data: data,
			Meta: meta,
		},
	}
}

// JSONError creates a JSON error response from an error.
// Validation errors render as 422 with per-field details; HTTPError values
// (directly or wrapped) keep their status and key; everything else is a 500
// with the message withheld.
func JSONError(err error) Response {
	status := http.StatusInternalServerError
	code := "internal_error"
	errorDetail := &ErrorDetail{
		Code:    code,
		Message: http.StatusText(status),
	}

	var valErr ValidationError
	var ruleErrs validator.ValidationErrors
	var httpErr HTTPError
	if errors.As(err, &ruleErrs) {
		status = http.StatusUnprocessableEntity
		code = "validation_error"
		errorDetail.Code = code
		errorDetail.Message = http.StatusText(status)

		errorDetail.Details = make(map[string][]string)
		for _, field := range ruleErrs.Fields() {
			errorDetail.Details[field] = ruleErrs.Get(field)
		}
	} else if errors.As(err, &valErr) {
		status = http.StatusUnprocessableEntity
		code = "validation_error"
		errorDetail.Code = code
		errorDetail.Message = http.StatusText(status)

		if len(valErr) > 0 {
			errorDetail.Details = make(map[string][]string)
			maps.Copy(errorDetail.Details, valErr)
		}
	} else if errors.As(err, &httpErr) {
		status = httpErr.Code
		code = httpErr.Key
		errorDetail.Code = code
		errorDetail.Message = http.StatusText(httpErr.Code)
	}

	return jsonResponse{
		status: status,
		body: JSONResponse{
			Code:  code,
			Error: errorDetail,
		},
	}
}
