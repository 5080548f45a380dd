package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/birimbahub/marketplace/internal/core/domain"
)

// APIError is a non-2xx backend response. It understands both the auth
// service shape (error/error_description/msg) and the row API shape
// (code/message/details/hint).
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string

	kind error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("backend %d (%s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("backend %d: %s", e.Status, msg)
}

// Unwrap exposes the domain error kind the response maps to, if any.
func (e *APIError) Unwrap() error { return e.kind }

// NoRows reports whether a single-object row request matched nothing.
func (e *APIError) NoRows() bool {
	return e.Status == http.StatusNotAcceptable || e.Code == "PGRST116"
}

type rawAPIError struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Code             json.RawMessage `json:"code"`
	Message          string          `json:"message"`
	Details          string          `json:"details"`
	Hint             string          `json:"hint"`
}

func decodeAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}

	var raw rawAPIError
	if err := json.Unmarshal(body, &raw); err != nil {
		e.Message = strings.TrimSpace(string(body))
		return e
	}

	e.Message = firstNonEmpty(raw.ErrorDescription, raw.Msg, raw.Message, raw.Error)
	e.Details = raw.Details
	e.Hint = raw.Hint
	e.Code = firstNonEmpty(raw.ErrorCode, codeString(raw.Code), raw.Error)
	return e
}

// codeString returns the string row code. The auth service sends a numeric
// code that only repeats the HTTP status, so it is ignored.
func codeString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// asCredentialError tags rejected sign-in and sign-up responses with
// domain.ErrInvalidCredentials.
func asCredentialError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity:
		apiErr.kind = domain.ErrInvalidCredentials
	}
	return apiErr
}
