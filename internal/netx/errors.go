package netx

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/agita-app/agita/internal/common"
	"github.com/tidwall/gjson"
)

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Status  int
	Code    string // database or gateway error code, e.g. "23505"
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d (%s): %s", e.kind, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.kind, e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// MapStatus classifies a failed reply. Database error codes in the body take
// precedence over the HTTP status.
func MapStatus(status int, body []byte) error {
	res := gjson.ParseBytes(body)

	msg := firstString(res, "message", "msg", "error_description", "error")
	if msg == "" {
		msg = http.StatusText(status)
	}
	code := res.Get("code").String()

	// The storage API reports its own status inside the body.
	if s := res.Get("statusCode"); s.Exists() {
		if n, err := strconv.Atoi(s.String()); err == nil && n >= 400 {
			status = n
		}
	}

	return &StatusError{Status: status, Code: code, Message: msg, kind: classify(status, code)}
}

func classify(status int, code string) error {
	switch code {
	case "23505", "23503":
		return common.ErrConflict
	case "22P02", "23502", "23514", "22001", "PGRST204":
		return common.ErrValidation
	case "42501", "PGRST301", "PGRST302":
		return common.ErrUnauthorized
	case "PGRST116":
		return common.ErrNotFound
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return common.ErrUnauthorized
	case status == http.StatusNotFound || status == http.StatusNotAcceptable:
		return common.ErrNotFound
	case status == http.StatusConflict:
		return common.ErrConflict
	case status == http.StatusBadRequest,
		status == http.StatusRequestEntityTooLarge,
		status == http.StatusUnsupportedMediaType,
		status == http.StatusUnprocessableEntity:
		return common.ErrValidation
	default:
		return common.ErrUnavailable
	}
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
