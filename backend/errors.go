package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when the backend does not recognise the session.
var ErrUnauthenticated = errors.New("backend: not authenticated")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend: %d: %s", e.Status, e.Detail)
}

// Detail returns the backend-provided detail carried by err, or fallback when
// err is not an APIError or the backend sent none.
func Detail(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

// parseDetail extracts the "detail" member of an error body. Validation errors
// carry a structured detail, which is kept as raw JSON text.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if string(payload.Detail) == "null" {
		return ""
	}
	return string(payload.Detail)
}
