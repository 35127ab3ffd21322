package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/calliri/hearth/pkg/errors"
	"github.com/calliri/hearth/pkg/validator"
)

// envelope is the standard response shape: exactly one of data or error is
// set.
type envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code              string            `json:"code"`
	Message           string            `json:"message"`
	Fields            map[string]string `json:"fields,omitempty"`
	RetryAfterSeconds int               `json:"retry_after_seconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeErrorBody(w, http.StatusBadRequest, &errorBody{
			Code:    "VALIDATION_FAILED",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		})
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body := &errorBody{Code: appErr.Code, Message: appErr.Message}
		if appErr.RetryAfter > 0 {
			secs := int(appErr.RetryAfter.Seconds())
			if secs < 1 {
				secs = 1
			}
			body.RetryAfterSeconds = secs
			w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
		}
		writeErrorBody(w, appErr.Status, body)
		return
	}

	writeErrorBody(w, http.StatusInternalServerError, &errorBody{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	})
}

func writeErrorBody(w http.ResponseWriter, status int, body *errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: body})
}

const maxBodyBytes = 1 << 20

// decodeBody reads and unmarshals a JSON request body, capped at 1 MiB.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.InvalidInput("invalid request body")
	}
	return nil
}
