// Copyright (c) 2026 Jeremy Hahn
// Copyright (c) 2026 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Common errors
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternalError  = errors.New("internal server error")
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, v interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", slog.Any("error", err))
	}
}

// writeError writes an error response to the client.
func writeError(w http.ResponseWriter, err error, statusCode int) {
	writeJSON(w, ErrorResponse{
		Error: err.Error(),
		Code:  statusCode,
	}, statusCode)
}

// writeBearer writes the "Bearer <token>" success body returned by
// ceremony completion endpoints.
func writeBearer(w http.ResponseWriter, token string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("Bearer " + token)); err != nil {
		slog.Error("Failed to write token response", slog.Any("error", err))
	}
}

// writeOptionsError reports a ceremony setup failure. Option endpoints
// always answer 200 with a structured payload instead of an HTTP error.
func writeOptionsError(w http.ResponseWriter, err error) {
	writeJSON(w, OptionsErrorResponse{
		Status:       "error",
		ErrorMessage: err.Error(),
	}, http.StatusOK)
}

// handleServiceError maps service layer errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case passkey.IsChallengeNotFound(err):
		writeError(w, err, http.StatusBadRequest)
	case passkey.IsRegistrationFailed(err), passkey.IsAssertionFailed(err):
		writeError(w, err, http.StatusBadRequest)
	case passkey.IsCredentialNotFound(err):
		writeError(w, err, http.StatusBadRequest)
	case passkey.IsUsernameConflict(err), passkey.IsCredentialConflict(err):
		writeError(w, err, http.StatusConflict)
	case passkey.IsUserNotFound(err):
		writeError(w, err, http.StatusNotFound)
	default:
		slog.Error("Unhandled service error", slog.Any("error", err))
		writeError(w, ErrInternalError, http.StatusInternalServerError)
	}
}
