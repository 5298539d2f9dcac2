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
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkey/pkg/metrics"
)

// creationOptionsHandler handles POST /api/auth/creationOptions.
//
// A valid bearer token attaches the new credential to the caller's
// account and the requested username is ignored. Without a token the
// request registers a new user.
func (s *Server) creationOptionsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CreationOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOptionsError(w, ErrInvalidRequest)
		return
	}

	var callerID *uuid.UUID
	if id, ok := s.bearerIdentity(r); ok {
		callerID = &id
	}

	options, err := s.service.BeginRegistration(r.Context(), req.Username, req.DisplayName, callerID)
	metrics.RecordCeremony(metrics.OpBeginRegistration, err, time.Since(start))
	if err != nil {
		s.logger.Warn("Begin registration failed",
			"username", req.Username,
			"error", err)
		writeOptionsError(w, err)
		return
	}

	writeJSON(w, options, http.StatusOK)
}

// createCredentialHandler handles POST /api/auth/createCredential.
func (s *Server) createCredentialHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	parsed, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	token, user, err := s.service.CompleteRegistration(r.Context(), parsed)
	metrics.RecordCeremony(metrics.OpCompleteRegistration, err, time.Since(start))
	if err != nil {
		s.logger.Warn("Complete registration failed", "error", err)
		handleServiceError(w, err)
		return
	}

	s.logger.Info("Credential registered",
		"user_id", user.ID,
		"username", user.Username)
	metrics.RecordTokenIssued()
	writeBearer(w, token)
}

// assertionOptionsHandler handles GET /api/auth/assertion-options.
//
// The username query parameter is optional. When it is absent or does
// not match a user, the options carry no credential allow list and the
// authenticator picks a discoverable credential, so responses never
// reveal whether a username is registered.
func (s *Server) assertionOptionsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	username := r.URL.Query().Get("username")

	options, err := s.service.BeginAssertion(r.Context(), username)
	metrics.RecordCeremony(metrics.OpBeginAssertion, err, time.Since(start))
	if err != nil {
		s.logger.Warn("Begin assertion failed",
			"username", username,
			"error", err)
		writeOptionsError(w, err)
		return
	}

	writeJSON(w, options, http.StatusOK)
}

// assertionHandler handles POST /api/auth/assertion.
func (s *Server) assertionHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	parsed, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	token, user, err := s.service.CompleteAssertion(r.Context(), parsed)
	metrics.RecordCeremony(metrics.OpCompleteAssertion, err, time.Since(start))
	if err != nil {
		s.logger.Warn("Complete assertion failed", "error", err)
		handleServiceError(w, err)
		return
	}

	s.logger.Info("User authenticated",
		"user_id", user.ID,
		"username", user.Username)
	metrics.RecordTokenIssued()
	writeBearer(w, token)
}
