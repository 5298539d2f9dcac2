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
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// meHandler handles GET /api/me.
func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r.Context())
	if !ok {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	user, err := s.service.GetUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	creds, err := s.service.GetCredentials(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	infos := make([]CredentialInfo, 0, len(creds))
	for _, c := range creds {
		infos = append(infos, CredentialInfo{
			ID:               c.ID,
			Type:             c.Type,
			SignatureCounter: c.SignatureCounter,
			AAGUID:           c.AAGUID.String(),
			RegisteredAt:     c.RegisteredAt,
		})
	}

	writeJSON(w, MeResponse{User: user, Credentials: infos}, http.StatusOK)
}

// deleteMeHandler handles DELETE /api/me. Deleting the user cascades
// to all of their credentials.
func (s *Server) deleteMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r.Context())
	if !ok {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	if err := s.service.DeleteUser(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	s.logger.Info("User deleted", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

// deleteCredentialHandler handles DELETE /api/me/credentials/{credentialID}.
// Only credentials owned by the authenticated user can be deleted.
func (s *Server) deleteCredentialHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r.Context())
	if !ok {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}

	// Credential ids are base64 and may contain URL-escaped characters
	credentialID, err := url.PathUnescape(chi.URLParam(r, "credentialID"))
	if err != nil || credentialID == "" {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	if err := s.service.DeleteCredential(r.Context(), credentialID, userID); err != nil {
		if passkey.IsCredentialNotFound(err) {
			writeError(w, err, http.StatusNotFound)
			return
		}
		handleServiceError(w, err)
		return
	}

	s.logger.Info("Credential deleted",
		"user_id", userID,
		"credential_id", credentialID)
	w.WriteHeader(http.StatusNoContent)
}
