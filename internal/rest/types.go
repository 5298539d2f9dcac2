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
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// CreationOptionsRequest is the body for POST /api/auth/creationOptions.
type CreationOptionsRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// OptionsErrorResponse is returned with HTTP 200 when ceremony setup
// fails. Browser-side WebAuthn wrappers inspect the status field before
// invoking the authenticator.
type OptionsErrorResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// CredentialInfo is the API projection of a stored credential. The
// owning user is implied by the endpoint and omitted.
type CredentialInfo struct {
	ID               string    `json:"id"`
	Type             string    `json:"credType"`
	SignatureCounter uint32    `json:"signatureCounter"`
	AAGUID           string    `json:"aaGuid"`
	RegisteredAt     time.Time `json:"registeredAt"`
}

// MeResponse is the body for GET /api/me.
type MeResponse struct {
	User        *passkey.User    `json:"user"`
	Credentials []CredentialInfo `json:"credentials"`
}
