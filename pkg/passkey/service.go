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

package passkey

import (
	"context"
	"fmt"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Service provides passkey registration and assertion operations.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	store      Store
	challenges ChallengeStore
	tokens     TokenIssuer
}

// ServiceParams contains dependencies for creating a passkey service.
type ServiceParams struct {
	// Config is the relying-party configuration (required).
	Config *Config

	// Store is the user and credential persistence layer (required).
	Store Store

	// Challenges holds pending ceremony state (required).
	Challenges ChallengeStore

	// Tokens mints bearer tokens after successful ceremonies (required).
	Tokens TokenIssuer
}

// NewService creates a new passkey service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if params.Challenges == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		store:      params.Store,
		challenges: params.Challenges,
		tokens:     params.Tokens,
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// GetUser retrieves a user by id.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// UserExists reports whether the user id still resolves to a user. Token
// consumers call this on every request so that tokens minted for deleted
// users stop working.
func (s *Service) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	_, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if IsUserNotFound(err) {
			return false, nil
		}
		return false, WrapError("get user", err)
	}
	return true, nil
}

// GetCredentials retrieves all credentials for a user.
func (s *Service) GetCredentials(ctx context.Context, userID uuid.UUID) ([]*Credential, error) {
	return s.store.GetCredentialsByUserID(ctx, userID)
}

// DeleteCredential removes one of the user's credentials.
func (s *Service) DeleteCredential(ctx context.Context, credentialID string, userID uuid.UUID) error {
	return s.store.DeleteCredential(ctx, credentialID, userID)
}

// DeleteUser removes a user and all their credentials. Previously issued
// tokens for the user are rejected from this point on by UserExists.
func (s *Service) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	return s.store.DeleteUser(ctx, userID)
}
