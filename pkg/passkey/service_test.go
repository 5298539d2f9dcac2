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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServiceRequiresDependencies(t *testing.T) {
	tokens, err := NewJWTIssuer(&JWTIssuerConfig{Secret: []byte("secret")})
	require.NoError(t, err)

	valid := ServiceParams{
		Config:     validConfig(),
		Store:      NewMemoryStore(),
		Challenges: NewMemoryChallengeStore(),
		Tokens:     tokens,
	}

	tests := []struct {
		name   string
		mutate func(*ServiceParams)
	}{
		{"missing config", func(p *ServiceParams) { p.Config = nil }},
		{"missing store", func(p *ServiceParams) { p.Store = nil }},
		{"missing challenge store", func(p *ServiceParams) { p.Challenges = nil }},
		{"missing token issuer", func(p *ServiceParams) { p.Tokens = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := valid
			tt.mutate(&params)
			_, err := NewService(params)
			assert.Error(t, err)
		})
	}

	svc, err := NewService(valid)
	require.NoError(t, err)
	assert.NotNil(t, svc.Config())
}

func TestNewServiceInvalidConfig(t *testing.T) {
	tokens, err := NewJWTIssuer(&JWTIssuerConfig{Secret: []byte("secret")})
	require.NoError(t, err)

	_, err = NewService(ServiceParams{
		Config:     &Config{},
		Store:      NewMemoryStore(),
		Challenges: NewMemoryChallengeStore(),
		Tokens:     tokens,
	})
	assert.Error(t, err)
}
