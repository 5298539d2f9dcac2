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
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTIssuer mints and verifies HS256 bearer tokens. The subject claim is
// the user id; issuer and audience are informational and not validated by
// receivers in this design.
type JWTIssuer struct {
	secret    []byte
	issuer    string
	audience  string
	validity  time.Duration
	clockSkew time.Duration
}

// JWTIssuerConfig contains configuration for the JWT issuer.
type JWTIssuerConfig struct {
	// Secret is the symmetric signing key (required). Absence is a
	// startup failure, never a per-request condition.
	Secret []byte

	// Issuer is the informational iss claim (default: "go-passkey").
	Issuer string

	// Audience is the informational aud claim (default: "go-passkey").
	Audience string

	// Validity is how long tokens are valid (default: 24 hours).
	Validity time.Duration

	// ClockSkew is the negative not-before allowance to tolerate clock
	// drift between issuer and verifier (default: 1 minute).
	ClockSkew time.Duration
}

// NewJWTIssuer creates a new JWT issuer with the given configuration.
// Returns ErrSigningKeyMissing when no secret is configured.
func NewJWTIssuer(config *JWTIssuerConfig) (*JWTIssuer, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(config.Secret) == 0 {
		return nil, ErrSigningKeyMissing
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "go-passkey"
	}

	audience := config.Audience
	if audience == "" {
		audience = "go-passkey"
	}

	validity := config.Validity
	if validity == 0 {
		validity = 24 * time.Hour
	}

	clockSkew := config.ClockSkew
	if clockSkew == 0 {
		clockSkew = time.Minute
	}

	return &JWTIssuer{
		secret:    config.Secret,
		issuer:    issuer,
		audience:  audience,
		validity:  validity,
		clockSkew: clockSkew,
	}, nil
}

// Mint produces a signed token whose subject claim is the user id.
func (g *JWTIssuer) Mint(ctx context.Context, userID uuid.UUID) (string, error) {
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Issuer:    g.issuer,
		Audience:  jwt.ClaimStrings{g.audience},
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-g.clockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.validity)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", WrapError("sign token", err)
	}
	return signed, nil
}

// Verify validates signature and expiry and returns the subject user id.
// Receivers must separately confirm the user still exists before trusting
// the token.
func (g *JWTIssuer) Verify(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return g.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return uuid.Nil, NewError("verify token", ErrInvalidToken)
	}
	if !token.Valid {
		return uuid.Nil, NewError("verify token", ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, NewError("parse token subject", ErrInvalidToken)
	}
	return userID, nil
}

// Validity returns the token validity window.
func (g *JWTIssuer) Validity() time.Duration {
	return g.validity
}
