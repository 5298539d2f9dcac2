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

// Package passkey implements passwordless authentication using WebAuthn
// ceremonies. It provides the registration and assertion state machines,
// an ephemeral single-use challenge store, credential persistence
// interfaces, and a JWT issuer that mints bearer tokens for verified
// identities.
//
// The package is storage-agnostic: applications provide a Store
// implementation (see pkg/storage/sqlite for a production-ready one) and
// may replace the in-memory ChallengeStore with a distributed one for
// multi-instance deployments.
//
// Basic usage:
//
//	svc, err := passkey.NewService(passkey.ServiceParams{
//	    Config:     &passkey.Config{RPID: "example.com", RPDisplayName: "Example", RPOrigins: []string{"https://example.com"}},
//	    Store:      store,
//	    Challenges: passkey.NewMemoryChallengeStore(),
//	    Tokens:     issuer,
//	})
//
// Registration and assertion are both two-phase ceremonies: a Begin call
// issues client options containing a fresh challenge, and a Complete call
// consumes that challenge exactly once and verifies the signed response.
package passkey
