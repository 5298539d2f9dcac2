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

// Package rest implements the HTTP API for the passkey server.
//
// Ceremony endpoints:
//
//	POST /api/auth/creationOptions    - begin a registration ceremony
//	POST /api/auth/createCredential   - complete a registration ceremony
//	GET  /api/auth/assertion-options  - begin an assertion ceremony
//	POST /api/auth/assertion          - complete an assertion ceremony
//
// Authenticated account endpoints:
//
//	GET    /api/me                    - current user and credentials
//	DELETE /api/me                    - delete the current user
//	DELETE /api/me/credentials/{id}   - delete a single credential
//
// Option endpoints always answer 200: ceremony setup failures are
// reported in the response payload so browser-side WebAuthn wrappers
// can surface them. Completion endpoints answer 400 with a reason when
// verification fails, and a "Bearer <token>" body on success.
package rest
