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
	"encoding/base64"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// User is a registered identity. A user owns zero or more credentials and
// is created on first successful registration, never by assertion.
type User struct {
	// ID is the user's unique identifier. Its raw bytes double as the
	// WebAuthn user handle.
	ID uuid.UUID `json:"id"`

	// Username is the unique login name. Generated when registration
	// was started without one.
	Username string `json:"username"`

	// DisplayName is the optional human-friendly name.
	DisplayName string `json:"displayName,omitempty"`

	// CreatedAt is when the user was first registered.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the user record last changed.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Credential is a registered authenticator public key bound to a user.
// Serialized credentials never carry a back-reference to the full owning
// user record, only the owning id.
type Credential struct {
	// ID is the authenticator-assigned credential id, standard
	// base64-encoded. Unique across all users.
	ID string `json:"id"`

	// UserID is the owning user.
	UserID uuid.UUID `json:"userId"`

	// PublicKey is the credential public key in COSE format.
	PublicKey []byte `json:"publicKey"`

	// SignatureCounter is the authenticator's reported signature counter,
	// used for clone detection. Mutated only by successful assertions.
	SignatureCounter uint32 `json:"signatureCounter"`

	// Type is the credential type reported at registration,
	// e.g. "public-key".
	Type string `json:"credType"`

	// AAGUID identifies the authenticator model.
	AAGUID uuid.UUID `json:"aaGuid"`

	// Transport lists the transports reported by the authenticator.
	Transport []protocol.AuthenticatorTransport `json:"transport,omitempty"`

	// Flags contains the authenticator flags captured at registration.
	Flags CredentialFlags `json:"flags"`

	// RegisteredAt is when the credential was registered.
	RegisteredAt time.Time `json:"registeredAt"`

	// LastUsedAt is when the credential last completed an assertion.
	LastUsedAt time.Time `json:"lastUsedAt,omitempty"`
}

// CredentialFlags contains authenticator capability flags.
type CredentialFlags struct {
	// UserPresent indicates the user was present during registration.
	UserPresent bool `json:"user_present"`

	// UserVerified indicates the user was verified (e.g., biometric, PIN).
	UserVerified bool `json:"user_verified"`

	// BackupEligible indicates the credential can be backed up.
	BackupEligible bool `json:"backup_eligible"`

	// BackupState indicates the credential is currently backed up.
	BackupState bool `json:"backup_state"`
}

// EncodeCredentialID encodes a raw credential id for storage and transport.
func EncodeCredentialID(rawID []byte) string {
	return base64.StdEncoding.EncodeToString(rawID)
}

// DecodeCredentialID decodes a stored credential id back to raw bytes.
func DecodeCredentialID(id string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(id)
}

// ToWebAuthn converts a Credential to the go-webauthn library's type.
func (c *Credential) ToWebAuthn() (webauthn.Credential, error) {
	rawID, err := DecodeCredentialID(c.ID)
	if err != nil {
		return webauthn.Credential{}, err
	}
	return webauthn.Credential{
		ID:              rawID,
		PublicKey:       c.PublicKey,
		AttestationType: c.Type,
		Transport:       c.Transport,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID[:],
			SignCount: c.SignatureCounter,
		},
	}, nil
}

// FromWebAuthnCredential creates a Credential from a freshly verified
// registration result.
func FromWebAuthnCredential(userID uuid.UUID, wc *webauthn.Credential) *Credential {
	var aaguid uuid.UUID
	if parsed, err := uuid.FromBytes(wc.Authenticator.AAGUID); err == nil {
		aaguid = parsed
	}
	return &Credential{
		ID:               EncodeCredentialID(wc.ID),
		UserID:           userID,
		PublicKey:        wc.PublicKey,
		SignatureCounter: wc.Authenticator.SignCount,
		Type:             string(protocol.PublicKeyCredentialType),
		AAGUID:           aaguid,
		Transport:        wc.Transport,
		Flags: CredentialFlags{
			UserPresent:    wc.Flags.UserPresent,
			UserVerified:   wc.Flags.UserVerified,
			BackupEligible: wc.Flags.BackupEligible,
			BackupState:    wc.Flags.BackupState,
		},
		RegisteredAt: time.Now().UTC(),
	}
}

// ceremonyUser adapts a User and its credentials to the go-webauthn
// User interface for the duration of one ceremony call.
type ceremonyUser struct {
	user  *User
	creds []webauthn.Credential
}

func newCeremonyUser(user *User, creds []*Credential) (*ceremonyUser, error) {
	converted := make([]webauthn.Credential, 0, len(creds))
	for _, c := range creds {
		wc, err := c.ToWebAuthn()
		if err != nil {
			return nil, err
		}
		converted = append(converted, wc)
	}
	return &ceremonyUser{user: user, creds: converted}, nil
}

// WebAuthnID returns the user handle embedded in credentials.
func (u *ceremonyUser) WebAuthnID() []byte {
	return u.user.ID[:]
}

// WebAuthnName returns the user's login name.
func (u *ceremonyUser) WebAuthnName() string {
	return u.user.Username
}

// WebAuthnDisplayName returns the user's display name, falling back to
// the username.
func (u *ceremonyUser) WebAuthnDisplayName() string {
	if u.user.DisplayName == "" {
		return u.user.Username
	}
	return u.user.DisplayName
}

// WebAuthnCredentials returns the user's registered credentials.
func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.creds
}
