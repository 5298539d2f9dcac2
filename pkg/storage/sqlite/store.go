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

// Package sqlite provides a SQLite-backed implementation of the passkey
// Store interface using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

//go:embed schema.sql
var schema string

// Store implements passkey.Store over a single SQLite file. Foreign keys
// are enforced so deleting a user cascades to their credentials.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite store at path and applies the bundled schema.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	// An in-memory database exists per connection, so the pool must be
	// pinned to one connection or each new connection sees an empty schema.
	memory := path == ":memory:"

	var dsn string
	if memory {
		dsn = "file::memory:?_foreign_keys=ON"
	} else {
		dsn = filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	// The DSN pragma is per-connection with some driver versions, so set
	// it explicitly as well.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the raw database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// GetUserByID retrieves a user by id.
func (s *Store) GetUserByID(ctx context.Context, userID uuid.UUID) (*passkey.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, created_on, updated_on FROM users WHERE id = ?`,
		userID.String())
	return scanUser(row)
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*passkey.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, created_on, updated_on FROM users WHERE username = ?`,
		username)
	return scanUser(row)
}

// ListUsers returns all users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*passkey.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, display_name, created_on, updated_on FROM users ORDER BY created_on`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*passkey.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateUserWithCredential atomically persists a new user and their first
// credential in a single transaction.
func (s *Store) CreateUserWithCredential(ctx context.Context, user *passkey.User, cred *passkey.Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, created_on, updated_on) VALUES (?, ?, ?, ?, ?)`,
		user.ID.String(), user.Username, user.DisplayName,
		toMillis(user.CreatedAt), toMillis(user.UpdatedAt),
	); err != nil {
		return translateConstraint(err)
	}

	if err := insertCredential(ctx, tx, cred); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CreateCredential persists an additional credential for an existing user.
func (s *Store) CreateCredential(ctx context.Context, cred *passkey.Credential) error {
	return insertCredential(ctx, s.db, cred)
}

// GetCredentialByID retrieves a credential by its id.
func (s *Store) GetCredentialByID(ctx context.Context, credentialID string) (*passkey.Credential, error) {
	row := s.db.QueryRowContext(ctx, credentialQuery+` WHERE id = ?`, credentialID)
	return scanCredential(row)
}

// GetCredentialsByUserID retrieves all credentials for a user ordered by
// registration time.
func (s *Store) GetCredentialsByUserID(ctx context.Context, userID uuid.UUID) ([]*passkey.Credential, error) {
	rows, err := s.db.QueryContext(ctx, credentialQuery+` WHERE user_id = ? ORDER BY registered_at`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	creds := make([]*passkey.Credential, 0)
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// CredentialExists reports whether any user owns the credential id.
func (s *Store) CredentialExists(ctx context.Context, credentialID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credentials WHERE id = ?`, credentialID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count credentials: %w", err)
	}
	return count > 0, nil
}

// CredentialOwnedBy reports whether the credential belongs to the user.
func (s *Store) CredentialOwnedBy(ctx context.Context, credentialID string, userID uuid.UUID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credentials WHERE id = ? AND user_id = ?`,
		credentialID, userID.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count credentials: %w", err)
	}
	return count > 0, nil
}

// UpdateCredentialCounter conditionally advances the signature counter.
// The update only commits when the stored counter still equals oldCounter,
// so a racing assertion on the same credential cannot persist a stale value.
func (s *Store) UpdateCredentialCounter(ctx context.Context, credentialID string, oldCounter, newCounter uint32, usedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET signature_counter = ?, last_used_at = ? WHERE id = ? AND signature_counter = ?`,
		newCounter, toMillis(usedAt), credentialID, oldCounter)
	if err != nil {
		return fmt.Errorf("update counter: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, existsErr := s.CredentialExists(ctx, credentialID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return passkey.ErrCredentialNotFound
		}
		return passkey.ErrStaleCounter
	}
	return nil
}

// DeleteCredential removes a single credential owned by the given user.
func (s *Store) DeleteCredential(ctx context.Context, credentialID string, userID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE id = ? AND user_id = ?`,
		credentialID, userID.String())
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return passkey.ErrCredentialNotFound
	}
	return nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// CountCredentials returns the number of stored credentials.
func (s *Store) CountCredentials(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return count, nil
}

// DeleteUser removes a user. Credentials cascade via the foreign key.
func (s *Store) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID.String())
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return passkey.ErrUserNotFound
	}
	return nil
}

const credentialQuery = `SELECT id, user_id, public_key, signature_counter, cred_type, aa_guid,
	transports, user_present, user_verified, backup_eligible, backup_state,
	registered_at, last_used_at FROM credentials`

type execContexter interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCredential(ctx context.Context, target execContexter, cred *passkey.Credential) error {
	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}

	var lastUsed sql.NullInt64
	if !cred.LastUsedAt.IsZero() {
		lastUsed = sql.NullInt64{Int64: toMillis(cred.LastUsedAt), Valid: true}
	}

	_, err := target.ExecContext(ctx, `
INSERT INTO credentials (
	id, user_id, public_key, signature_counter, cred_type, aa_guid,
	transports, user_present, user_verified, backup_eligible, backup_state,
	registered_at, last_used_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cred.ID, cred.UserID.String(), cred.PublicKey, cred.SignatureCounter,
		cred.Type, cred.AAGUID.String(), strings.Join(transports, ","),
		cred.Flags.UserPresent, cred.Flags.UserVerified,
		cred.Flags.BackupEligible, cred.Flags.BackupState,
		toMillis(cred.RegisteredAt), lastUsed)
	if err != nil {
		return translateConstraint(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*passkey.User, error) {
	var (
		id          string
		username    string
		displayName sql.NullString
		createdOn   int64
		updatedOn   int64
	)
	if err := row.Scan(&id, &username, &displayName, &createdOn, &updatedOn); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, passkey.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}

	return &passkey.User{
		ID:          userID,
		Username:    username,
		DisplayName: displayName.String,
		CreatedAt:   fromMillis(createdOn),
		UpdatedAt:   fromMillis(updatedOn),
	}, nil
}

func scanCredential(row rowScanner) (*passkey.Credential, error) {
	var (
		id           string
		userID       string
		publicKey    []byte
		counter      uint32
		credType     string
		aaGUID       string
		transports   string
		registeredAt int64
		lastUsedAt   sql.NullInt64
		flags        passkey.CredentialFlags
	)
	if err := row.Scan(&id, &userID, &publicKey, &counter, &credType, &aaGUID,
		&transports, &flags.UserPresent, &flags.UserVerified,
		&flags.BackupEligible, &flags.BackupState,
		&registeredAt, &lastUsedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, passkey.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}

	owner, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parse credential owner: %w", err)
	}
	guid, err := uuid.Parse(aaGUID)
	if err != nil {
		return nil, fmt.Errorf("parse aaguid: %w", err)
	}

	cred := &passkey.Credential{
		ID:               id,
		UserID:           owner,
		PublicKey:        publicKey,
		SignatureCounter: counter,
		Type:             credType,
		AAGUID:           guid,
		Flags:            flags,
		RegisteredAt:     fromMillis(registeredAt),
	}
	if lastUsedAt.Valid {
		cred.LastUsedAt = fromMillis(lastUsedAt.Int64)
	}
	if transports != "" {
		for _, t := range strings.Split(transports, ",") {
			cred.Transport = append(cred.Transport, protocol.AuthenticatorTransport(t))
		}
	}
	return cred, nil
}

// translateConstraint maps SQLite constraint violations onto the passkey
// sentinel errors.
func translateConstraint(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.username"):
		return passkey.ErrUsernameConflict
	case strings.Contains(msg, "credentials.id"):
		return passkey.ErrCredentialConflict
	case strings.Contains(msg, "users.id"):
		return passkey.ErrUsernameConflict
	case strings.Contains(msg, "FOREIGN KEY constraint"):
		// A credential insert referencing a user deleted mid-ceremony.
		return passkey.ErrUserNotFound
	}
	return fmt.Errorf("exec: %w", err)
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

var _ passkey.Store = (*Store)(nil)
