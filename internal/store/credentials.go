package store

import (
	"database/sql"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// CredentialStore manages the one login each person may hold. Secrets are
// bcrypt-hashed before they reach the database.
type CredentialStore struct {
	db *DB
}

// NewCredentialStore creates a CredentialStore.
func NewCredentialStore(db *DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Add registers a credential for a person. Fails with a conflict if the
// username is taken or the person already has a credential.
func (s *CredentialStore) Add(personID int64, username, secret string) error {
	if username == "" || secret == "" {
		return Validationf("username and secret are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return StorageErr("hash secret", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return StorageErr("begin add credential", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM people WHERE id = ?", personID).Scan(&count); err != nil {
		return StorageErr("check person", err)
	}
	if count == 0 {
		return NotFoundf("person %d not found", personID)
	}

	if err := tx.QueryRow("SELECT COUNT(*) FROM credentials WHERE person_id = ?", personID).Scan(&count); err != nil {
		return StorageErr("check credential", err)
	}
	if count > 0 {
		return Conflictf("person %d already has a credential", personID)
	}

	if err := tx.QueryRow("SELECT COUNT(*) FROM credentials WHERE username = ?", username).Scan(&count); err != nil {
		return StorageErr("check username", err)
	}
	if count > 0 {
		return Conflictf("username %q already taken", username)
	}

	now := time.Now().UnixMilli()
	if _, err := tx.Exec(`
		INSERT INTO credentials (person_id, username, passkey_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, personID, username, string(hash), now); err != nil {
		if isUniqueViolation(err) {
			return Conflictf("credential for person %d or username %q already exists", personID, username)
		}
		return StorageErr("insert credential", err)
	}

	if err := tx.Commit(); err != nil {
		return StorageErr("commit add credential", err)
	}
	return nil
}

// Validate checks a username/secret pair and returns the owning person's id.
// On success it refreshes last_auth as a side effect.
func (s *CredentialStore) Validate(username, secret string) (int64, error) {
	var personID int64
	var hash string
	err := s.db.QueryRow(
		"SELECT person_id, passkey_hash FROM credentials WHERE username = ?", username,
	).Scan(&personID, &hash)
	if err == sql.ErrNoRows {
		return 0, Validationf("invalid username or secret")
	}
	if err != nil {
		return 0, StorageErr("lookup credential", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		return 0, Validationf("invalid username or secret")
	}

	now := time.Now().UnixMilli()
	if _, err := s.db.Exec("UPDATE credentials SET last_auth = ? WHERE username = ?", now, username); err != nil {
		return 0, StorageErr("update last_auth", err)
	}
	return personID, nil
}

// HasCredential reports whether the person holds a credential. Used by the
// relationship graph's orphan check.
func (s *CredentialStore) HasCredential(personID int64) (bool, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM credentials WHERE person_id = ?", personID).Scan(&count); err != nil {
		return false, StorageErr("check credential", err)
	}
	return count > 0, nil
}

// Touch refreshes last_auth for the person, called when the app opens.
func (s *CredentialStore) Touch(personID int64) error {
	now := time.Now().UnixMilli()
	result, err := s.db.Exec("UPDATE credentials SET last_auth = ? WHERE person_id = ?", now, personID)
	if err != nil {
		return StorageErr("touch credential", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return NotFoundf("no credential for person %d", personID)
	}
	return nil
}
