package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "people: profile records for users and contacts",
		SQL: `
CREATE TABLE people (
    id                INTEGER PRIMARY KEY,
    first_name        TEXT NOT NULL CHECK (first_name != ''),
    last_name         TEXT NOT NULL CHECK (last_name != ''),

    -- Optional profile attributes
    email             TEXT UNIQUE,
    phone_number      TEXT,
    birthday          TEXT,
    location          TEXT,
    high_school       TEXT,
    university        TEXT,
    uni_major         TEXT,
    field_of_interest TEXT,
    job_title         TEXT,
    current_company   TEXT,
    gender            TEXT,
    ethnicity         TEXT,
    profile_image_url TEXT,
    linkedin_url      TEXT,

    -- Bounded recency cache, comma-delimited, most recent first
    recent_tags       TEXT,

    created_at        INTEGER NOT NULL
);

CREATE INDEX idx_people_name ON people(first_name, last_name);
`,
	},
	{
		Version:     2,
		Description: "credentials: one login per person",
		SQL: `
CREATE TABLE credentials (
    id           INTEGER PRIMARY KEY,
    person_id    INTEGER NOT NULL UNIQUE,
    username     TEXT NOT NULL UNIQUE,
    passkey_hash TEXT NOT NULL,
    last_auth    INTEGER,
    created_at   INTEGER NOT NULL,

    FOREIGN KEY (person_id) REFERENCES people(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     3,
		Description: "relationships: directed annotated edges between people",
		SQL: `
CREATE TABLE relationships (
    id          INTEGER PRIMARY KEY,
    owner_id    INTEGER NOT NULL,
    contact_id  INTEGER NOT NULL,

    -- One-way annotations, visible only to the owner
    label       TEXT,
    note        TEXT,
    tags        TEXT,
    working_on  TEXT,

    last_viewed INTEGER,
    created_at  INTEGER NOT NULL,

    FOREIGN KEY (owner_id)   REFERENCES people(id) ON DELETE CASCADE,
    FOREIGN KEY (contact_id) REFERENCES people(id) ON DELETE CASCADE,
    UNIQUE (owner_id, contact_id),
    CHECK (owner_id != contact_id)
);

CREATE INDEX idx_rel_owner   ON relationships(owner_id);
CREATE INDEX idx_rel_contact ON relationships(contact_id);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
