package store

import (
	"database/sql"
	"strings"
)

// DefaultMaxRecentTags bounds the per-person recency cache.
const DefaultMaxRecentTags = 20

// TagRecencyCache maintains the bounded most-recent-first tag list stored on
// each person row, serialized as a comma-delimited string.
type TagRecencyCache struct {
	db      *DB
	maxTags int
}

// NewTagRecencyCache creates a cache bounded at maxTags entries per person.
// A non-positive maxTags falls back to DefaultMaxRecentTags.
func NewTagRecencyCache(db *DB, maxTags int) *TagRecencyCache {
	if maxTags <= 0 {
		maxTags = DefaultMaxRecentTags
	}
	return &TagRecencyCache{db: db, maxTags: maxTags}
}

// Get returns the person's recent tags, most recent first, or an empty list
// when none are stored.
func (c *TagRecencyCache) Get(personID int64) ([]string, error) {
	var stored sql.NullString
	err := c.db.QueryRow("SELECT recent_tags FROM people WHERE id = ?", personID).Scan(&stored)
	if err == sql.ErrNoRows {
		return nil, NotFoundf("person %d not found", personID)
	}
	if err != nil {
		return nil, StorageErr("get recent tags", err)
	}
	return splitTags(stored.String), nil
}

// Update moves newTags to the front of the person's recency list, preserving
// first-occurrence order, dropping duplicates, and truncating to the bound.
// Read-modify-write without a row lock: concurrent updates to the same person
// are last-writer-wins.
func (c *TagRecencyCache) Update(personID int64, newTags []string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return StorageErr("begin tag update", err)
	}
	defer tx.Rollback()

	var stored sql.NullString
	err = tx.QueryRow("SELECT recent_tags FROM people WHERE id = ?", personID).Scan(&stored)
	if err == sql.ErrNoRows {
		return NotFoundf("person %d not found", personID)
	}
	if err != nil {
		return StorageErr("read recent tags", err)
	}

	merged := mergeRecent(newTags, splitTags(stored.String), c.maxTags)

	if _, err := tx.Exec("UPDATE people SET recent_tags = NULLIF(?, '') WHERE id = ?",
		joinTags(merged), personID); err != nil {
		return StorageErr("write recent tags", err)
	}
	if err := tx.Commit(); err != nil {
		return StorageErr("commit tag update", err)
	}
	return nil
}

// mergeRecent prepends newTags (deduplicated, first occurrence wins), appends
// the surviving current tags in their existing order, and truncates to max.
func mergeRecent(newTags, current []string, max int) []string {
	var merged []string
	seen := make(map[string]bool)

	for _, tag := range newTags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		merged = append(merged, tag)
	}
	for _, tag := range current {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		merged = append(merged, tag)
	}

	if len(merged) > max {
		merged = merged[:max]
	}
	return merged
}

// splitTags deserializes a comma-delimited tag string. Empty input yields nil.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// joinTags serializes tags as a comma-delimited string, "" when empty.
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}
