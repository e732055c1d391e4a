package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Edge is a one-way annotated link from an owner to a contact. Every
// annotation is visible only to the owner; nothing is mirrored.
type Edge struct {
	ID         int64
	OwnerID    int64
	ContactID  int64
	Label      string
	Note       string
	Tags       []string
	WorkingOn  string
	LastViewed *int64
	CreatedAt  int64
}

// ContactEdge is the owner-side projection of an edge joined with the
// contact's person fields, as returned by ListEdgesFor.
type ContactEdge struct {
	Contact Person
	Edge    Edge
}

// EdgeUpdate carries a partial edge update. Nil fields are left untouched;
// last_viewed is refreshed by any update regardless.
type EdgeUpdate struct {
	Label     *string
	Note      *string
	Tags      *[]string
	WorkingOn *string
}

// RelationshipGraph owns the directed edges between people, including the
// orphan cleanup that runs when an edge is removed. The orphan check reads
// the credentials table inside the removal transaction rather than going
// through CredentialStore, so the check and the delete commit together.
type RelationshipGraph struct {
	db *DB
}

// NewRelationshipGraph creates a RelationshipGraph.
func NewRelationshipGraph(db *DB) *RelationshipGraph {
	return &RelationshipGraph{db: db}
}

// AddEdge inserts one directed edge from owner to contact. Fails with a
// conflict if the ordered pair already exists and not-found if either endpoint
// is missing.
func (g *RelationshipGraph) AddEdge(owner, contact int64, label, note string, tags []string, workingOn string) (*Edge, error) {
	if owner == contact {
		return nil, Validationf("owner and contact must differ")
	}

	tx, err := g.db.Begin()
	if err != nil {
		return nil, StorageErr("begin add edge", err)
	}
	defer tx.Rollback()

	for _, id := range []int64{owner, contact} {
		var count int
		if err := tx.QueryRow("SELECT COUNT(*) FROM people WHERE id = ?", id).Scan(&count); err != nil {
			return nil, StorageErr("check endpoint", err)
		}
		if count == 0 {
			return nil, NotFoundf("person %d not found", id)
		}
	}

	var count int
	if err := tx.QueryRow(
		"SELECT COUNT(*) FROM relationships WHERE owner_id = ? AND contact_id = ?", owner, contact,
	).Scan(&count); err != nil {
		return nil, StorageErr("check edge", err)
	}
	if count > 0 {
		return nil, Conflictf("edge %d -> %d already exists", owner, contact)
	}

	now := time.Now().UnixMilli()
	result, err := tx.Exec(`
		INSERT INTO relationships (owner_id, contact_id, label, note, tags, working_on, last_viewed, created_at)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?)
	`, owner, contact, label, note, joinTags(tags), workingOn, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, Conflictf("edge %d -> %d already exists", owner, contact)
		}
		return nil, StorageErr("insert edge", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, StorageErr("commit add edge", err)
	}

	id, _ := result.LastInsertId()
	lastViewed := now
	return &Edge{
		ID: id, OwnerID: owner, ContactID: contact,
		Label: label, Note: note, Tags: tags, WorkingOn: workingOn,
		LastViewed: &lastViewed, CreatedAt: now,
	}, nil
}

// RemoveEdge deletes the directed edge, then garbage-collects the contact if
// it has become an orphan: no credential and no remaining incoming edges.
// The check-then-act has no cross-transaction lock; a concurrent removal can
// race it, and the losing delete is a no-op rather than corruption.
func (g *RelationshipGraph) RemoveEdge(owner, contact int64) error {
	tx, err := g.db.Begin()
	if err != nil {
		return StorageErr("begin remove edge", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		"DELETE FROM relationships WHERE owner_id = ? AND contact_id = ?", owner, contact)
	if err != nil {
		return StorageErr("delete edge", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return NotFoundf("edge %d -> %d not found", owner, contact)
	}

	var creds, incoming int
	if err := tx.QueryRow("SELECT COUNT(*) FROM credentials WHERE person_id = ?", contact).Scan(&creds); err != nil {
		return StorageErr("check contact credential", err)
	}
	if err := tx.QueryRow("SELECT COUNT(*) FROM relationships WHERE contact_id = ?", contact).Scan(&incoming); err != nil {
		return StorageErr("count incoming edges", err)
	}

	if creds == 0 && incoming == 0 {
		// Orphan: cascade removes the contact's own outgoing edges.
		if _, err := tx.Exec("DELETE FROM people WHERE id = ?", contact); err != nil {
			return StorageErr("delete orphan contact", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return StorageErr("commit remove edge", err)
	}
	return nil
}

// UpdateEdge applies a partial update to the edge's annotations. Any write,
// whatever the fields, refreshes last_viewed.
func (g *RelationshipGraph) UpdateEdge(owner, contact int64, update EdgeUpdate) error {
	setClauses := []string{"last_viewed = ?"}
	args := []any{time.Now().UnixMilli()}

	if update.Label != nil {
		setClauses = append(setClauses, "label = NULLIF(?, '')")
		args = append(args, *update.Label)
	}
	if update.Note != nil {
		setClauses = append(setClauses, "note = NULLIF(?, '')")
		args = append(args, *update.Note)
	}
	if update.Tags != nil {
		setClauses = append(setClauses, "tags = NULLIF(?, '')")
		args = append(args, joinTags(*update.Tags))
	}
	if update.WorkingOn != nil {
		setClauses = append(setClauses, "working_on = NULLIF(?, '')")
		args = append(args, *update.WorkingOn)
	}

	args = append(args, owner, contact)
	query := fmt.Sprintf(
		"UPDATE relationships SET %s WHERE owner_id = ? AND contact_id = ?",
		strings.Join(setClauses, ", "))
	result, err := g.db.Exec(query, args...)
	if err != nil {
		return StorageErr("update edge", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return NotFoundf("edge %d -> %d not found", owner, contact)
	}
	return nil
}

// MarkViewed refreshes only last_viewed.
func (g *RelationshipGraph) MarkViewed(owner, contact int64) error {
	result, err := g.db.Exec(
		"UPDATE relationships SET last_viewed = ? WHERE owner_id = ? AND contact_id = ?",
		time.Now().UnixMilli(), owner, contact)
	if err != nil {
		return StorageErr("mark viewed", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return NotFoundf("edge %d -> %d not found", owner, contact)
	}
	return nil
}

// GetEdge returns the directed edge from owner to contact.
func (g *RelationshipGraph) GetEdge(owner, contact int64) (*Edge, error) {
	row := g.db.QueryRow(`
		SELECT id, owner_id, contact_id, label, note, tags, working_on, last_viewed, created_at
		FROM relationships WHERE owner_id = ? AND contact_id = ?
	`, owner, contact)
	e, err := scanEdge(row)
	if err == sql.ErrNoRows {
		return nil, NotFoundf("edge %d -> %d not found", owner, contact)
	}
	if err != nil {
		return nil, StorageErr("get edge", err)
	}
	return e, nil
}

// ListEdgesFor returns the owner's edges joined with each contact's person
// fields, most recently viewed first (never-viewed edges last), then by name.
func (g *RelationshipGraph) ListEdgesFor(owner int64) ([]ContactEdge, error) {
	rows, err := g.db.Query(`
		SELECT p.id, p.first_name, p.last_name, p.email, p.phone_number, p.birthday,
			p.location, p.high_school, p.university, p.uni_major, p.field_of_interest, p.job_title,
			p.current_company, p.gender, p.ethnicity, p.profile_image_url, p.linkedin_url,
			p.recent_tags, p.created_at,
			r.id, r.owner_id, r.contact_id, r.label, r.note, r.tags, r.working_on, r.last_viewed, r.created_at
		FROM relationships r
		JOIN people p ON r.contact_id = p.id
		WHERE r.owner_id = ?
		ORDER BY r.last_viewed IS NULL, r.last_viewed DESC, p.first_name, p.last_name
	`, owner)
	if err != nil {
		return nil, StorageErr("list edges", err)
	}
	defer rows.Close()

	var edges []ContactEdge
	for rows.Next() {
		var p Person
		var email, phone, birthday, location, highSchool, university, uniMajor,
			interest, jobTitle, company, gender, ethnicity, imageURL, linkedin,
			recentTags sql.NullString
		var e Edge
		var label, note, tags, workingOn sql.NullString
		var lastViewed sql.NullInt64
		err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &email, &phone, &birthday,
			&location, &highSchool, &university, &uniMajor, &interest, &jobTitle,
			&company, &gender, &ethnicity, &imageURL, &linkedin,
			&recentTags, &p.CreatedAt,
			&e.ID, &e.OwnerID, &e.ContactID, &label, &note, &tags, &workingOn, &lastViewed, &e.CreatedAt)
		if err != nil {
			return nil, StorageErr("scan contact edge", err)
		}
		p.Email = email.String
		p.PhoneNumber = phone.String
		p.Birthday = birthday.String
		p.Location = location.String
		p.HighSchool = highSchool.String
		p.University = university.String
		p.UniMajor = uniMajor.String
		p.FieldOfInterest = interest.String
		p.JobTitle = jobTitle.String
		p.CurrentCompany = company.String
		p.Gender = gender.String
		p.Ethnicity = ethnicity.String
		p.ProfileImageURL = imageURL.String
		p.LinkedinURL = linkedin.String
		p.RecentTags = splitTags(recentTags.String)
		e.Label = label.String
		e.Note = note.String
		e.Tags = splitTags(tags.String)
		e.WorkingOn = workingOn.String
		if lastViewed.Valid {
			e.LastViewed = &lastViewed.Int64
		}
		edges = append(edges, ContactEdge{Contact: p, Edge: e})
	}
	return edges, rows.Err()
}

func scanEdge(row rowScanner) (*Edge, error) {
	var e Edge
	var label, note, tags, workingOn sql.NullString
	var lastViewed sql.NullInt64
	err := row.Scan(&e.ID, &e.OwnerID, &e.ContactID, &label, &note, &tags, &workingOn, &lastViewed, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Label = label.String
	e.Note = note.String
	e.Tags = splitTags(tags.String)
	e.WorkingOn = workingOn.String
	if lastViewed.Valid {
		e.LastViewed = &lastViewed.Int64
	}
	return &e, nil
}
