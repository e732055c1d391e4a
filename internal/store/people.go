package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Person is a profile record representing either an app user or a contact.
// All fields besides the name pair are optional and read back empty when unset.
type Person struct {
	ID              int64
	FirstName       string
	LastName        string
	Email           string
	PhoneNumber     string
	Birthday        string
	Location        string
	HighSchool      string
	University      string
	UniMajor        string
	FieldOfInterest string
	JobTitle        string
	CurrentCompany  string
	Gender          string
	Ethnicity       string
	ProfileImageURL string
	LinkedinURL     string
	RecentTags      []string
	CreatedAt       int64
}

// Name returns the person's display name.
func (p *Person) Name() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// PersonStore provides CRUD over people rows.
type PersonStore struct {
	db          *DB
	defaultTags []string
}

// NewPersonStore creates a PersonStore. defaultTags seeds the recency cache
// of newly created people that carry no tags of their own.
func NewPersonStore(db *DB, defaultTags []string) *PersonStore {
	return &PersonStore{db: db, defaultTags: defaultTags}
}

const personColumns = `id, first_name, last_name, email, phone_number, birthday,
	location, high_school, university, uni_major, field_of_interest, job_title,
	current_company, gender, ethnicity, profile_image_url, linkedin_url,
	recent_tags, created_at`

// Create inserts a new person and returns its id. First and last name are
// required; unset optional fields are stored as NULL.
func (s *PersonStore) Create(p *Person) (int64, error) {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return 0, Validationf("first_name and last_name are required")
	}

	tags := p.RecentTags
	if tags == nil {
		tags = s.defaultTags
	}

	now := time.Now().UnixMilli()
	result, err := s.db.Exec(`
		INSERT INTO people (first_name, last_name, email, phone_number, birthday,
			location, high_school, university, uni_major, field_of_interest, job_title,
			current_company, gender, ethnicity, profile_image_url, linkedin_url,
			recent_tags, created_at)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''),
			NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''),
			NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''),
			NULLIF(?, ''), ?)
	`, p.FirstName, p.LastName, p.Email, p.PhoneNumber, p.Birthday,
		p.Location, p.HighSchool, p.University, p.UniMajor, p.FieldOfInterest, p.JobTitle,
		p.CurrentCompany, p.Gender, p.Ethnicity, p.ProfileImageURL, p.LinkedinURL,
		joinTags(tags), now)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, Conflictf("email %q already in use", p.Email)
		}
		return 0, StorageErr("create person", err)
	}

	id, _ := result.LastInsertId()
	p.ID = id
	p.RecentTags = tags
	p.CreatedAt = now
	return id, nil
}

// Get returns the person with the given id.
func (s *PersonStore) Get(id int64) (*Person, error) {
	row := s.db.QueryRow("SELECT "+personColumns+" FROM people WHERE id = ?", id)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, NotFoundf("person %d not found", id)
	}
	if err != nil {
		return nil, StorageErr("get person", err)
	}
	return p, nil
}

// GetByEmail returns the person with the given email.
func (s *PersonStore) GetByEmail(email string) (*Person, error) {
	row := s.db.QueryRow("SELECT "+personColumns+" FROM people WHERE email = ?", email)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, NotFoundf("person with email %q not found", email)
	}
	if err != nil {
		return nil, StorageErr("get person by email", err)
	}
	return p, nil
}

// List returns all people ordered by name.
func (s *PersonStore) List() ([]Person, error) {
	rows, err := s.db.Query("SELECT " + personColumns + " FROM people ORDER BY first_name, last_name")
	if err != nil {
		return nil, StorageErr("list people", err)
	}
	defer rows.Close()
	return scanPeople(rows)
}

// Search returns people whose name, location, university, high school, or
// interest field contains term, ordered by name. Matching is case-insensitive
// for ASCII only; sqlite LIKE does not case-fold beyond ASCII.
// An empty term is a validation error; callers must require input.
func (s *PersonStore) Search(term string) ([]Person, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, Validationf("search term is required")
	}

	pattern := "%" + term + "%"
	rows, err := s.db.Query(`
		SELECT `+personColumns+` FROM people
		WHERE first_name LIKE ? OR last_name LIKE ? OR location LIKE ?
			OR university LIKE ? OR high_school LIKE ? OR field_of_interest LIKE ?
		ORDER BY first_name, last_name
	`, pattern, pattern, pattern, pattern, pattern, pattern)
	if err != nil {
		return nil, StorageErr("search people", err)
	}
	defer rows.Close()
	return scanPeople(rows)
}

// mutablePersonFields maps accepted update keys to their columns.
// Keys outside this map are ignored, not errors.
var mutablePersonFields = map[string]string{
	"first_name":        "first_name",
	"last_name":         "last_name",
	"email":             "email",
	"phone_number":      "phone_number",
	"birthday":          "birthday",
	"location":          "location",
	"high_school":       "high_school",
	"university":        "university",
	"uni_major":         "uni_major",
	"field_of_interest": "field_of_interest",
	"job_title":         "job_title",
	"current_company":   "current_company",
	"gender":            "gender",
	"ethnicity":         "ethnicity",
	"profile_image_url": "profile_image_url",
	"linkedin_url":      "linkedin_url",
	"recent_tags":       "recent_tags",
}

// Update applies the allow-listed subset of fields to the person and reports
// whether a row changed. An empty value clears the column.
func (s *PersonStore) Update(id int64, fields map[string]string) (bool, error) {
	var setClauses []string
	var args []any
	for key, value := range fields {
		column, ok := mutablePersonFields[key]
		if !ok {
			continue
		}
		if (key == "first_name" || key == "last_name") && strings.TrimSpace(value) == "" {
			return false, Validationf("%s cannot be empty", key)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = NULLIF(?, '')", column))
		args = append(args, value)
	}
	if len(setClauses) == 0 {
		return false, nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE people SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	result, err := s.db.Exec(query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, Conflictf("email already in use")
		}
		return false, StorageErr("update person", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// Delete removes the person row. Foreign keys cascade to the credential and
// to every relationship referencing the person as either endpoint.
func (s *PersonStore) Delete(id int64) error {
	result, err := s.db.Exec("DELETE FROM people WHERE id = ?", id)
	if err != nil {
		return StorageErr("delete person", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return NotFoundf("person %d not found", id)
	}
	return nil
}

// Exists reports whether a person row exists for id.
func (s *PersonStore) Exists(id int64) (bool, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM people WHERE id = ?", id).Scan(&count); err != nil {
		return false, StorageErr("check person", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*Person, error) {
	var p Person
	var email, phone, birthday, location, highSchool, university, uniMajor,
		interest, jobTitle, company, gender, ethnicity, imageURL, linkedin,
		recentTags sql.NullString
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &email, &phone, &birthday,
		&location, &highSchool, &university, &uniMajor, &interest, &jobTitle,
		&company, &gender, &ethnicity, &imageURL, &linkedin,
		&recentTags, &p.CreatedAt)
	if err != nil {
		return nil, err
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
	return &p, nil
}

func scanPeople(rows *sql.Rows) ([]Person, error) {
	var people []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, *p)
	}
	return people, rows.Err()
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
