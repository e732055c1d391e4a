package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

// createPerson creates a person through the API and returns its id.
func createPerson(t *testing.T, srv *Server, body string) int64 {
	t.Helper()
	w := doJSON(t, srv, "POST", "/api/people", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create person: status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	id, ok := resp["id"].(float64)
	if !ok {
		t.Fatalf("create person: no id in response: %s", w.Body.String())
	}
	return int64(id)
}

func TestCreateAndGetPerson(t *testing.T) {
	srv := testServer(t)

	id := createPerson(t, srv, `{"first_name":"Ada","last_name":"Moreno","email":"ada@example.com"}`)

	w := doJSON(t, srv, "GET", fmt.Sprintf("/api/people/%d", id), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["first_name"] != "Ada" {
		t.Errorf("first_name = %v, want Ada", resp["first_name"])
	}
	if resp["email"] != "ada@example.com" {
		t.Errorf("email = %v, want ada@example.com", resp["email"])
	}
	// Unset optional fields serialize as null, not "".
	if resp["location"] != nil {
		t.Errorf("location = %v, want null", resp["location"])
	}
}

func TestCreatePersonValidation(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/people", `{"first_name":"Ada"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing last_name: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doJSON(t, srv, "POST", "/api/people", "not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["kind"] != "validation" {
		t.Errorf("kind = %q, want validation", resp["kind"])
	}
}

func TestCreatePersonDuplicateEmail(t *testing.T) {
	srv := testServer(t)

	createPerson(t, srv, `{"first_name":"Ada","last_name":"Moreno","email":"ada@example.com"}`)
	w := doJSON(t, srv, "POST", "/api/people", `{"first_name":"Ben","last_name":"Okafor","email":"ada@example.com"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestCreatePersonCredentialConflictRollsBack(t *testing.T) {
	srv := testServer(t)
	createPerson(t, srv, `{"first_name":"Ada","last_name":"Moreno","username":"amoreno","secret":"hunter2!"}`)

	w := doJSON(t, srv, "POST", "/api/people",
		`{"first_name":"Ben","last_name":"Okafor","email":"ben@example.com","username":"amoreno","secret":"other"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("taken username: status = %d, want %d; body: %s", w.Code, http.StatusConflict, w.Body.String())
	}

	// The failed registration leaves no person behind.
	w = doJSON(t, srv, "GET", "/api/people?email=ben@example.com", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("person persisted after failed registration: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestListPeopleByEmail(t *testing.T) {
	srv := testServer(t)
	createPerson(t, srv, `{"first_name":"Ada","last_name":"Moreno","email":"ada@example.com"}`)
	createPerson(t, srv, `{"first_name":"Ben","last_name":"Okafor","email":"ben@example.com"}`)

	w := doJSON(t, srv, "GET", "/api/people?email=ben@example.com", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp []map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp) != 1 || resp[0]["first_name"] != "Ben" {
		t.Errorf("resp = %v, want Ben only", resp)
	}

	w = doJSON(t, srv, "GET", "/api/people?email=nobody@example.com", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown email: status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = doJSON(t, srv, "GET", "/api/people", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: status = %d", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp) != 2 {
		t.Errorf("list = %d people, want 2", len(resp))
	}
}

func TestGetPersonNotFound(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "GET", "/api/people/42", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	w = doJSON(t, srv, "GET", "/api/people/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSearchPeople(t *testing.T) {
	srv := testServer(t)

	createPerson(t, srv, `{"first_name":"Ada","last_name":"Moreno","location":"Lisbon"}`)
	createPerson(t, srv, `{"first_name":"Ben","last_name":"Okafor"}`)

	w := doJSON(t, srv, "GET", "/api/people/search?q=lisbon", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp []map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp) != 1 {
		t.Errorf("results = %d, want 1", len(resp))
	}

	w = doJSON(t, srv, "GET", "/api/people/search", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUpdatePerson(t *testing.T) {
	srv := testServer(t)
	id := createPerson(t, srv, `{"first_name":"Ada","last_name":"Moreno"}`)

	w := doJSON(t, srv, "PUT", fmt.Sprintf("/api/people/%d", id), `{"job_title":"Engineer"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, "GET", fmt.Sprintf("/api/people/%d", id), "")
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["job_title"] != "Engineer" {
		t.Errorf("job_title = %v, want Engineer", resp["job_title"])
	}
}

func TestDeletePerson(t *testing.T) {
	srv := testServer(t)
	id := createPerson(t, srv, `{"first_name":"Ada","last_name":"Moreno"}`)

	w := doJSON(t, srv, "DELETE", fmt.Sprintf("/api/people/%d", id), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, srv, "GET", fmt.Sprintf("/api/people/%d", id), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("after delete: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestLoginFlow(t *testing.T) {
	srv := testServer(t)
	id := createPerson(t, srv, `{"first_name":"Ada","last_name":"Moreno","username":"amoreno","secret":"hunter2!"}`)

	w := doJSON(t, srv, "POST", "/api/login", `{"username":"amoreno","secret":"hunter2!"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if int64(resp["person_id"].(float64)) != id {
		t.Errorf("person_id = %v, want %d", resp["person_id"], id)
	}

	w = doJSON(t, srv, "POST", "/api/login", `{"username":"amoreno","secret":"wrong"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("wrong secret: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doJSON(t, srv, "POST", fmt.Sprintf("/api/people/%d/touch", id), "")
	if w.Code != http.StatusOK {
		t.Errorf("touch: status = %d; body: %s", w.Code, w.Body.String())
	}
}

func TestConnectionLifecycle(t *testing.T) {
	srv := testServer(t)
	ada := createPerson(t, srv, `{"first_name":"Ada","last_name":"Moreno"}`)
	ben := createPerson(t, srv, `{"first_name":"Ben","last_name":"Okafor"}`)

	body := fmt.Sprintf(`{"owner_id":%d,"contact_id":%d,"label":"Friend","tags":["friend"]}`, ada, ben)
	w := doJSON(t, srv, "POST", "/api/connections", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("add: status = %d; body: %s", w.Code, w.Body.String())
	}

	// Duplicate ordered pair conflicts.
	w = doJSON(t, srv, "POST", "/api/connections", body)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate: status = %d, want %d", w.Code, http.StatusConflict)
	}

	// Tagging the connection refreshed the owner's recency cache.
	w = doJSON(t, srv, "GET", fmt.Sprintf("/api/people/%d/recent-tags", ada), "")
	var tagsResp map[string][]string
	json.Unmarshal(w.Body.Bytes(), &tagsResp)
	if len(tagsResp["tags"]) != 1 || tagsResp["tags"][0] != "friend" {
		t.Errorf("recent tags = %v, want [friend]", tagsResp["tags"])
	}

	w = doJSON(t, srv, "PUT", "/api/connections",
		fmt.Sprintf(`{"owner_id":%d,"contact_id":%d,"note":"met for coffee"}`, ada, ben))
	if w.Code != http.StatusOK {
		t.Fatalf("update: status = %d; body: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, "GET", fmt.Sprintf("/api/people/%d/connections", ada), "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: status = %d; body: %s", w.Code, w.Body.String())
	}
	var list []map[string]any
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list) != 1 {
		t.Fatalf("connections = %d, want 1", len(list))
	}
	if list[0]["first_name"] != "Ben" || list[0]["note"] != "met for coffee" {
		t.Errorf("connection = %v", list[0])
	}

	w = doJSON(t, srv, "POST", "/api/connections/viewed",
		fmt.Sprintf(`{"owner_id":%d,"contact_id":%d}`, ada, ben))
	if w.Code != http.StatusOK {
		t.Errorf("viewed: status = %d; body: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, "DELETE", "/api/connections",
		fmt.Sprintf(`{"owner_id":%d,"contact_id":%d}`, ada, ben))
	if w.Code != http.StatusOK {
		t.Fatalf("remove: status = %d; body: %s", w.Code, w.Body.String())
	}
	// Ben had no credential and no other edge, so removal collected him.
	w = doJSON(t, srv, "GET", fmt.Sprintf("/api/people/%d", ben), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("orphan contact: status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = doJSON(t, srv, "DELETE", "/api/connections",
		fmt.Sprintf(`{"owner_id":%d,"contact_id":%d}`, ada, ben))
	if w.Code != http.StatusNotFound {
		t.Errorf("remove missing: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRecentTagsRoundtrip(t *testing.T) {
	srv := testServer(t)
	id := createPerson(t, srv, `{"first_name":"Ada","last_name":"Moreno"}`)

	w := doJSON(t, srv, "PUT", fmt.Sprintf("/api/people/%d/recent-tags", id), `{"tags":["a","b"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put: status = %d; body: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, srv, "PUT", fmt.Sprintf("/api/people/%d/recent-tags", id), `{"tags":["c"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put: status = %d; body: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, "GET", fmt.Sprintf("/api/people/%d/recent-tags", id), "")
	var resp map[string][]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	want := []string{"c", "a", "b"}
	if len(resp["tags"]) != 3 {
		t.Fatalf("tags = %v, want %v", resp["tags"], want)
	}
	for i, tag := range want {
		if resp["tags"][i] != tag {
			t.Errorf("tags[%d] = %q, want %q", i, resp["tags"][i], tag)
		}
	}
}

func TestIngestEndpoint(t *testing.T) {
	srv := testServer(t)
	ada := createPerson(t, srv, `{"first_name":"Ada","last_name":"Moreno"}`)

	body := fmt.Sprintf(`{"requester_id":%d,"text":"Maya Chen met at the robotics meetup","tags":["robotics"]}`, ada)
	w := doJSON(t, srv, "POST", "/api/contacts/ingest", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	person, _ := resp["person"].(map[string]any)
	if person["first_name"] != "Maya" {
		t.Errorf("first_name = %v, want Maya", person["first_name"])
	}
	if resp["link_degraded"] != false {
		t.Errorf("link_degraded = %v, want false", resp["link_degraded"])
	}

	w = doJSON(t, srv, "POST", "/api/contacts/ingest",
		fmt.Sprintf(`{"requester_id":%d,"text":"hi"}`, ada))
	if w.Code != http.StatusBadRequest {
		t.Errorf("short text: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
