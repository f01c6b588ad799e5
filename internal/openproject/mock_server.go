package openproject

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// MockServer provides a configurable OpenProject mock for testing. It
// speaks just enough HAL+JSON for the client and asserts Basic auth on
// every request.
type MockServer struct {
	*httptest.Server
	mu           sync.RWMutex
	apiKey       string
	projects     []map[string]any
	workPackages map[int][]map[string]any // by project id; 0 = global list
	statuses     []map[string]any
	priorities   []map[string]any
	types        map[int][]map[string]any // by project id
	assignees    map[int][]map[string]any // by project id
	failures     map[string]int           // remaining failures per path prefix
	nextID       int
	lockVersions map[int]int // work package id -> current lockVersion
}

// NewMockServer starts a mock accepting the given API key.
func NewMockServer(apiKey string) *MockServer {
	m := &MockServer{
		apiKey:       apiKey,
		workPackages: make(map[int][]map[string]any),
		types:        make(map[int][]map[string]any),
		assignees:    make(map[int][]map[string]any),
		failures:     make(map[string]int),
		lockVersions: make(map[int]int),
		nextID:       1000,
	}
	m.SetDefaultData()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/", m.route)
	m.Server = httptest.NewServer(mux)
	return m
}

// SetDefaultData installs a small realistic dataset.
func (m *MockServer) SetDefaultData() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.projects = []map[string]any{
		{
			"id": 1, "identifier": "demo-project", "name": "Demo Project",
			"active": true, "public": false,
			"description": map[string]any{"format": "markdown", "raw": "A demo project"},
			"createdAt":   "2024-01-01T00:00:00Z", "updatedAt": "2024-01-02T00:00:00Z",
		},
		{
			"id": 2, "identifier": "test-project", "name": "Test Project",
			"active": true, "public": true,
		},
	}
	m.workPackages[1] = []map[string]any{
		{
			"id": 1, "subject": "Fix login bug",
			"description":    map[string]any{"format": "markdown", "raw": "Login fails with special characters"},
			"startDate":      "2024-01-01", "dueDate": "2024-01-15",
			"estimatedTime":  "PT8H", "percentageDone": 50, "lockVersion": 1,
			"createdAt":      "2024-01-01T00:00:00Z", "updatedAt": "2024-01-02T00:00:00Z",
			"_embedded": map[string]any{
				"status":   map[string]any{"id": 1, "name": "New", "color": "#0066CC"},
				"type":     map[string]any{"id": 2, "name": "Bug", "color": "#CC0000"},
				"priority": map[string]any{"id": 8, "name": "High"},
				"project":  map[string]any{"id": 1, "identifier": "demo-project", "name": "Demo Project"},
				"author":   map[string]any{"id": 1, "name": "John Doe", "email": "john@example.com"},
				"assignee": map[string]any{"id": 2, "name": "Jane Smith", "email": "jane@example.com"},
			},
		},
	}
	m.lockVersions[1] = 1
	m.statuses = []map[string]any{
		{"id": 1, "name": "New", "color": "#0066CC"},
		{"id": 2, "name": "In Progress", "color": "#00CC00"},
		{"id": 3, "name": "Done", "color": "#999999"},
	}
	m.priorities = []map[string]any{
		{"id": 7, "name": "Low"},
		{"id": 8, "name": "Normal"},
		{"id": 9, "name": "High"},
	}
	m.types[1] = []map[string]any{
		{"id": 1, "name": "Task", "color": "#0066CC"},
		{"id": 2, "name": "Bug", "color": "#CC0000"},
	}
	m.assignees[1] = []map[string]any{
		{"id": 1, "name": "John Doe"},
		{"id": 2, "name": "Jane Smith"},
	}
}

// FailNext makes the next n requests whose path starts with prefix answer
// with HTTP 500 before behaving normally again.
func (m *MockServer) FailNext(prefix string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[prefix] = n
}

func (m *MockServer) route(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"_type":           "Error",
			"errorIdentifier": "urn:openproject-org:api:v3:errors:Unauthenticated",
			"message":         "You need to be authenticated to access this resource.",
		})
		return
	}
	if m.shouldFail(r.URL.Path) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"_type":   "Error",
			"message": "An internal server error occurred.",
		})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v3")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case path == "/" || path == "":
		writeJSON(w, http.StatusOK, map[string]any{"_type": "Root"})
	case path == "/projects":
		m.handleProjects(w, r)
	case path == "/statuses":
		m.collection(w, m.statuses)
	case path == "/priorities":
		m.collection(w, m.priorities)
	case len(parts) == 3 && parts[0] == "projects" && parts[2] == "types":
		m.collection(w, m.types[atoi(parts[1])])
	case len(parts) == 3 && parts[0] == "projects" && parts[2] == "available_assignees":
		m.collection(w, m.assignees[atoi(parts[1])])
	case len(parts) == 3 && parts[0] == "projects" && parts[2] == "work_packages":
		m.collection(w, m.workPackages[atoi(parts[1])])
	case len(parts) == 4 && parts[0] == "projects" && parts[2] == "work_packages" && parts[3] == "form":
		m.handleForm(w)
	case path == "/work_packages" && r.Method == http.MethodGet:
		m.collection(w, m.allWorkPackages())
	case path == "/work_packages" && r.Method == http.MethodPost:
		m.handleCreate(w, r)
	case len(parts) == 3 && parts[0] == "work_packages" && parts[2] == "form":
		m.handleForm(w)
	case len(parts) == 2 && parts[0] == "work_packages":
		m.handleWorkPackage(w, r, atoi(parts[1]))
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{
			"_type":   "Error",
			"message": "The requested resource could not be found.",
		})
	}
}

func (m *MockServer) authorized(r *http.Request) bool {
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("apikey:"+m.apiKey))
	return r.Header.Get("Authorization") == want
}

func (m *MockServer) shouldFail(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for prefix, n := range m.failures {
		if n > 0 && strings.HasPrefix(path, prefix) {
			m.failures[prefix] = n - 1
			return true
		}
	}
	return false
}

func (m *MockServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// The filters parameter is accepted but the default data is all active,
	// so no narrowing is needed here.
	_ = r.URL.Query().Get("filters")
	m.collectionLocked(w, m.projects)
}

func (m *MockServer) handleWorkPackage(w http.ResponseWriter, r *http.Request, id int) {
	switch r.Method {
	case http.MethodGet:
		if wp := m.findWorkPackage(id); wp != nil {
			writeJSON(w, http.StatusOK, wp)
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"_type": "Error", "message": "not found"})
	case http.MethodPatch:
		m.handleUpdate(w, r, id)
	case http.MethodDelete:
		m.mu.Lock()
		for pid, list := range m.workPackages {
			for i, wp := range list {
				if intval(wp["id"]) == id {
					m.workPackages[pid] = append(list[:i], list[i+1:]...)
				}
			}
		}
		m.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (m *MockServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Subject     string          `json:"subject"`
		Description *formatted      `json:"description"`
		Links       map[string]link `json:"_links"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"_type": "Error", "message": "malformed body"})
		return
	}
	if body.Subject == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"_type":   "Error",
			"message": "Subject can't be blank.",
		})
		return
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.lockVersions[id] = 1
	doc := map[string]any{
		"id": id, "subject": body.Subject, "lockVersion": 1,
		"_embedded": map[string]any{
			"status":   m.statuses[0],
			"type":     map[string]any{"id": 1, "name": "Task", "color": "#0066CC"},
			"priority": map[string]any{"id": 8, "name": "Normal"},
		},
	}
	if body.Description != nil {
		doc["description"] = map[string]any{"format": "markdown", "raw": body.Description.Raw}
	}
	projectID := linkID(body.Links, "project")
	m.workPackages[projectID] = append(m.workPackages[projectID], doc)
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, doc)
}

func (m *MockServer) handleUpdate(w http.ResponseWriter, r *http.Request, id int) {
	var body struct {
		Subject     string     `json:"subject"`
		LockVersion *int       `json:"lockVersion"`
		Description *formatted `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"_type": "Error", "message": "malformed body"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.lockVersions[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"_type": "Error", "message": "not found"})
		return
	}
	if body.LockVersion == nil || *body.LockVersion != current {
		writeJSON(w, http.StatusConflict, map[string]any{
			"_type":   "Error",
			"message": "The work package was updated by someone else.",
		})
		return
	}
	m.lockVersions[id] = current + 1

	doc := map[string]any{"id": id, "lockVersion": current + 1}
	if body.Subject != "" {
		doc["subject"] = body.Subject
	}
	if body.Description != nil {
		doc["description"] = map[string]any{"format": "markdown", "raw": body.Description.Raw}
	}
	writeJSON(w, http.StatusOK, doc)
}

func (m *MockServer) handleForm(w http.ResponseWriter) {
	m.mu.RLock()
	allowed := m.statuses
	m.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"_type": "Form",
		"_embedded": map[string]any{
			"schema": map[string]any{
				"status": map[string]any{
					"_embedded": map[string]any{"allowedValues": allowed},
				},
			},
		},
	})
}

func (m *MockServer) allWorkPackages() []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []map[string]any
	for _, list := range m.workPackages {
		out = append(out, list...)
	}
	return out
}

func (m *MockServer) findWorkPackage(id int) map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, list := range m.workPackages {
		for _, wp := range list {
			if intval(wp["id"]) == id {
				return wp
			}
		}
	}
	return nil
}

func (m *MockServer) collection(w http.ResponseWriter, elements []map[string]any) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.collectionLocked(w, elements)
}

func (m *MockServer) collectionLocked(w http.ResponseWriter, elements []map[string]any) {
	if elements == nil {
		elements = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"_type":     "Collection",
		"total":     len(elements),
		"count":     len(elements),
		"_embedded": map[string]any{"elements": elements},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/hal+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func intval(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func linkID(links map[string]link, name string) int {
	href := links[name].Href
	i := strings.LastIndex(href, "/")
	if i < 0 {
		return 0
	}
	return atoi(href[i+1:])
}
