/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"
)

func newAdminTestServer(t *testing.T) (*httptest.Server, QuestionStore) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	cfg := &Config{
		adminUser:     "admin",
		adminPassHash: string(hash),
		jwtSecret:     "test-secret",
	}

	store := NewMemoryStore()
	mux := httprouter.New()
	registerAdmin(cfg, store, mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, store
}

func loginAdmin(t *testing.T, server *httptest.Server) string {
	t.Helper()

	body := `{"username":"admin","password":"hunter2"}`
	resp, err := http.Post(server.URL+"/api/admin/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("login response: %v", err)
	}
	if out.Token == "" {
		t.Fatal("login returned an empty token")
	}
	return out.Token
}

func adminRequest(t *testing.T, method, url, token string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func TestAdminLoginRejectsBadPassword(t *testing.T) {
	server, _ := newAdminTestServer(t)

	for _, body := range []string{
		`{"username":"admin","password":"wrong"}`,
		`{"username":"nobody","password":"hunter2"}`,
	} {
		resp, err := http.Post(server.URL+"/api/admin/login", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %d", body, resp.StatusCode)
		}
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	server, _ := newAdminTestServer(t)

	resp := adminRequest(t, http.MethodGet, server.URL+"/api/admin/questions", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", resp.StatusCode)
	}

	resp = adminRequest(t, http.MethodGet, server.URL+"/api/admin/questions", "not-a-jwt", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a garbage token, got %d", resp.StatusCode)
	}
}

func TestAdminQuestionLifecycle(t *testing.T) {
	server, _ := newAdminTestServer(t)
	token := loginAdmin(t, server)

	// Create.
	create := `{"category":"club","prompt":"Q?","choices":["a","b","c"],"answerIndex":1}`
	resp := adminRequest(t, http.MethodPost, server.URL+"/api/admin/questions", token, []byte(create))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("create response: %v", err)
	}
	resp.Body.Close()

	// List.
	resp = adminRequest(t, http.MethodGet, server.URL+"/api/admin/questions?category=club", token, nil)
	var listing struct {
		Questions []Question `json:"questions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatalf("list response: %v", err)
	}
	resp.Body.Close()
	if len(listing.Questions) != 1 || listing.Questions[0].ID != created.ID {
		t.Fatalf("unexpected listing: %+v", listing.Questions)
	}

	// Update.
	resp = adminRequest(t, http.MethodPut, server.URL+"/api/admin/questions/"+created.ID, token,
		[]byte(`{"prompt":"Updated?"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("update: expected 204, got %d", resp.StatusCode)
	}

	// Toggle.
	resp = adminRequest(t, http.MethodPost, server.URL+"/api/admin/questions/"+created.ID+"/toggle", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("toggle: expected 204, got %d", resp.StatusCode)
	}

	resp = adminRequest(t, http.MethodGet, server.URL+"/api/admin/questions", token, nil)
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatalf("list response: %v", err)
	}
	resp.Body.Close()
	if listing.Questions[0].Prompt != "Updated?" || listing.Questions[0].Active {
		t.Fatalf("update or toggle not applied: %+v", listing.Questions[0])
	}

	// Delete.
	resp = adminRequest(t, http.MethodDelete, server.URL+"/api/admin/questions/"+created.ID, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
}

func TestAdminCreateRejectsInvalidQuestion(t *testing.T) {
	server, _ := newAdminTestServer(t)
	token := loginAdmin(t, server)

	for _, body := range []string{
		`{"category":"patinage","prompt":"Q?","choices":["a","b","c"],"answerIndex":0}`,
		`{"category":"club","prompt":"Q?","choices":["a","b"],"answerIndex":0}`,
		`{"category":"club","prompt":"Q?","choices":["a","b","c"],"answerIndex":3}`,
		`{"category":"club","prompt":"  ","choices":["a","b","c"],"answerIndex":0}`,
	} {
		resp := adminRequest(t, http.MethodPost, server.URL+"/api/admin/questions", token, []byte(body))
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 for %s, got %d", body, resp.StatusCode)
		}
	}
}

func TestAdminUpdateMissingQuestion(t *testing.T) {
	server, _ := newAdminTestServer(t)
	token := loginAdmin(t, server)

	resp := adminRequest(t, http.MethodPut, server.URL+"/api/admin/questions/nope", token,
		[]byte(`{"prompt":"x"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAdminImportReportsLineErrors(t *testing.T) {
	server, _ := newAdminTestServer(t)
	token := loginAdmin(t, server)

	csv := strings.Join([]string{
		"club;Bonne question?;a;b;c;0",
		"patinage;Mauvaise?;a;b;c;0",
		"foot;Encore bonne?;x;y;z;2",
	}, "\n")

	resp := adminRequest(t, http.MethodPost, server.URL+"/api/admin/import", token, []byte(csv))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import: expected 200, got %d", resp.StatusCode)
	}

	var report struct {
		Created    int           `json:"created"`
		Failed     int           `json:"failed"`
		LineErrors []ImportError `json:"lineErrors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("import response: %v", err)
	}
	resp.Body.Close()

	if report.Created != 2 || report.Failed != 0 {
		t.Fatalf("unexpected tally: %+v", report)
	}
	if len(report.LineErrors) != 1 || report.LineErrors[0].Line != 2 {
		t.Fatalf("unexpected line errors: %+v", report.LineErrors)
	}
}

func TestAdminExportServesCSV(t *testing.T) {
	server, store := newAdminTestServer(t)
	token := loginAdmin(t, server)

	mustCreate(t, store, clubQuestion("Exportée?"))

	resp := adminRequest(t, http.MethodGet, server.URL+"/api/admin/export", token, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv, got %q", ct)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(buf.String(), "Exportée?") {
		t.Fatalf("exported CSV missing the question: %q", buf.String())
	}
}
