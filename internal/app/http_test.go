package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"atelier/api/internal/auth"
	"atelier/api/internal/store"
)

func newTestServer(fs *fakeStore) *HTTPServer {
	return NewHTTPServer(newTestService(fs), "*", zerolog.Nop())
}

func testToken(t *testing.T, company *string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte("test-secret"), "user-1", company, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

func doRequest(t *testing.T, server *HTTPServer, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&fakeStore{})
	recorder := doRequest(t, server, http.MethodGet, "/api/health", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}

func TestEditorRoutesRequireToken(t *testing.T) {
	server := newTestServer(&fakeStore{})
	recorder := doRequest(t, server, http.MethodGet, "/api/projects", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestPublicViewNeedsNoToken(t *testing.T) {
	fs := &fakeStore{
		publicViewFn: func(_ context.Context, projectID string, company *string) (store.ProjectView, error) {
			if company != nil {
				t.Fatalf("unexpected company scope %q", *company)
			}
			return store.ProjectView{Record: store.EffectiveRecord{ID: projectID, Name: "Harbour"}}, nil
		},
	}
	server := newTestServer(fs)
	recorder := doRequest(t, server, http.MethodGet, "/api/public/projects/p1", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	var payload struct {
		Record struct {
			Name string `json:"name"`
		} `json:"record"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Record.Name != "Harbour" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestListProjectsPassesIdentity(t *testing.T) {
	fs := &fakeStore{
		listProjectsFn: func(_ context.Context, filter, userID string) ([]store.ProjectListItem, error) {
			if filter != "harbour" || userID != "user-1" {
				t.Fatalf("unexpected list args: filter=%q user=%q", filter, userID)
			}
			return []store.ProjectListItem{{ID: "p1", Name: "Harbour", Published: true}}, nil
		},
	}
	server := newTestServer(fs)
	recorder := doRequest(t, server, http.MethodGet, "/api/projects?filter=harbour", testToken(t, nil), "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	var items []listItemResponse
	if err := json.NewDecoder(recorder.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 || items[0].ID != "p1" || !items[0].Published {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestCustomiseWithoutCompanyFails(t *testing.T) {
	server := newTestServer(&fakeStore{})
	recorder := doRequest(t, server, http.MethodPost, "/api/projects/p1/introduction/customise", testToken(t, nil), "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Code != "COMPANY_REQUIRED" {
		t.Fatalf("code = %q, want COMPANY_REQUIRED", payload.Code)
	}
}

func TestCustomiseContentUsesCompanyParam(t *testing.T) {
	fs := &fakeStore{
		customiseContentFn: func(_ context.Context, projectID, company string) ([]store.Block, error) {
			if projectID != "p1" || company != "nordics" {
				t.Fatalf("unexpected args: project=%q company=%q", projectID, company)
			}
			return []store.Block{{ID: "b1", Body: "<h3>Default text</h3>"}}, nil
		},
	}
	server := newTestServer(fs)
	recorder := doRequest(t, server, http.MethodPost, "/api/projects/p1/content/customise?company=nordics", testToken(t, nil), "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}

func TestPublishWithoutDraftMapsTo400(t *testing.T) {
	fs := &fakeStore{
		publishFn: func(context.Context, string, *string) (store.ProjectView, error) {
			return store.ProjectView{}, store.ErrNoDraft
		},
	}
	server := newTestServer(fs)
	recorder := doRequest(t, server, http.MethodPost, "/api/projects/p1/publish", testToken(t, nil), "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Code != "NO_DRAFT" {
		t.Fatalf("code = %q, want NO_DRAFT", payload.Code)
	}
}

func TestMissingProjectMapsTo404(t *testing.T) {
	fs := &fakeStore{
		openProjectFn: func(context.Context, string, *string) (store.ProjectView, error) {
			return store.ProjectView{}, sql.ErrNoRows
		},
	}
	server := newTestServer(fs)
	recorder := doRequest(t, server, http.MethodGet, "/api/projects/missing", testToken(t, nil), "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
}

func TestInsertBlockPassesAfter(t *testing.T) {
	fs := &fakeStore{
		insertBlockFn: func(_ context.Context, projectID string, company *string, after *string) (store.Block, error) {
			if projectID != "p1" || after == nil || *after != "b1" {
				t.Fatalf("unexpected insert args: project=%q after=%v", projectID, after)
			}
			return store.Block{ID: "b2", Body: "<h3>Default text</h3>"}, nil
		},
	}
	server := newTestServer(fs)
	recorder := doRequest(t, server, http.MethodPost, "/api/projects/p1/content", testToken(t, nil), `{"after":"b1"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", recorder.Code)
	}
	var block blockResponse
	if err := json.NewDecoder(recorder.Body).Decode(&block); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if block.ID != "b2" {
		t.Fatalf("unexpected block: %+v", block)
	}
}

func TestUpdateBlockTextRoute(t *testing.T) {
	fs := &fakeStore{
		updateBlockTextFn: func(_ context.Context, blockID, body string) (store.Block, error) {
			if blockID != "b1" || body != "<p>Updated</p>" {
				t.Fatalf("unexpected update args: block=%q body=%q", blockID, body)
			}
			return store.Block{ID: blockID, Body: body}, nil
		},
	}
	server := newTestServer(fs)
	recorder := doRequest(t, server, http.MethodPut, "/api/content/b1/text", testToken(t, nil), `{"body":"<p>Updated</p>"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}

func TestCreateProjectRoute(t *testing.T) {
	fs := &fakeStore{
		createProjectFn: func(_ context.Context, input store.CreateProjectInput) (string, error) {
			if input.Name != "Harbour" || input.Procurement != "public" {
				t.Fatalf("unexpected create input: %+v", input)
			}
			return "p1", nil
		},
	}
	server := newTestServer(fs)
	recorder := doRequest(t, server, http.MethodPost, "/api/projects", testToken(t, nil), `{"name":"Harbour"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", recorder.Code)
	}
}

func TestCompanyRegistryRoutes(t *testing.T) {
	fs := &fakeStore{
		listCompaniesFn: func(context.Context) ([]string, error) {
			return []string{"nordics", "western"}, nil
		},
		searchCompaniesFn: func(_ context.Context, filter string, exclude []string) ([]string, error) {
			if filter != "nor" || len(exclude) != 1 || exclude[0] != "western" {
				t.Fatalf("unexpected search args: filter=%q exclude=%v", filter, exclude)
			}
			return []string{"nordics"}, nil
		},
	}
	server := newTestServer(fs)

	recorder := doRequest(t, server, http.MethodGet, "/api/companies", testToken(t, nil), "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	var names []string
	if err := json.NewDecoder(recorder.Body).Decode(&names); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(names) != 2 || names[0] != "nordics" {
		t.Fatalf("unexpected names: %v", names)
	}

	recorder = doRequest(t, server, http.MethodGet, "/api/companies?filter=nor&exclude=western", testToken(t, nil), "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	names = nil
	if err := json.NewDecoder(recorder.Body).Decode(&names); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(names) != 1 || names[0] != "nordics" {
		t.Fatalf("unexpected filtered names: %v", names)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	server := newTestServer(&fakeStore{})
	recorder := doRequest(t, server, http.MethodGet, "/api/unknown", testToken(t, nil), "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
}
