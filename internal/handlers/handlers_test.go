package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/geostash/geostash/internal/items"
	"github.com/geostash/geostash/internal/models"
)

const testAdminKey = "test-admin-key"

type memRecords struct {
	mu    sync.Mutex
	items map[string]*models.Item
}

func newMemRecords() *memRecords {
	return &memRecords{items: make(map[string]*models.Item)}
}

func (m *memRecords) Save(ctx context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *item
	m.items[item.ID] = &c
	return nil
}

func (m *memRecords) Get(ctx context.Context, id string) (*models.Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, false, nil
	}
	c := *item
	return &c, true, nil
}

func (m *memRecords) ListPublic(ctx context.Context) ([]*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Item
	for _, item := range m.items {
		if item.Visibility == models.VisibilityPublic {
			c := *item
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memRecords) ListAll(ctx context.Context) ([]*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Item
	for _, item := range m.items {
		c := *item
		out = append(out, &c)
	}
	return out, nil
}

func (m *memRecords) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

type fakeBlobs struct{}

func (fakeBlobs) Upload(ctx context.Context, reader io.Reader, filename, contentType string, size int64) (string, error) {
	return "https://blobs.test/geostash-images/items/" + filename, nil
}

func (fakeBlobs) Delete(ctx context.Context, imageURL string) error { return nil }

func newTestRouter(records *memRecords, checks map[string]HealthCheck) *mux.Router {
	svc := items.NewService(fakeBlobs{}, records, nil, testAdminKey)
	h := NewHandler(svc, checks)

	r := mux.NewRouter()
	r.HandleFunc("/items", h.CreateItemHandler).Methods("POST")
	r.HandleFunc("/items/{id}", h.GetItemHandler).Methods("GET")
	r.HandleFunc("/items/{id}", h.DeleteItemHandler).Methods("DELETE")
	r.HandleFunc("/public/items", h.PublicItemsHandler).Methods("GET")
	r.HandleFunc("/admin/items", h.AdminItemsHandler).Methods("GET")
	r.HandleFunc("/admin/items/delete", h.BulkDeleteHandler).Methods("POST")
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")
	return r
}

func createForm(t *testing.T, fields map[string]string, imageContentType string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("failed to write field %s: %v", name, err)
		}
	}

	if imageContentType != "" {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, "item.jpg"))
		header.Set("Content-Type", imageContentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create image part: %v", err)
		}
		if _, err := part.Write([]byte("fake image bytes")); err != nil {
			t.Fatalf("failed to write image bytes: %v", err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func privateFields() map[string]string {
	return map[string]string{
		"title":       "Keys",
		"description": "Left on bench",
		"latitude":    "40.71",
		"longitude":   "-74.00",
		"visibility":  "PRIVATE",
	}
}

func doRequest(router *mux.Router, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateItemEndpoint(t *testing.T) {
	router := newTestRouter(newMemRecords(), nil)

	body, contentType := createForm(t, privateFields(), "image/jpeg")
	req := httptest.NewRequest(http.MethodPost, "/items", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(router, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		ItemID        string `json:"item_id"`
		SecretKey     string `json:"secret_key"`
		SecretURLPath string `json:"secret_url_path"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.ItemID == "" || resp.SecretKey == "" {
		t.Errorf("incomplete create response: %+v", resp)
	}
	if want := fmt.Sprintf("/items/%s?key=%s", resp.ItemID, resp.SecretKey); resp.SecretURLPath != want {
		t.Errorf("secret_url_path = %q, want %q", resp.SecretURLPath, want)
	}
}

func TestCreatePublicItemEndpointOmitsSecret(t *testing.T) {
	router := newTestRouter(newMemRecords(), nil)

	fields := privateFields()
	fields["visibility"] = "PUBLIC"
	fields["category"] = "keys"
	body, contentType := createForm(t, fields, "image/jpeg")
	req := httptest.NewRequest(http.MethodPost, "/items", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(router, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Errorf("public item response leaks secret material: %s", rec.Body.String())
	}
}

func TestCreateItemValidationError(t *testing.T) {
	router := newTestRouter(newMemRecords(), nil)

	fields := privateFields()
	delete(fields, "description")
	body, contentType := createForm(t, fields, "image/jpeg")
	req := httptest.NewRequest(http.MethodPost, "/items", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(router, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "description") {
		t.Errorf("validation error does not name the field: %s", rec.Body.String())
	}
}

func TestCreateItemRejectsNonImageUpload(t *testing.T) {
	router := newTestRouter(newMemRecords(), nil)

	body, contentType := createForm(t, privateFields(), "text/plain")
	req := httptest.NewRequest(http.MethodPost, "/items", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(router, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateItemWithoutImage(t *testing.T) {
	router := newTestRouter(newMemRecords(), nil)

	body, contentType := createForm(t, privateFields(), "")
	req := httptest.NewRequest(http.MethodPost, "/items", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(router, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "image") {
		t.Errorf("error does not name the image field: %s", rec.Body.String())
	}
}

func seedRecords() *memRecords {
	records := newMemRecords()
	records.items["pub-1"] = &models.Item{
		ID: "pub-1", Visibility: models.VisibilityPublic,
		Title: "Found keys", Category: "keys", Latitude: 52.23, Longitude: 21.01,
	}
	records.items["priv-1"] = &models.Item{
		ID: "priv-1", Visibility: models.VisibilityPrivate,
		Title: "Keys", SecretKey: "correct-secret",
	}
	return records
}

func TestGetItemEndpoint(t *testing.T) {
	router := newTestRouter(seedRecords(), nil)

	tests := []struct {
		name       string
		url        string
		wantStatus int
	}{
		{"public without key", "/items/pub-1", http.StatusOK},
		{"private without key", "/items/priv-1", http.StatusUnauthorized},
		{"private with correct key", "/items/priv-1?key=correct-secret", http.StatusOK},
		{"private with wrong key", "/items/priv-1?key=wrong", http.StatusForbidden},
		{"private with admin key", "/items/priv-1?admin_key=" + testAdminKey, http.StatusOK},
		{"unknown item", "/items/nope?key=whatever", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body: %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), "secret_key") {
				t.Errorf("retrieval response echoes secret_key: %s", rec.Body.String())
			}
		})
	}
}

func TestPublicItemsEndpoint(t *testing.T) {
	router := newTestRouter(seedRecords(), nil)

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/public/items", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Items []models.PublicItemSummary `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ItemID != "pub-1" {
		t.Errorf("unexpected public items: %+v", resp.Items)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Errorf("public listing leaks secret material: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "priv-1") {
		t.Errorf("public listing leaks a private item: %s", rec.Body.String())
	}
}

func TestAdminItemsEndpoint(t *testing.T) {
	router := newTestRouter(seedRecords(), nil)

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/admin/items?admin_key=wrong", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "priv-1") {
		t.Error("unauthorized admin listing returned data")
	}

	rec = doRequest(router, httptest.NewRequest(http.MethodGet, "/admin/items?admin_key="+testAdminKey, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Items []*models.Item `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(resp.Items))
	}
	if !strings.Contains(rec.Body.String(), "correct-secret") {
		t.Error("admin listing missing secret keys")
	}
}

func TestDeleteItemEndpoint(t *testing.T) {
	records := seedRecords()
	router := newTestRouter(records, nil)

	rec := doRequest(router, httptest.NewRequest(http.MethodDelete, "/items/priv-1?admin_key=wrong", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = doRequest(router, httptest.NewRequest(http.MethodDelete, "/items/nope?admin_key="+testAdminKey, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rec = doRequest(router, httptest.NewRequest(http.MethodDelete, "/items/priv-1?admin_key="+testAdminKey, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, ok := records.items["priv-1"]; ok {
		t.Error("item still present after delete")
	}
}

func TestBulkDeleteEndpoint(t *testing.T) {
	records := seedRecords()
	router := newTestRouter(records, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/items/delete?admin_key="+testAdminKey, strings.NewReader(`{}`))
	rec := doRequest(router, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty ids: status = %d, want 400", rec.Code)
	}

	body := `{"item_ids": ["pub-1", "missing", "priv-1"]}`
	req = httptest.NewRequest(http.MethodPost, "/admin/items/delete?admin_key=wrong", strings.NewReader(body))
	rec = doRequest(router, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong admin key: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/items/delete?admin_key="+testAdminKey, strings.NewReader(body))
	rec = doRequest(router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp items.BulkDeleteResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(resp.Deleted) != 2 {
		t.Errorf("deleted = %v, want 2 ids", resp.Deleted)
	}
	if len(resp.Failed) != 1 || resp.Failed[0].ItemID != "missing" {
		t.Errorf("failed = %+v, want one failure for missing", resp.Failed)
	}
}

func TestHealthEndpoint(t *testing.T) {
	checks := map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
		"storage":  func(ctx context.Context) error { return errors.New("bucket down") },
	}
	router := newTestRouter(newMemRecords(), checks)

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", resp.Status)
	}
	if resp.Checks["database"] != "ok" {
		t.Errorf("database check = %q, want ok", resp.Checks["database"])
	}
	if resp.Checks["storage"] == "ok" {
		t.Error("failing storage check reported ok")
	}
}
