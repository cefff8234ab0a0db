package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/geostash/geostash/internal/items"
	"github.com/geostash/geostash/internal/models"
)

const maxImageSize = 10 << 20 // 10 MB

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Handler holds the HTTP layer. It parses requests, calls the lifecycle
// manager and maps its typed errors to status codes; all business rules
// live in the items package.
type Handler struct {
	svc    *items.Service
	checks map[string]HealthCheck
}

// NewHandler creates a handler. checks maps dependency names to health
// probes for the /health endpoint.
func NewHandler(svc *items.Service, checks map[string]HealthCheck) *Handler {
	return &Handler{svc: svc, checks: checks}
}

// CreateItemHandler handles POST /items (multipart form).
func (h *Handler) CreateItemHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		log.Error().Err(err).Msg("Failed to parse create form")
		writeJSONError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	in := items.CreateInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Latitude:    r.FormValue("latitude"),
		Longitude:   r.FormValue("longitude"),
		Visibility:  r.FormValue("visibility"),
		Category:    r.FormValue("category"),
	}

	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			writeJSONError(w, http.StatusBadRequest, "only image files are allowed")
			return
		}

		in.Image = file
		in.ImageName = header.Filename
		in.ImageContentType = contentType
		in.ImageSize = header.Size
	}

	result, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GetItemHandler handles GET /items/{id}?key=&admin_key=.
func (h *Handler) GetItemHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	query := r.URL.Query()
	cred := items.ResolveCredential(query.Get("key"), query.Get("admin_key"))

	item, err := h.svc.Get(r.Context(), id, cred)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// PublicItemsHandler handles GET /public/items.
func (h *Handler) PublicItemsHandler(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.ListPublic(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": summaries})
}

// AdminItemsHandler handles GET /admin/items?admin_key=.
func (h *Handler) AdminItemsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.AdminList(r.Context(), r.URL.Query().Get("admin_key"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if records == nil {
		records = []*models.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": records})
}

// DeleteItemHandler handles DELETE /items/{id}?admin_key=.
func (h *Handler) DeleteItemHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.svc.Delete(r.Context(), id, r.URL.Query().Get("admin_key")); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// BulkDeleteRequest is the body of POST /admin/items/delete.
type BulkDeleteRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// BulkDeleteHandler handles POST /admin/items/delete?admin_key=.
func (h *Handler) BulkDeleteHandler(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.ItemIDs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "item_ids is required")
		return
	}

	result, err := h.svc.BulkDelete(r.Context(), req.ItemIDs, r.URL.Query().Get("admin_key"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HealthCheckHandler returns health status of all dependencies.
func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "healthy"
	checks := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = "unhealthy"
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// writeError maps lifecycle errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validationErr *items.ValidationError
	var upstreamErr *items.UpstreamError

	switch {
	case errors.As(err, &validationErr):
		writeJSONError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, items.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, items.ErrCredentialRequired):
		writeJSONError(w, http.StatusUnauthorized, "secret key required")
	case errors.Is(err, items.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "invalid secret key")
	case errors.Is(err, items.ErrAdminUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, "invalid admin key")
	case errors.As(err, &upstreamErr):
		log.Error().Err(err).Msg("Upstream storage error")
		writeJSONError(w, http.StatusBadGateway, "storage unavailable")
	default:
		log.Error().Err(err).Msg("Unhandled error")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
