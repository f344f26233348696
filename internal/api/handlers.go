package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/CedarPulpit/core/errors"
	"github.com/FocuswithJustin/CedarPulpit/internal/logging"
	"github.com/FocuswithJustin/CedarPulpit/internal/storage"
	"github.com/FocuswithJustin/CedarPulpit/internal/storage/sqlite"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Sermons int64  `json:"sermons"`
	Cached  int64  `json:"cached_chapters"`
	Driver  string `json:"sqlite_driver"`
}

// ChapterResponse is the body of a chapter lookup.
type ChapterResponse struct {
	Reference   string `json:"reference"`
	Text        string `json:"text"`
	Translation string `json:"translation"`
	Substituted bool   `json:"substituted"`
	FromCache   bool   `json:"from_cache"`
}

// CacheStatsResponse is the body of GET /cache/stats.
type CacheStatsResponse struct {
	Entries     int64                    `json:"entries"`
	TopChapters []storage.PopularChapter `json:"top_chapters"`
	Driver      sqlite.Info              `json:"driver"`
}

// BulkImportResponse is the body of POST /sermons/bulk.
type BulkImportResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

const maxRequestBody = 1 << 20 // 1 MiB

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "Cedar Pulpit API",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"GET /sermons",
			"POST /sermons",
			"POST /sermons/bulk",
			"GET /sermons/:id",
			"PUT /sermons/:id",
			"DELETE /sermons/:id",
			"GET /bible/:book/:chapter",
			"DELETE /cache",
			"GET /cache/stats",
			"POST /auth/token",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	ctx := r.Context()
	page, err := s.sermons.List(ctx, 1, 1)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Health check failed")
		return
	}
	cached, err := s.cache.Len(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Health check failed")
		return
	}

	respond(w, http.StatusOK, HealthInfo{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Sermons: page.Total,
		Cached:  cached,
		Driver:  sqlite.DriverType(),
	})
}

func (s *Server) handleSermons(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSermons(w, r)
	case http.MethodPost:
		s.createSermon(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

func (s *Server) listSermons(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 50)

	result, err := s.sermons.List(r.Context(), page, pageSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to list sermons")
		return
	}
	respondWithTotal(w, http.StatusOK, result, int(result.Total))
}

func (s *Server) createSermon(w http.ResponseWriter, r *http.Request) {
	var rec storage.StoredSermon
	if !decodeBody(w, r, &rec) {
		return
	}

	created, err := s.sermons.Create(r.Context(), &rec)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	s.hub.Broadcast(EventMessage{
		Type: "sermon_updated",
		Data: map[string]interface{}{"id": created.ID, "action": "created"},
	})
	respond(w, http.StatusCreated, created)
}

func (s *Server) handleSermonBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	var recs []*storage.StoredSermon
	if !decodeBody(w, r, &recs) {
		return
	}

	imported, skipped, err := s.sermons.BulkImport(r.Context(), recs)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Bulk import failed")
		return
	}
	s.hub.Broadcast(EventMessage{
		Type: "sync_complete",
		Data: map[string]interface{}{"imported": imported, "skipped": skipped},
	})
	respond(w, http.StatusOK, BulkImportResponse{Imported: imported, Skipped: skipped})
}

func (s *Server) handleSermonByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/sermons/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.sermons.Get(r.Context(), id)
		if err != nil {
			respondStorageError(w, err)
			return
		}
		respond(w, http.StatusOK, rec)

	case http.MethodPut:
		var rec storage.StoredSermon
		if !decodeBody(w, r, &rec) {
			return
		}
		rec.ID = id
		updated, err := s.sermons.Update(r.Context(), &rec)
		if err != nil {
			respondStorageError(w, err)
			return
		}
		s.hub.Broadcast(EventMessage{
			Type: "sermon_updated",
			Data: map[string]interface{}{"id": id, "action": "updated"},
		})
		respond(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := s.sermons.Delete(r.Context(), id); err != nil {
			respondStorageError(w, err)
			return
		}
		s.hub.Broadcast(EventMessage{
			Type: "sermon_updated",
			Data: map[string]interface{}{"id": id, "action": "deleted"},
		})
		respond(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})

	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET, PUT, and DELETE are allowed")
	}
}

// handleBible serves GET /bible/{book}/{chapter}?translation=code,
// reading through the server-side cache and filling misses from the
// content providers.
func (s *Server) handleBible(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/bible/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Expected /bible/:book/:chapter")
		return
	}
	book := parts[0]
	chapter, err := strconv.Atoi(parts[1])
	if err != nil || chapter < 1 {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Chapter must be a positive integer")
		return
	}

	sel := s.selector.Select(r.URL.Query().Get("translation"))
	ctx := r.Context()

	if ch, ok, err := s.cache.Get(ctx, book, chapter, sel.Translation); err == nil && ok {
		respond(w, http.StatusOK, ChapterResponse{
			Reference:   ch.Reference,
			Text:        ch.Text,
			Translation: ch.Translation,
			Substituted: sel.Substituted,
			FromCache:   true,
		})
		return
	}

	ch, err := sel.Provider.FetchChapter(ctx, book, chapter, sel.Translation)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Chapter not found")
			return
		}
		logging.ErrorContext(ctx, "chapter fetch failed",
			"book", book, "chapter", chapter, "error", err)
		respondError(w, http.StatusBadGateway, "UPSTREAM", "Content provider unavailable")
		return
	}
	if err := s.cache.Set(ctx, book, chapter, sel.Translation, ch); err != nil {
		logging.WarnContext(ctx, "failed to cache fetched chapter", "error", err)
	}

	respond(w, http.StatusOK, ChapterResponse{
		Reference:   ch.Reference,
		Text:        ch.Text,
		Translation: ch.Translation,
		Substituted: sel.Substituted,
	})
}

// handleCache serves DELETE /cache?days=N.
func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only DELETE is allowed")
		return
	}

	daysParam := r.URL.Query().Get("days")
	if daysParam == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Missing days parameter")
		return
	}
	days, err := strconv.ParseFloat(daysParam, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Days must be a number")
		return
	}

	removed, err := s.cache.ClearOld(r.Context(), days)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Cache clear failed")
		return
	}
	s.hub.Broadcast(EventMessage{
		Type: "cache_cleared",
		Data: map[string]interface{}{"days": days, "removed": removed},
	})
	respond(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	ctx := r.Context()
	entries, err := s.cache.Len(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to read cache stats")
		return
	}
	top, err := s.cache.TopChapters(ctx, 10)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to read cache stats")
		return
	}

	respond(w, http.StatusOK, CacheStatsResponse{
		Entries:     entries,
		TopChapters: top,
		Driver:      sqlite.GetInfo(),
	})
}

// handleAuthToken exchanges valid credentials for a bearer token. The
// request itself authenticates through AuthMiddleware like any other.
func (s *Server) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	var req struct {
		Subject string `json:"subject"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Subject == "" {
		req.Subject = "pulpit-client"
	}

	token, err := IssueToken(s.cfg.Auth, req.Subject)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Bearer tokens not configured")
		return
	}
	respond(w, http.StatusOK, map[string]string{"token": token})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer io.Copy(io.Discard, body)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Malformed JSON body")
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func respondStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, errors.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Storage operation failed")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondWithTotal(w http.ResponseWriter, status int, data interface{}, total int) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
