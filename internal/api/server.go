// Package api exposes the journal and export operations over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/havenlog/havenlog/export"
	"github.com/havenlog/havenlog/internal/auth"
	"github.com/havenlog/havenlog/internal/blob"
	"github.com/havenlog/havenlog/internal/store"
)

const maxUploadBytes = 32 << 20

// Server handles HTTP requests for the journal API
type Server struct {
	store    *store.Store
	blobs    *blob.Store
	auth     auth.Authorizer
	exporter *export.Exporter
	addr     string
}

// New creates a new API server
func New(s *store.Store, b *blob.Store, a auth.Authorizer, e *export.Exporter, addr string) *Server {
	return &Server{store: s, blobs: b, auth: a, exporter: e, addr: addr}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /entries", s.authed(s.listEntries))
	mux.HandleFunc("POST /entries", s.authed(s.addEntry))
	mux.HandleFunc("GET /entries/{id}", s.authed(s.getEntry))
	mux.HandleFunc("POST /entries/{id}/evidence", s.authed(s.addEvidence))
	mux.HandleFunc("GET /entries/{id}/export", s.authed(s.exportEntry))

	// Signed URLs carry their own credentials.
	mux.HandleFunc("GET /blobs/{ref}", s.serveBlob)

	mux.HandleFunc("GET /health", s.health)
	return mux
}

// Run starts the HTTP server
func (s *Server) Run() error {
	log.Printf("listening on %s", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

func (s *Server) authed(h func(http.ResponseWriter, *http.Request, auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, err := s.auth.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		h(w, r, ident)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// EntryRequest is the request body for creating an entry
type EntryRequest struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	OccurredAt   time.Time `json:"occurred_at"`
	Location     string    `json:"location"`
	SafetyRating int       `json:"safety_rating"`
	MoodRating   int       `json:"mood_rating"`
	Tags         []string  `json:"tags"`
	StateBefore  string    `json:"state_before"`
	StateAfter   string    `json:"state_after"`
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.OccurredAt.IsZero() {
		req.OccurredAt = time.Now()
	}

	id, err := s.store.CreateEntry(r.Context(), ident.UserID, export.EntryView{
		Title:        req.Title,
		Description:  req.Description,
		OccurredAt:   req.OccurredAt,
		Location:     req.Location,
		SafetyRating: req.SafetyRating,
		MoodRating:   req.MoodRating,
		Tags:         req.Tags,
		StateBefore:  req.StateBefore,
		StateAfter:   req.StateAfter,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// EntryResponse mirrors EntryRequest's field naming for reads.
type EntryResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	OccurredAt   time.Time `json:"occurred_at"`
	Location     string    `json:"location"`
	SafetyRating int       `json:"safety_rating"`
	MoodRating   int       `json:"mood_rating"`
	Tags         []string  `json:"tags"`
	StateBefore  string    `json:"state_before"`
	StateAfter   string    `json:"state_after"`
}

func entryResponse(v export.EntryView) EntryResponse {
	return EntryResponse{
		ID:           v.ID,
		Title:        v.Title,
		Description:  v.Description,
		OccurredAt:   v.OccurredAt,
		Location:     v.Location,
		SafetyRating: v.SafetyRating,
		MoodRating:   v.MoodRating,
		Tags:         v.Tags,
		StateBefore:  v.StateBefore,
		StateAfter:   v.StateAfter,
	}
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	view, err := s.store.Entry(r.Context(), ident.UserID, r.PathValue("id"))
	if errors.Is(err, export.ErrNotFound) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entryResponse(view))
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	views, err := s.store.ListEntries(r.Context(), ident.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	entries := make([]EntryResponse, 0, len(views))
	for _, v := range views {
		entries = append(entries, entryResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) addEvidence(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	entryID := r.PathValue("id")
	if _, err := s.store.Entry(r.Context(), ident.UserID, entryID); err != nil {
		if errors.Is(err, export.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read upload")
		return
	}

	ref, err := s.blobs.Save(data, filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if v := r.FormValue("mime_type"); v != "" {
		mimeType = v
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	id, err := s.store.AddEvidence(r.Context(), entryID, export.Evidence{
		FileName:   header.Filename,
		MIMEType:   mimeType,
		Caption:    r.FormValue("caption"),
		Transcript: r.FormValue("transcript"),
		Ref:        ref,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "ref": ref})
}

// exportEntry streams a finished export artifact. Paged output is gated
// to upgraded tiers; the exporter rejects it before loading any data.
func (s *Server) exportEntry(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	q := r.URL.Query()
	format := q.Get("format")
	switch format {
	case "", "text":
		format = export.FormatText
	case "pdf", "paged":
		format = export.FormatPaged
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}

	req := export.Request{
		EntryID:      r.PathValue("id"),
		Format:       format,
		Redact:       boolParam(q.Get("redact"), false),
		IncludeLinks: boolParam(q.Get("includeLinks"), true),
		AllowPaged:   auth.PagedAllowed(ident.Tier),
	}

	art, err := s.exporter.Export(r.Context(), ident.UserID, req)
	switch {
	case errors.Is(err, export.ErrNotFound):
		writeError(w, http.StatusNotFound, "entry not found")
		return
	case errors.Is(err, export.ErrForbidden):
		writeError(w, http.StatusForbidden, "paged exports require an upgraded account")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(art.Data)
}

func (s *Server) serveBlob(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	q := r.URL.Query()
	exp, err := strconv.ParseInt(q.Get("exp"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing expiry")
		return
	}

	switch err := s.blobs.Verify(ref, exp, q.Get("sig")); {
	case errors.Is(err, blob.ErrBadRef):
		writeError(w, http.StatusBadRequest, "malformed ref")
		return
	case errors.Is(err, blob.ErrExpiredURL):
		writeError(w, http.StatusForbidden, "url expired")
		return
	case err != nil:
		writeError(w, http.StatusForbidden, "invalid signature")
		return
	}

	data, err := s.blobs.Download(r.Context(), ref)
	if errors.Is(err, blob.ErrNoBlob) {
		writeError(w, http.StatusNotFound, "blob not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func boolParam(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
