// Package web serves the upload / process / download HTTP API.
package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"yashubustudio/papersift/papersift"
	"yashubustudio/papersift/selection"
)

const (
	sessionCookie = "session_id"
	sessionHeader = "X-Session-ID"
)

// Server wires the HTTP handlers to an embedder pool and a session store.
type Server struct {
	cfg    papersift.Config
	pool   *papersift.EmbedderPool
	store  *SessionStore
	logger *log.Logger
	mux    *http.ServeMux
}

// NewServer creates a server. The pool is owned by the caller.
func NewServer(cfg papersift.Config, pool *papersift.EmbedderPool, logger *log.Logger) (*Server, error) {
	cfg.ApplyDefaults()
	ttl, err := time.ParseDuration(cfg.Web.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("web.sessionTtl: %w", err)
	}
	s := &Server{
		cfg:    cfg,
		pool:   pool,
		store:  NewSessionStore(ttl),
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Sessions exposes the session store.
func (s *Server) Sessions() *SessionStore { return s.store }

// Handler returns the root handler including request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /process", s.handleProcess)
	s.mux.HandleFunc("GET /download/{format}", s.handleDownload)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

type uploadResponse struct {
	Success    bool     `json:"success"`
	Filename   string   `json:"filename"`
	PaperCount int      `json:"paper_count"`
	SessionID  string   `json:"session_id"`
	Columns    []string `json:"columns"`
	Warnings   []string `json:"warnings,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.cfg.Web.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", s.cfg.Web.MaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		writeError(w, http.StatusBadRequest, "only .csv files are accepted")
		return
	}
	lib, err := papersift.ParseLibrary(file, ',', papersift.ParseOptions{
		Candidates: s.cfg.Columns,
		Separator:  s.cfg.Separator,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := papersift.ValidateLibrary(lib)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess := s.store.Create(name, lib)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logf("session %s: uploaded %s (%d papers)", sess.ID, name, rep.Total)
	writeJSON(w, http.StatusOK, uploadResponse{
		Success:    true,
		Filename:   name,
		PaperCount: rep.Total,
		SessionID:  sess.ID,
		Columns:    lib.Header,
		Warnings:   rep.Warnings(),
	})
}

type processRequest struct {
	ReferenceText   string   `json:"reference_text"`
	ThresholdMethod string   `json:"threshold_method"`
	CustomThreshold *float64 `json:"custom_threshold"`
	Model           string   `json:"model"`
}

type processResponse struct {
	Success       bool                 `json:"success"`
	Model         string               `json:"model"`
	Strategy      string               `json:"strategy"`
	Stats         selection.Statistics `json:"stats"`
	Similarities  []float64            `json:"similarities"`
	Threshold     float64              `json:"threshold"`
	SelectedCount int                  `json:"selected_count"`
	TotalCount    int                  `json:"total_count"`
	Histogram     []selection.Bin      `json:"histogram"`
	Reused        bool                 `json:"reused_embeddings"`
}

func (req processRequest) spec() (selection.ThresholdSpec, error) {
	if req.CustomThreshold != nil {
		spec := selection.Fixed{Value: *req.CustomThreshold}
		return spec, selection.Validate(spec)
	}
	return selection.ParseThresholdSpec(req.ThresholdMethod)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "no active session; upload a file first")
		return
	}
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	reference := strings.TrimSpace(req.ReferenceText)
	if reference == "" {
		writeError(w, http.StatusBadRequest, papersift.ErrEmptyReference.Error())
		return
	}
	spec, err := req.spec()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	embedder, err := s.pool.Get(req.Model)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load model: "+err.Error())
		return
	}
	svc, err := papersift.NewService(embedder, s.cfg, s.logger)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	key := encodingKey(embedder.ModelID(), reference)
	reused := sess.encoding != nil && sess.encKey == key
	if !reused {
		enc, err := svc.Encode(r.Context(), reference, sess.library.Papers, nil)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, papersift.ErrTooManyCandidates) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err.Error())
			return
		}
		sess.encoding, sess.encKey = enc, key
	}
	res, err := sess.encoding.Select(spec)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess.result = &res
	s.logf("session %s: %s selected %d of %d (reused=%t)", sess.ID, spec, len(res.Selected), len(sess.encoding.Scores), reused)

	writeJSON(w, http.StatusOK, processResponse{
		Success:       true,
		Model:         sess.encoding.ModelID,
		Strategy:      spec.String(),
		Stats:         res.Stats,
		Similarities:  sess.encoding.Scores,
		Threshold:     res.Cutoff,
		SelectedCount: len(res.Selected),
		TotalCount:    len(sess.encoding.Scores),
		Histogram:     selection.Histogram(sess.encoding.Scores, s.cfg.Web.HistogramBin),
		Reused:        reused,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	format := r.PathValue("format")
	if format != "csv" && format != "bib" {
		writeError(w, http.StatusNotFound, "unknown format "+format)
		return
	}
	sess, ok := s.session(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "no active session; upload a file first")
		return
	}
	sess.mu.Lock()
	lib, res := sess.library, sess.result
	sess.mu.Unlock()
	if res == nil {
		writeError(w, http.StatusBadRequest, "nothing processed yet")
		return
	}

	base := strings.TrimSuffix(sess.Filename, filepath.Ext(sess.Filename))
	var buf bytes.Buffer
	contentType, filename := "text/csv; charset=utf-8", base+"_selected.csv"
	var err error
	if format == "bib" {
		contentType, filename = "application/x-bibtex; charset=utf-8", base+"_selected.bib"
		_, err = papersift.WriteSelectedBibTeX(&buf, lib, *res)
	} else {
		err = papersift.WriteSelectedCSV(&buf, lib, *res)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"model":    s.pool.DefaultModel(),
		"sessions": s.store.Len(),
	})
}

func (s *Server) session(r *http.Request) (*Session, bool) {
	id := strings.TrimSpace(r.Header.Get(sessionHeader))
	if id == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		return nil, false
	}
	return s.store.Get(id)
}

func (s *Server) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]any{"success": false, "error": "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
