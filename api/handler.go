package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/auth"
	"github.com/Onebillie/parsetastic/internal/models"
	"github.com/Onebillie/parsetastic/internal/pipeline"
)

const (
	DefaultMaxUpload = 10 * 1024 * 1024 // 10MB
	Version          = "1.0.0"
)

// Workflow runs the document pipelines. *pipeline.Pipeline satisfies it.
type Workflow interface {
	Ingest(ctx context.Context, in pipeline.IngestInput) (*pipeline.IngestResult, error)
	Approve(ctx context.Context, in pipeline.ApproveInput) (*pipeline.ApproveResult, error)
	Learn(ctx context.Context, in pipeline.LearnInput) (*pipeline.LearnResult, error)
}

// Store is the read side of the API. *db.Store satisfies it.
type Store interface {
	ListDocuments(ctx context.Context, f models.DocumentFilter) ([]models.DocumentRecord, int, error)
	GetDocument(ctx context.Context, id string) (*models.DocumentRecord, error)
	DocumentCorrections(ctx context.Context, documentID string) ([]models.Correction, error)
	ListTemplates(ctx context.Context, supplier string) ([]models.SupplierTemplate, error)
}

// Presigner turns a stored object path into a temporary download link.
type Presigner interface {
	PresignedURL(ctx context.Context, objectPath string) (string, error)
}

// Exporter builds the training workbook.
type Exporter interface {
	TrainingXLSX(ctx context.Context) ([]byte, error)
}

// Notifier delivers pipeline events. *events.Dispatcher satisfies it.
type Notifier interface {
	Drain(ctx context.Context, evs []models.Event)
}

// HealthCheck is one dependency probe. A failing critical check marks the service degraded.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// Options wires the handler. Files, Exporter, Events, Login and Metrics may be nil.
type Options struct {
	Pipeline         Workflow
	Store            Store
	Files            Presigner
	Exporter         Exporter
	Events           Notifier
	Login            http.Handler
	Metrics          http.Handler
	Checks           []HealthCheck
	MaxUploadBytes   int64
	DefaultAutopilot bool
	AIProvider       string
}

// Handler serves the document API.
type Handler struct {
	opts    Options
	started time.Time
	pending sync.WaitGroup
}

// NewHandler creates a new API handler
func NewHandler(opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUpload
	}
	return &Handler{opts: opts, started: time.Now()}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/ingest", h.Ingest).Methods(http.MethodPost)
	router.HandleFunc("/api/documents", h.ListDocuments).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}", h.GetDocument).Methods(http.MethodGet)
	router.HandleFunc("/api/documents/{id}/approve", h.Approve).Methods(http.MethodPost)
	router.HandleFunc("/api/learn", h.Learn).Methods(http.MethodPost)
	router.HandleFunc("/api/templates", h.ListTemplates).Methods(http.MethodGet)
	router.HandleFunc("/api/training/export", h.ExportTraining).Methods(http.MethodGet)

	if h.opts.Login != nil {
		router.Handle("/api/login", h.opts.Login).Methods(http.MethodPost)
	}
	if h.opts.Metrics != nil {
		router.Handle("/metrics", h.opts.Metrics).Methods(http.MethodGet)
	}
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	return router
}

// Wait blocks until every queued event delivery has finished.
func (h *Handler) Wait() { h.pending.Wait() }

// notify delivers events after the response, detached from the request's cancellation.
func (h *Handler) notify(ctx context.Context, evs []models.Event) {
	if h.opts.Events == nil || len(evs) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		h.opts.Events.Drain(ctx, evs)
	}()
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp string                   `json:"timestamp"`
	Uptime    string                   `json:"uptime"`
	Memory    MemoryStats              `json:"memory"`
	Services  map[string]ServiceStatus `json:"services"`
	AI        map[string]string        `json:"ai"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Health reports process stats and probes every dependency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(h.started).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Services: make(map[string]ServiceStatus, len(h.opts.Checks)),
		AI:       map[string]string{"defaultProvider": h.opts.AIProvider},
	}

	status := http.StatusOK
	for _, c := range h.opts.Checks {
		s := ServiceStatus{Available: true}
		if err := c.Check(ctx); err != nil {
			s = ServiceStatus{Available: false, Error: err.Error()}
			if c.Critical {
				response.Status = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		response.Services[c.Name] = s
	}

	writeJSON(w, status, response)
}

// Ingest accepts a multipart upload ("file" or "image", plus "phone") and runs the ingestion pipeline.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.sendError(w, http.StatusRequestEntityTooLarge, "file too large", fmt.Sprintf("maximum upload is %d bytes", h.opts.MaxUploadBytes))
			return
		}
		h.sendError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("image")
	}
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "File and phone number are required", "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "failed to read file", err.Error())
		return
	}

	phone := firstNonEmpty(r.FormValue("phone"), r.FormValue("phone_number"))
	autopilot := h.opts.DefaultAutopilot
	if v := r.FormValue("autopilot"); v != "" {
		if autopilot, err = strconv.ParseBool(v); err != nil {
			h.sendError(w, http.StatusBadRequest, "invalid autopilot flag", err.Error())
			return
		}
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	res, err := h.opts.Pipeline.Ingest(r.Context(), pipeline.IngestInput{
		File:      data,
		FileName:  header.Filename,
		MIMEType:  mimeType,
		Phone:     phone,
		Autopilot: autopilot,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.notify(r.Context(), res.Events)
	writeJSON(w, http.StatusOK, res)
}

// Approve records a reviewer's decision on a pending document.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var in pipeline.ApproveInput
	if err := decodeBody(r, &in); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	in.DocumentID = mux.Vars(r)["id"]
	if claims, ok := auth.ReviewerFromContext(r.Context()); ok {
		in.ReviewerID = claims.ReviewerID
	}

	res, err := h.opts.Pipeline.Approve(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.notify(r.Context(), res.Events)
	writeJSON(w, http.StatusOK, res)
}

// Learn feeds corrections straight into template learning.
func (h *Handler) Learn(w http.ResponseWriter, r *http.Request) {
	var in pipeline.LearnInput
	if err := decodeBody(r, &in); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.opts.Pipeline.Learn(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.notify(r.Context(), res.Events)
	writeJSON(w, http.StatusOK, res)
}

// ListDocuments pages through documents, optionally by status ("all" for every status).
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.DocumentFilter{Status: q.Get("status")}
	var err error
	if f.Limit, err = intParam(q.Get("limit"), 100); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}
	if f.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid offset", err.Error())
		return
	}

	docs, total, err := h.opts.Store.ListDocuments(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     total,
		"limit":     f.Limit,
		"offset":    f.Offset,
	})
}

// DocumentResponse is a document with its correction history.
type DocumentResponse struct {
	*models.DocumentRecord
	FileDownloadURL string              `json:"file_download_url,omitempty"`
	Corrections     []models.Correction `json:"corrections"`
}

// GetDocument returns one document, a download link for its file and its corrections.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc, err := h.opts.Store.GetDocument(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := DocumentResponse{DocumentRecord: doc, Corrections: []models.Correction{}}
	if cs, err := h.opts.Store.DocumentCorrections(r.Context(), id); err != nil {
		zap.L().Warn("failed to load corrections", zap.String("document_id", id), zap.Error(err))
	} else {
		resp.Corrections = cs
	}
	if h.opts.Files != nil && doc.FileURL != "" {
		if url, err := h.opts.Files.PresignedURL(r.Context(), doc.FileURL); err != nil {
			zap.L().Warn("failed to presign file", zap.String("document_id", id), zap.Error(err))
		} else {
			resp.FileDownloadURL = url
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListTemplates returns supplier templates, optionally for one supplier.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ts, err := h.opts.Store.ListTemplates(r.Context(), r.URL.Query().Get("supplier"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": ts})
}

// ExportTraining downloads the training workbook.
func (h *Handler) ExportTraining(w http.ResponseWriter, r *http.Request) {
	if h.opts.Exporter == nil {
		h.sendError(w, http.StatusServiceUnavailable, "export not available", "")
		return
	}
	b, err := h.opts.Exporter.TrainingXLSX(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	name := fmt.Sprintf("training-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// writeError maps an error kind to a status code.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case models.IsKind(err, models.ErrInvalidInput):
		status, msg = http.StatusBadRequest, "invalid input"
	case models.IsKind(err, models.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case models.IsKind(err, models.ErrDocumentNotFound):
		status, msg = http.StatusNotFound, "Document not found"
	case models.IsKind(err, models.ErrExtractionFailed),
		models.IsKind(err, models.ErrOracleUnavailable),
		models.IsKind(err, models.ErrMalformedOracleOutput):
		status, msg = http.StatusBadGateway, "extraction failed"
	case models.IsKind(err, models.ErrTemplateLearning):
		status, msg = http.StatusBadGateway, "template learning failed"
	case models.IsKind(err, models.ErrNoDatabase), models.IsKind(err, models.ErrNoStorage):
		status, msg = http.StatusServiceUnavailable, "service unavailable"
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	h.sendError(w, status, msg, err.Error())
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message, detail string) {
	body := map[string]string{"error": message}
	if detail != "" {
		body["detail"] = detail
	}
	writeJSON(w, statusCode, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func intParam(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, eris.Errorf("%q is not a non-negative integer", s)
	}
	return n, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
