package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencanvas/canvasd/internal/canvas"
)

// Planner turns a project spec into a raw workspace plan. Optional; without
// one, /workspace/prepare accepts only inline plans and the fallback
// scaffold.
type Planner interface {
	Plan(ctx context.Context, spec canvas.ProjectSpec) (canvas.RawPlan, error)
}

// Runner executes a file node's materialized file. Optional.
type Runner interface {
	Run(ctx context.Context, fileID string) error
}

type ServerConfig struct {
	MaxBodyBytes int64
}

type Server struct {
	store    *canvas.Store
	planner  Planner
	runner   Runner
	validate *validator.Validate
	log      *zap.Logger
	cfg      ServerConfig
}

func NewServer(store *canvas.Store, planner Planner, runner Runner, log *zap.Logger, cfg ServerConfig) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{
		store:    store,
		planner:  planner,
		runner:   runner,
		validate: validator.New(),
		log:      log,
		cfg:      cfg,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.correlationMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/files", func(r chi.Router) {
		r.Get("/", s.handleListFiles)
		r.Post("/", s.handleCreateFile)
		r.Route("/{fileID}", func(r chi.Router) {
			r.Get("/", s.handleGetFile)
			r.Delete("/", s.handleDeleteFile)
			r.Put("/content", s.handleUpdateContent)
			r.Put("/position", s.handleUpdatePosition)
			r.Put("/description", s.handleUpdateDescription)
			r.Put("/status", s.handleUpdateStatus)
			r.Put("/folder", s.handleMoveToFolder)
			r.Post("/run", s.handleRunFile)
		})
	})

	r.Route("/folders", func(r chi.Router) {
		r.Get("/", s.handleListFolders)
		r.Post("/", s.handleCreateFolder)
		r.Put("/{folderID}", s.handleUpdateFolder)
		r.Delete("/{folderID}", s.handleDeleteFolder)
	})

	r.Get("/metadata", s.handleGetMetadata)
	r.Put("/metadata", s.handlePutMetadata)

	r.Route("/edges", func(r chi.Router) {
		r.Get("/", s.handleListEdges)
		r.Post("/", s.handleAddEdge)
		r.Delete("/", s.handleRemoveEdge)
	})

	r.Route("/workspace", func(r chi.Router) {
		r.Post("/prepare", s.handlePrepareWorkspace)
		r.Post("/reconcile", s.handleReconcile)
		r.Get("/orphans", s.handleOrphans)
	})

	r.Get("/events", s.handleRecentEvents)
	r.Get("/events/stream", s.handleEventStream)

	return r
}

type correlationKey struct{}

func (s *Server) correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		w.Header().Set("X-Correlation-Id", correlationID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationKey{}, correlationID)))
	})
}

func getCorrelationID(r *http.Request) string {
	if id, ok := r.Context().Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

type createFileRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var req createFileRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	node, err := s.store.CreateFile(req.Name, req.Description)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListFiles()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	view, err := s.store.GetFile(chi.URLParam(r, "fileID"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteFile(chi.URLParam(r, "fileID")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type updateContentRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	var req updateContentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.store.UpdateFileContent(chi.URLParam(r, "fileID"), req.Content); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type updatePositionRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

func (s *Server) handleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	var req updatePositionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.store.UpdateFilePosition(chi.URLParam(r, "fileID"), *req.X, *req.Y); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type updateDescriptionRequest struct {
	Description string `json:"description"`
}

func (s *Server) handleUpdateDescription(w http.ResponseWriter, r *http.Request) {
	var req updateDescriptionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.store.UpdateFileDescription(chi.URLParam(r, "fileID"), req.Description); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=idle running error"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.store.UpdateFileStatus(chi.URLParam(r, "fileID"), req.Status); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type moveToFolderRequest struct {
	FolderID string `json:"folderId"`
}

func (s *Server) handleMoveToFolder(w http.ResponseWriter, r *http.Request) {
	var req moveToFolderRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.store.MoveFileToFolder(chi.URLParam(r, "fileID"), req.FolderID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

func (s *Server) handleRunFile(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented", "no runner configured", getCorrelationID(r))
		return
	}
	fileID := chi.URLParam(r, "fileID")
	if err := s.runner.Run(r.Context(), fileID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

type createFolderRequest struct {
	Name string  `json:"name" validate:"required"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	node, err := s.store.CreateFolder(req.Name, req.X, req.Y)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) handleListFolders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"folders": s.store.ListFolders()})
}

type updateFolderRequest struct {
	Name       *string  `json:"name"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Width      *float64 `json:"width"`
	Height     *float64 `json:"height"`
	IsExpanded *bool    `json:"isExpanded"`
}

func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	var req updateFolderRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	update := canvas.FolderUpdate{
		Name:       req.Name,
		X:          req.X,
		Y:          req.Y,
		Width:      req.Width,
		Height:     req.Height,
		IsExpanded: req.IsExpanded,
	}
	if err := s.store.UpdateFolder(chi.URLParam(r, "folderID"), update); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteFolder(chi.URLParam(r, "folderID")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Metadata())
}

func (s *Server) handlePutMetadata(w http.ResponseWriter, r *http.Request) {
	var doc map[string]canvas.NodeRecord
	if !s.decodeJSONBody(w, r, &doc) {
		return
	}
	if err := s.store.SetMetadata(doc); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.Metadata())
}

func (s *Server) handleListEdges(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"edges": s.store.Edges()})
}

type addEdgeRequest struct {
	From        string `json:"from" validate:"required"`
	To          string `json:"to" validate:"required"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	var req addEdgeRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	edge, err := s.store.AddEdge(canvas.Edge{
		From:        req.From,
		To:          req.To,
		Type:        req.Type,
		Description: req.Description,
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}

func (s *Server) handleRemoveEdge(w http.ResponseWriter, r *http.Request) {
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "from and to query params are required", getCorrelationID(r))
		return
	}
	if err := s.store.RemoveEdge(from, to, r.URL.Query().Get("type")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type prepareWorkspaceRequest struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	TechStack   []string        `json:"tech_stack"`
	Features    []string        `json:"features"`
	Plan        json.RawMessage `json:"plan"`
}

// handlePrepareWorkspace accepts either an inline plan payload or, when a
// planner is configured and no plan is inlined, asks the planner for one.
// Either way the plan is sanitized and applied as one transaction.
func (s *Server) handlePrepareWorkspace(w http.ResponseWriter, r *http.Request) {
	var req prepareWorkspaceRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	spec := canvas.ProjectSpec{
		Title:       req.Title,
		Description: req.Description,
		TechStack:   req.TechStack,
		Features:    req.Features,
	}

	var raw canvas.RawPlan
	switch {
	case len(req.Plan) > 0:
		parsed, err := canvas.ParseRawPlan(req.Plan)
		if err != nil && !errors.Is(err, canvas.ErrEmptyPlan) {
			s.writeStoreError(w, r, err)
			return
		}
		raw = parsed
	case s.planner != nil:
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
		defer cancel()
		planned, err := s.planner.Plan(ctx, spec)
		if err != nil {
			// The sanitizer's fallback scaffold covers planner failures.
			s.log.Warn("planner failed, using fallback scaffold", zap.Error(err))
		} else {
			raw = planned
		}
	}

	plan := canvas.SanitizePlan(raw, spec, s.log.Named("sanitize"))
	nodes, err := s.store.ApplyPlan(plan)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"edges": s.store.Edges(),
	})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.Reconcile()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleOrphans(w http.ResponseWriter, _ *http.Request) {
	orphans := s.store.Orphans()
	if orphans == nil {
		orphans = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orphans": orphans})
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": s.store.RecentEvents()})
}

func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit", getCorrelationID(r))
			return false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body", getCorrelationID(r))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", getCorrelationID(r))
		return false
	}
	return true
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !s.decodeJSONBody(w, r, dst) {
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), getCorrelationID(r))
		return false
	}
	return true
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	correlationID := getCorrelationID(r)
	var conflict *canvas.PathConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":          "duplicate_path",
			"message":       err.Error(),
			"correlationId": correlationID,
			"path":          conflict.Path,
			"existingId":    conflict.ExistingID,
		})
	case errors.Is(err, canvas.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), correlationID)
	case errors.Is(err, canvas.ErrInvalidPath):
		writeError(w, http.StatusBadRequest, "invalid_path", err.Error(), correlationID)
	case errors.Is(err, canvas.ErrDuplicatePath):
		writeError(w, http.StatusConflict, "duplicate_path", err.Error(), correlationID)
	case errors.Is(err, canvas.ErrEmptyPlan):
		writeError(w, http.StatusUnprocessableEntity, "empty_plan", err.Error(), correlationID)
	case errors.Is(err, canvas.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error(), correlationID)
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), correlationID)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	writeJSON(w, status, map[string]any{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	})
}
