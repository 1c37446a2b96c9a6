package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cropsage/cropsage/internal/ingest"
	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/internal/storage"
	"github.com/cropsage/cropsage/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Server) handleCreateObservation(w http.ResponseWriter, r *http.Request) {
	var snap models.InputSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if snap.Description == "" && len(snap.LabData) == 0 {
		s.respondError(w, http.StatusBadRequest, "description or lab_data is required")
		return
	}
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.Type == "" {
		snap.Type = models.ObservationPhoto
	}
	s.logger.Debug("create observation", zap.String("id", snap.ID), zap.String("crop", snap.Crop))
	if err := s.store.CreateSnapshot(r.Context(), &snap); err != nil {
		s.logger.Error("create observation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleGetObservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.store.GetSnapshot(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "observation not found")
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCreateRecommendation(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.InputID == "" {
		s.respondError(w, http.StatusBadRequest, "input_id is required")
		return
	}
	if r.URL.Query().Get("async") == "true" {
		// Queue the request for the worker. The ID is fixed now so the
		// client can poll for the result and redeliveries stay no-ops.
		if req.RecommendationID == "" {
			req.RecommendationID = uuid.New().String()
		}
		payload, err := json.Marshal(req)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		job := &storage.Job{
			ID:      uuid.New().String(),
			Kind:    storage.JobRecommend,
			Payload: string(payload),
		}
		if err := s.store.EnqueueJob(r.Context(), job); err != nil {
			s.logger.Error("enqueue recommendation failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusAccepted, map[string]string{
			"job_id":            job.ID,
			"recommendation_id": req.RecommendationID,
			"status":            "queued",
		})
		return
	}
	s.logger.Debug("recommendation request",
		zap.String("input_id", req.InputID),
		zap.String("recommendation_id", req.RecommendationID))
	result, err := s.pipeline.Assemble(r.Context(), &req)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "observation not found")
			return
		}
		s.logger.Error("recommendation assembly failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.store.GetResult(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "recommendation not found")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	audit, err := s.store.GetAudit(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "audit not found")
		return
	}
	s.respondJSON(w, http.StatusOK, audit)
}

type feedbackRequest struct {
	ChunkID  string `json:"chunk_id"`
	Feedback int    `json:"feedback"`
}

func (s *Server) handleAuditFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ChunkID == "" {
		s.respondError(w, http.StatusBadRequest, "chunk_id is required")
		return
	}
	if req.Feedback < -1 || req.Feedback > 1 {
		s.respondError(w, http.StatusBadRequest, "feedback must be -1, 0, or 1")
		return
	}
	if err := s.store.SetAuditFeedback(r.Context(), id, req.ChunkID, req.Feedback); err != nil {
		s.respondStorageError(w, err, "audit or chunk not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleEvaluateCompliance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var input models.ComplianceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input.RecommendationID = id
	review := s.evaluator.Evaluate(&input)
	if err := s.store.SaveReview(r.Context(), review); err != nil {
		s.logger.Error("save review failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, review)
}

func (s *Server) handleGetCompliance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	review, err := s.store.GetReview(r.Context(), id)
	if err != nil {
		s.respondStorageError(w, err, "review not found")
		return
	}
	s.respondJSON(w, http.StatusOK, review)
}

type referenceRequest struct {
	Title      string            `json:"title"`
	Text       string            `json:"text,omitempty"`
	Path       string            `json:"path,omitempty"`
	SourceType models.SourceType `json:"source_type,omitempty"`
	Boost      float64           `json:"boost,omitempty"`
	Crops      []string          `json:"crops,omitempty"`
	Topics     []string          `json:"topics,omitempty"`
	Region     string            `json:"region,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
}

// handleCreateReference ingests inline text synchronously. A file path is
// queued instead so large documents never tie up a request.
func (s *Server) handleCreateReference(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" && req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "text or path is required")
		return
	}

	if req.Path != "" {
		payload, err := json.Marshal(worker.IngestPayload{
			Path:       req.Path,
			Title:      req.Title,
			SourceType: req.SourceType,
			Boost:      req.Boost,
		})
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		job := &storage.Job{
			ID:      uuid.New().String(),
			Kind:    storage.JobIngestFile,
			Payload: string(payload),
		}
		if err := s.store.EnqueueJob(r.Context(), job); err != nil {
			s.logger.Error("enqueue ingest failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID, "status": "queued"})
		return
	}

	opts := ingest.Options{
		Title:      req.Title,
		SourceType: req.SourceType,
		Boost:      req.Boost,
	}
	if len(req.Crops) > 0 || len(req.Topics) > 0 || req.Region != "" || len(req.Tags) > 0 {
		opts.Metadata = &models.PassageMetadata{
			Crops:  req.Crops,
			Topics: req.Topics,
			Region: req.Region,
			Tags:   req.Tags,
		}
	}
	src, err := s.ingestor.IngestText(r.Context(), req.Text, opts)
	if err != nil {
		s.logger.Error("reference ingest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, src)
}

func (s *Server) handleListReferences(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	sources, err := s.store.ListSources(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list references failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
}

func (s *Server) handleDeleteReference(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete reference request", zap.String("id", id))
	if err := s.ingestor.RemoveSource(r.Context(), id); err != nil {
		s.respondStorageError(w, err, "reference not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleExportTraining(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="training.csv"`)
	rows, err := s.exporter.WriteCSV(r.Context(), w)
	if err != nil {
		// Headers are already written; all we can do is log.
		s.logger.Error("training export failed", zap.Int("rows", rows), zap.Error(err))
		return
	}
	s.logger.Info("training export complete", zap.Int("rows", rows))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	passages, err := s.store.CountPassages(r.Context())
	if err != nil {
		s.logger.Error("status: count passages failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"passages":          passages,
		"vector_index_size": s.vectors.Size(),
		"evaluated_at":      time.Now().UTC().Format(time.RFC3339),
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func (s *Server) respondStorageError(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
