package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ymori/newsdispatch/internal/digest"
)

type runRequest struct {
	ConfigID uuid.UUID `json:"config_id"`
}

type confirmRequest struct {
	DeliveredArticleIDs []uuid.UUID `json:"delivered_article_ids"`
}

// runBatch kicks off a full batch in the background and returns immediately.
// The batch carries its own budget, which usually outlives the request
// timeout.
func (s *Server) runBatch(w http.ResponseWriter, _ *http.Request) {
	go func() {
		if _, err := s.driver.RunBatch(context.Background()); err != nil {
			s.logger.Error("batch run failed", zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// runConfig runs the pipeline synchronously for one config and returns the
// run result, aborted or ready.
func (s *Server) runConfig(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConfigID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "config_id is required")
		return
	}
	cfg, err := s.configs.Get(r.Context(), req.ConfigID)
	if err != nil {
		if errors.Is(err, digest.ErrConfigNotFound) {
			writeError(w, http.StatusNotFound, "config not found")
			return
		}
		s.logger.Error("load config failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load config")
		return
	}
	result := s.planner.Run(r.Context(), cfg)
	writeJSON(w, http.StatusOK, map[string]any{"run": result})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.runs.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, digest.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("load run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": result})
}

// confirmDelivery records sent articles for a ready run. It is idempotent:
// confirming an already-logged run succeeds without new writes.
func (s *Server) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.planner.ConfirmDelivery(r.Context(), runID, req.DeliveredArticleIDs); err != nil {
		if errors.Is(err, digest.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Warn("confirm delivery rejected", zap.Error(err))
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged"})
}

// previewConfig runs fetch and filter without writing anything.
func (s *Server) previewConfig(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "config_id")
	configID, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid config_id")
		return
	}
	cfg, err := s.configs.Get(r.Context(), configID)
	if err != nil {
		if errors.Is(err, digest.ErrConfigNotFound) {
			writeError(w, http.StatusNotFound, "config not found")
			return
		}
		s.logger.Error("load config failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load config")
		return
	}
	articles, err := s.planner.Preview(r.Context(), cfg)
	if err != nil {
		var cfgErr *digest.ConfigError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusUnprocessableEntity, cfgErr.Error())
			return
		}
		s.logger.Error("preview failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "preview fetch failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	idStr := chi.URLParam(r, "run_id")
	if idStr == "" {
		return uuid.Nil, errors.New("run_id is required")
	}
	runID, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, errors.New("invalid run_id")
	}
	return runID, nil
}
