package query

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/carescope-ai/platform/pkg/analytics"
	"github.com/carescope-ai/platform/pkg/common/logger"
	"github.com/carescope-ai/platform/pkg/common/models"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/analysis/query", h.handleQuery).Methods(http.MethodPost)
	router.HandleFunc("/analysis/runs", h.handleListRuns).Methods(http.MethodGet)
	router.HandleFunc("/analysis/runs/{id}", h.handleGetRun).Methods(http.MethodGet)
	router.HandleFunc("/analysis/stages", h.handleStages).Methods(http.MethodGet)
	router.HandleFunc("/analysis/scores/recent", h.handleRecentScores).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid analysis request")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var run models.AnalysisRun
	var err error
	status := http.StatusOK
	if req.Async {
		run, err = h.service.Enqueue(r.Context(), req)
		status = http.StatusAccepted
	} else {
		run, err = h.service.Execute(r.Context(), req)
	}
	if err != nil {
		if analytics.IsConfigurationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to run analysis")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(run)
}

func (h *HTTPHandler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 50)

	runs, err := h.service.List(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list analysis runs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func (h *HTTPHandler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	run, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch analysis run")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

func (h *HTTPHandler) handleStages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"query":  q,
		"stages": h.service.PreviewStages(q),
	})
}

func (h *HTTPHandler) handleRecentScores(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	specialty := r.URL.Query().Get("specialty")
	limit := parseQueryInt(r, "limit", 100)

	rows, err := h.service.RecentScores(r.Context(), region, specialty, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to query score rollups")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"scores": rows,
		"count":  len(rows),
	})
}

func parseQueryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
