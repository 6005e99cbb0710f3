package facility

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/carescope-ai/platform/pkg/common/logger"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/facilities", h.handleIngest).Methods(http.MethodPost)
	router.HandleFunc("/facilities/batch", h.handleBatch).Methods(http.MethodPost)
	router.HandleFunc("/facilities", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/facilities/{id}", h.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/facilities/{id}/verify", h.handleVerify).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req RequestWrapper
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid facility payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Ingest(r.Context(), req.ToModel())
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to ingest facility")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

func (h *HTTPHandler) handleBatch(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req BatchRequestWrapper
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid batch payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.IngestBatch(r.Context(), req.ToModel())
	if err != nil && !IsValidationError(err) {
		logger.Log.WithError(err).Error("failed to ingest facility batch")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "facility not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch facility")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	limit := parseQueryInt(r, "limit", 100)
	offset := parseQueryInt(r, "offset", 0)

	recs, err := h.service.List(r.Context(), state, limit, offset)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list facilities")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"facilities": recs,
		"count":      len(recs),
	})
}

func (h *HTTPHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := h.service.Verify(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, "facility not found", http.StatusNotFound)
		case errors.Is(err, ErrVerificationDisabled):
			http.Error(w, "external verification disabled", http.StatusServiceUnavailable)
		default:
			logger.Log.WithError(err).Error("failed to verify facility")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
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
