package routes

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/carescope-ai/platform/pkg/common/logger"
)

type MetricsHandler struct {
	db *gorm.DB
}

type OverviewMetrics struct {
	TotalFacilities    int     `json:"totalFacilities"`
	FacilitiesToday    int     `json:"facilitiesToday"`
	RunsActive         int     `json:"analysisRunsActive"`
	RunsCompletedToday int     `json:"analysisRunsCompletedToday"`
	RunLatencyMs       float64 `json:"analysisRunLatencyMs"`
	RollupRows24h      int     `json:"rollupRows24h"`
	LowAccessPairs24h  int     `json:"lowAccessPairs24h"`
}

type PipelineStatus struct {
	ID        string    `json:"id"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
	Details   string    `json:"details"`
}

func NewMetricsHandler(db *gorm.DB) *MetricsHandler {
	return &MetricsHandler{db: db}
}

func (h *MetricsHandler) Register(r *mux.Router) {
	r.HandleFunc("/metrics/overview", h.handleOverview).Methods(http.MethodGet)
	r.HandleFunc("/pipelines/status", h.handlePipelineStatus).Methods(http.MethodGet)
	r.HandleFunc("/metrics/low-access", h.handleLowAccess).Methods(http.MethodGet)
}

func (h *MetricsHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.collectMetrics()
	if err != nil {
		logger.Log.WithError(err).Error("failed to collect metrics")
		http.Error(w, "failed to collect metrics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, metrics)
}

func (h *MetricsHandler) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.collectMetrics()
	if err != nil {
		logger.Log.WithError(err).Error("failed to collect pipeline status")
		http.Error(w, "failed to collect pipeline status", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	statuses := []PipelineStatus{
		{
			ID:        "intake",
			Stage:     "API Gateway ➝ Facility Registry",
			Status:    deriveStatus(metrics.TotalFacilities > 0, metrics.FacilitiesToday > 0),
			UpdatedAt: now,
			Details:   formatDetails("%d facilities on record • %d ingested today", metrics.TotalFacilities, metrics.FacilitiesToday),
		},
		{
			ID:        "analysis",
			Stage:     "Query ➝ Analysis Pipeline",
			Status:    deriveStatus(metrics.RunsActive < 25, metrics.RunsCompletedToday > 0),
			UpdatedAt: now,
			Details:   formatDetails("%d runs active • %d completed today", metrics.RunsActive, metrics.RunsCompletedToday),
		},
		{
			ID:        "rollups",
			Stage:     "Analysis ➝ Score Rollups",
			Status:    deriveStatus(metrics.RollupRows24h > 0, metrics.LowAccessPairs24h <= metrics.RollupRows24h/2),
			UpdatedAt: now,
			Details:   formatDetails("%d rollup rows (24h) • %d low-access", metrics.RollupRows24h, metrics.LowAccessPairs24h),
		},
	}

	writeJSON(w, statuses)
}

func (h *MetricsHandler) collectMetrics() (OverviewMetrics, error) {
	metrics := OverviewMetrics{}

	var total sql.NullInt64
	if err := h.db.Raw(`
		SELECT COUNT(*)
		FROM facilities
	`).Scan(&total).Error; err != nil {
		return metrics, err
	}
	if total.Valid {
		metrics.TotalFacilities = int(total.Int64)
	}

	var today sql.NullInt64
	if err := h.db.Raw(`
		SELECT COUNT(*)
		FROM facilities
		WHERE DATE(created_at) = CURRENT_DATE
	`).Scan(&today).Error; err != nil {
		return metrics, err
	}
	if today.Valid {
		metrics.FacilitiesToday = int(today.Int64)
	}

	var active sql.NullInt64
	if err := h.db.Raw(`
		SELECT COUNT(*)
		FROM analysis_runs
		WHERE status IN ('queued', 'running')
	`).Scan(&active).Error; err != nil {
		return metrics, err
	}
	if active.Valid {
		metrics.RunsActive = int(active.Int64)
	}

	var completed sql.NullInt64
	if err := h.db.Raw(`
		SELECT COUNT(*)
		FROM analysis_runs
		WHERE status = 'completed' AND DATE(completed_at) = CURRENT_DATE
	`).Scan(&completed).Error; err != nil {
		return metrics, err
	}
	if completed.Valid {
		metrics.RunsCompletedToday = int(completed.Int64)
	}

	var latency sql.NullFloat64
	if err := h.db.Raw(`
		SELECT AVG(EXTRACT(EPOCH FROM completed_at - started_at) * 1000)
		FROM analysis_runs
		WHERE status = 'completed' AND completed_at > NOW() - INTERVAL '1 hour'
	`).Scan(&latency).Error; err != nil {
		return metrics, err
	}
	if latency.Valid {
		metrics.RunLatencyMs = latency.Float64
	}

	var rollups sql.NullInt64
	if err := h.db.Raw(`
		SELECT COUNT(*)
		FROM score_rollups
		WHERE event_time > NOW() - INTERVAL '24 hour'
	`).Scan(&rollups).Error; err != nil {
		return metrics, err
	}
	if rollups.Valid {
		metrics.RollupRows24h = int(rollups.Int64)
	}

	var lowAccess sql.NullInt64
	if err := h.db.Raw(`
		SELECT COUNT(*)
		FROM score_rollups
		WHERE low_access AND event_time > NOW() - INTERVAL '24 hour'
	`).Scan(&lowAccess).Error; err != nil {
		return metrics, err
	}
	if lowAccess.Valid {
		metrics.LowAccessPairs24h = int(lowAccess.Int64)
	}

	return metrics, nil
}

func deriveStatus(conditionA, conditionB bool) string {
	switch {
	case conditionA && conditionB:
		return "healthy"
	case conditionA || conditionB:
		return "degraded"
	default:
		return "failing"
	}
}

func formatDetails(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.WithError(err).Error("failed to write json response")
	}
}

type LowAccessSummary struct {
	Region       string    `json:"region"`
	Specialty    string    `json:"specialty"`
	Observations int       `json:"observations"`
	AvgScore     float64   `json:"avgScore"`
	LastSeen     time.Time `json:"lastSeen"`
}

func (h *MetricsHandler) handleLowAccess(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if val := r.URL.Query().Get("limit"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	var rows []struct {
		Region       string          `gorm:"column:region"`
		Specialty    string          `gorm:"column:specialty"`
		Observations int             `gorm:"column:observations"`
		AvgScore     sql.NullFloat64 `gorm:"column:avg_score"`
		LastSeen     time.Time       `gorm:"column:last_seen"`
	}

	if err := h.db.WithContext(r.Context()).Raw(`
		SELECT
			region,
			specialty,
			COUNT(*) AS observations,
			AVG(combined_score) AS avg_score,
			MAX(event_time) AS last_seen
		FROM score_rollups
		WHERE low_access
		GROUP BY region, specialty
		ORDER BY avg_score ASC, region ASC
		LIMIT ?
	`, limit).Scan(&rows).Error; err != nil {
		logger.Log.WithError(err).Error("failed to load low-access regions")
		http.Error(w, "failed to load low-access regions", http.StatusInternalServerError)
		return
	}

	summaries := make([]LowAccessSummary, 0, len(rows))
	for _, row := range rows {
		score := 0.0
		if row.AvgScore.Valid {
			score = row.AvgScore.Float64
		}
		summaries = append(summaries, LowAccessSummary{
			Region:       row.Region,
			Specialty:    row.Specialty,
			Observations: row.Observations,
			AvgScore:     score,
			LastSeen:     row.LastSeen,
		})
	}

	writeJSON(w, map[string]interface{}{"regions": summaries})
}
