package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/carescope-ai/platform/pkg/common/config"
	"github.com/carescope-ai/platform/pkg/common/logger"
	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/gateway/httpclient"
	"github.com/carescope-ai/platform/pkg/gateway/middleware"
)

// QueryProxy fronts the analytics service. The free-text /query endpoint
// wraps the raw analysis run in a caller-facing envelope with dataset
// attributions; the /analysis/* routes pass through untouched for callers
// that speak the structured API.
type QueryProxy struct {
	upstream
}

func NewQueryProxy(client *http.Client, cfg *config.Config) *QueryProxy {
	return &QueryProxy{upstream{
		Client:  client,
		Cfg:     cfg,
		Name:    "analytics service",
		BaseURL: cfg.AnalyticsBaseURL,
	}}
}

func RegisterQueryRoutes(router *mux.Router, proxy *QueryProxy) {
	if proxy == nil || proxy.Client == nil || proxy.Cfg == nil {
		panic("query proxy requires client and config")
	}

	router.HandleFunc("/query", proxy.handleQuery).Methods(http.MethodPost)
	router.HandleFunc("/analysis/query", proxy.handleAnalysis).Methods(http.MethodPost)
	router.HandleFunc("/analysis/runs", proxy.handleListRuns).Methods(http.MethodGet)
	router.HandleFunc("/analysis/runs/{id}", proxy.handleGetRun).Methods(http.MethodGet)
	router.HandleFunc("/analysis/stages", proxy.handleStages).Methods(http.MethodGet)
	router.HandleFunc("/analysis/scores/recent", proxy.handleRecentScores).Methods(http.MethodGet)
}

func (p *QueryProxy) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, p.Cfg.MaxRequestBody)).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid query payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query must not be empty", http.StatusBadRequest)
		return
	}

	analysisReq := models.AnalysisRequest{Query: req.Query}
	if caller, ok := middleware.CallerFromContext(r.Context()); ok {
		analysisReq.RequestedBy = caller.Subject
	}

	run, status, raw, err := p.runAnalysis(r, analysisReq)
	if err != nil {
		logger.Log.WithError(err).Error("failed to reach analytics service")
		http.Error(w, "analytics service unavailable", http.StatusBadGateway)
		return
	}
	if run == nil {
		// Downstream rejection, relayed verbatim.
		w.WriteHeader(status)
		w.Write(raw)
		return
	}

	resp := models.QueryResponse{
		QueryID:          run.ID.String(),
		Query:            req.Query,
		Stages:           run.Stages,
		Timestamp:        time.Now().UTC(),
		ProcessingTimeMS: float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if run.Result != nil {
		resp.Result = run.Result
		resp.Stages = run.Result.Executed
		resp.Attributions = BuildAttributions(run.Result.Citations)
	}

	respondJSON(w, http.StatusOK, resp)
}

func (p *QueryProxy) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	p.forwardWithBody(w, r, http.MethodPost, fmt.Sprintf("%s/api/v1/analysis/query", p.BaseURL))
}

func (p *QueryProxy) handleListRuns(w http.ResponseWriter, r *http.Request) {
	p.forwardWithQuery(w, r, http.MethodGet, fmt.Sprintf("%s/api/v1/analysis/runs", p.BaseURL))
}

func (p *QueryProxy) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p.forwardWithQuery(w, r, http.MethodGet, fmt.Sprintf("%s/api/v1/analysis/runs/%s", p.BaseURL, id))
}

func (p *QueryProxy) handleStages(w http.ResponseWriter, r *http.Request) {
	p.forwardWithQuery(w, r, http.MethodGet, fmt.Sprintf("%s/api/v1/analysis/stages", p.BaseURL))
}

func (p *QueryProxy) handleRecentScores(w http.ResponseWriter, r *http.Request) {
	p.forwardWithQuery(w, r, http.MethodGet, fmt.Sprintf("%s/api/v1/analysis/scores/recent", p.BaseURL))
}

// runAnalysis posts the request to the analytics service and decodes the
// run on success. Downstream non-2xx responses come back as raw bytes so
// the caller can relay them with the original status.
func (p *QueryProxy) runAnalysis(r *http.Request, payload models.AnalysisRequest) (*models.AnalysisRun, int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, nil, err
	}

	ctx, cancel := context.WithTimeout(r.Context(), p.Cfg.GatewayRequestTimeout)
	defer cancel()

	target := fmt.Sprintf("%s/api/v1/analysis/query", p.BaseURL)
	corrID := r.Header.Get("X-Request-ID")

	var resp *http.Response
	reqErr := httpclient.Retry(ctx, 3, 200*time.Millisecond, func() error {
		outReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return err
		}
		outReq.Header.Set("Content-Type", "application/json")
		if corrID != "" {
			outReq.Header.Set("X-Request-ID", corrID)
		}

		var doErr error
		resp, doErr = p.Client.Do(outReq)
		return doErr
	})
	if reqErr != nil {
		return nil, 0, nil, reqErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, resp.StatusCode, raw, nil
	}

	var run models.AnalysisRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, 0, nil, fmt.Errorf("decoding analysis run: %w", err)
	}
	return &run, resp.StatusCode, raw, nil
}

// BuildAttributions renders one provenance line per executed stage so
// answers stay traceable to the facility dataset they were computed from.
func BuildAttributions(citations []models.Citation) []string {
	out := make([]string, 0, len(citations))
	for _, c := range citations {
		var line string
		switch c.Stage {
		case "mismatch":
			line = fmt.Sprintf("Infrastructure mismatch detection (%d facilities, US Gov Dataset)", c.RecordCount)
		case "reachability":
			line = fmt.Sprintf("Reachability scoring (%d facilities, US Gov Dataset)", c.RecordCount)
		case "contradiction":
			line = fmt.Sprintf("Contradiction pattern analysis (%d cases, US Gov Dataset)", c.RecordCount)
		case "desert":
			line = fmt.Sprintf("Medical desert classification (%d scored pairs, US Gov Dataset)", c.RecordCount)
		case "counterfactual":
			line = fmt.Sprintf("Counterfactual simulation (%d facilities, US Gov Dataset)", c.RecordCount)
		default:
			line = fmt.Sprintf("%s analysis (%d records, US Gov Dataset)", c.Stage, c.RecordCount)
		}
		if c.Skipped > 0 {
			line = fmt.Sprintf("%s, %d records skipped", line, c.Skipped)
		}
		out = append(out, line)
	}
	return out
}
