package query

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/carescope-ai/platform/pkg/analytics"
	"github.com/carescope-ai/platform/pkg/analytics/pipeline"
	"github.com/carescope-ai/platform/pkg/analytics/scope"
	"github.com/carescope-ai/platform/pkg/common/kafka"
	"github.com/carescope-ai/platform/pkg/common/logger"
	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/observability/metrics"
	"github.com/carescope-ai/platform/pkg/storage"
)

// FacilitySource supplies the facility snapshot a pipeline run analyzes.
type FacilitySource interface {
	Snapshot(ctx context.Context) ([]models.Facility, error)
}

type Service struct {
	pipeline   *pipeline.Pipeline
	resolver   *scope.Resolver
	facilities FacilitySource
	repo       *RunRepository
	cache      *storage.ResultCache
	rollups    *storage.RollupWriter
	producer   *kafka.Producer
	workers    chan struct{}
}

func NewService(p *pipeline.Pipeline, resolver *scope.Resolver, facilities FacilitySource, repo *RunRepository, maxWorkers int, opts ...Option) *Service {
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	svc := &Service{
		pipeline:   p,
		resolver:   resolver,
		facilities: facilities,
		repo:       repo,
		workers:    make(chan struct{}, maxWorkers),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Execute runs an analysis request synchronously and returns the
// finished run, result included.
func (s *Service) Execute(ctx context.Context, req models.AnalysisRequest) (models.AnalysisRun, error) {
	stages, runScope, err := s.resolveRequest(req)
	if err != nil {
		return models.AnalysisRun{}, err
	}
	model, err := s.createRun(ctx, req, stages, runScope)
	if err != nil {
		return models.AnalysisRun{}, err
	}
	s.execute(ctx, model.ID, req, stages, runScope)

	final, err := s.repo.Get(ctx, model.ID)
	if err != nil {
		return models.AnalysisRun{}, err
	}
	return runToDomain(final), nil
}

// Enqueue accepts an analysis request for background execution and
// returns the queued run immediately.
func (s *Service) Enqueue(ctx context.Context, req models.AnalysisRequest) (models.AnalysisRun, error) {
	stages, runScope, err := s.resolveRequest(req)
	if err != nil {
		return models.AnalysisRun{}, err
	}
	model, err := s.createRun(ctx, req, stages, runScope)
	if err != nil {
		return models.AnalysisRun{}, err
	}

	go s.runAsync(model.ID, req, stages, runScope)

	return runToDomain(model), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.AnalysisRun, error) {
	model, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.AnalysisRun{}, err
	}
	return runToDomain(model), nil
}

func (s *Service) List(ctx context.Context, limit int) ([]models.AnalysisRun, error) {
	entries, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	runs := make([]models.AnalysisRun, 0, len(entries))
	for i := range entries {
		runs = append(runs, runToDomain(&entries[i]))
	}
	return runs, nil
}

// PreviewStages exposes the keyword router without running anything.
func (s *Service) PreviewStages(query string) []string {
	return pipeline.StageNames(pipeline.ResolveStages(query))
}

func (s *Service) RecentScores(ctx context.Context, region, specialty string, limit int) ([]storage.ScoreRollup, error) {
	if s.rollups == nil {
		return nil, nil
	}
	return s.rollups.RecentScores(ctx, region, specialty, limit)
}

// resolveRequest turns a raw analysis request into the stage list and
// scope the pipeline will run. Explicit stage lists override the keyword
// router; a request carrying additions always includes the
// counterfactual stage. Explicit scope wins over a scope expression,
// which wins over free-text extraction.
func (s *Service) resolveRequest(req models.AnalysisRequest) ([]pipeline.Stage, models.Scope, error) {
	var stages []pipeline.Stage
	var err error
	if len(req.Stages) > 0 {
		stages, err = pipeline.ParseStages(req.Stages)
		if err != nil {
			return nil, models.Scope{}, err
		}
	} else {
		stages = pipeline.ResolveStages(req.Query)
	}
	if len(req.Additions) > 0 {
		stages, err = pipeline.ParseStages(append(pipeline.StageNames(stages), string(pipeline.StageCounterfactual)))
		if err != nil {
			return nil, models.Scope{}, err
		}
	}

	runScope := req.Scope
	if len(runScope.Regions) == 0 && len(runScope.Specialties) == 0 {
		if req.ScopeExpr != "" {
			runScope, err = s.resolver.FromExpression(req.ScopeExpr)
			if err != nil {
				return nil, models.Scope{}, &analytics.ConfigurationError{Field: "scope_expr", Reason: err.Error()}
			}
		} else {
			runScope = s.resolver.FromQuery(req.Query)
		}
	}
	return stages, runScope, nil
}

func (s *Service) createRun(ctx context.Context, req models.AnalysisRequest, stages []pipeline.Stage, runScope models.Scope) (*runModel, error) {
	stagesJSON, _ := json.Marshal(pipeline.StageNames(stages))
	scopeJSON, _ := json.Marshal(runScope)
	model := &runModel{
		ID:          uuid.New(),
		Query:       req.Query,
		Stages:      datatypes.JSON(stagesJSON),
		Scope:       datatypes.JSON(scopeJSON),
		Status:      RunStatusQueued,
		RequestedBy: req.RequestedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, model); err != nil {
		return nil, err
	}
	return model, nil
}

func (s *Service) runAsync(runID uuid.UUID, req models.AnalysisRequest, stages []pipeline.Stage, runScope models.Scope) {
	s.workers <- struct{}{}
	defer func() { <-s.workers }()
	s.execute(context.Background(), runID, req, stages, runScope)
}

func (s *Service) execute(ctx context.Context, runID uuid.UUID, req models.AnalysisRequest, stages []pipeline.Stage, runScope models.Scope) {
	started := time.Now().UTC()
	_ = s.repo.Update(ctx, runID, map[string]interface{}{
		"status":     RunStatusRunning,
		"started_at": started,
	})

	stageNames := pipeline.StageNames(stages)

	// Scenario runs are request-specific; only plain analyses hit the cache.
	cacheable := s.cache != nil && len(req.Additions) == 0
	var cacheKey string
	if cacheable {
		cacheKey = s.cache.Key(ctx, req.Query+"|"+req.ScopeExpr, stageNames, runScope)
		if cached, ok, err := s.cache.Get(ctx, cacheKey); err == nil && ok {
			logger.WithField("run_id", runID.String()).Debug("Serving analysis from cache")
			metrics.IncCacheHit()
			metrics.ObserveAnalysisRun(0, false)
			s.complete(ctx, runID, cached)
			return
		}
		metrics.IncCacheMiss()
	}

	snapshot, err := s.facilities.Snapshot(ctx)
	if err != nil {
		metrics.ObserveAnalysisRun(0, true)
		s.fail(ctx, runID, nil, err)
		return
	}

	ac, err := s.pipeline.Run(ctx, snapshot, stages, runScope, req.Additions)
	if err != nil {
		var partial *models.AnalysisResult
		if ac != nil {
			result := ac.Result()
			partial = &result
		}
		metrics.ObserveAnalysisRun(executedCount(partial), true)
		s.fail(ctx, runID, partial, err)
		return
	}

	result := ac.Result()
	metrics.ObserveAnalysisRun(len(result.Executed), false)
	metrics.ObserveMismatches(len(result.Mismatches))
	metrics.AddSkippedRecords(skippedCount(&result))
	metrics.ObserveLowAccessPairs(lowAccessCount(result.Scores))
	if s.rollups != nil && len(result.Scores) > 0 {
		if err := s.rollups.WriteScores(ctx, runID.String(), result.Scores); err != nil {
			logger.Log.WithError(err).Warn("failed to persist score rollups")
		}
	}
	if cacheable {
		if err := s.cache.Put(ctx, cacheKey, &result); err != nil {
			logger.Log.WithError(err).Warn("failed to cache analysis result")
		}
	}
	s.complete(ctx, runID, &result)

	if s.producer != nil {
		payload := map[string]interface{}{
			"run_id":  runID.String(),
			"stages":  stageNames,
			"regions": runScope.Regions,
			"partial": result.Partial,
		}
		if err := s.producer.PublishEvent(ctx, "analysis_completed", "analytics-service", payload); err != nil {
			logger.Log.WithError(err).Warn("failed to publish analysis event")
		}
	}
}

func (s *Service) complete(ctx context.Context, runID uuid.UUID, result *models.AnalysisResult) {
	updates := map[string]interface{}{
		"status":        RunStatusCompleted,
		"completed_at":  time.Now().UTC(),
		"error_message": "",
		"result_count":  resultCount(result),
		"skipped_count": skippedCount(result),
	}
	if data, err := json.Marshal(result); err == nil {
		updates["result"] = datatypes.JSON(data)
	}
	_ = s.repo.Update(ctx, runID, updates)
}

func (s *Service) fail(ctx context.Context, runID uuid.UUID, partial *models.AnalysisResult, err error) {
	logger.Log.WithError(err).Error("analysis run failed")
	updates := map[string]interface{}{
		"status":        RunStatusFailed,
		"error_message": err.Error(),
		"completed_at":  time.Now().UTC(),
	}
	if partial != nil {
		if data, mErr := json.Marshal(partial); mErr == nil {
			updates["result"] = datatypes.JSON(data)
		}
	}
	_ = s.repo.Update(ctx, runID, updates)
}

func resultCount(result *models.AnalysisResult) int {
	if result == nil {
		return 0
	}
	return len(result.Mismatches) + len(result.Scores) + len(result.Deserts)
}

func skippedCount(result *models.AnalysisResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, citation := range result.Citations {
		total += citation.Skipped
	}
	return total
}

func executedCount(result *models.AnalysisResult) int {
	if result == nil {
		return 0
	}
	return len(result.Executed)
}

func lowAccessCount(scores []models.ReachabilityScore) int {
	count := 0
	for _, score := range scores {
		if score.LowAccess {
			count++
		}
	}
	return count
}

type Option func(*Service)

func WithResultCache(cache *storage.ResultCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithRollups(writer *storage.RollupWriter) Option {
	return func(s *Service) {
		s.rollups = writer
	}
}

func WithProducer(producer *kafka.Producer) Option {
	return func(s *Service) {
		s.producer = producer
	}
}
