package facility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carescope-ai/platform/pkg/common/kafka"
	"github.com/carescope-ai/platform/pkg/common/logger"
	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/observability/metrics"
)

var ErrVerificationDisabled = errors.New("external verification disabled")

// CacheInvalidator retires cached analysis results after an ingest, so
// no query answers from a pre-ingest snapshot.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Verifier checks a facility's claims against an external registry.
type Verifier interface {
	VerifyFacility(ctx context.Context, f models.Facility) (bool, string, error)
}

type Service struct {
	validator *Validator
	repo      *Repository
	producer  *kafka.Producer
	dlq       *kafka.Producer
	cache     CacheInvalidator
	verifier  Verifier
}

func NewService(validator *Validator, repo *Repository, producer *kafka.Producer, dlq *kafka.Producer, opts ...Option) *Service {
	svc := &Service{
		validator: validator,
		repo:      repo,
		producer:  producer,
		dlq:       dlq,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Ingest validates, normalizes, and upserts one facility, then publishes
// a facility_ingested event. The row stays persisted even when the event
// publish fails; the failed payload lands on the DLQ for replay.
func (s *Service) Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestResponse, error) {
	if err := s.validator.ValidateSource(req.Source); err != nil {
		metrics.IncFacilityRejected()
		return nil, err
	}
	normalized, err := s.validator.Normalize(req.Facility)
	if err != nil {
		metrics.IncFacilityRejected()
		return nil, err
	}
	if normalized.ID == "" {
		normalized.ID = uuid.New().String()
	}

	record := recordFromModel(normalized, req.Source)
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("persisting facility: %w", err)
	}

	payload := map[string]interface{}{
		"facility_id": normalized.ID,
		"state":       normalized.State,
		"source":      req.Source,
		"received_at": time.Now().UTC(),
	}
	if sendErr := s.producer.PublishEvent(ctx, "facility_ingested", req.Source, payload); sendErr != nil {
		logger.Log.WithError(sendErr).Error("failed to publish facility event")
		if s.dlq != nil {
			if dlqErr := s.dlq.PublishEvent(ctx, "facility-ingest-dlq", req.Source, payload); dlqErr != nil {
				logger.Log.WithError(dlqErr).Error("failed to push facility event to DLQ")
			}
		}
		return nil, fmt.Errorf("publishing event: %w", sendErr)
	}

	s.invalidateCache(ctx)
	metrics.IncFacilityIngested()
	if count, err := s.repo.Count(ctx); err == nil {
		metrics.ObserveFacilityTotal(count)
	}

	return &models.IngestResponse{
		ID:        normalized.ID,
		Status:    "published",
		Timestamp: time.Now().UTC(),
	}, nil
}

// IngestBatch processes facilities independently. Validation failures
// skip the record and note the reason; infrastructure failures abort
// since later records would fail the same way.
func (s *Service) IngestBatch(ctx context.Context, req models.BatchIngestRequest) (*models.BatchIngestResponse, error) {
	resp := &models.BatchIngestResponse{}
	for i, f := range req.Facilities {
		item, err := s.Ingest(ctx, models.IngestRequest{Source: req.Source, Facility: f})
		if err != nil {
			if IsValidationError(err) {
				resp.Skipped++
				resp.Errors = append(resp.Errors, fmt.Sprintf("record %d: %v", i, err))
				continue
			}
			return resp, err
		}
		resp.Accepted++
		resp.Items = append(resp.Items, *item)
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, state string, limit, offset int) ([]Record, error) {
	return s.repo.List(ctx, state, limit, offset)
}

// Verify runs the external registry check for one facility and stores
// the outcome on the record.
func (s *Service) Verify(ctx context.Context, id string) (*Record, error) {
	if s.verifier == nil {
		return nil, ErrVerificationDisabled
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	verified, note, err := s.verifier.VerifyFacility(ctx, rec.ToModel())
	if err != nil {
		return nil, fmt.Errorf("external verification: %w", err)
	}
	if err := s.repo.SetVerification(ctx, id, verified, note); err != nil {
		return nil, err
	}
	rec.Verified = verified
	rec.VerifyNote = note
	return rec, nil
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.Log.WithError(err).Warn("failed to invalidate result cache")
	}
}

type Option func(*Service)

func WithResultCache(cache CacheInvalidator) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithVerifier(verifier Verifier) Option {
	return func(s *Service) {
		s.verifier = verifier
	}
}
