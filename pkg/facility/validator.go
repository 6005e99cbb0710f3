package facility

import (
	"errors"
	"fmt"
	"strings"

	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/geo"
)

var (
	errInvalidSource      = errors.New("invalid source")
	errMissingName        = errors.New("facility name required")
	errInvalidState       = errors.New("invalid state")
	errInvalidCoordinates = errors.New("invalid coordinates")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type Validator struct {
	allowedSources map[string]struct{}
}

// NewValidator restricts intake to the given sources. An empty list
// accepts any non-blank source.
func NewValidator(sources []string) *Validator {
	vs := make(map[string]struct{})
	for _, src := range sources {
		if trimmed := strings.TrimSpace(strings.ToLower(src)); trimmed != "" {
			vs[trimmed] = struct{}{}
		}
	}
	return &Validator{allowedSources: vs}
}

func (v *Validator) ValidateSource(source string) error {
	trimmed := strings.TrimSpace(strings.ToLower(source))
	if trimmed == "" {
		return ValidationError{reason: fmt.Errorf("source required: %w", errInvalidSource)}
	}
	if len(v.allowedSources) > 0 {
		if _, ok := v.allowedSources[trimmed]; !ok {
			return ValidationError{reason: fmt.Errorf("source '%s' not allowed: %w", source, errInvalidSource)}
		}
	}
	return nil
}

// Normalize validates a submitted facility and returns its canonical
// form: state resolved to a USPS code, names trimmed, list fields
// deduplicated. Equipment strings keep their submitted casing; the
// knowledge base normalizes them during analysis.
func (v *Validator) Normalize(f models.Facility) (models.Facility, error) {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return models.Facility{}, ValidationError{reason: errMissingName}
	}

	code, ok := geo.NormalizeState(f.State)
	if !ok {
		return models.Facility{}, ValidationError{reason: fmt.Errorf("state '%s' not recognized: %w", f.State, errInvalidState)}
	}
	f.State = code
	f.City = strings.TrimSpace(f.City)
	f.FacilityType = strings.ToLower(strings.TrimSpace(f.FacilityType))

	if (f.Latitude == nil) != (f.Longitude == nil) {
		return models.Facility{}, ValidationError{reason: fmt.Errorf("latitude and longitude must be set together: %w", errInvalidCoordinates)}
	}
	if f.Latitude != nil {
		if *f.Latitude < -90 || *f.Latitude > 90 || *f.Longitude < -180 || *f.Longitude > 180 {
			return models.Facility{}, ValidationError{reason: fmt.Errorf("coordinates out of range: %w", errInvalidCoordinates)}
		}
	}

	f.Capabilities = dedupeList(f.Capabilities)
	f.Equipment = dedupeList(f.Equipment)
	f.ID = strings.TrimSpace(f.ID)
	return f, nil
}

// dedupeList trims entries, drops blanks, and keeps the first spelling
// of case-insensitive duplicates.
func dedupeList(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
