package facility

import (
	"time"

	"github.com/carescope-ai/platform/pkg/common/models"
)

type RequestWrapper struct {
	Source   string            `json:"source"`
	Facility models.Facility   `json:"facility"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (r RequestWrapper) ToModel() models.IngestRequest {
	return models.IngestRequest{
		Source:    r.Source,
		Facility:  r.Facility,
		Timestamp: time.Now().UTC(),
		Metadata:  r.Metadata,
	}
}

type BatchRequestWrapper struct {
	Source     string            `json:"source"`
	Facilities []models.Facility `json:"facilities"`
}

func (r BatchRequestWrapper) ToModel() models.BatchIngestRequest {
	return models.BatchIngestRequest{
		Source:     r.Source,
		Facilities: r.Facilities,
	}
}
