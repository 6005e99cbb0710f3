package facility

import (
	"time"

	"gorm.io/datatypes"

	"github.com/carescope-ai/platform/pkg/common/models"
)

// Record is the persisted form of a facility registry entry. Capability
// and equipment lists are stored as JSON columns; analysis normalizes
// them against the knowledge base at query time, so the raw claimed
// strings are preserved here.
type Record struct {
	ID           string                      `json:"id" gorm:"primaryKey;column:id"`
	Name         string                      `json:"name" gorm:"column:name"`
	State        string                      `json:"state" gorm:"column:state"`
	City         string                      `json:"city,omitempty" gorm:"column:city"`
	Latitude     *float64                    `json:"latitude,omitempty" gorm:"column:latitude"`
	Longitude    *float64                    `json:"longitude,omitempty" gorm:"column:longitude"`
	FacilityType string                      `json:"facility_type,omitempty" gorm:"column:facility_type"`
	Capabilities datatypes.JSONSlice[string] `json:"capabilities" gorm:"column:capabilities"`
	Equipment    datatypes.JSONSlice[string] `json:"equipment" gorm:"column:equipment"`
	Source       string                      `json:"source,omitempty" gorm:"column:source"`
	Verified     bool                        `json:"verified" gorm:"column:verified"`
	VerifyNote   string                      `json:"verify_note,omitempty" gorm:"column:verify_note"`
	CreatedAt    time.Time                   `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time                   `json:"updated_at" gorm:"column:updated_at"`
}

func (Record) TableName() string {
	return "facilities"
}

func (r *Record) ToModel() models.Facility {
	return models.Facility{
		ID:           r.ID,
		Name:         r.Name,
		State:        r.State,
		City:         r.City,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		FacilityType: r.FacilityType,
		Capabilities: []string(r.Capabilities),
		Equipment:    []string(r.Equipment),
	}
}

func recordFromModel(f models.Facility, source string) *Record {
	return &Record{
		ID:           f.ID,
		Name:         f.Name,
		State:        f.State,
		City:         f.City,
		Latitude:     f.Latitude,
		Longitude:    f.Longitude,
		FacilityType: f.FacilityType,
		Capabilities: datatypes.NewJSONSlice(f.Capabilities),
		Equipment:    datatypes.NewJSONSlice(f.Equipment),
		Source:       source,
	}
}
