package models

import (
	"time"

	"github.com/google/uuid"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // facility_ingested, facility_updated, analysis_completed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Facility snapshot record. Owned by the caller of the pipeline and never
// mutated by it.
type Facility struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	State        string   `json:"state"` // USPS two-letter code
	City         string   `json:"city,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	FacilityType string   `json:"facility_type,omitempty"` // hospital, clinic, dialysis_center
	Capabilities []string `json:"capabilities"`
	Equipment    []string `json:"equipment"`
}

// Region granularities recognized by the analytics configuration.
const (
	GranularityState = "state"
	GranularityCity  = "city"
)

// RegionOf returns the facility's region key at the requested
// granularity. City granularity falls back to the state when the city is
// unset; state granularity is the default.
func RegionOf(f Facility, granularity string) string {
	if granularity == GranularityCity && f.City != "" {
		return f.City + ", " + f.State
	}
	return f.State
}

// Upstream intake models
type IngestRequest struct {
	Source    string            `json:"source"` // registry, survey, csv-import
	Facility  Facility          `json:"facility"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type BatchIngestRequest struct {
	Source     string     `json:"source"`
	Facilities []Facility `json:"facilities"`
}

type IngestResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type BatchIngestResponse struct {
	Accepted int              `json:"accepted"`
	Skipped  int              `json:"skipped"`
	Items    []IngestResponse `json:"items,omitempty"`
	Errors   []string         `json:"errors,omitempty"`
}

// Mismatch severity, ordered from worst to none.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
	SeverityNone     Severity = "none"
)

// Mismatch is a detected gap between a facility's claimed specialty and its
// verifiable equipment. One per (facility, specialty) pair with at least one
// missing item.
type Mismatch struct {
	FacilityID         string   `json:"facility_id"`
	FacilityName       string   `json:"facility_name,omitempty"`
	Region             string   `json:"region"`
	Specialty          string   `json:"specialty"`
	MissingCritical    []string `json:"missing_critical"`
	MissingRequired    []string `json:"missing_required"`
	MissingRecommended []string `json:"missing_recommended"`
	Severity           Severity `json:"severity"`
}

// ReachabilityScore combines geographic access and capability verification
// for one (region, specialty) pair. All factors are in [0,1].
type ReachabilityScore struct {
	Region           string  `json:"region"`
	Specialty        string  `json:"specialty"`
	GeographicFactor float64 `json:"geographic_factor"`
	CapabilityFactor float64 `json:"capability_factor"`
	CombinedScore    float64 `json:"combined_score"`
	LowAccess        bool    `json:"low_access"`
	FacilityCount    int     `json:"facility_count"`
	VerifiedCount    int     `json:"verified_count"`
}

// Contradiction graph models. One node per distinct facility with at
// least one mismatch; Specialties lists every specialty that facility has
// gaps in.
type ContradictionNode struct {
	FacilityID   string   `json:"facility_id"`
	FacilityName string   `json:"facility_name,omitempty"`
	Region       string   `json:"region"`
	Specialties  []string `json:"specialties"`
}

type ContradictionEdge struct {
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Specialty   string   `json:"specialty"`
	Category    string   `json:"category"`
	SharedItems []string `json:"shared_items"`
}

type ClusterClassification string

const (
	ClusterSystemic ClusterClassification = "systemic"
	ClusterIsolated ClusterClassification = "isolated"
)

type ContradictionCluster struct {
	ID             string                `json:"id"`
	FacilityIDs    []string              `json:"facility_ids"`
	Size           int                   `json:"size"`
	Classification ClusterClassification `json:"classification"`
	Pattern        string                `json:"pattern"`
}

type ContradictionGraph struct {
	Nodes    []ContradictionNode    `json:"nodes"`
	Edges    []ContradictionEdge    `json:"edges"`
	Clusters []ContradictionCluster `json:"clusters"`
}

// Desert typology models
type DesertType string

const (
	DesertSkill      DesertType = "skill"
	DesertCapability DesertType = "capability"
	DesertGeographic DesertType = "geographic"
)

type DesertSeverity string

const (
	DesertSevere   DesertSeverity = "severe"
	DesertModerate DesertSeverity = "moderate"
	DesertMild     DesertSeverity = "mild"
)

type DesertClassification struct {
	Region             string         `json:"region"`
	Specialty          string         `json:"specialty"`
	Types              []DesertType   `json:"types"`
	Severity           DesertSeverity `json:"severity"`
	PopulationEstimate int            `json:"population_estimate,omitempty"`
	Gaps               []string       `json:"gaps,omitempty"`
	Recommendations    []string       `json:"recommendations"`
}

// Counterfactual models
type ScoreDelta struct {
	Region    string  `json:"region"`
	Specialty string  `json:"specialty"`
	Before    float64 `json:"before"`
	After     float64 `json:"after"`
	Delta     float64 `json:"delta"`
}

type CounterfactualScenario struct {
	ScenarioID        string              `json:"scenario_id"`
	Description       string              `json:"description"`
	Additions         []Facility          `json:"additions"`
	Baseline          []ReachabilityScore `json:"baseline"`
	Recomputed        []ReachabilityScore `json:"recomputed"`
	Deltas            []ScoreDelta        `json:"deltas"`
	ResolvedDeserts   []string            `json:"resolved_deserts,omitempty"`
	IntroducedDeserts []string            `json:"introduced_deserts,omitempty"`
}

// Citation records one executed pipeline stage and the number of input
// records it processed, consumed verbatim by the response synthesizer for
// dataset attribution.
type Citation struct {
	Stage       string `json:"stage"`
	RecordCount int    `json:"record_count"`
	Skipped     int    `json:"skipped,omitempty"`
}

// Scope restricts a pipeline run to regions and specialties. Empty fields
// mean "all observed".
type Scope struct {
	Regions     []string `json:"regions,omitempty"`
	Specialties []string `json:"specialties,omitempty"`
}

// AnalysisResult is the structured pipeline output handed to consumers.
type AnalysisResult struct {
	Mismatches []Mismatch              `json:"mismatches,omitempty"`
	Scores     []ReachabilityScore     `json:"scores,omitempty"`
	Graph      *ContradictionGraph     `json:"graph,omitempty"`
	Deserts    []DesertClassification  `json:"deserts,omitempty"`
	Scenario   *CounterfactualScenario `json:"scenario,omitempty"`
	Citations  []Citation              `json:"citations"`
	Notes      []string                `json:"notes,omitempty"`
	Executed   []string                `json:"executed"`
	Partial    bool                    `json:"partial,omitempty"`
}

// Analysis run lifecycle
type AnalysisRequest struct {
	Query       string     `json:"query,omitempty"`  // free text, resolved by keyword router
	Stages      []string   `json:"stages,omitempty"` // explicit stage list overrides the router
	Scope       Scope      `json:"scope,omitempty"`
	ScopeExpr   string     `json:"scope_expr,omitempty"` // "state = CA and specialty = neurosurgery"
	Additions   []Facility `json:"additions,omitempty"`  // hypothetical facilities for counterfactual
	Async       bool       `json:"async,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
}

type AnalysisRun struct {
	ID           uuid.UUID       `json:"id"`
	Query        string          `json:"query,omitempty"`
	Stages       []string        `json:"stages"`
	Scope        Scope           `json:"scope"`
	Status       string          `json:"status"`
	ResultCount  int             `json:"result_count"`
	SkippedCount int             `json:"skipped_count"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RequestedBy  string          `json:"requested_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Result       *AnalysisResult `json:"result,omitempty"`
}

// Gateway auth surface
type TokenRequest struct {
	APIKey  string `json:"api_key"`
	Subject string `json:"subject,omitempty"`
	Role    string `json:"role,omitempty"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// Gateway query surface
type QueryRequest struct {
	Query string `json:"query"`
}

type QueryResponse struct {
	QueryID          string          `json:"query_id"`
	Query            string          `json:"query"`
	Stages           []string        `json:"stages"`
	Result           *AnalysisResult `json:"result,omitempty"`
	Attributions     []string        `json:"attributions,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
	ProcessingTimeMS float64         `json:"processing_time_ms"`
}
