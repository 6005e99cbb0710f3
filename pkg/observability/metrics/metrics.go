package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	facilitiesIngested  atomic.Int64
	facilitiesRejected  atomic.Int64
	facilityTotal       atomic.Int64
	analysisCompleted   atomic.Int64
	analysisFailed      atomic.Int64
	analysisStagesRun   atomic.Int64
	analysisCacheHits   atomic.Int64
	analysisCacheMisses atomic.Int64
	analysisMismatches  atomic.Int64
	skippedRecords      atomic.Int64
	lowAccessPairs      atomic.Int64
)

func Init() {}

func IncFacilityIngested() {
	facilitiesIngested.Add(1)
}

func IncFacilityRejected() {
	facilitiesRejected.Add(1)
}

// ObserveFacilityTotal records the sampled registry size.
func ObserveFacilityTotal(count int64) {
	facilityTotal.Store(count)
}

func ObserveAnalysisRun(stages int, failed bool) {
	if failed {
		analysisFailed.Add(1)
	} else {
		analysisCompleted.Add(1)
	}
	analysisStagesRun.Add(int64(stages))
}

func IncCacheHit() {
	analysisCacheHits.Add(1)
}

func IncCacheMiss() {
	analysisCacheMisses.Add(1)
}

// ObserveMismatches records how many capability mismatches the latest
// completed run found.
func ObserveMismatches(count int) {
	analysisMismatches.Store(int64(count))
}

func AddSkippedRecords(count int) {
	skippedRecords.Add(int64(count))
}

// ObserveLowAccessPairs records how many region x specialty pairs the
// latest completed run flagged as low access.
func ObserveLowAccessPairs(count int) {
	lowAccessPairs.Store(int64(count))
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP carescope_facilities_ingested_total Number of facility records accepted since start.\n")
	fmt.Fprintf(w, "# TYPE carescope_facilities_ingested_total counter\n")
	fmt.Fprintf(w, "carescope_facilities_ingested_total %d\n", facilitiesIngested.Load())

	fmt.Fprintf(w, "# HELP carescope_facilities_rejected_total Number of facility records rejected by validation since start.\n")
	fmt.Fprintf(w, "# TYPE carescope_facilities_rejected_total counter\n")
	fmt.Fprintf(w, "carescope_facilities_rejected_total %d\n", facilitiesRejected.Load())

	fmt.Fprintf(w, "# HELP carescope_facility_registry_size Number of facilities currently stored.\n")
	fmt.Fprintf(w, "# TYPE carescope_facility_registry_size gauge\n")
	fmt.Fprintf(w, "carescope_facility_registry_size %d\n", facilityTotal.Load())

	fmt.Fprintf(w, "# HELP carescope_analysis_completed_total Number of analysis runs completed since start.\n")
	fmt.Fprintf(w, "# TYPE carescope_analysis_completed_total counter\n")
	fmt.Fprintf(w, "carescope_analysis_completed_total %d\n", analysisCompleted.Load())

	fmt.Fprintf(w, "# HELP carescope_analysis_failed_total Number of analysis runs failed since start.\n")
	fmt.Fprintf(w, "# TYPE carescope_analysis_failed_total counter\n")
	fmt.Fprintf(w, "carescope_analysis_failed_total %d\n", analysisFailed.Load())

	fmt.Fprintf(w, "# HELP carescope_analysis_stages_total Number of pipeline stages executed since start.\n")
	fmt.Fprintf(w, "# TYPE carescope_analysis_stages_total counter\n")
	fmt.Fprintf(w, "carescope_analysis_stages_total %d\n", analysisStagesRun.Load())

	fmt.Fprintf(w, "# HELP carescope_analysis_cache_hits_total Number of analyses served from the result cache.\n")
	fmt.Fprintf(w, "# TYPE carescope_analysis_cache_hits_total counter\n")
	fmt.Fprintf(w, "carescope_analysis_cache_hits_total %d\n", analysisCacheHits.Load())

	fmt.Fprintf(w, "# HELP carescope_analysis_cache_misses_total Number of analyses computed without a cache hit.\n")
	fmt.Fprintf(w, "# TYPE carescope_analysis_cache_misses_total counter\n")
	fmt.Fprintf(w, "carescope_analysis_cache_misses_total %d\n", analysisCacheMisses.Load())

	fmt.Fprintf(w, "# HELP carescope_analysis_mismatches Capability mismatches found by the latest completed run.\n")
	fmt.Fprintf(w, "# TYPE carescope_analysis_mismatches gauge\n")
	fmt.Fprintf(w, "carescope_analysis_mismatches %d\n", analysisMismatches.Load())

	fmt.Fprintf(w, "# HELP carescope_analysis_skipped_records_total Malformed or unresolvable records skipped across runs since start.\n")
	fmt.Fprintf(w, "# TYPE carescope_analysis_skipped_records_total counter\n")
	fmt.Fprintf(w, "carescope_analysis_skipped_records_total %d\n", skippedRecords.Load())

	fmt.Fprintf(w, "# HELP carescope_low_access_pairs Region and specialty pairs flagged low access in the latest run.\n")
	fmt.Fprintf(w, "# TYPE carescope_low_access_pairs gauge\n")
	fmt.Fprintf(w, "carescope_low_access_pairs %d\n", lowAccessPairs.Load())
}
