package contradiction

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carescope-ai/platform/pkg/common/models"
)

// Missing-equipment categories used in edge signatures.
const (
	CategoryCritical    = "critical"
	CategoryRequired    = "required"
	CategoryRecommended = "recommended"
)

// Grapher builds a facility contradiction graph from mismatch findings.
// Two facilities are connected when they miss at least one identical item
// in the same category for the same claimed specialty. Large connected
// components point at upstream coding or pipeline issues rather than
// per-facility data entry errors.
type Grapher struct {
	clusterThreshold int
}

func NewGrapher(clusterThreshold int) *Grapher {
	if clusterThreshold <= 0 {
		clusterThreshold = 10
	}
	return &Grapher{clusterThreshold: clusterThreshold}
}

type facilityGaps struct {
	name        string
	region      string
	specialties map[string]struct{}
	// signature key "specialty|category" -> missing items
	signatures map[string]map[string]struct{}
}

// Build constructs the graph and its connected-component clusters. Output
// is deterministic for a given mismatch set: nodes, edges, and clusters
// all order by facility id.
func (g *Grapher) Build(mismatches []models.Mismatch) *models.ContradictionGraph {
	graph := &models.ContradictionGraph{}
	if len(mismatches) == 0 {
		return graph
	}

	byFacility := make(map[string]*facilityGaps)
	for _, m := range mismatches {
		gaps := byFacility[m.FacilityID]
		if gaps == nil {
			gaps = &facilityGaps{
				name:        m.FacilityName,
				region:      m.Region,
				specialties: make(map[string]struct{}),
				signatures:  make(map[string]map[string]struct{}),
			}
			byFacility[m.FacilityID] = gaps
		}
		gaps.specialties[m.Specialty] = struct{}{}
		gaps.addSignature(m.Specialty, CategoryCritical, m.MissingCritical)
		gaps.addSignature(m.Specialty, CategoryRequired, m.MissingRequired)
		gaps.addSignature(m.Specialty, CategoryRecommended, m.MissingRecommended)
	}

	ids := make([]string, 0, len(byFacility))
	for id := range byFacility {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		gaps := byFacility[id]
		graph.Nodes = append(graph.Nodes, models.ContradictionNode{
			FacilityID:   id,
			FacilityName: gaps.name,
			Region:       gaps.region,
			Specialties:  sortedKeys(gaps.specialties),
		})
	}

	adjacency := make(map[string]map[string]struct{})
	for i, source := range ids {
		for _, target := range ids[i+1:] {
			edges := sharedSignatureEdges(source, target, byFacility[source], byFacility[target])
			if len(edges) == 0 {
				continue
			}
			graph.Edges = append(graph.Edges, edges...)
			if adjacency[source] == nil {
				adjacency[source] = make(map[string]struct{})
			}
			if adjacency[target] == nil {
				adjacency[target] = make(map[string]struct{})
			}
			adjacency[source][target] = struct{}{}
			adjacency[target][source] = struct{}{}
		}
	}

	visited := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, done := visited[id]; done {
			continue
		}
		component := connectedComponent(id, adjacency, visited)
		cluster := models.ContradictionCluster{
			ID:          fmt.Sprintf("CLUSTER_%d", len(graph.Clusters)+1),
			FacilityIDs: component,
			Size:        len(component),
		}
		if cluster.Size >= g.clusterThreshold {
			cluster.Classification = models.ClusterSystemic
		} else {
			cluster.Classification = models.ClusterIsolated
		}
		cluster.Pattern = describePattern(component, byFacility)
		graph.Clusters = append(graph.Clusters, cluster)
	}

	return graph
}

func (fg *facilityGaps) addSignature(specialty, category string, items []string) {
	if len(items) == 0 {
		return
	}
	key := specialty + "|" + category
	set := fg.signatures[key]
	if set == nil {
		set = make(map[string]struct{}, len(items))
		fg.signatures[key] = set
	}
	for _, item := range items {
		set[item] = struct{}{}
	}
}

// sharedSignatureEdges emits one edge per (specialty, category) signature
// the two facilities share at least one missing item in.
func sharedSignatureEdges(source, target string, a, b *facilityGaps) []models.ContradictionEdge {
	keys := make([]string, 0, len(a.signatures))
	for key := range a.signatures {
		if _, ok := b.signatures[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var edges []models.ContradictionEdge
	for _, key := range keys {
		var shared []string
		for item := range a.signatures[key] {
			if _, ok := b.signatures[key][item]; ok {
				shared = append(shared, item)
			}
		}
		if len(shared) == 0 {
			continue
		}
		sort.Strings(shared)
		specialty, category, _ := strings.Cut(key, "|")
		edges = append(edges, models.ContradictionEdge{
			Source:      source,
			Target:      target,
			Specialty:   specialty,
			Category:    category,
			SharedItems: shared,
		})
	}
	return edges
}

func connectedComponent(start string, adjacency map[string]map[string]struct{}, visited map[string]struct{}) []string {
	stack := []string{start}
	var component []string
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := visited[id]; done {
			continue
		}
		visited[id] = struct{}{}
		component = append(component, id)
		for _, neighbor := range sortedKeys(adjacency[id]) {
			if _, done := visited[neighbor]; !done {
				stack = append(stack, neighbor)
			}
		}
	}
	sort.Strings(component)
	return component
}

// describePattern summarizes a cluster as "N facilities in R claim S with
// infrastructure gaps", naming the specialty most facilities in the
// cluster have gaps in.
func describePattern(component []string, byFacility map[string]*facilityGaps) string {
	regions := make(map[string]struct{})
	specialtyCounts := make(map[string]int)
	for _, id := range component {
		gaps := byFacility[id]
		regions[gaps.region] = struct{}{}
		for specialty := range gaps.specialties {
			specialtyCounts[specialty]++
		}
	}

	topSpecialty := ""
	topCount := 0
	for _, specialty := range sortedCountKeys(specialtyCounts) {
		if specialtyCounts[specialty] > topCount {
			topSpecialty = specialty
			topCount = specialtyCounts[specialty]
		}
	}

	return fmt.Sprintf("%d facilities in %s claim %s with infrastructure gaps",
		len(component), strings.Join(sortedKeys(regions), ", "), topSpecialty)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedCountKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
