package movement

import (
	"sort"

	"github.com/piosteiner/adenai-map/internal/models"
)

// Group splits a path's points by exact coordinate. Groups appear in order
// of their first visit; visits inside a group follow the path sequence.
func Group(points []models.Point) []models.LocationCluster {
	var clusters []models.LocationCluster
	byKey := make(map[string]int)

	for _, p := range points {
		key := p.Coordinates.Key()
		idx, ok := byKey[key]
		if !ok {
			idx = len(clusters)
			byKey[key] = idx
			clusters = append(clusters, models.LocationCluster{Key: key, Center: p.Coordinates})
		}
		clusters[idx].Visits = append(clusters[idx].Visits, p)
	}

	for i := range clusters {
		visits := clusters[i].Visits
		if len(visits) < 2 {
			continue
		}
		sort.SliceStable(visits, func(a, b int) bool {
			return visits[a].SequenceIndex < visits[b].SequenceIndex
		})
	}
	return clusters
}

// Index holds the location clusters of every built path, keyed by entity
type Index struct {
	clusters map[string][]models.LocationCluster
}

// NewIndex creates an empty clustering index
func NewIndex() *Index {
	return &Index{clusters: make(map[string][]models.LocationCluster)}
}

// Rebuild replaces the whole index with the clusters of paths.
func (x *Index) Rebuild(paths []models.Path) {
	x.clusters = make(map[string][]models.LocationCluster, len(paths))
	for _, p := range paths {
		x.clusters[p.EntityID] = Group(p.Points)
	}
}

// ClustersFor returns the clusters of one entity, nil if it has no path.
func (x *Index) ClustersFor(entityID string) []models.LocationCluster {
	return x.clusters[entityID]
}

// Len returns the number of indexed entities.
func (x *Index) Len() int {
	return len(x.clusters)
}
