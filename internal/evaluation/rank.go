package evaluation

import (
	"sort"

	"spread-strategy-lab/internal/domain"
)

// Rank sorts metrics by composite score descending. Equal scores break by
// lexicographically smaller agent ID, making the ranking a total order that
// is reproducible across runs. The input slice is not modified.
func Rank(metrics []*domain.PerformanceMetrics) []*domain.PerformanceMetrics {
	ranked := make([]*domain.PerformanceMetrics, len(metrics))
	copy(ranked, metrics)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].CompositeScore != ranked[j].CompositeScore {
			return ranked[i].CompositeScore > ranked[j].CompositeScore
		}
		return ranked[i].AgentID < ranked[j].AgentID
	})
	return ranked
}
