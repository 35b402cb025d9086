package aggregator

// cluster is one group of records judged to describe the same model,
// identified by index into the aggregation's record list. The first index
// is the seed every other member was scored against.
type cluster struct {
	members []int
}

// clusterRecords groups records by similarity in a single left-to-right
// greedy pass: the first unvisited record seeds a cluster and absorbs every
// later unvisited record whose similarity to the seed clears the threshold.
// Absorbed records are never re-compared, so the pass is one O(n²) sweep
// and the outcome is deterministic for a given input order.
func (a *Aggregator) clusterRecords(records []record, threshold float64) []cluster {
	clusters := make([]cluster, 0, len(records))
	visited := make([]bool, len(records))

	for i := range records {
		if visited[i] {
			continue
		}
		visited[i] = true
		c := cluster{members: []int{i}}

		for j := i + 1; j < len(records); j++ {
			if visited[j] {
				continue
			}
			if Similarity(&records[i].model, &records[j].model) >= threshold {
				visited[j] = true
				c.members = append(c.members, j)
			}
		}
		clusters = append(clusters, c)
	}
	return clusters
}
