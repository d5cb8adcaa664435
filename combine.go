package fetch

// combineRequests merges a list of per-source requests into one
// fetchManyLeaf per distinct source name (by DataSourceName), whose id
// list is the concatenation of the per-source id lists with duplicate
// identities removed, preserving first-seen order. Both the id order
// within a batch and the batch order itself are tie-broken by first
// appearance in reqs.
func combineRequests(reqs []fetchRequest) []fetchManyLeaf {
	order := make([]DataSourceName, 0, len(reqs))
	byName := map[DataSourceName]*fetchManyLeaf{}
	seen := map[DataSourceName]map[DataSourceIdentity]bool{}

	for _, r := range reqs {
		name := r.ds.Name()
		batch, ok := byName[name]
		if !ok {
			batch = &fetchManyLeaf{ds: r.ds}
			byName[name] = batch
			seen[name] = map[DataSourceIdentity]bool{}
			order = append(order, name)
		}
		for _, id := range r.ids {
			key := r.ds.Identity(id)
			if seen[name][key] {
				continue
			}
			seen[name][key] = true
			batch.ids = append(batch.ids, id)
		}
	}

	out := make([]fetchManyLeaf, len(order))
	for i, name := range order {
		out[i] = *byName[name]
	}
	return out
}
