package fetch

// fetchRequest is one source's worth of outstanding identities, as
// surfaced by extractDeps before batch combining merges requests against
// the same source together.
type fetchRequest struct {
	ds  anySource
	ids []interface{}
}

// extractDeps walks plan and returns the flat list of outstanding leaf
// requests on its current branch: FetchOne (normalized to a one-element
// FetchMany), FetchMany, and the members of any Concurrent node gating
// the next interpretation step. Pure and Inlined leaves are "already
// known", so a bindNode built on top of one is resolved eagerly and its
// continuation contributes instead. The extractor never descends through
// a FetchOne/FetchMany/Concurrent/Join continuation, since the value
// those leaves would produce is not yet known: only the first wavefront
// of demand is collected.
func extractDeps(plan Plan) []fetchRequest {
	switch p := plan.(type) {
	case pureLeaf, inlinedLeaf, errorLeaf:
		return nil

	case fetchOneLeaf:
		return []fetchRequest{{ds: p.ds, ids: []interface{}{p.id}}}

	case fetchManyLeaf:
		return []fetchRequest{{ds: p.ds, ids: p.ids}}

	case concurrentLeaf:
		reqs := make([]fetchRequest, len(p.batches))
		for i, b := range p.batches {
			reqs[i] = fetchRequest{ds: b.ds, ids: b.ids}
		}
		return reqs

	case joinNode:
		return append(extractDeps(p.fa), extractDeps(p.fb)...)

	case bindNode:
		switch prev := p.prev.(type) {
		case pureLeaf:
			return extractDeps(p.k(prev.value))
		case inlinedLeaf:
			return extractDeps(p.k(prev.value))
		default:
			return extractDeps(p.prev)
		}

	default:
		return nil
	}
}
