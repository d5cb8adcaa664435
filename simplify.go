package fetch

// simplify rewrites plan's fetch leaves against cache: a FetchOne or
// fully-hit FetchMany becomes Inlined; a FetchMany with some but not all
// ids cached is left unchanged (the interpreter does its own per-id
// cache filtering, once, in one place, rather than having the simplifier
// reshape individual batches); a Concurrent node drops every batch whose
// ids fully hit, collapsing to Inlined of nothing remaining. Other leaves
// pass through unchanged. joinNode recurses into both sides
// structurally. bindNode simplifies prev first; when that resolves to
// Pure/Inlined its value is already known, so the continuation is
// evaluated and simplified in turn instead of sitting behind a bind,
// mirroring extractDeps's "already known, let the continuation
// contribute" treatment -- without this, interpretJoin would re-derive
// the same outstanding leaf via the continuation every round after its
// dependency is cached, and never converge.
func simplify(plan Plan, cache Cache) Plan {
	switch p := plan.(type) {
	case fetchOneLeaf:
		if v, ok := cache.Get(p.ds.Identity(p.id)); ok {
			return inlinedLeaf{value: v}
		}
		return p

	case fetchManyLeaf:
		values := make([]interface{}, len(p.ids))
		for i, id := range p.ids {
			v, ok := cache.Get(p.ds.Identity(id))
			if !ok {
				return p
			}
			values[i] = v
		}
		return inlinedLeaf{value: values}

	case concurrentLeaf:
		remaining := make([]fetchManyLeaf, 0, len(p.batches))
		for _, b := range p.batches {
			allHit := true
			for _, id := range b.ids {
				if _, ok := cache.Get(b.ds.Identity(id)); !ok {
					allHit = false
					break
				}
			}
			if !allHit {
				remaining = append(remaining, b)
			}
		}
		if len(remaining) == 0 {
			return inlinedLeaf{value: nil}
		}
		return concurrentLeaf{batches: remaining}

	case joinNode:
		return joinNode{fa: simplify(p.fa, cache), fb: simplify(p.fb, cache)}

	case bindNode:
		prev := simplify(p.prev, cache)
		switch pv := prev.(type) {
		case pureLeaf:
			return simplify(p.k(pv.value), cache)
		case inlinedLeaf:
			return simplify(p.k(pv.value), cache)
		default:
			return bindNode{prev: prev, k: p.k}
		}

	default:
		return p
	}
}
