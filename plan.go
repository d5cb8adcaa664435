package fetch

// Plan is a composable, pure description of a fetch computation: a tree
// of leaves and sequencing built from Pure, ErrorPlan, One, Many, Map,
// FlatMap, Join, Collect, Traverse, and Map2. A Plan is a value, built
// and consumed within a single Run/RunEnv/RunFetch call; it is never
// shared across runs.
//
// Values flowing through a Plan are carried as interface{} internally
// (the free-algebra encoding described in the package's design notes);
// the generic constructors and Run/RunFetch restore static types at the
// boundary.
type Plan interface {
	isPlan()
}

// pureLeaf yields its value with no fetch.
type pureLeaf struct{ value interface{} }

func (pureLeaf) isPlan() {}

// inlinedLeaf marks a value already retrieved from cache by the
// simplifier. It behaves exactly like pureLeaf during interpretation but
// is distinguishable from it during dependency extraction.
type inlinedLeaf struct{ value interface{} }

func (inlinedLeaf) isPlan() {}

// errorLeaf fails the whole run with err, surfaced unchanged.
type errorLeaf struct{ err error }

func (errorLeaf) isPlan() {}

// fetchOneLeaf fetches a single identity from one source.
type fetchOneLeaf struct {
	id interface{}
	ds anySource
}

func (fetchOneLeaf) isPlan() {}

// fetchManyLeaf fetches a list of identities from one source, yielding
// values in input order.
type fetchManyLeaf struct {
	ids []interface{}
	ds  anySource
}

func (fetchManyLeaf) isPlan() {}

// concurrentLeaf dispatches several FetchMany batches, possibly against
// different sources, within a single round.
type concurrentLeaf struct {
	batches []fetchManyLeaf
}

func (concurrentLeaf) isPlan() {}

// joinNode is the sole source of concurrency in the algebra: it pairs
// two plans and, on interpretation, resolves their outstanding
// dependencies in as few concurrent rounds as possible.
type joinNode struct {
	fa, fb Plan
}

func (joinNode) isPlan() {}

// bindNode sequences prev, then hands its resolved value to k to produce
// the continuation plan. FlatMap maintains the invariant that prev is
// never itself a bindNode (see flattenBind) so that dependency
// extraction and interpretation never need to look through nested
// binds.
type bindNode struct {
	prev Plan
	k    func(interface{}) Plan
}

func (bindNode) isPlan() {}

// pairValue is the result of joining two plans.
type pairValue struct {
	a, b interface{}
}

// Pure builds a Plan that yields a with no fetch.
func Pure[A any](a A) Plan {
	return pureLeaf{value: a}
}

// ErrorPlan builds a Plan that fails the run with err.
func ErrorPlan(err error) Plan {
	return errorLeaf{err: err}
}

// One builds a Plan that fetches a single identity from ds.
func One[I comparable, A any](id I, ds DataSource[I, A]) Plan {
	return fetchOneLeaf{id: id, ds: erase(ds)}
}

// Many builds a Plan that fetches ids from ds in one batch, yielding
// their values in input order. Run outside Join/Collect, a Many plan's
// round bookkeeping is RoundMany; under Join/Collect its ids join the
// combined batches and are logged in a RoundConcurrent round instead.
// ids is deduplicated by the interpreter, not here.
func Many[I comparable, A any](ids []I, ds DataSource[I, A]) Plan {
	erased := make([]interface{}, len(ids))
	for i, id := range ids {
		erased[i] = id
	}
	leaf := fetchManyLeaf{ids: erased, ds: erase(ds)}
	return Map(leaf, func(values []interface{}) []A {
		out := make([]A, len(values))
		for i, v := range values {
			out[i] = v.(A)
		}
		return out
	})
}

// Map transforms a Plan's resolved value with f, without introducing a
// fetch of its own.
func Map[A, B any](p Plan, f func(A) B) Plan {
	return FlatMap(p, func(a A) Plan {
		return Pure(f(a))
	})
}

// FlatMap sequences p with a continuation that, given p's resolved
// value, produces the next plan.
func FlatMap[A any](p Plan, f func(A) Plan) Plan {
	wrapped := func(v interface{}) Plan {
		return f(v.(A))
	}
	return flattenBind(p, wrapped)
}

// flattenBind appends k to p's continuation chain, preserving the
// invariant that a bindNode's prev field is never itself a bindNode.
// Without this, extraction and interpretation would need to handle
// arbitrarily nested binds instead of a flat prev/k pair.
func flattenBind(p Plan, k func(interface{}) Plan) Plan {
	if b, ok := p.(bindNode); ok {
		innerK := b.k
		return bindNode{
			prev: b.prev,
			k: func(v interface{}) Plan {
				return flattenBind(innerK(v), k)
			},
		}
	}
	return bindNode{prev: p, k: k}
}
