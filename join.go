package fetch

import "context"

// Join combines two independent plans, resolving both sides' outstanding
// requests together: fetches against the same source are batched, and
// fetches against different sources are dispatched concurrently within
// one round. It is the sole source of concurrency in the algebra; Map2,
// Collect and Traverse reduce to Join plus Map.
func Join[A, B any](fa, fb Plan) Plan {
	return joinNode{fa: fa, fb: fb}
}

// RunPair runs a Plan built with Join[A, B] and returns its two typed
// components directly, since the pair Join produces is carried as an
// unexported type internally.
func RunPair[A, B any](ctx context.Context, plan Plan, cache Cache, opts ...RunOption) (A, B, error) {
	p, err := Run[pairValue](ctx, plan, cache, opts...)
	var zeroA A
	var zeroB B
	if err != nil {
		return zeroA, zeroB, err
	}
	return p.a.(A), p.b.(B), nil
}

// Map2 joins fa and fb, then combines their results with f.
func Map2[A, B, C any](f func(A, B) C, fa, fb Plan) Plan {
	return Map(Join[A, B](fa, fb), func(p pairValue) C {
		return f(p.a.(A), p.b.(B))
	})
}

// Collect resolves a list of independent plans, returning their results
// in the same order. A list of n independent single-source fetches
// resolves in one concurrent round.
func Collect[A any](plans []Plan) Plan {
	if len(plans) == 0 {
		return Pure([]A{})
	}
	acc := Map(plans[0], func(a A) []A { return []A{a} })
	for _, p := range plans[1:] {
		p := p
		acc = Map(Join[[]A, A](acc, p), func(pr pairValue) []A {
			return append(pr.a.([]A), pr.b.(A))
		})
	}
	return acc
}

// Traverse maps f over list and resolves the resulting plans as
// Collect would.
func Traverse[T, A any](list []T, f func(T) Plan) Plan {
	plans := make([]Plan, len(list))
	for i, v := range list {
		plans[i] = f(v)
	}
	return Collect[A](plans)
}
