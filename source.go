package fetch

import "context"

// DataSourceName stably names a data source. Two source instances sharing
// a name are treated as the same source for batching purposes.
type DataSourceName string

// DataSourceIdentity is the cache key: a source name paired with an
// opaque identity value. Equality of the ID field is whatever the host
// uses as the underlying comparable type.
type DataSourceIdentity struct {
	Source DataSourceName
	ID     interface{}
}

// DataSource is the recipe a caller supplies for one named, batched
// lookup. I is the identity type, A the resolved value type. Fetch
// receives a non-empty, deduplicated list of ids and returns a map from
// id to value for the ids it could resolve; a missing key signals
// "not found" for that id.
//
// Fetch is expected to be idempotent and free of observable side effects
// on the cache; the engine may call it concurrently across different
// source instances but never issues two overlapping calls to the same
// source instance within one round.
type DataSource[I comparable, A any] interface {
	Name() DataSourceName
	Identity(id I) DataSourceIdentity
	Fetch(ctx context.Context, ids []I) (map[I]A, error)
}

// anySource is the type-erased boundary a DataSource crosses to take
// part in batch combining and caching, where distinct sources with
// distinct I/A types must be handled uniformly. Everywhere else in the
// engine, types stay as the caller declared them.
type anySource interface {
	Name() DataSourceName
	Identity(id interface{}) DataSourceIdentity
	Fetch(ctx context.Context, ids []interface{}) (map[interface{}]interface{}, error)
}

// erasedSource adapts a typed DataSource to the anySource boundary.
type erasedSource[I comparable, A any] struct {
	inner DataSource[I, A]
}

func erase[I comparable, A any](ds DataSource[I, A]) anySource {
	return erasedSource[I, A]{inner: ds}
}

func (e erasedSource[I, A]) Name() DataSourceName { return e.inner.Name() }

func (e erasedSource[I, A]) Identity(id interface{}) DataSourceIdentity {
	return e.inner.Identity(id.(I))
}

func (e erasedSource[I, A]) Fetch(ctx context.Context, ids []interface{}) (map[interface{}]interface{}, error) {
	typed := make([]I, len(ids))
	for i, id := range ids {
		typed[i] = id.(I)
	}
	res, err := e.inner.Fetch(ctx, typed)
	if err != nil {
		return nil, err
	}
	out := make(map[interface{}]interface{}, len(res))
	for k, v := range res {
		out[k] = v
	}
	return out, nil
}
