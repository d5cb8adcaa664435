package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RunOption configures a Run/RunEnv/RunFetch call.
type RunOption func(*runConfig)

type runConfig struct {
	logger zerolog.Logger
}

// WithLogger injects a zerolog.Logger that receives one debug-level event
// for every round the interpreter logs. The message names the round
// kind; single and many rounds carry the source and cached flag (many
// rounds also the identity count), concurrent rounds the batch count,
// and failed rounds the error. The default is a disabled logger.
func WithLogger(logger zerolog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

func newRunConfig(opts []RunOption) runConfig {
	cfg := runConfig{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Run interprets plan against cache and returns its final value. Any
// error aborts the run; there is no local recovery.
func Run[A any](ctx context.Context, plan Plan, cache Cache, opts ...RunOption) (A, error) {
	_, v, err := RunFetch[A](ctx, plan, cache, opts...)
	return v, err
}

// RunEnv interprets plan against cache and returns the resulting
// Environment, discarding the plan's final value.
func RunEnv(ctx context.Context, plan Plan, cache Cache, opts ...RunOption) (Environment, error) {
	env, _, err := RunFetch[interface{}](ctx, plan, cache, opts...)
	return env, err
}

// RunFetch interprets plan against cache and returns both the resulting
// Environment and the plan's final value.
func RunFetch[A any](ctx context.Context, plan Plan, cache Cache, opts ...RunOption) (Environment, A, error) {
	cfg := newRunConfig(opts)
	it := &interpreter{ctx: ctx, log: cfg.logger}

	v, env, err := it.interpret(plan, NewEnvironment(cache))
	var zero A
	if err != nil {
		return env, zero, err
	}
	typed, ok := v.(A)
	if !ok {
		return env, zero, fmt.Errorf("fetch: plan yielded %T, want %T", v, zero)
	}
	return env, typed, nil
}

// interpreter carries the per-run context and logger through the
// otherwise stateless recursive descent.
type interpreter struct {
	ctx context.Context
	log zerolog.Logger
}

func (it *interpreter) interpret(plan Plan, env Environment) (interface{}, Environment, error) {
	switch p := plan.(type) {
	case pureLeaf:
		return p.value, env, nil

	case inlinedLeaf:
		return p.value, env, nil

	case errorLeaf:
		return nil, env, p.err

	case fetchOneLeaf:
		return it.interpretOne(p, env)

	case fetchManyLeaf:
		return it.interpretMany(p, env)

	case concurrentLeaf:
		return it.interpretConcurrent(p, env)

	case joinNode:
		return it.interpretJoin(p.fa, p.fb, env)

	case bindNode:
		v, env2, err := it.interpret(p.prev, env)
		if err != nil {
			return nil, env2, err
		}
		return it.interpret(p.k(v), env2)

	default:
		return nil, env, fmt.Errorf("fetch: unknown plan node %T", plan)
	}
}

func (it *interpreter) interpretOne(p fetchOneLeaf, env Environment) (interface{}, Environment, error) {
	key := p.ds.Identity(p.id)
	start := time.Now()

	if v, ok := env.Cache.Get(key); ok {
		round := Round{
			Kind: RoundSingle, Source: p.ds.Name(), Identities: []DataSourceIdentity{key},
			CacheBefore: env.Cache, StartedAt: start, EndedAt: time.Now(), Cached: true,
		}
		newEnv := env.withRound(round, env.Cache, []DataSourceIdentity{key})
		it.log.Debug().Str("source", string(p.ds.Name())).Bool("cached", true).Msg("single round")
		return v, newEnv, nil
	}

	res, err := p.ds.Fetch(it.ctx, []interface{}{p.id})
	end := time.Now()
	round := Round{
		Kind: RoundSingle, Source: p.ds.Name(), Identities: []DataSourceIdentity{key},
		CacheBefore: env.Cache, StartedAt: start, EndedAt: end, Cached: false,
	}
	if err != nil {
		it.log.Debug().Str("source", string(p.ds.Name())).Err(err).Msg("single round source error")
		return nil, env.withRound(round, env.Cache, nil), err
	}

	v, ok := res[p.id]
	if !ok {
		failEnv := env.withRound(round, env.Cache, nil)
		it.log.Debug().Str("source", string(p.ds.Name())).Msg("single round missing identity")
		return nil, failEnv, &FetchFailureError{Identity: key, Env: failEnv}
	}

	newCache := env.Cache.PutAll(keyedBy(p.ds, res))
	newEnv := env.withRound(round, newCache, []DataSourceIdentity{key})
	it.log.Debug().Str("source", string(p.ds.Name())).Bool("cached", false).Msg("single round")
	return v, newEnv, nil
}

// keyedBy rekeys a source's fetch response (id -> value) by its full
// DataSourceIdentity, the shape Cache.PutAll requires so that Cache
// implementations never need to see the anySource erasure boundary.
func keyedBy(ds anySource, results map[interface{}]interface{}) map[DataSourceIdentity]interface{} {
	out := make(map[DataSourceIdentity]interface{}, len(results))
	for id, v := range results {
		out[ds.Identity(id)] = v
	}
	return out
}

func dedupIDs(ds anySource, ids []interface{}) []interface{} {
	seen := map[DataSourceIdentity]bool{}
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		key := ds.Identity(id)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, id)
	}
	return out
}

func (it *interpreter) interpretMany(p fetchManyLeaf, env Environment) (interface{}, Environment, error) {
	start := time.Now()
	unique := dedupIDs(p.ds, p.ids)

	misses := make([]interface{}, 0, len(unique))
	for _, id := range unique {
		if _, ok := env.Cache.Get(p.ds.Identity(id)); !ok {
			misses = append(misses, id)
		}
	}

	identitiesOf := func(ids []interface{}) []DataSourceIdentity {
		out := make([]DataSourceIdentity, len(ids))
		for i, id := range ids {
			out[i] = p.ds.Identity(id)
		}
		return out
	}

	if len(misses) == 0 {
		values := make([]interface{}, len(p.ids))
		for i, id := range p.ids {
			v, _ := env.Cache.Get(p.ds.Identity(id))
			values[i] = v
		}
		round := Round{
			Kind: RoundMany, Source: p.ds.Name(), Identities: identitiesOf(unique),
			CacheBefore: env.Cache, StartedAt: start, EndedAt: time.Now(), Cached: true,
		}
		newEnv := env.withRound(round, env.Cache, identitiesOf(unique))
		it.log.Debug().Str("source", string(p.ds.Name())).Int("count", len(unique)).Bool("cached", true).Msg("many round")
		return values, newEnv, nil
	}

	res, err := p.ds.Fetch(it.ctx, misses)
	end := time.Now()
	// The "cached" flag is true iff unique == misses, i.e. nothing in the
	// batch overlapped the pre-existing cache. This is the literal,
	// unintuitively-named bookkeeping documented on Round.Cached.
	cachedFlag := len(unique) == len(misses)
	round := Round{
		Kind: RoundMany, Source: p.ds.Name(), Identities: identitiesOf(unique),
		CacheBefore: env.Cache, StartedAt: start, EndedAt: end, Cached: cachedFlag,
	}

	if err != nil {
		it.log.Debug().Str("source", string(p.ds.Name())).Err(err).Msg("many round source error")
		return nil, env.withRound(round, env.Cache, nil), err
	}

	newCache := env.Cache.PutAll(keyedBy(p.ds, res))
	for _, id := range p.ids {
		if _, ok := newCache.Get(p.ds.Identity(id)); !ok {
			key := p.ds.Identity(id)
			failEnv := env.withRound(round, env.Cache, nil)
			it.log.Debug().Str("source", string(p.ds.Name())).Msg("many round missing identity")
			return nil, failEnv, &FetchFailureError{Identity: key, Env: failEnv}
		}
	}

	values := make([]interface{}, len(p.ids))
	for i, id := range p.ids {
		v, _ := newCache.Get(p.ds.Identity(id))
		values[i] = v
	}
	newEnv := env.withRound(round, newCache, identitiesOf(unique))
	it.log.Debug().Str("source", string(p.ds.Name())).Int("count", len(unique)).Bool("cached", cachedFlag).Msg("many round")
	return values, newEnv, nil
}

type concurrentBatch struct {
	ds     anySource
	all    []interface{}
	misses []interface{}
}

func (it *interpreter) interpretConcurrent(p concurrentLeaf, env Environment) (interface{}, Environment, error) {
	start := time.Now()

	actives := make([]concurrentBatch, 0, len(p.batches))
	for _, b := range p.batches {
		misses := make([]interface{}, 0, len(b.ids))
		for _, id := range b.ids {
			if _, ok := env.Cache.Get(b.ds.Identity(id)); !ok {
				misses = append(misses, id)
			}
		}
		if len(misses) == 0 {
			continue
		}
		actives = append(actives, concurrentBatch{ds: b.ds, all: b.ids, misses: misses})
	}

	if len(actives) == 0 {
		return env, env, nil
	}

	results := make([]map[interface{}]interface{}, len(actives))
	group, gctx := errgroup.WithContext(it.ctx)
	for i, b := range actives {
		i, b := i, b
		group.Go(func() error {
			res, err := b.ds.Fetch(gctx, b.misses)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	runErr := group.Wait()
	end := time.Now()

	if runErr != nil {
		attempted := map[DataSourceName][]DataSourceIdentity{}
		for _, b := range actives {
			ids := make([]DataSourceIdentity, len(b.misses))
			for j, id := range b.misses {
				ids[j] = b.ds.Identity(id)
			}
			attempted[b.ds.Name()] = ids
		}
		round := Round{
			Kind: RoundConcurrent, Batches: attempted,
			CacheBefore: env.Cache, StartedAt: start, EndedAt: end, Cached: false,
		}
		it.log.Debug().Err(runErr).Msg("concurrent round source error")
		return nil, env.withRound(round, env.Cache, nil), runErr
	}

	cache := env.Cache
	batchesLog := map[DataSourceName][]DataSourceIdentity{}
	var fetched []DataSourceIdentity
	for i, b := range actives {
		cache = cache.PutAll(keyedBy(b.ds, results[i]))
		ids := make([]DataSourceIdentity, len(b.misses))
		for j, id := range b.misses {
			ids[j] = b.ds.Identity(id)
		}
		batchesLog[b.ds.Name()] = ids
		fetched = append(fetched, ids...)
	}

	for _, b := range actives {
		for _, id := range b.all {
			if _, ok := cache.Get(b.ds.Identity(id)); !ok {
				key := b.ds.Identity(id)
				round := Round{
					Kind: RoundConcurrent, Batches: batchesLog,
					CacheBefore: env.Cache, StartedAt: start, EndedAt: end, Cached: false,
				}
				failEnv := env.withRound(round, env.Cache, nil)
				it.log.Debug().Msg("concurrent round missing identity")
				return nil, failEnv, &FetchFailureError{Identity: key, Env: failEnv}
			}
		}
	}

	round := Round{
		Kind: RoundConcurrent, Batches: batchesLog,
		CacheBefore: env.Cache, StartedAt: start, EndedAt: end, Cached: false,
	}
	newEnv := env.withRound(round, cache, fetched)
	it.log.Debug().Int("batches", len(actives)).Msg("concurrent round")
	return newEnv, newEnv, nil
}

// interpretJoin implements the join-handling recursion of the round
// interpreter: extract both sides' dependencies, combine them into one
// concurrent round, simplify both sides against the resulting cache, and
// either pair the (now resolved) results or recurse if either side still
// has outstanding demand. Each recursion strictly reduces the remaining
// dependency count, since every round fills at least one missing
// identity or fails, guaranteeing termination over a finite plan.
//
// This always lifts a Concurrent leaf from the combined batches, even
// when they land on a single source: per the join-handling algorithm,
// Join/Collect round bookkeeping is RoundConcurrent regardless of how
// many distinct sources are involved. RoundMany is produced only by
// interpreting a standalone Many plan directly (see Many in plan.go).
func (it *interpreter) interpretJoin(fa, fb Plan, env Environment) (interface{}, Environment, error) {
	batches := combineRequests(append(extractDeps(fa), extractDeps(fb)...))

	_, env2, err := it.interpretConcurrent(concurrentLeaf{batches: batches}, env)
	if err != nil {
		return nil, env2, err
	}

	fa2 := simplify(fa, env2.Cache)
	fb2 := simplify(fb, env2.Cache)

	remaining := combineRequests(append(extractDeps(fa2), extractDeps(fb2)...))
	if len(remaining) == 0 {
		va, env3, err := it.interpret(fa2, env2)
		if err != nil {
			return nil, env3, err
		}
		vb, env4, err := it.interpret(fb2, env3)
		if err != nil {
			return nil, env4, err
		}
		return pairValue{a: va, b: vb}, env4, nil
	}

	return it.interpretJoin(fa2, fb2, env2)
}
