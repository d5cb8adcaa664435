// Package fetch provides a batched, deduplicating, cache-coordinated
// data-fetching engine.
/*
Motivation

Backends that assemble a response from several remote lookups often end up
issuing far more calls than necessary: the same identity gets requested
twice, independent lookups against the same source are sent as separate
round trips, and lookups against different sources are resolved one after
another instead of concurrently.

This package lets a caller describe such a computation as a composable
Plan, built from pure values, single or batched fetches (One, Many), and
combinators (Map, FlatMap, Join, Collect, Traverse). Running the plan interprets it
round-by-round: identical requests are deduplicated against a cache,
independent requests against the same source are batched into a single
fetch call, and independent requests against different sources are
dispatched concurrently within one round. Every round extends an
immutable Environment (cache snapshot plus a chronological round log) that
the caller can inspect afterwards for timings and cache-hit ratios.

Data sources

A DataSource describes one named, batched lookup capability: an identity
derivation function and a Fetch method that resolves a deduplicated,
non-empty list of identities to a (possibly partial) map of results. The
engine never calls Fetch with an empty or duplicate-containing list, and
never issues two overlapping calls to the same source instance within a
single round.

Caches

A Cache is an immutable, persistent mapping from DataSourceIdentity to a
resolved value. Put and PutAll return a new Cache; the receiver is left
untouched. The default implementation, NewMemoryCache, keeps everything
in an in-process map; the Cache in a returned Environment can be passed
to a later Run. Callers needing a different backing store implement the
Cache interface themselves.
*/
package fetch
