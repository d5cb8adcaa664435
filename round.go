package fetch

import "time"

// RoundKind distinguishes how a Round resolved its identities.
type RoundKind int

const (
	// RoundSingle is a FetchOne round.
	RoundSingle RoundKind = iota
	// RoundMany is a FetchMany round against one source.
	RoundMany
	// RoundConcurrent dispatches batches against possibly different
	// sources within one round.
	RoundConcurrent
)

func (k RoundKind) String() string {
	switch k {
	case RoundSingle:
		return "single"
	case RoundMany:
		return "many"
	case RoundConcurrent:
		return "concurrent"
	default:
		return "unknown"
	}
}

// Round records one fetch act. Rounds are append-only; the log never
// mutates a previously appended Round.
type Round struct {
	Kind RoundKind

	// Source is populated for RoundSingle and RoundMany; empty for
	// RoundConcurrent, where Batches carries the per-source breakdown.
	Source DataSourceName

	// Identities is the full list involved for RoundSingle/RoundMany.
	Identities []DataSourceIdentity

	// Batches maps source name to the identities passed to its Fetch
	// call, populated only for RoundConcurrent (including a round whose
	// Fetch calls failed).
	Batches map[DataSourceName][]DataSourceIdentity

	// CacheBefore is the cache snapshot observed at the start of the
	// round; for a cached round, it is identical to the cache
	// afterwards since no mutation occurred.
	CacheBefore Cache

	StartedAt time.Time
	EndedAt   time.Time

	// Cached marks a round that made no outbound source call, for
	// RoundSingle and RoundConcurrent. For a RoundMany round that called
	// Fetch it is literally "unique identity count equals miss count",
	// which is true precisely when nothing in the batch was already
	// cached -- the inverse of what the name suggests. A RoundMany round
	// served entirely from cache is also Cached, so for RoundMany the flag
	// is true both for a genuine full cache hit and for a round that made
	// a real call against a totally uncached batch. That bookkeeping quirk is preserved as
	// documented rather than fixed, to keep round logs comparable
	// across implementations of this engine; callers who need to know
	// whether a RoundMany round actually called Fetch should compare
	// Identities against CacheBefore instead of reading Cached (see
	// Environment.Stats's fetchCalled helper).
	Cached bool
}

// Environment is the immutable state threaded through interpretation: a
// cache snapshot, the chronological round log, and the identities
// touched by the most recent round. Every transition produces a
// successor Environment; the cache of environment n+1 is a superset (by
// key) of the cache of environment n, and every round's start timestamp
// is at or after the preceding round's end timestamp.
type Environment struct {
	Cache       Cache
	Rounds      []Round
	LastFetched []DataSourceIdentity
}

// NewEnvironment returns an Environment with an empty round log around
// the given cache.
func NewEnvironment(cache Cache) Environment {
	return Environment{Cache: cache}
}

func (e Environment) withRound(r Round, cache Cache, fetched []DataSourceIdentity) Environment {
	rounds := make([]Round, len(e.Rounds)+1)
	copy(rounds, e.Rounds)
	rounds[len(e.Rounds)] = r
	return Environment{Cache: cache, Rounds: rounds, LastFetched: fetched}
}

// Stats summarizes the round log for observability. It is derived
// entirely from Environment.Rounds and is never consulted by the engine
// itself.
type Stats struct {
	TotalRounds       int
	CachedRounds      int
	SourceCallCounts  map[DataSourceName]int
	IdentitiesFetched int
}

// Stats computes a summary of the round log: total rounds, how many made
// no outbound call, a per-source call count, and the total number of
// identities fetched across all rounds (identities a round found in its
// own CacheBefore snapshot are not counted).
//
// This does not read r.Cached directly for RoundSingle/RoundMany: for
// RoundMany, Cached's documented quirk makes it true both when the
// round made no call (a full cache hit) and when it made a real call
// that missed the pre-existing cache entirely, so it cannot by itself
// tell Stats whether a call happened. fetchCalled resolves that by
// checking the round's own pre-fetch cache snapshot instead.
func (e Environment) Stats() Stats {
	s := Stats{SourceCallCounts: map[DataSourceName]int{}}
	for _, r := range e.Rounds {
		s.TotalRounds++
		switch r.Kind {
		case RoundSingle, RoundMany:
			if fetchCalled(r) {
				s.SourceCallCounts[r.Source]++
			} else {
				s.CachedRounds++
			}
			for _, id := range r.Identities {
				if _, ok := r.CacheBefore.Get(id); !ok {
					s.IdentitiesFetched++
				}
			}
		case RoundConcurrent:
			for name, ids := range r.Batches {
				s.SourceCallCounts[name]++
				s.IdentitiesFetched += len(ids)
			}
			if len(r.Batches) == 0 {
				s.CachedRounds++
			}
		}
	}
	return s
}

// fetchCalled reports whether r issued a real outbound Fetch call, by
// checking whether every one of its identities was already present in
// the cache snapshot observed at the start of the round. RoundConcurrent
// rounds are only ever logged when at least one batch had a miss, so
// they are not routed through this check.
func fetchCalled(r Round) bool {
	for _, id := range r.Identities {
		if _, ok := r.CacheBefore.Get(id); !ok {
			return true
		}
	}
	return false
}
