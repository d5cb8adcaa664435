package fetch_test

import (
	"context"
	"fmt"

	"github.com/guersam/fetch"
)

// userSource resolves user ids to display names from an in-memory table,
// printing every batch it is asked to fetch.
type userSource struct {
	table map[int]string
}

func (userSource) Name() fetch.DataSourceName { return "Users" }

func (userSource) Identity(id int) fetch.DataSourceIdentity {
	return fetch.DataSourceIdentity{Source: "Users", ID: id}
}

func (s userSource) Fetch(ctx context.Context, ids []int) (map[int]string, error) {
	fmt.Printf("Users.Fetch(%v)\n", ids)
	out := make(map[int]string, len(ids))
	for _, id := range ids {
		if name, ok := s.table[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// ExampleJoin shows two independent single fetches against the same
// source resolving in one batched round trip.
func ExampleJoin() {
	users := userSource{table: map[int]string{1: "Clark", 2: "Lois"}}

	plan := fetch.Join[string, string](
		fetch.One[int, string](1, users),
		fetch.One[int, string](2, users),
	)

	a, b, err := fetch.RunPair[string, string](context.Background(), plan, fetch.NewMemoryCache())
	if err != nil {
		panic(err)
	}
	fmt.Println(a, b)
	// Output:
	// Users.Fetch([1 2])
	// Clark Lois
}

// ExampleRunEnv reruns a plan against a cache already populated by a
// prior run, making no further source calls.
func ExampleRunEnv() {
	users := userSource{table: map[int]string{1: "Clark", 2: "Lois"}}
	ctx := context.Background()

	first := fetch.Join[string, string](fetch.One[int, string](1, users), fetch.One[int, string](2, users))
	env, err := fetch.RunEnv(ctx, first, fetch.NewMemoryCache())
	if err != nil {
		panic(err)
	}

	name, err := fetch.Run[string](ctx, fetch.One[int, string](1, users), env.Cache)
	if err != nil {
		panic(err)
	}
	fmt.Println(name)
	// Output:
	// Users.Fetch([1 2])
	// Clark
}
