package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/storygraph"
	"github.com/aretw0/storygraph/internal/config"
	"github.com/aretw0/storygraph/pkg/adapters/memory"
	"github.com/aretw0/storygraph/pkg/adapters/postgres"
	"github.com/aretw0/storygraph/pkg/adapters/redis"
	"github.com/aretw0/storygraph/pkg/storyfile"
)

// app is a Storygraph bound to the configured backend.
type app struct {
	sg      *storygraph.Storygraph
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// open wires the configured backend into a Storygraph. Story files from
// StoriesDir are seeded when the graph lives in memory.
func (c *cli) open(ctx context.Context, opts ...storygraph.Option) (*app, error) {
	a := &app{}
	opts = append([]storygraph.Option{storygraph.WithLogger(c.logger), storygraph.WithLockTTL(c.cfg.LockTTL)}, opts...)
	memoryGraph := false

	switch c.cfg.Backend {
	case config.BackendMemory:
		opts = append(opts, storygraph.WithGraph(memory.NewGraph()), storygraph.WithStore(memory.NewStore()))
		memoryGraph = true

	case config.BackendRedis:
		store := redis.New(c.cfg.RedisAddr, c.cfg.RedisPassword, c.cfg.RedisDB, redis.WithPrefix(c.cfg.RedisPrefix))
		if err := store.Client().Ping(ctx).Err(); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", c.cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, func() { store.Close() })
		opts = append(opts,
			storygraph.WithGraph(memory.NewGraph()),
			storygraph.WithStore(store),
			storygraph.WithLocker(redis.NewLocker(store.Client(), c.cfg.RedisPrefix)),
		)
		memoryGraph = true

	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, c.cfg.DatabaseURL, c.cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		opts = append(opts, storygraph.WithGraph(postgres.NewGraph(pool)), storygraph.WithStore(postgres.NewStore(pool)))

	default:
		return nil, fmt.Errorf("unknown backend %q", c.cfg.Backend)
	}

	a.sg = storygraph.New(opts...)
	if memoryGraph && c.cfg.StoriesDir != "" {
		if _, err := a.sg.SeedDir(ctx, c.cfg.StoriesDir); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// openFile seeds a single story file into a throwaway in-memory Storygraph.
func (c *cli) openFile(ctx context.Context, path string) (*storygraph.Storygraph, int64, *storyfile.Document, error) {
	doc, err := storyfile.Load(path)
	if err != nil {
		return nil, 0, nil, err
	}
	sg := storygraph.New(storygraph.WithLogger(c.logger))
	id, err := sg.Seed(ctx, doc)
	if err != nil {
		return nil, 0, doc, err
	}
	return sg, id, doc, nil
}

var errStorySource = errors.New("give a story file or --story")
