package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/aretw0/storygraph/pkg/adapters/postgres"
	"github.com/aretw0/storygraph/pkg/ports"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPool connects to STORYGRAPH_TEST_DATABASE_URL and applies migrations.
// Tests are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("STORYGRAPH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("STORYGRAPH_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, url, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.NewMigrator(pool, nil).Up(ctx))
	return pool
}

func TestPostgresGraph_Contract(t *testing.T) {
	pool := testPool(t)
	ports.RunGraphAccessorContract(t, postgres.NewGraph(pool))
}

func TestPostgresStore_Contract(t *testing.T) {
	pool := testPool(t)
	ports.RunProgressStoreContract(t, postgres.NewStore(pool))
}

func TestMigrator_Version(t *testing.T) {
	pool := testPool(t)

	version, dirty, err := postgres.NewMigrator(pool, nil).Version(context.Background())
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.GreaterOrEqual(t, version, uint(1))
}

func TestConnect_BadURL(t *testing.T) {
	_, err := postgres.Connect(context.Background(), "://not a url", 1)
	assert.Error(t, err)
}
