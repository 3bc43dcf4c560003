package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/domain/repository"
)

// newTestRedis подключается к локальному Redis (DB 2) или пропускает тест
func newTestRedis(t *testing.T) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available for integration tests: %v", err)
	}

	r := NewRedisFromClient(client, zap.NewNop())
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		r.Close()
	})
	return r
}

func TestCacheRepository_GetSetDelete(t *testing.T) {
	repo := NewCacheRepository(newTestRedis(t))
	ctx := context.Background()

	val, err := repo.Get(ctx, "test:missing")
	require.NoError(t, err)
	assert.Nil(t, val, "miss is nil without error")

	require.NoError(t, repo.Set(ctx, "test:key", []byte(`{"a":1}`), time.Minute))

	val, err = repo.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(val))

	require.NoError(t, repo.Delete(ctx, "test:key"))
	val, err = repo.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestCacheRepository_DeleteByPrefix(t *testing.T) {
	repo := NewCacheRepository(newTestRedis(t))
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, repo.Set(ctx, fmt.Sprintf("map:v1:%d", i), []byte("x"), time.Minute))
	}
	require.NoError(t, repo.Set(ctx, "other:keep", []byte("y"), time.Minute))

	require.NoError(t, repo.DeleteByPrefix(ctx, "map:"))

	val, err := repo.Get(ctx, "map:v1:42")
	require.NoError(t, err)
	assert.Nil(t, val)

	val, err = repo.Get(ctx, "other:keep")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), val)
}

func TestCacheRepository_Stats(t *testing.T) {
	repo := NewCacheRepository(newTestRedis(t))
	ctx := context.Background()

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Nil(t, stats)

	in := &domain.Statistics{
		Records:  10,
		ZipCodes: 3,
		Breaks:   []int{1, 2, 3, 4, 5, 6},
		Weekly: domain.DistributionStats{
			Count:       4,
			Percentiles: map[string]float64{"p50": 2.5},
		},
		LastUpdated: time.Now().UTC().Truncate(time.Second),
		DataVersion: "v1",
	}
	require.NoError(t, repo.SetStats(ctx, in, time.Minute))

	out, err := repo.GetStats(ctx)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.Records, out.Records)
	assert.Equal(t, in.Breaks, out.Breaks)
	assert.Equal(t, 2.5, out.Weekly.Percentiles["p50"])
	assert.True(t, in.LastUpdated.Equal(out.LastUpdated))
}

func TestCacheRepository_CorruptStats(t *testing.T) {
	r := newTestRedis(t)
	repo := NewCacheRepository(r)
	ctx := context.Background()

	require.NoError(t, r.Client().Set(ctx, repository.StatsCacheKey, "not json", time.Minute).Err())

	_, err := repo.GetStats(ctx)
	assert.Error(t, err)
}
