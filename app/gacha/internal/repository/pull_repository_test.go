package repository

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/dao"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB 连接 GACHA_TEST_PG_HOST 指向的数据库并建表，未设置时跳过
func openTestDB(t *testing.T) *postgres.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	host := os.Getenv("GACHA_TEST_PG_HOST")
	if host == "" {
		t.Skip("GACHA_TEST_PG_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("GACHA_TEST_PG_PORT"))
	if port == 0 {
		port = 5432
	}
	db, err := postgres.New(&postgres.Config{
		Master: &postgres.DBConfig{
			Host:     host,
			Port:     port,
			User:     os.Getenv("GACHA_TEST_PG_USER"),
			Password: os.Getenv("GACHA_TEST_PG_PASSWORD"),
			DBName:   os.Getenv("GACHA_TEST_PG_DB"),
		},
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, dao.EnsureSchema(context.Background(), db))
	return db
}

func insertItem(t *testing.T, db *postgres.Client, name string, tier model.Tier) *model.Item {
	t.Helper()
	it := &model.Item{Name: name, Tier: tier, Version: "it-" + strconv.FormatInt(time.Now().UnixNano(), 36)}
	require.NoError(t, db.QueryRow(context.Background(),
		"INSERT INTO items (name, tier, version) VALUES ($1, $2, $3) RETURNING id",
		it.Name, int16(it.Tier), it.Version,
	).Scan(&it.ID))
	return it
}

func TestPullRepositoryRecordBatch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	l := logger.NewNoop()
	repo := NewPullRepository(db, dao.NewPullDAO(l, nil), dao.NewOwnershipDAO(l, nil), l)

	a := insertItem(t, db, "Aurora", model.TierTop)
	b := insertItem(t, db, "Breeze", model.TierLow)
	userID := time.Now().UnixNano()
	batchID := userID

	newlyOwned, err := repo.RecordBatch(ctx, &model.Batch{
		ID:       batchID,
		UserID:   userID,
		BannerID: 1,
		Items:    []*model.Item{a, b, a},
		PulledAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false}, newlyOwned)

	newlyOwned, err = repo.RecordBatch(ctx, &model.Batch{
		ID:       batchID + 1,
		UserID:   userID,
		BannerID: 1,
		Items:    []*model.Item{a},
		PulledAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, newlyOwned)

	t.Run("failed batch leaves no trace", func(t *testing.T) {
		ghost := &model.Item{ID: -1, Name: "ghost", Tier: model.TierLow}
		_, err := repo.RecordBatch(ctx, &model.Batch{
			ID:       batchID + 2,
			UserID:   userID,
			BannerID: 1,
			Items:    []*model.Item{b, ghost},
			PulledAt: time.Now().UTC(),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrPersistence))
	})

	n, err := repo.CountPulls(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	owned, err := repo.OwnedItems(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{a.ID: {}, b.ID: {}}, owned)

	records, err := repo.RecentPulls(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, batchID+1, records[0].BatchID)
}
