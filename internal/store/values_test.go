package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remp2020/crm-segment-module/internal/model"
)

func TestCacheSegmentCount(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seg := addSegment(t, s, addGroup(t, s), "cached", "q")

	require.NoError(t, s.CacheSegmentCount(ctx, seg.ID, 42, 1500*time.Millisecond))

	got, err := s.FindByID(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.CacheCount)
	require.NotNil(t, got.CacheCountTime)
	assert.InDelta(t, 1.5, *got.CacheCountTime, 0.0001)
	require.NotNil(t, got.CacheCountUpdatedAt)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), *got.CacheCountUpdatedAt)
}

func TestCacheSegmentCount_UnknownSegment(t *testing.T) {
	s := createTestStore(t)
	err := s.CacheSegmentCount(context.Background(), 7, 1, time.Second)
	assert.ErrorIs(t, err, model.ErrNotFound)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM segments_values`).Scan(&n))
	assert.Zero(t, n, "failed update must not leave a value row")
}

func TestDailyValues(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	s := clockStore(t, &now)
	g, err := s.AddGroup(ctx, model.Group{Name: "G", Code: "g"})
	require.NoError(t, err)
	seg, err := s.AddSegment(ctx, model.Segment{Name: "s", Code: "s", TableName: "users", QueryString: "q", GroupID: g.ID})
	require.NoError(t, err)

	record := func(at time.Time, count int64) {
		now = at
		require.NoError(t, s.CacheSegmentCount(ctx, seg.ID, count, time.Second))
	}
	record(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), 10)
	record(time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC), 15)
	record(time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC), 12)
	record(time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC), 20)

	values, err := s.DailyValues(ctx, seg.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []model.DailyValue{
		{Date: "2024-03-01", Count: 15},
		{Date: "2024-03-02", Count: 12},
		{Date: "2024-03-03", Count: 20},
	}, values)

	values, err = s.DailyValues(ctx, seg.ID,
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []model.DailyValue{{Date: "2024-03-02", Count: 12}}, values)
}
