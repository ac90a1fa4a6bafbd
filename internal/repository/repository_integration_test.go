//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/langchou/speedgazer/internal/models"
)

var testDB *DB

// 启动 Postgres 容器并执行迁移
func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("speedgazer"),
		postgres.WithUsername("speedgazer"),
		postgres.WithPassword("speedgazer"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		panic(err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	testDB, err = New(ctx, connStr, PoolOptions{MaxConns: 8})
	if err != nil {
		panic(err)
	}
	if err := testDB.Migrate(ctx); err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	_ = pgContainer.Terminate(ctx)
	os.Exit(code)
}

func resetTables(t *testing.T) {
	t.Helper()
	_, err := testDB.Pool.Exec(context.Background(), `TRUNCATE speed_events, settings, devices RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

func seedDevice(t *testing.T, id, key string) *models.Device {
	t.Helper()
	d, err := NewDeviceRepository(testDB).Create(context.Background(), &models.NewDevice{DeviceID: id, Name: "Gate " + id}, key)
	require.NoError(t, err)
	return d
}

func strPtr(s string) *string      { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestMigrateIsIdempotent(t *testing.T) {
	require.NoError(t, testDB.Migrate(context.Background()))
}

func TestDeviceRepository(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewDeviceRepository(testDB)

	created, err := repo.Create(ctx, &models.NewDevice{DeviceID: "cam-1", Name: "Gate A", Location: strPtr("North")}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "key-1", created.APIKey)
	assert.Equal(t, models.DeviceStatusActive, created.Status)

	_, err = repo.Create(ctx, &models.NewDevice{DeviceID: "cam-1", Name: "Dup"}, "key-2")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = repo.Create(ctx, &models.NewDevice{DeviceID: "cam-0", Name: "Avenue"}, "key-3")
	require.NoError(t, err)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Avenue", list[0].Name)
	assert.Empty(t, list[0].APIKey)

	got, err := repo.GetByID(ctx, "cam-1")
	require.NoError(t, err)
	assert.Empty(t, got.APIKey)
	assert.Equal(t, "North", *got.Location)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// 重置 key 后旧 key 失效
	rotated, err := repo.RotateAPIKey(ctx, "cam-1", "key-rotated")
	require.NoError(t, err)
	assert.Equal(t, "key-rotated", rotated.APIKey)

	_, err = repo.GetActiveByAPIKey(ctx, "key-1")
	assert.ErrorIs(t, err, ErrNotFound)
	byKey, err := repo.GetActiveByAPIKey(ctx, "key-rotated")
	require.NoError(t, err)
	assert.Equal(t, "cam-1", byKey.DeviceID)

	_, err = repo.RotateAPIKey(ctx, "missing", "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	// 停用的设备无法认证
	updated, err := repo.Update(ctx, "cam-1", &models.DeviceUpdate{Name: "Gate A2", Status: models.DeviceStatusInactive})
	require.NoError(t, err)
	assert.Nil(t, updated.Location)
	assert.Equal(t, models.DeviceStatusInactive, updated.Status)

	_, err = repo.GetActiveByAPIKey(ctx, "key-rotated")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Update(ctx, "missing", &models.DeviceUpdate{Name: "x", Status: models.DeviceStatusActive})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettingRepositoryFallback(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewSettingRepository(testDB)
	device := strPtr("device42")

	_, err := repo.Get(ctx, "x", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Set(ctx, "x", "1", nil)
	require.NoError(t, err)

	v, err := repo.Get(ctx, "x", device)
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	_, err = repo.Set(ctx, "x", "2", device)
	require.NoError(t, err)

	v, err = repo.Get(ctx, "x", device)
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	v, err = repo.Get(ctx, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	// 全局配置重复写入走更新分支
	s, err := repo.Set(ctx, "x", "3", nil)
	require.NoError(t, err)
	assert.Nil(t, s.DeviceID)
	assert.Equal(t, "3", s.Value)

	_, err = repo.Set(ctx, "y", "global-only", nil)
	require.NoError(t, err)
	_, err = repo.Set(ctx, "z", "device-only", device)
	require.NoError(t, err)

	entries, err := repo.List(ctx, device)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "x", entries[0].Key)
	assert.Equal(t, "2", entries[0].Value)
	assert.True(t, *entries[0].IsCustom)
	assert.Equal(t, "y", entries[1].Key)
	assert.False(t, *entries[1].IsCustom)
	assert.Equal(t, "z", entries[2].Key)
	assert.True(t, *entries[2].IsCustom)

	global, err := repo.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, global, 2)
	assert.Nil(t, global[0].IsCustom)

	deleted, err := repo.Delete(ctx, "x", device)
	require.NoError(t, err)
	assert.Equal(t, "2", deleted.Value)

	v, err = repo.Get(ctx, "x", device)
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	_, err = repo.Delete(ctx, "x", device)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSpeedEventLifecycle(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	seedDevice(t, "cam-1", "k1")
	seedDevice(t, "cam-2", "k2")
	repo := NewSpeedEventRepository(testDB)

	violation, err := repo.Create(ctx, &models.NewSpeedEvent{
		DeviceID:   "cam-1",
		VehicleID:  strPtr("ABC-123"),
		Speed:      72,
		SpeedLimit: 55,
		ImageURL:   strPtr("https://img.example.com/a.jpg"),
		Latitude:   floatPtr(40.1),
		Longitude:  floatPtr(-73.9),
	})
	require.NoError(t, err)
	assert.Equal(t, 17.0, violation.SpeedExcess)
	assert.True(t, violation.IsViolation)
	assert.False(t, violation.Processed)

	for i := 0; i < 4; i++ {
		_, err := repo.Create(ctx, &models.NewSpeedEvent{DeviceID: "cam-1", Speed: 40, SpeedLimit: 55})
		require.NoError(t, err)
	}
	_, err = repo.Create(ctx, &models.NewSpeedEvent{
		DeviceID:   "cam-2",
		Speed:      99,
		SpeedLimit: 60,
		Latitude:   floatPtr(40.1),
		Longitude:  floatPtr(-73.9),
	})
	require.NoError(t, err)

	events, page, err := repo.List(ctx, models.SpeedEventFilter{DeviceID: "cam-1"}, models.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, models.PageInfo{Total: 5, Page: 1, TotalPages: 3, Limit: 2}, page)

	events, page, err = repo.List(ctx, models.SpeedEventFilter{DeviceID: "cam-1", ViolationsOnly: true}, models.Page{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, violation.ID, events[0].ID)
	assert.Equal(t, int64(1), page.Total)

	_, err = repo.GetByID(ctx, 999999)
	assert.ErrorIs(t, err, ErrNotFound)

	// 重复标记不报错
	processed, was, err := repo.MarkAsProcessed(ctx, violation.ID)
	require.NoError(t, err)
	assert.True(t, processed.Processed)
	assert.False(t, was)

	processed, was, err = repo.MarkAsProcessed(ctx, violation.ID)
	require.NoError(t, err)
	assert.True(t, processed.Processed)
	assert.True(t, was)

	_, _, err = repo.MarkAsProcessed(ctx, 999999)
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := repo.BulkMarkAsProcessed(ctx, []int64{violation.ID, 999999})
	require.NoError(t, err)
	assert.Equal(t, []int64{violation.ID}, ids)

	stats, err := repo.Stats(ctx, models.SpeedEventFilter{DeviceID: "cam-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Overview.TotalEvents)
	assert.Equal(t, int64(4), stats.Overview.UnprocessedEvents)
	assert.Equal(t, int64(1), stats.Overview.SpeedingViolations)
	assert.Equal(t, 20.0, stats.Overview.ViolationRate)
	assert.Equal(t, 72.0, stats.Overview.MaxSpeed)
	assert.Equal(t, 40.0, stats.Overview.MinSpeed)
	assert.Equal(t, 40.0, stats.Overview.MedianSpeed)
	require.Len(t, stats.Distribution, 4)
	assert.Equal(t, int64(4), stats.Distribution[0].Count)
	assert.Equal(t, int64(1), stats.Distribution[2].Count)
	require.Len(t, stats.Trend, 1)
	assert.Equal(t, int64(5), stats.Trend[0].Count)
	require.Len(t, stats.ByDevice, 1)
	assert.Equal(t, 20.0, stats.ByDevice[0].ViolationRate)

	all, err := repo.Stats(ctx, models.SpeedEventFilter{})
	require.NoError(t, err)
	require.Len(t, all.ByDevice, 2)
	assert.Equal(t, "cam-1", all.ByDevice[0].DeviceID)

	empty, err := repo.Stats(ctx, models.SpeedEventFilter{DeviceID: "nobody"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Overview.TotalEvents)
	assert.Equal(t, 0.0, empty.Overview.ViolationRate)
	assert.Len(t, empty.Distribution, 4)
	assert.Empty(t, empty.Trend)
}

func TestSpeedEventViews(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	seedDevice(t, "cam-1", "k1")
	repo := NewSpeedEventRepository(testDB)

	_, err := repo.Create(ctx, &models.NewSpeedEvent{DeviceID: "cam-1", Speed: 90, SpeedLimit: 60, Latitude: floatPtr(1), Longitude: floatPtr(2), ImageURL: strPtr("http://img/1.png")})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.NewSpeedEvent{DeviceID: "cam-1", Speed: 50, SpeedLimit: 60, Latitude: floatPtr(1), Longitude: floatPtr(2), ImageURL: strPtr("")})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.NewSpeedEvent{DeviceID: "cam-1", Speed: 65, SpeedLimit: 60, ImageURL: strPtr("http://img/3.jpg")})
	require.NoError(t, err)

	live, err := repo.LiveFeed(ctx, models.SpeedEventFilter{ViolationsOnly: true}, 50)
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, models.AlertWarning, live[0].AlertLevel)
	assert.Equal(t, models.AlertCritical, live[1].AlertLevel)
	assert.Contains(t, live[0].TimeAgo, "s ago")

	recent, err := repo.Recent(ctx, models.SpeedEventFilter{}, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	view, err := repo.WithLocations(ctx, models.SpeedEventFilter{})
	require.NoError(t, err)
	assert.Len(t, view.Events, 2)
	require.Len(t, view.Clusters, 1)
	assert.Equal(t, 2, view.Clusters[0].TotalEvents)
	assert.Equal(t, 1, view.Clusters[0].Violations)
	assert.Equal(t, 90.0, view.Clusters[0].MaxSpeed)

	gallery, err := repo.Gallery(ctx, models.SpeedEventFilter{}, models.Page{Page: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, gallery.Images, 1)
	assert.Equal(t, "http://img/3_thumb.jpg", gallery.Images[0].ThumbnailURL)
	assert.Equal(t, models.GalleryStats{TotalImages: 2, ViolationImages: 2, UnprocessedImages: 2}, gallery.Stats)
	assert.Equal(t, 2, gallery.Page.TotalPages)

	now := time.Now()
	buckets, err := repo.Distribution(ctx, models.SpeedEventFilter{
		DeviceID: "cam-1",
		DateFrom: ptrTime(now.Add(-time.Hour)),
		DateTo:   ptrTime(now.Add(time.Hour)),
	}, models.IntervalDay)
	require.NoError(t, err)
	require.NotEmpty(t, buckets)
	var total int64
	for _, b := range buckets {
		total += b.Count
	}
	assert.Equal(t, int64(3), total)

	_, err = repo.Distribution(ctx, models.SpeedEventFilter{}, models.Interval("minute"))
	assert.Error(t, err)
}

func TestSpeedDistributionHourlyBuckets(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	seedDevice(t, "cam-1", "k1")
	seedDevice(t, "cam-2", "k2")
	repo := NewSpeedEventRepository(testDB)

	// 插入顺序与时间顺序相反
	_, err := testDB.Pool.Exec(ctx, `
		INSERT INTO speed_events (device_id, speed, speed_limit, created_at)
		VALUES ('cam-1', 80, 60, '2024-03-01 12:40:00+00'),
		       ('cam-1', 50, 60, '2024-03-01 10:45:00+00'),
		       ('cam-1', 70, 60, '2024-03-01 10:15:00+00'),
		       ('cam-2', 99, 60, '2024-03-01 11:30:00+00')
	`)
	require.NoError(t, err)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	buckets, err := repo.Distribution(ctx, models.SpeedEventFilter{
		DeviceID: "cam-1",
		DateFrom: ptrTime(from),
		DateTo:   ptrTime(from.Add(24 * time.Hour)),
	}, models.IntervalHour)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.True(t, buckets[0].TimePeriod.Before(buckets[1].TimePeriod))
	assert.Equal(t, 2*time.Hour, buckets[1].TimePeriod.Sub(buckets[0].TimePeriod))

	assert.Equal(t, int64(2), buckets[0].Count)
	assert.Equal(t, 60.0, buckets[0].AvgSpeed)
	assert.Equal(t, 70.0, buckets[0].MaxSpeed)
	assert.Equal(t, int64(1), buckets[0].Violations)

	assert.Equal(t, int64(1), buckets[1].Count)
	assert.Equal(t, 80.0, buckets[1].MaxSpeed)
	assert.Equal(t, int64(1), buckets[1].Violations)
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestDeleteOlderThan(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	seedDevice(t, "cam-1", "k1")
	repo := NewSpeedEventRepository(testDB)

	_, err := testDB.Pool.Exec(ctx, `
		INSERT INTO speed_events (device_id, speed, speed_limit, created_at)
		VALUES ('cam-1', 60, 50, NOW() - INTERVAL '120 days'),
		       ('cam-1', 60, 50, NOW() - INTERVAL '95 days'),
		       ('cam-1', 60, 50, NOW() - INTERVAL '3 days')
	`)
	require.NoError(t, err)

	deleted, err := repo.DeleteOlderThan(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = repo.DeleteOlderThan(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}
