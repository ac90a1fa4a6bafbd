package repository

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"golang.org/x/sync/errgroup"

	"github.com/langchou/speedgazer/internal/models"
)

const speedEventColumns = `id, device_id, vehicle_id, speed, speed_limit, image_url,
	latitude, longitude, location_address, processed, created_at`

// MapEventLimit 地图视图最多返回的事件数
const MapEventLimit = 1000

// SpeedEventRepository 测速事件仓库
type SpeedEventRepository struct {
	db *DB
}

// NewSpeedEventRepository 创建测速事件仓库
func NewSpeedEventRepository(db *DB) *SpeedEventRepository {
	return &SpeedEventRepository{db: db}
}

// Create 写入一条测速事件
func (r *SpeedEventRepository) Create(ctx context.Context, e *models.NewSpeedEvent) (*models.SpeedEvent, error) {
	query := `
		INSERT INTO speed_events (
			device_id, vehicle_id, speed, speed_limit, image_url,
			latitude, longitude, location_address
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + speedEventColumns

	var event models.SpeedEvent
	err := pgxscan.Get(ctx, r.db.Pool, &event, query,
		e.DeviceID,
		e.VehicleID,
		e.Speed,
		e.SpeedLimit,
		e.ImageURL,
		e.Latitude,
		e.Longitude,
		e.LocationAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("create speed event: %w", err)
	}
	event.Derive()
	return &event, nil
}

// List 分页查询，总数与数据使用同一过滤条件
func (r *SpeedEventRepository) List(ctx context.Context, f models.SpeedEventFilter, p models.Page) ([]*models.SpeedEvent, models.PageInfo, error) {
	wb := applyEventFilter(NewWhereBuilder(), f)
	where, args := wb.Build()

	dataQuery := fmt.Sprintf(`
		SELECT %s FROM speed_events %s
		ORDER BY created_at DESC, id DESC
		LIMIT %s OFFSET %s
	`, speedEventColumns, where, wb.Placeholder(1), wb.Placeholder(2))
	countQuery := `SELECT COUNT(*) FROM speed_events ` + where

	var (
		events []*models.SpeedEvent
		total  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := pgxscan.Select(gctx, r.db.Pool, &events, dataQuery, withArgs(args, p.Limit, p.Offset())...); err != nil {
			return fmt.Errorf("list speed events: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := r.db.Pool.QueryRow(gctx, countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("count speed events: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, models.PageInfo{}, err
	}

	for _, e := range events {
		e.Derive()
	}
	return nonNil(events), models.NewPageInfo(total, p), nil
}

// GetByID 根据 ID 获取事件
func (r *SpeedEventRepository) GetByID(ctx context.Context, id int64) (*models.SpeedEvent, error) {
	query := `SELECT ` + speedEventColumns + ` FROM speed_events WHERE id = $1`

	var event models.SpeedEvent
	if err := pgxscan.Get(ctx, r.db.Pool, &event, query, id); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get speed event: %w", err)
	}
	event.Derive()
	return &event, nil
}

// processedRow 标记处理后的行及更新前的状态
type processedRow struct {
	models.SpeedEvent
	WasProcessed bool `db:"was_processed"`
}

// MarkAsProcessed 将事件标记为已处理，同时返回更新前是否已处理
func (r *SpeedEventRepository) MarkAsProcessed(ctx context.Context, id int64) (*models.SpeedEvent, bool, error) {
	query := `
		UPDATE speed_events AS e
		SET processed = true
		FROM (SELECT id, processed FROM speed_events WHERE id = $1 FOR UPDATE) AS prev
		WHERE e.id = prev.id
		RETURNING e.id, e.device_id, e.vehicle_id, e.speed, e.speed_limit, e.image_url,
			e.latitude, e.longitude, e.location_address, e.processed, e.created_at,
			prev.processed AS was_processed
	`
	var row processedRow
	if err := pgxscan.Get(ctx, r.db.Pool, &row, query, id); err != nil {
		if isNoRows(err) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("mark speed event processed: %w", err)
	}
	row.Derive()
	return &row.SpeedEvent, row.WasProcessed, nil
}

// BulkMarkAsProcessed 批量标记，返回实际存在并被更新的 ID
func (r *SpeedEventRepository) BulkMarkAsProcessed(ctx context.Context, ids []int64) ([]int64, error) {
	query := `UPDATE speed_events SET processed = true WHERE id = ANY($1) RETURNING id`

	var updated []int64
	if err := pgxscan.Select(ctx, r.db.Pool, &updated, query, ids); err != nil {
		return nil, fmt.Errorf("bulk mark speed events processed: %w", err)
	}
	return nonNil(updated), nil
}

// Recent 最近的事件
func (r *SpeedEventRepository) Recent(ctx context.Context, f models.SpeedEventFilter, limit int) ([]*models.SpeedEvent, error) {
	wb := applyEventFilter(NewWhereBuilder(), f)
	where, args := wb.Build()

	query := fmt.Sprintf(`
		SELECT %s FROM speed_events %s
		ORDER BY created_at DESC, id DESC
		LIMIT %s
	`, speedEventColumns, where, wb.Placeholder(1))

	var events []*models.SpeedEvent
	if err := pgxscan.Select(ctx, r.db.Pool, &events, query, withArgs(args, limit)...); err != nil {
		return nil, fmt.Errorf("list recent speed events: %w", err)
	}
	for _, e := range events {
		e.Derive()
	}
	return nonNil(events), nil
}

// LiveFeed 实时流，附带距今秒数
func (r *SpeedEventRepository) LiveFeed(ctx context.Context, f models.SpeedEventFilter, limit int) ([]*models.LiveEvent, error) {
	wb := applyEventFilter(NewWhereBuilder(), f)
	where, args := wb.Build()

	query := fmt.Sprintf(`
		SELECT %s, EXTRACT(EPOCH FROM (NOW() - created_at))::float8 AS seconds_ago
		FROM speed_events %s
		ORDER BY created_at DESC, id DESC
		LIMIT %s
	`, speedEventColumns, where, wb.Placeholder(1))

	var events []*models.LiveEvent
	if err := pgxscan.Select(ctx, r.db.Pool, &events, query, withArgs(args, limit)...); err != nil {
		return nil, fmt.Errorf("list live speed events: %w", err)
	}
	for _, e := range events {
		e.Decorate()
	}
	return nonNil(events), nil
}

// WithLocations 带坐标的事件及坐标聚合
func (r *SpeedEventRepository) WithLocations(ctx context.Context, f models.SpeedEventFilter) (*models.MapView, error) {
	wb := NewWhereBuilder().Add("latitude IS NOT NULL AND longitude IS NOT NULL")
	applyEventFilter(wb, f)
	where, args := wb.Build()

	query := fmt.Sprintf(`
		SELECT %s FROM speed_events %s
		ORDER BY created_at DESC, id DESC
		LIMIT %d
	`, speedEventColumns, where, MapEventLimit)

	var events []*models.MapEvent
	if err := pgxscan.Select(ctx, r.db.Pool, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list speed events with location: %w", err)
	}
	for _, e := range events {
		e.Decorate()
	}
	events = nonNil(events)
	return &models.MapView{
		Events:   events,
		Clusters: models.ClusterByLocation(events),
	}, nil
}

// Gallery 带图片的事件分页及图片统计
func (r *SpeedEventRepository) Gallery(ctx context.Context, f models.SpeedEventFilter, p models.Page) (*models.GalleryView, error) {
	wb := NewWhereBuilder().Add("image_url IS NOT NULL AND image_url <> ''")
	applyEventFilter(wb, f)
	where, args := wb.Build()

	dataQuery := fmt.Sprintf(`
		SELECT %s FROM speed_events %s
		ORDER BY created_at DESC, id DESC
		LIMIT %s OFFSET %s
	`, speedEventColumns, where, wb.Placeholder(1), wb.Placeholder(2))
	statsQuery := `
		SELECT COUNT(*) AS total_images,
		       COUNT(*) FILTER (WHERE speed > speed_limit) AS violation_images,
		       COUNT(*) FILTER (WHERE processed = false) AS unprocessed_images
		FROM speed_events ` + where

	var (
		images []*models.GalleryImage
		stats  models.GalleryStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := pgxscan.Select(gctx, r.db.Pool, &images, dataQuery, withArgs(args, p.Limit, p.Offset())...); err != nil {
			return fmt.Errorf("list gallery images: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := pgxscan.Get(gctx, r.db.Pool, &stats, statsQuery, args...); err != nil {
			return fmt.Errorf("count gallery images: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, img := range images {
		img.Decorate()
	}
	return &models.GalleryView{
		Images: nonNil(images),
		Stats:  stats,
		Page:   models.NewPageInfo(stats.TotalImages, p),
	}, nil
}

// DeleteOlderThan 删除早于 days 天前的事件，返回删除数量
func (r *SpeedEventRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	query := `DELETE FROM speed_events WHERE created_at < NOW() - make_interval(days => $1)`

	tag, err := r.db.Pool.Exec(ctx, query, days)
	if err != nil {
		return 0, fmt.Errorf("delete old speed events: %w", err)
	}
	return tag.RowsAffected(), nil
}
