package repository

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"golang.org/x/sync/errgroup"

	"github.com/langchou/speedgazer/internal/models"
)

// TrendDays 趋势统计覆盖的天数
const TrendDays = 7

// Stats 统计总览、违章类别分布、近 7 天趋势与设备维度统计
// 四个查询并发执行，任一失败则整体失败
func (r *SpeedEventRepository) Stats(ctx context.Context, f models.SpeedEventFilter) (*models.SpeedStats, error) {
	wb := applyEventFilter(NewWhereBuilder(), f)
	where, args := wb.Build()

	trendWB := wb.Clone().Add(fmt.Sprintf("created_at >= NOW() - INTERVAL '%d days'", TrendDays))
	trendWhere, trendArgs := trendWB.Build()

	overviewQuery := `
		SELECT COUNT(*) AS total_events,
		       COUNT(*) FILTER (WHERE processed = false) AS unprocessed_events,
		       COUNT(*) FILTER (WHERE speed > speed_limit) AS speeding_violations,
		       COALESCE(AVG(speed), 0)::float8 AS avg_speed,
		       COALESCE(MAX(speed), 0)::float8 AS max_speed,
		       COALESCE(MIN(speed), 0)::float8 AS min_speed,
		       COALESCE(AVG(speed_limit), 0)::float8 AS avg_speed_limit,
		       COALESCE(AVG(speed - speed_limit), 0)::float8 AS avg_speed_excess,
		       COALESCE(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY speed), 0)::float8 AS median_speed,
		       COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY speed), 0)::float8 AS p95_speed
		FROM speed_events ` + where

	distributionQuery := fmt.Sprintf(`
		SELECT %s AS violation_category,
		       COUNT(*) AS count,
		       ROUND(AVG(speed - speed_limit)::numeric, 2)::float8 AS avg_excess
		FROM speed_events %s
		GROUP BY 1
	`, severityCase("(speed - speed_limit)"), where)

	trendQuery := fmt.Sprintf(`
		SELECT to_char(DATE(created_at), 'YYYY-MM-DD') AS date,
		       COUNT(*) AS count,
		       ROUND(AVG(speed)::numeric, 2)::float8 AS avg_speed,
		       COUNT(*) FILTER (WHERE speed > speed_limit) AS violations
		FROM speed_events %s
		GROUP BY DATE(created_at)
		ORDER BY DATE(created_at) DESC
	`, trendWhere)

	byDeviceQuery := fmt.Sprintf(`
		SELECT device_id,
		       COUNT(*) AS event_count,
		       ROUND(AVG(speed)::numeric, 2)::float8 AS avg_speed,
		       MAX(speed)::float8 AS max_speed,
		       COUNT(*) FILTER (WHERE speed > speed_limit) AS violations,
		       ROUND((COUNT(*) FILTER (WHERE speed > speed_limit))::numeric * 100 / COUNT(*), 2)::float8 AS violation_rate
		FROM speed_events %s
		GROUP BY device_id
		ORDER BY event_count DESC, device_id ASC
	`, where)

	var (
		stats   models.SpeedStats
		buckets []models.CategoryBucket
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := pgxscan.Get(gctx, r.db.Pool, &stats.Overview, overviewQuery, args...); err != nil {
			return fmt.Errorf("query stats overview: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := pgxscan.Select(gctx, r.db.Pool, &buckets, distributionQuery, args...); err != nil {
			return fmt.Errorf("query stats distribution: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := pgxscan.Select(gctx, r.db.Pool, &stats.Trend, trendQuery, trendArgs...); err != nil {
			return fmt.Errorf("query stats trend: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := pgxscan.Select(gctx, r.db.Pool, &stats.ByDevice, byDeviceQuery, args...); err != nil {
			return fmt.Errorf("query stats by device: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Overview.ViolationRate = models.ViolationRate(stats.Overview.SpeedingViolations, stats.Overview.TotalEvents)
	stats.Distribution = fillCategoryBuckets(buckets)
	stats.Trend = nonNil(stats.Trend)
	stats.ByDevice = nonNil(stats.ByDevice)
	return &stats, nil
}

// fillCategoryBuckets 按严重程度顺序补齐全部四个类别
func fillCategoryBuckets(found []models.CategoryBucket) []models.CategoryBucket {
	byCategory := make(map[models.ViolationCategory]models.CategoryBucket, len(found))
	for _, b := range found {
		byCategory[b.ViolationCategory] = b
	}

	categories := models.Categories()
	out := make([]models.CategoryBucket, 0, len(categories))
	for _, c := range categories {
		b, ok := byCategory[c]
		if !ok {
			b = models.CategoryBucket{ViolationCategory: c}
		}
		out = append(out, b)
	}
	return out
}

// Distribution 按小时或天聚合设备的事件，时间升序
func (r *SpeedEventRepository) Distribution(ctx context.Context, f models.SpeedEventFilter, interval models.Interval) ([]models.DistributionBucket, error) {
	if !interval.Valid() {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}

	wb := applyEventFilter(NewWhereBuilder(), f)
	where, args := wb.Build()

	query := fmt.Sprintf(`
		SELECT date_trunc(%s::text, created_at) AS time_period,
		       COUNT(*) AS count,
		       ROUND(AVG(speed)::numeric, 2)::float8 AS avg_speed,
		       MAX(speed)::float8 AS max_speed,
		       COUNT(*) FILTER (WHERE speed > speed_limit) AS violations
		FROM speed_events %s
		GROUP BY 1
		ORDER BY 1 ASC
	`, wb.Placeholder(1), where)

	var buckets []models.DistributionBucket
	if err := pgxscan.Select(ctx, r.db.Pool, &buckets, query, withArgs(args, string(interval))...); err != nil {
		return nil, fmt.Errorf("query speed distribution: %w", err)
	}
	return nonNil(buckets), nil
}
