package repository

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/langchou/speedgazer/internal/models"
)

// SettingRepository 配置仓库
// deviceID 为 nil 时操作全局配置
type SettingRepository struct {
	db *DB
}

// NewSettingRepository 创建配置仓库
func NewSettingRepository(db *DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get 读取配置值，设备维度未命中时回退到全局配置
func (r *SettingRepository) Get(ctx context.Context, key string, deviceID *string) (string, error) {
	var (
		value string
		err   error
	)
	if deviceID != nil {
		query := `
			SELECT value FROM settings
			WHERE key = $1 AND (device_id = $2 OR device_id IS NULL)
			ORDER BY device_id NULLS LAST
			LIMIT 1
		`
		err = r.db.Pool.QueryRow(ctx, query, key, *deviceID).Scan(&value)
	} else {
		query := `SELECT value FROM settings WHERE key = $1 AND device_id IS NULL`
		err = r.db.Pool.QueryRow(ctx, query, key).Scan(&value)
	}
	if err != nil {
		if isNoRows(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// List 读取全部生效配置
// 设备维度返回全局与设备配置的并集，设备值优先并以 is_custom 标记
func (r *SettingRepository) List(ctx context.Context, deviceID *string) ([]models.SettingEntry, error) {
	var (
		entries []models.SettingEntry
		err     error
	)
	if deviceID != nil {
		query := `
			WITH global AS (
				SELECT key, value FROM settings WHERE device_id IS NULL
			), device AS (
				SELECT key, value FROM settings WHERE device_id = $1
			)
			SELECT COALESCE(d.key, g.key) AS key,
			       COALESCE(d.value, g.value) AS value,
			       (d.key IS NOT NULL) AS is_custom
			FROM global g
			FULL OUTER JOIN device d ON d.key = g.key
			ORDER BY 1
		`
		err = pgxscan.Select(ctx, r.db.Pool, &entries, query, *deviceID)
	} else {
		query := `SELECT key, value FROM settings WHERE device_id IS NULL ORDER BY key`
		err = pgxscan.Select(ctx, r.db.Pool, &entries, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return nonNil(entries), nil
}

// Set 写入配置，已存在时更新值和时间戳
func (r *SettingRepository) Set(ctx context.Context, key, value string, deviceID *string) (*models.Setting, error) {
	query := `
		INSERT INTO settings (device_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_id, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
		RETURNING device_id, key, value, updated_at
	`
	var s models.Setting
	if err := pgxscan.Get(ctx, r.db.Pool, &s, query, deviceID, key, value); err != nil {
		return nil, fmt.Errorf("set setting: %w", err)
	}
	return &s, nil
}

// Delete 删除指定维度的配置
func (r *SettingRepository) Delete(ctx context.Context, key string, deviceID *string) (*models.Setting, error) {
	query := `
		DELETE FROM settings
		WHERE key = $1 AND device_id IS NOT DISTINCT FROM $2
		RETURNING device_id, key, value, updated_at
	`
	var s models.Setting
	if err := pgxscan.Get(ctx, r.db.Pool, &s, query, key, deviceID); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete setting: %w", err)
	}
	return &s, nil
}
