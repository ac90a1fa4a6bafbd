package repository

import (
	"errors"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrConflict 唯一约束冲突
	ErrConflict = errors.New("record already exists")
)

const pgUniqueViolation = "23505"

func isNoRows(err error) bool {
	return pgxscan.NotFound(err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
