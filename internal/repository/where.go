package repository

import (
	"fmt"
	"strings"

	"github.com/langchou/speedgazer/internal/models"
)

// WhereBuilder 以参数化方式拼装 AND 条件
// 条件文本中的 ? 按追加顺序替换为 $n，调用方的值只能通过参数传入
type WhereBuilder struct {
	clauses []string
	args    []any
}

// NewWhereBuilder 创建空的条件构造器
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// Add 追加一个条件，? 的数量必须与 args 一致
func (wb *WhereBuilder) Add(clause string, args ...any) *WhereBuilder {
	if n := strings.Count(clause, "?"); n != len(args) {
		panic(fmt.Sprintf("where clause %q expects %d args, got %d", clause, n, len(args)))
	}

	var sb strings.Builder
	next := len(wb.args) + 1
	for _, r := range clause {
		if r == '?' {
			fmt.Fprintf(&sb, "$%d", next)
			next++
			continue
		}
		sb.WriteRune(r)
	}

	wb.clauses = append(wb.clauses, sb.String())
	wb.args = append(wb.args, args...)
	return wb
}

// Placeholder 为紧随条件之后的参数 (LIMIT/OFFSET 等) 分配占位符
func (wb *WhereBuilder) Placeholder(offset int) string {
	return fmt.Sprintf("$%d", len(wb.args)+offset)
}

// Len 条件数量
func (wb *WhereBuilder) Len() int {
	return len(wb.clauses)
}

// Clone 复制当前条件，用于在共享过滤条件上追加额外约束
func (wb *WhereBuilder) Clone() *WhereBuilder {
	return &WhereBuilder{
		clauses: append([]string(nil), wb.clauses...),
		args:    append([]any(nil), wb.args...),
	}
}

// Build 返回 "WHERE a AND b" (无条件时为空串) 以及参数副本
func (wb *WhereBuilder) Build() (string, []any) {
	args := append([]any(nil), wb.args...)
	if len(wb.clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(wb.clauses, " AND "), args
}

// withArgs 在条件参数之后追加参数，不修改原切片
func withArgs(args []any, extra ...any) []any {
	out := make([]any, 0, len(args)+len(extra))
	out = append(out, args...)
	return append(out, extra...)
}

// applyEventFilter 将测速事件过滤条件写入构造器
func applyEventFilter(wb *WhereBuilder, f models.SpeedEventFilter) *WhereBuilder {
	if f.DeviceID != "" {
		wb.Add("device_id = ?", f.DeviceID)
	}
	if f.MinSpeed != nil {
		wb.Add("speed >= ?", *f.MinSpeed)
	}
	if f.DateFrom != nil {
		wb.Add("created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		wb.Add("created_at <= ?", *f.DateTo)
	}
	if f.Since != nil {
		wb.Add("created_at > ?", *f.Since)
	}
	if f.Processed != nil {
		wb.Add("processed = ?", *f.Processed)
	}
	if f.UnprocessedOnly {
		wb.Add("processed = false")
	}
	if f.ViolationsOnly {
		wb.Add("speed > speed_limit")
	}
	return wb
}

// severityCase 生成与 models.Classify 一致的 SQL CASE 表达式
func severityCase(excessExpr string) string {
	var sb strings.Builder
	sb.WriteString("CASE")
	for i, t := range models.ExcessThresholds {
		fmt.Fprintf(&sb, " WHEN %s <= %g THEN '%s'", excessExpr, t, models.Severity(i).Category())
	}
	fmt.Fprintf(&sb, " ELSE '%s' END", models.SeveritySevere.Category())
	return sb.String()
}
