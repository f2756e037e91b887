package repository

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const maxPageSize = 100

// pageWindow clamps page and size and returns LIMIT/OFFSET values.
func pageWindow(page, size, defaultSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultSize
	}
	return size, (page - 1) * size
}

// orderClause resolves a client sort key against an allow-list.
func orderClause(sortBy, sortOrder string, allowed map[string]string, fallback, fallbackOrder string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = fallback
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = fallbackOrder
	}
	return fmt.Sprintf("%s %s", column, order)
}

// where accumulates positional conditions.
type where struct {
	conditions []string
	args       []interface{}
}

// add appends a condition; each %d in format receives the next placeholder index.
func (w *where) add(format string, value interface{}) {
	w.args = append(w.args, value)
	n := len(w.args)
	count := strings.Count(format, "%d")
	placeholders := make([]interface{}, count)
	for i := range placeholders {
		placeholders[i] = n
	}
	w.conditions = append(w.conditions, fmt.Sprintf(format, placeholders...))
}

// in appends "column IN (...)" with one placeholder per value.
func (w *where) in(column string, values ...interface{}) {
	placeholders := make([]string, len(values))
	for i, v := range values {
		w.args = append(w.args, v)
		placeholders[i] = fmt.Sprintf("$%d", len(w.args))
	}
	w.conditions = append(w.conditions, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
}

func (w *where) raw(condition string) {
	w.conditions = append(w.conditions, condition)
}

func (w *where) String() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conditions, " AND ")
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

func orDefault(exec sqlx.ExtContext, db *sqlx.DB) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}
