// Package option provides composable query modifiers for the generic
// repository.
package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type Operator string

const (
	GTE Operator = ">="
	LTE Operator = "<="
	GT  Operator = ">"
	LT  Operator = "<"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// Condition expresses a single field comparison.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a comparison predicate to the query.
func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
	})
}

// QuerySortBy restricts ordering to an allow-listed column set.
type QuerySortBy struct {
	Allow   map[string]bool
	Field   string
	Descend bool
}

// WithSortBy orders results by an allowed column, defaulting to created_at
// descending when the requested field is not allowed.
func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || !sort.Allow[field] {
			field = "created_at"
		}
		direction := "ASC"
		if sort.Descend {
			direction = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", field, direction))
	})
}

// WithLimit bounds the result set size.
func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}
