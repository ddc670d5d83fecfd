// Package repository provides a generic GORM-backed store shared by the
// domain repositories.
package repository

import (
	"context"

	"github.com/tutorlane/tutorbill/pkg/db/option"
)

type Repository[T any] interface {
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
