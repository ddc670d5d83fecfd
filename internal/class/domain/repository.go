package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrNotFound = errors.New("class_not_found")

type Repository interface {
	// FindByID returns nil when the class does not exist.
	FindByID(ctx context.Context, id snowflake.ID) (*Class, error)
	// ListActive returns all active classes with their tutor and fee.
	ListActive(ctx context.Context) ([]Class, error)
	// HasUpcomingSession reports whether the class has any session starting
	// on or after the given instant. Classes without one are dormant and are
	// not billed.
	HasUpcomingSession(ctx context.Context, classID snowflake.ID, after time.Time) (bool, error)
}
