package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tutorlane/tutorbill/internal/class/domain"
	"github.com/tutorlane/tutorbill/pkg/db/option"
	"github.com/tutorlane/tutorbill/pkg/repository"
	"gorm.io/gorm"
)

type classRepository struct {
	store    repository.Repository[domain.Class]
	sessions repository.Repository[domain.ClassSession]
}

func Provide(gdb *gorm.DB) domain.Repository {
	return &classRepository{
		store:    repository.ProvideStore[domain.Class](gdb),
		sessions: repository.ProvideStore[domain.ClassSession](gdb),
	}
}

func (r *classRepository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Class, error) {
	return r.store.FindOne(ctx, &domain.Class{ID: id})
}

func (r *classRepository) ListActive(ctx context.Context) ([]domain.Class, error) {
	items, err := r.store.Find(ctx, &domain.Class{Status: domain.ClassStatusActive})
	if err != nil {
		return nil, err
	}

	classes := make([]domain.Class, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		classes = append(classes, *item)
	}
	return classes, nil
}

func (r *classRepository) HasUpcomingSession(ctx context.Context, classID snowflake.ID, after time.Time) (bool, error) {
	count, err := r.sessions.Count(ctx, &domain.ClassSession{ClassID: classID},
		option.ApplyOperator(option.Condition{
			Field:    "starts_at",
			Operator: option.GTE,
			Value:    after.UTC(),
		}),
	)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
