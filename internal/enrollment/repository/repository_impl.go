package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/tutorlane/tutorbill/internal/enrollment/domain"
	"github.com/tutorlane/tutorbill/pkg/db"
	"github.com/tutorlane/tutorbill/pkg/repository"
	"gorm.io/gorm"
)

type enrollmentRepository struct {
	db    *gorm.DB
	store repository.Repository[domain.Enrollment]
}

func Provide(gdb *gorm.DB) domain.Repository {
	return &enrollmentRepository{
		db:    gdb,
		store: repository.ProvideStore[domain.Enrollment](gdb),
	}
}

func (r *enrollmentRepository) Insert(ctx context.Context, enrollment *domain.Enrollment) error {
	if err := r.store.Create(ctx, enrollment); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrAlreadyEnrolled
		}
		return err
	}
	return nil
}

func (r *enrollmentRepository) ListBillable(ctx context.Context) ([]domain.BillableEnrollment, error) {
	var rows []domain.BillableEnrollment
	err := r.db.WithContext(ctx).Raw(
		`SELECT e.student_id, e.class_id, c.fee
		 FROM enrollments e
		 JOIN classes c ON c.id = e.class_id
		 WHERE c.status = ?
		 ORDER BY e.student_id, e.class_id`,
		"active",
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *enrollmentRepository) FindByStudentAndClass(ctx context.Context, studentID, classID snowflake.ID) (*domain.Enrollment, error) {
	return r.store.FindOne(ctx, &domain.Enrollment{StudentID: studentID, ClassID: classID})
}
