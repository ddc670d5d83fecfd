package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrAlreadyEnrolled = errors.New("already_enrolled")

type Repository interface {
	// Insert records an enrollment. Inserting an existing (student, class)
	// pair returns ErrAlreadyEnrolled.
	Insert(ctx context.Context, enrollment *Enrollment) error
	// ListBillable returns every enrollment joined with its class fee,
	// restricted to active classes.
	ListBillable(ctx context.Context) ([]BillableEnrollment, error)
	// FindByStudentAndClass returns nil when no enrollment exists.
	FindByStudentAndClass(ctx context.Context, studentID, classID snowflake.ID) (*Enrollment, error)
}
