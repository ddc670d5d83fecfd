// Package domain contains persistence models for enrollments.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Enrollment links a student to a class they are registered in. Rows are
// created at registration and removed only on withdrawal; billing treats them
// as read-only input.
type Enrollment struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	StudentID  snowflake.ID `gorm:"not null;index;uniqueIndex:ux_enrollments_student_class"`
	ClassID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_enrollments_student_class"`
	EnrolledAt time.Time    `gorm:"not null"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Enrollment) TableName() string { return "enrollments" }

// BillableEnrollment is an enrollment joined with the fee of its class.
type BillableEnrollment struct {
	StudentID snowflake.ID
	ClassID   snowflake.ID
	Fee       int64
}
