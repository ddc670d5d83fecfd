package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	enrollmentdomain "github.com/tutorlane/tutorbill/internal/enrollment/domain"
)

type createEnrollmentRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	ClassID   string `json:"class_id" binding:"required"`
}

// CreateEnrollment registers a student into a class and issues the current
// period's invoice in the same request, so a new student is billed from day
// one without waiting for the monthly batch.
func (s *Server) CreateEnrollment(c *gin.Context) {
	var req createEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	studentID, err := snowflake.ParseString(strings.TrimSpace(req.StudentID))
	if err != nil {
		AbortWithError(c, newValidationError("student_id", "invalid_student_id", "invalid id"))
		return
	}
	classID, err := snowflake.ParseString(strings.TrimSpace(req.ClassID))
	if err != nil {
		AbortWithError(c, newValidationError("class_id", "invalid_class_id", "invalid id"))
		return
	}

	ctx := c.Request.Context()

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if class == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	status := http.StatusCreated
	enrollment := &enrollmentdomain.Enrollment{
		ID:         s.genID.Generate(),
		StudentID:  studentID,
		ClassID:    classID,
		EnrolledAt: s.clock.Now(),
	}
	if err := s.enrollments.Insert(ctx, enrollment); err != nil {
		if !errors.Is(err, enrollmentdomain.ErrAlreadyEnrolled) {
			AbortWithError(c, err)
			return
		}
		// Re-registration is idempotent: answer with the existing enrollment
		// and its invoice for the period.
		existing, err := s.enrollments.FindByStudentAndClass(ctx, studentID, classID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if existing == nil {
			AbortWithError(c, ErrInternal)
			return
		}
		enrollment = existing
		status = http.StatusOK
	}

	invoice, err := s.invoiceSvc.CreateForEnrollment(ctx, studentID, classID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(status, gin.H{
		"data": gin.H{
			"enrollment": enrollment,
			"invoice":    invoice,
		},
	})
}
