package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/tutorlane/tutorbill/internal/billingperiod"
)

// GetPaymentStatus reports whether the student may attend the class: true
// only when a paid invoice exists for the billing period containing the
// reference date.
func (s *Server) GetPaymentStatus(c *gin.Context) {
	studentID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_student_id", "invalid id"))
		return
	}
	classID, err := snowflake.ParseString(strings.TrimSpace(c.Param("class_id")))
	if err != nil {
		AbortWithError(c, newValidationError("class_id", "invalid_class_id", "invalid id"))
		return
	}

	at := s.clock.Now()
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			AbortWithError(c, newValidationError("date", "invalid_date", "expected YYYY-MM-DD"))
			return
		}
		at = parsed
	}

	paid, err := s.invoiceSvc.HasPaidInvoice(c.Request.Context(), studentID, classID, at)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"student_id": studentID.String(),
			"class_id":   classID.String(),
			"period":     billingperiod.PeriodOf(at),
			"paid":       paid,
		},
	})
}
