package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	tutorinvoicedomain "github.com/tutorlane/tutorbill/internal/tutorinvoice/domain"
)

type generateRequest struct {
	// At overrides the reference instant, mainly for backfills.
	At string `json:"at"`
}

func (s *Server) referenceTime(c *gin.Context) (time.Time, bool) {
	now := s.clock.Now()
	if c.Request.ContentLength == 0 {
		return now, true
	}

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return time.Time{}, false
	}
	if strings.TrimSpace(req.At) == "" {
		return now, true
	}

	at, err := time.Parse(time.RFC3339, req.At)
	if err != nil {
		AbortWithError(c, newValidationError("at", "invalid_at", "expected RFC 3339 timestamp"))
		return time.Time{}, false
	}
	return at, true
}

// GenerateInvoices triggers the monthly student invoice batch outside its
// schedule. The run is idempotent, so an accidental double trigger is safe.
func (s *Server) GenerateInvoices(c *gin.Context) {
	at, ok := s.referenceTime(c)
	if !ok {
		return
	}

	result, err := s.invoiceSvc.GenerateForPeriod(c.Request.Context(), at)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// GeneratePayouts triggers the tutor payout batch for the period before the
// reference instant.
func (s *Server) GeneratePayouts(c *gin.Context) {
	at, ok := s.referenceTime(c)
	if !ok {
		return
	}

	result, err := s.payoutSvc.GeneratePayouts(c.Request.Context(), at)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListPayouts(c *gin.Context) {
	req := tutorinvoicedomain.ListPayoutsRequest{}

	if period := strings.TrimSpace(c.Query("period")); period != "" {
		req.Period = &period
	}
	if raw := strings.TrimSpace(c.Query("tutor_id")); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("tutor_id", "invalid_tutor_id", "invalid id"))
			return
		}
		req.TutorID = &id
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := tutorinvoicedomain.PayoutStatus(raw)
		req.Status = &status
	}

	resp, err := s.payoutSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Payouts})
}
