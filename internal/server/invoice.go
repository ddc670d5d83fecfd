package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/tutorlane/tutorbill/internal/invoice/domain"
	"github.com/tutorlane/tutorbill/internal/providers/pdf"
)

func (s *Server) ListInvoices(c *gin.Context) {
	req := invoicedomain.ListInvoicesRequest{}

	if period := strings.TrimSpace(c.Query("period")); period != "" {
		req.Period = &period
	}
	if raw := strings.TrimSpace(c.Query("student_id")); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("student_id", "invalid_student_id", "invalid id"))
			return
		}
		req.StudentID = &id
	}
	if raw := strings.TrimSpace(c.Query("class_id")); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("class_id", "invalid_class_id", "invalid id"))
			return
		}
		req.ClassID = &id
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := invoicedomain.InvoiceStatus(raw)
		req.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		req.Limit = limit
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	item, err := s.invoiceSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) GetInvoicePDF(c *gin.Context) {
	if s.pdfSvc == nil {
		AbortWithError(c, ErrInternal)
		return
	}
	ctx := c.Request.Context()

	invoice, err := s.invoiceSvc.GetByID(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	className := "Class " + invoice.ClassID.String()
	tutorRef := ""
	if class, err := s.classes.FindByID(ctx, invoice.ClassID); err == nil && class != nil {
		className = class.Name
		tutorRef = class.TutorID.String()
	}

	reader, err := s.pdfSvc.GenerateInvoice(ctx, pdf.InvoiceData{
		InvoiceNumber: invoice.InvoiceNo,
		Period:        invoice.InvoicePeriod,
		IssueDate:     invoice.InvoiceDate.Format(time.DateOnly),
		DueDate:       invoice.DueDate.Format(time.DateOnly),
		Status:        string(invoice.Status),
		StudentRef:    invoice.StudentID.String(),
		ClassName:     className,
		TutorRef:      tutorRef,
		Amount:        strconv.FormatInt(invoice.Amount, 10),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+invoice.InvoiceNo+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}
