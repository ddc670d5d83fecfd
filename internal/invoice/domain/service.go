package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidInvoiceID  = errors.New("invalid_invoice_id")
	ErrInvoiceNotFound   = errors.New("invoice_not_found")
	ErrFeeNotConfigured  = errors.New("class_fee_not_configured")
	ErrInvalidEnrollment = errors.New("invalid_enrollment")
)

// GenerateResult reports the outcome of a monthly generation run.
type GenerateResult struct {
	Period  string `json:"period"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
}

type ListInvoicesRequest struct {
	Period    *string
	StudentID *snowflake.ID
	ClassID   *snowflake.ID
	Status    *InvoiceStatus
	Limit     int
}

type ListInvoicesResponse struct {
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	// GenerateForPeriod ensures every billable enrollment has exactly one
	// invoice for the period containing now. Enrollments already invoiced and
	// classes with no session on or after the period's start are skipped.
	// Safe to re-run.
	GenerateForPeriod(ctx context.Context, now time.Time) (GenerateResult, error)
	// CreateForEnrollment issues the current period's invoice for a single
	// enrollment at registration time. Returns the existing invoice unchanged
	// when one was already issued for the period.
	CreateForEnrollment(ctx context.Context, studentID, classID snowflake.ID) (Invoice, error)
	// HasPaidInvoice reports whether the student holds a paid invoice for the
	// class in the billing period containing at. A missing or unpaid invoice
	// yields false, not an error.
	HasPaidInvoice(ctx context.Context, studentID, classID snowflake.ID, at time.Time) (bool, error)

	List(ctx context.Context, req ListInvoicesRequest) (ListInvoicesResponse, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
}
