package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// PayoutResult reports the outcome of a payout run.
type PayoutResult struct {
	Period   string `json:"period"`
	Computed int    `json:"computed"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

type ListPayoutsRequest struct {
	Period  *string
	TutorID *snowflake.ID
	Status  *PayoutStatus
	Limit   int
}

type ListPayoutsResponse struct {
	Payouts []TutorInvoice `json:"payouts"`
}

type Service interface {
	// GeneratePayouts computes the payout of every active class for the
	// billing period before the one containing now, from the student
	// invoices paid in that period. Re-running replaces the paid count and
	// amount of pending payouts with freshly computed values.
	GeneratePayouts(ctx context.Context, now time.Time) (PayoutResult, error)
	List(ctx context.Context, req ListPayoutsRequest) (ListPayoutsResponse, error)
}
