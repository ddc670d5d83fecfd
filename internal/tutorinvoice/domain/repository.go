package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/tutorlane/tutorbill/pkg/db/option"
)

type Repository interface {
	// CountPaidStudentInvoices returns how many student invoices for the
	// class were paid in the period.
	CountPaidStudentInvoices(ctx context.Context, classID snowflake.ID, period string) (int64, error)
	// Upsert writes the payout for its (tutor, class, period) key, replacing
	// the paid count and amount of a pending row from an earlier run. Paid
	// rows are never touched.
	Upsert(ctx context.Context, payout *TutorInvoice) error
	// FindByKey returns nil when no payout exists for the key.
	FindByKey(ctx context.Context, tutorID, classID snowflake.ID, period string) (*TutorInvoice, error)
	Find(ctx context.Context, query *TutorInvoice, opts ...option.QueryOption) ([]TutorInvoice, error)
}
