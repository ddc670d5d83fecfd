package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/tutorlane/tutorbill/pkg/db/option"
)

// InvoiceKey identifies the enrollment an invoice bills within one period.
type InvoiceKey struct {
	StudentID snowflake.ID
	ClassID   snowflake.ID
}

type Repository interface {
	// ListKeysForPeriod returns the (student, class) pairs already invoiced
	// in the period.
	ListKeysForPeriod(ctx context.Context, period string) ([]InvoiceKey, error)
	// InsertBatch inserts invoices, silently skipping rows whose
	// (student, class, period) key already exists. Returns the number of rows
	// actually written.
	InsertBatch(ctx context.Context, invoices []*Invoice) (int64, error)
	// Insert inserts a single invoice with the same conflict handling as
	// InsertBatch. The bool reports whether the row was written.
	Insert(ctx context.Context, invoice *Invoice) (bool, error)
	// FindByKey returns nil when no invoice exists for the key.
	FindByKey(ctx context.Context, studentID, classID snowflake.ID, period string) (*Invoice, error)
	// FindByID returns nil when the invoice does not exist.
	FindByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
	// ExistsWithStatus reports whether an invoice with the given status
	// exists for the key.
	ExistsWithStatus(ctx context.Context, studentID, classID snowflake.ID, period string, status InvoiceStatus) (bool, error)
	Find(ctx context.Context, query *Invoice, opts ...option.QueryOption) ([]Invoice, error)
}
