package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/tutorlane/tutorbill/internal/invoice/domain"
	"github.com/tutorlane/tutorbill/internal/tutorinvoice/domain"
	"github.com/tutorlane/tutorbill/pkg/db/option"
	"github.com/tutorlane/tutorbill/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// payoutKeyColumns is the conflict target of the recompute index.
var payoutKeyColumns = []clause.Column{
	{Name: "tutor_id"},
	{Name: "class_id"},
	{Name: "payment_period"},
}

type tutorInvoiceRepository struct {
	db    *gorm.DB
	store repository.Repository[domain.TutorInvoice]
}

func Provide(gdb *gorm.DB) domain.Repository {
	return &tutorInvoiceRepository{
		db:    gdb,
		store: repository.ProvideStore[domain.TutorInvoice](gdb),
	}
}

func (r *tutorInvoiceRepository) CountPaidStudentInvoices(ctx context.Context, classID snowflake.ID, period string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM invoices
		 WHERE class_id = ? AND invoice_period = ? AND status = ?`,
		classID,
		period,
		invoicedomain.InvoiceStatusPaid,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *tutorInvoiceRepository) Upsert(ctx context.Context, payout *domain.TutorInvoice) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: payoutKeyColumns,
			DoUpdates: clause.Assignments(map[string]any{
				"paid_count": payout.PaidCount,
				"amount":     payout.Amount,
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Eq{
					Column: clause.Column{Table: "tutor_invoices", Name: "status"},
					Value:  domain.PayoutStatusPending,
				},
			}},
		}).
		Create(payout).Error
}

func (r *tutorInvoiceRepository) FindByKey(ctx context.Context, tutorID, classID snowflake.ID, period string) (*domain.TutorInvoice, error) {
	return r.store.FindOne(ctx, &domain.TutorInvoice{
		TutorID:       tutorID,
		ClassID:       classID,
		PaymentPeriod: period,
	})
}

func (r *tutorInvoiceRepository) Find(ctx context.Context, query *domain.TutorInvoice, opts ...option.QueryOption) ([]domain.TutorInvoice, error) {
	items, err := r.store.Find(ctx, query, opts...)
	if err != nil {
		return nil, err
	}

	payouts := make([]domain.TutorInvoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payouts = append(payouts, *item)
	}
	return payouts, nil
}
