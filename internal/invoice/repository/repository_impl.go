package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/tutorlane/tutorbill/internal/invoice/domain"
	"github.com/tutorlane/tutorbill/pkg/db/option"
	"github.com/tutorlane/tutorbill/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// invoiceKeyColumns is the conflict target of the idempotency index.
var invoiceKeyColumns = []clause.Column{
	{Name: "student_id"},
	{Name: "class_id"},
	{Name: "invoice_period"},
}

type invoiceRepository struct {
	db    *gorm.DB
	store repository.Repository[domain.Invoice]
}

func Provide(gdb *gorm.DB) domain.Repository {
	return &invoiceRepository{
		db:    gdb,
		store: repository.ProvideStore[domain.Invoice](gdb),
	}
}

func (r *invoiceRepository) ListKeysForPeriod(ctx context.Context, period string) ([]domain.InvoiceKey, error) {
	var keys []domain.InvoiceKey
	err := r.db.WithContext(ctx).Raw(
		`SELECT student_id, class_id
		 FROM invoices
		 WHERE invoice_period = ?`,
		period,
	).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *invoiceRepository) InsertBatch(ctx context.Context, invoices []*domain.Invoice) (int64, error) {
	if len(invoices) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: invoiceKeyColumns, DoNothing: true}).
		Create(invoices)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *invoiceRepository) Insert(ctx context.Context, invoice *domain.Invoice) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: invoiceKeyColumns, DoNothing: true}).
		Create(invoice)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *invoiceRepository) FindByKey(ctx context.Context, studentID, classID snowflake.ID, period string) (*domain.Invoice, error) {
	return r.store.FindOne(ctx, &domain.Invoice{
		StudentID:     studentID,
		ClassID:       classID,
		InvoicePeriod: period,
	})
}

func (r *invoiceRepository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	return r.store.FindOne(ctx, &domain.Invoice{ID: id})
}

func (r *invoiceRepository) ExistsWithStatus(ctx context.Context, studentID, classID snowflake.ID, period string, status domain.InvoiceStatus) (bool, error) {
	count, err := r.store.Count(ctx, &domain.Invoice{
		StudentID:     studentID,
		ClassID:       classID,
		InvoicePeriod: period,
		Status:        status,
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *invoiceRepository) Find(ctx context.Context, query *domain.Invoice, opts ...option.QueryOption) ([]domain.Invoice, error) {
	items, err := r.store.Find(ctx, query, opts...)
	if err != nil {
		return nil, err
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return invoices, nil
}
