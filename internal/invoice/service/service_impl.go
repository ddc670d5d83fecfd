package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/tutorlane/tutorbill/internal/billingperiod"
	classdomain "github.com/tutorlane/tutorbill/internal/class/domain"
	"github.com/tutorlane/tutorbill/internal/clock"
	"github.com/tutorlane/tutorbill/internal/config"
	enrollmentdomain "github.com/tutorlane/tutorbill/internal/enrollment/domain"
	"github.com/tutorlane/tutorbill/internal/invoice/domain"
	"github.com/tutorlane/tutorbill/internal/observability/metrics"
	"github.com/tutorlane/tutorbill/pkg/db/option"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type service struct {
	log         *zap.Logger
	node        *snowflake.Node
	clock       clock.Clock
	billing     *config.BillingConfigHolder
	metrics     *metrics.Metrics
	invoices    domain.Repository
	enrollments enrollmentdomain.Repository
	classes     classdomain.Repository
}

type ServiceParam struct {
	fx.In

	Log         *zap.Logger
	Node        *snowflake.Node
	Clock       clock.Clock
	Billing     *config.BillingConfigHolder
	Metrics     *metrics.Metrics
	Invoices    domain.Repository
	Enrollments enrollmentdomain.Repository
	Classes     classdomain.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &service{
		log:         p.Log.Named("invoice.service"),
		node:        p.Node,
		clock:       p.Clock,
		billing:     p.Billing,
		metrics:     p.Metrics,
		invoices:    p.Invoices,
		enrollments: p.Enrollments,
		classes:     p.Classes,
	}
}

func (s *service) GenerateForPeriod(ctx context.Context, now time.Time) (domain.GenerateResult, error) {
	cfg := s.billing.Get()
	period := billingperiod.PeriodOf(now)
	invoiceDate, dueDate := billingperiod.InvoiceDates(now, cfg.DueOffsetDays)

	result := domain.GenerateResult{Period: period}

	// Dormancy is judged against the start of the billed month, not the run
	// instant, so a month-end retry bills the same classes as a
	// first-of-month run.
	periodStart, _, err := billingperiod.Bounds(period)
	if err != nil {
		return result, fmt.Errorf("resolve period %s: %w", period, err)
	}

	billable, err := s.enrollments.ListBillable(ctx)
	if err != nil {
		return result, fmt.Errorf("list billable enrollments: %w", err)
	}
	if len(billable) == 0 {
		return result, nil
	}

	existing, err := s.invoices.ListKeysForPeriod(ctx, period)
	if err != nil {
		return result, fmt.Errorf("list invoiced keys for %s: %w", period, err)
	}
	invoiced := make(map[domain.InvoiceKey]struct{}, len(existing))
	for _, key := range existing {
		invoiced[key] = struct{}{}
	}

	// Dormancy is a per-class fact, not a per-enrollment one; cache lookups
	// so a class with many students is checked once.
	dormant := make(map[snowflake.ID]bool)

	pending := make([]*domain.Invoice, 0, len(billable))
	for _, e := range billable {
		key := domain.InvoiceKey{StudentID: e.StudentID, ClassID: e.ClassID}
		if _, ok := invoiced[key]; ok {
			result.Skipped++
			continue
		}

		isDormant, ok := dormant[e.ClassID]
		if !ok {
			hasSession, err := s.classes.HasUpcomingSession(ctx, e.ClassID, periodStart)
			if err != nil {
				// A lookup failure must not sink the whole run. The class is
				// passed over and picked up by the next run.
				s.log.Warn("session lookup failed, skipping class for this run",
					zap.String("period", period),
					zap.Int64("class_id", e.ClassID.Int64()),
					zap.Error(err),
				)
				result.Skipped++
				continue
			}
			isDormant = !hasSession
			dormant[e.ClassID] = isDormant
		}
		if isDormant {
			result.Skipped++
			continue
		}

		if e.Fee <= 0 {
			s.log.Warn("class fee not configured, skipping enrollment",
				zap.String("period", period),
				zap.Int64("student_id", e.StudentID.Int64()),
				zap.Int64("class_id", e.ClassID.Int64()),
			)
			result.Skipped++
			continue
		}

		pending = append(pending, &domain.Invoice{
			ID:            s.node.Generate(),
			StudentID:     e.StudentID,
			ClassID:       e.ClassID,
			InvoiceNo:     newInvoiceNo(period),
			InvoicePeriod: period,
			Amount:        e.Fee,
			InvoiceDate:   invoiceDate,
			DueDate:       dueDate,
			Status:        domain.InvoiceStatusIssued,
		})
	}

	for start := 0; start < len(pending); start += cfg.InsertChunkSize {
		end := min(start+cfg.InsertChunkSize, len(pending))
		written, err := s.invoices.InsertBatch(ctx, pending[start:end])
		if err != nil {
			// Chunks before this one are committed; re-running the job only
			// fills in what is missing.
			return result, fmt.Errorf("insert invoice batch for %s: %w", period, err)
		}
		result.Created += int(written)
		result.Skipped += end - start - int(written)
	}

	if result.Created > 0 {
		s.metrics.RecordInvoicesIssued(ctx, period, result.Created)
	}
	s.log.Info("student invoice run finished",
		zap.String("period", period),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *service) CreateForEnrollment(ctx context.Context, studentID, classID snowflake.ID) (domain.Invoice, error) {
	enrolled, err := s.enrollments.FindByStudentAndClass(ctx, studentID, classID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if enrolled == nil {
		return domain.Invoice{}, domain.ErrInvalidEnrollment
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if class == nil {
		return domain.Invoice{}, classdomain.ErrNotFound
	}
	if class.Fee <= 0 {
		return domain.Invoice{}, domain.ErrFeeNotConfigured
	}

	cfg := s.billing.Get()
	now := s.clock.Now()
	period := billingperiod.PeriodOf(now)
	invoiceDate, dueDate := billingperiod.InvoiceDates(now, cfg.DueOffsetDays)

	invoice := &domain.Invoice{
		ID:            s.node.Generate(),
		StudentID:     studentID,
		ClassID:       classID,
		InvoiceNo:     newInvoiceNo(period),
		InvoicePeriod: period,
		Amount:        class.Fee,
		InvoiceDate:   invoiceDate,
		DueDate:       dueDate,
		Status:        domain.InvoiceStatusIssued,
	}

	created, err := s.invoices.Insert(ctx, invoice)
	if err != nil {
		return domain.Invoice{}, err
	}
	if created {
		s.metrics.RecordInvoicesIssued(ctx, period, 1)
		return *invoice, nil
	}

	// Lost the race (or the batch ran first): the existing row wins.
	existing, err := s.invoices.FindByKey(ctx, studentID, classID, period)
	if err != nil {
		return domain.Invoice{}, err
	}
	if existing == nil {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return *existing, nil
}

func (s *service) HasPaidInvoice(ctx context.Context, studentID, classID snowflake.ID, at time.Time) (bool, error) {
	period := billingperiod.PeriodOf(at)
	return s.invoices.ExistsWithStatus(ctx, studentID, classID, period, domain.InvoiceStatusPaid)
}

func (s *service) List(ctx context.Context, req domain.ListInvoicesRequest) (domain.ListInvoicesResponse, error) {
	query := &domain.Invoice{}
	if req.Period != nil {
		query.InvoicePeriod = *req.Period
	}
	if req.StudentID != nil {
		query.StudentID = *req.StudentID
	}
	if req.ClassID != nil {
		query.ClassID = *req.ClassID
	}
	if req.Status != nil {
		query.Status = *req.Status
	}

	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	invoices, err := s.invoices.Find(ctx, query,
		option.WithSortBy(option.QuerySortBy{
			Allow:   map[string]bool{"created_at": true, "due_date": true},
			Field:   "created_at",
			Descend: true,
		}),
		option.WithLimit(limit),
	)
	if err != nil {
		return domain.ListInvoicesResponse{}, err
	}
	return domain.ListInvoicesResponse{Invoices: invoices}, nil
}

func (s *service) GetByID(ctx context.Context, id string) (domain.Invoice, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return domain.Invoice{}, domain.ErrInvalidInvoiceID
	}

	invoice, err := s.invoices.FindByID(ctx, parsed)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return *invoice, nil
}

// newInvoiceNo builds a human-facing invoice number. The ULID suffix keeps
// numbers unique without a database sequence; uniqueness of the billing key
// itself is enforced by the index, not the number.
func newInvoiceNo(period string) string {
	suffix := strings.ToUpper(ulid.Make().String())
	return fmt.Sprintf("%s-%s", period, suffix[len(suffix)-8:])
}
