package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	classdomain "github.com/tutorlane/tutorbill/internal/class/domain"
	classrepository "github.com/tutorlane/tutorbill/internal/class/repository"
	"github.com/tutorlane/tutorbill/internal/clock"
	"github.com/tutorlane/tutorbill/internal/config"
	enrollmentdomain "github.com/tutorlane/tutorbill/internal/enrollment/domain"
	enrollmentrepository "github.com/tutorlane/tutorbill/internal/enrollment/repository"
	"github.com/tutorlane/tutorbill/internal/invoice/domain"
	invoicerepository "github.com/tutorlane/tutorbill/internal/invoice/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	service domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&classdomain.Class{},
		&classdomain.ClassSession{},
		&enrollmentdomain.Enrollment{},
		&domain.Invoice{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC))

	svc := NewService(ServiceParam{
		Log:         zap.NewNop(),
		Node:        node,
		Clock:       fake,
		Billing:     config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		Invoices:    invoicerepository.Provide(gdb),
		Enrollments: enrollmentrepository.Provide(gdb),
		Classes:     classrepository.Provide(gdb),
	})

	return &fixture{db: gdb, node: node, clock: fake, service: svc}
}

func (f *fixture) addClass(t *testing.T, fee int64, withSession bool) snowflake.ID {
	t.Helper()

	class := classdomain.Class{
		ID:      f.node.Generate(),
		TutorID: f.node.Generate(),
		Name:    "Algebra II",
		Fee:     fee,
		Status:  classdomain.ClassStatusActive,
	}
	require.NoError(t, f.db.Create(&class).Error)

	if withSession {
		session := classdomain.ClassSession{
			ID:       f.node.Generate(),
			ClassID:  class.ID,
			StartsAt: f.clock.Now().AddDate(0, 0, 3),
			EndsAt:   f.clock.Now().AddDate(0, 0, 3).Add(time.Hour),
		}
		require.NoError(t, f.db.Create(&session).Error)
	}
	return class.ID
}

func (f *fixture) enroll(t *testing.T, classID snowflake.ID) snowflake.ID {
	t.Helper()

	studentID := f.node.Generate()
	require.NoError(t, f.db.Create(&enrollmentdomain.Enrollment{
		ID:         f.node.Generate(),
		StudentID:  studentID,
		ClassID:    classID,
		EnrolledAt: f.clock.Now(),
	}).Error)
	return studentID
}

func TestGenerateForPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activeClass := f.addClass(t, 5000, true)
	dormantClass := f.addClass(t, 5000, false)

	first := f.enroll(t, activeClass)
	second := f.enroll(t, activeClass)
	f.enroll(t, dormantClass)

	now := time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC)
	result, err := f.service.GenerateForPeriod(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-01", result.Period)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)

	var invoices []domain.Invoice
	require.NoError(t, f.db.Order("student_id").Find(&invoices).Error)
	require.Len(t, invoices, 2)
	for _, inv := range invoices {
		assert.Equal(t, "2025-01", inv.InvoicePeriod)
		assert.Equal(t, int64(5000), inv.Amount)
		assert.Equal(t, domain.InvoiceStatusIssued, inv.Status)
		assert.Equal(t, time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC), inv.InvoiceDate.UTC())
		assert.Equal(t, time.Date(2025, time.February, 14, 0, 0, 0, 0, time.UTC), inv.DueDate.UTC())
		assert.Contains(t, []snowflake.ID{first, second}, inv.StudentID)
	}
}

func TestGenerateForPeriodIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Date(2025, time.March, 1, 6, 0, 0, 0, time.UTC)
	f.clock.Set(now)

	classID := f.addClass(t, 7500, true)
	f.enroll(t, classID)
	f.enroll(t, classID)

	first, err := f.service.GenerateForPeriod(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := f.service.GenerateForPeriod(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Skipped)

	var count int64
	require.NoError(t, f.db.Model(&domain.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestGenerateForPeriodIgnoresRunDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Only session of the month is on 2025-01-18.
	classID := f.addClass(t, 5000, true)
	f.enroll(t, classID)

	// A month-end run must bill the same classes a first-of-month run would,
	// even when the session already happened.
	now := time.Date(2025, time.January, 31, 22, 0, 0, 0, time.UTC)
	result, err := f.service.GenerateForPeriod(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Skipped)
}

func TestGenerateForPeriodSkipsUnpricedClass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	classID := f.addClass(t, 0, true)
	f.enroll(t, classID)

	result, err := f.service.GenerateForPeriod(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Skipped)
}

func TestCreateForEnrollment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	classID := f.addClass(t, 5000, true)
	studentID := f.enroll(t, classID)

	invoice, err := f.service.CreateForEnrollment(ctx, studentID, classID)
	require.NoError(t, err)
	assert.Equal(t, "2025-01", invoice.InvoicePeriod)
	assert.Equal(t, int64(5000), invoice.Amount)
	assert.Equal(t, domain.InvoiceStatusIssued, invoice.Status)
	assert.Contains(t, invoice.InvoiceNo, "2025-01-")

	// A second call must return the original invoice, not issue another.
	again, err := f.service.CreateForEnrollment(ctx, studentID, classID)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, again.ID)

	var count int64
	require.NoError(t, f.db.Model(&domain.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateForEnrollmentRejectsUnknownEnrollment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	classID := f.addClass(t, 5000, true)

	_, err := f.service.CreateForEnrollment(ctx, f.node.Generate(), classID)
	assert.ErrorIs(t, err, domain.ErrInvalidEnrollment)
}

func TestCreateForEnrollmentRejectsUnpricedClass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	classID := f.addClass(t, 0, true)
	studentID := f.enroll(t, classID)

	_, err := f.service.CreateForEnrollment(ctx, studentID, classID)
	assert.ErrorIs(t, err, domain.ErrFeeNotConfigured)
}

func TestHasPaidInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	classID := f.addClass(t, 5000, true)
	studentID := f.enroll(t, classID)

	invoice, err := f.service.CreateForEnrollment(ctx, studentID, classID)
	require.NoError(t, err)

	at := time.Date(2025, time.January, 20, 10, 0, 0, 0, time.UTC)

	paid, err := f.service.HasPaidInvoice(ctx, studentID, classID, at)
	require.NoError(t, err)
	assert.False(t, paid, "issued invoice must not count as paid")

	require.NoError(t, f.db.Model(&domain.Invoice{}).
		Where("id = ?", invoice.ID).
		Update("status", domain.InvoiceStatusPaid).Error)

	paid, err = f.service.HasPaidInvoice(ctx, studentID, classID, at)
	require.NoError(t, err)
	assert.True(t, paid)

	// An adjacent period has no invoice at all.
	paid, err = f.service.HasPaidInvoice(ctx, studentID, classID, at.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestGetByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	classID := f.addClass(t, 5000, true)
	studentID := f.enroll(t, classID)

	created, err := f.service.CreateForEnrollment(ctx, studentID, classID)
	require.NoError(t, err)

	found, err := f.service.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.InvoiceNo, found.InvoiceNo)

	_, err = f.service.GetByID(ctx, "not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidInvoiceID)

	_, err = f.service.GetByID(ctx, f.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}

func TestListFiltersByPeriodAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	classID := f.addClass(t, 5000, true)
	f.enroll(t, classID)
	f.enroll(t, classID)

	_, err := f.service.GenerateForPeriod(ctx, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	period := "2025-01"
	status := domain.InvoiceStatusIssued
	resp, err := f.service.List(ctx, domain.ListInvoicesRequest{Period: &period, Status: &status})
	require.NoError(t, err)
	assert.Len(t, resp.Invoices, 2)

	other := "2025-02"
	resp, err = f.service.List(ctx, domain.ListInvoicesRequest{Period: &other})
	require.NoError(t, err)
	assert.Empty(t, resp.Invoices)
}
