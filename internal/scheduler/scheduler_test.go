package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorlane/tutorbill/internal/billingperiod"
	"github.com/tutorlane/tutorbill/internal/clock"
	"github.com/tutorlane/tutorbill/internal/config"
	invoicedomain "github.com/tutorlane/tutorbill/internal/invoice/domain"
	obsmetrics "github.com/tutorlane/tutorbill/internal/observability/metrics"
	"github.com/tutorlane/tutorbill/internal/providers/email"
	tutorinvoicedomain "github.com/tutorlane/tutorbill/internal/tutorinvoice/domain"
	"go.uber.org/zap"
)

type stubInvoiceService struct {
	calls int
	err   error
}

func (s *stubInvoiceService) GenerateForPeriod(ctx context.Context, now time.Time) (invoicedomain.GenerateResult, error) {
	s.calls++
	return invoicedomain.GenerateResult{Period: billingperiod.PeriodOf(now), Created: 2}, s.err
}

func (s *stubInvoiceService) CreateForEnrollment(ctx context.Context, studentID, classID snowflake.ID) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, nil
}

func (s *stubInvoiceService) HasPaidInvoice(ctx context.Context, studentID, classID snowflake.ID, at time.Time) (bool, error) {
	return false, nil
}

func (s *stubInvoiceService) List(ctx context.Context, req invoicedomain.ListInvoicesRequest) (invoicedomain.ListInvoicesResponse, error) {
	return invoicedomain.ListInvoicesResponse{}, nil
}

func (s *stubInvoiceService) GetByID(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, nil
}

type stubPayoutService struct {
	calls int
	err   error
}

func (s *stubPayoutService) GeneratePayouts(ctx context.Context, now time.Time) (tutorinvoicedomain.PayoutResult, error) {
	s.calls++
	return tutorinvoicedomain.PayoutResult{Period: billingperiod.Previous(now), Computed: 1}, s.err
}

func (s *stubPayoutService) List(ctx context.Context, req tutorinvoicedomain.ListPayoutsRequest) (tutorinvoicedomain.ListPayoutsResponse, error) {
	return tutorinvoicedomain.ListPayoutsResponse{}, nil
}

type captureEmailProvider struct {
	summaries []email.RunSummary
	err       error
}

func (p *captureEmailProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return p.err
}

func (p *captureEmailProvider) SendRunSummary(ctx context.Context, to []string, summary email.RunSummary) error {
	if p.err != nil {
		return p.err
	}
	p.summaries = append(p.summaries, summary)
	return nil
}

func swapRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()

	prev := prometheus.DefaultRegisterer
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	obsmetrics.ResetJobMetricsForTest()

	t.Cleanup(func() {
		prometheus.DefaultRegisterer = prev
		obsmetrics.ResetJobMetricsForTest()
	})
	return reg
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metric:
		for _, m := range family.GetMetric() {
			got := map[string]string{}
			for _, pair := range m.GetLabel() {
				got[pair.GetName()] = pair.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metric
				}
			}
			return counterOf(m)
		}
	}
	return 0
}

func counterOf(m *dto.Metric) float64 {
	if c := m.GetCounter(); c != nil {
		return c.GetValue()
	}
	return 0
}

func newTestScheduler(t *testing.T, start time.Time) (*Scheduler, *stubInvoiceService, *stubPayoutService, *clock.FakeClock) {
	t.Helper()

	invoiceSvc := &stubInvoiceService{}
	payoutSvc := &stubPayoutService{}
	fake := clock.NewFakeClock(start)

	sched, err := New(Params{
		Log:        zap.NewNop(),
		Clock:      fake,
		Billing:    config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		AppConfig:  config.Config{},
		InvoiceSvc: invoiceSvc,
		PayoutSvc:  payoutSvc,
	})
	require.NoError(t, err)
	return sched, invoiceSvc, payoutSvc, fake
}

func TestRunOnceHonorsRunDays(t *testing.T) {
	swapRegistry(t)
	ctx := context.Background()

	sched, invoiceSvc, payoutSvc, fake := newTestScheduler(t,
		time.Date(2025, time.January, 1, 0, 30, 0, 0, time.UTC))

	require.NoError(t, sched.RunOnce(ctx))
	assert.Equal(t, 1, invoiceSvc.calls)
	assert.Equal(t, 0, payoutSvc.calls, "payout day not reached yet")

	// Later ticks in the same period are no-ops.
	require.NoError(t, sched.RunOnce(ctx))
	assert.Equal(t, 1, invoiceSvc.calls)

	fake.Set(time.Date(2025, time.January, 5, 3, 0, 0, 0, time.UTC))
	require.NoError(t, sched.RunOnce(ctx))
	assert.Equal(t, 1, invoiceSvc.calls)
	assert.Equal(t, 1, payoutSvc.calls)

	require.NoError(t, sched.RunOnce(ctx))
	assert.Equal(t, 1, payoutSvc.calls)

	// A new month starts both cycles over.
	fake.Set(time.Date(2025, time.February, 1, 0, 30, 0, 0, time.UTC))
	require.NoError(t, sched.RunOnce(ctx))
	assert.Equal(t, 2, invoiceSvc.calls)

	fake.Set(time.Date(2025, time.February, 5, 3, 0, 0, 0, time.UTC))
	require.NoError(t, sched.RunOnce(ctx))
	assert.Equal(t, 2, payoutSvc.calls)
}

func TestRunOnceRetriesFailedJob(t *testing.T) {
	reg := swapRegistry(t)
	ctx := context.Background()

	sched, invoiceSvc, _, _ := newTestScheduler(t,
		time.Date(2025, time.January, 1, 0, 30, 0, 0, time.UTC))

	invoiceSvc.err = assert.AnError
	require.Error(t, sched.RunOnce(ctx))
	assert.Equal(t, 1, invoiceSvc.calls)
	assert.Equal(t, float64(1), counterValue(t, reg, "tutorbill_job_errors_total",
		map[string]string{"job": jobStudentInvoices}))

	// The failure left the period unfinished, so the next tick retries.
	invoiceSvc.err = nil
	require.NoError(t, sched.RunOnce(ctx))
	assert.Equal(t, 2, invoiceSvc.calls)

	require.NoError(t, sched.RunOnce(ctx))
	assert.Equal(t, 2, invoiceSvc.calls)
}

func TestRunOnceTreatsDeadlineAsSoftFailure(t *testing.T) {
	reg := swapRegistry(t)
	ctx := context.Background()

	sched, invoiceSvc, _, _ := newTestScheduler(t,
		time.Date(2025, time.January, 1, 0, 30, 0, 0, time.UTC))

	invoiceSvc.err = context.DeadlineExceeded
	require.NoError(t, sched.RunOnce(ctx), "timeouts must not bubble as run errors")
	assert.Equal(t, float64(1), counterValue(t, reg, "tutorbill_job_timeouts_total",
		map[string]string{"job": jobStudentInvoices}))
	assert.Equal(t, float64(1), counterValue(t, reg, "tutorbill_job_runs_total",
		map[string]string{"job": jobStudentInvoices}))
}

func TestRunOnceEmailsRunSummaries(t *testing.T) {
	swapRegistry(t)
	ctx := context.Background()

	mail := &captureEmailProvider{}
	fake := clock.NewFakeClock(time.Date(2025, time.February, 5, 3, 0, 0, 0, time.UTC))
	sched, err := New(Params{
		Log:        zap.NewNop(),
		Clock:      fake,
		Billing:    config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		AppConfig:  config.Config{Email: config.EmailConfig{AdminTo: "billing@tutorlane.test"}},
		InvoiceSvc: &stubInvoiceService{},
		PayoutSvc:  &stubPayoutService{},
		Email:      mail,
	})
	require.NoError(t, err)

	require.NoError(t, sched.RunOnce(ctx))
	require.Len(t, mail.summaries, 2)
	assert.Equal(t, jobStudentInvoices, mail.summaries[0].Job)
	assert.Equal(t, "2025-02", mail.summaries[0].Period)
	assert.Equal(t, 2, mail.summaries[0].Created)
	assert.Equal(t, jobTutorPayouts, mail.summaries[1].Job)
	assert.Equal(t, "2025-01", mail.summaries[1].Period)

	// A failing mail provider must not fail the run.
	mail.err = assert.AnError
	fake.Set(time.Date(2025, time.March, 5, 3, 0, 0, 0, time.UTC))
	require.NoError(t, sched.RunOnce(ctx))
	assert.Len(t, mail.summaries, 2)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
