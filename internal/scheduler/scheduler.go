// Package scheduler drives the monthly billing jobs: student invoice
// generation early in the month and tutor payout computation a few days
// later, once payment verification has caught up.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tutorlane/tutorbill/internal/billingperiod"
	"github.com/tutorlane/tutorbill/internal/clock"
	"github.com/tutorlane/tutorbill/internal/config"
	invoicedomain "github.com/tutorlane/tutorbill/internal/invoice/domain"
	"github.com/tutorlane/tutorbill/internal/joblock"
	obsmetrics "github.com/tutorlane/tutorbill/internal/observability/metrics"
	"github.com/tutorlane/tutorbill/internal/providers/email"
	tutorinvoicedomain "github.com/tutorlane/tutorbill/internal/tutorinvoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

const (
	jobStudentInvoices = "student_invoices"
	jobTutorPayouts    = "tutor_payouts"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Billing    *config.BillingConfigHolder
	AppConfig  config.Config
	InvoiceSvc invoicedomain.Service
	PayoutSvc  tutorinvoicedomain.Service
	Metrics    *obsmetrics.Metrics `optional:"true"`
	Email      email.Provider      `optional:"true"`
	Locker     *joblock.Locker     `optional:"true"`
	Config     Config              `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	billing    *config.BillingConfigHolder
	adminTo    string
	invoiceSvc invoicedomain.Service
	payoutSvc  tutorinvoicedomain.Service
	metrics    *obsmetrics.Metrics
	email      email.Provider
	locker     *joblock.Locker

	// Each job runs once per period; the scheduler remembers the last period
	// it completed so later ticks within the same month are no-ops.
	lastInvoicePeriod string
	lastPayoutPeriod  string
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Billing == nil || p.InvoiceSvc == nil || p.PayoutSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		billing:    p.Billing,
		adminTo:    p.AppConfig.Email.AdminTo,
		invoiceSvc: p.InvoiceSvc,
		payoutSvc:  p.PayoutSvc,
		metrics:    p.Metrics,
		email:      p.Email,
		locker:     p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	jobMetrics := obsmetrics.Jobs()
	jobMetrics.IncJobRun(name)

	if s.locker != nil {
		key := "tutorbill:job:" + name
		token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			// A redis outage must not stop billing; run unguarded.
			log.Warn("job lock unavailable, running without it", zap.Error(err))
		} else if !ok {
			log.Debug("job held by another replica")
			return nil
		} else {
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn("job lock release failed", zap.Error(err))
				}
			}()
		}
	}

	err := fn(ctx)
	jobMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	// Deadline is a soft failure: the next tick picks up where the
	// idempotent job left off.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		jobMetrics.IncJobTimeout(name)
		log.Warn("job timed out",
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	jobMetrics.IncJobError(name, err)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every job that is due at the current instant.
func (s *Scheduler) RunOnce(parent context.Context) error {
	now := s.clock.Now()
	cfg := s.billing.Get()
	var err error

	invoicePeriod := billingperiod.PeriodOf(now)
	if now.Day() >= cfg.StudentInvoiceDay && s.lastInvoicePeriod != invoicePeriod {
		err = errors.Join(err, s.runJob(parent, jobStudentInvoices, func(ctx context.Context) error {
			return s.studentInvoiceJob(ctx, now)
		}))
	}

	payoutPeriod := billingperiod.Previous(now)
	if now.Day() >= cfg.PayoutDay && s.lastPayoutPeriod != payoutPeriod {
		err = errors.Join(err, s.runJob(parent, jobTutorPayouts, func(ctx context.Context) error {
			return s.tutorPayoutJob(ctx, now)
		}))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	jobMetrics := obsmetrics.Jobs()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			jobMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) studentInvoiceJob(ctx context.Context, now time.Time) error {
	result, err := s.invoiceSvc.GenerateForPeriod(ctx, now)
	obsmetrics.Jobs().AddBatchProcessed(jobStudentInvoices, result.Created)
	if err != nil {
		return err
	}

	s.lastInvoicePeriod = result.Period
	s.sendRunSummary(ctx, email.RunSummary{
		Job:        jobStudentInvoices,
		Period:     result.Period,
		Created:    result.Created,
		Skipped:    result.Skipped,
		FinishedAt: s.clock.Now().Format(time.RFC3339),
	})
	return nil
}

func (s *Scheduler) tutorPayoutJob(ctx context.Context, now time.Time) error {
	result, err := s.payoutSvc.GeneratePayouts(ctx, now)
	obsmetrics.Jobs().AddBatchProcessed(jobTutorPayouts, result.Computed)
	if err != nil {
		return err
	}

	s.lastPayoutPeriod = result.Period
	s.sendRunSummary(ctx, email.RunSummary{
		Job:        jobTutorPayouts,
		Period:     result.Period,
		Created:    result.Computed,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
		FinishedAt: s.clock.Now().Format(time.RFC3339),
	})
	return nil
}

func (s *Scheduler) sendRunSummary(ctx context.Context, summary email.RunSummary) {
	if s.email == nil || s.adminTo == "" {
		return
	}
	if err := s.email.SendRunSummary(ctx, []string{s.adminTo}, summary); err != nil {
		s.log.Warn("run summary email failed",
			zap.String("job", summary.Job),
			zap.Error(err),
		)
		return
	}
	s.metrics.RecordEmailSent(ctx, "run_summary")
}
