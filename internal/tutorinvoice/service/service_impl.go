package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tutorlane/tutorbill/internal/billingperiod"
	classdomain "github.com/tutorlane/tutorbill/internal/class/domain"
	"github.com/tutorlane/tutorbill/internal/config"
	"github.com/tutorlane/tutorbill/internal/observability/metrics"
	"github.com/tutorlane/tutorbill/internal/tutorinvoice/domain"
	"github.com/tutorlane/tutorbill/pkg/db/option"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type service struct {
	log     *zap.Logger
	node    *snowflake.Node
	billing *config.BillingConfigHolder
	metrics *metrics.Metrics
	payouts domain.Repository
	classes classdomain.Repository
}

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	Node    *snowflake.Node
	Billing *config.BillingConfigHolder
	Metrics *metrics.Metrics
	Payouts domain.Repository
	Classes classdomain.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &service{
		log:     p.Log.Named("tutorinvoice.service"),
		node:    p.Node,
		billing: p.Billing,
		metrics: p.Metrics,
		payouts: p.Payouts,
		classes: p.Classes,
	}
}

func (s *service) GeneratePayouts(ctx context.Context, now time.Time) (domain.PayoutResult, error) {
	cfg := s.billing.Get()
	period := billingperiod.Previous(now)

	result := domain.PayoutResult{Period: period}

	classes, err := s.classes.ListActive(ctx)
	if err != nil {
		return result, fmt.Errorf("list active classes: %w", err)
	}
	if len(classes) == 0 {
		return result, nil
	}

	concurrency := cfg.PayoutConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, concurrency)
		mu  sync.Mutex
	)
	for _, class := range classes {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(class classdomain.Class) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := s.computeClassPayout(ctx, class, period, cfg.PayoutRate)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case payoutComputed:
				result.Computed++
			case payoutSkipped:
				result.Skipped++
			case payoutFailed:
				result.Failed++
			}
		}(class)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if result.Computed > 0 {
		s.metrics.RecordPayoutsComputed(ctx, period, result.Computed)
	}
	s.log.Info("tutor payout run finished",
		zap.String("period", period),
		zap.Int("computed", result.Computed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	if result.Failed > 0 {
		return result, fmt.Errorf("payout run for %s: %d of %d classes failed", period, result.Failed, len(classes))
	}
	return result, nil
}

type payoutOutcome int

const (
	payoutComputed payoutOutcome = iota
	payoutSkipped
	payoutFailed
)

func (s *service) computeClassPayout(ctx context.Context, class classdomain.Class, period string, rate float64) payoutOutcome {
	paidCount, err := s.payouts.CountPaidStudentInvoices(ctx, class.ID, period)
	if err != nil {
		// One broken class must not sink the rest of the run.
		s.log.Warn("paid invoice count failed, skipping class for this run",
			zap.String("period", period),
			zap.Int64("class_id", class.ID.Int64()),
			zap.Error(err),
		)
		return payoutFailed
	}
	if paidCount == 0 {
		return payoutSkipped
	}

	payout := &domain.TutorInvoice{
		ID:            s.node.Generate(),
		TutorID:       class.TutorID,
		ClassID:       class.ID,
		PaymentPeriod: period,
		PaidCount:     paidCount,
		Amount:        PayoutAmount(paidCount, class.Fee, rate),
		Status:        domain.PayoutStatusPending,
	}
	if err := s.payouts.Upsert(ctx, payout); err != nil {
		s.log.Warn("payout upsert failed",
			zap.String("period", period),
			zap.Int64("class_id", class.ID.Int64()),
			zap.Int64("tutor_id", class.TutorID.Int64()),
			zap.Error(err),
		)
		return payoutFailed
	}
	return payoutComputed
}

// PayoutAmount is the tutor's share of the fees collected for one class in
// one period, rounded to the nearest whole currency unit.
func PayoutAmount(paidCount, fee int64, rate float64) int64 {
	return int64(math.Round(float64(paidCount) * float64(fee) * rate))
}

func (s *service) List(ctx context.Context, req domain.ListPayoutsRequest) (domain.ListPayoutsResponse, error) {
	query := &domain.TutorInvoice{}
	if req.Period != nil {
		query.PaymentPeriod = *req.Period
	}
	if req.TutorID != nil {
		query.TutorID = *req.TutorID
	}
	if req.Status != nil {
		query.Status = *req.Status
	}

	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	payouts, err := s.payouts.Find(ctx, query,
		option.WithSortBy(option.QuerySortBy{
			Allow:   map[string]bool{"created_at": true, "amount": true},
			Field:   "created_at",
			Descend: true,
		}),
		option.WithLimit(limit),
	)
	if err != nil {
		return domain.ListPayoutsResponse{}, err
	}
	return domain.ListPayoutsResponse{Payouts: payouts}, nil
}
