// Package metrics exposes billing instrumentation: OTLP counters for domain
// events and prometheus series for batch jobs and HTTP traffic.
package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	invoicesIssued  metric.Int64Counter
	payoutsComputed metric.Int64Counter
	emailsSent      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tutorbill"
	}
	meter := provider.Meter(name)

	invoicesIssued, err := meter.Int64Counter("tutorbill_invoices_issued_total")
	if err != nil {
		return nil, err
	}
	payoutsComputed, err := meter.Int64Counter("tutorbill_payouts_computed_total")
	if err != nil {
		return nil, err
	}
	emailsSent, err := meter.Int64Counter("tutorbill_emails_sent_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invoicesIssued:  invoicesIssued,
		payoutsComputed: payoutsComputed,
		emailsSent:      emailsSent,
	}, nil
}

// RecordInvoicesIssued adds to the issued-invoice count for a period.
func (m *Metrics) RecordInvoicesIssued(ctx context.Context, period string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.invoicesIssued.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("period", strings.TrimSpace(period)),
	))
}

// RecordPayoutsComputed adds to the computed-payout count for a period.
func (m *Metrics) RecordPayoutsComputed(ctx context.Context, period string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.payoutsComputed.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("period", strings.TrimSpace(period)),
	))
}

// RecordEmailSent increments notification email counts.
func (m *Metrics) RecordEmailSent(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.emailsSent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
	))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
