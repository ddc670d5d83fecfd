// Package server exposes the billing HTTP API: admin batch triggers,
// invoice lookup and the payment-status check consumed by class access
// control.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	classdomain "github.com/tutorlane/tutorbill/internal/class/domain"
	"github.com/tutorlane/tutorbill/internal/clock"
	"github.com/tutorlane/tutorbill/internal/config"
	enrollmentdomain "github.com/tutorlane/tutorbill/internal/enrollment/domain"
	invoicedomain "github.com/tutorlane/tutorbill/internal/invoice/domain"
	"github.com/tutorlane/tutorbill/internal/observability"
	obsmiddleware "github.com/tutorlane/tutorbill/internal/observability/logger"
	obsmetrics "github.com/tutorlane/tutorbill/internal/observability/metrics"
	obstracing "github.com/tutorlane/tutorbill/internal/observability/tracing"
	"github.com/tutorlane/tutorbill/internal/providers/pdf"
	tutorinvoicedomain "github.com/tutorlane/tutorbill/internal/tutorinvoice/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	genID       *snowflake.Node
	clock       clock.Clock
	invoiceSvc  invoicedomain.Service
	payoutSvc   tutorinvoicedomain.Service
	enrollments enrollmentdomain.Repository
	classes     classdomain.Repository
	pdfSvc      pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	GenID       *snowflake.Node
	Clock       clock.Clock
	InvoiceSvc  invoicedomain.Service
	PayoutSvc   tutorinvoicedomain.Service
	Enrollments enrollmentdomain.Repository
	Classes     classdomain.Repository
	PDFSvc      pdf.Provider `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		genID:       p.GenID,
		clock:       p.Clock,
		invoiceSvc:  p.InvoiceSvc,
		payoutSvc:   p.PayoutSvc,
		enrollments: p.Enrollments,
		classes:     p.Classes,
		pdfSvc:      p.PDFSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	s.engine.POST("/enrollments", s.CreateEnrollment)

	invoices := s.engine.Group("/invoices")
	invoices.GET("", s.ListInvoices)
	invoices.GET("/:id", s.GetInvoiceByID)
	invoices.GET("/:id/pdf", s.GetInvoicePDF)

	s.engine.GET("/students/:id/classes/:class_id/payment-status", s.GetPaymentStatus)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.POST("/invoices/generate", s.GenerateInvoices)
	admin.POST("/payouts/generate", s.GeneratePayouts)
	admin.GET("/payouts", s.ListPayouts)
}
