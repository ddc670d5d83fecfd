package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	classdomain "github.com/tutorlane/tutorbill/internal/class/domain"
	classrepository "github.com/tutorlane/tutorbill/internal/class/repository"
	"github.com/tutorlane/tutorbill/internal/clock"
	"github.com/tutorlane/tutorbill/internal/config"
	enrollmentdomain "github.com/tutorlane/tutorbill/internal/enrollment/domain"
	enrollmentrepository "github.com/tutorlane/tutorbill/internal/enrollment/repository"
	invoicedomain "github.com/tutorlane/tutorbill/internal/invoice/domain"
	invoicerepository "github.com/tutorlane/tutorbill/internal/invoice/repository"
	invoiceservice "github.com/tutorlane/tutorbill/internal/invoice/service"
	"github.com/tutorlane/tutorbill/internal/providers/pdf"
	tutorinvoicedomain "github.com/tutorlane/tutorbill/internal/tutorinvoice/domain"
	tutorinvoicerepository "github.com/tutorlane/tutorbill/internal/tutorinvoice/repository"
	tutorinvoiceservice "github.com/tutorlane/tutorbill/internal/tutorinvoice/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	server *Server
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&classdomain.Class{},
		&classdomain.ClassSession{},
		&enrollmentdomain.Enrollment{},
		&invoicedomain.Invoice{},
		&tutorinvoicedomain.TutorInvoice{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC))
	billing := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())

	enrollments := enrollmentrepository.Provide(gdb)
	classes := classrepository.Provide(gdb)

	invoiceSvc := invoiceservice.NewService(invoiceservice.ServiceParam{
		Log:         zap.NewNop(),
		Node:        node,
		Clock:       fake,
		Billing:     billing,
		Invoices:    invoicerepository.Provide(gdb),
		Enrollments: enrollments,
		Classes:     classes,
	})
	payoutSvc := tutorinvoiceservice.NewService(tutorinvoiceservice.ServiceParam{
		Log:     zap.NewNop(),
		Node:    node,
		Billing: billing,
		Payouts: tutorinvoicerepository.Provide(gdb),
		Classes: classes,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:         engine,
		Cfg:         config.Config{},
		GenID:       node,
		Clock:       fake,
		InvoiceSvc:  invoiceSvc,
		PayoutSvc:   payoutSvc,
		Enrollments: enrollments,
		Classes:     classes,
		PDFSvc:      pdf.New(),
	})

	return &fixture{server: srv, db: gdb, node: node, clock: fake}
}

func (f *fixture) addClass(t *testing.T, fee int64) classdomain.Class {
	t.Helper()

	class := classdomain.Class{
		ID:      f.node.Generate(),
		TutorID: f.node.Generate(),
		Name:    "Geometry",
		Fee:     fee,
		Status:  classdomain.ClassStatusActive,
	}
	require.NoError(t, f.db.Create(&class).Error)
	require.NoError(t, f.db.Create(&classdomain.ClassSession{
		ID:       f.node.Generate(),
		ClassID:  class.ID,
		StartsAt: f.clock.Now().AddDate(0, 0, 2),
		EndsAt:   f.clock.Now().AddDate(0, 0, 2).Add(time.Hour),
	}).Error)
	return class
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

func TestCreateEnrollmentIssuesInvoice(t *testing.T) {
	f := newFixture(t)
	class := f.addClass(t, 5000)
	studentID := f.node.Generate()

	rec := f.do(t, http.MethodPost, "/enrollments", gin.H{
		"student_id": studentID.String(),
		"class_id":   class.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			Invoice invoicedomain.Invoice `json:"invoice"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-01", resp.Data.Invoice.InvoicePeriod)
	assert.Equal(t, int64(5000), resp.Data.Invoice.Amount)

	// Enrolling twice is idempotent: the same invoice comes back, nothing
	// new is issued.
	rec = f.do(t, http.MethodPost, "/enrollments", gin.H{
		"student_id": studentID.String(),
		"class_id":   class.ID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var again struct {
		Data struct {
			Invoice invoicedomain.Invoice `json:"invoice"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, resp.Data.Invoice.ID, again.Data.Invoice.ID)
}

func TestCreateEnrollmentUnknownClass(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/enrollments", gin.H{
		"student_id": f.node.Generate().String(),
		"class_id":   f.node.Generate().String(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentStatus(t *testing.T) {
	f := newFixture(t)
	class := f.addClass(t, 5000)
	studentID := f.node.Generate()

	rec := f.do(t, http.MethodPost, "/enrollments", gin.H{
		"student_id": studentID.String(),
		"class_id":   class.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	url := fmt.Sprintf("/students/%s/classes/%s/payment-status?date=2025-01-20", studentID, class.ID)
	rec = f.do(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paid":false`)

	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).
		Where("student_id = ?", studentID).
		Update("status", invoicedomain.InvoiceStatusPaid).Error)

	rec = f.do(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paid":true`)
	assert.Contains(t, rec.Body.String(), `"period":"2025-01"`)

	rec = f.do(t, http.MethodGet, "/students/nope/classes/1/payment-status", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminGenerateInvoicesAndPayouts(t *testing.T) {
	f := newFixture(t)
	class := f.addClass(t, 5000)

	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, "/enrollments", gin.H{
			"student_id": f.node.Generate().String(),
			"class_id":   class.ID.String(),
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	// The run is idempotent: the three invoices already exist.
	rec := f.do(t, http.MethodPost, "/admin/invoices/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"created":0`)
	assert.Contains(t, rec.Body.String(), `"skipped":3`)

	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).
		Where("class_id = ?", class.ID).
		Update("status", invoicedomain.InvoiceStatusPaid).Error)

	rec = f.do(t, http.MethodPost, "/admin/payouts/generate", gin.H{"at": "2025-02-05T03:00:00Z"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"computed":1`)

	rec = f.do(t, http.MethodGet, "/admin/payouts?period=2025-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Amount":12750`)
}

func TestGetInvoice(t *testing.T) {
	f := newFixture(t)
	class := f.addClass(t, 5000)
	studentID := f.node.Generate()

	rec := f.do(t, http.MethodPost, "/enrollments", gin.H{
		"student_id": studentID.String(),
		"class_id":   class.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			Invoice invoicedomain.Invoice `json:"invoice"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Data.Invoice.ID.String()

	rec = f.do(t, http.MethodGet, "/invoices/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/invoices/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/invoices/"+f.node.Generate().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/invoices?period=2025-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = f.do(t, http.MethodGet, "/invoices/"+id+"/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}
