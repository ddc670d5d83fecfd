package pdf

import (
	"context"
	"io"
)

// InvoiceData is the render model for a student invoice document. Amounts
// arrive pre-formatted; layout code never touches money arithmetic.
type InvoiceData struct {
	InvoiceNumber string
	Period        string
	IssueDate     string
	DueDate       string
	Status        string

	StudentRef string
	ClassName  string
	TutorRef   string

	Amount string
}

type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error) {
	return nil, nil
}
