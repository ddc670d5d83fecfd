package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(10,
		text.NewCol(12, "Tuition Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Billing period: "+data.Period, props.Text{Top: 4}),
			text.New("Date of issue: "+data.IssueDate, props.Text{Top: 8}),
			text.New("Date due: "+data.DueDate, props.Text{Top: 12}),
			text.New("Status: "+data.Status, props.Text{Top: 16}),
		),
		col.New(6),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New("Billed to", props.Text{Style: fontstyle.Bold}),
			text.New("Student "+data.StudentRef, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("For", props.Text{Style: fontstyle.Bold}),
			text.New(data.ClassName, props.Text{Top: 5}),
			text.New("Tutor "+data.TutorRef, props.Text{Top: 9}),
		),
	)

	m.AddRow(10,
		text.NewCol(8, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(12,
		text.NewCol(8, "Monthly tuition, "+data.ClassName+" ("+data.Period+")", props.Text{Size: 9}),
		text.NewCol(4, data.Amount, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(12,
		col.New(8),
		text.NewCol(2, "Amount due", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.Amount, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
