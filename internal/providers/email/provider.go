package email

import "context"

// RunSummary is the digest mailed to operations after a batch run.
type RunSummary struct {
	Job        string
	Period     string
	Created    int
	Skipped    int
	Failed     int
	FinishedAt string
}

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendRunSummary(ctx context.Context, to []string, summary RunSummary) error
}

// NoOpProvider stands in when SMTP is not configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (p *NoOpProvider) SendRunSummary(ctx context.Context, to []string, summary RunSummary) error {
	return nil
}
