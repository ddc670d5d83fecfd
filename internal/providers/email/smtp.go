package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Templates are compiled in rather than read from disk so the scheduler
// binary can run from any working directory.
var runSummaryTmpl = template.Must(template.New("run_summary").Parse(`
<h2>{{.Job}} run for {{.Period}}</h2>
<table>
  <tr><td>Created</td><td>{{.Created}}</td></tr>
  <tr><td>Skipped</td><td>{{.Skipped}}</td></tr>
  <tr><td>Failed</td><td>{{.Failed}}</td></tr>
  <tr><td>Finished at</td><td>{{.FinishedAt}}</td></tr>
</table>
`))

type SMTPProvider struct {
	cfg Config
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n%s\r\n%s", to[0], subject, mime, htmlBody))

	return smtp.SendMail(addr, auth, p.cfg.From, to, msg)
}

func (p *SMTPProvider) SendRunSummary(ctx context.Context, to []string, summary RunSummary) error {
	var body bytes.Buffer
	if err := runSummaryTmpl.Execute(&body, summary); err != nil {
		return fmt.Errorf("render run summary: %w", err)
	}

	subject := fmt.Sprintf("[tutorbill] %s run for %s", summary.Job, summary.Period)
	return p.Send(ctx, to, subject, body.String())
}
