package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/notify")

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	Recipients   []string `json:"recipients"`
}

func (c SmtpConfig) Enabled() bool {
	return c.Server != "" && len(c.Recipients) > 0
}

// Failure is one failed report category.
type Failure struct {
	Report   string
	Category string
	Year     string
	Stage    string
	Err      error
}

type Mailer struct {
	config SmtpConfig
}

func NewMailer(config SmtpConfig) Mailer {
	return Mailer{config: config}
}

func Body(runID string, failures []Failure) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The collection run %s finished with %d failed categories.\n\n", runID, len(failures))
	for _, f := range failures {
		fmt.Fprintf(&sb, "- %s / %s %s (%s): %v\n", f.Report, f.Category, f.Year, f.Stage, f.Err)
	}
	return sb.String()
}

// SendFailures sends one summary mail listing every failure. Nothing is
// sent when there are no failures or no recipients.
func (m Mailer) SendFailures(ctx context.Context, runID string, failures []Failure) error {
	if len(failures) == 0 || !m.config.Enabled() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "SendFailures")
	defer span.End()
	span.SetAttributes(attribute.Int("failures", len(failures)))

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("palmstat <%s>", m.config.EmailAddress)
	mail.To = m.config.Recipients
	mail.Subject = fmt.Sprintf("palmstat: %d categories failed", len(failures))
	mail.Text = []byte(Body(runID, failures))

	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
