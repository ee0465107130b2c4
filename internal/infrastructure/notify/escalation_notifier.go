// Package notify is the human-approver notification path for the
// Escalation Queue: one SendGrid-backed email per newly queued decision.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Config holds the SendGrid sender identity and the governance reviewer
// alias that receives every escalation notice.
type Config struct {
	Enabled   bool
	APIKey    string
	FromEmail string
	FromName  string
	ToEmail   string
}

// EscalationNotifier sends the human-reviewer alert fired from
// escalation.Service.Enqueue. A disabled or unconfigured notifier is a
// deliberate no-op, since governance still functions without email.
type EscalationNotifier struct {
	logger *zap.Logger
	config Config
	client *sendgrid.Client
}

// NewEscalationNotifier returns a notifier wrapping a SendGrid send client.
// It returns a disabled notifier rather than an error when email is off or
// unconfigured, matching the teacher's fail-soft stance on optional
// delivery channels.
func NewEscalationNotifier(logger *zap.Logger, config Config) *EscalationNotifier {
	n := &EscalationNotifier{logger: logger, config: config}
	if !config.Enabled || strings.TrimSpace(config.APIKey) == "" || strings.TrimSpace(config.ToEmail) == "" {
		n.config.Enabled = false
		return n
	}
	n.client = sendgrid.NewSendClient(config.APIKey)
	return n
}

// NotifyEscalation emails the governance reviewer alias that a subject is
// now pending human decision. Failure to send never blocks the enqueue
// that triggered it; the caller logs and moves on.
func (n *EscalationNotifier) NotifyEscalation(ctx context.Context, subjectID, reason, regionCode string) error {
	if !n.config.Enabled {
		return nil
	}

	subject := fmt.Sprintf("Escalation pending review: %s", subjectID)
	textContent := fmt.Sprintf(
		"Subject %s requires human review.\n\nReason: %s\nRegion: %s\n",
		subjectID, reason, regionCode,
	)
	htmlContent := fmt.Sprintf(
		"<p>Subject <strong>%s</strong> requires human review.</p><p>Reason: %s<br/>Region: %s</p>",
		html.EscapeString(subjectID), html.EscapeString(reason), html.EscapeString(regionCode),
	)

	from := mail.NewEmail(n.config.FromName, n.config.FromEmail)
	to := mail.NewEmail("", n.config.ToEmail)
	message := mail.NewSingleEmail(from, subject, to, textContent, htmlContent)

	response, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		n.logger.Error("escalation notification send failed", zap.String("subject_id", subjectID), zap.Error(err))
		return err
	}
	if response.StatusCode >= 400 {
		n.logger.Error("escalation notification rejected",
			zap.String("subject_id", subjectID),
			zap.Int("status_code", response.StatusCode),
		)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	n.logger.Info("escalation notification sent", zap.String("subject_id", subjectID))
	return nil
}
