// ABOUTME: Outbound email seam for verification links
// ABOUTME: The default implementation logs the link instead of delivering it

package gateway

import (
	"context"
	"log/slog"
)

// Mailer delivers account emails.
type Mailer interface {
	SendVerification(ctx context.Context, to, link string) error
}

// LogMailer writes verification links to the log. Suitable for development
// and for deployments that deliver mail out of band.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendVerification logs the link.
func (m *LogMailer) SendVerification(_ context.Context, to, link string) error {
	m.logger.Info("verification email", "to", to, "link", link)
	return nil
}
