package notify

import (
	"context"

	"go.uber.org/zap"

	"identity-service/internal/util"
)

// LogNotifier writes emails to the debug log instead of sending them. Meant
// for local development only.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (LogNotifier) Send(_ context.Context, to, subject, body string) error {
	util.Debug("Email not sent, log notifier in use",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}
