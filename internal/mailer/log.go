package mailer

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// LogMailer writes messages to the log instead of sending them. It is the
// development fallback when no API key is configured.
type LogMailer struct {
	logger *logrus.Entry
	seq    atomic.Int64
}

func NewLogMailer(logger *logrus.Entry) *LogMailer {
	return &LogMailer{logger: logger.WithField("component", "log_mailer")}
}

func (m *LogMailer) Name() string {
	return "log"
}

func (m *LogMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := fmt.Sprintf("log-%d", m.seq.Add(1))
	m.logger.WithFields(logrus.Fields{
		"id":      id,
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("Email not sent (log mailer)")
	m.logger.Debug(msg.Text)
	return id, nil
}
