package mailer

import (
	"context"

	"github.com/google/uuid"
)

// Mailer defines the interface for transactional email delivery
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
	Name() string
}

// Message is a single outbound email
type Message struct {
	From           string
	To             []string
	ReplyTo        string
	Subject        string
	HTML           string
	Text           string
	IdempotencyKey string
}

// digestNamespace scopes idempotency keys generated for the daily digest.
var digestNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("portfolio-site/daily-digest"))

// IdempotencyKey derives a stable key for one digest send, so a retried
// request for the same day and recipient is deduplicated by the provider.
func IdempotencyKey(date, recipient string) string {
	return uuid.NewSHA1(digestNamespace, []byte(date+"|"+recipient)).String()
}
