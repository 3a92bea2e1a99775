package ports

import (
	"context"
	"time"

	"EarningsTracker/internal/domain"
)

// ReportSource pulls raw earnings-forecast rows from an upstream provider.
type ReportSource interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.RawRecord, error)
}

// KeyValueStore is the durable state backend shared by the ledger, throttle, accumulator and history.
// Get reports found=false for missing or expired keys. A zero ttl means no expiry.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX writes only when the key is absent and reports whether this call wrote it.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	// Keys lists live keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Mailer delivers one HTML email to all recipients.
type Mailer interface {
	Send(ctx context.Context, recipients []string, subject, bodyHTML string) error
}

// SubscriberStore manages notification recipients. Protected addresses survive Remove and Clear.
type SubscriberStore interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, email string) (bool, error)
	Remove(ctx context.Context, email string) (bool, error)
	Clear(ctx context.Context) error
}

// Scorer produces a short commentary/score for a single report.
type Scorer interface {
	Score(ctx context.Context, report domain.Report) (string, error)
}

// Notifier mirrors a plain-text digest to a secondary channel (Telegram, etc.).
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when jobs execute.
type Scheduler interface {
	Schedule(spec string, job func(time.Time)) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DigestRenderer turns scored reports into notification content.
type DigestRenderer interface {
	Instant(reports []domain.ScoredReport, at time.Time) (subject, bodyHTML string, err error)
	Summary(day time.Time, reports []domain.ScoredReport) (subject, bodyHTML string, err error)
	PlainText(reports []domain.ScoredReport) string
}

// Metrics records cycle outcomes.
type Metrics interface {
	ObserveCycle(kind string, outcome domain.Outcome, elapsed time.Duration)
	AddNotified(n int)
	FetchFailed(source string)
}
