package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/infrastructure/storage"
	"EarningsTracker/internal/ledger"
	"EarningsTracker/internal/state"
)

var testNow = time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC)

type staticSource struct {
	records []domain.RawRecord
	err     error
	calls   atomic.Int32
	// barrier, when set, holds every Fetch until all racing runs arrive.
	barrier *sync.WaitGroup
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Fetch(context.Context) ([]domain.RawRecord, error) {
	s.calls.Add(1)
	if s.barrier != nil {
		s.barrier.Done()
		s.barrier.Wait()
	}
	return s.records, s.err
}

type panicSource struct{}

func (panicSource) Name() string { return "panic" }

func (panicSource) Fetch(context.Context) ([]domain.RawRecord, error) {
	panic("malformed payload")
}

type sentMail struct {
	recipients []string
	subject    string
	body       string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, recipients []string, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{recipients: recipients, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// codeRenderer renders the codes as a comma-separated body so tests can read them back.
type codeRenderer struct{}

func (codeRenderer) Instant(reports []domain.ScoredReport, _ time.Time) (string, string, error) {
	return "instant", codes(reports), nil
}

func (codeRenderer) Summary(day time.Time, reports []domain.ScoredReport) (string, string, error) {
	return "summary " + day.Format(domain.DateLayout), codes(reports), nil
}

func (codeRenderer) PlainText(reports []domain.ScoredReport) string {
	return codes(reports)
}

func codes(reports []domain.ScoredReport) string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.Report.Code
	}
	return strings.Join(out, ",")
}

// countingStore counts operations touching sent markers.
type countingStore struct {
	*storage.MemoryStore
	ledgerOps atomic.Int32
}

func (c *countingStore) touch(key string) {
	if strings.HasPrefix(key, ledger.KeyPrefix) {
		c.ledgerOps.Add(1)
	}
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.touch(key)
	return c.MemoryStore.Get(ctx, key)
}

func (c *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.touch(key)
	return c.MemoryStore.Set(ctx, key, value, ttl)
}

func (c *countingStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.touch(key)
	return c.MemoryStore.SetNX(ctx, key, value, ttl)
}

type failingScorer struct {
	fail map[string]bool
}

func (f failingScorer) Score(_ context.Context, r domain.Report) (string, error) {
	if f.fail[r.Code] {
		return "", errors.New("upstream 429")
	}
	return "score for " + r.Code, nil
}

// fixtureRecords holds three rows for two entities; A has two periods.
func fixtureRecords() []domain.RawRecord {
	return []domain.RawRecord{
		{SecurityCode: "A", SecurityName: "Alpha", NoticeDate: "2025-04-10 00:00:00", ReportDate: "2025-03-31 00:00:00", PredictType: "预增", ChangeLower: "10", ChangeUpper: "20"},
		{SecurityCode: "A", SecurityName: "Alpha", NoticeDate: "2025-07-10 00:00:00", ReportDate: "2025-06-30 00:00:00", PredictType: "预增", ChangeLower: "50", ChangeUpper: "80"},
		{SecurityCode: "B", SecurityName: "Beta", NoticeDate: "2025-07-12 00:00:00", ReportDate: "2025-06-30 00:00:00", PredictType: "扭亏", ChangeLower: "100", ChangeUpper: "150"},
	}
}

type harness struct {
	store       *countingStore
	source      *staticSource
	mailer      *recordingMailer
	ledger      *ledger.Ledger
	poll        *state.PollState
	today       *state.Accumulator
	history     *state.History
	subscribers *state.Subscribers
}

func newHarness(store *countingStore) *harness {
	if store == nil {
		store = &countingStore{MemoryStore: storage.NewMemoryStore()}
	}
	clock := func() time.Time { return testNow }
	return &harness{
		store:       store,
		source:      &staticSource{records: fixtureRecords()},
		mailer:      &recordingMailer{},
		ledger:      ledger.New(store, ledger.WithClock(clock)),
		poll:        state.NewPollState(store, 30*time.Minute, nil),
		today:       state.NewAccumulator(store, time.UTC, 0).WithClock(clock),
		history:     state.NewHistory(store, 10).WithClock(clock),
		subscribers: state.NewSubscribers(store, []string{"ops@example.com"}, nil),
	}
}

func (h *harness) coordinator(cfg CycleConfig, enricher *Enricher) *Coordinator {
	return NewCoordinator(CoordinatorDeps{
		Source:      h.source,
		Throttle:    h.poll,
		Ledger:      h.ledger,
		Today:       h.today,
		Subscribers: h.subscribers,
		Mailer:      h.mailer,
		Renderer:    codeRenderer{},
		History:     h.history,
		Enricher:    enricher,
		Clock:       func() time.Time { return testNow },
	}, cfg)
}
