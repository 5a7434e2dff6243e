package mail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubOutbox struct {
	mu        sync.Mutex
	messages  map[string]Message
	status    map[string]string
	attempts  map[string]int
	lastError map[string]string
}

func newStubOutbox(ids ...string) *stubOutbox {
	s := &stubOutbox{
		messages:  make(map[string]Message),
		status:    make(map[string]string),
		attempts:  make(map[string]int),
		lastError: make(map[string]string),
	}
	for _, id := range ids {
		s.messages[id] = Message{ID: id, Recipient: "student@plm.edu.ph", Subject: "Gate Pass"}
		s.status[id] = "queued"
	}
	return s
}

func (s *stubOutbox) GetQueued(_ context.Context, id string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status[id] != "queued" {
		return nil, errors.New("not queued")
	}
	msg := s.messages[id]
	return &msg, nil
}

func (s *stubOutbox) ListQueued(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, st := range s.status {
		if st == "queued" && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *stubOutbox) CountQueued(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.status {
		if st == "queued" {
			n++
		}
	}
	return n, nil
}

func (s *stubOutbox) MarkSent(_ context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = "sent"
	return nil
}

func (s *stubOutbox) MarkFailed(_ context.Context, id string, attempts int, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[id] = attempts
	s.lastError[id] = lastErr
	return nil
}

func (s *stubOutbox) MarkAbandoned(_ context.Context, id string, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = "failed"
	s.lastError[id] = lastErr
	return nil
}

func (s *stubOutbox) statusOf(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[id]
}

type stubMailer struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (m *stubMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg.ID)
	return nil
}

type blockingMailer struct{}

func (blockingMailer) Send(ctx context.Context, _ Message) error {
	<-ctx.Done()
	return ctx.Err()
}

type resultRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *resultRecorder) record(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *resultRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.results...)
}

func TestDispatcherMarksSentOnDelivery(t *testing.T) {
	store := newStubOutbox("mail-1")
	mailer := &stubMailer{}
	rec := &resultRecorder{}

	d := NewDispatcher(store, mailer, DispatcherConfig{OnResult: rec.record})
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Enqueue("mail-1"))

	require.Eventually(t, func() bool {
		return store.statusOf("mail-1") == "sent"
	}, 2*time.Second, 10*time.Millisecond)
	require.Contains(t, rec.snapshot(), "sent")
}

func TestDispatcherAbandonsAfterExhaustedRetries(t *testing.T) {
	store := newStubOutbox("mail-1")
	mailer := &stubMailer{err: errors.New("smtp refused")}
	rec := &resultRecorder{}

	d := NewDispatcher(store, mailer, DispatcherConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnResult:   rec.record,
	})
	d.Start(context.Background())
	defer d.Stop()

	// The startup sweep picks the row up; no explicit enqueue so the
	// attempt count follows a single delivery lineage.
	require.Eventually(t, func() bool {
		return store.statusOf("mail-1") == "failed"
	}, 2*time.Second, 10*time.Millisecond)

	// The abandoned row must drop out of the recovery sweep.
	leftover, err := store.ListQueued(context.Background(), 100)
	require.NoError(t, err)
	require.NotContains(t, leftover, "mail-1")

	require.Equal(t, []string{"retried", "failed"}, rec.snapshot())
}

func TestDispatcherRecoversLeftoverQueued(t *testing.T) {
	store := newStubOutbox("mail-1", "mail-2")
	mailer := &stubMailer{}

	d := NewDispatcher(store, mailer, DispatcherConfig{})
	d.Start(context.Background())
	defer d.Stop()

	require.Eventually(t, func() bool {
		return store.statusOf("mail-1") == "sent" && store.statusOf("mail-2") == "sent"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcherReportsBacklog(t *testing.T) {
	store := newStubOutbox("mail-1", "mail-2")
	counts := make(chan int, 8)

	d := NewDispatcher(store, blockingMailer{}, DispatcherConfig{
		BacklogInterval: 10 * time.Millisecond,
		OnBacklog: func(n int) {
			select {
			case counts <- n:
			default:
			}
		},
	})
	d.Start(context.Background())
	defer d.Stop()

	select {
	case n := <-counts:
		require.Equal(t, 2, n)
	case <-time.After(2 * time.Second):
		t.Fatal("backlog count never reported")
	}
}
