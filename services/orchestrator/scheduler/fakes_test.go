package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"conference/services/orchestrator/llm"
	"conference/services/orchestrator/models"
	"conference/services/orchestrator/session"
)

// fakeClock fires tickers and timers only when advanced.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	timers  []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{clock: c, c: make(chan time.Time, 1), period: d, next: c.now.Add(d)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, c: make(chan time.Time, 1), at: c.now.Add(d)}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward, firing everything that falls due in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.now.Add(d)
	for {
		var (
			due    time.Time
			ticker *fakeTicker
			timer  *fakeTimer
		)
		for _, t := range c.tickers {
			if !t.stopped && !t.next.After(target) && (due.IsZero() || t.next.Before(due)) {
				due, ticker, timer = t.next, t, nil
			}
		}
		for _, t := range c.timers {
			if !t.stopped && !t.at.After(target) && (due.IsZero() || t.at.Before(due)) {
				due, ticker, timer = t.at, nil, t
			}
		}
		if due.IsZero() {
			break
		}
		c.now = due
		if ticker != nil {
			send(ticker.c, due)
			ticker.next = ticker.next.Add(ticker.period)
		} else {
			send(timer.c, due)
			timer.stopped = true
		}
	}
	c.now = target
}

func send(c chan time.Time, t time.Time) {
	select {
	case c <- t:
	default:
	}
}

type fakeTicker struct {
	clock   *fakeClock
	c       chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Reset(d time.Duration) {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.period = d
	t.next = t.clock.now.Add(d)
	t.stopped = false
}

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

type fakeTimer struct {
	clock   *fakeClock
	c       chan time.Time
	at      time.Time
	stopped bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeLLM answers turns through reply; it records every prompt.
type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	reply   func(ctx context.Context, n int, prompt string) (string, error)
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{reply: func(_ context.Context, n int, _ string) (string, error) {
		return fmt.Sprintf("reply %d", n), nil
	}}
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	n := len(f.prompts)
	reply := f.reply
	f.mu.Unlock()
	return reply(ctx, n, prompt)
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, prompt string, schema llm.Schema, out any) error {
	return fmt.Errorf("not supported")
}

func (f *fakeLLM) setReply(fn func(ctx context.Context, n int, prompt string) (string, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = fn
}

func (f *fakeLLM) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// memStore keeps conversations in memory.
type memStore struct {
	mu      sync.Mutex
	convs   map[string]*models.Conversation
	seq     int
	updates int
	failN   int
}

func newMemStore() *memStore {
	return &memStore{convs: make(map[string]*models.Conversation)}
}

func (m *memStore) Create(ctx context.Context, conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	conv.ID = fmt.Sprintf("conv-%d", m.seq)
	cp := *conv
	m.convs[conv.ID] = &cp
	return nil
}

func (m *memStore) Update(ctx context.Context, id string, u models.ConversationUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failN > 0 {
		m.failN--
		return fmt.Errorf("store unavailable")
	}
	c, ok := m.convs[id]
	if !ok {
		return &session.NotFoundError{ID: id}
	}
	c.Apply(u, time.Now())
	m.updates++
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, &session.NotFoundError{ID: id}
	}
	cp := *c
	cp.Messages = append([]models.Message(nil), c.Messages...)
	return &cp, nil
}

func (m *memStore) List(ctx context.Context, limit int) ([]*models.Conversation, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.convs))
	for id := range m.convs {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	var out []*models.Conversation
	for _, id := range ids {
		c, _ := m.Get(ctx, id)
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) get(t *testing.T, id string) *models.Conversation {
	t.Helper()
	c, err := m.Get(context.Background(), id)
	require.NoError(t, err)
	return c
}

// recorder collects room events for assertions.
type recorder struct {
	t  *testing.T
	ch <-chan models.Event
}

const waitFor = 2 * time.Second

// next waits for the next event of type typ, skipping others.
func (r *recorder) next(typ models.EventType) models.Event {
	r.t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case ev, ok := <-r.ch:
			if !ok {
				r.t.Fatalf("event stream closed waiting for %s", typ)
			}
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			r.t.Fatalf("timed out waiting for %s event", typ)
		}
	}
}

// message waits for the next message event and returns its message.
func (r *recorder) message() models.Message {
	r.t.Helper()
	return *r.next(models.EventMessage).Message
}

// quiet asserts no event of type typ arrives for a short while.
func (r *recorder) quiet(typ models.EventType) {
	r.t.Helper()
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case ev := <-r.ch:
			if ev.Type == typ {
				r.t.Fatalf("unexpected %s event: %+v", typ, ev)
			}
		case <-deadline:
			return
		}
	}
}

type harness struct {
	s     *Scheduler
	clock *fakeClock
	llm   *fakeLLM
	store *memStore
	ev    *recorder
}

func newHarness(t *testing.T, cfg Config, opts ...func(*Deps)) *harness {
	t.Helper()
	if cfg.RoomID == "" {
		cfg.RoomID = "room-1"
	}
	h := &harness{clock: newFakeClock(), llm: newFakeLLM(), store: newMemStore()}
	deps := Deps{LLM: h.llm, Store: h.store, Clock: h.clock}
	for _, opt := range opts {
		opt(&deps)
	}
	s, err := New(cfg, deps)
	require.NoError(t, err)
	h.s = s

	ch, cancel := s.Subscribe()
	h.ev = &recorder{t: t, ch: ch}
	t.Cleanup(func() {
		cancel()
		s.Close()
	})
	return h
}

func (h *harness) snapshot(t *testing.T) models.Snapshot {
	t.Helper()
	snap, err := h.s.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

func speakers(msgs []models.Message) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = string(m.Speaker)
	}
	return strings.Join(parts, ",")
}
