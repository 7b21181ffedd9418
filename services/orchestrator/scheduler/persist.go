package scheduler

import (
	"context"
	"sync"
	"time"

	"conference/services/orchestrator/logger"
	"conference/services/orchestrator/metrics"
	"conference/services/orchestrator/models"
	"conference/services/orchestrator/session"
)

const (
	persistAttempts = 3
	persistBackoff  = 500 * time.Millisecond
	persistTimeout  = 10 * time.Second
)

// persister writes conversation updates off the turn loop. Pending updates
// for the same conversation are merged so the newest value of each field
// wins.
type persister struct {
	store   session.Store
	log     *logger.Logger
	metrics *metrics.Metrics
	backoff time.Duration

	mu      sync.Mutex
	pending map[string]models.ConversationUpdate
	order   []string

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func newPersister(store session.Store, log *logger.Logger, m *metrics.Metrics) *persister {
	p := &persister{
		store:   store,
		log:     log,
		metrics: m,
		backoff: persistBackoff,
		pending: make(map[string]models.ConversationUpdate),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *persister) enqueue(id string, u models.ConversationUpdate) {
	p.mu.Lock()
	cur, ok := p.pending[id]
	if !ok {
		p.order = append(p.order, id)
	}
	p.pending[id] = merge(cur, u)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func merge(base, next models.ConversationUpdate) models.ConversationUpdate {
	if next.Messages != nil {
		base.Messages = next.Messages
	}
	if next.Status != nil {
		base.Status = next.Status
	}
	if next.Mode != nil {
		base.Mode = next.Mode
	}
	if next.LeftModel != nil {
		base.LeftModel = next.LeftModel
	}
	if next.RightModel != nil {
		base.RightModel = next.RightModel
	}
	return base
}

func (p *persister) next() (string, models.ConversationUpdate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.order) == 0 {
		return "", models.ConversationUpdate{}, false
	}
	id := p.order[0]
	p.order = p.order[1:]
	u := p.pending[id]
	delete(p.pending, id)
	return id, u, true
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.quit:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	for {
		id, u, ok := p.next()
		if !ok {
			return
		}
		p.write(id, u)
	}
}

func (p *persister) write(id string, u models.ConversationUpdate) {
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		start := time.Now()
		err := p.store.Update(ctx, id, u)
		cancel()

		p.metrics.RecordStoreOperation("update", time.Since(start), err)
		p.log.LogStoreOperation("update", id, time.Since(start), err)
		if err == nil || session.IsNotFound(err) || attempt >= persistAttempts {
			return
		}

		select {
		case <-time.After(p.backoff * time.Duration(attempt)):
		case <-p.quit:
		}

		// A newer update queued meanwhile takes precedence over this one.
		p.mu.Lock()
		if newer, ok := p.pending[id]; ok {
			p.pending[id] = merge(u, newer)
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}

// close flushes what is queued and stops the worker.
func (p *persister) close() {
	p.once.Do(func() { close(p.quit) })
	<-p.done
}
