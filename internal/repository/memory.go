package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"crowdfund/internal/model"
)

// MemoryRepository keeps campaigns in process. Each campaign has its own
// writer lock, so operations on different campaigns never wait on each
// other; only id allocation is shared and it is a single atomic add.
type MemoryRepository struct {
	topic string
	seq   atomic.Int64

	mu        sync.RWMutex
	campaigns map[int64]*memoryEntry

	outboxMu sync.Mutex
	outboxID int64
	events   []model.Event
	outbox   []*model.OutboxMessage
}

type memoryEntry struct {
	writer sync.Mutex // held for the whole of a Transaction

	state         sync.RWMutex // guards the committed fields below
	campaign      model.Campaign
	contributions map[string]*model.Contribution
	order         []string
}

func NewMemoryRepository(topic string) *MemoryRepository {
	return &MemoryRepository{
		topic:     topic,
		campaigns: make(map[int64]*memoryEntry),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, c *model.Campaign, at time.Time) error {
	c.ID = r.seq.Add(1)
	c.CreatedAt = at
	c.UpdatedAt = at

	e := &memoryEntry{
		campaign:      *c,
		contributions: make(map[string]*model.Contribution),
	}

	// CampaignCreated is published before the id becomes reachable so it
	// always precedes the campaign's other events.
	events := []model.Event{model.CampaignCreated(c, at)}
	msgs, err := r.messages(events)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.appendEvents(events, msgs)
	r.campaigns[c.ID] = e
	return nil
}

func (r *MemoryRepository) entry(id int64) (*memoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.campaigns[id]
	if !ok {
		return nil, model.ErrCampaignNotFound.For(id)
	}
	return e, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}

	e.state.RLock()
	defer e.state.RUnlock()

	c := e.campaign
	return &c, nil
}

func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.campaigns)), nil
}

func (r *MemoryRepository) List(ctx context.Context, offset, limit int) ([]*model.Campaign, error) {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.campaigns))
	for id := range r.campaigns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	if offset >= len(ids) {
		return []*model.Campaign{}, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	campaigns := make([]*model.Campaign, 0, end-offset)
	for _, id := range ids[offset:end] {
		c, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, nil
}

func (r *MemoryRepository) Contribution(ctx context.Context, id int64, contributor string) (int64, error) {
	e, err := r.entry(id)
	if err != nil {
		return 0, err
	}

	e.state.RLock()
	defer e.state.RUnlock()

	if rec, ok := e.contributions[contributor]; ok {
		return rec.Amount, nil
	}
	return 0, nil
}

func (r *MemoryRepository) Contributions(ctx context.Context, id int64) ([]*model.Contribution, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}

	e.state.RLock()
	defer e.state.RUnlock()

	list := make([]*model.Contribution, 0, len(e.order))
	for _, contributor := range e.order {
		rec := *e.contributions[contributor]
		list = append(list, &rec)
	}
	return list, nil
}

func (r *MemoryRepository) OpenSettlements(ctx context.Context, startedBefore int64, limit int) ([]*model.Campaign, error) {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.campaigns))
	for id := range r.campaigns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var campaigns []*model.Campaign
	for _, id := range ids {
		c, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if c.Settlement.Open() && c.Settlement.StartedAt <= startedBefore {
			campaigns = append(campaigns, c)
			if len(campaigns) == limit {
				break
			}
		}
	}
	return campaigns, nil
}

// Transaction holds the campaign's writer lock while fn runs. Operations
// never call out while holding it, so the wait is bounded by another
// operation's in-memory work.
func (r *MemoryRepository) Transaction(ctx context.Context, id int64, fn func(ctx context.Context, tx Tx) error) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}

	e.writer.Lock()
	defer e.writer.Unlock()

	e.state.RLock()
	tx := &memoryTx{
		entry:    e,
		campaign: e.campaign,
		writes:   make(map[string]int64),
	}
	e.state.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	return r.commit(tx)
}

// commit makes the staged state and its events visible together: a reader
// that sees the new state finds its events already in the outbox.
func (r *MemoryRepository) commit(tx *memoryTx) error {
	msgs, err := r.messages(tx.events)
	if err != nil {
		return err
	}

	e := tx.entry
	now := time.Now()

	e.state.Lock()
	defer e.state.Unlock()

	if tx.dirty {
		tx.campaign.UpdatedAt = now
		e.campaign = tx.campaign
	}
	for contributor, amount := range tx.writes {
		rec, ok := e.contributions[contributor]
		if !ok {
			rec = &model.Contribution{CampaignID: e.campaign.ID, Contributor: contributor, CreatedAt: now}
			e.contributions[contributor] = rec
			e.order = append(e.order, contributor)
		}
		rec.Amount = amount
		rec.UpdatedAt = now
	}
	r.appendEvents(tx.events, msgs)
	return nil
}

func (r *MemoryRepository) messages(events []model.Event) ([]*model.OutboxMessage, error) {
	msgs := make([]*model.OutboxMessage, 0, len(events))
	for _, ev := range events {
		msg, err := ev.OutboxMessage(r.topic)
		if err != nil {
			return nil, err
		}
		msg.CreatedAt = ev.OccurredAt
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// appendEvents takes outboxMu. Callers may hold a campaign's state lock or r.mu,
// never the other way round.
func (r *MemoryRepository) appendEvents(events []model.Event, msgs []*model.OutboxMessage) {
	if len(events) == 0 {
		return
	}

	r.outboxMu.Lock()
	defer r.outboxMu.Unlock()

	r.events = append(r.events, events...)
	for _, msg := range msgs {
		r.outboxID++
		msg.ID = r.outboxID
		r.outbox = append(r.outbox, msg)
	}
}

// Events returns every committed event in commit order.
func (r *MemoryRepository) Events() []model.Event {
	r.outboxMu.Lock()
	defer r.outboxMu.Unlock()

	events := make([]model.Event, len(r.events))
	copy(events, r.events)
	return events
}

type memoryTx struct {
	entry    *memoryEntry
	campaign model.Campaign
	dirty    bool
	writes   map[string]int64
	events   []model.Event
}

func (tx *memoryTx) Campaign() *model.Campaign {
	return &tx.campaign
}

func (tx *memoryTx) Contribution(contributor string) (int64, error) {
	if amount, ok := tx.writes[contributor]; ok {
		return amount, nil
	}

	tx.entry.state.RLock()
	defer tx.entry.state.RUnlock()

	if rec, ok := tx.entry.contributions[contributor]; ok {
		return rec.Amount, nil
	}
	return 0, nil
}

func (tx *memoryTx) SetContribution(contributor string, amount int64) error {
	tx.writes[contributor] = amount
	return nil
}

func (tx *memoryTx) SaveCampaign() error {
	tx.dirty = true
	return nil
}

func (tx *memoryTx) Emit(e model.Event) error {
	tx.events = append(tx.events, e)
	return nil
}

// ============================================================================
// OutboxStore
// ============================================================================

func (r *MemoryRepository) messagesWithStatus(status string, limit int) []*model.OutboxMessage {
	r.outboxMu.Lock()
	defer r.outboxMu.Unlock()

	var msgs []*model.OutboxMessage
	for _, msg := range r.outbox {
		if msg.Status != status {
			continue
		}
		cp := *msg
		msgs = append(msgs, &cp)
		if len(msgs) == limit {
			break
		}
	}
	return msgs
}

func (r *MemoryRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	return r.messagesWithStatus(model.OutboxStatusPending, limit), nil
}

func (r *MemoryRepository) GetFailedMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	return r.messagesWithStatus(model.OutboxStatusFailed, limit), nil
}

func (r *MemoryRepository) updateMessage(id int64, fn func(msg *model.OutboxMessage)) {
	r.outboxMu.Lock()
	defer r.outboxMu.Unlock()

	for _, msg := range r.outbox {
		if msg.ID == id {
			fn(msg)
			msg.UpdatedAt = time.Now()
			return
		}
	}
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	r.updateMessage(id, func(msg *model.OutboxMessage) { msg.Status = status })
	return nil
}

func (r *MemoryRepository) IncrementRetryCount(ctx context.Context, id int64) error {
	r.updateMessage(id, func(msg *model.OutboxMessage) { msg.RetryCount++ })
	return nil
}

func (r *MemoryRepository) MarkAsFailed(ctx context.Context, id int64) error {
	r.updateMessage(id, func(msg *model.OutboxMessage) {
		msg.Status = model.OutboxStatusFailed
		msg.RetryCount++
	})
	return nil
}

func (r *MemoryRepository) Requeue(ctx context.Context, id int64) error {
	r.updateMessage(id, func(msg *model.OutboxMessage) {
		if msg.Status == model.OutboxStatusFailed {
			msg.Status = model.OutboxStatusPending
			msg.RetryCount = 0
		}
	})
	return nil
}
