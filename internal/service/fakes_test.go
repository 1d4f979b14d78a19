package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/commerce-support/internal/domain"
	"github.com/spec-kit/commerce-support/internal/events"
	"github.com/spec-kit/commerce-support/internal/repository"
)

// In-memory doubles for the persistence and eventing ports. They mimic
// the pgx-backed repositories closely enough for service tests: ids and
// timestamps are filled on insert and pgx.ErrNoRows marks absence.

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	now     func() time.Time
}

func newFakeTicketRepo(now func() time.Time) *fakeTicketRepo {
	if now == nil {
		now = time.Now
	}
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket), now: now}
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	clone.Messages = append([]domain.TicketMessage(nil), t.Messages...)
	if t.AssignedStaffID != nil {
		id := *t.AssignedStaffID
		clone.AssignedStaffID = &id
	}
	if t.ClosedAt != nil {
		ts := *t.ClosedAt
		clone.ClosedAt = &ts
	}
	return &clone
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	for i := range ticket.Messages {
		if ticket.Messages[i].ID == "" {
			ticket.Messages[i].ID = uuid.NewString()
			ticket.Messages[i].CreatedAt = now
		}
	}
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	now := r.now()
	ticket.UpdatedAt = now
	for i := range ticket.Messages {
		if ticket.Messages[i].ID == "" {
			ticket.Messages[i].ID = uuid.NewString()
			ticket.Messages[i].CreatedAt = now
		}
	}
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (r *fakeTicketRepo) GetByOrderID(_ context.Context, orderID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.OrderID == orderID {
			return cloneTicket(ticket), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.UserID != nil && ticket.UserID != *filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		out = append(out, *cloneTicket(ticket))
	}
	return out, nil
}

func (r *fakeTicketRepo) ListOpenOlderThan(_ context.Context, cutoff time.Time) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Status == domain.TicketStatusOpen && ticket.CreatedAt.Before(cutoff) {
			out = append(out, *cloneTicket(ticket))
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) Analytics(_ context.Context) (*repository.TicketAnalytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &repository.TicketAnalytics{
		StatusCounts:   make(map[domain.TicketStatus]int64),
		PriorityCounts: make(map[domain.TicketPriority]int64),
	}
	for _, ticket := range r.tickets {
		stats.StatusCounts[ticket.Status]++
		stats.PriorityCounts[ticket.Priority]++
	}
	return stats, nil
}

func containsStatus(statuses []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, status := range statuses {
		if status == s {
			return true
		}
	}
	return false
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*domain.Order)}
}

func (r *fakeOrderRepo) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	clone := *order
	r.orders[order.ID] = &clone
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *order
	return &clone, nil
}

func (r *fakeOrderRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users []*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	return &fakeUserRepo{users: users}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	clone := *user
	r.users = append(r.users, &clone)
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.ID == id {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListAdminIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, user := range r.users {
		if user.IsAdmin && user.Active {
			ids = append(ids, user.ID)
		}
	}
	return ids, nil
}

func (r *fakeUserRepo) FirstActiveWithSupportRole(_ context.Context, role string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Active && user.SupportRole != nil && *user.SupportRole == role {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// scriptedLimiter counts attempts per key with a fixed quota, ignoring
// the window. Set failWith to exercise the fail-open path.
type scriptedLimiter struct {
	mu       sync.Mutex
	quota    int
	counts   map[string]int
	failWith error
}

func newScriptedLimiter(quota int) *scriptedLimiter {
	return &scriptedLimiter{quota: quota, counts: make(map[string]int)}
}

func (l *scriptedLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return false, l.failWith
	}
	quota := l.quota
	if quota <= 0 {
		quota = limit
	}
	l.counts[key]++
	return l.counts[key] <= quota, nil
}

// captureBus records published events in order.
type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Publish(_ context.Context, event events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *captureBus) Subscribe(events.EventType, events.EventHandler) {}

func (b *captureBus) typesSeen() []events.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]events.EventType, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.Type)
	}
	return types
}
