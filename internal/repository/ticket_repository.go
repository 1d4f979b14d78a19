package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/commerce-support/internal/domain"
)

// TicketFilter captures admin search parameters.
type TicketFilter struct {
	UserID          *string
	AssignedStaffID *string
	Statuses        []domain.TicketStatus
	Priorities      []domain.TicketPriority
	SearchTerm      *string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// MonthlyCount is one month of created tickets.
type MonthlyCount struct {
	Month time.Time
	Count int64
}

// TicketAnalytics aggregates ticket distribution and resolution stats.
type TicketAnalytics struct {
	StatusCounts         map[domain.TicketStatus]int64
	PriorityCounts       map[domain.TicketPriority]int64
	AvgResolutionSeconds float64
	MonthlyCreated       []MonthlyCount
}

// TicketRepository encapsulates ticket aggregate persistence. GetByID
// and GetByOrderID load the full aggregate including messages; list
// queries return bare tickets.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListOpenOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error)
	Analytics(ctx context.Context) (*TicketAnalytics, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, order_id, user_id, subject, status, priority, assigned_staff_id, created_at, updated_at, closed_at`

// Create inserts the ticket row plus any initial messages in one
// transaction.
func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO tickets (order_id, user_id, subject, status, priority, assigned_staff_id, closed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, query,
		ticket.OrderID,
		ticket.UserID,
		ticket.Subject,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedStaffID,
		ticket.ClosedAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	for i := range ticket.Messages {
		ticket.Messages[i].TicketID = ticket.ID
		if err := insertMessage(ctx, tx, &ticket.Messages[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Update persists ticket fields and inserts any messages that have no
// ID yet. Last write wins; there is no version check on the row.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        UPDATE tickets SET subject=$1, status=$2, priority=$3, assigned_staff_id=$4, closed_at=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := tx.Exec(ctx, query,
		ticket.Subject,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedStaffID,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	for i := range ticket.Messages {
		if ticket.Messages[i].ID != "" {
			continue
		}
		ticket.Messages[i].TicketID = ticket.ID
		if err := insertMessage(ctx, tx, &ticket.Messages[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertMessage(ctx context.Context, tx pgx.Tx, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sender_id, content, is_admin_reply, is_system)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return tx.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.Content,
		msg.IsAdminReply,
		msg.IsSystem,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchAggregate(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Ticket, error) {
	return r.fetchAggregate(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE order_id=$1`, orderID)
}

func (r *ticketRepository) fetchAggregate(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.OrderID,
		&ticket.UserID,
		&ticket.Subject,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssignedStaffID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}

	const msgQuery = `
        SELECT id, ticket_id, sender_id, content, is_admin_reply, is_system, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, msgQuery, ticket.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderID,
			&msg.Content,
			&msg.IsAdminReply,
			&msg.IsSystem,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		ticket.Messages = append(ticket.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.AssignedStaffID != nil {
		args = append(args, *filter.AssignedStaffID)
		clauses = append(clauses, fmt.Sprintf("assigned_staff_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(subject) LIKE %s OR EXISTS (SELECT 1 FROM ticket_messages m WHERE m.ticket_id=tickets.id AND LOWER(m.content) LIKE %s))",
			placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ListOpenOlderThan returns OPEN tickets created before cutoff, for the
// escalation sweep.
func (r *ticketRepository) ListOpenOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE status=$1 AND created_at < $2 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, domain.TicketStatusOpen, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// Analytics computes status/priority distribution, average resolution
// time over closed tickets, and monthly created counts for the trailing
// twelve months.
func (r *ticketRepository) Analytics(ctx context.Context) (*TicketAnalytics, error) {
	result := &TicketAnalytics{
		StatusCounts:   make(map[domain.TicketStatus]int64),
		PriorityCounts: make(map[domain.TicketPriority]int64),
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status domain.TicketStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		result.StatusCounts[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT priority, COUNT(*) FROM tickets GROUP BY priority`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var priority domain.TicketPriority
		var count int64
		if err := rows.Scan(&priority, &count); err != nil {
			rows.Close()
			return nil, err
		}
		result.PriorityCounts[priority] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const avgQuery = `
        SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (closed_at - created_at))), 0)
        FROM tickets WHERE closed_at IS NOT NULL`
	if err := r.pool.QueryRow(ctx, avgQuery).Scan(&result.AvgResolutionSeconds); err != nil {
		return nil, err
	}

	const monthlyQuery = `
        SELECT date_trunc('month', created_at) AS month, COUNT(*)
        FROM tickets
        WHERE created_at >= NOW() - INTERVAL '12 months'
        GROUP BY month ORDER BY month ASC`
	rows, err = r.pool.Query(ctx, monthlyQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var point MonthlyCount
		if err := rows.Scan(&point.Month, &point.Count); err != nil {
			return nil, err
		}
		result.MonthlyCreated = append(result.MonthlyCreated, point)
	}
	return result, rows.Err()
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.OrderID,
			&ticket.UserID,
			&ticket.Subject,
			&ticket.Status,
			&ticket.Priority,
			&ticket.AssignedStaffID,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
