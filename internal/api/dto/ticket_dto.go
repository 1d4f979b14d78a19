package dto

import (
	"time"

	"github.com/spec-kit/commerce-support/internal/domain"
	"github.com/spec-kit/commerce-support/internal/repository"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	OrderID string `json:"order_id"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// CreateMessageRequest payload for appending to a ticket thread.
type CreateMessageRequest struct {
	Content string `json:"content"`
}

// UpdateTicketStatusRequest payload for admin status changes.
type UpdateTicketStatusRequest struct {
	Status          domain.TicketStatus `json:"status"`
	AssignedStaffID *string             `json:"assigned_staff_id"`
}

// TicketSummary response used by list endpoints.
type TicketSummary struct {
	ID              string                `json:"id"`
	OrderID         string                `json:"order_id"`
	UserID          string                `json:"user_id"`
	Subject         string                `json:"subject"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	AssignedStaffID *string               `json:"assigned_staff_id"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides the full aggregate including the thread.
type TicketDetailResponse struct {
	TicketSummary
	ClosedAt *time.Time              `json:"closed_at"`
	Messages []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse represents one thread message.
type TicketMessageResponse struct {
	ID           string    `json:"id"`
	SenderID     *string   `json:"sender_id"`
	Content      string    `json:"content"`
	IsAdminReply bool      `json:"is_admin_reply"`
	IsSystem     bool      `json:"is_system"`
	CreatedAt    time.Time `json:"created_at"`
}

// TicketAnalyticsResponse is the admin analytics payload.
type TicketAnalyticsResponse struct {
	StatusCounts         map[domain.TicketStatus]int64   `json:"status_counts"`
	PriorityCounts       map[domain.TicketPriority]int64 `json:"priority_counts"`
	AvgResolutionSeconds float64                         `json:"avg_resolution_seconds"`
	MonthlyCreated       []MonthlyCountResponse          `json:"monthly_created"`
}

// MonthlyCountResponse is one month of created tickets.
type MonthlyCountResponse struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// NewTicketSummary maps a domain ticket to its summary shape.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:              t.ID,
		OrderID:         t.OrderID,
		UserID:          t.UserID,
		Subject:         t.Subject,
		Status:          t.Status,
		Priority:        t.Priority,
		AssignedStaffID: t.AssignedStaffID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// NewTicketDetail maps a domain ticket with its messages.
func NewTicketDetail(t *domain.Ticket) TicketDetailResponse {
	messages := make([]TicketMessageResponse, 0, len(t.Messages))
	for _, m := range t.Messages {
		messages = append(messages, TicketMessageResponse{
			ID:           m.ID,
			SenderID:     m.SenderID,
			Content:      m.Content,
			IsAdminReply: m.IsAdminReply,
			IsSystem:     m.IsSystem,
			CreatedAt:    m.CreatedAt,
		})
	}
	return TicketDetailResponse{
		TicketSummary: NewTicketSummary(t),
		ClosedAt:      t.ClosedAt,
		Messages:      messages,
	}
}

// NewTicketAnalytics maps repository analytics to the response shape.
func NewTicketAnalytics(a *repository.TicketAnalytics) TicketAnalyticsResponse {
	monthly := make([]MonthlyCountResponse, 0, len(a.MonthlyCreated))
	for _, m := range a.MonthlyCreated {
		monthly = append(monthly, MonthlyCountResponse{
			Month: m.Month.Format("2006-01"),
			Count: m.Count,
		})
	}
	return TicketAnalyticsResponse{
		StatusCounts:         a.StatusCounts,
		PriorityCounts:       a.PriorityCounts,
		AvgResolutionSeconds: a.AvgResolutionSeconds,
		MonthlyCreated:       monthly,
	}
}
