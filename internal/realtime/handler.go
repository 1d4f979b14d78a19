package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/commerce-support/internal/auth"
	"github.com/spec-kit/commerce-support/internal/domain"
	"github.com/spec-kit/commerce-support/internal/service"
	"github.com/spec-kit/commerce-support/pkg/apperrors"
)

// Channel event names.
const (
	ClientEventCreateTicket = "create_ticket"
	ClientEventUpdateTicket = "update_ticket"
	ServerEventNewTicket    = "new_ticket"
	ServerEventTicketUpdate = "ticket_updated"
	ServerEventTicketError  = "ticket_error"
)

const wsUserKey = "ws_user"

// client serializes writes to one websocket connection. Registry
// pushes and read-loop replies share it, so frames never interleave.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *client) Close() error {
	return c.conn.Close()
}

// Handler serves the realtime channel: token-gated handshake, registry
// membership for the connection's lifetime, and inbound ticket actions.
type Handler struct {
	authMW   *auth.AuthMiddleware
	registry *Registry
	tickets  *service.TicketService
	logger   *zap.Logger
}

// NewHandler constructs the websocket handler.
func NewHandler(authMW *auth.AuthMiddleware, registry *Registry, tickets *service.TicketService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{authMW: authMW, registry: registry, tickets: tickets, logger: logger}
}

// UpgradeGate authenticates the handshake before the upgrade happens.
// A missing or invalid token rejects the connection here; no registry
// entry is ever created for an unauthenticated caller.
func (h *Handler) UpgradeGate(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.Get("Authorization"))
	}
	if token == "" {
		return apperrors.NewUnauthorized("missing token")
	}

	user, err := h.authMW.ResolveToken(c.Context(), token)
	if err != nil {
		return err
	}
	c.Locals(wsUserKey, user)
	return c.Next()
}

// Serve returns the upgraded connection handler.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		user, ok := conn.Locals(wsUserKey).(*domain.User)
		if !ok {
			_ = conn.Close()
			return
		}

		cl := &client{conn: conn}
		h.registry.Register(user.ID, cl)
		defer h.registry.Unregister(user.ID, cl)

		h.logger.Info("websocket connected", zap.String("user_id", user.ID))
		h.readLoop(cl, user)
		h.logger.Info("websocket disconnected", zap.String("user_id", user.ID))
	})
}

type clientFrame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type createTicketFrame struct {
	OrderID string `json:"order_id"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type updateTicketFrame struct {
	TicketID        string               `json:"ticket_id"`
	Content         string               `json:"content,omitempty"`
	Status          *domain.TicketStatus `json:"status,omitempty"`
	AssignedStaffID *string              `json:"assigned_staff_id,omitempty"`
}

func (h *Handler) readLoop(cl *client, user *domain.User) {
	for {
		var frame clientFrame
		if err := cl.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", zap.String("user_id", user.ID), zap.Error(err))
			}
			return
		}

		// The request context died with the upgrade; each action runs
		// under its own background context.
		ctx := context.Background()

		switch frame.Action {
		case ClientEventCreateTicket:
			h.handleCreate(ctx, cl, user, frame.Data)
		case ClientEventUpdateTicket:
			h.handleUpdate(ctx, cl, user, frame.Data)
		default:
			h.sendError(cl, apperrors.NewValidationError("unknown action", map[string]any{"action": frame.Action}))
		}
	}
}

func (h *Handler) handleCreate(ctx context.Context, cl *client, user *domain.User, data json.RawMessage) {
	var req createTicketFrame
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(cl, apperrors.NewValidationError("invalid create_ticket payload", nil))
		return
	}
	ticket, err := h.tickets.CreateTicket(ctx, user, service.TicketCreateInput{
		OrderID: req.OrderID,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		h.sendError(cl, err)
		return
	}
	h.reply(cl, ServerEventNewTicket, ticket)
}

// handleUpdate appends a message when content is present, and applies a
// status/assignment change when status is present. Both may appear in
// one frame; the message lands first.
func (h *Handler) handleUpdate(ctx context.Context, cl *client, user *domain.User, data json.RawMessage) {
	var req updateTicketFrame
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(cl, apperrors.NewValidationError("invalid update_ticket payload", nil))
		return
	}
	if req.TicketID == "" {
		h.sendError(cl, apperrors.NewValidationError("ticket_id required", nil))
		return
	}
	if req.Content == "" && req.Status == nil {
		h.sendError(cl, apperrors.NewValidationError("nothing to update", nil))
		return
	}

	var ticket *domain.Ticket
	var err error
	if req.Content != "" {
		ticket, _, err = h.tickets.AppendMessage(ctx, user, req.TicketID, req.Content)
		if err != nil {
			h.sendError(cl, err)
			return
		}
	}
	if req.Status != nil {
		ticket, err = h.tickets.SetStatus(ctx, user, req.TicketID, *req.Status, req.AssignedStaffID)
		if err != nil {
			h.sendError(cl, err)
			return
		}
	}
	h.reply(cl, ServerEventTicketUpdate, ticket)
}

func (h *Handler) reply(cl *client, event string, payload interface{}) {
	if err := cl.WriteJSON(Envelope{Event: event, Data: payload}); err != nil {
		h.logger.Debug("websocket reply failed", zap.String("event", event), zap.Error(err))
	}
}

func (h *Handler) sendError(cl *client, err error) {
	domainErr := apperrors.ToDomainError(err)
	h.reply(cl, ServerEventTicketError, fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
