package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/commerce-support/internal/auth"
	"github.com/spec-kit/commerce-support/internal/domain"
	"github.com/spec-kit/commerce-support/internal/service"
	"github.com/spec-kit/commerce-support/pkg/apperrors"
)

// OrdersHandler exposes the order boundary tickets attach to.
type OrdersHandler struct {
	service *service.OrderService
}

// NewOrdersHandler constructs handler.
func NewOrdersHandler(orderService *service.OrderService) *OrdersHandler {
	return &OrdersHandler{service: orderService}
}

type orderResponse struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	TotalCents int64              `json:"total_cents"`
	Status     domain.OrderStatus `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
}

type provisionOrderRequest struct {
	UserID     string `json:"user_id"`
	TotalCents int64  `json:"total_cents"`
}

// ListMine GET /orders.
func (h *OrdersHandler) ListMine(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	limit, offset := parsePage(c)
	orders, err := h.service.ListMine(c.UserContext(), actor, limit, offset)
	if err != nil {
		return err
	}
	items := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items = append(items, newOrderResponse(&o))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Provision POST /admin/orders.
func (h *OrdersHandler) Provision(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req provisionOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	order, err := h.service.Provision(c.UserContext(), actor, req.UserID, req.TotalCents)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": newOrderResponse(order)})
}

func newOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		TotalCents: o.TotalCents,
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
	}
}
