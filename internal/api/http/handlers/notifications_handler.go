package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/commerce-support/internal/api/dto"
	"github.com/spec-kit/commerce-support/internal/auth"
	"github.com/spec-kit/commerce-support/internal/service"
	"github.com/spec-kit/commerce-support/pkg/apperrors"
)

// NotificationsHandler manages the inbox endpoints.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notificationService}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	limit, offset := parsePage(c)
	page, err := h.service.List(c.UserContext(), actor, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, dto.NewNotificationResponse(&page.Items[i]))
	}
	return c.JSON(fiber.Map{"data": dto.NotificationListResponse{
		Items:       items,
		UnreadCount: page.UnreadCount,
	}})
}

// MarkRead PATCH /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.service.MarkRead(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearAll DELETE /notifications.
func (h *NotificationsHandler) ClearAll(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	deleted, err := h.service.ClearAll(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": deleted}})
}
