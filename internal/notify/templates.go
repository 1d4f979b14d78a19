package notify

import (
	"fmt"

	"github.com/spec-kit/commerce-support/internal/domain"
)

// template holds the rendered text for one notification type. The
// subject doubles as the email subject; the message is both the in-app
// text and the email body.
type template struct {
	subject string
	message string
}

// templates is the fixed mapping from notification type to
// human-readable text. %s is the ticket subject.
var templates = map[domain.NotificationType]template{
	domain.NotificationTicketCreated: {
		subject: "Support ticket created",
		message: "Your support ticket %q has been created. Our team will get back to you shortly.",
	},
	domain.NotificationTicketUpdated: {
		subject: "Support ticket updated",
		message: "Your support ticket %q has been updated.",
	},
	domain.NotificationTicketAssigned: {
		subject: "Support ticket assigned to you",
		message: "Support ticket %q has been assigned to you.",
	},
	domain.NotificationTicketEscalated: {
		subject: "Support ticket escalated",
		message: "Support ticket %q has been escalated and is now being prioritized.",
	},
	domain.NotificationTicketClosed: {
		subject: "Support ticket closed",
		message: "Your support ticket %q has been closed.",
	},
	domain.NotificationMessageReceived: {
		subject: "New reply on your support ticket",
		message: "There is a new reply on support ticket %q.",
	},
}

var genericTemplate = template{
	subject: "Support ticket notification",
	message: "There is an update on support ticket %q.",
}

// RenderMessage returns the in-app text for the type. Unknown types
// fall back to a generic message, never an error.
func RenderMessage(t domain.NotificationType, ticketSubject string) string {
	tpl, ok := templates[t]
	if !ok {
		tpl = genericTemplate
	}
	return fmt.Sprintf(tpl.message, ticketSubject)
}

// RenderSubject returns the email subject for the type.
func RenderSubject(t domain.NotificationType) string {
	tpl, ok := templates[t]
	if !ok {
		tpl = genericTemplate
	}
	return tpl.subject
}
