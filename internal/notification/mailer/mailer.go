package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"medigraph/internal/notification"
)

// Mailer sends notification events as plain-text email over SMTP. Events with
// no bound recipient address (open-link invites) are skipped, not errors.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *Mailer) Send(_ context.Context, event notification.Event) error {
	if event.RecipientEmail == "" {
		return nil
	}

	subject, body := render(event)
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", event.RecipientEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %s mail: %w", event.Kind, err)
	}
	return nil
}

func render(event notification.Event) (subject, body string) {
	switch event.Kind {
	case notification.KindInviteIssued:
		return fmt.Sprintf("%s invited you to join", event.ActorHandle),
			fmt.Sprintf("Dr. %s has invited you to connect. Accept the invitation here: %s\n", event.ActorHandle, event.Data["url"])
	case notification.KindInviteRedeemed:
		return fmt.Sprintf("%s accepted your invite", event.ActorHandle),
			fmt.Sprintf("Dr. %s accepted your invitation. You are now connected.\n", event.ActorHandle)
	case notification.KindConnectionRequested:
		return fmt.Sprintf("New connection request from %s", event.ActorHandle),
			fmt.Sprintf("Dr. %s wants to connect with you. Review the request in your dashboard.\n", event.ActorHandle)
	case notification.KindConnectionAccepted:
		return fmt.Sprintf("%s accepted your connection request", event.ActorHandle),
			fmt.Sprintf("Dr. %s accepted your connection request. You are now connected.\n", event.ActorHandle)
	case notification.KindVerificationApproved:
		return "Your credentials were verified",
			"Your credential review was approved. Your profile now carries the verified badge.\n"
	case notification.KindVerificationRejected:
		return "Your credential review needs attention",
			"Your credential review was not approved. You can resubmit with updated documents.\n"
	default:
		return string(event.Kind), ""
	}
}
