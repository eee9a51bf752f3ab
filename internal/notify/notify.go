// Package notify mails plain-text booking notices to booking owners.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/config"
)

// Sender delivers composed messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// UserLookup resolves the owner of a booking.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (application.User, error)
}

// Notifier subscribes to booking events and mails the booking owner.
type Notifier struct {
	sender Sender
	users  UserLookup
	from   string
	logger *slog.Logger
}

// New constructs a notifier around sender.
func New(sender Sender, users UserLookup, from string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sender: sender, users: users, from: from, logger: logger}
}

// NewSMTP builds a notifier that dials the configured SMTP relay for every message.
func NewSMTP(cfg config.SMTPConfig, users UserLookup, logger *slog.Logger) *Notifier {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return New(dialer, users, cfg.From, logger)
}

// Noop discards every event. Used when SMTP is not configured.
var Noop application.EventHandler = application.EventHandlerFunc(func(context.Context, application.Event) error {
	return nil
})

// HandleEvent implements application.EventHandler.
func (n *Notifier) HandleEvent(ctx context.Context, event application.Event) error {
	var (
		booking application.Booking
		subject string
	)
	switch e := event.(type) {
	case application.BookingCreated:
		booking, subject = e.Booking, "Booking confirmed"
	case application.BookingCancelled:
		booking, subject = e.Booking, "Booking cancelled"
	default:
		return nil
	}

	owner, err := n.users.GetUser(ctx, booking.UserID)
	if err != nil {
		return fmt.Errorf("notify: load booking owner %d: %w", booking.UserID, err)
	}
	if owner.Email == "" {
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", owner.Email)
	msg.SetHeader("Subject", fmt.Sprintf("%s: %s", subject, booking.Title))
	msg.SetBody("text/plain", body(owner, booking, subject))

	if err := n.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("notify: send %s for booking %d: %w", event.EventName(), booking.ID, err)
	}
	n.logger.InfoContext(ctx, "booking notice sent",
		"event", event.EventName(),
		"booking_id", booking.ID,
		"user_id", owner.ID,
	)
	return nil
}

func body(owner application.User, booking application.Booking, subject string) string {
	room := booking.RoomName
	if room == "" {
		room = fmt.Sprintf("room %d", booking.RoomID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", owner.Name)
	fmt.Fprintf(&b, "%s.\n\n", subject)
	fmt.Fprintf(&b, "Title: %s\n", booking.Title)
	fmt.Fprintf(&b, "Room:  %s\n", room)
	fmt.Fprintf(&b, "Start: %s\n", booking.Start.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "End:   %s\n", booking.End.UTC().Format(time.RFC1123))
	return b.String()
}
