// Package queue moves booking notifications through RabbitMQ.  The
// Publisher is a notify.Notifier used on the booking path; the Consumer
// drains the queue into a mail sender in the background.
package queue

import (
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/notify"
)

// BookingQueue is the durable queue carrying confirmations.
const BookingQueue = "booking.confirmed"

// BookingConfirmedEvent is the JSON body of a queued confirmation.  It
// carries the rendered message so consumers need no database access.
type BookingConfirmedEvent struct {
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

func eventFrom(msg notify.Message, now time.Time) BookingConfirmedEvent {
	return BookingConfirmedEvent{To: msg.To, Subject: msg.Subject, Body: msg.Body, PublishedAt: now.UTC()}
}

func (e BookingConfirmedEvent) message() notify.Message {
	return notify.Message{To: e.To, Subject: e.Subject, Body: e.Body}
}
