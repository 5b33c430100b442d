// Package queue defines message payloads exchanged over the message broker
// and the background consumer that drains them.
package queue

// EmailQueueName is the durable queue carrying outbound email requests.
const EmailQueueName = "email.requested"

// EmailRequestedEvent is published whenever the service wants a mail
// delivered: verification links on register and resend. It carries the fully
// rendered message so consumers need no access to the primary database.
type EmailRequestedEvent struct {
	MessageID   string `json:"message_id"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	RequestedAt string `json:"requested_at"`
}
