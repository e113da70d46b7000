// Package notify renders booking confirmations and hands them to a mail composer.
package notify

import "context"

// Message is one composed email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string // Plain text body
}

// Composer hands a message to something that can deliver or draft it.
// Implementations can be swapped (mail client, SendGrid, SES) without changing callers.
type Composer interface {
	Compose(ctx context.Context, msg Message) error
}
