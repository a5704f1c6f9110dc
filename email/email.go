// Package email defines the outbound-email collaborator contract and the
// template substitution used for password-reset and verification mails.
// Delivery transport (SMTP, provider API) lives outside this module: callers
// inject a [Sender].
package email

import (
	"context"
	"strings"
)

// Message is a fully rendered outbound email.
type Message struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to the [Sender] interface.
type SenderFunc func(ctx context.Context, msg Message) error

// Send implements [Sender].
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Template holds subject/body templates with {placeholder} markers. Recognized
// placeholders are {token} and {email}; unrecognized markers pass through
// untouched.
type Template struct {
	Subject string
	Text    string
	HTML    string
}

// Render substitutes the given variables into the template and returns the
// message bodies addressed to nobody — the caller fills To/From.
func (t Template) Render(vars map[string]string) Message {
	replacements := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		replacements = append(replacements, "{"+key+"}", value)
	}
	replacer := strings.NewReplacer(replacements...)

	return Message{
		Subject: replacer.Replace(t.Subject),
		Text:    replacer.Replace(t.Text),
		HTML:    replacer.Replace(t.HTML),
	}
}
