// Package email defines the send request and the resolved message handed to
// provider clients.
package email

import "strings"

// Defaults applied to a Request when fields are left empty.
const (
	DefaultTag     = "logging"
	DefaultAccount = "default"

	// loggingText is the subject and body of a logging message.
	loggingText = "(logging)"
)

// Request is one logical outbound message.
//
// A Request with no recipients is a logging message: it is addressed to the
// configured logging address and always passes the whitelist gate.
type Request struct {
	To      []string
	Subject string
	Body    string

	// Tag classifies the message with the provider. Defaults to "logging".
	Tag string

	// SendAsHTML sends Body as HTML. Nil means true.
	SendAsHTML *bool

	// From overrides the account's sender address when non-empty.
	From string

	Attachments []Attachment

	// Account names the credential set to send with. Defaults to "default".
	Account string

	// Signature is appended to the body when non-empty.
	Signature string

	// Track requests open and click tracking. Nil means true.
	Track *bool
}

// Attachment represents a file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a Request with every default resolved. Provider clients only
// ever see a Message.
type Message struct {
	To          []string
	Subject     string
	Body        string
	Tag         string
	HTML        bool
	From        string
	Attachments []Attachment
	Account     string
	Track       bool
}

// Bool returns a pointer to v, for the optional flags of Request.
func Bool(v bool) *bool {
	return &v
}

// IsLogging reports whether the request omits its recipients.
func (r *Request) IsLogging() bool {
	return len(r.To) == 0
}

// AccountName returns the account the request sends with.
func (r *Request) AccountName() string {
	if r.Account == "" {
		return DefaultAccount
	}
	return r.Account
}

// Resolve applies defaults and returns the message to deliver. loggingAddr
// is used as the recipient of a logging message.
func (r *Request) Resolve(loggingAddr string) *Message {
	msg := &Message{
		To:          r.To,
		Subject:     r.Subject,
		Body:        r.Body,
		Tag:         r.Tag,
		HTML:        r.SendAsHTML == nil || *r.SendAsHTML,
		From:        r.From,
		Attachments: r.Attachments,
		Account:     r.AccountName(),
		Track:       r.Track == nil || *r.Track,
	}

	if r.IsLogging() {
		msg.To = []string{loggingAddr}
		if msg.Subject == "" {
			msg.Subject = loggingText
		}
		if msg.Body == "" {
			msg.Body = loggingText
		}
	}
	if msg.Tag == "" {
		msg.Tag = DefaultTag
	}
	if r.Signature != "" {
		msg.Body = appendSignature(msg.Body, r.Signature, msg.HTML)
	}

	return msg
}

func appendSignature(body, signature string, html bool) string {
	if html {
		return body + "<br><br>" + signature
	}
	return strings.TrimRight(body, "\n") + "\n\n-- \n" + signature
}
