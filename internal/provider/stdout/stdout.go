// Package stdout implements a provider Client that prints emails to
// standard output instead of delivering them.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/shineum/emailer/internal/config"
	"github.com/shineum/emailer/internal/email"
	"github.com/shineum/emailer/internal/provider"
)

// Name is the provider identity selected by sender: stdout.
const Name = "stdout"

// Client prints email messages in a human-readable format.
type Client struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Client that writes to os.Stdout.
func New() *Client {
	return &Client{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Client that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Client {
	return &Client{writer: w}
}

// Factory returns a stdout Client for any account; it needs no credential.
func Factory(_ context.Context, _ *config.Config, _ string) (provider.Client, error) {
	return New(), nil
}

// Send prints the email message and returns a generated message id.
func (p *Client) Send(_ context.Context, msg *email.Message) (string, error) {
	id := uuid.NewString()

	var b strings.Builder

	b.WriteString("========================================\n")
	b.WriteString(fmt.Sprintf("Message-ID: %s\n", id))
	if msg.From != "" {
		b.WriteString(fmt.Sprintf("From: %s\n", msg.From))
	}
	b.WriteString(fmt.Sprintf("To: %s\n", strings.Join(msg.To, ", ")))
	b.WriteString(fmt.Sprintf("Subject: %s\n", msg.Subject))
	b.WriteString(fmt.Sprintf("Account: %s\n", msg.Account))
	b.WriteString(fmt.Sprintf("Tag: %s\n", msg.Tag))
	b.WriteString(fmt.Sprintf("HTML: %t, Track: %t\n", msg.HTML, msg.Track))
	b.WriteString("Body:\n")
	b.WriteString(msg.Body + "\n")

	if len(msg.Attachments) > 0 {
		attachments := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			attachments = append(attachments, fmt.Sprintf("%s (%s)", att.Filename, formatSize(len(att.Content))))
		}
		b.WriteString(fmt.Sprintf("Attachments: %s\n", strings.Join(attachments, ", ")))
	}

	b.WriteString("========================================\n")

	if _, err := fmt.Fprint(p.writer, b.String()); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}

	return id, nil
}

// Name returns the provider name.
func (p *Client) Name() string {
	return Name
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
