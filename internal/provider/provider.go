// Package provider defines the interface for email delivery backends and the
// per-account client cache the dispatcher resolves them through.
package provider

import (
	"context"
	"errors"

	"github.com/shineum/emailer/internal/config"
	"github.com/shineum/emailer/internal/email"
)

var (
	// ErrUnknownAccount is returned by a Factory when the account has no
	// configuration under the provider.
	ErrUnknownAccount = errors.New("account not configured")

	// ErrMissingCredential is returned by a Factory when the account exists
	// but its credential is empty.
	ErrMissingCredential = errors.New("credential not configured")
)

// Client is the interface that email delivery backends must implement.
// One Client serves exactly one provider account.
type Client interface {
	// Send delivers a message and returns the provider-assigned message id.
	Send(ctx context.Context, msg *email.Message) (string, error)

	// Name returns the provider identity of this client.
	Name() string
}

// Factory builds the Client for one account, reading its credential from
// cfg.
type Factory func(ctx context.Context, cfg *config.Config, account string) (Client, error)
