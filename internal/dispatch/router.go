// Package dispatch routes send requests to the configured email provider
// after applying the whitelist gate.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shineum/emailer/internal/config"
	"github.com/shineum/emailer/internal/email"
	"github.com/shineum/emailer/internal/provider"
	"github.com/shineum/emailer/internal/provider/mailgun"
	"github.com/shineum/emailer/internal/provider/postmark"
	"github.com/shineum/emailer/internal/provider/ses"
	"github.com/shineum/emailer/internal/provider/stdout"
	"github.com/shineum/emailer/internal/whitelist"
)

// Loader reads the configuration at path. An empty path means environment
// variables only.
type Loader func(path string) (*config.Config, error)

// LoadConfig is the default Loader.
func LoadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// Static returns a Loader that always yields cfg, ignoring the path.
func Static(cfg *config.Config) Loader {
	return func(string) (*config.Config, error) {
		return cfg, nil
	}
}

// DefaultProviders returns the factories for every built-in provider,
// keyed by the sender identity that selects them.
func DefaultProviders() map[string]provider.Factory {
	return map[string]provider.Factory{
		mailgun.Name:  mailgun.Factory,
		postmark.Name: postmark.Factory,
		ses.Name:      ses.Factory,
		stdout.Name:   stdout.Factory,
	}
}

// Options configures a Router. Zero values select the defaults.
type Options struct {
	ConfigPath string
	Loader     Loader
	Providers  map[string]provider.Factory
	Logger     *slog.Logger
}

// Router is the entry point for sending email. It is safe for concurrent
// use once Init has returned.
type Router struct {
	mu         sync.Mutex
	configPath string

	load      Loader
	factories map[string]provider.Factory
	logger    *slog.Logger
	clients   *provider.Cache

	once    sync.Once
	initErr error
	state   atomic.Pointer[state]
}

// state is everything Init derives from the configuration. It never changes
// after Init.
type state struct {
	cfg         *config.Config
	whitelist   *whitelist.Whitelist
	loggingAddr string
}

// New creates a Router. Call Init before Send.
func New(opts Options) *Router {
	r := &Router{
		configPath: opts.ConfigPath,
		load:       opts.Loader,
		factories:  opts.Providers,
		logger:     opts.Logger,
		clients:    provider.NewCache(),
	}
	if r.load == nil {
		r.load = LoadConfig
	}
	if r.factories == nil {
		r.factories = DefaultProviders()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// SetConfigPath changes the file Init loads. It has no effect once Init
// has run.
func (r *Router) SetConfigPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configPath = path
}

// Init loads and validates the configuration, compiles the whitelist and
// fixes the logging address. Only the first call does any work; later calls
// return the first call's result.
func (r *Router) Init() error {
	r.once.Do(func() {
		r.initErr = r.init()
	})
	return r.initErr
}

func (r *Router) init() error {
	r.mu.Lock()
	path := r.configPath
	r.mu.Unlock()

	cfg, err := r.load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	wl, errs := whitelist.Compile(cfg.Whitelist)
	for _, err := range errs {
		r.logger.Warn("ignoring invalid whitelist pattern", "error", err)
	}

	r.state.Store(&state{
		cfg:         cfg,
		whitelist:   wl,
		loggingAddr: cfg.Default,
	})

	r.logger.Debug("emailer initialized",
		"sender", cfg.Sender,
		"send", cfg.Send,
		"whitelist_entries", len(cfg.Whitelist),
		"whitelist_patterns", wl.Len(),
	)
	return nil
}

// LoggingAddress returns the address logging messages go to, or "" before
// Init.
func (r *Router) LoggingAddress() string {
	if st := r.state.Load(); st != nil {
		return st.loggingAddr
	}
	return ""
}

// IsWhitelisted reports whether every recipient passes the whitelist. It
// ignores the send override.
func (r *Router) IsWhitelisted(recipients ...string) bool {
	st := r.state.Load()
	if st == nil {
		return false
	}
	return st.whitelist.AllowsAll(recipients)
}

// Send delivers req through the configured provider and reports how it
// ended. A nil req is a logging message.
//
// The message goes out when the send override is on, when req has no
// recipients, or when every recipient is whitelisted. Otherwise no provider
// is contacted and no client is built.
func (r *Router) Send(ctx context.Context, req *email.Request) Outcome {
	st := r.state.Load()
	if st == nil {
		return Outcome{Status: StatusNotInitialized, Err: ErrNotInitialized}
	}
	if req == nil {
		req = &email.Request{}
	}
	cfg := st.cfg

	if !cfg.Send && !req.IsLogging() && !st.whitelist.AllowsAll(req.To) {
		r.logger.Debug("send blocked by whitelist", "recipients", req.To)
		return Outcome{Status: StatusRejected, Provider: cfg.Sender}
	}

	factory, ok := r.factories[cfg.Sender]
	if !ok {
		r.logger.Debug("no provider registered for sender", "sender", cfg.Sender)
		return Outcome{Status: StatusUnknownProvider, Provider: cfg.Sender}
	}

	account := req.AccountName()
	client, err := r.clients.Get(ctx, cfg.Sender, account, cfg, factory)
	if err != nil {
		r.logger.Error("could not create provider client",
			"provider", cfg.Sender,
			"account", account,
			"error", err,
		)
		return Outcome{Status: StatusFailed, Provider: cfg.Sender, Err: err}
	}

	msg := req.Resolve(st.loggingAddr)
	id, err := client.Send(ctx, msg)
	if err != nil {
		r.logger.Error("could not send through provider",
			"provider", cfg.Sender,
			"account", account,
			"error", err,
		)
		return Outcome{Status: StatusFailed, Provider: cfg.Sender, Err: err}
	}

	r.logger.Debug("message sent",
		"provider", cfg.Sender,
		"account", account,
		"message_id", id,
		"tag", msg.Tag,
	)
	return Outcome{MessageID: id, Status: StatusSent, Provider: cfg.Sender}
}
