// Package main is the command-line entry point for sending one email through
// the configured provider.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shineum/emailer/internal/dispatch"
	"github.com/shineum/emailer/internal/email"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	to := flag.String("to", "", "comma-separated recipients; empty sends a logging message")
	subject := flag.String("subject", "", "message subject")
	body := flag.String("body", "", "message body")
	tag := flag.String("tag", "", "provider tag (default \"logging\")")
	text := flag.Bool("text", false, "send the body as plain text instead of HTML")
	from := flag.String("from", "", "sender address override")
	account := flag.String("account", "", "account name (default \"default\")")
	signature := flag.String("signature", "", "signature appended to the body")
	noTrack := flag.Bool("no-track", false, "disable open and click tracking")
	flag.Parse()

	// Load configuration
	cfg, err := dispatch.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	router := dispatch.New(dispatch.Options{Loader: dispatch.Static(cfg)})
	if err := router.Init(); err != nil {
		slog.Error("failed to initialize emailer", "error", err)
		os.Exit(1)
	}

	slog.Info("sending email",
		"sender", cfg.Sender,
		"send_all", cfg.Send,
		"logging_address", router.LoggingAddress(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	req := &email.Request{
		To:         splitRecipients(*to),
		Subject:    *subject,
		Body:       *body,
		Tag:        *tag,
		SendAsHTML: email.Bool(!*text),
		From:       *from,
		Account:    *account,
		Signature:  *signature,
		Track:      email.Bool(!*noTrack),
	}

	out := router.Send(ctx, req)
	if !out.OK() {
		slog.Error("email not sent",
			"status", out.Status,
			"provider", out.Provider,
			"error", out.Err,
		)
		os.Exit(1)
	}

	fmt.Println(out.MessageID)
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// splitRecipients parses the -to flag.
func splitRecipients(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
