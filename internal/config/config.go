// Package config provides YAML file configuration with environment-variable
// overrides for the emailer.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingDefault is returned by Validate when no logging address is set.
var ErrMissingDefault = errors.New("config: default logging address is required")

// Config holds the complete application configuration.
type Config struct {
	// Default is the address logging messages are sent to.
	Default string `yaml:"default"`

	// Send disables the whitelist gate when true.
	Send bool `yaml:"send"`

	// Sender is the active provider identity ("mailgun", "postmark", ...).
	Sender string `yaml:"sender"`

	// Whitelist holds exact addresses and delimited regular expressions.
	Whitelist []string `yaml:"whitelist"`

	Mailgun  MailgunConfig  `yaml:"mailgun"`
	Postmark PostmarkConfig `yaml:"postmark"`
	SES      SESConfig      `yaml:"ses"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MailgunConfig holds Mailgun accounts keyed by account name.
type MailgunConfig struct {
	BaseURL  string                    `yaml:"base_url"`
	Accounts map[string]MailgunAccount `yaml:"accounts"`
}

// MailgunAccount is one Mailgun credential set.
type MailgunAccount struct {
	APIKey string `yaml:"apiKey"`
	Domain string `yaml:"domain"`
	From   string `yaml:"from"`
}

// PostmarkConfig holds Postmark accounts keyed by account name.
type PostmarkConfig struct {
	BaseURL  string                     `yaml:"base_url"`
	Accounts map[string]PostmarkAccount `yaml:"accounts"`
}

// PostmarkAccount is one Postmark server token.
type PostmarkAccount struct {
	Key  string `yaml:"key"`
	From string `yaml:"from"`
}

// SESConfig holds AWS SES accounts keyed by account name.
type SESConfig struct {
	Accounts map[string]SESAccount `yaml:"accounts"`
}

// SESAccount is one AWS SES credential set. Empty keys fall back to the
// default AWS credential chain.
type SESAccount struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	From            string `yaml:"from"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// Validate checks the settings the emailer cannot start without.
// An unrecognized Sender is not an error; sends through it fail closed.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Default) == "" {
		return ErrMissingDefault
	}
	return nil
}

// Lookup resolves a key path such as ("mailgun", "accounts", "default",
// "apiKey") against the configuration. It reports false when any segment
// is unknown.
func (c *Config) Lookup(path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}

	switch path[0] {
	case "default":
		return leaf(c.Default, path)
	case "send":
		return leaf(c.Send, path)
	case "sender":
		return leaf(c.Sender, path)
	case "whitelist":
		return leaf(c.Whitelist, path)
	case "mailgun":
		return lookupAccount(c.Mailgun.Accounts, path[1:], func(a MailgunAccount, field string) (any, bool) {
			switch field {
			case "apiKey":
				return a.APIKey, true
			case "domain":
				return a.Domain, true
			case "from":
				return a.From, true
			}
			return nil, false
		})
	case "postmark":
		return lookupAccount(c.Postmark.Accounts, path[1:], func(a PostmarkAccount, field string) (any, bool) {
			switch field {
			case "key":
				return a.Key, true
			case "from":
				return a.From, true
			}
			return nil, false
		})
	case "ses":
		return lookupAccount(c.SES.Accounts, path[1:], func(a SESAccount, field string) (any, bool) {
			switch field {
			case "region":
				return a.Region, true
			case "accessKeyId":
				return a.AccessKeyID, true
			case "secretAccessKey":
				return a.SecretAccessKey, true
			case "from":
				return a.From, true
			}
			return nil, false
		})
	}
	return nil, false
}

func leaf(v any, path []string) (any, bool) {
	if len(path) != 1 {
		return nil, false
	}
	return v, true
}

// lookupAccount resolves "accounts", <name>, [field] below a provider key.
func lookupAccount[A any](accounts map[string]A, path []string, field func(A, string) (any, bool)) (any, bool) {
	if len(path) < 2 || path[0] != "accounts" {
		return nil, false
	}
	acct, ok := accounts[path[1]]
	if !ok {
		return nil, false
	}
	switch len(path) {
	case 2:
		return acct, true
	case 3:
		return field(acct, path[2])
	}
	return nil, false
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
// Credential variables target the "default" account.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("EMAILER_DEFAULT"); v != "" {
		c.Default = v
	}
	if v := os.Getenv("EMAILER_SEND"); v != "" {
		if send, err := strconv.ParseBool(v); err == nil {
			c.Send = send
		}
	}
	if v := os.Getenv("EMAILER_SENDER"); v != "" {
		c.Sender = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("EMAILER_WHITELIST"); v != "" {
		c.Whitelist = splitList(v)
	}

	if v := os.Getenv("MAILGUN_API_KEY"); v != "" {
		acct := c.Mailgun.Accounts["default"]
		acct.APIKey = v
		c.Mailgun.Accounts = setAccount(c.Mailgun.Accounts, acct)
	}
	if v := os.Getenv("MAILGUN_DOMAIN"); v != "" {
		acct := c.Mailgun.Accounts["default"]
		acct.Domain = v
		c.Mailgun.Accounts = setAccount(c.Mailgun.Accounts, acct)
	}

	if v := os.Getenv("POSTMARK_SERVER_TOKEN"); v != "" {
		acct := c.Postmark.Accounts["default"]
		acct.Key = v
		c.Postmark.Accounts = setAccount(c.Postmark.Accounts, acct)
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		acct := c.SES.Accounts["default"]
		acct.Region = v
		c.SES.Accounts = setAccount(c.SES.Accounts, acct)
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		acct := c.SES.Accounts["default"]
		acct.AccessKeyID = v
		c.SES.Accounts = setAccount(c.SES.Accounts, acct)
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		acct := c.SES.Accounts["default"]
		acct.SecretAccessKey = v
		c.SES.Accounts = setAccount(c.SES.Accounts, acct)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

func setAccount[A any](accounts map[string]A, acct A) map[string]A {
	if accounts == nil {
		accounts = make(map[string]A)
	}
	accounts["default"] = acct
	return accounts
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
