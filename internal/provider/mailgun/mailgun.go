// Package mailgun implements a provider Client that sends through the
// Mailgun Messages API.
package mailgun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/shineum/emailer/internal/config"
	"github.com/shineum/emailer/internal/email"
	"github.com/shineum/emailer/internal/provider"
)

// Name is the provider identity selected by sender: mailgun.
const Name = "mailgun"

// DefaultBaseURL is the Mailgun US region API root.
const DefaultBaseURL = "https://api.mailgun.net/v3"

// ClientConfig holds the configuration for creating a Client.
type ClientConfig struct {
	APIKey string
	Domain string
	From   string

	// BaseURL overrides DefaultBaseURL (EU region, tests).
	BaseURL string

	// HTTPClient overrides the default client with a 30s timeout.
	HTTPClient *http.Client
}

// Client sends messages for one Mailgun account.
type Client struct {
	apiKey     string
	from       string
	endpoint   string
	httpClient *http.Client
}

// New creates a Client for the given account configuration.
func New(cfg ClientConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		apiKey:     cfg.APIKey,
		from:       cfg.From,
		endpoint:   fmt.Sprintf("%s/%s/messages", strings.TrimRight(base, "/"), cfg.Domain),
		httpClient: httpClient,
	}
}

// Factory builds a Client from mailgun.accounts.<account>.apiKey.
func Factory(_ context.Context, cfg *config.Config, account string) (provider.Client, error) {
	acct, ok := cfg.Mailgun.Accounts[account]
	if !ok {
		return nil, provider.ErrUnknownAccount
	}
	if acct.APIKey == "" {
		return nil, fmt.Errorf("apiKey: %w", provider.ErrMissingCredential)
	}
	return New(ClientConfig{
		APIKey:  acct.APIKey,
		Domain:  acct.Domain,
		From:    acct.From,
		BaseURL: cfg.Mailgun.BaseURL,
	}), nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return Name
}

// Send posts the message to Mailgun as one call for all recipients and
// returns the Mailgun message id without its angle brackets.
func (c *Client) Send(ctx context.Context, msg *email.Message) (string, error) {
	form := buildForm(c.from, msg)

	body, contentType, err := encode(form, msg.Attachments)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth("api", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mailgun request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return "", &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	var result sendResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse mailgun response: %w", err)
	}
	id := strings.Trim(result.ID, "<>")
	if id == "" {
		return "", fmt.Errorf("mailgun response missing id: %s", result.Message)
	}
	return id, nil
}

// APIError is a non-2xx response from Mailgun.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mailgun API error (HTTP %d): %s", e.StatusCode, e.Message)
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// errorMessage extracts {"message": ...} from an error body, falling back to
// the raw body.
func errorMessage(body []byte) string {
	var r sendResponse
	if err := json.Unmarshal(body, &r); err == nil && r.Message != "" {
		return r.Message
	}
	return strings.TrimSpace(string(body))
}

// buildForm converts a message into Mailgun form fields.
func buildForm(defaultFrom string, msg *email.Message) url.Values {
	form := url.Values{}

	from := msg.From
	if from == "" {
		from = defaultFrom
	}
	form.Set("from", from)
	for _, to := range msg.To {
		form.Add("to", to)
	}
	form.Set("subject", msg.Subject)

	if msg.HTML {
		form.Set("html", msg.Body)
	} else {
		form.Set("text", msg.Body)
	}

	if msg.Tag != "" {
		form.Set("o:tag", msg.Tag)
	}

	tracking := "no"
	if msg.Track {
		tracking = "yes"
	}
	form.Set("o:tracking", tracking)
	form.Set("o:tracking-opens", tracking)
	form.Set("o:tracking-clicks", tracking)

	return form
}

// encode returns a urlencoded body, or a multipart body when there are
// attachments.
func encode(form url.Values, attachments []email.Attachment) (io.Reader, string, error) {
	if len(attachments) == 0 {
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, values := range form {
		for _, v := range values {
			if err := writer.WriteField(key, v); err != nil {
				return nil, "", err
			}
		}
	}

	for _, att := range attachments {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="attachment"; filename=%q`, att.Filename))
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create attachment part: %w", err)
		}
		if _, err := part.Write(att.Content); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
