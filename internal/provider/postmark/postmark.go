// Package postmark implements a provider Client that sends through the
// Postmark email API.
package postmark

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shineum/emailer/internal/config"
	"github.com/shineum/emailer/internal/email"
	"github.com/shineum/emailer/internal/provider"
)

// Name is the provider identity selected by sender: postmark.
const Name = "postmark"

// DefaultBaseURL is the Postmark API root.
const DefaultBaseURL = "https://api.postmarkapp.com"

// ClientConfig holds the configuration for creating a Client.
type ClientConfig struct {
	ServerToken string
	From        string
	BaseURL     string
	HTTPClient  *http.Client
}

// Client sends messages for one Postmark server.
type Client struct {
	token      string
	from       string
	endpoint   string
	httpClient *http.Client
}

// New creates a Client for the given server token.
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
		token:      cfg.ServerToken,
		from:       cfg.From,
		endpoint:   strings.TrimRight(base, "/") + "/email",
		httpClient: httpClient,
	}
}

// Factory builds a Client from postmark.accounts.<account>.key.
func Factory(_ context.Context, cfg *config.Config, account string) (provider.Client, error) {
	acct, ok := cfg.Postmark.Accounts[account]
	if !ok {
		return nil, provider.ErrUnknownAccount
	}
	if acct.Key == "" {
		return nil, fmt.Errorf("key: %w", provider.ErrMissingCredential)
	}
	return New(ClientConfig{
		ServerToken: acct.Key,
		From:        acct.From,
		BaseURL:     cfg.Postmark.BaseURL,
	}), nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return Name
}

// Send delivers the message in a single API call and returns the Postmark
// MessageID.
func (c *Client) Send(ctx context.Context, msg *email.Message) (string, error) {
	bodyJSON, err := json.Marshal(buildRequest(c.from, msg))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyJSON))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("postmark request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var result sendResponse
	jsonErr := json.Unmarshal(body, &result)

	if resp.StatusCode >= 400 || (jsonErr == nil && result.ErrorCode != 0) {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: result.ErrorCode, Message: result.Message}
		if jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return "", apiErr
	}
	if jsonErr != nil {
		return "", fmt.Errorf("failed to parse postmark response: %w", jsonErr)
	}
	if result.MessageID == "" {
		return "", fmt.Errorf("postmark response missing MessageID: %s", result.Message)
	}
	return result.MessageID, nil
}

// APIError is a rejection reported by Postmark, either as an HTTP error or a
// non-zero ErrorCode.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("postmark API error (HTTP %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

// sendRequest is the body of POST /email.
type sendRequest struct {
	From        string       `json:"From"`
	To          string       `json:"To"`
	Subject     string       `json:"Subject"`
	HtmlBody    string       `json:"HtmlBody,omitempty"`
	TextBody    string       `json:"TextBody,omitempty"`
	Tag         string       `json:"Tag,omitempty"`
	TrackOpens  bool         `json:"TrackOpens"`
	TrackLinks  string       `json:"TrackLinks"`
	Attachments []attachment `json:"Attachments,omitempty"`
}

type attachment struct {
	Name        string `json:"Name"`
	Content     string `json:"Content"`
	ContentType string `json:"ContentType"`
}

type sendResponse struct {
	To          string `json:"To"`
	SubmittedAt string `json:"SubmittedAt"`
	MessageID   string `json:"MessageID"`
	ErrorCode   int    `json:"ErrorCode"`
	Message     string `json:"Message"`
}

// buildRequest converts a message into a Postmark request body.
func buildRequest(defaultFrom string, msg *email.Message) *sendRequest {
	from := msg.From
	if from == "" {
		from = defaultFrom
	}

	req := &sendRequest{
		From:       from,
		To:         strings.Join(msg.To, ","),
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		TrackOpens: msg.Track,
		TrackLinks: "None",
	}
	if msg.Track {
		req.TrackLinks = "HtmlAndText"
	}

	if msg.HTML {
		req.HtmlBody = msg.Body
	} else {
		req.TextBody = msg.Body
	}

	for _, att := range msg.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		req.Attachments = append(req.Attachments, attachment{
			Name:        att.Filename,
			Content:     base64.StdEncoding.EncodeToString(att.Content),
			ContentType: contentType,
		})
	}

	return req
}
