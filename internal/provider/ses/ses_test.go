package ses

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/shineum/emailer/internal/config"
	"github.com/shineum/emailer/internal/email"
	"github.com/shineum/emailer/internal/provider"
)

// mockSESClient implements SendEmailAPI for testing.
type mockSESClient struct {
	sendFn    func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	callCount int
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.sendFn != nil {
		return m.sendFn(ctx, params, optFns...)
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

func TestName(t *testing.T) {
	t.Parallel()
	p := NewWithClient("sender@example.com", &mockSESClient{})
	if got := p.Name(); got != "ses" {
		t.Errorf("Name(): got %q, want %q", got, "ses")
	}
}

func TestSend_SimpleTextEmail(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient("sender@example.com", mock)

	id, err := p.Send(context.Background(), &email.Message{
		To:      []string{"to@example.com"},
		Subject: "Test Subject",
		Body:    "Hello, World!",
		Tag:     "logging",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id != "test-message-id" {
		t.Errorf("id: got %q, want %q", id, "test-message-id")
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}

	input := mock.lastInput
	if input.Content.Simple == nil {
		t.Fatal("expected simple email content, got nil")
	}
	if got := *input.FromEmailAddress; got != "sender@example.com" {
		t.Errorf("FromEmailAddress: got %q, want %q", got, "sender@example.com")
	}
	if got := *input.Content.Simple.Subject.Data; got != "Test Subject" {
		t.Errorf("Subject: got %q, want %q", got, "Test Subject")
	}
	if got := *input.Content.Simple.Body.Text.Data; got != "Hello, World!" {
		t.Errorf("TextBody: got %q, want %q", got, "Hello, World!")
	}
	if input.Content.Simple.Body.Html != nil {
		t.Error("expected no HTML body")
	}
	if len(input.EmailTags) != 1 || *input.EmailTags[0].Value != "logging" {
		t.Errorf("EmailTags: got %+v", input.EmailTags)
	}
}

func TestSend_HTMLWithFromOverride(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient("sender@example.com", mock)

	_, err := p.Send(context.Background(), &email.Message{
		To:      []string{"to1@example.com", "to2@example.com"},
		Subject: "HTML Test",
		Body:    "<h1>Hello</h1>",
		HTML:    true,
		From:    "team@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := mock.lastInput
	if got := *input.FromEmailAddress; got != "team@example.com" {
		t.Errorf("FromEmailAddress: got %q, want %q", got, "team@example.com")
	}
	if got := *input.Content.Simple.Body.Html.Data; got != "<h1>Hello</h1>" {
		t.Errorf("HtmlBody: got %q, want %q", got, "<h1>Hello</h1>")
	}
	if input.Content.Simple.Body.Text != nil {
		t.Error("expected no text body")
	}
	if len(input.Destination.ToAddresses) != 2 {
		t.Errorf("ToAddresses: got %d, want 2", len(input.Destination.ToAddresses))
	}
	if input.EmailTags != nil {
		t.Errorf("EmailTags: got %+v, want none for empty tag", input.EmailTags)
	}
}

func TestSend_WithAttachments(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient("sender@example.com", mock)

	_, err := p.Send(context.Background(), &email.Message{
		To:      []string{"to@example.com"},
		Subject: "With Attachment",
		Body:    "See attachment",
		Attachments: []email.Attachment{
			{Filename: "test.txt", ContentType: "text/plain", Content: []byte("file content")},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := mock.lastInput
	if input.Content.Raw == nil {
		t.Fatal("expected raw email content for attachment, got nil")
	}
	if input.Content.Simple != nil {
		t.Error("expected no simple content when using raw message")
	}

	rawStr := string(input.Content.Raw.Data)
	checks := []string{
		"From: sender@example.com",
		"To: to@example.com",
		"Subject: With Attachment",
		"MIME-Version: 1.0",
		"multipart/mixed",
		"text/plain; charset=UTF-8",
		"test.txt",
		"Content-Transfer-Encoding: base64",
	}
	for _, want := range checks {
		if !strings.Contains(rawStr, want) {
			t.Errorf("raw message missing %q", want)
		}
	}
}

func TestSend_APIErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, errors.New("MessageRejected: Email address is not verified")
		},
	}
	p := NewWithClient("sender@example.com", mock)

	_, err := p.Send(context.Background(), &email.Message{To: []string{"to@example.com"}})
	if err == nil {
		t.Fatal("expected error from SES")
	}
	if !strings.Contains(err.Error(), "not verified") {
		t.Errorf("error message: got %q", err.Error())
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}
}

func TestSend_MissingMessageID(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return &sesv2.SendEmailOutput{}, nil
		},
	}
	p := NewWithClient("sender@example.com", mock)

	if _, err := p.Send(context.Background(), &email.Message{}); err == nil {
		t.Fatal("expected error when MessageId is missing")
	}
}

func TestTagValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"logging", "logging"},
		{"password reset", "password_reset"},
		{"a.b/c", "a_b_c"},
		{strings.Repeat("x", 300), strings.Repeat("x", 256)},
	}
	for _, tt := range tests {
		if got := tagValue(tt.in); got != tt.want {
			t.Errorf("tagValue(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildRawMessage_HtmlBody(t *testing.T) {
	t.Parallel()

	raw, err := buildRawMessage("sender@example.com", &email.Message{
		To:      []string{"to@example.com"},
		Subject: "HTML Raw",
		Body:    "<h1>Hello</h1>",
		HTML:    true,
		Attachments: []email.Attachment{
			{Filename: "a.bin", Content: []byte("x")},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rawStr := string(raw)
	if !strings.Contains(rawStr, "text/html") {
		t.Error("expected text/html content type for HTML body")
	}
	if !strings.Contains(rawStr, "application/octet-stream") {
		t.Error("expected octet-stream for attachment without content type")
	}
}

func TestEncodeBase64WithLineBreaks(t *testing.T) {
	t.Parallel()

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}

	encoded := encodeBase64WithLineBreaks(data)
	lines := strings.Split(encoded, "\r\n")
	for i, line := range lines {
		if i < len(lines)-1 && len(line) != 76 {
			t.Errorf("line %d length: got %d, want 76", i, len(line))
		}
		if len(line) > 76 {
			t.Errorf("line %d exceeds 76 chars: got %d", i, len(line))
		}
	}
}

func TestFactory_Errors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		SES: config.SESConfig{
			Accounts: map[string]config.SESAccount{
				"noregion": {From: "a@example.com"},
			},
		},
	}

	if _, err := Factory(context.Background(), cfg, "default"); !errors.Is(err, provider.ErrUnknownAccount) {
		t.Errorf("missing account: got %v, want ErrUnknownAccount", err)
	}
	if _, err := Factory(context.Background(), cfg, "noregion"); !errors.Is(err, provider.ErrMissingCredential) {
		t.Errorf("missing region: got %v, want ErrMissingCredential", err)
	}
}

// Verify Client implements provider.Client.
var _ provider.Client = (*Client)(nil)
