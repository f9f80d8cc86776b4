package postmark

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shineum/emailer/internal/config"
	"github.com/shineum/emailer/internal/email"
	"github.com/shineum/emailer/internal/provider"
)

func TestName(t *testing.T) {
	t.Parallel()
	if got := New(ClientConfig{}).Name(); got != "postmark" {
		t.Errorf("Name(): got %q, want %q", got, "postmark")
	}
}

func TestSend_Success(t *testing.T) {
	t.Parallel()

	var gotToken, gotPath string
	var gotBody sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Write([]byte(`{"To":"a@example.com","MessageID":"b7bc2f4a-e38e-4336-af7d-e6c392c2f817","ErrorCode":0,"Message":"OK"}`))
	}))
	defer server.Close()

	c := New(ClientConfig{ServerToken: "pm-token", From: "noreply@example.com", BaseURL: server.URL})
	id, err := c.Send(context.Background(), &email.Message{
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Hello",
		Body:    "<p>Hi</p>",
		Tag:     "welcome",
		HTML:    true,
		Track:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id != "b7bc2f4a-e38e-4336-af7d-e6c392c2f817" {
		t.Errorf("id: got %q", id)
	}
	if gotToken != "pm-token" {
		t.Errorf("token header: got %q, want %q", gotToken, "pm-token")
	}
	if gotPath != "/email" {
		t.Errorf("path: got %q, want %q", gotPath, "/email")
	}
	if gotBody.To != "a@example.com,b@example.com" {
		t.Errorf("To: got %q", gotBody.To)
	}
	if gotBody.From != "noreply@example.com" {
		t.Errorf("From: got %q", gotBody.From)
	}
	if gotBody.HtmlBody != "<p>Hi</p>" || gotBody.TextBody != "" {
		t.Errorf("bodies: got html=%q text=%q", gotBody.HtmlBody, gotBody.TextBody)
	}
	if gotBody.Tag != "welcome" {
		t.Errorf("Tag: got %q", gotBody.Tag)
	}
	if !gotBody.TrackOpens || gotBody.TrackLinks != "HtmlAndText" {
		t.Errorf("tracking: got opens=%v links=%q", gotBody.TrackOpens, gotBody.TrackLinks)
	}
}

func TestBuildRequest_TextNoTracking(t *testing.T) {
	t.Parallel()

	req := buildRequest("noreply@example.com", &email.Message{
		To:   []string{"a@example.com"},
		Body: "plain",
		From: "team@example.com",
		Attachments: []email.Attachment{
			{Filename: "a.bin", Content: []byte("hi")},
		},
	})

	if req.From != "team@example.com" {
		t.Errorf("From: got %q, want %q", req.From, "team@example.com")
	}
	if req.TextBody != "plain" || req.HtmlBody != "" {
		t.Errorf("bodies: got html=%q text=%q", req.HtmlBody, req.TextBody)
	}
	if req.TrackOpens || req.TrackLinks != "None" {
		t.Errorf("tracking: got opens=%v links=%q", req.TrackOpens, req.TrackLinks)
	}
	if len(req.Attachments) != 1 {
		t.Fatalf("Attachments: got %d, want 1", len(req.Attachments))
	}
	att := req.Attachments[0]
	if att.Content != "aGk=" {
		t.Errorf("attachment content: got %q, want %q", att.Content, "aGk=")
	}
	if att.ContentType != "application/octet-stream" {
		t.Errorf("attachment content type: got %q", att.ContentType)
	}
}

func TestSend_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
		wantMsg  string
	}{
		{"http 422", http.StatusUnprocessableEntity, `{"ErrorCode":300,"Message":"Invalid email request"}`, 300, "Invalid email request"},
		{"error code on 200", http.StatusOK, `{"ErrorCode":406,"Message":"Inactive recipient"}`, 406, "Inactive recipient"},
		{"non-json 500", http.StatusInternalServerError, "upstream down", 0, "upstream down"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := New(ClientConfig{ServerToken: "t", BaseURL: server.URL})
			_, err := c.Send(context.Background(), &email.Message{To: []string{"a@example.com"}})

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error: got %v, want *APIError", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("Code: got %d, want %d", apiErr.Code, tt.wantCode)
			}
			if apiErr.Message != tt.wantMsg {
				t.Errorf("Message: got %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestFactory(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Postmark: config.PostmarkConfig{
			Accounts: map[string]config.PostmarkAccount{
				"default": {Key: "pm-1", From: "a@example.com"},
				"blank":   {},
			},
		},
	}

	client, err := Factory(context.Background(), cfg, "default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := client.(*Client)
	if c.token != "pm-1" {
		t.Errorf("token: got %q, want %q", c.token, "pm-1")
	}
	if c.endpoint != "https://api.postmarkapp.com/email" {
		t.Errorf("endpoint: got %q", c.endpoint)
	}

	if _, err := Factory(context.Background(), cfg, "nope"); !errors.Is(err, provider.ErrUnknownAccount) {
		t.Errorf("missing account: got %v, want ErrUnknownAccount", err)
	}
	if _, err := Factory(context.Background(), cfg, "blank"); !errors.Is(err, provider.ErrMissingCredential) {
		t.Errorf("blank key: got %v, want ErrMissingCredential", err)
	}
}
