package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStripFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```sql\nSELECT 1\n```", "SELECT 1"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\nSELECT 1\n```", "SELECT 1"},
		{"SELECT 1", "SELECT 1"},
		{"  SELECT 1  ", "SELECT 1"},
	}
	for _, tt := range tests {
		if got := StripFence(tt.in); got != tt.want {
			t.Fatalf("StripFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewOpenAIClientValidation(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{APIKey: "k", Model: "m"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "https://x", Model: "m"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "https://x", APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("Authorization = %q", got)
		}
		var payload struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Model != "test-model" {
			t.Fatalf("model = %q", payload.Model)
		}
		if len(payload.Messages) != 2 || payload.Messages[0].Role != RoleSystem {
			t.Fatalf("messages = %#v", payload.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "SELECT 1"}},
			},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "test-key", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	got, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "system"},
		{Role: RoleUser, Content: "user"},
	}, 100)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "SELECT 1" {
		t.Fatalf("Complete() = %q", got)
	}
}

func TestOpenAIClientCompleteErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, 0); err == nil {
		t.Fatal("expected error for 429 response")
	}
}
