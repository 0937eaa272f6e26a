package openai

import (
	"context"
	"errors"
	"strings"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/goliatone/go-formrules/pkg/assist"
)

type fakeChat struct {
	requests []goopenai.ChatCompletionRequest
	reply    string
	err      error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return goopenai.ChatCompletionResponse{}, f.err
	}
	return goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{Message: goopenai.ChatCompletionMessage{Content: "  " + f.reply + "\n"}}},
	}, nil
}

func TestCompleteSendsSystemAndPrompt(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{reply: `{"name":"Ada"}`}
	client, err := New(WithChatClient(chat), WithModel("test-model"))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	got, err := client.Complete(context.Background(), "fill it")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != `{"name":"Ada"}` {
		t.Fatalf("Complete = %q", got)
	}
	req := chat.requests[0]
	if req.Model != "test-model" || req.MaxTokens != DefaultMaxTokens {
		t.Fatalf("unexpected request settings: %+v", req)
	}
	if req.Messages[0].Content != assist.SystemMessage || req.Messages[1].Content != "fill it" {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
}

func TestCheckImageUsesVisionParts(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{reply: `{"is_blurry": true}`}
	client, err := New(WithChatClient(chat))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.CheckImage(context.Background(), assist.Image{Data: []byte("png"), MIMEType: "image/jpeg"}); err != nil {
		t.Fatalf("CheckImage returned error: %v", err)
	}
	parts := chat.requests[0].Messages[0].MultiContent
	if len(parts) != 2 || parts[1].ImageURL == nil {
		t.Fatalf("expected text and image parts, got %+v", parts)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected data url %q", parts[1].ImageURL.URL)
	}
	if chat.requests[0].Model != DefaultVisionModel {
		t.Fatalf("expected vision model, got %q", chat.requests[0].Model)
	}

	if _, err := client.CheckImage(context.Background(), assist.Image{}); err == nil {
		t.Fatalf("expected error for empty image")
	}
}

func TestErrorsAndConstruction(t *testing.T) {
	t.Parallel()

	if _, err := New(); err == nil {
		t.Fatalf("expected error without api key")
	}
	client, err := New(WithChatClient(&fakeChat{err: errors.New("rate limited")}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.Complete(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if _, err := New(WithAPIKey("sk-test"), WithBaseURL("http://localhost:1")); err != nil {
		t.Fatalf("New with key returned error: %v", err)
	}
}
