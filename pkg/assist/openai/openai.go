// Package openai adapts the OpenAI chat completion API to the assist
// collaborator interfaces.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/goliatone/go-formrules/pkg/assist"
)

const (
	DefaultModel       = goopenai.GPT3Dot5Turbo
	DefaultVisionModel = goopenai.GPT4oMini
	DefaultMaxTokens   = 150
	DefaultTemperature = 0.3
)

// ChatClient is the subset of *goopenai.Client the adapter calls.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey builds the underlying client from key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(url)
	}
}

// WithChatClient injects a preconfigured client, mainly for tests.
func WithChatClient(chat ChatClient) Option {
	return func(c *Client) {
		c.chat = chat
	}
}

// WithModel sets the completion model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithVisionModel sets the model used for image checks.
func WithVisionModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.visionModel = model
		}
	}
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithLogger overrides the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client implements assist.Completer and assist.QualityChecker.
type Client struct {
	chat        ChatClient
	apiKey      string
	baseURL     string
	model       string
	visionModel string
	maxTokens   int
	logger      *slog.Logger
}

var (
	_ assist.Completer      = (*Client)(nil)
	_ assist.QualityChecker = (*Client)(nil)
)

// New builds a Client. Either WithAPIKey or WithChatClient is required.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		model:       DefaultModel,
		visionModel: DefaultVisionModel,
		maxTokens:   DefaultMaxTokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.chat == nil {
		if c.apiKey == "" {
			return nil, errors.New("openai: api key is required")
		}
		cfg := goopenai.DefaultConfig(c.apiKey)
		if c.baseURL != "" {
			cfg.BaseURL = c.baseURL
		}
		c.chat = goopenai.NewClientWithConfig(cfg)
	}
	c.logger.Info("openai collaborator ready", "model", c.model, "vision_model", c.visionModel)
	return c, nil
}

// Complete sends prompt with the assist system message.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: assist.SystemMessage},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: DefaultTemperature,
	}
	return c.first(ctx, req)
}

// CheckImage asks the vision model for a quality verdict on image.
func (c *Client) CheckImage(ctx context.Context, image assist.Image) (string, error) {
	if len(image.Data) == 0 {
		return "", errors.New("openai: image is empty")
	}
	mime := image.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image.Data)
	req := goopenai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []goopenai.ChatCompletionMessage{{
			Role: goopenai.ChatMessageRoleUser,
			MultiContent: []goopenai.ChatMessagePart{
				{Type: goopenai.ChatMessagePartTypeText, Text: assist.ImageQualityPrompt},
				{Type: goopenai.ChatMessagePartTypeImageURL, ImageURL: &goopenai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: goopenai.ImageURLDetailLow,
				}},
			},
		}},
	}
	return c.first(ctx, req)
}

func (c *Client) first(ctx context.Context, req goopenai.ChatCompletionRequest) (string, error) {
	c.logger.Debug("openai chat completion", "model", req.Model)
	resp, err := c.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
