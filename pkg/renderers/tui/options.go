package tui

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/runtime"
)

// OutputFormat controls how collected values are serialized.
type OutputFormat string

const (
	// OutputFormatJSON emits application/json payloads.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatFormURLEncoded emits application/x-www-form-urlencoded payloads.
	OutputFormatFormURLEncoded OutputFormat = "form"
	// OutputFormatPrettyText emits one name=value line per field.
	OutputFormatPrettyText OutputFormat = "pretty"
)

// ParseOutputFormat validates a format name. Empty means OutputFormatJSON.
func ParseOutputFormat(raw string) (OutputFormat, error) {
	switch OutputFormat(raw) {
	case "", OutputFormatJSON:
		return OutputFormatJSON, nil
	case OutputFormatFormURLEncoded, OutputFormatPrettyText:
		return OutputFormat(raw), nil
	}
	return "", fmt.Errorf("tui: unknown output format %q", raw)
}

// DefaultRetryRounds bounds how often fields with errors are asked again
// after the first pass.
const DefaultRetryRounds = 2

// OptionLoader resolves the choices of an API-backed select field.
type OptionLoader func(ctx context.Context, def model.FieldDefinition) ([]model.Option, error)

// Option configures the TUI renderer.
type Option func(*Renderer)

// WithPromptDriver overrides the prompt driver used by the renderer.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Renderer) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithOutputFormat selects the output serialization format.
func WithOutputFormat(format OutputFormat) Option {
	return func(r *Renderer) {
		if format != "" {
			r.outputFormat = format
		}
	}
}

// WithPayloadMode selects how select values are submitted.
func WithPayloadMode(mode runtime.PayloadMode) Option {
	return func(r *Renderer) {
		if mode != "" {
			r.payloadMode = mode
		}
	}
}

// WithOptionLoader resolves API-backed selects before they are prompted.
// Without one those fields are offered whatever options the session holds.
func WithOptionLoader(loader OptionLoader) Option {
	return func(r *Renderer) {
		r.loadOptions = loader
	}
}

// WithRetryRounds overrides DefaultRetryRounds. Zero disables retries.
func WithRetryRounds(n int) Option {
	return func(r *Renderer) {
		if n >= 0 {
			r.retryRounds = n
		}
	}
}

// WithLogger overrides the renderer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}
