package bridge

import (
	"github.com/chatbridge/chatbridge/chat"
	"github.com/chatbridge/chatbridge/common/config"
)

// ContextPolicy selects the behavior when a history exceeds the context limit.
type ContextPolicy string

const (
	// PolicyFail rejects oversized histories with ContextTooLargeError.
	PolicyFail ContextPolicy = "fail"
	// PolicySlide drops the oldest non-system turns until the prompt fits.
	PolicySlide ContextPolicy = "slide"
)

// Options carries the per-request model parameters. The zero value is not
// usable; start from Defaults and override.
type Options struct {
	// ModelID is the short model name, resolved by the bridge's registry.
	ModelID string
	// Temperature is the sampling temperature, nil for the endpoint default.
	// Bedrock Claude accepts [0, 1].
	Temperature *float64
	// MaxTokens caps the reply length.
	MaxTokens int
	// MaxContextTokens bounds the estimated prompt size.
	MaxContextTokens int
	// ContextPolicy governs oversized histories.
	ContextPolicy ContextPolicy
	// System is prepended as the conversation's system prompt when no system
	// turn is present in the history.
	System string
}

// Defaults builds Options from the process configuration.
func Defaults() Options {
	temp := config.DefaultTemperature
	return Options{
		ModelID:          config.DefaultModel,
		Temperature:      &temp,
		MaxTokens:        config.DefaultMaxToken,
		MaxContextTokens: config.MaxContextTokens,
		ContextPolicy:    ContextPolicy(config.ContextPolicy),
		System:           config.SystemPrompt,
	}
}

// Validate reports the first invalid parameter as a ConfigurationError.
func (o Options) Validate() error {
	if o.ModelID == "" {
		return &chat.ConfigurationError{Field: "model", Reason: "must not be empty"}
	}
	if o.Temperature != nil && (*o.Temperature < 0 || *o.Temperature > 1) {
		return &chat.ConfigurationError{Field: "temperature", Reason: "must be within [0, 1]"}
	}
	if o.MaxTokens <= 0 {
		return &chat.ConfigurationError{Field: "max_tokens", Reason: "must be positive"}
	}
	if o.MaxContextTokens <= 0 {
		return &chat.ConfigurationError{Field: "max_context_tokens", Reason: "must be positive"}
	}
	switch o.ContextPolicy {
	case PolicyFail, PolicySlide:
	default:
		return &chat.ConfigurationError{Field: "context_policy", Reason: `must be "fail" or "slide"`}
	}
	return nil
}
