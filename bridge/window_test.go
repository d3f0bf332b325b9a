package bridge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbridge/chatbridge/chat"
)

func testOptions(limit int, policy ContextPolicy) Options {
	temp := 0.7
	return Options{
		ModelID:          "claude-3-5-sonnet-20241022",
		Temperature:      &temp,
		MaxTokens:        256,
		MaxContextTokens: limit,
		ContextPolicy:    policy,
	}
}

func TestEstimateTokensGrowsWithHistory(t *testing.T) {
	short := []chat.Turn{chat.UserTurn("hi")}
	long := []chat.Turn{
		chat.UserTurn("hi"),
		chat.AssistantTurn(strings.Repeat("a detailed answer ", 50)),
		chat.UserTurn("tell me more"),
	}
	assert.Greater(t, EstimateTokens(long), EstimateTokens(short))
	assert.Positive(t, EstimateTokens(short))
}

func TestFitContextWithinLimitPassesThrough(t *testing.T) {
	history := []chat.Turn{chat.UserTurn("Hello")}
	fitted, err := FitContext(history, testOptions(1000, PolicyFail))
	require.NoError(t, err)
	assert.Equal(t, history, fitted)
}

func TestFitContextFailPolicy(t *testing.T) {
	history := []chat.Turn{chat.UserTurn(strings.Repeat("word ", 500))}
	_, err := FitContext(history, testOptions(10, PolicyFail))
	require.Error(t, err)

	var tooLarge *chat.ContextTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, 10, tooLarge.Limit)
	assert.Greater(t, tooLarge.PromptTokens, 10)
}

func TestFitContextSlideDropsOldestNonSystem(t *testing.T) {
	filler := strings.Repeat("lorem ipsum dolor ", 20)
	history := []chat.Turn{
		chat.SystemTurn("stay terse"),
		chat.UserTurn(filler),
		chat.AssistantTurn(filler),
		chat.UserTurn("latest question"),
	}
	limit := EstimateTokens([]chat.Turn{history[0], history[2], history[3]}) + tokensPerTurn

	fitted, err := FitContext(history, testOptions(limit, PolicySlide))
	require.NoError(t, err)

	// oldest non-system turn gone, order of the rest preserved
	require.Len(t, fitted, 3)
	assert.Equal(t, chat.RoleSystem, fitted[0].Role)
	assert.Equal(t, filler, fitted[1].Text)
	assert.Equal(t, "latest question", fitted[2].Text)

	// input untouched
	assert.Len(t, history, 4)
}

func TestFitContextSlideCannotFitFinalTurn(t *testing.T) {
	history := []chat.Turn{
		chat.SystemTurn("s"),
		chat.UserTurn(strings.Repeat("enormous ", 400)),
	}
	_, err := FitContext(history, testOptions(8, PolicySlide))
	var tooLarge *chat.ContextTooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

func TestOptionsValidate(t *testing.T) {
	base := testOptions(1000, PolicyFail)
	require.NoError(t, base.Validate())

	cases := []struct {
		name   string
		mutate func(*Options)
		field  string
	}{
		{"missing model", func(o *Options) { o.ModelID = "" }, "model"},
		{"temperature too high", func(o *Options) { v := 1.5; o.Temperature = &v }, "temperature"},
		{"temperature negative", func(o *Options) { v := -0.1; o.Temperature = &v }, "temperature"},
		{"zero max tokens", func(o *Options) { o.MaxTokens = 0 }, "max_tokens"},
		{"zero context budget", func(o *Options) { o.MaxContextTokens = 0 }, "max_context_tokens"},
		{"unknown policy", func(o *Options) { o.ContextPolicy = "summarize" }, "context_policy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := testOptions(1000, PolicyFail)
			tc.mutate(&opts)
			err := opts.Validate()
			var confErr *chat.ConfigurationError
			require.ErrorAs(t, err, &confErr)
			assert.Equal(t, tc.field, confErr.Field)
		})
	}
}

func TestValidateHistory(t *testing.T) {
	require.Error(t, ValidateHistory(nil))
	require.Error(t, ValidateHistory([]chat.Turn{chat.AssistantTurn("hi")}))
	require.Error(t, ValidateHistory([]chat.Turn{{Role: "narrator", Text: "x"}, chat.UserTurn("y")}))
	require.NoError(t, ValidateHistory([]chat.Turn{chat.UserTurn("Hello")}))
}
