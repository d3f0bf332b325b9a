package bedrock

import (
	"regexp"
	"sort"

	"github.com/chatbridge/chatbridge/chat"
)

// Short model names accepted by the API mapped to Bedrock model identifiers.
// https://docs.aws.amazon.com/bedrock/latest/userguide/model-ids.html
var modelIDMap = map[string]string{
	"claude-3-haiku-20240307":    "anthropic.claude-3-haiku-20240307-v1:0",
	"claude-3-sonnet-20240229":   "anthropic.claude-3-sonnet-20240229-v1:0",
	"claude-3-opus-20240229":     "anthropic.claude-3-opus-20240229-v1:0",
	"claude-3-5-sonnet-20240620": "anthropic.claude-3-5-sonnet-20240620-v1:0",
	"claude-3-5-sonnet-20241022": "us.anthropic.claude-3-5-sonnet-20241022-v2:0",
	"claude-3-5-haiku-20241022":  "anthropic.claude-3-5-haiku-20241022-v1:0",
	"claude-3-7-sonnet-20250219": "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	"claude-sonnet-4-20250514":   "us.anthropic.claude-sonnet-4-20250514-v1:0",
	"claude-opus-4-20250514":     "us.anthropic.claude-opus-4-20250514-v1:0",
}

// Callers may address provisioned throughput or inference profiles directly.
var awsArnMatch = regexp.MustCompile(`^arn:aws(-[a-z]+)*:bedrock`)

// resolveModelID maps a short name to the Bedrock model identifier. Raw
// Bedrock ids (anthropic.*, region-prefixed profiles) and ARNs pass through.
func resolveModelID(name string) (string, error) {
	if id, ok := modelIDMap[name]; ok {
		return id, nil
	}
	if awsArnMatch.MatchString(name) {
		return name, nil
	}
	if bedrockIDMatch.MatchString(name) {
		return name, nil
	}
	return "", &chat.ConfigurationError{Field: "model", Reason: "unknown model " + name}
}

var bedrockIDMatch = regexp.MustCompile(`^([a-z]{2}\.)?anthropic\.[a-z0-9.:-]+$`)

// KnownModels returns the registry's short names, sorted.
func KnownModels() []string {
	models := make([]string, 0, len(modelIDMap))
	for name := range modelIDMap {
		models = append(models, name)
	}
	sort.Strings(models)
	return models
}
