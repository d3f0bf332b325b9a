// Package bedrock implements the completion bridge against AWS Bedrock's
// Anthropic messages API, using the native InvokeModel payload for
// synchronous completions and InvokeModelWithResponseStream for streamed ones.
package bedrock

import (
	"context"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/chatbridge/chatbridge/bridge"
	"github.com/chatbridge/chatbridge/chat"
	"github.com/chatbridge/chatbridge/common/config"
)

var _ bridge.Completer = new(Bridge)

// InvokeAPI is the slice of the bedrockruntime client the bridge consumes.
// Tests inject fakes through it.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput,
		optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput,
		optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

// Bridge is stateless across calls; everything request-specific arrives as
// history and options.
type Bridge struct {
	client   InvokeAPI
	observer func(model string, u bridge.Usage)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithObserver registers a callback invoked with final usage for every
// completed request, including streamed ones whose usage only materializes
// after the last event.
func WithObserver(fn func(model string, u bridge.Usage)) Option {
	return func(b *Bridge) { b.observer = fn }
}

// New builds a Bridge on the ambient AWS credential resolution chain
// (environment, shared config, instance roles). AwsAccessKey/AwsSecretKey
// switch to static credentials when both are set.
func New(ctx context.Context, opts ...Option) (*Bridge, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.AwsRegion),
	}
	if config.AwsAccessKey != "" && config.AwsSecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AwsAccessKey, config.AwsSecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return NewWithClient(bedrockruntime.NewFromConfig(awsCfg), opts...), nil
}

// NewWithClient builds a Bridge around an existing client. Used by tests and
// by callers that share one bedrockruntime client.
func NewWithClient(client InvokeAPI, opts ...Option) *Bridge {
	b := &Bridge{client: client, observer: func(string, bridge.Usage) {}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// prepare validates inputs, applies the context policy and serializes the
// outbound payload.
func (b *Bridge) prepare(history []chat.Turn, opts bridge.Options) (modelID string, body []byte, err error) {
	if err := opts.Validate(); err != nil {
		return "", nil, err
	}
	if err := bridge.ValidateHistory(history); err != nil {
		return "", nil, err
	}
	modelID, err = resolveModelID(opts.ModelID)
	if err != nil {
		return "", nil, err
	}
	fitted, err := bridge.FitContext(history, opts)
	if err != nil {
		return "", nil, err
	}
	body, err = marshalRequest(fitted, opts)
	if err != nil {
		return "", nil, err
	}
	return modelID, body, nil
}

// Complete issues one synchronous InvokeModel call and returns the assistant
// turn. The input history is never modified.
func (b *Bridge) Complete(ctx context.Context, history []chat.Turn, opts bridge.Options) (chat.Turn, bridge.Usage, error) {
	modelID, body, err := b.prepare(history, opts)
	if err != nil {
		return chat.Turn{}, bridge.Usage{}, err
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return chat.Turn{}, bridge.Usage{}, mapError("InvokeModel", opts.MaxContextTokens, err)
	}

	turn, u, err := parseResponse(out.Body)
	if err != nil {
		return chat.Turn{}, bridge.Usage{}, &chat.TransportError{Op: "InvokeModel", Err: err}
	}
	b.observer(opts.ModelID, u)
	return turn, u, nil
}

// CompleteStream issues one InvokeModelWithResponseStream call and returns
// the reply as a lazy fragment sequence. Closing the stream abandons the
// underlying connection; the producer goroutine exits on its own.
func (b *Bridge) CompleteStream(ctx context.Context, history []chat.Turn, opts bridge.Options) (*chat.Stream, error) {
	modelID, body, err := b.prepare(history, opts)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithCancel(ctx)
	out, err := b.client.InvokeModelWithResponseStream(cctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		cancel()
		return nil, mapError("InvokeModelWithResponseStream", opts.MaxContextTokens, err)
	}

	events := out.GetStream()
	stream, writer := chat.NewStream(cancel)
	go func() {
		defer events.Close()
		b.consumeEvents(events.Events(), events.Err, writer, opts)
	}()
	return stream, nil
}

// consumeEvents decodes streaming payload parts into fragments until the
// message stops, the channel closes, or the consumer walks away.
func (b *Bridge) consumeEvents(events <-chan types.ResponseStream, streamErr func() error,
	writer *chat.StreamWriter, opts bridge.Options) {
	var total bridge.Usage
	for event := range events {
		chunk, ok := event.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		text, u, done, err := parseChunk(chunk.Value.Bytes)
		if err != nil {
			writer.CloseWithError(&chat.TransportError{Op: "InvokeModelWithResponseStream", Err: err})
			return
		}
		if u != nil {
			if u.PromptTokens > 0 {
				total.PromptTokens = u.PromptTokens
			}
			if u.CompletionTokens > 0 {
				total.CompletionTokens = u.CompletionTokens
			}
		}
		if text != "" && !writer.Write(text) {
			// consumer closed, request already cancelled
			return
		}
		if done {
			break
		}
	}
	if err := streamErr(); err != nil {
		writer.CloseWithError(mapError("InvokeModelWithResponseStream", opts.MaxContextTokens, err))
		return
	}
	total.TotalTokens = total.PromptTokens + total.CompletionTokens
	b.observer(opts.ModelID, total)
	writer.CloseWithError(nil)
}

// Models lists the short model names the registry resolves.
func (b *Bridge) Models() []string {
	return KnownModels()
}
