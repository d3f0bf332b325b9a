package bridge

import (
	"sync"

	"github.com/Laisky/zap"
	"github.com/pkoukk/tiktoken-go"

	"github.com/chatbridge/chatbridge/chat"
	"github.com/chatbridge/chatbridge/common/logger"
)

// Claude does not publish a local tokenizer; cl100k_base over-counts by a few
// percent which errs on the safe side for a pre-flight limit check.
const encodingName = "cl100k_base"

// tokensPerTurn accounts for the per-message framing overhead in the
// serialized request.
const tokensPerTurn = 4

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

func getEncoder() *tiktoken.Tiktoken {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			// Keep serving with the byte heuristic rather than failing chats.
			logger.Logger.Error("failed to load token encoder, falling back to byte estimate",
				zap.String("encoding", encodingName), zap.Error(err))
			return
		}
		encoder = enc
	})
	return encoder
}

// EstimateTokens approximates the prompt size of a serialized history.
func EstimateTokens(history []chat.Turn) int {
	enc := getEncoder()
	total := 0
	for i := range history {
		total += tokensPerTurn
		if enc != nil {
			total += len(enc.Encode(history[i].Text, nil, nil))
		} else {
			// ~4 bytes per token holds well enough for English prose
			total += len(history[i].Text)/4 + 1
		}
	}
	return total
}

// FitContext applies the context policy to a history before serialization.
// With PolicyFail it returns ContextTooLargeError for oversized histories.
// With PolicySlide it drops the oldest non-system turns until the estimate
// fits; system turns are always retained. The input is never modified.
func FitContext(history []chat.Turn, opts Options) ([]chat.Turn, error) {
	estimate := EstimateTokens(history)
	if estimate <= opts.MaxContextTokens {
		return history, nil
	}
	if opts.ContextPolicy != PolicySlide {
		return nil, &chat.ContextTooLargeError{PromptTokens: estimate, Limit: opts.MaxContextTokens}
	}

	kept := make([]chat.Turn, len(history))
	copy(kept, history)
	for estimate > opts.MaxContextTokens {
		dropped := false
		for i := range kept {
			if kept[i].Role == chat.RoleSystem {
				continue
			}
			// never drop the trailing user turn being answered
			if i == len(kept)-1 {
				break
			}
			kept = append(kept[:i], kept[i+1:]...)
			dropped = true
			break
		}
		if !dropped {
			return nil, &chat.ContextTooLargeError{PromptTokens: estimate, Limit: opts.MaxContextTokens}
		}
		estimate = EstimateTokens(kept)
	}
	return kept, nil
}
