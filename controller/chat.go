// Package controller exposes the chat service over HTTP: one completion
// endpoint (sync or SSE), the session history surface, and service metadata.
package controller

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/chatbridge/chatbridge/bridge"
	"github.com/chatbridge/chatbridge/chat"
	"github.com/chatbridge/chatbridge/common"
	"github.com/chatbridge/chatbridge/common/ctxkey"
	"github.com/chatbridge/chatbridge/common/graceful"
	"github.com/chatbridge/chatbridge/common/helper"
	"github.com/chatbridge/chatbridge/common/logger"
	"github.com/chatbridge/chatbridge/common/random"
	"github.com/chatbridge/chatbridge/docstore"
	"github.com/chatbridge/chatbridge/monitor"
	"github.com/chatbridge/chatbridge/session"
)

// sessionCookieKey names the conversation id inside the session cookie.
const sessionCookieKey = "conversation_id"

// ChatAPI wires the completion bridge, the session registry and the optional
// guidance-document store into gin handlers.
type ChatAPI struct {
	Bridge   bridge.Completer
	Sessions session.Store
	// Docs is nil when no context bucket is configured.
	Docs *docstore.Store
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
	Stream  bool   `json:"stream"`
	// optional per-request overrides
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature" binding:"omitempty,temperature"`
	MaxTokens   int      `json:"max_tokens" binding:"omitempty,gt=0"`
}

type chatResponse struct {
	SessionID string       `json:"session_id"`
	Turn      chat.Turn    `json:"turn"`
	Usage     bridge.Usage `json:"usage"`
}

// streamDelta is one SSE data payload.
type streamDelta struct {
	Delta string `json:"delta"`
	Model string `json:"model"`
}

// resolveSession returns the caller's session, minting the cookie and the
// buffer on first contact.
func (api *ChatAPI) resolveSession(c *gin.Context) (*session.Session, error) {
	cookie := sessions.Default(c)
	id, _ := cookie.Get(sessionCookieKey).(string)
	if id == "" {
		id = random.GetUUID()
		cookie.Set(sessionCookieKey, id)
		if err := cookie.Save(); err != nil {
			return nil, err
		}
	}
	c.Set(ctxkey.SessionID, id)

	s, err := api.Sessions.Get(gmw.Ctx(c), id)
	if err == nil {
		return s, nil
	}
	if err != session.ErrNotFound {
		return nil, err
	}
	s = session.New(id)
	if err := api.Sessions.Put(gmw.Ctx(c), s); err != nil {
		return nil, err
	}
	return s, nil
}

// requestOptions folds per-request overrides into the configured defaults.
func requestOptions(req *chatRequest) bridge.Options {
	opts := bridge.Defaults()
	if req.Model != "" {
		opts.ModelID = req.Model
	}
	if req.Temperature != nil {
		opts.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		opts.MaxTokens = req.MaxTokens
	}
	return opts
}

// Relay handles POST /api/chat: append the user turn, run one completion,
// append the reply. On any failure the buffer keeps its pre-request state.
func (api *ChatAPI) Relay(c *gin.Context) {
	if graceful.IsDraining() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{
			"message": "server is shutting down",
			"type":    "draining",
		}})
		return
	}
	done := graceful.BeginRequest()
	defer done()

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, &chat.ConfigurationError{Field: "request", Reason: err.Error()})
		return
	}

	s, err := api.resolveSession(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !s.TryAcquire() {
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{
			"message": "a completion is already in flight for this session",
			"type":    "busy",
		}})
		return
	}
	defer s.Release()

	opts := requestOptions(&req)
	c.Set(ctxkey.RequestModel, opts.ModelID)

	userTurn := chat.UserTurn(req.Message)
	history := append(s.Conversation.Turns(), userTurn)
	outbound := api.augment(c, history, req.Message)

	start := time.Now()
	if req.Stream {
		api.relayStream(c, s, userTurn, outbound, opts, start)
		return
	}

	turn, usage, err := api.Bridge.Complete(gmw.Ctx(c), outbound, opts)
	monitor.RecordCompletion(opts.ModelID, "sync", start, err)
	if err != nil {
		abortWithError(c, err)
		return
	}

	api.commit(c, s, userTurn, turn)
	gmw.GetLogger(c).Info("completion finished",
		zap.String("model", opts.ModelID),
		zap.Int("total_tokens", usage.TotalTokens),
		zap.Int64("elapsed_ms", helper.CalcElapsedTime(start)))
	c.JSON(http.StatusOK, chatResponse{SessionID: s.ID, Turn: turn, Usage: usage})
}

// augment substitutes the outbound user turn with the document-grounded
// prompt. The buffer keeps the raw message; only the wire request changes.
func (api *ChatAPI) augment(c *gin.Context, history []chat.Turn, message string) []chat.Turn {
	if api.Docs == nil {
		return history
	}
	prompt, err := api.Docs.BuildPrompt(gmw.Ctx(c), message)
	if err != nil {
		// guidance is best-effort, the chat must not fail because of it
		gmw.GetLogger(c).Warn("failed to build document context, sending raw message", zap.Error(err))
		return history
	}
	outbound := make([]chat.Turn, len(history))
	copy(outbound, history)
	outbound[len(outbound)-1] = chat.UserTurn(prompt)
	return outbound
}

// commit appends the exchanged turns and refreshes the session TTL.
func (api *ChatAPI) commit(c *gin.Context, s *session.Session, turns ...chat.Turn) {
	for _, t := range turns {
		if err := s.Conversation.Append(t); err != nil {
			logger.Logger.Error("failed to append turn", zap.Error(err))
			return
		}
	}
	if err := api.Sessions.Put(gmw.Ctx(c), s); err != nil {
		gmw.GetLogger(c).Error("failed to persist session", zap.Error(err))
	}
}

// relayStream delivers the reply as SSE fragments and appends the assistant
// turn only once the stream fully drains; a disconnect or upstream error
// leaves the buffer untouched.
func (api *ChatAPI) relayStream(c *gin.Context, s *session.Session, userTurn chat.Turn,
	outbound []chat.Turn, opts bridge.Options, start time.Time) {
	lg := gmw.GetLogger(c)

	stream, err := api.Bridge.CompleteStream(gmw.Ctx(c), outbound, opts)
	if err != nil {
		monitor.RecordCompletion(opts.ModelID, "stream", start, err)
		abortWithError(c, err)
		return
	}
	defer stream.Close()

	monitor.StreamStarted()
	defer monitor.StreamFinished()
	common.SetEventStreamHeaders(c)

	var reply strings.Builder
	var streamErr error
	var finished bool

	clientGone := c.Stream(func(w io.Writer) bool {
		text, err := stream.Recv()
		if err == io.EOF {
			finished = true
			c.Render(-1, common.CustomEvent{Data: "data: [DONE]"})
			return false
		}
		if err != nil {
			streamErr = err
			_, payload := errorPayload(err)
			data, merr := json.Marshal(payload)
			if merr != nil {
				lg.Error("error marshalling stream error", zap.Error(merr))
				return false
			}
			c.Render(-1, common.CustomEvent{Data: "data: " + string(data)})
			return false
		}

		reply.WriteString(text)
		data, merr := json.Marshal(streamDelta{Delta: text, Model: opts.ModelID})
		if merr != nil {
			lg.Error("error marshalling stream response", zap.Error(merr))
			return true
		}
		c.Render(-1, common.CustomEvent{Data: "data: " + string(data)})
		return true
	})

	monitor.RecordCompletion(opts.ModelID, "stream", start, streamErr)

	if streamErr != nil || clientGone || !finished {
		// no partial assistant turn: the buffer stays as it was
		lg.Info("stream abandoned, buffer unchanged",
			zap.Bool("client_gone", clientGone),
			zap.Int64("elapsed_ms", helper.CalcElapsedTime(start)),
			zap.Error(streamErr))
		return
	}
	api.commit(c, s, userTurn, chat.AssistantTurn(reply.String()))
	lg.Info("stream finished",
		zap.String("model", opts.ModelID),
		zap.Int64("elapsed_ms", helper.CalcElapsedTime(start)))
}
