package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbridge/chatbridge/bridge"
	"github.com/chatbridge/chatbridge/chat"
	"github.com/chatbridge/chatbridge/common/logger"
	"github.com/chatbridge/chatbridge/middleware"
	"github.com/chatbridge/chatbridge/session"
)

type fakeCompleter struct {
	mu         sync.Mutex
	history    []chat.Turn
	completeFn func(ctx context.Context, history []chat.Turn, opts bridge.Options) (chat.Turn, bridge.Usage, error)
	streamFn   func(ctx context.Context, history []chat.Turn, opts bridge.Options) (*chat.Stream, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, history []chat.Turn, opts bridge.Options) (chat.Turn, bridge.Usage, error) {
	f.mu.Lock()
	f.history = append([]chat.Turn(nil), history...)
	f.mu.Unlock()
	if f.completeFn != nil {
		return f.completeFn(ctx, history, opts)
	}
	return chat.AssistantTurn("hi there"), bridge.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

func (f *fakeCompleter) CompleteStream(ctx context.Context, history []chat.Turn, opts bridge.Options) (*chat.Stream, error) {
	f.mu.Lock()
	f.history = append([]chat.Turn(nil), history...)
	f.mu.Unlock()
	if f.streamFn != nil {
		return f.streamFn(ctx, history, opts)
	}
	stream, writer := chat.NewStream(nil)
	go func() {
		writer.Write("hi ")
		writer.Write("there")
		writer.CloseWithError(nil)
	}()
	return stream, nil
}

func (f *fakeCompleter) Models() []string {
	return []string{"claude-3-5-sonnet-20241022"}
}

func (f *fakeCompleter) lastHistory() []chat.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history
}

func newTestServer(t *testing.T, fake *fakeCompleter) (*gin.Engine, *ChatAPI) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.RegisterValidators()

	api := &ChatAPI{
		Bridge:   fake,
		Sessions: session.NewMemoryStore(time.Minute),
	}

	r := gin.New()
	r.Use(sessions.Sessions("session", cookie.NewStore([]byte("test-secret"))))
	r.Use(func(c *gin.Context) {
		gmw.SetLogger(c, logger.Logger)
		c.Next()
	})
	r.POST("/api/chat", api.Relay)
	r.GET("/api/chat/history", api.History)
	r.DELETE("/api/chat/history", api.ClearHistory)
	r.GET("/api/models", api.Models)
	return r, api
}

// closeNotifyRecorder satisfies http.CloseNotifier, which gin's c.Stream
// requires from the response writer.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newCloseNotifyRecorder() *closeNotifyRecorder {
	return &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool, 1)}
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func doChat(t *testing.T, r *gin.Engine, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := newCloseNotifyRecorder()
	r.ServeHTTP(w, req)
	return w.ResponseRecorder
}

func getHistory(t *testing.T, r *gin.Engine, cookies []*http.Cookie) []chat.Turn {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Turns []chat.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Turns
}

func TestRelaySyncAppendsBothTurns(t *testing.T) {
	fake := &fakeCompleter{}
	r, _ := newTestServer(t, fake)

	w := doChat(t, r, `{"message":"hello"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, chat.RoleAssistant, resp.Turn.Role)
	assert.Equal(t, "hi there", resp.Turn.Text)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	// bridge saw the full outbound history ending in the user turn
	sent := fake.lastHistory()
	require.Len(t, sent, 1)
	assert.Equal(t, chat.UserTurn("hello"), sent[0])

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	turns := getHistory(t, r, cookies)
	require.Len(t, turns, 2)
	assert.Equal(t, chat.UserTurn("hello"), turns[0])
	assert.Equal(t, chat.AssistantTurn("hi there"), turns[1])

	// second exchange carries the prior turns
	w2 := doChat(t, r, `{"message":"and again"}`, cookies)
	require.Equal(t, http.StatusOK, w2.Code)
	sent = fake.lastHistory()
	require.Len(t, sent, 3)
	assert.Equal(t, chat.UserTurn("and again"), sent[2])
	assert.Len(t, getHistory(t, r, cookies), 4)
}

func TestRelayErrorLeavesBufferUnchanged(t *testing.T) {
	fake := &fakeCompleter{}
	r, _ := newTestServer(t, fake)

	w := doChat(t, r, `{"message":"hello"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, getHistory(t, r, cookies), 2)

	fake.completeFn = func(context.Context, []chat.Turn, bridge.Options) (chat.Turn, bridge.Usage, error) {
		return chat.Turn{}, bridge.Usage{}, &chat.TransportError{Op: "invoke"}
	}
	w2 := doChat(t, r, `{"message":"boom"}`, cookies)
	assert.Equal(t, http.StatusBadGateway, w2.Code)
	assert.Contains(t, w2.Body.String(), "transport_error")

	// the failed exchange left no trace, client can retry as-is
	assert.Len(t, getHistory(t, r, cookies), 2)
}

func TestRelayContextTooLarge(t *testing.T) {
	fake := &fakeCompleter{
		completeFn: func(context.Context, []chat.Turn, bridge.Options) (chat.Turn, bridge.Usage, error) {
			return chat.Turn{}, bridge.Usage{}, &chat.ContextTooLargeError{PromptTokens: 300000, Limit: 200000}
		},
	}
	r, _ := newTestServer(t, fake)

	w := doChat(t, r, `{"message":"hello"}`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "context_too_large")
	assert.Empty(t, getHistory(t, r, w.Result().Cookies()))
}

func TestRelayRejectsBadRequests(t *testing.T) {
	fake := &fakeCompleter{}
	r, _ := newTestServer(t, fake)

	for name, body := range map[string]string{
		"missing message":  `{}`,
		"temperature high": `{"message":"hi","temperature":1.5}`,
		"zero max tokens":  `{"message":"hi","max_tokens":-1}`,
		"not json":         `message=hi`,
	} {
		w := doChat(t, r, body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Contains(t, w.Body.String(), "configuration_error", name)
	}
	assert.Nil(t, fake.lastHistory())
}

func TestRelayRejectsConcurrentCompletion(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fake := &fakeCompleter{}
	r, _ := newTestServer(t, fake)

	// mint the session first so both requests share one buffer
	w := doChat(t, r, `{"message":"warmup"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()

	fake.completeFn = func(context.Context, []chat.Turn, bridge.Options) (chat.Turn, bridge.Usage, error) {
		close(entered)
		<-release
		return chat.AssistantTurn("slow"), bridge.Usage{}, nil
	}

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		firstDone <- doChat(t, r, `{"message":"long running"}`, cookies)
	}()
	<-entered

	w2 := doChat(t, r, `{"message":"impatient"}`, cookies)
	assert.Equal(t, http.StatusConflict, w2.Code)
	assert.Contains(t, w2.Body.String(), "busy")

	close(release)
	first := <-firstDone
	assert.Equal(t, http.StatusOK, first.Code)

	// only the completed exchange landed in the buffer
	assert.Len(t, getHistory(t, r, cookies), 4)
}

func TestRelayStreamDeliversFragmentsAndCommits(t *testing.T) {
	fake := &fakeCompleter{}
	r, _ := newTestServer(t, fake)

	w := doChat(t, r, `{"message":"hello","stream":true}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	assert.Contains(t, body, `"delta":"hi "`)
	assert.Contains(t, body, `"delta":"there"`)
	assert.True(t, strings.Contains(body, "data: [DONE]"))

	turns := getHistory(t, r, w.Result().Cookies())
	require.Len(t, turns, 2)
	assert.Equal(t, chat.UserTurn("hello"), turns[0])
	assert.Equal(t, chat.AssistantTurn("hi there"), turns[1])
}

func TestRelayStreamErrorLeavesBufferUnchanged(t *testing.T) {
	fake := &fakeCompleter{
		streamFn: func(context.Context, []chat.Turn, bridge.Options) (*chat.Stream, error) {
			stream, writer := chat.NewStream(nil)
			go func() {
				writer.Write("partial")
				writer.CloseWithError(&chat.TransportError{Op: "stream"})
			}()
			return stream, nil
		},
	}
	r, _ := newTestServer(t, fake)

	w := doChat(t, r, `{"message":"hello","stream":true}`, nil)
	body := w.Body.String()
	assert.Contains(t, body, `"delta":"partial"`)
	assert.Contains(t, body, "transport_error")
	assert.NotContains(t, body, "[DONE]")

	// partial replies never land in the buffer
	assert.Empty(t, getHistory(t, r, w.Result().Cookies()))
}

func TestRelayStreamDialErrorMapsStatus(t *testing.T) {
	fake := &fakeCompleter{
		streamFn: func(context.Context, []chat.Turn, bridge.Options) (*chat.Stream, error) {
			return nil, &chat.TransportError{Op: "invoke stream"}
		},
	}
	r, _ := newTestServer(t, fake)

	w := doChat(t, r, `{"message":"hello","stream":true}`, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "transport_error")
}

func TestClearHistoryStartsFresh(t *testing.T) {
	fake := &fakeCompleter{}
	r, _ := newTestServer(t, fake)

	w := doChat(t, r, `{"message":"hello"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, getHistory(t, r, cookies), 2)

	req := httptest.NewRequest(http.MethodDelete, "/api/chat/history", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, getHistory(t, r, cookies))

	// the next message starts a new conversation under the same cookie
	w2 := doChat(t, r, `{"message":"again"}`, cookies)
	require.Equal(t, http.StatusOK, w2.Code)
	sent := fake.lastHistory()
	require.Len(t, sent, 1)
	assert.Equal(t, chat.UserTurn("again"), sent[0])
}

func TestHistoryWithoutSession(t *testing.T) {
	fake := &fakeCompleter{}
	r, _ := newTestServer(t, fake)

	assert.Empty(t, getHistory(t, r, nil))
}

func TestModelsEndpoint(t *testing.T) {
	fake := &fakeCompleter{}
	r, _ := newTestServer(t, fake)

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "claude-3-5-sonnet-20241022")
}
