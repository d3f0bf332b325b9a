package controller

import (
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/chatbridge/chatbridge/chat"
	"github.com/chatbridge/chatbridge/session"
)

// History handles GET /api/chat/history: the caller's buffer in order, oldest
// first. A caller with no session yet gets an empty list, not an error.
func (api *ChatAPI) History(c *gin.Context) {
	cookie := sessions.Default(c)
	id, _ := cookie.Get(sessionCookieKey).(string)
	if id == "" {
		c.JSON(http.StatusOK, gin.H{"session_id": "", "turns": []chat.Turn{}})
		return
	}

	s, err := api.Sessions.Get(gmw.Ctx(c), id)
	if err == session.ErrNotFound {
		c.JSON(http.StatusOK, gin.H{"session_id": id, "turns": []chat.Turn{}})
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	// reading the history counts as activity
	if err := api.Sessions.Touch(gmw.Ctx(c), id); err != nil {
		gmw.GetLogger(c).Warn("failed to refresh session ttl", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"session_id": s.ID, "turns": s.Conversation.Turns()})
}

// ClearHistory handles DELETE /api/chat/history: discard the buffer so the
// next message starts a fresh conversation under the same cookie.
func (api *ChatAPI) ClearHistory(c *gin.Context) {
	cookie := sessions.Default(c)
	id, _ := cookie.Get(sessionCookieKey).(string)
	if id == "" {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
		return
	}
	if err := api.Sessions.Delete(gmw.Ctx(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
