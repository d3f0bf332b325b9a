package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationAppendOrder(t *testing.T) {
	c := NewConversation()
	require.NoError(t, c.Append(UserTurn("Hello")))
	require.NoError(t, c.Append(AssistantTurn("Hi there")))
	require.NoError(t, c.Append(UserTurn("How are you?")))

	turns := c.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, UserTurn("Hello"), turns[0])
	assert.Equal(t, AssistantTurn("Hi there"), turns[1])
	assert.Equal(t, UserTurn("How are you?"), turns[2])

	role, ok := c.LastRole()
	require.True(t, ok)
	assert.Equal(t, RoleUser, role)
}

func TestConversationRejectsInvalidRole(t *testing.T) {
	c := NewConversation()
	err := c.Append(Turn{Role: "moderator", Text: "nope"})
	require.Error(t, err)
	assert.Zero(t, c.Len())
}

func TestTurnsReturnsCopy(t *testing.T) {
	c := NewConversation()
	require.NoError(t, c.Append(UserTurn("original")))

	turns := c.Turns()
	turns[0].Text = "mutated"
	// extending the copy must not alias into the buffer either
	_ = append(turns, AssistantTurn("phantom"))

	got := c.Turns()
	require.Len(t, got, 1)
	assert.Equal(t, "original", got[0].Text)
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewConversation()
	require.NoError(t, c.Append(SystemTurn("be brief")))
	require.NoError(t, c.Append(UserTurn("hi")))

	clone := c.Clone()
	require.NoError(t, clone.Append(AssistantTurn("hello")))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, clone.Len())
}

func TestLastRoleEmpty(t *testing.T) {
	c := NewConversation()
	_, ok := c.LastRole()
	assert.False(t, ok)
}

func TestConversationJSONRoundTrip(t *testing.T) {
	c := FromTurns([]Turn{
		SystemTurn("be helpful"),
		UserTurn("Hello"),
		AssistantTurn("Hi!"),
	})

	data, err := json.Marshal(c)
	require.NoError(t, err)

	decoded := NewConversation()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, c.Turns(), decoded.Turns())
}

func TestConversationJSONRejectsBadRole(t *testing.T) {
	decoded := NewConversation()
	err := json.Unmarshal([]byte(`[{"role":"robot","text":"hi"}]`), decoded)
	require.Error(t, err)
}
