package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendTarget(t *testing.T) {
	byConversation := ByConversation("alice_bob")
	conversationId, ok := byConversation.Conversation()
	assert.True(t, ok)
	assert.Equal(t, "alice_bob", conversationId)
	_, ok = byConversation.Counterpart()
	assert.False(t, ok)
	assert.False(t, byConversation.IsZero())

	byCounterpart := ByCounterpart("bob")
	counterpartId, ok := byCounterpart.Counterpart()
	assert.True(t, ok)
	assert.Equal(t, "bob", counterpartId)
	_, ok = byCounterpart.Conversation()
	assert.False(t, ok)

	assert.True(t, SendTarget{}.IsZero())
}
