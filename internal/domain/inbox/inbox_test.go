package inbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingchat/internal/domain/conversations"
)

func TestAssembleKeepsEveryConversationInOrder(t *testing.T) {
	convs := []conversations.Conversation{{ID: "c2"}, {ID: "c1"}, {ID: "c3"}}
	latest := map[conversations.ConversationID]conversations.Message{
		"c1": {ID: "m9", ConversationID: "c1", Body: "hello"},
		"zz": {ID: "m0", ConversationID: "zz"},
	}

	entries := Assemble(convs, latest)
	require.Len(t, entries, 3)
	assert.Equal(t, conversations.ConversationID("c2"), entries[0].Conversation.ID)
	assert.True(t, entries[0].NoMessagesYet())
	assert.Nil(t, entries[0].LatestMessage)

	assert.Equal(t, StateActive, entries[1].State)
	require.NotNil(t, entries[1].LatestMessage)
	assert.Equal(t, "hello", entries[1].LatestMessage.Body)

	assert.True(t, entries[2].NoMessagesYet())
}

func TestAssembleEmpty(t *testing.T) {
	assert.Empty(t, Assemble(nil, nil))
	assert.Equal(t, []conversations.ConversationID{"a", "b"}, IDs([]conversations.Conversation{{ID: "a"}, {ID: "b"}}))
}
