package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unimarket/internal/domain/entity"
	ws "unimarket/internal/infrastructure/websocket"
	"unimarket/pkg/response"
)

func TestFetchNextPageFlattensAndDedupes(t *testing.T) {
	chat := &stubChatAPI{
		listConversationsFn: func(page, _ int) ([]entity.Conversation, response.PageInfo, error) {
			info := response.PageInfo{Page: page, TotalPages: 2}
			if page == 1 {
				return []entity.Conversation{
					{CounterpartID: "alice", CounterpartName: "Alice", LastMessage: "hey"},
					{CounterpartID: "bob", CounterpartName: "Bob"},
				}, info, nil
			}
			return []entity.Conversation{
				// bob shows up again on page two with a fresher preview.
				{CounterpartID: "bob", CounterpartName: "Bob", LastMessage: "updated"},
				{CounterpartID: "carol", CounterpartName: "Carol"},
			}, info, nil
		},
	}
	uc := NewDirectoryUseCase(chat)

	require.NoError(t, uc.FetchNextPage(context.Background()))
	require.NoError(t, uc.FetchNextPage(context.Background()))

	items := uc.Conversations()
	require.Len(t, items, 3)
	assert.Equal(t, "alice", items[0].CounterpartID)
	assert.Equal(t, "bob", items[1].CounterpartID)
	assert.Equal(t, "updated", items[1].LastMessage)
	assert.Equal(t, "carol", items[2].CounterpartID)

	// All pages consumed: further calls are no-ops.
	require.NoError(t, uc.FetchNextPage(context.Background()))
	assert.Equal(t, int64(2), chat.listConversationsCalls.Load())
}

func seedDirectory(t *testing.T, conversations ...entity.Conversation) (*DirectoryUseCase, *stubChatAPI) {
	t.Helper()
	chat := &stubChatAPI{
		listConversationsFn: func(page, _ int) ([]entity.Conversation, response.PageInfo, error) {
			return conversations, response.PageInfo{Page: page, TotalPages: 1}, nil
		},
	}
	uc := NewDirectoryUseCase(chat)
	require.NoError(t, uc.FetchNextPage(context.Background()))
	return uc, chat
}

func TestPushedMessageUpdatesPreviewAndUnread(t *testing.T) {
	uc, _ := seedDirectory(t, entity.Conversation{CounterpartID: "alice", CounterpartName: "Alice"})

	uc.HandleEvent(ws.Event{Type: ws.EventMessage, Message: &entity.Message{
		ID:             "m1",
		ConversationID: "alice",
		SenderID:       "alice",
		Content:        "are you there?",
		CreatedAt:      time.Now(),
	}}, "")

	items := uc.Conversations()
	require.Len(t, items, 1)
	assert.Equal(t, "are you there?", items[0].LastMessage)
	assert.Equal(t, 1, items[0].UnreadCount)
}

func TestActiveConversationStaysRead(t *testing.T) {
	uc, _ := seedDirectory(t, entity.Conversation{CounterpartID: "alice"})

	uc.HandleEvent(ws.Event{Type: ws.EventMessage, Message: &entity.Message{
		ID:             "m1",
		ConversationID: "alice",
		SenderID:       "alice",
		Content:        "ping",
		CreatedAt:      time.Now(),
	}}, "alice")

	assert.Equal(t, 0, uc.UnreadCount("alice"))
}

func TestOwnPushedMessageDoesNotIncrementUnread(t *testing.T) {
	uc, _ := seedDirectory(t, entity.Conversation{CounterpartID: "alice"})

	// Echo of a message the user sent from another device.
	uc.HandleEvent(ws.Event{Type: ws.EventMessage, Message: &entity.Message{
		ID:             "m1",
		ConversationID: "alice",
		SenderID:       "self",
		Content:        "sent elsewhere",
		CreatedAt:      time.Now(),
	}}, "")

	assert.Equal(t, 0, uc.UnreadCount("alice"))
}

func TestUnknownCounterpartTriggersRefresh(t *testing.T) {
	chat := &stubChatAPI{
		listConversationsFn: func(page, _ int) ([]entity.Conversation, response.PageInfo, error) {
			return []entity.Conversation{{CounterpartID: "dave", CounterpartName: "Dave"}},
				response.PageInfo{Page: page, TotalPages: 1}, nil
		},
	}
	uc := NewDirectoryUseCase(chat)

	uc.HandleEvent(ws.Event{Type: ws.EventMessage, Message: &entity.Message{
		ID:             "m1",
		ConversationID: "dave",
		SenderID:       "dave",
		Content:        "first contact",
		CreatedAt:      time.Now(),
	}}, "")

	assert.Eventually(t, func() bool {
		items := uc.Conversations()
		return len(items) == 1 && items[0].CounterpartID == "dave"
	}, time.Second, 10*time.Millisecond)
}

func TestPresenceUpdatesOnlineFlag(t *testing.T) {
	uc, _ := seedDirectory(t, entity.Conversation{CounterpartID: "alice"})

	uc.HandleEvent(ws.Event{Type: ws.EventPresence, Presence: &ws.Presence{UserID: "alice", IsOnline: true}}, "")
	assert.True(t, uc.Conversations()[0].Online)

	uc.HandleEvent(ws.Event{Type: ws.EventPresence, Presence: &ws.Presence{UserID: "alice", IsOnline: false}}, "")
	assert.False(t, uc.Conversations()[0].Online)
}

func TestMarkViewedAndRestore(t *testing.T) {
	uc, _ := seedDirectory(t, entity.Conversation{CounterpartID: "alice", UnreadCount: 3})

	prev := uc.MarkViewed("alice")
	assert.Equal(t, 3, prev)
	assert.Equal(t, 0, uc.UnreadCount("alice"))

	uc.RestoreUnread("alice", prev)
	assert.Equal(t, 3, uc.UnreadCount("alice"))
}

func TestRefreshResetsCursor(t *testing.T) {
	pages := []entity.Conversation{{CounterpartID: "alice"}, {CounterpartID: "bob"}}
	chat := &stubChatAPI{
		listConversationsFn: func(page, _ int) ([]entity.Conversation, response.PageInfo, error) {
			return pages, response.PageInfo{Page: page, TotalPages: 1}, nil
		},
	}
	uc := NewDirectoryUseCase(chat)
	require.NoError(t, uc.FetchNextPage(context.Background()))
	require.Len(t, uc.Conversations(), 2)

	pages = []entity.Conversation{{CounterpartID: "bob"}}
	require.NoError(t, uc.Refresh(context.Background()))

	items := uc.Conversations()
	require.Len(t, items, 1)
	assert.Equal(t, "bob", items[0].CounterpartID)
}
