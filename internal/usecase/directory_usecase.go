package usecase

import (
	"context"
	"sync"

	"unimarket/internal/domain/entity"
	ws "unimarket/internal/infrastructure/websocket"
	"unimarket/pkg/logger"
)

// DirectoryUseCase maintains the paginated conversation list: a flattened,
// de-duplicated, order-preserving view plus the pagination cursor.
type DirectoryUseCase struct {
	api ChatAPI

	mu         sync.Mutex
	order      []string
	byID       map[string]*entity.Conversation
	page       int
	totalPages int
	fetched    bool
	inFlight   bool
	pageSize   int
}

func NewDirectoryUseCase(api ChatAPI) *DirectoryUseCase {
	return &DirectoryUseCase{
		api:      api,
		byID:     make(map[string]*entity.Conversation),
		pageSize: 20,
	}
}

// Conversations returns the flattened list in first-seen order.
func (uc *DirectoryUseCase) Conversations() []entity.Conversation {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	items := make([]entity.Conversation, 0, len(uc.order))
	for _, id := range uc.order {
		items = append(items, *uc.byID[id])
	}
	return items
}

func (uc *DirectoryUseCase) UnreadCount(counterpartID string) int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if conv, ok := uc.byID[counterpartID]; ok {
		return conv.UnreadCount
	}
	return 0
}

// FetchNextPage loads the next page of previews. It is a no-op when a fetch
// is already in flight or no further pages exist.
func (uc *DirectoryUseCase) FetchNextPage(ctx context.Context) error {
	uc.mu.Lock()
	if uc.inFlight || (uc.fetched && uc.page >= uc.totalPages) {
		uc.mu.Unlock()
		return nil
	}
	uc.inFlight = true
	next := uc.page + 1
	uc.mu.Unlock()

	items, info, err := uc.api.ListConversations(ctx, next, uc.pageSize)

	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.inFlight = false
	if err != nil {
		return err
	}

	uc.fetched = true
	uc.page = info.Page
	uc.totalPages = info.TotalPages
	uc.merge(items)
	return nil
}

// Refresh refetches the first page and resets the cursor. Used when a pushed
// event references a counterpart the list does not know: a full refetch is
// safer than synthesizing a partial entry.
func (uc *DirectoryUseCase) Refresh(ctx context.Context) error {
	uc.mu.Lock()
	if uc.inFlight {
		uc.mu.Unlock()
		return nil
	}
	uc.inFlight = true
	uc.mu.Unlock()

	items, info, err := uc.api.ListConversations(ctx, 1, uc.pageSize)

	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.inFlight = false
	if err != nil {
		return err
	}

	uc.order = uc.order[:0]
	uc.byID = make(map[string]*entity.Conversation)
	uc.fetched = true
	uc.page = info.Page
	uc.totalPages = info.TotalPages
	uc.merge(items)
	return nil
}

// merge folds a server page into the view: known counterparts are updated in
// place (their position is preserved), new ones are appended.
func (uc *DirectoryUseCase) merge(items []entity.Conversation) {
	for i := range items {
		item := items[i]
		if existing, ok := uc.byID[item.CounterpartID]; ok {
			*existing = item
			continue
		}
		uc.byID[item.CounterpartID] = &item
		uc.order = append(uc.order, item.CounterpartID)
	}
}

// HandleEvent feeds pushed realtime events into the list. activeConversation
// names the conversation currently on screen; its unread count stays zero.
func (uc *DirectoryUseCase) HandleEvent(ev ws.Event, activeConversation string) {
	switch ev.Type {
	case ws.EventMessage:
		msg := ev.Message
		uc.mu.Lock()
		conv, known := uc.byID[msg.ConversationID]
		if known {
			conv.LastMessage = msg.Content
			conv.LastMessageAt = msg.CreatedAt
			if msg.ConversationID != activeConversation && msg.SenderID == msg.ConversationID {
				conv.UnreadCount++
			}
			uc.mu.Unlock()
			return
		}
		uc.mu.Unlock()

		// Unknown counterpart: refresh rather than synthesize a partial
		// entry from a single message.
		go func() {
			if err := uc.Refresh(context.Background()); err != nil {
				logger.Warn("conversation list refresh after push failed: %v", err)
			}
		}()

	case ws.EventPresence:
		uc.mu.Lock()
		if conv, ok := uc.byID[ev.Presence.UserID]; ok {
			conv.Online = ev.Presence.IsOnline
		}
		uc.mu.Unlock()
	}
}

// ApplyOutgoing updates the preview for a message the user just sent.
func (uc *DirectoryUseCase) ApplyOutgoing(msg entity.Message) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if conv, ok := uc.byID[msg.ConversationID]; ok {
		conv.LastMessage = msg.Content
		conv.LastMessageAt = msg.CreatedAt
	}
}

// MarkViewed zeroes the unread counter locally, returning the previous value
// so a failed mark-read request can restore it.
func (uc *DirectoryUseCase) MarkViewed(counterpartID string) int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if conv, ok := uc.byID[counterpartID]; ok {
		prev := conv.UnreadCount
		conv.UnreadCount = 0
		return prev
	}
	return 0
}

// RestoreUnread undoes MarkViewed after a failed mark-read request.
func (uc *DirectoryUseCase) RestoreUnread(counterpartID string, count int) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if conv, ok := uc.byID[counterpartID]; ok && count > 0 {
		conv.UnreadCount = count
	}
}
