package usecase

import (
	"context"
	"sync"
	"time"

	"unimarket/internal/domain/entity"
	ws "unimarket/internal/infrastructure/websocket"
)

// correlationWindow bounds the content+time fallback used to match a pushed
// copy of an own message against its optimistic entry when the temp id is
// missing from the push.
const correlationWindow = 30 * time.Second

// StreamUseCase holds the ordered message list of the active conversation,
// merging three sources: fetched history pages, locally-originated
// optimistic entries and pushed realtime entries. Switching conversations
// bumps an epoch; responses tagged with an old epoch are discarded instead
// of applied.
type StreamUseCase struct {
	api       ChatAPI
	ackWindow time.Duration

	mu         sync.Mutex
	selfID     string
	active     string
	epoch      uint64
	messages   []entity.Message
	page       int
	totalPages int
	inFlight   bool
	pageSize   int
}

func NewStreamUseCase(api ChatAPI, ackWindow time.Duration) *StreamUseCase {
	if ackWindow <= 0 {
		ackWindow = 20 * time.Second
	}
	return &StreamUseCase{
		api:       api,
		ackWindow: ackWindow,
		pageSize:  50,
	}
}

// SetSelf tells the stream which user id is "own" so directions can be
// assigned at the boundary.
func (uc *StreamUseCase) SetSelf(userID string) {
	uc.mu.Lock()
	uc.selfID = userID
	uc.mu.Unlock()
}

func (uc *StreamUseCase) Active() string {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.active
}

// Messages returns an ordered snapshot of the active conversation.
func (uc *StreamUseCase) Messages() []entity.Message {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	out := make([]entity.Message, len(uc.messages))
	copy(out, uc.messages)
	return out
}

// Open switches the active conversation and fetches its most recent history
// page. A response that arrives after another switch is dropped.
func (uc *StreamUseCase) Open(ctx context.Context, conversationID string) error {
	uc.mu.Lock()
	uc.active = conversationID
	uc.epoch++
	epoch := uc.epoch
	uc.messages = nil
	uc.page = 0
	uc.totalPages = 0
	uc.mu.Unlock()

	items, info, err := uc.api.ListMessages(ctx, conversationID, 1, uc.pageSize)
	if err != nil {
		return err
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.epoch != epoch {
		// The user switched away while the fetch was in flight.
		return nil
	}
	uc.page = info.Page
	uc.totalPages = info.TotalPages
	for i := range items {
		uc.ingestLocked(items[i])
	}
	return nil
}

// LoadOlder fetches the next (older) history page and prepends it. No-op
// when exhausted or already fetching.
func (uc *StreamUseCase) LoadOlder(ctx context.Context) error {
	uc.mu.Lock()
	if uc.inFlight || uc.active == "" || (uc.page > 0 && uc.page >= uc.totalPages) {
		uc.mu.Unlock()
		return nil
	}
	uc.inFlight = true
	epoch := uc.epoch
	conversationID := uc.active
	next := uc.page + 1
	uc.mu.Unlock()

	items, info, err := uc.api.ListMessages(ctx, conversationID, next, uc.pageSize)

	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.inFlight = false
	if err != nil {
		return err
	}
	if uc.epoch != epoch {
		return nil
	}

	uc.page = info.Page
	uc.totalPages = info.TotalPages

	older := make([]entity.Message, 0, len(items))
	for i := range items {
		if uc.indexByID(items[i].ID) >= 0 {
			continue
		}
		msg := items[i]
		msg.Direction = uc.directionLocked(&msg)
		older = append(older, msg)
	}
	uc.messages = append(older, uc.messages...)
	return nil
}

// Close deactivates the stream; late responses for the old conversation are
// discarded by the epoch guard.
func (uc *StreamUseCase) Close() {
	uc.mu.Lock()
	uc.active = ""
	uc.epoch++
	uc.messages = nil
	uc.page = 0
	uc.totalPages = 0
	uc.mu.Unlock()
}

// AppendOptimistic inserts a locally-originated entry at the tail with
// status "sending" and arms the failure window: if no acknowledgment
// arrives in time the entry is marked failed, never silently dropped.
func (uc *StreamUseCase) AppendOptimistic(msg entity.Message) {
	uc.mu.Lock()
	if msg.ConversationID != uc.active {
		uc.mu.Unlock()
		return
	}
	msg.Direction = entity.DirectionOwn
	msg.Status = entity.MessageSending
	uc.messages = append(uc.messages, msg)
	uc.mu.Unlock()

	tempID := msg.TempID
	time.AfterFunc(uc.ackWindow, func() {
		uc.failIfPending(tempID)
	})
}

func (uc *StreamUseCase) failIfPending(tempID string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if i := uc.indexByTempID(tempID); i >= 0 && uc.messages[i].Pending() {
		uc.messages[i].Status = entity.MessageFailed
	}
}

// ResolveSend replaces the optimistic entry with the authoritative server
// message, in place so relative order is preserved. Responses for a
// conversation that is no longer active are discarded.
func (uc *StreamUseCase) ResolveSend(tempID string, server *entity.Message) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if server.ConversationID != uc.active {
		return
	}

	i := uc.indexByTempID(tempID)
	if i < 0 {
		if uc.indexByID(server.ID) < 0 {
			msg := *server
			msg.Direction = uc.directionLocked(&msg)
			uc.messages = append(uc.messages, msg)
		}
		return
	}

	// The pushed copy may have landed first; keep one entry only.
	if j := uc.indexByID(server.ID); j >= 0 && j != i {
		uc.messages = append(uc.messages[:i], uc.messages[i+1:]...)
		return
	}

	replacement := *server
	replacement.TempID = tempID
	replacement.Direction = entity.DirectionOwn
	if replacement.Status == "" || replacement.Status == entity.MessageSending {
		replacement.Status = entity.MessageSent
	}
	uc.messages[i] = replacement
}

// FailSend marks the optimistic entry as failed so the user can retry.
func (uc *StreamUseCase) FailSend(tempID string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if i := uc.indexByTempID(tempID); i >= 0 {
		uc.messages[i].Status = entity.MessageFailed
	}
}

// Failed returns the failed entry with the given temp id, if present.
func (uc *StreamUseCase) Failed(tempID string) *entity.Message {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if i := uc.indexByTempID(tempID); i >= 0 && uc.messages[i].Status == entity.MessageFailed {
		msg := uc.messages[i]
		return &msg
	}
	return nil
}

// Discard removes a failed entry. Entries in other states stay put.
func (uc *StreamUseCase) Discard(tempID string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if i := uc.indexByTempID(tempID); i >= 0 && uc.messages[i].Status == entity.MessageFailed {
		uc.messages = append(uc.messages[:i], uc.messages[i+1:]...)
	}
}

// HandleEvent feeds pushed entries and acknowledgments into the stream.
// Events for other conversations are ignored here; the directory handles
// their previews.
func (uc *StreamUseCase) HandleEvent(ev ws.Event) {
	switch ev.Type {
	case ws.EventMessage:
		uc.mu.Lock()
		defer uc.mu.Unlock()
		msg := *ev.Message
		if msg.ConversationID != uc.active {
			return
		}
		uc.ingestLocked(msg)

	case ws.EventAck:
		uc.mu.Lock()
		defer uc.mu.Unlock()
		ack := ev.Ack
		if ack.ConversationID != uc.active {
			return
		}
		if i := uc.indexByTempID(ack.TempID); ack.TempID != "" && i >= 0 {
			uc.messages[i].ID = ack.MessageID
			if uc.messages[i].Status.CanTransition(ack.Status) {
				uc.messages[i].Status = ack.Status
			}
			return
		}
		if i := uc.indexByID(ack.MessageID); i >= 0 {
			if uc.messages[i].Status.CanTransition(ack.Status) {
				uc.messages[i].Status = ack.Status
			}
		}
	}
}

// ingestLocked merges one authoritative message into the list without
// creating duplicates or reordering existing entries.
func (uc *StreamUseCase) ingestLocked(msg entity.Message) {
	// Direct temp id correlation first.
	if msg.TempID != "" {
		if i := uc.indexByTempID(msg.TempID); i >= 0 {
			uc.replaceLocked(i, msg)
			return
		}
	}

	// Already known by permanent id: status may advance, nothing else.
	if i := uc.indexByID(msg.ID); i >= 0 {
		if uc.messages[i].Status.CanTransition(msg.Status) {
			uc.messages[i].Status = msg.Status
		}
		return
	}

	// Fallback correlation for own messages pushed without a temp id:
	// same conversation, same content, close in time.
	if msg.SenderID == uc.selfID {
		for i := range uc.messages {
			candidate := &uc.messages[i]
			if !candidate.Pending() || candidate.Content != msg.Content {
				continue
			}
			delta := msg.CreatedAt.Sub(candidate.CreatedAt)
			if delta < 0 {
				delta = -delta
			}
			if delta <= correlationWindow {
				uc.replaceLocked(i, msg)
				return
			}
		}
	}

	msg.Direction = uc.directionLocked(&msg)
	uc.messages = append(uc.messages, msg)
}

func (uc *StreamUseCase) replaceLocked(i int, msg entity.Message) {
	tempID := uc.messages[i].TempID
	msg.TempID = tempID
	msg.Direction = uc.directionLocked(&msg)
	if msg.Status == "" || msg.Status == entity.MessageSending {
		msg.Status = entity.MessageSent
	}
	uc.messages[i] = msg
}

func (uc *StreamUseCase) directionLocked(msg *entity.Message) entity.MessageDirection {
	switch {
	case msg.Type == "system" || msg.SenderID == "":
		return entity.DirectionSystem
	case msg.SenderID == uc.selfID:
		return entity.DirectionOwn
	default:
		return entity.DirectionCounterpart
	}
}

func (uc *StreamUseCase) indexByTempID(tempID string) int {
	if tempID == "" {
		return -1
	}
	for i := range uc.messages {
		if uc.messages[i].TempID == tempID {
			return i
		}
	}
	return -1
}

func (uc *StreamUseCase) indexByID(id string) int {
	if id == "" {
		return -1
	}
	for i := range uc.messages {
		if uc.messages[i].ID == id {
			return i
		}
	}
	return -1
}
