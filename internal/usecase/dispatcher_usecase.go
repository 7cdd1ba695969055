package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"unimarket/internal/client"
	"unimarket/internal/domain/entity"
	"unimarket/internal/infrastructure/ratelimit"
	"unimarket/pkg/errors"
)

// Swapped in tests to pin optimistic timestamps.
var timeNow = time.Now

// ReceiptEmitter is the optional realtime side channel for read receipts and
// typing indicators. The REST calls stay authoritative; emission is best
// effort.
type ReceiptEmitter interface {
	SendMarkRead(conversationID string)
	SendTyping(conversationID string, typing bool)
}

// DispatcherUseCase executes user-initiated mutations: optimistic local
// update first, then the backend request, then reconciliation with the
// authoritative response or a revert. Each send is keyed by a temp id, which
// doubles as the outbox correlation key the stream reconciles on.
type DispatcherUseCase struct {
	chat      ChatAPI
	uploads   UploadAPI
	stream    *StreamUseCase
	directory *DirectoryUseCase
	tracker   *TransactionTracker
	limiter   *ratelimit.Limiter
	receipts  ReceiptEmitter

	mu     sync.RWMutex
	selfID string
}

func NewDispatcherUseCase(
	chat ChatAPI,
	uploads UploadAPI,
	stream *StreamUseCase,
	directory *DirectoryUseCase,
	tracker *TransactionTracker,
	limiter *ratelimit.Limiter,
) *DispatcherUseCase {
	return &DispatcherUseCase{
		chat:      chat,
		uploads:   uploads,
		stream:    stream,
		directory: directory,
		tracker:   tracker,
		limiter:   limiter,
	}
}

// SetReceiptEmitter attaches the realtime channel once it exists.
func (d *DispatcherUseCase) SetReceiptEmitter(emitter ReceiptEmitter) {
	d.mu.Lock()
	d.receipts = emitter
	d.mu.Unlock()
}

func (d *DispatcherUseCase) emitter() ReceiptEmitter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.receipts
}

func (d *DispatcherUseCase) typing(conversationID string, active bool) {
	if emitter := d.emitter(); emitter != nil {
		emitter.SendTyping(conversationID, active)
	}
}

func (d *DispatcherUseCase) SetSelf(userID string) {
	d.mu.Lock()
	d.selfID = userID
	d.mu.Unlock()
}

func (d *DispatcherUseCase) self() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selfID
}

type Attachment struct {
	Filename string
	Content  io.Reader
}

// SendMessage sends text and/or an attachment to the counterpart. Attachment
// sending is two-phase: the binary is uploaded first, and if that fails no
// optimistic message ever appears. The optimistic entry shows up with status
// "sending" before the request leaves; on failure it stays visible as
// "failed" so the user can retry or discard.
func (d *DispatcherUseCase) SendMessage(ctx context.Context, conversationID, text string, attachment *Attachment) (*entity.Message, error) {
	if conversationID == "" {
		return nil, errors.BadRequest("conversation id is required", nil)
	}
	if conversationID == d.self() {
		return nil, errors.BadRequest("you cannot message yourself", nil)
	}
	if text == "" && attachment == nil {
		return nil, errors.BadRequest("message is empty", nil)
	}

	if allowed, wait := d.limiter.Allow("send_message"); !allowed {
		return nil, errors.TooManyRequests("you are sending messages too quickly", wait)
	}

	// The counterpart sees the typing indicator while the upload and the
	// request are in flight.
	d.typing(conversationID, true)
	defer d.typing(conversationID, false)

	msgType := "text"
	attachmentURL := ""
	if attachment != nil {
		ref, err := d.uploads.UploadAttachment(ctx, attachment.Filename, attachment.Content)
		if err != nil {
			// Phase one failed: nothing was inserted and no send happened,
			// so the consumed token goes back.
			d.limiter.Refund("send_message")
			return nil, err
		}
		attachmentURL = ref.URL
		msgType = "image"
	}

	tempID := uuid.NewString()
	optimistic := entity.Message{
		TempID:         tempID,
		ConversationID: conversationID,
		SenderID:       d.self(),
		Content:        text,
		Type:           msgType,
		AttachmentURL:  attachmentURL,
		Status:         entity.MessageSending,
		CreatedAt:      timeNow(),
	}
	d.stream.AppendOptimistic(optimistic)
	d.directory.ApplyOutgoing(optimistic)

	sent, err := d.chat.SendMessage(ctx, conversationID, client.SendMessageInput{
		TempID:        tempID,
		Content:       text,
		Type:          msgType,
		AttachmentURL: attachmentURL,
	})
	if err != nil {
		d.stream.FailSend(tempID)
		return nil, err
	}

	d.stream.ResolveSend(tempID, sent)
	d.directory.ApplyOutgoing(*sent)
	return sent, nil
}

// RetryMessage re-sends a failed entry. The old entry is discarded and the
// content goes through the normal send path with a fresh temp id.
func (d *DispatcherUseCase) RetryMessage(ctx context.Context, tempID string) (*entity.Message, error) {
	failed := d.stream.Failed(tempID)
	if failed == nil {
		return nil, errors.NotFound("failed message", nil)
	}
	d.stream.Discard(tempID)

	if failed.AttachmentURL != "" {
		// The upload already succeeded; reuse the reference directly.
		return d.resendWithAttachment(ctx, failed)
	}
	return d.SendMessage(ctx, failed.ConversationID, failed.Content, nil)
}

func (d *DispatcherUseCase) resendWithAttachment(ctx context.Context, failed *entity.Message) (*entity.Message, error) {
	if allowed, wait := d.limiter.Allow("send_message"); !allowed {
		return nil, errors.TooManyRequests("you are sending messages too quickly", wait)
	}

	d.typing(failed.ConversationID, true)
	defer d.typing(failed.ConversationID, false)

	tempID := uuid.NewString()
	optimistic := *failed
	optimistic.ID = ""
	optimistic.TempID = tempID
	optimistic.Status = entity.MessageSending
	optimistic.CreatedAt = timeNow()
	d.stream.AppendOptimistic(optimistic)

	sent, err := d.chat.SendMessage(ctx, failed.ConversationID, client.SendMessageInput{
		TempID:        tempID,
		Content:       failed.Content,
		Type:          failed.Type,
		AttachmentURL: failed.AttachmentURL,
	})
	if err != nil {
		d.stream.FailSend(tempID)
		return nil, err
	}
	d.stream.ResolveSend(tempID, sent)
	return sent, nil
}

// MarkAsRead zeroes the conversation's unread count. Idempotent: with
// nothing unread no request is issued. On failure the previous count is
// restored.
func (d *DispatcherUseCase) MarkAsRead(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return errors.BadRequest("conversation id is required", nil)
	}
	if d.directory.UnreadCount(conversationID) == 0 {
		return nil
	}

	prev := d.directory.MarkViewed(conversationID)

	if err := d.chat.MarkRead(ctx, conversationID); err != nil {
		d.directory.RestoreUnread(conversationID, prev)
		return err
	}

	if emitter := d.emitter(); emitter != nil {
		emitter.SendMarkRead(conversationID)
	}
	return nil
}

// ConfirmTransactionMilestone advances a transaction after local validation;
// see TransactionTracker for the state machine rules. Callers check
// tracker.ShouldPromptRating afterwards to show the one-time rating prompt.
func (d *DispatcherUseCase) ConfirmTransactionMilestone(ctx context.Context, transactionID string, milestone entity.TransactionStatus) (*entity.Transaction, error) {
	return d.tracker.Confirm(ctx, transactionID, milestone)
}

func (d *DispatcherUseCase) CancelTransaction(ctx context.Context, transactionID string) (*entity.Transaction, error) {
	return d.tracker.Cancel(ctx, transactionID)
}
