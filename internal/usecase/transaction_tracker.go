package usecase

import (
	"context"
	"sync"

	"unimarket/internal/client"
	"unimarket/internal/domain/entity"
	ws "unimarket/internal/infrastructure/websocket"
	"unimarket/pkg/errors"
	"unimarket/pkg/logger"
)

// TransactionTracker overlays the milestone state machine on cached
// transactions. Transitions move only forward (pending →
// seller_confirmed_delivery → buyer_confirmed_receipt → rated, cancellation
// from any non-terminal state); invalid ones are rejected locally before any
// request is sent. The backend remains the final authority.
type TransactionTracker struct {
	api TransactionAPI

	mu       sync.Mutex
	cache    map[string]*entity.Transaction
	prompted map[string]bool
}

func NewTransactionTracker(api TransactionAPI) *TransactionTracker {
	return &TransactionTracker{
		api:      api,
		cache:    make(map[string]*entity.Transaction),
		prompted: make(map[string]bool),
	}
}

func (t *TransactionTracker) Get(id string) *entity.Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tx, ok := t.cache[id]; ok {
		snapshot := *tx
		return &snapshot
	}
	return nil
}

// Load fetches the authoritative state and caches it.
func (t *TransactionTracker) Load(ctx context.Context, id string) (*entity.Transaction, error) {
	tx, err := t.api.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	t.put(tx)
	return tx, nil
}

// Create registers purchase intent on a product.
func (t *TransactionTracker) Create(ctx context.Context, productID, notes string) (*entity.Transaction, error) {
	tx, err := t.api.CreateTransaction(ctx, client.CreateTransactionInput{ProductID: productID, Notes: notes})
	if err != nil {
		return nil, err
	}
	t.put(tx)
	return tx, nil
}

// Confirm advances the milestone. The transition is validated locally first:
// confirming receipt before delivery never reaches the wire. On request
// failure the optimistic advance is reverted.
func (t *TransactionTracker) Confirm(ctx context.Context, id string, milestone entity.TransactionStatus) (*entity.Transaction, error) {
	current, err := t.ensure(ctx, id)
	if err != nil {
		return nil, err
	}

	if !current.Status.CanAdvance(milestone) {
		return nil, errors.BadRequest(
			"cannot move transaction from "+string(current.Status)+" to "+string(milestone), nil)
	}

	prev := t.applyOptimistic(id, milestone)

	tx, err := t.api.ConfirmMilestone(ctx, id, milestone)
	if err != nil {
		t.revert(id, prev)
		return nil, err
	}
	t.put(tx)
	return tx, nil
}

// Cancel moves a non-terminal transaction to cancelled.
func (t *TransactionTracker) Cancel(ctx context.Context, id string) (*entity.Transaction, error) {
	current, err := t.ensure(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, errors.BadRequest("transaction is already "+string(current.Status), nil)
	}

	prev := t.applyOptimistic(id, entity.TransactionCancelled)

	tx, err := t.api.CancelTransaction(ctx, id)
	if err != nil {
		t.revert(id, prev)
		return nil, err
	}
	t.put(tx)
	return tx, nil
}

// SubmitRating rates a received transaction, moving it to its terminal
// state. Only valid from buyer_confirmed_receipt.
func (t *TransactionTracker) SubmitRating(ctx context.Context, id string, rating int, comment string) (*entity.Transaction, error) {
	current, err := t.ensure(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanAdvance(entity.TransactionRated) {
		return nil, errors.BadRequest("transaction can only be rated after receipt is confirmed", nil)
	}

	tx, err := t.api.SubmitReview(ctx, id, client.SubmitReviewInput{Rating: rating, Comment: comment})
	if err != nil {
		return nil, err
	}
	t.put(tx)
	return tx, nil
}

// ShouldPromptRating reports, exactly once per transaction, that the rating
// prompt should be shown. Subsequent calls return false.
func (t *TransactionTracker) ShouldPromptRating(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tx, ok := t.cache[id]
	if !ok || tx.Status != entity.TransactionBuyerConfirmed {
		return false
	}
	if t.prompted[id] {
		return false
	}
	t.prompted[id] = true
	return true
}

// HandleEvent merges pushed counterpart confirmations. Updates that would
// move a milestone backwards are ignored; the push path is not allowed to
// undo local knowledge.
func (t *TransactionTracker) HandleEvent(ev ws.Event) {
	if ev.Type != ws.EventTransaction {
		return
	}
	update := ev.Transaction

	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.cache[update.ID]
	if !ok {
		snapshot := *update
		t.cache[update.ID] = &snapshot
		return
	}
	forward := existing.Status == update.Status ||
		existing.Status.ComesBefore(update.Status) ||
		(update.Status == entity.TransactionCancelled && !existing.Status.Terminal())
	if !forward {
		logger.Warn("ignoring backwards transaction update %s: %s -> %s",
			update.ID, existing.Status, update.Status)
		return
	}
	snapshot := *update
	t.cache[update.ID] = &snapshot
}

func (t *TransactionTracker) ensure(ctx context.Context, id string) (*entity.Transaction, error) {
	if tx := t.Get(id); tx != nil {
		return tx, nil
	}
	return t.Load(ctx, id)
}

func (t *TransactionTracker) put(tx *entity.Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snapshot := *tx
	t.cache[tx.ID] = &snapshot
}

func (t *TransactionTracker) applyOptimistic(id string, status entity.TransactionStatus) entity.TransactionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	tx, ok := t.cache[id]
	if !ok {
		return ""
	}
	prev := tx.Status
	tx.Status = status
	switch status {
	case entity.TransactionSellerConfirmed:
		tx.SellerConfirmedDelivery = true
	case entity.TransactionBuyerConfirmed:
		tx.BuyerConfirmedReceipt = true
	}
	return prev
}

func (t *TransactionTracker) revert(id string, prev entity.TransactionStatus) {
	if prev == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if tx, ok := t.cache[id]; ok {
		tx.Status = prev
		switch prev {
		case entity.TransactionPending:
			tx.SellerConfirmedDelivery = false
			tx.BuyerConfirmedReceipt = false
		case entity.TransactionSellerConfirmed:
			tx.BuyerConfirmedReceipt = false
		}
	}
}
