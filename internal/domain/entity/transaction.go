package entity

import "time"

type TransactionStatus string

const (
	TransactionPending         TransactionStatus = "pending"
	TransactionSellerConfirmed TransactionStatus = "seller_confirmed_delivery"
	TransactionBuyerConfirmed  TransactionStatus = "buyer_confirmed_receipt"
	TransactionRated           TransactionStatus = "rated"
	TransactionCancelled       TransactionStatus = "cancelled"
)

var milestoneRank = map[TransactionStatus]int{
	TransactionPending:         0,
	TransactionSellerConfirmed: 1,
	TransactionBuyerConfirmed:  2,
	TransactionRated:           3,
}

func (s TransactionStatus) Terminal() bool {
	return s == TransactionRated || s == TransactionCancelled
}

// CanAdvance reports whether the milestone may move from s to next.
// Milestones only move forward one step at a time; cancellation is reachable
// from any non-terminal state.
func (s TransactionStatus) CanAdvance(next TransactionStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == TransactionCancelled {
		return true
	}
	from, ok := milestoneRank[s]
	if !ok {
		return false
	}
	to, ok := milestoneRank[next]
	if !ok {
		return false
	}
	return to == from+1
}

// ComesBefore reports whether s precedes other on the milestone path.
func (s TransactionStatus) ComesBefore(other TransactionStatus) bool {
	a, okA := milestoneRank[s]
	b, okB := milestoneRank[other]
	return okA && okB && a < b
}

type Transaction struct {
	ID        string            `json:"id" validate:"required"`
	ProductID string            `json:"product_id"`
	BuyerID   string            `json:"buyer_id"`
	SellerID  string            `json:"seller_id"`
	Status    TransactionStatus `json:"status" validate:"required"`

	// Confirmation flags are independently settable; the milestone only
	// advances when the required party's flag is present.
	SellerConfirmedDelivery bool `json:"seller_confirmed_delivery"`
	BuyerConfirmedReceipt   bool `json:"buyer_confirmed_receipt"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
