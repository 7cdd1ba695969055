package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionStatusCanAdvance(t *testing.T) {
	tests := []struct {
		from TransactionStatus
		to   TransactionStatus
		want bool
	}{
		{TransactionPending, TransactionSellerConfirmed, true},
		{TransactionSellerConfirmed, TransactionBuyerConfirmed, true},
		{TransactionBuyerConfirmed, TransactionRated, true},
		{TransactionPending, TransactionBuyerConfirmed, false},
		{TransactionPending, TransactionRated, false},
		{TransactionSellerConfirmed, TransactionPending, false},
		{TransactionBuyerConfirmed, TransactionSellerConfirmed, false},
		{TransactionPending, TransactionCancelled, true},
		{TransactionSellerConfirmed, TransactionCancelled, true},
		{TransactionBuyerConfirmed, TransactionCancelled, true},
		{TransactionRated, TransactionCancelled, false},
		{TransactionCancelled, TransactionSellerConfirmed, false},
		{TransactionCancelled, TransactionCancelled, false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.from.CanAdvance(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTransactionStatusComesBefore(t *testing.T) {
	assert.True(t, TransactionPending.ComesBefore(TransactionBuyerConfirmed))
	assert.True(t, TransactionSellerConfirmed.ComesBefore(TransactionRated))
	assert.False(t, TransactionRated.ComesBefore(TransactionPending))
	assert.False(t, TransactionPending.ComesBefore(TransactionPending))
	assert.False(t, TransactionCancelled.ComesBefore(TransactionRated))
}

func TestTransactionStatusTerminal(t *testing.T) {
	assert.True(t, TransactionRated.Terminal())
	assert.True(t, TransactionCancelled.Terminal())
	assert.False(t, TransactionPending.Terminal())
	assert.False(t, TransactionSellerConfirmed.Terminal())
	assert.False(t, TransactionBuyerConfirmed.Terminal())
}
