package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDraft_SumsItemPrices(t *testing.T) {
	draft, err := NewDraft([]DraftItem{
		{Name: "Coffee", Price: 5.99},
		{Name: "Bagel", Price: 3.25},
		{Name: "Juice", Price: 4.10},
	})
	require.NoError(t, err)

	assert.InDelta(t, 13.34, draft.Amount, 0.01)
	assert.Len(t, draft.Items, 3)
	assert.False(t, draft.CreatedAt.IsZero())
}

func TestNewDraft_EmptyCart(t *testing.T) {
	draft, err := NewDraft(nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, draft)
}

func TestNewDraft_RejectsNonPositivePrice(t *testing.T) {
	_, err := NewDraft([]DraftItem{{Name: "Free sample", Price: 0}})
	assert.ErrorIs(t, err, ErrNonPositivePrice)

	_, err = NewDraft([]DraftItem{{Name: "Refund", Price: -1.50}})
	assert.ErrorIs(t, err, ErrNonPositivePrice)
}

func TestNewDraft_CopiesItems(t *testing.T) {
	items := []DraftItem{{Name: "Coffee", Price: 5.99}}
	draft, err := NewDraft(items)
	require.NoError(t, err)

	items[0].Price = 100 // caller mutation must not leak into the draft
	assert.InDelta(t, 5.99, draft.Items[0].Price, 0.001)
}

func TestTotals(t *testing.T) {
	tax, total := Totals(100)
	assert.InDelta(t, 8.0, tax, 0.001)
	assert.InDelta(t, 108.0, total, 0.001)
}
