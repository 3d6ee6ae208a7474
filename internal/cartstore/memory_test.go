package cartstore

import (
	"context"
	"testing"

	"github.com/ecomgo/storefront/internal/models"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreContract(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	items, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, items)
	require.False(t, s.Has(1))

	cart := []models.CartItem{
		{ProductID: 10, Name: "a", Price: 10, Quantity: 1},
		{ProductID: 10, Name: "a", Price: 10, Quantity: 1},
		{ProductID: 20, Name: "b", Price: 20, Quantity: 2},
	}
	require.NoError(t, s.Save(ctx, 1, cart))
	require.True(t, s.Has(1))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, cart, got)

	// mutating the returned slice must not touch the stored cart
	got[0].ProductID = 99
	again, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, uint(10), again[0].ProductID)

	require.NoError(t, s.Clear(ctx, 1))
	require.False(t, s.Has(1), "clear must delete the key, not write an empty array")

	items, err = s.Get(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, items)
}
