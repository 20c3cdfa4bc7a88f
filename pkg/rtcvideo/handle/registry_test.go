package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateBorrowDestroy(t *testing.T) {
	r := NewRegistry[string]()

	tok := r.Create("window-a")
	v, err := r.Borrow(tok)
	require.NoError(t, err)
	assert.Equal(t, "window-a", v)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.Destroy(tok))
	assert.Equal(t, 0, r.Len())

	_, err = r.Borrow(tok)
	assert.ErrorIs(t, err, ErrStaleToken)
	assert.ErrorIs(t, r.Destroy(tok), ErrStaleToken)
}

func TestRegistry_ZeroTokenInvalid(t *testing.T) {
	r := NewRegistry[int]()
	_, err := r.Borrow(Token(0))
	assert.ErrorIs(t, err, ErrStaleToken)
}

func TestRegistry_SlotReuseInvalidatesOldToken(t *testing.T) {
	r := NewRegistry[int]()

	first := r.Create(1)
	require.NoError(t, r.Destroy(first))

	// The freed slot is reused, but with a new generation.
	second := r.Create(2)
	v, err := r.Borrow(second)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = r.Borrow(first)
	assert.ErrorIs(t, err, ErrStaleToken, "token from before the reuse must not alias the new object")
}

func TestRegistry_ManyEntries(t *testing.T) {
	r := NewRegistry[int]()
	tokens := make([]Token, 100)
	for i := range tokens {
		tokens[i] = r.Create(i)
	}
	for i, tok := range tokens {
		v, err := r.Borrow(tok)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 100, r.Len())
}
