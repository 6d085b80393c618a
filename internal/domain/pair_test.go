package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chatrelay/internal/domain"
)

func TestOrderPair(t *testing.T) {
	t.Run("AlreadyOrdered", func(t *testing.T) {
		a, b := domain.OrderPair("alice", "bob")
		assert.Equal(t, "alice", a)
		assert.Equal(t, "bob", b)
	})

	t.Run("Swapped", func(t *testing.T) {
		a, b := domain.OrderPair("bob", "alice")
		assert.Equal(t, "alice", a)
		assert.Equal(t, "bob", b)
	})

	t.Run("SymmetricInputsProduceSameKey", func(t *testing.T) {
		a1, b1 := domain.OrderPair("u-9f3", "u-1a7")
		a2, b2 := domain.OrderPair("u-1a7", "u-9f3")
		assert.Equal(t, a1, a2)
		assert.Equal(t, b1, b2)
	})
}
