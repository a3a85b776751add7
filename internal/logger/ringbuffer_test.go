package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_RecentNewestFirst(t *testing.T) {
	rb := NewRingBuffer[int](3)
	assert.Empty(t, rb.Recent(0))

	rb.Push(1)
	rb.Push(2)
	assert.Equal(t, []int{2, 1}, rb.Recent(0))

	rb.Push(3)
	rb.Push(4)
	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, []int{4, 3, 2}, rb.Recent(0))
	assert.Equal(t, []int{4, 3}, rb.Recent(2))
	assert.Equal(t, []int{4, 3, 2}, rb.Recent(10))
}

func TestRingBuffer_MinimumCapacity(t *testing.T) {
	rb := NewRingBuffer[string](0)
	rb.Push("a")
	rb.Push("b")
	assert.Equal(t, []string{"b"}, rb.Recent(0))
}
