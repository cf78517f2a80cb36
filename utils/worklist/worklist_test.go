package worklist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrainOrder(t *testing.T) {
	var order []int
	Start(1, func(next int, add func(int)) {
		order = append(order, next)
		if next < 4 {
			add(next * 2)
			add(next*2 + 1)
		}
	})
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, order)
}

func TestElementsAreProcessedOnce(t *testing.T) {
	visits := make(map[string]int)
	edges := map[string][]string{
		"a": {"b", "c"},
		"b": {"a", "c"},
		"c": {"c"},
	}
	StartV([]string{"a", "a", "b"}, func(next string, add func(string)) {
		visits[next]++
		for _, s := range edges[next] {
			add(s)
		}
	})
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, visits)
}

func TestAdd(t *testing.T) {
	var w Worklist[int]
	assert.True(t, w.Add(3))
	assert.False(t, w.Add(3))
	assert.True(t, w.Seen(3))
	assert.Equal(t, 1, w.Len())

	el, ok := w.Next()
	assert.True(t, ok)
	assert.Equal(t, 3, el)

	_, ok = w.Next()
	assert.False(t, ok)
	assert.False(t, w.Add(3), "elements are never enqueued twice")
}
