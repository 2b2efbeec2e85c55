package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceRow(t *testing.T) {
	v := func(n int64) *int64 { return &n }

	var items []Item
	items = placeRow(items, 0, v(10))
	items = placeRow(items, 3, v(99))
	items = placeRow(items, 1, nil)
	items = placeRow(items, -1, v(5))

	assert.Equal(t, []Item{Some(10), Empty, Empty, Some(99)}, items)
}

func TestItemRows(t *testing.T) {
	rows := itemRows([]Item{Some(10), Empty})

	assert.Equal(t, [][]any{{int32(0), int64(10)}, {int32(1), nil}}, rows)
}
