package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": ping",
		"",
		"id: 4",
		"event: price",
		`data: {"asset":"ETH"}`,
		"",
		"id: 5",
		"event: price",
		"data: first",
		"data: second",
		"",
		"retry: 1000",
		"",
	}, "\n")

	var got []event
	require.NoError(t, readEvents(strings.NewReader(stream), func(ev event) {
		got = append(got, ev)
	}))

	require.Len(t, got, 2)
	assert.Equal(t, event{ID: "4", Name: "price", Data: `{"asset":"ETH"}`}, got[0])
	assert.Equal(t, "5", got[1].ID)
	assert.Equal(t, "first\nsecond", got[1].Data)
}

func TestReadEvents_UnterminatedEventIsDropped(t *testing.T) {
	var n int
	require.NoError(t, readEvents(strings.NewReader("id: 1\ndata: x"), func(event) { n++ }))
	assert.Zero(t, n)
}
