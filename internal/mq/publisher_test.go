package mq

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEnvelope(t *testing.T) {
	ev := NewEvent(KeyListingCreated, map[string]string{"id": "abc"})

	b, err := json.Marshal(ev)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "listing.created", raw["type"])
	assert.Equal(t, map[string]any{"id": "abc"}, raw["data"])
	assert.NotEmpty(t, raw["id"])
	assert.NotEmpty(t, raw["occurredAt"])
}

func TestNopPublisher(t *testing.T) {
	var p Nop
	assert.NoError(t, p.PublishJSON(context.Background(), KeyMessageSent, struct{}{}))
	assert.NoError(t, p.Close())
}
