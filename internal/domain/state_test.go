package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequestState_StartsQueuedWithNoBatchOrResult(t *testing.T) {
	req := CompletionRequest{Model: "gpt-4", Messages: []Message{{Role: "user", Content: "hi"}}}

	state := NewRequestState("req-1", req, "sk-test")

	assert.Equal(t, StatusQueued, state.Status)
	assert.Nil(t, state.BatchID)
	assert.Nil(t, state.Result)
	assert.Nil(t, state.Error)
	assert.Equal(t, state.CreatedAt, state.UpdatedAt)
}
