package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionRequest_RoundTripsUnknownFields(t *testing.T) {
	raw := []byte(`{
		"model": "gpt-4",
		"messages": [{"role": "user", "content": "hi", "name": "alice"}],
		"temperature": 0.5,
		"logit_bias": {"50256": -100}
	}`)

	var req CompletionRequest
	require.NoError(t, json.Unmarshal(raw, &req))

	assert.Equal(t, "gpt-4", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Extra, "name")
	assert.Contains(t, req.Extra, "logit_bias")

	out, err := json.Marshal(req)
	require.NoError(t, err)

	var roundTripped map[string]any
	require.NoError(t, json.Unmarshal(out, &roundTripped))

	assert.Equal(t, "gpt-4", roundTripped["model"])
	assert.Contains(t, roundTripped, "logit_bias")
}

func TestCompletionRequest_NoExtraFieldsMarshalsCleanly(t *testing.T) {
	req := CompletionRequest{
		Model:    "gpt-4",
		Messages: []Message{{Role: "user", Content: "hi"}},
	}

	out, err := json.Marshal(req)
	require.NoError(t, err)

	var asMap map[string]any
	require.NoError(t, json.Unmarshal(out, &asMap))

	assert.Equal(t, "gpt-4", asMap["model"])
	assert.NotContains(t, asMap, "temperature")
}

func TestCompletionResponse_PreservesUnknownTopLevelFields(t *testing.T) {
	raw := []byte(`{
		"id": "cmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "hi"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		"system_fingerprint": "fp_abc"
	}`)

	var resp CompletionResponse
	require.NoError(t, json.Unmarshal(raw, &resp))

	assert.Equal(t, "cmpl-1", resp.ID)
	assert.Equal(t, int64(2), resp.Usage.TotalTokens)
	assert.Contains(t, resp.Extra, "system_fingerprint")

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), "fp_abc")
}
