// Package domain holds the types and invariants shared by every service in
// batchgate: the request lifecycle, the OpenAI-shaped wire types, and the
// batch file lines used to submit requests upstream and fan results back in
// once the upstream batch lands.
package domain

import "encoding/json"

// Message is a single chat turn. Extra carries any field the caller sent
// that this gateway does not interpret, so it survives the round trip to
// the upstream batch API byte-for-byte.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Extra   Extra  `json:"-"`
}

// CompletionRequest is the inbound request body for POST /v1/chat/completions.
// Only Model and Messages are required; the common sampling parameters have
// typed fields, and every other field is passed through opaquely via Extra.
type CompletionRequest struct {
	Model            string    `json:"model" validate:"required"`
	Messages         []Message `json:"messages" validate:"required,min=1"`
	Temperature      *float32  `json:"temperature,omitempty"`
	MaxTokens        *int64    `json:"max_tokens,omitempty"`
	TopP             *float32  `json:"top_p,omitempty"`
	FrequencyPenalty *float32  `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float32  `json:"presence_penalty,omitempty"`
	Stop             []string  `json:"stop,omitempty"`
	N                *int64    `json:"n,omitempty"`
	Extra            Extra     `json:"-"`
}

// Choice is one completion alternative in a CompletionResponse.
type Choice struct {
	Index        int64   `json:"index"`
	Message      Message `json:"message"`
	FinishReason *string `json:"finish_reason"`
	Extra        Extra   `json:"-"`
}

// Usage reports token accounting for a completion. It has no Extra bag:
// fields beyond the three token counts are dropped on decode.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// CompletionResponse is the upstream's per-item chat-completion result, as
// embedded in a batch output line and ultimately returned to the caller.
type CompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
	Extra   Extra    `json:"-"`
}

// Extra is an opaque pass-through bag for fields this gateway does not
// interpret. It is folded into/out of the sibling JSON object by the
// MarshalJSON/UnmarshalJSON pairs below rather than exposed as a nested key,
// mirroring the OpenAI wire shape where unknown fields live at the top level.
type Extra map[string]json.RawMessage

// MarshalJSON implements json.Marshaler for Message, folding Extra's keys
// into the object alongside role/content.
func (m Message) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{Role: m.Role, Content: m.Content}, m.Extra)
}

// UnmarshalJSON implements json.Unmarshaler for Message.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	var a alias

	extra, err := unmarshalWithExtra(data, &a, "role", "content")
	if err != nil {
		return err
	}

	m.Role, m.Content, m.Extra = a.Role, a.Content, extra

	return nil
}

// MarshalJSON implements json.Marshaler for CompletionRequest.
func (r CompletionRequest) MarshalJSON() ([]byte, error) {
	type alias CompletionRequest

	return marshalWithExtra(alias(r), r.Extra)
}

// UnmarshalJSON implements json.Unmarshaler for CompletionRequest.
func (r *CompletionRequest) UnmarshalJSON(data []byte) error {
	type alias CompletionRequest

	var a alias

	extra, err := unmarshalWithExtra(data, &a, "model", "messages", "temperature", "max_tokens",
		"top_p", "frequency_penalty", "presence_penalty", "stop", "n")
	if err != nil {
		return err
	}

	*r = CompletionRequest(a)
	r.Extra = extra

	return nil
}

// MarshalJSON implements json.Marshaler for Choice.
func (c Choice) MarshalJSON() ([]byte, error) {
	type alias Choice

	return marshalWithExtra(alias(c), c.Extra)
}

// UnmarshalJSON implements json.Unmarshaler for Choice.
func (c *Choice) UnmarshalJSON(data []byte) error {
	type alias Choice

	var a alias

	extra, err := unmarshalWithExtra(data, &a, "index", "message", "finish_reason")
	if err != nil {
		return err
	}

	*c = Choice(a)
	c.Extra = extra

	return nil
}

// MarshalJSON implements json.Marshaler for CompletionResponse.
func (r CompletionResponse) MarshalJSON() ([]byte, error) {
	type alias CompletionResponse

	return marshalWithExtra(alias(r), r.Extra)
}

// UnmarshalJSON implements json.Unmarshaler for CompletionResponse.
func (r *CompletionResponse) UnmarshalJSON(data []byte) error {
	type alias CompletionResponse

	var a alias

	extra, err := unmarshalWithExtra(data, &a, "id", "object", "created", "model", "choices", "usage")
	if err != nil {
		return err
	}

	*r = CompletionResponse(a)
	r.Extra = extra

	return nil
}

func marshalWithExtra(known any, extra Extra) ([]byte, error) {
	knownBytes, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}

	if len(extra) == 0 {
		return knownBytes, nil
	}

	merged := map[string]json.RawMessage{}
	for k, v := range extra {
		merged[k] = v
	}

	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(knownBytes, &knownMap); err != nil {
		return nil, err
	}

	for k, v := range knownMap {
		merged[k] = v
	}

	return json.Marshal(merged)
}

func unmarshalWithExtra(data []byte, known any, knownFields ...string) (Extra, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(knownFields))
	for _, f := range knownFields {
		skip[f] = struct{}{}
	}

	extra := Extra{}

	for k, v := range all {
		if _, isKnown := skip[k]; isKnown {
			continue
		}

		extra[k] = v
	}

	if len(extra) == 0 {
		return nil, nil
	}

	return extra, nil
}
