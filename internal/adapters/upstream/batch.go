package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/lerianlabs/batchgate/internal/domain"
)

type createBatchRequest struct {
	InputFileID      string `json:"input_file_id"`
	Endpoint         string `json:"endpoint"`
	CompletionWindow string `json:"completion_window"`
}

// CreateBatch submits inputFileID for asynchronous processing with a 24h
// completion window, the only window this gateway ever requests.
func (c *Client) CreateBatch(ctx context.Context, apiKey, inputFileID string) (*domain.BatchResponse, error) {
	payload, err := json.Marshal(createBatchRequest{
		InputFileID:      inputFileID,
		Endpoint:         "/v1/chat/completions",
		CompletionWindow: "24h",
	})
	if err != nil {
		return nil, errors.Wrap(err, "encoding create-batch request")
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/batches", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building create-batch request")
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, apiKey, req)
	if err != nil {
		return nil, errors.Wrap(err, "creating batch")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, upstreamError("create batch", resp)
	}

	var out domain.BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decoding create-batch response")
	}

	return &out, nil
}

// GetBatchStatus fetches the current state of batchID.
func (c *Client) GetBatchStatus(ctx context.Context, apiKey, batchID string) (*domain.BatchResponse, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/batches/"+batchID, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building batch status request")
	}

	resp, err := c.do(ctx, apiKey, req)
	if err != nil {
		return nil, errors.Wrap(err, "getting batch status")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, upstreamError("get batch status", resp)
	}

	var out domain.BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decoding batch status response")
	}

	return &out, nil
}
