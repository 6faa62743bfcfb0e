package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lerianlabs/batchgate/internal/domain"
)

// UploadBatchFile encodes requests as newline-delimited JSON, one
// /v1/chat/completions call per line addressed by its own request id, and
// uploads the result as a "batch" purpose file.
func (c *Client) UploadBatchFile(ctx context.Context, apiKey string, requestIDs []string, requests []domain.CompletionRequest) (*domain.FileUploadResponse, error) {
	if len(requestIDs) != len(requests) {
		return nil, errors.New("upstream: requestIDs and requests length mismatch")
	}

	var jsonl bytes.Buffer

	for i, id := range requestIDs {
		line := domain.BatchLine{
			CustomID: id,
			Method:   http.MethodPost,
			URL:      "/v1/chat/completions",
			Body:     requests[i],
		}

		encoded, err := json.Marshal(line)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding batch line for %s", id)
		}

		jsonl.Write(encoded)
		jsonl.WriteByte('\n')
	}

	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("purpose", "batch"); err != nil {
		return nil, errors.Wrap(err, "writing purpose field")
	}

	filename := fmt.Sprintf("batch_%s.jsonl", uuid.New().String())

	part, err := writer.CreatePart(map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)},
		"Content-Type":        {"application/jsonl"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating file part")
	}

	if _, err := part.Write(jsonl.Bytes()); err != nil {
		return nil, errors.Wrap(err, "writing file part")
	}

	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "closing multipart body")
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/files", &body)
	if err != nil {
		return nil, errors.Wrap(err, "building upload request")
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(ctx, apiKey, req)
	if err != nil {
		return nil, errors.Wrap(err, "uploading batch file")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, upstreamError("upload batch file", resp)
	}

	var out domain.FileUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decoding file upload response")
	}

	return &out, nil
}

func upstreamError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return errors.Errorf("upstream: %s failed with status %d: %s", op, resp.StatusCode, string(raw))
}
