package upstream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/lerianlabs/batchgate/internal/domain"
)

// RetrieveBatchResults downloads outputFileID's NDJSON content and indexes
// each line's completion response by the custom_id it was submitted under,
// so the Poller can match results back to the waiting requests.
func (c *Client) RetrieveBatchResults(ctx context.Context, apiKey, outputFileID string) (map[string]domain.CompletionResponse, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/files/"+outputFileID+"/content", nil)
	if err != nil {
		return nil, errors.Wrap(err, "building results request")
	}

	resp, err := c.do(ctx, apiKey, req)
	if err != nil {
		return nil, errors.Wrap(err, "retrieving batch results")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, upstreamError("retrieve batch results", resp)
	}

	results := map[string]domain.CompletionResponse{}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var resultLine domain.BatchResultLine
		if err := json.Unmarshal([]byte(line), &resultLine); err != nil {
			return nil, errors.Wrap(err, "decoding batch result line")
		}

		results[resultLine.CustomID] = resultLine.Response.Body
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading batch results")
	}

	return results, nil
}
