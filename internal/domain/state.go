package domain

import "time"

// Status is the lifecycle stage of a single completion request. Transitions
// are monotonic: Queued -> Batching -> Processing -> {Complete, Failed}.
// There is no path backward.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusBatching   Status = "batching"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// TTL is how long a RequestState survives in the store after its last write,
// regardless of its terminal status. A batch's member list and API key are
// stored with the same TTL.
const TTL = 48 * time.Hour

// RequestState is the authoritative, store-resident record for one inbound
// completion request. It is the only place request status lives; every
// service derives its view of the world by reading and writing this record,
// never by holding state in process memory.
type RequestState struct {
	RequestID string             `json:"request_id"`
	Status    Status             `json:"status"`
	BatchID   *string            `json:"batch_id,omitempty"`
	Request   CompletionRequest  `json:"request"`
	APIKey    string             `json:"api_key"`
	Result    *CompletionResponse `json:"result,omitempty"`
	Error     *string            `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NewRequestState builds a freshly Queued record.
func NewRequestState(requestID string, request CompletionRequest, apiKey string) RequestState {
	now := time.Now().UTC()

	return RequestState{
		RequestID: requestID,
		Status:    StatusQueued,
		Request:   request,
		APIKey:    apiKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
