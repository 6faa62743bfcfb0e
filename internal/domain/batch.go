package domain

// Upstream batch-API statuses, as reported by GET /batches/{id}. Only the
// terminal ones are interpreted here; every other string is treated as
// still in flight.
const (
	BatchStatusCompleted = "completed"
	BatchStatusFailed    = "failed"
	BatchStatusExpired   = "expired"
	BatchStatusCancelled = "cancelled"
)

// TerminalFailureStatuses are the statuses the Poller treats as a whole-batch
// failure: every member request is marked Failed and the batch is retired.
var TerminalFailureStatuses = map[string]bool{
	BatchStatusFailed:    true,
	BatchStatusExpired:   true,
	BatchStatusCancelled: true,
}

// BatchLine is one JSONL line of the uploaded batch input file: a single
// chat-completion call addressed by the request's own id so the result can
// be matched back up once the batch completes.
type BatchLine struct {
	CustomID string            `json:"custom_id"`
	Method   string            `json:"method"`
	URL      string            `json:"url"`
	Body     CompletionRequest `json:"body"`
}

// FileUploadResponse is the upstream's response to POST /files.
type FileUploadResponse struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	Bytes     int64  `json:"bytes"`
	CreatedAt int64  `json:"created_at"`
	Filename  string `json:"filename"`
	Purpose   string `json:"purpose"`
}

// BatchResponse is the upstream's response to POST /batches and GET /batches/{id}.
type BatchResponse struct {
	ID            string            `json:"id"`
	Object        string            `json:"object"`
	Endpoint      string            `json:"endpoint"`
	InputFileID   string            `json:"input_file_id"`
	OutputFileID  *string           `json:"output_file_id,omitempty"`
	ErrorFileID   *string           `json:"error_file_id,omitempty"`
	Status        string            `json:"status"`
	CreatedAt     int64             `json:"created_at"`
	CompletedAt   *int64            `json:"completed_at,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// BatchResultResponse wraps the per-line response body in a batch output file.
type BatchResultResponse struct {
	StatusCode int64               `json:"status_code"`
	Body       CompletionResponse  `json:"body"`
}

// BatchResultLine is one JSONL line of the downloaded batch output file.
type BatchResultLine struct {
	ID       string               `json:"id"`
	CustomID string               `json:"custom_id"`
	Response BatchResultResponse  `json:"response"`
}
