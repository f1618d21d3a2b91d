package chi

// ErrorCode is the machine-readable error code of an API error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeMergeNotFound     ErrorCode = "merge_not_found"
	CodeConfiguration     ErrorCode = "configuration_error"
	CodeUnsupportedMethod ErrorCode = "unsupported_method"
	CodeUnresolved        ErrorCode = "unresolved_reference"
	CodeBuildFailed       ErrorCode = "build_failed"
	CodeProviderError     ErrorCode = "provider_error"
	CodeTimeout           ErrorCode = "timeout"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AnswerRequest is the body of POST /v1/answer.
type AnswerRequest struct {
	Query   string `json:"query"`
	Merge   string `json:"merge,omitempty"`
	QueryID string `json:"query_id,omitempty"`
}

// AnswerParams are the query parameters of GET /v1/answer.
type AnswerParams struct {
	Q       string
	Merge   *string
	QueryID *string
}

// ResultItem is one fused, resolved reference.
type ResultItem struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Content any     `json:"content"`
}

// AnswerResponse is the body of a successful answer.
type AnswerResponse struct {
	QueryID string       `json:"query_id"`
	Merge   string       `json:"merge"`
	Results []ResultItem `json:"results"`
	TookMs  int64        `json:"took_ms"`
}

// MergeItem describes a declared merge policy.
type MergeItem struct {
	Name    string   `json:"name"`
	Method  string   `json:"method"`
	Bridges []string `json:"bridges"`
	Limit   int      `json:"limit"`
	Default bool     `json:"default"`
}

// MergeListResponse is the body of GET /v1/merges.
type MergeListResponse struct {
	Items []MergeItem `json:"items"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
