package dify

// ResponseModeBlocking makes Dify return the finished workflow output in the HTTP response.
const ResponseModeBlocking = "blocking"

// WorkflowRequest is the body of POST /v1/workflows/run.
type WorkflowRequest struct {
	Inputs       map[string]string `json:"inputs"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

// WorkflowResult is the blocking-mode response of a workflow run.
type WorkflowResult struct {
	WorkflowRunID string        `json:"workflow_run_id,omitempty"`
	TaskID        string        `json:"task_id,omitempty"`
	Data          *WorkflowData `json:"data,omitempty"`
}

// WorkflowData carries the run status and its outputs.
// Outputs values are left undecoded because a workflow may emit non-string values.
type WorkflowData struct {
	ID          string                 `json:"id,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Outputs     map[string]interface{} `json:"outputs,omitempty"`
	Error       string                 `json:"error,omitempty"`
	ElapsedTime float64                `json:"elapsed_time,omitempty"`
	TotalTokens int                    `json:"total_tokens,omitempty"`
}

// Text returns data.outputs.text when it is present and a string.
func (r *WorkflowResult) Text() (string, bool) {
	if r == nil || r.Data == nil || r.Data.Outputs == nil {
		return "", false
	}
	text, ok := r.Data.Outputs["text"].(string)
	if !ok {
		return "", false
	}
	return text, true
}

// errorResponse is the body Dify returns alongside non-2xx statuses.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}
