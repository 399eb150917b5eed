package server

type (
	// ErrorResponse is the body of every non-2xx response
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}

	// HealthResponse is returned by the liveness endpoint
	HealthResponse struct {
		Status string `json:"status"`
	}

	// RunRequest starts a workflow. Variables seed the run context.
	RunRequest struct {
		Variables map[string]interface{} `json:"variables,omitempty"`
		Async     bool                   `json:"async,omitempty"`
	}

	// RunAccepted acknowledges an asynchronous run. GET /runs/{runId}
	// reports it as running until the workflow finishes.
	RunAccepted struct {
		RunID      string `json:"runId"`
		WorkflowID string `json:"workflowId"`
		Status     string `json:"status"`
	}
)
