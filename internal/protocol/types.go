package protocol

// Request represents one parsed tool call delivered by a transport adapter.
// Framing (stdio JSON-RPC, HTTP) is owned by the adapters; by the time a
// Request reaches the dispatcher it is already decoded.
type Request struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Response represents the uniform result envelope returned to clients.
// Exactly one of Result or the error fields is populated.
type Response struct {
	Status  string         `json:"status"` // ok | error
	Result  map[string]any `json:"result,omitempty"`
	Kind    ErrorKind      `json:"kind,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// OK wraps a result payload in a success envelope.
func OK(result map[string]any) *Response {
	if result == nil {
		result = map[string]any{}
	}
	return &Response{Status: "ok", Result: result}
}

// Failure wraps a CallError in an error envelope.
func Failure(err *CallError) *Response {
	return &Response{
		Status:  "error",
		Kind:    err.Kind,
		Message: err.Message,
		Details: err.Details,
	}
}

// IsOK reports whether the response carries a success payload.
func (r *Response) IsOK() bool {
	return r.Status == "ok"
}
