package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// EncodeResponse serializes a Response to JSON and writes it to w.
func EncodeResponse(w io.Writer, resp *Response) error {
	if resp.Status != "ok" && resp.Status != "error" {
		return fmt.Errorf("invalid response status: %q", resp.Status)
	}

	encoder := json.NewEncoder(w)
	if err := encoder.Encode(resp); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	return nil
}

// DecodeRequest reads and deserializes a Request from JSON in r.
func DecodeRequest(r io.Reader) (*Request, error) {
	var req Request

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields() // Strict parsing

	if err := decoder.Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}

	if req.Tool == "" {
		return nil, fmt.Errorf("request missing required field: tool")
	}
	if req.Arguments == nil {
		req.Arguments = make(map[string]any)
	}

	return &req, nil
}

// DecodeResponse reads and deserializes a Response from JSON in r.
func DecodeResponse(r io.Reader) (*Response, error) {
	var resp Response

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.Status != "ok" && resp.Status != "error" {
		return nil, fmt.Errorf("invalid status value: %q (must be 'ok' or 'error')", resp.Status)
	}

	// If status is error, a kind must be present for programmatic branching.
	if resp.Status == "error" && resp.Kind == "" {
		return nil, fmt.Errorf("response has status=error but no error kind")
	}

	return &resp, nil
}
