package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeResponse(t *testing.T) {
	var buf bytes.Buffer
	resp := OK(map[string]any{"decode_dir": "/tmp/app"})

	require.NoError(t, EncodeResponse(&buf, resp))

	decoded, err := DecodeResponse(&buf)
	require.NoError(t, err)
	assert.True(t, decoded.IsOK())
	assert.Equal(t, "/tmp/app", decoded.Result["decode_dir"])
}

func TestEncodeResponseRejectsBadStatus(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeResponse(&buf, &Response{Status: "maybe"})
	require.Error(t, err)
}

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest(strings.NewReader(`{"tool":"decode_apk","arguments":{"apk_path":"/a.apk"}}`))
	require.NoError(t, err)
	assert.Equal(t, "decode_apk", req.Tool)
	assert.Equal(t, "/a.apk", req.Arguments["apk_path"])
}

func TestDecodeRequestMissingTool(t *testing.T) {
	_, err := DecodeRequest(strings.NewReader(`{"arguments":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool")
}

func TestDecodeRequestDefaultsArguments(t *testing.T) {
	req, err := DecodeRequest(strings.NewReader(`{"tool":"list_projects"}`))
	require.NoError(t, err)
	assert.NotNil(t, req.Arguments)
}

func TestDecodeResponseErrorNeedsKind(t *testing.T) {
	_, err := DecodeResponse(strings.NewReader(`{"status":"error","message":"boom"}`))
	require.Error(t, err)
}

func TestFailureEnvelope(t *testing.T) {
	ce := NewError(KindProcessFailure, "apktool exited with code %d", 1).
		WithDetail("exit_code", 1)

	resp := Failure(ce)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, KindProcessFailure, resp.Kind)
	assert.Equal(t, 1, resp.Details["exit_code"])
}

func TestKindOf(t *testing.T) {
	base := NewError(KindTimeout, "decode timed out")
	wrapped := fmt.Errorf("dispatch: %w", base)

	assert.Equal(t, KindTimeout, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestAsCallErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("disk on fire")
	ce := AsCallError(cause)

	assert.Equal(t, KindInternal, ce.Kind)
	assert.True(t, errors.Is(ce, cause))
}
