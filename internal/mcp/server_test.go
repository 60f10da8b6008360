package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apkbridge/apkbridge/internal/protocol"
	"github.com/apkbridge/apkbridge/internal/tool"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestSchemaFor(t *testing.T) {
	desc := &tool.Descriptor{
		Name: "decode_apk",
		Args: []tool.ArgSpec{
			{Name: "apk_path", Type: tool.TypeString, Required: true, Description: "Path to the APK file"},
			{Name: "force", Type: tool.TypeBool},
			{Name: "max_results", Type: tool.TypeInt},
			{Name: "mode", Type: tool.TypeEnum, Enum: []string{"fast", "full"}},
		},
	}

	schema := SchemaFor(desc)
	require.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"apk_path"}, schema.Required)

	require.Contains(t, schema.Properties, "apk_path")
	assert.Equal(t, "string", schema.Properties["apk_path"].Type)
	assert.Equal(t, "Path to the APK file", schema.Properties["apk_path"].Description)
	assert.Equal(t, "boolean", schema.Properties["force"].Type)
	assert.Equal(t, "integer", schema.Properties["max_results"].Type)
	assert.Equal(t, "string", schema.Properties["mode"].Type)
	assert.Len(t, schema.Properties["mode"].Enum, 2)
}

func TestSchemaForNoArgs(t *testing.T) {
	schema := SchemaFor(&tool.Descriptor{Name: "apktool_version"})
	assert.Equal(t, "object", schema.Type)
	assert.Empty(t, schema.Required)
	assert.Empty(t, schema.Properties)
}

func TestFailureResult(t *testing.T) {
	resp := protocol.Failure(protocol.NewError(protocol.KindConcurrentOp,
		"workspace busy with a decode"))

	result := FailureResult(resp)
	require.True(t, result.IsError)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(*sdk.TextContent)
	require.True(t, ok)
	assert.Equal(t, "ConcurrentOperationConflict: workspace busy with a decode", text.Text)
}
