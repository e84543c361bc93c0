package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tezansahu/career-mentor-agent/internal/log"
)

func TestTool_Spec(t *testing.T) {
	tool := NewTool(NewClient("key", log.NewNop()))
	spec := tool.Spec()
	assert.Equal(t, ToolName, spec.Name)
	assert.NotEmpty(t, spec.Description)
	assert.Equal(t, "object", spec.Schema["type"])
}

func TestTool_Preview(t *testing.T) {
	tool := NewTool(NewClient("key", log.NewNop()))
	assert.Equal(t, "golang jobs", tool.Preview(json.RawMessage(`{"query":"golang jobs"}`)))
	assert.Empty(t, tool.Preview(json.RawMessage(`{}`)))
	assert.Empty(t, tool.Preview(json.RawMessage(`not json`)))
}

func TestTool_ExecuteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"organic":[{"title":"T","link":"https://t.example","snippet":"S"}]}`))
	}))
	defer server.Close()

	tool := NewTool(NewClient("key", log.NewNop(), WithBaseURL(server.URL)))
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"q"}`))
	require.NoError(t, err)
	assert.Equal(t, "- [T](https://t.example) - S", out)
}

// Provider failures must come back as text, never as an error: the
// model should see the failure and keep going.
func TestTool_ExecuteFailureReturnsString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	tool := NewTool(NewClient("key", log.NewNop(), WithBaseURL(server.URL)))
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"q"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "429")
}

func TestTool_ExecuteNetworkFailureReturnsString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	tool := NewTool(NewClient("key", log.NewNop(), WithBaseURL(server.URL)))
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"q"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Error:")
}

func TestTool_ExecuteBadArgs(t *testing.T) {
	tool := NewTool(NewClient("key", log.NewNop()))

	out, err := tool.Execute(context.Background(), json.RawMessage(`not json`))
	require.NoError(t, err)
	assert.Contains(t, out, "Error:")

	out, err = tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Error:")
}
