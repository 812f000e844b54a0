package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/checkpoint"
	"github.com/kforge/codeforge/pkg/conversation"
	"github.com/kforge/codeforge/pkg/llm"
	"github.com/kforge/codeforge/pkg/workflow"
)

// stubLLM answers every call with a fixed snippet, enough to drive a task
// through the workflow engine without touching a real backend.
type stubLLM struct{}

func (stubLLM) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	return "package main\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n", nil
}

func (stubLLM) GenerateStream(ctx context.Context, prompt string, opts llm.Options) (<-chan llm.Delta, <-chan error) {
	d := make(chan llm.Delta)
	e := make(chan error, 1)
	close(d)
	close(e)
	return d, e
}

func (stubLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	return "", nil
}

func (stubLLM) GenerateStructured(ctx context.Context, prompt string, schema *llm.JSONSchema, opts llm.Options) (map[string]any, error) {
	return map[string]any{}, nil
}

type stubModelLister struct{}

func (stubModelLister) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	return []llm.ModelInfo{{Name: "llama3:8b"}, {Name: "mistral:7b"}}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mgr, err := checkpoint.NewManager(&checkpoint.Config{Root: t.TempDir()})
	require.NoError(t, err)
	engine := workflow.New(workflow.Config{Client: stubLLM{}, Checkpoints: mgr})

	srv, err := New(Options{
		Engine:        engine,
		Conversations: conversation.NewStore(),
		Models:        stubModelLister{},
	})
	require.NoError(t, err)
	return srv
}

func TestHandleCreateTaskAndGet(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/tasks", "application/json", strings.NewReader(`{"task":"write a function that adds two ints"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	taskID := created["task_id"]
	require.NotEmpty(t, taskID)

	// poll until the checkpoint exists; StartTask spawns the run asynchronously.
	var getResp *http.Response
	for i := 0; i < 50; i++ {
		getResp, err = http.Get(ts.URL + "/api/tasks/" + taskID)
		require.NoError(t, err)
		if getResp.StatusCode == http.StatusOK {
			break
		}
		getResp.Body.Close()
		time.Sleep(20 * time.Millisecond)
	}
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&body))
	assert.Contains(t, body, "metadata")
	assert.Contains(t, body, "state")
}

func TestHandleCreateTaskRejectsEmptyTask(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/tasks", "application/json", strings.NewReader(`{"task":""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleGetTaskNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/tasks/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleStreamTask(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/tasks", "application/json", strings.NewReader(`{"task":"write a function that adds two ints"}`))
	require.NoError(t, err)
	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	taskID := created["task_id"]

	streamResp, err := http.Get(ts.URL + "/api/tasks/" + taskID + "/stream")
	require.NoError(t, err)
	defer streamResp.Body.Close()
	require.Equal(t, http.StatusOK, streamResp.StatusCode)
	assert.Equal(t, "text/event-stream", streamResp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(streamResp.Body)
	sawData := false
	sawFinal := false
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		sawData = true
		if strings.Contains(line, "final_result") || strings.Contains(line, "workflow_error") {
			sawFinal = true
			break
		}
	}
	assert.True(t, sawData, "expected at least one SSE data line")
	assert.True(t, sawFinal, "expected a terminal event to close the stream")
}

func TestHandleListModels(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/models")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Models []string `json:"models"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.ElementsMatch(t, []string{"llama3:8b", "mistral:7b"}, body.Models)
}

func TestHandleMetricsSummaryWithoutMetrics(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleMetricsRawDisabledReturns503(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleFeedback(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/feedback", "application/json", strings.NewReader(`{"task":"abc","feedback":"positive"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body["ok"])
}

func TestHandleFeedbackRejectsUnknownValue(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/feedback", "application/json", strings.NewReader(`{"task":"abc","feedback":"meh"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleConversationsListAndDelete(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	conv, err := srv.opts.Conversations.Append("", conversation.RoleUser, "hello there")
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/conversations")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Conversations []conversation.Conversation `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Conversations, 1)
	assert.Equal(t, conv.ID, body.Conversations[0].ID)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/conversations/"+conv.ID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	_, ok := srv.opts.Conversations.Get(conv.ID)
	assert.False(t, ok)
}

func TestCORSDefaultsToWildcard(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, strconv.Itoa(http.StatusOK), strconv.Itoa(resp.StatusCode))
}
