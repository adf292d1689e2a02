package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEvent(t *testing.T, raw string) Event {
	t.Helper()
	var e Event
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	return e
}

func TestEventDecodeStatus(t *testing.T) {
	e := decodeEvent(t, `{"type":"status","data":{"status":{"exec_info":{"queue_remaining":3}}}}`)
	assert.Equal(t, "status", e.Type)
	data, ok := e.Data.(*StatusData)
	require.True(t, ok)
	assert.Equal(t, 3, data.Status.ExecInfo.QueueRemaining)
}

func TestEventDecodeExecutingKeepsCompoundIDs(t *testing.T) {
	e := decodeEvent(t, `{"type":"executing","data":{"node":"57:30","prompt_id":"p-1"}}`)
	data, ok := e.Data.(*ExecutingData)
	require.True(t, ok)
	require.NotNil(t, data.Node)
	assert.Equal(t, "57:30", *data.Node)
	assert.Equal(t, "p-1", data.PromptID)
}

func TestEventDecodeExecutingNilNodeMeansFinished(t *testing.T) {
	e := decodeEvent(t, `{"type":"executing","data":{"node":null,"prompt_id":"p-1"}}`)
	data, ok := e.Data.(*ExecutingData)
	require.True(t, ok)
	assert.Nil(t, data.Node)
}

func TestEventDecodeExecutedMixedOutputs(t *testing.T) {
	e := decodeEvent(t, `{"type":"executed","data":{
		"node":"9",
		"prompt_id":"p-1",
		"output":{
			"images":[{"filename":"out_0001.png","subfolder":"","type":"output"}],
			"text":["a caption"]
		}
	}}`)
	data, ok := e.Data.(*ExecutedData)
	require.True(t, ok)
	assert.Equal(t, "9", data.Node)

	require.Len(t, data.Output["images"], 1)
	assert.Equal(t, "out_0001.png", data.Output["images"][0].Filename)
	assert.Equal(t, "output", data.Output["images"][0].Type)

	require.Len(t, data.Output["text"], 1)
	assert.Equal(t, "text", data.Output["text"][0].Type)
	assert.Equal(t, "a caption", data.Output["text"][0].Text)
}

func TestEventDecodeUnknownType(t *testing.T) {
	e := decodeEvent(t, `{"type":"crystools.monitor","data":{"cpu_utilization":12}}`)
	assert.Equal(t, "crystools.monitor", e.Type)
	assert.Nil(t, e.Data)
}

func TestEventDecodeExecutionError(t *testing.T) {
	e := decodeEvent(t, `{"type":"execution_error","data":{
		"prompt_id":"p-1",
		"node_id":"3",
		"node_type":"KSampler",
		"exception_message":"CUDA out of memory",
		"exception_type":"OutOfMemoryError",
		"executed":["1","2"]
	}}`)
	data, ok := e.Data.(*ExecutionErrorData)
	require.True(t, ok)
	assert.Equal(t, "KSampler", data.NodeType)
	assert.Equal(t, "CUDA out of memory", data.ExceptionMessage)
	assert.Equal(t, []string{"1", "2"}, data.Executed)
}
