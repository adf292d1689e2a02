package client

import (
	"encoding/json"
)

// Event is the envelope for push messages coming over the status socket.
// Data holds a pointer to the message-specific payload type, or nil when the
// message type is unknown.
type Event struct {
	Type string
	Data interface{}
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var temp struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &temp); err != nil {
		return err
	}
	e.Type = temp.Type

	switch e.Type {
	case "status":
		e.Data = &StatusData{}
	case "execution_start":
		e.Data = &ExecutionStartData{}
	case "execution_cached":
		e.Data = &ExecutionCachedData{}
	case "executing":
		e.Data = &ExecutingData{}
	case "progress":
		e.Data = &ProgressData{}
	case "executed":
		e.Data = &ExecutedData{}
	case "execution_interrupted":
		e.Data = &ExecutionInterruptedData{}
	case "execution_error":
		e.Data = &ExecutionErrorData{}
	default:
		e.Data = nil
	}

	if e.Data == nil || len(temp.Data) == 0 {
		return nil
	}
	return json.Unmarshal(temp.Data, e.Data)
}

type StatusData struct {
	Status struct {
		ExecInfo struct {
			QueueRemaining int `json:"queue_remaining"`
		} `json:"exec_info"`
	} `json:"status"`
}

type ExecutionStartData struct {
	PromptID string `json:"prompt_id"`
}

type ExecutionCachedData struct {
	Nodes    []interface{} `json:"nodes"`
	PromptID string        `json:"prompt_id"`
}

// ExecutingData announces the node being run. Node stays a string: nested
// pipeline steps report compound ids like "57:30" which are not plain
// integers. A nil Node means the run finished.
type ExecutingData struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

type ProgressData struct {
	Value int `json:"value"`
	Max   int `json:"max"`
}

// OutputFile describes one artifact produced by an output node. Text-only
// outputs use Type "text" with the content in Text.
type OutputFile struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
}

type ExecutedData struct {
	Node     string                  `json:"node"`
	Output   map[string][]OutputFile `json:"output"`
	PromptID string                  `json:"prompt_id"`
}

func (d *ExecutedData) UnmarshalJSON(b []byte) error {
	var temp struct {
		Node     string                     `json:"node"`
		Output   map[string]json.RawMessage `json:"output"`
		PromptID string                     `json:"prompt_id"`
	}
	if err := json.Unmarshal(b, &temp); err != nil {
		return err
	}
	d.Node = temp.Node
	d.PromptID = temp.PromptID

	d.Output = make(map[string][]OutputFile)
	for k, raw := range temp.Output {
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			continue
		}
		files := make([]OutputFile, 0, len(entries))
		for _, entry := range entries {
			var f OutputFile
			if err := json.Unmarshal(entry, &f); err == nil && f.Filename != "" {
				files = append(files, f)
				continue
			}
			// plain string outputs from text nodes
			var s string
			if err := json.Unmarshal(entry, &s); err == nil {
				files = append(files, OutputFile{Type: "text", Text: s})
			}
		}
		d.Output[k] = files
	}
	return nil
}

type ExecutionInterruptedData struct {
	PromptID string   `json:"prompt_id"`
	Node     string   `json:"node_id"`
	NodeType string   `json:"node_type"`
	Executed []string `json:"executed"`
}

type ExecutionErrorData struct {
	PromptID         string   `json:"prompt_id"`
	Node             string   `json:"node_id"`
	NodeType         string   `json:"node_type"`
	Executed         []string `json:"executed"`
	ExceptionMessage string   `json:"exception_message"`
	ExceptionType    string   `json:"exception_type"`
	Traceback        []string `json:"traceback"`
}
