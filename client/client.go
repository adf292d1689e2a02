// Package client talks to a ComfyUI backend: capability fetches over HTTP
// and execution status over the websocket feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jaeone94/comfy-mobile-graph/graph"
	"github.com/jaeone94/comfy-mobile-graph/registry"
	"github.com/jaeone94/comfy-mobile-graph/session"
	"github.com/rs/zerolog/log"
)

// ErrStaleSession reports that the editing session a fetch was issued for
// left the navigation stack before the response arrived. The caller drops
// the result instead of applying it to whatever session is active now.
var ErrStaleSession = errors.New("client: session no longer on stack")

// Client issues requests against one ComfyUI server. Each Client carries a
// generated id so the server can route status events back to it.
type Client struct {
	baseAddress string
	clientID    string
	httpclient  *http.Client
	stream      *StatusStream
}

// New creates a client for the server at host:port.
func New(host string, port int) *Client {
	return &Client{
		baseAddress: fmt.Sprintf("%s:%d", host, port),
		clientID:    uuid.New().String(),
		httpclient:  &http.Client{},
	}
}

// ClientID returns the id used to correlate queued prompts with status
// events.
func (c *Client) ClientID() string {
	return c.clientID
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpclient = hc
}

// Listen opens the status websocket and returns the event channel. The
// stream reconnects on its own until ctx is cancelled.
func (c *Client) Listen(ctx context.Context) <-chan Event {
	c.stream = newStatusStream(fmt.Sprintf("ws://%s/ws?clientId=%s", c.baseAddress, c.clientID))
	go c.stream.run(ctx)
	return c.stream.Events()
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s%s", c.baseAddress, path), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.Unmarshal(body, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("http://%s%s", c.baseAddress, path), bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// FetchRegistry downloads the server's node class catalog.
func (c *Client) FetchRegistry(ctx context.Context) (*registry.Registry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/object_info", c.baseAddress), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /object_info: %s", resp.Status)
	}
	return registry.Parse(body)
}

// FetchRegistryForSession fetches the catalog on behalf of one editing
// session. If that session left the stack while the request was in flight
// the result is discarded and ErrStaleSession returned.
func (c *Client) FetchRegistryForSession(ctx context.Context, stack *session.Stack, sessionID uuid.UUID) (*registry.Registry, error) {
	reg, err := c.FetchRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if !stack.Contains(sessionID) {
		log.Warn().Str("session_id", sessionID.String()).Msg("dropping catalog fetched for a departed session")
		return nil, ErrStaleSession
	}
	return reg, nil
}

// Execution identifies a prompt accepted by the server's queue.
type Execution struct {
	PromptID   string          `json:"prompt_id"`
	Number     int             `json:"number"`
	NodeErrors json.RawMessage `json:"node_errors"`
}

type promptError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// QueuePrompt submits an execution-format prompt to the server queue.
func (c *Client) QueuePrompt(ctx context.Context, p *graph.Prompt) (*Execution, error) {
	body, status, err := c.postJSON(ctx, "/prompt", p)
	if err != nil {
		return nil, err
	}

	exec := &Execution{}
	if uerr := json.Unmarshal(body, exec); uerr != nil || exec.PromptID == "" {
		perr := &promptError{}
		if json.Unmarshal(body, perr) == nil && perr.Error.Message != "" {
			return nil, errors.New(perr.Error.Message)
		}
		return nil, fmt.Errorf("POST /prompt: status %d", status)
	}
	return exec, nil
}

// Interrupt asks the server to stop the currently running prompt.
func (c *Client) Interrupt(ctx context.Context) error {
	_, status, err := c.postJSON(ctx, "/interrupt", struct{}{})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("POST /interrupt: status %d", status)
	}
	return nil
}

// QueueSize reports how many prompts are waiting on the server.
func (c *Client) QueueSize(ctx context.Context) (int, error) {
	var info struct {
		ExecInfo struct {
			QueueRemaining int `json:"queue_remaining"`
		} `json:"exec_info"`
	}
	if err := c.getJSON(ctx, "/prompt", &info); err != nil {
		return 0, err
	}
	return info.ExecInfo.QueueRemaining, nil
}

// History returns the raw history entries keyed by prompt id. Entries are
// left undecoded: the server interleaves prompt tuples and output maps and
// callers rarely need more than the keys.
func (c *Client) History(ctx context.Context) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	if err := c.getJSON(ctx, "/history", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EraseHistory clears the server's prompt history.
func (c *Client) EraseHistory(ctx context.Context) error {
	_, status, err := c.postJSON(ctx, "/history", map[string]string{"clear": "clear"})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("POST /history: status %d", status)
	}
	return nil
}
