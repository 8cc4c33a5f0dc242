package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var errEmptyResult = errors.New("empty tool result")

// callTimeout bounds a single gateway call so a hang becomes a
// recoverable per-message error.
const callTimeout = 10 * time.Second

// Client is a thin JSON-RPC 2.0 client for the Zoho Mail MCP gateway.
// Every provider operation maps to one tools/call request.
type Client struct {
	gatewayURL string
	httpClient *http.Client
}

// NewClient creates a gateway client. The gatewayURL is the full MCP
// endpoint URL.
func NewClient(gatewayURL string) *Client {
	return &Client{
		gatewayURL: gatewayURL,
		httpClient: &http.Client{
			Timeout: callTimeout,
		},
	}
}

// Call invokes a gateway tool and returns its result. A JSON-RPC level
// error or a non-2xx status is returned as an error; tool-level
// failures flagged via isError are left to the caller, since some tools
// report partial detail there.
func (c *Client) Call(
	ctx context.Context,
	tool string,
	arguments map[string]any,
) (*rpcResult, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "tools/call",
		Params: rpcParams{
			Name:      tool,
			Arguments: arguments,
		},
		ID: 1,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", tool, err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", tool, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", tool, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", tool, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf(
			"%s returned status %d: %s", tool, resp.StatusCode, respBody,
		)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", tool, err)
	}

	if rpcResp.Error != nil {
		return nil, fmt.Errorf(
			"%s failed (%d): %s", tool, rpcResp.Error.Code, rpcResp.Error.Message,
		)
	}

	if rpcResp.Result == nil {
		return nil, fmt.Errorf("%s: %w", tool, errEmptyResult)
	}

	return rpcResp.Result, nil
}
