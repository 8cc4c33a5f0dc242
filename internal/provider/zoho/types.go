package zoho

import "encoding/json"

// rpcRequest is a JSON-RPC 2.0 tools/call request to the MCP gateway.
type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int       `json:"id"`
}

// rpcParams names the gateway tool and carries its arguments.
type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// rpcResponse is the JSON-RPC envelope returned by the gateway.
type rpcResponse struct {
	Result *rpcResult `json:"result"`
	Error  *rpcError  `json:"error"`
}

// rpcResult carries the tool output. The gateway encodes the actual
// Zoho API payload as a JSON string inside Content[0].Text.
type rpcResult struct {
	Content []rpcContent `json:"content"`
	IsError bool         `json:"isError"`
}

type rpcContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// listEnvelope is the decoded payload of ZohoMail_listEmails.
type listEnvelope struct {
	Data []listEmail `json:"data"`
}

// listEmail is one entry of the unread listing. Zoho returns message
// and folder IDs as strings and the label set as a string array.
type listEmail struct {
	MessageID   string   `json:"messageId"`
	FolderID    string   `json:"folderId"`
	FromAddress string   `json:"fromAddress"`
	Subject     string   `json:"subject"`
	LabelID     []string `json:"labelId"`
}

// contentEnvelope is the decoded payload of ZohoMail_getMessageContent.
type contentEnvelope struct {
	Data struct {
		Content string `json:"content"`
	} `json:"data"`
}

// decodeInner unmarshals the double-encoded payload carried in a tool
// result's first content block.
func decodeInner(result *rpcResult, v any) error {
	if result == nil || len(result.Content) == 0 {
		return errEmptyResult
	}
	return json.Unmarshal([]byte(result.Content[0].Text), v)
}
