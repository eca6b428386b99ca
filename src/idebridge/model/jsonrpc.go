// Package model defines the wire-layer JSON-RPC message model exchanged with
// the external CLI over the WebSocket connection.
package model

import (
	"encoding/json"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Version is the JSON-RPC protocol version tag.
const Version = "2.0"

// ProtocolVersion is the integration protocol revision advertised on initialize.
const ProtocolVersion = "2024-11-05"

// Subprotocol is the required Sec-WebSocket-Protocol token.
const Subprotocol = "mcp"

// AuthHeader carries the discovery credential on the upgrade request.
const AuthHeader = "X-Claude-Code-Ide-Authorization"

// Methods accepted from or sent to peers.
const (
	MethodInitialize               = "initialize"
	MethodInitialized              = "initialized"
	MethodNotificationsInitialized = "notifications/initialized"
	MethodToolsList                = "tools/list"
	MethodResourcesList            = "resources/list"
	MethodPromptsList              = "prompts/list"
	MethodPing                     = "ping"
	MethodIDEConnected             = "ide_connected"

	MethodSelectionChanged = "selection_changed"
	MethodAtMentioned      = "at_mentioned"
)

// Message is a decoded inbound JSON-RPC message. ID is kept raw so that
// responses can echo it byte for byte regardless of its JSON type.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpc2.Error `json:"error,omitempty"`
}

// IsReply reports whether the message answers one of the server's own
// requests rather than initiating a call.
func (m *Message) IsReply() bool {
	return m.Method == "" && m.ID != nil && m.Result != nil
}

// ReplyID parses the message id as an integer. Heartbeat pings always carry
// numeric ids, so a non-numeric id is simply not a heartbeat reply.
func (m *Message) ReplyID() (int64, bool) {
	var id int64
	if err := json.Unmarshal(m.ID, &id); err != nil {
		return 0, false
	}
	return id, true
}

// Response answers a peer-originated request.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *jsonrpc2.Error `json:"error,omitempty"`
}

// Request is a server-originated call, currently only the heartbeat ping.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
}

// Notification is a one-way server-to-peer message.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// InitializeResult is the capability handshake response.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

// ServerCapabilities advertises the supported feature set.
type ServerCapabilities struct {
	Tools ToolsCapability `json:"tools"`
}

// ToolsCapability flags support for tool-list change notifications.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ServerInfo names the host side of the handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Tool is a single entry in a tools/list response. The bridge exposes none.
type Tool struct {
	Name string `json:"name"`
}

// ToolsListResult lists the available tools.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ResourcesListResult lists the available resources.
type ResourcesListResult struct {
	Resources []interface{} `json:"resources"`
}

// PromptsListResult lists the available prompts.
type PromptsListResult struct {
	Prompts []interface{} `json:"prompts"`
}

// IDEConnectedParams carries the connecting process id.
type IDEConnectedParams struct {
	PID int `json:"pid"`
}

// SelectionChangedParams describes the current editing context. All fields
// are independently nullable: a full deselection sends all three as null.
type SelectionChangedParams struct {
	Text      *string         `json:"text"`
	FilePath  *string         `json:"filePath"`
	Selection *protocol.Range `json:"selection"`
}

// AtMentionedParams points the assistant at a file region. Nil line bounds
// mean the whole file.
type AtMentionedParams struct {
	FilePath  string `json:"filePath"`
	StartLine *int   `json:"startLine"`
	EndLine   *int   `json:"endLine"`
}
