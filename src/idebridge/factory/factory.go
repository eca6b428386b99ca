// Package factory provides user-defined factories for commonly constructed
// test values.
package factory

import (
	"encoding/json"

	"github.com/gofrs/uuid"

	"github.com/vaulterm/idebridge/src/idebridge/internal/wsframe"
	"github.com/vaulterm/idebridge/src/idebridge/model"
)

// UUID is a user-defined factory for a random uuid.UUID.
func UUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// RequestFrame builds a text frame carrying a JSON-RPC request with the given
// id, method and params.
func RequestFrame(id int64, method string, params interface{}) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": model.Version,
		"id":      id,
		"method":  method,
		"params":  params,
	})
	return wsframe.Build(wsframe.OpcodeText, payload)
}

// NotificationFrame builds a text frame carrying a JSON-RPC notification.
func NotificationFrame(method string, params interface{}) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": model.Version,
		"method":  method,
		"params":  params,
	})
	return wsframe.Build(wsframe.OpcodeText, payload)
}

// ReplyFrame builds a text frame carrying a reply to a server-originated
// request, as sent for heartbeat pings.
func ReplyFrame(id int64) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": model.Version,
		"id":      id,
		"result":  map[string]interface{}{},
	})
	return wsframe.Build(wsframe.OpcodeText, payload)
}
