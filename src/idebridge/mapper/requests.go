package mapper

import (
	"encoding/json"
	"fmt"

	"github.com/vaulterm/idebridge/src/idebridge/model"
)

// MessageToIDEConnectedParams extracts the connecting process id from an
// ide_connected message.
func MessageToIDEConnectedParams(msg *model.Message) (*model.IDEConnectedParams, error) {
	var params model.IDEConnectedParams
	if len(msg.Params) == 0 {
		return nil, fmt.Errorf("missing params for %q", model.MethodIDEConnected)
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil, fmt.Errorf("unmarshalling %q params: %w", model.MethodIDEConnected, err)
	}
	return &params, nil
}
