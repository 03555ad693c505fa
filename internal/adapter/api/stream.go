package api

import (
	"encoding/json"
	"errors"

	"answer-engine/internal/domain/entity"
)

// Markers of the plain-text streaming protocol.
const (
	ActivityMarker   = "###ACTIVITY###"
	ToolOutputMarker = "###TOOL_OUTPUT###"
)

var errClientGone = errors.New("stream client gone")

// EncodeEvent renders one event in the wire format: tokens and terminal
// texts as-is, progress as a marker line, tool output as a marker line
// followed by a JSON array.
func EncodeEvent(ev entity.Event) (string, error) {
	switch ev.Kind {
	case entity.EventProgress:
		return ActivityMarker + " " + ev.Text + "\n", nil
	case entity.EventToolOutput:
		tools := ev.Tools
		if tools == nil {
			tools = []entity.ToolInvocation{}
		}
		payload, err := json.Marshal(tools)
		if err != nil {
			return "", err
		}
		return "\n" + ToolOutputMarker + "\n" + string(payload), nil
	default:
		return ev.Text, nil
	}
}
