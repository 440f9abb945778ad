package cdp

import "encoding/json"

// Message is the wire shape of a single CDP frame. A Response carries a
// nonzero ID and at most one of Result/Error; an Event carries Method and
// no ID. The engine never interprets Params/Result payloads beyond this
// envelope — see the allowed-command closed set in taxonomy.go for the
// only place method names matter.
type Message struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WireError      `json:"error,omitempty"`
}

// WireError is the error object a debuggee embeds in a Response.
type WireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// IsResponse reports whether m carries a response to a previously sent
// command rather than an unsolicited event.
func (m *Message) IsResponse() bool {
	return m.ID != 0
}

// Command is a method+params pair a caller wants executed.
type Command struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ResultItem is one entry in the ordered result stream execute/
// execute_batch return: either a command_result or an event, tagged by
// Type so callers can discriminate without a type switch on Go types.
type ResultItem struct {
	Type string          `json:"type"` // "command_result" or "event"
	Data json.RawMessage `json:"data"`
}

func commandResultItem(result json.RawMessage) ResultItem {
	return ResultItem{Type: "command_result", Data: result}
}

func eventItem(event *Message) ResultItem {
	data, err := json.Marshal(event)
	if err != nil {
		data = json.RawMessage(`{}`)
	}
	return ResultItem{Type: "event", Data: data}
}
