package wire

import "strings"

// RoomResponse is one outgoing message the agent wants to send, as found
// in the reply's "responses"/"messages" list.
type RoomResponse struct {
	RoomID  any // agent ids are strings in this port; kept as any to tolerate either shape a reply uses
	Message string
}

// ParsedReply is the normalized result of parsing an agent's reply,
// independent of which wire format it arrived in.
type ParsedReply struct {
	Responses []RoomResponse
	Actions   []map[string]any
}

// ParseReply parses response_text according to the agent's configured
// output format, never failing: a malformed or empty reply yields an
// empty ParsedReply rather than an error (§4.3, §7 "malformed reply").
func ParseReply(responseText string, format Format) ParsedReply {
	if responseText == "" {
		return ParsedReply{}
	}

	var data any
	var ok bool

	if format == FormatTOON {
		if v, err := ParseTOON(responseText); err == nil {
			data, ok = v, true
		}
	}

	if !ok {
		if v, err := DecodeVerboseJSON(responseText); err == nil {
			data, ok = v, true
		}
	}

	if !ok {
		if start := strings.IndexByte(responseText, '{'); start >= 0 {
			if end := strings.LastIndexByte(responseText, '}'); end > start {
				if v, err := DecodeVerboseJSON(responseText[start : end+1]); err == nil {
					data, ok = v, true
				}
			}
		}
	}

	if !ok {
		return ParsedReply{}
	}

	root, ok := data.(map[string]any)
	if !ok {
		return ParsedReply{}
	}
	return ParsedReply{
		Responses: extractResponses(root),
		Actions:   extractActions(root),
	}
}

func extractResponses(root map[string]any) []RoomResponse {
	raw, ok := root["responses"].([]any)
	if !ok {
		raw, ok = root["messages"].([]any)
		if !ok {
			return nil
		}
	}
	var out []RoomResponse
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		roomID, ok := m["room_id"]
		if !ok || roomID == nil {
			continue
		}
		message, _ := m["message"].(string)
		if message == "" {
			message, _ = m["content"].(string)
		}
		out = append(out, RoomResponse{RoomID: roomID, Message: message})
	}
	return out
}

func extractActions(root map[string]any) []map[string]any {
	raw, ok := root["actions"].([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
