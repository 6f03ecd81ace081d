package wire

import (
	"encoding/json"
	"sort"
)

// toTree converts any JSON-marshalable Go value into the generic
// map[string]any / []any / scalar tree the abbreviated and TOON encoders
// walk. Using the standard marshal/unmarshal round trip keeps every
// caller (HUD document, action reply) working from the same representation
// without hand-written reflection.
func toTree(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// keyPriority orders well-known keys the way the HUD builder emits them;
// anything absent here sorts after, alphabetically.
var keyPriority = func() map[string]int {
	order := []string{
		"system", "meta", "agents", "agent_rooms", "warnings",
		"total", "free", "your_agent_id", "directives", "current_time",
		"instructions", "available_actions", "name", "inputs", "requires",
		"id", "display_name", "model", "seed", "knowledge", "recent_actions",
		"agent_id", "members", "messages", "billboard", "sender_agent_id",
		"sender_name", "content", "type", "reply_to", "timestamp",
		"actions", "responses", "path", "value", "room_id", "agent_type",
		"in_room_id", "until", "wpm", "background_prompt", "kind",
		"result", "summary", "outcome",
	}
	m := make(map[string]int, len(order))
	for i, k := range order {
		m[k] = i
	}
	return m
}()

// orderedKeys returns a deterministic key order for a map: known HUD/action
// keys first in their canonical order, then any remaining keys
// alphabetically. TOON is schema-first, so a stable order matters even
// though JSON object field order has no semantic weight.
func orderedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, oki := keyPriority[keys[i]]
		pj, okj := keyPriority[keys[j]]
		switch {
		case oki && okj:
			return pi < pj
		case oki:
			return true
		case okj:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// remapKeys walks a generic tree renaming every map key with fn.
func remapKeys(v any, fn func(string) string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fn(k)] = remapKeys(val, fn)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = remapKeys(val, fn)
		}
		return out
	default:
		return v
	}
}
