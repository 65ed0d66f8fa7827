package registry

import (
	"encoding/json"
	"log/slog"

	"github.com/mcpbridge/mcpbridge/internal/toolserver"
	"github.com/mcpbridge/mcpbridge/pkg/llm"
)

// Project converts tool descriptors into the capability declarations the
// language model expects.
//
// Projection is a pure function with one lenient edge: a descriptor whose
// parameter schema does not normalize to a JSON object is omitted from the
// catalog with a warning instead of aborting — one misdeclared tool must
// never take the whole session down. A nil schema is projected as an empty
// object schema (a parameter-less tool).
func Project(descs []toolserver.Descriptor) []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, 0, len(descs))
	for _, d := range descs {
		params, ok := normalizeSchema(d.InputSchema)
		if !ok {
			slog.Warn("omitting tool with unprojectable parameter schema",
				"tool", d.Name)
			continue
		}
		out = append(out, llm.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		})
	}
	return out
}

// normalizeSchema coerces a raw schema value into a JSON object. SDK
// schemas arrive as typed structs, decoded maps, or raw JSON depending on
// the server, so normalization goes through a marshal round-trip for
// anything that is not already a map.
func normalizeSchema(schema any) (map[string]any, bool) {
	switch s := schema.(type) {
	case nil:
		return map[string]any{"type": "object"}, true
	case map[string]any:
		return s, true
	case json.RawMessage:
		var m map[string]any
		if err := json.Unmarshal(s, &m); err != nil {
			return nil, false
		}
		return m, true
	default:
		data, err := json.Marshal(schema)
		if err != nil {
			return nil, false
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, false
		}
		return m, true
	}
}
