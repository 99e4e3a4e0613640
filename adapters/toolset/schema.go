package toolset

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

var reflector = &jsonschema.Reflector{
	ExpandedStruct: true,
	DoNotReference: true,
}

// schemaFor reflects a tool's argument struct into the JSON Schema map
// turn.ToolDefinition.InputSchema carries. v should be a pointer to a
// zero-valued struct tagged with `jsonschema:"..."`.
func schemaFor(v any) map[string]any {
	schema := reflector.Reflect(v)
	body, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		panic(err)
	}
	return out
}
