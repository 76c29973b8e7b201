package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor derives a strict JSON schema from a Go result type. The
// schema is sent with the completion request so the provider constrains
// the response shape, and the same type is used for strict decoding.
func SchemaFor[T any]() json.RawMessage {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	var value T
	schema := reflector.Reflect(&value)
	schema.Version = ""

	raw, marshalErr := json.Marshal(schema)
	if marshalErr != nil {
		// Only reachable for types that cannot round-trip through
		// encoding/json, which structured output types never are.
		panic(fmt.Sprintf("llm: marshal schema for %T: %v", value, marshalErr))
	}
	return raw
}
