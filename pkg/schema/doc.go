// Package schema validates and decodes the structured output of the model.
//
// It defines a small type system (strings, slices and custom validators) used to
// check raw tool-call arguments before they are decoded into a domain.Payload,
// and it reflects the JSON Schema that is offered to the model so the two never
// drift apart.
//
//	payload, err := schema.DecodePayload(map[string]any{
//	    "objective":    "extraction",
//	    "variables":    []any{"schema", "text"},
//	    "constraints":  []any{},
//	    "requirements": []any{"JSON output"},
//	})
package schema
