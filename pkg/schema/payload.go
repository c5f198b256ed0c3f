package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// PayloadToolName is the name under which the payload schema is offered to a model.
const PayloadToolName = "PromptInstructions"

const payloadToolDescription = "Call this once the objective, variables, constraints and requirements are all known."

// PayloadFields validates the raw structured output of a mode-switch turn.
var PayloadFields = Schema{
	"objective":    NonEmptyString(),
	"variables":    Slice(String()),
	"constraints":  Slice(String()),
	"requirements": Slice(String()),
}

var (
	payloadSchemaOnce sync.Once
	payloadSchema     map[string]any
	payloadSchemaErr  error
)

// PayloadJSONSchema returns the JSON Schema object describing domain.Payload.
// The returned map is a fresh copy on every call.
func PayloadJSONSchema() (map[string]any, error) {
	payloadSchemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			DoNotReference:            true,
			ExpandedStruct:            true,
			AllowAdditionalProperties: false,
		}
		s := r.Reflect(&domain.Payload{})
		s.Version = ""
		s.ID = ""

		data, err := json.Marshal(s)
		if err != nil {
			payloadSchemaErr = fmt.Errorf("failed to marshal payload schema: %w", err)
			return
		}
		if err := json.Unmarshal(data, &payloadSchema); err != nil {
			payloadSchemaErr = fmt.Errorf("failed to decode payload schema: %w", err)
		}
	})
	if payloadSchemaErr != nil {
		return nil, payloadSchemaErr
	}
	return copyMap(payloadSchema), nil
}

// PayloadOutputSchema returns the output schema bound to the gathering call.
func PayloadOutputSchema() (*ports.OutputSchema, error) {
	params, err := PayloadJSONSchema()
	if err != nil {
		return nil, err
	}
	return &ports.OutputSchema{
		Name:        PayloadToolName,
		Description: payloadToolDescription,
		Parameters:  params,
	}, nil
}

// DecodePayload validates raw structured output (as decoded from JSON) and
// converts it into a domain.Payload.
func DecodePayload(args map[string]any) (domain.Payload, error) {
	if err := Validate(PayloadFields, args); err != nil {
		return domain.Payload{}, fmt.Errorf("malformed structured output: %w", err)
	}

	var p domain.Payload
	if err := mapstructure.Decode(args, &p); err != nil {
		return domain.Payload{}, fmt.Errorf("malformed structured output: %w", err)
	}
	return p, nil
}

// ValidatePayload checks an already typed payload against PayloadFields.
// Nil lists are treated as empty.
func ValidatePayload(p domain.Payload) error {
	return Validate(PayloadFields, map[string]any{
		"objective":    p.Objective,
		"variables":    orEmpty(p.Variables),
		"constraints":  orEmpty(p.Constraints),
		"requirements": orEmpty(p.Requirements),
	})
}

// DecodePayloadJSON is DecodePayload for a raw JSON object.
func DecodePayloadJSON(raw []byte) (domain.Payload, error) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return domain.Payload{}, fmt.Errorf("malformed structured output: %w", err)
	}
	return DecodePayload(args)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			out[k] = copyMap(val)
		case []any:
			out[k] = append([]any(nil), val...)
		default:
			out[k] = v
		}
	}
	return out
}
