package schema_test

import (
	"errors"
	"testing"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload_Valid(t *testing.T) {
	args := map[string]any{
		"objective":    "extraction",
		"variables":    []any{"schema", "text"},
		"constraints":  []any{},
		"requirements": []any{"JSON output"},
	}

	p, err := schema.DecodePayload(args)
	require.NoError(t, err)
	assert.Equal(t, "extraction", p.Objective)
	assert.Equal(t, []string{"schema", "text"}, p.Variables)
	assert.Empty(t, p.Constraints)
	assert.Equal(t, []string{"JSON output"}, p.Requirements)
}

func TestDecodePayload_Malformed(t *testing.T) {
	cases := map[string]map[string]any{
		"missing objective": {
			"variables": []any{}, "constraints": []any{}, "requirements": []any{},
		},
		"blank objective": {
			"objective": "  ", "variables": []any{}, "constraints": []any{}, "requirements": []any{},
		},
		"variables not a list": {
			"objective": "x", "variables": "schema", "constraints": []any{}, "requirements": []any{},
		},
		"non string element": {
			"objective": "x", "variables": []any{1}, "constraints": []any{}, "requirements": []any{},
		},
		"null requirements": {
			"objective": "x", "variables": []any{}, "constraints": []any{}, "requirements": nil,
		},
	}

	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := schema.DecodePayload(args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "malformed structured output")
			assert.NotEmpty(t, schema.ValidationErrors(unwrapAggregate(err)))
		})
	}
}

func TestDecodePayloadJSON(t *testing.T) {
	p, err := schema.DecodePayloadJSON([]byte(`{"objective":"o","variables":["a"],"constraints":["c"],"requirements":["r"]}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Payload{Objective: "o", Variables: []string{"a"}, Constraints: []string{"c"}, Requirements: []string{"r"}}, p)

	_, err = schema.DecodePayloadJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestPayloadJSONSchema(t *testing.T) {
	s, err := schema.PayloadJSONSchema()
	require.NoError(t, err)

	assert.Equal(t, "object", s["type"])
	props, ok := s["properties"].(map[string]any)
	require.True(t, ok, "properties must be an object: %#v", s)
	for _, field := range []string{"objective", "variables", "constraints", "requirements"} {
		assert.Contains(t, props, field)
	}
	assert.ElementsMatch(t, []any{"objective", "variables", "constraints", "requirements"}, s["required"])

	// The model is told what DecodePayload enforces: a blank objective is rejected.
	objective, ok := props["objective"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, objective["minLength"])
	_, err = schema.DecodePayload(map[string]any{"objective": "", "variables": []any{}, "constraints": []any{}, "requirements": []any{}})
	assert.Error(t, err)

	// Callers may mutate the copy freely.
	delete(props, "objective")
	again, err := schema.PayloadJSONSchema()
	require.NoError(t, err)
	assert.Contains(t, again["properties"], "objective")
}

func TestPayloadOutputSchema(t *testing.T) {
	out, err := schema.PayloadOutputSchema()
	require.NoError(t, err)
	assert.Equal(t, schema.PayloadToolName, out.Name)
	assert.NotEmpty(t, out.Description)
	assert.Equal(t, "object", out.Parameters["type"])
}

func unwrapAggregate(err error) error {
	var aggr *schema.AggregateError
	if errors.As(err, &aggr) {
		return aggr
	}
	return nil
}

func TestValidatePayload(t *testing.T) {
	assert.NoError(t, schema.ValidatePayload(domain.Payload{Objective: "extraction"}))
	assert.Error(t, schema.ValidatePayload(domain.Payload{Objective: ""}))
	assert.NoError(t, schema.ValidatePayload(domain.Payload{Objective: "x", Variables: []string{"a"}}))
}
