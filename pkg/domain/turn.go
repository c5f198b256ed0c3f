package domain

import "fmt"

// Role identifies the participant that contributed a Turn.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleHuman, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Payload is the structured record an assistant attaches to a Turn to signal
// that requirement gathering is complete.
type Payload struct {
	Objective    string   `json:"objective" mapstructure:"objective" jsonschema:"required,minLength=1,description=What the generated artifact must achieve"`
	Variables    []string `json:"variables" mapstructure:"variables" jsonschema:"required,description=Variables that will be passed into the artifact"`
	Constraints  []string `json:"constraints" mapstructure:"constraints" jsonschema:"required,description=Constraints the output must respect"`
	Requirements []string `json:"requirements" mapstructure:"requirements" jsonschema:"required,description=Requirements the output must adhere to"`
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	return Payload{
		Objective:    p.Objective,
		Variables:    append([]string(nil), p.Variables...),
		Constraints:  append([]string(nil), p.Constraints...),
		Requirements: append([]string(nil), p.Requirements...),
	}
}

// Turn is one message in a conversation.
type Turn struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Payload *Payload `json:"payload,omitempty"`
}

// NewHumanTurn creates a turn authored by the human participant.
func NewHumanTurn(content string) Turn {
	return Turn{Role: RoleHuman, Content: content}
}

// NewAssistantTurn creates a plain assistant turn.
func NewAssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// NewModeSwitchTurn creates an assistant turn carrying a structured payload.
func NewModeSwitchTurn(content string, payload Payload) Turn {
	p := payload.Clone()
	return Turn{Role: RoleAssistant, Content: content, Payload: &p}
}

// NewSystemTurn creates a system turn.
func NewSystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

// Validate checks that only the fields appropriate to the role are populated.
func (t Turn) Validate() error {
	if !t.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidTurn, t.Role)
	}
	if t.Payload != nil && t.Role != RoleAssistant {
		return fmt.Errorf("%w: payload on %s turn", ErrInvalidTurn, t.Role)
	}
	return nil
}

// Clone returns a copy of the turn that shares no memory with the receiver.
func (t Turn) Clone() Turn {
	out := t
	if t.Payload != nil {
		p := t.Payload.Clone()
		out.Payload = &p
	}
	return out
}
