package domain

// Mode is the conversational state the router selects for the next step.
// It is never persisted; it is re-derived from the thread on every decision.
type Mode string

const (
	// ModeGathering collects requirements from the human.
	ModeGathering Mode = "gathering"
	// ModeGenerating produces (or refines) the artifact.
	ModeGenerating Mode = "generating"
	// ModeAwaitingInput ends the current cycle and hands control back to the caller.
	ModeAwaitingInput Mode = "awaiting_input"
)

// IsTerminal reports whether the mode ends the current cycle.
func (m Mode) IsTerminal() bool {
	return m == ModeAwaitingInput
}

func (m Mode) String() string { return string(m) }
