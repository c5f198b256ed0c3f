package testutils

import "github.com/aretw0/turnstile/pkg/domain"

// ExtractionPayload is the payload used across scenario tests.
func ExtractionPayload() domain.Payload {
	return domain.Payload{
		Objective:    "extraction",
		Variables:    []string{"schema", "text"},
		Constraints:  []string{"no prose"},
		Requirements: []string{"JSON output"},
	}
}

// LatchedThread returns a thread whose latest turn is a mode switch.
func LatchedThread(id string) domain.Thread {
	return domain.NewThread(id).
		Append(domain.NewHumanTurn("I need a prompt")).
		Append(domain.NewAssistantTurn("What should it do?")).
		Append(domain.NewHumanTurn("extract JSON from text given a schema")).
		Append(domain.NewModeSwitchTurn("", ExtractionPayload()))
}
